package store

import (
	"sort"
	"time"

	"github.com/walachey/magicmarket-sub000/internal/model"
	"github.com/walachey/magicmarket-sub000/internal/utility/fixed"
)

// ValueSelector picks which side of a tick a window aggregates over.
type ValueSelector uint8

const (
	SelectMid ValueSelector = iota
	SelectBid
	SelectAsk
)

func (selector ValueSelector) value(tick model.Tick) fixed.Point {
	switch selector {
	case SelectBid:
		return tick.Bid
	case SelectAsk:
		return tick.Ask
	default:
		return tick.Mid()
	}
}

// TimePeriod is a cheap, read-only window over one stock's tick history.
// It is a value object; construct freely, never persist.
//
// Range aggregates (High, Low, Average, MaxTickGap, ToVector) assume start
// and end fall on the same calendar day and report no value otherwise.
// Open and Close are exempt and consult the day owning the end time.
type TimePeriod struct {
	stock    *Stock
	start    time.Time
	end      time.Time
	selector ValueSelector
}

func NewTimePeriod(stock *Stock, start, end time.Time, selector ValueSelector) TimePeriod {
	return TimePeriod{stock: stock, start: start, end: end, selector: selector}
}

func (p TimePeriod) Start() time.Time { return p.start }
func (p TimePeriod) End() time.Time   { return p.end }

func (p *TimePeriod) SetValueSelector(selector ValueSelector) {
	p.selector = selector
}

// ExpandStartTime moves the window start earlier by the given amount. The
// change is rejected when it would invert the window.
func (p *TimePeriod) ExpandStartTime(by time.Duration) bool {
	start := p.start.Add(-by)
	if start.After(p.end) {
		return false
	}
	p.start = start
	return true
}

// ExpandEndTime moves the window end later by the given amount. The change
// is rejected when it would invert the window.
func (p *TimePeriod) ExpandEndTime(by time.Duration) bool {
	end := p.end.Add(by)
	if p.start.After(end) {
		return false
	}
	p.end = end
	return true
}

// Shift moves the whole window by the given amount.
func (p *TimePeriod) Shift(by time.Duration) {
	p.start = p.start.Add(by)
	p.end = p.end.Add(by)
}

// Open is the market state carried into the window: the value of the tick
// immediately preceding the start time. There is no value when the window
// begins at the very first tick of the day.
func (p TimePeriod) Open() (fixed.Point, bool) {
	ticks, ok := p.endDayTicks()
	if !ok {
		return fixed.Point{}, false
	}
	idx := sort.Search(len(ticks), func(i int) bool {
		return !ticks[i].Time.Before(p.start)
	})
	if idx == 0 {
		return fixed.Point{}, false
	}
	return p.selector.value(ticks[idx-1]), true
}

// Close is the value of the last tick at or before the end time. It ignores
// the start time, so it can be determined entirely before the window.
func (p TimePeriod) Close() (fixed.Point, bool) {
	ticks, ok := p.endDayTicks()
	if !ok {
		return fixed.Point{}, false
	}
	for i := len(ticks) - 1; i >= 0; i-- {
		if ticks[i].Time.After(p.end) {
			continue
		}
		return p.selector.value(ticks[i]), true
	}
	return fixed.Point{}, false
}

func (p TimePeriod) High() (fixed.Point, bool) {
	var high fixed.Point
	found := false
	p.eachInRange(func(tick model.Tick) {
		if v := p.selector.value(tick); !found || v.Gt(high) {
			high = v
			found = true
		}
	})
	return high, found
}

func (p TimePeriod) Low() (fixed.Point, bool) {
	var low fixed.Point
	found := false
	p.eachInRange(func(tick model.Tick) {
		if v := p.selector.value(tick); !found || v.Lt(low) {
			low = v
			found = true
		}
	})
	return low, found
}

func (p TimePeriod) Average() (fixed.Point, bool) {
	sum := fixed.Zero
	count := 0
	p.eachInRange(func(tick model.Tick) {
		sum = sum.Add(p.selector.value(tick))
		count++
	})
	if count == 0 {
		return fixed.Point{}, false
	}
	return sum.DivInt(count), true
}

// MaxTickGap is the largest time gap between consecutive in-range ticks,
// used as a data-sufficiency gate. It needs at least two ticks in range.
func (p TimePeriod) MaxTickGap() (time.Duration, bool) {
	var gap time.Duration
	var previous time.Time
	count := 0
	p.eachInRange(func(tick model.Tick) {
		if count > 0 {
			if d := tick.Time.Sub(previous); d > gap {
				gap = d
			}
		}
		previous = tick.Time
		count++
	})
	if count < 2 {
		return 0, false
	}
	return gap, true
}

// ToVector resamples the window at a fixed cadence from start to end. Each
// sample is the value of the last tick known at or before that instant, not
// an interpolation. There is no value when any sample has no prior tick.
func (p TimePeriod) ToVector(interval time.Duration) ([]fixed.Point, bool) {
	if interval <= 0 || !p.sameDay() {
		return nil, false
	}
	ticks, ok := p.endDayTicks()
	if !ok {
		return nil, false
	}

	samples := int(p.end.Sub(p.start)/interval) + 1
	out := make([]fixed.Point, 0, samples)

	idx := 0
	haveLast := false
	var last model.Tick
	for i := 0; i < samples; i++ {
		instant := p.start.Add(time.Duration(i) * interval)
		for idx < len(ticks) && !ticks[idx].Time.After(instant) {
			last = ticks[idx]
			haveLast = true
			idx++
		}
		if !haveLast {
			return nil, false
		}
		out = append(out, p.selector.value(last))
	}
	return out, true
}

func (p TimePeriod) sameDay() bool {
	return model.DateOf(p.start) == model.DateOf(p.end)
}

func (p TimePeriod) endDayTicks() ([]model.Tick, bool) {
	if p.stock == nil {
		return nil, false
	}
	day, ok := p.stock.GetTradingDay(model.DateOf(p.end), false)
	if !ok || len(day.Ticks()) == 0 {
		return nil, false
	}
	return day.Ticks(), true
}

// eachInRange visits every tick with start <= time <= end in time order,
// binary-searching the start and stopping at the first tick past the end.
func (p TimePeriod) eachInRange(visit func(model.Tick)) {
	if !p.sameDay() {
		return
	}
	ticks, ok := p.endDayTicks()
	if !ok {
		return
	}
	idx := sort.Search(len(ticks), func(i int) bool {
		return !ticks[i].Time.Before(p.start)
	})
	for ; idx < len(ticks); idx++ {
		if ticks[idx].Time.After(p.end) {
			break
		}
		visit(ticks[idx])
	}
}
