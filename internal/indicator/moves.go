package indicator

import (
	"math"
	"time"
)

// Moves derives the shared directional-movement and up/down-move averages
// from two adjacent windows, (now-window, now) and (now-2*window,
// now-window). RSI and similar consumers read from one Moves instance
// instead of each rescanning the tick history.
//
// The smoothed averages fold against a value pushed once per window length,
// not against the per-step value, so updating faster than the window cadence
// does not dilute the averages.
type Moves struct {
	cfg    Config
	stocks StockProvider

	plusDMMA, plusDMMAPushed   float64
	minusDMMA, minusDMMAPushed float64

	upMA, upMAPushed     float64
	downMA, downMAPushed float64

	momentumMA, momentumMAPushed       float64
	momentumAbsMA, momentumAbsMAPushed float64

	lastPush time.Time
}

func newMoves(cfg Config, stocks StockProvider) *Moves {
	m := &Moves{cfg: cfg, stocks: stocks}
	m.Reset()
	return m
}

func (m *Moves) Config() Config { return m.cfg }

// PlusDMMA and MinusDMMA feed directional-index consumers.
func (m *Moves) PlusDMMA() float64  { return m.plusDMMA }
func (m *Moves) MinusDMMA() float64 { return m.minusDMMA }

// UpMA and DownMA feed the relative-strength calculation.
func (m *Moves) UpMA() float64   { return m.upMA }
func (m *Moves) DownMA() float64 { return m.downMA }

// MomentumMA and MomentumAbsMA are the smoothed close-to-close momentum and
// its magnitude.
func (m *Moves) MomentumMA() float64    { return m.momentumMA }
func (m *Moves) MomentumAbsMA() float64 { return m.momentumAbsMA }

func (m *Moves) Update(elapsed time.Duration, now time.Time) {
	stock, ok := m.stocks.Stock(m.cfg.CurrencyPair)
	if !ok {
		return
	}
	window := m.cfg.window()

	current := stock.TimePeriodOf(now.Add(-window), now)
	high := highOf(current)
	low := lowOf(current)

	previous := stock.TimePeriodOf(now.Add(-2*window), now.Add(-window))
	oldHigh := highOf(previous)
	oldLow := lowOf(previous)

	if math.IsNaN(high) || math.IsNaN(low) || math.IsNaN(oldHigh) || math.IsNaN(oldLow) {
		return
	}

	refresh := false
	if m.lastPush.IsZero() || !now.Before(m.lastPush.Add(window)) {
		refresh = true
		m.lastPush = now
	}

	upMove := high - oldHigh
	downMove := low - oldLow

	var plusDM, minusDM float64
	if upMove > downMove && upMove > 0 {
		plusDM = upMove
	} else if downMove > upMove && downMove > 0 {
		minusDM = downMove
	}

	m.plusDMMA = ma(m.plusDMMAPushed, plusDM, m.cfg.History)
	m.minusDMMA = ma(m.minusDMMAPushed, minusDM, m.cfg.History)
	if refresh {
		m.plusDMMAPushed = m.plusDMMA
		m.minusDMMAPushed = m.minusDMMA
	}

	closePrice := closeOf(current)
	oldClose := closeOf(previous)
	if math.IsNaN(closePrice) || math.IsNaN(oldClose) {
		return
	}

	move := closePrice - oldClose
	var up, down float64
	if move > 0 {
		up = move
	} else if move < 0 {
		down = -move
	}

	m.upMA = ma(m.upMAPushed, up, m.cfg.History)
	m.downMA = ma(m.downMAPushed, down, m.cfg.History)
	if refresh {
		m.upMAPushed = m.upMA
		m.downMAPushed = m.downMA
	}

	m.momentumMA = ma2(m.momentumMAPushed, move, m.cfg.History)
	m.momentumAbsMA = ma2(m.momentumAbsMAPushed, math.Abs(move), m.cfg.History)
	if refresh {
		m.momentumMAPushed = m.momentumMA
		m.momentumAbsMAPushed = m.momentumAbsMA
	}
}

func (m *Moves) Reset() {
	m.plusDMMA, m.plusDMMAPushed = seed(), seed()
	m.minusDMMA, m.minusDMMAPushed = seed(), seed()
	m.upMA, m.upMAPushed = seed(), seed()
	m.downMA, m.downMAPushed = seed(), seed()
	m.momentumMA, m.momentumMAPushed = seed(), seed()
	m.momentumAbsMA, m.momentumAbsMAPushed = seed(), seed()
	m.lastPush = time.Time{}
}
