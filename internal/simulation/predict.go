package simulation

import (
	"math"
	"time"

	"github.com/walachey/magicmarket-sub000/internal/utility/fixed"
)

// predictLookahead is how far into the future the efficiency label peeks.
const predictLookahead = 15 * time.Minute

// predictTradeEfficiency labels the current instant with the initial price
// excursion over the lookahead window: the largest one-directional move, in
// pips, before the minute-sampled price first reverses against it. The
// label feeds the statistics output only; nothing trading-related may ever
// see it.
func (vm *VirtualMarket) predictTradeEfficiency() {
	if !vm.haveLastTick || len(vm.leadingTicks) == 0 {
		return
	}

	start := vm.lastTick.Time
	end := start.Add(predictLookahead)
	if end.After(vm.leadingTicks[len(vm.leadingTicks)-1].Time) {
		return
	}

	period := vm.leadingStock.TimePeriodOf(start, end)
	prices, ok := period.ToVector(time.Minute)
	if !ok {
		return
	}
	if _, ok := period.Open(); !ok {
		return
	}

	vm.priceEstimate = initialExcursion(prices)
}

// initialExcursion folds the price path into a single signed pip value,
// stopping at the first sign reversal of the cumulative change.
func initialExcursion(prices []fixed.Point) float64 {
	base, _ := prices[0].Float64()

	var minChange, maxChange float64
	lastSign := 0
	for i := 1; i < len(prices); i++ {
		price, _ := prices[i].Float64()
		change := price - base

		sign := signum(change)
		if lastSign != 0 && sign != lastSign {
			break
		}
		lastSign = sign

		if change > maxChange {
			maxChange = change
		}
		if change < minChange {
			minChange = change
		}
	}

	value := maxChange
	if math.Abs(minChange) > math.Abs(maxChange) {
		value = minChange
	}
	onePip, _ := fixed.OnePip.Float64()
	return value / onePip
}

func signum(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func nan() float64 {
	return math.NaN()
}
