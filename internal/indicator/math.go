package indicator

import (
	"math"
	"time"

	"github.com/walachey/magicmarket-sub000/internal/store"
)

// ma folds a new observation into a recursively smoothed mean over roughly
// history observations. A NaN previous value seeds the series.
func ma(previous, value float64, history int) float64 {
	if math.IsNaN(previous) {
		return value
	}
	h := float64(history)
	return (previous*(h-1) + value) / h
}

// ma2 is the faster-falloff variant, weighting the new observation twice.
func ma2(previous, value float64, history int) float64 {
	if math.IsNaN(previous) {
		return value
	}
	h := float64(history)
	return (previous*(h-1) + 2*value) / (h + 1)
}

func seed() float64 {
	return math.NaN()
}

// closeOf, highOf and lowOf evaluate one window aggregate as a float64,
// NaN when the window holds no value.
func closeOf(period store.TimePeriod) float64 {
	v, ok := period.Close()
	if !ok {
		return math.NaN()
	}
	f, _ := v.Float64()
	return f
}

func highOf(period store.TimePeriod) float64 {
	v, ok := period.High()
	if !ok {
		return math.NaN()
	}
	f, _ := v.Float64()
	return f
}

func lowOf(period store.TimePeriod) float64 {
	v, ok := period.Low()
	if !ok {
		return math.NaN()
	}
	f, _ := v.Float64()
	return f
}

func windowOf(stocks StockProvider, currencyPair string, now time.Time, window time.Duration) (store.TimePeriod, bool) {
	stock, ok := stocks.Stock(currencyPair)
	if !ok {
		return store.TimePeriod{}, false
	}
	return stock.TimePeriodOf(now.Add(-window), now), true
}
