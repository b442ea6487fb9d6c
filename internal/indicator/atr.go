package indicator

import (
	"math"
	"time"

	"github.com/walachey/magicmarket-sub000/internal/store"
)

// ATR is the smoothed average true range. The true range of a window is its
// high minus its low; close-adjustment against the previous window is not
// needed on a gap-free intraday stream.
type ATR struct {
	cfg    Config
	stocks StockProvider

	value float64
}

func newATR(cfg Config, stocks StockProvider) *ATR {
	a := &ATR{cfg: cfg, stocks: stocks}
	a.Reset()
	return a
}

func (a *ATR) Config() Config { return a.cfg }

// Value is NaN until history full windows of data exist.
func (a *ATR) Value() float64 { return a.value }

func (a *ATR) Update(elapsed time.Duration, now time.Time) {
	stock, ok := a.stocks.Stock(a.cfg.CurrencyPair)
	if !ok {
		return
	}
	window := a.cfg.window()

	// Seed from the trailing history windows; stays NaN and retries next
	// step while any of them is still empty.
	if math.IsNaN(a.value) {
		sum := 0.0
		for p := 0; p < a.cfg.History; p++ {
			sum += trueRange(stock, now.Add(-time.Duration(p)*window), window)
		}
		if !math.IsNaN(sum) {
			a.value = sum / float64(a.cfg.History)
		}
		return
	}

	tr := trueRange(stock, now, window)
	if math.IsNaN(tr) {
		return
	}
	h := float64(a.cfg.History)
	a.value = (a.value*(h-1) + tr) / h
}

func (a *ATR) Reset() {
	a.value = seed()
}

func trueRange(stock *store.Stock, end time.Time, window time.Duration) float64 {
	period := stock.TimePeriodOf(end.Add(-window), end)
	high := highOf(period)
	low := lowOf(period)
	if math.IsNaN(high) || math.IsNaN(low) {
		return math.NaN()
	}
	return high - low
}
