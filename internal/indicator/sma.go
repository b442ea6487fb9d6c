package indicator

import (
	"math"
	"time"
)

// SMA smooths the window close price over the configured history.
type SMA struct {
	cfg    Config
	stocks StockProvider

	sma float64
}

func newSMA(cfg Config, stocks StockProvider) *SMA {
	s := &SMA{cfg: cfg, stocks: stocks}
	s.Reset()
	return s
}

func (s *SMA) Config() Config { return s.cfg }

// Value is NaN until the first window with data.
func (s *SMA) Value() float64 { return s.sma }

func (s *SMA) Update(elapsed time.Duration, now time.Time) {
	period, ok := windowOf(s.stocks, s.cfg.CurrencyPair, now, s.cfg.window())
	if !ok {
		return
	}
	price := closeOf(period)
	if math.IsNaN(price) {
		return
	}
	s.sma = ma(s.sma, price, s.cfg.History)
}

func (s *SMA) Reset() {
	s.sma = seed()
}
