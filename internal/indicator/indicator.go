package indicator

import (
	"time"

	"go.uber.org/zap"

	"github.com/walachey/magicmarket-sub000/internal/store"
)

type Kind uint8

const (
	KindSMA Kind = iota
	KindMoves
	KindRSI
	KindATR
	KindADX
	KindTSI
)

func (k Kind) String() string {
	switch k {
	case KindSMA:
		return "sma"
	case KindMoves:
		return "moves"
	case KindRSI:
		return "rsi"
	case KindATR:
		return "atr"
	case KindADX:
		return "adx"
	case KindTSI:
		return "tsi"
	default:
		return "unknown"
	}
}

// Config is the structural identity of an indicator instance. Two requests
// with equal configs share one instance.
type Config struct {
	Kind          Kind
	CurrencyPair  string
	History       int
	WindowSeconds int
}

func (c Config) window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// Indicator is a derived time series updated once per scheduler time step.
// Instances are never recreated during a session; Reset clears the state on
// day rollover instead.
type Indicator interface {
	Config() Config
	Update(elapsed time.Duration, now time.Time)
	Reset()
}

// StockProvider hands out tick histories by instrument. Implemented by the
// market; kept as an interface so indicators stay independent of it.
type StockProvider interface {
	Stock(currencyPair string) (*store.Stock, bool)
}

// Registry owns every indicator instance of a session. Acquisition is
// deduplicated by structural config identity, so experts can freely request
// the indicators they need without multiplying the per-step update work.
type Registry struct {
	logger     *zap.Logger
	stocks     StockProvider
	indicators []Indicator
}

func NewRegistry(logger *zap.Logger, stocks StockProvider) *Registry {
	return &Registry{logger: logger, stocks: stocks}
}

// SMA returns the shared moving-average indicator for the given config.
func (r *Registry) SMA(currencyPair string, history, windowSeconds int) *SMA {
	cfg := Config{Kind: KindSMA, CurrencyPair: currencyPair, History: history, WindowSeconds: windowSeconds}
	return r.acquire(cfg, func() Indicator {
		return newSMA(cfg, r.stocks)
	}).(*SMA)
}

// Moves returns the shared directional-movement indicator for the given
// config.
func (r *Registry) Moves(currencyPair string, history, windowSeconds int) *Moves {
	cfg := Config{Kind: KindMoves, CurrencyPair: currencyPair, History: history, WindowSeconds: windowSeconds}
	return r.acquire(cfg, func() Indicator {
		return newMoves(cfg, r.stocks)
	}).(*Moves)
}

// RSI returns the shared relative-strength indicator for the given config.
// Its up/down inputs come from a Moves instance acquired through this same
// registry, so an RSI and an ADX over the same window share the work.
func (r *Registry) RSI(currencyPair string, history, windowSeconds int) *RSI {
	cfg := Config{Kind: KindRSI, CurrencyPair: currencyPair, History: history, WindowSeconds: windowSeconds}
	return r.acquire(cfg, func() Indicator {
		return newRSI(cfg, r.Moves(currencyPair, history, windowSeconds))
	}).(*RSI)
}

// ATR returns the shared average-true-range indicator for the given config.
func (r *Registry) ATR(currencyPair string, history, windowSeconds int) *ATR {
	cfg := Config{Kind: KindATR, CurrencyPair: currencyPair, History: history, WindowSeconds: windowSeconds}
	return r.acquire(cfg, func() Indicator {
		return newATR(cfg, r.stocks)
	}).(*ATR)
}

// ADX returns the shared directional-index indicator for the given config.
// Its inputs are a Moves and an ATR instance over the same window, acquired
// through this same registry.
func (r *Registry) ADX(currencyPair string, history, windowSeconds int) *ADX {
	cfg := Config{Kind: KindADX, CurrencyPair: currencyPair, History: history, WindowSeconds: windowSeconds}
	return r.acquire(cfg, func() Indicator {
		return newADX(cfg, r.Moves(currencyPair, history, windowSeconds), r.ATR(currencyPair, history, windowSeconds))
	}).(*ADX)
}

// TSI returns the shared true-strength indicator for the given config. The
// first smoothing stage is a Moves instance over twice the history.
func (r *Registry) TSI(currencyPair string, history, windowSeconds int) *TSI {
	cfg := Config{Kind: KindTSI, CurrencyPair: currencyPair, History: history, WindowSeconds: windowSeconds}
	return r.acquire(cfg, func() Indicator {
		return newTSI(cfg, r.Moves(currencyPair, 2*history, windowSeconds))
	}).(*TSI)
}

func (r *Registry) acquire(cfg Config, build func() Indicator) Indicator {
	for _, existing := range r.indicators {
		if existing.Config() == cfg {
			return existing
		}
	}

	created := build()
	r.indicators = append(r.indicators, created)
	r.logger.Debug("indicator registered",
		zap.Stringer("kind", cfg.Kind),
		zap.String("pair", cfg.CurrencyPair),
		zap.Int("history", cfg.History),
		zap.Int("window_seconds", cfg.WindowSeconds))
	return created
}

// Len reports the number of distinct indicator instances.
func (r *Registry) Len() int {
	return len(r.indicators)
}

// UpdateAll advances every indicator once, in registration order. Dependent
// indicators registered after their inputs therefore see fresh values.
func (r *Registry) UpdateAll(elapsed time.Duration, now time.Time) {
	for _, indicator := range r.indicators {
		indicator.Update(elapsed, now)
	}
}

// ResetAll clears all indicator state on day rollover.
func (r *Registry) ResetAll() {
	for _, indicator := range r.indicators {
		indicator.Reset()
	}
}
