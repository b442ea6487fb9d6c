package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/walachey/magicmarket-sub000/internal/model"
)

// Stock owns the trading days of one instrument and materializes them
// lazily, so the engine can run against years of tick history without
// loading all of it up front.
type Stock struct {
	logger       *zap.Logger
	currencyPair string
	baseDir      string
	persist      bool

	tradingDays map[model.Date]*TradingDay
}

func NewStock(logger *zap.Logger, currencyPair, baseDir string, persist bool) *Stock {
	return &Stock{
		logger:       logger,
		currencyPair: currencyPair,
		baseDir:      baseDir,
		persist:      persist,
		tradingDays:  make(map[model.Date]*TradingDay),
	}
}

func (stock *Stock) CurrencyPair() string {
	return stock.currencyPair
}

// ReceiveFreshTick routes the tick into the trading day owning its date,
// creating the day on first contact.
func (stock *Stock) ReceiveFreshTick(tick model.Tick) {
	day, _ := stock.GetTradingDay(tick.Date(), true)
	day.ReceiveFreshTick(tick)
}

// GetTradingDay returns the cached day if present, otherwise tries to load
// it from the persisted store. When it exists nowhere and creation is not
// allowed, ok is false.
func (stock *Stock) GetTradingDay(date model.Date, allowCreation bool) (*TradingDay, bool) {
	if day, ok := stock.tradingDays[date]; ok {
		return day, true
	}

	exists := dayFileExists(stock.savePath(date))
	if !exists && !allowCreation {
		return nil, false
	}

	day := newTradingDay(stock, date)
	if exists {
		if err := day.LoadFromFile(); err != nil {
			stock.logger.Warn("unable to load trading day",
				zap.String("pair", stock.currencyPair),
				zap.Stringer("date", date),
				zap.Error(err))
		}
	}
	stock.tradingDays[date] = day
	return day, true
}

// TimePeriodOf builds a mid-price window over this stock's history.
func (stock *Stock) TimePeriodOf(start, end time.Time) TimePeriod {
	return NewTimePeriod(stock, start, end, SelectMid)
}

func (stock *Stock) Close() {
	for _, day := range stock.tradingDays {
		day.Close()
	}
}

func (stock *Stock) directoryName() string {
	return filepath.Join(stock.baseDir, stock.currencyPair)
}

func (stock *Stock) savePath(date model.Date) string {
	return filepath.Join(stock.directoryName(), fmt.Sprintf("%s.ticks", date))
}

func (stock *Stock) ensureDirectory() error {
	return os.MkdirAll(stock.directoryName(), 0o755)
}
