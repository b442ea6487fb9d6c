package expert

import (
	"math"
	"time"

	"github.com/walachey/magicmarket-sub000/internal/indicator"
)

// rsiMargin is the overbought/oversold band width.
const rsiMargin = 30.0

// RSIExpert trades mean reversion on the averaged short and long relative
// strength index: oversold leans buy, overbought leans sell.
type RSIExpert struct {
	Base

	rsiShort *indicator.RSI
	rsiLong  *indicator.RSI
}

func NewRSIExpert(market MarketAccess, currencyPair string) *RSIExpert {
	indicators := market.Indicators()
	return &RSIExpert{
		Base:     NewBase(market, "rsi"),
		rsiShort: indicators.RSI(currencyPair, 28, 60),
		rsiLong:  indicators.RSI(currencyPair, 14, 5*60),
	}
}

func (e *RSIExpert) Execute(elapsed time.Duration, now time.Time) {
	short := e.rsiShort.Value()
	long := e.rsiLong.Value()
	if math.IsNaN(short) || math.IsNaN(long) {
		return
	}

	avg := (short + long) / 2
	e.Market().UpdateParameter("RSI", avg)

	switch {
	case avg > 100-rsiMargin:
		e.SetMood(-1, 0.5+0.5*(avg-(100-rsiMargin))/rsiMargin)
	case avg < rsiMargin:
		e.SetMood(+1, 0.5+0.5*(1-avg/rsiMargin))
	}
}
