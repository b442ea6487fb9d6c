package expert

import (
	"fmt"
	"time"

	"github.com/walachey/magicmarket-sub000/internal/model"
	"github.com/walachey/magicmarket-sub000/internal/store"
	"github.com/walachey/magicmarket-sub000/internal/utility/fixed"
)

// LimitAdjuster ratchets the stop loss of profitable open trades towards
// the market and closes trades whose limits the terminal failed to enforce.
// It never loosens a limit.
type LimitAdjuster struct {
	Base
}

func NewLimitAdjuster(market MarketAccess) *LimitAdjuster {
	return &LimitAdjuster{Base: NewBase(market, "limits")}
}

func (a *LimitAdjuster) OnNewTick(currencyPair string, date model.Date, now time.Time) {
	var message string
	badTrades := 0

	for _, trade := range a.Market().OpenTrades() {
		stock, ok := a.Market().Stock(trade.CurrencyPair)
		if !ok {
			message = fmt.Sprintf("I can't judge %s", trade.CurrencyPair)
			continue
		}

		period := store.NewTimePeriod(stock, now, now, SelectorForClose(trade.Type))
		closePrice, ok := period.Close()
		if !ok {
			message = fmt.Sprintf("No close data for %s", trade.CurrencyPair)
			continue
		}

		profit := closePrice.Sub(trade.OrderPrice)
		if trade.Type == model.TradeSell {
			profit = trade.OrderPrice.Sub(closePrice)
		}

		if profit.Gt(fixed.OnePip.MulInt64(2)) {
			difference := profit.DivInt(2)
			stopLoss := trade.OrderPrice.Add(difference)
			if trade.Type == model.TradeSell {
				stopLoss = trade.OrderPrice.Sub(difference)
			}

			improvement := trade.StopLoss.IsZero() ||
				(trade.Type == model.TradeBuy && trade.StopLoss.Lt(stopLoss)) ||
				(trade.Type == model.TradeSell && trade.StopLoss.Gt(stopLoss))

			if improvement {
				trade.SetStopLoss(stopLoss)
				a.Market().UpdateTrade(trade)
				a.Say(fmt.Sprintf("@%s/%s set SL/%s", trade.CurrencyPair, closePrice, stopLoss))
			} else {
				badTrades++
			}
		}

		if limitBreached(trade, closePrice) {
			a.Say(fmt.Sprintf("@%s Closing Trade! PIPS: %s", trade.CurrencyPair, profit.Div(fixed.OnePip)))
			a.Market().CloseTrade(trade)
		}
	}

	if message == "" && badTrades > 0 {
		message = fmt.Sprintf("There are %d trades with no improvement.", badTrades)
	}
	if message != "" {
		a.Say(message)
	}
}

// SelectorForClose picks the tick side the terminal would fill a close at.
func SelectorForClose(tradeType model.TradeType) store.ValueSelector {
	if tradeType == model.TradeBuy {
		return store.SelectBid
	}
	return store.SelectAsk
}

// limitBreached reports whether the current price already passed a set
// limit by more than a pip, meaning the terminal-side enforcement failed.
func limitBreached(trade *model.Trade, closePrice fixed.Point) bool {
	if trade.Type == model.TradeSell {
		return (!trade.StopLoss.IsZero() && closePrice.Sub(fixed.OnePip).Gt(trade.StopLoss)) ||
			(!trade.TakeProfit.IsZero() && closePrice.Add(fixed.OnePip).Lt(trade.TakeProfit))
	}
	return (!trade.StopLoss.IsZero() && closePrice.Add(fixed.OnePip).Lt(trade.StopLoss)) ||
		(!trade.TakeProfit.IsZero() && closePrice.Sub(fixed.OnePip).Gt(trade.TakeProfit))
}
