package model

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap/zapcore"

	"github.com/walachey/magicmarket-sub000/internal/utility/fixed"
)

type TradeType uint8

const (
	TradeBuy TradeType = iota
	TradeSell
)

const (
	tradeFileVersion int32 = 1
	tradeFileSize          = 4 + 8 + 8
)

// Trade is one open position as seen by the engine. It is owned by the
// market's open-trade list until closed.
type Trade struct {
	TicketID     int32
	CurrencyPair string
	Type         TradeType
	OrderPrice   fixed.Point
	StopLoss     fixed.Point
	TakeProfit   fixed.Point
	LotSize      fixed.Point

	dirty bool
}

func Buy(pair string, lotSize fixed.Point) Trade {
	return Trade{TicketID: -1, CurrencyPair: pair, Type: TradeBuy, LotSize: lotSize, dirty: true}
}

func Sell(pair string, lotSize fixed.Point) Trade {
	trade := Buy(pair, lotSize)
	trade.Type = TradeSell
	return trade
}

func (trade *Trade) SetStopLoss(to fixed.Point) {
	if to.Eq(trade.StopLoss) {
		return
	}
	trade.StopLoss = to
	trade.dirty = true
}

func (trade *Trade) SetTakeProfit(to fixed.Point) {
	if to.Eq(trade.TakeProfit) {
		return
	}
	trade.TakeProfit = to
	trade.dirty = true
}

// ProfitAtTick is the raw price-difference profit, in quote currency units,
// the trade would realize when closed at the given tick.
func (trade *Trade) ProfitAtTick(tick Tick) fixed.Point {
	if trade.Type == TradeBuy {
		return tick.Bid.Sub(trade.OrderPrice)
	}
	return trade.OrderPrice.Sub(tick.Ask)
}

func (trade *Trade) saveFileName(saveDir string) string {
	return filepath.Join(saveDir, "trades", fmt.Sprintf("%d.trade", trade.TicketID))
}

// Save persists the adjusted limits to the per-ticket sidecar file so they
// survive a process restart. Best effort; a failed write is reported but the
// in-memory trade stays authoritative.
func (trade *Trade) Save(saveDir string, enforce bool) error {
	if !enforce && !trade.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Join(saveDir, "trades"), 0o755); err != nil {
		return fmt.Errorf("unable to create trade save directory: %w", err)
	}

	buf := make([]byte, tradeFileSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(tradeFileVersion))
	sl, _ := trade.StopLoss.Float64()
	tp, _ := trade.TakeProfit.Float64()
	binary.LittleEndian.PutUint64(buf[4:12], math.Float64bits(sl))
	binary.LittleEndian.PutUint64(buf[12:20], math.Float64bits(tp))

	if err := os.WriteFile(trade.saveFileName(saveDir), buf, 0o644); err != nil {
		return fmt.Errorf("unable to save trade %d: %w", trade.TicketID, err)
	}
	trade.dirty = false
	return nil
}

// Load completes the trade with previously saved limits. Saved and current
// limits are merged towards the tighter bound, so an adjustment is never
// loosened by a stale snapshot from the bridge.
func (trade *Trade) Load(saveDir string) {
	buf, err := os.ReadFile(trade.saveFileName(saveDir))
	if err != nil || len(buf) < tradeFileSize {
		return
	}

	version := int32(binary.LittleEndian.Uint32(buf[0:4]))
	if version != tradeFileVersion {
		return
	}
	sl := fixed.FromFloat64(math.Float64frombits(binary.LittleEndian.Uint64(buf[4:12])))
	tp := fixed.FromFloat64(math.Float64frombits(binary.LittleEndian.Uint64(buf[12:20])))

	if sl.IsZero() {
		sl = trade.StopLoss
	}
	if tp.IsZero() {
		tp = trade.TakeProfit
	}

	switch {
	case trade.StopLoss.IsZero():
		trade.StopLoss = sl
	case trade.Type == TradeBuy && sl.Gt(trade.StopLoss):
		trade.StopLoss = sl
	case trade.Type == TradeSell && sl.Lt(trade.StopLoss):
		trade.StopLoss = sl
	}

	switch {
	case trade.TakeProfit.IsZero():
		trade.TakeProfit = tp
	case trade.Type == TradeBuy && tp.Lt(trade.TakeProfit):
		trade.TakeProfit = tp
	case trade.Type == TradeSell && tp.Gt(trade.TakeProfit):
		trade.TakeProfit = tp
	}

	trade.dirty = false
}

func (trade *Trade) RemoveSaveFile(saveDir string) {
	_ = os.Remove(trade.saveFileName(saveDir))
}

func (trade *Trade) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt32("ticket_id", trade.TicketID)
	enc.AddString("pair", trade.CurrencyPair)
	enc.AddUint8("type", uint8(trade.Type))
	enc.AddString("order_price", trade.OrderPrice.String())
	enc.AddString("stop_loss", trade.StopLoss.String())
	enc.AddString("take_profit", trade.TakeProfit.String())
	enc.AddString("lot_size", trade.LotSize.String())
	return nil
}
