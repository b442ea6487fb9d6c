package model

import (
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/walachey/magicmarket-sub000/internal/utility/fixed"
)

// Tick is a single immutable price observation. Times carry second
// resolution; anything finer is truncated at the bridge boundary.
type Tick struct {
	Time time.Time
	Bid  fixed.Point
	Ask  fixed.Point
}

func (tick Tick) Mid() fixed.Point {
	return tick.Bid.Add(tick.Ask).Div(fixed.Two)
}

func (tick Tick) Spread() fixed.Point {
	return tick.Ask.Sub(tick.Bid)
}

func (tick Tick) Date() Date {
	return DateOf(tick.Time)
}

func (tick Tick) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddTime("time", tick.Time)
	enc.AddString("bid", tick.Bid.String())
	enc.AddString("ask", tick.Ask.String())
	return nil
}
