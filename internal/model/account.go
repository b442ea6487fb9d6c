package model

import (
	"go.uber.org/zap/zapcore"

	"github.com/walachey/magicmarket-sub000/internal/utility/fixed"
)

// Account mirrors the latest account snapshot received from the bridge.
type Account struct {
	Leverage   fixed.Point
	Balance    fixed.Point
	Margin     fixed.Point
	MarginFree fixed.Point
}

func (account Account) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("leverage", account.Leverage.String())
	enc.AddString("balance", account.Balance.String())
	enc.AddString("margin", account.Margin.String())
	enc.AddString("margin_free", account.MarginFree.String())
	return nil
}
