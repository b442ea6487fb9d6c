package indicator

import (
	"math"
	"time"
)

// ADX is the average directional index: the smoothed spread between the
// plus and minus directional indicators, normalized by the true range. It
// reads the shared Moves and ATR state instead of rescanning the history.
type ADX struct {
	cfg   Config
	moves *Moves
	atr   *ATR

	plusDIMA, plusDIMAPushed   float64
	minusDIMA, minusDIMAPushed float64
	adx                        float64

	lastPush time.Time
}

func newADX(cfg Config, moves *Moves, atr *ATR) *ADX {
	a := &ADX{cfg: cfg, moves: moves, atr: atr}
	a.Reset()
	return a
}

func (a *ADX) Config() Config { return a.cfg }

// PlusDIMA and MinusDIMA are the smoothed directional indicators.
func (a *ADX) PlusDIMA() float64  { return a.plusDIMA }
func (a *ADX) MinusDIMA() float64 { return a.minusDIMA }

// Value is in [0, 100], NaN until the underlying averages exist and at
// least one side shows directional movement.
func (a *ADX) Value() float64 { return a.adx }

func (a *ADX) Update(elapsed time.Duration, now time.Time) {
	trueRange := a.atr.Value()
	plusDMMA := a.moves.PlusDMMA()
	minusDMMA := a.moves.MinusDMMA()
	if math.IsNaN(trueRange) || trueRange == 0 || math.IsNaN(plusDMMA) || math.IsNaN(minusDMMA) {
		return
	}

	plusDI := 100 * plusDMMA / trueRange
	minusDI := 100 * minusDMMA / trueRange

	a.plusDIMA = ma(a.plusDIMAPushed, plusDI, a.cfg.History)
	a.minusDIMA = ma(a.minusDIMAPushed, minusDI, a.cfg.History)
	if a.lastPush.IsZero() || !now.Before(a.lastPush.Add(a.cfg.window())) {
		a.lastPush = now
		a.plusDIMAPushed = a.plusDIMA
		a.minusDIMAPushed = a.minusDIMA
	}

	if sum := plusDI + minusDI; sum > 0 {
		a.adx = 100 * math.Abs(a.plusDIMA-a.minusDIMA) / sum
	}
}

func (a *ADX) Reset() {
	a.plusDIMA, a.plusDIMAPushed = seed(), seed()
	a.minusDIMA, a.minusDIMAPushed = seed(), seed()
	a.adx = seed()
	a.lastPush = time.Time{}
}
