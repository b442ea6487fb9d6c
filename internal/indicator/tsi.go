package indicator

import (
	"math"
	"time"
)

// TSI is the true strength index: close momentum smoothed twice, divided by
// its equally smoothed magnitude. The first smoothing stage lives in the
// shared Moves instance, over twice this indicator's history.
type TSI struct {
	cfg   Config
	moves *Moves

	momentumDoubleMA    float64
	absMomentumDoubleMA float64
	tsi                 float64
}

func newTSI(cfg Config, moves *Moves) *TSI {
	t := &TSI{cfg: cfg, moves: moves}
	t.Reset()
	return t
}

func (t *TSI) Config() Config { return t.cfg }

// Value is in [-100, 100], NaN until the underlying averages exist.
func (t *TSI) Value() float64 { return t.tsi }

func (t *TSI) Update(elapsed time.Duration, now time.Time) {
	momentumMA := t.moves.MomentumMA()
	absMomentumMA := t.moves.MomentumAbsMA()
	if math.IsNaN(momentumMA) || math.IsNaN(absMomentumMA) {
		return
	}

	t.momentumDoubleMA = ma2(t.momentumDoubleMA, momentumMA, t.cfg.History)
	t.absMomentumDoubleMA = ma2(t.absMomentumDoubleMA, absMomentumMA, t.cfg.History)

	if t.absMomentumDoubleMA == 0 {
		return
	}
	t.tsi = 100 * t.momentumDoubleMA / t.absMomentumDoubleMA
}

func (t *TSI) Reset() {
	t.momentumDoubleMA = seed()
	t.absMomentumDoubleMA = seed()
	t.tsi = seed()
}
