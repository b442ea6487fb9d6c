package indicator

import (
	"math"
	"time"
)

// RSI is the relative strength index over the shared Moves averages.
type RSI struct {
	cfg   Config
	moves *Moves

	rsi float64
}

func newRSI(cfg Config, moves *Moves) *RSI {
	r := &RSI{cfg: cfg, moves: moves}
	r.Reset()
	return r
}

func (r *RSI) Config() Config { return r.cfg }

// Value is in [0, 100], NaN until the underlying averages exist.
func (r *RSI) Value() float64 { return r.rsi }

func (r *RSI) Update(elapsed time.Duration, now time.Time) {
	upMA := r.moves.UpMA()
	downMA := r.moves.DownMA()
	if math.IsNaN(upMA) || math.IsNaN(downMA) {
		return
	}

	if downMA == 0 {
		if upMA == 0 {
			r.rsi = 50
		} else {
			r.rsi = 100
		}
		return
	}

	rs := upMA / downMA
	r.rsi = 100 - 100/(1+rs)
}

func (r *RSI) Reset() {
	r.rsi = seed()
}
