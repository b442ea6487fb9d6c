package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/walachey/magicmarket-sub000/internal/model"
	"github.com/walachey/magicmarket-sub000/internal/utility/fixed"
)

// A tick log is a stream of fixed-size records:
//
//	version uint8, time int64 (unix seconds), bid float64, ask float64
//
// little-endian. The fixed size is what makes the seek-back overwrite of the
// last record possible.
const (
	tickRecordVersion uint8 = 1

	// TickRecordSize is the serialized size of one tick record in bytes.
	TickRecordSize = 1 + 8 + 8 + 8
)

var errUnknownRecordVersion = errors.New("unknown tick record version")

func encodeTickRecord(buf []byte, tick model.Tick) error {
	if len(buf) < TickRecordSize {
		return fmt.Errorf("tick record buffer too small: %d < %d", len(buf), TickRecordSize)
	}
	bid, _ := tick.Bid.Float64()
	ask, _ := tick.Ask.Float64()

	buf[0] = tickRecordVersion
	binary.LittleEndian.PutUint64(buf[1:9], uint64(tick.Time.Unix()))
	binary.LittleEndian.PutUint64(buf[9:17], math.Float64bits(bid))
	binary.LittleEndian.PutUint64(buf[17:25], math.Float64bits(ask))
	return nil
}

func decodeTickRecord(buf []byte) (model.Tick, error) {
	var tick model.Tick
	if len(buf) < TickRecordSize {
		return tick, fmt.Errorf("tick record truncated: %d < %d", len(buf), TickRecordSize)
	}
	if buf[0] != tickRecordVersion {
		return tick, errUnknownRecordVersion
	}
	tick.Time = time.Unix(int64(binary.LittleEndian.Uint64(buf[1:9])), 0).UTC()
	tick.Bid = fixed.FromFloat64(math.Float64frombits(binary.LittleEndian.Uint64(buf[9:17])))
	tick.Ask = fixed.FromFloat64(math.Float64frombits(binary.LittleEndian.Uint64(buf[17:25])))
	return tick, nil
}
