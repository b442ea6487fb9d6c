package store

import (
	"errors"
	"io"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/walachey/magicmarket-sub000/internal/model"
)

// TradingDay is the append-only, time-ordered tick history of one instrument
// on one calendar date, backed by a binary log file.
type TradingDay struct {
	logger *zap.Logger
	stock  *Stock
	date   model.Date

	ticks []model.Tick
	file  *os.File
}

func newTradingDay(stock *Stock, date model.Date) *TradingDay {
	return &TradingDay{
		logger: stock.logger,
		stock:  stock,
		date:   date,
	}
}

func (day *TradingDay) Date() model.Date {
	return day.date
}

func (day *TradingDay) CurrencyPair() string {
	return day.stock.CurrencyPair()
}

// Ticks exposes the ordered tick sequence. Callers must treat it as
// read-only; it is the backing array of the day.
func (day *TradingDay) Ticks() []model.Tick {
	return day.ticks
}

// ReceiveFreshTick appends the tick to the day. A tick carrying the same
// timestamp as the last stored tick replaces it, both in memory and in the
// persisted log, so the log never grows on duplicate timestamps.
func (day *TradingDay) ReceiveFreshTick(tick model.Tick) {
	if n := len(day.ticks); n > 0 && day.ticks[n-1].Time.Equal(tick.Time) {
		day.ticks[n-1] = tick
		day.writeRecord(tick, true)
		return
	}

	day.ticks = append(day.ticks, tick)
	day.writeRecord(tick, false)
}

// LoadFromFile reads the entire persisted log into memory. Records of an
// unknown version are skipped, a trailing partial record is ignored.
func (day *TradingDay) LoadFromFile() error {
	data, err := os.ReadFile(day.stock.savePath(day.date))
	if err != nil {
		return err
	}

	for offset := 0; offset+TickRecordSize <= len(data); offset += TickRecordSize {
		tick, err := decodeTickRecord(data[offset : offset+TickRecordSize])
		if err != nil {
			if errors.Is(err, errUnknownRecordVersion) {
				continue
			}
			return err
		}
		day.ticks = append(day.ticks, tick)
	}
	return nil
}

func (day *TradingDay) Close() {
	if day.file != nil {
		_ = day.file.Close()
		day.file = nil
	}
}

// writeRecord persists one tick, overwriting the last record in place when
// requested. Persistence is best effort: failures are logged and in-memory
// state keeps operating.
func (day *TradingDay) writeRecord(tick model.Tick, overwriteLast bool) {
	if !day.stock.persist {
		return
	}

	file, err := day.saveFile()
	if err != nil {
		day.logger.Warn("tick log unavailable",
			zap.String("pair", day.CurrencyPair()),
			zap.Stringer("date", day.date),
			zap.Error(err))
		return
	}

	offset := int64(0)
	whence := io.SeekEnd
	if overwriteLast {
		offset = -TickRecordSize
	}

	var buf [TickRecordSize]byte
	if err := encodeTickRecord(buf[:], tick); err != nil {
		day.logger.Warn("tick record encoding failed", zap.Error(err))
		return
	}
	if _, err := file.Seek(offset, whence); err == nil {
		_, err = file.Write(buf[:])
	}
	if err != nil {
		day.logger.Warn("tick log write failed",
			zap.String("pair", day.CurrencyPair()),
			zap.Stringer("date", day.date),
			zap.Error(err))
	}
}

func (day *TradingDay) saveFile() (*os.File, error) {
	if day.file != nil {
		return day.file, nil
	}
	if err := day.stock.ensureDirectory(); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(day.stock.savePath(day.date), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	day.file = file
	return file, nil
}

func dayFileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
