package store

import (
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/walachey/magicmarket-sub000/internal/model"
	"github.com/walachey/magicmarket-sub000/internal/utility/fixed"
)

func tickAt(t time.Time, bid, ask float64) model.Tick {
	return model.Tick{Time: t, Bid: fixed.FromFloat64(bid), Ask: fixed.FromFloat64(ask)}
}

func TestStockPersistsAndReloadsTicks(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2014, time.January, 30, 9, 0, 0, 0, time.UTC)

	stock := NewStock(zap.NewNop(), "EURUSD", dir, true)
	stock.ReceiveFreshTick(tickAt(base, 1.3605, 1.3607))
	stock.ReceiveFreshTick(tickAt(base.Add(time.Second), 1.3606, 1.3608))
	stock.Close()

	reloaded := NewStock(zap.NewNop(), "EURUSD", dir, true)
	day, ok := reloaded.GetTradingDay(model.DateOf(base), false)
	if !ok {
		t.Fatal("expected the persisted day to load")
	}
	ticks := day.Ticks()
	if len(ticks) != 2 {
		t.Fatalf("expected 2 ticks, got %d", len(ticks))
	}
	if !ticks[0].Time.Equal(base) || !ticks[0].Bid.Eq(fixed.FromFloat64(1.3605)) {
		t.Fatalf("unexpected first tick: %+v", ticks[0])
	}
}

func TestDuplicateTimestampReplacesLastTick(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2014, time.January, 30, 9, 0, 0, 0, time.UTC)

	stock := NewStock(zap.NewNop(), "EURUSD", dir, true)
	stock.ReceiveFreshTick(tickAt(base, 1.3605, 1.3607))
	stock.ReceiveFreshTick(tickAt(base.Add(time.Second), 1.3606, 1.3608))
	stock.ReceiveFreshTick(tickAt(base.Add(time.Second), 1.3610, 1.3612))

	day, _ := stock.GetTradingDay(model.DateOf(base), false)
	ticks := day.Ticks()
	if len(ticks) != 2 {
		t.Fatalf("expected duplicate timestamp to replace, got %d ticks", len(ticks))
	}
	if !ticks[1].Bid.Eq(fixed.FromFloat64(1.3610)) {
		t.Fatalf("expected replaced tick value, got %s", ticks[1].Bid)
	}
	stock.Close()

	info, err := os.Stat(stock.savePath(model.DateOf(base)))
	if err != nil {
		t.Fatalf("stat tick log: %v", err)
	}
	if info.Size() != 2*TickRecordSize {
		t.Fatalf("expected tick log of 2 records, got %d bytes", info.Size())
	}

	reloaded := NewStock(zap.NewNop(), "EURUSD", dir, true)
	day, _ = reloaded.GetTradingDay(model.DateOf(base), false)
	if got := day.Ticks()[1].Bid; !got.Eq(fixed.FromFloat64(1.3610)) {
		t.Fatalf("expected replacement to reach the log, got %s", got)
	}
}

func TestGetTradingDayWithoutCreation(t *testing.T) {
	stock := NewStock(zap.NewNop(), "EURUSD", t.TempDir(), true)
	date := model.Date{Year: 2014, Month: time.January, Day: 30}

	if _, ok := stock.GetTradingDay(date, false); ok {
		t.Fatal("expected no day when nothing is stored and creation is off")
	}
	day, ok := stock.GetTradingDay(date, true)
	if !ok || day.Date() != date {
		t.Fatal("expected creation when allowed")
	}
	if _, ok := stock.GetTradingDay(date, false); !ok {
		t.Fatal("expected the created day to be cached")
	}
}

func TestReplayStockDoesNotTouchDisk(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2014, time.January, 30, 9, 0, 0, 0, time.UTC)

	stock := NewStock(zap.NewNop(), "EURUSD", dir, false)
	stock.ReceiveFreshTick(tickAt(base, 1.3605, 1.3607))
	stock.Close()

	if _, err := os.Stat(stock.savePath(model.DateOf(base))); !os.IsNotExist(err) {
		t.Fatalf("expected no tick log with persistence off, err=%v", err)
	}
}

func TestTickRecordCodec(t *testing.T) {
	tick := tickAt(time.Date(2014, time.January, 30, 9, 0, 5, 0, time.UTC), 1.3605, 1.3607)

	var buf [TickRecordSize]byte
	if err := encodeTickRecord(buf[:], tick); err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := decodeTickRecord(buf[:])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Time.Equal(tick.Time) || !decoded.Bid.Eq(tick.Bid) || !decoded.Ask.Eq(tick.Ask) {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}

	if err := encodeTickRecord(buf[:10], tick); err == nil {
		t.Fatal("expected an error for a short buffer")
	}

	buf[0] = 99
	if _, err := decodeTickRecord(buf[:]); err == nil {
		t.Fatal("expected an error for an unknown record version")
	}
}
