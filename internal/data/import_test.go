package data

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/walachey/magicmarket-sub000/internal/model"
	"github.com/walachey/magicmarket-sub000/internal/store"
	"github.com/walachey/magicmarket-sub000/internal/utility/fixed"
)

func writeDump(t *testing.T, path string, start time.Time, prices []float64) {
	t.Helper()
	buffer := make([]byte, 0, len(prices)*DumpRecordSize)
	for i, price := range prices {
		var record [DumpRecordSize]byte
		binary.LittleEndian.PutUint64(record[0:8], uint64(start.Add(time.Duration(i)*time.Second).Unix()))
		binary.LittleEndian.PutUint64(record[8:16], math.Float64bits(price))
		binary.LittleEndian.PutUint64(record[16:24], math.Float64bits(price+0.0001))
		buffer = append(buffer, record[:]...)
	}
	if err := os.WriteFile(path, buffer, 0o644); err != nil {
		t.Fatalf("write dump: %v", err)
	}
}

func TestImportDump(t *testing.T) {
	start := time.Date(2014, time.January, 30, 12, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "EURUSD.dump")
	writeDump(t, path, start, []float64{1.3000, 1.3001, 1.3002})

	dataDir := t.TempDir()
	imported, err := NewImporter(zap.NewNop(), dataDir).ImportDump(path, "EURUSD")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if imported != 3 {
		t.Fatalf("expected 3 imported ticks, got %d", imported)
	}

	stock := store.NewStock(zap.NewNop(), "EURUSD", dataDir, false)
	day, ok := stock.GetTradingDay(model.DateOf(start), false)
	if !ok {
		t.Fatal("expected the imported day to be persisted")
	}
	ticks := day.Ticks()
	if len(ticks) != 3 {
		t.Fatalf("expected 3 ticks, got %d", len(ticks))
	}
	if !ticks[0].Time.Equal(start) || !ticks[0].Bid.Eq(fixed.FromFloat64(1.3000)) {
		t.Fatalf("unexpected first tick: %+v", ticks[0])
	}
}

func TestDumpReaderRejectsTruncatedFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.dump")
	if err := os.WriteFile(path, make([]byte, DumpRecordSize+1), 0o644); err != nil {
		t.Fatalf("write dump: %v", err)
	}
	if _, err := NewDumpReader(path).EntryCount(); err == nil {
		t.Fatal("expected a truncation error")
	}
}

func TestDumpReaderSignalsEOF(t *testing.T) {
	start := time.Date(2014, time.January, 30, 12, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "EURUSD.dump")
	writeDump(t, path, start, []float64{1.3000})

	reader := NewDumpReader(path)
	if err := reader.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer reader.Close()

	if _, err := reader.Read(0); err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, err := reader.Read(1); err != ErrEOF {
		t.Fatalf("expected ErrEOF, got %v", err)
	}
}
