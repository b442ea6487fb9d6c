package data

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/walachey/magicmarket-sub000/internal/model"
	"github.com/walachey/magicmarket-sub000/internal/store"
)

// Importer materializes archive ticks as per-day store files, the format
// the trading engine and the replay read.
type Importer struct {
	logger  *zap.Logger
	dataDir string
}

func NewImporter(logger *zap.Logger, dataDir string) *Importer {
	return &Importer{logger: logger, dataDir: dataDir}
}

// ImportDump imports every record of a packed binary dump. Returns the
// number of imported ticks.
func (imp *Importer) ImportDump(path, pair string) (int64, error) {
	reader := NewDumpReader(path)
	count, err := reader.EntryCount()
	if err != nil {
		return 0, err
	}
	if err := reader.Open(); err != nil {
		return 0, err
	}
	defer reader.Close()

	stock := store.NewStock(imp.logger, pair, imp.dataDir, true)
	defer stock.Close()

	for index := int64(0); index < count; index++ {
		tick, err := reader.Read(index)
		if err != nil {
			return index, err
		}
		stock.ReceiveFreshTick(tick)
	}

	imp.logger.Info("dump imported",
		zap.String("pair", pair),
		zap.Int64("ticks", count))
	return count, nil
}

// ImportArchive imports one pair's ticks of the given period from a duckdb
// archive. Returns the number of imported ticks.
func (imp *Importer) ImportArchive(ctx context.Context, archive *Archive, pair string, from, to time.Time) (int64, error) {
	stock := store.NewStock(imp.logger, pair, imp.dataDir, true)
	defer stock.Close()

	var count int64
	err := archive.LoadTicks(ctx, pair, from, to, func(tick model.Tick) error {
		stock.ReceiveFreshTick(tick)
		count++
		return nil
	})
	if err != nil {
		return count, err
	}

	imp.logger.Info("archive imported",
		zap.String("pair", pair),
		zap.Int64("ticks", count))
	return count, nil
}
