package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/walachey/magicmarket-sub000/internal/data"
	"github.com/walachey/magicmarket-sub000/internal/dbg"
)

// convert materializes historical tick archives as the per-day files the
// engine reads, either from a packed binary dump or from a duckdb database.
func main() {
	var (
		pair    = flag.String("pair", "", "currency pair, e.g. EURUSD")
		dataDir = flag.String("data-dir", "weekdays", "store output directory")
		dump    = flag.String("dump", "", "packed binary dump to import")
		archive = flag.String("archive", "", "duckdb tick database to import")
		from    = flag.String("from", "2000-01-01", "archive period start")
		to      = flag.String("to", "2100-01-01", "archive period end")
		debug   = flag.Bool("debug", false, "verbose logging")
	)
	flag.Parse()

	logger := dbg.NewLogger(*debug)
	defer func() {
		_ = logger.Sync()
	}()

	if *pair == "" {
		logger.Fatal("a currency pair is required")
	}
	if (*dump == "") == (*archive == "") {
		logger.Fatal("exactly one of -dump and -archive is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	importer := data.NewImporter(logger, *dataDir)

	if *dump != "" {
		if _, err := importer.ImportDump(*dump, *pair); err != nil {
			logger.Fatal("dump import failed", zap.Error(err))
		}
		return
	}

	begin, err := time.Parse("2006-01-02", *from)
	if err != nil {
		logger.Fatal("invalid period start", zap.Error(err))
	}
	end, err := time.Parse("2006-01-02", *to)
	if err != nil {
		logger.Fatal("invalid period end", zap.Error(err))
	}

	db := data.NewArchive(*archive)
	if err := db.Connect(); err != nil {
		logger.Fatal("unable to open archive", zap.Error(err))
	}
	defer db.Close()

	if _, err := importer.ImportArchive(ctx, db, *pair, begin, end); err != nil {
		logger.Fatal("archive import failed", zap.Error(err))
	}
}
