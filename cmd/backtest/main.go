package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/walachey/magicmarket-sub000/internal/cfg"
	"github.com/walachey/magicmarket-sub000/internal/dbg"
	"github.com/walachey/magicmarket-sub000/internal/expert"
	"github.com/walachey/magicmarket-sub000/internal/market"
	"github.com/walachey/magicmarket-sub000/internal/simulation"
	"github.com/walachey/magicmarket-sub000/internal/statistics"
	"github.com/walachey/magicmarket-sub000/internal/utility"
)

func main() {
	configPath := flag.String("config", "configs/market.yaml", "config file")
	flag.Parse()

	config, err := cfg.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger := dbg.NewLogger(config.Debug).
		With(zap.Stringer("eid", utility.GetExecutionID()))
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("backtest started",
		zap.String("pair", config.VirtualMarket.LeadingPair),
		zap.String("period", config.VirtualMarket.Begin+".."+config.VirtualMarket.End))
	defer logger.Info("done")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	begin, err := config.VirtualMarket.BeginDate()
	if err != nil {
		logger.Fatal("invalid replay begin", zap.Error(err))
	}
	end, err := config.VirtualMarket.EndDate()
	if err != nil {
		logger.Fatal("invalid replay end", zap.Error(err))
	}

	outputFile := config.Statistics.OutputFile
	if outputFile == "" {
		outputFile = filepath.Join(config.Market.SaveDir,
			fmt.Sprintf("statistics-%s.csv", utility.GetExecutionID()))
	}
	stats := statistics.NewRegistry(logger, outputFile, config.Statistics.Enabled)
	defer stats.Close()

	vm := simulation.New(logger, stats, simulation.Config{
		LeadingPair:    config.VirtualMarket.LeadingPair,
		SecondaryPairs: config.VirtualMarket.SecondaryPairs,
		Begin:          begin,
		End:            end,
		FromHour:       config.VirtualMarket.FromHour,
		ToHour:         config.VirtualMarket.ToHour,
		MinTicksPerDay: config.VirtualMarket.MinTicksPerDay,
		DataDir:        config.Market.DataDir,
		SaveDir:        config.Market.SaveDir,
	})

	// The replayed market builds its tick history from the replayed stream
	// alone. Pointing it at the historical data dir would let it load whole
	// day files ahead of the replay clock, so it gets a scratch dir.
	scratchDir, err := os.MkdirTemp("", "backtest")
	if err != nil {
		logger.Fatal("unable to create scratch dir", zap.Error(err))
	}
	defer os.RemoveAll(scratchDir)

	m := market.New(logger, vm, stats, market.Config{
		AccountName: config.Market.AccountName,
		UID:         config.Market.UID,
		Virtual:     true,
		DataDir:     scratchDir,
		SaveDir:     config.Market.SaveDir,
		Persist:     false,
	})
	defer m.Close()
	m.SetCommandHandler(vm)
	m.AddExpert(expert.NewRSIExpert(m, config.VirtualMarket.LeadingPair))

	if err := m.Run(ctx, vm.Execute); err != nil && err != context.Canceled {
		logger.Error("replay failed", zap.Error(err))
	}
}
