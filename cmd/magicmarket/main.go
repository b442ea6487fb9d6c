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

	"github.com/walachey/magicmarket-sub000/internal/bridge"
	"github.com/walachey/magicmarket-sub000/internal/cfg"
	"github.com/walachey/magicmarket-sub000/internal/dbg"
	"github.com/walachey/magicmarket-sub000/internal/expert"
	"github.com/walachey/magicmarket-sub000/internal/market"
	"github.com/walachey/magicmarket-sub000/internal/statistics"
	"github.com/walachey/magicmarket-sub000/internal/utility"
)

// statisticsPath tags the default snapshot file with the execution id, so
// repeated sessions do not interleave rows.
func statisticsPath(config cfg.Config) string {
	if config.Statistics.OutputFile != "" {
		return config.Statistics.OutputFile
	}
	return filepath.Join(config.Market.SaveDir,
		fmt.Sprintf("statistics-%s.csv", utility.GetExecutionID()))
}

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

	logger.Info("magicmarket started", zap.String("account", config.Market.AccountName))
	defer logger.Info("done")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if config.Market.BridgeEndpoint == "" {
		logger.Fatal("a bridge endpoint is required for live trading")
	}
	conn, err := bridge.Dial(ctx, logger, config.Market.BridgeEndpoint)
	if err != nil {
		logger.Fatal("unable to reach the bridge", zap.Error(err))
	}
	defer conn.Close()

	stats := statistics.NewRegistry(logger, statisticsPath(config), config.Statistics.Enabled)
	defer stats.Close()

	m := market.New(logger, conn, stats, market.Config{
		AccountName: config.Market.AccountName,
		UID:         config.Market.UID,
		DataDir:     config.Market.DataDir,
		SaveDir:     config.Market.SaveDir,
		Persist:     true,
		Sleep:       config.Market.Sleep(),
	})
	defer m.Close()

	pair := config.VirtualMarket.LeadingPair
	if pair == "" {
		pair = "EURUSD"
	}
	m.AddExpert(expert.NewRSIExpert(m, pair))

	if err := m.Run(ctx, nil); err != nil && err != context.Canceled {
		logger.Error("market loop failed", zap.Error(err))
	}
}
