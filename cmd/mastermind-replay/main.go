// mastermind-replay runs the full trading pipeline against stored ticks,
// executing on the simulator broker. Useful for strategy evaluation without
// touching a live venue.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"mastermind/internal/broker"
	"mastermind/internal/config"
	"mastermind/internal/engine"
	"mastermind/internal/feed"
	"mastermind/internal/pattern"
	"mastermind/internal/risk"
	"mastermind/internal/store"
	"mastermind/internal/util"
)

func main() {
	var (
		startStr = flag.String("start", "", "replay start date (YYYY-MM-DD, required)")
		endStr   = flag.String("end", "", "replay end date (YYYY-MM-DD, required)")
		speed    = flag.Float64("speed", 0, "replay speed multiplier; 0 = as fast as possible, 1 = real time")
	)
	flag.Parse()

	if *startStr == "" || *endStr == "" {
		flag.Usage()
		os.Exit(2)
	}

	start, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		log.Fatalf("invalid start date: %v", err)
	}
	end, err := time.Parse("2006-01-02", *endStr)
	if err != nil {
		log.Fatalf("invalid end date: %v", err)
	}
	// Make the end date inclusive.
	end = end.Add(24*time.Hour - time.Millisecond)

	cfgPath := "config/mastermind.yaml"
	if p := os.Getenv("MASTERMIND_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// Replays never persist; the stored data is the input, not the output.
	cfg.Engine.PersistTicks = false
	cfg.Engine.PersistBricks = false

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	sim := broker.NewSimulatorBroker(cfg.Engine.InitialCapital, logger)

	riskEngine := risk.NewEngine(cfg.Risk, logger)
	detector := pattern.NewDetector(logger)

	eng := engine.New(engine.Options{
		Config:   cfg,
		Detector: detector,
		Risk:     riskEngine,
		Broker:   sim,
		Log:      logger,
	})

	replay := feed.NewReplayFeed(pstore, eng.Symbols(), start, end, *speed, eng.OnTick, logger)
	if err := replay.Run(context.Background()); err != nil {
		log.Fatalf("replay failed: %v", err)
	}

	account, err := sim.GetAccount(context.Background())
	if err != nil {
		log.Fatalf("reading final account: %v", err)
	}

	stats := riskEngine.Stats()
	fmt.Printf("replay finished: equity=%.2f trades=%d wins=%d win_rate=%.2f max_drawdown=%.4f\n",
		account.Equity, stats.TotalTrades, stats.WinningTrades, stats.WinRate,
		riskEngine.MaxDrawdown())
}
