package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"mastermind/internal/broker"
	"mastermind/internal/config"
	"mastermind/internal/engine"
	"mastermind/internal/feed"
	"mastermind/internal/httpapi"
	"mastermind/internal/pattern"
	"mastermind/internal/risk"
	"mastermind/internal/store"
	"mastermind/internal/util"
)

func main() {
	cfgPath := "config/mastermind.yaml"
	if p := os.Getenv("MASTERMIND_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	pstore := store.NewParquetStore(cfg.Storage.DataDir)

	sqlPath := cfg.Storage.SQLitePath
	if sqlPath == "" {
		sqlPath = "mastermind.db"
	}
	sstore, err := store.NewSQLiteStore(sqlPath)
	if err != nil {
		log.Fatalf("failed to open sqlite store: %v", err)
	}
	defer sstore.Close()

	riskEngine := risk.NewEngine(cfg.Risk, logger)
	detector := pattern.NewDetector(logger)
	configureDetector(detector, cfg.Detector)

	var exec broker.Broker
	if riskEngine.IsPaperMode() || cfg.Alpaca.APIKey == "" {
		exec = broker.NewSimulatorBroker(cfg.Engine.InitialCapital, logger)
	} else {
		exec = broker.NewAlpacaBroker(
			cfg.Alpaca.APIKey,
			cfg.Alpaca.APISecret,
			cfg.Alpaca.BaseURL,
			cfg.Alpaca.RateLimitPerMin,
			logger,
		)
	}

	eng := engine.New(engine.Options{
		Config:   cfg,
		Detector: detector,
		Risk:     riskEngine,
		Broker:   exec,
		Orders:   sstore,
		Signals:  sstore,
		Counters: sstore,
		Ticks:    pstore,
		Bricks:   pstore,
		Log:      logger,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Monitoring API.
	api := httpapi.NewServer(eng, logger)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{Addr: addr, Handler: api.Handler()}
	go func() {
		logger.Info("http api listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "err", err)
			cancel()
		}
	}()

	// Risk status refresh loop.
	go eng.RunRiskStatusLoop(ctx)

	// Live feed.
	live := feed.NewAlpacaFeed(
		cfg.Alpaca.APIKey,
		cfg.Alpaca.APISecret,
		cfg.Alpaca.Feed,
		eng.Symbols(),
		eng.OnTick,
		logger,
	)

	logger.Info("mastermind-trader starting",
		"broker", exec.Name(),
		"symbols", eng.Symbols(),
		"paper_mode", riskEngine.IsPaperMode(),
	)

	if err := live.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("feed stopped", "err", err)
	}

	httpSrv.Shutdown(context.Background())
	logger.Info("mastermind-trader stopped")
}

func configureDetector(d *pattern.Detector, cfg config.Detector) {
	if cfg.PartialBrickThreshold > 0 {
		d.SetPartialBrickThreshold(cfg.PartialBrickThreshold)
	}
	if cfg.TickBuffer > 0 {
		d.SetTickBuffer(cfg.TickBuffer)
	}
	if cfg.MinConfidence > 0 {
		d.SetMinConfidence(cfg.MinConfidence)
	}
	if cfg.Setup1Enabled != nil {
		d.EnableSetup1(*cfg.Setup1Enabled)
	}
	if cfg.Setup2Enabled != nil {
		d.EnableSetup2(*cfg.Setup2Enabled)
	}
}
