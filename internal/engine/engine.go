// Package engine orchestrates the trading pipeline: ticks flow into per
// symbol Renko charts, finalized bricks feed pattern detection, matches
// become risk-checked orders, and closed trades feed back into the risk
// governor and counter ledger.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mastermind/internal/broker"
	"mastermind/internal/config"
	"mastermind/internal/domain"
	"mastermind/internal/id"
	"mastermind/internal/pattern"
	"mastermind/internal/renko"
	"mastermind/internal/risk"
	"mastermind/internal/store"
)

// PriceUpdater is implemented by brokers that track marks locally and need
// every tick, such as the simulator.
type PriceUpdater interface {
	UpdatePrice(symbol string, price float64)
}

// Engine coordinates charts, pattern detection, risk checks, and execution
// for a set of configured symbols.
type Engine struct {
	cfg      *config.Config
	detector *pattern.Detector
	risk     *risk.Engine
	broker   broker.Broker
	// paper executes orders while the governor is in paper mode so nothing
	// reaches a live venue. Nil when broker is already a simulator.
	paper *broker.SimulatorBroker

	orders   store.OrderStore
	signals  store.SignalStore
	counters store.CounterStore
	ticks    store.TickStore
	bricks   store.BrickStore

	mu        sync.RWMutex
	charts    map[string]*renko.Chart
	symbolCfg map[string]domain.SymbolConfig
	// symbols with an in-flight or open trade; one trade per symbol at a time.
	active map[string]bool

	log *slog.Logger
}

// Options carries the engine's collaborators. Stores may be nil; persistence
// is skipped for any store not provided.
type Options struct {
	Config   *config.Config
	Detector *pattern.Detector
	Risk     *risk.Engine
	Broker   broker.Broker
	Orders   store.OrderStore
	Signals  store.SignalStore
	Counters store.CounterStore
	Ticks    store.TickStore
	Bricks   store.BrickStore
	Log      *slog.Logger
}

// New creates an engine with one chart per enabled symbol.
func New(opts Options) *Engine {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "engine")

	e := &Engine{
		cfg:       opts.Config,
		detector:  opts.Detector,
		risk:      opts.Risk,
		broker:    opts.Broker,
		orders:    opts.Orders,
		signals:   opts.Signals,
		counters:  opts.Counters,
		ticks:     opts.Ticks,
		bricks:    opts.Bricks,
		charts:    make(map[string]*renko.Chart),
		symbolCfg: make(map[string]domain.SymbolConfig),
		active:    make(map[string]bool),
		log:       log,
	}

	for _, sc := range opts.Config.Symbols {
		if !sc.Enabled {
			continue
		}
		chart := renko.NewChart(sc.Symbol, sc.BrickSize, opts.Config.Engine.MaxBricks, log)
		if sc.TickValue > 0 {
			chart.SetTickValue(sc.TickValue)
		}
		e.charts[sc.Symbol] = chart
		e.symbolCfg[sc.Symbol] = sc
	}

	// Closed trades in the simulator loop straight back into the governor.
	// A live broker gets a paper-mode companion simulator so the loss-limit
	// switch actually diverts execution away from the venue.
	if sim, ok := opts.Broker.(*broker.SimulatorBroker); ok {
		sim.SetTradeClosedFunc(e.OnTradeClosed)
	} else {
		e.paper = broker.NewSimulatorBroker(opts.Config.Engine.InitialCapital, log)
		e.paper.SetTradeClosedFunc(e.OnTradeClosed)
	}

	return e
}

// execBroker returns the broker orders should go to right now: the paper
// simulator whenever the governor is in paper mode, the configured broker
// otherwise.
func (e *Engine) execBroker() broker.Broker {
	if e.paper != nil && e.risk.IsPaperMode() {
		return e.paper
	}
	return e.broker
}

// Symbols returns the symbols the engine is trading.
func (e *Engine) Symbols() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.charts))
	for sym := range e.charts {
		out = append(out, sym)
	}
	return out
}

// Chart returns the chart for a symbol, if the symbol is configured.
func (e *Engine) Chart(symbol string) (*renko.Chart, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.charts[symbol]
	return c, ok
}

// Risk returns the risk governor.
func (e *Engine) Risk() *risk.Engine { return e.risk }

// Detector returns the pattern detector.
func (e *Engine) Detector() *pattern.Detector { return e.detector }

// Broker returns the execution broker.
func (e *Engine) Broker() broker.Broker { return e.broker }

// Signals returns the signal store, which may be nil.
func (e *Engine) Signals() store.SignalStore { return e.signals }

// ---------------------------------------------------------------------------
// Tick path
// ---------------------------------------------------------------------------

// OnTick advances the pipeline with one market tick. Unknown symbols are
// dropped. Errors in persistence are logged and do not stall the tick path;
// a live feed must keep flowing.
func (e *Engine) OnTick(ctx context.Context, tick domain.Tick) {
	e.mu.RLock()
	chart, ok := e.charts[tick.Symbol]
	e.mu.RUnlock()
	if !ok {
		return
	}

	if e.ticks != nil && e.cfg.Engine.PersistTicks {
		if err := e.ticks.WriteTicks(ctx, []domain.Tick{tick}); err != nil {
			e.log.Error("persisting tick failed", "symbol", tick.Symbol, "err", err)
		}
	}

	formed := chart.AddTick(tick)

	if pu, ok := e.broker.(PriceUpdater); ok {
		pu.UpdatePrice(tick.Symbol, tick.Price)
	}
	if e.paper != nil {
		e.paper.UpdatePrice(tick.Symbol, tick.Price)
	}

	if len(formed) > 0 && e.bricks != nil && e.cfg.Engine.PersistBricks {
		if err := e.bricks.WriteBricks(ctx, tick.Symbol, formed); err != nil {
			e.log.Error("persisting bricks failed", "symbol", tick.Symbol, "err", err)
		}
	}

	for _, result := range e.detector.DetectPatterns(chart) {
		e.handlePattern(ctx, result)
	}
}

// handlePattern turns a pattern match into an order, subject to the risk
// gates. One trade per symbol at a time.
func (e *Engine) handlePattern(ctx context.Context, result domain.PatternResult) {
	e.mu.Lock()
	if e.active[result.Symbol] {
		e.mu.Unlock()
		return
	}
	cfg := e.symbolCfg[result.Symbol]
	e.mu.Unlock()

	signal := e.detector.GenerateSignal(result, cfg)
	if signal.Pattern == domain.PatternNone {
		return
	}

	if e.signals != nil {
		if err := e.signals.SaveSignal(ctx, &signal); err != nil {
			e.log.Error("persisting signal failed", "symbol", signal.Symbol, "err", err)
		}
	}

	exec := e.execBroker()

	account, err := exec.GetAccount(ctx)
	if err != nil {
		e.log.Error("fetching account failed", "err", err)
		return
	}
	positions, err := exec.GetPositions(ctx)
	if err != nil {
		e.log.Error("fetching positions failed", "err", err)
		return
	}

	instrument := domain.InstrumentSpec{
		Symbol:    signal.Symbol,
		TickValue: cfg.TickValue,
	}
	if instrument.TickValue <= 0 {
		instrument.TickValue = 1
	}

	signal.Quantity = e.risk.CalculatePositionSize(signal, *account, instrument)
	if signal.Quantity <= 0 {
		e.log.Warn("signal not sized, skipping", "symbol", signal.Symbol)
		return
	}

	order := domain.Order{
		ID:         id.New(),
		Symbol:     signal.Symbol,
		Side:       signal.Side,
		Type:       domain.OrderTypeLimit,
		Price:      signal.EntryPrice,
		Quantity:   signal.Quantity,
		StopLoss:   signal.StopLoss,
		TakeProfit: signal.TakeProfit,
		Status:     domain.OrderStatusPending,
		StrategyID: string(signal.Pattern),
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	if !e.risk.ValidateOrder(order, *account, positions) {
		return
	}

	placed, err := exec.SubmitOrder(ctx, &order)
	if err != nil {
		e.log.Error("submitting order failed", "symbol", order.Symbol, "err", err)
		return
	}

	e.mu.Lock()
	e.active[order.Symbol] = true
	e.mu.Unlock()

	e.risk.RegisterOrderRisk(signal.Quantity * instrument.TickValue *
		abs(signal.EntryPrice-signal.StopLoss))
	e.risk.AddOrderToCounter(*placed)

	if e.orders != nil {
		if err := e.orders.SaveOrder(ctx, placed); err != nil {
			e.log.Error("persisting order failed", "id", placed.ID, "err", err)
		}
	}

	e.log.Info("order placed",
		"id", placed.ID,
		"symbol", placed.Symbol,
		"broker", exec.Name(),
		"pattern", placed.StrategyID,
		"entry", placed.Price,
		"stop", placed.StopLoss,
		"take", placed.TakeProfit,
		"qty", placed.Quantity,
	)
}

// ---------------------------------------------------------------------------
// Trade feedback
// ---------------------------------------------------------------------------

// OnTradeClosed records a closed trade's outcome in the risk governor, the
// counter ledger, and the detector's success statistics.
func (e *Engine) OnTradeClosed(order domain.Order, pnl float64) {
	profitable := pnl > 0

	e.risk.RecordTrade(order, profitable)
	e.risk.AddDailyPnL(pnl)
	e.risk.AddCounterPnL(pnl, 0)

	if order.StrategyID != "" {
		e.detector.RecordOutcome(domain.PatternType(order.StrategyID), profitable)
	}
	e.detector.ClearPatternState(order.Symbol)

	e.mu.Lock()
	delete(e.active, order.Symbol)
	e.mu.Unlock()

	if e.counters != nil && e.risk.IsCounterComplete() {
		if c, ok := e.risk.CurrentCounter(); ok {
			if err := e.counters.SaveCounter(context.Background(), c); err != nil {
				e.log.Error("persisting counter failed", "counter", c.Number, "err", err)
			}
		}
	}

	e.log.Info("trade closed",
		"symbol", order.Symbol,
		"pnl", pnl,
		"profitable", profitable,
	)
}

// ---------------------------------------------------------------------------
// Risk status loop
// ---------------------------------------------------------------------------

// RunRiskStatusLoop refreshes the risk status from the account snapshot at
// the configured cadence. It blocks until ctx is cancelled.
func (e *Engine) RunRiskStatusLoop(ctx context.Context) error {
	interval := time.Duration(e.cfg.Engine.RiskStatusSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.refreshRiskStatus(ctx)
		}
	}
}

func (e *Engine) refreshRiskStatus(ctx context.Context) {
	account, err := e.broker.GetAccount(ctx)
	if err != nil {
		e.log.Error("fetching account failed", "err", err)
		return
	}
	positions, err := e.broker.GetPositions(ctx)
	if err != nil {
		e.log.Error("fetching positions failed", "err", err)
		return
	}
	e.risk.UpdateRiskStatus(*account, positions)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
