// Package risk implements the stateful risk governor: position sizing,
// order validation against daily and drawdown limits, consecutive-loss
// tracking with automatic paper mode, trading counters, and the emergency
// stop override.
package risk

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"mastermind/internal/domain"
)

// maxEquityFraction caps any single position at 10% of account equity.
const maxEquityFraction = 0.1

// drawdownWarningFraction of the max-drawdown limit triggers Warning status.
const drawdownWarningFraction = 0.8

// Engine is the process-wide risk governor. It tolerates concurrent calls
// from multiple instrument-processing paths: parameters and counter state
// are guarded by independent locks so they never contend, and the status
// flags are atomics so they can be polled without blocking a concurrent
// RecordTrade.
type Engine struct {
	paramsMu sync.RWMutex
	params   domain.RiskParameters

	counterMu sync.Mutex
	current   *Counter
	completed []Counter

	paperMode     atomic.Bool
	emergencyStop atomic.Bool
	status        atomic.Value // domain.RiskStatus

	stateMu              sync.Mutex
	lastEquity           float64
	equityHighWaterMark  float64
	highWaterMarkTime    time.Time
	currentDrawdown      float64
	maxDrawdown          float64
	dailyPnL             float64
	dailyRiskUsed        float64
	lastDailyReset       time.Time
	consecutiveLosses    int
	consecutiveWins      int
	maxConsecutiveLosses int
	totalTrades          int
	winningTrades        int

	log *slog.Logger
}

// NewEngine creates a risk engine with the given parameters. Invalid
// parameters fall back to the reference defaults.
func NewEngine(params domain.RiskParameters, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{
		log:            log.With("component", "risk"),
		lastDailyReset: time.Now(),
	}
	e.status.Store(domain.RiskStatusNormal)

	if !params.Valid() {
		e.log.Warn("invalid risk parameters, using defaults")
		params = domain.DefaultRiskParameters()
	}
	e.params = params
	e.paperMode.Store(params.PaperTradingMode)
	if params.PaperTradingMode {
		e.status.Store(domain.RiskStatusPaperMode)
	}
	return e
}

// Parameters returns a copy of the current risk parameters.
func (e *Engine) Parameters() domain.RiskParameters {
	e.paramsMu.RLock()
	defer e.paramsMu.RUnlock()
	return e.params
}

// UpdateParameters hot-swaps the risk parameters. Percentage fields must be
// in [0, 1] and OrdersPerCounter must be at least 1.
func (e *Engine) UpdateParameters(params domain.RiskParameters) error {
	if !params.Valid() {
		return fmt.Errorf("invalid risk parameters: percentages must be in [0,1] and orders_per_counter >= 1")
	}
	e.paramsMu.Lock()
	e.params = params
	e.paramsMu.Unlock()
	e.log.Info("risk parameters updated",
		"daily_risk_percent", params.DailyRiskPercent,
		"max_drawdown_percent", params.MaxDrawdownPercent,
		"consecutive_loss_limit", params.ConsecutiveLossLimit,
	)
	return nil
}

// ---------------------------------------------------------------------------
// Sizing and validation
// ---------------------------------------------------------------------------

// CalculatePositionSize sizes a position so that hitting the stop loses the
// configured daily-risk fraction of equity. Returns 0 for a zero stop
// distance; a zero-risk trade cannot be sized. The result is clamped to
// [MinLotSize, 10% of equity].
func (e *Engine) CalculatePositionSize(signal domain.TradingSignal, account domain.AccountInfo, instrument domain.InstrumentSpec) float64 {
	params := e.Parameters()

	stopDistance := math.Abs(signal.EntryPrice - signal.StopLoss)
	if stopDistance <= 0 {
		return 0
	}

	tickValue := instrument.TickValue
	if tickValue <= 0 {
		return 0
	}

	e.stateMu.Lock()
	e.lastEquity = account.Equity
	e.stateMu.Unlock()

	riskAmount := account.Equity * params.DailyRiskPercent
	size := riskAmount / (stopDistance * tickValue)

	size = math.Max(size, params.MinLotSize)
	size = math.Min(size, account.Equity*maxEquityFraction)

	e.log.Debug("position sized",
		"symbol", signal.Symbol,
		"size", size,
		"risk_amount", riskAmount,
		"stop_distance", stopDistance,
	)
	return size
}

// ValidateOrder is a pure gate: it approves or rejects without mutating any
// state. Rejections are deliberate business outcomes, not errors. The
// emergency stop is consulted first; it overrides everything else.
func (e *Engine) ValidateOrder(order domain.Order, account domain.AccountInfo, positions []domain.Position) bool {
	if e.emergencyStop.Load() {
		e.log.Warn("order rejected: emergency stop active", "symbol", order.Symbol)
		return false
	}

	params := e.Parameters()

	e.stateMu.Lock()
	dailyRiskUsed := e.dailyRiskUsed
	drawdown := e.currentDrawdown
	e.stateMu.Unlock()

	if dailyRiskUsed >= account.Equity*params.DailyRiskPercent {
		e.log.Warn("order rejected: daily risk limit reached",
			"symbol", order.Symbol,
			"daily_risk_used", dailyRiskUsed,
		)
		return false
	}

	if drawdown >= params.MaxDrawdownPercent {
		e.log.Warn("order rejected: drawdown limit reached",
			"symbol", order.Symbol,
			"drawdown", drawdown,
		)
		return false
	}

	return true
}

// RegisterOrderRisk accrues the capital put at risk by an approved order
// against today's risk budget.
func (e *Engine) RegisterOrderRisk(amount float64) {
	if amount <= 0 {
		return
	}
	e.stateMu.Lock()
	e.dailyRiskUsed += amount
	e.stateMu.Unlock()
}

// AddDailyPnL accrues realized profit or loss onto today's running total.
func (e *Engine) AddDailyPnL(delta float64) {
	e.stateMu.Lock()
	e.dailyPnL += delta
	e.stateMu.Unlock()
}

// ---------------------------------------------------------------------------
// Trade outcomes
// ---------------------------------------------------------------------------

// RecordTrade folds a closed trade's outcome into the win/loss streaks.
// Reaching the consecutive-loss limit automatically switches the engine to
// paper mode: capital preservation must not wait for a human to notice a
// losing streak.
func (e *Engine) RecordTrade(order domain.Order, profitable bool) {
	limit := e.Parameters().ConsecutiveLossLimit

	e.stateMu.Lock()
	e.totalTrades++
	if profitable {
		e.consecutiveWins++
		e.consecutiveLosses = 0
		e.winningTrades++
	} else {
		e.consecutiveLosses++
		e.consecutiveWins = 0
		if e.consecutiveLosses > e.maxConsecutiveLosses {
			e.maxConsecutiveLosses = e.consecutiveLosses
		}
	}
	losses := e.consecutiveLosses
	e.stateMu.Unlock()

	e.log.Info("trade recorded",
		"symbol", order.Symbol,
		"profitable", profitable,
		"consecutive_losses", losses,
	)

	if !profitable && limit > 0 && losses >= limit && !e.paperMode.Load() {
		e.SwitchToPaperMode()
	}
}

// ConsecutiveLosses returns the current losing streak length.
func (e *Engine) ConsecutiveLosses() int {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.consecutiveLosses
}

// ConsecutiveWins returns the current winning streak length.
func (e *Engine) ConsecutiveWins() int {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.consecutiveWins
}

// MaxConsecutiveLosses returns the longest losing streak seen.
func (e *Engine) MaxConsecutiveLosses() int {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.maxConsecutiveLosses
}

// ResetStreaks clears both win and loss streaks.
func (e *Engine) ResetStreaks() {
	e.stateMu.Lock()
	e.consecutiveLosses = 0
	e.consecutiveWins = 0
	e.stateMu.Unlock()
}

// Stats returns an aggregate snapshot of recorded trade outcomes.
func (e *Engine) Stats() domain.TradingStats {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	s := domain.TradingStats{
		TotalTrades:       e.totalTrades,
		WinningTrades:     e.winningTrades,
		LosingTrades:      e.totalTrades - e.winningTrades,
		ConsecutiveWins:   e.consecutiveWins,
		ConsecutiveLosses: e.consecutiveLosses,
		LastUpdate:        time.Now(),
	}
	if e.totalTrades > 0 {
		s.WinRate = float64(e.winningTrades) / float64(e.totalTrades)
	}
	return s
}

// ---------------------------------------------------------------------------
// Paper mode and emergency stop
// ---------------------------------------------------------------------------

// SwitchToPaperMode moves the engine to simulated execution. Signals keep
// flowing but nothing reaches a real venue.
func (e *Engine) SwitchToPaperMode() {
	e.paperMode.Store(true)
	if !e.emergencyStop.Load() {
		e.status.Store(domain.RiskStatusPaperMode)
	}
	e.log.Warn("switched to paper trading mode")
}

// SwitchToLiveMode returns the engine to live execution. The status is
// recomputed on the next UpdateRiskStatus call.
func (e *Engine) SwitchToLiveMode() {
	e.paperMode.Store(false)
	e.log.Info("switched to live trading mode")
}

// IsPaperMode reports whether execution is simulated.
func (e *Engine) IsPaperMode() bool { return e.paperMode.Load() }

// EnableEmergencyStop halts all order approval unconditionally and forces
// LimitReached status. It is the highest-priority override and is safe to
// call repeatedly.
func (e *Engine) EnableEmergencyStop() {
	e.emergencyStop.Store(true)
	e.status.Store(domain.RiskStatusLimitReached)
	e.log.Error("emergency stop activated")
}

// DisableEmergencyStop lifts the halt. The status is recomputed on the next
// UpdateRiskStatus call.
func (e *Engine) DisableEmergencyStop() {
	e.emergencyStop.Store(false)
	e.log.Warn("emergency stop deactivated")
}

// IsEmergencyStopActive reports whether the halt is in force.
func (e *Engine) IsEmergencyStopActive() bool { return e.emergencyStop.Load() }

// Status returns the current risk posture.
func (e *Engine) Status() domain.RiskStatus {
	return e.status.Load().(domain.RiskStatus)
}

// ---------------------------------------------------------------------------
// Drawdown and status
// ---------------------------------------------------------------------------

// CalculateDrawdown folds a fresh equity reading into the high-water mark
// and returns the current drawdown fraction. Drawdown is always measured
// against the historical peak, never the prior reading.
func (e *Engine) CalculateDrawdown(equity float64) float64 {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	e.lastEquity = equity
	if equity > e.equityHighWaterMark {
		e.equityHighWaterMark = equity
		e.highWaterMarkTime = time.Now()
	}

	if e.equityHighWaterMark > 0 {
		e.currentDrawdown = (e.equityHighWaterMark - equity) / e.equityHighWaterMark
		if e.currentDrawdown > e.maxDrawdown {
			e.maxDrawdown = e.currentDrawdown
		}
	} else {
		e.currentDrawdown = 0
	}
	return e.currentDrawdown
}

// UpdateRiskStatus recomputes drawdown from the account snapshot, performs
// the daily reset when due, and re-derives the status in priority order:
// emergency stop, paper mode, drawdown warning, normal.
func (e *Engine) UpdateRiskStatus(account domain.AccountInfo, positions []domain.Position) {
	e.maybeDailyReset()
	drawdown := e.CalculateDrawdown(account.Equity)
	params := e.Parameters()

	switch {
	case e.emergencyStop.Load():
		e.status.Store(domain.RiskStatusLimitReached)
	case e.paperMode.Load():
		e.status.Store(domain.RiskStatusPaperMode)
	case drawdown > params.MaxDrawdownPercent*drawdownWarningFraction:
		e.status.Store(domain.RiskStatusWarning)
	default:
		e.status.Store(domain.RiskStatusNormal)
	}
}

// CurrentDrawdown returns the latest drawdown fraction.
func (e *Engine) CurrentDrawdown() float64 {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.currentDrawdown
}

// MaxDrawdown returns the worst drawdown fraction observed.
func (e *Engine) MaxDrawdown() float64 {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.maxDrawdown
}

// lastEquitySnapshot returns the most recent equity reading seen by sizing
// or drawdown updates. Zero until the first account snapshot arrives.
func (e *Engine) lastEquitySnapshot() float64 {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.lastEquity
}

// EquityHighWaterMark returns the historical equity peak.
func (e *Engine) EquityHighWaterMark() float64 {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.equityHighWaterMark
}

// DailyPnL returns today's realized profit and loss.
func (e *Engine) DailyPnL() float64 {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.dailyPnL
}

// DailyRiskUsed returns the capital put at risk so far today.
func (e *Engine) DailyRiskUsed() float64 {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.dailyRiskUsed
}

// maybeDailyReset zeroes the daily counters once at least 24 hours have
// passed since the previous reset.
func (e *Engine) maybeDailyReset() {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if time.Since(e.lastDailyReset) < 24*time.Hour {
		return
	}
	e.dailyPnL = 0
	e.dailyRiskUsed = 0
	e.lastDailyReset = time.Now()
	e.log.Info("daily risk counters reset")
}

// PerformDailyReset forces the daily counters to zero immediately.
func (e *Engine) PerformDailyReset() {
	e.stateMu.Lock()
	e.dailyPnL = 0
	e.dailyRiskUsed = 0
	e.lastDailyReset = time.Now()
	e.stateMu.Unlock()
	e.log.Info("daily risk counters reset")
}
