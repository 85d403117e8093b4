// Package pattern scans Renko brick history for the two proprietary brick
// setups and turns matches into priced trading signals.
package pattern

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"mastermind/internal/domain"
	"mastermind/internal/renko"
)

// Defaults for detector tuning. The confidences are deliberately fixed
// constants rather than a computed score; see DESIGN.md.
const (
	DefaultPartialBrickThreshold = 0.75
	DefaultTickBuffer            = 2
	DefaultMinConfidence         = 0.7

	Setup1Confidence = 0.8
	Setup2Confidence = 0.75

	// RewardRiskRatio fixes take-profit distance at twice the stop distance.
	RewardRiskRatio = 2.0
)

// Stats tracks detection outcomes for one pattern type.
type Stats struct {
	TotalCount   int
	SuccessCount int
	SuccessRate  float64
	LastUpdate   time.Time
}

// Detector runs the Setup 1 and Setup 2 scans against a chart. It is safe
// for concurrent use across instrument processing paths.
type Detector struct {
	mu sync.RWMutex

	minConfidence         float64
	partialBrickThreshold float64
	tickBuffer            int
	setup1Enabled         bool
	setup2Enabled         bool

	activePatterns map[string]domain.PatternType
	stats          map[domain.PatternType]*Stats

	log *slog.Logger
}

// NewDetector creates a detector with both setups enabled and the reference
// defaults: 0.75 partial-brick threshold, 2-tick entry buffer.
func NewDetector(log *slog.Logger) *Detector {
	if log == nil {
		log = slog.Default()
	}
	return &Detector{
		minConfidence:         DefaultMinConfidence,
		partialBrickThreshold: DefaultPartialBrickThreshold,
		tickBuffer:            DefaultTickBuffer,
		setup1Enabled:         true,
		setup2Enabled:         true,
		activePatterns:        make(map[string]domain.PatternType),
		stats:                 make(map[domain.PatternType]*Stats),
		log:                   log.With("component", "pattern"),
	}
}

// DetectPatterns runs every enabled setup against the chart and returns the
// matches, dropping any whose confidence falls below the minimum. Zero, one,
// or both setups can fire on the same pass. An empty result is a normal
// outcome, not a failure.
func (d *Detector) DetectPatterns(chart *renko.Chart) []domain.PatternResult {
	d.mu.RLock()
	setup1, setup2 := d.setup1Enabled, d.setup2Enabled
	minConf := d.minConfidence
	d.mu.RUnlock()

	var results []domain.PatternResult

	if setup1 {
		if r, ok := d.detectSetup1(chart); ok && r.Confidence >= minConf {
			results = append(results, r)
		}
	}
	if setup2 {
		if r, ok := d.detectSetup2(chart); ok && r.Confidence >= minConf {
			results = append(results, r)
		}
	}

	if len(results) > 0 {
		d.mu.Lock()
		// Remember the most recent match per symbol.
		d.activePatterns[chart.Symbol()] = results[len(results)-1].Type
		d.mu.Unlock()
	}

	return results
}

// detectSetup1 matches two consecutive down bricks followed by a partial up
// brick at or past the completion threshold. Two finalized bricks plus the
// forming partial are enough; the pattern is three bricks deep counting the
// partial.
func (d *Detector) detectSetup1(chart *renko.Chart) (domain.PatternResult, bool) {
	if chart.BrickCount() < 2 {
		return domain.PatternResult{}, false
	}

	d.mu.RLock()
	threshold := d.partialBrickThreshold
	tickBuffer := d.tickBuffer
	d.mu.RUnlock()

	partial := chart.PartialBrick()
	if !chart.HasConsecutiveDownBricks(2) || !partial.IsUp || partial.CompletionPercent < threshold {
		return domain.PatternResult{}, false
	}

	result := domain.PatternResult{
		Type:           domain.PatternSetup1Consecutive,
		Symbol:         chart.Symbol(),
		Confidence:     Setup1Confidence,
		SuggestedSide:  domain.SideBuy,
		SuggestedEntry: chart.CalculateSetup1EntryPrice(domain.SideBuy, tickBuffer),
		SuggestedStop:  chart.CalculateStopLoss(domain.SideBuy, tickBuffer),
		DetectionTime:  time.Now(),
		Bricks:         chart.Bricks(5),
	}

	d.log.Info("setup 1 detected",
		"symbol", result.Symbol,
		"entry", result.SuggestedEntry,
		"stop", result.SuggestedStop,
	)
	return result, true
}

// detectSetup2 matches an up-down-up sequence in the last three finalized
// bricks with the partial brick at or past the completion threshold.
func (d *Detector) detectSetup2(chart *renko.Chart) (domain.PatternResult, bool) {
	if chart.BrickCount() < 3 {
		return domain.PatternResult{}, false
	}

	d.mu.RLock()
	threshold := d.partialBrickThreshold
	tickBuffer := d.tickBuffer
	d.mu.RUnlock()

	if !chart.HasGreenRedGreenPattern() || chart.PartialBrickCompletion() < threshold {
		return domain.PatternResult{}, false
	}

	// Setup 2 prices its entry and stop exactly like Setup 1; the reference
	// behavior has not yet differentiated them.
	result := domain.PatternResult{
		Type:           domain.PatternSetup2GreenRedGreen,
		Symbol:         chart.Symbol(),
		Confidence:     Setup2Confidence,
		SuggestedSide:  domain.SideBuy,
		SuggestedEntry: chart.CalculateSetup2EntryPrice(domain.SideBuy, tickBuffer),
		SuggestedStop:  chart.CalculateStopLoss(domain.SideBuy, tickBuffer),
		DetectionTime:  time.Now(),
		Bricks:         chart.Bricks(5),
	}

	d.log.Info("setup 2 detected",
		"symbol", result.Symbol,
		"entry", result.SuggestedEntry,
		"stop", result.SuggestedStop,
	)
	return result, true
}

// GenerateSignal turns a pattern match into a trading signal: same side,
// entry, and stop, with the take profit placed at RewardRiskRatio times the
// stop distance. Quantity starts at the symbol's minimum lot and is replaced
// by risk sizing before submission.
func (d *Detector) GenerateSignal(p domain.PatternResult, cfg domain.SymbolConfig) domain.TradingSignal {
	if p.Type == domain.PatternNone || p.Type == "" {
		return domain.TradingSignal{Pattern: domain.PatternNone}
	}

	signal := domain.TradingSignal{
		Symbol:     p.Symbol,
		Pattern:    p.Type,
		Side:       p.SuggestedSide,
		EntryPrice: p.SuggestedEntry,
		StopLoss:   p.SuggestedStop,
		Confidence: p.Confidence,
		Timestamp:  p.DetectionTime,
		Quantity:   cfg.RiskParams.MinLotSize,
	}

	risk := math.Abs(signal.EntryPrice - signal.StopLoss)
	if signal.Side == domain.SideBuy {
		signal.TakeProfit = signal.EntryPrice + risk*RewardRiskRatio
	} else {
		signal.TakeProfit = signal.EntryPrice - risk*RewardRiskRatio
	}

	return signal
}

// ---------------------------------------------------------------------------
// Tuning
// ---------------------------------------------------------------------------

// SetMinConfidence clamps and stores the minimum confidence, in [0, 1].
func (d *Detector) SetMinConfidence(v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.minConfidence = math.Min(1, math.Max(0, v))
}

// SetPartialBrickThreshold clamps and stores the partial-brick completion
// threshold, in [0.5, 1].
func (d *Detector) SetPartialBrickThreshold(v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.partialBrickThreshold = math.Min(1, math.Max(0.5, v))
}

// SetTickBuffer stores the entry/stop tick buffer, at least 1.
func (d *Detector) SetTickBuffer(ticks int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ticks < 1 {
		ticks = 1
	}
	d.tickBuffer = ticks
}

// EnableSetup1 toggles the consecutive-down setup.
func (d *Detector) EnableSetup1(enable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setup1Enabled = enable
}

// EnableSetup2 toggles the green-red-green setup.
func (d *Detector) EnableSetup2(enable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setup2Enabled = enable
}

// ---------------------------------------------------------------------------
// Pattern state and statistics
// ---------------------------------------------------------------------------

// ActivePattern returns the most recently matched pattern for a symbol.
func (d *Detector) ActivePattern(symbol string) (domain.PatternType, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.activePatterns[symbol]
	return t, ok
}

// ClearPatternState forgets the active pattern for a symbol.
func (d *Detector) ClearPatternState(symbol string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.activePatterns, symbol)
}

// RecordOutcome updates the success statistics for a pattern type once the
// resulting trade's outcome is known.
func (d *Detector) RecordOutcome(t domain.PatternType, successful bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.stats[t]
	if s == nil {
		s = &Stats{}
		d.stats[t] = s
	}
	s.TotalCount++
	if successful {
		s.SuccessCount++
	}
	s.SuccessRate = float64(s.SuccessCount) / float64(s.TotalCount)
	s.LastUpdate = time.Now()
}

// PatternStats returns a copy of the statistics for a pattern type.
func (d *Detector) PatternStats(t domain.PatternType) Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if s := d.stats[t]; s != nil {
		return *s
	}
	return Stats{}
}
