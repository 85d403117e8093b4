// Package renko converts a raw price stream into fixed-size Renko bricks and
// exposes the brick history plus the in-progress partial brick.
package renko

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"mastermind/internal/domain"
)

// DefaultMaxBricks bounds the finalized brick series per chart.
const DefaultMaxBricks = 1000

// Chart ingests prices for one instrument and produces finalized bricks.
// All public methods are guarded by a single mutex so price ingestion and
// queries never observe a torn brick/partial pair. Chart never blocks on I/O;
// every operation is a fast synchronous computation.
type Chart struct {
	mu sync.Mutex

	symbol    string
	brickSize float64
	tickValue float64
	maxBricks int

	bricks  []domain.Brick
	partial domain.PartialBrick
	seeded  bool

	lastPrice  float64
	lastUpdate time.Time

	log *slog.Logger
}

// NewChart creates a chart for the given symbol. brickSize must be positive;
// maxBricks falls back to DefaultMaxBricks when non-positive.
func NewChart(symbol string, brickSize float64, maxBricks int, log *slog.Logger) *Chart {
	if maxBricks <= 0 {
		maxBricks = DefaultMaxBricks
	}
	if log == nil {
		log = slog.Default()
	}
	return &Chart{
		symbol:    symbol,
		brickSize: brickSize,
		tickValue: 0.0001,
		maxBricks: maxBricks,
		log:       log.With("symbol", symbol),
	}
}

// Symbol returns the instrument this chart tracks.
func (c *Chart) Symbol() string { return c.symbol }

// AddTick feeds the tick's trade price into the chart.
func (c *Chart) AddTick(t domain.Tick) []domain.Brick {
	return c.AddPrice(t.Price, t.Timestamp)
}

// AddPrice advances the chart with a new price and returns any bricks
// finalized by it, oldest first. Non-positive prices are dropped silently;
// a real-time feed must never halt on a single malformed tick.
//
// A single price can legitimately jump through multiple brick boundaries
// (gaps, illiquid instruments), and every crossed level must become its own
// brick, so brick emission loops until the remaining move is below one brick.
func (c *Chart) AddPrice(price float64, ts time.Time) []domain.Brick {
	c.mu.Lock()
	defer c.mu.Unlock()

	if price <= 0 {
		return nil
	}

	c.lastPrice = price
	c.lastUpdate = ts

	// The very first price only seeds the forming brick; there is no
	// previous close to measure movement from yet.
	if !c.seeded {
		c.partial = domain.PartialBrick{
			Open:      price,
			Close:     price,
			IsUp:      true,
			Timestamp: ts,
		}
		c.seeded = true
		return nil
	}

	reference := c.partial.Open
	if len(c.bricks) > 0 {
		reference = c.bricks[len(c.bricks)-1].Close
	}

	var formed []domain.Brick
	for price >= reference+c.brickSize {
		b := domain.NewBrick(reference, reference+c.brickSize, ts, true)
		c.appendBrickLocked(b)
		formed = append(formed, b)
		reference += c.brickSize
	}
	for price <= reference-c.brickSize {
		b := domain.NewBrick(reference, reference-c.brickSize, ts, false)
		c.appendBrickLocked(b)
		formed = append(formed, b)
		reference -= c.brickSize
	}

	// The partial brick always forms from the latest reference level.
	completion := math.Abs(price-reference) / c.brickSize
	c.partial = domain.PartialBrick{
		Open:              reference,
		Close:             price,
		IsUp:              price >= reference,
		CompletionPercent: math.Min(1, math.Max(0, completion)),
		Timestamp:         ts,
	}

	return formed
}

func (c *Chart) appendBrickLocked(b domain.Brick) {
	c.bricks = append(c.bricks, b)
	if len(c.bricks) > c.maxBricks {
		// Evict oldest; the series is a bounded FIFO.
		n := copy(c.bricks, c.bricks[len(c.bricks)-c.maxBricks:])
		c.bricks = c.bricks[:n]
	}

	dir := "down"
	if b.IsUp {
		dir = "up"
	}
	c.log.Debug("brick formed", "direction", dir, "open", b.Open, "close", b.Close)
}

// SetBrickSize replaces the brick size prospectively. Existing bricks are not
// resized. Non-positive sizes are ignored.
func (c *Chart) SetBrickSize(size float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if size > 0 {
		c.brickSize = size
	}
}

// BrickSize returns the current brick size.
func (c *Chart) BrickSize() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.brickSize
}

// SetTickValue sets the per-tick price increment used for entry/stop buffers.
func (c *Chart) SetTickValue(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v > 0 {
		c.tickValue = v
	}
}

// TickValue returns the per-tick price increment.
func (c *Chart) TickValue() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickValue
}

// BrickCount returns the number of finalized bricks.
func (c *Chart) BrickCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bricks)
}

// Bricks returns copies of the last count finalized bricks, oldest first.
// count == 0 returns the entire series.
func (c *Chart) Bricks(count int) []domain.Brick {
	c.mu.Lock()
	defer c.mu.Unlock()

	if count <= 0 || count >= len(c.bricks) {
		out := make([]domain.Brick, len(c.bricks))
		copy(out, c.bricks)
		return out
	}
	out := make([]domain.Brick, count)
	copy(out, c.bricks[len(c.bricks)-count:])
	return out
}

// LastBrick returns the most recent finalized brick, if any.
func (c *Chart) LastBrick() (domain.Brick, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.bricks) == 0 {
		return domain.Brick{}, false
	}
	return c.bricks[len(c.bricks)-1], true
}

// PartialBrick returns a copy of the in-progress brick.
func (c *Chart) PartialBrick() domain.PartialBrick {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.partial
}

// PartialBrickCompletion returns how far the forming brick has progressed
// toward the next boundary, in [0, 1].
func (c *Chart) PartialBrickCompletion() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.partial.CompletionPercent
}

// LastPrice returns the most recently ingested price.
func (c *Chart) LastPrice() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPrice
}

// LastUpdateTime returns the timestamp of the most recent accepted tick.
func (c *Chart) LastUpdateTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUpdate
}

// HasConsecutiveDownBricks reports whether the last n finalized bricks are
// all down. Requires at least n bricks.
func (c *Chart) HasConsecutiveDownBricks(n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasRunLocked(n, false)
}

// HasConsecutiveUpBricks reports whether the last n finalized bricks are all
// up. Requires at least n bricks.
func (c *Chart) HasConsecutiveUpBricks(n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasRunLocked(n, true)
}

func (c *Chart) hasRunLocked(n int, up bool) bool {
	if n <= 0 || len(c.bricks) < n {
		return false
	}
	for i := len(c.bricks) - n; i < len(c.bricks); i++ {
		if c.bricks[i].IsUp != up {
			return false
		}
	}
	return true
}

// ConsecutiveUpCount returns the length of the trailing run of up bricks.
func (c *Chart) ConsecutiveUpCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for i := len(c.bricks) - 1; i >= 0 && c.bricks[i].IsUp; i-- {
		count++
	}
	return count
}

// ConsecutiveDownCount returns the length of the trailing run of down bricks.
func (c *Chart) ConsecutiveDownCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for i := len(c.bricks) - 1; i >= 0 && !c.bricks[i].IsUp; i-- {
		count++
	}
	return count
}

// HasGreenRedGreenPattern reports whether the last three finalized bricks are
// exactly up, down, up.
func (c *Chart) HasGreenRedGreenPattern() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.bricks)
	if n < 3 {
		return false
	}
	return c.bricks[n-3].IsUp && !c.bricks[n-2].IsUp && c.bricks[n-1].IsUp
}

// HasRedGreenRedPattern reports whether the last three finalized bricks are
// exactly down, up, down.
func (c *Chart) HasRedGreenRedPattern() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.bricks)
	if n < 3 {
		return false
	}
	return !c.bricks[n-3].IsUp && c.bricks[n-2].IsUp && !c.bricks[n-1].IsUp
}

// NextUpBrickLevel returns the price at which the next up brick would close.
func (c *Chart) NextUpBrickLevel() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextLevelLocked(domain.SideBuy)
}

// NextDownBrickLevel returns the price at which the next down brick would
// close.
func (c *Chart) NextDownBrickLevel() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextLevelLocked(domain.SideSell)
}

func (c *Chart) nextLevelLocked(side domain.Side) float64 {
	base := c.lastPrice
	if len(c.bricks) > 0 {
		base = c.bricks[len(c.bricks)-1].Close
	}
	if side == domain.SideBuy {
		return base + c.brickSize
	}
	return base - c.brickSize
}

// CalculateSetup1EntryPrice returns the entry level for a Setup 1 signal:
// the next brick level in the signal direction, pushed out by tickBuffer
// ticks to avoid exact-boundary fills.
func (c *Chart) CalculateSetup1EntryPrice(side domain.Side, tickBuffer int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	base := c.nextLevelLocked(side)
	adj := float64(tickBuffer) * c.tickValue
	if side == domain.SideBuy {
		return base + adj
	}
	return base - adj
}

// CalculateSetup2EntryPrice returns the entry level for a Setup 2 signal.
// The reference behavior prices Setup 2 entries identically to Setup 1.
func (c *Chart) CalculateSetup2EntryPrice(side domain.Side, tickBuffer int) float64 {
	return c.CalculateSetup1EntryPrice(side, tickBuffer)
}

// CalculateStopLoss returns the protective stop for the given side: one brick
// beyond the last finalized close, pushed out by tickBuffer ticks. With no
// finalized bricks it degrades to the last price.
func (c *Chart) CalculateStopLoss(side domain.Side, tickBuffer int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.bricks) == 0 {
		return c.lastPrice
	}

	lastClose := c.bricks[len(c.bricks)-1].Close
	adj := float64(tickBuffer) * c.tickValue
	if side == domain.SideBuy {
		return lastClose - c.brickSize - adj
	}
	return lastClose + c.brickSize + adj
}

// Reset clears all bricks and the partial brick, returning the chart to its
// unseeded state. The brick size is kept.
func (c *Chart) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bricks = nil
	c.partial = domain.PartialBrick{}
	c.seeded = false
	c.lastPrice = 0
	c.log.Debug("chart reset")
}
