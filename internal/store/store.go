// Package store defines storage interfaces for persisting and retrieving
// ticks, bricks, orders, signals, and counter records.
package store

import (
	"context"
	"time"

	"mastermind/internal/domain"
	"mastermind/internal/risk"
)

// TickStore persists and retrieves raw trade (tick) data.
type TickStore interface {
	// WriteTicks persists a batch of ticks to storage.
	WriteTicks(ctx context.Context, ticks []domain.Tick) error

	// ReadTicks returns ticks for the given symbol within [start, end].
	ReadTicks(ctx context.Context, symbol string, start, end time.Time) ([]domain.Tick, error)
}

// BrickStore persists and retrieves finalized Renko bricks.
type BrickStore interface {
	// WriteBricks persists a batch of finalized bricks for a symbol.
	WriteBricks(ctx context.Context, symbol string, bricks []domain.Brick) error

	// ReadBricks returns bricks for the given symbol within [start, end].
	ReadBricks(ctx context.Context, symbol string, start, end time.Time) ([]domain.Brick, error)

	// ListSymbols returns all distinct symbols with stored bricks.
	ListSymbols(ctx context.Context) ([]string, error)
}

// OrderStore persists and retrieves order records.
type OrderStore interface {
	// SaveOrder inserts a new order into storage.
	SaveOrder(ctx context.Context, order *domain.Order) error

	// GetOrder retrieves a single order by its ID.
	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// ListOrders returns all orders matching the given status, newest first.
	ListOrders(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error)

	// UpdateOrder persists changes to an existing order.
	UpdateOrder(ctx context.Context, order *domain.Order) error
}

// SignalStore persists and retrieves trading signals.
type SignalStore interface {
	// SaveSignal inserts a new signal into storage.
	SaveSignal(ctx context.Context, signal *domain.TradingSignal) error

	// ListSignals returns the most recent signals for a symbol, up to limit.
	// An empty symbol matches all symbols.
	ListSignals(ctx context.Context, symbol string, limit int) ([]domain.TradingSignal, error)
}

// CounterStore persists completed trading counters.
type CounterStore interface {
	// SaveCounter inserts a completed counter record.
	SaveCounter(ctx context.Context, counter risk.Counter) error

	// ListCounters returns all stored counters, oldest first.
	ListCounters(ctx context.Context) ([]risk.Counter, error)
}
