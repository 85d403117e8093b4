// Package broker defines the Broker interface and provides implementations
// for executing orders and managing accounts across different venues.
package broker

import (
	"context"

	"mastermind/internal/domain"
)

// Broker abstracts order execution and account access.
type Broker interface {
	// Name returns the broker identifier (e.g. "alpaca", "simulator").
	Name() string

	// SubmitOrder sends an order for execution and returns the order with
	// venue-assigned fields (ID, status, timestamps) populated.
	SubmitOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)

	// CancelOrder requests cancellation of an open order by its ID.
	CancelOrder(ctx context.Context, orderID string) error

	// GetPositions returns all current positions held at the venue.
	GetPositions(ctx context.Context) ([]domain.Position, error)

	// GetAccount returns a snapshot of the account's financial metrics.
	GetAccount(ctx context.Context) (*domain.AccountInfo, error)
}
