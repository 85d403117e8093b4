package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mastermind/internal/domain"
	"mastermind/internal/id"
)

// Compile-time interface check.
var _ Broker = (*SimulatorBroker)(nil)

// TradeClosedFunc is invoked when a simulated position closes, with the
// originating order and the realized profit or loss.
type TradeClosedFunc func(order domain.Order, pnl float64)

// SimulatorBroker executes orders against an in-memory book for paper
// trading and replay. Market orders fill immediately at the order price;
// stop-loss and take-profit exits are evaluated on every UpdatePrice call.
type SimulatorBroker struct {
	mu        sync.Mutex
	cash      float64
	positions map[string]*domain.Position
	orders    map[string]*domain.Order
	// entry order per open position, for the close callback.
	entries map[string]domain.Order

	onClosed TradeClosedFunc
	log      *slog.Logger
}

// NewSimulatorBroker creates a simulator funded with initialCapital.
func NewSimulatorBroker(initialCapital float64, log *slog.Logger) *SimulatorBroker {
	if log == nil {
		log = slog.Default()
	}
	return &SimulatorBroker{
		cash:      initialCapital,
		positions: make(map[string]*domain.Position),
		orders:    make(map[string]*domain.Order),
		entries:   make(map[string]domain.Order),
		log:       log.With("broker", "simulator"),
	}
}

// Name returns "simulator".
func (b *SimulatorBroker) Name() string { return "simulator" }

// SetTradeClosedFunc registers the callback fired when a position closes.
func (b *SimulatorBroker) SetTradeClosedFunc(fn TradeClosedFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onClosed = fn
}

// SubmitOrder fills the order immediately at its price and opens or extends
// the symbol's position. A second order on the opposite side closes the
// position at the order price.
func (b *SimulatorBroker) SubmitOrder(_ context.Context, order *domain.Order) (*domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if order.Quantity <= 0 {
		return nil, fmt.Errorf("order quantity must be positive, got %v", order.Quantity)
	}
	if order.Price <= 0 {
		return nil, fmt.Errorf("simulator requires a priced order, got %v", order.Price)
	}

	if order.ID == "" {
		order.ID = id.New()
	}
	now := time.Now()
	order.Status = domain.OrderStatusFilled
	order.FilledQuantity = order.Quantity
	order.CreatedAt = now
	order.UpdatedAt = now
	b.orders[order.ID] = order

	pos, open := b.positions[order.Symbol]
	switch {
	case !open:
		b.positions[order.Symbol] = &domain.Position{
			Symbol:       order.Symbol,
			Side:         order.Side,
			Quantity:     order.Quantity,
			AveragePrice: order.Price,
			CurrentPrice: order.Price,
			OpenTime:     now,
			UpdateTime:   now,
		}
		b.entries[order.Symbol] = *order
	case pos.Side == order.Side:
		total := pos.Quantity + order.Quantity
		pos.AveragePrice = (pos.AveragePrice*pos.Quantity + order.Price*order.Quantity) / total
		pos.Quantity = total
		pos.UpdateTime = now
	default:
		b.closePositionLocked(order.Symbol, order.Price)
	}

	b.log.Info("order filled",
		"id", order.ID,
		"symbol", order.Symbol,
		"side", order.Side,
		"price", order.Price,
		"qty", order.Quantity,
	)
	return order, nil
}

// CancelOrder marks an order cancelled. Orders fill instantly here, so this
// only matters for bookkeeping parity with real brokers.
func (b *SimulatorBroker) CancelOrder(_ context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s not found", orderID)
	}
	if o.Status == domain.OrderStatusFilled {
		return fmt.Errorf("order %s already filled", orderID)
	}
	o.Status = domain.OrderStatusCancelled
	o.UpdatedAt = time.Now()
	return nil
}

// GetPositions returns copies of all open simulated positions.
func (b *SimulatorBroker) GetPositions(_ context.Context) ([]domain.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	positions := make([]domain.Position, 0, len(b.positions))
	for _, p := range b.positions {
		positions = append(positions, *p)
	}
	return positions, nil
}

// GetAccount returns the simulated account. Equity is cash plus the
// unrealized value of open positions.
func (b *SimulatorBroker) GetAccount(_ context.Context) (*domain.AccountInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	unrealized := 0.0
	for _, p := range b.positions {
		unrealized += p.UnrealizedPnL
	}
	return &domain.AccountInfo{
		Balance:    b.cash,
		Equity:     b.cash + unrealized,
		FreeMargin: b.cash + unrealized,
		Currency:   "USD",
		LastUpdate: time.Now(),
	}, nil
}

// UpdatePrice marks the symbol's position to the new price and closes it if
// the move reached its stop loss or take profit. The stop is checked first;
// when one tick crosses both levels the pessimistic outcome wins.
func (b *SimulatorBroker) UpdatePrice(symbol string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos, ok := b.positions[symbol]
	if !ok {
		return
	}

	pos.CurrentPrice = price
	pos.UpdateTime = time.Now()
	if pos.Side == domain.SideBuy {
		pos.UnrealizedPnL = (price - pos.AveragePrice) * pos.Quantity
	} else {
		pos.UnrealizedPnL = (pos.AveragePrice - price) * pos.Quantity
	}

	entry, hasEntry := b.entries[symbol]
	if !hasEntry {
		return
	}

	if stop := entry.StopLoss; stop > 0 && crossed(pos.Side, price, stop, false) {
		b.log.Info("stop loss hit", "symbol", symbol, "price", price, "stop", stop)
		b.closePositionLocked(symbol, stop)
		return
	}
	if take := entry.TakeProfit; take > 0 && crossed(pos.Side, price, take, true) {
		b.log.Info("take profit hit", "symbol", symbol, "price", price, "take", take)
		b.closePositionLocked(symbol, take)
	}
}

// crossed reports whether price has reached the exit level. favorable
// selects the profit side of the position.
func crossed(side domain.Side, price, level float64, favorable bool) bool {
	long := side == domain.SideBuy
	if long == favorable {
		return price >= level
	}
	return price <= level
}

func (b *SimulatorBroker) closePositionLocked(symbol string, price float64) {
	pos, ok := b.positions[symbol]
	if !ok {
		return
	}

	var pnl float64
	if pos.Side == domain.SideBuy {
		pnl = (price - pos.AveragePrice) * pos.Quantity
	} else {
		pnl = (pos.AveragePrice - price) * pos.Quantity
	}
	b.cash += pnl

	entry := b.entries[symbol]
	delete(b.positions, symbol)
	delete(b.entries, symbol)

	b.log.Info("position closed",
		"symbol", symbol,
		"price", price,
		"pnl", pnl,
	)

	if b.onClosed != nil {
		// Release the lock for the callback; it typically re-enters the
		// risk engine and may call back into the broker.
		fn := b.onClosed
		b.mu.Unlock()
		fn(entry, pnl)
		b.mu.Lock()
	}
}
