package broker

import (
	"context"
	"testing"

	"mastermind/internal/domain"
)

func newBuyOrder(price, qty, stop, take float64) *domain.Order {
	return &domain.Order{
		Symbol:     "EURUSD",
		Side:       domain.SideBuy,
		Type:       domain.OrderTypeLimit,
		Price:      price,
		Quantity:   qty,
		StopLoss:   stop,
		TakeProfit: take,
	}
}

func TestSimulatorSubmitOrderFillsImmediately(t *testing.T) {
	b := NewSimulatorBroker(100000, nil)
	ctx := context.Background()

	placed, err := b.SubmitOrder(ctx, newBuyOrder(1.10, 1000, 1.09, 1.12))
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if placed.Status != domain.OrderStatusFilled {
		t.Errorf("Status = %v, want %v", placed.Status, domain.OrderStatusFilled)
	}
	if placed.ID == "" {
		t.Error("filled order has empty ID")
	}

	positions, err := b.GetPositions(ctx)
	if err != nil {
		t.Fatalf("GetPositions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("got %d positions, want 1", len(positions))
	}
	if positions[0].AveragePrice != 1.10 || positions[0].Quantity != 1000 {
		t.Errorf("position = %v @ %v, want 1000 @ 1.10",
			positions[0].Quantity, positions[0].AveragePrice)
	}
}

func TestSimulatorRejectsBadOrders(t *testing.T) {
	b := NewSimulatorBroker(100000, nil)
	ctx := context.Background()

	if _, err := b.SubmitOrder(ctx, newBuyOrder(1.10, 0, 0, 0)); err == nil {
		t.Error("SubmitOrder accepted zero quantity")
	}
	if _, err := b.SubmitOrder(ctx, newBuyOrder(0, 100, 0, 0)); err == nil {
		t.Error("SubmitOrder accepted zero price")
	}
}

func TestSimulatorStopLossClosesPosition(t *testing.T) {
	b := NewSimulatorBroker(100000, nil)
	ctx := context.Background()

	var closedPnL float64
	var closedOrder domain.Order
	b.SetTradeClosedFunc(func(o domain.Order, pnl float64) {
		closedOrder = o
		closedPnL = pnl
	})

	if _, err := b.SubmitOrder(ctx, newBuyOrder(1.10, 1000, 1.09, 1.12)); err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}

	b.UpdatePrice("EURUSD", 1.085)

	positions, _ := b.GetPositions(ctx)
	if len(positions) != 0 {
		t.Fatalf("position still open after stop hit")
	}
	// Filled at the stop level, not the traded-through price.
	wantPnL := (1.09 - 1.10) * 1000
	if closedPnL != wantPnL {
		t.Errorf("closed pnl = %v, want %v", closedPnL, wantPnL)
	}
	if closedOrder.Symbol != "EURUSD" {
		t.Errorf("closed order symbol = %q, want EURUSD", closedOrder.Symbol)
	}

	account, _ := b.GetAccount(ctx)
	if account.Equity != 100000+wantPnL {
		t.Errorf("equity = %v, want %v", account.Equity, 100000+wantPnL)
	}
}

func TestSimulatorTakeProfitClosesPosition(t *testing.T) {
	b := NewSimulatorBroker(100000, nil)
	ctx := context.Background()

	var closedPnL float64
	b.SetTradeClosedFunc(func(_ domain.Order, pnl float64) { closedPnL = pnl })

	b.SubmitOrder(ctx, newBuyOrder(1.10, 1000, 1.09, 1.12))
	b.UpdatePrice("EURUSD", 1.125)

	positions, _ := b.GetPositions(ctx)
	if len(positions) != 0 {
		t.Fatal("position still open after take profit hit")
	}
	wantPnL := (1.12 - 1.10) * 1000
	if closedPnL != wantPnL {
		t.Errorf("closed pnl = %v, want %v", closedPnL, wantPnL)
	}
}

func TestSimulatorUpdatePriceMarksUnrealized(t *testing.T) {
	b := NewSimulatorBroker(100000, nil)
	ctx := context.Background()

	b.SubmitOrder(ctx, newBuyOrder(1.10, 1000, 1.05, 1.20))
	b.UpdatePrice("EURUSD", 1.11)

	positions, _ := b.GetPositions(ctx)
	if len(positions) != 1 {
		t.Fatal("position closed by a price inside the exit band")
	}
	wantUPL := (1.11 - 1.10) * 1000
	if got := positions[0].UnrealizedPnL; got != wantUPL {
		t.Errorf("UnrealizedPnL = %v, want %v", got, wantUPL)
	}

	account, _ := b.GetAccount(ctx)
	if account.Equity != 100000+wantUPL {
		t.Errorf("equity = %v, want %v", account.Equity, 100000+wantUPL)
	}
}

func TestSimulatorOppositeOrderClosesPosition(t *testing.T) {
	b := NewSimulatorBroker(100000, nil)
	ctx := context.Background()

	b.SubmitOrder(ctx, newBuyOrder(1.10, 1000, 0, 0))

	sell := &domain.Order{
		Symbol:   "EURUSD",
		Side:     domain.SideSell,
		Type:     domain.OrderTypeLimit,
		Price:    1.11,
		Quantity: 1000,
	}
	if _, err := b.SubmitOrder(ctx, sell); err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}

	positions, _ := b.GetPositions(ctx)
	if len(positions) != 0 {
		t.Error("position still open after opposite order")
	}
	account, _ := b.GetAccount(ctx)
	if account.Balance != 100010 {
		t.Errorf("balance = %v, want 100010", account.Balance)
	}
}

func TestSimulatorCancelOrder(t *testing.T) {
	b := NewSimulatorBroker(100000, nil)
	ctx := context.Background()

	placed, _ := b.SubmitOrder(ctx, newBuyOrder(1.10, 100, 0, 0))
	if err := b.CancelOrder(ctx, placed.ID); err == nil {
		t.Error("CancelOrder succeeded on a filled order")
	}
	if err := b.CancelOrder(ctx, "missing"); err == nil {
		t.Error("CancelOrder succeeded on an unknown order")
	}
}
