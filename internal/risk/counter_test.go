package risk

import (
	"fmt"
	"testing"

	"mastermind/internal/domain"
)

func counterParams(ordersPerCounter int) domain.RiskParameters {
	p := domain.DefaultRiskParameters()
	p.OrdersPerCounter = ordersPerCounter
	return p
}

func testOrder(n int) domain.Order {
	return domain.Order{ID: fmt.Sprintf("order-%d", n), Symbol: "EURUSD", Side: domain.SideBuy}
}

func TestStartNewCounterNumbersSequentially(t *testing.T) {
	e := NewEngine(counterParams(2), nil)

	if n := e.StartNewCounter(); n != 1 {
		t.Errorf("first StartNewCounter() = %d, want 1", n)
	}
	// Re-starting while open is a no-op.
	if n := e.StartNewCounter(); n != 1 {
		t.Errorf("StartNewCounter() while open = %d, want 1", n)
	}

	e.CompleteCounter()
	if n := e.StartNewCounter(); n != 2 {
		t.Errorf("StartNewCounter() after completion = %d, want 2", n)
	}
}

func TestAddOrderToCounterAutoStartsAndCompletes(t *testing.T) {
	e := NewEngine(counterParams(3), nil)

	e.AddOrderToCounter(testOrder(1))
	if got := e.OrdersInCurrentCounter(); got != 1 {
		t.Errorf("OrdersInCurrentCounter() = %d, want 1", got)
	}
	if e.IsCounterComplete() {
		t.Error("counter complete after 1 of 3 orders")
	}

	e.AddOrderToCounter(testOrder(2))
	e.AddOrderToCounter(testOrder(3))
	if !e.IsCounterComplete() {
		t.Error("counter not complete after reaching orders_per_counter")
	}

	completed := e.CompletedCounters()
	if len(completed) != 1 {
		t.Fatalf("CompletedCounters() returned %d counters, want 1", len(completed))
	}
	if completed[0].OrdersCount != 3 {
		t.Errorf("archived OrdersCount = %d, want 3", completed[0].OrdersCount)
	}
	if completed[0].EndTime.IsZero() {
		t.Error("archived counter has zero EndTime")
	}

	// The next order opens counter 2.
	e.AddOrderToCounter(testOrder(4))
	current, ok := e.CurrentCounter()
	if !ok {
		t.Fatal("CurrentCounter() returned false after new order")
	}
	if current.Number != 2 {
		t.Errorf("current counter Number = %d, want 2", current.Number)
	}
}

func TestCounterCapturesInitialCapital(t *testing.T) {
	e := NewEngine(counterParams(10), nil)

	// No equity seen yet: the first counter starts at zero capital.
	e.StartNewCounter()
	c, _ := e.CurrentCounter()
	if c.InitialCapital != 0 {
		t.Errorf("InitialCapital before any snapshot = %v, want 0", c.InitialCapital)
	}

	e.CalculateDrawdown(100000)
	e.CompleteCounter()
	e.StartNewCounter()

	c, _ = e.CurrentCounter()
	if c.InitialCapital != 100000 {
		t.Errorf("InitialCapital = %v, want 100000", c.InitialCapital)
	}
}

func TestCompleteCounterIdempotent(t *testing.T) {
	e := NewEngine(counterParams(10), nil)
	e.StartNewCounter()

	e.CompleteCounter()
	e.CompleteCounter()

	if got := len(e.CompletedCounters()); got != 1 {
		t.Errorf("CompletedCounters() = %d entries after double completion, want 1", got)
	}
}

func TestAddCounterPnLAndCapital(t *testing.T) {
	e := NewEngine(counterParams(10), nil)
	e.StartNewCounter()

	e.AddCounterPnL(250, 10)
	e.AddCounterPnL(-100, 5)

	if got := e.CounterPnL(); got != 150 {
		t.Errorf("CounterPnL() = %v, want 150", got)
	}
	if got := e.CapitalAfterCounter(10000); got != 10135 {
		t.Errorf("CapitalAfterCounter(10000) = %v, want 10135", got)
	}
}

func TestArchivedCountersAreImmutable(t *testing.T) {
	e := NewEngine(counterParams(1), nil)
	e.AddOrderToCounter(testOrder(1))

	first := e.CompletedCounters()
	first[0].Orders[0].Symbol = "MUTATED"
	first[0].TotalPnL = 999

	again := e.CompletedCounters()
	if again[0].Orders[0].Symbol != "EURUSD" {
		t.Error("mutating a returned counter leaked into the archive")
	}
	if again[0].TotalPnL != 0 {
		t.Errorf("archived TotalPnL = %v, want 0", again[0].TotalPnL)
	}
}
