package risk

import (
	"time"

	"mastermind/internal/domain"
)

// Counter is a fixed-size batch of orders sharing one capital-assessment
// window. Exactly one counter is open and mutable at a time; once complete
// it is archived and never reopened.
type Counter struct {
	Number         int            `json:"number"`
	Orders         []domain.Order `json:"orders,omitempty"`
	OrdersCount    int            `json:"orders_count"`
	InitialCapital float64        `json:"initial_capital"`
	TotalPnL       float64        `json:"total_pnl"`
	TotalCharges   float64        `json:"total_charges"`
	StartTime      time.Time      `json:"start_time"`
	EndTime        time.Time      `json:"end_time"`
	Complete       bool           `json:"complete"`
}

// clone returns a deep copy so archived counters stay immutable to callers.
func (c *Counter) clone() Counter {
	out := *c
	out.Orders = make([]domain.Order, len(c.Orders))
	copy(out.Orders, c.Orders)
	return out
}

// StartNewCounter opens a fresh counter if none is open or the current one
// is complete. It returns the number of the now-current counter either way.
func (e *Engine) StartNewCounter() int {
	e.counterMu.Lock()
	defer e.counterMu.Unlock()
	return e.startNewCounterLocked()
}

func (e *Engine) startNewCounterLocked() int {
	if e.current != nil && !e.current.Complete {
		return e.current.Number
	}
	e.current = &Counter{
		Number:         len(e.completed) + 1,
		InitialCapital: e.lastEquitySnapshot(),
		StartTime:      time.Now(),
	}
	e.log.Info("started new counter", "counter", e.current.Number)
	return e.current.Number
}

// AddOrderToCounter appends an order to the current counter, opening one if
// necessary, and completes the counter automatically once it holds
// OrdersPerCounter orders.
func (e *Engine) AddOrderToCounter(order domain.Order) {
	perCounter := e.Parameters().OrdersPerCounter

	e.counterMu.Lock()
	defer e.counterMu.Unlock()

	e.startNewCounterLocked()
	e.current.Orders = append(e.current.Orders, order)
	e.current.OrdersCount++

	if e.current.OrdersCount >= perCounter {
		e.completeCounterLocked()
	}
}

// AddCounterPnL accrues realized profit and charges onto the current counter
// once a trade in it closes.
func (e *Engine) AddCounterPnL(pnl, charges float64) {
	e.counterMu.Lock()
	defer e.counterMu.Unlock()
	if e.current == nil {
		return
	}
	e.current.TotalPnL += pnl
	e.current.TotalCharges += charges
}

// CompleteCounter stamps the end time, marks the current counter complete,
// and archives it. Completing an already-complete or missing counter is a
// no-op.
func (e *Engine) CompleteCounter() {
	e.counterMu.Lock()
	defer e.counterMu.Unlock()
	e.completeCounterLocked()
}

func (e *Engine) completeCounterLocked() {
	if e.current == nil || e.current.Complete {
		return
	}
	e.current.Complete = true
	e.current.EndTime = time.Now()
	e.completed = append(e.completed, e.current.clone())
	e.log.Info("counter complete",
		"counter", e.current.Number,
		"orders", e.current.OrdersCount,
		"pnl", e.current.TotalPnL,
	)
}

// IsCounterComplete reports whether the current counter has been completed.
func (e *Engine) IsCounterComplete() bool {
	e.counterMu.Lock()
	defer e.counterMu.Unlock()
	return e.current != nil && e.current.Complete
}

// OrdersInCurrentCounter returns how many orders the current counter holds.
func (e *Engine) OrdersInCurrentCounter() int {
	e.counterMu.Lock()
	defer e.counterMu.Unlock()
	if e.current == nil {
		return 0
	}
	return e.current.OrdersCount
}

// CurrentCounter returns a copy of the current counter, if one is open.
func (e *Engine) CurrentCounter() (Counter, bool) {
	e.counterMu.Lock()
	defer e.counterMu.Unlock()
	if e.current == nil {
		return Counter{}, false
	}
	return e.current.clone(), true
}

// CompletedCounters returns copies of all archived counters, oldest first.
func (e *Engine) CompletedCounters() []Counter {
	e.counterMu.Lock()
	defer e.counterMu.Unlock()
	out := make([]Counter, len(e.completed))
	for i := range e.completed {
		out[i] = e.completed[i].clone()
	}
	return out
}

// CounterPnL returns the current counter's accrued profit.
func (e *Engine) CounterPnL() float64 {
	e.counterMu.Lock()
	defer e.counterMu.Unlock()
	if e.current == nil {
		return 0
	}
	return e.current.TotalPnL
}

// CapitalAfterCounter returns the capital available to the next counter:
// the initial allocation plus the current counter's profit minus charges.
func (e *Engine) CapitalAfterCounter(initial float64) float64 {
	e.counterMu.Lock()
	defer e.counterMu.Unlock()
	if e.current == nil {
		return initial
	}
	return initial + e.current.TotalPnL - e.current.TotalCharges
}
