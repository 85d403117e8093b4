package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mastermind/internal/domain"
	"mastermind/internal/risk"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ OrderStore = (*SQLiteStore)(nil)
var _ SignalStore = (*SQLiteStore)(nil)
var _ CounterStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id              TEXT PRIMARY KEY,
	symbol          TEXT NOT NULL,
	side            TEXT NOT NULL,
	type            TEXT NOT NULL,
	price           REAL NOT NULL,
	quantity        REAL NOT NULL,
	filled_quantity REAL NOT NULL DEFAULT 0,
	stop_loss       REAL NOT NULL DEFAULT 0,
	take_profit     REAL NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	strategy_id     TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);

CREATE TABLE IF NOT EXISTS signals (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol      TEXT NOT NULL,
	pattern     TEXT NOT NULL,
	side        TEXT NOT NULL,
	entry_price REAL NOT NULL,
	stop_loss   REAL NOT NULL,
	take_profit REAL NOT NULL,
	quantity    REAL NOT NULL,
	confidence  REAL NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_signals_symbol ON signals(symbol);

CREATE TABLE IF NOT EXISTS counters (
	number          INTEGER PRIMARY KEY,
	orders_count    INTEGER NOT NULL,
	initial_capital REAL NOT NULL,
	total_pnl       REAL NOT NULL,
	total_charges   REAL NOT NULL,
	start_time      INTEGER NOT NULL,
	end_time        INTEGER NOT NULL,
	complete        INTEGER NOT NULL
);
`

// SQLiteStore implements OrderStore, SignalStore, and CounterStore backed by
// a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, runs the
// schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db %s: %w", dbPath, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// OrderStore implementation
// ---------------------------------------------------------------------------

// SaveOrder inserts a new order into the database.
func (s *SQLiteStore) SaveOrder(ctx context.Context, order *domain.Order) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders
			(id, symbol, side, type, price, quantity, filled_quantity,
			 stop_loss, take_profit, status, strategy_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.Symbol, string(order.Side), string(order.Type),
		order.Price, order.Quantity, order.FilledQuantity,
		order.StopLoss, order.TakeProfit, string(order.Status), order.StrategyID,
		order.CreatedAt.UnixMilli(), order.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("saving order %s: %w", order.ID, err)
	}
	return nil
}

// GetOrder retrieves a single order by its ID.
func (s *SQLiteStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, symbol, side, type, price, quantity, filled_quantity,
		       stop_loss, take_profit, status, strategy_id, created_at, updated_at
		FROM orders WHERE id = ?`, id)

	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading order %s: %w", id, err)
	}
	return o, nil
}

// ListOrders returns all orders with the given status, newest first.
func (s *SQLiteStore) ListOrders(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, side, type, price, quantity, filled_quantity,
		       stop_loss, take_profit, status, strategy_id, created_at, updated_at
		FROM orders WHERE status = ? ORDER BY created_at DESC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// UpdateOrder persists changes to an existing order.
func (s *SQLiteStore) UpdateOrder(ctx context.Context, order *domain.Order) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET
			filled_quantity = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		order.FilledQuantity, string(order.Status), order.UpdatedAt.UnixMilli(), order.ID,
	)
	if err != nil {
		return fmt.Errorf("updating order %s: %w", order.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order %s not found", order.ID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(r rowScanner) (*domain.Order, error) {
	var (
		o                    domain.Order
		side, otype, status  string
		createdMs, updatedMs int64
	)
	err := r.Scan(&o.ID, &o.Symbol, &side, &otype, &o.Price, &o.Quantity,
		&o.FilledQuantity, &o.StopLoss, &o.TakeProfit, &status, &o.StrategyID,
		&createdMs, &updatedMs)
	if err != nil {
		return nil, err
	}
	o.Side = domain.Side(side)
	o.Type = domain.OrderType(otype)
	o.Status = domain.OrderStatus(status)
	o.CreatedAt = time.UnixMilli(createdMs)
	o.UpdatedAt = time.UnixMilli(updatedMs)
	return &o, nil
}

// ---------------------------------------------------------------------------
// SignalStore implementation
// ---------------------------------------------------------------------------

// SaveSignal inserts a new signal into the database.
func (s *SQLiteStore) SaveSignal(ctx context.Context, signal *domain.TradingSignal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signals
			(symbol, pattern, side, entry_price, stop_loss, take_profit,
			 quantity, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		signal.Symbol, string(signal.Pattern), string(signal.Side),
		signal.EntryPrice, signal.StopLoss, signal.TakeProfit,
		signal.Quantity, signal.Confidence, signal.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("saving signal for %s: %w", signal.Symbol, err)
	}
	return nil
}

// ListSignals returns the most recent signals for a symbol, up to limit. An
// empty symbol matches all symbols.
func (s *SQLiteStore) ListSignals(ctx context.Context, symbol string, limit int) ([]domain.TradingSignal, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT symbol, pattern, side, entry_price, stop_loss, take_profit,
		       quantity, confidence, created_at
		FROM signals`
	args := []any{}
	if symbol != "" {
		query += " WHERE symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing signals: %w", err)
	}
	defer rows.Close()

	var signals []domain.TradingSignal
	for rows.Next() {
		var (
			sig           domain.TradingSignal
			pattern, side string
			createdMs     int64
		)
		if err := rows.Scan(&sig.Symbol, &pattern, &side, &sig.EntryPrice,
			&sig.StopLoss, &sig.TakeProfit, &sig.Quantity, &sig.Confidence,
			&createdMs); err != nil {
			return nil, fmt.Errorf("scanning signal: %w", err)
		}
		sig.Pattern = domain.PatternType(pattern)
		sig.Side = domain.Side(side)
		sig.Timestamp = time.UnixMilli(createdMs)
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

// ---------------------------------------------------------------------------
// CounterStore implementation
// ---------------------------------------------------------------------------

// SaveCounter upserts a completed counter record. The per-order detail stays
// in the orders table; the counter row carries the aggregate.
func (s *SQLiteStore) SaveCounter(ctx context.Context, counter risk.Counter) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO counters
			(number, orders_count, initial_capital, total_pnl, total_charges,
			 start_time, end_time, complete)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		counter.Number, counter.OrdersCount, counter.InitialCapital,
		counter.TotalPnL, counter.TotalCharges,
		counter.StartTime.UnixMilli(), counter.EndTime.UnixMilli(),
		boolToInt(counter.Complete),
	)
	if err != nil {
		return fmt.Errorf("saving counter %d: %w", counter.Number, err)
	}
	return nil
}

// ListCounters returns all stored counters, oldest first.
func (s *SQLiteStore) ListCounters(ctx context.Context) ([]risk.Counter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT number, orders_count, initial_capital, total_pnl, total_charges,
		       start_time, end_time, complete
		FROM counters ORDER BY number ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing counters: %w", err)
	}
	defer rows.Close()

	var counters []risk.Counter
	for rows.Next() {
		var (
			c              risk.Counter
			startMs, endMs int64
			complete       int
		)
		if err := rows.Scan(&c.Number, &c.OrdersCount, &c.InitialCapital,
			&c.TotalPnL, &c.TotalCharges, &startMs, &endMs, &complete); err != nil {
			return nil, fmt.Errorf("scanning counter: %w", err)
		}
		c.StartTime = time.UnixMilli(startMs)
		c.EndTime = time.UnixMilli(endMs)
		c.Complete = complete != 0
		counters = append(counters, c)
	}
	return counters, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
