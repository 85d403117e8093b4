// Package domain defines the core data types shared across the trading
// system: ticks, Renko bricks, pattern results, signals, orders, positions,
// and risk configuration.
package domain

import "time"

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Tick is a single trade print from the market-data feed. The core only
// requires symbol, price, and timestamp; everything else is optional feed
// metadata.
type Tick struct {
	Symbol    string
	Price     float64
	Size      int64
	Exchange  string
	ID        string
	Timestamp time.Time
}

// Brick is one finalized Renko brick: exactly BrickSize of price movement.
// Bricks carry no true wicks in this traditional-Renko variant, so High and
// Low equal the greater and lesser of Open and Close. Immutable once created.
type Brick struct {
	Open      float64   `json:"open"`
	Close     float64   `json:"close"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Timestamp time.Time `json:"timestamp"`
	IsUp      bool      `json:"is_up"`
}

// NewBrick creates a finalized brick with High/Low derived from Open/Close.
func NewBrick(open, close float64, ts time.Time, isUp bool) Brick {
	b := Brick{Open: open, Close: close, Timestamp: ts, IsUp: isUp}
	if open > close {
		b.High, b.Low = open, close
	} else {
		b.High, b.Low = close, open
	}
	return b
}

// PartialBrick tracks the in-progress brick forming from the last finalized
// close toward the next brick boundary. Overwritten on every tick.
type PartialBrick struct {
	Open              float64   `json:"open"`
	Close             float64   `json:"close"`
	IsUp              bool      `json:"is_up"`
	CompletionPercent float64   `json:"completion_percent"` // 0.0 to 1.0
	Timestamp         time.Time `json:"timestamp"`
}

// ---------------------------------------------------------------------------
// Orders, positions, account
// ---------------------------------------------------------------------------

// Side is the direction of an order or position.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType identifies how an order is priced.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
	OrderTypeStop   OrderType = "stop"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// Order is an order intent produced by the engine and handed to a broker.
type Order struct {
	ID             string
	Symbol         string
	Side           Side
	Type           OrderType
	Price          float64
	Quantity       float64
	FilledQuantity float64
	StopLoss       float64
	TakeProfit     float64
	Status         OrderStatus
	StrategyID     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Position is an open holding at the execution venue.
type Position struct {
	Symbol        string
	Side          Side
	Quantity      float64
	AveragePrice  float64
	CurrentPrice  float64
	UnrealizedPnL float64
	RealizedPnL   float64
	OpenTime      time.Time
	UpdateTime    time.Time
}

// MarketValue returns the position's notional value at the current price.
func (p Position) MarketValue() float64 { return p.Quantity * p.CurrentPrice }

// AccountInfo is a read-only snapshot of the trading account.
type AccountInfo struct {
	Balance    float64
	Equity     float64
	Margin     float64
	FreeMargin float64
	Currency   string
	LastUpdate time.Time
}

// InstrumentSpec describes the tradable instrument the engine is sizing for.
type InstrumentSpec struct {
	Symbol       string
	TickSize     float64
	TickValue    float64
	ContractSize float64
	Precision    int
}

// ---------------------------------------------------------------------------
// Patterns and signals
// ---------------------------------------------------------------------------

// PatternType identifies which brick setup fired.
type PatternType string

const (
	PatternSetup1Consecutive   PatternType = "setup1_consecutive"
	PatternSetup2GreenRedGreen PatternType = "setup2_green_red_green"
	PatternNone                PatternType = "none"
)

// PatternResult is the outcome of one detection pass for one setup. Value
// type, produced fresh each pass, never mutated after construction.
type PatternResult struct {
	Type           PatternType
	Symbol         string
	Confidence     float64 // 0.0 to 1.0
	SuggestedSide  Side
	SuggestedEntry float64
	SuggestedStop  float64
	DetectionTime  time.Time
	Bricks         []Brick // snapshot of the bricks that matched
}

// TradingSignal is a fully priced order intent derived from a PatternResult.
// Quantity is a placeholder until risk sizing fills it in.
type TradingSignal struct {
	Symbol     string      `json:"symbol"`
	Pattern    PatternType `json:"pattern"`
	Side       Side        `json:"side"`
	EntryPrice float64     `json:"entry_price"`
	StopLoss   float64     `json:"stop_loss"`
	TakeProfit float64     `json:"take_profit"`
	Quantity   float64     `json:"quantity"`
	Confidence float64     `json:"confidence"`
	Timestamp  time.Time   `json:"timestamp"`
}

// ---------------------------------------------------------------------------
// Risk configuration and state
// ---------------------------------------------------------------------------

// RiskStatus is the risk governor's current posture.
type RiskStatus string

const (
	RiskStatusNormal       RiskStatus = "normal"
	RiskStatusWarning      RiskStatus = "warning"
	RiskStatusLimitReached RiskStatus = "limit_reached"
	RiskStatusPaperMode    RiskStatus = "paper_mode"
)

// RiskParameters configures the risk engine. All percentages are fractions
// in [0, 1]. Loaded once at startup and hot-updatable afterwards.
type RiskParameters struct {
	DailyRiskPercent     float64 `yaml:"daily_risk_percent" json:"daily_risk_percent"`
	MaxDrawdownPercent   float64 `yaml:"max_drawdown_percent" json:"max_drawdown_percent"`
	ConsecutiveLossLimit int     `yaml:"consecutive_loss_limit" json:"consecutive_loss_limit"`
	CapitalUtilization   float64 `yaml:"capital_utilization" json:"capital_utilization"`
	OrdersPerCounter     int     `yaml:"orders_per_counter" json:"orders_per_counter"`
	MinLotSize           float64 `yaml:"min_lot_size" json:"min_lot_size"`
	PaperTradingMode     bool    `yaml:"paper_trading_mode" json:"paper_trading_mode"`
}

// DefaultRiskParameters returns the reference defaults: 1% daily risk, 5% max
// drawdown, paper mode after 2 consecutive losses, 10 orders per counter.
func DefaultRiskParameters() RiskParameters {
	return RiskParameters{
		DailyRiskPercent:     0.01,
		MaxDrawdownPercent:   0.05,
		ConsecutiveLossLimit: 2,
		CapitalUtilization:   1.0,
		OrdersPerCounter:     10,
		MinLotSize:           0.01,
		PaperTradingMode:     false,
	}
}

// Valid reports whether the parameters satisfy the documented invariants:
// percentages in [0, 1] and at least one order per counter.
func (p RiskParameters) Valid() bool {
	pctOK := func(v float64) bool { return v >= 0 && v <= 1 }
	return pctOK(p.DailyRiskPercent) &&
		pctOK(p.MaxDrawdownPercent) &&
		pctOK(p.CapitalUtilization) &&
		p.ConsecutiveLossLimit >= 0 &&
		p.OrdersPerCounter >= 1 &&
		p.MinLotSize >= 0
}

// SymbolConfig is the per-symbol trading configuration.
type SymbolConfig struct {
	Symbol            string         `yaml:"symbol"`
	BrickSize         float64        `yaml:"brick_size"`
	TickValue         float64        `yaml:"tick_value"`
	CapitalAllocation float64        `yaml:"capital_allocation"`
	RiskParams        RiskParameters `yaml:"risk_params"`
	Enabled           bool           `yaml:"enabled"`
}

// TradingStats aggregates trade outcomes for reporting.
type TradingStats struct {
	TotalTrades       int       `json:"total_trades"`
	WinningTrades     int       `json:"winning_trades"`
	LosingTrades      int       `json:"losing_trades"`
	ConsecutiveWins   int       `json:"consecutive_wins"`
	ConsecutiveLosses int       `json:"consecutive_losses"`
	WinRate           float64   `json:"win_rate"`
	LastUpdate        time.Time `json:"last_update"`
}
