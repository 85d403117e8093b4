package httpapi

import (
	"mastermind/internal/domain"
	"mastermind/internal/risk"
)

// StatusResponse is the payload for GET /api/status.
type StatusResponse struct {
	Broker            string              `json:"broker"`
	Symbols           []string            `json:"symbols"`
	Equity            float64             `json:"equity"`
	RiskStatus        string              `json:"risk_status"`
	PaperMode         bool                `json:"paper_mode"`
	EmergencyStop     bool                `json:"emergency_stop"`
	CurrentDrawdown   float64             `json:"current_drawdown"`
	MaxDrawdown       float64             `json:"max_drawdown"`
	DailyPnL          float64             `json:"daily_pnl"`
	DailyRiskUsed     float64             `json:"daily_risk_used"`
	ConsecutiveLosses int                 `json:"consecutive_losses"`
	Stats             domain.TradingStats `json:"stats"`
}

// BricksResponse is the payload for GET /api/bricks/{symbol}.
type BricksResponse struct {
	Symbol  string              `json:"symbol"`
	Bricks  []domain.Brick      `json:"bricks"`
	Partial domain.PartialBrick `json:"partial"`
}

// SignalsResponse is the payload for GET /api/signals.
type SignalsResponse struct {
	Signals []domain.TradingSignal `json:"signals"`
}

// CountersResponse is the payload for GET /api/counters.
type CountersResponse struct {
	Current   *risk.Counter  `json:"current,omitempty"`
	Completed []risk.Counter `json:"completed"`
}

// PaperModeRequest is the body for POST /api/risk/paper-mode.
type PaperModeRequest struct {
	Enabled bool `json:"enabled"`
}
