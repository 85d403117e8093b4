// Package httpapi serves the monitoring and control HTTP API: system status,
// brick history, signals, counters, risk parameter updates, and the
// emergency stop.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"mastermind/internal/domain"
	"mastermind/internal/engine"
)

// Server serves the trading system's HTTP API.
type Server struct {
	engine *engine.Engine
	log    *slog.Logger
}

// NewServer creates an API server over the given engine.
func NewServer(e *engine.Engine, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		engine: e,
		log:    log.With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/bricks/{symbol}", s.handleBricks)
	mux.HandleFunc("GET /api/signals", s.handleSignals)
	mux.HandleFunc("GET /api/counters", s.handleCounters)
	mux.HandleFunc("GET /api/risk/params", s.handleGetRiskParams)
	mux.HandleFunc("PUT /api/risk/params", s.handlePutRiskParams)
	mux.HandleFunc("POST /api/risk/emergency-stop", s.handleEnableEmergencyStop)
	mux.HandleFunc("DELETE /api/risk/emergency-stop", s.handleDisableEmergencyStop)
	mux.HandleFunc("POST /api/risk/paper-mode", s.handlePaperMode)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	risk := s.engine.Risk()

	resp := StatusResponse{
		Broker:            s.engine.Broker().Name(),
		Symbols:           s.engine.Symbols(),
		RiskStatus:        string(risk.Status()),
		PaperMode:         risk.IsPaperMode(),
		EmergencyStop:     risk.IsEmergencyStopActive(),
		CurrentDrawdown:   risk.CurrentDrawdown(),
		MaxDrawdown:       risk.MaxDrawdown(),
		DailyPnL:          risk.DailyPnL(),
		DailyRiskUsed:     risk.DailyRiskUsed(),
		ConsecutiveLosses: risk.ConsecutiveLosses(),
		Stats:             risk.Stats(),
	}

	account, err := s.engine.Broker().GetAccount(r.Context())
	if err == nil {
		resp.Equity = account.Equity
	}

	writeJSON(w, resp)
}

func (s *Server) handleBricks(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	chart, ok := s.engine.Chart(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown symbol %s", symbol))
		return
	}

	count := 0
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "count must be a non-negative integer")
			return
		}
		count = n
	}

	writeJSON(w, BricksResponse{
		Symbol:  symbol,
		Bricks:  chart.Bricks(count),
		Partial: chart.PartialBrick(),
	})
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	signals := s.engine.Signals()
	if signals == nil {
		writeJSON(w, SignalsResponse{Signals: []domain.TradingSignal{}})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	list, err := signals.ListSignals(r.Context(), r.URL.Query().Get("symbol"), limit)
	if err != nil {
		s.log.Error("listing signals", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}
	if list == nil {
		list = []domain.TradingSignal{}
	}
	writeJSON(w, SignalsResponse{Signals: list})
}

func (s *Server) handleCounters(w http.ResponseWriter, _ *http.Request) {
	risk := s.engine.Risk()

	resp := CountersResponse{
		Completed: risk.CompletedCounters(),
	}
	if current, ok := risk.CurrentCounter(); ok {
		resp.Current = &current
	}
	writeJSON(w, resp)
}

func (s *Server) handleGetRiskParams(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.engine.Risk().Parameters())
}

func (s *Server) handlePutRiskParams(w http.ResponseWriter, r *http.Request) {
	var params domain.RiskParameters
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.engine.Risk().UpdateParameters(params); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, s.engine.Risk().Parameters())
}

func (s *Server) handleEnableEmergencyStop(w http.ResponseWriter, _ *http.Request) {
	s.engine.Risk().EnableEmergencyStop()
	writeJSON(w, map[string]bool{"emergency_stop": true})
}

func (s *Server) handleDisableEmergencyStop(w http.ResponseWriter, _ *http.Request) {
	s.engine.Risk().DisableEmergencyStop()
	writeJSON(w, map[string]bool{"emergency_stop": false})
}

func (s *Server) handlePaperMode(w http.ResponseWriter, r *http.Request) {
	var req PaperModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Enabled {
		s.engine.Risk().SwitchToPaperMode()
	} else {
		s.engine.Risk().SwitchToLiveMode()
	}
	writeJSON(w, map[string]bool{"paper_mode": s.engine.Risk().IsPaperMode()})
}

// ---------------------------------------------------------------------------
// Middleware and helpers
// ---------------------------------------------------------------------------

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
