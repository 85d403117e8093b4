// Package config loads the YAML configuration file and applies environment
// variable overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"mastermind/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the trading system.
type Config struct {
	Storage  Storage               `yaml:"storage"`
	Server   Server                `yaml:"server"`
	Alpaca   Alpaca                `yaml:"alpaca"`
	Logging  Logging               `yaml:"logging"`
	Risk     domain.RiskParameters `yaml:"risk"`
	Detector Detector              `yaml:"detector"`
	Engine   Engine                `yaml:"engine"`
	Symbols  []domain.SymbolConfig `yaml:"symbols"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration for the monitoring API.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Alpaca holds credentials and endpoints for the Alpaca broker API.
type Alpaca struct {
	APIKey          string `yaml:"api_key"`
	APISecret       string `yaml:"api_secret"`
	BaseURL         string `yaml:"base_url"`
	DataURL         string `yaml:"data_url"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	Feed            string `yaml:"feed"` // "iex" or "sip"
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Detector tunes pattern detection.
type Detector struct {
	PartialBrickThreshold float64 `yaml:"partial_brick_threshold"`
	TickBuffer            int     `yaml:"tick_buffer"`
	MinConfidence         float64 `yaml:"min_confidence"`
	Setup1Enabled         *bool   `yaml:"setup1_enabled"`
	Setup2Enabled         *bool   `yaml:"setup2_enabled"`
}

// Engine tunes the orchestrator.
type Engine struct {
	InitialCapital    float64 `yaml:"initial_capital"`
	MaxBricks         int     `yaml:"max_bricks"`
	RiskStatusSeconds int     `yaml:"risk_status_seconds"`
	PersistTicks      bool    `yaml:"persist_ticks"`
	PersistBricks     bool    `yaml:"persist_bricks"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, and validates the
// result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the rest of the system assumes.
func (c *Config) Validate() error {
	if !c.Risk.Valid() {
		return fmt.Errorf("risk: percentages must be in [0,1] and orders_per_counter >= 1")
	}
	for _, s := range c.Symbols {
		if s.Symbol == "" {
			return fmt.Errorf("symbols: symbol name must not be empty")
		}
		if s.Enabled && s.BrickSize <= 0 {
			return fmt.Errorf("symbols: %s: brick_size must be positive", s.Symbol)
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Alpaca.RateLimitPerMin == 0 {
		cfg.Alpaca.RateLimitPerMin = 200
	}
	if cfg.Alpaca.Feed == "" {
		cfg.Alpaca.Feed = "iex"
	}
	if cfg.Engine.InitialCapital == 0 {
		cfg.Engine.InitialCapital = 100000
	}
	if cfg.Engine.RiskStatusSeconds == 0 {
		cfg.Engine.RiskStatusSeconds = 30
	}

	zero := domain.RiskParameters{}
	if cfg.Risk == zero {
		cfg.Risk = domain.DefaultRiskParameters()
	}
	// Per-symbol risk params inherit the global block when omitted.
	for i := range cfg.Symbols {
		if cfg.Symbols[i].RiskParams == zero {
			cfg.Symbols[i].RiskParams = cfg.Risk
		}
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority — canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
