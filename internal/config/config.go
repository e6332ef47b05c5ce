package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// EnvPath names the environment variable consulted when no --config flag is given.
const EnvPath = "MYXPLAIN_CONFIG"

// Config holds tunable thresholds for diagnostics, graph rendering, diff reporting and serving.
type Config struct {
	Rules  RuleConfig   `json:"rules"`
	Graph  GraphConfig  `json:"graph"`
	Diff   DiffConfig   `json:"diff"`
	Server ServerConfig `json:"server"`
}

// RuleConfig defines thresholds for the diagnostic rules.
type RuleConfig struct {
	FullScanRowThreshold      float64 `json:"full_scan_row_threshold"`
	FullIndexScanRowThreshold float64 `json:"full_index_scan_row_threshold"`
	LowSelectivityPercent     float64 `json:"low_selectivity_percent"`
	ConditionSnippetLimit     int     `json:"condition_snippet_limit"`
}

// GraphConfig defines how graph descriptions are tiered and rendered.
type GraphConfig struct {
	// WarmRatio is the share of the maximum cost at which a node turns warm.
	WarmRatio     float64 `json:"warm_ratio"`
	ClickCallback string  `json:"click_callback"`
	Direction     string  `json:"direction"`
}

// DiffConfig defines thresholds for diff summaries.
type DiffConfig struct {
	MinCostDelta     float64 `json:"min_cost_delta"`
	MinPercentChange float64 `json:"min_percent_change"`
	MaxItems         int     `json:"max_items"`
	CriticalPercent  float64 `json:"critical_percent"`
	WarningPercent   float64 `json:"warning_percent"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr         string `json:"addr"`
	MaxBodyBytes int64  `json:"max_body_bytes"`
}

var (
	mu     sync.RWMutex
	active = Default()
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Rules: RuleConfig{
			FullScanRowThreshold:      5000,
			FullIndexScanRowThreshold: 5000,
			LowSelectivityPercent:     10,
			ConditionSnippetLimit:     160,
		},
		Graph: GraphConfig{
			WarmRatio:     0.25,
			ClickCallback: "onNodeClick",
			Direction:     "TD",
		},
		Diff: DiffConfig{
			MinCostDelta:     1.0,
			MinPercentChange: 5.0,
			MaxItems:         8,
			CriticalPercent:  50.0,
			WarningPercent:   20.0,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			MaxBodyBytes: 4 << 20,
		},
	}
}

// Active returns the currently applied configuration.
func Active() Config {
	mu.RLock()
	defer mu.RUnlock()
	return active
}

// Use replaces the active configuration.
func Use(cfg Config) {
	mu.Lock()
	active = cfg
	mu.Unlock()
}

// Apply loads configuration from the provided path (JSON). Empty path resets to default.
func Apply(path string) error {
	if path == "" {
		Use(Default())
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	Use(cfg)
	return nil
}

// Resolve picks the config path: the flag value wins, then $MYXPLAIN_CONFIG.
func Resolve(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvPath)
}
