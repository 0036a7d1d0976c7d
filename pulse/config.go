package pulse

import (
	"errors"
	"fmt"
	"time"
)

// Config is the read-only analysis configuration passed into a run. The core
// never mutates it; callers load it once (flags, JSON file, env) and validate
// it before any aggregation begins.
type Config struct {
	MonitoredChannels []string      `json:"monitored_channels"`
	AnalysisDays      int           `json:"analysis_days"`
	WindowSize        time.Duration `json:"-"`

	BurnoutThreshold      float64 `json:"burnout_threshold"`
	MinMessagesPerDay     int     `json:"min_messages_per_day"`
	ExpectedDailyBaseline float64 `json:"expected_daily_baseline"`
	VolatilityCeiling     float64 `json:"volatility_ceiling"`
	SlopeThreshold        float64 `json:"slope_threshold"`

	// ConsecutiveNegativeWindows is how many consecutive below-threshold
	// windows the sustained-negative rule requires.
	ConsecutiveNegativeWindows int `json:"consecutive_negative_windows"`

	ExternalCallTimeout time.Duration `json:"-"`
	ExternalCallBudget  int           `json:"external_call_budget"`

	// FailureShortCircuit is the number of consecutive external-scorer
	// failures after which a run stops trying the external path.
	FailureShortCircuit int `json:"failure_short_circuit"`
}

// DefaultConfig mirrors the defaults the original deployment shipped with.
func DefaultConfig() Config {
	return Config{
		MonitoredChannels:          []string{"#general", "#random"},
		AnalysisDays:               7,
		WindowSize:                 24 * time.Hour,
		BurnoutThreshold:           -0.3,
		MinMessagesPerDay:          5,
		ExpectedDailyBaseline:      20,
		VolatilityCeiling:          0.6,
		SlopeThreshold:             -0.05,
		ConsecutiveNegativeWindows: 3,
		ExternalCallTimeout:        5 * time.Second,
		ExternalCallBudget:         500,
		FailureShortCircuit:        5,
	}
}

// Validate checks the configuration eagerly so a run fails before any
// collection or aggregation starts rather than mid-pipeline.
func (c Config) Validate() error {
	if len(c.MonitoredChannels) == 0 {
		return errors.New("config: at least one monitored channel is required")
	}
	if c.AnalysisDays < 1 {
		return errors.New("config: analysis_days must be >= 1")
	}
	if c.WindowSize <= 0 {
		return errors.New("config: window_size must be positive")
	}
	if c.BurnoutThreshold < -1.0 || c.BurnoutThreshold > 1.0 {
		return fmt.Errorf("config: burnout_threshold %.2f out of range [-1, 1]", c.BurnoutThreshold)
	}
	if c.MinMessagesPerDay < 0 {
		return errors.New("config: min_messages_per_day must be >= 0")
	}
	if c.ExpectedDailyBaseline <= 0 {
		return errors.New("config: expected_daily_baseline must be > 0")
	}
	if c.VolatilityCeiling <= 0 {
		return errors.New("config: volatility_ceiling must be > 0")
	}
	if c.SlopeThreshold >= 0 {
		return errors.New("config: slope_threshold must be negative")
	}
	if c.ConsecutiveNegativeWindows < 1 {
		return errors.New("config: consecutive_negative_windows must be >= 1")
	}
	if c.ExternalCallTimeout <= 0 {
		return errors.New("config: external_call_timeout must be positive")
	}
	if c.ExternalCallBudget < 0 {
		return errors.New("config: external_call_budget must be >= 0")
	}
	if c.FailureShortCircuit < 1 {
		return errors.New("config: failure_short_circuit must be >= 1")
	}
	return nil
}
