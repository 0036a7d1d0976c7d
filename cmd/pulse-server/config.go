package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/theimaginaryfoundation/engagement-pulse/pulse"
)

type Config struct {
	Addr       string
	ConfigPath string
	OutDir     string
	Channels   string
	Model      string
	LogLevel   string
	RateLimit  time.Duration
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("missing -addr")
	}
	if c.OutDir == "" {
		return errors.New("missing -out")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Addr:       ":8080",
		ConfigPath: "config.json",
		OutDir:     "reports",
		Model:      "gpt-4o-mini",
		LogLevel:   "info",
		RateLimit:  time.Second,
	}
}

// fileConfig mirrors the JSON config file shared with pulse-report.
type fileConfig struct {
	Slack struct {
		Channels       []string `json:"channels"`
		RateLimitDelay float64  `json:"rate_limit_delay"`
	} `json:"slack"`
	Analysis struct {
		AnalysisDays               int     `json:"analysis_days"`
		BurnoutThreshold           float64 `json:"burnout_threshold"`
		MinMessagesPerDay          int     `json:"min_messages_per_day"`
		ExpectedDailyBaseline      float64 `json:"expected_daily_baseline"`
		VolatilityCeiling          float64 `json:"volatility_ceiling"`
		SlopeThreshold             float64 `json:"slope_threshold"`
		ConsecutiveNegativeWindows int     `json:"consecutive_negative_windows"`
	} `json:"analysis"`
	OpenAI struct {
		Model          string  `json:"model"`
		CallBudget     int     `json:"call_budget"`
		TimeoutSeconds float64 `json:"timeout_seconds"`
	} `json:"openai"`
	Reports struct {
		OutputDir     string `json:"output_dir"`
		RetentionDays int    `json:"retention_days"`
	} `json:"reports"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fc, nil
		}
		return fc, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

func buildAnalysisConfig(cfg Config, fc fileConfig) pulse.Config {
	out := pulse.DefaultConfig()

	if len(fc.Slack.Channels) > 0 {
		out.MonitoredChannels = fc.Slack.Channels
	}
	if fc.Analysis.AnalysisDays > 0 {
		out.AnalysisDays = fc.Analysis.AnalysisDays
	}
	if fc.Analysis.BurnoutThreshold != 0 {
		out.BurnoutThreshold = fc.Analysis.BurnoutThreshold
	}
	if fc.Analysis.MinMessagesPerDay > 0 {
		out.MinMessagesPerDay = fc.Analysis.MinMessagesPerDay
	}
	if fc.Analysis.ExpectedDailyBaseline > 0 {
		out.ExpectedDailyBaseline = fc.Analysis.ExpectedDailyBaseline
	}
	if fc.Analysis.VolatilityCeiling > 0 {
		out.VolatilityCeiling = fc.Analysis.VolatilityCeiling
	}
	if fc.Analysis.SlopeThreshold != 0 {
		out.SlopeThreshold = fc.Analysis.SlopeThreshold
	}
	if fc.Analysis.ConsecutiveNegativeWindows > 0 {
		out.ConsecutiveNegativeWindows = fc.Analysis.ConsecutiveNegativeWindows
	}
	if fc.OpenAI.CallBudget > 0 {
		out.ExternalCallBudget = fc.OpenAI.CallBudget
	}
	if fc.OpenAI.TimeoutSeconds > 0 {
		out.ExternalCallTimeout = time.Duration(fc.OpenAI.TimeoutSeconds * float64(time.Second))
	}

	if cfg.Channels != "" {
		out.MonitoredChannels = splitChannels(cfg.Channels)
	}
	return out
}

func splitChannels(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func modelName(cfg Config, fc fileConfig) string {
	if cfg.Model != defaultConfig().Model && cfg.Model != "" {
		return cfg.Model
	}
	if fc.OpenAI.Model != "" {
		return fc.OpenAI.Model
	}
	return cfg.Model
}
