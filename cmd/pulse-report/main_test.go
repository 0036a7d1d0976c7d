package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseFlags_Overrides(t *testing.T) {
	t.Parallel()

	fs := flag.NewFlagSet("pulse-report", flag.ContinueOnError)
	cfg, err := parseFlags(fs, []string{
		"-config", "alt.json",
		"-out", "out/reports",
		"-channels", "#eng, #design",
		"-days", "14",
		"-model", "gpt-4o",
		"-log-level", "debug",
		"-rate-limit", "250ms",
		"-lexicon-only",
	})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.ConfigPath != "alt.json" {
		t.Fatalf("ConfigPath=%q", cfg.ConfigPath)
	}
	if cfg.Days != 14 {
		t.Fatalf("Days=%d", cfg.Days)
	}
	if cfg.RateLimit != 250*time.Millisecond {
		t.Fatalf("RateLimit=%s", cfg.RateLimit)
	}
	if !cfg.LexiconOnly {
		t.Fatalf("LexiconOnly=false")
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	cfg.OutDir = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for empty out dir")
	}
	cfg = defaultConfig()
	cfg.Days = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for zero days")
	}
}

func TestLoadFileConfig_MissingIsEmpty(t *testing.T) {
	t.Parallel()

	fc, err := loadFileConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("loadFileConfig: %v", err)
	}
	if len(fc.Slack.Channels) != 0 {
		t.Fatalf("channels=%v", fc.Slack.Channels)
	}
}

func TestLoadFileConfig_Malformed(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(p, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadFileConfig(p); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestBuildAnalysisConfig_Precedence(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"slack": {"channels": ["#alpha", "#beta"]},
		"analysis": {"analysis_days": 30, "burnout_threshold": -0.2, "min_messages_per_day": 8},
		"openai": {"model": "gpt-4o", "call_budget": 100, "timeout_seconds": 2.5}
	}`
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fc, err := loadFileConfig(p)
	if err != nil {
		t.Fatalf("loadFileConfig: %v", err)
	}

	cfg := defaultConfig()
	cfg.Channels = "#gamma"
	cfg.Days = 3

	out := buildAnalysisConfig(cfg, fc)
	if len(out.MonitoredChannels) != 1 || out.MonitoredChannels[0] != "#gamma" {
		t.Fatalf("channels=%v, want flag override", out.MonitoredChannels)
	}
	if out.AnalysisDays != 3 {
		t.Fatalf("AnalysisDays=%d, want flag override", out.AnalysisDays)
	}
	if out.BurnoutThreshold != -0.2 {
		t.Fatalf("BurnoutThreshold=%v", out.BurnoutThreshold)
	}
	if out.MinMessagesPerDay != 8 {
		t.Fatalf("MinMessagesPerDay=%d", out.MinMessagesPerDay)
	}
	if out.ExternalCallBudget != 100 {
		t.Fatalf("ExternalCallBudget=%d", out.ExternalCallBudget)
	}
	if out.ExternalCallTimeout != 2500*time.Millisecond {
		t.Fatalf("ExternalCallTimeout=%s", out.ExternalCallTimeout)
	}
	if err := out.Validate(); err != nil {
		t.Fatalf("merged config invalid: %v", err)
	}

	if m := modelName(cfg, fc); m != "gpt-4o" {
		t.Fatalf("model=%q", m)
	}
}

func TestSplitChannels(t *testing.T) {
	t.Parallel()

	got := splitChannels(" #a, ,#b ,")
	if len(got) != 2 || got[0] != "#a" || got[1] != "#b" {
		t.Fatalf("splitChannels=%v", got)
	}
}
