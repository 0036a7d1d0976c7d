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

	fs := flag.NewFlagSet("pulse-server", flag.ContinueOnError)
	cfg, err := parseFlags(fs, []string{
		"-addr", ":9090",
		"-config", "alt.json",
		"-out", "out/reports",
		"-channels", "#eng",
		"-model", "gpt-4o",
		"-log-level", "warn",
		"-rate-limit", "2s",
	})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("Addr=%q", cfg.Addr)
	}
	if cfg.OutDir != "out/reports" {
		t.Fatalf("OutDir=%q", cfg.OutDir)
	}
	if cfg.RateLimit != 2*time.Second {
		t.Fatalf("RateLimit=%s", cfg.RateLimit)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	cfg.Addr = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}

func TestBuildAnalysisConfig_FileOnly(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "config.json")
	body := `{"slack": {"channels": ["#ops"]}, "analysis": {"analysis_days": 10}}`
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fc, err := loadFileConfig(p)
	if err != nil {
		t.Fatalf("loadFileConfig: %v", err)
	}

	out := buildAnalysisConfig(defaultConfig(), fc)
	if len(out.MonitoredChannels) != 1 || out.MonitoredChannels[0] != "#ops" {
		t.Fatalf("channels=%v", out.MonitoredChannels)
	}
	if out.AnalysisDays != 10 {
		t.Fatalf("AnalysisDays=%d", out.AnalysisDays)
	}
	if err := out.Validate(); err != nil {
		t.Fatalf("merged config invalid: %v", err)
	}
}
