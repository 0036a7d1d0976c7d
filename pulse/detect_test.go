package pulse

import (
	"testing"
	"time"
)

func detectConfig() Config {
	cfg := DefaultConfig()
	cfg.BurnoutThreshold = -0.3
	cfg.MinMessagesPerDay = 5
	cfg.ConsecutiveNegativeWindows = 3
	cfg.SlopeThreshold = -0.05
	cfg.VolatilityCeiling = 0.6
	return cfg
}

// buildMetrics makes one window per (count, sentiment) pair.
func buildMetrics(counts []int, sentiments []float64) []WindowMetrics {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	out := make([]WindowMetrics, len(counts))
	for i := range counts {
		out[i] = WindowMetrics{
			ChannelID:     "#team",
			WindowStart:   start.Add(time.Duration(i) * 24 * time.Hour),
			WindowEnd:     start.Add(time.Duration(i+1) * 24 * time.Hour),
			MessageCount:  counts[i],
			MeanSentiment: sentiments[i],
		}
	}
	return out
}

func TestDetect_HealthyChannel(t *testing.T) {
	t.Parallel()

	metrics := buildMetrics(
		[]int{12, 10, 14, 11, 13, 12, 10},
		[]float64{0.3, 0.2, 0.4, 0.3, 0.2, 0.3, 0.35},
	)
	v := Detect("#team", metrics, detectConfig())
	if v.RiskLevel != RiskNone {
		t.Fatalf("RiskLevel=%v, want none", v.RiskLevel)
	}
	if len(v.TriggeredRules) != 0 {
		t.Fatalf("TriggeredRules=%v, want none", v.TriggeredRules)
	}
	if v.Recommendation != healthyRecommendation {
		t.Fatalf("Recommendation=%q", v.Recommendation)
	}
}

func TestDetect_SustainedNegative(t *testing.T) {
	t.Parallel()

	metrics := buildMetrics(
		[]int{6, 6, 6, 6, 6},
		[]float64{0.2, -0.4, -0.4, -0.4, 0.1},
	)
	v := Detect("#team", metrics, detectConfig())
	if v.RiskLevel != RiskConcern {
		t.Fatalf("RiskLevel=%v, want concern", v.RiskLevel)
	}
	if len(v.TriggeredRules) != 1 || v.TriggeredRules[0].Name != RuleSustainedNegative {
		t.Fatalf("TriggeredRules=%v", v.TriggeredRules)
	}
	want := []int{1, 2, 3}
	got := v.TriggeredRules[0].EvidenceWindows
	if len(got) != len(want) {
		t.Fatalf("EvidenceWindows=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("EvidenceWindows=%v, want %v", got, want)
		}
	}
}

func TestDetect_SustainedNegativeIgnoresEmptyWindows(t *testing.T) {
	t.Parallel()

	// An empty window between negative ones does not break the streak but
	// also does not count toward it.
	metrics := buildMetrics(
		[]int{6, 6, 0, 6, 6},
		[]float64{-0.5, -0.5, 0, -0.5, 0.1},
	)
	v := Detect("#team", metrics, detectConfig())
	found := false
	for _, tr := range v.TriggeredRules {
		if tr.Name == RuleSustainedNegative {
			found = true
		}
	}
	if !found {
		t.Fatalf("sustained-negative did not fire across an empty gap: %v", v.TriggeredRules)
	}
}

func TestDetect_VolumeCollapse(t *testing.T) {
	t.Parallel()

	metrics := buildMetrics(
		[]int{8, 8, 8, 1},
		[]float64{0, 0, 0, 0},
	)
	v := Detect("#team", metrics, detectConfig())
	if v.RiskLevel != RiskWatch {
		t.Fatalf("RiskLevel=%v, want watch", v.RiskLevel)
	}
	if len(v.TriggeredRules) != 1 || v.TriggeredRules[0].Name != RuleVolumeCollapse {
		t.Fatalf("TriggeredRules=%v", v.TriggeredRules)
	}
}

func TestDetect_NoCollapseWhenAlwaysQuiet(t *testing.T) {
	t.Parallel()

	metrics := buildMetrics(
		[]int{2, 1, 2, 1},
		[]float64{0, 0, 0, 0},
	)
	v := Detect("#team", metrics, detectConfig())
	for _, tr := range v.TriggeredRules {
		if tr.Name == RuleVolumeCollapse {
			t.Fatalf("volume collapse fired for a consistently quiet channel")
		}
	}
}

func TestDetect_HighVolatility(t *testing.T) {
	t.Parallel()

	metrics := buildMetrics(
		[]int{10, 10, 10, 10},
		[]float64{0.1, 0.1, 0.1, 0.1},
	)
	metrics[0].SentimentStddev = 0.75
	metrics[2].SentimentStddev = 0.7
	v := Detect("#team", metrics, detectConfig())
	if len(v.TriggeredRules) != 1 || v.TriggeredRules[0].Name != RuleHighVolatility {
		t.Fatalf("TriggeredRules=%v", v.TriggeredRules)
	}
	if v.RiskLevel != RiskWatch {
		t.Fatalf("RiskLevel=%v, want watch", v.RiskLevel)
	}
}

func TestDetect_ShortPeriodSkipsLongRules(t *testing.T) {
	t.Parallel()

	// Two very negative windows: below the sustained-negative minimum span,
	// so the rule is skipped, not trivially triggered.
	metrics := buildMetrics(
		[]int{6, 6},
		[]float64{-0.8, -0.9},
	)
	v := Detect("#team", metrics, detectConfig())
	if v.RiskLevel != RiskNone {
		t.Fatalf("RiskLevel=%v, want none for a 2-window period", v.RiskLevel)
	}
}

func TestDetect_CombinedRulesEscalateToCritical(t *testing.T) {
	t.Parallel()

	// Steady decline plus volume collapse in the trailing windows.
	metrics := buildMetrics(
		[]int{10, 10, 10, 2, 2, 1, 1},
		[]float64{0.2, 0.1, 0.0, -0.2, -0.4, -0.5, -0.6},
	)
	v := Detect("#team", metrics, detectConfig())

	if v.RiskLevel != RiskCritical {
		t.Fatalf("RiskLevel=%v, want critical", v.RiskLevel)
	}
	names := map[RuleName]bool{}
	for _, tr := range v.TriggeredRules {
		names[tr.Name] = true
	}
	if !names[RuleSustainedNegative] || !names[RuleVolumeCollapse] {
		t.Fatalf("rules=%v, want sustained negative and volume collapse", names)
	}
	if v.Recommendation == "" || v.Recommendation == healthyRecommendation {
		t.Fatalf("Recommendation=%q", v.Recommendation)
	}
}

func TestDetect_NoEscalationWhenEvidenceIsOld(t *testing.T) {
	t.Parallel()

	// Two rules triggered, but with evidence far from the trailing span:
	// sustained negativity early, then recovery. Not critical.
	metrics := buildMetrics(
		[]int{6, 6, 6, 6, 8, 9, 10},
		[]float64{-0.5, -0.5, -0.5, 0.1, 0.2, 0.3, 0.3},
	)
	cfg := detectConfig()
	v := Detect("#team", metrics, cfg)
	if v.RiskLevel == RiskCritical {
		t.Fatalf("escalated to critical on stale evidence: %+v", v)
	}
}

func TestDetect_EmptyMetrics(t *testing.T) {
	t.Parallel()

	v := Detect("#team", nil, detectConfig())
	if v.RiskLevel != RiskNone || len(v.TriggeredRules) != 0 {
		t.Fatalf("verdict=%+v, want clean none", v)
	}
}

func TestRegressionSlope(t *testing.T) {
	t.Parallel()

	xs := []float64{0, 1, 2, 3}
	ys := []float64{0.3, 0.2, 0.1, 0.0}
	got := regressionSlope(xs, ys)
	if got > -0.099 || got < -0.101 {
		t.Fatalf("slope=%v, want -0.1", got)
	}

	if s := regressionSlope([]float64{1, 1}, []float64{0, 1}); s != 0 {
		t.Fatalf("degenerate slope=%v, want 0", s)
	}
}
