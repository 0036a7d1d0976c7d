package pulse

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeHistory struct {
	events map[string][]RawEvent
	err    error
}

func (f *fakeHistory) CollectEvents(_ context.Context, channel string, _, _ time.Time) ([]RawEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.events[channel], nil
}

func runTestConfig(channels ...string) Config {
	cfg := DefaultConfig()
	cfg.MonitoredChannels = channels
	cfg.AnalysisDays = 3
	cfg.ExternalCallTimeout = time.Second
	cfg.FailureShortCircuit = 2
	return cfg
}

func TestRunPeriod_ExternalOutageFallsBackEndToEnd(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := start.Add(72 * time.Hour)

	history := &fakeHistory{events: map[string][]RawEvent{
		"#eng": {
			{ChannelID: "#eng", Timestamp: start.Add(2 * time.Hour), Kind: KindMessage, Body: "great progress today", AuthorToken: "t1"},
			{ChannelID: "#eng", Timestamp: start.Add(26 * time.Hour), Kind: KindMessage, Body: "so exhausted by this deadline", AuthorToken: "t2"},
			{ChannelID: "#eng", Timestamp: start.Add(27 * time.Hour), Kind: KindReaction, Body: "tada", AuthorToken: "t1"},
		},
	}}
	ext := &fakeScorer{fn: func(int, string) (ExternalScore, error) {
		return ExternalScore{}, errors.New("model unavailable")
	}}

	res, err := RunPeriod(context.Background(), runTestConfig("#eng"), history, ext, start, end)
	if err != nil {
		t.Fatalf("RunPeriod: %v", err)
	}

	if res.RunID == "" {
		t.Fatalf("empty RunID")
	}
	if len(res.Channels) != 1 {
		t.Fatalf("len(Channels)=%d, want 1", len(res.Channels))
	}
	report := res.Channels[0]
	if report.EventCount != 3 || report.DroppedEvents != 0 {
		t.Fatalf("EventCount=%d DroppedEvents=%d", report.EventCount, report.DroppedEvents)
	}
	if len(report.Metrics) != 3 {
		t.Fatalf("len(Metrics)=%d, want 3 windows", len(report.Metrics))
	}
	if report.Metrics[0].MessageCount != 1 || report.Metrics[1].MessageCount != 1 || report.Metrics[1].ReactionCount != 1 {
		t.Fatalf("window counts wrong: %+v", report.Metrics)
	}

	// Both messages must still carry usable scores despite the outage.
	if res.Pipeline.LexiconFallbacks != 2 {
		t.Fatalf("LexiconFallbacks=%d, want 2 (both messages; reactions never call out)", res.Pipeline.LexiconFallbacks)
	}
	if res.Pipeline.ExternalCalls > 2 {
		t.Fatalf("ExternalCalls=%d, want short-circuit at 2", res.Pipeline.ExternalCalls)
	}
	if !res.Pipeline.ShortCircuited {
		t.Fatalf("expected short-circuit after consecutive failures")
	}
	if res.Summary.TotalMessages != 2 || res.Summary.TotalReactions != 1 {
		t.Fatalf("summary=%+v", res.Summary)
	}
}

func TestRunPeriod_MultipleChannels(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := start.Add(72 * time.Hour)

	history := &fakeHistory{events: map[string][]RawEvent{
		"#a": {{ChannelID: "#a", Timestamp: start.Add(time.Hour), Kind: KindMessage, Body: "love it", AuthorToken: "x"}},
		"#b": nil,
	}}

	res, err := RunPeriod(context.Background(), runTestConfig("#a", "#b"), history, nil, start, end)
	if err != nil {
		t.Fatalf("RunPeriod: %v", err)
	}
	if len(res.Channels) != 2 {
		t.Fatalf("len(Channels)=%d", len(res.Channels))
	}
	if res.Channels[0].Channel != "#a" || res.Channels[1].Channel != "#b" {
		t.Fatalf("channel order: %q, %q", res.Channels[0].Channel, res.Channels[1].Channel)
	}
	// The silent channel still gets a full window sequence and a verdict.
	if len(res.Channels[1].Metrics) != 3 {
		t.Fatalf("silent channel windows=%d, want 3", len(res.Channels[1].Metrics))
	}
	if res.Summary.MostActiveChannel != "#a" {
		t.Fatalf("MostActiveChannel=%q", res.Summary.MostActiveChannel)
	}
}

func TestRunPeriod_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := runTestConfig() // no channels
	_, err := RunPeriod(context.Background(), cfg, &fakeHistory{}, nil, time.Now().Add(-time.Hour), time.Now())
	if err == nil {
		t.Fatalf("expected config validation error")
	}
}

func TestRunPeriod_NilHistory(t *testing.T) {
	t.Parallel()

	_, err := RunPeriod(context.Background(), runTestConfig("#a"), nil, nil, time.Now().Add(-time.Hour), time.Now())
	if err == nil {
		t.Fatalf("expected error for nil history")
	}
}

func TestRunPeriod_CollectError(t *testing.T) {
	t.Parallel()

	history := &fakeHistory{err: errors.New("slack down")}
	_, err := RunPeriod(context.Background(), runTestConfig("#a"), history, nil, time.Now().Add(-time.Hour), time.Now())
	if err == nil {
		t.Fatalf("expected collect error to abort the run")
	}
}
