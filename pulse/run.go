package pulse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChannelHistory is the collaborator that pulls raw events for one channel
// over a time range. Implementations own pagination, rate limiting, and
// identity anonymization; events handed to the core must already carry
// opaque author tokens.
type ChannelHistory interface {
	CollectEvents(ctx context.Context, channel string, from, to time.Time) ([]RawEvent, error)
}

// ChannelReport is one channel's full analysis output.
type ChannelReport struct {
	Channel       string          `json:"channel"`
	Metrics       []WindowMetrics `json:"metrics"`
	Verdict       BurnoutVerdict  `json:"verdict"`
	EventCount    int             `json:"event_count"`
	DroppedEvents int             `json:"dropped_events"`
}

// RunResult is the complete output of one analysis run.
type RunResult struct {
	RunID       string    `json:"run_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`

	Channels []ChannelReport `json:"channels"`

	Pipeline PipelineStats   `json:"pipeline"`
	Activity ActivityPattern `json:"activity"`
	Summary  RunSummary      `json:"summary"`
	Overall  OverallVerdict  `json:"overall"`
}

// Run analyzes the trailing cfg.AnalysisDays for every monitored channel:
// collect, score through the fallback pipeline, aggregate into windows, and
// detect burnout. Configuration is validated eagerly; no other failure mode
// aborts the run besides the collaborator being unable to produce history.
func Run(ctx context.Context, cfg Config, history ChannelHistory, external ExternalScorer) (*RunResult, error) {
	now := time.Now().UTC()
	periodEnd := now.Truncate(cfg.WindowSize).Add(cfg.WindowSize)
	periodStart := periodEnd.Add(-time.Duration(cfg.AnalysisDays) * 24 * time.Hour)
	return RunPeriod(ctx, cfg, history, external, periodStart, periodEnd)
}

// RunPeriod is Run with an explicit analysis period.
func RunPeriod(ctx context.Context, cfg Config, history ChannelHistory, external ExternalScorer, periodStart, periodEnd time.Time) (*RunResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if history == nil {
		return nil, fmt.Errorf("run: channel history collaborator is nil")
	}

	result := &RunResult{
		RunID:       uuid.NewString(),
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}

	// Scoring is sequential: the pipeline's budget and short-circuit state
	// are per-run, and the external call is the only blocking operation.
	pipeline := NewPipeline(external, cfg)
	scoredByChannel := make(map[string][]ScoredEvent, len(cfg.MonitoredChannels))
	for _, channel := range cfg.MonitoredChannels {
		raw, err := history.CollectEvents(ctx, channel, periodStart, periodEnd)
		if err != nil {
			return nil, fmt.Errorf("run: collect %s: %w", channel, err)
		}
		scored := make([]ScoredEvent, 0, len(raw))
		for _, ev := range raw {
			scored = append(scored, pipeline.ScoreEvent(ctx, ev))
		}
		scoredByChannel[channel] = scored
	}
	result.Pipeline = pipeline.Stats()

	// Aggregation and detection are independent per channel; fan out.
	reports := make([]ChannelReport, len(cfg.MonitoredChannels))
	var wg sync.WaitGroup
	for i, channel := range cfg.MonitoredChannels {
		wg.Add(1)
		go func(i int, channel string) {
			defer wg.Done()
			scored := scoredByChannel[channel]
			metrics, dropped := Aggregate(scored, []string{channel}, cfg.WindowSize, periodStart, periodEnd, cfg.ExpectedDailyBaseline)
			verdict := Detect(channel, metrics, cfg)
			reports[i] = ChannelReport{
				Channel:       channel,
				Metrics:       metrics,
				Verdict:       verdict,
				EventCount:    len(scored),
				DroppedEvents: dropped,
			}
		}(i, channel)
	}
	wg.Wait()

	result.Channels = reports
	result.Activity = AnalyzeActivity(flatten(scoredByChannel))
	result.Summary = Summarize(reports)
	result.Overall = AssessOverall(reports)
	return result, nil
}

func flatten(byChannel map[string][]ScoredEvent) []ScoredEvent {
	var out []ScoredEvent
	for _, evs := range byChannel {
		out = append(out, evs...)
	}
	return out
}
