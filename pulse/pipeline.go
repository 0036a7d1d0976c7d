package pulse

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"
)

// ExternalScore is the normalized result of an external-model scoring call.
type ExternalScore struct {
	Value      float64
	Confidence float64
	Label      string
}

// ExternalScorer is the optional higher-fidelity scoring collaborator. Any
// returned error is treated uniformly as failure; the pipeline never retries
// a single event.
type ExternalScorer interface {
	Score(ctx context.Context, text string) (ExternalScore, error)
}

// PipelineStats are per-run counters for observability.
type PipelineStats struct {
	ExternalCalls    int
	ExternalFailures int
	LexiconFallbacks int
	ShortCircuited   bool
}

// Pipeline scores events, preferring the external scorer and falling back to
// the lexicon on timeout, quota exhaustion, or any failure. All budget and
// failure state is scoped to the pipeline instance, i.e. to one run; create a
// fresh Pipeline per run. Not safe for concurrent use.
type Pipeline struct {
	external ExternalScorer

	timeout           time.Duration
	budget            int
	shortCircuitAfter int

	calls          int
	consecFailures int
	shortCircuited bool
	stats          PipelineStats
}

// NewPipeline builds a per-run scoring pipeline. external may be nil, which
// makes every score a lexicon score.
func NewPipeline(external ExternalScorer, cfg Config) *Pipeline {
	return &Pipeline{
		external:          external,
		timeout:           cfg.ExternalCallTimeout,
		budget:            cfg.ExternalCallBudget,
		shortCircuitAfter: cfg.FailureShortCircuit,
	}
}

// Analyze scores one text. It never returns an error: if the external path is
// unavailable for any reason the lexicon result is returned with
// Source=lexicon.
func (p *Pipeline) Analyze(ctx context.Context, text string) (value, confidence float64, source ScoreSource) {
	if p.externalAvailable(ctx) {
		cctx, cancel := context.WithTimeout(ctx, p.timeout)
		res, err := p.external.Score(cctx, text)
		cancel()

		p.calls++
		p.stats.ExternalCalls++

		if err == nil && res.Value >= -1 && res.Value <= 1 {
			p.consecFailures = 0
			return res.Value, clamp(res.Confidence, 0, 1), SourceExternal
		}

		p.stats.ExternalFailures++
		p.consecFailures++
		if p.consecFailures >= p.shortCircuitAfter {
			p.shortCircuited = true
			p.stats.ShortCircuited = true
		}
	}

	p.stats.LexiconFallbacks++
	value, confidence = ScoreText(text)
	return value, confidence, SourceLexicon
}

func (p *Pipeline) externalAvailable(ctx context.Context) bool {
	if p.external == nil || p.shortCircuited {
		return false
	}
	if p.calls >= p.budget {
		return false
	}
	return ctx.Err() == nil
}

// ScoreEvent turns a RawEvent into a ScoredEvent. Reactions are scored by
// the emoji table alone (no external call); messages go through the fallback
// chain. The event's body and author token are not carried forward, only a
// derived participant key for distinct counting.
func (p *Pipeline) ScoreEvent(ctx context.Context, ev RawEvent) ScoredEvent {
	var value, confidence float64
	source := SourceLexicon

	switch ev.Kind {
	case KindReaction:
		value = ScoreEmoji(ev.Body)
		confidence = 0.5
	default:
		value, confidence, source = p.Analyze(ctx, ev.Body)
	}

	return ScoredEvent{
		ChannelID:   ev.ChannelID,
		Timestamp:   ev.Timestamp,
		Kind:        ev.Kind,
		Sentiment:   value,
		Confidence:  confidence,
		Source:      source,
		Category:    SentimentCategory(value),
		participant: participantKey(ev.AuthorToken),
	}
}

// Stats returns the counters accumulated so far in this run.
func (p *Pipeline) Stats() PipelineStats {
	return p.stats
}

// participantKey derives a non-reversible key from an (already opaque) author
// token so the token itself never appears in a ScoredEvent.
func participantKey(token string) string {
	if token == "" {
		return ""
	}
	h := fnv.New64a()
	h.Write([]byte(token))
	return strconv.FormatUint(h.Sum64(), 16)
}
