package pulse

import "time"

// EventKind distinguishes the two channel event types the pipeline scores.
type EventKind string

const (
	KindMessage  EventKind = "message"
	KindReaction EventKind = "reaction"
)

// RawEvent is one message or reaction pulled from a channel's history.
// AuthorToken is an opaque, non-reversible identifier used only to count
// distinct participants; the collector anonymizes identities before events
// reach this package, and neither Body nor AuthorToken survives scoring.
type RawEvent struct {
	ChannelID   string
	Timestamp   time.Time
	Kind        EventKind
	Body        string // message text, or emoji name for reactions
	AuthorToken string
}

// ScoreSource records which scorer produced a sentiment value.
type ScoreSource string

const (
	SourceExternal ScoreSource = "external"
	SourceLexicon  ScoreSource = "lexicon"
)

// ScoredEvent is the privacy-safe projection of one RawEvent: the text and
// author identity are gone, only the derived score and a transient
// participant key (for distinct counting inside a window) remain.
type ScoredEvent struct {
	ChannelID  string
	Timestamp  time.Time
	Kind       EventKind
	Sentiment  float64 // in [-1, 1]
	Confidence float64 // in [0, 1]
	Source     ScoreSource
	Category   string // very_negative .. very_positive

	// participant is consumed by the aggregator's window accumulator and is
	// never serialized or carried into WindowMetrics.
	participant string
}

// WindowMetrics is one channel's engagement summary for a single time window.
// Created once by the aggregator and immutable afterwards.
type WindowMetrics struct {
	ChannelID          string    `json:"channel_id"`
	WindowStart        time.Time `json:"window_start"`
	WindowEnd          time.Time `json:"window_end"`
	MessageCount       int       `json:"message_count"`
	ReactionCount      int       `json:"reaction_count"`
	ActiveParticipants int       `json:"active_participants"`
	MeanSentiment      float64   `json:"mean_sentiment"`
	SentimentStddev    float64   `json:"sentiment_stddev"`
	EngagementIndex    float64   `json:"engagement_index"`
}

// Empty reports whether the window saw no events at all.
func (w WindowMetrics) Empty() bool {
	return w.MessageCount == 0 && w.ReactionCount == 0
}

// RiskLevel is the ordinal burnout severity assigned per channel per run.
type RiskLevel int

const (
	RiskNone RiskLevel = iota
	RiskWatch
	RiskConcern
	RiskCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskWatch:
		return "watch"
	case RiskConcern:
		return "concern"
	case RiskCritical:
		return "critical"
	default:
		return "none"
	}
}

// MarshalJSON emits the level as its string name so stored and reported
// verdicts stay readable.
func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// RuleName identifies one burnout detection rule.
type RuleName string

const (
	RuleSustainedNegative RuleName = "sustained_negative_sentiment"
	RuleSharpDecline      RuleName = "sharp_decline"
	RuleVolumeCollapse    RuleName = "volume_collapse"
	RuleHighVolatility    RuleName = "high_volatility"
)

// TriggeredRule is the evidence record produced by a single rule evaluator.
type TriggeredRule struct {
	Name     RuleName  `json:"name"`
	Severity RiskLevel `json:"severity"`
	Detail   string    `json:"detail"`

	// EvidenceWindows holds the indices (into the channel's WindowMetrics
	// sequence) where the rule manifested, used for the combined-critical
	// trailing-span check.
	EvidenceWindows []int `json:"evidence_windows,omitempty"`
}

// BurnoutVerdict is the detector's output for one channel over the analysis
// period. Never mutated after creation.
type BurnoutVerdict struct {
	ChannelID      string          `json:"channel_id"`
	PeriodStart    time.Time       `json:"period_start"`
	PeriodEnd      time.Time       `json:"period_end"`
	RiskLevel      RiskLevel       `json:"risk_level"`
	TriggeredRules []TriggeredRule `json:"triggered_rules"`
	Recommendation string          `json:"recommendation"`
}

// SentimentCategory buckets a score the way the reporting layer labels it.
func SentimentCategory(score float64) string {
	switch {
	case score >= 0.5:
		return "very_positive"
	case score >= 0.1:
		return "positive"
	case score >= -0.1:
		return "neutral"
	case score >= -0.5:
		return "negative"
	default:
		return "very_negative"
	}
}
