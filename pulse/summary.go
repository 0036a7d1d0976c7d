package pulse

import (
	"fmt"
	"strings"
	"time"
)

// ActivityPattern captures when the monitored channels are busiest. Built
// from event timestamps only.
type ActivityPattern struct {
	PeakHour       int            `json:"peak_hour"`
	PeakDay        string         `json:"peak_day"`
	HourlyActivity [24]int        `json:"hourly_activity"`
	DailyActivity  map[string]int `json:"daily_activity"`
	TotalMessages  int            `json:"total_messages"`
}

// AnalyzeActivity tallies message events by hour of day and weekday.
func AnalyzeActivity(events []ScoredEvent) ActivityPattern {
	p := ActivityPattern{
		PeakHour:      12,
		PeakDay:       time.Monday.String(),
		DailyActivity: make(map[string]int),
	}
	for _, ev := range events {
		if ev.Kind != KindMessage || ev.Timestamp.IsZero() {
			continue
		}
		ts := ev.Timestamp.UTC()
		p.HourlyActivity[ts.Hour()]++
		p.DailyActivity[ts.Weekday().String()]++
		p.TotalMessages++
	}

	best := 0
	for hour, n := range p.HourlyActivity {
		if n > best {
			best = n
			p.PeakHour = hour
		}
	}
	best = 0
	for day, n := range p.DailyActivity {
		if n > best || (n == best && day < p.PeakDay) {
			best = n
			p.PeakDay = day
		}
	}
	return p
}

// SentimentDistribution is the share of windows falling into each coarse
// sentiment bucket, in percent.
type SentimentDistribution struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
}

// RunSummary is the cross-channel rollup for one run.
type RunSummary struct {
	ChannelsMonitored int                   `json:"channels_monitored"`
	TotalMessages     int                   `json:"total_messages"`
	TotalReactions    int                   `json:"total_reactions"`
	TotalDropped      int                   `json:"total_dropped"`
	AvgSentiment      float64               `json:"avg_sentiment"`
	AvgEngagement     float64               `json:"avg_engagement"`
	Distribution      SentimentDistribution `json:"sentiment_distribution"`
	MostActiveChannel string                `json:"most_active_channel"`
}

// Summarize rolls per-channel reports into one run-level summary. Averages
// are taken over non-empty windows so quiet days do not drag sentiment to
// zero.
func Summarize(reports []ChannelReport) RunSummary {
	s := RunSummary{ChannelsMonitored: len(reports)}

	var sentiments []float64
	var engagementSum float64
	engagementN := 0
	bestMessages := -1

	for _, r := range reports {
		channelMessages := 0
		for _, m := range r.Metrics {
			channelMessages += m.MessageCount
			s.TotalMessages += m.MessageCount
			s.TotalReactions += m.ReactionCount
			if m.Empty() {
				continue
			}
			sentiments = append(sentiments, m.MeanSentiment)
			engagementSum += m.EngagementIndex
			engagementN++
		}
		s.TotalDropped += r.DroppedEvents
		if channelMessages > bestMessages {
			bestMessages = channelMessages
			s.MostActiveChannel = r.Channel
		}
	}

	s.AvgSentiment = mean(sentiments)
	if engagementN > 0 {
		s.AvgEngagement = engagementSum / float64(engagementN)
	}
	s.Distribution = distribution(sentiments)
	return s
}

func distribution(sentiments []float64) SentimentDistribution {
	if len(sentiments) == 0 {
		return SentimentDistribution{}
	}
	var pos, neg int
	for _, v := range sentiments {
		switch {
		case v > 0.1:
			pos++
		case v < -0.1:
			neg++
		}
	}
	n := float64(len(sentiments))
	d := SentimentDistribution{
		Positive: 100 * float64(pos) / n,
		Negative: 100 * float64(neg) / n,
	}
	d.Neutral = 100 - d.Positive - d.Negative
	return d
}

// OverallVerdict is the cross-channel burnout assessment.
type OverallVerdict struct {
	RiskLevel       RiskLevel `json:"risk_level"`
	ChannelsAtRisk  int       `json:"channels_at_risk"`
	AtRiskChannels  []string  `json:"at_risk_channels,omitempty"`
	TotalRules      int       `json:"total_rules_triggered"`
	Summary         string    `json:"summary"`
	PriorityActions []string  `json:"priority_actions,omitempty"`
}

// AssessOverall derives a single risk picture from all channel verdicts:
// any critical channel (or two concerns) makes the run critical.
func AssessOverall(reports []ChannelReport) OverallVerdict {
	out := OverallVerdict{RiskLevel: RiskNone}

	var critical, concern []string
	for _, r := range reports {
		v := r.Verdict
		out.TotalRules += len(v.TriggeredRules)
		if v.RiskLevel > RiskNone {
			out.ChannelsAtRisk++
			out.AtRiskChannels = append(out.AtRiskChannels, r.Channel)
		}
		if v.RiskLevel > out.RiskLevel {
			out.RiskLevel = v.RiskLevel
		}
		switch v.RiskLevel {
		case RiskCritical:
			critical = append(critical, r.Channel)
		case RiskConcern:
			concern = append(concern, r.Channel)
		}
	}
	if len(concern) >= 2 && out.RiskLevel < RiskCritical {
		out.RiskLevel = RiskCritical
	}

	switch out.RiskLevel {
	case RiskCritical:
		out.Summary = fmt.Sprintf("High burnout risk: %d channel(s) need immediate attention.", out.ChannelsAtRisk)
	case RiskConcern:
		out.Summary = fmt.Sprintf("Moderate burnout risk: %d channel(s) need attention.", out.ChannelsAtRisk)
	case RiskWatch:
		out.Summary = fmt.Sprintf("Low burnout risk, but keep monitoring %d flagged channel(s).", out.ChannelsAtRisk)
	default:
		out.Summary = "No burnout risks detected across monitored channels."
	}

	if len(critical) > 0 {
		out.PriorityActions = append(out.PriorityActions, "Immediately review teams in: "+strings.Join(critical, ", "))
	}
	if len(concern) > 0 {
		out.PriorityActions = append(out.PriorityActions, "Address sustained negativity in: "+strings.Join(concern, ", "))
	}
	return out
}
