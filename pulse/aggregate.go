package pulse

import (
	"math"
	"sort"
	"time"
)

type windowAccumulator struct {
	messages     int
	reactions    int
	sentimentSum float64
	sentimentSq  float64
	events       int
	participants map[string]struct{}
}

// Aggregate buckets scored events into fixed-size windows across
// [periodStart, periodEnd) and computes per-window engagement metrics. Every
// window in the period appears in the output, including empty ones, grouped
// by channel and sorted by window start, so downstream consumers never
// special-case gaps.
//
// channels is the full set of channels to emit windows for; channels present
// in events but not listed are added. Malformed events (zero timestamp,
// unknown kind, out-of-range score, outside the period) are dropped and
// counted in the returned dropped total.
func Aggregate(events []ScoredEvent, channels []string, windowSize time.Duration, periodStart, periodEnd time.Time, baseline float64) (metrics []WindowMetrics, dropped int) {
	if windowSize <= 0 || !periodEnd.After(periodStart) {
		return nil, len(events)
	}

	numWindows := int(math.Ceil(float64(periodEnd.Sub(periodStart)) / float64(windowSize)))

	channelSet := make(map[string]bool, len(channels))
	for _, ch := range channels {
		channelSet[ch] = true
	}
	for _, ev := range events {
		if ev.ChannelID != "" {
			channelSet[ev.ChannelID] = true
		}
	}

	acc := make(map[string][]*windowAccumulator, len(channelSet))
	for ch := range channelSet {
		acc[ch] = make([]*windowAccumulator, numWindows)
	}

	for _, ev := range events {
		if malformed(ev) {
			dropped++
			continue
		}
		// Integer division truncates toward zero, so a pre-period timestamp
		// less than one window before the start would otherwise land in
		// window 0.
		if ev.Timestamp.Before(periodStart) {
			dropped++
			continue
		}
		idx := int(ev.Timestamp.Sub(periodStart) / windowSize)
		if idx >= numWindows {
			dropped++
			continue
		}

		w := acc[ev.ChannelID][idx]
		if w == nil {
			w = &windowAccumulator{participants: make(map[string]struct{})}
			acc[ev.ChannelID][idx] = w
		}

		switch ev.Kind {
		case KindMessage:
			w.messages++
		case KindReaction:
			w.reactions++
		}
		w.events++
		w.sentimentSum += ev.Sentiment
		w.sentimentSq += ev.Sentiment * ev.Sentiment
		if ev.participant != "" {
			w.participants[ev.participant] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(channelSet))
	for ch := range channelSet {
		sorted = append(sorted, ch)
	}
	sort.Strings(sorted)

	metrics = make([]WindowMetrics, 0, len(sorted)*numWindows)
	for _, ch := range sorted {
		for i := 0; i < numWindows; i++ {
			start := periodStart.Add(time.Duration(i) * windowSize)
			end := start.Add(windowSize)
			if end.After(periodEnd) {
				end = periodEnd
			}
			m := WindowMetrics{
				ChannelID:   ch,
				WindowStart: start,
				WindowEnd:   end,
			}
			if w := acc[ch][i]; w != nil {
				m.MessageCount = w.messages
				m.ReactionCount = w.reactions
				m.ActiveParticipants = len(w.participants)
				if w.events > 0 {
					m.MeanSentiment = w.sentimentSum / float64(w.events)
				}
				if w.events > 1 {
					variance := w.sentimentSq/float64(w.events) - m.MeanSentiment*m.MeanSentiment
					if variance > 0 {
						m.SentimentStddev = math.Sqrt(variance)
					}
				}
				m.EngagementIndex = engagementIndex(w.messages, w.reactions, len(w.participants), baseline)
			}
			metrics = append(metrics, m)
		}
	}
	return metrics, dropped
}

func malformed(ev ScoredEvent) bool {
	if ev.Timestamp.IsZero() || ev.ChannelID == "" {
		return true
	}
	if ev.Kind != KindMessage && ev.Kind != KindReaction {
		return true
	}
	if ev.Sentiment < -1 || ev.Sentiment > 1 || math.IsNaN(ev.Sentiment) {
		return true
	}
	return false
}

// engagementIndex is the weighted normalized blend of volume, reactions, and
// participant breadth. The baseline is externally configured policy, not a
// hardcoded invariant.
func engagementIndex(messages, reactions, participants int, baseline float64) float64 {
	if baseline <= 0 {
		return 0
	}
	norm := func(x int) float64 {
		return math.Min(float64(x)/baseline, 1.0)
	}
	return 0.4*norm(messages) + 0.3*norm(reactions) + 0.3*norm(participants)
}
