package pulse

import (
	"fmt"
	"strings"
)

// criticalSpan is the trailing window span in which two co-occurring rules
// escalate a verdict to critical.
const criticalSpan = 3

// ruleEvaluator inspects one channel's ordered WindowMetrics and reports a
// triggered rule, or nil. Evaluators are pure and independent; Detect runs
// them in fixed priority order and combines results with a severity reducer.
type ruleEvaluator func(metrics []WindowMetrics, cfg Config) *TriggeredRule

var ruleEvaluators = []ruleEvaluator{
	evalSustainedNegative,
	evalSharpDecline,
	evalVolumeCollapse,
	evalHighVolatility,
}

// Detect evaluates the burnout rule set over one channel's metrics sequence.
// Rules whose minimum window requirement exceeds the period length are
// skipped entirely (not trivially satisfied or failed) and excluded from the
// combined-critical check.
func Detect(channelID string, metrics []WindowMetrics, cfg Config) BurnoutVerdict {
	verdict := BurnoutVerdict{
		ChannelID:      channelID,
		RiskLevel:      RiskNone,
		TriggeredRules: nil,
	}
	if len(metrics) > 0 {
		verdict.PeriodStart = metrics[0].WindowStart
		verdict.PeriodEnd = metrics[len(metrics)-1].WindowEnd
	}

	for _, eval := range ruleEvaluators {
		if tr := eval(metrics, cfg); tr != nil {
			verdict.TriggeredRules = append(verdict.TriggeredRules, *tr)
			if tr.Severity > verdict.RiskLevel {
				verdict.RiskLevel = tr.Severity
			}
		}
	}

	if countRulesInTrailingSpan(verdict.TriggeredRules, len(metrics)) >= 2 {
		verdict.RiskLevel = RiskCritical
	}

	verdict.Recommendation = recommendationText(verdict.TriggeredRules, verdict.RiskLevel)
	return verdict
}

// countRulesInTrailingSpan counts distinct triggered rules with evidence in
// the trailing criticalSpan windows.
func countRulesInTrailingSpan(rules []TriggeredRule, numWindows int) int {
	if numWindows < criticalSpan {
		return 0
	}
	cutoff := numWindows - criticalSpan
	n := 0
	for _, tr := range rules {
		for _, idx := range tr.EvidenceWindows {
			if idx >= cutoff {
				n++
				break
			}
		}
	}
	return n
}

// evalSustainedNegative fires when mean sentiment stays below the burnout
// threshold for at least cfg.ConsecutiveNegativeWindows consecutive non-empty
// windows.
func evalSustainedNegative(metrics []WindowMetrics, cfg Config) *TriggeredRule {
	need := cfg.ConsecutiveNegativeWindows
	if len(metrics) < need {
		return nil
	}

	var run []int
	var best []int
	for i, m := range metrics {
		if m.Empty() {
			continue
		}
		if m.MeanSentiment < cfg.BurnoutThreshold {
			run = append(run, i)
			if len(run) >= len(best) {
				best = append([]int(nil), run...)
			}
		} else {
			run = nil
		}
	}
	if len(best) < need {
		return nil
	}
	return &TriggeredRule{
		Name:            RuleSustainedNegative,
		Severity:        RiskConcern,
		Detail:          fmt.Sprintf("mean sentiment below %.2f for %d consecutive windows", cfg.BurnoutThreshold, len(best)),
		EvidenceWindows: best,
	}
}

// evalSharpDecline fits a least-squares line through the non-empty windows'
// mean sentiment and fires when the slope is below the configured threshold.
// Escalates to concern when the period average is also below the burnout
// threshold.
func evalSharpDecline(metrics []WindowMetrics, cfg Config) *TriggeredRule {
	var xs []float64
	var ys []float64
	last := -1
	for i, m := range metrics {
		if m.Empty() {
			continue
		}
		xs = append(xs, float64(i))
		ys = append(ys, m.MeanSentiment)
		last = i
	}
	if len(xs) < 3 {
		return nil
	}

	slope := regressionSlope(xs, ys)
	if slope >= cfg.SlopeThreshold {
		return nil
	}

	severity := RiskWatch
	if mean(ys) < cfg.BurnoutThreshold {
		severity = RiskConcern
	}
	return &TriggeredRule{
		Name:            RuleSharpDecline,
		Severity:        severity,
		Detail:          fmt.Sprintf("sentiment slope %.4f per window below threshold %.4f", slope, cfg.SlopeThreshold),
		EvidenceWindows: []int{last},
	}
}

// evalVolumeCollapse fires when the most recent window's message count drops
// below the per-day minimum while earlier windows were averaging at or above
// it.
func evalVolumeCollapse(metrics []WindowMetrics, cfg Config) *TriggeredRule {
	if len(metrics) < 2 || cfg.MinMessagesPerDay <= 0 {
		return nil
	}

	last := len(metrics) - 1
	recent := metrics[last]
	if recent.MessageCount >= cfg.MinMessagesPerDay {
		return nil
	}

	total := 0
	for _, m := range metrics[:last] {
		total += m.MessageCount
	}
	earlierAvg := float64(total) / float64(last)
	if earlierAvg < float64(cfg.MinMessagesPerDay) {
		return nil
	}

	return &TriggeredRule{
		Name:            RuleVolumeCollapse,
		Severity:        RiskWatch,
		Detail:          fmt.Sprintf("latest window has %d messages (minimum %d, earlier average %.1f)", recent.MessageCount, cfg.MinMessagesPerDay, earlierAvg),
		EvidenceWindows: []int{last},
	}
}

// evalHighVolatility fires when sentiment stddev exceeds the ceiling in at
// least two windows.
func evalHighVolatility(metrics []WindowMetrics, cfg Config) *TriggeredRule {
	if len(metrics) < 2 {
		return nil
	}
	var hits []int
	for i, m := range metrics {
		if m.SentimentStddev > cfg.VolatilityCeiling {
			hits = append(hits, i)
		}
	}
	if len(hits) < 2 {
		return nil
	}
	return &TriggeredRule{
		Name:            RuleHighVolatility,
		Severity:        RiskWatch,
		Detail:          fmt.Sprintf("sentiment stddev above %.2f in %d windows", cfg.VolatilityCeiling, len(hits)),
		EvidenceWindows: hits,
	}
}

func regressionSlope(xs, ys []float64) float64 {
	n := float64(len(xs))
	xMean := mean(xs)
	yMean := mean(ys)

	var num, den float64
	for i := range xs {
		num += (xs[i] - xMean) * (ys[i] - yMean)
		den += (xs[i] - xMean) * (xs[i] - xMean)
	}
	if den == 0 || n < 2 {
		return 0
	}
	return num / den
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// ruleRecommendations is the fixed per-rule recommendation fragment table.
var ruleRecommendations = map[RuleName]string{
	RuleSustainedNegative: "Address the ongoing concerns driving negative sentiment; schedule a team check-in.",
	RuleSharpDecline:      "Investigate what changed recently; review workload, deadlines, and project demands.",
	RuleVolumeCollapse:    "The channel has gone quiet; check whether team members need support or have disengaged.",
	RuleHighVolatility:    "Sentiment is swinging widely; look for unresolved tensions or uneven workload.",
}

const (
	healthyRecommendation  = "Engagement looks healthy. Keep up the current cadence and keep recognizing wins."
	criticalRecommendation = "Immediate attention required: multiple burnout signals are co-occurring. Schedule a team check-in and review workload distribution now."
)

// recommendationText selects recommendation text deterministically from the
// triggered rule set.
func recommendationText(rules []TriggeredRule, level RiskLevel) string {
	if len(rules) == 0 {
		return healthyRecommendation
	}
	parts := make([]string, 0, len(rules)+1)
	if level == RiskCritical {
		parts = append(parts, criticalRecommendation)
	}
	for _, tr := range rules {
		if rec, ok := ruleRecommendations[tr.Name]; ok {
			parts = append(parts, rec)
		}
	}
	return strings.Join(parts, " ")
}
