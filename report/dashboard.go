package report

import (
	"fmt"
	"html/template"
	"time"

	"github.com/theimaginaryfoundation/engagement-pulse/pulse"
)

// dashboardData is the flattened view the HTML template renders.
type dashboardData struct {
	GeneratedAt   string
	PeriodStart   string
	PeriodEnd     string
	RunID         string
	OverallClass  string
	OverallLevel  string
	OverallText   string
	Summary       pulse.RunSummary
	AvgSentiment  string
	AvgEngagement string
	Channels      []channelView
	Actions       []string
}

type channelView struct {
	Name        string
	RiskClass   string
	RiskLevel   string
	Messages    int
	Reactions   int
	Sentiment   string
	Engagement  string
	Rules       []ruleView
	Recommended string
}

type ruleView struct {
	Name   string
	Detail string
}

func newDashboardData(res *pulse.RunResult) dashboardData {
	d := dashboardData{
		GeneratedAt:   time.Now().UTC().Format("2006-01-02 15:04 UTC"),
		PeriodStart:   res.PeriodStart.UTC().Format("2006-01-02"),
		PeriodEnd:     res.PeriodEnd.UTC().Format("2006-01-02"),
		RunID:         res.RunID,
		OverallClass:  riskClass(res.Overall.RiskLevel),
		OverallLevel:  res.Overall.RiskLevel.String(),
		OverallText:   res.Overall.Summary,
		Summary:       res.Summary,
		AvgSentiment:  fmt.Sprintf("%.3f", res.Summary.AvgSentiment),
		AvgEngagement: fmt.Sprintf("%.3f", res.Summary.AvgEngagement),
		Actions:       res.Overall.PriorityActions,
	}

	for _, r := range res.Channels {
		var messages, reactions int
		var sentimentSum, engagementSum float64
		n := 0
		for _, m := range r.Metrics {
			messages += m.MessageCount
			reactions += m.ReactionCount
			if !m.Empty() {
				sentimentSum += m.MeanSentiment
				engagementSum += m.EngagementIndex
				n++
			}
		}
		cv := channelView{
			Name:        r.Channel,
			RiskClass:   riskClass(r.Verdict.RiskLevel),
			RiskLevel:   r.Verdict.RiskLevel.String(),
			Messages:    messages,
			Reactions:   reactions,
			Sentiment:   "n/a",
			Engagement:  "n/a",
			Recommended: r.Verdict.Recommendation,
		}
		if n > 0 {
			cv.Sentiment = fmt.Sprintf("%.3f", sentimentSum/float64(n))
			cv.Engagement = fmt.Sprintf("%.3f", engagementSum/float64(n))
		}
		for _, rule := range r.Verdict.TriggeredRules {
			cv.Rules = append(cv.Rules, ruleView{Name: string(rule.Name), Detail: rule.Detail})
		}
		d.Channels = append(d.Channels, cv)
	}
	return d
}

func riskClass(level pulse.RiskLevel) string {
	switch level {
	case pulse.RiskCritical:
		return "critical"
	case pulse.RiskConcern:
		return "concern"
	case pulse.RiskWatch:
		return "watch"
	default:
		return "ok"
	}
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Team Engagement Dashboard</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem; background: #f5f6f8; color: #1c1e21; }
h1 { margin-bottom: 0; }
.meta { color: #65676b; margin-bottom: 1.5rem; }
.banner { padding: 1rem 1.5rem; border-radius: 8px; margin-bottom: 1.5rem; font-weight: 600; }
.banner.ok { background: #e3f5e9; color: #1d6f42; }
.banner.watch { background: #fff4d6; color: #8a6d00; }
.banner.concern { background: #ffe3cc; color: #9c4a00; }
.banner.critical { background: #fde2e1; color: #b3261e; }
.cards { display: flex; gap: 1rem; flex-wrap: wrap; margin-bottom: 1.5rem; }
.card { background: #fff; border-radius: 8px; padding: 1rem 1.5rem; box-shadow: 0 1px 3px rgba(0,0,0,.08); min-width: 10rem; }
.card .value { font-size: 1.6rem; font-weight: 700; }
.card .label { color: #65676b; font-size: .85rem; }
table { width: 100%; border-collapse: collapse; background: #fff; border-radius: 8px; overflow: hidden; box-shadow: 0 1px 3px rgba(0,0,0,.08); }
th, td { text-align: left; padding: .6rem .9rem; border-bottom: 1px solid #ebedf0; vertical-align: top; }
th { background: #f0f2f5; font-size: .85rem; text-transform: uppercase; color: #65676b; }
.pill { display: inline-block; padding: .15rem .6rem; border-radius: 999px; font-size: .8rem; font-weight: 600; }
.pill.ok { background: #e3f5e9; color: #1d6f42; }
.pill.watch { background: #fff4d6; color: #8a6d00; }
.pill.concern { background: #ffe3cc; color: #9c4a00; }
.pill.critical { background: #fde2e1; color: #b3261e; }
.rules { margin: .3rem 0 0; padding-left: 1.1rem; font-size: .85rem; color: #444; }
.actions { background: #fff; border-radius: 8px; padding: 1rem 1.5rem; margin-top: 1.5rem; box-shadow: 0 1px 3px rgba(0,0,0,.08); }
</style>
</head>
<body>
<h1>Team Engagement Dashboard</h1>
<p class="meta">Period {{.PeriodStart}} to {{.PeriodEnd}}, generated {{.GeneratedAt}}, run {{.RunID}}</p>

<div class="banner {{.OverallClass}}">Overall risk: {{.OverallLevel}}. {{.OverallText}}</div>

<div class="cards">
  <div class="card"><div class="value">{{.Summary.TotalMessages}}</div><div class="label">Messages</div></div>
  <div class="card"><div class="value">{{.Summary.TotalReactions}}</div><div class="label">Reactions</div></div>
  <div class="card"><div class="value">{{.AvgSentiment}}</div><div class="label">Avg sentiment</div></div>
  <div class="card"><div class="value">{{.AvgEngagement}}</div><div class="label">Avg engagement</div></div>
  <div class="card"><div class="value">{{.Summary.MostActiveChannel}}</div><div class="label">Most active channel</div></div>
</div>

<table>
  <thead>
    <tr><th>Channel</th><th>Risk</th><th>Messages</th><th>Reactions</th><th>Sentiment</th><th>Engagement</th><th>Findings</th></tr>
  </thead>
  <tbody>
  {{range .Channels}}
    <tr>
      <td>{{.Name}}</td>
      <td><span class="pill {{.RiskClass}}">{{.RiskLevel}}</span></td>
      <td>{{.Messages}}</td>
      <td>{{.Reactions}}</td>
      <td>{{.Sentiment}}</td>
      <td>{{.Engagement}}</td>
      <td>
        {{if .Rules}}<ul class="rules">{{range .Rules}}<li><strong>{{.Name}}</strong>: {{.Detail}}</li>{{end}}</ul>{{else}}none{{end}}
        {{if .Recommended}}<div class="rules">{{.Recommended}}</div>{{end}}
      </td>
    </tr>
  {{end}}
  </tbody>
</table>

{{if .Actions}}
<div class="actions">
  <h2>Priority actions</h2>
  <ul>{{range .Actions}}<li>{{.}}</li>{{end}}</ul>
</div>
{{end}}
</body>
</html>
`))
