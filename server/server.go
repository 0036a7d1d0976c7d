// Package server exposes the analyzer over HTTP: a static dashboard, a JSON
// API for triggering and reading runs, and Prometheus metrics.
package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/theimaginaryfoundation/engagement-pulse/pulse"
	"github.com/theimaginaryfoundation/engagement-pulse/report"
)

// Analyzer runs one full analysis. pulse.Run wrapped with the configured
// collaborators satisfies this.
type Analyzer interface {
	Analyze(ctx context.Context) (*pulse.RunResult, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context) (*pulse.RunResult, error)

func (f AnalyzerFunc) Analyze(ctx context.Context) (*pulse.RunResult, error) { return f(ctx) }

type metrics struct {
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	externalCalls prometheus.Counter
	fallbacks     prometheus.Counter
	dropped       prometheus.Counter
}

func newMetrics(reg *prometheus.Registry) *metrics {
	m := &metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_runs_total",
			Help: "Analysis runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pulse_run_duration_seconds",
			Help:    "Wall time of analysis runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		externalCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_external_calls_total",
			Help: "External model scoring calls attempted.",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_lexicon_fallbacks_total",
			Help: "Events scored by the lexicon after external scoring was unavailable or failed.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_dropped_events_total",
			Help: "Malformed events dropped during aggregation.",
		}),
	}
	reg.MustRegister(m.runs, m.runDuration, m.externalCalls, m.fallbacks, m.dropped)
	return m
}

// Server serves the dashboard and API.
type Server struct {
	analyzer  Analyzer
	reports   *report.Writer
	reportDir string
	log       logrus.FieldLogger
	registry  *prometheus.Registry
	metrics   *metrics

	mu       sync.Mutex
	running  bool
	last     *pulse.RunResult
	lastRun  time.Time
	lastErr  string
	started  time.Time
	runCount int
}

// New builds a server. reports may be nil when file reports are disabled.
func New(analyzer Analyzer, reports *report.Writer, reportDir string, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	reg := prometheus.NewRegistry()
	return &Server{
		analyzer:  analyzer,
		reports:   reports,
		reportDir: reportDir,
		log:       log,
		registry:  reg,
		metrics:   newMetrics(reg),
		started:   time.Now().UTC(),
	}
}

// Router wires all routes onto a gin engine.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/", s.handleIndex)
	r.GET("/healthz", s.handleHealthz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.POST("/analyze", s.handleAnalyze)
		api.GET("/results", s.handleResults)
		api.GET("/reports", s.handleReports)
	}
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		}).Debug("http request")
	}
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, indexPage)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := gin.H{
		"running":       s.running,
		"runs_complete": s.runCount,
		"uptime":        time.Since(s.started).Round(time.Second).String(),
	}
	if !s.lastRun.IsZero() {
		status["last_run"] = s.lastRun.UTC().Format(time.RFC3339)
	}
	if s.lastErr != "" {
		status["last_error"] = s.lastErr
	}
	c.JSON(http.StatusOK, status)
}

// handleAnalyze starts a run unless one is already in flight. The analysis
// itself happens on the request; clients are expected to use a generous
// timeout or poll /api/status.
func (s *Server) handleAnalyze(c *gin.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "analysis already in progress"})
		return
	}
	s.running = true
	s.mu.Unlock()

	start := time.Now()
	res, err := s.analyzer.Analyze(c.Request.Context())
	elapsed := time.Since(start)

	s.mu.Lock()
	s.running = false
	s.lastRun = time.Now().UTC()
	if err != nil {
		s.lastErr = err.Error()
	} else {
		s.lastErr = ""
		s.last = res
		s.runCount++
	}
	s.mu.Unlock()

	s.metrics.runDuration.Observe(elapsed.Seconds())
	if err != nil {
		s.metrics.runs.WithLabelValues("error").Inc()
		s.log.WithError(err).Error("analysis run failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.metrics.runs.WithLabelValues("ok").Inc()
	s.metrics.externalCalls.Add(float64(res.Pipeline.ExternalCalls))
	s.metrics.fallbacks.Add(float64(res.Pipeline.LexiconFallbacks))
	s.metrics.dropped.Add(float64(res.Summary.TotalDropped))

	if s.reports != nil {
		if _, werr := s.reports.WriteAll(res); werr != nil {
			s.log.WithError(werr).Warn("report generation failed")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":  res.RunID,
		"overall": res.Overall,
		"elapsed": elapsed.Round(time.Millisecond).String(),
	})
}

func (s *Server) handleResults(c *gin.Context) {
	s.mu.Lock()
	res := s.last
	s.mu.Unlock()

	if res == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no analysis has completed yet"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleReports lists generated report files, newest first.
func (s *Server) handleReports(c *gin.Context) {
	if s.reportDir == "" {
		c.JSON(http.StatusOK, gin.H{"reports": []string{}})
		return
	}
	entries, err := os.ReadDir(s.reportDir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".json", ".csv", ".html":
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	c.JSON(http.StatusOK, gin.H{"reports": names})
}

const indexPage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Engagement Pulse</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 3rem auto; max-width: 40rem; color: #1c1e21; }
code { background: #f0f2f5; padding: .15rem .4rem; border-radius: 4px; }
li { margin: .4rem 0; }
</style></head>
<body>
<h1>Engagement Pulse</h1>
<p>Team engagement and burnout analyzer.</p>
<ul>
<li><code>GET /api/status</code>: run state</li>
<li><code>POST /api/analyze</code>: trigger an analysis run</li>
<li><code>GET /api/results</code>: latest full result</li>
<li><code>GET /api/reports</code>: generated report files</li>
<li><code>GET /metrics</code>: Prometheus metrics</li>
<li><code>GET /healthz</code>: liveness</li>
</ul>
</body></html>
`
