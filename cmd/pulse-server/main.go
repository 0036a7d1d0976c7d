// Command pulse-server serves the engagement dashboard and JSON API. Analysis
// runs are triggered through POST /api/analyze; one run at a time.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/theimaginaryfoundation/engagement-pulse/collector"
	"github.com/theimaginaryfoundation/engagement-pulse/pulse"
	"github.com/theimaginaryfoundation/engagement-pulse/pulse/provider"
	"github.com/theimaginaryfoundation/engagement-pulse/report"
	"github.com/theimaginaryfoundation/engagement-pulse/server"
	"github.com/theimaginaryfoundation/engagement-pulse/storage"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	_ = godotenv.Load()
	log := newLogger(cfg.LogLevel)

	fc, err := loadFileConfig(cfg.ConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	analysisCfg := buildAnalysisConfig(cfg, fc)
	if err := analysisCfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rateLimit := cfg.RateLimit
	if fc.Slack.RateLimitDelay > 0 && cfg.RateLimit == defaultConfig().RateLimit {
		rateLimit = time.Duration(fc.Slack.RateLimitDelay * float64(time.Second))
	}

	history, err := collector.New(os.Getenv("SLACK_BOT_TOKEN"),
		collector.WithRateLimitDelay(rateLimit),
		collector.WithLogger(log),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	var external pulse.ExternalScorer
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		scorer, err := provider.NewSentimentScorer(key, modelName(cfg, fc), log)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(2)
		}
		external = scorer
	} else {
		log.Warn("OPENAI_API_KEY not set, using lexicon scoring only")
	}

	outDir := cfg.OutDir
	if fc.Reports.OutputDir != "" && cfg.OutDir == defaultConfig().OutDir {
		outDir = fc.Reports.OutputDir
	}
	writer, err := report.NewWriter(outDir, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	var store *storage.Store
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		store, err = storage.Open(ctx, dsn, fc.Reports.RetentionDays, log)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		defer store.Close()
	}

	analyzer := server.AnalyzerFunc(func(ctx context.Context) (*pulse.RunResult, error) {
		res, err := pulse.Run(ctx, analysisCfg, history, external)
		if err != nil {
			return nil, err
		}
		if store != nil {
			if serr := store.SaveRun(ctx, res); serr != nil {
				log.WithError(serr).Warn("persisting run failed")
			}
			if _, cerr := store.Cleanup(ctx); cerr != nil {
				log.WithError(cerr).Warn("retention cleanup failed")
			}
		}
		return res, nil
	})

	srv := server.New(analyzer, writer, outDir, log)
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", cfg.Addr).Info("server listening")
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	lv, err := logrus.ParseLevel(level)
	if err != nil {
		lv = logrus.InfoLevel
	}
	log.SetLevel(lv)
	return log
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "Path to optional JSON config file")
	fs.StringVar(&cfg.OutDir, "out", cfg.OutDir, "Output directory for report files")
	fs.StringVar(&cfg.Channels, "channels", "", "Comma-separated channel list (overrides config file)")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "External sentiment model name")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.DurationVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "Pause between paginated Slack calls")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
