// Command pulse-report runs one engagement analysis over the monitored Slack
// channels and writes JSON, CSV, and HTML reports. Slack and OpenAI
// credentials come from the environment (SLACK_BOT_TOKEN, OPENAI_API_KEY),
// optionally via a .env file; everything else comes from flags and an
// optional JSON config file.
package main

import (
	"context"
	"flag"
	"fmt"
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

	slackToken := os.Getenv("SLACK_BOT_TOKEN")
	history, err := collector.New(slackToken,
		collector.WithRateLimitDelay(rateLimit),
		collector.WithLogger(log),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := history.TestConnection(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	var external pulse.ExternalScorer
	if !cfg.LexiconOnly {
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
	}

	start := time.Now()
	res, err := pulse.Run(ctx, analysisCfg, history, external)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	outDir := cfg.OutDir
	if fc.Reports.OutputDir != "" && cfg.OutDir == defaultConfig().OutDir {
		outDir = fc.Reports.OutputDir
	}
	writer, err := report.NewWriter(outDir, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	files, err := writer.WriteAll(res)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		store, err := storage.Open(ctx, dsn, fc.Reports.RetentionDays, log)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		defer store.Close()
		if err := store.SaveRun(ctx, res); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		if removed, err := store.Cleanup(ctx); err != nil {
			log.WithError(err).Warn("retention cleanup failed")
		} else if removed > 0 {
			log.WithField("rows", removed).Info("retention cleanup")
		}
	}

	fmt.Fprintf(os.Stdout, "run_id=%s channels=%d messages=%d risk=%s elapsed=%s json=%s\n",
		res.RunID, len(res.Channels), res.Summary.TotalMessages,
		res.Overall.RiskLevel, time.Since(start).Round(time.Millisecond), files.JSON)
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
	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "Path to optional JSON config file")
	fs.StringVar(&cfg.OutDir, "out", cfg.OutDir, "Output directory for report files")
	fs.StringVar(&cfg.Channels, "channels", "", "Comma-separated channel list (overrides config file)")
	fs.IntVar(&cfg.Days, "days", cfg.Days, "Trailing days to analyze")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "External sentiment model name")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.DurationVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "Pause between paginated Slack calls")
	fs.BoolVar(&cfg.LexiconOnly, "lexicon-only", false, "Skip external model scoring entirely")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
