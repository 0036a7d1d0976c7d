// Package storage persists analysis output in Postgres so successive runs
// build a history of engagement metrics and burnout verdicts.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/theimaginaryfoundation/engagement-pulse/pulse"
)

const createTables = `
CREATE TABLE IF NOT EXISTS window_metrics (
	channel       TEXT NOT NULL,
	window_start  TIMESTAMPTZ NOT NULL,
	window_end    TIMESTAMPTZ NOT NULL,
	message_count INTEGER NOT NULL,
	reaction_count INTEGER NOT NULL,
	active_participants INTEGER NOT NULL,
	mean_sentiment DOUBLE PRECISION NOT NULL,
	sentiment_stddev DOUBLE PRECISION NOT NULL,
	engagement_index DOUBLE PRECISION NOT NULL,
	run_id        TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (channel, window_start)
);

CREATE TABLE IF NOT EXISTS burnout_verdicts (
	channel      TEXT NOT NULL,
	period_start TIMESTAMPTZ NOT NULL,
	period_end   TIMESTAMPTZ NOT NULL,
	risk_level   TEXT NOT NULL,
	triggered_rules JSONB NOT NULL,
	recommendation TEXT NOT NULL,
	run_id       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (channel, period_start, period_end)
);

CREATE INDEX IF NOT EXISTS idx_window_metrics_start ON window_metrics (window_start);
CREATE INDEX IF NOT EXISTS idx_burnout_verdicts_risk ON burnout_verdicts (risk_level);
`

// Store wraps a pgx pool with the engagement schema.
type Store struct {
	pool          *pgxpool.Pool
	retentionDays int
	log           logrus.FieldLogger
}

// Open connects to Postgres and ensures the tables exist.
func Open(ctx context.Context, dsn string, retentionDays int, log logrus.FieldLogger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("storage: empty dsn")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, createTables); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: init schema: %w", err)
	}
	return &Store{pool: pool, retentionDays: retentionDays, log: log}, nil
}

// SaveRun upserts every window metric and verdict from one analysis run.
func (s *Store) SaveRun(ctx context.Context, res *pulse.RunResult) error {
	batch := &pgx.Batch{}
	rows := 0

	for _, report := range res.Channels {
		for _, m := range report.Metrics {
			batch.Queue(`
				INSERT INTO window_metrics
					(channel, window_start, window_end, message_count, reaction_count,
					 active_participants, mean_sentiment, sentiment_stddev, engagement_index, run_id)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
				ON CONFLICT (channel, window_start) DO UPDATE SET
					window_end = EXCLUDED.window_end,
					message_count = EXCLUDED.message_count,
					reaction_count = EXCLUDED.reaction_count,
					active_participants = EXCLUDED.active_participants,
					mean_sentiment = EXCLUDED.mean_sentiment,
					sentiment_stddev = EXCLUDED.sentiment_stddev,
					engagement_index = EXCLUDED.engagement_index,
					run_id = EXCLUDED.run_id`,
				m.ChannelID, m.WindowStart, m.WindowEnd, m.MessageCount, m.ReactionCount,
				m.ActiveParticipants, m.MeanSentiment, m.SentimentStddev, m.EngagementIndex, res.RunID)
			rows++
		}

		v := report.Verdict
		rules, err := json.Marshal(v.TriggeredRules)
		if err != nil {
			return fmt.Errorf("storage: marshal rules for %s: %w", v.ChannelID, err)
		}
		batch.Queue(`
			INSERT INTO burnout_verdicts
				(channel, period_start, period_end, risk_level, triggered_rules, recommendation, run_id)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (channel, period_start, period_end) DO UPDATE SET
				risk_level = EXCLUDED.risk_level,
				triggered_rules = EXCLUDED.triggered_rules,
				recommendation = EXCLUDED.recommendation,
				run_id = EXCLUDED.run_id`,
			v.ChannelID, v.PeriodStart, v.PeriodEnd, v.RiskLevel.String(), rules, v.Recommendation, res.RunID)
		rows++
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("storage: save run %s: %w", res.RunID, err)
	}
	s.log.WithFields(logrus.Fields{"run_id": res.RunID, "rows": rows}).Info("run persisted")
	return nil
}

// Cleanup deletes rows older than the retention window and returns how many
// were removed.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	if s.retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)

	var removed int64
	tag, err := s.pool.Exec(ctx, `DELETE FROM window_metrics WHERE window_start < $1`, cutoff)
	if err != nil {
		return removed, fmt.Errorf("storage: cleanup metrics: %w", err)
	}
	removed += tag.RowsAffected()

	tag, err = s.pool.Exec(ctx, `DELETE FROM burnout_verdicts WHERE period_end < $1`, cutoff)
	if err != nil {
		return removed, fmt.Errorf("storage: cleanup verdicts: %w", err)
	}
	removed += tag.RowsAffected()
	return removed, nil
}

// Stats summarizes what the database currently holds.
type Stats struct {
	MetricRows   int64      `json:"metric_rows"`
	VerdictRows  int64      `json:"verdict_rows"`
	OldestWindow *time.Time `json:"oldest_window,omitempty"`
	NewestWindow *time.Time `json:"newest_window,omitempty"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx, `
		SELECT count(*), min(window_start), max(window_start) FROM window_metrics`).
		Scan(&st.MetricRows, &st.OldestWindow, &st.NewestWindow)
	if err != nil {
		return st, fmt.Errorf("storage: metric stats: %w", err)
	}
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM burnout_verdicts`).Scan(&st.VerdictRows); err != nil {
		return st, fmt.Errorf("storage: verdict stats: %w", err)
	}
	return st, nil
}

// RecentVerdicts returns the latest stored verdict per channel, most severe
// first within equal recency.
func (s *Store) RecentVerdicts(ctx context.Context, limit int) ([]pulse.BurnoutVerdict, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (channel)
			channel, period_start, period_end, risk_level, triggered_rules, recommendation
		FROM burnout_verdicts
		ORDER BY channel, period_end DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: recent verdicts: %w", err)
	}
	defer rows.Close()

	var out []pulse.BurnoutVerdict
	for rows.Next() {
		var v pulse.BurnoutVerdict
		var level string
		var rules []byte
		if err := rows.Scan(&v.ChannelID, &v.PeriodStart, &v.PeriodEnd, &level, &rules, &v.Recommendation); err != nil {
			return nil, fmt.Errorf("storage: scan verdict: %w", err)
		}
		v.RiskLevel = parseRiskLevel(level)
		if err := json.Unmarshal(rules, &v.TriggeredRules); err != nil {
			return nil, fmt.Errorf("storage: decode rules: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func parseRiskLevel(s string) pulse.RiskLevel {
	switch s {
	case "watch":
		return pulse.RiskWatch
	case "concern":
		return pulse.RiskConcern
	case "critical":
		return pulse.RiskCritical
	default:
		return pulse.RiskNone
	}
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}
