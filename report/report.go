// Package report renders a finished analysis run as JSON, CSV, and a static
// HTML dashboard. All writes are atomic within the destination directory so a
// crashed run never leaves a truncated report behind.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/theimaginaryfoundation/engagement-pulse/pulse"
)

// Writer emits report files for analysis runs.
type Writer struct {
	dir string
	log logrus.FieldLogger
}

func NewWriter(dir string, log logrus.FieldLogger) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("report: empty output directory")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: create output dir: %w", err)
	}
	return &Writer{dir: dir, log: log}, nil
}

// Files is the set of paths one WriteAll call produced.
type Files struct {
	JSON string `json:"json"`
	CSV  string `json:"csv"`
	HTML string `json:"html"`
}

// WriteAll renders every format for one run. File names embed the run end
// time so successive runs do not clobber each other.
func (w *Writer) WriteAll(res *pulse.RunResult) (Files, error) {
	stamp := res.PeriodEnd.UTC().Format("20060102_150405")
	files := Files{
		JSON: filepath.Join(w.dir, "engagement_report_"+stamp+".json"),
		CSV:  filepath.Join(w.dir, "engagement_metrics_"+stamp+".csv"),
		HTML: filepath.Join(w.dir, "engagement_dashboard_"+stamp+".html"),
	}

	if err := w.writeJSON(files.JSON, res); err != nil {
		return files, err
	}
	if err := w.writeCSV(files.CSV, res); err != nil {
		return files, err
	}
	if err := w.writeHTML(files.HTML, res); err != nil {
		return files, err
	}
	w.log.WithFields(logrus.Fields{"run_id": res.RunID, "dir": w.dir}).Info("reports written")
	return files, nil
}

func (w *Writer) writeJSON(path string, res *pulse.RunResult) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal run: %w", err)
	}
	data = append(data, '\n')
	if err := writeFileAtomicSameDir(path, data, 0o644); err != nil {
		return fmt.Errorf("report: write json: %w", err)
	}
	return nil
}

var csvHeader = []string{
	"channel", "window_start", "window_end", "message_count", "reaction_count",
	"active_participants", "mean_sentiment", "sentiment_stddev", "engagement_index",
}

func (w *Writer) writeCSV(path string, res *pulse.RunResult) error {
	var sb strings.Builder
	cw := csv.NewWriter(&sb)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("report: csv header: %w", err)
	}
	for _, report := range res.Channels {
		for _, m := range report.Metrics {
			row := []string{
				m.ChannelID,
				m.WindowStart.UTC().Format(time.RFC3339),
				m.WindowEnd.UTC().Format(time.RFC3339),
				strconv.Itoa(m.MessageCount),
				strconv.Itoa(m.ReactionCount),
				strconv.Itoa(m.ActiveParticipants),
				formatFloat(m.MeanSentiment),
				formatFloat(m.SentimentStddev),
				formatFloat(m.EngagementIndex),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("report: csv row: %w", err)
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("report: csv flush: %w", err)
	}
	if err := writeFileAtomicSameDir(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("report: write csv: %w", err)
	}
	return nil
}

func (w *Writer) writeHTML(path string, res *pulse.RunResult) error {
	var sb strings.Builder
	if err := dashboardTemplate.Execute(&sb, newDashboardData(res)); err != nil {
		return fmt.Errorf("report: render dashboard: %w", err)
	}
	if err := writeFileAtomicSameDir(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("report: write html: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func writeFileAtomicSameDir(path string, data []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp_report_*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
