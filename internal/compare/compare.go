// Package compare builds the per-experiment results table from tracked runs.
package compare

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/danielpatrickdp/expgrid/internal/logging"
	"github.com/danielpatrickdp/expgrid/internal/tracking"
)

// #region constants
const (
	// DefaultOutputPath is where the comparison CSV lands.
	DefaultOutputPath = "experiment_comparison.csv"

	rowFormat = "%-25s | %-30s | %-15s | %-15s\n"
	ruleWidth = 95
)
// #endregion constants

// #region types
// Row is one experiment's representative result.
type Row struct {
	Experiment string
	RunName    string
	Accuracy   float64
	Loss       float64
}

// Config wires a Comparator. Backend is required.
type Config struct {
	Backend tracking.Backend
	Logger  logging.Logger
	Out     io.Writer
	// Metric names read from each run; empty means the cross-validation summaries.
	AccuracyMetric string
	LossMetric     string
}

// Comparator queries the tracking backend once per experiment name.
type Comparator struct {
	cfg Config
}
// #endregion types

// #region constructor
// New applies defaults to cfg and returns a Comparator.
func New(cfg Config) *Comparator {
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.AccuracyMetric == "" {
		cfg.AccuracyMetric = tracking.MetricBestValAccuracy
	}
	if cfg.LossMetric == "" {
		cfg.LossMetric = tracking.MetricBestValLoss
	}
	return &Comparator{cfg: cfg}
}
// #endregion constructor

// #region compare
// Compare prints one table line per name and returns the rows that had a
// qualifying run. Missing experiments and empty results are reported and
// skipped; any backend error aborts the comparison.
func (c *Comparator) Compare(ctx context.Context, names []string) ([]Row, error) {
	out := c.cfg.Out
	fmt.Fprintf(out, rowFormat, "Experiment", "Run Name", "Avg Val Acc", "Avg Val Loss")
	fmt.Fprintln(out, strings.Repeat("-", ruleWidth))

	var rows []Row
	for _, name := range names {
		exp, err := c.cfg.Backend.ExperimentByName(ctx, name)
		if err != nil {
			return rows, fmt.Errorf("compare %s: %w", name, err)
		}
		if exp == nil {
			fmt.Fprintf(out, "Experiment %s not found.\n", name)
			c.cfg.Logger.Warn("experiment not found", "experiment", name)
			continue
		}

		runs, err := c.cfg.Backend.SearchRuns(ctx, tracking.Query{
			ExperimentIDs: []string{exp.ID},
			Metric:        c.cfg.AccuracyMetric,
			Threshold:     0,
		})
		if err != nil {
			return rows, fmt.Errorf("compare %s: %w", name, err)
		}
		if len(runs) == 0 {
			fmt.Fprintf(out, rowFormat, name, "No runs found", "N/A", "N/A")
			c.cfg.Logger.Info("no qualifying runs", "experiment", name, "experiment_id", exp.ID)
			continue
		}

		run := Latest(runs)
		row := Row{
			Experiment: name,
			RunName:    run.DisplayName(),
			Accuracy:   metricOrNaN(run, c.cfg.AccuracyMetric),
			Loss:       metricOrNaN(run, c.cfg.LossMetric),
		}
		fmt.Fprintf(out, rowFormat, row.Experiment, row.RunName, FormatMetric(row.Accuracy), FormatMetric(row.Loss))
		c.cfg.Logger.Debug("selected run", "experiment", name, "run_id", run.ID, "start_time", run.StartTime)
		rows = append(rows, row)
	}

	fmt.Fprintln(out, strings.Repeat("-", ruleWidth))
	return rows, nil
}
// #endregion compare

// #region helpers
// Latest returns the run with the greatest start time. The backend already
// orders newest first; ties keep the backend's order.
func Latest(runs []tracking.Run) tracking.Run {
	best := runs[0]
	for _, r := range runs[1:] {
		if r.StartTime.After(best.StartTime) {
			best = r
		}
	}
	return best
}

// FormatMetric renders a metric with exactly four decimals.
func FormatMetric(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return fmt.Sprintf("%.4f", v)
}

func metricOrNaN(run tracking.Run, key string) float64 {
	if v, ok := run.Metric(key); ok {
		return v
	}
	return math.NaN()
}
// #endregion helpers
