// Package tracking reads experiments and runs from an MLflow tracking backend.
package tracking

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// #region constants
const (
	// MetricBestValAccuracy is the cross-validation summary accuracy the trainer logs once per run.
	MetricBestValAccuracy = "cv_avg_best_val_accuracy"
	// MetricBestValLoss is the matching summary loss.
	MetricBestValLoss = "cv_avg_best_val_loss"
	// TagRunName carries the human-readable run name.
	TagRunName = "mlflow.runName"

	OrderStartTimeDesc = "attribute.start_time DESC"
)
// #endregion constants

// #region types
// Experiment is a named group of runs.
type Experiment struct {
	ID   string
	Name string
}

// Run is one trainer execution as recorded by the backend.
type Run struct {
	ID           string
	ExperimentID string
	Name         string
	StartTime    time.Time
	Metrics      map[string]float64
	Tags         map[string]string
}

// DisplayName prefers the mlflow.runName tag and falls back to the run attribute.
func (r Run) DisplayName() string {
	if name := r.Tags[TagRunName]; name != "" {
		return name
	}
	return r.Name
}

// Metric returns a named metric and whether the run logged it.
func (r Run) Metric(key string) (float64, bool) {
	v, ok := r.Metrics[key]
	return v, ok
}

// Query selects runs whose Metric is strictly greater than Threshold,
// most recent first.
type Query struct {
	ExperimentIDs []string
	Metric        string
	Threshold     float64
}

// Filter renders the query as an MLflow search filter string.
func (q Query) Filter() string {
	return fmt.Sprintf("metrics.%s > %s", q.Metric, strconv.FormatFloat(q.Threshold, 'g', -1, 64))
}

// Backend is the read-only view of a tracking store.
type Backend interface {
	// ExperimentByName returns nil, nil when no experiment has that name.
	ExperimentByName(ctx context.Context, name string) (*Experiment, error)
	// SearchRuns returns every matching active run ordered by start time descending.
	SearchRuns(ctx context.Context, q Query) ([]Run, error)
	Close() error
}
// #endregion types
