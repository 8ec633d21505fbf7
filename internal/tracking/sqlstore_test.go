package tracking

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// #region helpers
// mlflowSchema is the subset of MLflow's SQL store schema the backend reads.
const mlflowSchema = `
CREATE TABLE experiments (
	experiment_id INTEGER PRIMARY KEY,
	name VARCHAR(256) NOT NULL UNIQUE,
	lifecycle_stage VARCHAR(32)
);
CREATE TABLE runs (
	run_uuid VARCHAR(32) PRIMARY KEY,
	name VARCHAR(250),
	status VARCHAR(9),
	start_time BIGINT,
	end_time BIGINT,
	lifecycle_stage VARCHAR(20),
	experiment_id INTEGER
);
CREATE TABLE latest_metrics (
	key VARCHAR(250) NOT NULL,
	value FLOAT NOT NULL,
	timestamp BIGINT,
	step BIGINT NOT NULL,
	is_nan BOOLEAN NOT NULL,
	run_uuid VARCHAR(32) NOT NULL,
	PRIMARY KEY (key, run_uuid)
);
CREATE TABLE tags (
	key VARCHAR(250) NOT NULL,
	value VARCHAR(5000),
	run_uuid VARCHAR(32) NOT NULL,
	PRIMARY KEY (key, run_uuid)
);
`

func seedTrackingDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mlflow.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	stmts := []string{
		mlflowSchema,
		`INSERT INTO experiments VALUES (1, 'exp_baseline_adam', 'active'), (2, 'exp_lr_high', 'active')`,
		`INSERT INTO runs VALUES
			('old', 'fold-summary-old', 'FINISHED', 1000, 2000, 'active', 1),
			('new', 'fold-summary-new', 'FINISHED', 5000, 6000, 'active', 1),
			('zero', 'zero-acc', 'FINISHED', 9000, 9500, 'active', 1),
			('deleted', 'deleted-run', 'FINISHED', 9900, 9950, 'deleted', 1),
			('child', 'fold-0', 'FINISHED', 9990, 9999, 'active', 1),
			('other', 'other-exp', 'FINISHED', 7000, 8000, 'active', 2)`,
		`INSERT INTO latest_metrics VALUES
			('cv_avg_best_val_accuracy', 0.81, 0, 0, 0, 'old'),
			('cv_avg_best_val_loss', 0.52, 0, 0, 0, 'old'),
			('cv_avg_best_val_accuracy', 0.87, 0, 0, 0, 'new'),
			('cv_avg_best_val_loss', 0.41, 0, 0, 0, 'new'),
			('cv_avg_best_val_accuracy', 0.0, 0, 0, 0, 'zero'),
			('cv_avg_best_val_accuracy', 0.99, 0, 0, 0, 'deleted'),
			('val_accuracy', 0.95, 0, 3, 0, 'child'),
			('cv_avg_best_val_accuracy', 0.75, 0, 0, 0, 'other')`,
		`INSERT INTO tags VALUES
			('mlflow.runName', 'cv_summary_new', 'new'),
			('mlflow.source.name', 'main.py', 'new')`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return path
}

// #endregion helpers

func TestSQLBackend_ExperimentByName(t *testing.T) {
	b, err := Open("sqlite:///"+seedTrackingDB(t), Auth{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()

	exp, err := b.ExperimentByName(context.Background(), "exp_lr_high")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exp == nil || exp.ID != "2" {
		t.Fatalf("unexpected experiment %+v", exp)
	}

	missing, err := b.ExperimentByName(context.Background(), "exp_augmentation")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing experiment, got %+v", missing)
	}
}

func TestSQLBackend_SearchRuns(t *testing.T) {
	b, err := NewSQLBackend(seedTrackingDB(t))
	if err != nil {
		t.Fatalf("NewSQLBackend: %v", err)
	}
	defer b.Close()

	runs, err := b.SearchRuns(context.Background(), Query{
		ExperimentIDs: []string{"1"},
		Metric:        MetricBestValAccuracy,
	})
	if err != nil {
		t.Fatalf("SearchRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 qualifying runs (zero, deleted and child excluded), got %d", len(runs))
	}
	if runs[0].ID != "new" || runs[1].ID != "old" {
		t.Fatalf("expected most recent first, got %s, %s", runs[0].ID, runs[1].ID)
	}

	r := runs[0]
	if r.DisplayName() != "cv_summary_new" {
		t.Errorf("expected tag run name, got %q", r.DisplayName())
	}
	if r.ExperimentID != "1" {
		t.Errorf("expected experiment 1, got %q", r.ExperimentID)
	}
	if acc, _ := r.Metric(MetricBestValAccuracy); acc != 0.87 {
		t.Errorf("expected accuracy 0.87, got %v", acc)
	}
	if loss, _ := r.Metric(MetricBestValLoss); loss != 0.41 {
		t.Errorf("expected loss 0.41, got %v", loss)
	}
	if r.StartTime.UnixMilli() != 5000 {
		t.Errorf("expected start 5000ms, got %d", r.StartTime.UnixMilli())
	}
	if runs[1].DisplayName() != "fold-summary-old" {
		t.Errorf("expected attribute fallback name, got %q", runs[1].DisplayName())
	}
}

func TestSQLBackend_SearchRuns_NoMatches(t *testing.T) {
	b, err := NewSQLBackend(seedTrackingDB(t))
	if err != nil {
		t.Fatalf("NewSQLBackend: %v", err)
	}
	defer b.Close()

	runs, err := b.SearchRuns(context.Background(), Query{
		ExperimentIDs: []string{"2"},
		Metric:        MetricBestValAccuracy,
		Threshold:     0.9,
	})
	if err != nil {
		t.Fatalf("SearchRuns: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs above 0.9, got %d", len(runs))
	}

	none, err := b.SearchRuns(context.Background(), Query{Metric: MetricBestValAccuracy})
	if err != nil || none != nil {
		t.Errorf("expected nil, nil without experiment ids, got %v, %v", none, err)
	}
}
