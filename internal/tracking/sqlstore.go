package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// #region store-struct
// SQLBackend reads an MLflow SQL backend store (the file behind
// `mlflow server --backend-store-uri sqlite:///mlflow.db`) directly.
type SQLBackend struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewSQLBackend opens an existing MLflow sqlite database. It never creates one.
func NewSQLBackend(dbPath string) (*SQLBackend, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("tracking db %s: %w", dbPath, err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open tracking db: %w", err)
	}
	return &SQLBackend{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLBackend) Close() error {
	return s.db.Close()
}
// #endregion constructor

// #region experiment-by-name
func (s *SQLBackend) ExperimentByName(ctx context.Context, name string) (*Experiment, error) {
	var exp Experiment
	err := s.db.QueryRowContext(ctx,
		`SELECT experiment_id, name FROM experiments WHERE name = ?`, name,
	).Scan(&exp.ID, &exp.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get experiment %s: %w", name, err)
	}
	return &exp, nil
}
// #endregion experiment-by-name

// #region search-runs
func (s *SQLBackend) SearchRuns(ctx context.Context, q Query) ([]Run, error) {
	if len(q.ExperimentIDs) == 0 {
		return nil, nil
	}

	args := make([]interface{}, 0, len(q.ExperimentIDs)+2)
	args = append(args, q.Metric)
	for _, id := range q.ExperimentIDs {
		args = append(args, id)
	}
	args = append(args, q.Threshold)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT r.run_uuid, r.experiment_id, COALESCE(r.name, ''), COALESCE(r.start_time, 0)
		 FROM runs r
		 JOIN latest_metrics m ON m.run_uuid = r.run_uuid AND m.key = ?
		 WHERE r.experiment_id IN (%s)
		   AND r.lifecycle_stage = 'active'
		   AND m.is_nan = 0
		   AND m.value > ?
		 ORDER BY r.start_time DESC`, placeholders(len(q.ExperimentIDs))),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("search runs: %w", err)
	}

	var runs []Run
	index := make(map[string]int)
	for rows.Next() {
		var run Run
		var startMillis int64
		if err := rows.Scan(&run.ID, &run.ExperimentID, &run.Name, &startMillis); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartTime = time.UnixMilli(startMillis).UTC()
		run.Metrics = make(map[string]float64)
		run.Tags = make(map[string]string)
		index[run.ID] = len(runs)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("search runs: %w", err)
	}
	rows.Close()

	if len(runs) == 0 {
		return nil, nil
	}
	if err := s.loadMetrics(ctx, runs, index); err != nil {
		return nil, err
	}
	if err := s.loadTags(ctx, runs, index); err != nil {
		return nil, err
	}
	return runs, nil
}
// #endregion search-runs

// #region run-details
func (s *SQLBackend) loadMetrics(ctx context.Context, runs []Run, index map[string]int) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT run_uuid, key, value FROM latest_metrics WHERE is_nan = 0 AND run_uuid IN (%s)`,
		placeholders(len(runs))), runIDs(runs)...,
	)
	if err != nil {
		return fmt.Errorf("load metrics: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, key string
		var value float64
		if err := rows.Scan(&id, &key, &value); err != nil {
			return fmt.Errorf("scan metric: %w", err)
		}
		runs[index[id]].Metrics[key] = value
	}
	return rows.Err()
}

func (s *SQLBackend) loadTags(ctx context.Context, runs []Run, index map[string]int) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT run_uuid, key, value FROM tags WHERE run_uuid IN (%s)`,
		placeholders(len(runs))), runIDs(runs)...,
	)
	if err != nil {
		return fmt.Errorf("load tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, key string
		var value sql.NullString
		if err := rows.Scan(&id, &key, &value); err != nil {
			return fmt.Errorf("scan tag: %w", err)
		}
		runs[index[id]].Tags[key] = value.String
	}
	return rows.Err()
}
// #endregion run-details

// #region helpers
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func runIDs(runs []Run) []interface{} {
	ids := make([]interface{}, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids
}
// #endregion helpers
