package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS batches (
	batch_id      TEXT PRIMARY KEY,
	started_at    TEXT NOT NULL,
	finished_at   TEXT,
	total         INTEGER NOT NULL,
	failed        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS attempts (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_id      TEXT NOT NULL,
	experiment    TEXT NOT NULL,
	params_json   TEXT,
	argv_json     TEXT,
	exit_code     INTEGER NOT NULL,
	error         TEXT,
	started_at    TEXT NOT NULL,
	finished_at   TEXT NOT NULL,
	FOREIGN KEY (batch_id) REFERENCES batches(batch_id)
);

CREATE INDEX IF NOT EXISTS idx_attempts_experiment ON attempts(experiment);
`

// timeLayout is fixed-width so TEXT ordering matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
// #endregion schema

// #region store-struct
// Store keeps a local history of runner batches and trainer attempts in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// PRAGMAs are per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion constructor

// #region start-batch
// StartBatch opens a new batch expecting total attempts.
func (s *Store) StartBatch(total int) (Batch, error) {
	b := Batch{
		BatchID:   uuid.New().String(),
		StartedAt: s.now(),
		Total:     total,
	}
	_, err := s.db.Exec(
		`INSERT INTO batches (batch_id, started_at, total) VALUES (?, ?, ?)`,
		b.BatchID, b.StartedAt.Format(timeLayout), total,
	)
	if err != nil {
		return Batch{}, fmt.Errorf("insert batch: %w", err)
	}
	return b, nil
}
// #endregion start-batch

// #region record-attempt
// RecordAttempt appends an attempt to its batch.
func (s *Store) RecordAttempt(a Attempt) error {
	_, err := s.db.Exec(
		`INSERT INTO attempts (batch_id, experiment, params_json, argv_json, exit_code, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.BatchID, a.Experiment, nullIfEmpty(a.ParamsJSON), nullIfEmpty(a.ArgvJSON),
		a.ExitCode, nullIfEmpty(a.Error),
		a.StartedAt.UTC().Format(timeLayout), a.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert attempt %s: %w", a.Experiment, err)
	}
	return nil
}
// #endregion record-attempt

// #region finish-batch
// FinishBatch stamps the batch end time and its failure count.
func (s *Store) FinishBatch(batchID string, failed int) error {
	res, err := s.db.Exec(
		`UPDATE batches SET finished_at = ?, failed = ? WHERE batch_id = ?`,
		s.now().Format(timeLayout), failed, batchID,
	)
	if err != nil {
		return fmt.Errorf("finish batch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish batch: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("batch %s not found", batchID)
	}
	return nil
}
// #endregion finish-batch

// #region list-batches
// ListBatches returns the most recent batches first.
func (s *Store) ListBatches(limit int) ([]Batch, error) {
	rows, err := s.db.Query(
		`SELECT batch_id, started_at, finished_at, total, failed
		 FROM batches ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		var startedStr string
		var finishedStr sql.NullString
		if err := rows.Scan(&b.BatchID, &startedStr, &finishedStr, &b.Total, &b.Failed); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		b.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
		if finishedStr.Valid {
			b.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedStr.String)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}
// #endregion list-batches

// #region list-attempts
// ListAttempts returns a batch's attempts in execution order.
func (s *Store) ListAttempts(batchID string) ([]Attempt, error) {
	rows, err := s.db.Query(
		`SELECT batch_id, experiment, params_json, argv_json, exit_code, error, started_at, finished_at
		 FROM attempts WHERE batch_id = ? ORDER BY id ASC`, batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var paramsJSON, argvJSON, errStr sql.NullString
		var startedStr, finishedStr string
		if err := rows.Scan(&a.BatchID, &a.Experiment, &paramsJSON, &argvJSON, &a.ExitCode, &errStr, &startedStr, &finishedStr); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.ParamsJSON = paramsJSON.String
		a.ArgvJSON = argvJSON.String
		a.Error = errStr.String
		a.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
		a.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedStr)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
// #endregion list-attempts

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
