package ledger

import (
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fixedClock makes batch timestamps deterministic and strictly increasing.
func fixedClock(s *Store, start time.Time) {
	next := start
	s.now = func() time.Time {
		next = next.Add(time.Second)
		return next
	}
}

func TestStartAndFinishBatch(t *testing.T) {
	s := tempStore(t)
	fixedClock(s, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	b, err := s.StartBatch(4)
	if err != nil {
		t.Fatalf("StartBatch: %v", err)
	}
	if b.BatchID == "" {
		t.Fatal("expected non-empty batch ID")
	}

	if err := s.FinishBatch(b.BatchID, 1); err != nil {
		t.Fatalf("FinishBatch: %v", err)
	}

	batches, err := s.ListBatches(10)
	if err != nil {
		t.Fatalf("ListBatches: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(batches))
	}
	got := batches[0]
	if got.Total != 4 || got.Failed != 1 {
		t.Errorf("expected total=4 failed=1, got total=%d failed=%d", got.Total, got.Failed)
	}
	if got.FinishedAt.IsZero() {
		t.Error("expected finished_at to be set")
	}
	if !got.FinishedAt.After(got.StartedAt) {
		t.Errorf("expected finish after start, got %v <= %v", got.FinishedAt, got.StartedAt)
	}
}

func TestFinishBatch_Unknown(t *testing.T) {
	s := tempStore(t)
	if err := s.FinishBatch("no-such-batch", 0); err == nil {
		t.Fatal("expected error for unknown batch")
	}
}

func TestListBatches_MostRecentFirst(t *testing.T) {
	s := tempStore(t)
	fixedClock(s, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	first, _ := s.StartBatch(1)
	second, _ := s.StartBatch(2)
	third, _ := s.StartBatch(3)

	batches, err := s.ListBatches(2)
	if err != nil {
		t.Fatalf("ListBatches: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(batches))
	}
	if batches[0].BatchID != third.BatchID || batches[1].BatchID != second.BatchID {
		t.Errorf("unexpected order: %s, %s (first was %s)", batches[0].BatchID, batches[1].BatchID, first.BatchID)
	}
	if !batches[0].FinishedAt.IsZero() {
		t.Error("unfinished batch should have zero FinishedAt")
	}
}

func TestRecordAndListAttempts(t *testing.T) {
	s := tempStore(t)
	b, err := s.StartBatch(2)
	if err != nil {
		t.Fatalf("StartBatch: %v", err)
	}

	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	attempts := []Attempt{
		{
			BatchID:    b.BatchID,
			Experiment: "exp_baseline_adam",
			ParamsJSON: `{"optimizer":"adam"}`,
			ArgvJSON:   `["python","main.py"]`,
			StartedAt:  start,
			FinishedAt: start.Add(time.Minute),
		},
		{
			BatchID:    b.BatchID,
			Experiment: "exp_optimizer_sgd",
			ExitCode:   1,
			Error:      "trainer for exp_optimizer_sgd exited with status 1",
			StartedAt:  start.Add(2 * time.Minute),
			FinishedAt: start.Add(3 * time.Minute),
		},
	}
	for _, a := range attempts {
		if err := s.RecordAttempt(a); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}

	got, err := s.ListAttempts(b.BatchID)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(got))
	}
	if got[0].Experiment != "exp_baseline_adam" || !got[0].Succeeded() {
		t.Errorf("unexpected first attempt: %+v", got[0])
	}
	if got[0].ParamsJSON != `{"optimizer":"adam"}` {
		t.Errorf("params not round-tripped: %q", got[0].ParamsJSON)
	}
	if !got[0].StartedAt.Equal(start) {
		t.Errorf("expected start %v, got %v", start, got[0].StartedAt)
	}
	if got[1].Succeeded() || got[1].ExitCode != 1 {
		t.Errorf("expected failed second attempt, got %+v", got[1])
	}
	if got[1].ParamsJSON != "" {
		t.Errorf("expected empty params, got %q", got[1].ParamsJSON)
	}
}

func TestRecordAttempt_UnknownBatch(t *testing.T) {
	s := tempStore(t)
	err := s.RecordAttempt(Attempt{BatchID: "missing", Experiment: "e", StartedAt: time.Now(), FinishedAt: time.Now()})
	if err == nil {
		t.Fatal("expected foreign key error")
	}
}
