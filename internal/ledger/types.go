package ledger

import "time"

// #region batch
// Batch is one invocation of the experiment runner.
type Batch struct {
	BatchID    string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the batch is still running
	Total      int
	Failed     int
}
// #endregion batch

// #region attempt
// Attempt records one trainer execution inside a batch.
type Attempt struct {
	BatchID    string
	Experiment string
	ParamsJSON string
	ArgvJSON   string
	ExitCode   int
	Error      string // empty on success
	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded reports whether the trainer exited cleanly.
func (a Attempt) Succeeded() bool {
	return a.ExitCode == 0 && a.Error == ""
}
// #endregion attempt
