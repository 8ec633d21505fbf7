package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/expgrid/internal/ledger"
)

// #region main

func main() {
	dbPath := flag.String("db", os.Getenv("EXPGRID_LEDGER"), "path to the runner ledger")
	last := flag.Int("last", 10, "show N most recent batches")
	batch := flag.String("batch", "", "show attempts for one batch")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: ledger --db path/to/ledger.db [--last N] [--batch id] [--json]")
		os.Exit(2)
	}

	store, err := ledger.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *batch != "" {
		err = runBatchMode(store, *batch, *jsonOut)
	} else {
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		store.Close()
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type batchRow struct {
	BatchID    string `json:"batch_id"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
	Total      int    `json:"total"`
	Failed     int    `json:"failed"`
}

func runListMode(store *ledger.Store, last int, jsonOut bool) error {
	batches, err := store.ListBatches(last)
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		fmt.Fprintln(os.Stderr, "no batches found")
		return nil
	}

	rows := make([]batchRow, len(batches))
	for i, b := range batches {
		rows[i] = batchRow{
			BatchID:    b.BatchID,
			StartedAt:  formatTime(b.StartedAt),
			FinishedAt: formatTime(b.FinishedAt),
			Total:      b.Total,
			Failed:     b.Failed,
		}
	}
	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-36s  %-20s  %-20s  %5s  %6s\n", "Batch", "Started", "Finished", "Total", "Failed")
	fmt.Printf("%-36s+-%-20s+-%-20s+-%5s+-%6s\n",
		"------------------------------------", "--------------------", "--------------------", "-----", "------")
	for _, r := range rows {
		finished := r.FinishedAt
		if finished == "" {
			finished = "running"
		}
		fmt.Printf("%-36s  %-20s  %-20s  %5d  %6d\n", r.BatchID, r.StartedAt, finished, r.Total, r.Failed)
	}
	return nil
}

// #endregion list-mode

// #region batch-mode

type attemptRow struct {
	Experiment string      `json:"experiment"`
	ExitCode   int         `json:"exit_code"`
	Error      string      `json:"error,omitempty"`
	Duration   string      `json:"duration"`
	Params     interface{} `json:"params,omitempty"`
	Argv       []string    `json:"argv,omitempty"`
}

func runBatchMode(store *ledger.Store, batchID string, jsonOut bool) error {
	attempts, err := store.ListAttempts(batchID)
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		return fmt.Errorf("no attempts recorded for batch %s", batchID)
	}

	rows := make([]attemptRow, len(attempts))
	for i, a := range attempts {
		r := attemptRow{
			Experiment: a.Experiment,
			ExitCode:   a.ExitCode,
			Error:      a.Error,
			Duration:   a.FinishedAt.Sub(a.StartedAt).Round(time.Second).String(),
		}
		if a.ParamsJSON != "" {
			var params map[string]interface{}
			if err := json.Unmarshal([]byte(a.ParamsJSON), &params); err == nil {
				r.Params = params
			}
		}
		if a.ArgvJSON != "" {
			_ = json.Unmarshal([]byte(a.ArgvJSON), &r.Argv)
		}
		rows[i] = r
	}
	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-25s  %4s  %10s  %s\n", "Experiment", "Exit", "Duration", "Result")
	for _, r := range rows {
		result := "ok"
		if r.Error != "" {
			result = r.Error
		}
		fmt.Printf("%-25s  %4d  %10s  %s\n", r.Experiment, r.ExitCode, r.Duration, result)
	}
	return nil
}

// #endregion batch-mode

// #region helpers

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02T15:04:05Z")
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// #endregion helpers
