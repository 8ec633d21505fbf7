// Package runner executes an experiment grid one trainer process at a time.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/danielpatrickdp/expgrid/internal/ledger"
	"github.com/danielpatrickdp/expgrid/internal/logging"
	"github.com/danielpatrickdp/expgrid/internal/manifest"
	"github.com/danielpatrickdp/expgrid/internal/trainer"
)

// #region constants

// DefaultDelay is the pause after each experiment so the tracking backend
// can settle its writes.
const DefaultDelay = 2 * time.Second

// #endregion

// #region types

// Recorder persists batch and attempt history. *ledger.Store implements it.
type Recorder interface {
	StartBatch(total int) (ledger.Batch, error)
	RecordAttempt(a ledger.Attempt) error
	FinishBatch(batchID string, failed int) error
}

// Config wires a Runner. Launcher is required; everything else defaults.
type Config struct {
	Spec     trainer.Spec
	Launcher trainer.Launcher
	Recorder Recorder // optional
	Logger   logging.Logger
	Out      io.Writer
	Delay    time.Duration // zero means DefaultDelay
	NoDelay  bool          // skip the pause entirely
	Sleep    func(time.Duration)
}

// Result is the outcome of one experiment.
type Result struct {
	Experiment string
	Argv       []string
	Exit       trainer.Exit
	Err        error
}

// OK reports whether the trainer exited cleanly.
func (r Result) OK() bool { return r.Err == nil }

// Runner launches each experiment in order and never stops on a failed one.
type Runner struct {
	cfg Config
	now func() time.Time
}

// #endregion

// #region constructor

// New applies defaults to cfg and returns a Runner.
func New(cfg Config) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	if cfg.NoDelay {
		cfg.Delay = 0
	} else if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	cfg.Spec = cfg.Spec.WithDefaults()
	return &Runner{cfg: cfg, now: time.Now}
}

// #endregion

// #region run

// Run executes experiments sequentially. A failing trainer is reported and
// skipped; only context cancellation ends the loop early.
func (r *Runner) Run(ctx context.Context, experiments []manifest.ExperimentConfig) ([]Result, error) {
	fmt.Fprintf(r.cfg.Out, "Starting %d experiments...\n", len(experiments))

	batchID := r.startBatch(len(experiments))
	results := make([]Result, 0, len(experiments))
	failed := 0

	for _, exp := range experiments {
		if err := ctx.Err(); err != nil {
			r.finishBatch(batchID, failed)
			return results, fmt.Errorf("runner stopped before %s: %w", exp.Name, err)
		}

		res := r.runOne(ctx, batchID, exp)
		results = append(results, res)
		if !res.OK() {
			failed++
		}

		if r.cfg.Delay > 0 {
			r.cfg.Sleep(r.cfg.Delay)
		}
	}

	r.finishBatch(batchID, failed)
	fmt.Fprintln(r.cfg.Out, "All experiments completed.")
	r.cfg.Logger.Info("batch complete", "batch_id", batchID, "total", len(experiments), "failed", failed)
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, batchID string, exp manifest.ExperimentConfig) Result {
	fmt.Fprintf(r.cfg.Out, "Running experiment: %s\n", exp.Name)
	fmt.Fprintf(r.cfg.Out, "Params: %s\n", exp.Params)

	inv := trainer.Build(r.cfg.Spec, exp)
	r.cfg.Logger.Debug("launching trainer", "experiment", exp.Name, "argv", inv.Argv)

	started := r.now()
	exit, err := r.cfg.Launcher.Launch(ctx, inv)
	finished := r.now()

	res := Result{Experiment: exp.Name, Argv: inv.Argv, Exit: exit, Err: err}
	if err != nil {
		fmt.Fprintf(r.cfg.Out, "Experiment %s failed with error: %v\n\n", exp.Name, err)
		r.cfg.Logger.Error("experiment failed", "experiment", exp.Name, "exit_code", exit.Code, "error", err.Error())
	} else {
		fmt.Fprintf(r.cfg.Out, "Experiment %s completed successfully.\n\n", exp.Name)
		r.cfg.Logger.Info("experiment completed", "experiment", exp.Name, "duration", exit.Duration.String())
	}

	r.recordAttempt(batchID, exp, res, started, finished)
	return res
}

// #endregion

// #region ledger

// Ledger problems are logged and never interrupt the grid.

func (r *Runner) startBatch(total int) string {
	if r.cfg.Recorder == nil {
		return ""
	}
	b, err := r.cfg.Recorder.StartBatch(total)
	if err != nil {
		r.cfg.Logger.Warn("ledger start batch failed", "error", err.Error())
		return ""
	}
	return b.BatchID
}

func (r *Runner) recordAttempt(batchID string, exp manifest.ExperimentConfig, res Result, started, finished time.Time) {
	if r.cfg.Recorder == nil || batchID == "" {
		return
	}
	paramsJSON, _ := json.Marshal(exp.Params)
	argvJSON, _ := json.Marshal(res.Argv)
	a := ledger.Attempt{
		BatchID:    batchID,
		Experiment: exp.Name,
		ParamsJSON: string(paramsJSON),
		ArgvJSON:   string(argvJSON),
		ExitCode:   res.Exit.Code,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if res.Err != nil {
		a.Error = res.Err.Error()
	}
	if err := r.cfg.Recorder.RecordAttempt(a); err != nil {
		r.cfg.Logger.Warn("ledger record failed", "experiment", exp.Name, "error", err.Error())
	}
}

func (r *Runner) finishBatch(batchID string, failed int) {
	if r.cfg.Recorder == nil || batchID == "" {
		return
	}
	if err := r.cfg.Recorder.FinishBatch(batchID, failed); err != nil {
		r.cfg.Logger.Warn("ledger finish batch failed", "batch_id", batchID, "error", err.Error())
	}
}

// #endregion
