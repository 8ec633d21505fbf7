package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"time"
)

// #region types
// Exit is the outcome of a finished trainer process.
type Exit struct {
	Code     int
	Duration time.Duration
}

// ExitError reports a trainer that ran to completion with a non-zero status.
type ExitError struct {
	Experiment string
	Code       int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("trainer for %s exited with status %d", e.Experiment, e.Code)
}

// Launcher runs one trainer invocation to completion.
type Launcher interface {
	Launch(ctx context.Context, inv Invocation) (Exit, error)
}
// #endregion types

// #region exec-launcher
// ExecLauncher runs the trainer as a child process and blocks until it exits.
type ExecLauncher struct {
	Stdout io.Writer
	Stderr io.Writer
	// Timeout bounds each run when positive. Zero waits indefinitely.
	Timeout time.Duration
}

// NewExecLauncher returns a launcher that streams trainer output to this
// process's stdout and stderr.
func NewExecLauncher(timeout time.Duration) *ExecLauncher {
	return &ExecLauncher{Stdout: os.Stdout, Stderr: os.Stderr, Timeout: timeout}
}

// Launch starts inv and waits for it. A non-zero exit yields *ExitError
// alongside the populated Exit.
func (l *ExecLauncher) Launch(ctx context.Context, inv Invocation) (Exit, error) {
	if len(inv.Argv) == 0 {
		return Exit{Code: -1}, fmt.Errorf("launch %s: empty command", inv.Experiment)
	}
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, inv.Argv[0], inv.Argv[1:]...)
	cmd.Dir = inv.Dir
	cmd.Env = mergeEnv(os.Environ(), inv.Env)
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr

	start := time.Now()
	err := cmd.Run()
	exit := Exit{Duration: time.Since(start)}
	if err == nil {
		return exit, nil
	}

	if ctx.Err() != nil {
		exit.Code = -1
		return exit, fmt.Errorf("launch %s: %w", inv.Experiment, ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exit.Code = exitErr.ExitCode()
		return exit, &ExitError{Experiment: inv.Experiment, Code: exit.Code}
	}
	exit.Code = -1
	return exit, fmt.Errorf("launch %s: %w", inv.Experiment, err)
}
// #endregion exec-launcher

// #region env
// mergeEnv appends overrides in key order. os/exec keeps the last value of a
// duplicated key, so overrides win over inherited values.
func mergeEnv(base []string, overrides map[string]string) []string {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(base)+len(keys))
	env = append(env, base...)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}
// #endregion env
