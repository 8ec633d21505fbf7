package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danielpatrickdp/expgrid/internal/config"
	"github.com/danielpatrickdp/expgrid/internal/ledger"
	"github.com/danielpatrickdp/expgrid/internal/logging"
	"github.com/danielpatrickdp/expgrid/internal/manifest"
	"github.com/danielpatrickdp/expgrid/internal/runner"
	"github.com/danielpatrickdp/expgrid/internal/trainer"
)

// #region main
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run returns the process exit code. Everything it opens is closed by the
// time it returns, including on interrupt.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}

	fs := flag.NewFlagSet("run-experiments", flag.ContinueOnError)
	fs.SetOutput(stderr)
	manifestPath := fs.String("manifest", cfg.ManifestPath, "JSON experiment manifest (default: built-in grid)")
	trainerCmd := fs.String("trainer", strings.Join(cfg.TrainerCommand, " "), "trainer command line")
	trainerDir := fs.String("trainer-dir", cfg.TrainerDir, "working directory for the trainer")
	dataPath := fs.String("data-path", cfg.DataPath, "value passed as --data_path")
	delay := fs.Duration("delay", cfg.Delay, "pause after each experiment (0 disables)")
	timeout := fs.Duration("trainer-timeout", cfg.TrainerTimeout, "per-experiment timeout (0 waits forever)")
	ledgerPath := fs.String("ledger", cfg.LedgerPath, "sqlite ledger recording each attempt (optional)")
	logJSON := fs.Bool("log-json", cfg.LogJSON, "emit JSON logs on stderr")
	dryRun := fs.Bool("dry-run", false, "print trainer command lines without running them")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg.ManifestPath = *manifestPath
	cfg.TrainerCommand = strings.Fields(*trainerCmd)
	cfg.TrainerDir = *trainerDir
	cfg.DataPath = *dataPath
	cfg.Delay = *delay
	cfg.TrainerTimeout = *timeout
	cfg.LedgerPath = *ledgerPath
	cfg.LogJSON = *logJSON

	logger, err := logging.New(logging.Options{Output: stderr, JSON: cfg.LogJSON})
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer logger.Close()

	m, err := manifest.LoadOrDefault(cfg.ManifestPath)
	if err != nil {
		fmt.Fprintf(stderr, "manifest: %v\n", err)
		return 1
	}

	if *dryRun {
		printDryRun(stdout, cfg.TrainerSpec(), m)
		return 0
	}

	runCfg := runner.Config{
		Spec:     cfg.TrainerSpec(),
		Launcher: trainer.NewExecLauncher(cfg.TrainerTimeout),
		Logger:   logger,
		Out:      stdout,
		Delay:    cfg.Delay,
		NoDelay:  cfg.Delay == 0,
	}

	if cfg.LedgerPath != "" {
		store, err := ledger.NewStore(cfg.LedgerPath)
		if err != nil {
			fmt.Fprintf(stderr, "failed to open ledger: %v\n", err)
			return 1
		}
		defer store.Close()
		runCfg.Recorder = store
	}

	if _, err := runner.New(runCfg).Run(ctx, m.Experiments); err != nil {
		logger.Error("run interrupted", "error", err.Error())
		fmt.Fprintf(stderr, "run interrupted: %v\n", err)
		return 1
	}
	return 0
}
// #endregion main

// #region dry-run
func printDryRun(w io.Writer, spec trainer.Spec, m manifest.Manifest) {
	for _, exp := range m.Experiments {
		inv := trainer.Build(spec, exp)
		for k, v := range inv.Env {
			fmt.Fprintf(w, "%s=%s ", k, v)
		}
		fmt.Fprintln(w, strings.Join(inv.Argv, " "))
	}
}
// #endregion dry-run
