package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/danielpatrickdp/expgrid/internal/compare"
	"github.com/danielpatrickdp/expgrid/internal/config"
	"github.com/danielpatrickdp/expgrid/internal/logging"
	"github.com/danielpatrickdp/expgrid/internal/manifest"
	"github.com/danielpatrickdp/expgrid/internal/tracking"
)

// #region main
func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}

	fs := flag.NewFlagSet("compare-experiments", flag.ContinueOnError)
	fs.SetOutput(stderr)
	manifestPath := fs.String("manifest", cfg.ManifestPath, "JSON experiment manifest supplying the names to compare")
	experiments := fs.String("experiments", "", "comma-separated names overriding the manifest")
	trackingURI := fs.String("tracking-uri", cfg.TrackingURI, "MLflow tracking server (http[s]://) or SQL store (sqlite:///)")
	output := fs.String("output", cfg.OutputPath, "comparison CSV path")
	logJSON := fs.Bool("log-json", cfg.LogJSON, "emit JSON logs on stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *experiments != "" {
		cfg.Experiments = config.SplitList(*experiments)
	}
	cfg.ManifestPath = *manifestPath
	cfg.TrackingURI = *trackingURI
	cfg.OutputPath = *output
	cfg.LogJSON = *logJSON

	logger, err := logging.New(logging.Options{Output: stderr, JSON: cfg.LogJSON})
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer logger.Close()

	names := cfg.Experiments
	if len(names) == 0 {
		m, err := manifest.LoadOrDefault(cfg.ManifestPath)
		if err != nil {
			fmt.Fprintf(stderr, "manifest: %v\n", err)
			return 1
		}
		names = m.Names()
	}

	backend, err := tracking.Open(cfg.TrackingURI, cfg.TrackingAuth)
	if err != nil {
		fmt.Fprintf(stderr, "failed to open tracking backend %s: %v\n", cfg.TrackingURI, err)
		return 1
	}
	defer backend.Close()

	cmp := compare.New(compare.Config{Backend: backend, Logger: logger, Out: stdout})
	rows, err := cmp.Compare(ctx, names)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if _, err := cmp.Save(cfg.OutputPath, rows); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
// #endregion main
