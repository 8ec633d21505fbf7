// Package config resolves expgrid settings from the environment. Command
// flags take the values here as their defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/danielpatrickdp/expgrid/internal/compare"
	"github.com/danielpatrickdp/expgrid/internal/runner"
	"github.com/danielpatrickdp/expgrid/internal/tracking"
	"github.com/danielpatrickdp/expgrid/internal/trainer"
)

// #region config
// Config is shared by the runner, comparator and ledger commands.
type Config struct {
	ManifestPath string
	Experiments  []string // comparator name override; empty means the manifest's names

	TrainerCommand []string
	TrainerDir     string
	DataPath       string
	Delay          time.Duration
	TrainerTimeout time.Duration

	TrackingURI  string
	TrackingAuth tracking.Auth
	OutputPath   string

	LedgerPath string
	LogJSON    bool
}

// FromEnv reads EXPGRID_* and MLFLOW_* variables, falling back to defaults.
func FromEnv() (Config, error) {
	return fromLookup(os.Getenv)
}

func fromLookup(getenv func(string) string) (Config, error) {
	envOr := func(key, fallback string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback
	}

	spec := trainer.DefaultSpec()
	cfg := Config{
		ManifestPath:   getenv("EXPGRID_MANIFEST"),
		Experiments:    SplitList(getenv("EXPGRID_EXPERIMENTS")),
		TrainerCommand: strings.Fields(envOr("EXPGRID_TRAINER", strings.Join(spec.Command, " "))),
		TrainerDir:     getenv("EXPGRID_TRAINER_DIR"),
		DataPath:       envOr("EXPGRID_DATA_PATH", spec.DataPath),
		TrackingURI:    envOr("MLFLOW_TRACKING_URI", tracking.DefaultURI),
		TrackingAuth: tracking.Auth{
			Token:    getenv("MLFLOW_TRACKING_TOKEN"),
			Username: getenv("MLFLOW_TRACKING_USERNAME"),
			Password: getenv("MLFLOW_TRACKING_PASSWORD"),
		},
		OutputPath: envOr("EXPGRID_OUTPUT", compare.DefaultOutputPath),
		LedgerPath: getenv("EXPGRID_LEDGER"),
	}

	var err error
	if cfg.Delay, err = durationOr(getenv("EXPGRID_DELAY"), runner.DefaultDelay); err != nil {
		return Config{}, fmt.Errorf("EXPGRID_DELAY: %w", err)
	}
	if cfg.TrainerTimeout, err = durationOr(getenv("EXPGRID_TRAINER_TIMEOUT"), 0); err != nil {
		return Config{}, fmt.Errorf("EXPGRID_TRAINER_TIMEOUT: %w", err)
	}
	if v := getenv("EXPGRID_LOG_JSON"); v != "" {
		if cfg.LogJSON, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("EXPGRID_LOG_JSON: %w", err)
		}
	}
	return cfg, nil
}
// #endregion config

// #region trainer-spec
// TrainerSpec builds the trainer contract from the resolved settings.
func (c Config) TrainerSpec() trainer.Spec {
	spec := trainer.DefaultSpec()
	if len(c.TrainerCommand) > 0 {
		spec.Command = c.TrainerCommand
	}
	if c.DataPath != "" {
		spec.DataPath = c.DataPath
	}
	spec.Dir = c.TrainerDir
	return spec
}
// #endregion trainer-spec

// #region helpers
// SplitList splits a comma-separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func durationOr(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}
// #endregion helpers
