package config

import (
	"strings"
	"testing"
	"time"
)

func lookup(env map[string]string) func(string) string {
	return func(k string) string { return env[k] }
}

func TestFromLookup_Defaults(t *testing.T) {
	cfg, err := fromLookup(lookup(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Delay != 2*time.Second {
		t.Errorf("expected 2s delay, got %v", cfg.Delay)
	}
	if cfg.TrainerTimeout != 0 {
		t.Errorf("expected no trainer timeout, got %v", cfg.TrainerTimeout)
	}
	if cfg.OutputPath != "experiment_comparison.csv" {
		t.Errorf("unexpected output path %q", cfg.OutputPath)
	}
	if cfg.TrackingURI != "http://localhost:5000" {
		t.Errorf("unexpected tracking uri %q", cfg.TrackingURI)
	}
	if strings.Join(cfg.TrainerCommand, " ") != "python main.py" {
		t.Errorf("unexpected trainer command %v", cfg.TrainerCommand)
	}
	if cfg.ManifestPath != "" || len(cfg.Experiments) != 0 || cfg.LedgerPath != "" || cfg.LogJSON {
		t.Errorf("expected empty optional settings, got %+v", cfg)
	}
}

func TestFromLookup_Overrides(t *testing.T) {
	cfg, err := fromLookup(lookup(map[string]string{
		"EXPGRID_MANIFEST":        "grid.json",
		"EXPGRID_EXPERIMENTS":     "exp_a, ,exp_b",
		"EXPGRID_TRAINER":         "/usr/bin/python3 -u train.py",
		"EXPGRID_DATA_PATH":       "/data/set",
		"EXPGRID_DELAY":           "500ms",
		"EXPGRID_TRAINER_TIMEOUT": "2h",
		"MLFLOW_TRACKING_URI":     "sqlite:///mlflow.db",
		"MLFLOW_TRACKING_TOKEN":   "tok",
		"EXPGRID_OUTPUT":          "out.csv",
		"EXPGRID_LEDGER":          "ledger.db",
		"EXPGRID_LOG_JSON":        "true",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(cfg.Experiments, "|") != "exp_a|exp_b" {
		t.Errorf("unexpected experiments %v", cfg.Experiments)
	}
	if cfg.Delay != 500*time.Millisecond || cfg.TrainerTimeout != 2*time.Hour {
		t.Errorf("unexpected durations %v %v", cfg.Delay, cfg.TrainerTimeout)
	}
	if cfg.TrackingAuth.Token != "tok" || !cfg.LogJSON {
		t.Errorf("unexpected auth/log settings %+v", cfg)
	}

	spec := cfg.TrainerSpec()
	if strings.Join(spec.Command, " ") != "/usr/bin/python3 -u train.py" {
		t.Errorf("unexpected spec command %v", spec.Command)
	}
	if spec.DataPath != "/data/set" || spec.Mode != "train" {
		t.Errorf("unexpected spec %+v", spec)
	}
}

func TestFromLookup_Invalid(t *testing.T) {
	for key, val := range map[string]string{
		"EXPGRID_DELAY":           "soon",
		"EXPGRID_TRAINER_TIMEOUT": "-1s",
		"EXPGRID_LOG_JSON":        "maybe",
	} {
		if _, err := fromLookup(lookup(map[string]string{key: val})); err == nil {
			t.Errorf("%s=%s: expected error", key, val)
		} else if !strings.Contains(err.Error(), key) {
			t.Errorf("expected error to name %s, got %v", key, err)
		}
	}
}
