package trainer

import (
	"strconv"

	"github.com/danielpatrickdp/expgrid/internal/manifest"
)

// #region spec
// Spec describes how to call the external trainer.
type Spec struct {
	Command       []string // program and leading args, e.g. ["python", "main.py"]
	Mode          string
	DataPath      string
	TrackingFlag  string
	ExperimentEnv string // variable the trainer reads to pick its tracking experiment
	Dir           string // working directory; empty means inherit
}

// DefaultSpec returns the trainer contract the experiment grid was built for.
func DefaultSpec() Spec {
	return Spec{
		Command:       []string{"python", "main.py"},
		Mode:          "train",
		DataPath:      "data/train",
		TrackingFlag:  "--use_mlflow",
		ExperimentEnv: "MLFLOW_EXPERIMENT_NAME",
	}
}

// WithDefaults fills each empty field from DefaultSpec and keeps the rest.
func (s Spec) WithDefaults() Spec {
	def := DefaultSpec()
	if len(s.Command) == 0 {
		s.Command = def.Command
	}
	if s.Mode == "" {
		s.Mode = def.Mode
	}
	if s.DataPath == "" {
		s.DataPath = def.DataPath
	}
	if s.TrackingFlag == "" {
		s.TrackingFlag = def.TrackingFlag
	}
	if s.ExperimentEnv == "" {
		s.ExperimentEnv = def.ExperimentEnv
	}
	return s
}
// #endregion spec

// #region invocation
// Invocation is a fully resolved trainer call. Env holds only overrides;
// the launcher layers them over a copy of the parent environment.
type Invocation struct {
	Experiment string
	Argv       []string
	Env        map[string]string
	Dir        string
}

// Build resolves the argv and env overrides for one experiment.
// Absent params are omitted so the trainer falls back to its defaults.
func Build(spec Spec, exp manifest.ExperimentConfig) Invocation {
	argv := make([]string, 0, len(spec.Command)+12)
	argv = append(argv, spec.Command...)
	argv = append(argv, "--mode", spec.Mode, "--data_path", spec.DataPath, spec.TrackingFlag)

	p := exp.Params
	if p.BatchSize != nil {
		argv = append(argv, "--batch_size", strconv.Itoa(*p.BatchSize))
	}
	if p.LearningRate != nil {
		argv = append(argv, "--learning_rate", manifest.FormatFloat(*p.LearningRate))
	}
	if p.Optimizer != nil {
		argv = append(argv, "--optimizer", string(*p.Optimizer))
	}
	if p.Augmented() {
		argv = append(argv, "--augment")
	}

	return Invocation{
		Experiment: exp.Name,
		Argv:       argv,
		Env:        map[string]string{spec.ExperimentEnv: exp.Name},
		Dir:        spec.Dir,
	}
}
// #endregion invocation
