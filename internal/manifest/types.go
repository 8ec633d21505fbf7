package manifest

import (
	"fmt"
	"strconv"
	"strings"
)

// #region optimizer
// Optimizer identifies the trainer's optimizer choice.
type Optimizer string

const (
	OptimizerAdam Optimizer = "adam"
	OptimizerSGD  Optimizer = "sgd"
)

// Valid reports whether o is an optimizer the trainer understands.
func (o Optimizer) Valid() bool {
	switch o {
	case OptimizerAdam, OptimizerSGD:
		return true
	}
	return false
}
// #endregion optimizer

// #region params
// Params holds the hyperparameter overrides for one experiment.
// A nil field means the trainer applies its own default.
type Params struct {
	BatchSize    *int       `json:"batch_size,omitempty"`
	LearningRate *float64   `json:"learning_rate,omitempty"`
	Optimizer    *Optimizer `json:"optimizer,omitempty"`
	Augment      *bool      `json:"augment,omitempty"`
}

// Augmented reports whether augmentation was explicitly enabled.
func (p Params) Augmented() bool {
	return p.Augment != nil && *p.Augment
}

// String renders the present keys in a stable order, e.g.
// {optimizer: adam, learning_rate: 0.0001, augment: false}.
func (p Params) String() string {
	var parts []string
	if p.BatchSize != nil {
		parts = append(parts, "batch_size: "+strconv.Itoa(*p.BatchSize))
	}
	if p.Optimizer != nil {
		parts = append(parts, "optimizer: "+string(*p.Optimizer))
	}
	if p.LearningRate != nil {
		parts = append(parts, "learning_rate: "+FormatFloat(*p.LearningRate))
	}
	if p.Augment != nil {
		parts = append(parts, "augment: "+strconv.FormatBool(*p.Augment))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// FormatFloat renders f in its shortest round-trip form (0.0001, 1e-05).
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
// #endregion params

// #region experiment
// ExperimentConfig names one experiment and its hyperparameters.
type ExperimentConfig struct {
	Name   string `json:"name"`
	Params Params `json:"params"`
}

// Validate checks the name and every present parameter.
func (e ExperimentConfig) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("experiment name is empty")
	}
	p := e.Params
	if p.BatchSize != nil && *p.BatchSize <= 0 {
		return fmt.Errorf("experiment %s: batch_size must be positive, got %d", e.Name, *p.BatchSize)
	}
	if p.LearningRate != nil && !(*p.LearningRate > 0) {
		return fmt.Errorf("experiment %s: learning_rate must be positive, got %s", e.Name, FormatFloat(*p.LearningRate))
	}
	if p.Optimizer != nil && !p.Optimizer.Valid() {
		return fmt.Errorf("experiment %s: unknown optimizer %q", e.Name, *p.Optimizer)
	}
	return nil
}
// #endregion experiment

// #region pointer-helpers
// Int returns a pointer to v, for building Params literals.
func Int(v int) *int { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Opt returns a pointer to v.
func Opt(v Optimizer) *Optimizer { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
// #endregion pointer-helpers
