package manifest

import (
	"encoding/json"
	"fmt"
	"os"
)

// #region manifest
// Manifest is the ordered experiment grid shared by the runner and the
// comparator. Both read names from here so they cannot drift apart.
type Manifest struct {
	Experiments []ExperimentConfig `json:"experiments"`
}

// Default returns the built-in four-experiment grid.
func Default() Manifest {
	return Manifest{Experiments: []ExperimentConfig{
		{
			Name: "exp_baseline_adam",
			Params: Params{
				Optimizer:    Opt(OptimizerAdam),
				LearningRate: Float(1e-4),
				Augment:      Bool(false),
			},
		},
		{
			Name: "exp_optimizer_sgd",
			Params: Params{
				Optimizer:    Opt(OptimizerSGD),
				LearningRate: Float(1e-4),
				Augment:      Bool(false),
			},
		},
		{
			Name: "exp_lr_high",
			Params: Params{
				Optimizer:    Opt(OptimizerAdam),
				LearningRate: Float(1e-3),
				Augment:      Bool(false),
			},
		},
		{
			Name: "exp_augmentation",
			Params: Params{
				Optimizer:    Opt(OptimizerAdam),
				LearningRate: Float(1e-4),
				Augment:      Bool(true),
			},
		},
	}}
}

// Names returns experiment names in manifest order.
func (m Manifest) Names() []string {
	names := make([]string, len(m.Experiments))
	for i, e := range m.Experiments {
		names[i] = e.Name
	}
	return names
}

// Validate checks every experiment and rejects duplicate names.
func (m Manifest) Validate() error {
	if len(m.Experiments) == 0 {
		return fmt.Errorf("manifest has no experiments")
	}
	seen := make(map[string]bool, len(m.Experiments))
	for _, e := range m.Experiments {
		if err := e.Validate(); err != nil {
			return err
		}
		if seen[e.Name] {
			return fmt.Errorf("duplicate experiment name %q", e.Name)
		}
		seen[e.Name] = true
	}
	return nil
}
// #endregion manifest

// #region loader
// Load reads and validates a JSON manifest file.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// LoadOrDefault loads path, or returns Default when path is empty.
func LoadOrDefault(path string) (Manifest, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}
// #endregion loader
