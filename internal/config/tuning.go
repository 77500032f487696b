// Package config holds the tunable policy knobs for training and
// exploration. The heuristic constants here encode product policy, not
// algorithmic necessity, so they load from a YAML file with env-var
// overrides rather than living as literals at call sites.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Tuning holds the convergence-control policy constants
type Tuning struct {
	// TargetScore is the overall score at which a training run stops
	// Default: 80, Range: 1-100
	TargetScore int `yaml:"target_score"`

	// MaxIterations bounds a single training run
	// Default: 10, Range: 1-100
	MaxIterations int `yaml:"max_iterations"`

	// WeakDimensionThreshold marks a dimension as needing emphasis
	// feedback when the last accepted baseline scores below it
	// Default: 65
	WeakDimensionThreshold int `yaml:"weak_dimension_threshold"`

	// StrongProgressThreshold is the weighted-net-progress sum at or
	// above which a candidate is accepted as clearly improving
	// Default: 3.0
	StrongProgressThreshold float64 `yaml:"strong_progress_threshold"`

	// WeakProgressThreshold is the lower weighted-net-progress bar
	// Default: 1.0
	WeakProgressThreshold float64 `yaml:"weak_progress_threshold"`

	// CatastrophicFloor is the absolute score below which a structural
	// dimension counts as collapsed
	// Default: 40
	CatastrophicFloor int `yaml:"catastrophic_floor"`

	// CatastrophicDrop is the minimum fall from the accepted baseline
	// for a structural dimension to count as collapsed
	// Default: 30
	CatastrophicDrop int `yaml:"catastrophic_drop"`

	// Feature-confidence curve: appeared features blend toward
	// min(1, GrowthBase + GrowthStep*persistence); absent features
	// decay by DecayRate per miss.
	GrowthBase float64 `yaml:"growth_base"` // default 0.3
	GrowthStep float64 `yaml:"growth_step"` // default 0.15
	BlendOld   float64 `yaml:"blend_old"`   // default 0.7
	DecayRate  float64 `yaml:"decay_rate"`  // default 0.15

	// SelectionThreshold is the confidence at which the top hypothesis
	// is auto-selected
	// Default: 0.7
	SelectionThreshold float64 `yaml:"selection_threshold"`

	// SelectionGap auto-selects a clear relative winner even below the
	// absolute threshold when it leads the runner-up by this much
	// Default: 0.15
	SelectionGap float64 `yaml:"selection_gap"`

	// ConsistencyWeight and IndependenceWeight combine a hypothesis's
	// averaged test scores into its final confidence
	// Defaults: 0.6 / 0.4
	ConsistencyWeight  float64 `yaml:"consistency_weight"`
	IndependenceWeight float64 `yaml:"independence_weight"`

	// CreativityLevel is passed through to critique calls, 0.0-1.0
	// Default: 0.3
	CreativityLevel float64 `yaml:"creativity_level"`
}

// DefaultTuning returns the default policy constants
func DefaultTuning() Tuning {
	return Tuning{
		TargetScore:             80,
		MaxIterations:           10,
		WeakDimensionThreshold:  65,
		StrongProgressThreshold: 3.0,
		WeakProgressThreshold:   1.0,
		CatastrophicFloor:       40,
		CatastrophicDrop:        30,
		GrowthBase:              0.3,
		GrowthStep:              0.15,
		BlendOld:                0.7,
		DecayRate:               0.15,
		SelectionThreshold:      0.7,
		SelectionGap:            0.15,
		ConsistencyWeight:       0.6,
		IndependenceWeight:      0.4,
		CreativityLevel:         0.3,
	}
}

// Validate checks the tuning values are in range
func (t *Tuning) Validate() error {
	if t.TargetScore < 1 || t.TargetScore > 100 {
		return fmt.Errorf("target_score must be between 1 and 100 (got %d)", t.TargetScore)
	}
	if t.MaxIterations < 1 || t.MaxIterations > 100 {
		return fmt.Errorf("max_iterations must be between 1 and 100 (got %d)", t.MaxIterations)
	}
	if t.WeakDimensionThreshold < 0 || t.WeakDimensionThreshold > 100 {
		return fmt.Errorf("weak_dimension_threshold must be between 0 and 100 (got %d)", t.WeakDimensionThreshold)
	}
	if t.StrongProgressThreshold < t.WeakProgressThreshold {
		return fmt.Errorf("strong_progress_threshold (%.2f) must be >= weak_progress_threshold (%.2f)",
			t.StrongProgressThreshold, t.WeakProgressThreshold)
	}
	if t.DecayRate < 0 || t.DecayRate >= 1 {
		return fmt.Errorf("decay_rate must be in [0,1) (got %.2f)", t.DecayRate)
	}
	if t.SelectionThreshold <= 0 || t.SelectionThreshold > 1 {
		return fmt.Errorf("selection_threshold must be in (0,1] (got %.2f)", t.SelectionThreshold)
	}
	if t.ConsistencyWeight+t.IndependenceWeight == 0 {
		return fmt.Errorf("consistency_weight and independence_weight cannot both be zero")
	}
	return nil
}

// Load reads tuning from a YAML file, layering file values over defaults
// and env-var overrides over both. A missing file is not an error - the
// defaults apply.
func Load(path string) (Tuning, error) {
	t := DefaultTuning()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&t)
			return t, nil
		}
		return t, fmt.Errorf("failed to read tuning file: %w", err)
	}

	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("failed to parse tuning file %s: %w", path, err)
	}

	applyEnvOverrides(&t)

	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("invalid tuning in %s: %w", path, err)
	}
	return t, nil
}

// Save writes the tuning to a YAML file
func (t Tuning) Save(path string) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal tuning: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write tuning file: %w", err)
	}
	return nil
}

// applyEnvOverrides reads ATELIER_* env vars for the knobs that get
// tweaked most often during experiments
func applyEnvOverrides(t *Tuning) {
	if v := os.Getenv("ATELIER_TARGET_SCORE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			t.TargetScore = n
		}
	}
	if v := os.Getenv("ATELIER_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			t.MaxIterations = n
		}
	}
	if v := os.Getenv("ATELIER_CREATIVITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			t.CreativityLevel = f
		}
	}
}
