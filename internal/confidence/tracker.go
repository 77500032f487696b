// Package confidence tracks per-feature belief scores across training
// iterations. Features that keep showing up in critiques earn confidence
// slowly; features that go missing decay faster than they grew, biasing
// the registry toward conservative belief.
package confidence

import (
	"github.com/atelierhq/atelier/internal/config"
	"github.com/atelierhq/atelier/internal/types"
)

// Tracker applies the confidence update curve to style features
type Tracker struct {
	tuning config.Tuning
}

// NewTracker creates a tracker with the given tuning
func NewTracker(tuning config.Tuning) *Tracker {
	return &Tracker{tuning: tuning}
}

// Update adjusts one feature's confidence for this iteration and returns
// the new value. Total and side-effect-free beyond the feature's own
// fields; it never fails.
//
// Appeared: persistence count increments, then confidence blends toward
// a saturating target level - sustained presence is rewarded over
// single-shot luck, and the moving average damps per-iteration noise.
// Absent: flat decay per miss.
func (t *Tracker) Update(f *types.Feature, appeared bool) float64 {
	if appeared {
		f.PersistenceCount++
		level := t.tuning.GrowthBase + t.tuning.GrowthStep*float64(f.PersistenceCount)
		if level > 1.0 {
			level = 1.0
		}
		f.Confidence = t.tuning.BlendOld*f.Confidence + (1-t.tuning.BlendOld)*level
	} else {
		f.Confidence = f.Confidence * (1 - t.tuning.DecayRate)
	}

	if f.Confidence > 1.0 {
		f.Confidence = 1.0
	}
	if f.Confidence < 0.0 {
		f.Confidence = 0.0
	}
	return f.Confidence
}

// Apply runs the update across a style's feature registry given this
// iteration's corrections. Every registered feature is updated - present
// ones grow, missing ones decay. Correction ids not yet in the registry
// are added with the first-appearance curve values. Features are never
// deleted, only decayed toward zero.
func (t *Tracker) Apply(style *types.StyleDescription, corrections []types.Correction) {
	if style.Features == nil {
		style.Features = make(map[string]*types.Feature)
	}

	seen := make(map[string]bool, len(corrections))
	for _, c := range corrections {
		seen[c.FeatureID] = true
	}

	for id, f := range style.Features {
		t.Update(f, seen[id])
	}

	for id := range seen {
		if _, ok := style.Features[id]; !ok {
			f := &types.Feature{ID: id}
			t.Update(f, true)
			style.Features[id] = f
		}
	}
}
