// Package evaluator decides whether a candidate iteration is admitted as
// the session's new style baseline. Evaluate is a pure function: the
// same scores, baseline, and insights always produce the same decision,
// and the analysis payload is complete enough for downstream recovery
// guidance to be reconstructed from it alone.
//
// Single-threshold acceptance is too brittle for subjective, drifting
// scores. The tiered chain takes either "good enough" or "clearly
// improving" candidates while hard-blocking destructive regressions.
package evaluator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/atelierhq/atelier/internal/types"
)

// Tier names which rule admitted or rejected the candidate
type Tier string

const (
	TierCatastrophic   Tier = "catastrophic_failure"
	TierMeetsTargets   Tier = "meets_targets"
	TierStrongProgress Tier = "strong_weighted_progress"
	TierWeakProgress   Tier = "weak_positive_progress"
	TierFirstIteration Tier = "first_iteration"
	TierNoProgress     Tier = "no_progress"
)

// DimensionClass partitions the scored dimensions by how a collapse in
// them is treated
type DimensionClass string

const (
	// ClassStructural dimensions collapsing is an instant reject - a
	// candidate that loses the composition has destroyed the style no
	// matter what else improved
	ClassStructural DimensionClass = "structural"
	// ClassTechnique and ClassStylistic drops are only penalized through
	// the weighted net-progress gate
	ClassTechnique DimensionClass = "technique"
	ClassStylistic DimensionClass = "stylistic"
)

// Config holds the weight table and catastrophic classification.
// The original behavior never enumerated these fully, so the
// classification is explicit configuration here: composition is the
// lone structural dimension; line/texture/lighting are technique;
// palette/motifs are stylistic. Overall is weighted heaviest since it
// is the model's own holistic judgment.
type Config struct {
	Weights           map[types.Dimension]float64
	Classes           map[types.Dimension]DimensionClass
	TargetScore       int     // absolute per-dimension target (tier 1)
	StrongThreshold   float64 // weighted net progress for tier 2 (default 3.0)
	WeakThreshold     float64 // weighted net progress for tier 3 (default 1.0)
	CatastrophicFloor int     // structural score below this...
	CatastrophicDrop  int     // ...after falling at least this much = collapse
}

// DefaultConfig returns the default weight table and classification
func DefaultConfig() Config {
	return Config{
		Weights: map[types.Dimension]float64{
			types.DimPalette:      1.2,
			types.DimLineAndShape: 1.0,
			types.DimTexture:      0.8,
			types.DimLighting:     1.0,
			types.DimComposition:  1.5,
			types.DimMotifs:       0.5,
			types.DimOverall:      2.0,
		},
		Classes: map[types.Dimension]DimensionClass{
			types.DimPalette:      ClassStylistic,
			types.DimLineAndShape: ClassTechnique,
			types.DimTexture:      ClassTechnique,
			types.DimLighting:     ClassTechnique,
			types.DimComposition:  ClassStructural,
			types.DimMotifs:       ClassStylistic,
		},
		TargetScore:       80,
		StrongThreshold:   3.0,
		WeakThreshold:     1.0,
		CatastrophicFloor: 40,
		CatastrophicDrop:  30,
	}
}

// Analysis is the structured rationale attached to every decision.
// Reproducible for any (inputs, config) pair; recovery guidance is
// built from it.
type Analysis struct {
	DimensionDeltas      map[types.Dimension]int     `json:"dimension_deltas"`
	WeightedDeltas       map[types.Dimension]float64 `json:"weighted_deltas"`
	WeightedNetProgress  float64                     `json:"weighted_net_progress"`
	MeetsTargets         bool                        `json:"meets_targets"`
	StrongProgress       bool                        `json:"strong_progress"`
	WeakProgress         bool                        `json:"weak_progress"`
	BestApprovedScore    int                         `json:"best_approved_score"`
	ImprovementVsBest    int                         `json:"improvement_vs_best"`
	CatastrophicFailures []types.Dimension           `json:"catastrophic_failures,omitempty"`
	FirstIteration       bool                        `json:"first_iteration"`
}

// Decision is the admission verdict plus its rationale
type Decision struct {
	Accept   bool     `json:"accept"`
	Tier     Tier     `json:"tier"`
	Reason   string   `json:"reason"`
	Analysis Analysis `json:"analysis"`
}

// Evaluate runs the tiered admission chain, first match wins:
//
//  1. Catastrophic instant-reject: a structural dimension collapsed
//     relative to the accepted baseline
//  2. Meets absolute targets: every dimension at or above TargetScore
//  3. Strong weighted progress: weighted net progress >= StrongThreshold
//  4. Weak positive progress: weighted net progress >= WeakThreshold
//  5. First-iteration exception: no accepted baseline yet
//
// previous is the last *accepted* scores (the authoritative baseline);
// hasBaseline is false only before the first acceptance.
func Evaluate(newScores types.ScoreSet, bestApproved int, insights *types.TrainingInsights, previous types.ScoreSet, hasBaseline bool, cfg Config) Decision {
	// Historical best can exceed this run's best when resuming a session
	if insights != nil && insights.BestOverall > bestApproved {
		bestApproved = insights.BestOverall
	}

	analysis := Analysis{
		DimensionDeltas:   make(map[types.Dimension]int, len(types.Dimensions)),
		WeightedDeltas:    make(map[types.Dimension]float64, len(types.Dimensions)),
		BestApprovedScore: bestApproved,
		ImprovementVsBest: newScores.Overall - bestApproved,
		FirstIteration:    !hasBaseline,
	}

	for _, d := range types.Dimensions {
		delta := 0
		if hasBaseline {
			delta = newScores.Get(d) - previous.Get(d)
		}
		analysis.DimensionDeltas[d] = delta
		analysis.WeightedDeltas[d] = float64(delta) * cfg.Weights[d]
		analysis.WeightedNetProgress += analysis.WeightedDeltas[d]
	}

	// Catastrophic check: structural dimensions only, and only once a
	// baseline exists to collapse from
	if hasBaseline {
		for _, d := range types.Dimensions {
			if cfg.Classes[d] != ClassStructural {
				continue
			}
			score := newScores.Get(d)
			drop := previous.Get(d) - score
			if score < cfg.CatastrophicFloor && drop >= cfg.CatastrophicDrop {
				analysis.CatastrophicFailures = append(analysis.CatastrophicFailures, d)
			}
		}
		sort.Slice(analysis.CatastrophicFailures, func(i, j int) bool {
			return analysis.CatastrophicFailures[i] < analysis.CatastrophicFailures[j]
		})
	}

	analysis.MeetsTargets = meetsTargets(newScores, cfg.TargetScore)
	analysis.StrongProgress = hasBaseline && analysis.WeightedNetProgress >= cfg.StrongThreshold
	analysis.WeakProgress = hasBaseline && analysis.WeightedNetProgress >= cfg.WeakThreshold

	if len(analysis.CatastrophicFailures) > 0 {
		names := make([]string, len(analysis.CatastrophicFailures))
		for i, d := range analysis.CatastrophicFailures {
			names[i] = string(d)
		}
		return Decision{
			Accept: false,
			Tier:   TierCatastrophic,
			Reason: fmt.Sprintf("structural collapse in %s (floor %d, drop >= %d)",
				strings.Join(names, ", "), cfg.CatastrophicFloor, cfg.CatastrophicDrop),
			Analysis: analysis,
		}
	}

	if analysis.MeetsTargets {
		return Decision{
			Accept:   true,
			Tier:     TierMeetsTargets,
			Reason:   fmt.Sprintf("every dimension at or above target %d", cfg.TargetScore),
			Analysis: analysis,
		}
	}

	if analysis.StrongProgress {
		return Decision{
			Accept: true,
			Tier:   TierStrongProgress,
			Reason: fmt.Sprintf("weighted net progress %.2f >= %.2f",
				analysis.WeightedNetProgress, cfg.StrongThreshold),
			Analysis: analysis,
		}
	}

	if analysis.WeakProgress {
		return Decision{
			Accept: true,
			Tier:   TierWeakProgress,
			Reason: fmt.Sprintf("weighted net progress %.2f >= %.2f",
				analysis.WeightedNetProgress, cfg.WeakThreshold),
			Analysis: analysis,
		}
	}

	if !hasBaseline {
		return Decision{
			Accept:   true,
			Tier:     TierFirstIteration,
			Reason:   "no accepted baseline yet; establishing one",
			Analysis: analysis,
		}
	}

	return Decision{
		Accept: false,
		Tier:   TierNoProgress,
		Reason: fmt.Sprintf("weighted net progress %.2f below weak threshold %.2f",
			analysis.WeightedNetProgress, cfg.WeakThreshold),
		Analysis: analysis,
	}
}

func meetsTargets(s types.ScoreSet, target int) bool {
	for _, d := range types.Dimensions {
		if s.Get(d) < target {
			return false
		}
	}
	return true
}
