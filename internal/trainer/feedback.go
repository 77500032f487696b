package trainer

import (
	"fmt"
	"strings"

	"github.com/atelierhq/atelier/internal/evaluator"
	"github.com/atelierhq/atelier/internal/types"
)

// emphasisPhrasing maps each dimension to the feedback wording used
// when its baseline score falls below the weak threshold. Steering
// happens through feedback, never by editing the committed style.
var emphasisPhrasing = map[types.Dimension]string{
	types.DimPalette:      "stay strictly inside the reference palette; no new hues, match saturation and value ranges",
	types.DimLineAndShape: "match the reference line quality: weight, edge confidence, and shape language must read the same",
	types.DimTexture:      "reproduce the surface texture of the reference; grain, brushwork, and material finish are drifting",
	types.DimLighting:     "match the lighting scheme of the reference: direction, contrast ratio, and shadow softness",
	types.DimComposition:  "keep the compositional structure of the reference: framing, focal placement, and negative space",
	types.DimMotifs:       "carry over the recurring motifs of the reference style",
}

// weakDimensions returns the dimensions scoring below the threshold in
// the last accepted baseline, in canonical order. Overall is excluded -
// it has no dedicated emphasis phrasing, being a composite.
func weakDimensions(baseline types.ScoreSet, threshold int) []types.Dimension {
	var weak []types.Dimension
	for _, d := range types.Dimensions {
		if d == types.DimOverall {
			continue
		}
		if baseline.Get(d) < threshold {
			weak = append(weak, d)
		}
	}
	return weak
}

// buildEmphasisFeedback synthesizes one emphasis entry per weak
// dimension
func buildEmphasisFeedback(weak []types.Dimension, baseline types.ScoreSet) []types.FeedbackEntry {
	entries := make([]types.FeedbackEntry, 0, len(weak))
	for _, d := range weak {
		phrasing, ok := emphasisPhrasing[d]
		if !ok {
			phrasing = fmt.Sprintf("improve the %s dimension", d)
		}
		entries = append(entries, types.FeedbackEntry{
			Kind: types.FeedbackEmphasis,
			Text: fmt.Sprintf("%s (scored %d)", phrasing, baseline.Get(d)),
		})
	}
	return entries
}

// buildCorrectionFeedback carries the previous critique's itemized
// corrections forward as feedback, distinguished from the synthetic
// weak-dimension entries
func buildCorrectionFeedback(corrections []types.Correction) []types.FeedbackEntry {
	entries := make([]types.FeedbackEntry, 0, len(corrections))
	for _, c := range corrections {
		entries = append(entries, types.FeedbackEntry{
			Kind: types.FeedbackCorrection,
			Text: fmt.Sprintf("%s the feature %q (critique confidence %.2f)", c.Direction, c.FeatureID, c.Confidence),
		})
	}
	return entries
}

// buildRecoveryGuidance summarizes why an iteration was rejected so the
// next generation attempt can self-correct without thrashing the
// committed style. The lost-trait list uses the lostTraitsMarker
// contract so insight recomputation can recover it from history.
func buildRecoveryGuidance(decision evaluator.Decision, critique *types.CritiqueResult) types.FeedbackEntry {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("previous attempt rejected (%s): %s", decision.Tier, decision.Reason))

	if len(decision.Analysis.CatastrophicFailures) > 0 {
		names := make([]string, len(decision.Analysis.CatastrophicFailures))
		for i, d := range decision.Analysis.CatastrophicFailures {
			names[i] = string(d)
		}
		b.WriteString(fmt.Sprintf("; structural collapse in %s - restore these before anything else", strings.Join(names, ", ")))
	}

	// Subject drift shows up as a composition delta heading down while
	// stylistic dimensions hold
	if delta, ok := decision.Analysis.DimensionDeltas[types.DimComposition]; ok && delta < -10 {
		b.WriteString("; the subject is drifting from the described composition")
	}

	if len(critique.LostTraits) > 0 {
		b.WriteString(fmt.Sprintf("; %s%s.", lostTraitsMarker, strings.Join(critique.LostTraits, ", ")))
	}

	if len(critique.InterestingMutations) > 0 {
		b.WriteString(fmt.Sprintf(" avoid repeating these mutations: %s", strings.Join(critique.InterestingMutations, ", ")))
	}

	return types.FeedbackEntry{Kind: types.FeedbackRecovery, Text: b.String()}
}
