package trainer

import (
	"context"
	"sort"
	"strings"

	"github.com/atelierhq/atelier/internal/storage"
	"github.com/atelierhq/atelier/internal/types"
)

// lostTraitsMarker prefixes the trait list inside persisted rejection
// feedback so insights can recover it from history. Iteration records
// only keep free-text feedback; this marker is the contract between
// recovery guidance and insight recomputation.
const lostTraitsMarker = "lost traits: "

// ComputeInsights rebuilds the session's aggregate training statistics
// from persisted iteration history. Called once at the start of a
// controller run; the result is read-only input to admission
// evaluation.
func ComputeInsights(ctx context.Context, store storage.Storage, sessionID string) (*types.TrainingInsights, error) {
	iterations, err := store.ListIterations(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	insights := &types.TrainingInsights{
		DimensionAverages: make(map[types.Dimension]float64, len(types.Dimensions)),
		IterationCount:    len(iterations),
	}
	if len(iterations) == 0 {
		return insights, nil
	}

	lostCounts := make(map[string]int)
	for _, iter := range iterations {
		if iter.Approved != nil && *iter.Approved && iter.Scores.Overall > insights.BestOverall {
			insights.BestOverall = iter.Scores.Overall
		}
		for _, d := range types.Dimensions {
			insights.DimensionAverages[d] += float64(iter.Scores.Get(d))
		}
		for _, trait := range parseLostTraits(iter.Feedback) {
			lostCounts[trait]++
		}
	}
	for _, d := range types.Dimensions {
		insights.DimensionAverages[d] /= float64(len(iterations))
	}

	type traitCount struct {
		trait string
		n     int
	}
	counts := make([]traitCount, 0, len(lostCounts))
	for trait, n := range lostCounts {
		counts = append(counts, traitCount{trait, n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].n != counts[j].n {
			return counts[i].n > counts[j].n
		}
		return counts[i].trait < counts[j].trait
	})
	for i, tc := range counts {
		if i >= 5 {
			break
		}
		insights.FrequentlyLostTraits = append(insights.FrequentlyLostTraits, tc.trait)
	}

	return insights, nil
}

// parseLostTraits extracts the lost-trait list from a persisted
// feedback line written by buildRecoveryGuidance
func parseLostTraits(feedback string) []string {
	idx := strings.Index(feedback, lostTraitsMarker)
	if idx < 0 {
		return nil
	}
	rest := feedback[idx+len(lostTraitsMarker):]
	if end := strings.IndexAny(rest, ".;\n"); end >= 0 {
		rest = rest[:end]
	}
	var traits []string
	for _, t := range strings.Split(rest, ",") {
		if t = strings.TrimSpace(t); t != "" {
			traits = append(traits, t)
		}
	}
	return traits
}
