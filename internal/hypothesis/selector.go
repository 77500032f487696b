package hypothesis

import (
	"fmt"
	"sort"

	"github.com/atelierhq/atelier/internal/types"
)

// Select picks a winning hypothesis automatically when the evidence is
// decisive: either the leader clears the absolute confidence threshold,
// or it beats the runner-up by more than the gap. Otherwise it declines
// and returns false - ambiguous evidence is a human's call, not a
// coin flip.
func Select(set *types.HypothesisSet, threshold, gap float64) (*types.StyleHypothesis, bool) {
	if len(set.Hypotheses) == 0 {
		return nil, false
	}

	ranked := Ranked(set)
	leader := ranked[0]

	if leader.Confidence >= threshold {
		return leader, true
	}
	if len(ranked) > 1 && leader.Confidence-ranked[1].Confidence > gap {
		return leader, true
	}
	return nil, false
}

// Ranked returns the hypotheses ordered by confidence, highest first,
// with label as a deterministic tiebreak. The set itself is not
// reordered.
func Ranked(set *types.HypothesisSet) []*types.StyleHypothesis {
	ranked := make([]*types.StyleHypothesis, len(set.Hypotheses))
	copy(ranked, set.Hypotheses)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].Label < ranked[j].Label
	})
	return ranked
}

// ManualSelect records a human's choice on the in-memory set. An id
// that names no member hypothesis is a domain error and leaves the set
// unchanged.
func ManualSelect(set *types.HypothesisSet, id string) (*types.StyleHypothesis, error) {
	h := set.Find(id)
	if h == nil {
		return nil, fmt.Errorf("no hypothesis with id %q in this exploration", id)
	}
	set.SelectedHypothesisID = id
	return h, nil
}
