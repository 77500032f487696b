package hypothesis

import (
	"testing"

	"github.com/atelierhq/atelier/internal/types"
)

func setWithConfidences(confs map[string]float64) *types.HypothesisSet {
	set := &types.HypothesisSet{SessionID: "s1"}
	for label, c := range confs {
		set.Hypotheses = append(set.Hypotheses, &types.StyleHypothesis{
			ID:         "id-" + label,
			Label:      label,
			Confidence: c,
			Style:      &types.StyleDescription{},
		})
	}
	return set
}

func TestSelect_AbsoluteThreshold(t *testing.T) {
	set := setWithConfidences(map[string]float64{"a": 0.85, "b": 0.80})

	winner, ok := Select(set, 0.7, 0.15)
	if !ok {
		t.Fatal("0.85 >= 0.7 should auto-select")
	}
	if winner.Label != "a" {
		t.Errorf("winner = %q, want a", winner.Label)
	}
}

func TestSelect_GapRule(t *testing.T) {
	// Leader below the absolute threshold but far ahead of the runner-up
	set := setWithConfidences(map[string]float64{"a": 0.65, "b": 0.40})

	winner, ok := Select(set, 0.7, 0.15)
	if !ok {
		t.Fatal("gap 0.25 > 0.15 should auto-select")
	}
	if winner.Label != "a" {
		t.Errorf("winner = %q, want a", winner.Label)
	}
}

func TestSelect_AmbiguousDeclines(t *testing.T) {
	set := setWithConfidences(map[string]float64{"a": 0.62, "b": 0.58})

	winner, ok := Select(set, 0.7, 0.15)
	if ok {
		t.Fatalf("close race should decline selection, got %q", winner.Label)
	}
	if winner != nil {
		t.Error("declined selection must return nil")
	}
}

func TestSelect_ExactGapDeclines(t *testing.T) {
	// Gap must be strictly greater than the margin
	set := setWithConfidences(map[string]float64{"a": 0.60, "b": 0.45})

	if _, ok := Select(set, 0.7, 0.15); ok {
		t.Error("gap of exactly 0.15 should not auto-select")
	}
}

func TestSelect_SingleHypothesisNeedsThreshold(t *testing.T) {
	set := setWithConfidences(map[string]float64{"only": 0.5})

	if _, ok := Select(set, 0.7, 0.15); ok {
		t.Error("a lone hypothesis below threshold has no runner-up gap to win by")
	}

	set.Hypotheses[0].Confidence = 0.75
	if _, ok := Select(set, 0.7, 0.15); !ok {
		t.Error("a lone hypothesis above threshold should be selected")
	}
}

func TestSelect_EmptySet(t *testing.T) {
	set := &types.HypothesisSet{SessionID: "s1"}
	if _, ok := Select(set, 0.7, 0.15); ok {
		t.Error("empty set must not select")
	}
}

func TestRanked_OrderAndStability(t *testing.T) {
	set := setWithConfidences(map[string]float64{"c": 0.3, "a": 0.9, "b": 0.3})

	ranked := Ranked(set)
	if ranked[0].Label != "a" {
		t.Errorf("ranked[0] = %q, want a", ranked[0].Label)
	}
	// Equal confidence ties break by label
	if ranked[1].Label != "b" || ranked[2].Label != "c" {
		t.Errorf("tie order = %q, %q, want b, c", ranked[1].Label, ranked[2].Label)
	}
}

func TestManualSelect(t *testing.T) {
	set := setWithConfidences(map[string]float64{"a": 0.5, "b": 0.5})

	h, err := ManualSelect(set, "id-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Label != "b" {
		t.Errorf("selected %q, want b", h.Label)
	}
	if set.SelectedHypothesisID != "id-b" {
		t.Errorf("set selection = %q, want id-b", set.SelectedHypothesisID)
	}
}

func TestManualSelect_UnknownID(t *testing.T) {
	set := setWithConfidences(map[string]float64{"a": 0.5})

	if _, err := ManualSelect(set, "nope"); err == nil {
		t.Fatal("unknown id must be a domain error")
	}
	if set.SelectedHypothesisID != "" {
		t.Error("failed selection must leave the set unmodified")
	}
}
