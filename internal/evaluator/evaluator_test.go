package evaluator

import (
	"reflect"
	"testing"

	"github.com/atelierhq/atelier/internal/types"
)

func uniformScores(v int) types.ScoreSet {
	return types.ScoreSet{
		Palette:      v,
		LineAndShape: v,
		Texture:      v,
		Lighting:     v,
		Composition:  v,
		Motifs:       v,
		Overall:      v,
	}
}

func TestEvaluate_Tiers(t *testing.T) {
	cfg := DefaultConfig()
	baseline := uniformScores(60)

	tests := []struct {
		name        string
		scores      types.ScoreSet
		hasBaseline bool
		wantAccept  bool
		wantTier    Tier
	}{
		{
			name:        "meets all targets",
			scores:      uniformScores(85),
			hasBaseline: true,
			wantAccept:  true,
			wantTier:    TierMeetsTargets,
		},
		{
			name: "strong weighted progress",
			// +2 on every dimension: net = 2*(1.2+1.0+0.8+1.0+1.5+0.5+2.0) = 16
			scores:      uniformScores(62),
			hasBaseline: true,
			wantAccept:  true,
			wantTier:    TierStrongProgress,
		},
		{
			name: "weak positive progress",
			// +1 overall only: net = 2.0, below strong 3.0, above weak 1.0
			scores: types.ScoreSet{
				Palette: 60, LineAndShape: 60, Texture: 60,
				Lighting: 60, Composition: 60, Motifs: 60, Overall: 61,
			},
			hasBaseline: true,
			wantAccept:  true,
			wantTier:    TierWeakProgress,
		},
		{
			name:        "no progress",
			scores:      uniformScores(60),
			hasBaseline: true,
			wantAccept:  false,
			wantTier:    TierNoProgress,
		},
		{
			name:        "regression",
			scores:      uniformScores(55),
			hasBaseline: true,
			wantAccept:  false,
			wantTier:    TierNoProgress,
		},
		{
			name:        "first iteration accepted despite weak scores",
			scores:      uniformScores(35),
			hasBaseline: false,
			wantAccept:  true,
			wantTier:    TierFirstIteration,
		},
		{
			name:        "first iteration meeting targets uses the targets tier",
			scores:      uniformScores(90),
			hasBaseline: false,
			wantAccept:  true,
			wantTier:    TierMeetsTargets,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.scores, 0, nil, baseline, tt.hasBaseline, cfg)
			if d.Accept != tt.wantAccept {
				t.Errorf("accept = %v, want %v (reason: %s)", d.Accept, tt.wantAccept, d.Reason)
			}
			if d.Tier != tt.wantTier {
				t.Errorf("tier = %s, want %s", d.Tier, tt.wantTier)
			}
		})
	}
}

func TestEvaluate_CatastrophicOverridesEverything(t *testing.T) {
	cfg := DefaultConfig()
	baseline := uniformScores(75)

	// Composition collapses from 75 to 30 (drop 45, below floor 40) while
	// every other dimension surges. The surge would clear the strong
	// tier; the collapse must still reject.
	scores := types.ScoreSet{
		Palette: 95, LineAndShape: 95, Texture: 95,
		Lighting: 95, Composition: 30, Motifs: 95, Overall: 90,
	}

	d := Evaluate(scores, 0, nil, baseline, true, cfg)
	if d.Accept {
		t.Fatalf("structural collapse must reject, got accept (tier %s)", d.Tier)
	}
	if d.Tier != TierCatastrophic {
		t.Errorf("tier = %s, want %s", d.Tier, TierCatastrophic)
	}
	if len(d.Analysis.CatastrophicFailures) != 1 || d.Analysis.CatastrophicFailures[0] != types.DimComposition {
		t.Errorf("catastrophic failures = %v, want [composition]", d.Analysis.CatastrophicFailures)
	}
}

func TestEvaluate_CatastrophicNeedsBothFloorAndDrop(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		prevComp int
		newComp  int
		wantCat  bool
	}{
		{"low score but small drop", 50, 35, false},
		{"big drop but above floor", 90, 45, false},
		{"low score and big drop", 75, 35, true},
		{"exactly at floor", 75, 40, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			baseline := uniformScores(60)
			baseline.Composition = tt.prevComp
			scores := uniformScores(60)
			scores.Composition = tt.newComp

			d := Evaluate(scores, 0, nil, baseline, true, cfg)
			isCat := d.Tier == TierCatastrophic
			if isCat != tt.wantCat {
				t.Errorf("catastrophic = %v, want %v", isCat, tt.wantCat)
			}
		})
	}
}

func TestEvaluate_NonStructuralCollapseIsNotCatastrophic(t *testing.T) {
	cfg := DefaultConfig()
	baseline := uniformScores(75)

	// Palette collapses the same way composition did above, but palette
	// is stylistic: only the weighted gate should punish it
	scores := uniformScores(75)
	scores.Palette = 20

	d := Evaluate(scores, 0, nil, baseline, true, cfg)
	if d.Tier == TierCatastrophic {
		t.Fatal("stylistic collapse must not trigger the catastrophic tier")
	}
	if d.Accept {
		t.Error("a large weighted regression should still reject via no_progress")
	}
}

func TestEvaluate_InsightsRaiseBestApproved(t *testing.T) {
	cfg := DefaultConfig()
	insights := &types.TrainingInsights{BestOverall: 88}

	d := Evaluate(uniformScores(70), 50, insights, uniformScores(60), true, cfg)

	if d.Analysis.BestApprovedScore != 88 {
		t.Errorf("best approved = %d, want the historical 88", d.Analysis.BestApprovedScore)
	}
	if d.Analysis.ImprovementVsBest != 70-88 {
		t.Errorf("improvement vs best = %d, want %d", d.Analysis.ImprovementVsBest, 70-88)
	}
}

func TestEvaluate_IsPure(t *testing.T) {
	cfg := DefaultConfig()
	scores := uniformScores(72)
	baseline := uniformScores(64)

	first := Evaluate(scores, 70, nil, baseline, true, cfg)
	second := Evaluate(scores, 70, nil, baseline, true, cfg)

	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs produced different decisions")
	}
}
