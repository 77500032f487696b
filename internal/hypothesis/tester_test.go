package hypothesis

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/atelierhq/atelier/internal/config"
	"github.com/atelierhq/atelier/internal/types"
)

// mockScorer scripts the Complete call; the other Scorer methods are
// unused by this package
type mockScorer struct {
	complete func(operation, prompt string, images []string) (string, error)
}

func (m *mockScorer) Describe(ctx context.Context, image string) (string, error) {
	return "", fmt.Errorf("not implemented")
}

func (m *mockScorer) Critique(ctx context.Context, original, candidate string, style *types.StyleDescription, creativity float64) (*types.CritiqueResult, error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *mockScorer) GeneratePrompt(ctx context.Context, style *types.StyleDescription, subject string, feedback []types.FeedbackEntry) (string, error) {
	return "", fmt.Errorf("not implemented")
}

func (m *mockScorer) Complete(ctx context.Context, operation, prompt string, images []string, maxTokens int) (string, error) {
	return m.complete(operation, prompt, images)
}

// mockGenerator scripts Generate per call
type mockGenerator struct {
	calls    int
	generate func(call int, prompt string) (string, error)
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string, seed int64) (string, error) {
	m.calls++
	return m.generate(m.calls, prompt)
}

func (m *mockGenerator) Interrupt(ctx context.Context) error  { return nil }
func (m *mockGenerator) ClearQueue(ctx context.Context) error { return nil }

func newTestHypothesis() *types.StyleHypothesis {
	return &types.StyleHypothesis{
		ID:         "h1",
		Label:      "flat gouache",
		Confidence: 0.5,
		Style: &types.StyleDescription{
			Palette: types.StyleBlock{Summary: "muted earth tones"},
		},
	}
}

func scoreJSON(consistency, independence int) string {
	return fmt.Sprintf(`{"visual_consistency": %d, "subject_independence": %d, "notes": ""}`, consistency, independence)
}

func TestTest_ConfidenceFromAverages(t *testing.T) {
	responses := []string{scoreJSON(80, 90), scoreJSON(70, 60)}
	call := 0
	scorer := &mockScorer{complete: func(op, prompt string, images []string) (string, error) {
		resp := responses[call]
		call++
		return resp, nil
	}}
	gen := &mockGenerator{generate: func(call int, prompt string) (string, error) {
		return fmt.Sprintf("img-%d.png", call), nil
	}}

	tester := NewTester(scorer, gen, config.DefaultTuning())
	hyp := newTestHypothesis()

	err := tester.Test(context.Background(), hyp, "ref.png", []string{"a boat", "a cat"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(hyp.Tests) != 2 {
		t.Fatalf("tests recorded = %d, want 2", len(hyp.Tests))
	}
	// avg consistency 75, avg independence 75 -> (0.6*75 + 0.4*75)/100
	if math.Abs(hyp.Confidence-0.75) > 1e-9 {
		t.Errorf("confidence = %v, want 0.75", hyp.Confidence)
	}
}

func TestTest_PartialGenerationFailureTolerated(t *testing.T) {
	scorer := &mockScorer{complete: func(op, prompt string, images []string) (string, error) {
		return scoreJSON(60, 40), nil
	}}
	gen := &mockGenerator{generate: func(call int, prompt string) (string, error) {
		if call == 1 {
			return "", fmt.Errorf("backend busy")
		}
		return "img.png", nil
	}}

	tester := NewTester(scorer, gen, config.DefaultTuning())
	hyp := newTestHypothesis()

	err := tester.Test(context.Background(), hyp, "ref.png", []string{"a boat", "a cat"}, nil)
	if err != nil {
		t.Fatalf("one failed subject must not fail the test: %v", err)
	}
	if len(hyp.Tests) != 1 {
		t.Fatalf("tests recorded = %d, want 1", len(hyp.Tests))
	}
	// (0.6*60 + 0.4*40)/100 = 0.52
	if math.Abs(hyp.Confidence-0.52) > 1e-9 {
		t.Errorf("confidence = %v, want 0.52", hyp.Confidence)
	}
}

func TestTest_AllSubjectsFailing(t *testing.T) {
	scorer := &mockScorer{complete: func(op, prompt string, images []string) (string, error) {
		t.Fatal("scorer should not be reached when generation fails")
		return "", nil
	}}
	gen := &mockGenerator{generate: func(call int, prompt string) (string, error) {
		return "", fmt.Errorf("backend down")
	}}

	tester := NewTester(scorer, gen, config.DefaultTuning())
	hyp := newTestHypothesis()

	err := tester.Test(context.Background(), hyp, "ref.png", []string{"a boat", "a cat"}, nil)
	if err == nil {
		t.Fatal("all subjects failing must fail the test")
	}
	if hyp.Confidence != 0.5 {
		t.Errorf("failed test must leave prior confidence, got %v", hyp.Confidence)
	}
}

func TestTest_UnreadableScoreRecordsNeutral(t *testing.T) {
	scorer := &mockScorer{complete: func(op, prompt string, images []string) (string, error) {
		return "I couldn't really tell, sorry!", nil
	}}
	gen := &mockGenerator{generate: func(call int, prompt string) (string, error) {
		return "img.png", nil
	}}

	tester := NewTester(scorer, gen, config.DefaultTuning())
	hyp := newTestHypothesis()

	err := tester.Test(context.Background(), hyp, "ref.png", []string{"a boat"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hyp.Tests) != 1 {
		t.Fatalf("tests recorded = %d, want 1", len(hyp.Tests))
	}
	test := hyp.Tests[0]
	if test.VisualConsistency != 50 || test.SubjectIndependence != 50 {
		t.Errorf("unreadable score = %d/%d, want neutral 50/50",
			test.VisualConsistency, test.SubjectIndependence)
	}
	if math.Abs(hyp.Confidence-0.5) > 1e-9 {
		t.Errorf("confidence = %v, want 0.5", hyp.Confidence)
	}
}

func TestTest_StopEndsEarly(t *testing.T) {
	scorer := &mockScorer{complete: func(op, prompt string, images []string) (string, error) {
		return scoreJSON(80, 80), nil
	}}
	gen := &mockGenerator{generate: func(call int, prompt string) (string, error) {
		return "img.png", nil
	}}

	tester := NewTester(scorer, gen, config.DefaultTuning())
	hyp := newTestHypothesis()

	stopAfter := 1
	done := 0
	shouldStop := func() bool {
		defer func() { done++ }()
		return done >= stopAfter
	}

	err := tester.Test(context.Background(), hyp, "ref.png", []string{"a", "b", "c"}, shouldStop)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hyp.Tests) != 1 {
		t.Errorf("tests recorded = %d, want 1 before the stop", len(hyp.Tests))
	}
}

func TestTest_NoSubjects(t *testing.T) {
	tester := NewTester(&mockScorer{}, &mockGenerator{}, config.DefaultTuning())
	if err := tester.Test(context.Background(), newTestHypothesis(), "ref.png", nil, nil); err == nil {
		t.Fatal("empty subject list must error")
	}
}
