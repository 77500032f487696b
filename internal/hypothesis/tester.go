package hypothesis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atelierhq/atelier/internal/config"
	"github.com/atelierhq/atelier/internal/synthesis"
	"github.com/atelierhq/atelier/internal/types"
	"github.com/atelierhq/atelier/internal/vision"
)

// neutralTestScore stands in when a test image was generated but its
// scoring response could not be parsed. 50/50 carries no information
// either way, which is exactly what an unreadable score is.
const neutralTestScore = 50

// Tester probes a hypothesis empirically: render unfamiliar subjects in
// the hypothesized style, score how well the style held.
type Tester struct {
	scorer    vision.Scorer
	generator synthesis.Generator
	tuning    config.Tuning
}

// NewTester creates a hypothesis tester
func NewTester(scorer vision.Scorer, generator synthesis.Generator, tuning config.Tuning) *Tester {
	return &Tester{scorer: scorer, generator: generator, tuning: tuning}
}

type testScoreResponse struct {
	VisualConsistency   int    `json:"visual_consistency"`
	SubjectIndependence int    `json:"subject_independence"`
	Notes               string `json:"notes"`
}

// Test runs the hypothesis against each subject in order and replaces
// its confidence with the weighted average of the results. Subjects run
// sequentially so one image backend is never asked to render two things
// at once.
//
// A single subject failing to generate is tolerated and skipped; the
// remaining subjects still count. Only when every subject fails does
// the test itself fail, leaving the prior confidence untouched.
//
// shouldStop is polled before each subject; a pending stop ends the
// test early with whatever results exist so far.
func (t *Tester) Test(ctx context.Context, hyp *types.StyleHypothesis, refImage string, subjects []string, shouldStop func() bool) error {
	if len(subjects) == 0 {
		return fmt.Errorf("hypothesis test needs at least one subject")
	}

	var failures int
	for _, subject := range subjects {
		if shouldStop != nil && shouldStop() {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("hypothesis test canceled: %w", ctx.Err())
		default:
		}

		test, err := t.testSubject(ctx, hyp, refImage, subject)
		if err != nil {
			failures++
			fmt.Printf("test subject %q failed for hypothesis %q: %v\n", subject, hyp.Label, err)
			continue
		}
		hyp.Tests = append(hyp.Tests, *test)
	}

	if len(hyp.Tests) == 0 {
		return fmt.Errorf("all %d test subjects failed for hypothesis %q", failures, hyp.Label)
	}

	hyp.Confidence = t.confidence(hyp.Tests)
	return nil
}

// testSubject generates one probe image and scores it
func (t *Tester) testSubject(ctx context.Context, hyp *types.StyleHypothesis, refImage, subject string) (*types.HypothesisTest, error) {
	prompt := buildTestPrompt(hyp.Style, subject)
	imageRef, err := t.generator.Generate(ctx, prompt, -1)
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}

	scorePrompt := fmt.Sprintf(`The first image is a style reference. The second renders a different subject (%q) in what should be the same style.

Score two things, each 0-100:
- visual_consistency: how faithfully the second image reproduces the reference's style
- subject_independence: how fully the style survived the change of subject (high = the style is not welded to the original subject matter)

Respond with ONLY a JSON object:
{"visual_consistency": 0, "subject_independence": 0, "notes": "..."}`, subject)

	test := &types.HypothesisTest{
		Subject:  subject,
		ImageRef: imageRef,
		TestedAt: time.Now(),
	}

	text, err := t.scorer.Complete(ctx, "score_hypothesis_test", scorePrompt, []string{refImage, imageRef}, 1024)
	if err != nil {
		return nil, fmt.Errorf("scoring call failed: %w", err)
	}

	result := vision.Parse[testScoreResponse](text, "hypothesis test scoring")
	if !result.Success {
		// The image exists and was rendered; only the verdict is lost
		fmt.Printf("unreadable score for subject %q, recording neutral\n", subject)
		test.VisualConsistency = neutralTestScore
		test.SubjectIndependence = neutralTestScore
		return test, nil
	}

	test.VisualConsistency = clampScore(result.Data.VisualConsistency)
	test.SubjectIndependence = clampScore(result.Data.SubjectIndependence)
	return test, nil
}

// confidence collapses the test history into a single 0-1 confidence
func (t *Tester) confidence(tests []types.HypothesisTest) float64 {
	var cons, indep float64
	for _, test := range tests {
		cons += float64(test.VisualConsistency)
		indep += float64(test.SubjectIndependence)
	}
	n := float64(len(tests))
	cons /= n
	indep /= n

	c := (t.tuning.ConsistencyWeight*cons + t.tuning.IndependenceWeight*indep) / 100
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// buildTestPrompt renders a style description into a generation prompt
// for an unfamiliar subject
func buildTestPrompt(style *types.StyleDescription, subject string) string {
	var b strings.Builder
	b.WriteString(subject)
	for _, block := range []types.StyleBlock{
		style.Palette, style.LineAndShape, style.Texture,
		style.Lighting, style.Composition, style.Motifs,
	} {
		if block.Summary != "" {
			b.WriteString(", ")
			b.WriteString(block.Summary)
		}
	}
	for _, inv := range style.CoreInvariants {
		b.WriteString(", ")
		b.WriteString(inv)
	}
	return b.String()
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
