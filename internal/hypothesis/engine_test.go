package hypothesis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/atelierhq/atelier/internal/palette"
)

func extractionJSON(labels ...string) string {
	out := `{"hypotheses": [`
	for i, label := range labels {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{
			"label": %q,
			"supporting_evidence": "the brushwork",
			"uncertain_aspects": "the palette",
			"style": {
				"name": %q,
				"core_invariants": ["flat shading"],
				"palette": {"summary": "model-guessed colors"},
				"line_and_shape": {"summary": "rendered as %s"}
			}
		}`, label, label, label)
	}
	return out + `]}`
}

func newTestEngine(complete func(operation, prompt string, images []string) (string, error)) *Engine {
	e := NewEngine(&mockScorer{complete: complete})
	e.extractPalette = func(path string, n int) ([]palette.Swatch, error) {
		return []palette.Swatch{
			{Hex: "#336699", Weight: 0.7},
			{Hex: "#cc9933", Weight: 0.3},
		}, nil
	}
	e.sleep = func(time.Duration) {}
	return e
}

func TestExtract_EqualInitialConfidence(t *testing.T) {
	engine := newTestEngine(func(op, prompt string, images []string) (string, error) {
		return extractionJSON("ink wash", "flat poster", "soft pastel"), nil
	})

	set, err := engine.Extract(context.Background(), "s1", "ref.png", 3, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(set.Hypotheses) != 3 {
		t.Fatalf("hypotheses = %d, want 3", len(set.Hypotheses))
	}
	for _, h := range set.Hypotheses {
		if h.Confidence != 1.0/3.0 {
			t.Errorf("hypothesis %q confidence = %v, want 1/3", h.Label, h.Confidence)
		}
		if h.ID == "" {
			t.Error("hypothesis must get an id")
		}
		if h.Style.SessionID != "s1" {
			t.Errorf("style session = %q, want s1", h.Style.SessionID)
		}
	}

	ids := map[string]bool{}
	for _, h := range set.Hypotheses {
		if ids[h.ID] {
			t.Fatalf("duplicate hypothesis id %q", h.ID)
		}
		ids[h.ID] = true
	}
}

func TestExtract_PaletteIsSharedAndMeasured(t *testing.T) {
	engine := newTestEngine(func(op, prompt string, images []string) (string, error) {
		return extractionJSON("a", "b"), nil
	})

	set, err := engine.Extract(context.Background(), "s1", "ref.png", 2, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, h := range set.Hypotheses {
		if h.Style.Palette.Summary == "model-guessed colors" {
			t.Error("measured palette must override the model's guess")
		}
		found := false
		for _, trait := range h.Style.Palette.Traits {
			if trait == "#336699 (70%)" {
				found = true
			}
		}
		if !found {
			t.Errorf("palette traits missing measured swatch: %v", h.Style.Palette.Traits)
		}
	}
}

func TestExtract_RetriesMalformedThenSucceeds(t *testing.T) {
	calls := 0
	engine := newTestEngine(func(op, prompt string, images []string) (string, error) {
		calls++
		if calls < 3 {
			return "well, it's hard to say...", nil
		}
		return extractionJSON("a", "b"), nil
	})

	set, err := engine.Extract(context.Background(), "s1", "ref.png", 2, "")
	if err != nil {
		t.Fatalf("expected third attempt to succeed: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(set.Hypotheses) != 2 {
		t.Errorf("hypotheses = %d, want 2", len(set.Hypotheses))
	}
}

func TestExtract_PersistentMalformedFails(t *testing.T) {
	calls := 0
	engine := newTestEngine(func(op, prompt string, images []string) (string, error) {
		calls++
		return "not json at all", nil
	})

	if _, err := engine.Extract(context.Background(), "s1", "ref.png", 2, ""); err == nil {
		t.Fatal("persistent malformed output must fail the extraction")
	}
	if calls != extractionRetries {
		t.Errorf("calls = %d, want %d", calls, extractionRetries)
	}
}

func TestExtract_TooFewHypothesesIsMalformed(t *testing.T) {
	engine := newTestEngine(func(op, prompt string, images []string) (string, error) {
		return extractionJSON("only one"), nil
	})

	if _, err := engine.Extract(context.Background(), "s1", "ref.png", 3, ""); err == nil {
		t.Fatal("a single returned hypothesis must count as malformed")
	}
}

func TestExtract_CountOutOfRange(t *testing.T) {
	engine := newTestEngine(nil)

	for _, n := range []int{0, 1, 6} {
		if _, err := engine.Extract(context.Background(), "s1", "ref.png", n, ""); err == nil {
			t.Errorf("count %d must be rejected", n)
		}
	}
}

func TestExtract_TransportErrorIsNotRetried(t *testing.T) {
	calls := 0
	engine := newTestEngine(func(op, prompt string, images []string) (string, error) {
		calls++
		return "", fmt.Errorf("connection refused")
	})

	if _, err := engine.Extract(context.Background(), "s1", "ref.png", 2, ""); err == nil {
		t.Fatal("transport error must fail the extraction")
	}
	// The vision client already retries transport errors internally;
	// re-retrying here would multiply the delays
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
