// Package hypothesis explores competing interpretations of a reference
// image's style, tests them empirically, and decides which one to
// commit to - or that a human has to choose.
package hypothesis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier/internal/palette"
	"github.com/atelierhq/atelier/internal/types"
	"github.com/atelierhq/atelier/internal/vision"
)

// extractionRetries is how many times a malformed extraction response
// is retried before the whole extraction fails
const extractionRetries = 3

// extractionRetryDelay spaces retries so a struggling model gets a
// fresh shot instead of an instant replay
const extractionRetryDelay = 2 * time.Second

// paletteSwatches is the cluster count for the measured palette
const paletteSwatches = 6

// Engine generates competing style interpretations from one image
type Engine struct {
	scorer vision.Scorer

	// extractPalette is swappable for tests; defaults to palette.Extract
	extractPalette func(path string, n int) ([]palette.Swatch, error)

	// sleep is swappable for tests; defaults to time.Sleep
	sleep func(time.Duration)
}

// NewEngine creates a hypothesis engine
func NewEngine(scorer vision.Scorer) *Engine {
	return &Engine{
		scorer:         scorer,
		extractPalette: palette.Extract,
		sleep:          time.Sleep,
	}
}

type extractedHypothesis struct {
	Label              string                  `json:"label"`
	SupportingEvidence string                  `json:"supporting_evidence"`
	UncertainAspects   string                  `json:"uncertain_aspects"`
	Style              *types.StyleDescription `json:"style"`
}

type extractionResponse struct {
	Hypotheses []extractedHypothesis `json:"hypotheses"`
}

// Extract asks the vision collaborator for n competing interpretations
// of the image's style. All hypotheses start at equal confidence 1/n -
// no information distinguishes them yet. Each hypothesis's palette
// block is overwritten by one shared deterministic clustering result:
// style estimation is probabilistic, color measurement is not, and it
// should not vary per hypothesis.
//
// A malformed response (unparseable, or fewer than 2 hypotheses) is
// retried up to 3 times with a delay, then fails the whole extraction.
func (e *Engine) Extract(ctx context.Context, sessionID, image string, n int, styleHints string) (*types.HypothesisSet, error) {
	if n < 2 || n > 5 {
		return nil, fmt.Errorf("hypothesis count must be between 2 and 5 (got %d)", n)
	}

	swatches, err := e.extractPalette(image, paletteSwatches)
	if err != nil {
		return nil, fmt.Errorf("palette extraction failed: %w", err)
	}
	measuredPalette := palette.Block(swatches)

	prompt := e.buildExtractionPrompt(n, styleHints)

	var parsed extractionResponse
	var lastErr error
	for attempt := 1; attempt <= extractionRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("extraction canceled: %w", ctx.Err())
			default:
			}
			e.sleep(extractionRetryDelay)
		}

		text, err := e.scorer.Complete(ctx, "extract_hypotheses", prompt, []string{image}, 8192)
		if err != nil {
			return nil, fmt.Errorf("hypothesis extraction call failed: %w", err)
		}

		result := vision.Parse[extractionResponse](text, "hypothesis extraction")
		if !result.Success {
			lastErr = &vision.MalformedOutputError{Operation: "extract_hypotheses", Detail: result.Error, Raw: text}
			fmt.Printf("hypothesis extraction attempt %d/%d produced malformed output, retrying\n",
				attempt, extractionRetries)
			continue
		}
		if len(result.Data.Hypotheses) < 2 {
			lastErr = &vision.MalformedOutputError{
				Operation: "extract_hypotheses",
				Detail:    fmt.Sprintf("expected at least 2 hypotheses, got %d", len(result.Data.Hypotheses)),
				Raw:       text,
			}
			continue
		}

		parsed = result.Data
		lastErr = nil
		break
	}
	if lastErr != nil {
		return nil, fmt.Errorf("hypothesis extraction failed after %d attempts: %w", extractionRetries, lastErr)
	}

	initial := 1.0 / float64(len(parsed.Hypotheses))
	set := &types.HypothesisSet{
		SessionID: sessionID,
		CreatedAt: time.Now(),
	}
	for _, h := range parsed.Hypotheses {
		style := h.Style
		if style == nil {
			style = &types.StyleDescription{}
		}
		style = style.Clone()
		style.SessionID = sessionID
		style.Palette = measuredPalette
		if style.Name == "" {
			style.Name = h.Label
		}

		set.Hypotheses = append(set.Hypotheses, &types.StyleHypothesis{
			ID:                 uuid.New().String(),
			Label:              h.Label,
			Style:              style,
			Confidence:         initial,
			SupportingEvidence: h.SupportingEvidence,
			UncertainAspects:   h.UncertainAspects,
		})
	}
	return set, nil
}

func (e *Engine) buildExtractionPrompt(n int, styleHints string) string {
	hints := styleHints
	if hints == "" {
		hints = "(none)"
	}
	return fmt.Sprintf(`Propose %d genuinely different interpretations of this image's visual style.
Interpretations should disagree about what makes the style what it is - not be paraphrases of each other.

HINTS FROM THE USER: %s

Respond with ONLY a JSON object:
{
  "hypotheses": [
    {
      "label": "short human-readable name for the interpretation",
      "supporting_evidence": "what in the image supports this reading",
      "uncertain_aspects": "what this reading cannot explain",
      "style": {
        "name": "...",
        "core_invariants": ["..."],
        "palette": {"summary": "...", "traits": ["..."]},
        "line_and_shape": {"summary": "...", "traits": ["..."]},
        "texture": {"summary": "...", "traits": ["..."]},
        "lighting": {"summary": "...", "traits": ["..."]},
        "composition": {"summary": "...", "traits": ["..."]},
        "motifs": {"summary": "...", "traits": ["..."]}
      }
    }
  ]
}`, n, hints)
}
