// Package vision wraps the Anthropic vision-language API behind the
// scoring collaborator interface: image description, candidate critique,
// and prompt generation. All calls go through retry with exponential
// backoff and a circuit breaker; structured responses go through the
// resilient JSON parser.
package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"

	"github.com/atelierhq/atelier/internal/types"
)

// Vision model constants. Critique and description need real visual
// reasoning, so the default is the high-end model; prompt generation is
// text-only and runs fine on the cheap one.
const (
	ModelDefault = "claude-sonnet-4-5-20250929"
	ModelSimple  = "claude-3-5-haiku-20241022"
)

// GetDefaultModel returns the vision model, checking ATELIER_VISION_MODEL first
func GetDefaultModel() string {
	if model := os.Getenv("ATELIER_VISION_MODEL"); model != "" {
		return model
	}
	return ModelDefault
}

// Scorer is the scoring-collaborator interface the convergence engine
// and hypothesis pipeline consume. *Client is the production
// implementation; tests substitute mocks.
type Scorer interface {
	// Describe returns a free-text description of the image's style
	Describe(ctx context.Context, image string) (string, error)

	// Critique scores a candidate image against the original under the
	// given style description. A malformed critique response degrades to
	// neutral scores rather than failing the call.
	Critique(ctx context.Context, original, candidate string, style *types.StyleDescription, creativity float64) (*types.CritiqueResult, error)

	// GeneratePrompt produces the text-to-image prompt for the next
	// candidate, steered by the accumulated feedback history
	GeneratePrompt(ctx context.Context, style *types.StyleDescription, subject string, feedback []types.FeedbackEntry) (string, error)

	// Complete makes a raw structured call with optional image
	// attachments and returns the response text. Callers that need
	// their own malformed-output policy (hypothesis extraction, test
	// scoring) build on this.
	Complete(ctx context.Context, operation, prompt string, images []string, maxTokens int) (string, error)
}

// Client is the Anthropic-backed scoring collaborator
type Client struct {
	client         *anthropic.Client
	model          string
	retry          RetryConfig
	circuitBreaker *CircuitBreaker
	concurrencySem *semaphore.Weighted
}

var _ Scorer = (*Client)(nil)

// Config holds vision client configuration
type Config struct {
	APIKey string // Anthropic API key (if empty, reads ANTHROPIC_API_KEY)
	Model  string // Model to use (default: claude-sonnet-4-5-20250929)
	Retry  RetryConfig
}

// NewClient creates a new vision client
func NewClient(cfg *Config) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = GetDefaultModel()
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	var circuitBreaker *CircuitBreaker
	if retry.CircuitBreakerEnabled {
		circuitBreaker = NewCircuitBreaker(retry.FailureThreshold, retry.SuccessThreshold, retry.OpenTimeout)
	}

	var concurrencySem *semaphore.Weighted
	if retry.MaxConcurrentCalls > 0 {
		concurrencySem = semaphore.NewWeighted(int64(retry.MaxConcurrentCalls))
	}

	return &Client{
		client:         &client,
		model:          model,
		retry:          retry,
		circuitBreaker: circuitBreaker,
		concurrencySem: concurrencySem,
	}, nil
}

// Complete makes a raw model call with retry. Image paths are attached
// as base64 vision blocks in order, before the prompt text.
func (c *Client) Complete(ctx context.Context, operation, prompt string, images []string, maxTokens int) (string, error) {
	if maxTokens == 0 {
		maxTokens = 4096
	}

	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(images)+1)
	for _, image := range images {
		mediaType, data, err := loadImageBase64(image)
		if err != nil {
			return "", fmt.Errorf("failed to load image %s: %w", image, err)
		}
		blocks = append(blocks, anthropic.NewImageBlockBase64(mediaType, data))
	}
	blocks = append(blocks, anthropic.NewTextBlock(prompt))

	var response *anthropic.Message
	err := c.retryWithBackoff(ctx, operation, func(attemptCtx context.Context) error {
		resp, apiErr := c.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(c.model),
			MaxTokens: int64(maxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(blocks...),
			},
		})
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		return "", err
	}

	var responseText strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			responseText.WriteString(block.Text)
		}
	}
	return responseText.String(), nil
}

// Describe returns a free-text description of the image's visual style
func (c *Client) Describe(ctx context.Context, image string) (string, error) {
	prompt := `Describe the visual style of this image for an artist who must reproduce it.
Cover: color palette, line and shape language, texture, lighting, composition, and recurring motifs.
Describe the style, not the subject. Plain prose, no lists.`

	text, err := c.Complete(ctx, "describe", prompt, []string{image}, 2048)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// critiqueResponse is the strict-JSON shape the critique prompt demands
type critiqueResponse struct {
	Scores               types.ScoreSet          `json:"scores"`
	PreservedTraits      []string                `json:"preserved_traits"`
	LostTraits           []string                `json:"lost_traits"`
	InterestingMutations []string                `json:"interesting_mutations"`
	Corrections          []types.Correction      `json:"corrections"`
	UpdatedStyle         *types.StyleDescription `json:"updated_style_description"`
}

// Critique scores a candidate image against the original reference.
// A response that fails every parse strategy degrades to neutral scores
// with no corrections - critique quality loss is recoverable, aborting
// the whole run is not.
func (c *Client) Critique(ctx context.Context, original, candidate string, style *types.StyleDescription, creativity float64) (*types.CritiqueResult, error) {
	styleJSON, err := json.MarshalIndent(style, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal style description: %w", err)
	}

	prompt := fmt.Sprintf(`The first image is the style reference. The second is a generated candidate.
Judge how faithfully the candidate reproduces the reference style described below, then propose an updated style description incorporating what you learned.

STYLE DESCRIPTION:
%s

CREATIVITY LEVEL: %.2f (0 = strict fidelity, 1 = welcome mutations)

Respond with ONLY a JSON object, no prose:
{
  "scores": {"palette": 0-100, "line_and_shape": 0-100, "texture": 0-100, "lighting": 0-100, "composition": 0-100, "motifs": 0-100, "overall": 0-100},
  "preserved_traits": ["..."],
  "lost_traits": ["..."],
  "interesting_mutations": ["..."],
  "corrections": [{"feature_id": "...", "direction": "strengthen|weaken", "confidence": 0.0-1.0}],
  "updated_style_description": {... same shape as STYLE DESCRIPTION ...}
}`, styleJSON, creativity)

	text, err := c.Complete(ctx, "critique", prompt, []string{original, candidate}, 8192)
	if err != nil {
		return nil, err
	}

	parsed := Parse[critiqueResponse](text, "critique response")
	if !parsed.Success {
		fmt.Fprintf(os.Stderr, "warning: critique response unparseable, falling back to neutral scores: %s\n", parsed.Error)
		return &types.CritiqueResult{Scores: types.NeutralScores()}, nil
	}

	result := &types.CritiqueResult{
		Scores:               parsed.Data.Scores.Clamp(),
		PreservedTraits:      parsed.Data.PreservedTraits,
		LostTraits:           parsed.Data.LostTraits,
		InterestingMutations: parsed.Data.InterestingMutations,
		Corrections:          parsed.Data.Corrections,
		UpdatedStyle:         parsed.Data.UpdatedStyle,
	}

	// Drop corrections with unknown directions instead of letting them
	// poison the confidence tracker
	valid := result.Corrections[:0]
	for _, corr := range result.Corrections {
		if corr.FeatureID != "" && corr.Direction.IsValid() {
			valid = append(valid, corr)
		}
	}
	result.Corrections = valid

	return result, nil
}

// GeneratePrompt produces the text-to-image prompt for the next
// candidate. Recovery-guidance feedback leads the context; routine
// entries follow in arrival order.
func (c *Client) GeneratePrompt(ctx context.Context, style *types.StyleDescription, subject string, feedback []types.FeedbackEntry) (string, error) {
	styleJSON, err := json.MarshalIndent(style, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal style description: %w", err)
	}

	var fb strings.Builder
	for _, entry := range feedback {
		if entry.HighPriority() {
			fb.WriteString(fmt.Sprintf("- [MUST ADDRESS] %s\n", entry.Text))
		}
	}
	for _, entry := range feedback {
		if !entry.HighPriority() {
			fb.WriteString(fmt.Sprintf("- [%s] %s\n", entry.Kind, entry.Text))
		}
	}
	feedbackSection := fb.String()
	if feedbackSection == "" {
		feedbackSection = "(none)"
	}

	prompt := fmt.Sprintf(`Write a single text-to-image prompt that renders the subject below in the described style.

STYLE DESCRIPTION:
%s

SUBJECT: %s

FEEDBACK FROM PRIOR ATTEMPTS:
%s

Fold every core invariant into the prompt. Address the feedback, highest priority first.
Respond with ONLY the prompt text.`, styleJSON, subject, feedbackSection)

	text, err := c.Complete(ctx, "generate_prompt", prompt, nil, 2048)
	if err != nil {
		return "", err
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", &MalformedOutputError{Operation: "generate_prompt", Detail: "empty prompt", Raw: text}
	}
	return trimmed, nil
}

// loadImageBase64 reads an image file and returns its media type and
// base64-encoded bytes
func loadImageBase64(path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}

	var mediaType string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		mediaType = "image/png"
	case ".jpg", ".jpeg":
		mediaType = "image/jpeg"
	case ".gif":
		mediaType = "image/gif"
	case ".webp":
		mediaType = "image/webp"
	default:
		return "", "", fmt.Errorf("unsupported image format: %s", filepath.Ext(path))
	}

	return mediaType, base64.StdEncoding.EncodeToString(data), nil
}
