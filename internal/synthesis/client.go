// Package synthesis wraps the image-generation backend behind the
// synthesis collaborator interface. The backend is an HTTP service
// (Stable Diffusion style txt2img API); the trainer only sees Generate,
// Interrupt, and ClearQueue.
package synthesis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Generator is the synthesis-collaborator interface. *Client is the
// production implementation; tests substitute mocks.
type Generator interface {
	// Generate renders a prompt to an image and returns a reference to
	// the stored result. Seed < 0 means let the backend pick one.
	Generate(ctx context.Context, prompt string, seed int64) (string, error)

	// Interrupt asks the backend to abandon the in-flight generation.
	// Part of cooperative cancellation - the trainer calls it after the
	// stop flag is observed.
	Interrupt(ctx context.Context) error

	// ClearQueue drops any queued generation requests
	ClearQueue(ctx context.Context) error
}

// Client talks to the image-generation HTTP backend
type Client struct {
	baseURL    string
	outputDir  string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

var _ Generator = (*Client)(nil)

// Config holds synthesis client configuration
type Config struct {
	BaseURL   string        // Backend URL (default: http://127.0.0.1:7860)
	OutputDir string        // Where generated images are written (default: .atelier/images)
	Timeout   time.Duration // Per-generation timeout (default: 5m)

	// RequestsPerMinute paces submissions so a fast accept/reject loop
	// doesn't flood the backend queue (default: 12)
	RequestsPerMinute int

	MaxRetries int // Retries on transient failures (default: 3)
}

// NewClient creates a new synthesis client
func NewClient(cfg *Config) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://127.0.0.1:7860"
	}
	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(".atelier", "images")
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	rpm := cfg.RequestsPerMinute
	if rpm == 0 {
		rpm = 12
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}

	return &Client{
		baseURL:    baseURL,
		outputDir:  outputDir,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		maxRetries: maxRetries,
	}, nil
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Seed   int64  `json:"seed"`
}

type generateResponse struct {
	Images []string `json:"images"` // base64-encoded
	Error  string   `json:"error,omitempty"`
}

// Generate renders the prompt and writes the resulting image under the
// output directory, returning its path. Transient backend failures are
// retried with a short linear backoff; exhausted retries surface as a
// fatal error to the caller's run.
func (c *Client) Generate(ctx context.Context, prompt string, seed int64) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(generateRequest{Prompt: prompt, Seed: seed})
	if err != nil {
		return "", fmt.Errorf("failed to marshal generate request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * 2 * time.Second):
			case <-ctx.Done():
				return "", fmt.Errorf("generate canceled during backoff: %w", ctx.Err())
			}
			fmt.Printf("synthesis generate retry %d/%d\n", attempt, c.maxRetries)
		}

		ref, err := c.generateOnce(ctx, body)
		if err == nil {
			return ref, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("synthesis generate failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) generateOnce(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sdapi/v1/txt2img", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("synthesis backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("synthesis backend returned %d: %s", resp.StatusCode, payload)
	}

	var gen generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return "", fmt.Errorf("failed to decode generate response: %w", err)
	}
	if gen.Error != "" {
		return "", fmt.Errorf("synthesis backend error: %s", gen.Error)
	}
	if len(gen.Images) == 0 {
		return "", fmt.Errorf("synthesis backend returned no images")
	}

	data, err := base64.StdEncoding.DecodeString(gen.Images[0])
	if err != nil {
		return "", fmt.Errorf("failed to decode image payload: %w", err)
	}

	ref := filepath.Join(c.outputDir, uuid.New().String()+".png")
	if err := os.WriteFile(ref, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return ref, nil
}

// Interrupt asks the backend to abandon the in-flight generation
func (c *Client) Interrupt(ctx context.Context) error {
	return c.post(ctx, "/sdapi/v1/interrupt")
}

// ClearQueue drops queued generation requests
func (c *Client) ClearQueue(ctx context.Context) error {
	return c.post(ctx, "/sdapi/v1/skip")
}

func (c *Client) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("synthesis backend unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("synthesis backend returned %d for %s", resp.StatusCode, path)
	}
	return nil
}
