// Package ocr reads printed text off donation photos through a line-oriented
// OCR HTTP service (a hosted PaddleOCR-style endpoint that returns recognized
// lines with per-line confidence). It satisfies extract.TextExtractor.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"carecount/internal/extract"
	"carecount/internal/httpretry"
	"carecount/internal/photo"
	"carecount/internal/services"
)

const (
	defaultHTTPTimeout    = 15 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 8 * time.Second
)

// Config captures the runtime settings for the OCR service. APIKey is
// optional; self-hosted deployments often run unauthenticated.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

// Client calls the OCR service.
type Client struct {
	cfg   Config
	retry httpretry.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.retry.HTTP = client
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retry.MaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retry.BaseDelay = baseDelay
		c.retry.MaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.retry.Sleeper = sleeper
	}
}

// NewClient constructs an OCR client from the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		retry: httpretry.Client{
			HTTP:        &http.Client{Timeout: timeout},
			MaxAttempts: defaultRetryAttempts,
			BaseDelay:   defaultRetryBaseDelay,
			MaxDelay:    defaultRetryMaxDelay,
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type ocrRequest struct {
	Image       string `json:"image"`
	ContentType string `json:"content_type"`
}

type ocrResponse struct {
	Lines []struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	} `json:"lines"`
	Error string `json:"error"`
}

// Extract returns one result per recognized line. An empty slice means the
// service saw no text, which is not an error.
func (c *Client) Extract(ctx context.Context, img photo.Payload) ([]extract.Result, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if c.cfg.BaseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "ocr", "extract", "base url required", nil)
	}

	encoded, err := json.Marshal(ocrRequest{
		Image:       base64.StdEncoding.EncodeToString(img.Bytes),
		ContentType: img.Type(),
	})
	if err != nil {
		return nil, fmt.Errorf("ocr request: encode body: %w", err)
	}

	body, err := c.retry.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
		if err != nil {
			return nil, fmt.Errorf("ocr request: new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}
		return req, nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", extract.ErrExtractorUnavailable, err)
	}

	var parsed ocrResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", extract.ErrExtractorUnavailable, err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("%w: service error: %s", extract.ErrExtractorUnavailable, parsed.Error)
	}

	results := make([]extract.Result, 0, len(parsed.Lines))
	for _, line := range parsed.Lines {
		text := strings.TrimSpace(line.Text)
		if text == "" {
			continue
		}
		confidence := line.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
		results = append(results, extract.Result{
			Source:     extract.SourceOCR,
			Text:       text,
			Confidence: confidence,
		})
	}
	return results, nil
}
