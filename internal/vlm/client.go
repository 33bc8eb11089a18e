// Package vlm talks to an OpenAI-compatible chat completions endpoint to
// caption donation photos. It satisfies extract.VisionCaptioner.
package vlm

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
	defaultHTTPTimeout    = 20 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 8 * time.Second
)

// captionPrompt steers the model toward a short item name plus a
// self-reported confidence. Some models ignore the JSON instruction; the
// decoder tolerates plain-text replies.
const captionPrompt = `You are identifying a single donated item from a photo taken at a food bank intake desk.
Respond with JSON only: {"item": "<short generic item name>", "confidence": <0.0-1.0>}.
Name the item generically (e.g. "peanut butter", not a brand or slogan).`

// Config captures the runtime settings required to reach the vision model.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client issues multimodal chat completion requests.
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

// NewClient constructs a captioning client from the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
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

// Caption identifies the item in the photo. The returned result carries the
// model's self-reported confidence, or extract.DefaultCaptionConfidence when
// the model does not report one.
func (c *Client) Caption(ctx context.Context, img photo.Payload) (extract.Result, error) {
	var empty extract.Result
	if err := img.Validate(); err != nil {
		return empty, err
	}
	if c.cfg.APIKey == "" {
		return empty, services.Wrap(services.ErrConfiguration, "vlm", "caption", "api key required", nil)
	}
	if c.cfg.BaseURL == "" {
		return empty, services.Wrap(services.ErrConfiguration, "vlm", "caption", "base url required", nil)
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", img.Type(), base64.StdEncoding.EncodeToString(img.Bytes))
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []messagePart{
					{Type: "text", Text: captionPrompt},
					{Type: "image_url", ImageURL: &imageRef{URL: dataURL}},
				},
			},
		},
		Temperature: 0,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return empty, fmt.Errorf("vlm request: encode body: %w", err)
	}

	body, err := c.retry.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
		if err != nil {
			return nil, fmt.Errorf("vlm request: new request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return empty, err
		}
		return empty, fmt.Errorf("%w: %w", extract.ErrCaptionerUnavailable, err)
	}

	content, err := completionContent(body)
	if err != nil {
		return empty, fmt.Errorf("%w: %w", extract.ErrCaptionerUnavailable, err)
	}
	item, confidence := decodeCaption(content)
	if item == "" {
		return empty, fmt.Errorf("%w: model returned no caption", extract.ErrCaptionerUnavailable)
	}
	return extract.Result{
		Source:     extract.SourceVision,
		Text:       item,
		Confidence: confidence,
	}, nil
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []messagePart `json:"content"`
}

type messagePart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageRef `json:"image_url,omitempty"`
}

type imageRef struct {
	URL string `json:"url"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func completionContent(body []byte) (string, error) {
	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	for _, choice := range completion.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
	}
	return "", errors.New("empty choices")
}

// decodeCaption parses the model reply. A JSON object with an "item" field is
// preferred; anything else is treated as a plain-text caption with the
// default confidence.
func decodeCaption(content string) (string, float64) {
	trimmed := strings.TrimSpace(stripCodeFence(content))
	candidate := trimmed
	if start := strings.Index(candidate, "{"); start >= 0 {
		if end := strings.LastIndex(candidate, "}"); end > start {
			candidate = candidate[start : end+1]
		}
	}
	var parsed struct {
		Item       string  `json:"item"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(candidate), &parsed); err == nil && strings.TrimSpace(parsed.Item) != "" {
		confidence := parsed.Confidence
		if confidence <= 0 {
			confidence = extract.DefaultCaptionConfidence
		}
		if confidence > 1 {
			confidence = 1
		}
		return strings.TrimSpace(parsed.Item), confidence
	}
	return trimmed, extract.DefaultCaptionConfidence
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
