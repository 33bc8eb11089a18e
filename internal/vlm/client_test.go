package vlm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"carecount/internal/extract"
	"carecount/internal/photo"
	"carecount/internal/services"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}

func captionResponse(content string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{
				"message": map[string]any{"content": content},
			},
		},
	}
}

func TestCaptionParsesJSONReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read request: %v", err)
		}
		if !strings.Contains(string(body), "data:image/png;base64,") {
			t.Fatal("request body missing image data url")
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Fatalf("unexpected authorization header %q", r.Header.Get("Authorization"))
		}
		if err := json.NewEncoder(w).Encode(captionResponse(`{"item":"peanut butter","confidence":0.8}`)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL, Model: "demo-model"})
	result, err := client.Caption(context.Background(), photo.Payload{Bytes: pngBytes})
	if err != nil {
		t.Fatalf("Caption returned error: %v", err)
	}
	if result.Source != extract.SourceVision {
		t.Fatalf("source = %s, want vision", result.Source)
	}
	if result.Text != "peanut butter" {
		t.Fatalf("text = %q, want peanut butter", result.Text)
	}
	if result.Confidence != 0.8 {
		t.Fatalf("confidence = %v, want 0.8", result.Confidence)
	}
}

func TestCaptionCodeFencedReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewEncoder(w).Encode(captionResponse("```json\n{\"item\":\"cereal\",\"confidence\":0.65}\n```")); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	result, err := client.Caption(context.Background(), photo.Payload{Bytes: pngBytes})
	if err != nil {
		t.Fatalf("Caption returned error: %v", err)
	}
	if result.Text != "cereal" || result.Confidence != 0.65 {
		t.Fatalf("result = %+v, want cereal / 0.65", result)
	}
}

func TestCaptionPlainTextReplyGetsDefaultConfidence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewEncoder(w).Encode(captionResponse("a can of tomato soup")); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	result, err := client.Caption(context.Background(), photo.Payload{Bytes: pngBytes})
	if err != nil {
		t.Fatalf("Caption returned error: %v", err)
	}
	if result.Text != "a can of tomato soup" {
		t.Fatalf("text = %q", result.Text)
	}
	if result.Confidence != extract.DefaultCaptionConfidence {
		t.Fatalf("confidence = %v, want default %v", result.Confidence, extract.DefaultCaptionConfidence)
	}
}

func TestCaptionRetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if err := json.NewEncoder(w).Encode(captionResponse(`{"item":"rice","confidence":0.7}`)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo"},
		WithRetryBackoff(time.Millisecond, 4*time.Millisecond),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)
	result, err := client.Caption(context.Background(), photo.Payload{Bytes: pngBytes})
	if err != nil {
		t.Fatalf("Caption returned error: %v", err)
	}
	if result.Text != "rice" {
		t.Fatalf("text = %q, want rice", result.Text)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	if len(slept) != 1 {
		t.Fatalf("slept %d times, want 1", len(slept))
	}
}

func TestCaptionHonorsRetryAfter(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if err := json.NewEncoder(w).Encode(captionResponse(`{"item":"soup","confidence":0.6}`)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)
	if _, err := client.Caption(context.Background(), photo.Payload{Bytes: pngBytes}); err != nil {
		t.Fatalf("Caption returned error: %v", err)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("slept = %v, want [1s] from Retry-After", slept)
	}
}

func TestCaptionDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	_, err := client.Caption(context.Background(), photo.Payload{Bytes: pngBytes})
	if err == nil {
		t.Fatal("expected failure")
	}
	if !errors.Is(err, extract.ErrCaptionerUnavailable) {
		t.Fatalf("error %v missing captioner unavailable marker", err)
	}
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("error %v missing shared unavailable marker", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want no retry on 401", calls)
	}
}

func TestCaptionRejectsInvalidPayload(t *testing.T) {
	client := NewClient(Config{APIKey: "test", BaseURL: "http://unused.invalid", Model: "demo"})
	_, err := client.Caption(context.Background(), photo.Payload{Bytes: []byte("not an image")})
	if !errors.Is(err, photo.ErrInvalid) {
		t.Fatalf("error = %v, want photo.ErrInvalid", err)
	}
}

func TestCaptionRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused.invalid", Model: "demo"})
	_, err := client.Caption(context.Background(), photo.Payload{Bytes: pngBytes})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("error = %v, want configuration error", err)
	}
}
