package services_test

import (
	"errors"
	"strings"
	"testing"

	"carecount/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("connection refused")
	err := services.Wrap(services.ErrUnavailable, "captioner", "caption", "provider call failed", base)
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped base error, got %v", err)
	}
	if !strings.Contains(err.Error(), "captioner: caption") {
		t.Fatalf("expected component context in message, got %q", err.Error())
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "store", "", "", nil)
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("nil marker should default to ErrUnavailable, got %v", err)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"validation", services.Wrap(services.ErrValidation, "image", "decode", "bad payload", nil), false},
		{"configuration", services.ErrConfiguration, false},
		{"unavailable", services.Wrap(services.ErrUnavailable, "ocr", "extract", "", nil), true},
		{"timeout", services.ErrTimeout, true},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := services.Retryable(tc.err); got != tc.want {
			t.Errorf("%s: Retryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}
