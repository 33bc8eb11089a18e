// Package testsupport provides helpers shared by package tests: temp-dir
// configs and throwaway stores.
package testsupport

import (
	"path/filepath"
	"testing"

	"carecount/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.SocketPath = filepath.Join(base, "carecountd.sock")
	cfg.Vision.APIKey = "test"
	cfg.Session.Timezone = "UTC"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithVisionEndpoint points the captioner at a stub server.
func WithVisionEndpoint(baseURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Vision.BaseURL = baseURL
	}
}

// WithOCREndpoint points the text extractor at a stub server.
func WithOCREndpoint(baseURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.OCR.BaseURL = baseURL
	}
}
