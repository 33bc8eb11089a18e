package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"carecount/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[vision]
api_key = "secret"
`)
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected file at %s to be used, got %s exists=%v", path, resolved, exists)
	}
	if cfg.Session.CutoffHour != 20 {
		t.Errorf("cutoff hour default = %d, want 20", cfg.Session.CutoffHour)
	}
	if cfg.Session.InactivityMinutes != 30 {
		t.Errorf("inactivity default = %d, want 30", cfg.Session.InactivityMinutes)
	}
	if cfg.Identify.HighTextThreshold != 0.75 {
		t.Errorf("high text threshold default = %v, want 0.75", cfg.Identify.HighTextThreshold)
	}
	if !filepath.IsAbs(cfg.Paths.DataDir) {
		t.Errorf("data dir not expanded: %q", cfg.Paths.DataDir)
	}
}

func TestLoadRejectsMissingVisionKey(t *testing.T) {
	path := writeConfig(t, `
[session]
timezone = "America/Toronto"
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for missing vision.api_key")
	}
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	path := writeConfig(t, `
[vision]
api_key = "secret"

[session]
timezone = "Mars/OlympusMons"
`)
	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "timezone") {
		t.Fatalf("expected timezone error, got %v", err)
	}
}

func TestLoadRejectsBadCutoffHour(t *testing.T) {
	path := writeConfig(t, `
[vision]
api_key = "secret"

[session]
cutoff_hour = 25
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for cutoff_hour out of range")
	}
}

func TestLoadRejectsInvertedThresholds(t *testing.T) {
	path := writeConfig(t, `
[vision]
api_key = "secret"

[identify]
high_text_threshold = 0.4
min_confidence = 0.6
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error when min_confidence exceeds high_text_threshold")
	}
}

func TestNormalizeClampsBogusThresholds(t *testing.T) {
	path := writeConfig(t, `
[vision]
api_key = "secret"

[identify]
tie_break_margin = 7.5
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Identify.TieBreakMargin != 0.15 {
		t.Errorf("tie break margin = %v, want clamped default 0.15", cfg.Identify.TieBreakMargin)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[session]") {
		t.Error("sample config missing [session] section")
	}
}
