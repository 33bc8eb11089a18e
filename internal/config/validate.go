package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateVision(); err != nil {
		return err
	}
	if err := c.validateOCR(); err != nil {
		return err
	}
	if err := c.validateIdentify(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSession() error {
	if _, err := time.LoadLocation(c.Session.Timezone); err != nil {
		return fmt.Errorf("session.timezone %q is not a valid IANA zone: %w", c.Session.Timezone, err)
	}
	if c.Session.CutoffHour < 0 || c.Session.CutoffHour > 23 {
		return errors.New("session.cutoff_hour must be between 0 and 23")
	}
	if c.Session.InactivityMinutes <= 0 {
		return errors.New("session.inactivity_minutes must be positive")
	}
	return nil
}

func (c *Config) validateVision() error {
	if c.Vision.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/carecount/config.toml"
		}
		return fmt.Errorf("vision.api_key is required. Edit %s (create with 'carecount config init')", defaultPath)
	}
	if !strings.HasPrefix(c.Vision.BaseURL, "http") {
		return errors.New("vision.base_url must be an http(s) URL")
	}
	if c.Vision.Model == "" {
		return errors.New("vision.model must be set")
	}
	return nil
}

func (c *Config) validateOCR() error {
	// OCR is optional: when no endpoint is configured the resolver degrades to
	// caption-only identification.
	if c.OCR.BaseURL == "" {
		return nil
	}
	if !strings.HasPrefix(c.OCR.BaseURL, "http") {
		return errors.New("ocr.base_url must be an http(s) URL")
	}
	return nil
}

func (c *Config) validateIdentify() error {
	if c.Identify.MinConfidence >= c.Identify.HighTextThreshold {
		return errors.New("identify.min_confidence must be below identify.high_text_threshold")
	}
	if c.Identify.AttemptsPerSource > 5 {
		return errors.New("identify.attempts_per_source must be 5 or fewer")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
