package config

import "strings"

// normalize expands paths and fills zero values with defaults so the rest of
// the codebase never re-checks them.
func (c *Config) normalize() error {
	d := Default()

	for _, field := range []*string{&c.Paths.DataDir, &c.Paths.LogDir, &c.Paths.SocketPath} {
		trimmed := strings.TrimSpace(*field)
		if trimmed == "" {
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return err
		}
		*field = expanded
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		expanded, err := expandPath(d.Paths.DataDir)
		if err != nil {
			return err
		}
		c.Paths.DataDir = expanded
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		expanded, err := expandPath(d.Paths.LogDir)
		if err != nil {
			return err
		}
		c.Paths.LogDir = expanded
	}
	if strings.TrimSpace(c.Paths.SocketPath) == "" {
		expanded, err := expandPath(d.Paths.SocketPath)
		if err != nil {
			return err
		}
		c.Paths.SocketPath = expanded
	}

	if path := strings.TrimSpace(c.Catalog.Path); path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return err
		}
		c.Catalog.Path = expanded
	}

	if strings.TrimSpace(c.Session.Timezone) == "" {
		c.Session.Timezone = d.Session.Timezone
	}
	if c.Session.InactivityMinutes <= 0 {
		c.Session.InactivityMinutes = d.Session.InactivityMinutes
	}
	if c.Session.SweepSeconds <= 0 {
		c.Session.SweepSeconds = d.Session.SweepSeconds
	}

	c.Vision.APIKey = strings.TrimSpace(c.Vision.APIKey)
	c.Vision.BaseURL = strings.TrimSpace(c.Vision.BaseURL)
	c.Vision.Model = strings.TrimSpace(c.Vision.Model)
	if c.Vision.BaseURL == "" {
		c.Vision.BaseURL = d.Vision.BaseURL
	}
	if c.Vision.Model == "" {
		c.Vision.Model = d.Vision.Model
	}
	if c.Vision.TimeoutSeconds <= 0 {
		c.Vision.TimeoutSeconds = d.Vision.TimeoutSeconds
	}

	c.OCR.APIKey = strings.TrimSpace(c.OCR.APIKey)
	c.OCR.BaseURL = strings.TrimSpace(c.OCR.BaseURL)
	if c.OCR.TimeoutSeconds <= 0 {
		c.OCR.TimeoutSeconds = d.OCR.TimeoutSeconds
	}

	if c.Identify.AttemptsPerSource <= 0 {
		c.Identify.AttemptsPerSource = d.Identify.AttemptsPerSource
	}
	if c.Identify.OverallTimeoutSecs <= 0 {
		c.Identify.OverallTimeoutSecs = d.Identify.OverallTimeoutSecs
	}
	if c.Identify.HighTextThreshold <= 0 || c.Identify.HighTextThreshold >= 1 {
		c.Identify.HighTextThreshold = d.Identify.HighTextThreshold
	}
	if c.Identify.MinConfidence <= 0 || c.Identify.MinConfidence >= 1 {
		c.Identify.MinConfidence = d.Identify.MinConfidence
	}
	if c.Identify.TieBreakMargin <= 0 || c.Identify.TieBreakMargin >= 1 {
		c.Identify.TieBreakMargin = d.Identify.TieBreakMargin
	}

	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = d.Logging.Format
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = d.Logging.Level
	}

	return nil
}
