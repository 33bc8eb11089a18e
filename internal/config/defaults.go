package config

const (
	defaultDataDir    = "~/.local/share/carecount/data"
	defaultLogDir     = "~/.local/share/carecount/logs"
	defaultSocketPath = "~/.local/share/carecount/carecountd.sock"

	defaultTimezone          = "America/Toronto"
	defaultCutoffHour        = 20
	defaultInactivityMinutes = 30
	defaultSweepSeconds      = 30

	defaultVisionBaseURL        = "https://api.nebius.ai/v1/chat/completions"
	defaultVisionModel          = "google/gemma-3-27b-it"
	defaultVisionTimeoutSeconds = 10
	defaultOCRTimeoutSeconds    = 10

	defaultAttemptsPerSource  = 2
	defaultOverallTimeoutSecs = 30

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults. Arbitration
// thresholds follow the documented policy: legible packaging text wins at 0.75,
// nothing below 0.40 is accepted, and a 0.15 margin separates a clean win from
// an ambiguous one.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			SocketPath: defaultSocketPath,
		},
		Session: Session{
			Timezone:          defaultTimezone,
			CutoffHour:        defaultCutoffHour,
			InactivityMinutes: defaultInactivityMinutes,
			SweepSeconds:      defaultSweepSeconds,
		},
		Vision: Vision{
			BaseURL:        defaultVisionBaseURL,
			Model:          defaultVisionModel,
			TimeoutSeconds: defaultVisionTimeoutSeconds,
		},
		OCR: OCR{
			TimeoutSeconds: defaultOCRTimeoutSeconds,
		},
		Identify: Identify{
			AttemptsPerSource:  defaultAttemptsPerSource,
			OverallTimeoutSecs: defaultOverallTimeoutSecs,
			HighTextThreshold:  0.75,
			MinConfidence:      0.40,
			TieBreakMargin:     0.15,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
