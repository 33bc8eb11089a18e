// Package logging builds the slog loggers used across carecount and provides
// the shared attribute helpers and standardized field keys for structured logs.
package logging
