package logging

import (
	"context"
	"log/slog"

	"carecount/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldVisitID is the standardized structured logging key for visit identifiers.
	FieldVisitID = "visit_id"
	// FieldVolunteer is the standardized structured logging key for volunteer identifiers.
	FieldVolunteer = "volunteer"
	// FieldSource is the standardized structured logging key for extraction sources (ocr/vision/manual).
	FieldSource = "source"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType tags log lines with a machine-readable event category.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step when a warning or error is logged.
	FieldErrorHint = "error_hint"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.VisitIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldVisitID, id))
	}
	if volunteer, ok := services.VolunteerFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldVolunteer, volunteer))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
