package services

import "context"

type contextKey string

const (
	visitIDKey   contextKey = "visit_id"
	volunteerKey contextKey = "volunteer"
	requestIDKey contextKey = "request_id"
)

// WithVisitID annotates context with the visit identifier.
func WithVisitID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, visitIDKey, id)
}

// VisitIDFromContext extracts the visit identifier if present.
func VisitIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(visitIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithVolunteer annotates context with the volunteer identifier.
func WithVolunteer(ctx context.Context, volunteer string) context.Context {
	if volunteer == "" {
		return ctx
	}
	return context.WithValue(ctx, volunteerKey, volunteer)
}

// VolunteerFromContext extracts the volunteer identifier if present.
func VolunteerFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(volunteerKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
