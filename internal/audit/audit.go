// Package audit records structured events for identification attempts and
// visit transitions. Recorders never fail the operation they describe; a sink
// error is logged and dropped.
package audit

import (
	"context"
	"log/slog"
	"time"

	"carecount/internal/logging"
)

// EventType names the recorded occurrence.
type EventType string

const (
	EventResolutionAttempt EventType = "resolution_attempt"
	EventVisitTransition   EventType = "visit_transition"
	EventItemLogged        EventType = "item_logged"
)

// Event is one audit record. Details carries event-specific fields and is
// serialized as JSON by persistent sinks.
type Event struct {
	Type      EventType
	VisitID   string
	Volunteer string
	At        time.Time
	Details   map[string]any
}

// Recorder accepts audit events.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// Sink persists audit events. The SQLite store implements this.
type Sink interface {
	AppendAuditEvent(ctx context.Context, event Event) error
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, Event) {}

// Nop returns a recorder that discards everything. Used in tests.
func Nop() Recorder { return nopRecorder{} }

type logRecorder struct {
	logger *slog.Logger
	sink   Sink
}

// NewRecorder mirrors every event to the logger and, when sink is non-nil,
// appends it to the sink.
func NewRecorder(logger *slog.Logger, sink Sink) Recorder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &logRecorder{logger: logger, sink: sink}
}

func (r *logRecorder) Record(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, string(event.Type)),
	}
	if event.VisitID != "" {
		attrs = append(attrs, logging.String(logging.FieldVisitID, event.VisitID))
	}
	if event.Volunteer != "" {
		attrs = append(attrs, logging.String(logging.FieldVolunteer, event.Volunteer))
	}
	for key, value := range event.Details {
		attrs = append(attrs, logging.Any(key, value))
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "audit event", attrs...)

	if r.sink != nil {
		if err := r.sink.AppendAuditEvent(ctx, event); err != nil {
			r.logger.LogAttrs(ctx, slog.LevelWarn, "audit sink write failed",
				logging.String(logging.FieldEventType, string(event.Type)),
				logging.Error(err))
		}
	}
}
