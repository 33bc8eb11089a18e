package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"carecount/internal/audit"
)

// AppendAuditEvent persists one audit record. Satisfies audit.Sink.
func (s *Store) AppendAuditEvent(ctx context.Context, event audit.Event) error {
	details := []byte("{}")
	if len(event.Details) > 0 {
		encoded, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		details = encoded
	}
	at := event.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.execWithRetry(ctx, `
		INSERT INTO audit_events (event_type, visit_id, volunteer, at, details)
		VALUES (?, ?, ?, ?, ?)`,
		string(event.Type), event.VisitID, event.Volunteer, at.Format(timeFormat), string(details),
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// AuditEventsForVisit returns a visit's audit trail oldest first.
func (s *Store) AuditEventsForVisit(ctx context.Context, visitID string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `
		SELECT event_type, visit_id, volunteer, at, details
		FROM audit_events WHERE visit_id = ? ORDER BY id`, visitID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event     audit.Event
			eventType string
			at        string
			details   string
		)
		if err := rows.Scan(&eventType, &event.VisitID, &event.Volunteer, &at, &details); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Type = audit.EventType(eventType)
		if event.At, err = time.Parse(timeFormat, at); err != nil {
			return nil, fmt.Errorf("parse audit at: %w", err)
		}
		if details != "" {
			if err := json.Unmarshal([]byte(details), &event.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
