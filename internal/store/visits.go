package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"carecount/internal/services"
	"carecount/internal/visit"
)

// openStatuses selects non-terminal visits.
const openStatuses = "('active', 'idle_warned')"

// CreateVisit inserts a new visit row.
func (s *Store) CreateVisit(ctx context.Context, v *visit.Visit) error {
	_, err := s.execWithRetry(ctx, `
		INSERT INTO visits (id, code, volunteer, started_at, last_activity_at, status, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Code, v.Volunteer,
		v.StartedAt.Format(timeFormat), v.LastActivityAt.Format(timeFormat),
		string(v.Status), nullableTime(v.ClosedAt),
	)
	if err != nil {
		return fmt.Errorf("create visit: %w", err)
	}
	return nil
}

// VisitByID loads one visit, or services.ErrNotFound.
func (s *Store) VisitByID(ctx context.Context, id string) (*visit.Visit, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `
		SELECT id, code, volunteer, started_at, last_activity_at, status, closed_at
		FROM visits WHERE id = ?`, id)
	v, err := scanVisit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("visit %s: %w", id, services.ErrNotFound)
	}
	return v, err
}

// ActiveVisitForVolunteer returns the volunteer's non-terminal visit, or
// services.ErrNotFound. The schema-level expectation is at most one.
func (s *Store) ActiveVisitForVolunteer(ctx context.Context, volunteer string) (*visit.Visit, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `
		SELECT id, code, volunteer, started_at, last_activity_at, status, closed_at
		FROM visits WHERE volunteer = ? AND status IN `+openStatuses+`
		ORDER BY started_at DESC LIMIT 1`, volunteer)
	v, err := scanVisit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no active visit for %s: %w", volunteer, services.ErrNotFound)
	}
	return v, err
}

// UpdateVisit persists status and activity changes.
func (s *Store) UpdateVisit(ctx context.Context, v *visit.Visit) error {
	res, err := s.execWithRetry(ctx, `
		UPDATE visits SET last_activity_at = ?, status = ?, closed_at = ?
		WHERE id = ?`,
		v.LastActivityAt.Format(timeFormat), string(v.Status), nullableTime(v.ClosedAt), v.ID,
	)
	if err != nil {
		return fmt.Errorf("update visit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update visit: rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("visit %s: %w", v.ID, services.ErrNotFound)
	}
	return nil
}

// OpenVisits returns every non-terminal visit, for the sweep.
func (s *Store) OpenVisits(ctx context.Context) ([]*visit.Visit, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `
		SELECT id, code, volunteer, started_at, last_activity_at, status, closed_at
		FROM visits WHERE status IN `+openStatuses+` ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("list open visits: %w", err)
	}
	defer rows.Close()

	var open []*visit.Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		open = append(open, v)
	}
	return open, rows.Err()
}

// NextVisitSequence returns the 1-based position the next visit started on
// the given local day (formatted 2006-01-02) will occupy.
func (s *Store) NextVisitSequence(ctx context.Context, day string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT COUNT(1) FROM visits WHERE substr(started_at, 1, 10) = ?", day,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count visits for %s: %w", day, err)
	}
	return count + 1, nil
}

// AppendItem inserts a logged item. Re-inserting the same deterministic id is
// a no-op, which is what makes client-ref retries idempotent.
func (s *Store) AppendItem(ctx context.Context, item *visit.Item) error {
	_, err := s.execWithRetry(ctx, `
		INSERT OR IGNORE INTO visit_items (id, visit_id, name, quantity, category, unit, barcode, source, logged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.VisitID, item.Name, item.Quantity,
		item.Category, item.Unit, item.Barcode, item.Source,
		item.LoggedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("append item: %w", err)
	}
	return nil
}

// ItemsForVisit returns the visit's items in insertion order.
func (s *Store) ItemsForVisit(ctx context.Context, visitID string) ([]visit.Item, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `
		SELECT id, visit_id, name, quantity, category, unit, barcode, source, logged_at
		FROM visit_items WHERE visit_id = ? ORDER BY rowid`, visitID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []visit.Item
	for rows.Next() {
		var (
			item     visit.Item
			loggedAt string
		)
		if err := rows.Scan(&item.ID, &item.VisitID, &item.Name, &item.Quantity,
			&item.Category, &item.Unit, &item.Barcode, &item.Source, &loggedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if item.LoggedAt, err = time.Parse(timeFormat, loggedAt); err != nil {
			return nil, fmt.Errorf("parse logged_at: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVisit(row rowScanner) (*visit.Visit, error) {
	var (
		v              visit.Visit
		started        string
		lastActivity   string
		status         string
		closedAt       sql.NullString
	)
	if err := row.Scan(&v.ID, &v.Code, &v.Volunteer, &started, &lastActivity, &status, &closedAt); err != nil {
		return nil, err
	}
	parsed, ok := visit.ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("visit %s has unknown status %q", v.ID, status)
	}
	v.Status = parsed

	var err error
	if v.StartedAt, err = time.Parse(timeFormat, started); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if v.LastActivityAt, err = time.Parse(timeFormat, lastActivity); err != nil {
		return nil, fmt.Errorf("parse last_activity_at: %w", err)
	}
	if closedAt.Valid {
		at, err := time.Parse(timeFormat, closedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse closed_at: %w", err)
		}
		v.ClosedAt = &at
	}
	return &v, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(timeFormat)
}
