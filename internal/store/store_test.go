package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"carecount/internal/audit"
	"carecount/internal/services"
	"carecount/internal/store"
	"carecount/internal/visit"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenPath(filepath.Join(t.TempDir(), "carecount.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleVisit(id, volunteer string, started time.Time) *visit.Visit {
	return &visit.Visit{
		ID:             id,
		Code:           "V-1-20260305-abc123",
		Volunteer:      volunteer,
		StartedAt:      started,
		LastActivityAt: started,
		Status:         visit.StatusActive,
	}
}

var startedAt = time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC)

func TestVisitRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	v := sampleVisit("visit-1", "ada@example.org", startedAt)
	if err := s.CreateVisit(ctx, v); err != nil {
		t.Fatalf("CreateVisit: %v", err)
	}

	got, err := s.VisitByID(ctx, "visit-1")
	if err != nil {
		t.Fatalf("VisitByID: %v", err)
	}
	if got.Code != v.Code || got.Volunteer != v.Volunteer || got.Status != visit.StatusActive {
		t.Fatalf("got %+v", got)
	}
	if !got.StartedAt.Equal(startedAt) {
		t.Fatalf("started_at = %v, want %v", got.StartedAt, startedAt)
	}
	if got.ClosedAt != nil {
		t.Fatal("closed_at should be nil for an open visit")
	}
}

func TestVisitByIDNotFound(t *testing.T) {
	s := openStore(t)
	_, err := s.VisitByID(context.Background(), "missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestActiveVisitForVolunteer(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if err := s.CreateVisit(ctx, sampleVisit("visit-1", "ada@example.org", startedAt)); err != nil {
		t.Fatalf("CreateVisit: %v", err)
	}
	closed := sampleVisit("visit-0", "grace@example.org", startedAt.Add(-2*time.Hour))
	closed.Status = visit.StatusClosedManual
	closedAt := startedAt.Add(-time.Hour)
	closed.ClosedAt = &closedAt
	if err := s.CreateVisit(ctx, closed); err != nil {
		t.Fatalf("CreateVisit: %v", err)
	}

	got, err := s.ActiveVisitForVolunteer(ctx, "ada@example.org")
	if err != nil {
		t.Fatalf("ActiveVisitForVolunteer: %v", err)
	}
	if got.ID != "visit-1" {
		t.Fatalf("got visit %s", got.ID)
	}
	if _, err := s.ActiveVisitForVolunteer(ctx, "grace@example.org"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("error = %v, want not found for closed-only volunteer", err)
	}
}

func TestUpdateVisitPersistsClose(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	v := sampleVisit("visit-1", "ada@example.org", startedAt)
	if err := s.CreateVisit(ctx, v); err != nil {
		t.Fatalf("CreateVisit: %v", err)
	}
	closedAt := startedAt.Add(time.Hour)
	v.Status = visit.StatusClosedCutoff
	v.ClosedAt = &closedAt
	v.LastActivityAt = closedAt
	if err := s.UpdateVisit(ctx, v); err != nil {
		t.Fatalf("UpdateVisit: %v", err)
	}

	got, err := s.VisitByID(ctx, "visit-1")
	if err != nil {
		t.Fatalf("VisitByID: %v", err)
	}
	if got.Status != visit.StatusClosedCutoff {
		t.Fatalf("status = %s", got.Status)
	}
	if got.ClosedAt == nil || !got.ClosedAt.Equal(closedAt) {
		t.Fatalf("closed_at = %v, want %v", got.ClosedAt, closedAt)
	}

	open, err := s.OpenVisits(ctx)
	if err != nil {
		t.Fatalf("OpenVisits: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("open visits = %d, want 0", len(open))
	}
}

func TestUpdateMissingVisitIsNotFound(t *testing.T) {
	s := openStore(t)
	err := s.UpdateVisit(context.Background(), sampleVisit("ghost", "ada@example.org", startedAt))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestNextVisitSequenceCountsLocalDay(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	seq, err := s.NextVisitSequence(ctx, "2026-03-05")
	if err != nil {
		t.Fatalf("NextVisitSequence: %v", err)
	}
	if seq != 1 {
		t.Fatalf("seq = %d, want 1 on empty day", seq)
	}

	if err := s.CreateVisit(ctx, sampleVisit("visit-1", "ada@example.org", startedAt)); err != nil {
		t.Fatalf("CreateVisit: %v", err)
	}
	if err := s.CreateVisit(ctx, sampleVisit("visit-2", "grace@example.org", startedAt.Add(time.Hour))); err != nil {
		t.Fatalf("CreateVisit: %v", err)
	}
	yesterday := sampleVisit("visit-3", "ada@example.org", startedAt.AddDate(0, 0, -1))
	if err := s.CreateVisit(ctx, yesterday); err != nil {
		t.Fatalf("CreateVisit: %v", err)
	}

	seq, err = s.NextVisitSequence(ctx, "2026-03-05")
	if err != nil {
		t.Fatalf("NextVisitSequence: %v", err)
	}
	if seq != 3 {
		t.Fatalf("seq = %d, want 3 (yesterday's visit excluded)", seq)
	}
}

func TestAppendItemIsIdempotentPerID(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if err := s.CreateVisit(ctx, sampleVisit("visit-1", "ada@example.org", startedAt)); err != nil {
		t.Fatalf("CreateVisit: %v", err)
	}
	item := &visit.Item{
		ID:       "item-1",
		VisitID:  "visit-1",
		Name:     "peanut butter",
		Quantity: 2,
		Category: "food",
		Unit:     "jar",
		Source:   "ocr",
		LoggedAt: startedAt.Add(5 * time.Minute),
	}
	if err := s.AppendItem(ctx, item); err != nil {
		t.Fatalf("AppendItem: %v", err)
	}
	if err := s.AppendItem(ctx, item); err != nil {
		t.Fatalf("AppendItem retry: %v", err)
	}

	items, err := s.ItemsForVisit(ctx, "visit-1")
	if err != nil {
		t.Fatalf("ItemsForVisit: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1 after duplicate insert", len(items))
	}
	if items[0].Name != "peanut butter" || items[0].Quantity != 2 || items[0].Unit != "jar" {
		t.Fatalf("item = %+v", items[0])
	}
}

func TestAuditEventRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	event := audit.Event{
		Type:      audit.EventVisitTransition,
		VisitID:   "visit-1",
		Volunteer: "ada@example.org",
		At:        startedAt,
		Details:   map[string]any{"from": "active", "to": "closed_manual", "reason": "manual close"},
	}
	if err := s.AppendAuditEvent(ctx, event); err != nil {
		t.Fatalf("AppendAuditEvent: %v", err)
	}

	events, err := s.AuditEventsForVisit(ctx, "visit-1")
	if err != nil {
		t.Fatalf("AuditEventsForVisit: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].Type != audit.EventVisitTransition {
		t.Fatalf("type = %s", events[0].Type)
	}
	if events[0].Details["to"] != "closed_manual" {
		t.Fatalf("details = %+v", events[0].Details)
	}
}

func TestImpactForDayAggregates(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if err := s.CreateVisit(ctx, sampleVisit("visit-1", "ada@example.org", startedAt)); err != nil {
		t.Fatalf("CreateVisit: %v", err)
	}
	if err := s.CreateVisit(ctx, sampleVisit("visit-2", "grace@example.org", startedAt.Add(time.Hour))); err != nil {
		t.Fatalf("CreateVisit: %v", err)
	}
	for i, item := range []visit.Item{
		{ID: "i1", VisitID: "visit-1", Name: "soup", Quantity: 3},
		{ID: "i2", VisitID: "visit-1", Name: "cereal", Quantity: 1},
		{ID: "i3", VisitID: "visit-2", Name: "soup", Quantity: 2},
	} {
		item.LoggedAt = startedAt.Add(time.Duration(i) * time.Minute)
		if err := s.AppendItem(ctx, &item); err != nil {
			t.Fatalf("AppendItem: %v", err)
		}
	}

	summary, err := s.ImpactForDay(ctx, "2026-03-05")
	if err != nil {
		t.Fatalf("ImpactForDay: %v", err)
	}
	if summary.Visits != 2 || summary.Volunteers != 2 {
		t.Fatalf("visits/volunteers = %d/%d, want 2/2", summary.Visits, summary.Volunteers)
	}
	if summary.Items != 3 || summary.TotalQuantity != 6 {
		t.Fatalf("items/quantity = %d/%d, want 3/6", summary.Items, summary.TotalQuantity)
	}
	if len(summary.TopItems) != 2 || summary.TopItems[0].Name != "soup" || summary.TopItems[0].Quantity != 5 {
		t.Fatalf("top items = %+v", summary.TopItems)
	}
}
