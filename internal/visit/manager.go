package visit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"carecount/internal/audit"
	"carecount/internal/logging"
	"carecount/internal/services"
)

// maxItemNameRunes bounds stored item names; longer entries are truncated.
const maxItemNameRunes = 120

// Sentinel failures for visit operations.
var (
	// ErrVisitClosed marks activity attempted on a terminal visit.
	ErrVisitClosed = fmt.Errorf("visit closed: %w", services.ErrValidation)
	// ErrVisitActive marks a start attempt while a visit is already open.
	ErrVisitActive = fmt.Errorf("visit already active: %w", services.ErrValidation)
)

// Store is the persistence surface the manager drives. Implemented by the
// SQLite store. Lookups that match nothing return services.ErrNotFound.
type Store interface {
	CreateVisit(ctx context.Context, v *Visit) error
	VisitByID(ctx context.Context, id string) (*Visit, error)
	ActiveVisitForVolunteer(ctx context.Context, volunteer string) (*Visit, error)
	UpdateVisit(ctx context.Context, v *Visit) error
	OpenVisits(ctx context.Context) ([]*Visit, error)
	NextVisitSequence(ctx context.Context, day string) (int64, error)
	AppendItem(ctx context.Context, item *Item) error
	ItemsForVisit(ctx context.Context, visitID string) ([]Item, error)
}

// Manager serializes visit transitions per volunteer and enforces the state
// machine rules.
type Manager struct {
	store    Store
	clock    Clock
	recorder audit.Recorder
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager builds a Manager. A nil recorder or logger falls back to no-ops.
func NewManager(store Store, clock Clock, recorder audit.Recorder, logger *slog.Logger) *Manager {
	if recorder == nil {
		recorder = audit.Nop()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		store:    store,
		clock:    clock,
		recorder: recorder,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing one volunteer's transitions. Locks
// are never released from the map; the volunteer population is small.
func (m *Manager) lockFor(volunteer string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[volunteer]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[volunteer] = lock
	}
	return lock
}

// Start opens a new visit for the volunteer. Fails with ErrVisitActive while
// a non-terminal visit exists; a stale open visit is swept first so a
// volunteer returning the next morning is not blocked by yesterday's session.
func (m *Manager) Start(ctx context.Context, volunteer string) (*Visit, error) {
	lock := m.lockFor(volunteer)
	lock.Lock()
	defer lock.Unlock()

	now := m.clock.Now()
	existing, err := m.store.ActiveVisitForVolunteer(ctx, volunteer)
	if err != nil && !errors.Is(err, services.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		if _, err := m.applyEvaluation(ctx, existing, now); err != nil {
			return nil, err
		}
		if !existing.Status.Terminal() {
			return nil, fmt.Errorf("%w: volunteer %s has visit %s", ErrVisitActive, volunteer, existing.ID)
		}
	}

	seq, err := m.store.NextVisitSequence(ctx, now.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	v := &Visit{
		ID:             newVisitID(),
		Code:           NewCode(seq, now),
		Volunteer:      volunteer,
		StartedAt:      now,
		LastActivityAt: now,
		Status:         StatusActive,
	}
	if err := m.store.CreateVisit(ctx, v); err != nil {
		return nil, err
	}
	m.recordTransition(ctx, v, "", StatusActive, "start")
	m.logger.LogAttrs(ctx, slog.LevelInfo, "visit started",
		logging.String(logging.FieldVisitID, v.ID),
		logging.String(logging.FieldVolunteer, volunteer),
		logging.String("code", v.Code))
	return v, nil
}

// Heartbeat refreshes a visit's activity. Valid from active and idle_warned;
// an idle_warned visit returns to active. Fails with ErrVisitClosed once the
// visit is terminal, including when this very call discovers the timeout.
func (m *Manager) Heartbeat(ctx context.Context, visitID string) (*Visit, error) {
	v, err := m.store.VisitByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	lock := m.lockFor(v.Volunteer)
	lock.Lock()
	defer lock.Unlock()
	return m.heartbeatLocked(ctx, visitID)
}

// heartbeatLocked does the Heartbeat work for a caller that already holds the
// volunteer's lock. LogItem uses it so the visit cannot be closed between the
// activity refresh and the item append.
func (m *Manager) heartbeatLocked(ctx context.Context, visitID string) (*Visit, error) {
	// Reload under the lock; a racing sweep may have closed it.
	v, err := m.store.VisitByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	now := m.clock.Now()
	if _, err := m.applyEvaluation(ctx, v, now); err != nil {
		return nil, err
	}
	if v.Status.Terminal() {
		return nil, fmt.Errorf("%w: visit %s is %s", ErrVisitClosed, v.ID, v.Status)
	}

	from := v.Status
	v.LastActivityAt = now
	v.Status = StatusActive
	if err := m.store.UpdateVisit(ctx, v); err != nil {
		return nil, err
	}
	if from == StatusIdleWarned {
		m.recordTransition(ctx, v, from, StatusActive, "heartbeat")
	}
	return v, nil
}

// LogItem attaches a confirmed item to the visit and refreshes activity.
// The item id is derived from clientRef when given, making retries idempotent.
func (m *Manager) LogItem(ctx context.Context, visitID string, item Item, clientRef string) (*Visit, error) {
	v, err := m.store.VisitByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	lock := m.lockFor(v.Volunteer)
	lock.Lock()
	defer lock.Unlock()

	v, err = m.heartbeatLocked(ctx, visitID)
	if err != nil {
		return nil, err
	}
	item.ID = IngestID(visitID, clientRef)
	item.VisitID = visitID
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return nil, fmt.Errorf("%w: item name is required", services.ErrValidation)
	}
	if runes := []rune(item.Name); len(runes) > maxItemNameRunes {
		item.Name = string(runes[:maxItemNameRunes])
	}
	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	if item.LoggedAt.IsZero() {
		item.LoggedAt = m.clock.Now()
	}
	if err := m.store.AppendItem(ctx, &item); err != nil {
		return nil, err
	}
	m.recorder.Record(ctx, audit.Event{
		Type:      audit.EventItemLogged,
		VisitID:   v.ID,
		Volunteer: v.Volunteer,
		At:        item.LoggedAt,
		Details: map[string]any{
			"item":     item.Name,
			"quantity": item.Quantity,
			"source":   item.Source,
		},
	})
	return v, nil
}

// Close ends a visit manually. Valid from any non-terminal state.
func (m *Manager) Close(ctx context.Context, visitID string) (*Visit, error) {
	v, err := m.store.VisitByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	lock := m.lockFor(v.Volunteer)
	lock.Lock()
	defer lock.Unlock()

	v, err = m.store.VisitByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if v.Status.Terminal() {
		return nil, fmt.Errorf("%w: visit %s is %s", ErrVisitClosed, v.ID, v.Status)
	}
	now := m.clock.Now()
	from := v.Status
	v.Status = StatusClosedManual
	v.ClosedAt = &now
	if err := m.store.UpdateVisit(ctx, v); err != nil {
		return nil, err
	}
	m.recordTransition(ctx, v, from, StatusClosedManual, "manual close")
	return v, nil
}

// Lookup returns the visit after applying any timeout or cutoff that has
// elapsed since it was last touched.
func (m *Manager) Lookup(ctx context.Context, visitID string) (*Visit, error) {
	v, err := m.store.VisitByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	lock := m.lockFor(v.Volunteer)
	lock.Lock()
	defer lock.Unlock()

	v, err = m.store.VisitByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if _, err := m.applyEvaluation(ctx, v, m.clock.Now()); err != nil {
		return nil, err
	}
	return v, nil
}

// Active returns the volunteer's current non-terminal visit, or
// services.ErrNotFound.
func (m *Manager) Active(ctx context.Context, volunteer string) (*Visit, error) {
	lock := m.lockFor(volunteer)
	lock.Lock()
	defer lock.Unlock()

	v, err := m.store.ActiveVisitForVolunteer(ctx, volunteer)
	if err != nil {
		return nil, err
	}
	if _, err := m.applyEvaluation(ctx, v, m.clock.Now()); err != nil {
		return nil, err
	}
	if v.Status.Terminal() {
		return nil, fmt.Errorf("no active visit for %s: %w", volunteer, services.ErrNotFound)
	}
	return v, nil
}

// Now returns the current time in the session timezone.
func (m *Manager) Now() time.Time {
	return m.clock.Now()
}

// Items returns the visit's logged items in insertion order.
func (m *Manager) Items(ctx context.Context, visitID string) ([]Item, error) {
	if _, err := m.store.VisitByID(ctx, visitID); err != nil {
		return nil, err
	}
	return m.store.ItemsForVisit(ctx, visitID)
}

// Sweep evaluates every open visit and persists due transitions. Returns how
// many visits were closed. Run periodically by the daemon.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	open, err := m.store.OpenVisits(ctx)
	if err != nil {
		return 0, err
	}
	now := m.clock.Now()
	closed := 0
	for _, v := range open {
		lock := m.lockFor(v.Volunteer)
		lock.Lock()
		fresh, err := m.store.VisitByID(ctx, v.ID)
		if err == nil {
			var changed bool
			changed, err = m.applyEvaluation(ctx, fresh, now)
			if err == nil && changed && fresh.Status.Terminal() {
				closed++
			}
		}
		lock.Unlock()
		if err != nil && !errors.Is(err, services.ErrNotFound) {
			return closed, err
		}
	}
	return closed, nil
}

// applyEvaluation persists the status Evaluate says the visit should hold.
// Mutates v in place and reports whether anything changed.
func (m *Manager) applyEvaluation(ctx context.Context, v *Visit, now time.Time) (bool, error) {
	next := m.clock.Evaluate(*v, now)
	if next == v.Status {
		return false, nil
	}
	from := v.Status
	v.Status = next
	if next.Terminal() {
		closedAt := now
		v.ClosedAt = &closedAt
	}
	if err := m.store.UpdateVisit(ctx, v); err != nil {
		return false, err
	}
	m.recordTransition(ctx, v, from, next, transitionReason(next))
	return true, nil
}

func transitionReason(status Status) string {
	switch status {
	case StatusIdleWarned:
		return "inactivity warning"
	case StatusClosedInactivity:
		return "inactivity timeout"
	case StatusClosedCutoff:
		return "daily cutoff"
	case StatusClosedManual:
		return "manual close"
	default:
		return "activity"
	}
}

func (m *Manager) recordTransition(ctx context.Context, v *Visit, from, to Status, reason string) {
	m.recorder.Record(ctx, audit.Event{
		Type:      audit.EventVisitTransition,
		VisitID:   v.ID,
		Volunteer: v.Volunteer,
		At:        m.clock.Now(),
		Details: map[string]any{
			"from":   string(from),
			"to":     string(to),
			"reason": reason,
		},
	})
	m.logger.LogAttrs(ctx, slog.LevelInfo, "visit transition",
		logging.String(logging.FieldVisitID, v.ID),
		logging.String("from", string(from)),
		logging.String("to", string(to)),
		logging.String("reason", reason))
}
