package visit_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"carecount/internal/services"
	"carecount/internal/visit"
)

// memStore is an in-memory visit.Store for exercising the manager without a
// database.
type memStore struct {
	mu     sync.Mutex
	visits map[string]*visit.Visit
	items  map[string][]visit.Item
}

func newMemStore() *memStore {
	return &memStore{
		visits: make(map[string]*visit.Visit),
		items:  make(map[string][]visit.Item),
	}
}

func (s *memStore) CreateVisit(_ context.Context, v *visit.Visit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *v
	s.visits[v.ID] = &clone
	return nil
}

func (s *memStore) VisitByID(_ context.Context, id string) (*visit.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visits[id]
	if !ok {
		return nil, fmt.Errorf("visit %s: %w", id, services.ErrNotFound)
	}
	clone := *v
	return &clone, nil
}

func (s *memStore) ActiveVisitForVolunteer(_ context.Context, volunteer string) (*visit.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.visits {
		if v.Volunteer == volunteer && !v.Status.Terminal() {
			clone := *v
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("no active visit for %s: %w", volunteer, services.ErrNotFound)
}

func (s *memStore) UpdateVisit(_ context.Context, v *visit.Visit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.visits[v.ID]; !ok {
		return fmt.Errorf("visit %s: %w", v.ID, services.ErrNotFound)
	}
	clone := *v
	s.visits[v.ID] = &clone
	return nil
}

func (s *memStore) OpenVisits(context.Context) ([]*visit.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var open []*visit.Visit
	for _, v := range s.visits {
		if !v.Status.Terminal() {
			clone := *v
			open = append(open, &clone)
		}
	}
	return open, nil
}

func (s *memStore) NextVisitSequence(_ context.Context, day string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, v := range s.visits {
		if v.StartedAt.Format("2006-01-02") == day {
			count++
		}
	}
	return count + 1, nil
}

func (s *memStore) AppendItem(_ context.Context, item *visit.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items[item.VisitID] {
		if existing.ID == item.ID {
			return nil
		}
	}
	s.items[item.VisitID] = append(s.items[item.VisitID], *item)
	return nil
}

func (s *memStore) ItemsForVisit(_ context.Context, visitID string) ([]visit.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]visit.Item(nil), s.items[visitID]...), nil
}

// fakeNow lets tests move the manager's clock by hand.
type fakeNow struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeNow) get() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeNow) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fakeNow) set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

func newTestManager(t *testing.T) (*visit.Manager, *memStore, *fakeNow) {
	t.Helper()
	now := &fakeNow{now: time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC)}
	clock := visit.Clock{
		Location:        time.UTC,
		CutoffHour:      20,
		InactivityLimit: 30 * time.Minute,
		NowFunc:         now.get,
	}
	store := newMemStore()
	return visit.NewManager(store, clock, nil, nil), store, now
}

func TestStartAssignsCodeAndActiveStatus(t *testing.T) {
	manager, _, _ := newTestManager(t)
	v, err := manager.Start(context.Background(), "ada@example.org")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if v.Status != visit.StatusActive {
		t.Fatalf("status = %s, want active", v.Status)
	}
	if !strings.HasPrefix(v.Code, "V-1-20260305-") {
		t.Fatalf("code = %q, want V-1-20260305- prefix", v.Code)
	}
	if !v.StartedAt.Equal(v.LastActivityAt) {
		t.Fatal("started_at and last_activity_at should match at start")
	}
}

func TestStartRejectsSecondActiveVisit(t *testing.T) {
	manager, _, _ := newTestManager(t)
	if _, err := manager.Start(context.Background(), "ada@example.org"); err != nil {
		t.Fatalf("first Start returned error: %v", err)
	}
	_, err := manager.Start(context.Background(), "ada@example.org")
	if !errors.Is(err, visit.ErrVisitActive) {
		t.Fatalf("error = %v, want ErrVisitActive", err)
	}
}

func TestStartAfterStaleVisitClosesItFirst(t *testing.T) {
	manager, store, now := newTestManager(t)
	stale, err := manager.Start(context.Background(), "ada@example.org")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	now.advance(2 * time.Hour)
	fresh, err := manager.Start(context.Background(), "ada@example.org")
	if err != nil {
		t.Fatalf("second Start returned error: %v", err)
	}
	if fresh.ID == stale.ID {
		t.Fatal("expected a new visit")
	}
	closed, err := store.VisitByID(context.Background(), stale.ID)
	if err != nil {
		t.Fatalf("VisitByID: %v", err)
	}
	if closed.Status != visit.StatusClosedInactivity {
		t.Fatalf("stale visit status = %s, want closed_inactivity", closed.Status)
	}
	if !strings.HasPrefix(fresh.Code, "V-2-20260305-") {
		t.Fatalf("code = %q, want daily sequence 2", fresh.Code)
	}
}

func TestManualCloseRejectsSubsequentHeartbeat(t *testing.T) {
	manager, _, _ := newTestManager(t)
	v, err := manager.Start(context.Background(), "ada@example.org")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	closed, err := manager.Close(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if closed.Status != visit.StatusClosedManual {
		t.Fatalf("status = %s, want closed_manual", closed.Status)
	}
	if closed.ClosedAt == nil {
		t.Fatal("closed_at not set")
	}
	if _, err := manager.Heartbeat(context.Background(), v.ID); !errors.Is(err, visit.ErrVisitClosed) {
		t.Fatalf("heartbeat error = %v, want ErrVisitClosed", err)
	}
}

func TestHeartbeatRecoversIdleWarnedVisit(t *testing.T) {
	manager, _, now := newTestManager(t)
	v, err := manager.Start(context.Background(), "ada@example.org")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	now.advance(25 * time.Minute)
	refreshed, err := manager.Heartbeat(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Heartbeat returned error: %v", err)
	}
	if refreshed.Status != visit.StatusActive {
		t.Fatalf("status = %s, want active after heartbeat", refreshed.Status)
	}
	if !refreshed.LastActivityAt.Equal(now.get()) {
		t.Fatal("last_activity_at not refreshed")
	}
}

func TestHeartbeatAfterTimeoutFailsClosed(t *testing.T) {
	manager, _, now := newTestManager(t)
	v, err := manager.Start(context.Background(), "ada@example.org")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	now.advance(31 * time.Minute)
	_, err = manager.Heartbeat(context.Background(), v.ID)
	if !errors.Is(err, visit.ErrVisitClosed) {
		t.Fatalf("error = %v, want ErrVisitClosed", err)
	}
	closed, err := manager.Lookup(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if closed.Status != visit.StatusClosedInactivity {
		t.Fatalf("status = %s, want closed_inactivity", closed.Status)
	}
}

func TestLookupAppliesCutoff(t *testing.T) {
	manager, _, now := newTestManager(t)
	now.set(time.Date(2026, time.March, 5, 19, 30, 0, 0, time.UTC))
	v, err := manager.Start(context.Background(), "ada@example.org")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	now.set(time.Date(2026, time.March, 5, 19, 59, 0, 0, time.UTC))
	if _, err := manager.Heartbeat(context.Background(), v.ID); err != nil {
		t.Fatalf("Heartbeat returned error: %v", err)
	}
	now.set(time.Date(2026, time.March, 5, 20, 0, 1, 0, time.UTC))
	got, err := manager.Lookup(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if got.Status != visit.StatusClosedCutoff {
		t.Fatalf("status = %s, want closed_cutoff despite recent activity", got.Status)
	}
}

func TestLogItemAppendsAndRefreshesActivity(t *testing.T) {
	manager, _, now := newTestManager(t)
	v, err := manager.Start(context.Background(), "ada@example.org")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	now.advance(5 * time.Minute)
	if _, err := manager.LogItem(context.Background(), v.ID, visit.Item{Name: "cereal", Source: "ocr"}, ""); err != nil {
		t.Fatalf("LogItem returned error: %v", err)
	}
	items, err := manager.Items(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Items returned error: %v", err)
	}
	if len(items) != 1 || items[0].Name != "cereal" {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Quantity != 1 {
		t.Fatalf("quantity = %d, want default 1", items[0].Quantity)
	}
	refreshed, err := manager.Lookup(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if !refreshed.LastActivityAt.Equal(now.get()) {
		t.Fatal("logging an item should refresh last_activity_at")
	}
}

func TestLogItemWithClientRefIsIdempotent(t *testing.T) {
	manager, _, _ := newTestManager(t)
	v, err := manager.Start(context.Background(), "ada@example.org")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	item := visit.Item{Name: "soup", Quantity: 2}
	if _, err := manager.LogItem(context.Background(), v.ID, item, "upload-42"); err != nil {
		t.Fatalf("first LogItem returned error: %v", err)
	}
	if _, err := manager.LogItem(context.Background(), v.ID, item, "upload-42"); err != nil {
		t.Fatalf("second LogItem returned error: %v", err)
	}
	items, err := manager.Items(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Items returned error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want retried submission deduplicated to 1", len(items))
	}
}

func TestLogItemOnClosedVisitFails(t *testing.T) {
	manager, _, _ := newTestManager(t)
	v, err := manager.Start(context.Background(), "ada@example.org")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if _, err := manager.Close(context.Background(), v.ID); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	_, err = manager.LogItem(context.Background(), v.ID, visit.Item{Name: "rice"}, "")
	if !errors.Is(err, visit.ErrVisitClosed) {
		t.Fatalf("error = %v, want ErrVisitClosed", err)
	}
}

// appendHookStore lets a test run code at the moment an item append starts.
type appendHookStore struct {
	*memStore
	hook func()
}

func (s *appendHookStore) AppendItem(ctx context.Context, item *visit.Item) error {
	if s.hook != nil {
		s.hook()
	}
	return s.memStore.AppendItem(ctx, item)
}

func TestLogItemHoldsOutConcurrentClose(t *testing.T) {
	now := &fakeNow{now: time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC)}
	clock := visit.Clock{
		Location:        time.UTC,
		CutoffHour:      20,
		InactivityLimit: 30 * time.Minute,
		NowFunc:         now.get,
	}
	store := &appendHookStore{memStore: newMemStore()}
	manager := visit.NewManager(store, clock, nil, nil)

	v, err := manager.Start(context.Background(), "ada@example.org")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	closeDone := make(chan error, 1)
	store.hook = func() {
		go func() {
			_, err := manager.Close(context.Background(), v.ID)
			closeDone <- err
		}()
		// The close must stall on the volunteer's lock until the append
		// lands; nobody may flip the visit terminal underneath us.
		time.Sleep(50 * time.Millisecond)
		mid, err := store.memStore.VisitByID(context.Background(), v.ID)
		if err != nil {
			t.Fatalf("VisitByID: %v", err)
		}
		if mid.Status.Terminal() {
			t.Fatalf("visit closed to %s while an item append was in flight", mid.Status)
		}
	}
	if _, err := manager.LogItem(context.Background(), v.ID, visit.Item{Name: "cereal"}, ""); err != nil {
		t.Fatalf("LogItem returned error: %v", err)
	}
	if err := <-closeDone; err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	items, err := manager.Items(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("Items returned error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want the in-flight append to land before the close", len(items))
	}
	closed, err := store.memStore.VisitByID(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("VisitByID: %v", err)
	}
	if closed.Status != visit.StatusClosedManual {
		t.Fatalf("status = %s, want closed_manual once the append released the lock", closed.Status)
	}
}

func TestSweepClosesTimedOutVisits(t *testing.T) {
	manager, _, now := newTestManager(t)
	a, err := manager.Start(context.Background(), "ada@example.org")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if _, err := manager.Start(context.Background(), "grace@example.org"); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	now.advance(20 * time.Minute)
	// Ada stays busy; Grace walks away.
	if _, err := manager.Heartbeat(context.Background(), a.ID); err != nil {
		t.Fatalf("Heartbeat returned error: %v", err)
	}
	now.advance(15 * time.Minute)

	closed, err := manager.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if closed != 1 {
		t.Fatalf("Sweep closed %d visits, want 1", closed)
	}
	if _, err := manager.Active(context.Background(), "grace@example.org"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("Active(grace) error = %v, want not found", err)
	}
	kept, err := manager.Active(context.Background(), "ada@example.org")
	if err != nil {
		t.Fatalf("Active(ada) returned error: %v", err)
	}
	if kept.ID != a.ID {
		t.Fatal("ada's visit should survive the sweep")
	}
}

func TestLookupUnknownVisitIsNotFound(t *testing.T) {
	manager, _, _ := newTestManager(t)
	_, err := manager.Lookup(context.Background(), "missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}
