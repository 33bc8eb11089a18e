package visit

import (
	"fmt"
	"time"
)

// warnFraction of the inactivity limit elapses before a visit is flagged
// idle_warned, giving the volunteer a window to keep it alive.
const warnFraction = 0.8

// Clock carries the session timing rules: local timezone, daily cutoff hour,
// and inactivity limit. NowFunc is injectable for tests; the zero value falls
// back to time.Now.
type Clock struct {
	Location        *time.Location
	CutoffHour      int
	InactivityLimit time.Duration
	NowFunc         func() time.Time
}

// NewClock resolves the timezone and builds a Clock.
func NewClock(timezone string, cutoffHour int, inactivity time.Duration) (Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Clock{}, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return Clock{
		Location:        loc,
		CutoffHour:      cutoffHour,
		InactivityLimit: inactivity,
	}, nil
}

// Now returns the current time in the clock's location.
func (c Clock) Now() time.Time {
	now := time.Now()
	if c.NowFunc != nil {
		now = c.NowFunc()
	}
	if c.Location != nil {
		now = now.In(c.Location)
	}
	return now
}

// pastCutoff reports whether now sits at or past the cutoff hour of its own
// local day. The cutoff ends every open visit, no matter when it started.
func (c Clock) pastCutoff(now time.Time) bool {
	local := now
	if c.Location != nil {
		local = now.In(c.Location)
	}
	cutoff := time.Date(local.Year(), local.Month(), local.Day(), c.CutoffHour, 0, 0, 0, local.Location())
	return !local.Before(cutoff)
}

// Evaluate returns the status the visit should hold at now. Pure: it reads
// the visit and the clock rules, touching no state. Terminal statuses are
// returned unchanged. Cutoff takes precedence over inactivity when both have
// been crossed.
func (c Clock) Evaluate(v Visit, now time.Time) Status {
	if v.Status.Terminal() {
		return v.Status
	}
	if c.pastCutoff(now) {
		return StatusClosedCutoff
	}
	if c.InactivityLimit <= 0 {
		return v.Status
	}
	idle := now.Sub(v.LastActivityAt)
	if idle >= c.InactivityLimit {
		return StatusClosedInactivity
	}
	if float64(idle) >= warnFraction*float64(c.InactivityLimit) {
		return StatusIdleWarned
	}
	return StatusActive
}
