// Package visit implements the volunteer visit session state machine: one
// active visit per volunteer, bounded by an inactivity timeout and a daily
// cutoff hour, closed early by explicit request.
package visit

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is a visit's lifecycle state. The closed states are terminal; a
// closed visit never accepts activity again.
type Status string

const (
	StatusActive           Status = "active"
	StatusIdleWarned       Status = "idle_warned"
	StatusClosedInactivity Status = "closed_inactivity"
	StatusClosedCutoff     Status = "closed_cutoff"
	StatusClosedManual     Status = "closed_manual"
)

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusActive:
		return StatusActive, true
	case StatusIdleWarned:
		return StatusIdleWarned, true
	case StatusClosedInactivity:
		return StatusClosedInactivity, true
	case StatusClosedCutoff:
		return StatusClosedCutoff, true
	case StatusClosedManual:
		return StatusClosedManual, true
	default:
		return "", false
	}
}

// Terminal reports whether the status is one of the closed states.
func (s Status) Terminal() bool {
	switch s {
	case StatusClosedInactivity, StatusClosedCutoff, StatusClosedManual:
		return true
	default:
		return false
	}
}

// Visit is one bounded working session for a volunteer.
type Visit struct {
	ID             string
	Code           string
	Volunteer      string
	StartedAt      time.Time
	LastActivityAt time.Time
	Status         Status
	ClosedAt       *time.Time
}

// Item is one confirmed donation attached to a visit.
type Item struct {
	ID       string
	VisitID  string
	Name     string
	Quantity int
	Category string
	Unit     string
	Barcode  string
	Source   string
	LoggedAt time.Time
}

// ingestNamespace seeds deterministic item ids so a retried submission of the
// same client reference lands on the same row.
var ingestNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("carecount/item"))

// IngestID derives a deterministic item id from the visit and the caller's
// dedupe reference. An empty reference gets a random id, so only callers that
// send one get idempotent retries.
func IngestID(visitID, clientRef string) string {
	clientRef = strings.TrimSpace(clientRef)
	if clientRef == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(ingestNamespace, []byte(visitID+"|"+clientRef)).String()
}

func newVisitID() string { return uuid.NewString() }

// NewCode builds a human-readable visit code: a daily sequence number, the
// local date, and a short random suffix.
func NewCode(seq int64, day time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("V-%d-%s-%s", seq, day.Format("20060102"), suffix)
}
