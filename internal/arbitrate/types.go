package arbitrate

import (
	"strings"

	"carecount/internal/extract"
)

// Candidate is a normalized item-name guess with confidence and source.
type Candidate struct {
	Name       string
	Confidence float64
	Source     extract.Source
}

// Status classifies the outcome of one identification attempt.
type Status string

const (
	// StatusResolved means a single candidate won cleanly.
	StatusResolved Status = "resolved"
	// StatusAmbiguous means the human must pick between close alternates.
	StatusAmbiguous Status = "ambiguous"
	// StatusUnresolved means no candidate was acceptable; prompt manual entry.
	StatusUnresolved Status = "unresolved"
)

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusResolved:
		return StatusResolved, true
	case StatusAmbiguous:
		return StatusAmbiguous, true
	case StatusUnresolved:
		return StatusUnresolved, true
	default:
		return "", false
	}
}

// Resolution is the arbitrated outcome of one identification attempt.
// Immutable once returned. Chosen is nil when Status is unresolved.
// Alternates lists every surviving candidate ordered by descending
// confidence, the chosen one first, so the presentation layer can offer the
// full pick list when the human breaks a tie.
type Resolution struct {
	Chosen     *Candidate
	Alternates []Candidate
	Status     Status
}
