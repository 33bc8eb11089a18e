package ipc

import (
	"time"

	"carecount/internal/arbitrate"
	"carecount/internal/store"
	"carecount/internal/visit"
)

// VisitSummary is the wire representation of a visit.
type VisitSummary struct {
	ID             string     `json:"id"`
	Code           string     `json:"code"`
	Volunteer      string     `json:"volunteer"`
	StartedAt      time.Time  `json:"started_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	Status         string     `json:"status"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
}

func summarizeVisit(v *visit.Visit) VisitSummary {
	return VisitSummary{
		ID:             v.ID,
		Code:           v.Code,
		Volunteer:      v.Volunteer,
		StartedAt:      v.StartedAt,
		LastActivityAt: v.LastActivityAt,
		Status:         string(v.Status),
		ClosedAt:       v.ClosedAt,
	}
}

// ItemSummary is the wire representation of a logged item.
type ItemSummary struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Quantity int       `json:"quantity"`
	Category string    `json:"category,omitempty"`
	Unit     string    `json:"unit,omitempty"`
	Barcode  string    `json:"barcode,omitempty"`
	Source   string    `json:"source,omitempty"`
	LoggedAt time.Time `json:"logged_at"`
}

func summarizeItem(item visit.Item) ItemSummary {
	return ItemSummary{
		ID:       item.ID,
		Name:     item.Name,
		Quantity: item.Quantity,
		Category: item.Category,
		Unit:     item.Unit,
		Barcode:  item.Barcode,
		Source:   item.Source,
		LoggedAt: item.LoggedAt,
	}
}

// CandidateSummary is the wire representation of an arbitration candidate.
type CandidateSummary struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// ResolutionSummary is the wire representation of an identification outcome.
type ResolutionSummary struct {
	Status     string             `json:"status"`
	Chosen     *CandidateSummary  `json:"chosen,omitempty"`
	Alternates []CandidateSummary `json:"alternates,omitempty"`
}

func summarizeResolution(res arbitrate.Resolution) ResolutionSummary {
	out := ResolutionSummary{Status: string(res.Status)}
	if res.Chosen != nil {
		chosen := summarizeCandidate(*res.Chosen)
		out.Chosen = &chosen
	}
	for _, alt := range res.Alternates {
		out.Alternates = append(out.Alternates, summarizeCandidate(alt))
	}
	return out
}

func summarizeCandidate(c arbitrate.Candidate) CandidateSummary {
	return CandidateSummary{Name: c.Name, Confidence: c.Confidence, Source: string(c.Source)}
}

// VisitStartRequest opens a visit for a volunteer.
type VisitStartRequest struct {
	Volunteer string `json:"volunteer"`
}

// VisitStartResponse carries the new visit.
type VisitStartResponse struct {
	Visit VisitSummary `json:"visit"`
}

// VisitHeartbeatRequest refreshes a visit's activity.
type VisitHeartbeatRequest struct {
	VisitID string `json:"visit_id"`
}

// VisitHeartbeatResponse carries the refreshed visit.
type VisitHeartbeatResponse struct {
	Visit VisitSummary `json:"visit"`
}

// VisitCloseRequest ends a visit manually.
type VisitCloseRequest struct {
	VisitID string `json:"visit_id"`
}

// VisitCloseResponse carries the closed visit.
type VisitCloseResponse struct {
	Visit VisitSummary `json:"visit"`
}

// VisitStatusRequest looks a visit up by id, or by volunteer when id is empty.
type VisitStatusRequest struct {
	VisitID   string `json:"visit_id,omitempty"`
	Volunteer string `json:"volunteer,omitempty"`
}

// VisitStatusResponse carries the visit when one was found.
type VisitStatusResponse struct {
	Found bool         `json:"found"`
	Visit VisitSummary `json:"visit"`
}

// VisitItemsRequest lists a visit's logged items.
type VisitItemsRequest struct {
	VisitID string `json:"visit_id"`
}

// VisitItemsResponse carries the items in insertion order.
type VisitItemsResponse struct {
	Items []ItemSummary `json:"items"`
}

// ItemLogRequest attaches a confirmed item to a visit. ClientRef, when set,
// makes retries of the same submission idempotent.
type ItemLogRequest struct {
	VisitID   string `json:"visit_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity,omitempty"`
	Category  string `json:"category,omitempty"`
	Unit      string `json:"unit,omitempty"`
	Barcode   string `json:"barcode,omitempty"`
	Source    string `json:"source,omitempty"`
	ClientRef string `json:"client_ref,omitempty"`
}

// ItemLogResponse carries the visit after the item was attached.
type ItemLogResponse struct {
	Visit VisitSummary `json:"visit"`
}

// IdentifyRequest runs the identification pipeline on one photo. ImageBase64
// is the raw image payload, standard base64 encoded.
type IdentifyRequest struct {
	ImageBase64 string `json:"image_base64"`
	ContentType string `json:"content_type,omitempty"`
	VisitID     string `json:"visit_id,omitempty"`
	Volunteer   string `json:"volunteer,omitempty"`
}

// IdentifyResponse carries the arbitrated outcome.
type IdentifyResponse struct {
	Resolution ResolutionSummary `json:"resolution"`
}

// ImpactRequest aggregates one local day (2006-01-02); empty means today.
type ImpactRequest struct {
	Day string `json:"day,omitempty"`
}

// ImpactResponse carries the daily aggregates.
type ImpactResponse struct {
	Summary store.ImpactSummary `json:"summary"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents daemon runtime information.
type StatusResponse struct {
	Running      bool      `json:"running"`
	PID          int       `json:"pid"`
	StartedAt    time.Time `json:"started_at"`
	DBPath       string    `json:"db_path"`
	LockFilePath string    `json:"lock_path"`
	OpenVisits   int       `json:"open_visits"`
}
