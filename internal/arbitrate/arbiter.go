package arbitrate

import (
	"log/slog"
	"sort"
	"strings"

	"carecount/internal/extract"
	"carecount/internal/logging"
)

// Arbiter applies the ranked arbitration rules to normalized candidates.
type Arbiter struct {
	policy Policy
	logger *slog.Logger
}

// New constructs an Arbiter. Zero policy fields fall back to defaults.
func New(policy Policy, logger *slog.Logger) *Arbiter {
	return &Arbiter{
		policy: policy.normalized(),
		logger: logging.NewComponentLogger(logger, "arbiter"),
	}
}

// Arbitrate decides the single best candidate, or declares manual entry.
//
// Rules in priority order:
//  1. An OCR candidate at or above HighTextThreshold wins outright; text on
//     packaging is ground truth when legible.
//  2. Candidates agreeing on the same name are merged (max confidence, not
//     sum) and the merged name wins; cross-source agreement beats either
//     modality alone.
//  3. The top candidate wins if it clears MinConfidence; the resolution is
//     clean only when its lead over the runner-up exceeds TieBreakMargin,
//     ambiguous otherwise.
//  4. Nothing acceptable: unresolved, the UI prompts manual entry.
func (a *Arbiter) Arbitrate(candidates []Candidate) Resolution {
	merged := mergeAgreeing(candidates)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Confidence > merged[j].Confidence
	})

	if len(merged) == 0 {
		a.logger.Debug("no candidates to arbitrate")
		return Resolution{Status: StatusUnresolved}
	}

	if chosen, ok := a.highConfidenceText(merged); ok {
		a.logger.Debug("legible packaging text wins",
			logging.String("name", chosen.Name),
			logging.Float64("confidence", chosen.Confidence))
		return Resolution{Chosen: chosen, Alternates: merged, Status: StatusResolved}
	}

	if chosen, ok := a.crossSourceAgreement(candidates, merged); ok {
		a.logger.Debug("cross-source agreement wins",
			logging.String("name", chosen.Name),
			logging.Float64("confidence", chosen.Confidence))
		return Resolution{Chosen: chosen, Alternates: merged, Status: StatusResolved}
	}

	top := merged[0]
	if top.Confidence < a.policy.MinConfidence {
		a.logger.Debug("top candidate below floor",
			logging.String("name", top.Name),
			logging.Float64("confidence", top.Confidence),
			logging.Float64("floor", a.policy.MinConfidence))
		return Resolution{Status: StatusUnresolved}
	}

	margin := top.Confidence
	if len(merged) > 1 {
		margin = top.Confidence - merged[1].Confidence
	}
	status := StatusResolved
	if len(merged) > 1 && margin <= a.policy.TieBreakMargin {
		status = StatusAmbiguous
	}
	a.logger.Debug("confidence ranking decides",
		logging.String("name", top.Name),
		logging.Float64("confidence", top.Confidence),
		logging.Float64("margin", margin),
		logging.String("status", string(status)))
	chosen := top
	return Resolution{Chosen: &chosen, Alternates: merged, Status: status}
}

func (a *Arbiter) highConfidenceText(ranked []Candidate) (*Candidate, bool) {
	for i := range ranked {
		if ranked[i].Source == extract.SourceOCR && ranked[i].Confidence >= a.policy.HighTextThreshold {
			chosen := ranked[i]
			return &chosen, true
		}
	}
	return nil, false
}

// crossSourceAgreement fires when the pre-merge input had two or more
// candidates sharing a normalized name.
func (a *Arbiter) crossSourceAgreement(raw, merged []Candidate) (*Candidate, bool) {
	counts := make(map[string]int, len(raw))
	for _, c := range raw {
		counts[strings.ToLower(c.Name)]++
	}
	for i := range merged {
		if counts[strings.ToLower(merged[i].Name)] > 1 {
			chosen := merged[i]
			return &chosen, true
		}
	}
	return nil, false
}

// mergeAgreeing collapses candidates with the same case-insensitive name,
// keeping the maximum confidence and its source.
func mergeAgreeing(candidates []Candidate) []Candidate {
	byName := make(map[string]Candidate, len(candidates))
	order := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		key := strings.ToLower(c.Name)
		existing, seen := byName[key]
		if !seen {
			byName[key] = c
			order = append(order, key)
			continue
		}
		if c.Confidence > existing.Confidence {
			byName[key] = c
		}
	}
	out := make([]Candidate, 0, len(order))
	for _, key := range order {
		out = append(out, byName[key])
	}
	return out
}
