package extract

import (
	"context"
	"fmt"
	"strings"

	"carecount/internal/photo"
	"carecount/internal/services"
)

// Source identifies which modality produced a result.
type Source string

const (
	SourceOCR    Source = "ocr"
	SourceVision Source = "vision"
	SourceManual Source = "manual"
)

// ParseSource converts a string into a known Source.
func ParseSource(value string) (Source, bool) {
	switch Source(strings.ToLower(strings.TrimSpace(value))) {
	case SourceOCR:
		return SourceOCR, true
	case SourceVision:
		return SourceVision, true
	case SourceManual:
		return SourceManual, true
	default:
		return "", false
	}
}

// DefaultCaptionConfidence is assigned when a captioning provider reports no
// likelihood of its own. 0.5 keeps an unscored caption above the floor that
// arbitration rejects outright but below every threshold that would let it win
// uncontested, so arbitration stays reproducible across providers.
const DefaultCaptionConfidence = 0.5

// Result is one extraction from an image: raw text plus the modality's own
// confidence in [0,1]. Immutable; consumed only by the normalizer.
type Result struct {
	Source     Source
	Text       string
	Confidence float64
}

// Sentinel failures for the two modalities. Both carry the shared
// services.ErrUnavailable marker so retry classification works uniformly,
// while callers can still tell the modalities apart.
var (
	ErrExtractorUnavailable = fmt.Errorf("text extractor %w", services.ErrUnavailable)
	ErrCaptionerUnavailable = fmt.Errorf("captioner %w", services.ErrUnavailable)
)

// TextExtractor wraps an OCR capability. Extract returns zero or more results,
// one per recognized line. A decode failure returns photo.ErrInvalid; an
// upstream failure returns ErrExtractorUnavailable so callers can distinguish
// "no text found" from "could not attempt".
type TextExtractor interface {
	Extract(ctx context.Context, img photo.Payload) ([]Result, error)
}

// VisionCaptioner wraps a visual captioning capability. Caption returns
// exactly one result, possibly low confidence. Failure taxonomy mirrors
// TextExtractor with ErrCaptionerUnavailable.
type VisionCaptioner interface {
	Caption(ctx context.Context, img photo.Payload) (Result, error)
}
