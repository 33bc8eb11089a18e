// Package identify orchestrates the identification pipeline: OCR and vision
// captioning run concurrently, their raw extractions are normalized into
// candidates, and the arbiter picks the outcome.
package identify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"carecount/internal/arbitrate"
	"carecount/internal/audit"
	"carecount/internal/extract"
	"carecount/internal/logging"
	"carecount/internal/normalize"
	"carecount/internal/photo"
	"carecount/internal/services"
)

const (
	defaultAttemptsPerSource = 2
	defaultOverallTimeout    = 30 * time.Second
	defaultRetryDelay        = 500 * time.Millisecond
)

// Sentinel failures for a whole resolve call. Both modalities failing is
// unavailable; blowing the latency bound is timeout. Single-modality failures
// never surface here, the survivor's results carry the call.
var (
	ErrIdentificationUnavailable = fmt.Errorf("identification %w", services.ErrUnavailable)
	ErrIdentificationTimeout     = fmt.Errorf("identification %w", services.ErrTimeout)
)

// Options bound the resolver's retry and latency behavior.
type Options struct {
	// AttemptsPerSource caps calls per modality per resolve.
	AttemptsPerSource int
	// OverallTimeout bounds one resolve end to end, retries included.
	OverallTimeout time.Duration
	// RetryDelay separates attempts against the same modality.
	RetryDelay time.Duration
	// Sleeper overrides retry sleeps, for tests.
	Sleeper func(time.Duration)
}

func (o Options) normalized() Options {
	if o.AttemptsPerSource <= 0 {
		o.AttemptsPerSource = defaultAttemptsPerSource
	}
	if o.OverallTimeout <= 0 {
		o.OverallTimeout = defaultOverallTimeout
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = defaultRetryDelay
	}
	return o
}

// Resolver turns one photo into a Resolution. Extractor may be nil for
// caption-only deployments; Captioner is required.
type Resolver struct {
	extractor  extract.TextExtractor
	captioner  extract.VisionCaptioner
	normalizer *normalize.Normalizer
	arbiter    *arbitrate.Arbiter
	recorder   audit.Recorder
	logger     *slog.Logger
	opts       Options
}

// New builds a Resolver. A nil recorder or logger falls back to no-ops.
func New(
	extractor extract.TextExtractor,
	captioner extract.VisionCaptioner,
	normalizer *normalize.Normalizer,
	arbiter *arbitrate.Arbiter,
	recorder audit.Recorder,
	logger *slog.Logger,
	opts Options,
) *Resolver {
	if recorder == nil {
		recorder = audit.Nop()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{
		extractor:  extractor,
		captioner:  captioner,
		normalizer: normalizer,
		arbiter:    arbiter,
		recorder:   recorder,
		logger:     logger,
		opts:       opts.normalized(),
	}
}

type modalityOutcome struct {
	results []extract.Result
	err     error
}

// Resolve runs the pipeline on one photo. It fails fast on an invalid image,
// degrades to whichever modality succeeded when one fails, and errs with
// ErrIdentificationUnavailable only when both are exhausted.
func (r *Resolver) Resolve(ctx context.Context, img photo.Payload) (arbitrate.Resolution, error) {
	var empty arbitrate.Resolution
	if err := img.Validate(); err != nil {
		return empty, err
	}

	started := time.Now()
	imageRef := img.Ref()
	ctx, cancel := context.WithTimeout(ctx, r.opts.OverallTimeout)
	defer cancel()

	ocrCh := make(chan modalityOutcome, 1)
	visCh := make(chan modalityOutcome, 1)

	go func() {
		if r.extractor == nil {
			ocrCh <- modalityOutcome{err: extract.ErrExtractorUnavailable}
			return
		}
		results, err := r.withRetry(ctx, "ocr", func() ([]extract.Result, error) {
			return r.extractor.Extract(ctx, img)
		})
		ocrCh <- modalityOutcome{results: results, err: err}
	}()
	go func() {
		results, err := r.withRetry(ctx, "vision", func() ([]extract.Result, error) {
			res, err := r.captioner.Caption(ctx, img)
			if err != nil {
				return nil, err
			}
			return []extract.Result{res}, nil
		})
		visCh <- modalityOutcome{results: results, err: err}
	}()

	ocr := <-ocrCh
	vis := <-visCh

	if ocr.err != nil && vis.err != nil {
		r.recordAttempt(ctx, imageRef, nil, "failed", time.Since(started))
		combined := errors.Join(ocr.err, vis.err)
		if ctx.Err() != nil {
			return empty, fmt.Errorf("%w: %w", ErrIdentificationTimeout, combined)
		}
		if errors.Is(ocr.err, photo.ErrInvalid) || errors.Is(vis.err, photo.ErrInvalid) {
			return empty, combined
		}
		return empty, fmt.Errorf("%w: %w", ErrIdentificationUnavailable, combined)
	}
	if ocr.err != nil {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "ocr modality failed, degrading to caption only",
			logging.Error(ocr.err))
	}
	if vis.err != nil {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "caption modality failed, degrading to ocr only",
			logging.Error(vis.err))
	}

	var candidates []arbitrate.Candidate
	for _, res := range append(ocr.results, vis.results...) {
		if candidate, ok := r.normalizer.Normalize(res); ok {
			candidates = append(candidates, candidate)
		}
	}

	resolution := r.arbiter.Arbitrate(candidates)
	r.recordAttempt(ctx, imageRef, candidates, string(resolution.Status), time.Since(started))
	return resolution, nil
}

// withRetry runs call up to AttemptsPerSource times, retrying only transient
// failures. Invalid-image and configuration failures abort immediately.
func (r *Resolver) withRetry(ctx context.Context, source string, call func() ([]extract.Result, error)) ([]extract.Result, error) {
	var lastErr error
	for attempt := 1; attempt <= r.opts.AttemptsPerSource; attempt++ {
		results, err := call()
		if err == nil {
			return results, nil
		}
		lastErr = err
		if !services.Retryable(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, errors.Join(lastErr, ctx.Err())
		}
		if attempt < r.opts.AttemptsPerSource {
			r.logger.LogAttrs(ctx, slog.LevelDebug, "extraction attempt failed, retrying",
				logging.String(logging.FieldSource, source),
				logging.Int("attempt", attempt),
				logging.Error(err))
			if err := r.sleep(ctx, r.opts.RetryDelay); err != nil {
				return nil, errors.Join(lastErr, err)
			}
		}
	}
	return nil, lastErr
}

func (r *Resolver) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if r.opts.Sleeper != nil {
		r.opts.Sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Resolver) recordAttempt(ctx context.Context, imageRef string, candidates []arbitrate.Candidate, status string, elapsed time.Duration) {
	names := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		names = append(names, candidate.Name)
	}
	visitID, _ := services.VisitIDFromContext(ctx)
	volunteer, _ := services.VolunteerFromContext(ctx)
	r.recorder.Record(ctx, audit.Event{
		Type:      audit.EventResolutionAttempt,
		VisitID:   visitID,
		Volunteer: volunteer,
		Details: map[string]any{
			"image_ref":   imageRef,
			"candidates":  names,
			"status":      status,
			"duration_ms": elapsed.Milliseconds(),
		},
	})
}
