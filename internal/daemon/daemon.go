// Package daemon wires the donation-log components into a single lifecycle:
// SQLite store, identification resolver, visit manager, and the periodic
// visit sweep, guarded by a flock so only one instance runs per data dir.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"carecount/internal/arbitrate"
	"carecount/internal/audit"
	"carecount/internal/catalog"
	"carecount/internal/config"
	"carecount/internal/extract"
	"carecount/internal/identify"
	"carecount/internal/logging"
	"carecount/internal/normalize"
	"carecount/internal/ocr"
	"carecount/internal/store"
	"carecount/internal/visit"
	"carecount/internal/vlm"
)

// Daemon coordinates the donation-log services and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	manager  *visit.Manager
	resolver *identify.Resolver

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	StartedAt    time.Time
	DBPath       string
	LockFilePath string
	OpenVisits   int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	clock, err := visit.NewClock(
		cfg.Session.Timezone,
		cfg.Session.CutoffHour,
		time.Duration(cfg.Session.InactivityMinutes)*time.Minute,
	)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("session clock: %w", err)
	}

	recorder := audit.NewRecorder(logging.NewComponentLogger(logger, "audit"), st)
	manager := visit.NewManager(st, clock, recorder, logging.NewComponentLogger(logger, "visit"))

	captioner := vlm.NewClient(vlm.Config{
		APIKey:         cfg.Vision.APIKey,
		BaseURL:        cfg.Vision.BaseURL,
		Model:          cfg.Vision.Model,
		TimeoutSeconds: cfg.Vision.TimeoutSeconds,
	})
	// A nil *ocr.Client must stay a nil interface, not a typed nil.
	var extractor extract.TextExtractor
	if cfg.OCR.BaseURL != "" {
		extractor = ocr.NewClient(ocr.Config{
			APIKey:         cfg.OCR.APIKey,
			BaseURL:        cfg.OCR.BaseURL,
			TimeoutSeconds: cfg.OCR.TimeoutSeconds,
		})
	}

	policy := arbitrate.Policy{
		HighTextThreshold: cfg.Identify.HighTextThreshold,
		MinConfidence:     cfg.Identify.MinConfidence,
		TieBreakMargin:    cfg.Identify.TieBreakMargin,
	}
	arbiter := arbitrate.New(policy, logging.NewComponentLogger(logger, "arbitrate"))
	resolver := identify.New(extractor, captioner, normalize.New(cat), arbiter, recorder,
		logging.NewComponentLogger(logger, "identify"), identify.Options{
			AttemptsPerSource: cfg.Identify.AttemptsPerSource,
			OverallTimeout:    time.Duration(cfg.Identify.OverallTimeoutSecs) * time.Second,
		})

	lockPath := filepath.Join(cfg.Paths.DataDir, "carecountd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		manager:  manager,
		resolver: resolver,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and launches the sweep loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another carecount daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.startedAt = time.Now()
	d.running.Store(true)

	interval := time.Duration(d.cfg.Session.SweepSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	d.wg.Add(1)
	go d.sweepLoop(interval)

	d.logger.LogAttrs(d.ctx, slog.LevelInfo, "daemon started",
		logging.String("db", d.store.Path()),
		logging.Duration("sweep_interval", interval))
	return nil
}

// sweepLoop periodically applies inactivity and cutoff transitions to open
// visits so they close even when no client is connected.
func (d *Daemon) sweepLoop(interval time.Duration) {
	defer d.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			closed, err := d.manager.Sweep(d.ctx)
			if err != nil {
				if d.ctx.Err() != nil {
					return
				}
				d.logger.LogAttrs(d.ctx, slog.LevelWarn, "visit sweep failed", logging.Error(err))
				continue
			}
			if closed > 0 {
				d.logger.LogAttrs(d.ctx, slog.LevelInfo, "visit sweep closed visits",
					logging.Int("closed", closed))
			}
		}
	}
}

// Stop shuts the sweep loop down, releases the lock, and closes the store.
func (d *Daemon) Stop() error {
	if !d.running.Load() {
		return nil
	}
	d.cancel()
	d.wg.Wait()
	d.running.Store(false)

	var errs []error
	if err := d.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("release lock: %w", err))
	}
	if err := d.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	d.logger.LogAttrs(context.Background(), slog.LevelInfo, "daemon stopped")
	return errors.Join(errs...)
}

// Manager exposes the visit session manager.
func (d *Daemon) Manager() *visit.Manager { return d.manager }

// Resolver exposes the identification resolver.
func (d *Daemon) Resolver() *identify.Resolver { return d.resolver }

// Store exposes the persistence layer.
func (d *Daemon) Store() *store.Store { return d.store }

// Config exposes the effective configuration.
func (d *Daemon) Config() *config.Config { return d.cfg }

// Status reports runtime information for the status RPC.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		StartedAt:    d.startedAt,
		DBPath:       d.store.Path(),
		LockFilePath: d.lockPath,
	}
	if open, err := d.store.OpenVisits(ctx); err == nil {
		status.OpenVisits = len(open)
	}
	return status
}
