// Package scheduler starts exchange sessions on a fixed cadence and runs the
// stale session janitor.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	appexchange "github.com/shop/backend/internal/application/exchange"
	"github.com/shop/backend/internal/domain/exchange"
	"github.com/shop/backend/internal/domain/shared"
	"github.com/shop/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// JobOrderExport is the interval key that schedules an order export.
const JobOrderExport = "order_export"

// SessionStarter is the part of the session manager the scheduler drives.
type SessionStarter interface {
	StartAsync(ctx context.Context, req appexchange.StartRequest) (*exchange.ImportSession, error)
	SweepStale(ctx context.Context) (*appexchange.SweepResult, error)
}

// OrderExportRunner writes pending orders to an export document.
type OrderExportRunner interface {
	Export(ctx context.Context, req appexchange.ExportRequest) (*appexchange.ExportResult, error)
}

// Config holds the cadence of scheduled jobs
type Config struct {
	// CheckInterval is how often due jobs are looked for
	CheckInterval time.Duration
	// Intervals maps an import type (or JobOrderExport) to its cadence
	Intervals     map[string]time.Duration
	SweepInterval time.Duration
	// JobTimeout bounds each trigger call
	JobTimeout time.Duration
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		CheckInterval: time.Minute,
		Intervals:     map[string]time.Duration{},
		SweepInterval: 5 * time.Minute,
		JobTimeout:    30 * time.Second,
	}
}

// ConfigFromSettings converts the loaded settings.
func ConfigFromSettings(s config.SchedulerConfig) Config {
	cfg := DefaultConfig()
	if s.CheckInterval > 0 {
		cfg.CheckInterval = s.CheckInterval
	}
	if s.SweepInterval > 0 {
		cfg.SweepInterval = s.SweepInterval
	}
	if s.JobTimeout > 0 {
		cfg.JobTimeout = s.JobTimeout
	}
	for k, v := range s.Intervals {
		cfg.Intervals[k] = v
	}
	return cfg
}

type job struct {
	key        string
	importType exchange.ImportType
	interval   time.Duration
	lastRun    time.Time
}

// Scheduler triggers imports, order exports and the stale sweep.
type Scheduler struct {
	config   Config
	sessions SessionStarter
	exporter OrderExportRunner
	clock    shared.Clock
	logger   *zap.Logger

	tickMu    sync.Mutex
	jobs      []*job
	lastSweep time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithOrderExporter enables the JobOrderExport interval.
func WithOrderExporter(exporter OrderExportRunner) Option {
	return func(s *Scheduler) { s.exporter = exporter }
}

// WithClock replaces the wall clock.
func WithClock(clock shared.Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// New creates a scheduler. Unknown interval keys and non-positive
// intervals are rejected with ErrInvalidConfig.
func New(cfg Config, sessions SessionStarter, logger *zap.Logger, opts ...Option) (*Scheduler, error) {
	if sessions == nil {
		return nil, fmt.Errorf("%w: session starter is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}

	s := &Scheduler{
		config:   cfg,
		sessions: sessions,
		clock:    shared.SystemClock,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	keys := make([]string, 0, len(cfg.Intervals))
	for k := range cfg.Intervals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		interval := cfg.Intervals[key]
		if interval <= 0 {
			return nil, fmt.Errorf("%w: interval for %q must be positive", ErrInvalidConfig, key)
		}
		j := &job{key: key, interval: interval}
		if key == JobOrderExport {
			if s.exporter == nil {
				return nil, fmt.Errorf("%w: %s scheduled without an exporter", ErrInvalidConfig, key)
			}
		} else {
			it, err := exchange.ParseImportType(key)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
			}
			j.importType = it
		}
		s.jobs = append(s.jobs, j)
	}
	return s, nil
}

// Start starts the trigger loop
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Exchange scheduler started",
		zap.Int("jobs", len(s.jobs)),
		zap.Duration("check_interval", s.config.CheckInterval),
		zap.Duration("sweep_interval", s.config.SweepInterval),
	)
	return nil
}

// Stop stops the trigger loop and waits for an in-flight check.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Exchange scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning returns whether the loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs every job that is due at the current time. The loop calls it on
// each check; it is exported so a check can be forced.
func (s *Scheduler) Tick(ctx context.Context) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	now := s.clock()
	for _, j := range s.jobs {
		if !j.lastRun.IsZero() && now.Sub(j.lastRun) < j.interval {
			continue
		}
		if s.runJob(ctx, j) {
			j.lastRun = now
		}
	}

	if s.config.SweepInterval > 0 && (s.lastSweep.IsZero() || now.Sub(s.lastSweep) >= s.config.SweepInterval) {
		s.sweep(ctx)
		s.lastSweep = now
	}
}

// runJob reports whether the job ran. A job blocked by an active session
// stays due and is retried on the next check.
func (s *Scheduler) runJob(ctx context.Context, j *job) bool {
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	if j.key == JobOrderExport {
		result, err := s.exporter.Export(jobCtx, appexchange.ExportRequest{})
		if err != nil {
			s.logger.Error("Scheduled order export failed", zap.Error(err))
			return false
		}
		s.logger.Info("Scheduled order export finished", zap.Int("orders", result.Orders))
		return true
	}

	session, err := s.sessions.StartAsync(jobCtx, appexchange.StartRequest{
		ImportType:  j.importType,
		TriggeredBy: exchange.TriggerScheduler,
	})
	if err != nil {
		if errors.Is(err, exchange.ErrImportInProgress) {
			s.logger.Debug("Scheduled import skipped, another session is active",
				zap.String("import_type", string(j.importType)),
				zap.Error(err))
			return false
		}
		s.logger.Error("Failed to start scheduled import",
			zap.String("import_type", string(j.importType)),
			zap.Error(err))
		return false
	}
	s.logger.Info("Scheduled import started",
		zap.String("import_type", string(j.importType)),
		zap.String("session_id", session.ID.String()))
	return true
}

func (s *Scheduler) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	result, err := s.sessions.SweepStale(sweepCtx)
	if err != nil {
		s.logger.Error("Stale session sweep failed", zap.Error(err))
		return
	}
	if result != nil && result.Stale > 0 {
		s.logger.Warn("Stale sessions found",
			zap.Int("stale", result.Stale),
			zap.Int("failed", result.Failed))
	}
}
