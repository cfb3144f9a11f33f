package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/exchange"
	"github.com/shop/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Stale session handling.
const (
	StaleActionFail = "fail"
	StaleActionKeep = "keep"

	defaultStaleAfter = 30 * time.Minute
	takeoverReason    = "superseded by forced takeover"
)

// ErrStartLockHeld is returned by a StartLock when another process is
// creating a session of the same type.
var ErrStartLockHeld = errors.New("session start lock is held")

// StartLock serializes session creation across processes.
type StartLock interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// SessionRunner drives a session to a terminal state.
type SessionRunner interface {
	Run(ctx context.Context, s *exchange.ImportSession) error
}

// StartRequest asks for a new session.
type StartRequest struct {
	ImportType  exchange.ImportType
	Force       bool
	TriggeredBy exchange.Trigger
}

// SessionManagerConfig holds the lifecycle settings of the manager.
type SessionManagerConfig struct {
	StaleAfter  time.Duration
	StaleAction string
}

// SweepResult summarizes one janitor pass.
type SweepResult struct {
	Stale  int         `json:"stale"`
	Failed int         `json:"failed"`
	IDs    []uuid.UUID `json:"ids"`
}

// SessionManager owns the lifecycle of import sessions: creation with
// conflict detection, execution, cancellation and the stale janitor.
type SessionManager struct {
	scope    TransactionScope
	sessions exchange.SessionRepository
	runner   SessionRunner
	lock     StartLock
	cfg      SessionManagerConfig
	clock    shared.Clock
	logger   *zap.Logger

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelCauseFunc
	wg      sync.WaitGroup
}

// SessionManagerOption configures a SessionManager.
type SessionManagerOption func(*SessionManager)

// WithStartLock enables the cross-process start lock.
func WithStartLock(lock StartLock) SessionManagerOption {
	return func(m *SessionManager) { m.lock = lock }
}

// WithManagerClock replaces the wall clock.
func WithManagerClock(clock shared.Clock) SessionManagerOption {
	return func(m *SessionManager) { m.clock = clock }
}

// NewSessionManager creates a SessionManager that executes sessions with runner.
func NewSessionManager(
	scope TransactionScope,
	sessions exchange.SessionRepository,
	runner SessionRunner,
	cfg SessionManagerConfig,
	logger *zap.Logger,
	opts ...SessionManagerOption,
) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	if cfg.StaleAction == "" {
		cfg.StaleAction = StaleActionFail
	}
	m := &SessionManager{
		scope:    scope,
		sessions: sessions,
		runner:   runner,
		cfg:      cfg,
		clock:    shared.SystemClock,
		logger:   logger,
		running:  make(map[uuid.UUID]context.CancelCauseFunc),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start creates a pending session. An active session of the same type is a
// conflict unless req.Force is set and that session is stale, in which case
// it is failed and replaced.
func (m *SessionManager) Start(ctx context.Context, req StartRequest) (*exchange.ImportSession, error) {
	if !req.ImportType.IsValid() {
		return nil, shared.NewDomainError("INVALID_IMPORT_TYPE", fmt.Sprintf("Invalid import type: %s", req.ImportType))
	}

	if m.lock != nil {
		release, err := m.lock.Acquire(ctx, "exchange:start:"+string(req.ImportType))
		if errors.Is(err, ErrStartLockHeld) {
			return nil, fmt.Errorf("%w: another process is starting a %s session", exchange.ErrImportInProgress, req.ImportType)
		}
		if err != nil {
			return nil, fmt.Errorf("acquire start lock: %w", err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release start lock", zap.Error(err))
			}
		}()
	}

	var created *exchange.ImportSession
	err := m.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		sessions := repos.SessionRepo()
		now := m.clock()

		active, err := sessions.FindActive(ctx, req.ImportType)
		switch {
		case err == nil:
			if !req.Force || !active.IsStale(now, m.cfg.StaleAfter) {
				return exchange.NewImportInProgressError(active)
			}
			if err := active.Fail(takeoverReason, now); err != nil {
				return err
			}
			if err := sessions.Save(ctx, active); err != nil {
				return fmt.Errorf("fail stale session %s: %w", active.ID, err)
			}
			m.logger.Warn("Stale session taken over",
				zap.String("session_id", active.ID.String()),
				zap.String("import_type", string(req.ImportType)))
		case !errors.Is(err, shared.ErrNotFound):
			return err
		}

		s, err := exchange.NewImportSession(req.ImportType, req.TriggeredBy, now)
		if err != nil {
			return err
		}
		if err := sessions.Create(ctx, s); err != nil {
			if errors.Is(err, shared.ErrAlreadyExists) {
				return fmt.Errorf("%w: a %s session was created concurrently", exchange.ErrImportInProgress, req.ImportType)
			}
			return err
		}
		created = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("Import session created",
		zap.String("session_id", created.ID.String()),
		zap.String("import_type", string(created.ImportType)),
		zap.String("triggered_by", string(created.TriggeredBy)))
	return created, nil
}

// Run drives session id to a terminal state in the calling goroutine.
func (m *SessionManager) Run(ctx context.Context, id uuid.UUID) (*exchange.ImportSession, error) {
	s, err := m.sessions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.IsActive() {
		return s, fmt.Errorf("%w: session %s is %s", shared.ErrInvalidState, id, s.Status)
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	if !m.register(id, cancel) {
		cancel(nil)
		return s, fmt.Errorf("%w: session %s is already running", shared.ErrInvalidState, id)
	}
	defer func() {
		m.unregister(id)
		cancel(nil)
	}()

	err = m.runner.Run(runCtx, s)
	return s, err
}

// StartAndRun creates a session and runs it synchronously.
func (m *SessionManager) StartAndRun(ctx context.Context, req StartRequest) (*exchange.ImportSession, error) {
	s, err := m.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	return m.Run(ctx, s.ID)
}

// RunAsync runs session id in a goroutine tracked by the manager. The run
// outlives ctx; use Cancel or Shutdown to stop it.
func (m *SessionManager) RunAsync(ctx context.Context, id uuid.UUID) {
	runCtx := context.WithoutCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if _, err := m.Run(runCtx, id); err != nil {
			m.logger.Warn("Background import finished with error",
				zap.String("session_id", id.String()),
				zap.Error(err))
		}
	}()
}

// StartAsync creates a session and runs it in the background.
func (m *SessionManager) StartAsync(ctx context.Context, req StartRequest) (*exchange.ImportSession, error) {
	s, err := m.Start(ctx, req)
	if err != nil {
		return nil, err
	}
	m.RunAsync(ctx, s.ID)
	return s, nil
}

// Resume restarts a non-terminal session from its checkpoint in the background.
func (m *SessionManager) Resume(ctx context.Context, id uuid.UUID) (*exchange.ImportSession, error) {
	s, err := m.sessions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.IsActive() {
		return s, fmt.Errorf("%w: session %s is %s", shared.ErrInvalidState, id, s.Status)
	}
	if m.isRunning(id) {
		return s, fmt.Errorf("%w: session %s is already running", shared.ErrInvalidState, id)
	}
	m.RunAsync(ctx, id)
	return s, nil
}

// Cancel raises the durable cancel flag and stops a local run. A pending
// session nobody picked up is failed immediately.
func (m *SessionManager) Cancel(ctx context.Context, id uuid.UUID) error {
	if err := m.sessions.MarkCancelRequested(ctx, id); err != nil {
		return err
	}

	m.mu.Lock()
	cancel, running := m.running[id]
	m.mu.Unlock()
	if running {
		cancel(ErrCancelled)
		m.logger.Info("Cancel signalled to running import", zap.String("session_id", id.String()))
		return nil
	}

	s, err := m.sessions.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if s.Status != exchange.SessionStatusPending {
		return nil
	}
	if err := s.Fail(cancelledReason, m.clock()); err != nil {
		return err
	}
	if err := m.sessions.Save(ctx, s); err != nil && !errors.Is(err, shared.ErrConcurrencyConflict) {
		return err
	}
	return nil
}

// SweepStale finds active sessions without progress for StaleAfter. With
// the fail action they are moved to failed; with keep they are only reported.
func (m *SessionManager) SweepStale(ctx context.Context) (*SweepResult, error) {
	now := m.clock()
	stale, err := m.sessions.FindActiveUpdatedBefore(ctx, now.Add(-m.cfg.StaleAfter))
	if err != nil {
		return nil, fmt.Errorf("find stale sessions: %w", err)
	}

	result := &SweepResult{}
	for i := range stale {
		s := &stale[i]
		if m.isRunning(s.ID) {
			continue
		}
		result.Stale++
		result.IDs = append(result.IDs, s.ID)

		if m.cfg.StaleAction != StaleActionFail {
			m.logger.Warn("Stale import session",
				zap.String("session_id", s.ID.String()),
				zap.String("import_type", string(s.ImportType)),
				zap.Time("updated_at", s.UpdatedAt))
			continue
		}
		reason := fmt.Sprintf("stale: no progress since %s", s.UpdatedAt.UTC().Format(time.RFC3339))
		if err := s.Fail(reason, now); err != nil {
			return result, err
		}
		if err := m.sessions.Save(ctx, s); err != nil {
			if errors.Is(err, shared.ErrConcurrencyConflict) {
				continue
			}
			return result, fmt.Errorf("fail stale session %s: %w", s.ID, err)
		}
		result.Failed++
		m.logger.Warn("Stale import session failed",
			zap.String("session_id", s.ID.String()),
			zap.String("import_type", string(s.ImportType)))
	}
	return result, nil
}

// Get returns one session.
func (m *SessionManager) Get(ctx context.Context, id uuid.UUID) (*exchange.ImportSession, error) {
	return m.sessions.FindByID(ctx, id)
}

// List returns sessions newest first.
func (m *SessionManager) List(ctx context.Context, filter exchange.SessionFilter) ([]exchange.ImportSession, int64, error) {
	return m.sessions.List(ctx, filter)
}

// Shutdown interrupts local runs, leaving their sessions resumable, and
// waits for them to return.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, cancel := range m.running {
		cancel(context.Canceled)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *SessionManager) register(id uuid.UUID, cancel context.CancelCauseFunc) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.running[id]; ok {
		return false
	}
	m.running[id] = cancel
	return true
}

func (m *SessionManager) unregister(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.running, id)
}

func (m *SessionManager) isRunning(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.running[id]
	return ok
}
