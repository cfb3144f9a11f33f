package exchange

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/shared"
)

// ImportSession is one synchronization attempt. Sessions are kept as an
// audit trail and never deleted by the engine.
type ImportSession struct {
	shared.BaseAggregateRoot
	ImportType      ImportType
	Status          SessionStatus
	TriggeredBy     Trigger
	StartedAt       *time.Time
	FinishedAt      *time.Time
	Report          string
	Details         ReportDetails
	ErrorMessage    string
	CancelRequested bool
}

// NewImportSession creates a pending session.
func NewImportSession(importType ImportType, by Trigger, now time.Time) (*ImportSession, error) {
	if !importType.IsValid() {
		return nil, shared.NewDomainError("INVALID_IMPORT_TYPE", fmt.Sprintf("Invalid import type: %s", importType))
	}
	if by == "" {
		by = TriggerAPI
	}
	s := &ImportSession{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ImportType:        importType,
		Status:            SessionStatusPending,
		TriggeredBy:       by,
		Details:           NewReportDetails(),
	}
	s.CreatedAt = now
	s.UpdatedAt = now
	return s, nil
}

func (s *ImportSession) transition(to SessionStatus, now time.Time) error {
	if !s.Status.CanTransitionTo(to) {
		return transitionError(s.Status, to)
	}
	s.Status = to
	s.UpdatedAt = now
	if to.IsTerminal() && s.FinishedAt == nil {
		finished := now
		s.FinishedAt = &finished
	}
	return nil
}

// Start marks orchestration as begun (pending -> started).
func (s *ImportSession) Start(now time.Time) error {
	if err := s.transition(SessionStatusStarted, now); err != nil {
		return err
	}
	started := now
	s.StartedAt = &started
	s.AppendReport(now, "session started")
	return nil
}

// BeginProcessing moves the session to in_progress with the expected item count.
func (s *ImportSession) BeginProcessing(totalItems int, now time.Time) error {
	if totalItems < 0 {
		return shared.NewDomainError("INVALID_TOTAL_ITEMS", "Total items cannot be negative")
	}
	if err := s.transition(SessionStatusInProgress, now); err != nil {
		return err
	}
	s.Details.TotalItems = totalItems
	return nil
}

// Progress records processed items and the resume marker.
func (s *ImportSession) Progress(processed int, checkpoint Checkpoint, now time.Time) error {
	if s.Status != SessionStatusInProgress {
		return fmt.Errorf("%w: progress in state %s", shared.ErrInvalidState, s.Status)
	}
	s.Details.ProcessedItems = processed
	cp := checkpoint
	s.Details.Checkpoint = &cp
	s.UpdatedAt = now
	return nil
}

// Complete finishes a running session successfully.
func (s *ImportSession) Complete(now time.Time) error {
	if err := s.transition(SessionStatusCompleted, now); err != nil {
		return err
	}
	s.AppendReport(now, s.summary())
	return nil
}

// Fail terminates the session with reason. Allowed from every non-terminal state.
func (s *ImportSession) Fail(reason string, now time.Time) error {
	if err := s.transition(SessionStatusFailed, now); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "session failed"
	}
	s.ErrorMessage = reason
	s.AppendReport(now, "failed: "+reason)
	return nil
}

// RequestCancel raises the cooperative cancellation flag.
func (s *ImportSession) RequestCancel() error {
	if s.Status.IsTerminal() {
		return fmt.Errorf("%w: session is %s", shared.ErrInvalidState, s.Status)
	}
	s.CancelRequested = true
	return nil
}

// IsActive reports whether the session is non-terminal.
func (s *ImportSession) IsActive() bool {
	return !s.Status.IsTerminal()
}

// IsStale reports whether an active session made no progress within threshold.
func (s *ImportSession) IsStale(now time.Time, threshold time.Duration) bool {
	return s.IsActive() && now.Sub(s.UpdatedAt) > threshold
}

// AppendReport adds a timestamped line to the human readable report.
func (s *ImportSession) AppendReport(now time.Time, line string) {
	entry := fmt.Sprintf("[%s] %s", now.UTC().Format(time.RFC3339), line)
	if s.Report == "" {
		s.Report = entry
		return
	}
	s.Report += "\n" + entry
}

func (s *ImportSession) summary() string {
	t := s.Details.Totals()
	return fmt.Sprintf("completed: created=%d updated=%d aliased=%d unchanged=%d skipped=%d errors=%d processed=%d/%d",
		t.Created, t.Updated, t.Aliased, t.Unchanged, t.Skipped, s.Details.ErrorCount,
		s.Details.ProcessedItems, s.Details.TotalItems)
}

// SessionFilter narrows session listings.
type SessionFilter struct {
	ImportType ImportType
	Status     SessionStatus
	Page       int
	PageSize   int
	// SortBy and SortOrder are validated by the repository; unknown values
	// fall back to newest first.
	SortBy    string
	SortOrder string
}

// SessionRepository persists import sessions.
type SessionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ImportSession, error)
	// FindActive returns the non-terminal session of importType or shared.ErrNotFound.
	FindActive(ctx context.Context, importType ImportType) (*ImportSession, error)
	FindActiveUpdatedBefore(ctx context.Context, before time.Time) ([]ImportSession, error)
	List(ctx context.Context, filter SessionFilter) ([]ImportSession, int64, error)
	// Create inserts a session; a second active session of the same type
	// yields shared.ErrAlreadyExists.
	Create(ctx context.Context, s *ImportSession) error
	// Save writes s guarded by its version and bumps it; a stale version
	// yields shared.ErrConcurrencyConflict. CancelRequested is not written.
	Save(ctx context.Context, s *ImportSession) error
	MarkCancelRequested(ctx context.Context, id uuid.UUID) error
	IsCancelRequested(ctx context.Context, id uuid.UUID) (bool, error)
}
