package exchange

import (
	"fmt"

	"github.com/shop/backend/internal/domain/shared"
)

// SessionStatus is the lifecycle state of an import session.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusStarted    SessionStatus = "started"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusFailed     SessionStatus = "failed"
)

// ActiveStatuses are the non-terminal states. At most one session per import
// type may be in one of them.
var ActiveStatuses = []SessionStatus{
	SessionStatusPending,
	SessionStatusStarted,
	SessionStatusInProgress,
}

// ErrInvalidTransition is returned for a transition missing from the table.
var ErrInvalidTransition = shared.NewDomainError("INVALID_TRANSITION", "Session status transition is not allowed")

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionStatusPending:    {SessionStatusStarted, SessionStatusFailed},
	SessionStatusStarted:    {SessionStatusInProgress, SessionStatusFailed},
	SessionStatusInProgress: {SessionStatusCompleted, SessionStatusFailed},
}

// IsValid checks if the status is valid
func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusPending, SessionStatusStarted, SessionStatusInProgress,
		SessionStatusCompleted, SessionStatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true if this is a terminal state
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed
}

// CanTransitionTo reports whether the table allows s -> to.
func (s SessionStatus) CanTransitionTo(to SessionStatus) bool {
	for _, next := range sessionTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func transitionError(from, to SessionStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
