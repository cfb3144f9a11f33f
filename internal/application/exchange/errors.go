package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/shop/backend/internal/domain/catalog"
	"github.com/shop/backend/internal/domain/shared"
	"github.com/shop/backend/internal/domain/trade"
	"github.com/shop/backend/internal/infrastructure/commerceml"
)

// Record error codes raised by the pass handlers.
const (
	CodeReferenceNotFound  = "REFERENCE_NOT_FOUND"
	CodeStockBelowReserved = "STOCK_BELOW_RESERVED"
	CodeInvalidQuantity    = "INVALID_QUANTITY"
	CodeImageNotFound      = "IMAGE_NOT_FOUND"
	CodeInvalidReference   = "INVALID_REFERENCE"
	CodeNameConflict       = "NAME_CONFLICT"
	CodeRecordFailed       = "RECORD_FAILED"
)

var (
	// ErrCancelled is returned when a run stops on a cancel request.
	ErrCancelled = errors.New("import cancelled")

	// ErrResolveContention is returned when attach-on-conflict keeps losing.
	ErrResolveContention = errors.New("entity resolution kept conflicting")
)

// RecordError is a per-record failure. The run counts it and moves on.
type RecordError struct {
	Line       int
	ExternalID string
	Code       string
	Message    string
	Err        error
}

func (e *RecordError) Error() string {
	if e.ExternalID != "" {
		return fmt.Sprintf("%s %q: %s", e.Code, e.ExternalID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RecordError) Unwrap() error { return e.Err }

func newRecordError(code, externalID, format string, args ...any) *RecordError {
	return &RecordError{Code: code, ExternalID: externalID, Message: fmt.Sprintf(format, args...)}
}

func referenceNotFound(externalID string, kind catalog.Kind, ref string) *RecordError {
	return newRecordError(CodeReferenceNotFound, externalID, "%s %q is not imported", kind, ref)
}

// FatalFeedError aborts a run. The session is failed with its message.
type FatalFeedError struct {
	Reason string
	Err    error
}

func (e *FatalFeedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *FatalFeedError) Unwrap() error { return e.Err }

// IsFatal reports whether err must stop the run.
func IsFatal(err error) bool {
	var fatal *FatalFeedError
	return errors.As(err, &fatal)
}

// classify turns an error from a reader or handler into a RecordError,
// or returns nil when the error must stop the run.
func classify(err error, pos commerceml.Position) *RecordError {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if IsFatal(err) || commerceml.IsParseError(err) {
		return nil
	}

	var (
		re    *RecordError
		feed  *commerceml.RecordError
		trans *trade.TransitionError
		de    *shared.DomainError
		ce    *shared.ConflictError
	)
	switch {
	case errors.As(err, &re):
		out := *re
		if out.Line == 0 {
			out.Line = pos.Line
		}
		if out.ExternalID == "" {
			out.ExternalID = pos.ExternalID
		}
		return &out
	case errors.As(err, &feed):
		return &RecordError{Line: feed.Line, ExternalID: feed.ExternalID, Code: feed.Code, Message: feed.Message, Err: err}
	case errors.As(err, &trans):
		return &RecordError{Line: pos.Line, ExternalID: pos.ExternalID, Code: trans.Code, Message: trans.Error(), Err: err}
	case errors.As(err, &ce):
		return &RecordError{Line: pos.Line, ExternalID: pos.ExternalID, Code: ce.Code, Message: ce.Message, Err: err}
	case errors.As(err, &de):
		return &RecordError{Line: pos.Line, ExternalID: pos.ExternalID, Code: de.Code, Message: de.Message, Err: err}
	}
	return &RecordError{Line: pos.Line, ExternalID: pos.ExternalID, Code: CodeRecordFailed, Message: err.Error(), Err: err}
}
