package commerceml

import (
	"errors"
	"fmt"
)

// Record error codes
const (
	ErrCodeMissingField  = "ERR_FEED_MISSING_FIELD"
	ErrCodeInvalidNumber = "ERR_FEED_INVALID_NUMBER"
	ErrCodeInvalidDate   = "ERR_FEED_INVALID_DATE"
	ErrCodeMalformed     = "ERR_FEED_MALFORMED_RECORD"
)

var (
	// ErrDocumentTooLarge is returned when a document exceeds the configured size.
	ErrDocumentTooLarge = errors.New("document exceeds maximum allowed size")

	// ErrDTDNotAllowed is returned when a document carries a DOCTYPE or ENTITY declaration.
	ErrDTDNotAllowed = errors.New("DTD declarations are not allowed")

	// ErrUnexpectedRoot is returned when the root element is not КоммерческаяИнформация.
	ErrUnexpectedRoot = errors.New("unexpected document root")

	// ErrUnsupportedEncoding is returned for charsets other than UTF-8, windows-1251 and koi8-r.
	ErrUnsupportedEncoding = errors.New("unsupported document encoding")
)

// ParseError is fatal for the whole document.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RecordError describes one malformed record. The reader skips it and goes on.
type RecordError struct {
	Line       int    `json:"line"`
	ExternalID string `json:"external_id,omitempty"`
	Element    string `json:"element"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *RecordError) Error() string {
	if e.ExternalID != "" {
		return fmt.Sprintf("line %d, %s %q: %s", e.Line, e.Element, e.ExternalID, e.Message)
	}
	return fmt.Sprintf("line %d, %s: %s", e.Line, e.Element, e.Message)
}

func newRecordError(line int, element, externalID, code, message string) *RecordError {
	return &RecordError{Line: line, Element: element, ExternalID: externalID, Code: code, Message: message}
}

func missingField(line int, element, externalID, field string) *RecordError {
	return newRecordError(line, element, externalID, ErrCodeMissingField, fmt.Sprintf("field '%s' is required", field))
}

// IsRecordError reports whether err is a per-record error.
func IsRecordError(err error) bool {
	var re *RecordError
	return errors.As(err, &re)
}

// IsParseError reports whether err is fatal for the document.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
