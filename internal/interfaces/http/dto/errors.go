package dto

import "net/http"

// API error codes. Transport and generic codes carry the ERR_ prefix;
// exchange codes are passed through from the domain unchanged.
const (
	ErrCodeInternal            = "ERR_INTERNAL"
	ErrCodeBadRequest          = "ERR_BAD_REQUEST"
	ErrCodeValidation          = "ERR_VALIDATION"
	ErrCodeInvalidInput        = "ERR_INVALID_INPUT"
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
	ErrCodeBusinessRule        = "ERR_BUSINESS_RULE"
)

// Exchange codes
const (
	ErrCodeImportInProgress  = "IMPORT_IN_PROGRESS"
	ErrCodeInvalidImportType = "INVALID_IMPORT_TYPE"
	ErrCodeCircularReference = "CIRCULAR_REFERENCE"
	ErrCodeEmptyExport       = "EMPTY_EXPORT"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeStaleUpdate       = "STALE_UPDATE"
	ErrCodeUnknownStatus     = "UNKNOWN_STATUS"
)

// domainCodes rewrites the generic shared.DomainError codes.
var domainCodes = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"CONFLICT":             ErrCodeConflict,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"VALIDATION_ERROR":     ErrCodeValidation,
	"BAD_REQUEST":          ErrCodeBadRequest,
	"INTERNAL_ERROR":       ErrCodeInternal,
}

var statusByCode = map[string]int{
	ErrCodeInternal:            http.StatusInternalServerError,
	ErrCodeBadRequest:          http.StatusBadRequest,
	ErrCodeValidation:          http.StatusBadRequest,
	ErrCodeInvalidInput:        http.StatusBadRequest,
	ErrCodeInvalidImportType:   http.StatusBadRequest,
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeImportInProgress:    http.StatusConflict,
	ErrCodeCircularReference:   http.StatusConflict,
	ErrCodeStaleUpdate:         http.StatusConflict,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:        http.StatusUnprocessableEntity,
	ErrCodeEmptyExport:         http.StatusUnprocessableEntity,
	ErrCodeInvalidTransition:   http.StatusUnprocessableEntity,
	ErrCodeUnknownStatus:       http.StatusUnprocessableEntity,
}

// NormalizeErrorCode maps generic domain codes to API codes; anything else
// is returned as-is.
func NormalizeErrorCode(code string) string {
	if c, ok := domainCodes[code]; ok {
		return c
	}
	return code
}

// GetHTTPStatus returns the status for an API code, 500 when unknown.
func GetHTTPStatus(code string) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// DomainHTTPStatus returns the status for a domain rule violation. Unlisted
// domain codes are the caller's fault, never a server failure.
func DomainHTTPStatus(code string) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusUnprocessableEntity
}
