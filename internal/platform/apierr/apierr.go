package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Codes carried in the HTTP error envelope.
const (
	CodeValidation     = "validation_error"
	CodeNotFound       = "not_found"
	CodeUnauthorized   = "unauthorized"
	CodeConflict       = "conflict"
	CodeUpstream       = "upstream_service_error"
	CodeSchemaMismatch = "schema_mismatch"
)

// Sentinels for errors.Is checks where the status does not matter.
var (
	ErrValidation     = errors.New("validation error")
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrConflict       = errors.New("conflict")
	ErrUpstream       = errors.New("upstream service error")
	ErrSchemaMismatch = errors.New("schema mismatch")
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNotFound) match on the code without unwrapping to a sentinel.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrValidation:
		return e.Code == CodeValidation
	case ErrNotFound:
		return e.Code == CodeNotFound
	case ErrUnauthorized:
		return e.Code == CodeUnauthorized
	case ErrConflict:
		return e.Code == CodeConflict
	case ErrUpstream:
		return e.Code == CodeUpstream
	case ErrSchemaMismatch:
		return e.Code == CodeSchemaMismatch
	}
	return false
}

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(http.StatusBadRequest, CodeValidation, fmt.Errorf(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Errorf(format, args...))
}

func Unauthorized(format string, args ...any) *Error {
	return New(http.StatusUnauthorized, CodeUnauthorized, fmt.Errorf(format, args...))
}

func Conflict(format string, args ...any) *Error {
	return New(http.StatusConflict, CodeConflict, fmt.Errorf(format, args...))
}

// Upstream wraps a failed completion/embedding/datastore call.
func Upstream(op string, err error) *Error {
	return New(http.StatusBadGateway, CodeUpstream, fmt.Errorf("%s: %w", op, err))
}

// SchemaMismatch is never surfaced to HTTP callers; the offending attribute is dropped.
func SchemaMismatch(key string, reason string) *Error {
	return New(http.StatusUnprocessableEntity, CodeSchemaMismatch, fmt.Errorf("attribute %q: %s", key, reason))
}

// StatusOf returns the HTTP status for err and the envelope code, defaulting to 500.
func StatusOf(err error) (int, string) {
	var ae *Error
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status, ae.Code
	}
	return http.StatusInternalServerError, "internal_error"
}
