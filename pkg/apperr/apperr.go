// Package apperr provides the error taxonomy shared by services and the
// HTTP layer. Services return errors built here; api/respond.go maps each
// kind to a status code without leaking internals.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error class.
type Kind string

const (
	KindValidation   Kind = "VALIDATION"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindForbidden    Kind = "FORBIDDEN"
	KindNotFound     Kind = "NOT_FOUND"
	KindConflict     Kind = "CONFLICT"
	KindRateLimited  Kind = "RATE_LIMITED"
	KindInternal     Kind = "INTERNAL"
)

// Error is a domain error carrying a kind, a caller-safe message and
// optional field-level detail for validation failures.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// New creates a domain error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and caller-safe message to an underlying error.
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, wrapped: err}
}

// Validation creates a validation error with field detail.
func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// KindOf extracts the kind from any error. Unknown errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// MessageOf returns the caller-safe message for err. Unknown errors get a
// generic message so internals never reach the client.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "an unexpected error occurred"
}

// FieldsOf returns field-level detail when present.
func FieldsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}
