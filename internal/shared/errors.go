package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned by stores when a unique constraint rejects a row.
	ErrAlreadyExists = errors.New("already exists")
	// ErrIdempotencyConflict indicates a duplicate key.
	ErrIdempotencyConflict = errors.New("idempotent request already processed")
	// ErrLockNotObtained is returned by a Locker when the key is held elsewhere.
	ErrLockNotObtained = errors.New("lock not obtained")
)

// Kind classifies an Error for transport mapping.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindInternal     Kind = "internal"
)

// FieldError describes a single invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the user-facing error carried out of every service. Message is shown
// to the caller as-is, Err is kept for logs only.
type Error struct {
	Kind    Kind
	Message string
	Details []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetails returns a copy of e carrying extra field details.
func (e *Error) WithDetails(details ...FieldError) *Error {
	cp := *e
	cp.Details = append(append([]FieldError{}, e.Details...), details...)
	return &cp
}

// Validation builds a KindValidation error.
func Validation(msg string, details ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

// NotFound builds a KindNotFound error.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg, Err: ErrNotFound}
}

// Conflict builds a KindConflict error.
func Conflict(msg string, details ...FieldError) *Error {
	return &Error{Kind: KindConflict, Message: msg, Details: details}
}

// Unauthorized builds a KindUnauthorized error.
func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// Forbidden builds a KindForbidden error.
func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

// Internal wraps an unexpected failure. The cause never reaches the caller.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "error interno, intente nuevamente", Err: err}
}

// AsError extracts an *Error from err, wrapping anything else as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// KindOf reports the Kind of err, KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return AsError(err).Kind
}

// UserSafeMessage returns the message that may be shown to end users.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	return AsError(err).Message
}
