// Package apperrors defines the typed business errors returned by the
// registration engine. Every error carries a machine-readable Code and a stable,
// user-facing Message that clients may display verbatim.
package apperrors

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Validation
	CodeInvalidInput Code = "INVALID_INPUT"

	// Conflict
	CodeAlreadyRegistered       Code = "ALREADY_REGISTERED"
	CodeEventFull               Code = "EVENT_FULL"
	CodeAlreadyDecided          Code = "ALREADY_DECIDED"
	CodeInvalidStatusTransition Code = "INVALID_STATUS_TRANSITION"

	// Policy
	CodeWindowClosed    Code = "WINDOW_CLOSED"
	CodeTooLateToCancel Code = "TOO_LATE_TO_CANCEL"

	// Authorization
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotOwner        Code = "NOT_OWNER"
	CodeNotEventCreator Code = "NOT_EVENT_CREATOR"

	// Not found
	CodeEventNotFound        Code = "EVENT_NOT_FOUND"
	CodeRegistrationNotFound Code = "REGISTRATION_NOT_FOUND"
	CodeNotRegistered        Code = "NOT_REGISTERED"

	// Storage
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
)

// Kind groups codes into the categories callers branch on.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindPolicy        Kind = "policy"
	KindAuthorization Kind = "authorization"
	KindNotFound      Kind = "not_found"
	KindTransient     Kind = "transient"
	KindInternal      Kind = "internal"
)

// Kind returns the category of c.
func (c Code) Kind() Kind {
	switch c {
	case CodeInvalidInput:
		return KindValidation
	case CodeAlreadyRegistered, CodeEventFull, CodeAlreadyDecided, CodeInvalidStatusTransition:
		return KindConflict
	case CodeWindowClosed, CodeTooLateToCancel:
		return KindPolicy
	case CodeUnauthenticated, CodeForbidden, CodeNotOwner, CodeNotEventCreator:
		return KindAuthorization
	case CodeEventNotFound, CodeRegistrationNotFound, CodeNotRegistered:
		return KindNotFound
	case CodeStorageUnavailable:
		return KindTransient
	default:
		return KindInternal
	}
}

// HTTPStatus maps c to the response status the API contract promises.
// A full event and a closed window are 400 rather than 409: only a duplicate
// join is reported as a conflict to clients.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidInput, CodeEventFull, CodeWindowClosed, CodeTooLateToCancel:
		return http.StatusBadRequest
	case CodeAlreadyRegistered, CodeAlreadyDecided, CodeInvalidStatusTransition:
		return http.StatusConflict
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden, CodeNotOwner, CodeNotEventCreator:
		return http.StatusForbidden
	case CodeEventNotFound, CodeRegistrationNotFound, CodeNotRegistered:
		return http.StatusNotFound
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the engine's typed error.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Kind returns the category of the error's code.
func (e *Error) Kind() Kind {
	return e.Code.Kind()
}

// New creates an error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an error that keeps cause for logging.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Invalid creates a validation error.
func Invalid(message string) *Error {
	return New(CodeInvalidInput, message)
}

// Sentinel values for errors.Is checks. Their messages are the stable reason
// strings surfaced to clients.
var (
	ErrAlreadyRegistered   = New(CodeAlreadyRegistered, "You are already registered for this event.")
	ErrEventFull           = New(CodeEventFull, "This event is full.")
	ErrAlreadyDecided      = New(CodeAlreadyDecided, "This registration has already been decided.")
	ErrWindowClosed        = New(CodeWindowClosed, "Registration for this event is closed.")
	ErrTooLateToCancel     = New(CodeTooLateToCancel, "Cannot cancel registration within 2 days of the event.")
	ErrUnauthenticated     = New(CodeUnauthenticated, "Authentication required.")
	ErrForbidden           = New(CodeForbidden, "You are not allowed to perform this action.")
	ErrNotOwner            = New(CodeNotOwner, "You can only cancel your own registration.")
	ErrNotEventCreator     = New(CodeNotEventCreator, "Only the admin who created this event can change its status.")
	ErrEventNotFound       = New(CodeEventNotFound, "Event not found.")
	ErrRegistrationMissing = New(CodeRegistrationNotFound, "Registration not found.")
	ErrNotRegistered       = New(CodeNotRegistered, "You are not registered for this event.")
)

// Storage wraps an unexpected storage failure as a retryable error.
func Storage(cause error) *Error {
	return Wrap(CodeStorageUnavailable, "Storage is temporarily unavailable, please retry.", cause)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code carried by err, or CodeUnknown.
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeUnknown
}
