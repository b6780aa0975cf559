package apierr

import (
	"errors"
	"fmt"
)

// Type classifies a failed platform API interaction
type Type string

const (
	// TypeRateLimited means the platform asked us to slow down ("Please wait a few minutes")
	TypeRateLimited Type = "rate_limited"
	// TypeActionBlocked means the platform flagged the action as automation ("This action was blocked.")
	TypeActionBlocked Type = "action_blocked"
	// TypeNetworkTransient covers connection resets, TLS failures, timeouts and
	// malformed response bodies
	TypeNetworkTransient Type = "network_transient"
	// TypeUnrecognized is any non-success response we have no handling for
	TypeUnrecognized Type = "unrecognized"
	// TypeDataInconsistency covers things like a pagination cursor repeating;
	// logged but never fatal
	TypeDataInconsistency Type = "data_inconsistency"
)

// Error represents a classified platform API failure. Payload carries the raw
// response body for diagnosis when the failure is unrecognized.
type Error struct {
	Type    Type
	Message string
	Payload string
}

func (e *Error) Error() string {
	if e.Payload != "" {
		return fmt.Sprintf("instagram %s error: %s (payload: %s)", e.Type, e.Message, e.Payload)
	}
	return fmt.Sprintf("instagram %s error: %s", e.Type, e.Message)
}

// New creates a classified error
func New(t Type, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// NewWithPayload creates a classified error carrying the raw response payload
func NewWithPayload(t Type, payload string, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Payload: payload}
}

// IsRetryable reports whether the executor may retry after this error type.
// Rate limits are retryable up to a bound; network issues indefinitely.
func IsRetryable(t Type) bool {
	switch t {
	case TypeRateLimited, TypeNetworkTransient:
		return true
	default:
		return false
	}
}

// IsFatal reports whether the error type must abort the whole operation
// immediately. An action block is an account-safety signal; continuing makes
// it worse.
func IsFatal(t Type) bool {
	switch t {
	case TypeActionBlocked, TypeUnrecognized:
		return true
	default:
		return false
	}
}

// fatalError marks an error as operation-aborting regardless of its
// underlying type, e.g. a rate limit that exhausted its retry bound
type fatalError struct {
	err error
}

func (f *fatalError) Error() string { return f.err.Error() }
func (f *fatalError) Unwrap() error { return f.err }

// AsFatal wraps err so IsFatalError reports true for it
func AsFatal(err error) error {
	return &fatalError{err: err}
}

// IsFatalError reports whether err must abort the whole operation: either an
// inherently fatal classification or an error explicitly marked fatal.
func IsFatalError(err error) bool {
	var fe *fatalError
	if errors.As(err, &fe) {
		return true
	}
	var clsErr *Error
	if errors.As(err, &clsErr) {
		return IsFatal(clsErr.Type)
	}
	return false
}
