// Package errors provides error handling for reportwatch.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints and details that stay out of user-facing messages
//
// Usage:
//
//	if err := dial(); err != nil {
//	    return errors.Wrap(err, "failed to open report socket")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrJobTimeout) {
//	    // no terminal frame in time
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// Hints and details (never shown verbatim to end users)
var (
	WithHint      = crdb.WithHint
	WithHintf     = crdb.WithHintf
	WithDetail    = crdb.WithDetail
	WithDetailf   = crdb.WithDetailf
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
	FlattenHints  = crdb.FlattenHints
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll

	GetReportableStackTrace = crdb.GetReportableStackTrace

	// Mark makes errors.Is(err, reference) true while keeping err's message
	Mark = crdb.Mark
)

// Job tracking sentinels. Wrap these with errors.Wrap() to add context while
// preserving the type for errors.Is().
var (
	// ErrConnectTimeout: the socket did not open within the connect window
	ErrConnectTimeout = New("connect timeout")

	// ErrConnect: the transport failed before reaching the open state
	ErrConnect = New("connection failed")

	// ErrJobTimeout: the socket opened but no terminal frame arrived in time
	ErrJobTimeout = New("job timed out")

	// ErrGenerationFailed: the backend reported a terminal failure
	ErrGenerationFailed = New("report generation failed")

	// ErrConnectionClosed: the socket closed before a terminal frame arrived
	ErrConnectionClosed = New("connection closed before completion")

	// ErrRestarted: a newer job replaced this one
	ErrRestarted = New("job replaced by a newer job")

	// ErrClosed: the tracker itself was shut down
	ErrClosed = New("tracker closed")

	// ErrRateLimited: the trigger was throttled locally before reaching the backend
	ErrRateLimited = New("too many report requests")

	// ErrProtocolMismatch: the backend speaks an unsupported protocol version
	ErrProtocolMismatch = New("unsupported backend protocol")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")
)

// IsConnectFailure reports whether err is a connect-level failure
// (connect timeout or transport error before open).
func IsConnectFailure(err error) bool {
	return err != nil && IsAny(err, ErrConnectTimeout, ErrConnect)
}

// IsTimeout reports whether err is a connect or job timeout.
func IsTimeout(err error) bool {
	return err != nil && IsAny(err, ErrConnectTimeout, ErrJobTimeout)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}
