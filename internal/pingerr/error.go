// Package pingerr defines the error kinds shared by the pingwatch components.
//
// Use errors.Is with one of the Err* kinds to learn what failed:
//
//	if errors.Is(err, pingerr.ErrPersistence) { ... }
package pingerr

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration means the monitor cannot start, e.g. no endpoints.
	ErrConfiguration = errors.New("configuration error")

	// ErrTransport means no HTTP response was received.
	ErrTransport = errors.New("transport error")

	// ErrHTTPFailure means a response arrived with a not-ok status code.
	ErrHTTPFailure = errors.New("http failure")

	// ErrPersistence means the log file could not be created, appended or truncated.
	ErrPersistence = errors.New("persistence error")

	// ErrParse means a log line is not a valid record.
	ErrParse = errors.New("parse error")

	// ErrUnexpected is any other fault inside a runner iteration.
	ErrUnexpected = errors.New("unexpected error")
)

// Error is an error with a kind and an optional cause.
type Error struct {
	kind    error
	from    error
	message string
}

// New creates a new Error of kind. The message of from is appended if it is not nil.
func New(kind error, from error, format string, args ...any) Error {
	msg := fmt.Sprintf(format, args...)
	if from != nil {
		if msg != "" {
			msg += ": "
		}
		msg += from.Error()
	}

	return Error{
		kind:    kind,
		from:    from,
		message: msg,
	}
}

// Error implements error interface.
func (e Error) Error() string {
	return e.message
}

// Unwrap returns the cause.
func (e Error) Unwrap() error {
	return e.from
}

// Is reports whether err is the kind of e.
func (e Error) Is(err error) bool {
	return e.kind == err
}

// Kind returns the kind of e.
func (e Error) Kind() error {
	return e.kind
}
