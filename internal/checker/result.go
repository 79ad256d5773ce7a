package checker

import (
	"fmt"
	"time"
)

// TimestampLayout is the layout of outcome and log record timestamps (UTC, second precision).
const TimestampLayout = "2006-01-02 15:04:05"

// Kind classifies the outcome of a single health check.
type Kind string

const (
	KindSuccess        Kind = "success"
	KindHTTPFailure    Kind = "http_failure"
	KindTransportError Kind = "transport_error"
)

// Outcome is the result of one health check attempt. It is never mutated after creation.
type Outcome struct {
	Endpoint     string
	Kind         Kind
	StatusCode   int
	Error        string
	ResponseTime time.Duration

	// CheckedAt is when the request started, not when the response arrived.
	CheckedAt time.Time
}

// Success reports whether the endpoint answered with an ok status.
func (o Outcome) Success() bool {
	return o.Kind == KindSuccess
}

// Timestamp returns CheckedAt formatted as "YYYY-MM-DD HH:MM:SS" in UTC.
func (o Outcome) Timestamp() string {
	return o.CheckedAt.UTC().Format(TimestampLayout)
}

// Message renders the outcome for humans.
func (o Outcome) Message() string {
	switch o.Kind {
	case KindSuccess:
		return fmt.Sprintf("✓ Successfully pinged %s: %d", o.Endpoint, o.StatusCode)
	case KindHTTPFailure:
		return fmt.Sprintf("⚠ Ping failed for %s: %d", o.Endpoint, o.StatusCode)
	default:
		return fmt.Sprintf("✗ Error pinging %s: %s", o.Endpoint, o.Error)
	}
}

// IsOK reports whether code is an ok HTTP status: 2xx, or 3xx left unfollowed.
func IsOK(code int) bool {
	return 200 <= code && code < 400
}
