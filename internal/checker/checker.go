package checker

import (
	"context"
	"fmt"
	"time"
)

// Checker performs a single health check against an endpoint.
//
// Check never panics and never returns an error: every failure becomes an Outcome.
type Checker interface {
	Check(ctx context.Context, endpoint string) Outcome
}

// Func adapts a function to the Checker interface.
type Func func(ctx context.Context, endpoint string) Outcome

func (f Func) Check(ctx context.Context, endpoint string) Outcome {
	return f(ctx, endpoint)
}

// transportFailure builds a failed Outcome for an error that happened before any response arrived.
func transportFailure(endpoint string, start, end time.Time, format string, args ...any) Outcome {
	return Outcome{
		Endpoint:     endpoint,
		Kind:         KindTransportError,
		Error:        fmt.Sprintf(format, args...),
		ResponseTime: end.Sub(start),
		CheckedAt:    start.UTC(),
	}
}
