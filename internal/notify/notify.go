// Package notify forwards check outcomes to a notification sender without
// blocking the runner.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hazz-dev/pingwatch/internal/checker"
)

// Mode selects which outcomes produce a notification.
type Mode string

const (
	// ModeEvery notifies on every outcome.
	ModeEvery Mode = "every"
	// ModeChange notifies only when an endpoint flips between success and failure.
	ModeChange Mode = "change"
	// ModeOff disables notifications.
	ModeOff Mode = "off"
)

// Notification is the payload handed to a Sender.
type Notification struct {
	Runner         string `json:"runner"`
	Endpoint       string `json:"endpoint"`
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	Timestamp      string `json:"timestamp"`
	StatusCode     int    `json:"status_code,omitempty"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	// Previous is the endpoint's prior success flag, nil on its first outcome.
	Previous *bool `json:"previous_success,omitempty"`
}

// Sender delivers a notification.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Notifier decides whether an outcome is worth a notification and sends it
// asynchronously.
type Notifier struct {
	sender      Sender
	mode        Mode
	minInterval time.Duration
	timeout     time.Duration
	runner      string
	now         func() time.Time
	logger      *slog.Logger

	mu       sync.Mutex
	last     map[string]bool
	lastSent time.Time
	wg       sync.WaitGroup
}

// Options configures a Notifier.
type Options struct {
	Mode Mode
	// MinInterval is the minimum time between two sent notifications.
	MinInterval time.Duration
	// Timeout bounds a single Send. Zero means 10s.
	Timeout time.Duration
	// Runner identifies the originating runner in payloads.
	Runner string
}

// New creates a Notifier. Pass nil logger to use the default logger.
func New(sender Sender, opts Options, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Mode == "" {
		opts.Mode = ModeEvery
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Notifier{
		sender:      sender,
		mode:        opts.Mode,
		minInterval: opts.MinInterval,
		timeout:     opts.Timeout,
		runner:      opts.Runner,
		now:         time.Now,
		logger:      logger,
		last:        make(map[string]bool),
	}
}

// SetNow replaces the clock used for rate limiting.
func (n *Notifier) SetNow(now func() time.Time) {
	n.now = now
}

// Notify records the outcome and, if the mode and rate limit allow, sends a
// notification in the background. It never blocks on the sender.
func (n *Notifier) Notify(o checker.Outcome) {
	if n.mode == ModeOff || n.sender == nil {
		return
	}

	success := o.Success()

	n.mu.Lock()
	prev, seen := n.last[o.Endpoint]
	n.last[o.Endpoint] = success

	if n.mode == ModeChange && (!seen || prev == success) {
		n.mu.Unlock()
		return
	}
	now := n.now()
	if n.minInterval > 0 && !n.lastSent.IsZero() && now.Sub(n.lastSent) < n.minInterval {
		n.mu.Unlock()
		n.logger.Info("notification suppressed by min_interval", "endpoint", o.Endpoint)
		return
	}
	n.lastSent = now
	n.mu.Unlock()

	msg := Notification{
		Runner:         n.runner,
		Endpoint:       o.Endpoint,
		Success:        success,
		Message:        o.Message(),
		Timestamp:      o.Timestamp(),
		StatusCode:     o.StatusCode,
		ResponseTimeMs: o.ResponseTime.Milliseconds(),
	}
	if seen {
		msg.Previous = &prev
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.sender.Send(ctx, msg); err != nil {
			n.logger.Error("sending notification", "endpoint", msg.Endpoint, "error", err)
		}
	}()
}

// Wait blocks until all in-flight sends have finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
