package scheduler

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hazz-dev/pingwatch/internal/checker"
	"github.com/hazz-dev/pingwatch/internal/pingerr"
)

// OutcomeWriter persists check outcomes.
type OutcomeWriter interface {
	Append(o checker.Outcome) error
}

// DebugLog is the best-effort secondary log channel.
type DebugLog interface {
	Printf(format string, args ...any)
}

type nopDebugLog struct{}

func (nopDebugLog) Printf(string, ...any) {}

// State is a position in the runner state machine.
type State int32

const (
	StateIdle State = iota
	StateSelecting
	StateChecking
	StateLogging
	StateWaiting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelecting:
		return "selecting"
	case StateChecking:
		return "checking"
	case StateLogging:
		return "logging"
	case StateWaiting:
		return "waiting"
	default:
		return "unknown"
	}
}

// Settings holds the runner cadence.
type Settings struct {
	Jitter Jitter

	// Cooldown replaces the jittered delay after an iteration fails unexpectedly.
	Cooldown time.Duration

	// MaxIterations stops the runner after that many iterations. Zero means never.
	MaxIterations int
}

// DefaultCooldown is the wait after a failed iteration.
const DefaultCooldown = 60 * time.Second

// Runner checks one endpoint per cycle, appends the outcome to the log and
// waits a jittered delay. It runs until its context is cancelled.
type Runner struct {
	id        string
	endpoints []string
	checker   checker.Checker
	writer    OutcomeWriter
	settings  Settings
	selector  Selector
	clock     Clock
	rng       *rand.Rand
	debug     DebugLog
	onResult  func(checker.Outcome)
	logger    *slog.Logger

	state      atomic.Int32
	iterations atomic.Int64
	wg         sync.WaitGroup
}

// New creates a Runner. An empty endpoint set is a configuration error.
// Pass nil logger to use the default logger.
func New(endpoints []string, c checker.Checker, w OutcomeWriter, settings Settings, logger *slog.Logger) (*Runner, error) {
	if len(endpoints) == 0 {
		return nil, pingerr.New(pingerr.ErrConfiguration, nil, "runner needs at least one endpoint")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = DefaultCooldown
	}

	id := uuid.NewString()
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))

	return &Runner{
		id:        id,
		endpoints: append([]string(nil), endpoints...),
		checker:   c,
		writer:    w,
		settings:  settings,
		selector:  NewRandomSelector(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))),
		clock:     realClock{},
		rng:       rng,
		debug:     nopDebugLog{},
		logger:    logger.With("runner", id),
	}, nil
}

// SetOnResult sets the callback invoked after each outcome has been logged.
func (r *Runner) SetOnResult(fn func(checker.Outcome)) {
	r.onResult = fn
}

// SetSelector replaces the random endpoint selector.
func (r *Runner) SetSelector(s Selector) {
	r.selector = s
}

// SetClock replaces the clock used to wait between cycles.
func (r *Runner) SetClock(c Clock) {
	r.clock = c
}

// SetRand replaces the random source of the jitter.
func (r *Runner) SetRand(rng *rand.Rand) {
	r.rng = rng
}

// SetDebug sets the channel that receives iteration failures.
func (r *Runner) SetDebug(d DebugLog) {
	if d == nil {
		d = nopDebugLog{}
	}
	r.debug = d
}

// ID identifies this runner instance in logs and notifications.
func (r *Runner) ID() string {
	return r.id
}

// State returns the current state.
func (r *Runner) State() State {
	return State(r.state.Load())
}

// StateName returns the current state as text.
func (r *Runner) StateName() string {
	return r.State().String()
}

// Iterations returns the number of finished iterations.
func (r *Runner) Iterations() int64 {
	return r.iterations.Load()
}

func (r *Runner) setState(s State) {
	r.state.Store(int32(s))
}

// Start runs the loop in a new goroutine. It is non-blocking.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Run(ctx)
	}()
}

// Wait blocks until a loop started by Start has exited.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Run executes iterations until ctx is cancelled or MaxIterations is reached.
// A failing iteration never ends the loop; it is followed by the cooldown instead.
func (r *Runner) Run(ctx context.Context) {
	defer r.setState(StateIdle)

	lo, hi := r.settings.Jitter.Bounds()
	r.logger.Info("runner started",
		"endpoints", len(r.endpoints),
		"delay_min", lo,
		"delay_max", hi,
		"max_iterations", r.settings.MaxIterations,
	)
	r.debug.Printf("runner %s started with %d endpoint(s)", r.id, len(r.endpoints))

	for ctx.Err() == nil {
		delay, aborted, err := r.runOnce(ctx)
		if aborted {
			break
		}
		n := r.iterations.Add(1)
		if err != nil {
			r.logger.Error("runner iteration failed", "iteration", n, "error", err, "cooldown", r.settings.Cooldown)
			r.debug.Printf("iteration %d failed: %v; retrying in %s", n, err, r.settings.Cooldown)
			delay = r.settings.Cooldown
		}

		if r.settings.MaxIterations > 0 && n >= int64(r.settings.MaxIterations) {
			r.logger.Info("iteration limit reached", "iterations", n)
			return
		}

		r.setState(StateWaiting)
		r.logger.Debug("waiting", "delay", delay)
		if !r.sleep(ctx, delay) {
			break
		}
	}

	r.logger.Info("runner stopped", "iterations", r.iterations.Load())
	r.debug.Printf("runner %s stopped", r.id)
}

// RunOnce performs one Selecting, Checking and Logging pass and returns the
// delay to wait before the next one. Panics are returned as ErrUnexpected.
// A check interrupted by ctx is not logged and yields (0, nil).
func (r *Runner) RunOnce(ctx context.Context) (time.Duration, error) {
	delay, _, err := r.runOnce(ctx)
	return delay, err
}

// runOnce reports aborted when ctx ended the check before it could be logged.
func (r *Runner) runOnce(ctx context.Context) (delay time.Duration, aborted bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = pingerr.New(pingerr.ErrUnexpected, nil, "panic: %v", p)
		}
	}()

	r.setState(StateSelecting)
	endpoint, err := r.selector.Select(r.endpoints)
	if err != nil {
		return 0, false, err
	}

	r.setState(StateChecking)
	outcome := r.checker.Check(ctx, endpoint)
	if ctx.Err() != nil {
		return 0, true, nil
	}

	r.logger.Info("check outcome",
		"endpoint", outcome.Endpoint,
		"kind", outcome.Kind,
		"status_code", outcome.StatusCode,
		"response_time", outcome.ResponseTime,
		"error", outcome.Error,
	)

	r.setState(StateLogging)
	if err := r.writer.Append(outcome); err != nil {
		r.logger.Warn("appending outcome to log", "endpoint", outcome.Endpoint, "error", err)
	}

	if r.onResult != nil {
		r.onResult(outcome)
	}

	return r.settings.Jitter.NextDelay(r.rng), false, nil
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	t := r.clock.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C():
		return true
	}
}
