package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/hazz-dev/pingwatch/internal/checker"
	"github.com/hazz-dev/pingwatch/internal/logfile"
	"github.com/hazz-dev/pingwatch/internal/pingerr"
	"github.com/hazz-dev/pingwatch/internal/scheduler"
)

// mockChecker returns a fixed outcome and counts calls.
type mockChecker struct {
	calls atomic.Int32
}

func (m *mockChecker) Check(_ context.Context, endpoint string) checker.Outcome {
	m.calls.Add(1)
	return checker.Outcome{Endpoint: endpoint, Kind: checker.KindSuccess, StatusCode: 200, CheckedAt: time.Now()}
}

// mockWriter records appended outcomes.
type mockWriter struct {
	mu       sync.Mutex
	outcomes []checker.Outcome
	err      error
}

func (m *mockWriter) Append(o checker.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.outcomes = append(m.outcomes, o)
	return nil
}

func (m *mockWriter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.outcomes)
}

// fakeClock fires every timer immediately and records the requested delays.
type fakeClock struct {
	mu     sync.Mutex
	delays []time.Duration
}

type firedTimer struct {
	c chan time.Time
}

func (t firedTimer) C() <-chan time.Time { return t.c }
func (t firedTimer) Stop() bool          { return false }

func (f *fakeClock) NewTimer(d time.Duration) scheduler.Timer {
	f.mu.Lock()
	f.delays = append(f.delays, d)
	f.mu.Unlock()
	c := make(chan time.Time, 1)
	c <- time.Now()
	return firedTimer{c: c}
}

func (f *fakeClock) recorded() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.delays...)
}

// blockingClock never fires.
type blockingClock struct{}

func (blockingClock) NewTimer(time.Duration) scheduler.Timer {
	return firedTimer{c: make(chan time.Time)}
}

type recordingDebug struct {
	mu    sync.Mutex
	lines []string
}

func (d *recordingDebug) Printf(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = append(d.lines, fmt.Sprintf(format, args...))
}

func (d *recordingDebug) contains(s string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range d.lines {
		if strings.Contains(l, s) {
			return true
		}
	}
	return false
}

type failingSelector struct{}

func (failingSelector) Select([]string) (string, error) {
	return "", errors.New("selector exploded")
}

var testSettings = scheduler.Settings{
	Jitter:   scheduler.DefaultJitter,
	Cooldown: 60 * time.Second,
}

func newRunner(t *testing.T, c checker.Checker, w scheduler.OutcomeWriter, settings scheduler.Settings) *scheduler.Runner {
	t.Helper()
	r, err := scheduler.New([]string{"http://example.test/health"}, c, w, settings, nil)
	if err != nil {
		t.Fatalf("scheduler.New: %v", err)
	}
	r.SetRand(rand.New(rand.NewPCG(1, 2)))
	return r
}

func TestNew_NoEndpoints(t *testing.T) {
	_, err := scheduler.New(nil, &mockChecker{}, &mockWriter{}, testSettings, nil)
	if !errors.Is(err, pingerr.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRunner_IDIsUnique(t *testing.T) {
	a := newRunner(t, &mockChecker{}, &mockWriter{}, testSettings)
	b := newRunner(t, &mockChecker{}, &mockWriter{}, testSettings)
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("expected distinct non-empty IDs, got %q and %q", a.ID(), b.ID())
	}
}

func TestRunner_RunOnce(t *testing.T) {
	mc := &mockChecker{}
	w := &mockWriter{}
	r := newRunner(t, mc, w, testSettings)

	var got []checker.Outcome
	r.SetOnResult(func(o checker.Outcome) { got = append(got, o) })

	delay, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if delay < 60*time.Second || delay > 65*time.Second {
		t.Errorf("expected jittered delay in [60s, 65s], got %v", delay)
	}
	if w.count() != 1 {
		t.Errorf("expected 1 appended outcome, got %d", w.count())
	}
	if len(got) != 1 || got[0].Endpoint != "http://example.test/health" {
		t.Errorf("expected onResult with the outcome, got %+v", got)
	}
}

func TestRunner_RunsUntilMaxIterations(t *testing.T) {
	mc := &mockChecker{}
	w := &mockWriter{}
	settings := testSettings
	settings.MaxIterations = 25
	r := newRunner(t, mc, w, settings)

	clock := &fakeClock{}
	r.SetClock(clock)

	r.Run(context.Background())

	if n := mc.calls.Load(); n != 25 {
		t.Errorf("expected 25 checks, got %d", n)
	}
	if w.count() != 25 {
		t.Errorf("expected 25 appended outcomes, got %d", w.count())
	}
	if r.Iterations() != 25 {
		t.Errorf("expected 25 iterations, got %d", r.Iterations())
	}
	// No wait after the final iteration.
	delays := clock.recorded()
	if len(delays) != 24 {
		t.Fatalf("expected 24 waits, got %d", len(delays))
	}
	for _, d := range delays {
		if d < 60*time.Second || d > 65*time.Second {
			t.Errorf("wait %v outside [60s, 65s]", d)
		}
	}
	if r.State() != scheduler.StateIdle {
		t.Errorf("expected idle after Run returns, got %s", r.State())
	}
}

func TestRunner_PanickingCheckerUsesCooldown(t *testing.T) {
	var calls atomic.Int32
	panicky := checker.Func(func(ctx context.Context, endpoint string) checker.Outcome {
		if calls.Add(1) == 1 {
			panic("unexpected nil")
		}
		return checker.Outcome{Endpoint: endpoint, Kind: checker.KindSuccess, StatusCode: 200}
	})

	w := &mockWriter{}
	settings := testSettings
	settings.MaxIterations = 3
	r := newRunner(t, panicky, w, settings)

	clock := &fakeClock{}
	debug := &recordingDebug{}
	r.SetClock(clock)
	r.SetDebug(debug)

	r.Run(context.Background())

	if calls.Load() != 3 {
		t.Fatalf("loop must survive a panic: expected 3 checks, got %d", calls.Load())
	}
	if w.count() != 2 {
		t.Errorf("expected 2 appended outcomes, got %d", w.count())
	}
	delays := clock.recorded()
	if len(delays) != 2 || delays[0] != 60*time.Second {
		t.Errorf("expected cooldown of 60s after the panic, got %v", delays)
	}
	if !debug.contains("unexpected nil") {
		t.Errorf("expected panic recorded to debug channel, got %v", debug.lines)
	}
}

func TestRunner_SelectorErrorUsesCooldown(t *testing.T) {
	settings := testSettings
	settings.MaxIterations = 2
	settings.Cooldown = 90 * time.Second
	r := newRunner(t, &mockChecker{}, &mockWriter{}, settings)
	r.SetSelector(failingSelector{})

	clock := &fakeClock{}
	r.SetClock(clock)
	r.Run(context.Background())

	delays := clock.recorded()
	if len(delays) != 1 || delays[0] != 90*time.Second {
		t.Errorf("expected one 90s cooldown, got %v", delays)
	}
}

func TestRunner_WriterErrorDoesNotStopLoop(t *testing.T) {
	mc := &mockChecker{}
	w := &mockWriter{err: pingerr.New(pingerr.ErrPersistence, syscall.ENOSPC, "writing log file")}
	settings := testSettings
	settings.MaxIterations = 5
	settings.Cooldown = 2 * time.Minute
	r := newRunner(t, mc, w, settings)

	clock := &fakeClock{}
	r.SetClock(clock)
	r.Run(context.Background())

	if mc.calls.Load() != 5 {
		t.Errorf("expected 5 checks despite write errors, got %d", mc.calls.Load())
	}
	// Write failures are not iteration failures: the jittered delay is kept.
	for _, d := range clock.recorded() {
		if d == settings.Cooldown {
			t.Errorf("unexpected cooldown after a write failure")
		}
	}
}

func TestRunner_ContextCancellation(t *testing.T) {
	mc := &mockChecker{}
	r := newRunner(t, mc, &mockWriter{}, testSettings)
	r.SetClock(blockingClock{})

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	// Wait for the first check, then the runner parks in Waiting.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.State() == scheduler.StateWaiting {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if r.State() != scheduler.StateWaiting {
		t.Fatalf("expected waiting state, got %s", r.State())
	}
	cancel()

	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return within 2s after context cancel")
	}
	if mc.calls.Load() != 1 {
		t.Errorf("expected exactly 1 check, got %d", mc.calls.Load())
	}
}

func TestRunner_CancelledDuringCheckSkipsLogging(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := checker.Func(func(ctx context.Context, endpoint string) checker.Outcome {
		cancel()
		return checker.Outcome{Endpoint: endpoint, Kind: checker.KindTransportError, Error: "context canceled"}
	})
	w := &mockWriter{}
	r := newRunner(t, c, w, testSettings)
	r.SetClock(&fakeClock{})

	r.Run(ctx)

	if w.count() != 0 {
		t.Errorf("expected aborted check not to be logged, got %d outcomes", w.count())
	}
	if r.Iterations() != 0 {
		t.Errorf("expected aborted check not to count as an iteration, got %d", r.Iterations())
	}
}

func TestRunner_RealTimerShortDelays(t *testing.T) {
	mc := &mockChecker{}
	w := &mockWriter{}
	settings := scheduler.Settings{
		Jitter: scheduler.Jitter{Base: 5 * time.Millisecond, Min: time.Millisecond, Max: 2 * time.Millisecond, Resolution: time.Millisecond},
	}
	r := newRunner(t, mc, w, settings)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	r.Start(ctx)
	<-ctx.Done()
	r.Wait()

	// Should have at least 5 checks in 200ms with a 6-7ms period.
	if n := mc.calls.Load(); n < 5 {
		t.Errorf("expected at least 5 checks in 200ms, got %d", n)
	}
}

func TestState_String(t *testing.T) {
	names := map[scheduler.State]string{
		scheduler.StateIdle:      "idle",
		scheduler.StateSelecting: "selecting",
		scheduler.StateChecking:  "checking",
		scheduler.StateLogging:   "logging",
		scheduler.StateWaiting:   "waiting",
		scheduler.State(99):      "unknown",
	}
	for s, want := range names {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}

// roundTripFunc stubs the HTTP transport for end-to-end runs.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func runEndToEnd(t *testing.T, transport http.RoundTripper) []logfile.Record {
	t.Helper()
	path := filepath.Join(t.TempDir(), "service_logs.json")

	c := checker.NewHTTP(checker.Options{Timeout: 30 * time.Second, Transport: transport})
	settings := scheduler.Settings{
		Jitter:        scheduler.Jitter{Base: 55 * time.Second, Min: 5 * time.Second, Max: 10 * time.Second},
		MaxIterations: 1,
	}
	r, err := scheduler.New([]string{"http://example.test/health"}, c, logfile.NewWriter(path, nil), settings, nil)
	if err != nil {
		t.Fatal(err)
	}
	r.SetClock(blockingClock{})
	r.Run(context.Background())

	records, err := logfile.NewReader(path).Drain()
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	return records
}

func TestEndToEnd_Success(t *testing.T) {
	records := runEndToEnd(t, roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 200, Body: http.NoBody, Header: make(http.Header), Request: r}, nil
	}))

	if len(records) != 1 {
		t.Fatalf("expected exactly 1 record, got %d", len(records))
	}
	if !records[0].Success {
		t.Error("expected success=true")
	}
	if records[0].Message != "✓ Successfully pinged http://example.test/health: 200" {
		t.Errorf("unexpected message %q", records[0].Message)
	}
	if _, err := time.Parse(checker.TimestampLayout, records[0].Timestamp); err != nil {
		t.Errorf("timestamp %q not in YYYY-MM-DD HH:MM:SS: %v", records[0].Timestamp, err)
	}
}

func TestEndToEnd_ConnectionRefused(t *testing.T) {
	records := runEndToEnd(t, roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
	}))

	if len(records) != 1 {
		t.Fatalf("expected exactly 1 record, got %d", len(records))
	}
	if records[0].Success {
		t.Error("expected success=false")
	}
	if !strings.HasPrefix(records[0].Message, "✗ Error pinging") {
		t.Errorf("unexpected message %q", records[0].Message)
	}
}
