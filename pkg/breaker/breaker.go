package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/tessera-labs/weave/pkg/logger"
)

// State is the current position of the breaker's state machine.
type State string

const (
	// StateClosed means the primary function is attempted normally.
	StateClosed State = "closed"
	// StateOpen means the fallback is used immediately; the primary is
	// not attempted until the timeout window elapses.
	StateOpen State = "open"
	// StateHalfOpen permits one trial of the primary after the timeout.
	StateHalfOpen State = "half_open"
)

// Options configures a Breaker.
type Options struct {
	// FailureThreshold is the number of consecutive primary failures
	// that trips the breaker from closed to open.
	FailureThreshold int
	// Timeout is how long the breaker stays open before permitting a
	// half-open trial call.
	Timeout time.Duration

	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

// Breaker wraps a fallible primary function with a deterministic fallback.
// After FailureThreshold consecutive primary failures the breaker opens and
// routes every call straight to the fallback until Timeout has elapsed, at
// which point a single trial of the primary is permitted.
//
// Breaker methods never return an error from the primary: every primary
// failure is caught and routed to the fallback. State is guarded by a
// mutex so concurrent callers cannot race the failure counter.
type Breaker[T any] struct {
	mu              sync.Mutex
	state           State
	failures        int
	lastFailureTime time.Time

	opts Options
}

// New creates a Breaker with the given options. A FailureThreshold below 1
// defaults to 3; a non-positive Timeout defaults to 60 seconds.
func New[T any](opts Options) *Breaker[T] {
	if opts.FailureThreshold < 1 {
		opts.FailureThreshold = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Breaker[T]{
		state: StateClosed,
		opts:  opts,
	}
}

// Call runs primary under the breaker's policy, returning fallback's result
// whenever the primary is skipped or fails. The returned error is the
// fallback's error; primary errors are absorbed into the state machine.
func (b *Breaker[T]) Call(
	ctx context.Context,
	primary func(context.Context) (T, error),
	fallback func(context.Context) (T, error),
) (T, error) {
	if !b.allowPrimary() {
		return fallback(ctx)
	}

	result, err := primary(ctx)
	if err != nil {
		b.recordFailure()
		logger.Debug("[Breaker] Primary failed, using fallback", "state", b.State(), "failures", b.Failures(), "err", err)
		return fallback(ctx)
	}

	b.recordSuccess()
	return result, nil
}

// allowPrimary decides whether the primary may be attempted, transitioning
// open to half-open when the timeout window has elapsed.
func (b *Breaker[T]) allowPrimary() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		// Only one trial call at a time in half-open; further callers
		// take the fallback until the trial resolves.
		return false
	case StateOpen:
		if b.opts.Clock().Sub(b.lastFailureTime) >= b.opts.Timeout {
			b.state = StateHalfOpen
			return true
		}
		return false
	}
	return false
}

func (b *Breaker[T]) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureTime = b.opts.Clock()
	if b.state == StateHalfOpen {
		// Failed trial: back to open, timeout window restarts.
		b.state = StateOpen
		return
	}

	b.failures++
	if b.failures >= b.opts.FailureThreshold {
		b.state = StateOpen
	}
}

func (b *Breaker[T]) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.state = StateClosed
}

// State returns the breaker's current state.
func (b *Breaker[T]) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive primary failure count.
func (b *Breaker[T]) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
