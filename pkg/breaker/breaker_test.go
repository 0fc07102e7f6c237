package breaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestBreaker(clock *fakeClock) *Breaker[string] {
	return New[string](Options{
		FailureThreshold: 2,
		Timeout:          time.Minute,
		Clock:            func() time.Time { return clock.now },
	})
}

func failing(ctx context.Context) (string, error) {
	return "", errors.New("primary down")
}

func succeeding(ctx context.Context) (string, error) {
	return "primary", nil
}

func fallback(ctx context.Context) (string, error) {
	return "fallback", nil
}

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 5; i++ {
		got, err := b.Call(context.Background(), succeeding, fallback)
		if err != nil || got != "primary" {
			t.Fatalf("call %d: got %q err %v", i, got, err)
		}
	}
	if b.State() != StateClosed {
		t.Errorf("state = %s, want closed", b.State())
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	// Primary errors are absorbed; the fallback result comes back.
	for i := 0; i < 2; i++ {
		got, err := b.Call(context.Background(), failing, fallback)
		if err != nil || got != "fallback" {
			t.Fatalf("call %d: got %q err %v", i, got, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %s, want open after 2 failures", b.State())
	}

	// While open, the primary must not be attempted at all.
	attempted := false
	got, err := b.Call(context.Background(), func(ctx context.Context) (string, error) {
		attempted = true
		return "primary", nil
	}, fallback)
	if err != nil || got != "fallback" {
		t.Fatalf("open call: got %q err %v", got, err)
	}
	if attempted {
		t.Error("primary was attempted while breaker open")
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	b.Call(context.Background(), failing, fallback)
	b.Call(context.Background(), failing, fallback)
	if b.State() != StateOpen {
		t.Fatalf("state = %s, want open", b.State())
	}

	clock.advance(time.Minute)

	got, err := b.Call(context.Background(), succeeding, fallback)
	if err != nil || got != "primary" {
		t.Fatalf("trial call: got %q err %v", got, err)
	}
	if b.State() != StateClosed {
		t.Errorf("state = %s, want closed after successful trial", b.State())
	}
	if b.Failures() != 0 {
		t.Errorf("failures = %d, want reset to 0", b.Failures())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	b.Call(context.Background(), failing, fallback)
	b.Call(context.Background(), failing, fallback)
	clock.advance(time.Minute)

	// Failed trial reopens the breaker and restarts the window.
	got, _ := b.Call(context.Background(), failing, fallback)
	if got != "fallback" {
		t.Fatalf("trial call: got %q", got)
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %s, want open after failed trial", b.State())
	}

	clock.advance(30 * time.Second)
	attempted := false
	b.Call(context.Background(), func(ctx context.Context) (string, error) {
		attempted = true
		return "primary", nil
	}, fallback)
	if attempted {
		t.Error("primary attempted before restarted timeout elapsed")
	}
}

func TestBreakerDefaults(t *testing.T) {
	b := New[int](Options{})
	if b.opts.FailureThreshold != 3 {
		t.Errorf("default threshold = %d, want 3", b.opts.FailureThreshold)
	}
	if b.opts.Timeout != 60*time.Second {
		t.Errorf("default timeout = %s, want 60s", b.opts.Timeout)
	}
}
