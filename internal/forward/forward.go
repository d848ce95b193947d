// Package forward wraps remote hops in classified retries. Every outbound
// call in the pipeline goes through Do, so attempt limits, per-attempt
// timeouts, and backoff behave the same on every hop.
package forward

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"
)

// State is the terminal disposition of a forwarded operation.
type State int

const (
	// Success means an attempt returned a payload.
	Success State = iota
	// Exhausted means every allowed attempt failed transiently.
	Exhausted
	// Aborted means a non-transient failure stopped the hop after the
	// attempt that produced it.
	Aborted
)

func (s State) String() string {
	switch s {
	case Success:
		return "success"
	case Exhausted:
		return "exhausted_retries"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Terminal marks err as non-transient: Do gives up on it without retrying.
// Callers use it for 4xx replies and malformed response schemas.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// IsTerminal reports whether err or anything it wraps was marked Terminal.
func IsTerminal(err error) bool {
	var te *terminalError
	return errors.As(err, &te)
}

// Policy controls attempts and backoff for one hop. Delays grow as
// InitialDelay * Multiplier^(attempt-1), capped at MaxDelay, which keeps the
// sequence monotonically non-decreasing for Multiplier >= 1.
type Policy struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	InitialDelay   time.Duration
	Multiplier     float64
	MaxDelay       time.Duration
}

// DefaultPolicy returns a Policy with sensible defaults:
// 3 attempts, 10s per attempt, 1s initial delay, 2x multiplier, 6s max delay.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		AttemptTimeout: 10 * time.Second,
		InitialDelay:   1 * time.Second,
		Multiplier:     2.0,
		MaxDelay:       6 * time.Second,
	}
}

// NextDelay returns the backoff delay after the given attempt (1-indexed).
func (p Policy) NextDelay(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Operation is a single attempt against a remote hop. It must observe ctx;
// each attempt receives its own deadline derived from AttemptTimeout.
type Operation[T any] func(ctx context.Context) (T, error)

// Outcome is the uniform result of a forwarded operation. Exactly one of
// the three states is set; Attempts counts how many attempts ran.
type Outcome[T any] struct {
	State    State
	Value    T
	Err      error
	Attempts int
}

// Do runs op under the policy. Transient failures (timeouts, connection
// errors, 5xx and anything else unmarked) back off and retry up to
// MaxAttempts; Terminal failures abort immediately. Cancellation of the
// parent ctx aborts between attempts and during backoff.
func Do[T any](ctx context.Context, stage string, p Policy, op Operation[T]) Outcome[T] {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if p.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		}
		value, err := op(attemptCtx)
		cancel()

		if err == nil {
			return Outcome[T]{State: Success, Value: value, Attempts: attempt}
		}
		lastErr = err
		slog.Warn("forward attempt failed",
			"stage", stage,
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"error", err)

		if IsTerminal(err) {
			return Outcome[T]{State: Aborted, Err: err, Attempts: attempt}
		}
		if ctx.Err() != nil {
			return Outcome[T]{State: Aborted, Err: ctx.Err(), Attempts: attempt}
		}
		if attempt < p.MaxAttempts {
			select {
			case <-time.After(p.NextDelay(attempt)):
			case <-ctx.Done():
				return Outcome[T]{State: Aborted, Err: ctx.Err(), Attempts: attempt}
			}
		}
	}
	return Outcome[T]{State: Exhausted, Err: lastErr, Attempts: p.MaxAttempts}
}
