// Package retry runs remote operations with a per-attempt timeout, linear
// backoff between attempts and a circuit breaker that stays open for the
// lifetime of the Policy once every attempt of a call has failed.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	// ErrTimeout marks an attempt that exceeded Config.Timeout.
	ErrTimeout = errors.New("operation timed out")
	// ErrRetriesDisabled is returned without running the operation once the breaker is open.
	ErrRetriesDisabled = errors.New("retries disabled after repeated failures")
	// ErrRetriesExhausted matches every *ExhaustedError.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// ExhaustedError is returned when all attempts failed. Err is the last attempt's cause.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

// Permanent marks err as terminal: it is returned immediately, never retried,
// and does not count toward the circuit breaker.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Config bounds a single Execute call.
type Config struct {
	Timeout     time.Duration
	MaxAttempts int
	// Step is the linear backoff unit: the wait after attempt n is n*Step.
	Step time.Duration
}

// DefaultConfig is 3 attempts of 10s each with 500ms/1000ms waits in between.
var DefaultConfig = Config{
	Timeout:     10 * time.Second,
	MaxAttempts: 3,
	Step:        500 * time.Millisecond,
}

// Policy is shared by every remote call of a process. Create one and inject it.
type Policy struct {
	cfg      Config
	disabled atomic.Bool
	events   Publisher
	logger   *slog.Logger
	newTimer func() backoff.Timer
}

// Option configures a Policy.
type Option func(*Policy)

// WithPublisher sends status and attempt events to pub.
func WithPublisher(pub Publisher) Option {
	return func(p *Policy) { p.events = pub }
}

// WithLogger sets the logger used for attempt failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) { p.logger = logger }
}

// WithTimer replaces the timer used for backoff waits.
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(p *Policy) { p.newTimer = newTimer }
}

// New builds a Policy. Zero fields of cfg fall back to DefaultConfig.
func New(cfg Config, opts ...Option) *Policy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig.MaxAttempts
	}
	if cfg.Timeout < 0 {
		cfg.Timeout = 0
	}
	if cfg.Step < 0 {
		cfg.Step = 0
	}
	p := &Policy{cfg: cfg, events: Discard}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.events == nil {
		p.events = Discard
	}
	return p
}

// Disabled reports whether the circuit breaker is open.
func (p *Policy) Disabled() bool {
	return p.disabled.Load()
}

func (p *Policy) timer() backoff.Timer {
	if p.newTimer == nil {
		return nil
	}
	return p.newTimer()
}

// Execute runs op until it succeeds, returns a Permanent error, or
// cfg.MaxAttempts attempts have failed. Attempts never overlap.
func Execute[T any](ctx context.Context, p *Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p.disabled.Load() {
		return zero, ErrRetriesDisabled
	}

	p.events.Publish(Event{Type: TypeStatus, State: StateStart})

	attempt := 0
	terminal := false
	run := func() (T, error) {
		attempt++
		p.events.Publish(Event{Type: TypeAttempt, Attempt: attempt})
		v, err := runAttempt(ctx, p.cfg.Timeout, op)
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			terminal = true
		}
		return v, err
	}
	notify := func(err error, wait time.Duration) {
		p.logger.Warn("remote attempt failed", "attempt", attempt, "wait", wait, "error", err)
	}

	b := backoff.WithContext(newLinearBackOff(p.cfg.Step, p.cfg.MaxAttempts), ctx)
	res, err := backoff.RetryNotifyWithTimerAndData(run, b, notify, p.timer())
	switch {
	case err == nil:
		p.events.Publish(Event{Type: TypeStatus, State: StateOK})
		return res, nil
	case ctx.Err() != nil, terminal:
		// The call failed but the remote answered or the caller gave up; the
		// breaker stays closed.
		p.events.Publish(Event{Type: TypeStatus, State: StateFailed})
		return zero, err
	}

	p.disabled.Store(true)
	p.logger.Error("remote unreachable, retries disabled", "attempts", attempt, "error", err)
	p.events.Publish(Event{Type: TypeStatus, State: StateFailed})
	return zero, &ExhaustedError{Attempts: attempt, Err: err}
}

// runAttempt races op against the attempt deadline. op keeps running in the
// background after a timeout if it ignores its context.
func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attemptCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := op(attemptCtx)
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return zero, ErrTimeout
		}
		return r.v, r.err
	case <-attemptCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, backoff.Permanent(err)
		}
		return zero, ErrTimeout
	}
}
