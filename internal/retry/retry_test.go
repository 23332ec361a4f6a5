package retry_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashnotes/internal/retry"
)

// instantTimer fires immediately and records the requested waits.
type instantTimer struct {
	mu    *sync.Mutex
	waits *[]time.Duration
	c     chan time.Time
}

func (t *instantTimer) Start(d time.Duration) {
	t.mu.Lock()
	*t.waits = append(*t.waits, d)
	t.mu.Unlock()
	t.c <- time.Now()
}

func (t *instantTimer) Stop()               {}
func (t *instantTimer) C() <-chan time.Time { return t.c }

func newPolicy(cfg retry.Config, opts ...retry.Option) (*retry.Policy, *[]time.Duration) {
	var mu sync.Mutex
	waits := &[]time.Duration{}
	opts = append(opts, retry.WithTimer(func() backoff.Timer {
		return &instantTimer{mu: &mu, waits: waits, c: make(chan time.Time, 1)}
	}))
	return retry.New(cfg, opts...), waits
}

var errFlaky = errors.New("connection reset")

func TestExecuteSucceedsAfterTwoFailures(t *testing.T) {
	p, waits := newPolicy(retry.DefaultConfig)

	calls := 0
	got, err := retry.Execute(context.Background(), p, func(context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", errFlaky
		}
		return "notes", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "notes", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 1000 * time.Millisecond}, *waits)
	assert.False(t, p.Disabled())
}

func TestExecuteTripsBreakerAfterExhaustion(t *testing.T) {
	p, waits := newPolicy(retry.DefaultConfig)

	calls := 0
	_, err := retry.Execute(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, errFlaky
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrRetriesExhausted)
	assert.ErrorIs(t, err, errFlaky)
	assert.NotErrorIs(t, err, retry.ErrRetriesDisabled)
	var exhausted *retry.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 3, calls)
	assert.Len(t, *waits, 2)
	assert.True(t, p.Disabled())

	_, err = retry.Execute(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 1, nil
	})
	assert.ErrorIs(t, err, retry.ErrRetriesDisabled)
	assert.Equal(t, 3, calls, "operation must not run once the breaker is open")
}

func TestExecuteDoesNotRetryPermanentErrors(t *testing.T) {
	p, waits := newPolicy(retry.DefaultConfig)
	errDuplicate := errors.New("duplicate")

	calls := 0
	_, err := retry.Execute(context.Background(), p, func(context.Context) (string, error) {
		calls++
		return "", retry.Permanent(errDuplicate)
	})

	assert.ErrorIs(t, err, errDuplicate)
	assert.NotErrorIs(t, err, retry.ErrRetriesExhausted)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *waits)
	assert.False(t, p.Disabled())
}

func TestExecuteTimesOutSlowAttempts(t *testing.T) {
	p, _ := newPolicy(retry.Config{Timeout: 20 * time.Millisecond, MaxAttempts: 3, Step: time.Millisecond})

	_, err := retry.Execute(context.Background(), p, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	assert.ErrorIs(t, err, retry.ErrRetriesExhausted)
	assert.ErrorIs(t, err, retry.ErrTimeout)
	assert.True(t, p.Disabled())
}

func TestExecuteTimesOutOperationsIgnoringContext(t *testing.T) {
	p, _ := newPolicy(retry.Config{Timeout: 10 * time.Millisecond, MaxAttempts: 1})
	release := make(chan struct{})
	defer close(release)

	_, err := retry.Execute(context.Background(), p, func(context.Context) (string, error) {
		<-release
		return "late", nil
	})

	assert.ErrorIs(t, err, retry.ErrTimeout)
}

func TestExecuteStopsWhenCallerCancels(t *testing.T) {
	p, _ := newPolicy(retry.DefaultConfig)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := retry.Execute(ctx, p, func(context.Context) (string, error) {
		cancel()
		return "", errFlaky
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, p.Disabled())
}

func TestExecutePublishesProgress(t *testing.T) {
	broker := retry.NewBroker()
	events, cancel := broker.Subscribe()
	defer cancel()
	p, _ := newPolicy(retry.DefaultConfig, retry.WithPublisher(broker))

	calls := 0
	_, err := retry.Execute(context.Background(), p, func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errFlaky
		}
		return 1, nil
	})
	require.NoError(t, err)

	want := []retry.Event{
		{Type: retry.TypeStatus, State: retry.StateStart},
		{Type: retry.TypeAttempt, Attempt: 1},
		{Type: retry.TypeAttempt, Attempt: 2},
		{Type: retry.TypeStatus, State: retry.StateOK},
	}
	for i, w := range want {
		select {
		case got := <-events:
			assert.Equal(t, w, got, "event %d", i)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestExecutePublishesFailure(t *testing.T) {
	broker := retry.NewBroker()
	p, _ := newPolicy(retry.Config{MaxAttempts: 1}, retry.WithPublisher(broker))

	_, _ = retry.Execute(context.Background(), p, func(context.Context) (int, error) {
		return 0, errFlaky
	})

	events, cancel := broker.Subscribe()
	defer cancel()
	assert.Equal(t, retry.Event{Type: retry.TypeStatus, State: retry.StateFailed}, <-events)
	assert.Equal(t, retry.Event{Type: retry.TypeAttempt, Attempt: 1}, <-events)
}

func TestExecuteEndsWithFailedStatusWithoutTrippingBreaker(t *testing.T) {
	cases := map[string]func(cancel context.CancelFunc) error{
		"permanent error": func(context.CancelFunc) error { return retry.Permanent(errors.New("duplicate")) },
		"caller cancels": func(cancel context.CancelFunc) error {
			cancel()
			return errFlaky
		},
	}
	for name, fail := range cases {
		t.Run(name, func(t *testing.T) {
			broker := retry.NewBroker()
			p, _ := newPolicy(retry.DefaultConfig, retry.WithPublisher(broker))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			_, err := retry.Execute(ctx, p, func(context.Context) (int, error) {
				return 0, fail(cancel)
			})
			require.Error(t, err)
			assert.False(t, p.Disabled())

			events, unsubscribe := broker.Subscribe()
			defer unsubscribe()
			assert.Equal(t, retry.Event{Type: retry.TypeStatus, State: retry.StateFailed}, <-events)
		})
	}
}

func TestBrokerCancelClosesChannel(t *testing.T) {
	broker := retry.NewBroker()
	events, cancel := broker.Subscribe()
	cancel()
	cancel()

	_, ok := <-events
	assert.False(t, ok)
	broker.Publish(retry.Event{Type: retry.TypeStatus, State: retry.StateOK})
}
