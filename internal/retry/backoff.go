package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// linearBackOff waits n*step after the n-th failure and stops after max attempts.
type linearBackOff struct {
	step time.Duration
	max  int
	n    int
}

func newLinearBackOff(step time.Duration, max int) *linearBackOff {
	return &linearBackOff{step: step, max: max}
}

func (b *linearBackOff) Reset() {
	b.n = 0
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	if b.n >= b.max {
		return backoff.Stop
	}
	return time.Duration(b.n) * b.step
}
