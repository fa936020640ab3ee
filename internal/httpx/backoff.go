package httpx

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Backoff hands out exponentially growing retry delays with jitter.
type Backoff struct {
	mu  sync.Mutex
	max time.Duration
	exp *backoff.ExponentialBackOff
}

// NewBackoff returns a Backoff starting at base, capped at max, with the
// given jitter factor (0..1).
func NewBackoff(base, max time.Duration, jitter float64) *Backoff {
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	if max <= 0 {
		max = time.Second
	}
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = base
	exp.MaxInterval = max
	exp.Multiplier = 2
	exp.RandomizationFactor = jitter
	exp.Reset()
	return &Backoff{max: max, exp: exp}
}

// Next returns the delay before the next attempt.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.exp.NextBackOff()
	if d == backoff.Stop {
		return b.max
	}
	return d
}
