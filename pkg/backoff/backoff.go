package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Backoff computes the wait for each attempt of a retried operation,
// starting at the minimum and doubling up to the maximum with jitter.
//
// When the minimum and maximum are equal the wait is fixed and no jitter is
// added.
type Backoff struct {
	// maxAttempts is the maximum number of attempts, or zero to retry
	// forever.
	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration

	// attempts is the number of attempts so far.
	attempts    int
	lastBackoff time.Duration
}

// New creates a new backoff.
//
// Set 'maxAttempts' to zero to retry forever.
func New(maxAttempts int, minBackoff time.Duration, maxBackoff time.Duration) *Backoff {
	if maxBackoff < minBackoff {
		maxBackoff = minBackoff
	}
	return &Backoff{
		maxAttempts: maxAttempts,
		minBackoff:  minBackoff,
		maxBackoff:  maxBackoff,
	}
}

// Next returns the wait for the next attempt. Returns false if the maximum
// number of attempts has been reached so the caller should stop.
func (b *Backoff) Next() (time.Duration, bool) {
	if b.maxAttempts != 0 && b.attempts >= b.maxAttempts {
		return 0, false
	}
	b.attempts++

	b.lastBackoff = b.nextWait()
	return b.lastBackoff, true
}

// Wait blocks until the next attempt. Returns false if the number of attempts
// has been reached or the context is cancelled.
func (b *Backoff) Wait(ctx context.Context) bool {
	wait, ok := b.Next()
	if !ok {
		return false
	}

	t := time.NewTimer(wait)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Attempts returns the number of attempts so far.
func (b *Backoff) Attempts() int {
	return b.attempts
}

func (b *Backoff) nextWait() time.Duration {
	if b.lastBackoff == 0 {
		return b.minBackoff
	}
	if b.minBackoff == b.maxBackoff {
		return b.minBackoff
	}

	jitterMultipler := 1.0 + (rand.Float64() * 0.1)
	backoff := time.Duration(float64(b.lastBackoff*2) * jitterMultipler)
	if backoff > b.maxBackoff {
		return b.maxBackoff
	}
	return backoff
}
