package retry

import (
	"math/rand"
	"time"
)

const maxJitter = time.Second

// Backoff produces exponentially growing delays with jitter. One
// instance serves one logical retry sequence; it is not safe for
// concurrent use.
type Backoff struct {
	// MinDelay is the base delay for the first attempt.
	MinDelay time.Duration
	// MaxDelay caps the exponential term.
	MaxDelay time.Duration
	// MaxRetries bounds the number of delays produced. Zero or
	// negative means unbounded.
	MaxRetries int
	// MaxJitter bounds the uniform jitter added to each delay. Zero
	// disables jitter; NewBackoff sets the network default.
	MaxJitter time.Duration

	attempt int
	rng     *rand.Rand
}

// NewBackoff returns a strategy producing at most maxRetries delays.
func NewBackoff(minDelay, maxDelay time.Duration, maxRetries int) *Backoff {
	return &Backoff{
		MinDelay:   minDelay,
		MaxDelay:   maxDelay,
		MaxRetries: maxRetries,
		MaxJitter:  maxJitter,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the delay before the next attempt, or false once the
// strategy is exhausted. For attempt i (0-based) the delay is
// min(MaxDelay, MinDelay*2^i) plus uniform jitter of at most MaxJitter.
func (b *Backoff) Next() (time.Duration, bool) {
	if b.MaxRetries > 0 && b.attempt >= b.MaxRetries {
		return 0, false
	}

	delay := b.MinDelay << uint(b.attempt)
	if delay > b.MaxDelay || delay < b.MinDelay { // shift overflow guard
		delay = b.MaxDelay
	}
	b.attempt++

	return delay + b.jitter(delay), true
}

// Attempt returns the number of delays produced so far.
func (b *Backoff) Attempt() int {
	return b.attempt
}

// jitter never exceeds the delay it perturbs.
func (b *Backoff) jitter(delay time.Duration) time.Duration {
	bound := b.MaxJitter
	if bound > delay {
		bound = delay
	}
	if bound <= 0 {
		return 0
	}
	if b.rng == nil {
		b.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return time.Duration(b.rng.Int63n(int64(bound)))
}
