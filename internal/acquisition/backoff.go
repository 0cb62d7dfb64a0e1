package acquisition

import "time"

// growthFactor is the multiplier applied per consecutive failure.
const growthFactor = 1.5

// Backoff decides how long to wait after a failed link open.
type Backoff interface {
	// Next returns the delay before the next attempt.
	Next() time.Duration

	// Reset is called after a successful open.
	Reset()
}

// FixedBackoff waits the same delay after every failure.
type FixedBackoff time.Duration

// Next returns the fixed delay.
func (b FixedBackoff) Next() time.Duration { return time.Duration(b) }

// Reset does nothing.
func (FixedBackoff) Reset() {}

// ExponentialBackoff grows the delay by 1.5x per consecutive failure up to a
// cap, and starts over after a success.
type ExponentialBackoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// NewExponentialBackoff creates a backoff starting at initial and capped at max.
func NewExponentialBackoff(initial, maxDelay time.Duration) *ExponentialBackoff {
	if maxDelay < initial {
		maxDelay = initial
	}
	return &ExponentialBackoff{initial: initial, max: maxDelay, current: initial}
}

// Next returns the current delay and grows it for the following call.
func (b *ExponentialBackoff) Next() time.Duration {
	d := b.current
	next := time.Duration(float64(b.current) * growthFactor)
	if next > b.max {
		next = b.max
	}
	b.current = next
	return d
}

// Reset returns to the initial delay.
func (b *ExponentialBackoff) Reset() {
	b.current = b.initial
}

// NewBackoff picks the policy from configuration: fixed when maxDelay is
// not greater than initial, exponential otherwise.
func NewBackoff(initial, maxDelay time.Duration) Backoff {
	if maxDelay <= initial {
		return FixedBackoff(initial)
	}
	return NewExponentialBackoff(initial, maxDelay)
}
