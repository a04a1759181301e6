package realtime

import (
	"math"
	"math/rand"
	"time"
)

// Backoff describes the reconnect schedule.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter is the +/- fraction applied to each delay (0.0 to 1.0).
	Jitter float64
	// MaxAttempts of 0 retries forever.
	MaxAttempts int
}

func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    500 * time.Millisecond,
		Max:        30 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.2,
	}
}

// Delay returns the wait before reconnect attempt n (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	multiplier := b.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	delay := float64(b.Initial) * math.Pow(multiplier, float64(attempt-1))
	if b.Max > 0 && delay > float64(b.Max) {
		delay = float64(b.Max)
	}

	if b.Jitter > 0 {
		jitter := delay * math.Min(b.Jitter, 1) * (rand.Float64()*2 - 1)
		delay += jitter
	}
	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

func (b Backoff) Exhausted(attempt int) bool {
	return b.MaxAttempts > 0 && attempt > b.MaxAttempts
}
