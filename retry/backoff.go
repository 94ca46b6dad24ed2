package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff implements exponential backoff with a configurable maximum number of attempts.
type Backoff struct {
	// MaxAttempts is the maximum number of retry attempts. 0 means no retries.
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration

	// Multiplier is the factor by which the delay grows. Defaults to 2.
	Multiplier float64

	// Jitter is the fraction of each delay that is randomized, in [0, 1].
	Jitter float64
}

// Exponential creates a Backoff sized for retries inside one poll cycle:
// 500ms doubling up to 5s, with 20% jitter.
func Exponential(maxAttempts int) *Backoff {
	return &Backoff{
		MaxAttempts:  maxAttempts,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
		Jitter:       0.2,
	}
}

// Next returns the delay for the given attempt number (1-based).
func (b *Backoff) Next(attempt int) (time.Duration, bool) {
	if attempt < 1 || attempt > b.MaxAttempts {
		return 0, false
	}

	multiplier := b.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}

	delay := float64(b.InitialDelay) * math.Pow(multiplier, float64(attempt-1))
	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}
	if b.Jitter > 0 {
		delay -= delay * b.Jitter * rand.Float64()
	}

	return time.Duration(delay), true
}
