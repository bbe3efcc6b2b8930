package resilience

import (
	"math/rand"
	"time"
)

// DefaultMaxDelay caps exponential backoff when RetryPolicy.MaxDelay is unset.
const DefaultMaxDelay = 30 * time.Second

// RetryPolicy describes exponential backoff between attempts.
type RetryPolicy struct {
	Base        time.Duration
	MaxAttempts int
	// Jitter is a fraction of the delay, e.g. 0.2 == ±20%.
	Jitter float64
	// MaxDelay caps the delay before jitter. Zero uses DefaultMaxDelay, or
	// Base when Base is larger.
	MaxDelay time.Duration
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Delay returns the wait before the attempt following attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := p.Base
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	limit := p.MaxDelay
	if limit <= 0 {
		limit = max(DefaultMaxDelay, base)
	}
	d := min(base, limit)
	// doubling stops at the cap, so large attempt numbers cannot wrap
	for i := 1; i < attempt && d < limit; i++ {
		d <<= 1
	}
	d = min(d, limit)
	if p.Jitter <= 0 {
		return d
	}
	spread := float64(d) * p.Jitter
	return d + time.Duration((rand.Float64()*2-1)*spread)
}
