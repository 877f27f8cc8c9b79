package gateway

import (
	"sync"
	"time"
)

const (
	breakerClosed = iota
	breakerOpen
	breakerHalfOpen
)

// Breaker is a consecutive-failure circuit breaker. It opens after
// `threshold` consecutive failures inside `window`, fails fast for
// `cooldown`, then half-opens and admits a single probe call.
type Breaker struct {
	mu sync.Mutex

	threshold int
	window    time.Duration
	cooldown  time.Duration
	now       func() time.Time

	state       int
	failures    int
	windowStart time.Time
	openedAt    time.Time
	probing     bool
}

func NewBreaker(threshold int, window, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	return &Breaker{
		threshold: threshold,
		window:    window,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed. In the open state it returns
// false until the cool-down elapses; the first call after that becomes the
// half-open probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return true
	case breakerOpen:
		if b.now().Sub(b.openedAt) >= b.cooldown {
			b.state = breakerHalfOpen
			b.probing = true
			return true
		}
		return false
	default: // half-open
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
}

// Success records a successful call and closes the breaker.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = breakerClosed
	b.failures = 0
	b.probing = false
}

// Failure records a failed call. A failed half-open probe re-opens
// immediately; in the closed state failures outside the rolling window are
// forgotten before counting.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if b.state == breakerHalfOpen {
		b.state = breakerOpen
		b.openedAt = now
		b.probing = false
		return
	}

	if b.failures == 0 || now.Sub(b.windowStart) > b.window {
		b.failures = 0
		b.windowStart = now
	}
	b.failures++
	if b.failures >= b.threshold {
		b.state = breakerOpen
		b.openedAt = now
		b.failures = 0
	}
}
