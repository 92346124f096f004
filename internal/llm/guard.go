package llm

import (
	"errors"
	"sync"
	"time"
)

// ErrProviderUnavailable is returned by a guard when a provider is skipped
// without being called, either because its breaker is open or because the
// local rate limit is exhausted.
var ErrProviderUnavailable = errors.New("provider temporarily unavailable")

// breakerState is the lifecycle of a provider's failure breaker.
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

const (
	// defaultFailureThreshold consecutive failures open the breaker.
	defaultFailureThreshold = 3
	// defaultCooldown is how long an open breaker blocks before allowing
	// a single trial call.
	defaultCooldown = 30 * time.Second
)

// guard protects one provider in the fallback chain. It combines a
// consecutive-failure breaker with an optional token-bucket rate limit, so
// a dead or quota-exhausted provider is skipped instead of burning a
// timeout on every Generate call.
type guard struct {
	mu sync.Mutex

	state    breakerState
	failures int
	openedAt time.Time

	// Token bucket; rate <= 0 disables local rate limiting.
	rate       float64
	burst      float64
	tokens     float64
	lastRefill time.Time
}

func newGuard() *guard {
	return &guard{lastRefill: time.Now()}
}

// setRateLimit enables the token bucket at rate calls per second with the
// given burst. A non-positive rate disables limiting.
func (g *guard) setRateLimit(rate float64, burst int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rate = rate
	g.burst = float64(burst)
	if g.burst < 1 {
		g.burst = 1
	}
	g.tokens = g.burst
	g.lastRefill = time.Now()
}

// allow reports whether the provider may be called now. A breaker past its
// cooldown moves to half-open and lets one trial call through. Allowing a
// call consumes a rate token when limiting is enabled.
func (g *guard) allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == breakerOpen {
		if time.Since(g.openedAt) < defaultCooldown {
			return false
		}
		g.state = breakerHalfOpen
	}

	if g.rate > 0 {
		now := time.Now()
		g.tokens += now.Sub(g.lastRefill).Seconds() * g.rate
		if g.tokens > g.burst {
			g.tokens = g.burst
		}
		g.lastRefill = now
		if g.tokens < 1 {
			return false
		}
		g.tokens--
	}
	return true
}

// record feeds a call outcome back into the breaker. A success closes it;
// a failure in half-open reopens immediately, and repeated failures while
// closed open it once the threshold is hit.
func (g *guard) record(success bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if success {
		g.state = breakerClosed
		g.failures = 0
		return
	}

	switch g.state {
	case breakerHalfOpen:
		g.trip()
	case breakerClosed:
		g.failures++
		if g.failures >= defaultFailureThreshold {
			g.trip()
		}
	}
}

func (g *guard) trip() {
	g.state = breakerOpen
	g.openedAt = time.Now()
	g.failures = 0
}
