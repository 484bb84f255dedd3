package provider

import (
	"sync"
	"time"

	"github.com/quorumai/quorum/internal/models"
)

// rateLimitStrikes is how many consecutive RateLimited failures put a
// provider into cool-down. A single AuthError is enough on its own.
const rateLimitStrikes = 2

// Cooldowns tracks providers that are temporarily degraded so that
// subsequent fan-outs can skip them cheaply instead of timing out on
// them again. This is an optimization, not a correctness requirement:
// an expired entry simply lets the provider be attempted again.
type Cooldowns struct {
	mu      sync.Mutex
	window  time.Duration
	until   map[string]time.Time
	strikes map[string]int
	now     func() time.Time // replaceable in tests
}

// NewCooldowns creates a cool-down table with the given window.
func NewCooldowns(window time.Duration) *Cooldowns {
	if window <= 0 {
		window = 60 * time.Second
	}
	return &Cooldowns{
		window:  window,
		until:   make(map[string]time.Time),
		strikes: make(map[string]int),
		now:     time.Now,
	}
}

// Degraded reports whether the provider is currently cooling down.
func (c *Cooldowns) Degraded(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	deadline, ok := c.until[id]
	if !ok {
		return false
	}
	if c.now().After(deadline) {
		delete(c.until, id)
		return false
	}
	return true
}

// MarkFailure records a failure and returns true if the provider just
// entered cool-down. AuthError degrades immediately; RateLimited only
// after consecutive strikes. Other failure kinds never degrade: a
// timeout or transport blip is already bounded by the per-call budget.
func (c *Cooldowns) MarkFailure(id string, kind models.FailureKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch kind {
	case models.FailureAuth:
		return c.degrade(id)
	case models.FailureRateLimited:
		c.strikes[id]++
		if c.strikes[id] >= rateLimitStrikes {
			c.strikes[id] = 0
			return c.degrade(id)
		}
	}
	return false
}

// MarkSuccess clears strike bookkeeping for a provider.
func (c *Cooldowns) MarkSuccess(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.strikes, id)
	delete(c.until, id)
}

func (c *Cooldowns) degrade(id string) bool {
	_, already := c.until[id]
	c.until[id] = c.now().Add(c.window)
	return !already
}
