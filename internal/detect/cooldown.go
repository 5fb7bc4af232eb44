package detect

import (
	"sync"
	"time"

	"github.com/kiranshivaraju/pulsehound/pkg/models"
)

type cooldownKey struct {
	metric   models.Metric
	severity models.Severity
}

// Cooldown suppresses repeated root-cause dispatches of the same
// (metric, severity) class within a window. The key is the literal pair: a
// severity change for the same metric counts as a new alert class. State is
// process-local and lost on restart, which just re-permits one analysis.
type Cooldown struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[cooldownKey]time.Time
	now     func() time.Time
}

// CooldownOption customizes a Cooldown, mainly for tests.
type CooldownOption func(*Cooldown)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) CooldownOption {
	return func(c *Cooldown) {
		c.now = now
	}
}

// NewCooldown creates a governor with the given suppression window.
func NewCooldown(window time.Duration, opts ...CooldownOption) *Cooldown {
	c := &Cooldown{
		window:  window,
		entries: make(map[cooldownKey]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ShouldSuppress reports whether an anomaly of this class was already
// dispatched within the cooldown window.
func (c *Cooldown) ShouldSuppress(metric models.Metric, severity models.Severity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	last, ok := c.entries[cooldownKey{metric, severity}]
	if !ok {
		return false
	}
	return c.now().Sub(last) < c.window
}

// MarkDispatched records a dispatch for this class and opportunistically
// drops entries older than the window.
func (c *Cooldown) MarkDispatched(metric models.Metric, severity models.Severity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[cooldownKey{metric, severity}] = now

	for k, t := range c.entries {
		if now.Sub(t) >= c.window {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of live entries. Used by tests and the health
// endpoint.
func (c *Cooldown) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
