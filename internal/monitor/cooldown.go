package monitor

import (
	"sync"
	"time"
)

// UnknownKey is the single cooldown bucket shared by all unmatched faces.
const UnknownKey = "unknown"

// Cooldowns remembers when each key last produced a notification. A key is
// allowed again only once strictly more than its window has passed.
type Cooldowns struct {
	mu        sync.Mutex
	last      map[string]time.Time
	maxWindow time.Duration
}

func NewCooldowns(maxWindow time.Duration) *Cooldowns {
	return &Cooldowns{last: make(map[string]time.Time), maxWindow: maxWindow}
}

// Allow reports whether key may fire at now and, if so, restarts its window.
func (c *Cooldowns) Allow(key string, window time.Duration, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prune(now)
	if last, ok := c.last[key]; ok && now.Sub(last) <= window {
		return false
	}
	c.last[key] = now
	return true
}

func (c *Cooldowns) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.last)
}

// prune drops entries that no window can still suppress.
func (c *Cooldowns) prune(now time.Time) {
	for k, t := range c.last {
		if now.Sub(t) > c.maxWindow {
			delete(c.last, k)
		}
	}
}
