package rules

import (
	"sync"
	"time"

	"eisenplan/internal/clock"
)

// ExecutionTTL is how long a (user, day) run suppresses further runs.
const ExecutionTTL = time.Hour

// ExecutionCache debounces rule-engine passes to at most one per hour
// per user per day. It is a performance guard, not a correctness guard:
// the engine is idempotent, so losing the cache on restart only costs
// one redundant pass per active user.
type ExecutionCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	dayKey     string
	executedAt time.Time
}

// NewExecutionCache builds a cache using the given time source, so
// tests can construct one per run without cross-test leakage.
func NewExecutionCache(now func() time.Time) *ExecutionCache {
	if now == nil {
		now = time.Now
	}
	return &ExecutionCache{
		entries: make(map[string]cacheEntry),
		ttl:     ExecutionTTL,
		now:     now,
	}
}

// ShouldRun reports whether the rule engine should run for the user on
// the given day.
func (c *ExecutionCache) ShouldRun(userID string, today time.Time) bool {
	dayKey := clock.DayKey(today)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[userID+":"+dayKey]
	if !ok {
		return true
	}
	if entry.dayKey == dayKey && c.now().Sub(entry.executedAt) < c.ttl {
		return false
	}
	return true
}

// MarkExecuted records a completed pass and evicts entries for days
// older than yesterday to bound memory.
func (c *ExecutionCache) MarkExecuted(userID string, today time.Time) {
	dayKey := clock.DayKey(today)
	yesterdayKey := clock.DayKey(today.AddDate(0, 0, -1))

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[userID+":"+dayKey] = cacheEntry{dayKey: dayKey, executedAt: c.now()}

	for key, entry := range c.entries {
		if entry.dayKey < yesterdayKey {
			delete(c.entries, key)
		}
	}
}
