package events

import (
	"sync"
	"time"
)

// DefaultDedupWindow is how long an event id is remembered.
const DefaultDedupWindow = time.Hour

// Cache remembers recently seen event ids so redelivered webhooks are
// processed at most once per window. Expired entries are evicted lazily
// on insert; there is no background sweeper. Safe for concurrent use.
type Cache struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewCache(window time.Duration) *Cache {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Cache{
		window: window,
		now:    time.Now,
		seen:   make(map[string]time.Time),
	}
}

// Remember records the event id and reports whether it was new. A
// false return means the id was already seen inside the window and the
// event must be skipped. Ids are marked before processing starts, so a
// concurrent redelivery cannot slip through mid-flight.
func (c *Cache) Remember(id string) bool {
	now := c.now()
	cutoff := now.Add(-c.window)

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, at := range c.seen {
		if at.Before(cutoff) {
			delete(c.seen, k)
		}
	}
	if at, ok := c.seen[id]; ok && !at.Before(cutoff) {
		return false
	}
	c.seen[id] = now
	return true
}

// Size returns the number of remembered ids, including any not yet
// evicted.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
