package insights

import (
	"sync"
	"time"
)

// cardCache stores recently computed cards per period so repeated reads do
// not rescan the history while nothing was recorded.
type cardCache struct {
	mu      sync.RWMutex
	now     func() time.Time
	ttl     time.Duration
	entries map[Period]cardCacheEntry
}

type cardCacheEntry struct {
	cards     []Card
	expiresAt time.Time
}

func newCardCache(ttl time.Duration, now func() time.Time) *cardCache {
	if ttl <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &cardCache{
		now:     now,
		ttl:     ttl,
		entries: make(map[Period]cardCacheEntry),
	}
}

func (c *cardCache) Get(period Period) ([]Card, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[period]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, period)
		c.mu.Unlock()
		return nil, false
	}
	return cloneCards(entry.cards), true
}

func (c *cardCache) Store(period Period, cards []Card) {
	if c == nil {
		return
	}
	cloned := cloneCards(cards)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	c.entries[period] = cardCacheEntry{cards: cloned, expiresAt: expiry}
	c.mu.Unlock()
}

func (c *cardCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[Period]cardCacheEntry)
	c.mu.Unlock()
}

func cloneCards(cards []Card) []Card {
	if len(cards) == 0 {
		return nil
	}
	out := make([]Card, len(cards))
	copy(out, cards)
	return out
}
