package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mmynk/fairkeep/internal/calculator"
)

type memoryEntry struct {
	balances  []calculator.Balance
	expiresAt time.Time
}

// InMemoryCache implements BalanceCache in process memory.
type InMemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries  map[string]memoryEntry
	versions map[string]int64
}

// NewInMemoryCache creates an InMemoryCache. A ttl of zero keeps entries
// until they are invalidated.
func NewInMemoryCache(ttl time.Duration) *InMemoryCache {
	return &InMemoryCache{
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]memoryEntry),
		versions: make(map[string]int64),
	}
}

// GetBalances returns a copy of the cached balances for userID.
func (c *InMemoryCache) GetBalances(_ context.Context, userID string) ([]calculator.Balance, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if c.ttl > 0 && c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, userID)
		c.mu.Unlock()
		return nil, false, nil
	}
	return append([]calculator.Balance(nil), entry.balances...), true, nil
}

// Version returns userID's invalidation count.
func (c *InMemoryCache) Version(_ context.Context, userID string) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.versions[userID], nil
}

// SetBalances stores a copy of balances for userID unless it was
// invalidated after version was read.
func (c *InMemoryCache) SetBalances(_ context.Context, userID string, version int64, balances []calculator.Balance) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[userID] != version {
		return nil
	}
	c.entries[userID] = memoryEntry{
		balances:  append([]calculator.Balance(nil), balances...),
		expiresAt: c.now().Add(c.ttl),
	}
	return nil
}

// Invalidate drops the entries of userIDs and bumps their versions.
func (c *InMemoryCache) Invalidate(_ context.Context, userIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range userIDs {
		delete(c.entries, id)
		c.versions[id]++
	}
	return nil
}
