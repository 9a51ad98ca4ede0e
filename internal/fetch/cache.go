package fetch

import (
	"sync"
	"time"

	"github.com/postwatch/postwatch/internal/models"
)

// ProfileCache holds successful profile lookups for a bounded TTL. Entries
// are evicted lazily on read.
type ProfileCache struct {
	mu      sync.Mutex
	entries map[string]cachedProfile
	ttl     time.Duration
	now     func() time.Time
}

type cachedProfile struct {
	profile   models.Profile
	fetchedAt time.Time
}

// NewProfileCache creates a cache with the given TTL.
func NewProfileCache(ttl time.Duration) *ProfileCache {
	return &ProfileCache{
		entries: make(map[string]cachedProfile),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached profile for an account, if present and fresh.
func (c *ProfileCache) Get(accountID string) (*models.Profile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[accountID]
	if !ok {
		return nil, false
	}

	if c.now().Sub(entry.fetchedAt) >= c.ttl {
		delete(c.entries, accountID)
		return nil, false
	}

	profile := entry.profile
	return &profile, true
}

// Put stores a profile for an account.
func (c *ProfileCache) Put(accountID string, profile models.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[accountID] = cachedProfile{
		profile:   profile,
		fetchedAt: c.now(),
	}
}

// Clear removes a single account's cached profile.
func (c *ProfileCache) Clear(accountID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, accountID)
}

// ClearAll removes every cached profile.
func (c *ProfileCache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cachedProfile)
}

// Size returns the number of cached entries, including any not yet evicted.
func (c *ProfileCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
