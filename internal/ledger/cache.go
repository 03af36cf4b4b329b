package ledger

import "sync"

// CacheEntry is the latest known version of an object.
type CacheEntry struct {
	Version uint64
	Digest  string
}

// VersionCache remembers the newest object versions this process has
// itself produced. Ledger read replicas can lag behind writes we just
// committed; before an object is used as a transaction input, the
// fetched reference is compared against the cache and the higher
// version wins. Entries are only ever overwritten upward because
// ledger versions grow monotonically.
//
// The cache may be shared across managers, so access is serialized.
type VersionCache struct {
	mu      sync.Mutex
	entries map[ObjectID]CacheEntry
}

func NewVersionCache() *VersionCache {
	return &VersionCache{entries: make(map[ObjectID]CacheEntry)}
}

// Observe records the new versions of every object a transaction
// created or mutated.
func (c *VersionCache) Observe(effects *TransactionEffects) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ref := range effects.Touched() {
		c.entries[ref.ID] = CacheEntry{Version: ref.Version, Digest: ref.Digest}
	}
}

// Get returns the cached entry for an object, if any.
func (c *VersionCache) Get(id ObjectID) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[id]
	return entry, ok
}

// ChooseLatest returns the queried reference unless the cache knows a
// newer (or equally new) version of the same object, in which case the
// cached version and digest win.
func (c *VersionCache) ChooseLatest(queried ObjectRef) ObjectRef {
	entry, ok := c.Get(queried.ID)
	if !ok || queried.Version > entry.Version {
		return queried
	}
	return ObjectRef{ID: queried.ID, Version: entry.Version, Digest: entry.Digest}
}
