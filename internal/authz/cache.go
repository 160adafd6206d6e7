package authz

import (
	"context"
	"sync"
	"time"

	"planhub.org/internal/obs"
)

const defaultRecomputeTimeout = 2 * time.Second

// Cache memoizes coarse effective permission sets per user. Entries are keyed
// by the (userVersion, grantVersion) pair; any mismatch against the current
// counters triggers a full recompute. Resource-conditional decisions are
// never cached, the underlying resource data is outside this model.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry

	store    Store
	resolver *Resolver
	timeout  time.Duration
}

type cacheEntry struct {
	set          PermissionSet
	userVersion  uint64
	grantVersion uint64
}

// NewCache builds an empty cache over the store's version counters.
func NewCache(store Store, resolver *Resolver, timeout time.Duration) *Cache {
	if timeout <= 0 {
		timeout = defaultRecomputeTimeout
	}
	return &Cache{
		entries:  make(map[string]cacheEntry),
		store:    store,
		resolver: resolver,
		timeout:  timeout,
	}
}

// EffectivePermissions returns the coarse set for the user, recomputing when
// either version counter moved. The recompute walks every candidate role, so
// it runs under a bounded timeout.
func (c *Cache) EffectivePermissions(ctx context.Context, userID string) (PermissionSet, error) {
	versions := c.store.Versions(ctx)
	uv, err := versions.UserVersion(ctx, userID)
	if err != nil {
		return nil, err
	}
	gv, err := versions.GrantVersion(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()
	if ok && entry.userVersion == uv && entry.grantVersion == gv {
		obs.AuthzCacheEvent("hit")
		return entry.set.clone(), nil
	}
	obs.AuthzCacheEvent("miss")

	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	set, err := c.resolver.EffectiveSet(rctx, userID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[userID] = cacheEntry{set: set.clone(), userVersion: uv, grantVersion: gv}
	c.mu.Unlock()
	return set, nil
}

// Invalidate evicts the user's entry. Version counters already make stale
// entries unreachable; eviction just frees the memory eagerly.
func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
	obs.AuthzCacheEvent("invalidate")
}

func (s PermissionSet) clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
