// Package orgcache caches organization-scoped resources keyed by (organization, kind, key),
// so data fetched for one organization can never be served under another.
package orgcache

import (
	"sync"
	"time"

	"tenant-dashboard/internal/metrics"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Key identifies a cached resource. OrganizationID is part of the key, never implied.
type Key struct {
	OrganizationID string
	Kind           string
	Key            string
}

// Scope reports whether the organization a fetch started under is still the active one.
type Scope interface {
	OrganizationID() string
	Current() bool
}

type Cache struct {
	lru     *expirable.LRU[Key, any]
	metrics *metrics.Metrics

	// mu orders PutScoped against InvalidateOrganization.
	mu sync.Mutex
}

func New(size int, ttl time.Duration, m *metrics.Metrics) *Cache {
	if size <= 0 {
		size = 512
	}
	return &Cache{lru: expirable.NewLRU[Key, any](size, nil, ttl), metrics: m}
}

func (c *Cache) Get(k Key) (any, bool) {
	v, ok := c.lru.Get(k)
	c.metrics.CacheLookup(ok)
	return v, ok
}

// PutScoped stores v only if scope is still current and belongs to k's organization.
// It reports whether the value was stored.
func (c *Cache) PutScoped(scope Scope, k Key, v any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if scope.OrganizationID() != k.OrganizationID || !scope.Current() {
		c.metrics.Stale("orgcache")
		return false
	}
	c.lru.Add(k, v)
	return true
}

// InvalidateOrganization drops every entry of orgID and returns how many were removed.
func (c *Cache) InvalidateOrganization(orgID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, k := range c.lru.Keys() {
		if k.OrganizationID == orgID {
			if c.lru.Remove(k) {
				n++
			}
		}
	}
	return n
}

func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

func (c *Cache) Len() int { return c.lru.Len() }

