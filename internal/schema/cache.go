package schema

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultDescribeTimeout bounds one shared introspection call.
const DefaultDescribeTimeout = 30 * time.Second

// Cache wraps a Provider with a TTL. Concurrent misses share one
// introspection call, which outlives the cancellation of any single caller.
// A zero TTL disables caching.
type Cache struct {
	provider Provider
	ttl      time.Duration
	timeout  time.Duration
	now      func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	value     Description
	fetchedAt time.Time
	valid     bool
}

func NewCache(provider Provider, ttl time.Duration) *Cache {
	return &Cache{provider: provider, ttl: ttl, timeout: DefaultDescribeTimeout, now: time.Now}
}

func (c *Cache) Describe(ctx context.Context) (Description, error) {
	if c.ttl > 0 {
		c.mu.RLock()
		if c.valid && c.now().Sub(c.fetchedAt) < c.ttl {
			value := c.value
			c.mu.RUnlock()
			return value, nil
		}
		c.mu.RUnlock()
	}

	flight := c.group.DoChan("describe", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		description, err := c.provider.Describe(fetchCtx)
		if err != nil {
			return Description{}, err
		}
		c.mu.Lock()
		c.value = description
		c.fetchedAt = c.now()
		c.valid = true
		c.mu.Unlock()
		return description, nil
	})
	select {
	case <-ctx.Done():
		return Description{}, ctx.Err()
	case result := <-flight:
		if result.Err != nil {
			return Description{}, result.Err
		}
		return result.Val.(Description), nil
	}
}

// Invalidate drops the cached description; the next Describe introspects.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.value = Description{}
	c.mu.Unlock()
}
