package paramstore

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultTTL bounds how long a rotated key can keep being served.
const DefaultTTL = time.Minute

// Cached memoizes a Getter per parameter name. Errors are never cached.
type Cached struct {
	next  Getter
	cache *ttlcache.Cache[string, string]
	ttl   time.Duration
}

func NewCached(next Getter, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cached{
		next: next,
		cache: ttlcache.New[string, string](
			ttlcache.WithTTL[string, string](ttl),
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
		ttl: ttl,
	}
}

func (c *Cached) GetParameter(ctx context.Context, name string) (string, error) {
	if item := c.cache.Get(name); item != nil {
		return item.Value(), nil
	}

	v, err := c.next.GetParameter(ctx, name)
	if err != nil {
		return "", err
	}
	c.cache.Set(name, v, ttlcache.DefaultTTL)
	return v, nil
}

// Invalidate drops every cached value.
func (c *Cached) Invalidate() {
	c.cache.DeleteAll()
}
