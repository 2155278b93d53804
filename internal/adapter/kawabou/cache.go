package kawabou

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/dam-data-etl/internal/observability"
)

// CachedFetcher wraps a Fetcher with an in-memory LRU cache keyed by URL.
// Entries expire after a fixed TTL so a long-running scheduler never serves
// a feed from an earlier run. Expiry is measured on the injected clock.
type CachedFetcher struct {
	inner   Fetcher
	cache   *lru.Cache[string, cachedBody]
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics
}

type cachedBody struct {
	body    []byte
	expires time.Time
}

// NewCachedFetcher creates a cache decorator around a fetcher holding at most
// maxEntries bodies. Sizes below one are raised to one.
func NewCachedFetcher(inner Fetcher, maxEntries int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedFetcher {
	// lru.New only fails for non-positive sizes.
	cache, _ := lru.New[string, cachedBody](max(maxEntries, 1))
	return &CachedFetcher{
		inner:   inner,
		cache:   cache,
		ttl:     ttl,
		clock:   clock,
		metrics: metrics,
	}
}

func (c *CachedFetcher) Fetch(ctx context.Context, feed, url string) ([]byte, bool) {
	if body, ok := c.lookup(url); ok {
		c.metrics.FetchCache.WithLabelValues("hit").Inc()
		return body, true
	}
	c.metrics.FetchCache.WithLabelValues("miss").Inc()

	body, ok := c.inner.Fetch(ctx, feed, url)
	if !ok {
		// Failures are not cached so the next run retries them.
		return nil, false
	}
	c.cache.Add(url, cachedBody{body: body, expires: c.clock.Now().Add(c.ttl)})
	return body, true
}

// lookup returns a live entry and drops an expired one.
func (c *CachedFetcher) lookup(url string) ([]byte, bool) {
	e, ok := c.cache.Get(url)
	if !ok {
		return nil, false
	}
	if !c.clock.Now().Before(e.expires) {
		c.cache.Remove(url)
		return nil, false
	}
	return e.body, true
}

// Len returns the number of cached bodies, expired ones included until they
// are looked up or evicted.
func (c *CachedFetcher) Len() int {
	return c.cache.Len()
}
