package acquisition

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/yourusername/gridiron-edge/internal/metrics"
	"github.com/yourusername/gridiron-edge/internal/models"
)

// Default time-to-live per source type
var DefaultTTLs = map[models.SourceType]time.Duration{
	models.SourceTypeGames:   10 * time.Minute,
	models.SourceTypeOdds:    30 * time.Second,
	models.SourceTypeEvents:  2 * time.Minute,
	models.SourceTypeWeather: 15 * time.Minute,
}

// staleRetention is how long past its TTL an entry stays available as a fallback
const staleRetention = 24 * time.Hour

// defaultFetchTimeout bounds a shared fetch started by a caller without a deadline
const defaultFetchTimeout = 30 * time.Second

type entry struct {
	value      interface{}
	fetchedAt  time.Time
	freshUntil time.Time
}

// Cache is a TTL cache keyed by source and entity. Concurrent loads of the same
// key share one in-flight fetch.
type Cache struct {
	store *gocache.Cache
	group singleflight.Group
	ttls  map[models.SourceType]time.Duration
	now   func() time.Time
}

// NewCache creates a cache. Missing TTLs fall back to DefaultTTLs.
func NewCache(ttls map[models.SourceType]time.Duration) *Cache {
	merged := make(map[models.SourceType]time.Duration, len(DefaultTTLs))
	for k, v := range DefaultTTLs {
		merged[k] = v
	}
	for k, v := range ttls {
		if v > 0 {
			merged[k] = v
		}
	}
	return &Cache{
		store: gocache.New(staleRetention, 10*time.Minute),
		ttls:  merged,
		now:   time.Now,
	}
}

// Key builds the cache key of a source and entity
func Key(source, entity string) string {
	return source + ":" + entity
}

// TTL returns the time-to-live of a source type
func (c *Cache) TTL(st models.SourceType) time.Duration {
	return c.ttls[st]
}

// lookup returns a cached value and whether it is still fresh
func (c *Cache) lookup(st models.SourceType, key string) (e entry, fresh, found bool) {
	v, ok := c.store.Get(key)
	if !ok {
		metrics.RecordCacheLookup(string(st), "miss")
		return entry{}, false, false
	}
	e = v.(entry)
	if c.now().Before(e.freshUntil) {
		metrics.RecordCacheLookup(string(st), "hit")
		return e, true, true
	}
	metrics.RecordCacheLookup(string(st), "stale")
	return e, false, true
}

// load runs fetch once per key across concurrent callers and stores the result.
// The shared fetch outlives the caller that started it: it keeps that caller's
// values and time budget but not its cancellation. Each caller still stops
// waiting when its own context ends.
func (c *Cache) load(ctx context.Context, ttl time.Duration, key string, fetch func(context.Context) (interface{}, error)) (interface{}, error) {
	timeout := defaultFetchTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	ch := c.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		v, err := fetch(fctx)
		if err != nil {
			return nil, err
		}
		now := c.now()
		c.store.Set(key, entry{value: v, fetchedAt: now, freshUntil: now.Add(ttl)}, gocache.DefaultExpiration)
		return v, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops a key
func (c *Cache) Invalidate(key string) {
	c.store.Delete(key)
}

// cachedFetch returns a fresh cached value, or fetches one. When the fetch
// fails and an expired value exists, the expired value is returned with
// stale set and the fetch error wrapped in ErrStaleData. A zero ttl uses the
// source type default.
func cachedFetch[T any](ctx context.Context, c *Cache, st models.SourceType, ttl time.Duration, key string, fetch func(context.Context) (T, error)) (value T, stale bool, fetchedAt time.Time, err error) {
	if ttl <= 0 {
		ttl = c.ttls[st]
	}
	e, fresh, found := c.lookup(st, key)
	if fresh {
		return e.value.(T), false, e.fetchedAt, nil
	}

	v, loadErr := c.load(ctx, ttl, key, func(ctx context.Context) (interface{}, error) {
		return fetch(ctx)
	})
	if loadErr == nil {
		return v.(T), false, c.now(), nil
	}

	if found {
		return e.value.(T), true, e.fetchedAt, fmt.Errorf("%s: %v: %w", key, loadErr, models.ErrStaleData)
	}
	var zero T
	return zero, false, time.Time{}, loadErr
}
