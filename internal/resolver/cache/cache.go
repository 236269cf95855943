// Package cache memoises resolutions in Redis. Keys combine the trimmed
// input, the language hint and the entry store version, so any store write
// makes older entries unreachable without an explicit flush. The input is not
// case folded: exact ID matching is case sensitive, so "Flu" and "flu" may
// resolve differently.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/content"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/language"
	pkgredis "github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/redis"
)

const keyPrefix = "resolve:"

// KV is the key-value surface the cache needs. *redis.Client satisfies it.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Versioner reports the current entry store version.
type Versioner interface {
	Version() uint64
}

// ResolveFunc computes a resolution on a cache miss.
type ResolveFunc func() (content.Resolution, bool)

// cached is the stored form. Negative results are cached too so repeated
// unresolvable inputs skip the strategy chain.
type cached struct {
	Resolution content.Resolution `json:"resolution"`
	Found      bool               `json:"found"`
}

// Stats counts cache outcomes since start.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Errors int64 `json:"errors"`
}

// ResolutionCache is a read-through cache in front of the resolver.
type ResolutionCache struct {
	kv      KV
	version Versioner
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
	errors  atomic.Int64
	onHit   func()
	onMiss  func()
}

// Option configures a ResolutionCache.
type Option func(*ResolutionCache)

// WithCounters installs callbacks invoked on every hit and miss, typically
// Prometheus counter increments.
func WithCounters(onHit, onMiss func()) Option {
	return func(c *ResolutionCache) {
		c.onHit = onHit
		c.onMiss = onMiss
	}
}

// New creates a cache storing entries for ttl.
func New(kv KV, version Versioner, ttl time.Duration, opts ...Option) *ResolutionCache {
	c := &ResolutionCache{
		kv:      kv,
		version: version,
		ttl:     ttl,
		logger:  slog.Default().With("component", "resolution-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrResolve returns the cached resolution for input and languageHint, or
// calls resolve once per key across concurrent callers and caches the
// outcome. Cache failures fall back to resolve; they are never surfaced.
//
// A result computed under a cancelled context is neither cached nor handed to
// callers sharing the flight. Those callers resolve again with their own
// context.
func (c *ResolutionCache) GetOrResolve(ctx context.Context, input, languageHint string, resolve ResolveFunc) (content.Resolution, bool, bool) {
	key := c.buildKey(input, languageHint)
	if v, ok := c.get(ctx, key); ok {
		return v.Resolution, v.Found, true
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.get(ctx, key); ok {
			return v, nil
		}
		res, found := resolve()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v := cached{Resolution: res, Found: found}
		c.set(ctx, key, v)
		return v, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return content.Resolution{}, false, false
		}
		c.logger.Debug("shared resolution cancelled, resolving again", "key", key, "error", err)
		res, found := resolve()
		c.set(ctx, key, cached{Resolution: res, Found: found})
		return res, found, false
	}
	v := val.(cached)
	return v.Resolution, v.Found, false
}

// Invalidate removes every cached resolution.
func (c *ResolutionCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.kv.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating resolution cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats returns hit, miss and error counts.
func (c *ResolutionCache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Errors: c.errors.Load(),
	}
}

func (c *ResolutionCache) get(ctx context.Context, key string) (cached, bool) {
	data, err := c.kv.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.errors.Add(1)
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return cached{}, false
	}
	var v cached
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		c.errors.Add(1)
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return cached{}, false
	}
	c.hits.Add(1)
	if c.onHit != nil {
		c.onHit()
	}
	return v, true
}

func (c *ResolutionCache) set(ctx context.Context, key string, v cached) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.kv.Set(ctx, key, data, c.ttl); err != nil {
		c.errors.Add(1)
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *ResolutionCache) miss() {
	c.misses.Add(1)
	if c.onMiss != nil {
		c.onMiss()
	}
}

func (c *ResolutionCache) buildKey(input, languageHint string) string {
	var version uint64
	if c.version != nil {
		version = c.version.Version()
	}
	raw := fmt.Sprintf("%s\x00%s\x00%d", strings.TrimSpace(input), language.Code(languageHint), version)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
