// Package cache provides a Redis-backed point-query result cache in front
// of a shard router's term lookups, collapsing concurrent misses for the
// same shard/term pair into a single accumulator/segment read.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/corvid-systems/ftsengine/internal/indexer/index"
	"github.com/corvid-systems/ftsengine/pkg/config"
	"github.com/corvid-systems/ftsengine/pkg/metrics"
	pkgredis "github.com/corvid-systems/ftsengine/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "term:"

// TermCache caches the decoded document list returned by a shard's
// PointQuery, keyed on shard ID and term. A singleflight.Group collapses
// concurrent misses for the same key into one call to fetchFn.
type TermCache struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
	metrics *metrics.Metrics
}

// SetMetrics attaches the Prometheus collectors this cache increments on
// every Get. Not calling this leaves the cache unmetered, which is fine for
// tests.
func (c *TermCache) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// New creates a TermCache backed by client, using cfg.CacheTTL as the entry
// lifetime.
func New(client *pkgredis.Client, cfg config.RedisConfig) *TermCache {
	return &TermCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "term-cache"),
	}
}

// Get returns the cached doc list for (shardID, term), if present.
func (c *TermCache) Get(ctx context.Context, shardID int, term string) ([]index.Doc, bool) {
	key := c.buildKey(shardID, term)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		if c.metrics != nil {
			c.metrics.CacheMissesTotal.Inc()
		}
		return nil, false
	}
	var docs []index.Doc
	if err := json.Unmarshal([]byte(data), &docs); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		if c.metrics != nil {
			c.metrics.CacheMissesTotal.Inc()
		}
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "shard_id", shardID, "term", term)
	return docs, true
}

// Set stores docs for (shardID, term) with the configured TTL.
func (c *TermCache) Set(ctx context.Context, shardID int, term string, docs []index.Doc) {
	key := c.buildKey(shardID, term)
	data, err := json.Marshal(docs)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached doc list for (shardID, term) if present,
// otherwise calls fetchFn exactly once across all concurrent callers sharing
// the same key, caching and returning its result.
func (c *TermCache) GetOrCompute(
	ctx context.Context,
	shardID int,
	term string,
	fetchFn func() ([]index.Doc, error),
) ([]index.Doc, bool, error) {
	if docs, ok := c.Get(ctx, shardID, term); ok {
		return docs, true, nil
	}
	key := c.buildKey(shardID, term)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if docs, ok := c.Get(ctx, shardID, term); ok {
			return docs, nil
		}
		docs, err := fetchFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, shardID, term, docs)
		return docs, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]index.Doc), false, nil
}

// Invalidate drops every cached entry for shardID. The admin RPC's Flush
// handler calls it (through Router.InvalidateCache) after a flush; periodic
// flushes and merges do not invalidate the cache.
func (c *TermCache) Invalidate(ctx context.Context, shardID int) error {
	pattern := fmt.Sprintf("%s%d:*", keyPrefix, shardID)
	deleted, err := c.client.FlushByPattern(ctx, pattern)
	if err != nil {
		return fmt.Errorf("invalidating shard %d cache: %w", shardID, err)
	}
	c.logger.Info("cache invalidated", "shard_id", shardID, "keys_deleted", deleted)
	return nil
}

// Stats reports cumulative hit/miss counts since process start.
func (c *TermCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *TermCache) buildKey(shardID int, term string) string {
	hash := sha256.Sum256([]byte(term))
	return fmt.Sprintf("%s%d:%x", keyPrefix, shardID, hash[:16])
}
