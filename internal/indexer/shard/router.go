// Package shard provides hash-based shard routing for index engines. Each
// shard owns an independent indexer.Engine instance backed by its own data
// directory, and the Router dispatches documents by shard ID.
package shard

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/corvid-systems/ftsengine/internal/analytics"
	"github.com/corvid-systems/ftsengine/internal/indexer"
	"github.com/corvid-systems/ftsengine/internal/indexer/cache"
	"github.com/corvid-systems/ftsengine/internal/indexer/index"
	"github.com/corvid-systems/ftsengine/pkg/config"
	"github.com/corvid-systems/ftsengine/pkg/metrics"
)

// Router maps shard IDs to dedicated indexer.Engine instances.
type Router struct {
	engines   map[int]*indexer.Engine
	mu        sync.RWMutex
	baseCfg   config.IndexerConfig
	numShards int
	logger    *slog.Logger
	termCache *cache.TermCache
}

// NewRouter creates numShards engines, each in its own sub-directory under
// baseCfg.DataDir.
func NewRouter(baseCfg config.IndexerConfig, numShards int) (*Router, error) {
	r := &Router{
		engines:   make(map[int]*indexer.Engine, numShards),
		baseCfg:   baseCfg,
		numShards: numShards,
		logger:    slog.Default().With("component", "shard-router"),
	}
	for i := 0; i < numShards; i++ {
		shardCfg := baseCfg
		shardCfg.DataDir = filepath.Join(baseCfg.DataDir, fmt.Sprintf("shard-%d", i))
		engine, err := indexer.NewEngine(shardCfg)
		if err != nil {
			r.closeAll()
			return nil, fmt.Errorf("creating engine for shard %d: %w", i, err)
		}
		r.engines[i] = engine
		r.logger.Info("shard engine initialized",
			"shard_id", i,
			"data_dir", shardCfg.DataDir,
		)
	}
	r.logger.Info("shard router ready", "num_shards", numShards)
	return r, nil
}

// Route returns the Engine responsible for the given shard ID.
func (r *Router) Route(shardID int) (*indexer.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	engine, ok := r.engines[shardID]
	if !ok {
		return nil, fmt.Errorf("unknown shard ID %d (valid range: 0-%d)", shardID, r.numShards-1)
	}
	return engine, nil
}

// GetAllEngines returns a snapshot map of all shard engines.
func (r *Router) GetAllEngines() map[int]*indexer.Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[int]*indexer.Engine, len(r.engines))
	for id, engine := range r.engines {
		result[id] = engine
	}
	return result
}

// NumShards returns the number of shards managed by this router.
func (r *Router) NumShards() int {
	return r.numShards
}

// AttachCache wires a TermCache in front of Lookup so repeated point queries
// for the same shard/term pair are served from Redis instead of re-decoding
// the live accumulator and every on-disk segment. Not calling this leaves
// Lookup uncached, which is fine for tests and single-shard tooling.
func (r *Router) AttachCache(termCache *cache.TermCache) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.termCache = termCache
}

// Lookup resolves term against shardID's engine, serving from the attached
// TermCache when present. A cache miss falls through to the engine, whose
// result is cached for subsequent callers sharing the same key. hit reports
// whether the result was served from cache.
func (r *Router) Lookup(ctx context.Context, shardID int, term string) (docs []index.Doc, hit bool, err error) {
	engine, err := r.Route(shardID)
	if err != nil {
		return nil, false, err
	}
	r.mu.RLock()
	termCache := r.termCache
	r.mu.RUnlock()
	if termCache == nil {
		docs, err = engine.PointQuery(term)
		return docs, false, err
	}
	return termCache.GetOrCompute(ctx, shardID, term, func() ([]index.Doc, error) {
		return engine.PointQuery(term)
	})
}

// InvalidateCache drops every cached Lookup entry for shardID, if a
// TermCache is attached. The admin RPC's Flush handler calls it after a
// flush; periodic flushes and merges do not.
func (r *Router) InvalidateCache(ctx context.Context, shardID int) error {
	r.mu.RLock()
	termCache := r.termCache
	r.mu.RUnlock()
	if termCache == nil {
		return nil
	}
	return termCache.Invalidate(ctx, shardID)
}

// AttachAnalytics wires collector into every shard's engine so index,
// delete and flush activity is published to the analytics pipeline.
func (r *Router) AttachAnalytics(collector *analytics.Collector) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, engine := range r.engines {
		engine.SetAnalytics(collector, id)
	}
}

// AttachMetrics wires m into every shard's engine, and sets the ActiveShards
// gauge to the router's shard count.
func (r *Router) AttachMetrics(m *metrics.Metrics) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, engine := range r.engines {
		engine.SetMetrics(m)
	}
	m.ActiveShards.Set(float64(len(r.engines)))
}

// FlushAll flushes every shard engine to disk.
func (r *Router) FlushAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var firstErr error
	for id, engine := range r.engines {
		if err := engine.Flush(context.Background()); err != nil {
			r.logger.Error("flush failed", "shard_id", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ReloadAll tells every shard engine to re-scan for newly flushed segments.
// Returns the total number of new segments loaded across all shards.
func (r *Router) ReloadAll() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, engine := range r.engines {
		total += engine.ReloadSegments()
	}
	return total
}

// Close flushes and closes every shard engine.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeAll()
}

// closeAll closes every shard engine, collecting the first error encountered.
func (r *Router) closeAll() error {
	var firstErr error
	for id, engine := range r.engines {
		if err := engine.Close(); err != nil {
			r.logger.Error("close failed", "shard_id", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
