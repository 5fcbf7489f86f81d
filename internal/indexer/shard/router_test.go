package shard

import (
	"context"
	"testing"

	"github.com/corvid-systems/ftsengine/pkg/config"
)

func newTestRouter(t *testing.T, numShards int) *Router {
	t.Helper()
	cfg := config.IndexerConfig{
		DataDir:        t.TempDir(),
		SegmentMaxSize: 1 << 30,
	}
	r, err := NewRouter(cfg, numShards)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRouteUnknownShard(t *testing.T) {
	r := newTestRouter(t, 4)
	if _, err := r.Route(99); err == nil {
		t.Fatal("expected error routing to an out-of-range shard ID")
	}
}

func TestLookupWithoutCacheFallsThroughToEngine(t *testing.T) {
	r := newTestRouter(t, 2)
	engine, err := r.Route(0)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if err := engine.IndexDocument(1, "router test", "looking up terms through the shard router"); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	docs, hit, err := r.Lookup(context.Background(), 0, "router")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if hit {
		t.Error("expected hit=false with no cache attached")
	}
	if len(docs) != 1 {
		t.Fatalf("len(docs) = %d, want 1", len(docs))
	}
}

func TestInvalidateCacheNoopWithoutCache(t *testing.T) {
	r := newTestRouter(t, 2)
	if err := r.InvalidateCache(context.Background(), 0); err != nil {
		t.Fatalf("InvalidateCache without a cache attached should be a no-op: %v", err)
	}
}

func TestGetAllEnginesReturnsEveryShard(t *testing.T) {
	r := newTestRouter(t, 3)
	engines := r.GetAllEngines()
	if len(engines) != 3 {
		t.Fatalf("len(engines) = %d, want 3", len(engines))
	}
	for id, e := range engines {
		if e == nil {
			t.Fatalf("engine for shard %d is nil", id)
		}
	}
}

func TestFlushAllFlushesEveryShard(t *testing.T) {
	r := newTestRouter(t, 2)
	for id, engine := range r.GetAllEngines() {
		if err := engine.IndexDocument(int64(id), "flush all test", "content for flush all"); err != nil {
			t.Fatalf("IndexDocument: %v", err)
		}
	}
	if err := r.FlushAll(); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}
	for id, engine := range r.GetAllEngines() {
		_, segments, _ := engine.Stats()
		if segments != 1 {
			t.Errorf("shard %d segments = %d, want 1 after FlushAll", id, segments)
		}
	}
}
