package cache

import "testing"

func TestBuildKeyIsStableAndShardScoped(t *testing.T) {
	c := &TermCache{}
	k1 := c.buildKey(3, "search")
	k2 := c.buildKey(3, "search")
	if k1 != k2 {
		t.Fatalf("buildKey is not deterministic: %q != %q", k1, k2)
	}

	k3 := c.buildKey(4, "search")
	if k1 == k3 {
		t.Fatalf("buildKey did not vary with shard ID: %q", k1)
	}

	k4 := c.buildKey(3, "engine")
	if k1 == k4 {
		t.Fatalf("buildKey did not vary with term: %q", k1)
	}
}

func TestStatsStartsAtZero(t *testing.T) {
	c := &TermCache{}
	hits, misses := c.Stats()
	if hits != 0 || misses != 0 {
		t.Fatalf("Stats() = (%d, %d), want (0, 0) for a fresh cache", hits, misses)
	}
}
