package fst

import "testing"

func TestArcCacheMatchesUncachedLookups(t *testing.T) {
	lm := buildLmFixture()
	c := NewArcCache(lm, 8)

	arc, ok := c.GetArc(1, 7)
	if !ok {
		t.Fatal("GetArc(1, 7) should resolve via backoff")
	}
	want, _ := lm.GetArc(1, 7)
	if arc != want {
		t.Errorf("cached GetArc(1, 7) = %+v, want %+v", arc, want)
	}

	// Repeat query must hit the cached entry and return the same result.
	again, ok := c.GetArc(1, 7)
	if !ok || again != want {
		t.Errorf("second GetArc(1, 7) = %+v, %v, want %+v, true", again, ok, want)
	}
}

func TestArcCacheBypassesState0(t *testing.T) {
	lm := buildLmFixture()
	c := NewArcCache(lm, 8)

	arc, ok := c.GetArc(0, 5)
	if !ok {
		t.Fatal("GetArc(0, 5) should hit bucket-0 via the wrapped LmFst")
	}
	want, _ := lm.GetArc(0, 5)
	if arc != want {
		t.Errorf("GetArc(0, 5) = %+v, want %+v", arc, want)
	}
	// State 0 must never populate a cache bucket.
	for i, e := range c.buckets {
		if e.valid && e.state == 0 {
			t.Errorf("bucket %d cached an entry for state 0, which should bypass the cache", i)
		}
	}
}

func TestArcCacheCachesMisses(t *testing.T) {
	lm := buildLmFixture()
	c := NewArcCache(lm, 8)

	if _, ok := c.GetArc(1, 99); ok {
		t.Fatal("GetArc(1, 99) should miss")
	}
	idx := c.hash(1, 99)
	e := c.buckets[idx]
	if !e.valid || e.hit {
		t.Errorf("bucket for (1, 99) = %+v, want a cached miss", e)
	}
	if _, ok := c.GetArc(1, 99); ok {
		t.Error("second GetArc(1, 99) should still miss from the cached entry")
	}
}

func TestArcCacheSingleBucketCollisionOverwrites(t *testing.T) {
	lm := buildLmFixture()
	c := NewArcCache(lm, 1) // forces every key into bucket 0

	first, ok1 := c.GetArc(1, 7)
	if !ok1 {
		t.Fatal("GetArc(1, 7) should resolve")
	}
	// A different key collides into the same bucket and evicts it.
	if _, ok := c.GetArc(2, 7); !ok {
		t.Fatal("GetArc(2, 7) should resolve")
	}
	// Re-querying the first key recomputes rather than returning stale data.
	second, ok2 := c.GetArc(1, 7)
	if !ok2 || second != first {
		t.Errorf("GetArc(1, 7) after eviction = %+v, %v, want %+v, true", second, ok2, first)
	}
}
