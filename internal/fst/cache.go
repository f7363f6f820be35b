package fst

// ArcSource is anything an ArcCache can sit in front of: an LmFst or a
// DeltaLmFst, both of which resolve arcs by (possibly expensive) recursion.
type ArcSource interface {
	StartState() int32
	GetArc(s, ilabel int32) (Arc, bool)
	Final(s int32) float32
}

// ArcCache is an open-addressed, single-entry-per-bucket cache over
// (state, ilabel) -> Arc, sitting in front of an ArcSource's GetArc. State 0
// bypasses the cache entirely because LmFst's bucket-0 already serves it
// directly at no extra cost.
type ArcCache struct {
	src      ArcSource
	buckets  []cacheEntry
	capacity uint64
}

type cacheEntry struct {
	valid  bool
	state  int32
	ilabel int32
	arc    Arc
	hit    bool // false when the cached result is "no such arc"
}

// NewArcCache wraps src with a cache of the given capacity (rounded up
// internally is not performed; pick a power of two for best distribution).
func NewArcCache(src ArcSource, capacity int) *ArcCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &ArcCache{src: src, buckets: make([]cacheEntry, capacity), capacity: uint64(capacity)}
}

func (c *ArcCache) hash(state, ilabel int32) uint64 {
	h := uint64(state)*31 + uint64(uint32(ilabel))
	return h % c.capacity
}

// StartState delegates to the wrapped source.
func (c *ArcCache) StartState() int32 { return c.src.StartState() }

// Final delegates to the wrapped source; final costs aren't cached, they're
// only looked up at end-of-stream.
func (c *ArcCache) Final(s int32) float32 { return c.src.Final(s) }

// GetArc resolves (state, ilabel), consulting the cache for every state
// but state 0.
func (c *ArcCache) GetArc(state, ilabel int32) (Arc, bool) {
	if state == 0 {
		return c.src.GetArc(state, ilabel)
	}

	idx := c.hash(state, ilabel)
	e := &c.buckets[idx]
	if e.valid && e.state == state && e.ilabel == ilabel {
		return e.arc, e.hit
	}

	arc, ok := c.src.GetArc(state, ilabel)
	*e = cacheEntry{valid: true, state: state, ilabel: ilabel, arc: arc, hit: ok}
	return arc, ok
}
