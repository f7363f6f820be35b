package fst

// LmFst extends a static Fst with backoff-following GetArc/Final semantics
// and a direct-indexed "bucket-0" fast path for state 0, the hot
// unigram-history state. Ported from original_source/src/lm_fst.cc; bucket-0
// itself is not present in that source (only referenced from ce_stt.cc via
// InitBucket0) and is implemented here from spec §4.5.
type LmFst struct {
	fst     *Fst
	bucket0 map[int32]Arc // populated by InitBucket0; nil until then
}

// NewLmFst wraps fst with backoff semantics. Call InitBucket0 once after
// construction to populate the state-0 fast path.
func NewLmFst(fst *Fst) *LmFst { return &LmFst{fst: fst} }

// InitBucket0 builds the direct-indexed table of state 0's out-arcs. Spec
// §9 calls out the original's sentinel convention (marking an absent
// bucket-0 entry with input_label = -1) as collision-prone; this
// implementation instead reports absence with a plain (Arc{}, false)
// return from GetArc, same as every other miss path.
func (l *LmFst) InitBucket0() {
	arcs := l.fst.IterArcs(0)
	l.bucket0 = make(map[int32]Arc, len(arcs))
	for _, a := range arcs {
		if a.InputLabel == 0 {
			continue // the backoff arc, if any, is never a legal external query
		}
		l.bucket0[a.InputLabel] = a
	}
}

// StartState returns the underlying Fst's start state.
func (l *LmFst) StartState() int32 { return l.fst.StartState() }

// GetBackoffArc returns state s's backoff arc (the unique input_label==0
// arc, stored first by convention), if any.
func (l *LmFst) GetBackoffArc(s int32) (Arc, bool) {
	arcs := l.fst.IterArcs(s)
	if len(arcs) > 0 && arcs[0].InputLabel == 0 {
		return arcs[0], true
	}
	return Arc{}, false
}

// GetArc resolves ilabel from state s, following backoff arcs as needed.
// ilabel must be nonzero; callers never query the internal epsilon label.
func (l *LmFst) GetArc(s, ilabel int32) (Arc, bool) {
	if s == 0 && l.bucket0 != nil {
		if a, ok := l.bucket0[ilabel]; ok {
			return a, true
		}
	} else if a, ok := l.fst.GetArc(s, ilabel); ok {
		return a, true
	}

	boff, ok := l.GetBackoffArc(s)
	if !ok {
		return Arc{}, false
	}
	next, ok := l.GetArc(boff.NextState, ilabel)
	if !ok {
		return Arc{}, false
	}
	next.Weight += boff.Weight
	return next, true
}

// Final returns state s's final cost, following backoff arcs when s's own
// final cost is non-finite. Returns Inf if no backoff chain ever reaches a
// finite final cost.
func (l *LmFst) Final(s int32) float32 {
	cost := l.fst.Final(s)
	if cost < Inf {
		return cost
	}
	boff, ok := l.GetBackoffArc(s)
	if !ok {
		return Inf
	}
	rest := l.Final(boff.NextState)
	if rest >= Inf {
		return Inf
	}
	return rest + boff.Weight
}
