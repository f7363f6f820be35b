package fst

// Fst is a read-only static weighted transducer: a single ordered arc
// sequence plus per-state first-arc indices and final costs. Arcs for a
// state are sorted by InputLabel; GetArc binary-searches that run.
type Fst struct {
	startState    int32
	final         []float32 // len == numStates; Inf for non-final
	firstArcIndex []int32   // len == numStates
	arcEnd        []int32   // len == numStates, precomputed at load time
	arcs          []Arc
}

// NewFst builds an Fst from already-decoded sections. arcEnd[s] must equal
// firstArcIndex[s+1] for every state but the last, and the total arc count
// for the last state -- computed once here rather than by the forward scan
// for "the next state with a nonzero index" that spec §9 flags as buggy on
// malformed files.
func NewFst(startState int32, final []float32, firstArcIndex []int32, arcs []Arc) *Fst {
	n := len(firstArcIndex)
	arcEnd := make([]int32, n)
	for s := 0; s < n-1; s++ {
		arcEnd[s] = firstArcIndex[s+1]
	}
	if n > 0 {
		arcEnd[n-1] = int32(len(arcs))
	}
	return &Fst{
		startState:    startState,
		final:         final,
		firstArcIndex: firstArcIndex,
		arcEnd:        arcEnd,
		arcs:          arcs,
	}
}

// StartState returns the designated start state.
func (f *Fst) StartState() int32 { return f.startState }

// NumStates returns the number of states.
func (f *Fst) NumStates() int32 { return int32(len(f.final)) }

// Final returns state s's final cost, or Inf if s is not final.
func (f *Fst) Final(s int32) float32 { return f.final[s] }

func (f *Fst) arcRange(s int32) (int32, int32) { return f.firstArcIndex[s], f.arcEnd[s] }

// GetArc binary-searches state s's out-arcs for one labeled ilabel.
func (f *Fst) GetArc(s, ilabel int32) (Arc, bool) {
	lo, hi := f.arcRange(s)
	arcs := f.arcs[lo:hi]
	i, j := 0, len(arcs)
	for i < j {
		mid := (i + j) / 2
		if arcs[mid].InputLabel < ilabel {
			i = mid + 1
		} else {
			j = mid
		}
	}
	if i < len(arcs) && arcs[i].InputLabel == ilabel {
		return arcs[i], true
	}
	return Arc{}, false
}

// IterArcs returns state s's out-arcs, in ascending InputLabel order. The
// returned slice aliases the Fst's storage and must not be retained past
// the Fst's lifetime mutating it.
func (f *Fst) IterArcs(s int32) []Arc {
	lo, hi := f.arcRange(s)
	return f.arcs[lo:hi]
}
