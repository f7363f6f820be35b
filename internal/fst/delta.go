package fst

// DeltaLmFst is a pure view object representing G⁻¹ ∘ G', the on-the-fly
// composition of a large replacement LM with the negated unigram baked
// into HCLG, used to rescore search hypotheses without re-composing HCLG
// itself. Implemented from spec §4.6; the original's DeltaLmFst class
// definition is not present in this pack (only referenced from ce_stt.cc).
type DeltaLmFst struct {
	smallLMUnigram []float32 // indexed by output label (word id)
	largeLM        *LmFst
	startSym       int32 // <s> word id
	endSym         int32 // </s> word id
}

// NewDeltaLmFst builds a delta-LM view. smallLMUnigram must be indexed by
// the same word-id space as largeLM's output labels.
func NewDeltaLmFst(smallLMUnigram []float32, largeLM *LmFst, startSym, endSym int32) *DeltaLmFst {
	return &DeltaLmFst{smallLMUnigram: smallLMUnigram, largeLM: largeLM, startSym: startSym, endSym: endSym}
}

// StartState transduces <s> from the large LM's start state so callers
// never have to emit <s> explicitly. If the large LM has no <s> arc from
// its own start state, falls back to that start state directly.
func (d *DeltaLmFst) StartState() int32 {
	if a, ok := d.largeLM.GetArc(d.largeLM.StartState(), d.startSym); ok {
		return a.NextState
	}
	return d.largeLM.StartState()
}

// GetArc delegates to the large LM and subtracts the small LM's unigram
// cost of the output label.
func (d *DeltaLmFst) GetArc(s, ilabel int32) (Arc, bool) {
	a, ok := d.largeLM.GetArc(s, ilabel)
	if !ok {
		return Arc{}, false
	}
	a.Weight -= d.unigramCost(a.OutputLabel)
	return a, true
}

// Final transduces </s> then takes the large LM's final cost at the
// resulting state minus the small LM's unigram cost of </s>; returns Inf
// if no </s> arc exists. The </s> arc's own traversal weight is included
// by analogy with LmFst.Final's backoff recursion (see DESIGN.md's
// open-question log for the reasoning -- spec §4.6 is terse here).
func (d *DeltaLmFst) Final(s int32) float32 {
	a, ok := d.largeLM.GetArc(s, d.endSym)
	if !ok {
		return Inf
	}
	rest := d.largeLM.Final(a.NextState)
	if rest >= Inf {
		return Inf
	}
	return a.Weight + rest - d.unigramCost(d.endSym)
}

func (d *DeltaLmFst) unigramCost(label int32) float32 {
	if label < 0 || int(label) >= len(d.smallLMUnigram) {
		return 0
	}
	return d.smallLMUnigram[label]
}
