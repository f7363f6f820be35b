package fst

import "testing"

// toyHCLG builds the 3-state, 3-arc transducer used as the reference
// example: 0 -(1:1/0.5)-> 1, 0 -(2:2/1.5)-> 1, 1 -(3:3/2.5)-> 2, final(2)=3.5.
func toyHCLG() *Fst {
	final := []float32{Inf, Inf, 3.5}
	firstArcIndex := []int32{0, 2, 3}
	arcs := []Arc{
		{NextState: 1, InputLabel: 1, OutputLabel: 1, Weight: 0.5},
		{NextState: 1, InputLabel: 2, OutputLabel: 2, Weight: 1.5},
		{NextState: 2, InputLabel: 3, OutputLabel: 3, Weight: 2.5},
	}
	return NewFst(0, final, firstArcIndex, arcs)
}

func TestGetArcToyHCLG(t *testing.T) {
	f := toyHCLG()
	arc, ok := f.GetArc(0, 2)
	if !ok {
		t.Fatal("GetArc(0, 2) missing")
	}
	want := Arc{NextState: 1, InputLabel: 2, OutputLabel: 2, Weight: 1.5}
	if arc != want {
		t.Errorf("GetArc(0, 2) = %+v, want %+v", arc, want)
	}
}

func TestGetArcMiss(t *testing.T) {
	f := toyHCLG()
	if _, ok := f.GetArc(0, 99); ok {
		t.Error("GetArc(0, 99) should miss")
	}
	if _, ok := f.GetArc(2, 1); ok {
		t.Error("GetArc(2, 1) should miss: state 2 has no out-arcs")
	}
}

func TestFinalToyHCLG(t *testing.T) {
	f := toyHCLG()
	if got := f.Final(0); got != Inf {
		t.Errorf("final(0) = %v, want +Inf", got)
	}
	if got := f.Final(2); got != 3.5 {
		t.Errorf("final(2) = %v, want 3.5", got)
	}
}

func TestIterArcsOrderedByInputLabel(t *testing.T) {
	f := toyHCLG()
	arcs := f.IterArcs(0)
	if len(arcs) != 2 {
		t.Fatalf("len(IterArcs(0)) = %d, want 2", len(arcs))
	}
	if arcs[0].InputLabel > arcs[1].InputLabel {
		t.Errorf("arcs not sorted by InputLabel: %+v", arcs)
	}
	if len(f.IterArcs(2)) != 0 {
		t.Errorf("IterArcs(2) should be empty")
	}
}

func TestArcEndPrecomputedNotForwardScanned(t *testing.T) {
	// A state with zero out-arcs sandwiched between two states that do have
	// arcs must still resolve to an empty range, not silently borrow the
	// next nonzero firstArcIndex -- the bug spec names for a naive
	// forward-scanning CountArcs.
	final := []float32{Inf, Inf, Inf, 1.0}
	firstArcIndex := []int32{0, 1, 1, 2}
	arcs := []Arc{
		{NextState: 1, InputLabel: 5, Weight: 0.1},
		{NextState: 3, InputLabel: 7, Weight: 0.2},
	}
	f := NewFst(0, final, firstArcIndex, arcs)
	if len(f.IterArcs(1)) != 0 {
		t.Errorf("IterArcs(1) should be empty for a state with no out-arcs, got %v", f.IterArcs(1))
	}
	if arcs := f.IterArcs(2); len(arcs) != 1 || arcs[0].InputLabel != 7 {
		t.Errorf("IterArcs(2) = %v, want the single arc labeled 7", arcs)
	}
}
