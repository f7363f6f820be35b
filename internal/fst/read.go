package fst

import (
	"io"

	"github.com/gospeech/pocketasr/internal/binformat"
)

// hclgSection is the on-disk tag for a static HCLG transducer.
const hclgSection = "pk::fst_0"

// lmFstSection is the on-disk tag for a backoff LM transducer, otherwise
// laid out identically to an hclgSection.
const lmFstSection = "pk::fst_lm"

// ReadFst parses the pk::fst_0 section: int32 stateNumber, arcNumber,
// startState; float32 final[stateNumber]; int32 firstArcIndex[stateNumber];
// then arcNumber packed 16-byte arcs (next_state, input_label,
// output_label int32 each, weight float32).
func ReadFst(r io.Reader, name string) (*Fst, error) {
	return readFstSection(r, name, hclgSection)
}

// ReadLmFst parses the pk::fst_lm section, the same on-disk layout as
// ReadFst's pk::fst_0 but tagged for a backoff LM transducer rather than a
// static HCLG one.
func ReadLmFst(r io.Reader, name string) (*Fst, error) {
	return readFstSection(r, name, lmFstSection)
}

func readFstSection(r io.Reader, name, section string) (*Fst, error) {
	f := binformat.NewReader(r, name)
	size, err := f.ExpectSection(section)
	if err != nil {
		return nil, err
	}

	var numStates, numArcs, startState int32
	if err := f.ReadValue(&numStates); err != nil {
		return nil, err
	}
	if err := f.ReadValue(&numArcs); err != nil {
		return nil, err
	}
	if err := f.ReadValue(&startState); err != nil {
		return nil, err
	}

	final, err := f.ReadFloat32Slice(int(numStates))
	if err != nil {
		return nil, err
	}
	firstArcIndex, err := f.ReadInt32Slice(int(numStates))
	if err != nil {
		return nil, err
	}

	arcs := make([]Arc, numArcs)
	for i := range arcs {
		var next, ilabel, olabel int32
		var weight float32
		if err := f.ReadValue(&next); err != nil {
			return nil, err
		}
		if err := f.ReadValue(&ilabel); err != nil {
			return nil, err
		}
		if err := f.ReadValue(&olabel); err != nil {
			return nil, err
		}
		if err := f.ReadValue(&weight); err != nil {
			return nil, err
		}
		arcs[i] = Arc{NextState: next, InputLabel: ilabel, OutputLabel: olabel, Weight: weight}
	}

	if err := f.CheckSectionSize(size); err != nil {
		return nil, err
	}

	return NewFst(startState, final, firstArcIndex, arcs), nil
}
