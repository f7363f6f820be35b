package nnet

import (
	"testing"

	"github.com/gospeech/pocketasr/internal/matrix"
)

// identityNet passes features through unchanged except for a trailing
// Narrow that drops left/right context rows, mirroring a minimal real
// acoustic model's shape.
func identityNet(left, right int) *Nnet {
	return &Nnet{Layers: []Layer{&NarrowLayer{Left: left, Right: right}}}
}

func TestModelBatchAvailableAndCompute(t *testing.T) {
	const left, right, chunk, dim = 2, 2, 3, 1
	prior := matrix.VectorFrom([]float32{0})
	m := NewModel(identityNet(left, right), left, right, chunk, prior, nil)

	for i := 0; i < chunk+right-1; i++ {
		m.AppendFrame([]float64{float64(i)})
		if m.BatchAvailable() {
			t.Fatalf("batch available too early at frame %d", i)
		}
	}
	m.AppendFrame([]float64{float64(chunk + right - 1)})
	if !m.BatchAvailable() {
		t.Fatal("expected batch available")
	}

	out := m.ComputeBatch()
	if out.NumRows() != chunk {
		t.Fatalf("got %d rows, want %d", out.NumRows(), chunk)
	}
	// First chunk rows should be frames [0,1,2] (after left-padding with
	// frame 0 `left` times, the deque is [0,0,0,1,2,3,4]; Narrow(2,2) drops
	// the first two and last two, leaving [0,1,2]).
	want := []float32{0, 1, 2}
	for i, w := range want {
		if out.At(i, 0) != w {
			t.Errorf("row %d = %v, want %v", i, out.At(i, 0), w)
		}
	}
}

func TestModelEndOfStreamZeroSampleUtterance(t *testing.T) {
	prior := matrix.VectorFrom([]float32{0})
	m := NewModel(identityNet(1, 1), 1, 1, 4, prior, nil)
	out := m.EndOfStream()
	if out.NumRows() != 0 {
		t.Fatalf("got %d rows, want 0 for a zero-sample utterance", out.NumRows())
	}
}

func TestModelEndOfStreamShortUtterance(t *testing.T) {
	const left, right, chunk = 2, 2, 10
	prior := matrix.VectorFrom([]float32{0})
	m := NewModel(identityNet(left, right), left, right, chunk, prior, nil)

	// Only 3 frames total: fewer than left+chunk+right, so BatchAvailable
	// never fires; EndOfStream must still emit via the "all remaining" path.
	m.AppendFrame([]float64{1})
	m.AppendFrame([]float64{2})
	m.AppendFrame([]float64{3})
	if m.BatchAvailable() {
		t.Fatal("did not expect a full batch for a short utterance")
	}

	out := m.EndOfStream()
	// deque after left-pad + right-pad: [1,1,1,2,3,3,3] (left=2 pads of 1,
	// right=2 pads of 3) = 7 rows; Narrow(2,2) drops 2+2, leaving 3 rows.
	if out.NumRows() != 3 {
		t.Fatalf("got %d rows, want 3", out.NumRows())
	}
	want := []float32{1, 2, 3}
	for i, w := range want {
		if out.At(i, 0) != w {
			t.Errorf("row %d = %v, want %v", i, out.At(i, 0), w)
		}
	}
}

func TestModelPriorSubtraction(t *testing.T) {
	prior := matrix.VectorFrom([]float32{1, 2})
	m := NewModel(&Nnet{}, 0, 0, 1, prior, nil)
	out := matrix.NewMatrix(1, 2)
	out.Set(0, 0, 5)
	out.Set(0, 1, 5)
	m.subtractPrior(out)
	if out.At(0, 0) != 4 || out.At(0, 1) != 3 {
		t.Errorf("got %v %v, want 4 3", out.At(0, 0), out.At(0, 1))
	}
}

func TestPdfIDMapping(t *testing.T) {
	prior := matrix.VectorFrom([]float32{0})
	m := NewModel(&Nnet{}, 0, 0, 1, prior, []int32{10, 20, 30})
	if got := m.PdfID(1); got != 10 {
		t.Errorf("PdfID(1) = %d, want 10", got)
	}
	if got := m.PdfID(3); got != 30 {
		t.Errorf("PdfID(3) = %d, want 30", got)
	}
}

func TestPdfIDOutOfRangePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for out-of-range transition id")
		}
	}()
	prior := matrix.VectorFrom([]float32{0})
	m := NewModel(&Nnet{}, 0, 0, 1, prior, []int32{10})
	m.PdfID(5)
}
