package nnet

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/gospeech/pocketasr/internal/matrix"
)

// Model is the streaming chunked acoustic-model driver: an Nnet plus the
// left/right context, chunk size, output prior, and transition-id-to-pdf-id
// map needed to turn a stream of feature frames into log-posterior rows.
// Ported from original_source/src/am.h's AcousticModel::Instance; the
// buffering/batching logic itself (AppendFrame/BatchAvailable/ComputeBatch)
// is written from spec §4.3 since the original's .cc definitions for those
// methods are not present in this pack.
type Model struct {
	nn                 *Nnet
	left, right, chunk int
	logPrior           *matrix.Vector
	tid2pdf            []int32
	deque              [][]float64
	started            bool
}

// NewModel constructs a streaming driver around nn.
func NewModel(nn *Nnet, left, right, chunk int, logPrior *matrix.Vector, tid2pdf []int32) *Model {
	return &Model{nn: nn, left: left, right: right, chunk: chunk, logPrior: logPrior, tid2pdf: tid2pdf}
}

// NumPdfs returns the dimensionality of the acoustic model's output layer.
func (m *Model) NumPdfs() int { return m.logPrior.Dim() }

// PdfID maps an HCLG transition id to its pdf id (the column of the
// per-frame log-posterior row a decoder arc should read).
func (m *Model) PdfID(transitionID int32) int32 {
	if transitionID <= 0 || int(transitionID) > len(m.tid2pdf) {
		panic(fmt.Sprintf("nnet: transition id %d out of range [1,%d]", transitionID, len(m.tid2pdf)))
	}
	return m.tid2pdf[transitionID-1]
}

// AppendFrame pushes one newly-computed feature frame. On the very first
// call of a session it left-pads the deque by replicating this frame
// `left` times, matching the "left-pad with the very first frame before
// processing begins" contract in spec §4.3.
func (m *Model) AppendFrame(feat []float64) {
	if !m.started {
		m.started = true
		for i := 0; i < m.left; i++ {
			m.deque = append(m.deque, cloneFeat(feat))
		}
	}
	m.deque = append(m.deque, cloneFeat(feat))
}

// BatchAvailable reports whether the deque holds at least
// left+chunk+right frames, i.e. a full batch is ready.
func (m *Model) BatchAvailable() bool {
	return len(m.deque) >= m.left+m.chunk+m.right
}

// ComputeBatch slices the leading left+chunk+right rows, propagates them
// through the network, subtracts the log prior row-wise, and drops the
// consumed `chunk` rows from the deque. Panics if the network doesn't
// produce exactly `chunk` output rows, matching spec §4.3's "an assertion
// fires otherwise (configuration error)".
func (m *Model) ComputeBatch() *matrix.Matrix {
	if !m.BatchAvailable() {
		panic("nnet: ComputeBatch called without a full batch buffered")
	}
	batchLen := m.left + m.chunk + m.right
	batch := framesToMatrix(m.deque[:batchLen])
	out := m.nn.Propagate(batch)
	if out.NumRows() != m.chunk {
		panic(fmt.Sprintf("nnet: acoustic model produced %d output rows, want %d", out.NumRows(), m.chunk))
	}
	m.subtractPrior(out)
	m.deque = m.deque[m.chunk:]
	return out
}

// EndOfStream right-pads the deque by replicating the last frame `right`
// times, then propagates whatever remains as a single "all available"
// batch, per spec §4.3's end-of-stream contract. Returns a zero-row matrix
// if no frame was ever appended (the zero-sample-utterance boundary case).
func (m *Model) EndOfStream() *matrix.Matrix {
	if !m.started || len(m.deque) == 0 {
		return matrix.NewMatrix(0, m.NumPdfs())
	}
	last := m.deque[len(m.deque)-1]
	for i := 0; i < m.right; i++ {
		m.deque = append(m.deque, cloneFeat(last))
	}
	batch := framesToMatrix(m.deque)
	out := m.nn.Propagate(batch)
	m.subtractPrior(out)
	m.deque = nil
	return out
}

func (m *Model) subtractPrior(out *matrix.Matrix) {
	for i := 0; i < out.NumRows(); i++ {
		row := matrix.VectorFrom(out.Row(i))
		row.AddVec(-1, m.logPrior)
	}
}

func cloneFeat(feat []float64) []float64 {
	out := make([]float64, len(feat))
	copy(out, feat)
	return out
}

func framesToMatrix(frames [][]float64) *matrix.Matrix {
	if len(frames) == 0 {
		return matrix.NewMatrix(0, 0)
	}
	m := matrix.NewMatrix(len(frames), len(frames[0]))
	for i, f := range frames {
		row := m.Row(i)
		for j, v := range f {
			row[j] = float32(v)
		}
	}
	return m
}

// ReadPrior reads a VEC0 vector of raw (non-log) output priors and returns
// its natural log, matching original_source's "stored as probabilities on
// disk, ApplyLog'd after read" convention.
func ReadPrior(r io.Reader, name string) (*matrix.Vector, error) {
	v, err := ReadVector(r, name)
	if err != nil {
		return nil, err
	}
	v.ApplyLog()
	return v, nil
}

// ReadTransitionMap reads a flat little-endian int32 transition-id-to-pdf-id
// table (one entry per transition id, 1-indexed by the caller).
func ReadTransitionMap(r io.Reader) ([]int32, error) {
	var out []int32
	for {
		var v int32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			if err == io.EOF {
				return out, nil
			}
			return nil, fmt.Errorf("nnet: reading transition map: %w", err)
		}
		out = append(out, v)
	}
}
