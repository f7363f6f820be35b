// Package nnet implements the neural acoustic model: a typed stack of
// layers propagated over streaming chunks of frames, ported from
// original_source/src/nnet.cc.
package nnet

import (
	"fmt"
	"math"

	"github.com/gospeech/pocketasr/internal/matrix"
)

// batchNormEpsilon is fixed per spec §9's open-question resolution: some
// original builds read epsilon from the model file but default to 1e-5
// regardless. This implementation always uses 1e-5 and documents it here
// rather than reading it from disk.
const batchNormEpsilon = 1e-5

// Layer is one stage of the acoustic model's feed-forward stack. Each
// variant is a plain struct carrying its own parameters; Propagate is a
// pure function of those parameters and the input batch. Layers are kept
// as a tagged slice of this interface rather than a class hierarchy with
// inheritance, matching spec §9's "polymorphic NN layers ... avoid
// inheritance" design note.
type Layer interface {
	// Propagate computes this layer's output for a batch of input rows.
	Propagate(in *matrix.Matrix) *matrix.Matrix
}

// LinearLayer computes out = in * Wᵀ + b via GEMM. W is stored already
// transposed (weightsT.Row(j) is the j-th output unit's weight vector),
// matching the layout original_source's LinearLayer reads from disk.
type LinearLayer struct {
	WeightsT *matrix.Matrix
	Bias     *matrix.Vector
}

func (l *LinearLayer) Propagate(in *matrix.Matrix) *matrix.Matrix {
	out := matrix.NewMatrix(in.NumRows(), l.WeightsT.NumRows())
	matrix.GEMM(out, in, l.WeightsT, l.Bias)
	return out
}

// ReLULayer computes out = max(in, 0) element-wise.
type ReLULayer struct{}

func (ReLULayer) Propagate(in *matrix.Matrix) *matrix.Matrix {
	out := matrix.NewMatrix(in.NumRows(), in.NumCols())
	for i := 0; i < in.NumRows(); i++ {
		ir, or := in.Row(i), out.Row(i)
		for j, v := range ir {
			if v > 0 {
				or[j] = v
			}
		}
	}
	return out
}

// NormalizeLayer rescales each row so its squared L2 norm equals its
// dimension: out = in * sqrt(D / sum(in^2)).
type NormalizeLayer struct{}

func (NormalizeLayer) Propagate(in *matrix.Matrix) *matrix.Matrix {
	out := matrix.NewMatrix(in.NumRows(), in.NumCols())
	d := float64(in.NumCols())
	for i := 0; i < in.NumRows(); i++ {
		ir := in.Row(i)
		var sumSq float64
		for _, v := range ir {
			sumSq += float64(v) * float64(v)
		}
		scale := float32(1)
		if sumSq > 0 {
			scale = float32(math.Sqrt(d / sumSq))
		}
		or := out.Row(i)
		for j, v := range ir {
			or[j] = v * scale
		}
	}
	return out
}

// SoftmaxLayer computes a numerically-stable per-row softmax.
type SoftmaxLayer struct{}

func (SoftmaxLayer) Propagate(in *matrix.Matrix) *matrix.Matrix {
	out := matrix.NewMatrix(in.NumRows(), in.NumCols())
	for i := 0; i < in.NumRows(); i++ {
		ir, or := in.Row(i), out.Row(i)
		max := ir[0]
		for _, v := range ir[1:] {
			if v > max {
				max = v
			}
		}
		var sum float64
		for j, v := range ir {
			e := math.Exp(float64(v - max))
			or[j] = float32(e)
			sum += e
		}
		for j := range or {
			or[j] = float32(float64(or[j]) / sum)
		}
	}
	return out
}

// LogSoftmaxLayer computes out = in - logsumexp(in) per row.
type LogSoftmaxLayer struct{}

func (LogSoftmaxLayer) Propagate(in *matrix.Matrix) *matrix.Matrix {
	out := matrix.NewMatrix(in.NumRows(), in.NumCols())
	for i := 0; i < in.NumRows(); i++ {
		ir, or := in.Row(i), out.Row(i)
		max := ir[0]
		for _, v := range ir[1:] {
			if v > max {
				max = v
			}
		}
		var sum float64
		for _, v := range ir {
			sum += math.Exp(float64(v - max))
		}
		logSum := max + float32(math.Log(sum))
		for j, v := range ir {
			or[j] = v - logSum
		}
	}
	return out
}

// SpliceLayer concatenates, for each output row r, the input rows at
// r+offset for each offset in Offsets, clamping offsets that fall outside
// [0, T-1] to the nearest edge row.
type SpliceLayer struct {
	Offsets []int
}

func (s *SpliceLayer) Propagate(in *matrix.Matrix) *matrix.Matrix {
	rows := in.NumRows()
	outCols := in.NumCols() * len(s.Offsets)
	out := matrix.NewMatrix(rows, outCols)
	for r := 0; r < rows; r++ {
		or := out.Row(r)
		for oi, off := range s.Offsets {
			src := r + off
			if src < 0 {
				src = 0
			}
			if src >= rows {
				src = rows - 1
			}
			copy(or[oi*in.NumCols():(oi+1)*in.NumCols()], in.Row(src))
		}
	}
	return out
}

// BatchNormLayer normalizes each column over the current batch:
// (x - mean_c) / sqrt(var_c + epsilon), with the standard deviation floored
// to 1e-5 before squaring back into the variance term. This is the
// redesigned per-batch statistic spec §4.3 calls for, superseding the
// original's load-time precomputed scale/offset.
type BatchNormLayer struct{}

func (BatchNormLayer) Propagate(in *matrix.Matrix) *matrix.Matrix {
	rows, cols := in.NumRows(), in.NumCols()
	out := matrix.NewMatrix(rows, cols)
	if rows == 0 {
		return out
	}

	mean := make([]float64, cols)
	for r := 0; r < rows; r++ {
		ir := in.Row(r)
		for c, v := range ir {
			mean[c] += float64(v)
		}
	}
	for c := range mean {
		mean[c] /= float64(rows)
	}

	variance := make([]float64, cols)
	for r := 0; r < rows; r++ {
		ir := in.Row(r)
		for c, v := range ir {
			d := float64(v) - mean[c]
			variance[c] += d * d
		}
	}
	stdDev := make([]float64, cols)
	for c := range variance {
		variance[c] /= float64(rows)
		sd := math.Sqrt(variance[c])
		if sd < 1e-5 {
			sd = 1e-5
		}
		stdDev[c] = sd
	}

	for r := 0; r < rows; r++ {
		ir, or := in.Row(r), out.Row(r)
		for c, v := range ir {
			or[c] = float32((float64(v) - mean[c]) / math.Sqrt(stdDev[c]*stdDev[c]+batchNormEpsilon))
		}
	}
	return out
}

// NarrowLayer drops Left rows from the top and Right rows from the bottom.
// If the batch is too short to absorb left+right, it passes through
// unchanged, preserving the row-count invariant the streaming driver
// depends on for its final "all remaining frames" batch (spec §9).
type NarrowLayer struct {
	Left, Right int
}

func (n *NarrowLayer) Propagate(in *matrix.Matrix) *matrix.Matrix {
	rows := in.NumRows()
	if rows <= n.Left+n.Right {
		return in.Clone()
	}
	return in.SubRows(n.Left, rows-n.Right).Clone()
}

// Nnet is an ordered stack of layers, propagated front to back.
type Nnet struct {
	Layers []Layer
}

// Propagate runs the input batch through every layer in order.
func (nn *Nnet) Propagate(in *matrix.Matrix) *matrix.Matrix {
	cur := in
	for _, l := range nn.Layers {
		cur = l.Propagate(cur)
	}
	return cur
}

// layer type tags in the NN02/LAY0 on-disk format.
const (
	layerTypeLinear = iota
	layerTypeReLU
	layerTypeNormalize
	layerTypeSoftmax
	layerTypeLogSoftmax
	layerTypeSplice
	layerTypeBatchNorm
	layerTypeNarrow
)

// layerTypeName is used only for error messages when a model file declares
// an unknown layer type.
func layerTypeName(t int32) string {
	return fmt.Sprintf("layer-type-%d", t)
}
