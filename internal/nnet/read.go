package nnet

import (
	"fmt"
	"io"

	"github.com/gospeech/pocketasr/internal/binformat"
	"github.com/gospeech/pocketasr/internal/matrix"
)

// ReadNnet parses the NN02 section: int32 leftContext, rightContext,
// numLayers, followed by numLayers LAY0 blocks (int32 layer type then a
// layer-specific payload). leftContext/rightContext are returned alongside
// the network since the streaming driver (internal/nnet's Model) needs
// them to size its feature deque.
func ReadNnet(r io.Reader, name string) (nn *Nnet, leftContext, rightContext int, err error) {
	f := binformat.NewReader(r, name)
	if _, err := f.ExpectSection("NN02"); err != nil {
		return nil, 0, 0, err
	}

	var left, right, numLayers int32
	if err := f.ReadValue(&left); err != nil {
		return nil, 0, 0, err
	}
	if err := f.ReadValue(&right); err != nil {
		return nil, 0, 0, err
	}
	if err := f.ReadValue(&numLayers); err != nil {
		return nil, 0, 0, err
	}

	nn = &Nnet{Layers: make([]Layer, 0, numLayers)}
	for i := int32(0); i < numLayers; i++ {
		layer, err := readLayer(f)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("%s: layer %d: %w", name, i, err)
		}
		nn.Layers = append(nn.Layers, layer)
	}
	return nn, int(left), int(right), nil
}

func readLayer(f *binformat.Reader) (Layer, error) {
	if _, err := f.ExpectSection("LAY0"); err != nil {
		return nil, err
	}
	var layerType int32
	if err := f.ReadValue(&layerType); err != nil {
		return nil, err
	}

	switch layerType {
	case layerTypeLinear:
		return readLinearLayer(f)
	case layerTypeReLU:
		return ReLULayer{}, nil
	case layerTypeNormalize:
		return NormalizeLayer{}, nil
	case layerTypeSoftmax:
		return SoftmaxLayer{}, nil
	case layerTypeLogSoftmax:
		return LogSoftmaxLayer{}, nil
	case layerTypeSplice:
		return readSpliceLayer(f)
	case layerTypeBatchNorm:
		return BatchNormLayer{}, nil
	case layerTypeNarrow:
		return readNarrowLayer(f)
	default:
		return nil, fmt.Errorf("unknown %s", layerTypeName(layerType))
	}
}

func readLinearLayer(f *binformat.Reader) (Layer, error) {
	weightsT, err := readMatrix(f)
	if err != nil {
		return nil, fmt.Errorf("reading linear weights: %w", err)
	}
	bias, err := readVector(f)
	if err != nil {
		return nil, fmt.Errorf("reading linear bias: %w", err)
	}
	return &LinearLayer{WeightsT: weightsT, Bias: bias}, nil
}

func readSpliceLayer(f *binformat.Reader) (Layer, error) {
	var n int32
	if err := f.ReadValue(&n); err != nil {
		return nil, err
	}
	offsets32, err := f.ReadInt32Slice(int(n))
	if err != nil {
		return nil, err
	}
	offsets := make([]int, n)
	for i, v := range offsets32 {
		offsets[i] = int(v)
	}
	return &SpliceLayer{Offsets: offsets}, nil
}

func readNarrowLayer(f *binformat.Reader) (Layer, error) {
	var left, right int32
	if err := f.ReadValue(&left); err != nil {
		return nil, err
	}
	if err := f.ReadValue(&right); err != nil {
		return nil, err
	}
	return &NarrowLayer{Left: int(left), Right: int(right)}, nil
}

// readMatrix reads a MAT0 section: int32 numRows, numCols, then numRows
// rows of float32 numCols each.
func readMatrix(f *binformat.Reader) (*matrix.Matrix, error) {
	if _, err := f.ExpectSection("MAT0"); err != nil {
		return nil, err
	}
	var rows, cols int32
	if err := f.ReadValue(&rows); err != nil {
		return nil, err
	}
	if err := f.ReadValue(&cols); err != nil {
		return nil, err
	}
	m := matrix.NewMatrix(int(rows), int(cols))
	for r := 0; r < int(rows); r++ {
		row, err := f.ReadFloat32Slice(int(cols))
		if err != nil {
			return nil, err
		}
		copy(m.Row(r), row)
	}
	return m, nil
}

// readVector reads a VEC0 section: int32 dim, then dim float32 values.
func readVector(f *binformat.Reader) (*matrix.Vector, error) {
	if _, err := f.ExpectSection("VEC0"); err != nil {
		return nil, err
	}
	var dim int32
	if err := f.ReadValue(&dim); err != nil {
		return nil, err
	}
	data, err := f.ReadFloat32Slice(int(dim))
	if err != nil {
		return nil, err
	}
	return matrix.VectorFrom(data), nil
}

// ReadVector exposes readVector for callers outside this package that need
// to load a standalone VEC0 file, such as the prior vector.
func ReadVector(r io.Reader, name string) (*matrix.Vector, error) {
	return readVector(binformat.NewReader(r, name))
}
