// Package fst implements the static HCLG transducer, the backoff-aware LM
// FST with a bucket-0 fast path, the on-the-fly delta-LM composition, and a
// single-entry-per-bucket arc cache, ported from original_source/src/fst.cc
// and lm_fst.cc.
package fst

import "math"

// Arc is one transition of a weighted finite-state transducer.
// InputLabel == 0 denotes epsilon (nonemitting). Weight is a
// tropical-semiring cost (negative log-probability): lower is better.
type Arc struct {
	NextState   int32
	InputLabel  int32
	OutputLabel int32
	Weight      float32
}

// Inf is the +infinity final-cost sentinel for non-final states.
var Inf = float32(math.Inf(1))
