// Package decoder implements the token-passing beam-search decoder: a
// viterbi search over the composition of a static HCLG transducer and an
// optional on-the-fly delta-LM, ported from original_source/src/decoder.cc.
package decoder

// State is a point in the composed search space: a state in HCLG paired
// with a state in the delta-LM (or 0 when running in single-HCLG mode).
// Comparable by value, so it serves directly as a Go map key in place of
// the original's custom hash table.
type State struct {
	HCLGState int32
	LMState   int32
}
