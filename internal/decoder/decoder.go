package decoder

import (
	"log/slog"
	"math"
	"sort"

	"github.com/gospeech/pocketasr/internal/fst"
	"github.com/gospeech/pocketasr/internal/matrix"
)

const (
	// kBeamSize in the original: the target number of tokens the adaptive
	// cutoff tries to keep the beam under.
	beamSize = 30000
	// kBeamDelta: added margin when the max-active cutoff is adopted.
	beamDelta = float32(0.5)
	// kCutoffSamples: how many costs GetCutoff samples from prev_toks.
	cutoffSamples = 200
	// kCutoffRandSeed: the LCG is reseeded from this constant on every
	// call, so the same beam (same tokens in the same order) always yields
	// the same sample.
	cutoffRandSeed = uint64(0x322)
	lcgMultiplier  = uint64(25214903917)
	lcgIncrement   = uint64(11)
	// gcInterval: how often (in frames) the olabel DAG is swept.
	gcInterval = 20
	// defaultBeam matches the original's hardcoded Decoder constructor beam.
	defaultBeam = float32(16.0)
)

var inf32 = float32(math.Inf(1))

func isFinite32(v float32) bool {
	return !math.IsInf(float64(v), 0) && !math.IsNaN(float64(v))
}

// PdfMapper maps an HCLG arc's input label (a transition id) to the column
// of a frame's log-posterior row a decoder arc should read. nnet.Model
// implements this.
type PdfMapper interface {
	PdfID(transitionID int32) int32
}

// Hypothesis is a decoding result: the emitted words and the cost of the
// path that produced them.
type Hypothesis struct {
	// Words is in reverse order (most recently emitted first); callers
	// reading the transcript in natural order must reverse it themselves.
	Words  []int32
	Weight float32
}

// Decoder runs token-passing viterbi search over hclg, optionally composed
// on the fly with a delta-LM. Ported from original_source/src/decoder.cc.
type Decoder struct {
	hclg    *fst.Fst
	deltaLM fst.ArcSource // nil for single-HCLG mode
	pdfMap  PdfMapper
	amScale float32
	beam    float32

	toks, prevToks []*token
	stateIdx       map[State]int32
	olabels        olabelPool

	isEndOfStream    bool
	numFramesDecoded int
}

// NewDecoder builds a decoder over hclg. deltaLM may be nil to run in
// single-HCLG mode; otherwise it's typically an *fst.ArcCache wrapping an
// *fst.DeltaLmFst.
func NewDecoder(hclg *fst.Fst, pdfMap PdfMapper, amScale float32, deltaLM fst.ArcSource) *Decoder {
	return &Decoder{hclg: hclg, pdfMap: pdfMap, amScale: amScale, deltaLM: deltaLM, beam: defaultBeam}
}

// SetBeam overrides the search beam width used by getCutoff, replacing the
// constructor's defaultBeam. Must be called before Initialize.
func (d *Decoder) SetBeam(beam float32) { d.beam = beam }

// NumFramesDecoded returns the number of frames successfully processed.
func (d *Decoder) NumFramesDecoded() int { return d.numFramesDecoded }

// EndOfStream marks the stream as finished; BestPath will then include
// final costs in its search.
func (d *Decoder) EndOfStream() { d.isEndOfStream = true }

// Initialize resets the decoder and seeds the beam with hclg's start state
// composed with the delta-LM's start state (0 in single-HCLG mode).
func (d *Decoder) Initialize() {
	d.toks = nil
	d.prevToks = nil
	d.stateIdx = make(map[State]int32)
	d.olabels = olabelPool{}
	d.isEndOfStream = false
	d.numFramesDecoded = 0

	lmStart := int32(0)
	if d.deltaLM != nil {
		lmStart = d.deltaLM.StartState()
	}
	d.insertTok(State{HCLGState: d.hclg.StartState(), LMState: lmStart}, 0, nil, 0)
	d.processNonemitting(inf32)
}

// Process advances the decoder by one frame of acoustic log-posteriors.
// Returns false when the frame produced a dead beam (no surviving
// hypotheses); this is not an error, and later frames may still be fed.
func (d *Decoder) Process(frameLogp *matrix.Vector) bool {
	cutoff := d.processEmitting(frameLogp)
	if !isFinite32(cutoff) {
		return false
	}
	d.processNonemitting(cutoff)
	if len(d.toks) == 0 {
		return false
	}

	if d.numFramesDecoded%gcInterval == 0 {
		roots := make([]*olabelNode, 0, len(d.toks))
		for _, t := range d.toks {
			if t.olabel != nil {
				roots = append(roots, t.olabel)
			}
		}
		d.olabels.gc(roots)
	}

	d.numFramesDecoded++
	return true
}

func (d *Decoder) logLikelihood(frameLogp *matrix.Vector, transitionID int32) float32 {
	pdf := d.pdfMap.PdfID(transitionID)
	return d.amScale * frameLogp.At(int(pdf))
}

// propagateLM advances lmState along outputLabel in the delta-LM. When
// outputLabel is epsilon (0) or the decoder has no delta-LM, the state is
// unchanged and the transition is free. A symbol the delta-LM doesn't
// recognize is a HCLG/LM vocabulary mismatch, logged and otherwise ignored.
func (d *Decoder) propagateLM(lmState, outputLabel int32) (nextState int32, weight float32) {
	if d.deltaLM == nil || outputLabel == 0 {
		return lmState, 0
	}
	arc, ok := d.deltaLM.GetArc(lmState, outputLabel)
	if !ok {
		slog.Warn("decoder: HCLG output and LM input symbol mismatch", "lm_state", lmState, "label", outputLabel)
		return lmState, 0
	}
	return arc.NextState, arc.Weight
}

// insertTok inserts or relaxes the token at next, returning true if it was
// newly created or replaced an existing, more expensive token.
func (d *Decoder) insertTok(next State, outputLabel int32, prevOlabel *olabelNode, cost float32) bool {
	var nextOlabel *olabelNode
	if outputLabel != 0 {
		nextOlabel = d.olabels.child(prevOlabel, outputLabel)
	} else {
		nextOlabel = prevOlabel
	}

	idx, ok := d.stateIdx[next]
	if !ok {
		d.stateIdx[next] = int32(len(d.toks))
		d.toks = append(d.toks, &token{state: next, cost: cost, olabel: nextOlabel})
		return true
	}
	if d.toks[idx].cost > cost {
		d.toks[idx] = &token{state: next, cost: cost, olabel: nextOlabel}
		return true
	}
	return false
}

// getCutoff estimates a weight cutoff that keeps prevToks close to
// beamSize tokens, without sorting the whole beam. It samples up to
// cutoffSamples costs using a deterministic LCG (so the cutoff doesn't
// depend on thread scheduling) and partially orders just that sample.
func (d *Decoder) getCutoff() (beamCutoff, adaptiveBeam float32, bestTok *token) {
	bestCost := inf32
	bestTok = d.prevToks[0]

	nextRandom := cutoffRandSeed
	sampleProb := float32(cutoffSamples) / float32(len(d.prevToks))
	var costs []float32

	for _, tok := range d.prevToks {
		nextRandom = nextRandom*lcgMultiplier + lcgIncrement
		randomF := float32(nextRandom&0xffff) / 65535
		if randomF < sampleProb {
			costs = append(costs, tok.cost)
		}
		if tok.cost < bestCost {
			bestCost = tok.cost
			bestTok = tok
		}
	}

	if !isFinite32(bestCost) {
		return inf32, 0, bestTok
	}

	beamCutoff = bestCost + d.beam
	adaptiveBeam = d.beam

	if len(d.prevToks) > beamSize {
		cutoffIdx := len(costs) * beamSize / len(d.prevToks)
		if cutoffIdx >= len(costs) {
			cutoffIdx = len(costs) - 1
		}
		sort.Slice(costs, func(i, j int) bool { return costs[i] < costs[j] })
		maxActiveCutoff := costs[cutoffIdx]
		if maxActiveCutoff < beamCutoff {
			adaptiveBeam = maxActiveCutoff - bestCost + beamDelta
			beamCutoff = maxActiveCutoff
		}
	}

	return beamCutoff, adaptiveBeam, bestTok
}

// processEmitting swaps in prevToks, computes the cutoff, and expands every
// surviving token's emitting (non-epsilon) HCLG arcs against the new
// frame's acoustic scores. Returns the cutoff to use for this frame's
// nonemitting closure, or +Inf if the beam died.
func (d *Decoder) processEmitting(frameLogp *matrix.Vector) float32 {
	d.prevToks = d.toks
	d.toks = nil
	d.stateIdx = make(map[State]int32, len(d.prevToks))

	if len(d.prevToks) == 0 {
		return inf32
	}

	weightCutoff, adaptiveBeam, bestTok := d.getCutoff()
	if !isFinite32(weightCutoff) {
		return inf32
	}

	nextWeightCutoff := inf32

	// Scan the best token's arcs first to seed a tight bound before the
	// main pass, so early tokens in the main loop prune hard right away.
	bestState := bestTok.state
	for _, arc := range d.hclg.IterArcs(bestState.HCLGState) {
		if arc.InputLabel == 0 {
			continue
		}
		acCost := -d.logLikelihood(frameLogp, arc.InputLabel)
		total := bestTok.cost + arc.Weight + acCost
		if d.deltaLM != nil {
			_, lmWeight := d.propagateLM(bestState.LMState, arc.OutputLabel)
			total += lmWeight
		}
		if total+adaptiveBeam < nextWeightCutoff {
			nextWeightCutoff = total + adaptiveBeam
		}
	}

	for _, fromTok := range d.prevToks {
		if fromTok.cost > weightCutoff {
			continue
		}
		state := fromTok.state
		for _, arc := range d.hclg.IterArcs(state.HCLGState) {
			if arc.InputLabel == 0 {
				continue
			}
			acCost := -d.logLikelihood(frameLogp, arc.InputLabel)
			total := fromTok.cost + arc.Weight + acCost

			lmState := state.LMState
			if d.deltaLM != nil {
				var lmWeight float32
				lmState, lmWeight = d.propagateLM(state.LMState, arc.OutputLabel)
				total += lmWeight
			}

			if total > nextWeightCutoff {
				continue
			}
			if total+adaptiveBeam < nextWeightCutoff {
				nextWeightCutoff = total + adaptiveBeam
			}
			d.insertTok(State{HCLGState: arc.NextState, LMState: lmState}, arc.OutputLabel, fromTok.olabel, total)
		}
	}

	d.prevToks = nil
	return nextWeightCutoff
}

// processNonemitting closes the epsilon-arc reachability of the current
// beam under cutoff, working a state worklist to a fixed point. Since a
// state's arcs are sorted by input label and epsilon is label 0, the first
// non-epsilon arc seen ends the nonemitting run for that state.
func (d *Decoder) processNonemitting(cutoff float32) {
	queue := make([]State, 0, len(d.toks))
	for _, t := range d.toks {
		queue = append(queue, t.state)
	}

	for len(queue) > 0 {
		state := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		idx, ok := d.stateIdx[state]
		if !ok {
			panic("decoder: state missing from index during nonemitting closure")
		}
		fromTok := d.toks[idx]

		for _, arc := range d.hclg.IterArcs(state.HCLGState) {
			if arc.InputLabel != 0 {
				break
			}

			total := fromTok.cost + arc.Weight
			lmState := state.LMState
			if d.deltaLM != nil {
				var lmWeight float32
				lmState, lmWeight = d.propagateLM(state.LMState, arc.OutputLabel)
				total += lmWeight
			}
			if total > cutoff {
				continue
			}

			next := State{HCLGState: arc.NextState, LMState: lmState}
			if d.insertTok(next, arc.OutputLabel, fromTok.olabel, total) {
				queue = append(queue, next)
			}
		}
	}
}

// BestPath scans the current beam for the cheapest finished path (adding
// hclg's and the delta-LM's final costs when the stream has ended) and
// walks its output-label history. The weight returned is exactly that
// chosen cost -- final costs are folded in once, during the scan, not
// added again afterward.
func (d *Decoder) BestPath() Hypothesis {
	bestIdx := -1
	bestCost := inf32

	for i, tok := range d.toks {
		cost := tok.cost
		if d.isEndOfStream {
			cost += d.hclg.Final(tok.state.HCLGState)
			if d.deltaLM != nil {
				cost += d.deltaLM.Final(tok.state.LMState)
			}
		}
		if isFinite32(cost) && cost < bestCost {
			bestCost = cost
			bestIdx = i
		}
	}

	if bestIdx < 0 {
		return Hypothesis{}
	}

	var words []int32
	for n := d.toks[bestIdx].olabel; n != nil; n = n.previous {
		words = append(words, n.label)
	}
	return Hypothesis{Words: words, Weight: bestCost}
}
