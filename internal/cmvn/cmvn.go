// Package cmvn implements streaming sliding-window cepstral mean
// normalization with a global-stats smoothing fallback for the early
// frames of an utterance, ported from original_source/src/cmvn.cc.
package cmvn

const (
	// window is the sliding-window size W.
	window = 100
	// globalFrames is the smoothing cap G.
	globalFrames = 200
)

// Instance holds one utterance's incremental CMVN state. Frames must be
// supplied to GetFrame in order; there is no random seek.
type Instance struct {
	globalStats []float64 // dim+1: [sum_0 ... sum_{d-1}, count]
	rawFeats    [][]float64

	cached []float64 // dim+1 running stats for the current frame
	dim    int
	nextF  int // next expected frame index, for the sequential-access invariant
}

// NewInstance creates a CMVN instance. globalStats is the precomputed
// dim+1-length [sums..., count] vector used for smoothing; pass nil to
// disable smoothing (equivalent to an all-zero global count).
func NewInstance(dim int, globalStats []float64) *Instance {
	gs := globalStats
	if gs == nil {
		gs = make([]float64, dim+1)
	}
	return &Instance{
		globalStats: gs,
		cached:      make([]float64, dim+1),
		dim:         dim,
	}
}

// computeStats updates the running window sum for frame f given the full
// raw-feature history (rawFeats must already contain frame f).
func (inst *Instance) computeStats(f int) {
	if f != inst.nextF {
		panic("cmvn: frames must be requested in sequential order")
	}
	raw := inst.rawFeats[f]
	if f == 0 {
		for d := 0; d < inst.dim; d++ {
			inst.cached[d] = raw[d]
		}
		inst.cached[inst.dim] = 1
	} else {
		for d := 0; d < inst.dim; d++ {
			inst.cached[d] += raw[d]
		}
		inst.cached[inst.dim]++
		if f >= window {
			old := inst.rawFeats[f-window]
			for d := 0; d < inst.dim; d++ {
				inst.cached[d] -= old[d]
			}
			inst.cached[inst.dim]--
		}
	}
}

// smoothStats blends the running window stats with the global stats when
// the window hasn't filled yet, returning the (possibly blended) stats
// vector; it does not mutate inst.cached.
func (inst *Instance) smoothStats() []float64 {
	count := inst.cached[inst.dim]
	globalCount := inst.globalStats[inst.dim]
	if count >= window || globalCount <= 0 {
		return inst.cached
	}

	countFromGlobal := float64(window) - count
	if countFromGlobal > globalFrames {
		countFromGlobal = globalFrames
	}
	if countFromGlobal <= 0 {
		return inst.cached
	}

	out := make([]float64, inst.dim+1)
	scale := countFromGlobal / globalCount
	for d := 0; d <= inst.dim; d++ {
		out[d] = inst.cached[d] + scale*inst.globalStats[d]
	}
	return out
}

// apply subtracts the smoothed mean from the raw frame, returning a new
// normalized feature vector.
func apply(raw []float64, stats []float64, dim int) []float64 {
	count := stats[dim]
	out := make([]float64, dim)
	if count <= 0 {
		copy(out, raw)
		return out
	}
	for d := 0; d < dim; d++ {
		out[d] = raw[d] - stats[d]/count
	}
	return out
}

// GetFrame appends raw (the newly-available raw feature vector for frame
// index f, which must equal the count of frames already supplied) and
// returns the CMVN-normalized frame.
func (inst *Instance) GetFrame(raw []float64) []float64 {
	f := len(inst.rawFeats)
	inst.rawFeats = append(inst.rawFeats, raw)
	inst.computeStats(f)
	inst.nextF++
	stats := inst.smoothStats()
	return apply(raw, stats, inst.dim)
}
