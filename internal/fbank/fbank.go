// Package fbank implements the streaming filterbank feature extractor:
// framing, pre-emphasis, windowing, FFT, and triangular mel binning.
package fbank

import "math"

const (
	sampleRate  = 16000
	frameLength = 400 // 25ms @ 16kHz
	frameShift  = 160 // 10ms @ 16kHz
	preEmphasis = 0.97
	numMelBins  = 40
	lowFreqHz   = 20.0
	highFreqHz  = 8000.0
	epsilon     = 1e-10
)

// Instance holds the streaming state of one utterance's feature extraction:
// the residue of samples not yet consumed into a full frame, and the last
// sample of the previous frame (needed to pre-emphasize the first sample of
// the next one).
type Instance struct {
	buffer     []float32
	lastSample float32
	haveLast   bool
	melFilters [][]float64 // [bin][fftBin] weight, precomputed once
	fftSize    int
	window     []float64 // precomputed Hamming window
}

// NewInstance creates a fresh per-utterance fbank extractor.
func NewInstance() *Instance {
	fftSize := nextPowerOfTwo(frameLength)
	inst := &Instance{fftSize: fftSize}
	inst.window = hammingWindow(frameLength)
	inst.melFilters = buildMelFilters(numMelBins, fftSize, sampleRate, lowFreqHz, highFreqHz)
	return inst
}

func hammingWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// melOf converts a frequency in Hz to the mel scale.
func melOf(hz float64) float64 { return 1127.0 * math.Log(1+hz/700.0) }

// hzOf converts a mel value back to Hz.
func hzOf(mel float64) float64 { return 700.0 * (math.Exp(mel/1127.0) - 1) }

// buildMelFilters returns numBins triangular filters over the fftSize/2+1
// power-spectrum bins, spanning [lowHz, highHz], spaced evenly in mel scale.
func buildMelFilters(numBins, fftSize, sampleRate int, lowHz, highHz float64) [][]float64 {
	numFFTBins := fftSize/2 + 1
	melLow := melOf(lowHz)
	melHigh := melOf(highHz)
	points := make([]float64, numBins+2)
	for i := range points {
		points[i] = hzOf(melLow + (melHigh-melLow)*float64(i)/float64(numBins+1))
	}
	bin := make([]int, numBins+2)
	for i, hz := range points {
		bin[i] = int(math.Floor((float64(fftSize) + 1) * hz / float64(sampleRate)))
	}

	filters := make([][]float64, numBins)
	for m := 0; m < numBins; m++ {
		f := make([]float64, numFFTBins)
		left, center, right := bin[m], bin[m+1], bin[m+2]
		for k := left; k < center; k++ {
			if k < 0 || k >= numFFTBins || center == left {
				continue
			}
			f[k] = float64(k-left) / float64(center-left)
		}
		for k := center; k < right; k++ {
			if k < 0 || k >= numFFTBins || right == center {
				continue
			}
			f[k] = float64(right-k) / float64(right-center)
		}
		filters[m] = f
	}
	return filters
}

// Process appends newly-arrived PCM samples and returns a row-major matrix
// of any newly-completed fbank frames (numFrames x numMelBins). The unused
// sample residue is retained internally for the next call.
func (inst *Instance) Process(samples []float32) [][]float64 {
	inst.buffer = append(inst.buffer, samples...)

	var frames [][]float64
	for len(inst.buffer) >= frameLength {
		frames = append(frames, inst.computeFrame(inst.buffer[:frameLength]))
		inst.lastSample = inst.buffer[frameShift-1]
		inst.haveLast = true
		inst.buffer = inst.buffer[frameShift:]
	}
	return frames
}

func (inst *Instance) computeFrame(window []float32) []float64 {
	n := len(window)
	buf := make([]float64, n)

	prev := float64(0)
	if inst.haveLast {
		// The sample immediately preceding this window is the last sample
		// dropped by the previous frame's shift, i.e. index frameShift-1 of
		// the previous frame's window, which Process saved as lastSample.
		prev = float64(inst.lastSample)
	}
	buf[0] = float64(window[0]) - preEmphasis*prev
	for i := 1; i < n; i++ {
		buf[i] = float64(window[i]) - preEmphasis*float64(window[i-1])
	}

	for i := range buf {
		buf[i] *= inst.window[i]
	}

	padded := make([]float64, inst.fftSize)
	copy(padded, buf)

	bins := realFFT(padded)
	power := make([]float64, len(bins))
	for i, b := range bins {
		power[i] = real(b)*real(b) + imag(b)*imag(b)
	}

	out := make([]float64, numMelBins)
	for m, filt := range inst.melFilters {
		var sum float64
		for k, w := range filt {
			if w != 0 {
				sum += w * power[k]
			}
		}
		out[m] = math.Log(math.Max(sum, epsilon))
	}
	return out
}

// Dim returns the number of mel bins each output frame carries.
func (inst *Instance) Dim() int { return numMelBins }

// NumFramesFor returns the number of fbank frames a session that has
// consumed s total samples should have produced, matching spec §8's
// invariant f = max(0, floor((S - frameLength)/frameShift) + 1).
func NumFramesFor(s int) int {
	if s < frameLength {
		return 0
	}
	return (s-frameLength)/frameShift + 1
}
