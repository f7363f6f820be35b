package fbank

import (
	"math"
	"testing"
)

func TestNumFramesFor(t *testing.T) {
	tests := []struct {
		samples int
		want    int
	}{
		{0, 0},
		{399, 0},
		{400, 1},
		{560, 2},
		{720, 3},
	}
	for _, tt := range tests {
		if got := NumFramesFor(tt.samples); got != tt.want {
			t.Errorf("NumFramesFor(%d) = %d, want %d", tt.samples, got, tt.want)
		}
	}
}

func TestProcessProducesExpectedFrameCount(t *testing.T) {
	inst := NewInstance()
	samples := make([]float32, 720)
	for i := range samples {
		samples[i] = float32(math.Sin(float64(i) * 0.01))
	}
	frames := inst.Process(samples)
	if len(frames) != NumFramesFor(len(samples)) {
		t.Fatalf("got %d frames, want %d", len(frames), NumFramesFor(len(samples)))
	}
	for _, f := range frames {
		if len(f) != numMelBins {
			t.Fatalf("frame has %d bins, want %d", len(f), numMelBins)
		}
	}
}

func TestProcessStreamsAcrossCalls(t *testing.T) {
	samples := make([]float32, 720)
	for i := range samples {
		samples[i] = float32(math.Sin(float64(i) * 0.01))
	}

	whole := NewInstance()
	wantFrames := whole.Process(samples)

	streamed := NewInstance()
	var gotFrames [][]float64
	for i := 0; i < len(samples); i += 97 {
		end := i + 97
		if end > len(samples) {
			end = len(samples)
		}
		gotFrames = append(gotFrames, streamed.Process(samples[i:end])...)
	}

	if len(gotFrames) != len(wantFrames) {
		t.Fatalf("streamed %d frames, want %d", len(gotFrames), len(wantFrames))
	}
	for i := range wantFrames {
		for j := range wantFrames[i] {
			if math.Abs(gotFrames[i][j]-wantFrames[i][j]) > 1e-9 {
				t.Fatalf("frame %d bin %d = %v, want %v", i, j, gotFrames[i][j], wantFrames[i][j])
			}
		}
	}
}

func TestMelFiltersSpanExpectedFFTBins(t *testing.T) {
	filters := buildMelFilters(numMelBins, 512, sampleRate, lowFreqHz, highFreqHz)
	if len(filters) != numMelBins {
		t.Fatalf("got %d filters, want %d", len(filters), numMelBins)
	}
	for _, f := range filters {
		if len(f) != 512/2+1 {
			t.Fatalf("filter has %d bins, want %d", len(f), 512/2+1)
		}
	}
}
