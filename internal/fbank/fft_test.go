package fbank

import (
	"math"
	"math/cmplx"
	"testing"
)

func naiveDFT(x []float64) []complex128 {
	n := len(x)
	out := make([]complex128, n)
	for k := 0; k < n; k++ {
		var sum complex128
		for t, xt := range x {
			theta := -2 * math.Pi * float64(k) * float64(t) / float64(n)
			sum += complex(xt, 0) * cmplx.Exp(complex(0, theta))
		}
		out[k] = sum
	}
	return out
}

func TestRealFFTMatchesNaiveDFT(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	want := naiveDFT(x)
	got := realFFT(x)

	if len(got) != len(x)/2+1 {
		t.Fatalf("realFFT returned %d bins, want %d", len(got), len(x)/2+1)
	}
	for i := range got {
		if cmplx.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("bin %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct{ n, want int }{
		{1, 1}, {2, 2}, {3, 4}, {400, 512}, {512, 512}, {513, 1024},
	}
	for _, tt := range tests {
		if got := nextPowerOfTwo(tt.n); got != tt.want {
			t.Errorf("nextPowerOfTwo(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}
