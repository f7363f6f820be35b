package fbank

import "math/cmplx"

// realFFT computes the FFT of a real-valued signal padded to length n (a
// power of two), returning the n/2+1 unique complex bins. The original
// implementation used a split-radix SRFFT (see original_source/src/srfft.*);
// spec §4.1 explicitly allows substituting a standard real FFT since
// bit-exact agreement with that implementation isn't required. This is a
// textbook iterative radix-2 Cooley-Tukey FFT run over complex128, which is
// simpler to verify and plenty fast for the 512-sample windows fbank uses.
func realFFT(samples []float64) []complex128 {
	n := len(samples)
	buf := make([]complex128, n)
	for i, s := range samples {
		buf[i] = complex(s, 0)
	}
	fftInPlace(buf)
	return buf[:n/2+1]
}

func fftInPlace(a []complex128) {
	n := len(a)
	if n <= 1 {
		return
	}
	bitReverse(a)
	for size := 2; size <= n; size <<= 1 {
		half := size / 2
		theta := -2 * 3.141592653589793 / float64(size)
		wStep := cmplx.Exp(complex(0, theta))
		for start := 0; start < n; start += size {
			w := complex(1, 0)
			for k := 0; k < half; k++ {
				even := a[start+k]
				odd := a[start+k+half] * w
				a[start+k] = even + odd
				a[start+k+half] = even - odd
				w *= wStep
			}
		}
	}
}

func bitReverse(a []complex128) {
	n := len(a)
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			a[i], a[j] = a[j], a[i]
		}
	}
}

// nextPowerOfTwo returns the smallest power of two >= n.
func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
