package dsp

// Radix-2 Cooley-Tukey FFT. Converts a windowed time-domain buffer into its
// frequency-domain representation; every spectral feature in this package
// (chroma folding, centroid, loudness spectra) is derived from its output.

import (
	"math"
	"math/cmplx"
)

// FFT computes the discrete Fourier transform of the input. The input length
// is zero-padded to the next power of two.
func FFT(input []float64) []complex128 {
	size := NextPowerOfTwo(len(input))
	buf := make([]complex128, size)
	for i, v := range input {
		buf[i] = complex(v, 0)
	}
	return recursiveFFT(buf)
}

func recursiveFFT(in []complex128) []complex128 {
	n := len(in)
	if n <= 1 {
		return in
	}

	even := make([]complex128, n/2)
	odd := make([]complex128, n/2)
	for i := 0; i < n/2; i++ {
		even[i] = in[2*i]
		odd[i] = in[2*i+1]
	}
	even = recursiveFFT(even)
	odd = recursiveFFT(odd)

	out := make([]complex128, n)
	for k := 0; k < n/2; k++ {
		t := cmplx.Exp(complex(0, -2*math.Pi*float64(k)/float64(n)))
		out[k] = even[k] + t*odd[k]
		out[k+n/2] = even[k] - t*odd[k]
	}
	return out
}

// MagnitudeSpectrum windows the frame, runs the FFT and returns the magnitude
// of the first half of the bins together with their center frequencies in Hz.
func MagnitudeSpectrum(frame []float64, sampleRate int) (magnitude, freqs []float64) {
	fftSize := NextPowerOfTwo(len(frame))
	buffer := make([]float64, fftSize)
	copy(buffer, frame)
	ApplyHannWindow(buffer)

	spectrum := FFT(buffer)
	binCount := fftSize / 2
	magnitude = make([]float64, binCount)
	freqs = make([]float64, binCount)
	for i := 0; i < binCount; i++ {
		magnitude[i] = cmplx.Abs(spectrum[i])
		freqs[i] = float64(i) * float64(sampleRate) / float64(fftSize)
	}
	return magnitude, freqs
}

// ApplyHannWindow tapers the buffer in place to reduce spectral leakage.
func ApplyHannWindow(buffer []float64) {
	n := len(buffer)
	if n <= 1 {
		return
	}
	for i := range buffer {
		buffer[i] *= 0.5 * (1 - math.Cos((2*math.Pi*float64(i))/float64(n-1)))
	}
}

// NextPowerOfTwo returns the smallest power of two >= n.
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	power := 1
	for power < n {
		power <<= 1
	}
	return power
}
