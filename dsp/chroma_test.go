package dsp

import (
	"math"
	"testing"
)

func TestChromaSequencePureTone(t *testing.T) {
	t.Parallel()

	const sampleRate = 48000
	cfg := DefaultChromaConfig(sampleRate)
	samples := sineWave(440.0, sampleRate, sampleRate/2)

	sequence, err := ChromaSequence(samples, cfg)
	if err != nil {
		t.Fatalf("ChromaSequence returned error: %v", err)
	}
	if len(sequence) == 0 {
		t.Fatal("empty chroma sequence")
	}

	// A 440 Hz tone is pitch class A (index 9).
	for f, frame := range sequence {
		if len(frame) != chromaBins {
			t.Fatalf("frame %d has %d bins, want %d", f, len(frame), chromaBins)
		}
		best := 0
		for i, e := range frame {
			if e > frame[best] {
				best = i
			}
		}
		if best != 9 {
			t.Errorf("frame %d: dominant pitch class %s, want A", f, chromaLabels[best])
		}

		var total float64
		for _, e := range frame {
			total += e
		}
		if math.Abs(total-1.0) > 1e-9 {
			t.Errorf("frame %d: chroma sums to %f, want 1", f, total)
		}
	}
}

func TestChromaSequenceTooShort(t *testing.T) {
	t.Parallel()

	cfg := DefaultChromaConfig(48000)
	if _, err := ChromaSequence(make([]float64, 100), cfg); err != ErrInsufficientSamples {
		t.Fatalf("got %v, want ErrInsufficientSamples", err)
	}
}

func TestEstimateKey(t *testing.T) {
	t.Parallel()

	const sampleRate = 48000
	cfg := DefaultChromaConfig(sampleRate)
	samples := sineWave(261.63, sampleRate, sampleRate/2) // middle C

	sequence, err := ChromaSequence(samples, cfg)
	if err != nil {
		t.Fatalf("ChromaSequence returned error: %v", err)
	}
	if key := EstimateKey(sequence); key != "C" {
		t.Errorf("EstimateKey = %s, want C", key)
	}
}

func TestCosineDistance(t *testing.T) {
	t.Parallel()

	a := []float64{1, 0, 0}
	if d := CosineDistance(a, a); math.Abs(d) > 1e-12 {
		t.Errorf("self-distance = %f, want 0", d)
	}

	b := []float64{0, 1, 0}
	if d := CosineDistance(a, b); math.Abs(d-1.0) > 1e-12 {
		t.Errorf("orthogonal distance = %f, want 1", d)
	}

	zero := []float64{0, 0, 0}
	if d := CosineDistance(zero, zero); d != 0 {
		t.Errorf("zero/zero distance = %f, want 0", d)
	}
	if d := CosineDistance(zero, a); d != 1 {
		t.Errorf("zero/non-zero distance = %f, want 1", d)
	}
}

func TestMagnitudeSpectrumPeak(t *testing.T) {
	t.Parallel()

	const sampleRate = 48000
	frame := sineWave(1000.0, sampleRate, 2048)
	magnitude, freqs := MagnitudeSpectrum(frame, sampleRate)
	if len(magnitude) != len(freqs) {
		t.Fatalf("magnitude and freqs lengths differ: %d vs %d", len(magnitude), len(freqs))
	}

	peak := 0
	for i, m := range magnitude {
		if m > magnitude[peak] {
			peak = i
		}
	}
	resolution := float64(sampleRate) / 2048.0
	if math.Abs(freqs[peak]-1000.0) > resolution {
		t.Errorf("spectral peak at %.1f Hz, want 1000 within one bin (%.1f Hz)", freqs[peak], resolution)
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	t.Parallel()

	cases := map[int]int{1: 1, 2: 2, 3: 4, 1000: 1024, 2048: 2048}
	for in, want := range cases {
		if got := NextPowerOfTwo(in); got != want {
			t.Errorf("NextPowerOfTwo(%d) = %d, want %d", in, got, want)
		}
	}
}
