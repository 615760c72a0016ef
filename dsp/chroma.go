package dsp

// Chroma extraction folds the magnitude spectrum into twelve pitch-class
// energy bins (C..B), octave-invariant, which is what the aligner compares:
// the karaoke mix and the studio vocal share harmony even though their
// timbre and octave content differ.

import (
	"errors"
	"math"
)

// ErrInsufficientSamples is returned when a waveform is shorter than one
// analysis frame.
var ErrInsufficientSamples = errors.New("dsp: waveform shorter than one analysis frame")

const chromaBins = 12

var chromaLabels = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// ChromaConfig controls the chroma analysis grid.
type ChromaConfig struct {
	SampleRate  int
	FrameLength int     // samples per analysis frame
	HopLength   int     // samples between frames
	TuningFreq  float64 // A4 reference, normally 440
	MinFreq     float64 // bins below are ignored
	MaxFreq     float64 // bins above are ignored
}

// DefaultChromaConfig returns the reference-pipeline analysis grid.
func DefaultChromaConfig(sampleRate int) ChromaConfig {
	return ChromaConfig{
		SampleRate:  sampleRate,
		FrameLength: 2048,
		HopLength:   1024,
		TuningFreq:  440.0,
		MinFreq:     80.0,
		MaxFreq:     8000.0,
	}
}

// ChromaSequence computes one 12-dimensional chroma vector per hop over the
// whole waveform. Fails with ErrInsufficientSamples when the input is shorter
// than a single frame.
func ChromaSequence(samples []float64, cfg ChromaConfig) ([][]float64, error) {
	if len(samples) < cfg.FrameLength {
		return nil, ErrInsufficientSamples
	}

	mapping := chromaBinMapping(cfg)
	frameCount := 1 + (len(samples)-cfg.FrameLength)/cfg.HopLength
	sequence := make([][]float64, frameCount)
	for f := 0; f < frameCount; f++ {
		start := f * cfg.HopLength
		sequence[f] = chromaFromFrame(samples[start:start+cfg.FrameLength], cfg, mapping)
	}
	return sequence, nil
}

func chromaFromFrame(frame []float64, cfg ChromaConfig, mapping []int) []float64 {
	magnitude, _ := MagnitudeSpectrum(frame, cfg.SampleRate)
	chroma := make([]float64, chromaBins)
	for bin, mag := range magnitude {
		if bin >= len(mapping) {
			break
		}
		target := mapping[bin]
		if target < 0 {
			continue
		}
		chroma[target] += mag * mag // energy, not amplitude
	}
	normalizeChroma(chroma)
	return chroma
}

// chromaBinMapping precomputes which pitch class each FFT bin folds into.
func chromaBinMapping(cfg ChromaConfig) []int {
	fftSize := NextPowerOfTwo(cfg.FrameLength)
	binCount := fftSize / 2
	resolution := float64(cfg.SampleRate) / float64(fftSize)

	mapping := make([]int, binCount)
	for bin := 0; bin < binCount; bin++ {
		freq := float64(bin) * resolution
		if freq < cfg.MinFreq || freq > cfg.MaxFreq {
			mapping[bin] = -1
			continue
		}
		// MIDI note 69 is A4 at the tuning frequency.
		midi := 69.0 + 12.0*math.Log2(freq/cfg.TuningFreq)
		mapping[bin] = ((int(math.Round(midi)) % 12) + 12) % 12
	}
	return mapping
}

func normalizeChroma(chroma []float64) {
	var total float64
	for _, e := range chroma {
		total += e
	}
	if total > 1e-10 {
		for i := range chroma {
			chroma[i] /= total
		}
	}
}

// EstimateKey returns the pitch-class name with the greatest summed chroma
// energy across the sequence. Rough, display-only.
func EstimateKey(sequence [][]float64) string {
	sums := make([]float64, chromaBins)
	for _, frame := range sequence {
		for i, e := range frame {
			sums[i] += e
		}
	}
	best := 0
	for i, s := range sums {
		if s > sums[best] {
			best = i
		}
	}
	return chromaLabels[best]
}

// CosineDistance returns 1 - cosine similarity of two equal-length vectors.
// Zero vectors are treated as maximally distant from everything non-zero.
func CosineDistance(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA < 1e-12 && normB < 1e-12 {
		return 0
	}
	if normA < 1e-12 || normB < 1e-12 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
