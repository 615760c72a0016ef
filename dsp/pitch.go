package dsp

// Fundamental frequency estimation via normalized autocorrelation, restricted
// to the plausible vocal range. The same detector serves both the offline
// reference pipeline (per hop over the studio vocal) and the live frame
// analyzer; the offline path simply runs it on every hop with no throttling.

import (
	"math"
)

// PitchConfig bounds the autocorrelation lag search.
type PitchConfig struct {
	SampleRate      int
	MinFreq         float64 // lowest detectable F0, default 60 Hz
	MaxFreq         float64 // highest detectable F0, default 1000 Hz
	ConfidenceFloor float64 // below this the frame counts as unvoiced
}

// DefaultPitchConfig covers the sung vocal range.
func DefaultPitchConfig(sampleRate int) PitchConfig {
	return PitchConfig{
		SampleRate:      sampleRate,
		MinFreq:         60.0,
		MaxFreq:         1000.0,
		ConfidenceFloor: 0.30,
	}
}

// PitchResult is the per-frame pitch measurement. F0 is zero when no lag
// clears the confidence floor (silence or unvoiced audio).
type PitchResult struct {
	F0         float64
	Confidence float64
	Energy     float64 // RMS over the frame
	Centroid   float64 // spectral centroid in Hz
}

// DetectPitch estimates F0, confidence, RMS energy and spectral centroid for
// one frame. Frames shorter than twice the longest candidate period degrade
// gracefully: the lag search simply shrinks.
func DetectPitch(frame []float64, cfg PitchConfig) PitchResult {
	result := PitchResult{Energy: RMS(frame)}
	if len(frame) == 0 {
		return result
	}

	magnitude, freqs := MagnitudeSpectrum(frame, cfg.SampleRate)
	result.Centroid = SpectralCentroid(magnitude, freqs)

	// Remove DC so a constant offset does not masquerade as correlation.
	var mean float64
	for _, s := range frame {
		mean += s
	}
	mean /= float64(len(frame))

	centered := make([]float64, len(frame))
	var energy float64
	for i, s := range frame {
		centered[i] = s - mean
		energy += centered[i] * centered[i]
	}
	if energy < 1e-10 {
		return result // silence
	}

	minLag := int(float64(cfg.SampleRate) / cfg.MaxFreq)
	maxLag := int(float64(cfg.SampleRate) / cfg.MinFreq)
	if maxLag >= len(centered) {
		maxLag = len(centered) - 1
	}
	if minLag < 2 {
		minLag = 2
	}
	if minLag >= maxLag {
		return result
	}

	bestLag := 0
	bestCorr := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var corr float64
		for i := 0; i+lag < len(centered); i++ {
			corr += centered[i] * centered[i+lag]
		}
		normalized := corr / energy
		if normalized > bestCorr {
			bestCorr = normalized
			bestLag = lag
		}
	}

	if bestLag == 0 || bestCorr < cfg.ConfidenceFloor {
		result.Confidence = math.Max(0, bestCorr)
		return result
	}

	// Parabolic interpolation around the peak sharpens the lag estimate
	// below one-sample resolution.
	refined := float64(bestLag)
	if bestLag > minLag && bestLag < maxLag {
		prev := normalizedAutocorr(centered, bestLag-1, energy)
		next := normalizedAutocorr(centered, bestLag+1, energy)
		denom := prev - 2*bestCorr + next
		if math.Abs(denom) > 1e-12 {
			refined += 0.5 * (prev - next) / denom
		}
	}

	result.F0 = float64(cfg.SampleRate) / refined
	result.Confidence = math.Min(1, bestCorr)
	return result
}

func normalizedAutocorr(centered []float64, lag int, energy float64) float64 {
	var corr float64
	for i := 0; i+lag < len(centered); i++ {
		corr += centered[i] * centered[i+lag]
	}
	return corr / energy
}

// PitchContour runs the detector over every hop of a waveform and returns the
// F0 and RMS series on the analysis grid. Used by the reference builder.
func PitchContour(samples []float64, frameLength, hopLength int, cfg PitchConfig) (f0, energy []float64, err error) {
	if len(samples) < frameLength {
		return nil, nil, ErrInsufficientSamples
	}
	frameCount := 1 + (len(samples)-frameLength)/hopLength
	f0 = make([]float64, frameCount)
	energy = make([]float64, frameCount)
	for f := 0; f < frameCount; f++ {
		start := f * hopLength
		res := DetectPitch(samples[start:start+frameLength], cfg)
		f0[f] = res.F0
		energy[f] = res.Energy
	}
	return f0, energy, nil
}

// RMS returns the root mean square amplitude of the frame.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// SpectralCentroid is the magnitude-weighted mean frequency of the spectrum.
func SpectralCentroid(magnitude, freqs []float64) float64 {
	var weightedSum, total float64
	for i := range magnitude {
		weightedSum += magnitude[i] * freqs[i]
		total += magnitude[i]
	}
	if total == 0 {
		return 0
	}
	return weightedSum / total
}
