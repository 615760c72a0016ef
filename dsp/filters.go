package dsp

// First-order IIR filters and gain control used to condition waveforms before
// analysis: high-pass to strip rumble, band-limit to the vocal range before
// chroma/pitch extraction, AGC to bring quiet uploads up to a usable level.

import "math"

// HighPassFilter removes frequencies below cutoffHz.
func HighPassFilter(samples []float64, sampleRate int, cutoffHz float64) []float64 {
	if cutoffHz <= 0 || cutoffHz >= float64(sampleRate)/2 {
		return samples
	}

	rc := 1.0 / (2 * math.Pi * cutoffHz)
	dt := 1.0 / float64(sampleRate)
	alpha := rc / (rc + dt)

	filtered := make([]float64, len(samples))
	var prevOutput float64
	for i, x := range samples {
		if i == 0 {
			filtered[i] = x
		} else {
			filtered[i] = alpha * (prevOutput + x - samples[i-1])
		}
		prevOutput = filtered[i]
	}
	return filtered
}

// LowPassFilter removes frequencies above cutoffHz.
func LowPassFilter(samples []float64, sampleRate int, cutoffHz float64) []float64 {
	if cutoffHz <= 0 || cutoffHz >= float64(sampleRate)/2 {
		return samples
	}

	rc := 1.0 / (2 * math.Pi * cutoffHz)
	dt := 1.0 / float64(sampleRate)
	alpha := dt / (rc + dt)

	filtered := make([]float64, len(samples))
	var prevOutput float64
	for i, x := range samples {
		if i == 0 {
			filtered[i] = x * alpha
		} else {
			filtered[i] = alpha*x + (1-alpha)*prevOutput
		}
		prevOutput = filtered[i]
	}
	return filtered
}

// VocalBandFilter keeps the range relevant for sung vocals and their first
// harmonics: 60 Hz to 8 kHz.
func VocalBandFilter(samples []float64, sampleRate int) []float64 {
	result := HighPassFilter(samples, sampleRate, 60.0)
	return LowPassFilter(result, sampleRate, 8000.0)
}

// ApplyAGC rescales the signal toward a target RMS with soft limiting so
// loud peaks do not clip after the gain.
func ApplyAGC(samples []float64, targetRMS float64) []float64 {
	if len(samples) == 0 {
		return samples
	}

	currentRMS := RMS(samples)
	if currentRMS == 0 || math.Abs(currentRMS-targetRMS) < 1e-6 {
		return samples
	}

	gain := targetRMS / currentRMS
	result := make([]float64, len(samples))
	for i, s := range samples {
		amplified := s * gain
		if math.Abs(amplified) > 0.95 {
			result[i] = math.Tanh(amplified) * 0.95
		} else {
			result[i] = amplified
		}
	}
	return result
}
