package session

// NLMS acoustic echo cancellation. During a live session the microphone
// picks up the karaoke playback as well as the voice; the canceller models
// the playback-to-mic path with an adaptive FIR filter and subtracts the
// predicted bleed, leaving a voice estimate for the frame analyzer.
//
// State is owned by exactly one session, reset at session start and never
// reused: the echo path is specific to one room, device and session.

import (
	"math"
)

const (
	// DefaultTaps is the FIR filter length in samples.
	DefaultTaps = 512

	// DefaultStep is the NLMS step size mu. NLMS is stable for 0 < mu < 2;
	// 0.01 is deliberately slow so a long filter cannot oscillate.
	DefaultStep = 0.01

	// powerEpsilon guards the normalized update against division by zero
	// when the reference window is silent.
	powerEpsilon = 1e-8

	// convergenceSeconds is how much adapted audio the filter needs before
	// downstream consumers should trust the voice estimate.
	convergenceSeconds = 2.0

	// divergenceBound triggers a filter reset when the weight energy blows
	// up; the session then degrades to un-cancelled audio while the filter
	// re-adapts instead of propagating garbage.
	divergenceBound = 1e4
)

// EchoCanceller removes the known playback signal from microphone input.
type EchoCanceller struct {
	weights []float64
	taps    int
	step    float64

	// refHistory is a ring of the most recent reference (playback) samples;
	// refPower tracks the running energy of the window covered by the taps.
	refHistory []float64
	refHead    int
	refPower   float64

	sampleRate     int
	adaptedSamples int
	resetCount     int
}

// NewEchoCanceller creates a canceller with the default filter geometry.
// The step size is clamped into the NLMS stability range.
func NewEchoCanceller(sampleRate int) *EchoCanceller {
	step := DefaultStep
	if step <= 0 || step >= 2 {
		step = DefaultStep
	}
	return &EchoCanceller{
		weights:    make([]float64, DefaultTaps),
		taps:       DefaultTaps,
		step:       step,
		refHistory: make([]float64, DefaultTaps),
		sampleRate: sampleRate,
	}
}

// Reset clears all adaptive state. Called at session start and after a
// divergence recovery.
func (ec *EchoCanceller) Reset() {
	for i := range ec.weights {
		ec.weights[i] = 0
	}
	for i := range ec.refHistory {
		ec.refHistory[i] = 0
	}
	ec.refHead = 0
	ec.refPower = 0
	ec.adaptedSamples = 0
}

// Process consumes one frame of microphone input together with the playback
// frame the client rendered over the same interval, and returns the voice
// estimate. Both slices must be the same length.
func (ec *EchoCanceller) Process(mic, playback []float64) []float64 {
	n := len(mic)
	if len(playback) < n {
		n = len(playback)
	}

	voice := make([]float64, n)
	for i := 0; i < n; i++ {
		ec.pushReference(playback[i])

		// Predict the playback contribution at the mic.
		var prediction float64
		for k := 0; k < ec.taps; k++ {
			prediction += ec.weights[k] * ec.refAt(k)
		}

		err := mic[i] - prediction
		voice[i] = err

		// Normalized update. A silent reference window leaves the weights
		// untouched, so pure-voice passages cannot corrupt the echo model.
		if ec.refPower > powerEpsilon {
			scale := ec.step * err / (ec.refPower + powerEpsilon)
			for k := 0; k < ec.taps; k++ {
				ec.weights[k] += scale * ec.refAt(k)
			}
			ec.adaptedSamples++
		}
	}

	if ec.diverged() {
		ec.Reset()
		ec.resetCount++
		copy(voice, mic[:n]) // degrade to un-cancelled audio for this frame
	}
	return voice
}

// pushReference appends one playback sample to the ring, maintaining the
// running window energy incrementally.
func (ec *EchoCanceller) pushReference(sample float64) {
	old := ec.refHistory[ec.refHead]
	ec.refPower += sample*sample - old*old
	if ec.refPower < 0 {
		ec.refPower = 0 // floating point drift
	}
	ec.refHistory[ec.refHead] = sample
	ec.refHead = (ec.refHead + 1) % ec.taps
}

// refAt returns the reference sample k steps in the past (k=0 most recent).
func (ec *EchoCanceller) refAt(k int) float64 {
	idx := ec.refHead - 1 - k
	for idx < 0 {
		idx += ec.taps
	}
	return ec.refHistory[idx]
}

func (ec *EchoCanceller) diverged() bool {
	var energy float64
	for _, w := range ec.weights {
		energy += w * w
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return true
		}
	}
	return energy > divergenceBound
}

// Converged reports whether the filter has adapted on enough audio that the
// voice estimate is trustworthy. Early-session scores may be discounted by
// consumers while this is false.
func (ec *EchoCanceller) Converged() bool {
	return float64(ec.adaptedSamples) >= convergenceSeconds*float64(ec.sampleRate)
}

// ResetCount reports how many divergence recoveries occurred this session.
func (ec *EchoCanceller) ResetCount() int {
	return ec.resetCount
}
