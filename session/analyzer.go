package session

// FrameAnalyzer turns voice-estimate frames into LiveFrames. Output is
// throttled: one LiveFrame per Throttle raw frames, so the downstream update
// rate is bounded regardless of the audio callback rate.

import (
	"github.com/hamzapatwa/PitchPerfectly/dsp"
)

// DefaultThrottle emits one scored frame per four raw analysis frames.
const DefaultThrottle = 4

// FrameAnalyzer estimates pitch and energy on cleaned audio frames.
type FrameAnalyzer struct {
	pitchCfg   dsp.PitchConfig
	throttle   int
	frameCount int
	samplePos  int64
	sampleRate int
}

// NewFrameAnalyzer creates an analyzer. throttle < 1 falls back to the
// default.
func NewFrameAnalyzer(sampleRate, throttle int) *FrameAnalyzer {
	if throttle < 1 {
		throttle = DefaultThrottle
	}
	return &FrameAnalyzer{
		pitchCfg:   dsp.DefaultPitchConfig(sampleRate),
		throttle:   throttle,
		sampleRate: sampleRate,
	}
}

// Analyze consumes one voice-estimate frame. It returns a LiveFrame and true
// on emitting frames, or false when the frame was swallowed by throttling.
// The time cursor advances for every frame either way.
func (fa *FrameAnalyzer) Analyze(voice []float64) (LiveFrame, bool) {
	frameStart := fa.samplePos
	fa.samplePos += int64(len(voice))
	fa.frameCount++

	if fa.frameCount%fa.throttle != 0 {
		return LiveFrame{}, false
	}

	res := dsp.DetectPitch(voice, fa.pitchCfg)
	return LiveFrame{
		Time:       float64(frameStart) / float64(fa.sampleRate),
		F0:         res.F0,
		Confidence: res.Confidence,
		Energy:     res.Energy,
		Centroid:   res.Centroid,
	}, true
}
