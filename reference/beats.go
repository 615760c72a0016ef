package reference

// Beat and phrase detection from the RMS envelope. Onsets are upward
// crossings of an adaptive threshold on the envelope; beats are the onset
// times, tempo is derived from the median inter-onset interval, and phrase
// boundaries fall wherever consecutive onsets are more than a second apart.
// When a track yields no usable onsets the phrases fall back to fixed
// four-beat windows on the tempo grid.

import (
	"math"
	"sort"

	"github.com/hamzapatwa/PitchPerfectly/dsp"
)

const (
	phraseGapSeconds = 1.0
	minPhraseSeconds = 0.5
)

// DetectBeats returns onset times (seconds) and an estimated tempo in BPM.
func DetectBeats(samples []float64, sampleRate, frameLength, hopLength int) (beats []float64, tempo float64) {
	if len(samples) < frameLength {
		return nil, 0
	}

	hopSeconds := float64(hopLength) / float64(sampleRate)
	frameCount := 1 + (len(samples)-frameLength)/hopLength
	envelope := make([]float64, frameCount)
	for f := 0; f < frameCount; f++ {
		start := f * hopLength
		envelope[f] = dsp.RMS(samples[start : start+frameLength])
	}

	var mean float64
	for _, e := range envelope {
		mean += e
	}
	mean /= float64(len(envelope))
	var variance float64
	for _, e := range envelope {
		variance += (e - mean) * (e - mean)
	}
	threshold := mean + math.Sqrt(variance/float64(len(envelope)))

	for f := 1; f < frameCount; f++ {
		if envelope[f-1] < threshold && envelope[f] >= threshold {
			beats = append(beats, float64(f)*hopSeconds)
		}
	}

	tempo = estimateTempo(beats)
	return beats, tempo
}

// estimateTempo converts the median inter-onset interval to BPM, folded into
// the 60-180 range so half/double-time ambiguity resolves consistently.
func estimateTempo(beats []float64) float64 {
	if len(beats) < 2 {
		return 0
	}
	intervals := make([]float64, 0, len(beats)-1)
	for i := 1; i < len(beats); i++ {
		if d := beats[i] - beats[i-1]; d > 1e-3 {
			intervals = append(intervals, d)
		}
	}
	if len(intervals) == 0 {
		return 0
	}
	sort.Float64s(intervals)
	median := intervals[len(intervals)/2]

	bpm := 60.0 / median
	for bpm > 180 {
		bpm /= 2
	}
	for bpm > 0 && bpm < 60 {
		bpm *= 2
	}
	return bpm
}

// SegmentPhrases groups beats into phrases: a boundary opens wherever the
// gap to the next onset exceeds phraseGapSeconds. duration bounds the final
// phrase. Falls back to four-beat windows when onsets are too sparse.
func SegmentPhrases(beats []float64, tempo, duration float64) []Phrase {
	var phrases []Phrase
	cursor := 0.0
	for _, t := range beats {
		if t-cursor > phraseGapSeconds {
			phrases = append(phrases, Phrase{Start: cursor, End: t})
			cursor = t
		}
	}
	if duration-cursor >= minPhraseSeconds {
		phrases = append(phrases, Phrase{Start: cursor, End: duration})
	}

	if len(phrases) > 0 {
		return phrases
	}

	// Sparse onsets: fall back to a fixed grid of four-beat windows.
	beatSeconds := 2.0
	if tempo > 0 {
		beatSeconds = 60.0 / tempo
	}
	window := 4 * beatSeconds
	for start := 0.0; start < duration; start += window {
		end := math.Min(start+window, duration)
		if end-start >= minPhraseSeconds {
			phrases = append(phrases, Phrase{Start: start, End: end})
		}
	}
	return phrases
}
