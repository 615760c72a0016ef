package reference

// Note quantization: contiguous voiced hops whose pitch stays within half a
// semitone of a running center collapse into one discrete note target.

import "math"

const (
	semitoneCents  = 100.0
	minNoteSeconds = 0.08 // shorter runs are treated as transition noise
)

// QuantizeNotes groups a pitch contour (one F0 per hop, zero = unvoiced)
// into note bins on the same timeline.
func QuantizeNotes(f0 []float64, hopSeconds float64) []NoteBin {
	var bins []NoteBin

	runStart := -1
	var runSum float64
	var runCount int

	flush := func(end int) {
		if runStart < 0 || runCount == 0 {
			return
		}
		start := float64(runStart) * hopSeconds
		stop := float64(end) * hopSeconds
		if stop-start >= minNoteSeconds {
			meanF0 := runSum / float64(runCount)
			bins = append(bins, NoteBin{
				MidiNote: int(math.Round(freqToMidi(meanF0))),
				F0:       meanF0,
				Start:    start,
				End:      stop,
			})
		}
		runStart = -1
		runSum = 0
		runCount = 0
	}

	for i, hz := range f0 {
		if hz <= 0 {
			flush(i)
			continue
		}
		if runStart < 0 {
			runStart = i
			runSum = hz
			runCount = 1
			continue
		}
		center := runSum / float64(runCount)
		if math.Abs(centsBetween(hz, center)) > semitoneCents/2 {
			flush(i)
			runStart = i
			runSum = hz
			runCount = 1
			continue
		}
		runSum += hz
		runCount++
	}
	flush(len(f0))

	return bins
}

func freqToMidi(hz float64) float64 {
	return 69.0 + 12.0*math.Log2(hz/440.0)
}

func centsBetween(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	return 1200.0 * math.Log2(a/b)
}
