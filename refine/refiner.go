package refine

// Post-session phrase refinement. The live scorer cannot look ahead, so
// timing drift accumulated during a session (the singer entering a phrase
// early or late) shows up as pitch error it is not. The refiner re-aligns
// each phrase of the performance trace against the reference pitch slice
// with a narrow-band DTW and re-scores with the corrected mapping. The
// original session result is never mutated; the refined result is stored
// alongside it.

import (
	"errors"
	"math"
	"time"

	"github.com/hamzapatwa/PitchPerfectly/reference"
	"github.com/hamzapatwa/PitchPerfectly/session"
)

var ErrEmptyTrace = errors.New("refine: performance trace has no frames")

const phraseBandFraction = 0.10

// PhraseResult is the refined score for one phrase.
type PhraseResult struct {
	Phrase        reference.Phrase `json:"phrase"`
	PitchScore    float64          `json:"pitchScore"`
	EnergyScore   float64          `json:"energyScore"`
	CombinedScore float64          `json:"combinedScore"`
	FrameCount    int              `json:"frameCount"`
}

// Result is the refined aggregate for a whole session.
type Result struct {
	SessionID      string         `json:"sessionID"`
	SongID         string         `json:"songID"`
	Phrases        []PhraseResult `json:"phrases"`
	RefinedAverage float64        `json:"refinedAverage"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Refine re-scores a finished session against its reference track.
func Refine(track *reference.Track, res *session.Result, cfg session.ScorerConfig) (*Result, error) {
	if len(res.Trace.Frames) == 0 {
		return nil, ErrEmptyTrace
	}

	refined := &Result{
		SessionID: res.SessionID,
		SongID:    res.SongID,
		CreatedAt: time.Now(),
	}

	hop := track.HopSeconds()
	var weightedSum float64
	var totalFrames int

	for _, phrase := range track.Phrases {
		frames := framesInPhrase(res.Trace.Frames, phrase)
		if len(frames) == 0 {
			continue
		}

		refSlice, refLoudness := referenceSlices(track, phrase, hop)
		if len(refSlice) == 0 {
			continue
		}

		liveF0 := make([]float64, len(frames))
		for i, f := range frames {
			liveF0[i] = f.F0
		}

		path := warpPath(liveF0, refSlice, phraseBandFraction)
		pr := scorePhrase(frames, refSlice, refLoudness, path, cfg)
		pr.Phrase = phrase

		refined.Phrases = append(refined.Phrases, pr)
		weightedSum += pr.CombinedScore * float64(pr.FrameCount)
		totalFrames += pr.FrameCount
	}

	if totalFrames > 0 {
		refined.RefinedAverage = weightedSum / float64(totalFrames)
	}
	return refined, nil
}

func framesInPhrase(frames []session.LiveFrame, phrase reference.Phrase) []session.LiveFrame {
	var out []session.LiveFrame
	for _, f := range frames {
		if f.Time >= phrase.Start && f.Time < phrase.End {
			out = append(out, f)
		}
	}
	return out
}

// referenceSlices restricts the reference pitch and loudness series to one
// phrase interval.
func referenceSlices(track *reference.Track, phrase reference.Phrase, hop float64) (f0, loudness []float64) {
	startHop := int(phrase.Start / hop)
	endHop := int(phrase.End / hop)
	if startHop < 0 {
		startHop = 0
	}
	if endHop > len(track.RefPitchHz) {
		endHop = len(track.RefPitchHz)
	}
	if startHop >= endHop {
		return nil, nil
	}
	return track.RefPitchHz[startHop:endHop], track.Loudness[startHop:endHop]
}

// scorePhrase recomputes pitch and energy scores per live frame using the
// matched reference hops from the phrase-local alignment path.
func scorePhrase(frames []session.LiveFrame, refF0, refLoudness []float64, path [][2]int, cfg session.ScorerConfig) PhraseResult {
	// Collect the reference hop each live frame matched; vertical path
	// segments mean several hops matched one frame, so average them.
	matchedF0 := make([]float64, len(frames))
	matchedLoud := make([]float64, len(frames))
	counts := make([]int, len(frames))
	for _, p := range path {
		i, j := p[0], p[1]
		if i < 0 || i >= len(frames) || j < 0 || j >= len(refF0) {
			continue
		}
		matchedF0[i] += refF0[j]
		matchedLoud[i] += refLoudness[j]
		counts[i]++
	}

	var pitchSum, energySum, combinedSum float64
	scored := 0
	for i, frame := range frames {
		if counts[i] == 0 {
			continue
		}
		ref := matchedF0[i] / float64(counts[i])
		loud := matchedLoud[i] / float64(counts[i])

		pitch := 0.0
		if frame.F0 > 0 && ref > 0 && frame.Confidence >= cfg.ConfidenceFloor {
			pitch = cfg.ScoreCents(cents(frame.F0, ref))
		}
		energy := cfg.ScoreEnergyPair(frame.Energy, loud)
		combined := cfg.PitchWeight*pitch + cfg.EnergyWeight*energy

		pitchSum += pitch
		energySum += energy
		combinedSum += combined
		scored++
	}

	if scored == 0 {
		return PhraseResult{}
	}
	return PhraseResult{
		PitchScore:    pitchSum / float64(scored),
		EnergyScore:   energySum / float64(scored),
		CombinedScore: combinedSum / float64(scored),
		FrameCount:    scored,
	}
}

func cents(detected, ref float64) float64 {
	return 1200.0 * math.Log2(detected/ref)
}
