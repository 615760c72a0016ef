package session

// Per-frame scoring against the reference track.
//
// Pitch error is measured in cents and mapped through a stepped curve with
// exponential decay past 50 cents. Errors within 50 cents of a full octave
// are forgiven (key-shift forgiveness): singers who land the melody an
// octave off are scored as if in the right octave. Energy compares the
// detected loudness against the reference within a ±6 dB window, capped so
// shouting never scores above matching the reference. A streak of good
// frames activates combo mode, which multiplies the aggregate contribution.

import (
	"errors"
	"math"

	"github.com/hamzapatwa/PitchPerfectly/reference"
)

// ErrSessionNotRunning is returned for frame operations outside Running.
var ErrSessionNotRunning = errors.New("session: scorer is not running")

// ScorerState is the session scoring lifecycle.
type ScorerState int

const (
	StateIdle ScorerState = iota
	StateArmed
	StateRunning
	StateStopped
)

func (s ScorerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ScorerConfig holds the scoring curve parameters.
type ScorerConfig struct {
	PitchWeight     float64 // share of the combined score, default 0.7
	EnergyWeight    float64 // default 0.3
	ConfidenceFloor float64 // frames below never earn pitch score
	DecayCents      float64 // e-folding width of the decay past 50 cents
	EnergyWindowDb  float64 // full-credit loudness window, default 6
	GoodThreshold   float64 // combined score that counts toward a streak
	ComboStreak     int     // good frames required to activate combo
	ComboBonus      float64 // aggregate multiplier while on combo
}

// DefaultScorerConfig returns the documented defaults.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		PitchWeight:     0.7,
		EnergyWeight:    0.3,
		ConfidenceFloor: 0.30,
		DecayCents:      120.0,
		EnergyWindowDb:  6.0,
		GoodThreshold:   0.6,
		ComboStreak:     5,
		ComboBonus:      1.15,
	}
}

// Scorer evaluates LiveFrames against a ReferenceTrack. Not safe for
// concurrent use; a session drives it from its single scoring goroutine.
type Scorer struct {
	cfg   ScorerConfig
	track *reference.Track
	state ScorerState

	streak   int
	maxCombo int

	// weighted aggregate accumulation; combo frames count extra
	weightedSum  float64
	weightTotal  float64
	pitchSum     float64
	energySum    float64
	scoredFrames int
	voicedFrames int
}

// NewScorer creates an idle scorer bound to one reference track.
func NewScorer(track *reference.Track, cfg ScorerConfig) *Scorer {
	return &Scorer{cfg: cfg, track: track, state: StateIdle}
}

// State returns the current lifecycle state.
func (s *Scorer) State() ScorerState { return s.state }

// Arm moves Idle -> Armed. The session arms its scorer once created.
func (s *Scorer) Arm() { s.state = StateArmed }

// Run moves Armed -> Running. Only called after the echo canceller reports a
// non-degenerate (initialized) filter.
func (s *Scorer) Run() error {
	if s.state != StateArmed {
		return ErrSessionNotRunning
	}
	s.state = StateRunning
	return nil
}

// Stop freezes the scorer. Frames already scored keep their values.
func (s *Scorer) Stop() { s.state = StateStopped }

// ScoreFrame evaluates one LiveFrame. Only valid while Running.
func (s *Scorer) ScoreFrame(frame LiveFrame) (ScoreFrame, error) {
	if s.state != StateRunning {
		return ScoreFrame{}, ErrSessionNotRunning
	}

	refF0 := s.track.PitchAt(frame.Time)
	refLoudness := s.track.LoudnessAt(frame.Time)

	pitchScore := s.pitchScore(frame.F0, refF0, frame.Confidence)
	energyScore := s.energyScore(frame.Energy, refLoudness)
	combined := s.cfg.PitchWeight*pitchScore + s.cfg.EnergyWeight*energyScore

	// Combo bookkeeping: the streak grows on good frames and resets to
	// zero on any bad one. Combo activates exactly when the streak
	// reaches the threshold.
	if combined > s.cfg.GoodThreshold {
		s.streak++
		if s.streak > s.maxCombo {
			s.maxCombo = s.streak
		}
	} else {
		s.streak = 0
	}
	onCombo := s.streak >= s.cfg.ComboStreak

	weight := 1.0
	if onCombo {
		weight = s.cfg.ComboBonus
	}
	s.weightedSum += combined * weight
	s.weightTotal += weight
	s.pitchSum += pitchScore
	s.energySum += energyScore
	s.scoredFrames++
	if frame.F0 > 0 {
		s.voicedFrames++
	}

	return ScoreFrame{
		Time:          frame.Time,
		PitchScore:    pitchScore,
		EnergyScore:   energyScore,
		CombinedScore: combined,
		ComboCount:    s.streak,
		OnCombo:       onCombo,
	}, nil
}

// pitchScore maps a detected/reference pitch pair to [0, 1]. Silence and
// low-confidence detections are never scored as accurate.
func (s *Scorer) pitchScore(detected, ref, confidence float64) float64 {
	if detected <= 0 || ref <= 0 || confidence < s.cfg.ConfidenceFloor {
		return 0
	}
	cents := 1200.0 * math.Log2(detected/ref)
	return s.cfg.scoreCents(cents)
}

// scoreCents implements the stepped curve plus key-shift forgiveness.
func (cfg ScorerConfig) scoreCents(cents float64) float64 {
	// Forgive errors within 50 cents of one octave either way.
	for _, k := range []float64{-1200, 1200} {
		if math.Abs(cents-k) <= 50 {
			cents -= k
			break
		}
	}

	abs := math.Abs(cents)
	switch {
	case abs <= 10:
		return 1.0
	case abs <= 25:
		return 0.9
	case abs <= 50:
		return 0.7
	default:
		// Continuous at the 50-cent knee, decaying toward zero.
		return 0.7 * math.Exp(-(abs-50)/cfg.DecayCents)
	}
}

// energyScore compares detected loudness to the reference within a ±6 dB
// window, with the anti-shout cap: singing far louder than the reference
// never scores above matching it.
func (s *Scorer) energyScore(detected, ref float64) float64 {
	if ref <= 0 {
		// Reference is silent here; reward matching silence.
		if detected < 1e-4 {
			return 1
		}
		return 0
	}
	if detected <= 0 {
		return 0
	}

	db := 20.0 * math.Log10(detected/ref)
	absDb := math.Abs(db)
	if absDb <= s.cfg.EnergyWindowDb {
		return 1.0 // clamped maximum: louder-than-reference earns no bonus
	}
	// Linear falloff over a further 12 dB outside the window.
	score := 1.0 - (absDb-s.cfg.EnergyWindowDb)/12.0
	if score < 0 {
		return 0
	}
	return score
}

// summary finalizes the aggregate numbers once the session stops.
func (s *Scorer) summary() (average, pitchAvg, energyAvg float64, maxCombo int) {
	if s.weightTotal > 0 {
		average = s.weightedSum / float64(s.scoredFrames)
		if average > 1 {
			average = 1
		}
	}
	if s.scoredFrames > 0 {
		pitchAvg = s.pitchSum / float64(s.scoredFrames)
		energyAvg = s.energySum / float64(s.scoredFrames)
	}
	return average, pitchAvg, energyAvg, s.maxCombo
}

// badges awards session-end achievements from the aggregates.
func (s *Scorer) badges() []string {
	var badges []string
	avg, pitchAvg, _, maxCombo := s.summary()
	if pitchAvg >= 0.9 {
		badges = append(badges, "gold-pitch")
	}
	if maxCombo >= 25 {
		badges = append(badges, "combo-master")
	}
	if s.scoredFrames > 0 && float64(s.voicedFrames)/float64(s.scoredFrames) >= 0.95 {
		badges = append(badges, "full-send")
	}
	if avg >= 0.85 {
		badges = append(badges, "encore-worthy")
	}
	return badges
}

// ScoreCents exposes the pitch curve for the phrase refiner, which re-scores
// traces offline with the same parameters the live path used.
func (cfg ScorerConfig) ScoreCents(cents float64) float64 {
	return cfg.scoreCents(cents)
}

// ScoreEnergyPair exposes the energy comparison for the refiner.
func (cfg ScorerConfig) ScoreEnergyPair(detected, ref float64) float64 {
	s := Scorer{cfg: cfg}
	return s.energyScore(detected, ref)
}
