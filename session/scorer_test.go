package session

import (
	"math"
	"testing"

	"github.com/hamzapatwa/PitchPerfectly/reference"
)

// newTestTrack builds a reference with a constant pitch and loudness, long
// enough for several seconds of scoring.
func newTestTrack(f0, loudness float64, hops int) *reference.Track {
	pitch := make([]float64, hops)
	loud := make([]float64, hops)
	for i := range pitch {
		pitch[i] = f0
		loud[i] = loudness
	}
	return &reference.Track{
		SchemaVersion: reference.SchemaVersion,
		SongID:        "test-song",
		RefPitchHz:    pitch,
		Loudness:      loud,
		Phrases:       []reference.Phrase{{Start: 0, End: float64(hops) * 1024.0 / 48000.0}},
		Config: reference.Config{
			SampleRate:  48000,
			HopLength:   1024,
			FrameLength: 2048,
		},
	}
}

func newRunningScorer(t *testing.T, track *reference.Track) *Scorer {
	t.Helper()
	s := NewScorer(track, DefaultScorerConfig())
	s.Arm()
	if err := s.Run(); err != nil {
		t.Fatalf("failed to start scorer: %v", err)
	}
	return s
}

func TestScoreCentsCurve(t *testing.T) {
	t.Parallel()

	cfg := DefaultScorerConfig()

	cases := []struct {
		cents float64
		want  float64
	}{
		{0, 1.0},
		{-8, 1.0},
		{20, 0.9},
		{-25, 0.9},
		{40, 0.7},
		{50, 0.7},
	}
	for _, tc := range cases {
		if got := cfg.ScoreCents(tc.cents); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("ScoreCents(%.0f) = %f, want %f", tc.cents, got, tc.want)
		}
	}

	// Past the knee the curve decays but stays positive and below 0.7.
	mid := cfg.ScoreCents(200)
	if mid <= 0 || mid >= 0.7 {
		t.Errorf("ScoreCents(200) = %f, want strictly between 0 and 0.7", mid)
	}
	if far := cfg.ScoreCents(600); far >= mid {
		t.Errorf("curve not decreasing: ScoreCents(600)=%f >= ScoreCents(200)=%f", far, mid)
	}
}

func TestScoreCentsOctaveForgiveness(t *testing.T) {
	t.Parallel()

	cfg := DefaultScorerConfig()

	// Exactly an octave off, either direction, is scored as in tune.
	if got := cfg.ScoreCents(1200); got != 1.0 {
		t.Errorf("ScoreCents(+1200) = %f, want 1.0", got)
	}
	if got := cfg.ScoreCents(-1200); got != 1.0 {
		t.Errorf("ScoreCents(-1200) = %f, want 1.0", got)
	}

	// Within the 50-cent collar around the octave the residual applies.
	if got := cfg.ScoreCents(1220); got != 0.9 {
		t.Errorf("ScoreCents(1220) = %f, want 0.9 (20 residual cents)", got)
	}

	// Just outside the collar there is no forgiveness.
	if got := cfg.ScoreCents(1251); got >= 0.01 {
		t.Errorf("ScoreCents(1251) = %f, want deep-decay score", got)
	}
}

func TestEnergyScoreWindowAndCap(t *testing.T) {
	t.Parallel()

	cfg := DefaultScorerConfig()
	const ref = 0.1

	// Within ±6 dB: full credit, including the louder side (anti-shout cap).
	if got := cfg.ScoreEnergyPair(ref, ref); got != 1.0 {
		t.Errorf("exact match scored %f, want 1.0", got)
	}
	if got := cfg.ScoreEnergyPair(ref*1.9, ref); got != 1.0 { // ~ +5.6 dB
		t.Errorf("+5.6 dB scored %f, want 1.0", got)
	}

	// 12 dB outside the window the falloff reaches zero.
	if got := cfg.ScoreEnergyPair(ref*math.Pow(10, 18.5/20.0), ref); got != 0 {
		t.Errorf("+18.5 dB scored %f, want 0", got)
	}

	// Halfway down the falloff.
	got := cfg.ScoreEnergyPair(ref*math.Pow(10, 12.0/20.0), ref)
	if math.Abs(got-0.5) > 1e-9 {
		t.Errorf("+12 dB scored %f, want 0.5", got)
	}

	// Silent reference rewards silence and nothing else.
	if got := cfg.ScoreEnergyPair(0, 0); got != 1.0 {
		t.Errorf("silence against silent reference scored %f, want 1.0", got)
	}
	if got := cfg.ScoreEnergyPair(0.2, 0); got != 0 {
		t.Errorf("singing over silent reference scored %f, want 0", got)
	}
}

func TestScoreFrameRequiresRunning(t *testing.T) {
	t.Parallel()

	track := newTestTrack(220, 0.1, 200)
	s := NewScorer(track, DefaultScorerConfig())

	if _, err := s.ScoreFrame(LiveFrame{Time: 0.1, F0: 220, Confidence: 1, Energy: 0.1}); err != ErrSessionNotRunning {
		t.Fatalf("idle scorer error = %v, want ErrSessionNotRunning", err)
	}

	s.Arm()
	if err := s.Run(); err != nil {
		t.Fatalf("Run after Arm failed: %v", err)
	}
	s.Stop()
	if _, err := s.ScoreFrame(LiveFrame{Time: 0.1, F0: 220, Confidence: 1, Energy: 0.1}); err != ErrSessionNotRunning {
		t.Fatalf("stopped scorer error = %v, want ErrSessionNotRunning", err)
	}
}

func TestScoreFrameConfidenceFloor(t *testing.T) {
	t.Parallel()

	track := newTestTrack(220, 0.1, 200)
	s := newRunningScorer(t, track)

	score, err := s.ScoreFrame(LiveFrame{Time: 0.1, F0: 220, Confidence: 0.1, Energy: 0.1})
	if err != nil {
		t.Fatalf("ScoreFrame returned error: %v", err)
	}
	if score.PitchScore != 0 {
		t.Errorf("low-confidence frame earned pitch score %f, want 0", score.PitchScore)
	}
	if score.EnergyScore != 1.0 {
		t.Errorf("energy score %f unaffected by confidence, want 1.0", score.EnergyScore)
	}
}

func TestComboActivatesExactlyAtStreak(t *testing.T) {
	t.Parallel()

	track := newTestTrack(220, 0.1, 500)
	s := newRunningScorer(t, track)

	good := func(i int) LiveFrame {
		return LiveFrame{Time: float64(i) * 0.05, F0: 220, Confidence: 1, Energy: 0.1}
	}
	bad := func(i int) LiveFrame {
		return LiveFrame{Time: float64(i) * 0.05, F0: 0, Confidence: 0, Energy: 0}
	}

	// Four good frames then a miss: the streak must never activate.
	for i := 0; i < 4; i++ {
		score, err := s.ScoreFrame(good(i))
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if score.OnCombo {
			t.Fatalf("combo active after %d good frames, threshold is %d", i+1, s.cfg.ComboStreak)
		}
	}
	if score, _ := s.ScoreFrame(bad(4)); score.ComboCount != 0 {
		t.Fatalf("streak %d after a miss, want 0", score.ComboCount)
	}

	// Five consecutive good frames: combo activates exactly on the fifth.
	for i := 5; i < 10; i++ {
		score, err := s.ScoreFrame(good(i))
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		wantCombo := i == 9
		if score.OnCombo != wantCombo {
			t.Fatalf("frame %d: OnCombo=%v, want %v (streak %d)", i, score.OnCombo, wantCombo, score.ComboCount)
		}
	}

	if s.maxCombo != 5 {
		t.Errorf("max combo = %d, want 5", s.maxCombo)
	}
}

func TestSummaryAndBadges(t *testing.T) {
	t.Parallel()

	track := newTestTrack(220, 0.1, 2000)
	s := newRunningScorer(t, track)

	// Thirty perfect frames: average clamps at 1 despite combo weighting.
	for i := 0; i < 30; i++ {
		if _, err := s.ScoreFrame(LiveFrame{Time: float64(i) * 0.05, F0: 220, Confidence: 1, Energy: 0.1}); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	s.Stop()

	average, pitchAvg, energyAvg, maxCombo := s.summary()
	if average > 1.0 {
		t.Errorf("average %f exceeds 1.0", average)
	}
	if average < 0.99 {
		t.Errorf("average %f for a perfect run, want ~1", average)
	}
	if pitchAvg != 1.0 || energyAvg != 1.0 {
		t.Errorf("pitch/energy averages %f/%f, want 1/1", pitchAvg, energyAvg)
	}
	if maxCombo != 30 {
		t.Errorf("max combo %d, want 30", maxCombo)
	}

	badges := s.badges()
	want := map[string]bool{"gold-pitch": true, "combo-master": true, "full-send": true, "encore-worthy": true}
	if len(badges) != len(want) {
		t.Fatalf("badges = %v, want all four", badges)
	}
	for _, b := range badges {
		if !want[b] {
			t.Errorf("unexpected badge %q", b)
		}
	}
}
