package reference

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/hamzapatwa/PitchPerfectly/wav"
)

// writeTestWav renders a two-note melody (220 Hz then 330 Hz, alternating
// every half second) to disk and returns its path.
func writeTestWav(t *testing.T, dir, name string, sampleRate int, seconds float64) string {
	t.Helper()

	length := int(seconds * float64(sampleRate))
	samples := make([]float64, length)
	for i := range samples {
		sec := float64(i) / float64(sampleRate)
		freq := 220.0
		if int(sec*2)%2 == 1 {
			freq = 330.0
		}
		samples[i] = 0.4 * math.Sin(2*math.Pi*freq*sec)
	}

	path := filepath.Join(dir, name)
	if err := wav.WriteFile(path, samples, sampleRate); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

type memoryStore struct {
	saved []*Track
	fail  error
}

func (m *memoryStore) SaveReference(track *Track) error {
	if m.fail != nil {
		return m.fail
	}
	m.saved = append(m.saved, track)
	return nil
}

func TestBuildSelfConsistentSong(t *testing.T) {
	t.Parallel()

	const sampleRate = 16000
	dir := t.TempDir()
	karaokePath := writeTestWav(t, dir, "karaoke.wav", sampleRate, 3.0)
	studioPath := writeTestWav(t, dir, "studio.wav", sampleRate, 3.0)

	store := &memoryStore{}
	builder := NewBuilder(nil, store)

	track, err := builder.Build("self-test", karaokePath, studioPath)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if track.SongID != "self-test" {
		t.Errorf("song ID %s, want self-test", track.SongID)
	}
	if track.Config.AlignmentQuality < 0.9 {
		t.Errorf("alignment quality %f for identical audio, want near 1", track.Config.AlignmentQuality)
	}
	if len(track.RefPitchHz) == 0 || len(track.RefPitchHz) != len(track.Loudness) {
		t.Fatalf("contour lengths %d/%d", len(track.RefPitchHz), len(track.Loudness))
	}

	// Identical files: the warp is close to the identity.
	mid := track.Duration() / 2
	if mapped := track.Warp.Map(mid); math.Abs(mapped-mid) > 3*track.HopSeconds() {
		t.Errorf("warp maps %.3fs to %.3fs for identical audio", mid, mapped)
	}

	// The melody alternates A3 and E4; both must appear as note bins.
	midiCounts := map[int]int{}
	for _, bin := range track.NoteBins {
		midiCounts[bin.MidiNote]++
	}
	if midiCounts[57] == 0 {
		t.Errorf("no A3 (midi 57) note bins found in %v", track.NoteBins)
	}
	if midiCounts[64] == 0 {
		t.Errorf("no E4 (midi 64) note bins found in %v", track.NoteBins)
	}

	if len(track.Phrases) == 0 {
		t.Error("no phrases segmented")
	}
	for i, p := range track.Phrases {
		if p.End <= p.Start {
			t.Errorf("phrase %d has non-positive span: %+v", i, p)
		}
		if i > 0 && p.Start < track.Phrases[i-1].End {
			t.Errorf("phrase %d overlaps its predecessor", i)
		}
	}

	if len(store.saved) != 1 || store.saved[0] != track {
		t.Errorf("store holds %d tracks, want exactly the built one", len(store.saved))
	}

	// All-or-nothing: the persisted document must parse back intact.
	data, err := track.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if _, err := Parse(data); err != nil {
		t.Fatalf("built track does not parse back: %v", err)
	}
}

func TestBuildSampleRateMismatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	karaokePath := writeTestWav(t, dir, "karaoke.wav", 16000, 2.0)
	studioPath := writeTestWav(t, dir, "studio.wav", 8000, 2.0)

	_, err := NewBuilder(nil, nil).Build("mismatch", karaokePath, studioPath)
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("error %v, want a StageError", err)
	}
	if stageErr.Stage != StageExtraction {
		t.Errorf("failed at stage %s, want %s", stageErr.Stage, StageExtraction)
	}
}

func TestBuildMissingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	studioPath := writeTestWav(t, dir, "studio.wav", 16000, 2.0)

	_, err := NewBuilder(nil, nil).Build("missing", filepath.Join(dir, "nope.wav"), studioPath)
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("error %v, want a StageError", err)
	}
	if stageErr.Stage != StageExtraction {
		t.Errorf("failed at stage %s, want %s", stageErr.Stage, StageExtraction)
	}
}

func TestBuildPersistenceFailureAborts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	karaokePath := writeTestWav(t, dir, "karaoke.wav", 16000, 3.0)
	studioPath := writeTestWav(t, dir, "studio.wav", 16000, 3.0)

	store := &memoryStore{fail: errors.New("disk full")}
	_, err := NewBuilder(nil, store).Build("persist-fail", karaokePath, studioPath)

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("error %v, want a StageError", err)
	}
	if stageErr.Stage != StagePersistence {
		t.Errorf("failed at stage %s, want %s", stageErr.Stage, StagePersistence)
	}
	if len(store.saved) != 0 {
		t.Errorf("store holds %d tracks after a failed save", len(store.saved))
	}
}
