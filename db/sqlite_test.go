package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/hamzapatwa/PitchPerfectly/align"
	"github.com/hamzapatwa/PitchPerfectly/refine"
	"github.com/hamzapatwa/PitchPerfectly/reference"
	"github.com/hamzapatwa/PitchPerfectly/session"
)

func newTestClient(t *testing.T) *SQLiteClient {
	t.Helper()
	client, err := NewSQLiteClient(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func sampleTrack(songID string) *reference.Track {
	return &reference.Track{
		SchemaVersion: reference.SchemaVersion,
		SongID:        songID,
		Warp: align.WarpFunction{
			Points:  []align.WarpPoint{{Source: 0, Target: 0}, {Source: 2, Target: 2.1}},
			Quality: 0.91,
		},
		RefPitchHz: []float64{0, 220, 220, 330},
		Loudness:   []float64{0.01, 0.1, 0.1, 0.12},
		Phrases:    []reference.Phrase{{Start: 0, End: 2}},
		Config: reference.Config{
			SampleRate:       48000,
			HopLength:        1024,
			FrameLength:      2048,
			AlignmentQuality: 0.91,
			Key:              "A",
		},
	}
}

func TestReferenceRoundTrip(t *testing.T) {
	client := newTestClient(t)

	if err := client.SaveReference(sampleTrack("song-1")); err != nil {
		t.Fatalf("SaveReference failed: %v", err)
	}

	track, found, err := client.GetReference("song-1")
	if err != nil {
		t.Fatalf("GetReference failed: %v", err)
	}
	if !found {
		t.Fatal("saved reference not found")
	}
	if track.SongID != "song-1" || track.Config.Key != "A" {
		t.Errorf("loaded track %s/%s, want song-1/A", track.SongID, track.Config.Key)
	}
	if len(track.RefPitchHz) != 4 {
		t.Errorf("pitch contour length %d, want 4", len(track.RefPitchHz))
	}

	// Upsert: a rebuilt reference replaces the stored document.
	updated := sampleTrack("song-1")
	updated.Config.Key = "C"
	if err := client.SaveReference(updated); err != nil {
		t.Fatalf("second SaveReference failed: %v", err)
	}
	track, _, err = client.GetReference("song-1")
	if err != nil {
		t.Fatalf("GetReference after upsert failed: %v", err)
	}
	if track.Config.Key != "C" {
		t.Errorf("key %s after upsert, want C", track.Config.Key)
	}
}

func TestGetReferenceNotFound(t *testing.T) {
	client := newTestClient(t)

	_, found, err := client.GetReference("ghost")
	if err != nil {
		t.Fatalf("GetReference failed: %v", err)
	}
	if found {
		t.Fatal("found a reference that was never saved")
	}
}

func TestSessionResultRoundTrip(t *testing.T) {
	client := newTestClient(t)

	result := &session.Result{
		SessionID:     "sess-db-1",
		SongID:        "song-1",
		AverageScore:  0.82,
		PitchAverage:  0.85,
		EnergyAverage: 0.75,
		MaxCombo:      12,
		Badges:        []string{"gold-pitch"},
		EchoConverged: true,
		DroppedFrames: 3,
		FinishedAt:    time.Now().UTC(),
	}
	result.Trace.Frames = []session.LiveFrame{{Time: 0.1, F0: 220, Confidence: 0.9, Energy: 0.1}}
	result.Trace.Scores = []session.ScoreFrame{{Time: 0.1, PitchScore: 1, EnergyScore: 1, CombinedScore: 1}}

	if err := client.SaveSessionResult(result); err != nil {
		t.Fatalf("SaveSessionResult failed: %v", err)
	}

	loaded, found, err := client.GetSessionResult("sess-db-1")
	if err != nil {
		t.Fatalf("GetSessionResult failed: %v", err)
	}
	if !found {
		t.Fatal("saved result not found")
	}
	if loaded.AverageScore != 0.82 || loaded.MaxCombo != 12 {
		t.Errorf("loaded %f/%d, want 0.82/12", loaded.AverageScore, loaded.MaxCombo)
	}
	if len(loaded.Trace.Frames) != 1 || len(loaded.Trace.Scores) != 1 {
		t.Errorf("trace %d/%d entries, want 1/1", len(loaded.Trace.Frames), len(loaded.Trace.Scores))
	}
	if !loaded.EchoConverged {
		t.Error("echo convergence flag lost")
	}
}

func TestListSessionResultsNewestFirst(t *testing.T) {
	client := newTestClient(t)

	base := time.Now().UTC()
	for i, id := range []string{"old", "mid", "new"} {
		res := &session.Result{
			SessionID:  id,
			SongID:     "song-1",
			FinishedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := client.SaveSessionResult(res); err != nil {
			t.Fatalf("SaveSessionResult(%s) failed: %v", id, err)
		}
	}

	list, err := client.ListSessionResults()
	if err != nil {
		t.Fatalf("ListSessionResults failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("listed %d results, want 3", len(list))
	}
	if list[0].SessionID != "new" || list[2].SessionID != "old" {
		t.Errorf("order %s..%s, want newest first", list[0].SessionID, list[2].SessionID)
	}
}

func TestSaveRefinedResult(t *testing.T) {
	client := newTestClient(t)

	refined := &refine.Result{
		SessionID:      "sess-db-2",
		SongID:         "song-1",
		RefinedAverage: 0.88,
		Phrases: []refine.PhraseResult{
			{Phrase: reference.Phrase{Start: 0, End: 2}, CombinedScore: 0.88, FrameCount: 40},
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := client.SaveRefinedResult(refined); err != nil {
		t.Fatalf("SaveRefinedResult failed: %v", err)
	}
}
