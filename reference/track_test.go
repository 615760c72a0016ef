package reference

import (
	"math"
	"strings"
	"testing"

	"github.com/hamzapatwa/PitchPerfectly/align"
)

func exampleTrack() *Track {
	return &Track{
		SongID: "round-trip",
		Warp: align.WarpFunction{
			Points: []align.WarpPoint{
				{Source: 0, Target: 0.5},
				{Source: 10, Target: 11.2},
			},
			Quality: 0.93,
		},
		RefPitchHz: []float64{0, 220.0, 220.5, 0, 440.0},
		Loudness:   []float64{0.01, 0.12, 0.13, 0.02, 0.2},
		NoteBins: []NoteBin{
			{MidiNote: 57, F0: 220.1, Start: 0.02, End: 0.06},
		},
		Beats:   []float64{0.5, 1.0, 1.5},
		Phrases: []Phrase{{Start: 0, End: 2.2}},
		Config: Config{
			SampleRate:       48000,
			HopLength:        1024,
			FrameLength:      2048,
			AlignmentQuality: 0.93,
			Key:              "A",
			Tempo:            120,
		},
	}
}

func TestTrackRoundTrip(t *testing.T) {
	t.Parallel()

	original := exampleTrack()
	data, err := original.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	parsed, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if parsed.SchemaVersion != SchemaVersion {
		t.Errorf("schema version %s, want %s", parsed.SchemaVersion, SchemaVersion)
	}
	if parsed.SongID != original.SongID {
		t.Errorf("song ID %s, want %s", parsed.SongID, original.SongID)
	}
	if len(parsed.RefPitchHz) != len(original.RefPitchHz) {
		t.Fatalf("pitch contour length %d, want %d", len(parsed.RefPitchHz), len(original.RefPitchHz))
	}
	for i := range original.RefPitchHz {
		if math.Abs(parsed.RefPitchHz[i]-original.RefPitchHz[i]) > 1e-9 {
			t.Errorf("pitch hop %d: %f, want %f", i, parsed.RefPitchHz[i], original.RefPitchHz[i])
		}
	}
	if len(parsed.Warp.Points) != len(original.Warp.Points) {
		t.Fatalf("warp has %d points, want %d", len(parsed.Warp.Points), len(original.Warp.Points))
	}
	if parsed.Config != original.Config {
		t.Errorf("config %+v, want %+v", parsed.Config, original.Config)
	}
	if len(parsed.NoteBins) != 1 || parsed.NoteBins[0].MidiNote != 57 {
		t.Errorf("note bins %+v did not survive the round trip", parsed.NoteBins)
	}
}

func TestParseRejectsUnknownMajorVersion(t *testing.T) {
	t.Parallel()

	data, err := exampleTrack().Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	future := strings.Replace(string(data), `"schemaVersion": "`+SchemaVersion+`"`, `"schemaVersion": "2.0"`, 1)
	if _, err := Parse([]byte(future)); err == nil {
		t.Fatal("accepted a document with major version 2")
	}

	missing := strings.Replace(string(data), `"schemaVersion": "`+SchemaVersion+`"`, `"schemaVersion": ""`, 1)
	if _, err := Parse([]byte(missing)); err == nil {
		t.Fatal("accepted a document without a schema version")
	}
}

func TestParseAcceptsNewerMinorVersion(t *testing.T) {
	t.Parallel()

	data, err := exampleTrack().Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	newer := strings.Replace(string(data), `"schemaVersion": "`+SchemaVersion+`"`, `"schemaVersion": "1.7"`, 1)
	if _, err := Parse([]byte(newer)); err != nil {
		t.Fatalf("rejected a newer minor version: %v", err)
	}
}

func TestParseRejectsInvalidWarp(t *testing.T) {
	t.Parallel()

	track := exampleTrack()
	track.Warp.Points = []align.WarpPoint{
		{Source: 5, Target: 2},
		{Source: 5, Target: 3}, // repeated source time
	}
	data, err := track.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if _, err := Parse(data); err == nil {
		t.Fatal("accepted a document with a non-monotonic warp")
	}
}

func TestTrackLookups(t *testing.T) {
	t.Parallel()

	track := exampleTrack()
	hop := track.HopSeconds()

	if got := track.PitchAt(1 * hop); got != 220.0 {
		t.Errorf("PitchAt(hop) = %f, want 220", got)
	}
	// Nearest-hop rounding: 1.4 hops rounds down to hop 1.
	if got := track.PitchAt(1.4 * hop); got != 220.0 {
		t.Errorf("PitchAt(1.4 hops) = %f, want 220", got)
	}
	// 1.6 hops rounds up to hop 2.
	if got := track.PitchAt(1.6 * hop); got != 220.5 {
		t.Errorf("PitchAt(1.6 hops) = %f, want 220.5", got)
	}
	// Past the end clamps to the final hop.
	if got := track.PitchAt(100.0); got != 440.0 {
		t.Errorf("PitchAt past end = %f, want 440", got)
	}
	if got := track.LoudnessAt(-1.0); got != 0.01 {
		t.Errorf("LoudnessAt before start = %f, want first hop", got)
	}

	wantDuration := 5 * hop
	if math.Abs(track.Duration()-wantDuration) > 1e-12 {
		t.Errorf("Duration = %f, want %f", track.Duration(), wantDuration)
	}
}
