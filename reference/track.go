package reference

// ReferenceTrack is the persisted, read-only product of the offline pipeline.
// The document is schema-versioned; readers reject unknown major versions
// instead of guessing at field semantics.

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hamzapatwa/PitchPerfectly/align"
)

// SchemaVersion tags every serialized reference document.
const SchemaVersion = "1.0"

// NoteBin is a discrete pitch target: contiguous hops whose F0 stays within
// a semitone of the bin's center.
type NoteBin struct {
	MidiNote int     `json:"midiNote"`
	F0       float64 `json:"f0"`    // bin center frequency in Hz
	Start    float64 `json:"start"` // seconds, karaoke timeline
	End      float64 `json:"end"`
}

// Phrase is a non-overlapping time range used for post-session refinement.
type Phrase struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Config records the processing parameters the reference was built with.
type Config struct {
	SampleRate       int     `json:"sampleRate"`
	HopLength        int     `json:"hopLength"`
	FrameLength      int     `json:"frameLength"`
	AlignmentQuality float64 `json:"alignmentQuality"`
	Key              string  `json:"key,omitempty"`
	Tempo            float64 `json:"tempo,omitempty"`
}

// Track bundles everything the live scorer and the refiner read. All series
// live on the karaoke timeline, one entry per hop.
type Track struct {
	SchemaVersion string             `json:"schemaVersion"`
	SongID        string             `json:"songID"`
	Warp          align.WarpFunction `json:"warp"`
	RefPitchHz    []float64          `json:"refPitchHz"`
	Loudness      []float64          `json:"loudness"`
	NoteBins      []NoteBin          `json:"noteBins"`
	Beats         []float64          `json:"beats"`
	Phrases       []Phrase           `json:"phrases"`
	Config        Config             `json:"config"`
}

// HopSeconds is the duration of one analysis hop.
func (t *Track) HopSeconds() float64 {
	return float64(t.Config.HopLength) / float64(t.Config.SampleRate)
}

// Duration is the span covered by the pitch contour.
func (t *Track) Duration() float64 {
	return float64(len(t.RefPitchHz)) * t.HopSeconds()
}

// PitchAt returns the reference F0 at an instant using nearest-hop lookup.
// Zero means the reference is unvoiced there.
func (t *Track) PitchAt(seconds float64) float64 {
	return nearestHop(t.RefPitchHz, seconds, t.HopSeconds())
}

// LoudnessAt returns the reference RMS at an instant, nearest hop.
func (t *Track) LoudnessAt(seconds float64) float64 {
	return nearestHop(t.Loudness, seconds, t.HopSeconds())
}

func nearestHop(series []float64, seconds, hopSeconds float64) float64 {
	if len(series) == 0 || hopSeconds <= 0 {
		return 0
	}
	idx := int(seconds/hopSeconds + 0.5)
	if idx < 0 {
		idx = 0
	}
	if idx >= len(series) {
		idx = len(series) - 1
	}
	return series[idx]
}

// Marshal serializes the track as an indented JSON document.
func (t *Track) Marshal() ([]byte, error) {
	t.SchemaVersion = SchemaVersion
	return json.MarshalIndent(t, "", "  ")
}

// Parse deserializes a reference document, rejecting unknown major versions.
func Parse(data []byte) (*Track, error) {
	var track Track
	if err := json.Unmarshal(data, &track); err != nil {
		return nil, fmt.Errorf("failed to parse reference document: %w", err)
	}
	if err := checkSchemaVersion(track.SchemaVersion); err != nil {
		return nil, err
	}
	if err := track.Warp.Validate(); err != nil {
		return nil, err
	}
	return &track, nil
}

func checkSchemaVersion(version string) error {
	if version == "" {
		return fmt.Errorf("reference document missing schemaVersion")
	}
	major := strings.SplitN(version, ".", 2)[0]
	wantMajor := strings.SplitN(SchemaVersion, ".", 2)[0]
	if major != wantMajor {
		return fmt.Errorf("unsupported reference schema version %s (reader supports major %s)", version, wantMajor)
	}
	return nil
}
