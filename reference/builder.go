package reference

// Builder orchestrates the offline preprocessing pipeline:
//
//	load audio -> (optional) vocal separation -> chroma extraction ->
//	banded DTW alignment -> studio pitch contour -> remap onto the karaoke
//	timeline -> note quantization -> beat/phrase segmentation -> persist.
//
// Failure is all-or-nothing: nothing is persisted unless every stage
// succeeds, and the returned error names the stage that failed so callers
// can report it precisely.

import (
	"fmt"

	"github.com/hamzapatwa/PitchPerfectly/align"
	"github.com/hamzapatwa/PitchPerfectly/dsp"
	"github.com/hamzapatwa/PitchPerfectly/separation"
	"github.com/hamzapatwa/PitchPerfectly/wav"
)

// referenceLoudnessRMS is the level the studio vocal is normalized to before
// the loudness contour is measured.
const referenceLoudnessRMS = 0.1

// Pipeline stages reported by StageError.
const (
	StageExtraction  = "extraction"
	StageAlignment   = "alignment"
	StagePitch       = "pitch"
	StagePersistence = "persistence"
)

// StageError identifies which pipeline stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("preprocessing failed at stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Store persists finished reference documents.
type Store interface {
	SaveReference(track *Track) error
}

// Builder runs the preprocessing pipeline for one song at a time. Builders
// hold no per-song state, so distinct songs may be processed by separate
// builders concurrently.
type Builder struct {
	separator *separation.Client // nil when studio audio is already isolated
	store     Store              // nil disables persistence
	alignOpts align.Options
}

// NewBuilder wires a builder. Both collaborators are optional.
func NewBuilder(separator *separation.Client, store Store) *Builder {
	return &Builder{
		separator: separator,
		store:     store,
		alignOpts: align.DefaultOptions(),
	}
}

// Build produces and persists the ReferenceTrack for a song given paths to
// the karaoke track audio and the studio recording.
func (b *Builder) Build(songID, karaokePath, studioPath string) (*Track, error) {
	karaoke, karaokeRate, err := wav.LoadMono(karaokePath)
	if err != nil {
		return nil, &StageError{Stage: StageExtraction, Err: err}
	}

	vocals, vocalRate, err := b.loadStudioVocals(studioPath)
	if err != nil {
		return nil, &StageError{Stage: StageExtraction, Err: err}
	}
	if vocalRate != karaokeRate {
		return nil, &StageError{
			Stage: StageExtraction,
			Err:   fmt.Errorf("sample rate mismatch: karaoke %d Hz vs studio %d Hz", karaokeRate, vocalRate),
		}
	}

	cfg := dsp.DefaultChromaConfig(karaokeRate)
	karaokeBand := dsp.VocalBandFilter(karaoke, karaokeRate)
	vocalBand := dsp.VocalBandFilter(vocals, vocalRate)

	karaokeChroma, err := dsp.ChromaSequence(karaokeBand, cfg)
	if err != nil {
		return nil, &StageError{Stage: StageExtraction, Err: err}
	}
	vocalChroma, err := dsp.ChromaSequence(vocalBand, cfg)
	if err != nil {
		return nil, &StageError{Stage: StageExtraction, Err: err}
	}

	hopSeconds := float64(cfg.HopLength) / float64(cfg.SampleRate)
	warp, err := align.Align(karaokeChroma, vocalChroma, hopSeconds, b.alignOpts)
	if err != nil {
		return nil, &StageError{Stage: StageAlignment, Err: err}
	}

	// Studio uploads and separation output arrive at arbitrary levels.
	// Normalize before the loudness contour so the reference dB window
	// compares performance dynamics, not upload gain.
	vocalNorm := dsp.ApplyAGC(vocalBand, referenceLoudnessRMS)

	pitchCfg := dsp.DefaultPitchConfig(vocalRate)
	studioF0, studioLoudness, err := dsp.PitchContour(vocalNorm, cfg.FrameLength, cfg.HopLength, pitchCfg)
	if err != nil {
		return nil, &StageError{Stage: StagePitch, Err: err}
	}

	// Remap the studio contour onto the karaoke timeline through the warp.
	refPitch := make([]float64, len(karaokeChroma))
	loudness := make([]float64, len(karaokeChroma))
	for k := range refPitch {
		studioTime := warp.Map(float64(k) * hopSeconds)
		idx := int(studioTime/hopSeconds + 0.5)
		if idx >= 0 && idx < len(studioF0) {
			refPitch[k] = studioF0[idx]
			loudness[k] = studioLoudness[idx]
		}
	}

	beats, tempo := DetectBeats(karaokeBand, karaokeRate, cfg.FrameLength, cfg.HopLength)
	duration := float64(len(refPitch)) * hopSeconds
	phrases := SegmentPhrases(beats, tempo, duration)

	track := &Track{
		SchemaVersion: SchemaVersion,
		SongID:        songID,
		Warp:          warp,
		RefPitchHz:    refPitch,
		Loudness:      loudness,
		NoteBins:      QuantizeNotes(refPitch, hopSeconds),
		Beats:         beats,
		Phrases:       phrases,
		Config: Config{
			SampleRate:       karaokeRate,
			HopLength:        cfg.HopLength,
			FrameLength:      cfg.FrameLength,
			AlignmentQuality: warp.Quality,
			Key:              dsp.EstimateKey(vocalChroma),
			Tempo:            tempo,
		},
	}

	if b.store != nil {
		if err := b.store.SaveReference(track); err != nil {
			return nil, &StageError{Stage: StagePersistence, Err: err}
		}
	}
	return track, nil
}

// loadStudioVocals returns the isolated vocal waveform. With a separator
// configured the studio file is treated as a full mix and sent to the
// separation service; otherwise it must already be an isolated vocal stem.
func (b *Builder) loadStudioVocals(studioPath string) ([]float64, int, error) {
	if b.separator == nil {
		return wav.LoadMono(studioPath)
	}
	resp, err := b.separator.SeparateFile(studioPath)
	if err != nil {
		return nil, 0, err
	}
	return resp.Vocals, resp.SampleRate, nil
}
