package session

// Append-only per-session series. The scorer appends and never edits; only
// the phrase refiner may produce a separate corrected series afterwards.

import "time"

// LiveFrame is one throttled measurement of the cleaned microphone signal.
type LiveFrame struct {
	Time       float64 `json:"time"` // seconds since session start
	F0         float64 `json:"f0"`
	Confidence float64 `json:"confidence"`
	Energy     float64 `json:"energy"`
	Centroid   float64 `json:"spectralCentroid"`
}

// ScoreFrame is the scoring outcome for one LiveFrame. Immutable once
// appended.
type ScoreFrame struct {
	Time          float64 `json:"time"`
	PitchScore    float64 `json:"pitchScore"`
	EnergyScore   float64 `json:"energyScore"`
	CombinedScore float64 `json:"combinedScore"`
	ComboCount    int     `json:"comboCount"`
	OnCombo       bool    `json:"onCombo"`
}

// PerformanceTrace is the ordered record of a session. It is written by the
// single scoring goroutine and read only after the session stops.
type PerformanceTrace struct {
	Frames []LiveFrame  `json:"frames"`
	Scores []ScoreFrame `json:"scores"`
}

func (t *PerformanceTrace) append(frame LiveFrame, score ScoreFrame) {
	t.Frames = append(t.Frames, frame)
	t.Scores = append(t.Scores, score)
}

// Result aggregates a finished session. Created once at session end; a
// refinement pass stores its output alongside, never over the original.
type Result struct {
	SessionID     string           `json:"sessionID"`
	SongID        string           `json:"songID"`
	Trace         PerformanceTrace `json:"trace"`
	AverageScore  float64          `json:"averageScore"`
	PitchAverage  float64          `json:"pitchAverage"`
	EnergyAverage float64          `json:"energyAverage"`
	MaxCombo      int              `json:"maxCombo"`
	Badges        []string         `json:"badges,omitempty"`
	EchoConverged bool             `json:"echoConverged"`
	EchoResets    int              `json:"echoResets"`
	DroppedFrames int              `json:"droppedFrames"`
	FinishedAt    time.Time        `json:"finishedAt"`
}
