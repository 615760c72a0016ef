package models

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

// StartSessionData is the payload of the client "startSession" event.
type StartSessionData struct {
	SongID     string `json:"songID"`
	SampleRate int    `json:"sampleRate"`
}

// AudioFrameData carries one capture frame. Mic and Playback are
// base64-encoded little-endian 16-bit PCM of equal length; Playback is the
// backing-track audio the client was rendering while the mic frame was
// captured, used as the far-end reference for echo cancellation.
type AudioFrameData struct {
	Seq      int64  `json:"seq"`
	Mic      string `json:"mic"`
	Playback string `json:"playback"`
}

// SessionReady acknowledges a started session.
type SessionReady struct {
	SessionID  string  `json:"sessionID"`
	SongID     string  `json:"songID"`
	Duration   float64 `json:"duration"`
	Key        string  `json:"key"`
	Tempo      float64 `json:"tempo"`
	FrameCount int     `json:"frameCount"`
}

// LiveFrameUpdate mirrors the analyzer output for client visualization.
type LiveFrameUpdate struct {
	SessionID  string  `json:"sessionID"`
	Time       float64 `json:"time"`
	F0         float64 `json:"f0"`
	Confidence float64 `json:"confidence"`
	Energy     float64 `json:"energy"`
	Centroid   float64 `json:"centroid"`
}

// ScoreUpdate is one scored frame pushed to the client.
type ScoreUpdate struct {
	SessionID     string  `json:"sessionID"`
	Time          float64 `json:"time"`
	PitchScore    float64 `json:"pitchScore"`
	EnergyScore   float64 `json:"energyScore"`
	CombinedScore float64 `json:"combinedScore"`
	ComboCount    int     `json:"comboCount"`
	OnCombo       bool    `json:"onCombo"`
}

// SessionSummary is emitted once after stopSession.
type SessionSummary struct {
	SessionID     string    `json:"sessionID"`
	SongID        string    `json:"songID"`
	AverageScore  float64   `json:"averageScore"`
	PitchAverage  float64   `json:"pitchAverage"`
	EnergyAverage float64   `json:"energyAverage"`
	MaxCombo      int       `json:"maxCombo"`
	Badges        []string  `json:"badges"`
	EchoConverged bool      `json:"echoConverged"`
	EchoResets    int       `json:"echoResets"`
	DroppedFrames int       `json:"droppedFrames"`
	FinishedAt    time.Time `json:"finishedAt"`
}

// SessionError is the error payload for both socket events and HTTP
// responses. Stage is set when the failure came from reference building.
type SessionError struct {
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message"`
}

// BuildReferenceRequest is the body of POST /api/reference/build.
type BuildReferenceRequest struct {
	SongID      string `json:"songID"`
	KaraokePath string `json:"karaokePath"`
	StudioPath  string `json:"studioPath"`
}

// BuildReferenceResponse reports the built track's headline numbers.
type BuildReferenceResponse struct {
	SongID           string  `json:"songID"`
	AlignmentQuality float64 `json:"alignmentQuality"`
	Duration         float64 `json:"duration"`
	Key              string  `json:"key"`
	Tempo            float64 `json:"tempo"`
	NoteCount        int     `json:"noteCount"`
	PhraseCount      int     `json:"phraseCount"`
}

// DecodePCM decodes base64 little-endian int16 PCM into [-1, 1) samples.
func DecodePCM(encoded string) ([]float64, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("error decoding pcm payload: %v", err)
	}
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("pcm payload has odd byte count %d", len(raw))
	}

	samples := make([]float64, len(raw)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		samples[i] = float64(v) / 32768.0
	}
	return samples, nil
}

// EncodePCM is the inverse of DecodePCM, used by tests and tooling.
func EncodePCM(samples []float64) string {
	raw := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(int16(s*32767)))
	}
	return base64.StdEncoding.EncodeToString(raw)
}
