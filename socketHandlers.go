package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"

	"github.com/hamzapatwa/PitchPerfectly/db"
	"github.com/hamzapatwa/PitchPerfectly/models"
	"github.com/hamzapatwa/PitchPerfectly/results"
	"github.com/hamzapatwa/PitchPerfectly/session"
	"github.com/hamzapatwa/PitchPerfectly/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/mdobak/go-xerrors"
)

type socketController struct {
	dbClient   *db.SQLiteClient
	registry   *session.Registry
	sessionCfg session.Config
}

func newSocketController(dbClient *db.SQLiteClient, registry *session.Registry, cfg session.Config) *socketController {
	return &socketController{dbClient: dbClient, registry: registry, sessionCfg: cfg}
}

// socketEmitter forwards scoring updates to one connection. Emit on
// go-socket.io queues the packet without blocking the caller, so it is safe
// to call from the scoring goroutine.
type socketEmitter struct {
	socket    socketio.Conn
	sessionID string
}

func (e *socketEmitter) EmitLiveFrame(frame session.LiveFrame) {
	e.socket.Emit("liveFrame", models.LiveFrameUpdate{
		SessionID:  e.sessionID,
		Time:       frame.Time,
		F0:         frame.F0,
		Confidence: frame.Confidence,
		Energy:     frame.Energy,
		Centroid:   frame.Centroid,
	})
}

func (e *socketEmitter) EmitScore(score session.ScoreFrame) {
	e.socket.Emit("scoreUpdate", models.ScoreUpdate{
		SessionID:     e.sessionID,
		Time:          score.Time,
		PitchScore:    score.PitchScore,
		EnergyScore:   score.EnergyScore,
		CombinedScore: score.CombinedScore,
		ComboCount:    score.ComboCount,
		OnCombo:       score.OnCombo,
	})
}

func emitSessionError(socket socketio.Conn, message string) {
	socket.Emit("sessionError", models.SessionError{Message: message})
}

// sessionIDKey is the per-connection context: the ID of the session this
// socket currently drives, or "" when none is active.
func activeSessionID(socket socketio.Conn) string {
	if id, ok := socket.Context().(string); ok {
		return id
	}
	return ""
}

func (c *socketController) handleStartSession(socket socketio.Conn, payload string) {
	logger := utils.GetLogger()
	ctx := context.Background()

	if existing := activeSessionID(socket); existing != "" {
		emitSessionError(socket, "a session is already running on this connection")
		return
	}

	var startData models.StartSessionData
	if err := json.Unmarshal([]byte(payload), &startData); err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "failed to parse startSession payload", slog.Any("error", err))
		emitSessionError(socket, "invalid startSession payload")
		return
	}
	if startData.SongID == "" {
		emitSessionError(socket, "songID is required")
		return
	}

	track, found, err := c.dbClient.GetReference(startData.SongID)
	if err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "failed to load reference track", slog.Any("error", err))
		emitSessionError(socket, "failed to load reference track")
		return
	}
	if !found {
		emitSessionError(socket, "no reference track for song "+startData.SongID)
		return
	}

	cfg := c.sessionCfg
	if startData.SampleRate > 0 {
		cfg.SampleRate = startData.SampleRate
	}

	sessionID := utils.GenerateUniqueID()
	emitter := &socketEmitter{socket: socket, sessionID: sessionID}
	sess := session.New(sessionID, track, cfg, emitter)
	if err := c.registry.Add(sess); err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "failed to register session", slog.Any("error", err))
		emitSessionError(socket, "failed to register session")
		return
	}
	if err := sess.Start(); err != nil {
		c.registry.Remove(sessionID)
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "failed to start session", slog.Any("error", err))
		emitSessionError(socket, "failed to start session")
		return
	}
	socket.SetContext(sessionID)

	log.Printf("[startSession] session %s for song %s on socket %s\n", sessionID, startData.SongID, socket.ID())
	logger.InfoContext(ctx, "session started",
		slog.String("socketID", socket.ID()),
		slog.String("sessionID", sessionID),
		slog.String("songID", startData.SongID),
		slog.Int("sampleRate", cfg.SampleRate),
		slog.Float64("alignmentQuality", track.Config.AlignmentQuality),
	)

	socket.Emit("sessionReady", models.SessionReady{
		SessionID:  sessionID,
		SongID:     startData.SongID,
		Duration:   track.Duration(),
		Key:        track.Config.Key,
		Tempo:      track.Config.Tempo,
		FrameCount: len(track.RefPitchHz),
	})
}

func (c *socketController) handleAudioFrame(socket socketio.Conn, payload string) {
	logger := utils.GetLogger()
	ctx := context.Background()

	sessionID := activeSessionID(socket)
	if sessionID == "" {
		emitSessionError(socket, "no session running on this connection")
		return
	}

	sess, err := c.registry.Get(sessionID)
	if err != nil {
		emitSessionError(socket, "session not found")
		return
	}

	var frameData models.AudioFrameData
	if err := json.Unmarshal([]byte(payload), &frameData); err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "failed to parse audioFrame payload",
			slog.String("sessionID", sessionID), slog.Any("error", err))
		emitSessionError(socket, "invalid audioFrame payload")
		return
	}

	mic, err := models.DecodePCM(frameData.Mic)
	if err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "failed to decode mic frame",
			slog.String("sessionID", sessionID), slog.Int64("seq", frameData.Seq), slog.Any("error", err))
		emitSessionError(socket, "invalid mic frame")
		return
	}
	playback, err := models.DecodePCM(frameData.Playback)
	if err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "failed to decode playback frame",
			slog.String("sessionID", sessionID), slog.Int64("seq", frameData.Seq), slog.Any("error", err))
		emitSessionError(socket, "invalid playback frame")
		return
	}

	if err := sess.PushFrame(mic, playback); err != nil {
		logger.WarnContext(ctx, "rejected audio frame",
			slog.String("sessionID", sessionID), slog.Int64("seq", frameData.Seq), slog.Any("error", err))
		emitSessionError(socket, "session is not running")
	}
}

func (c *socketController) handleStopSession(socket socketio.Conn) {
	logger := utils.GetLogger()
	ctx := context.Background()

	sessionID := activeSessionID(socket)
	if sessionID == "" {
		emitSessionError(socket, "no session running on this connection")
		return
	}
	socket.SetContext("")

	sess, err := c.registry.Get(sessionID)
	if err != nil {
		emitSessionError(socket, "session not found")
		return
	}

	result := sess.Stop()
	c.registry.Remove(sessionID)

	log.Printf("[stopSession] session %s finished: avg=%.3f, maxCombo=%d, dropped=%d\n",
		sessionID, result.AverageScore, result.MaxCombo, result.DroppedFrames)
	logger.InfoContext(ctx, "session finished",
		slog.String("socketID", socket.ID()),
		slog.String("sessionID", sessionID),
		slog.String("songID", result.SongID),
		slog.Float64("averageScore", result.AverageScore),
		slog.Int("maxCombo", result.MaxCombo),
		slog.Bool("echoConverged", result.EchoConverged),
		slog.Int("echoResets", result.EchoResets),
		slog.Int("droppedFrames", result.DroppedFrames),
	)

	if err := c.dbClient.SaveSessionResult(result); err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "failed to persist session result",
			slog.String("sessionID", sessionID), slog.Any("error", err))
	}
	if err := results.ArchiveSession(result); err != nil {
		logger.WarnContext(ctx, "failed to archive session result",
			slog.String("sessionID", sessionID), slog.Any("error", err))
	}

	socket.Emit("sessionSummary", models.SessionSummary{
		SessionID:     result.SessionID,
		SongID:        result.SongID,
		AverageScore:  result.AverageScore,
		PitchAverage:  result.PitchAverage,
		EnergyAverage: result.EnergyAverage,
		MaxCombo:      result.MaxCombo,
		Badges:        result.Badges,
		EchoConverged: result.EchoConverged,
		EchoResets:    result.EchoResets,
		DroppedFrames: result.DroppedFrames,
		FinishedAt:    result.FinishedAt,
	})
}

// handleDisconnect tears down any session left running by a dropped client so
// the registry never leaks goroutines.
func (c *socketController) handleDisconnect(socket socketio.Conn) {
	sessionID := activeSessionID(socket)
	if sessionID == "" {
		return
	}

	sess, err := c.registry.Get(sessionID)
	if err != nil {
		return
	}

	result := sess.Stop()
	c.registry.Remove(sessionID)
	log.Printf("[disconnect] closed orphaned session %s (avg=%.3f)\n", sessionID, result.AverageScore)

	if err := c.dbClient.SaveSessionResult(result); err != nil {
		log.Printf("[disconnect] failed to persist session %s: %v\n", sessionID, err)
	}
}
