package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hamzapatwa/PitchPerfectly/db"
	"github.com/hamzapatwa/PitchPerfectly/models"
	"github.com/hamzapatwa/PitchPerfectly/refine"
	"github.com/hamzapatwa/PitchPerfectly/reference"
	"github.com/hamzapatwa/PitchPerfectly/results"
	"github.com/hamzapatwa/PitchPerfectly/separation"
	"github.com/hamzapatwa/PitchPerfectly/session"
	"github.com/hamzapatwa/PitchPerfectly/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/mdobak/go-xerrors"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.SessionError{Message: message})
}

func setCORS(w http.ResponseWriter, methods string) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Allow-Methods", methods+", OPTIONS")
	w.Header().Set("Access-Control-Allow-Credentials", "true")
}

func newBuildReferenceHandler(builder *reference.Builder) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.Background()

		setCORS(w, "POST")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req models.BuildReferenceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.ErrorContext(ctx, "failed to parse build request", slog.Any("error", err))
			writeJSONError(w, http.StatusBadRequest, "invalid request payload")
			return
		}
		if req.SongID == "" || req.KaraokePath == "" || req.StudioPath == "" {
			writeJSONError(w, http.StatusBadRequest, "songID, karaokePath and studioPath are required")
			return
		}

		started := time.Now()
		log.Printf("[HTTP] Building reference for song %s (karaoke=%s, studio=%s)\n",
			req.SongID, req.KaraokePath, req.StudioPath)

		track, err := builder.Build(req.SongID, req.KaraokePath, req.StudioPath)
		if err != nil {
			err := xerrors.New(err)
			logger.ErrorContext(ctx, "reference build failed",
				slog.String("songID", req.SongID), slog.Any("error", err))

			var stageErr *reference.StageError
			if errors.As(err, &stageErr) {
				writeJSON(w, http.StatusUnprocessableEntity, models.SessionError{
					Stage:   stageErr.Stage,
					Message: stageErr.Err.Error(),
				})
				return
			}
			writeJSONError(w, http.StatusInternalServerError, "reference build failed")
			return
		}

		logger.InfoContext(ctx, "reference build complete",
			slog.String("songID", req.SongID),
			slog.Float64("alignmentQuality", track.Config.AlignmentQuality),
			slog.Float64("duration", track.Duration()),
			slog.String("key", track.Config.Key),
			slog.Float64("tempo", track.Config.Tempo),
			slog.Float64("latency_ms", time.Since(started).Seconds()*1000),
		)

		writeJSON(w, http.StatusOK, models.BuildReferenceResponse{
			SongID:           track.SongID,
			AlignmentQuality: track.Config.AlignmentQuality,
			Duration:         track.Duration(),
			Key:              track.Config.Key,
			Tempo:            track.Config.Tempo,
			NoteCount:        len(track.NoteBins),
			PhraseCount:      len(track.Phrases),
		})
	}
}

func newGetReferenceHandler(dbClient *db.SQLiteClient) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.Background()

		setCORS(w, "GET")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		songID := strings.TrimPrefix(r.URL.Path, "/api/reference/")
		if songID == "" || strings.Contains(songID, "/") {
			writeJSONError(w, http.StatusBadRequest, "song ID is required")
			return
		}

		track, found, err := dbClient.GetReference(songID)
		if err != nil {
			logger.ErrorContext(ctx, "failed to load reference track",
				slog.String("songID", songID), slog.Any("error", err))
			writeJSONError(w, http.StatusInternalServerError, "failed to load reference track")
			return
		}
		if !found {
			writeJSONError(w, http.StatusNotFound, "no reference track for song "+songID)
			return
		}

		writeJSON(w, http.StatusOK, track)
	}
}

func newRefineHandler(dbClient *db.SQLiteClient, scoringCfg session.ScorerConfig) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.Background()

		setCORS(w, "POST")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		// Path shape: /api/session/{id}/refine
		trimmed := strings.TrimPrefix(r.URL.Path, "/api/session/")
		sessionID := strings.TrimSuffix(trimmed, "/refine")
		if sessionID == "" || sessionID == trimmed || strings.Contains(sessionID, "/") {
			writeJSONError(w, http.StatusBadRequest, "session ID is required")
			return
		}

		result, found, err := dbClient.GetSessionResult(sessionID)
		if err != nil {
			logger.ErrorContext(ctx, "failed to load session result",
				slog.String("sessionID", sessionID), slog.Any("error", err))
			writeJSONError(w, http.StatusInternalServerError, "failed to load session result")
			return
		}
		if !found {
			writeJSONError(w, http.StatusNotFound, "no result for session "+sessionID)
			return
		}

		track, found, err := dbClient.GetReference(result.SongID)
		if err != nil {
			logger.ErrorContext(ctx, "failed to load reference track",
				slog.String("songID", result.SongID), slog.Any("error", err))
			writeJSONError(w, http.StatusInternalServerError, "failed to load reference track")
			return
		}
		if !found {
			writeJSONError(w, http.StatusNotFound, "no reference track for song "+result.SongID)
			return
		}

		started := time.Now()
		refined, err := refine.Refine(track, result, scoringCfg)
		if err != nil {
			err := xerrors.New(err)
			logger.ErrorContext(ctx, "refinement failed",
				slog.String("sessionID", sessionID), slog.Any("error", err))
			writeJSONError(w, http.StatusUnprocessableEntity, "refinement failed: "+err.Error())
			return
		}

		logger.InfoContext(ctx, "refinement complete",
			slog.String("sessionID", sessionID),
			slog.Int("phraseCount", len(refined.Phrases)),
			slog.Float64("refinedAverage", refined.RefinedAverage),
			slog.Float64("originalAverage", result.AverageScore),
			slog.Float64("latency_ms", time.Since(started).Seconds()*1000),
		)

		if err := dbClient.SaveRefinedResult(refined); err != nil {
			logger.ErrorContext(ctx, "failed to persist refined result",
				slog.String("sessionID", sessionID), slog.Any("error", err))
		}
		if err := results.ArchiveRefined(refined); err != nil {
			logger.WarnContext(ctx, "failed to archive refined result",
				slog.String("sessionID", sessionID), slog.Any("error", err))
		}

		writeJSON(w, http.StatusOK, refined)
	}
}

func newResultsHandler(dbClient *db.SQLiteClient) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.Background()

		setCORS(w, "GET")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		list, err := dbClient.ListSessionResults()
		if err != nil {
			logger.ErrorContext(ctx, "failed to load session results", slog.Any("error", err))
			writeJSONError(w, http.StatusInternalServerError, "failed to load session results")
			return
		}

		writeJSON(w, http.StatusOK, list)
	}
}

func serve(protocol, port string) {
	protocol = strings.ToLower(protocol)
	var allowOriginFunc = func(r *http.Request) bool {
		return true
	}

	dbPath := utils.GetEnv("KARAOKE_DB_PATH", "data/karaoke.db")
	dbClient, err := db.NewSQLiteClient(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer dbClient.Close()

	var separator *separation.Client
	separationURL := utils.GetEnv("SEPARATION_SERVICE_URL", "")
	if separationURL != "" {
		separator = separation.NewClient(separationURL)
		if err := separator.HealthCheck(); err != nil {
			log.Printf("WARNING: separation service unreachable (%v), studio tracks must be pre-separated vocals\n", err)
		} else {
			log.Printf("Separation service available at %s\n", separationURL)
		}
	}

	builder := reference.NewBuilder(separator, dbClient)
	registry := session.NewRegistry()
	sessionCfg := session.DefaultConfig()
	controller := newSocketController(dbClient, registry, sessionCfg)

	server := socketio.NewServer(&engineio.Options{
		PingTimeout:  60 * time.Second,
		PingInterval: 25 * time.Second,
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: allowOriginFunc,
			},
			&polling.Transport{
				CheckOrigin: allowOriginFunc,
			},
		},
	})

	server.OnConnect("/", func(socket socketio.Conn) error {
		socket.SetContext("")
		connURL := socket.URL()
		log.Printf("CONNECTED: %s, transport: %s, remote addr: %s\n", socket.ID(), connURL.String(), socket.RemoteAddr())
		return nil
	})

	server.OnEvent("/", "startSession", func(socket socketio.Conn, msg string) {
		controller.handleStartSession(socket, msg)
	})

	server.OnEvent("/", "audioFrame", func(socket socketio.Conn, msg string) {
		controller.handleAudioFrame(socket, msg)
	})

	server.OnEvent("/", "stopSession", func(socket socketio.Conn) {
		controller.handleStopSession(socket)
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		log.Println("meet error:", e)
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		log.Printf("Socket disconnected - ID: %s, Reason: %s\n", s.ID(), reason)
		controller.handleDisconnect(s)
	})

	go func() {
		if err := server.Serve(); err != nil {
			log.Fatalf("socketio listen error: %s\n", err)
		}
	}()
	defer server.Close()

	serveHTTPS := protocol == "https"

	mux := http.NewServeMux()
	mux.Handle("/socket.io/", server)
	mux.HandleFunc("/api/reference/build", newBuildReferenceHandler(builder))
	mux.HandleFunc("/api/reference/", newGetReferenceHandler(dbClient))
	mux.HandleFunc("/api/session/", newRefineHandler(dbClient, sessionCfg.Scoring))
	mux.HandleFunc("/api/results", newResultsHandler(dbClient))
	mux.Handle("/", http.FileServer(http.Dir("static")))

	serveHTTP(server, serveHTTPS, port, mux)
}

func serveHTTP(socketServer *socketio.Server, serveHTTPS bool, port string, handler http.Handler) {
	if handler == nil {
		handler = socketServer
	}
	if serveHTTPS {
		httpsAddr := ":" + port
		httpsServer := &http.Server{
			Addr: httpsAddr,
			TLSConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			Handler: handler,
		}

		cert_key := utils.GetEnv("CERT_KEY", "")
		cert_file := utils.GetEnv("CERT_FILE", "")
		if cert_key == "" || cert_file == "" {
			log.Fatal("Missing cert")
		}

		log.Printf("Starting HTTPS server on %s\n", httpsAddr)
		if err := httpsServer.ListenAndServeTLS(cert_file, cert_key); err != nil {
			log.Fatalf("HTTPS server ListenAndServeTLS: %v", err)
		}
	}

	log.Printf("Starting HTTP server on port %v", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("HTTP server ListenAndServe: %v", err)
	}
}
