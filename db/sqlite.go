package db

// SQLite persistence for reference documents and session results. Reference
// tracks are stored as their serialized JSON document keyed by song, which
// keeps the schema-versioning contract in one place (the reference package)
// while the table carries the queryable metadata.

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration

	"github.com/hamzapatwa/PitchPerfectly/reference"
	"github.com/hamzapatwa/PitchPerfectly/refine"
	"github.com/hamzapatwa/PitchPerfectly/session"
	"github.com/hamzapatwa/PitchPerfectly/utils"
)

type SQLiteClient struct {
	db *sql.DB
}

func NewSQLiteClient(dataSourceName string) (*SQLiteClient, error) {
	dbPath := dataSourceName
	if idx := strings.Index(dataSourceName, "?"); idx != -1 {
		dbPath = dataSourceName[:idx]
	}

	dbDir := filepath.Dir(dbPath)
	if dbDir != "." && dbDir != "" {
		if err := utils.CreateFolder(dbDir); err != nil {
			return nil, fmt.Errorf("error creating database directory: %s", err)
		}
	}

	// Busy timeout keeps concurrent builder/session writes from failing
	// immediately on lock contention.
	if !strings.Contains(dataSourceName, "_busy_timeout") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_busy_timeout=5000"
		} else {
			dataSourceName += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %s", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("error creating tables: %s", err)
	}

	return &SQLiteClient{db: db}, nil
}

func createTables(db *sql.DB) error {
	createReferenceTable := `
    CREATE TABLE IF NOT EXISTS reference_tracks (
        song_id TEXT PRIMARY KEY,
        schema_version TEXT NOT NULL,
        alignment_quality REAL NOT NULL,
        sample_rate INTEGER NOT NULL,
        hop_length INTEGER NOT NULL,
        document TEXT NOT NULL,
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    );
    `

	createResultsTable := `
    CREATE TABLE IF NOT EXISTS session_results (
        session_id TEXT PRIMARY KEY,
        song_id TEXT NOT NULL,
        average_score REAL NOT NULL,
        max_combo INTEGER NOT NULL,
        echo_converged INTEGER NOT NULL DEFAULT 0,
        dropped_frames INTEGER NOT NULL DEFAULT 0,
        finished_at DATETIME NOT NULL,
        document TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_session_results_song ON session_results(song_id);
    `

	createRefinedTable := `
    CREATE TABLE IF NOT EXISTS refined_results (
        session_id TEXT PRIMARY KEY,
        song_id TEXT NOT NULL,
        refined_average REAL NOT NULL,
        created_at DATETIME NOT NULL,
        document TEXT NOT NULL
    );
    `

	for _, stmt := range []string{createReferenceTable, createResultsTable, createRefinedTable} {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (c *SQLiteClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// SaveReference persists a reference track document, replacing any previous
// build for the same song. Implements reference.Store.
func (c *SQLiteClient) SaveReference(track *reference.Track) error {
	doc, err := track.Marshal()
	if err != nil {
		return fmt.Errorf("error serializing reference: %s", err)
	}

	_, err = c.db.Exec(`
		INSERT OR REPLACE INTO reference_tracks
			(song_id, schema_version, alignment_quality, sample_rate, hop_length, document, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		track.SongID,
		track.SchemaVersion,
		track.Config.AlignmentQuality,
		track.Config.SampleRate,
		track.Config.HopLength,
		string(doc),
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("error storing reference: %s", err)
	}
	return nil
}

// GetReference loads and re-validates a reference document.
func (c *SQLiteClient) GetReference(songID string) (*reference.Track, bool, error) {
	row := c.db.QueryRow("SELECT document FROM reference_tracks WHERE song_id = ?", songID)

	var doc string
	if err := row.Scan(&doc); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to retrieve reference: %s", err)
	}

	track, err := reference.Parse([]byte(doc))
	if err != nil {
		return nil, false, err
	}
	return track, true, nil
}

// SaveSessionResult stores a finished session. The full trace travels in the
// JSON document column.
func (c *SQLiteClient) SaveSessionResult(result *session.Result) error {
	doc, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("error serializing session result: %s", err)
	}

	converged := 0
	if result.EchoConverged {
		converged = 1
	}

	_, err = c.db.Exec(`
		INSERT OR REPLACE INTO session_results
			(session_id, song_id, average_score, max_combo, echo_converged, dropped_frames, finished_at, document)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.SessionID,
		result.SongID,
		result.AverageScore,
		result.MaxCombo,
		converged,
		result.DroppedFrames,
		result.FinishedAt,
		string(doc),
	)
	if err != nil {
		return fmt.Errorf("error storing session result: %s", err)
	}
	return nil
}

// GetSessionResult loads one finished session by identifier.
func (c *SQLiteClient) GetSessionResult(sessionID string) (*session.Result, bool, error) {
	row := c.db.QueryRow("SELECT document FROM session_results WHERE session_id = ?", sessionID)

	var doc string
	if err := row.Scan(&doc); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to retrieve session result: %s", err)
	}

	var result session.Result
	if err := json.Unmarshal([]byte(doc), &result); err != nil {
		return nil, false, fmt.Errorf("error parsing session result: %s", err)
	}
	return &result, true, nil
}

// SaveRefinedResult stores a refinement pass next to (never over) the
// original session result.
func (c *SQLiteClient) SaveRefinedResult(result *refine.Result) error {
	doc, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("error serializing refined result: %s", err)
	}

	_, err = c.db.Exec(`
		INSERT OR REPLACE INTO refined_results
			(session_id, song_id, refined_average, created_at, document)
		VALUES (?, ?, ?, ?, ?)`,
		result.SessionID,
		result.SongID,
		result.RefinedAverage,
		result.CreatedAt,
		string(doc),
	)
	if err != nil {
		return fmt.Errorf("error storing refined result: %s", err)
	}
	return nil
}

// ListSessionResults returns finished sessions, newest first.
func (c *SQLiteClient) ListSessionResults() ([]session.Result, error) {
	rows, err := c.db.Query("SELECT document FROM session_results ORDER BY finished_at DESC")
	if err != nil {
		return nil, fmt.Errorf("error querying session results: %s", err)
	}
	defer rows.Close()

	var results []session.Result
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("error scanning session result: %s", err)
		}
		var result session.Result
		if err := json.Unmarshal([]byte(doc), &result); err != nil {
			return nil, fmt.Errorf("error parsing session result: %s", err)
		}
		results = append(results, result)
	}
	return results, nil
}
