package results

// Flat-file JSON archive of finished sessions, kept alongside the sqlite
// store so finished performances survive database resets and stay trivially
// inspectable. Refined results are archived as separate entries; the
// original entry is never rewritten.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hamzapatwa/PitchPerfectly/refine"
	"github.com/hamzapatwa/PitchPerfectly/session"
	"github.com/hamzapatwa/PitchPerfectly/utils"
)

var (
	archiveFile = "results.json"
	mu          sync.RWMutex
)

// Entry is one archived record: a session result, optionally joined later by
// its refinement.
type Entry struct {
	SessionID  string          `json:"sessionID"`
	ArchivedAt time.Time       `json:"archivedAt"`
	Session    *session.Result `json:"session,omitempty"`
	Refined    *refine.Result  `json:"refined,omitempty"`
}

func archivePath() string {
	dir := utils.GetEnv("KARAOKE_RESULTS_DIR", "results_archive")
	return filepath.Join(dir, archiveFile)
}

func loadEntriesInternal() ([]Entry, error) {
	path := archivePath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return []Entry{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading results archive: %v", err)
	}
	if len(data) == 0 {
		return []Entry{}, nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("error unmarshaling results archive: %v", err)
	}
	return entries, nil
}

// LoadEntries returns every archived entry.
func LoadEntries() ([]Entry, error) {
	mu.RLock()
	defer mu.RUnlock()
	return loadEntriesInternal()
}

func saveEntries(entries []Entry) error {
	path := archivePath()
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := utils.CreateFolder(dir); err != nil {
			return fmt.Errorf("error creating archive directory: %v", err)
		}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling results archive: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing results archive: %v", err)
	}
	return nil
}

// ArchiveSession appends a finished session to the archive.
func ArchiveSession(result *session.Result) error {
	mu.Lock()
	defer mu.Unlock()

	entries, err := loadEntriesInternal()
	if err != nil {
		return err
	}
	entries = append(entries, Entry{
		SessionID:  result.SessionID,
		ArchivedAt: time.Now(),
		Session:    result,
	})
	return saveEntries(entries)
}

// ArchiveRefined records a refinement pass as its own entry.
func ArchiveRefined(result *refine.Result) error {
	mu.Lock()
	defer mu.Unlock()

	entries, err := loadEntriesInternal()
	if err != nil {
		return err
	}
	entries = append(entries, Entry{
		SessionID:  result.SessionID,
		ArchivedAt: time.Now(),
		Refined:    result,
	})
	return saveEntries(entries)
}
