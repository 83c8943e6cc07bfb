// Package history persists completed interviews to local disk, keeping only
// the most recent sessions.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"rehearse/interview"
	"rehearse/report"
	"rehearse/transcript"
)

// MaxRecords bounds how many past interviews are retained.
const MaxRecords = 10

const fileName = "interviews.json"

// Record is one archived interview.
type Record struct {
	ID         string               `json:"id"`
	CreatedAt  time.Time            `json:"createdAt"`
	Config     interview.Config     `json:"config"`
	Report     *report.Feedback     `json:"report,omitempty"`
	Transcript []transcript.Message `json:"transcript"`
}

// PersistenceError marks a failed history write. Loads never fail; a corrupt
// or missing file reads as empty.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("history: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store archives finished interviews.
type Store interface {
	Add(rec Record) (Record, error)
	List() []Record
}

// JSONStore keeps records in a single JSON file under dir.
type JSONStore struct {
	path string
}

func NewJSONStore(dir string) *JSONStore {
	return &JSONStore{path: filepath.Join(dir, fileName)}
}

// Add assigns an id and timestamp if unset, persists, and returns the stored
// record. At most MaxRecords newest records survive.
func (s *JSONStore) Add(rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	records := append([]Record{rec}, s.List()...)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if len(records) > MaxRecords {
		records = records[:MaxRecords]
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return rec, &PersistenceError{Err: err}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return rec, &PersistenceError{Err: err}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return rec, &PersistenceError{Err: err}
	}
	return rec, nil
}

// List returns stored records newest first. Unreadable or corrupt files are
// treated as an empty history.
func (s *JSONStore) List() []Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil
	}
	return records
}
