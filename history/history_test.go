package history

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rehearse/interview"
	"rehearse/transcript"
)

func TestAddAssignsIdentity(t *testing.T) {
	store := NewJSONStore(t.TempDir())

	rec, err := store.Add(Record{Config: interview.Config{Category: interview.Technical}})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if rec.ID == "" {
		t.Error("ID not assigned")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("CreatedAt not assigned")
	}

	got := store.List()
	if len(got) != 1 || got[0].ID != rec.ID {
		t.Errorf("List = %+v", got)
	}
}

func TestRetainsNewestTen(t *testing.T) {
	store := NewJSONStore(t.TempDir())

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < MaxRecords+1; i++ {
		_, err := store.Add(Record{
			ID:        fmt.Sprintf("rec-%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("Add %d: %v", i, err)
		}
	}

	got := store.List()
	if len(got) != MaxRecords {
		t.Fatalf("len = %d, want %d", len(got), MaxRecords)
	}
	if got[0].ID != "rec-10" {
		t.Errorf("newest = %s, want rec-10", got[0].ID)
	}
	for _, rec := range got {
		if rec.ID == "rec-0" {
			t.Error("oldest record survived")
		}
	}
}

func TestCorruptFileReadsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, fileName), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewJSONStore(dir)
	if got := store.List(); len(got) != 0 {
		t.Errorf("List = %+v, want empty", got)
	}

	// a new add replaces the corrupt file
	if _, err := store.Add(Record{Transcript: []transcript.Message{{Speaker: transcript.User, Text: "hi", Final: true}}}); err != nil {
		t.Fatalf("Add after corruption: %v", err)
	}
	if got := store.List(); len(got) != 1 {
		t.Errorf("List after repair = %d records", len(got))
	}
}

func TestMissingFileReadsEmpty(t *testing.T) {
	store := NewJSONStore(filepath.Join(t.TempDir(), "nope"))
	if got := store.List(); got != nil {
		t.Errorf("List = %+v, want nil", got)
	}
}
