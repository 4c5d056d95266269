package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/x2raindrop/internal/shared"
)

func tempLedger(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "state.json"), nil)
}

func TestStore(t *testing.T) {
	t.Run("missing file starts fresh", func(t *testing.T) {
		s := tempLedger(t)
		if err := s.Load(); err != nil {
			t.Fatalf("load: %v", err)
		}
		if s.Count() != 0 {
			t.Errorf("expected empty ledger, got %d entries", s.Count())
		}
	})

	t.Run("record and query", func(t *testing.T) {
		s := tempLedger(t)
		s.Load()

		if err := s.Record("100", []int64{1, 2}, "both"); err != nil {
			t.Fatalf("record: %v", err)
		}

		if !s.HasSynced("100") {
			t.Error("expected tweet recorded")
		}
		if s.HasSynced("200") {
			t.Error("unexpected tweet recorded")
		}
		entry, ok := s.Entry("100")
		if !ok {
			t.Fatal("expected entry present")
		}
		if len(entry.DestinationIDs) != 2 || entry.LinkMode != "both" {
			t.Errorf("unexpected entry %+v", entry)
		}
		if entry.SyncedAt.IsZero() {
			t.Error("expected synced_at set")
		}
	})

	t.Run("re-recording is a no-op", func(t *testing.T) {
		s := tempLedger(t)
		s.Load()
		s.Record("100", []int64{1}, "permalink")

		if err := s.Record("100", []int64{9, 9}, "both"); err != nil {
			t.Fatalf("record: %v", err)
		}
		entry, _ := s.Entry("100")
		if entry.LinkMode != "permalink" || len(entry.DestinationIDs) != 1 {
			t.Errorf("entry was overwritten: %+v", entry)
		}
	})

	t.Run("entries survive a reload", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		s := NewStore(path, nil)
		s.Load()
		s.Record("100", []int64{1}, "permalink")
		s.MarkDeleted("100")

		reloaded := NewStore(path, nil)
		if err := reloaded.Load(); err != nil {
			t.Fatalf("reload: %v", err)
		}
		entry, ok := reloaded.Entry("100")
		if !ok {
			t.Fatal("expected entry after reload")
		}
		if !entry.DeletedFromX {
			t.Error("expected deleted flag persisted")
		}
	})

	t.Run("reset forgets one entry", func(t *testing.T) {
		s := tempLedger(t)
		s.Load()
		s.Record("100", []int64{1}, "permalink")
		s.Record("200", []int64{2}, "permalink")

		if err := s.Reset("100"); err != nil {
			t.Fatalf("reset: %v", err)
		}
		if s.HasSynced("100") {
			t.Error("expected entry forgotten")
		}
		if !s.HasSynced("200") {
			t.Error("other entries must survive a reset")
		}
		if err := s.Reset("unknown"); err != nil {
			t.Errorf("resetting an unknown id must be a no-op, got %v", err)
		}
	})

	t.Run("reset all clears the ledger", func(t *testing.T) {
		s := tempLedger(t)
		s.Load()
		s.Record("100", []int64{1}, "permalink")

		if err := s.ResetAll(); err != nil {
			t.Fatalf("reset all: %v", err)
		}
		if s.Count() != 0 {
			t.Errorf("expected empty ledger, got %d", s.Count())
		}
	})

	t.Run("marking an unknown tweet fails", func(t *testing.T) {
		s := tempLedger(t)
		s.Load()
		if err := s.MarkDeleted("nope"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
	})

	t.Run("corrupt file is an error, not a fresh ledger", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}

		s := NewStore(path, nil)
		if err := s.Load(); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("creates parent directories on persist", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "state.json")
		s := NewStore(path, nil)
		s.Load()

		if err := s.Record("100", []int64{1}, "permalink"); err != nil {
			t.Fatalf("record: %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected state file created: %v", err)
		}
	})
}
