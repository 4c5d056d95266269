// package state persists the sync ledger: which bookmarks have already been
// delivered to Raindrop, under which link mode, and whether they were removed
// from X afterwards. The ledger is what makes repeated runs idempotent.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/x2raindrop/internal/shared"
)

// Entry records one synced bookmark.
type Entry struct {
	DestinationIDs []int64   `json:"destination_ids"`
	LinkMode       string    `json:"link_mode"`
	SyncedAt       time.Time `json:"synced_at"`
	DeletedFromX   bool      `json:"deleted_from_x,omitempty"`
}

// Store is a JSON file ledger keyed by tweet id.
//
// Writes go through a temp file and rename so a crash never leaves a
// half-written ledger behind.
type Store struct {
	path    string
	entries map[string]Entry
	loaded  bool
	logger  *log.Logger
}

// NewStore creates a ledger backed by the given path. Call [Store.Load]
// before querying or recording.
func NewStore(path string, logger *log.Logger) *Store {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Store{
		path:    path,
		entries: make(map[string]Entry),
		logger:  logger,
	}
}

// Load reads the ledger from disk. A missing file starts a fresh ledger; a
// file that exists but does not parse is an error, never silently replaced.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.entries = make(map[string]Entry)
			s.loaded = true
			return nil
		}
		return fmt.Errorf("failed to read sync state: %w", err)
	}

	entries := make(map[string]Entry)
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("%w: malformed sync state %s: %v", shared.ErrValidation, s.path, err)
	}

	s.entries = entries
	s.loaded = true
	s.logger.Debug("loaded sync state", "path", s.path, "entries", len(entries))
	return nil
}

// HasSynced reports whether the tweet is already recorded.
func (s *Store) HasSynced(tweetID string) bool {
	_, ok := s.entries[tweetID]
	return ok
}

// Entry returns the recorded entry for a tweet, if any.
func (s *Store) Entry(tweetID string) (Entry, bool) {
	e, ok := s.entries[tweetID]
	return e, ok
}

// Record marks a tweet as synced and persists immediately. Recording an
// already-present tweet is a no-op; entries never change link mode after the
// fact.
func (s *Store) Record(tweetID string, destinationIDs []int64, linkMode string) error {
	if _, ok := s.entries[tweetID]; ok {
		return nil
	}
	s.entries[tweetID] = Entry{
		DestinationIDs: destinationIDs,
		LinkMode:       linkMode,
		SyncedAt:       time.Now().UTC(),
	}
	return s.persist()
}

// MarkDeleted flags a recorded tweet as removed from X.
func (s *Store) MarkDeleted(tweetID string) error {
	e, ok := s.entries[tweetID]
	if !ok {
		return fmt.Errorf("%w: tweet %s not in sync state", shared.ErrInvalidArgument, tweetID)
	}
	if e.DeletedFromX {
		return nil
	}
	e.DeletedFromX = true
	s.entries[tweetID] = e
	return s.persist()
}

// Reset forgets a tweet so the next run syncs it again. Resetting an unknown
// tweet is a no-op.
func (s *Store) Reset(tweetID string) error {
	if _, ok := s.entries[tweetID]; !ok {
		return nil
	}
	delete(s.entries, tweetID)
	return s.persist()
}

// ResetAll forgets every recorded tweet.
func (s *Store) ResetAll() error {
	s.entries = make(map[string]Entry)
	return s.persist()
}

// Count returns the number of recorded tweets.
func (s *Store) Count() int {
	return len(s.entries)
}

// All returns a copy of the ledger contents.
func (s *Store) All() map[string]Entry {
	out := make(map[string]Entry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) persist() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write sync state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace sync state: %w", err)
	}
	return nil
}
