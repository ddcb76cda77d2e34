// Package state persists the handful of user preferences that must survive
// process restarts: the bound chat, the booking-date ceilings, and the last
// check time.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"visawatch/pkg/types"
)

// Snapshot is the persisted preference record. After a successful booking
// both date ceilings are overwritten with the booked date so a later run
// does not re-offer the same or a later slot as an improvement.
type Snapshot struct {
	ChatID           int64      `json:"chat_id,omitempty"`
	Facility         string     `json:"facility,omitempty"`
	CurrentBooking   types.Date `json:"current_booking_date,omitempty"`
	LatestAcceptable types.Date `json:"latest_acceptable_date,omitempty"`
	LastChecked      time.Time  `json:"last_checked,omitempty"`
}

// Store persists snapshots between runs.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	Update(ctx context.Context, fn func(*Snapshot)) error
}

// FileStore keeps the snapshot as indented JSON so it stays hand-editable.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store at path. The file is created lazily on the
// first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the snapshot. A missing file yields a zero snapshot, not an
// error.
func (s *FileStore) Load(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) load() (Snapshot, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read state file: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("parse state file %s: %w", s.path, err)
	}
	return snap, nil
}

// Save writes the snapshot atomically via a temp file and rename.
func (s *FileStore) Save(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(snap)
}

func (s *FileStore) save(snap Snapshot) error {
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	raw = append(raw, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Update applies fn to the stored snapshot under the store lock.
func (s *FileStore) Update(ctx context.Context, fn func(*Snapshot)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.load()
	if err != nil {
		return err
	}
	fn(&snap)
	return s.save(snap)
}
