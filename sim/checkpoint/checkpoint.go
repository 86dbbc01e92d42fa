// Package checkpoint persists an in-flight run so it can resume after a crash.
//
// A checkpoint is one JSON document written atomically (temp file + rename)
// after every applied decision.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/inference-sim/bouncer/sim"
	"github.com/inference-sim/bouncer/sim/game"
)

// Version is the current document version. Documents with another version
// are treated as corrupt.
const Version = 1

var (
	// ErrCheckpointNotFound is returned by Load when no checkpoint exists.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	// ErrCorrupt is returned by Load when the document cannot be used.
	ErrCorrupt = errors.New("checkpoint corrupt")
)

// Checkpoint is the persisted form of a run.
type Checkpoint struct {
	Version  int          `json:"version"`
	GameID   string       `json:"game_id"`
	Scenario int          `json:"scenario"`
	Profile  string       `json:"profile"`
	State    sim.Snapshot `json:"state"`
	// Pending is the person fetched from the server but not yet decided on.
	Pending *game.Person `json:"pending,omitempty"`
	SavedAt time.Time    `json:"saved_at"`
}

// Store reads and writes one checkpoint file.
type Store struct {
	path string
}

// NewStore creates a store for path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the checkpoint file path.
func (s *Store) Path() string { return s.path }

// Load reads the checkpoint. It returns ErrCheckpointNotFound when the file
// does not exist and an error wrapping ErrCorrupt when it cannot be read,
// decoded or restored.
func (s *Store) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading checkpoint: %v", ErrCorrupt, err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if cp.Version != Version {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrCorrupt, cp.Version, Version)
	}
	if cp.GameID == "" {
		return nil, fmt.Errorf("%w: missing game id", ErrCorrupt)
	}
	if _, err := sim.RestoreRunState(cp.State); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &cp, nil
}

// Save writes cp atomically, stamping Version and SavedAt.
func (s *Store) Save(cp *Checkpoint) error {
	cp.Version = Version
	cp.SavedAt = time.Now().UTC()
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating checkpoint dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("syncing checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("renaming checkpoint: %w", err)
	}
	return nil
}

// Remove deletes the checkpoint. A missing file is not an error.
func (s *Store) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing checkpoint: %w", err)
	}
	return nil
}
