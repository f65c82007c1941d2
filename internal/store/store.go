// Package store persists the set of known peripheral identities across
// sessions. A snapshot is the whole set, written at once; there is no
// incremental update, and loading a snapshot that was never written
// yields an empty set rather than an error.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Identity is the minimal persisted metadata for one peripheral: the
// stable identifier, plus the last advertised name for display.
type Identity struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name,omitempty"`
}

// Store persists peripheral identity snapshots.
type Store interface {
	// Persist writes the snapshot, replacing any previous one.
	Persist(identities []Identity) error
	// Load reads the last snapshot. A store that was never written
	// returns an empty slice and no error.
	Load() ([]Identity, error)
}

// FileStore persists snapshots as a JSON file. Writes go to a temp
// file in the same directory followed by a rename, so a concurrent
// reader never observes a torn snapshot.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the given file path. Parent
// directories are created on first persist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Persist(identities []Identity) error {
	if identities == nil {
		identities = []Identity{}
	}
	data, err := json.MarshalIndent(identities, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".peripherals-*.json")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: replace snapshot: %w", err)
	}
	return nil
}

func (s *FileStore) Load() ([]Identity, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			// First run.
			return []Identity{}, nil
		}
		return nil, fmt.Errorf("store: read snapshot: %w", err)
	}
	var identities []Identity
	if err := json.Unmarshal(data, &identities); err != nil {
		return nil, fmt.Errorf("store: parse snapshot: %w", err)
	}
	return identities, nil
}

// MemStore is an in-memory Store for tests and embedders that manage
// durability themselves.
type MemStore struct {
	identities []Identity
	saved      bool
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Persist(identities []Identity) error {
	cp := make([]Identity, len(identities))
	copy(cp, identities)
	s.identities = cp
	s.saved = true
	return nil
}

func (s *MemStore) Load() ([]Identity, error) {
	if !s.saved {
		return []Identity{}, nil
	}
	cp := make([]Identity, len(s.identities))
	copy(cp, s.identities)
	return cp, nil
}

// Compile-time checks that both stores implement Store.
var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MemStore)(nil)
)
