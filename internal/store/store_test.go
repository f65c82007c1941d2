package store

import (
	"os"
	"path/filepath"
	"testing"
)

func identSet(ids []Identity) map[string]string {
	m := make(map[string]string, len(ids))
	for _, id := range ids {
		m[id.Identifier] = id.Name
	}
	return m
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peripherals.json")
	s := NewFileStore(path)

	in := []Identity{
		{Identifier: "5b8bfd2e-9f3c-4a68-9a0f-6e41d9bd4f01", Name: "Sensor1"},
		{Identifier: "a3d7c1f0-0d24-4d5b-8e9e-31f5a1a8f202"},
	}
	if err := s.Persist(in); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	out, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got, want := identSet(out), identSet(in)
	if len(got) != len(want) {
		t.Fatalf("Load() returned %d identities, want %d", len(got), len(want))
	}
	for id, name := range want {
		if got[id] != name {
			t.Errorf("identity %s name = %q, want %q", id, got[id], name)
		}
	}
}

func TestFileStoreLoadMissingFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "never-written.json"))
	out, err := s.Load()
	if err != nil {
		t.Fatalf("Load() on missing file error = %v, want nil (first run)", err)
	}
	if len(out) != 0 {
		t.Errorf("Load() = %v, want empty set", out)
	}
}

func TestFileStorePersistEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peripherals.json")
	s := NewFileStore(path)

	if err := s.Persist(nil); err != nil {
		t.Fatalf("Persist(nil) error = %v", err)
	}
	out, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(out) != 0 {
		t.Errorf("Load() = %v, want empty set", out)
	}
}

func TestFileStoreOverwritesPriorSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peripherals.json")
	s := NewFileStore(path)

	s.Persist([]Identity{{Identifier: "old-1"}, {Identifier: "old-2"}})
	if err := s.Persist([]Identity{{Identifier: "new-1"}}); err != nil {
		t.Fatalf("second Persist() error = %v", err)
	}

	out, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(out) != 1 || out[0].Identifier != "new-1" {
		t.Errorf("Load() = %v, want exactly the latest snapshot", out)
	}
}

func TestFileStoreCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "peripherals.json")
	s := NewFileStore(path)

	if err := s.Persist([]Identity{{Identifier: "x"}}); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("snapshot file missing: %v", err)
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "peripherals.json"))
	s.Persist([]Identity{{Identifier: "x"}})
	s.Persist([]Identity{{Identifier: "y"}})

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("directory contains %v, want only the snapshot", names)
	}
}

func TestFileStoreLoadCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peripherals.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	if _, err := NewFileStore(path).Load(); err == nil {
		t.Error("Load() on corrupt snapshot error = nil")
	}
}

func TestMemStoreRoundTrip(t *testing.T) {
	s := NewMemStore()

	out, err := s.Load()
	if err != nil || len(out) != 0 {
		t.Fatalf("fresh MemStore Load() = %v, %v; want empty, nil", out, err)
	}

	in := []Identity{{Identifier: "42", Name: "Sensor1"}}
	if err := s.Persist(in); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	// Later mutation of the caller's slice must not leak into the store.
	in[0].Identifier = "mutated"

	out, err = s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(out) != 1 || out[0].Identifier != "42" {
		t.Errorf("Load() = %v, want the snapshot as persisted", out)
	}
}
