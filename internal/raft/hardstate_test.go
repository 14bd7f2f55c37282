package raft

import (
	"path/filepath"
	"testing"
)

func TestKVHardStateStoreEmpty(t *testing.T) {
	s, err := OpenKVHardStateStore(filepath.Join(t.TempDir(), HardStateFileName))
	if err != nil {
		t.Fatalf("OpenKVHardStateStore failed: %v", err)
	}
	defer s.Close()

	hs, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if hs != (HardState{}) {
		t.Errorf("fresh store should hold the zero state, got %+v", hs)
	}
}

func TestKVHardStateStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), HardStateFileName)

	s, err := OpenKVHardStateStore(path)
	if err != nil {
		t.Fatalf("OpenKVHardStateStore failed: %v", err)
	}
	if err := s.Save(HardState{Term: 3, VotedFor: 2}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Save(HardState{Term: 5, VotedFor: 0}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := OpenKVHardStateStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	hs, err := reopened.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if hs.Term != 5 || hs.VotedFor != 0 {
		t.Errorf("HardState mismatch: got %+v, want {Term:5 VotedFor:0}", hs)
	}
}

func TestKVHardStateStoreInMemory(t *testing.T) {
	s, err := OpenKVHardStateStore("")
	if err != nil {
		t.Fatalf("OpenKVHardStateStore failed: %v", err)
	}
	defer s.Close()

	want := HardState{Term: 9, VotedFor: 4}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != want {
		t.Errorf("HardState mismatch: got %+v, want %+v", got, want)
	}
}

func TestKVHardStateStoreCorruptValue(t *testing.T) {
	s, err := OpenKVHardStateStore("")
	if err != nil {
		t.Fatalf("OpenKVHardStateStore failed: %v", err)
	}
	defer s.Close()

	if err := s.coll.Set(keyTerm, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := s.Load(); err == nil {
		t.Error("expected error loading a malformed term")
	}
}
