package raft

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/steveyen/gkvlite"
)

// HardState is the per-node state that must survive restarts.
type HardState struct {
	Term     uint64 // Latest term seen
	VotedFor uint64 // Candidate voted for in Term, 0 for none
}

// HardStateStore persists a node's HardState. Save must be durable before
// it returns.
type HardStateStore interface {
	Load() (HardState, error)
	Save(HardState) error
	Close() error
}

const hardStateCollection = "hardstate"

var (
	keyTerm     = []byte("term")
	keyVotedFor = []byte("votedFor")
)

// KVHardStateStore keeps the hard state in a gkvlite store.
type KVHardStateStore struct {
	file  *os.File
	store *gkvlite.Store
	coll  *gkvlite.Collection
	mu    sync.Mutex
}

// OpenKVHardStateStore opens the store file at path. An empty path keeps
// the state in memory only.
func OpenKVHardStateStore(path string) (*KVHardStateStore, error) {
	var file *os.File
	if path != "" {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_SYNC, 0660)
		if err != nil {
			return nil, fmt.Errorf("raft: open hard state %s: %w", path, err)
		}
		file = f
	}

	var store *gkvlite.Store
	var err error
	if file != nil {
		store, err = gkvlite.NewStore(file)
	} else {
		store, err = gkvlite.NewStore(nil)
	}
	if err != nil {
		if file != nil {
			file.Close()
		}
		return nil, fmt.Errorf("raft: open hard state store: %w", err)
	}

	return &KVHardStateStore{
		file:  file,
		store: store,
		coll:  store.SetCollection(hardStateCollection, nil),
	}, nil
}

// Load returns the saved hard state, or the zero state when nothing was saved.
func (s *KVHardStateStore) Load() (HardState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	term, err := s.getUint64(keyTerm)
	if err != nil {
		return HardState{}, err
	}
	votedFor, err := s.getUint64(keyVotedFor)
	if err != nil {
		return HardState{}, err
	}
	return HardState{Term: term, VotedFor: votedFor}, nil
}

// Save writes hs and flushes the store. The file is opened with O_SYNC, so
// a successful flush is durable.
func (s *KVHardStateStore) Save(hs HardState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.coll.Set(keyTerm, encodeUint64(hs.Term)); err != nil {
		return err
	}
	if err := s.coll.Set(keyVotedFor, encodeUint64(hs.VotedFor)); err != nil {
		return err
	}
	if s.file == nil {
		return nil
	}
	return s.store.Flush()
}

// Close closes the store and its file.
func (s *KVHardStateStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.Close()
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

func (s *KVHardStateStore) getUint64(key []byte) (uint64, error) {
	val, err := s.coll.Get(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return 0, nil
	}
	if len(val) != 8 {
		return 0, fmt.Errorf("%w: hard state %s has %d bytes", ErrCorruptEntry, key, len(val))
	}
	return binary.LittleEndian.Uint64(val), nil
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}
