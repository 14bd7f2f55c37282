// Package storage provides the paged durable storage layer for the Raft log.
package storage

import (
	"errors"
	"io"
	"os"
	"sync"
)

// Store errors.
var (
	ErrStoreClosed = errors.New("storage: backing store closed")
	ErrNegativeOff = errors.New("storage: negative offset")
)

// BackingStore is a random-access, byte-addressable durable store.
// Sync is the durability barrier: once it returns nil, every byte written
// before the call survives a crash.
type BackingStore interface {
	io.ReaderAt
	io.WriterAt

	// Sync flushes written data to durable media.
	Sync() error

	// Truncate changes the size of the store.
	Truncate(size int64) error

	// Size returns the current size of the store in bytes.
	Size() (int64, error)

	// Close releases the store.
	Close() error
}

// FileStore is a BackingStore over a regular file.
type FileStore struct {
	file *os.File
	path string
}

// OpenFileStore opens or creates the file at path.
func OpenFileStore(path string) (*FileStore, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	return &FileStore{file: file, path: path}, nil
}

// Path returns the file path.
func (s *FileStore) Path() string { return s.path }

// ReadAt implements io.ReaderAt.
func (s *FileStore) ReadAt(p []byte, off int64) (int, error) {
	return s.file.ReadAt(p, off)
}

// WriteAt implements io.WriterAt.
func (s *FileStore) WriteAt(p []byte, off int64) (int, error) {
	return s.file.WriteAt(p, off)
}

// Sync calls fsync on the file.
func (s *FileStore) Sync() error {
	return s.file.Sync()
}

// Truncate truncates the file to size bytes.
func (s *FileStore) Truncate(size int64) error {
	return s.file.Truncate(size)
}

// Size returns the file size.
func (s *FileStore) Size() (int64, error) {
	info, err := s.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Close closes the file.
func (s *FileStore) Close() error {
	return s.file.Close()
}

// MemStore is an in-memory BackingStore. Sync is a no-op barrier that is
// counted so callers can assert on it.
type MemStore struct {
	data   []byte
	syncs  int
	writes int
	closed bool
	mu     sync.RWMutex
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// ReadAt implements io.ReaderAt.
func (s *MemStore) ReadAt(p []byte, off int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}
	if off < 0 {
		return 0, ErrNegativeOff
	}
	if off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt.
func (s *MemStore) WriteAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}
	if off < 0 {
		return 0, ErrNegativeOff
	}
	end := off + int64(len(p))
	if end > int64(len(s.data)) {
		grown := make([]byte, end)
		copy(grown, s.data)
		s.data = grown
	}
	copy(s.data[off:], p)
	s.writes++
	return len(p), nil
}

// Sync records a durability barrier.
func (s *MemStore) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.syncs++
	return nil
}

// Truncate resizes the store.
func (s *MemStore) Truncate(size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if size < 0 {
		return ErrNegativeOff
	}
	if size <= int64(len(s.data)) {
		s.data = s.data[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, s.data)
	s.data = grown
	return nil
}

// Size returns the store size.
func (s *MemStore) Size() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data)), nil
}

// Close marks the store closed.
func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Bytes returns a copy of the stored bytes.
func (s *MemStore) Bytes() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out
}

// SyncCount returns how many times Sync was called.
func (s *MemStore) SyncCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncs
}

// WriteCount returns how many times WriteAt was called.
func (s *MemStore) WriteCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
