package raft

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

// ApplyTarget receives committed entries in index order, exactly once per
// node lifetime. Noop entries are delivered too.
type ApplyTarget interface {
	Apply(entry *LogEntry) error
}

// ApplyFunc adapts a function to ApplyTarget.
type ApplyFunc func(entry *LogEntry) error

// Apply calls f(entry).
func (f ApplyFunc) Apply(entry *LogEntry) error { return f(entry) }

// KV command operations.
const (
	KVPut    uint8 = 1
	KVDelete uint8 = 2
)

// ErrInvalidCommand is returned for a command the KV store cannot decode.
var ErrInvalidCommand = errors.New("raft: invalid kv command")

// KVCommand is a key-value mutation carried in a log entry.
type KVCommand struct {
	Op    uint8
	Seq   uint64 // Per-client sequence number for deduplication
	Key   string
	Value []byte
}

// Encode serializes the command.
// Format: [Op:1][Seq:8][KeyLen:2][Key][ValueLen:4][Value]
func (c *KVCommand) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteByte(c.Op)
	binary.Write(&buf, binary.LittleEndian, c.Seq)
	writeString(&buf, c.Key)
	writeBytes(&buf, c.Value)
	return buf.Bytes()
}

// DecodeKVCommand parses an encoded command.
func DecodeKVCommand(data []byte) (*KVCommand, error) {
	r := bytes.NewReader(data)
	cmd := &KVCommand{}

	op, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if op != KVPut && op != KVDelete {
		return nil, fmt.Errorf("%w: unknown op %d", ErrInvalidCommand, op)
	}
	cmd.Op = op

	if err := binary.Read(r, binary.LittleEndian, &cmd.Seq); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if cmd.Key, err = readString(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if cmd.Value, err = readBytes(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidCommand, r.Len())
	}
	return cmd, nil
}

// NewPutCommand encodes a put.
func NewPutCommand(seq uint64, key string, value []byte) []byte {
	return (&KVCommand{Op: KVPut, Seq: seq, Key: key, Value: value}).Encode()
}

// NewDeleteCommand encodes a delete.
func NewDeleteCommand(seq uint64, key string) []byte {
	return (&KVCommand{Op: KVDelete, Seq: seq, Key: key}).Encode()
}

// KVStore is an in-memory key-value ApplyTarget. Commands from a client
// whose sequence number is not above the last applied one are ignored, so
// a client may retry a proposal safely.
type KVStore struct {
	data         map[string][]byte
	lastSeq      map[uint64]uint64 // client ID -> last applied sequence
	appliedIndex uint64
	mu           sync.RWMutex
}

// NewKVStore creates an empty store.
func NewKVStore() *KVStore {
	return &KVStore{
		data:    make(map[string][]byte),
		lastSeq: make(map[uint64]uint64),
	}
}

// Apply applies a committed entry.
func (s *KVStore) Apply(entry *LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appliedIndex = entry.Index
	if entry.IsNoop() {
		return nil
	}

	cmd, err := DecodeKVCommand(entry.Command)
	if err != nil {
		return err
	}
	if entry.ClientID != 0 && cmd.Seq <= s.lastSeq[entry.ClientID] {
		return nil
	}

	switch cmd.Op {
	case KVPut:
		s.data[cmd.Key] = cmd.Value
	case KVDelete:
		delete(s.data, cmd.Key)
	}
	if entry.ClientID != 0 {
		s.lastSeq[entry.ClientID] = cmd.Seq
	}
	return nil
}

// Get returns the value stored under key.
func (s *KVStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Keys returns the stored keys in sorted order.
func (s *KVStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys.
func (s *KVStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// AppliedIndex returns the index of the last applied entry.
func (s *KVStore) AppliedIndex() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appliedIndex
}

// LastSeq returns the last applied sequence number of a client.
func (s *KVStore) LastSeq(clientID uint64) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeq[clientID]
}

func writeString(w io.Writer, s string) error {
	data := []byte(s)
	if err := binary.Write(w, binary.LittleEndian, uint16(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readString(r io.Reader) (string, error) {
	var length uint16
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return "", err
	}
	return string(data), nil
}

func writeBytes(w io.Writer, data []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(data))); err != nil {
		return err
	}
	if len(data) > 0 {
		_, err := w.Write(data)
		return err
	}
	return nil
}

func readBytes(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
