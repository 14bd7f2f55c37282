package raft

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/google/uuid"
)

// MessageKind identifies the payload carried by a frame.
type MessageKind uint8

// RPC message kinds.
const (
	KindRequestVote MessageKind = iota
	KindAppendEntries
	KindRequestVoteReply
	KindAppendEntriesReply
)

// String returns the kind name.
func (k MessageKind) String() string {
	switch k {
	case KindRequestVote:
		return "RequestVote"
	case KindAppendEntries:
		return "AppendEntries"
	case KindRequestVoteReply:
		return "RequestVoteReply"
	case KindAppendEntriesReply:
		return "AppendEntriesReply"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Frame layout: [RequestID:16][Sender:8][Kind:1][Term:8][Payload:N][CRC32C:4]
const (
	frameHeaderSize   = 16 + 8 + 1 + 8
	frameChecksumSize = 4
	frameMinSize      = frameHeaderSize + frameChecksumSize
)

// Message is one of the four RPC payloads.
type Message interface {
	Kind() MessageKind
	GetTerm() uint64
}

// RequestVoteRequest is sent by candidates to gather votes.
type RequestVoteRequest struct {
	Term         uint64 // Candidate's term
	CandidateID  uint64 // Candidate requesting vote
	LastLogIndex uint64 // Index of candidate's last log entry
	LastLogTerm  uint64 // Term of candidate's last log entry
}

// RequestVoteReply is the response to RequestVote.
type RequestVoteReply struct {
	Term        uint64 // Current term, for candidate to update itself
	VoteGranted bool   // True if candidate received vote
}

// AppendEntriesRequest is sent by the leader to replicate log entries.
type AppendEntriesRequest struct {
	Term         uint64      // Leader's term
	LeaderID     uint64      // So follower can redirect clients
	PrevLogIndex uint64      // Index of log entry immediately preceding new ones
	PrevLogTerm  uint64      // Term of prevLogIndex entry
	LeaderCommit uint64      // Leader's commitIndex
	Entries      []*LogEntry // Log entries to store (empty for heartbeat)
}

// AppendEntriesReply is the response to AppendEntries.
type AppendEntriesReply struct {
	Term          uint64 // Current term, for leader to update itself
	Success       bool   // True if follower matched prevLogIndex and prevLogTerm
	MatchIndex    uint64 // Last index known to match the leader on success
	ConflictIndex uint64 // Hint for the leader's next index on failure
}

// Kind implements Message.
func (*RequestVoteRequest) Kind() MessageKind { return KindRequestVote }

// Kind implements Message.
func (*RequestVoteReply) Kind() MessageKind { return KindRequestVoteReply }

// Kind implements Message.
func (*AppendEntriesRequest) Kind() MessageKind { return KindAppendEntries }

// Kind implements Message.
func (*AppendEntriesReply) Kind() MessageKind { return KindAppendEntriesReply }

// GetTerm implements Message.
func (m *RequestVoteRequest) GetTerm() uint64 { return m.Term }

// GetTerm implements Message.
func (m *RequestVoteReply) GetTerm() uint64 { return m.Term }

// GetTerm implements Message.
func (m *AppendEntriesRequest) GetTerm() uint64 { return m.Term }

// GetTerm implements Message.
func (m *AppendEntriesReply) GetTerm() uint64 { return m.Term }

// Frame is the transport-neutral envelope of an RPC.
type Frame struct {
	RequestID uuid.UUID
	SenderID  uint64
	Message   Message
}

// NewFrame wraps msg in a frame with a fresh request ID.
func NewFrame(senderID uint64, msg Message) *Frame {
	return &Frame{RequestID: uuid.New(), SenderID: senderID, Message: msg}
}

// Reply wraps msg in a frame that answers f.
func (f *Frame) Reply(senderID uint64, msg Message) *Frame {
	return &Frame{RequestID: f.RequestID, SenderID: senderID, Message: msg}
}

// Kind returns the kind of the carried message.
func (f *Frame) Kind() MessageKind {
	return f.Message.Kind()
}

// Term returns the term of the carried message.
func (f *Frame) Term() uint64 {
	return f.Message.GetTerm()
}

type requestVoteWire struct {
	CandidateID  uint64
	LastLogIndex uint64
	LastLogTerm  uint64
}

type appendEntriesWire struct {
	LeaderID     uint64
	PrevLogIndex uint64
	PrevLogTerm  uint64
	LeaderCommit uint64
	EntryCount   uint64
}

type appendEntriesReplyWire struct {
	Success       uint8
	MatchIndex    uint64
	ConflictIndex uint64
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// EncodeFrame serializes f. All integers are little-endian; entries use the
// page format of the durable log.
func EncodeFrame(f *Frame) ([]byte, error) {
	if f.Message == nil {
		return nil, fmt.Errorf("%w: nil message", ErrUnknownKind)
	}

	var buf bytes.Buffer
	buf.Write(f.RequestID[:])
	binary.Write(&buf, binary.LittleEndian, f.SenderID)
	buf.WriteByte(byte(f.Kind()))
	binary.Write(&buf, binary.LittleEndian, f.Term())

	switch m := f.Message.(type) {
	case *RequestVoteRequest:
		binary.Write(&buf, binary.LittleEndian, requestVoteWire{
			CandidateID:  m.CandidateID,
			LastLogIndex: m.LastLogIndex,
			LastLogTerm:  m.LastLogTerm,
		})
	case *RequestVoteReply:
		buf.WriteByte(boolByte(m.VoteGranted))
	case *AppendEntriesRequest:
		binary.Write(&buf, binary.LittleEndian, appendEntriesWire{
			LeaderID:     m.LeaderID,
			PrevLogIndex: m.PrevLogIndex,
			PrevLogTerm:  m.PrevLogTerm,
			LeaderCommit: m.LeaderCommit,
			EntryCount:   uint64(len(m.Entries)),
		})
		for _, e := range m.Entries {
			if _, err := WriteEntry(&buf, e); err != nil {
				return nil, err
			}
		}
	case *AppendEntriesReply:
		binary.Write(&buf, binary.LittleEndian, appendEntriesReplyWire{
			Success:       boolByte(m.Success),
			MatchIndex:    m.MatchIndex,
			ConflictIndex: m.ConflictIndex,
		})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, f.Message)
	}

	sum := crc32.Checksum(buf.Bytes(), castagnoli)
	binary.Write(&buf, binary.LittleEndian, sum)
	return buf.Bytes(), nil
}

// DecodeFrame parses and verifies an encoded frame. A checksum mismatch
// rejects the frame with ErrCorruptEntry; a short buffer returns
// ErrIncompleteRead.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < frameMinSize {
		return nil, fmt.Errorf("%w: frame of %d bytes", ErrIncompleteRead, len(data))
	}

	body := data[:len(data)-frameChecksumSize]
	want := binary.LittleEndian.Uint32(data[len(body):])
	if crc32.Checksum(body, castagnoli) != want {
		return nil, fmt.Errorf("%w: frame checksum mismatch", ErrCorruptEntry)
	}

	f := &Frame{}
	copy(f.RequestID[:], body[0:16])
	f.SenderID = binary.LittleEndian.Uint64(body[16:24])
	kind := MessageKind(body[24])
	term := binary.LittleEndian.Uint64(body[25:33])

	r := bytes.NewReader(body[frameHeaderSize:])
	switch kind {
	case KindRequestVote:
		var w requestVoteWire
		if err := binary.Read(r, binary.LittleEndian, &w); err != nil {
			return nil, malformed(kind, err)
		}
		f.Message = &RequestVoteRequest{
			Term:         term,
			CandidateID:  w.CandidateID,
			LastLogIndex: w.LastLogIndex,
			LastLogTerm:  w.LastLogTerm,
		}
	case KindRequestVoteReply:
		granted, err := r.ReadByte()
		if err != nil {
			return nil, malformed(kind, err)
		}
		f.Message = &RequestVoteReply{Term: term, VoteGranted: granted == 1}
	case KindAppendEntries:
		var w appendEntriesWire
		if err := binary.Read(r, binary.LittleEndian, &w); err != nil {
			return nil, malformed(kind, err)
		}
		// Each entry takes at least one page.
		if w.EntryCount > uint64(r.Len()) {
			return nil, malformed(kind, fmt.Errorf("entry count %d exceeds payload", w.EntryCount))
		}
		req := &AppendEntriesRequest{
			Term:         term,
			LeaderID:     w.LeaderID,
			PrevLogIndex: w.PrevLogIndex,
			PrevLogTerm:  w.PrevLogTerm,
			LeaderCommit: w.LeaderCommit,
			Entries:      make([]*LogEntry, 0, w.EntryCount),
		}
		for i := uint64(0); i < w.EntryCount; i++ {
			e, _, err := ReadEntry(r)
			if err != nil {
				return nil, malformed(kind, err)
			}
			req.Entries = append(req.Entries, e)
		}
		f.Message = req
	case KindAppendEntriesReply:
		var w appendEntriesReplyWire
		if err := binary.Read(r, binary.LittleEndian, &w); err != nil {
			return nil, malformed(kind, err)
		}
		f.Message = &AppendEntriesReply{
			Term:          term,
			Success:       w.Success == 1,
			MatchIndex:    w.MatchIndex,
			ConflictIndex: w.ConflictIndex,
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(kind))
	}

	if r.Len() != 0 {
		return nil, malformed(kind, fmt.Errorf("%d trailing bytes", r.Len()))
	}
	return f, nil
}

func malformed(kind MessageKind, err error) error {
	if errors.Is(err, ErrCorruptEntry) {
		return err
	}
	return fmt.Errorf("%w: malformed %s payload: %v", ErrCorruptEntry, kind, err)
}
