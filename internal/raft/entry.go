package raft

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/KilimcininKorOglu/raftd/internal/storage"
)

// MaxCommandSize is the largest command a start page may declare. Larger
// declared lengths are treated as corruption.
const MaxCommandSize = 64 << 20

// castagnoli is the CRC32C table used for every checksum in the package.
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// LogEntry represents a single entry in the Raft log.
// Entries are immutable once written; callers must not modify Command.
type LogEntry struct {
	Index    uint64 // Log index (1-based)
	Term     uint64 // Term when entry was created
	ClientID uint64 // Originating client, 0 for internal entries
	Command  []byte // Opaque command payload
}

// IsNoop reports whether the entry is a leader no-op.
func (e *LogEntry) IsNoop() bool {
	return e.ClientID == 0 && len(e.Command) == 0
}

// Pages returns the number of pages the entry occupies.
func (e *LogEntry) Pages() int {
	return storage.PagesFor(uint64(len(e.Command)))
}

// Equal reports whether two entries carry identical fields.
func (e *LogEntry) Equal(o *LogEntry) bool {
	if e == nil || o == nil {
		return e == o
	}
	return e.Index == o.Index && e.Term == o.Term && e.ClientID == o.ClientID &&
		string(e.Command) == string(o.Command)
}

// entryChecksum computes the CRC32C of a start page header extended over
// the full command.
func entryChecksum(header, command []byte) uint32 {
	sum := crc32.Checksum(header, castagnoli)
	return crc32.Update(sum, castagnoli, command)
}

// EncodeEntry serializes e into one start page followed by as many overflow
// pages as the command needs.
func EncodeEntry(e *LogEntry) []storage.Page {
	pages := make([]storage.Page, e.Pages())

	first := &pages[0]
	first.SetMarker(storage.MarkerStart)
	first.SetTerm(e.Term)
	first.SetIndex(e.Index)
	first.SetClientID(e.ClientID)
	first.SetCommandLen(uint64(len(e.Command)))

	rest := e.Command[copy(first.Payload(), e.Command):]
	for i := 1; i < len(pages); i++ {
		p := &pages[i]
		p.SetMarker(storage.MarkerOverflow)
		rest = rest[copy(p.Payload(), rest):]
	}

	first.SetChecksum(entryChecksum(first.Header(), e.Command))
	return pages
}

// PageSource yields the pages of a log in order. It returns io.EOF when no
// more pages exist.
type PageSource func() (*storage.Page, error)

// DecodeEntry reads one entry from next and returns it with the number of
// pages consumed. A clean io.EOF before the start page is returned as is.
func DecodeEntry(next PageSource) (*LogEntry, int, error) {
	first, err := next()
	if err != nil {
		return nil, 0, mapReadError(err)
	}
	if first.Marker() != storage.MarkerStart {
		return nil, 1, fmt.Errorf("%w: marker %d at entry start", ErrCorruptEntry, first.Marker())
	}

	cmdLen := first.CommandLen()
	if cmdLen > MaxCommandSize {
		return nil, 1, fmt.Errorf("%w: command length %d", ErrCorruptEntry, cmdLen)
	}

	command := make([]byte, cmdLen)
	filled := copy(command, first.Payload())
	last, used := first, filled
	pages := 1
	for filled < len(command) {
		p, err := next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, pages, fmt.Errorf("%w: entry %d ends after %d pages", ErrIncompleteRead, first.Index(), pages)
			}
			return nil, pages, mapReadError(err)
		}
		pages++
		if p.Marker() != storage.MarkerOverflow {
			return nil, pages, fmt.Errorf("%w: marker %d on overflow page of entry %d", ErrCorruptEntry, p.Marker(), first.Index())
		}
		used = copy(command[filled:], p.Payload())
		filled += used
		last = p
	}

	if entryChecksum(first.Header(), command) != first.Checksum() {
		return nil, pages, fmt.Errorf("%w: checksum mismatch for entry %d", ErrCorruptEntry, first.Index())
	}

	// Padding after the command is not checksummed; it must stay zero.
	for _, b := range last.Payload()[used:] {
		if b != 0 {
			return nil, pages, fmt.Errorf("%w: non-zero padding in entry %d", ErrCorruptEntry, first.Index())
		}
	}

	return &LogEntry{
		Index:    first.Index(),
		Term:     first.Term(),
		ClientID: first.ClientID(),
		Command:  command,
	}, pages, nil
}

// WriteEntry writes the encoded pages of e to w and returns the page count.
func WriteEntry(w io.Writer, e *LogEntry) (int, error) {
	pages := EncodeEntry(e)
	for i := range pages {
		if _, err := w.Write(pages[i][:]); err != nil {
			return i, err
		}
	}
	return len(pages), nil
}

// ReadEntry decodes one entry from a byte stream of whole pages.
func ReadEntry(r io.Reader) (*LogEntry, int, error) {
	return DecodeEntry(func() (*storage.Page, error) {
		p := new(storage.Page)
		if _, err := io.ReadFull(r, p[:]); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, ErrIncompleteRead
			}
			return nil, err
		}
		return p, nil
	})
}

// mapReadError converts storage read errors to their raft equivalents.
func mapReadError(err error) error {
	if errors.Is(err, storage.ErrIncompleteRead) && !errors.Is(err, ErrIncompleteRead) {
		return fmt.Errorf("%w: %v", ErrIncompleteRead, err)
	}
	return err
}
