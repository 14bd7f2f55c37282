package raft

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/KilimcininKorOglu/raftd/internal/storage"
)

// entryMeta locates an entry on the page store.
type entryMeta struct {
	term      uint64
	startPage int64
	pages     int
}

// PagedLog is the durable Raft log. Entries live on a page store behind a
// PageCache; only their terms and page positions are kept in memory.
// Index 0 is the sentinel "no entry" with term 0.
type PagedLog struct {
	cache    *storage.PageCache
	metas    []entryMeta // metas[i] describes index i+1
	nextPage int64
	mu       sync.RWMutex
}

// OpenPagedLog scans the store behind cache and rebuilds the log from every
// complete, valid entry. A zero page or the end of the store ends the scan.
// A checksum mismatch, bad marker or index gap returns ErrCorruptEntry; a
// torn trailing page returns ErrIncompleteRead.
func OpenPagedLog(cache *storage.PageCache) (*PagedLog, error) {
	l := &PagedLog{cache: cache}
	if err := l.recover(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *PagedLog) recover() error {
	var page int64
	for {
		first, err := l.cache.ReadPage(storage.PageOffset(page))
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return mapReadError(err)
		}
		if first.IsZero() {
			break
		}

		entry, n, err := DecodeEntry(l.pagesFrom(page, first))
		if err != nil {
			return err
		}

		if err := CheckSuccessor(uint64(len(l.metas)), l.lastTermLocked(), entry); err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}

		l.metas = append(l.metas, entryMeta{term: entry.Term, startPage: page, pages: n})
		page += int64(n)
	}
	l.nextPage = page

	// Drop whatever follows the last valid entry so appends start clean.
	size, err := l.cache.Size()
	if err != nil {
		return err
	}
	if size > storage.PageOffset(page) {
		return l.cache.Truncate(storage.PageOffset(page))
	}
	return nil
}

// CheckSuccessor returns ErrCorruptEntry unless e can directly follow the
// stored entry at prevIndex with term prevTerm.
func CheckSuccessor(prevIndex, prevTerm uint64, e *LogEntry) error {
	if e.Index != prevIndex+1 {
		return fmt.Errorf("%w: found index %d, want %d", ErrCorruptEntry, e.Index, prevIndex+1)
	}
	if e.Term < prevTerm {
		return fmt.Errorf("%w: term %d of entry %d below previous term %d", ErrCorruptEntry, e.Term, e.Index, prevTerm)
	}
	return nil
}

// pagesFrom returns a PageSource that yields first and then the pages that
// follow it on the store.
func (l *PagedLog) pagesFrom(start int64, first *storage.Page) PageSource {
	next := start
	return func() (*storage.Page, error) {
		if next == start && first != nil {
			next++
			return first, nil
		}
		p, err := l.cache.ReadPage(storage.PageOffset(next))
		if err != nil {
			return nil, err
		}
		next++
		return p, nil
	}
}

// Append durably appends entries. The first entry must carry index
// LastIndex()+1 and the rest must follow contiguously. Append returns only
// after the page cache has synced.
func (l *PagedLog) Append(entries ...*LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	last := uint64(len(l.metas))
	lastTerm := l.lastTermLocked()
	for i, e := range entries {
		if e.Index != last+1+uint64(i) {
			return fmt.Errorf("%w: got index %d, want %d", ErrNonContiguousAppend, e.Index, last+1+uint64(i))
		}
		if e.Term < lastTerm {
			return fmt.Errorf("%w: term %d below %d at index %d", ErrNonContiguousAppend, e.Term, lastTerm, e.Index)
		}
		lastTerm = e.Term
	}

	page := l.nextPage
	metas := make([]entryMeta, 0, len(entries))
	for _, e := range entries {
		pages := EncodeEntry(e)
		metas = append(metas, entryMeta{term: e.Term, startPage: page, pages: len(pages)})
		for i := range pages {
			if err := l.cache.WritePage(storage.PageOffset(page), &pages[i]); err != nil {
				return err
			}
			page++
		}
	}
	if err := l.cache.Sync(); err != nil {
		return err
	}

	l.metas = append(l.metas, metas...)
	l.nextPage = page
	return nil
}

// TruncateFrom removes the entry at index and everything after it, both in
// memory and on the store. Truncating past the end is a no-op.
func (l *PagedLog) TruncateFrom(index uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if index == 0 {
		return fmt.Errorf("%w: cannot truncate the sentinel", ErrLogIndexOutOfRange)
	}
	if index > uint64(len(l.metas)) {
		return nil
	}

	start := l.metas[index-1].startPage
	if err := l.cache.Truncate(storage.PageOffset(start)); err != nil {
		return err
	}
	l.metas = l.metas[:index-1]
	l.nextPage = start
	return nil
}

// Entry reads the entry at index from the page cache.
func (l *PagedLog) Entry(index uint64) (*LogEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entryLocked(index)
}

func (l *PagedLog) entryLocked(index uint64) (*LogEntry, error) {
	if index == 0 || index > uint64(len(l.metas)) {
		return nil, fmt.Errorf("%w: %d", ErrLogIndexOutOfRange, index)
	}
	meta := l.metas[index-1]
	entry, n, err := DecodeEntry(l.pagesFrom(meta.startPage, nil))
	if err != nil {
		return nil, err
	}
	if entry.Index != index || n != meta.pages {
		return nil, fmt.Errorf("%w: entry %d moved on the store", ErrCorruptEntry, index)
	}
	return entry, nil
}

// EntriesFrom returns up to max entries starting at index. A max of zero or
// less returns every entry through the end of the log.
func (l *PagedLog) EntriesFrom(index uint64, max int) ([]*LogEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	last := uint64(len(l.metas))
	if index == 0 {
		index = 1
	}
	if index > last {
		return nil, nil
	}

	end := last
	if max > 0 && index+uint64(max)-1 < end {
		end = index + uint64(max) - 1
	}

	entries := make([]*LogEntry, 0, end-index+1)
	for i := index; i <= end; i++ {
		e, err := l.entryLocked(i)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// TermAt returns the term of the entry at index, or 0 for the sentinel and
// for indices past the end.
func (l *PagedLog) TermAt(index uint64) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if index == 0 || index > uint64(len(l.metas)) {
		return 0
	}
	return l.metas[index-1].term
}

// FirstIndexOfTerm returns the lowest index at or before index whose term
// equals the term at index.
func (l *PagedLog) FirstIndexOfTerm(index uint64) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if index == 0 || index > uint64(len(l.metas)) {
		return 0
	}
	term := l.metas[index-1].term
	for index > 1 && l.metas[index-2].term == term {
		index--
	}
	return index
}

// LastIndex returns the index of the last entry, or 0 when the log is empty.
func (l *PagedLog) LastIndex() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.metas))
}

// LastTerm returns the term of the last entry, or 0 when the log is empty.
func (l *PagedLog) LastTerm() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastTermLocked()
}

func (l *PagedLog) lastTermLocked() uint64 {
	if len(l.metas) == 0 {
		return 0
	}
	return l.metas[len(l.metas)-1].term
}

// Len returns the number of entries.
func (l *PagedLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.metas)
}

// Pages returns the number of pages the log occupies.
func (l *PagedLog) Pages() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextPage
}

// CacheStats returns the page cache counters.
func (l *PagedLog) CacheStats() storage.CacheStats {
	return l.cache.Stats()
}

// OpenLogFile opens the paged log stored in the file at path with a read
// cache of cacheSize pages.
func OpenLogFile(path string, cacheSize int) (*PagedLog, error) {
	store, err := storage.OpenFileStore(path)
	if err != nil {
		return nil, fmt.Errorf("raft: open log %s: %w", path, err)
	}
	l, err := OpenPagedLog(storage.NewPageCache(store, cacheSize))
	if err != nil {
		store.Close()
		return nil, err
	}
	return l, nil
}

// NewMemoryLog returns an empty log over an in-memory store.
func NewMemoryLog() *PagedLog {
	return &PagedLog{cache: storage.NewPageCache(storage.NewMemStore(), 0)}
}

// Close syncs and closes the page cache and its store.
func (l *PagedLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache.Close()
}
