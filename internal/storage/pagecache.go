// Package storage provides the paged durable storage layer for the Raft log.
package storage

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// Page cache errors.
var (
	ErrIncompleteRead   = errors.New("storage: incomplete page read")
	ErrCacheClosed      = errors.New("storage: page cache closed")
	ErrMisalignedOffset = errors.New("storage: offset is not page aligned")
)

// SequencingError reports a write that does not land exactly one page past
// the previous write of the current buffering epoch. It is raised as a panic:
// it means the calling code is broken, not that the data is.
type SequencingError struct {
	Expected int64 // offset the write had to land at (-1 if any aligned offset)
	Got      int64 // offset of the offending write
}

// Error implements the error interface.
func (e *SequencingError) Error() string {
	if e.Expected < 0 {
		return fmt.Sprintf("storage: sequencing violation: write at misaligned offset %d", e.Got)
	}
	return fmt.Sprintf("storage: sequencing violation: write at offset %d, expected %d", e.Got, e.Expected)
}

// CacheStats holds page cache counters.
type CacheStats struct {
	Hits         uint64
	Misses       uint64
	PagesWritten uint64
	Syncs        uint64
	Evictions    uint64
}

// PageCache is a write-back, read-through page cache over a BackingStore.
//
// Writes go to the read cache immediately and to an in-memory pending buffer.
// The first write of an epoch fixes the buffer start; each following write
// must land one page past the previous one. Sync writes the whole buffer in
// one contiguous write, issues the store's durability barrier and ends the
// epoch.
type PageCache struct {
	store    BackingStore
	pages    map[int64]*Page
	lru      *LRUCache
	capacity int // 0 means unbounded

	pending      []byte
	pendingStart int64

	stats  CacheStats
	closed bool
	mu     sync.Mutex
}

// NewPageCache creates a page cache over store. capacity bounds the number
// of pages kept in the read cache; zero or negative means unbounded.
func NewPageCache(store BackingStore, capacity int) *PageCache {
	if capacity < 0 {
		capacity = 0
	}
	return &PageCache{
		store:    store,
		pages:    make(map[int64]*Page),
		lru:      NewLRUCache(),
		capacity: capacity,
	}
}

// WritePage buffers page at offset. It panics with *SequencingError when
// offset is misaligned or breaks the sequential run of the current epoch.
func (c *PageCache) WritePage(offset int64, page *Page) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCacheClosed
	}
	if offset < 0 || offset%PageSize != 0 {
		panic(&SequencingError{Expected: -1, Got: offset})
	}
	if len(c.pending) == 0 {
		c.pendingStart = offset
	} else if next := c.pendingStart + int64(len(c.pending)); offset != next {
		panic(&SequencingError{Expected: next, Got: offset})
	}

	c.pending = append(c.pending, page[:]...)
	c.putLocked(offset, page)
	c.stats.PagesWritten++
	return nil
}

// ReadPage returns a copy of the page at offset. It returns io.EOF when the
// offset is at or past the end of the store and ErrIncompleteRead when only
// part of a page is available.
func (c *PageCache) ReadPage(offset int64) (*Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrCacheClosed
	}
	if offset < 0 || offset%PageSize != 0 {
		return nil, ErrMisalignedOffset
	}

	if cached, ok := c.pages[offset]; ok {
		c.lru.Access(offset)
		c.stats.Hits++
		out := *cached
		return &out, nil
	}

	// An evicted page of the current epoch is still in the pending buffer.
	if rel := offset - c.pendingStart; len(c.pending) > 0 && rel >= 0 && rel < int64(len(c.pending)) {
		page := new(Page)
		copy(page[:], c.pending[rel:rel+PageSize])
		c.putLocked(offset, page)
		c.stats.Hits++
		return page, nil
	}

	c.stats.Misses++
	page := new(Page)
	n, err := c.store.ReadAt(page[:], offset)
	if n == PageSize {
		c.putLocked(offset, page)
		out := *page
		return &out, nil
	}
	if n == 0 && (err == nil || errors.Is(err, io.EOF)) {
		return nil, io.EOF
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %d of %d bytes at offset %d", ErrIncompleteRead, n, PageSize, offset)
}

// Sync writes the pending buffer at its start offset, issues a durability
// barrier and clears the buffer.
func (c *PageCache) Sync() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCacheClosed
	}
	return c.syncLocked()
}

func (c *PageCache) syncLocked() error {
	if len(c.pending) == 0 {
		return nil
	}
	if _, err := c.store.WriteAt(c.pending, c.pendingStart); err != nil {
		return fmt.Errorf("storage: write %d bytes at offset %d: %w", len(c.pending), c.pendingStart, err)
	}
	if err := c.store.Sync(); err != nil {
		return fmt.Errorf("storage: sync: %w", err)
	}
	c.pending = c.pending[:0]
	c.pendingStart = 0
	c.stats.Syncs++
	return nil
}

// Truncate discards every page at or after offset, both cached and stored.
// Pending writes are synced first so the truncation starts a fresh epoch.
func (c *PageCache) Truncate(offset int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCacheClosed
	}
	if offset < 0 || offset%PageSize != 0 {
		return ErrMisalignedOffset
	}
	if err := c.syncLocked(); err != nil {
		return err
	}

	for off := range c.pages {
		if off >= offset {
			delete(c.pages, off)
			c.lru.Remove(off)
		}
	}
	if err := c.store.Truncate(offset); err != nil {
		return fmt.Errorf("storage: truncate at %d: %w", offset, err)
	}
	if err := c.store.Sync(); err != nil {
		return fmt.Errorf("storage: sync: %w", err)
	}
	return nil
}

// Size returns the logical size in bytes, including unsynced pages.
func (c *PageCache) Size() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size, err := c.store.Size()
	if err != nil {
		return 0, err
	}
	if end := c.pendingStart + int64(len(c.pending)); len(c.pending) > 0 && end > size {
		size = end
	}
	return size, nil
}

// PendingPages returns the number of buffered, unsynced pages.
func (c *PageCache) PendingPages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending) / PageSize
}

// Stats returns a copy of the cache counters.
func (c *PageCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Close syncs pending writes and closes the backing store.
func (c *PageCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	syncErr := c.syncLocked()
	c.closed = true
	c.pages = nil
	c.lru.Clear()
	if err := c.store.Close(); err != nil && syncErr == nil {
		return err
	}
	return syncErr
}

// putLocked stores a copy of page in the read cache, evicting the least
// recently used page when the cache is full.
func (c *PageCache) putLocked(offset int64, page *Page) {
	cp := *page
	if _, exists := c.pages[offset]; !exists && c.capacity > 0 {
		for len(c.pages) >= c.capacity {
			victim, ok := c.lru.Oldest()
			if !ok {
				break
			}
			delete(c.pages, victim)
			c.lru.Remove(victim)
			c.stats.Evictions++
		}
	}
	c.pages[offset] = &cp
	c.lru.Access(offset)
}
