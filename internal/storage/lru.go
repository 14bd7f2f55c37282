// Package storage provides the paged durable storage layer for the Raft log.
package storage

import "container/list"

// LRUCache tracks page access order so the page cache can evict cold pages.
// It is not safe for concurrent use; PageCache guards it with its own lock.
type LRUCache struct {
	list    *list.List              // Doubly linked list for LRU ordering
	entries map[int64]*list.Element // Map for O(1) lookup
}

// NewLRUCache creates a new LRU cache.
func NewLRUCache() *LRUCache {
	return &LRUCache{
		list:    list.New(),
		entries: make(map[int64]*list.Element),
	}
}

// Access marks a page offset as recently used, adding it if absent.
func (c *LRUCache) Access(offset int64) {
	if elem, exists := c.entries[offset]; exists {
		c.list.MoveToFront(elem)
		return
	}
	c.entries[offset] = c.list.PushFront(offset)
}

// Remove removes a page offset from the LRU cache.
func (c *LRUCache) Remove(offset int64) {
	if elem, exists := c.entries[offset]; exists {
		c.list.Remove(elem)
		delete(c.entries, offset)
	}
}

// Oldest returns the least recently used page offset.
func (c *LRUCache) Oldest() (int64, bool) {
	elem := c.list.Back()
	if elem == nil {
		return 0, false
	}
	return elem.Value.(int64), true
}

// Contains checks if a page offset is tracked.
func (c *LRUCache) Contains(offset int64) bool {
	_, exists := c.entries[offset]
	return exists
}

// Len returns the number of tracked offsets.
func (c *LRUCache) Len() int {
	return c.list.Len()
}

// Clear removes all entries.
func (c *LRUCache) Clear() {
	c.list.Init()
	c.entries = make(map[int64]*list.Element)
}
