// Package storage provides the paged durable storage layer for the Raft log.
//
// # Overview
//
// All log I/O happens in fixed 512-byte pages. A page is the atomic durable
// unit: every read and write is a whole page at a page-aligned offset, so a
// torn write is detectable by the log codec and recovery can scan the store
// page by page.
//
// # Components
//
//   - Page: a [PageSize]byte with named field accessors for the start-page
//     header (marker, checksum, term, index, client id, command length).
//   - BackingStore: the minimal durable store contract (ReadAt, WriteAt,
//     Sync, Truncate). FileStore wraps an *os.File, MemStore keeps the bytes
//     in memory.
//   - PageCache: a read-through cache with a write-back pending buffer.
//
// # Write Sequencing
//
// Writes within one buffering epoch must be strictly sequential:
//
//	cache.WritePage(0, p0)
//	cache.WritePage(512, p1)
//	cache.WritePage(1024, p2)
//	cache.Sync() // one contiguous write at offset 0, then fsync
//
// A write that skips or rewinds inside an epoch panics with a
// *SequencingError. This is a caller bug; it is never retried.
package storage
