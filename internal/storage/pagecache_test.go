package storage

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"testing"
)

func filledPage(b byte) *Page {
	p := new(Page)
	for i := range p {
		p[i] = b
	}
	return p
}

// expectSequencingPanic runs fn and fails the test unless it panics with a
// *SequencingError.
func expectSequencingPanic(t *testing.T, fn func()) *SequencingError {
	t.Helper()
	var got *SequencingError
	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			seqErr, ok := r.(*SequencingError)
			if !ok {
				t.Fatalf("panic value = %v (%T), want *SequencingError", r, r)
			}
			got = seqErr
		}()
		fn()
	}()
	if got == nil {
		t.Fatal("expected sequencing panic, got none")
	}
	return got
}

// =============================================================================
// Sequencing Tests
// =============================================================================

func TestPageCacheSequentialWritesSync(t *testing.T) {
	store := NewMemStore()
	cache := NewPageCache(store, 0)

	pages := []*Page{filledPage(1), filledPage(2), filledPage(3)}
	for i, p := range pages {
		if err := cache.WritePage(int64(i*PageSize), p); err != nil {
			t.Fatalf("WritePage(%d) failed: %v", i*PageSize, err)
		}
	}

	if len(store.Bytes()) != 0 {
		t.Error("store should be untouched before Sync")
	}
	if cache.PendingPages() != 3 {
		t.Errorf("PendingPages = %d, want 3", cache.PendingPages())
	}

	if err := cache.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	var want []byte
	for _, p := range pages {
		want = append(want, p[:]...)
	}
	if !bytes.Equal(store.Bytes(), want) {
		t.Error("stored bytes do not match the written pages")
	}
	if store.WriteCount() != 1 {
		t.Errorf("WriteCount = %d, want 1 contiguous write", store.WriteCount())
	}
	if store.SyncCount() != 1 {
		t.Errorf("SyncCount = %d, want 1", store.SyncCount())
	}
	if cache.PendingPages() != 0 {
		t.Errorf("PendingPages after Sync = %d, want 0", cache.PendingPages())
	}
}

func TestPageCacheSkippedOffsetPanics(t *testing.T) {
	cache := NewPageCache(NewMemStore(), 0)

	if err := cache.WritePage(0, filledPage(1)); err != nil {
		t.Fatalf("WritePage failed: %v", err)
	}
	seqErr := expectSequencingPanic(t, func() {
		cache.WritePage(1024, filledPage(2))
	})
	if seqErr.Expected != 512 || seqErr.Got != 1024 {
		t.Errorf("SequencingError = %+v, want expected 512 got 1024", seqErr)
	}
}

func TestPageCacheRewindPanics(t *testing.T) {
	cache := NewPageCache(NewMemStore(), 0)
	cache.WritePage(512, filledPage(1))
	cache.WritePage(1024, filledPage(2))

	expectSequencingPanic(t, func() {
		cache.WritePage(512, filledPage(3))
	})
}

func TestPageCacheMisalignedWritePanics(t *testing.T) {
	cache := NewPageCache(NewMemStore(), 0)
	expectSequencingPanic(t, func() {
		cache.WritePage(100, filledPage(1))
	})
}

func TestPageCacheNewEpochAfterSync(t *testing.T) {
	store := NewMemStore()
	cache := NewPageCache(store, 0)

	cache.WritePage(0, filledPage(1))
	cache.WritePage(512, filledPage(2))
	if err := cache.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	// A fresh epoch may start anywhere page aligned.
	if err := cache.WritePage(0, filledPage(9)); err != nil {
		t.Fatalf("WritePage in new epoch failed: %v", err)
	}
	if err := cache.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	data := store.Bytes()
	if data[0] != 9 || data[512] != 2 {
		t.Errorf("unexpected store content: first=%d second=%d", data[0], data[512])
	}
}

// =============================================================================
// Read Tests
// =============================================================================

func TestPageCacheReadThrough(t *testing.T) {
	store := NewMemStore()
	p := filledPage(7)
	store.WriteAt(p[:], 512)

	cache := NewPageCache(store, 0)
	got, err := cache.ReadPage(512)
	if err != nil {
		t.Fatalf("ReadPage failed: %v", err)
	}
	if *got != *p {
		t.Error("read page does not match stored page")
	}

	if _, err := cache.ReadPage(512); err != nil {
		t.Fatalf("second ReadPage failed: %v", err)
	}
	stats := cache.Stats()
	if stats.Misses != 1 || stats.Hits != 1 {
		t.Errorf("stats = %+v, want 1 miss and 1 hit", stats)
	}
}

func TestPageCacheReadOwnPendingWrites(t *testing.T) {
	store := NewMemStore()
	cache := NewPageCache(store, 0)
	cache.WritePage(0, filledPage(5))

	got, err := cache.ReadPage(0)
	if err != nil {
		t.Fatalf("ReadPage failed: %v", err)
	}
	if got[0] != 5 {
		t.Errorf("ReadPage = %d, want 5", got[0])
	}
}

func TestPageCacheReadReturnsCopy(t *testing.T) {
	cache := NewPageCache(NewMemStore(), 0)
	cache.WritePage(0, filledPage(5))

	got, _ := cache.ReadPage(0)
	got[0] = 77

	again, _ := cache.ReadPage(0)
	if again[0] != 5 {
		t.Error("mutating a returned page changed the cached page")
	}
}

func TestPageCacheReadEOF(t *testing.T) {
	cache := NewPageCache(NewMemStore(), 0)
	if _, err := cache.ReadPage(0); !errors.Is(err, io.EOF) {
		t.Errorf("ReadPage on empty store = %v, want io.EOF", err)
	}
}

func TestPageCacheReadIncomplete(t *testing.T) {
	store := NewMemStore()
	store.WriteAt(make([]byte, 100), 0)
	cache := NewPageCache(store, 0)

	if _, err := cache.ReadPage(0); !errors.Is(err, ErrIncompleteRead) {
		t.Errorf("ReadPage on partial page = %v, want ErrIncompleteRead", err)
	}
}

func TestPageCacheReadMisaligned(t *testing.T) {
	cache := NewPageCache(NewMemStore(), 0)
	if _, err := cache.ReadPage(3); !errors.Is(err, ErrMisalignedOffset) {
		t.Errorf("ReadPage(3) = %v, want ErrMisalignedOffset", err)
	}
}

func TestPageCacheEvictionKeepsPendingReadable(t *testing.T) {
	cache := NewPageCache(NewMemStore(), 2)
	for i := 0; i < 4; i++ {
		cache.WritePage(int64(i*PageSize), filledPage(byte(i+1)))
	}

	if stats := cache.Stats(); stats.Evictions != 2 {
		t.Errorf("Evictions = %d, want 2", stats.Evictions)
	}

	// Page 0 was evicted from the read cache but is still pending.
	got, err := cache.ReadPage(0)
	if err != nil {
		t.Fatalf("ReadPage failed: %v", err)
	}
	if got[0] != 1 {
		t.Errorf("ReadPage(0) = %d, want 1", got[0])
	}
}

// =============================================================================
// Truncate / Close Tests
// =============================================================================

func TestPageCacheTruncate(t *testing.T) {
	store := NewMemStore()
	cache := NewPageCache(store, 0)
	for i := 0; i < 3; i++ {
		cache.WritePage(int64(i*PageSize), filledPage(byte(i+1)))
	}

	if err := cache.Truncate(512); err != nil {
		t.Fatalf("Truncate failed: %v", err)
	}

	size, _ := cache.Size()
	if size != 512 {
		t.Errorf("Size after truncate = %d, want 512", size)
	}
	if _, err := cache.ReadPage(512); !errors.Is(err, io.EOF) {
		t.Errorf("ReadPage past truncation = %v, want io.EOF", err)
	}

	// The next epoch restarts at the truncation point.
	if err := cache.WritePage(512, filledPage(8)); err != nil {
		t.Fatalf("WritePage after truncate failed: %v", err)
	}
	if err := cache.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if got := store.Bytes(); len(got) != 1024 || got[512] != 8 {
		t.Errorf("store after rewrite: len=%d byte=%d", len(got), got[512])
	}
}

func TestPageCacheSizeIncludesPending(t *testing.T) {
	cache := NewPageCache(NewMemStore(), 0)
	cache.WritePage(0, filledPage(1))
	cache.WritePage(512, filledPage(1))

	size, err := cache.Size()
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 1024 {
		t.Errorf("Size = %d, want 1024", size)
	}
}

func TestPageCacheCloseFlushes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.log")
	store, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore failed: %v", err)
	}

	cache := NewPageCache(store, 0)
	cache.WritePage(0, filledPage(3))
	if err := cache.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := cache.WritePage(512, filledPage(4)); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("WritePage after Close = %v, want ErrCacheClosed", err)
	}

	reopened, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	got, err := NewPageCache(reopened, 0).ReadPage(0)
	if err != nil {
		t.Fatalf("ReadPage after reopen failed: %v", err)
	}
	if got[100] != 3 {
		t.Errorf("persisted byte = %d, want 3", got[100])
	}
}
