package raft

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Spool file suffixes.
const (
	requestSuffix = ".req"
	replySuffix   = ".rep"
	waitSuffix    = ".wait"
)

// staleReplyAge is how long an unread reply may sit in an inbox before the
// listener removes it. A live sender reads its reply within one poll.
const staleReplyAge = time.Minute

// DefaultPollInterval is the spool directory polling interval.
const DefaultPollInterval = 5 * time.Millisecond

// InboxDir returns the spool directory of a node under root.
func InboxDir(root string, nodeID uint64) string {
	return filepath.Join(root, fmt.Sprintf("node-%d", nodeID))
}

// WriteFrameFile durably writes data to dir/name. The bytes go to a
// temporary file that is synced and then renamed into place, so readers
// never observe a partial frame.
func WriteFrameFile(dir, name string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", err
	}

	path := filepath.Join(dir, name)
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", err
	}
	return path, nil
}

// ReadFrameFile reads and decodes the frame stored at path.
func ReadFrameFile(path string) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeFrame(data)
}

// DiskTransport exchanges frames through spool directories on a shared
// filesystem. A request is written to the peer's inbox as <id>.req; the
// peer answers with <id>.rep in the same directory. The sender holds an
// <id>.wait marker for as long as it wants the reply.
type DiskTransport struct {
	id           uint64
	root         string
	inbox        string
	pollInterval time.Duration
	handler      FrameHandler
	closed       bool
	stopCh       chan struct{}
	wg           sync.WaitGroup
	mu           sync.RWMutex
}

// NewDiskTransport creates the inbox for nodeID under root.
func NewDiskTransport(root string, nodeID uint64, pollInterval time.Duration) (*DiskTransport, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	inbox := InboxDir(root, nodeID)
	if err := os.MkdirAll(inbox, 0755); err != nil {
		return nil, fmt.Errorf("raft: create inbox %s: %w", inbox, err)
	}
	return &DiskTransport{
		id:           nodeID,
		root:         root,
		inbox:        inbox,
		pollInterval: pollInterval,
		stopCh:       make(chan struct{}),
	}, nil
}

// Send writes frame into the peer's inbox and polls for the reply.
func (t *DiskTransport) Send(ctx context.Context, peerID uint64, frame []byte) ([]byte, error) {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return nil, ErrTransportClosed
	}

	peerInbox := InboxDir(t.root, peerID)
	if _, err := os.Stat(peerInbox); err != nil {
		return nil, ErrConnectFailed
	}

	name := uuid.NewString()
	waitPath := filepath.Join(peerInbox, name+waitSuffix)
	if err := os.WriteFile(waitPath, nil, 0644); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	reqPath, err := WriteFrameFile(peerInbox, name+requestSuffix, frame)
	if err != nil {
		os.Remove(waitPath)
		return nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	repPath := filepath.Join(peerInbox, name+replySuffix)

	// The marker goes first. A listener that still saw it wrote its reply
	// before looking, so the reply is already there to remove.
	abandon := func() {
		os.Remove(waitPath)
		os.Remove(reqPath)
		os.Remove(repPath)
	}

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		data, err := os.ReadFile(repPath)
		if err == nil {
			os.Remove(repPath)
			os.Remove(waitPath)
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			abandon()
			return nil, err
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			abandon()
			return nil, ctx.Err()
		case <-t.stopCh:
			abandon()
			return nil, ErrTransportClosed
		}
	}
}

// Listen starts polling the inbox for requests.
func (t *DiskTransport) Listen(handler FrameHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClosed
	}
	t.handler = handler

	t.wg.Add(1)
	go t.pollLoop()
	return nil
}

func (t *DiskTransport) pollLoop() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.drainInbox()
		}
	}
}

// drainInbox serves every pending request in the inbox.
func (t *DiskTransport) drainInbox() {
	entries, err := os.ReadDir(t.inbox)
	if err != nil {
		return
	}

	t.mu.RLock()
	handler := t.handler
	t.mu.RUnlock()
	if handler == nil {
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(name, replySuffix) {
			t.sweepReply(entry)
			continue
		}
		if !strings.HasSuffix(name, requestSuffix) {
			continue
		}

		path := filepath.Join(t.inbox, name)
		data, err := os.ReadFile(path)
		// Removing the request claims it; a sender that gave up removes it too.
		if rmErr := os.Remove(path); err != nil || rmErr != nil {
			continue
		}

		resp, err := handler(data)
		if err != nil {
			continue
		}
		id := strings.TrimSuffix(name, requestSuffix)
		t.reply(id, resp)
	}
}

// reply writes the answer to request id unless its sender has given up.
// The marker is checked again after the write; Send removes the marker
// before the reply, so one side always cleans up.
func (t *DiskTransport) reply(id string, resp []byte) {
	waitPath := filepath.Join(t.inbox, id+waitSuffix)
	if _, err := os.Stat(waitPath); err != nil {
		return
	}
	repPath, err := WriteFrameFile(t.inbox, id+replySuffix, resp)
	if err != nil {
		return
	}
	if _, err := os.Stat(waitPath); err != nil {
		os.Remove(repPath)
	}
}

// sweepReply removes a reply nobody collected, along with its marker. This
// covers senders that died while waiting.
func (t *DiskTransport) sweepReply(entry os.DirEntry) {
	info, err := entry.Info()
	if err != nil || time.Since(info.ModTime()) < staleReplyAge {
		return
	}
	id := strings.TrimSuffix(entry.Name(), replySuffix)
	os.Remove(filepath.Join(t.inbox, entry.Name()))
	os.Remove(filepath.Join(t.inbox, id+waitSuffix))
}

// Close stops the poll loop.
func (t *DiskTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.stopCh)
	t.mu.Unlock()

	t.wg.Wait()
	return nil
}

// LocalAddr returns the inbox directory.
func (t *DiskTransport) LocalAddr() string {
	return t.inbox
}
