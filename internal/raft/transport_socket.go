package raft

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/rep"
	"go.nanomsg.org/mangos/v3/protocol/req"

	// Register the tcp:// transport.
	_ "go.nanomsg.org/mangos/v3/transport/tcp"
)

// DefaultSocketTimeout bounds a request when the caller sets no deadline.
const DefaultSocketTimeout = 2 * time.Second

// socketWorkers is the number of concurrent request handlers.
const socketWorkers = 4

// SocketTransport implements Transport over mangos REQ/REP sockets. Each
// peer gets one REQ socket; concurrent requests use separate socket
// contexts.
type SocketTransport struct {
	addr     string
	peers    map[uint64]string
	socks    map[uint64]mangos.Socket
	listener mangos.Socket
	timeout  time.Duration
	closed   bool
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// NewSocketTransport creates a socket transport listening on addr. Addresses
// without a scheme are treated as tcp.
func NewSocketTransport(addr string, peers map[uint64]string) *SocketTransport {
	p := make(map[uint64]string, len(peers))
	for id, a := range peers {
		p[id] = socketURL(a)
	}
	return &SocketTransport{
		addr:    socketURL(addr),
		peers:   p,
		socks:   make(map[uint64]mangos.Socket),
		timeout: DefaultSocketTimeout,
	}
}

func socketURL(addr string) string {
	if strings.Contains(addr, "://") {
		return addr
	}
	return "tcp://" + addr
}

// SetTimeout sets the default request timeout.
func (t *SocketTransport) SetTimeout(d time.Duration) {
	t.mu.Lock()
	t.timeout = d
	t.mu.Unlock()
}

// LocalAddr returns the listen URL.
func (t *SocketTransport) LocalAddr() string {
	return t.addr
}

// peerSocket returns the REQ socket for peerID, dialing it on first use.
func (t *SocketTransport) peerSocket(peerID uint64) (mangos.Socket, time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, 0, ErrTransportClosed
	}
	if sock, ok := t.socks[peerID]; ok {
		return sock, t.timeout, nil
	}

	addr, ok := t.peers[peerID]
	if !ok {
		return nil, 0, fmt.Errorf("%w: unknown peer %d", ErrConnectFailed, peerID)
	}

	sock, err := req.NewSocket()
	if err != nil {
		return nil, 0, err
	}
	// Peers may start later; keep redialing in the background.
	if err := sock.SetOption(mangos.OptionDialAsynch, true); err != nil {
		sock.Close()
		return nil, 0, err
	}
	if err := sock.Dial(addr); err != nil {
		sock.Close()
		return nil, 0, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	t.socks[peerID] = sock
	return sock, t.timeout, nil
}

// Send sends a frame to a peer and waits for its reply.
func (t *SocketTransport) Send(ctx context.Context, peerID uint64, frame []byte) ([]byte, error) {
	sock, timeout, err := t.peerSocket(peerID)
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		return nil, ErrTimeout
	}

	mctx, err := sock.OpenContext()
	if err != nil {
		return nil, err
	}
	defer mctx.Close()

	mctx.SetOption(mangos.OptionSendDeadline, timeout)
	mctx.SetOption(mangos.OptionRecvDeadline, timeout)

	if err := mctx.Send(frame); err != nil {
		return nil, translateSocketError(err)
	}
	resp, err := mctx.Recv()
	if err != nil {
		return nil, translateSocketError(err)
	}
	return resp, nil
}

func translateSocketError(err error) error {
	switch {
	case errors.Is(err, mangos.ErrRecvTimeout), errors.Is(err, mangos.ErrSendTimeout):
		return ErrTimeout
	case errors.Is(err, mangos.ErrClosed):
		return ErrTransportClosed
	default:
		return err
	}
}

// Listen binds the REP socket and starts the handler workers.
func (t *SocketTransport) Listen(handler FrameHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTransportClosed
	}

	sock, err := rep.NewSocket()
	if err != nil {
		return err
	}
	if err := sock.Listen(t.addr); err != nil {
		sock.Close()
		return fmt.Errorf("raft: listen on %s: %w", t.addr, err)
	}
	t.listener = sock

	for i := 0; i < socketWorkers; i++ {
		mctx, err := sock.OpenContext()
		if err != nil {
			sock.Close()
			return err
		}
		t.wg.Add(1)
		go t.serve(mctx, handler)
	}
	return nil
}

func (t *SocketTransport) serve(mctx mangos.Context, handler FrameHandler) {
	defer t.wg.Done()
	defer mctx.Close()

	for {
		msg, err := mctx.Recv()
		if err != nil {
			if errors.Is(err, mangos.ErrClosed) {
				return
			}
			continue
		}

		resp, err := handler(msg)
		if err != nil {
			// The next Recv abandons this request; the peer times out.
			continue
		}
		if err := mctx.Send(resp); errors.Is(err, mangos.ErrClosed) {
			return
		}
	}
}

// Close shuts down the transport.
func (t *SocketTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true

	var firstErr error
	if t.listener != nil {
		firstErr = t.listener.Close()
	}
	for id, sock := range t.socks {
		if err := sock.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(t.socks, id)
	}
	t.mu.Unlock()

	t.wg.Wait()
	return firstErr
}
