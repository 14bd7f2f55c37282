package raft

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// FrameHandler handles an encoded request frame and returns the encoded
// reply. A non-nil error means no reply is sent.
type FrameHandler func(frame []byte) ([]byte, error)

// Transport delivers encoded frames between nodes.
type Transport interface {
	// Send delivers frame to peerID and waits for the reply frame.
	Send(ctx context.Context, peerID uint64, frame []byte) ([]byte, error)

	// Listen starts serving incoming frames with handler.
	Listen(handler FrameHandler) error

	// Close shuts down the transport.
	Close() error

	// LocalAddr returns the local address.
	LocalAddr() string
}

// InMemoryTransport implements Transport over an InMemoryNetwork.
type InMemoryTransport struct {
	id      uint64
	addr    string
	network *InMemoryNetwork
	handler FrameHandler
	closed  bool
	mu      sync.RWMutex
}

// InMemoryNetwork simulates a network for tests and simulations. Nodes can
// be isolated and messages dropped at random.
type InMemoryNetwork struct {
	transports map[uint64]*InMemoryTransport
	isolated   map[uint64]bool
	dropRate   float64
	rng        *rand.Rand
	latency    time.Duration
	mu         sync.RWMutex
}

// NewInMemoryNetwork creates a new in-memory network.
func NewInMemoryNetwork() *InMemoryNetwork {
	return &InMemoryNetwork{
		transports: make(map[uint64]*InMemoryTransport),
		isolated:   make(map[uint64]bool),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewTransport creates a new in-memory transport for a node.
func (n *InMemoryNetwork) NewTransport(nodeID uint64, addr string) *InMemoryTransport {
	t := &InMemoryTransport{
		id:      nodeID,
		addr:    addr,
		network: n,
	}

	n.mu.Lock()
	n.transports[nodeID] = t
	n.mu.Unlock()

	return t
}

// Partition isolates the node from every other node, or heals it when
// isolated is false.
func (n *InMemoryNetwork) Partition(nodeID uint64, isolated bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if isolated {
		n.isolated[nodeID] = true
	} else {
		delete(n.isolated, nodeID)
	}
}

// Heal removes every partition and stops dropping messages.
func (n *InMemoryNetwork) Heal() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.isolated = make(map[uint64]bool)
	n.dropRate = 0
}

// SetDropRate sets the probability in [0, 1] that a request is lost.
func (n *InMemoryNetwork) SetDropRate(rate float64) {
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	n.mu.Lock()
	n.dropRate = rate
	n.mu.Unlock()
}

// SetLatency sets a fixed delivery delay.
func (n *InMemoryNetwork) SetLatency(d time.Duration) {
	n.mu.Lock()
	n.latency = d
	n.mu.Unlock()
}

// IsIsolated reports whether the node is partitioned off.
func (n *InMemoryNetwork) IsIsolated(nodeID uint64) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.isolated[nodeID]
}

// route resolves the peer transport and applies partition and drop rules.
func (n *InMemoryNetwork) route(from, to uint64) (*InMemoryTransport, time.Duration, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	peer, ok := n.transports[to]
	if !ok || n.isolated[from] || n.isolated[to] {
		return nil, 0, ErrConnectFailed
	}
	if n.dropRate > 0 && n.rng.Float64() < n.dropRate {
		return nil, 0, ErrMessageDropped
	}
	return peer, n.latency, nil
}

type deliveryResult struct {
	data []byte
	err  error
}

// Send sends a frame to a peer and waits for its reply.
func (t *InMemoryTransport) Send(ctx context.Context, peerID uint64, frame []byte) ([]byte, error) {
	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return nil, ErrTransportClosed
	}
	t.mu.RUnlock()

	peer, latency, err := t.network.route(t.id, peerID)
	if err != nil {
		return nil, err
	}

	peer.mu.RLock()
	handler := peer.handler
	closed := peer.closed
	peer.mu.RUnlock()

	if closed || handler == nil {
		return nil, ErrConnectFailed
	}

	// Frames are copied so neither side shares buffers with the other.
	request := append([]byte(nil), frame...)
	done := make(chan deliveryResult, 1)
	go func() {
		if latency > 0 {
			time.Sleep(latency)
		}
		resp, err := handler(request)
		done <- deliveryResult{data: append([]byte(nil), resp...), err: err}
	}()

	select {
	case res := <-done:
		return res.data, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Listen starts listening for frames.
func (t *InMemoryTransport) Listen(handler FrameHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClosed
	}
	t.handler = handler
	return nil
}

// Close shuts down the transport.
func (t *InMemoryTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.handler = nil
	return nil
}

// LocalAddr returns the local address.
func (t *InMemoryTransport) LocalAddr() string {
	return t.addr
}
