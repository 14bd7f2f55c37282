package raft

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/KilimcininKorOglu/raftd/internal/logging"
)

// Cluster transport kinds.
const (
	TransportMemory = "memory"
	TransportDisk   = "disk"
)

// File names inside a node's data directory.
const (
	LogFileName       = "raft.log"
	HardStateFileName = "hardstate.db"
)

// ClusterConfig describes an in-process cluster.
type ClusterConfig struct {
	Size          int           // Number of nodes, IDs 1..Size
	Node          *NodeConfig   // Timing template; ID and Peers are filled in
	Transport     string        // TransportMemory or TransportDisk
	DataDir       string        // Empty keeps logs and hard state in memory
	SpoolDir      string        // Disk transport root, defaults to DataDir/spool
	PollInterval  time.Duration // Disk transport poll period
	PageCacheSize int           // Read cache pages per node
	Logger        logging.Logger
}

// Cluster runs a fixed set of nodes in one process. Its mutex coordinates
// observers only; replication between nodes goes through the transports.
type Cluster struct {
	config  ClusterConfig
	network *InMemoryNetwork
	nodes   map[uint64]*Node
	targets map[uint64]*KVStore
	ids     []uint64
	started bool
	stopped chan struct{}

	mu sync.Mutex
}

// NewCluster creates the nodes of a cluster without starting them.
func NewCluster(cfg ClusterConfig) (*Cluster, error) {
	if cfg.Size < 1 {
		return nil, fmt.Errorf("%w: cluster size must be at least 1", ErrInvalidConfig)
	}
	if cfg.Node == nil {
		cfg.Node = DefaultNodeConfig()
	}
	if cfg.Transport == "" {
		cfg.Transport = TransportMemory
	}
	if cfg.Transport != TransportMemory && cfg.Transport != TransportDisk {
		return nil, fmt.Errorf("%w: unknown cluster transport %q", ErrInvalidConfig, cfg.Transport)
	}
	if cfg.Transport == TransportDisk && cfg.SpoolDir == "" {
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("%w: disk transport needs a spool or data directory", ErrInvalidConfig)
		}
		cfg.SpoolDir = filepath.Join(cfg.DataDir, "spool")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}

	c := &Cluster{
		config:  cfg,
		nodes:   make(map[uint64]*Node, cfg.Size),
		targets: make(map[uint64]*KVStore, cfg.Size),
		stopped: make(chan struct{}),
	}
	if cfg.Transport == TransportMemory {
		c.network = NewInMemoryNetwork()
	}
	for i := 1; i <= cfg.Size; i++ {
		c.ids = append(c.ids, uint64(i))
	}

	for _, id := range c.ids {
		node, target, err := c.newNode(id)
		if err != nil {
			c.Stop()
			return nil, fmt.Errorf("raft: create node %d: %w", id, err)
		}
		c.nodes[id] = node
		c.targets[id] = target
	}
	return c, nil
}

// nodeAddr returns the address a node is known by inside the cluster.
func nodeAddr(id uint64) string {
	return fmt.Sprintf("node-%d", id)
}

// newNode opens the storage of node id and builds it with a fresh transport
// and KV store.
func (c *Cluster) newNode(id uint64) (*Node, *KVStore, error) {
	cfg := *c.config.Node
	cfg.ID = id
	cfg.Peers = nil
	for _, peerID := range c.ids {
		if peerID != id {
			cfg.Peers = append(cfg.Peers, &Peer{ID: peerID, Addr: nodeAddr(peerID)})
		}
	}

	log, hard, err := c.openStorage(id)
	if err != nil {
		return nil, nil, err
	}

	var transport Transport
	switch c.config.Transport {
	case TransportDisk:
		dt, err := NewDiskTransport(c.config.SpoolDir, id, c.config.PollInterval)
		if err != nil {
			log.Close()
			hard.Close()
			return nil, nil, err
		}
		transport = dt
	default:
		transport = c.network.NewTransport(id, nodeAddr(id))
	}

	target := NewKVStore()
	node, err := NewNode(&cfg, log, hard, transport, target)
	if err != nil {
		log.Close()
		hard.Close()
		transport.Close()
		return nil, nil, err
	}
	node.SetLogger(c.config.Logger)
	return node, target, nil
}

func (c *Cluster) openStorage(id uint64) (*PagedLog, HardStateStore, error) {
	if c.config.DataDir == "" {
		hard, err := OpenKVHardStateStore("")
		if err != nil {
			return nil, nil, err
		}
		return NewMemoryLog(), hard, nil
	}

	dir := filepath.Join(c.config.DataDir, nodeAddr(id))
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, nil, err
	}
	log, err := OpenLogFile(filepath.Join(dir, LogFileName), c.config.PageCacheSize)
	if err != nil {
		return nil, nil, err
	}
	hard, err := OpenKVHardStateStore(filepath.Join(dir, HardStateFileName))
	if err != nil {
		log.Close()
		return nil, nil, err
	}
	return log, hard, nil
}

// Start starts every node. The cluster stops itself when ctx is done.
func (c *Cluster) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return errors.New("raft: cluster already started")
	}
	for _, id := range c.ids {
		if err := c.nodes[id].Start(); err != nil {
			return fmt.Errorf("raft: start node %d: %w", id, err)
		}
	}
	c.started = true

	go func() {
		select {
		case <-ctx.Done():
			c.Stop()
		case <-c.stopped:
		}
	}()
	return nil
}

// Stop stops every node. It is safe to call more than once.
func (c *Cluster) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.stopped:
		return
	default:
		close(c.stopped)
	}
	for _, id := range c.ids {
		if n := c.nodes[id]; n != nil {
			n.Stop()
		}
	}
}

// RestartNode stops node id and starts a new node over the same storage.
// Only clusters with a data directory keep state across a restart.
func (c *Cluster) RestartNode(id uint64) (*Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old, ok := c.nodes[id]
	if !ok {
		return nil, fmt.Errorf("raft: unknown node %d", id)
	}
	old.Stop()

	node, target, err := c.newNode(id)
	if err != nil {
		return nil, err
	}
	c.nodes[id] = node
	c.targets[id] = target
	if c.started {
		if err := node.Start(); err != nil {
			return nil, err
		}
	}
	return node, nil
}

// Nodes returns the nodes ordered by ID.
func (c *Cluster) Nodes() []*Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodesLocked()
}

func (c *Cluster) nodesLocked() []*Node {
	nodes := make([]*Node, 0, len(c.ids))
	for _, id := range c.ids {
		nodes = append(nodes, c.nodes[id])
	}
	return nodes
}

// Node returns the node with the given ID, or nil.
func (c *Cluster) Node(id uint64) *Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodes[id]
}

// Target returns the KV store node id applies to.
func (c *Cluster) Target(id uint64) *KVStore {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.targets[id]
}

// Network returns the in-memory network, or nil for a disk cluster.
func (c *Cluster) Network() *InMemoryNetwork {
	return c.network
}

// Inspect calls fn with every node while observers are excluded.
func (c *Cluster) Inspect(fn func(nodes []*Node)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.nodesLocked())
}

// Leader returns the leader with the highest term, or nil when no node
// leads.
func (c *Cluster) Leader() *Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	var leader *Node
	var term uint64
	for _, n := range c.nodesLocked() {
		if n.Halted() || n.stopped() {
			continue
		}
		status := n.Status()
		if status.Role == RoleLeader.String() && status.Term >= term {
			leader, term = n, status.Term
		}
	}
	return leader
}

// WaitForLeader polls until a leader exists or ctx is done.
func (c *Cluster) WaitForLeader(ctx context.Context) (*Node, error) {
	ticker := time.NewTicker(c.config.Node.TickInterval)
	defer ticker.Stop()

	for {
		if leader := c.Leader(); leader != nil {
			return leader, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Propose submits a command through the current leader, retrying while
// leadership moves, until it is applied or ctx is done.
func (c *Cluster) Propose(ctx context.Context, clientID uint64, command []byte) (uint64, error) {
	for {
		leader, err := c.WaitForLeader(ctx)
		if err != nil {
			return 0, err
		}

		index, err := leader.Propose(ctx, clientID, command)
		if err == nil || !errors.Is(err, ErrNotLeader) {
			return index, err
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(c.config.Node.TickInterval):
		}
	}
}

// WaitForApplied polls until every running node has applied index or ctx
// is done.
func (c *Cluster) WaitForApplied(ctx context.Context, index uint64) error {
	ticker := time.NewTicker(c.config.Node.TickInterval)
	defer ticker.Stop()

	for {
		done := true
		c.Inspect(func(nodes []*Node) {
			for _, n := range nodes {
				if !n.stopped() && !n.Halted() && n.LastApplied() < index {
					done = false
				}
			}
		})
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
