package raft

import (
	"fmt"
	"time"
)

// Role is a node's position in the protocol.
type Role uint8

// Node roles.
const (
	RoleFollower Role = iota
	RoleCandidate
	RoleLeader
)

// String returns the string representation of a role.
func (r Role) String() string {
	switch r {
	case RoleFollower:
		return "follower"
	case RoleCandidate:
		return "candidate"
	case RoleLeader:
		return "leader"
	default:
		return "unknown"
	}
}

// Peer represents a remote node in the cluster.
type Peer struct {
	ID   uint64
	Addr string
}

// NodeConfig holds configuration for a Raft node. Timeouts are counted in
// ticks of TickInterval.
type NodeConfig struct {
	ID               uint64        // Unique node ID, never 0
	Peers            []*Peer       // Other cluster members
	TickInterval     time.Duration // Logical clock period
	ElectionTicks    int           // Election timeout base, randomized up to 2x
	HeartbeatTicks   int           // Leader heartbeat period
	RPCTimeout       time.Duration // Per-RPC deadline
	MaxAppendEntries int           // Entries per AppendEntries request
}

// DefaultNodeConfig returns default configuration.
func DefaultNodeConfig() *NodeConfig {
	return &NodeConfig{
		TickInterval:     10 * time.Millisecond,
		ElectionTicks:    15,
		HeartbeatTicks:   3,
		RPCTimeout:       100 * time.Millisecond,
		MaxAppendEntries: 64,
	}
}

// Validate checks if the configuration is valid.
func (c *NodeConfig) Validate() error {
	if c.ID == 0 {
		return fmt.Errorf("%w: node id must be non-zero", ErrInvalidConfig)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval must be positive", ErrInvalidConfig)
	}
	if c.ElectionTicks <= 0 || c.HeartbeatTicks <= 0 {
		return fmt.Errorf("%w: tick counts must be positive", ErrInvalidConfig)
	}
	if c.HeartbeatTicks >= c.ElectionTicks {
		return fmt.Errorf("%w: heartbeat ticks must be below election ticks", ErrInvalidConfig)
	}
	if c.RPCTimeout <= 0 {
		return fmt.Errorf("%w: rpc timeout must be positive", ErrInvalidConfig)
	}
	if c.MaxAppendEntries <= 0 {
		return fmt.Errorf("%w: max append entries must be positive", ErrInvalidConfig)
	}

	seen := map[uint64]bool{c.ID: true}
	for _, p := range c.Peers {
		if p == nil || p.ID == 0 {
			return fmt.Errorf("%w: peer id must be non-zero", ErrInvalidConfig)
		}
		if seen[p.ID] {
			return fmt.Errorf("%w: duplicate node id %d", ErrInvalidConfig, p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// PeerIDs returns the IDs of the configured peers.
func (c *NodeConfig) PeerIDs() []uint64 {
	ids := make([]uint64, 0, len(c.Peers))
	for _, p := range c.Peers {
		ids = append(ids, p.ID)
	}
	return ids
}

// Quorum returns the number of votes that form a majority of the cluster.
func (c *NodeConfig) Quorum() int {
	return (len(c.Peers)+1)/2 + 1
}

// NodeState holds the protocol state of a Raft node. It has no lock of its
// own: the owning Node guards every access with its mutex.
type NodeState struct {
	// Persistent state (saved through the HardStateStore before replying)
	currentTerm uint64
	votedFor    uint64 // 0 means not voted

	// Volatile state on all servers
	role        Role
	commitIndex uint64
	lastApplied uint64
	leaderID    uint64

	// Volatile state on leaders (reinitialized after election)
	nextIndex  map[uint64]uint64 // peer ID -> next log index to send
	matchIndex map[uint64]uint64 // peer ID -> highest replicated index
	inflight   map[uint64]bool   // peer ID -> AppendEntries outstanding

	// Votes received in the current campaign
	votes map[uint64]bool

	// Logical clock
	electionElapsed  int
	heartbeatElapsed int
	electionTimeout  int
}

// NewNodeState creates a follower state from persisted hard state.
func NewNodeState(hs HardState) *NodeState {
	return &NodeState{
		currentTerm: hs.Term,
		votedFor:    hs.VotedFor,
		role:        RoleFollower,
		nextIndex:   make(map[uint64]uint64),
		matchIndex:  make(map[uint64]uint64),
		inflight:    make(map[uint64]bool),
		votes:       make(map[uint64]bool),
	}
}

// HardState returns the persistent part of the state.
func (s *NodeState) HardState() HardState {
	return HardState{Term: s.currentTerm, VotedFor: s.votedFor}
}

// CurrentTerm returns the current term.
func (s *NodeState) CurrentTerm() uint64 { return s.currentTerm }

// VotedFor returns the candidate voted for in the current term.
func (s *NodeState) VotedFor() uint64 { return s.votedFor }

// Role returns the current role.
func (s *NodeState) Role() Role { return s.role }

// CommitIndex returns the commit index.
func (s *NodeState) CommitIndex() uint64 { return s.commitIndex }

// LastApplied returns the last applied index.
func (s *NodeState) LastApplied() uint64 { return s.lastApplied }

// LeaderID returns the known leader ID.
func (s *NodeState) LeaderID() uint64 { return s.leaderID }

// NextIndex returns the next index to send to a peer.
func (s *NodeState) NextIndex(peerID uint64) uint64 { return s.nextIndex[peerID] }

// MatchIndex returns the highest index known replicated on a peer.
func (s *NodeState) MatchIndex(peerID uint64) uint64 { return s.matchIndex[peerID] }

// BecomeFollower adopts term. The vote is cleared when the term advances.
func (s *NodeState) BecomeFollower(term, leaderID uint64) {
	if term > s.currentTerm {
		s.currentTerm = term
		s.votedFor = 0
	}
	s.role = RoleFollower
	s.leaderID = leaderID
}

// BecomeCandidate starts a new term voting for self and returns it.
func (s *NodeState) BecomeCandidate(selfID uint64) uint64 {
	s.currentTerm++
	s.votedFor = selfID
	s.role = RoleCandidate
	s.leaderID = 0
	s.votes = map[uint64]bool{selfID: true}
	return s.currentTerm
}

// BecomeLeader initializes leader state for peers.
func (s *NodeState) BecomeLeader(selfID uint64, peers []uint64, lastIndex uint64) {
	s.role = RoleLeader
	s.leaderID = selfID
	s.nextIndex = make(map[uint64]uint64, len(peers))
	s.matchIndex = make(map[uint64]uint64, len(peers))
	s.inflight = make(map[uint64]bool, len(peers))
	for _, id := range peers {
		s.nextIndex[id] = lastIndex + 1
		s.matchIndex[id] = 0
	}
	s.heartbeatElapsed = 0
}

// MatchIndexes returns a copy of the match indexes.
func (s *NodeState) MatchIndexes() map[uint64]uint64 {
	out := make(map[uint64]uint64, len(s.matchIndex))
	for k, v := range s.matchIndex {
		out[k] = v
	}
	return out
}
