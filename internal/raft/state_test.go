package raft

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultNodeConfig(t *testing.T) {
	cfg := DefaultNodeConfig()

	if cfg.TickInterval != 10*time.Millisecond {
		t.Errorf("TickInterval mismatch: got %v, want 10ms", cfg.TickInterval)
	}
	if cfg.ElectionTicks <= cfg.HeartbeatTicks {
		t.Errorf("ElectionTicks %d should exceed HeartbeatTicks %d", cfg.ElectionTicks, cfg.HeartbeatTicks)
	}

	cfg.ID = 1
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config with an id should be valid: %v", err)
	}
}

func TestNodeConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*NodeConfig)
		wantErr bool
	}{
		{"valid", func(c *NodeConfig) {}, false},
		{"zero id", func(c *NodeConfig) { c.ID = 0 }, true},
		{"zero tick", func(c *NodeConfig) { c.TickInterval = 0 }, true},
		{"zero election ticks", func(c *NodeConfig) { c.ElectionTicks = 0 }, true},
		{"heartbeat not below election", func(c *NodeConfig) { c.HeartbeatTicks = c.ElectionTicks }, true},
		{"zero rpc timeout", func(c *NodeConfig) { c.RPCTimeout = 0 }, true},
		{"zero batch", func(c *NodeConfig) { c.MaxAppendEntries = 0 }, true},
		{"peer id zero", func(c *NodeConfig) { c.Peers = append(c.Peers, &Peer{ID: 0}) }, true},
		{"peer duplicates self", func(c *NodeConfig) { c.Peers = append(c.Peers, &Peer{ID: 1}) }, true},
		{"duplicate peers", func(c *NodeConfig) { c.Peers = append(c.Peers, &Peer{ID: 2}) }, true},
		{"nil peer", func(c *NodeConfig) { c.Peers = append(c.Peers, nil) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fastConfig(1, 2, 3)
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNodeConfigQuorum(t *testing.T) {
	tests := []struct {
		peers int
		want  int
	}{
		{0, 1},
		{1, 2},
		{2, 2},
		{3, 3},
		{4, 3},
		{6, 4},
	}

	for _, tt := range tests {
		cfg := fastConfig(1)
		for i := 0; i < tt.peers; i++ {
			cfg.Peers = append(cfg.Peers, &Peer{ID: uint64(i + 2)})
		}
		if got := cfg.Quorum(); got != tt.want {
			t.Errorf("Quorum with %d peers: got %d, want %d", tt.peers, got, tt.want)
		}
	}
}

func TestNewNodeState(t *testing.T) {
	s := NewNodeState(HardState{Term: 3, VotedFor: 2})

	if s.CurrentTerm() != 3 || s.VotedFor() != 2 {
		t.Errorf("hard state not restored: term=%d votedFor=%d", s.CurrentTerm(), s.VotedFor())
	}
	if s.Role() != RoleFollower {
		t.Errorf("Role mismatch: got %v, want follower", s.Role())
	}
	if s.CommitIndex() != 0 || s.LastApplied() != 0 {
		t.Error("volatile state should start at zero")
	}
	if hs := s.HardState(); hs.Term != 3 || hs.VotedFor != 2 {
		t.Errorf("HardState mismatch: got %+v", hs)
	}
}

func TestNodeStateTransitions(t *testing.T) {
	s := NewNodeState(HardState{})

	term := s.BecomeCandidate(1)
	if term != 1 || s.Role() != RoleCandidate || s.VotedFor() != 1 {
		t.Errorf("after BecomeCandidate: term=%d role=%v votedFor=%d", term, s.Role(), s.VotedFor())
	}
	if !s.votes[1] || len(s.votes) != 1 {
		t.Errorf("candidate should hold only its own vote: %v", s.votes)
	}

	s.BecomeLeader(1, []uint64{2, 3}, 5)
	if s.Role() != RoleLeader || s.LeaderID() != 1 {
		t.Errorf("after BecomeLeader: role=%v leader=%d", s.Role(), s.LeaderID())
	}

	// Same term: the vote is kept.
	s.BecomeFollower(1, 2)
	if s.Role() != RoleFollower || s.VotedFor() != 1 || s.LeaderID() != 2 {
		t.Errorf("same-term follower: role=%v votedFor=%d leader=%d", s.Role(), s.VotedFor(), s.LeaderID())
	}

	// Higher term: the vote is cleared.
	s.BecomeFollower(4, 0)
	if s.CurrentTerm() != 4 || s.VotedFor() != 0 {
		t.Errorf("higher-term follower: term=%d votedFor=%d", s.CurrentTerm(), s.VotedFor())
	}

	// A lower term never moves the term back.
	s.BecomeFollower(2, 3)
	if s.CurrentTerm() != 4 {
		t.Errorf("term moved back to %d", s.CurrentTerm())
	}
}

func TestNodeStateLeaderInit(t *testing.T) {
	s := NewNodeState(HardState{Term: 1})
	s.matchIndex[2] = 9
	s.inflight[2] = true

	s.BecomeLeader(1, []uint64{2, 3}, 10)

	for _, peer := range []uint64{2, 3} {
		if s.NextIndex(peer) != 11 {
			t.Errorf("peer %d NextIndex mismatch: got %d, want 11", peer, s.NextIndex(peer))
		}
		if s.MatchIndex(peer) != 0 {
			t.Errorf("peer %d MatchIndex mismatch: got %d, want 0", peer, s.MatchIndex(peer))
		}
		if s.inflight[peer] {
			t.Errorf("peer %d still marked in flight", peer)
		}
	}
}

func TestNodeStateMatchIndexes(t *testing.T) {
	s := NewNodeState(HardState{})
	s.BecomeLeader(1, []uint64{2, 3}, 0)
	s.matchIndex[2] = 4

	m := s.MatchIndexes()
	m[2] = 100
	if s.MatchIndex(2) != 4 {
		t.Error("MatchIndexes should return a copy")
	}
}

func TestRoleString(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleFollower, "follower"},
		{RoleCandidate, "candidate"},
		{RoleLeader, "leader"},
		{Role(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.role.String(); got != tt.want {
			t.Errorf("Role(%d).String() = %q, want %q", tt.role, got, tt.want)
		}
	}
}
