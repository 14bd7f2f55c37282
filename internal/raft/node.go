package raft

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KilimcininKorOglu/raftd/internal/logging"
)

// Node lifecycle states.
const (
	nodeIdle int32 = iota
	nodeRunning
	nodeStopped
)

// Node represents a Raft node in the cluster. Every protocol transition
// runs under mu; RPCs to peers are sent from goroutines that take mu again
// to process the reply.
type Node struct {
	// Configuration
	id     uint64
	config *NodeConfig
	peers  []uint64

	// State, guarded by mu
	state   *NodeState
	log     *PagedLog
	hard    HardStateStore
	halted  bool
	haltErr error
	waiters map[uint64]*proposeRequest // log index -> waiting proposal

	// Components
	transport Transport
	target    ApplyTarget
	logger    logging.Logger
	rng       *rand.Rand

	// Lifecycle
	applyCh   chan struct{}
	stopCh    chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   int32
	closeOnce sync.Once

	mu sync.Mutex
}

type proposeRequest struct {
	term   uint64
	result chan error
}

// NodeStatus is a point-in-time view of a node.
type NodeStatus struct {
	ID          uint64 `json:"id"`
	Role        string `json:"role"`
	Term        uint64 `json:"term"`
	VotedFor    uint64 `json:"votedFor"`
	LeaderID    uint64 `json:"leaderId"`
	CommitIndex uint64 `json:"commitIndex"`
	LastApplied uint64 `json:"lastApplied"`
	LastIndex   uint64 `json:"lastIndex"`
	LastTerm    uint64 `json:"lastTerm"`
	Halted      bool   `json:"halted"`
	Error       string `json:"error,omitempty"`
}

// NewNode creates a new Raft node. The node owns log, hard and transport
// and closes them on Stop. A nil target discards committed entries.
func NewNode(cfg *NodeConfig, log *PagedLog, hard HardStateStore, transport Transport, target ApplyTarget) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil || hard == nil || transport == nil {
		return nil, fmt.Errorf("%w: log, hard state store and transport are required", ErrInvalidConfig)
	}

	hs, err := hard.Load()
	if err != nil {
		return nil, fmt.Errorf("raft: load hard state: %w", err)
	}
	if target == nil {
		target = ApplyFunc(func(*LogEntry) error { return nil })
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		id:        cfg.ID,
		config:    cfg,
		peers:     cfg.PeerIDs(),
		state:     NewNodeState(hs),
		log:       log,
		hard:      hard,
		waiters:   make(map[uint64]*proposeRequest),
		transport: transport,
		target:    target,
		logger:    logging.NewNop(),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano() + int64(cfg.ID))),
		applyCh:   make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	n.resetElectionTimeoutLocked()
	return n, nil
}

// SetLogger sets the logger for the node. Call it before Start.
func (n *Node) SetLogger(logger logging.Logger) {
	n.logger = logger.WithFields("node", n.id)
}

// Start begins serving RPCs, ticking the logical clock and applying
// committed entries.
func (n *Node) Start() error {
	if !atomic.CompareAndSwapInt32(&n.running, nodeIdle, nodeRunning) {
		return ErrNodeStopped
	}
	if err := n.transport.Listen(n.handleFrame); err != nil {
		atomic.StoreInt32(&n.running, nodeIdle)
		return err
	}

	n.wg.Add(2)
	go n.tickLoop()
	go n.applyLoop()

	n.logger.Info("node started",
		"term", n.Term(),
		"last_index", n.log.LastIndex(),
		"addr", n.transport.LocalAddr(),
	)
	return nil
}

// Run starts the node and blocks until ctx is done, then stops it.
func (n *Node) Run(ctx context.Context) error {
	if err := n.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	n.Stop()
	return nil
}

// Stop shuts the node down and closes its log, hard state store and
// transport. It is safe to call more than once.
func (n *Node) Stop() {
	prev := atomic.SwapInt32(&n.running, nodeStopped)
	if prev == nodeStopped {
		return
	}
	n.cancel()
	if prev == nodeRunning {
		close(n.stopCh)
	}
	n.transport.Close()
	n.wg.Wait()

	n.mu.Lock()
	defer n.mu.Unlock()
	n.failWaitersLocked(ErrNodeStopped)

	n.closeOnce.Do(func() {
		if err := n.log.Close(); err != nil {
			n.logger.Warn("closing log failed", "error", err)
		}
		if err := n.hard.Close(); err != nil {
			n.logger.Warn("closing hard state failed", "error", err)
		}
	})
	n.logger.Info("node stopped")
}

func (n *Node) stopped() bool {
	return atomic.LoadInt32(&n.running) == nodeStopped
}

func (n *Node) tickLoop() {
	defer n.wg.Done()

	ticker := time.NewTicker(n.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-n.stopCh:
			return
		case <-ticker.C:
			n.Tick()
		}
	}
}

// Tick advances the logical clock by one tick. Followers and candidates
// start an election when the randomized timeout elapses; leaders send
// heartbeats every HeartbeatTicks.
func (n *Node) Tick() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.halted || n.stopped() {
		return
	}

	switch n.state.role {
	case RoleLeader:
		n.state.heartbeatElapsed++
		if n.state.heartbeatElapsed >= n.config.HeartbeatTicks {
			n.state.heartbeatElapsed = 0
			n.broadcastAppendEntriesLocked()
		}
	default:
		n.state.electionElapsed++
		if n.state.electionElapsed >= n.state.electionTimeout {
			n.startElectionLocked()
		}
	}
}

// resetElectionTimeoutLocked restarts the election clock with a timeout
// drawn from [ElectionTicks, 2*ElectionTicks).
func (n *Node) resetElectionTimeoutLocked() {
	n.state.electionElapsed = 0
	n.state.electionTimeout = n.config.ElectionTicks + n.rng.Intn(n.config.ElectionTicks)
}

// persistLocked saves the hard state. On failure the node halts.
func (n *Node) persistLocked() bool {
	if err := n.hard.Save(n.state.HardState()); err != nil {
		n.haltLocked(fmt.Errorf("persist hard state: %w", err))
		return false
	}
	return true
}

// haltLocked stops the node from serving. Only a restart clears it.
func (n *Node) haltLocked(err error) {
	if n.halted {
		return
	}
	n.halted = true
	n.haltErr = err
	n.logger.Error("node halted", "error", err, "term", n.state.currentTerm)
	n.failWaitersLocked(ErrNodeHalted)
}

func (n *Node) failWaitersLocked(err error) {
	for index, w := range n.waiters {
		w.result <- err
		delete(n.waiters, index)
	}
}

// stepDownLocked becomes a follower of term. Pending proposals fail when a
// leader steps down.
func (n *Node) stepDownLocked(term, leaderID uint64) {
	wasLeader := n.state.role == RoleLeader
	n.state.BecomeFollower(term, leaderID)
	n.resetElectionTimeoutLocked()
	if wasLeader {
		n.logger.Info("stepped down", "term", n.state.currentTerm)
		n.failWaitersLocked(ErrNotLeader)
	}
}

// =============================================================================
// Election
// =============================================================================

func (n *Node) startElectionLocked() {
	term := n.state.BecomeCandidate(n.id)
	n.resetElectionTimeoutLocked()
	if !n.persistLocked() {
		return
	}

	n.logger.Info("starting election", "term", term)

	if len(n.state.votes) >= n.config.Quorum() {
		n.becomeLeaderLocked()
		return
	}

	req := &RequestVoteRequest{
		Term:         term,
		CandidateID:  n.id,
		LastLogIndex: n.log.LastIndex(),
		LastLogTerm:  n.log.LastTerm(),
	}
	for _, peerID := range n.peers {
		go n.requestVote(peerID, req)
	}
}

func (n *Node) requestVote(peerID uint64, req *RequestVoteRequest) {
	msg, err := n.call(peerID, req)
	if err != nil {
		n.logger.Debug("vote request failed", "peer", peerID, "term", req.Term, "error", err)
		return
	}
	reply, ok := msg.(*RequestVoteReply)
	if !ok {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.handleVoteReplyLocked(peerID, req, reply)
}

func (n *Node) handleVoteReplyLocked(peerID uint64, req *RequestVoteRequest, reply *RequestVoteReply) {
	if n.halted || n.stopped() {
		return
	}
	if reply.Term > n.state.currentTerm {
		n.stepDownLocked(reply.Term, 0)
		n.persistLocked()
		return
	}
	if n.state.role != RoleCandidate || n.state.currentTerm != req.Term || !reply.VoteGranted {
		return
	}

	n.state.votes[peerID] = true
	if len(n.state.votes) >= n.config.Quorum() {
		n.becomeLeaderLocked()
	}
}

func (n *Node) becomeLeaderLocked() {
	n.state.BecomeLeader(n.id, n.peers, n.log.LastIndex())
	n.logger.Info("became leader", "term", n.state.currentTerm, "last_index", n.log.LastIndex())

	// A noop from the new term lets entries of earlier terms commit.
	noop := &LogEntry{Index: n.log.LastIndex() + 1, Term: n.state.currentTerm}
	if err := n.log.Append(noop); err != nil {
		n.haltLocked(fmt.Errorf("append noop: %w", err))
		return
	}
	n.advanceCommitLocked()
	n.broadcastAppendEntriesLocked()
}

// =============================================================================
// Replication
// =============================================================================

func (n *Node) broadcastAppendEntriesLocked() {
	for _, peerID := range n.peers {
		n.replicateToLocked(peerID)
	}
}

// replicateToLocked sends the next batch to a peer unless a request to it
// is already outstanding.
func (n *Node) replicateToLocked(peerID uint64) {
	if n.state.inflight[peerID] {
		return
	}

	next := n.state.nextIndex[peerID]
	if next == 0 {
		next = 1
	}
	prev := next - 1

	entries, err := n.log.EntriesFrom(next, n.config.MaxAppendEntries)
	if err != nil {
		n.haltLocked(fmt.Errorf("read entries from %d: %w", next, err))
		return
	}

	req := &AppendEntriesRequest{
		Term:         n.state.currentTerm,
		LeaderID:     n.id,
		PrevLogIndex: prev,
		PrevLogTerm:  n.log.TermAt(prev),
		LeaderCommit: n.state.commitIndex,
		Entries:      entries,
	}
	n.state.inflight[peerID] = true
	go n.sendAppendEntries(peerID, req)
}

func (n *Node) sendAppendEntries(peerID uint64, req *AppendEntriesRequest) {
	msg, err := n.call(peerID, req)

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state.role == RoleLeader && n.state.currentTerm == req.Term {
		n.state.inflight[peerID] = false
	}
	if err != nil {
		n.logger.Debug("append entries failed", "peer", peerID, "error", err)
		return
	}
	reply, ok := msg.(*AppendEntriesReply)
	if !ok {
		return
	}
	n.handleAppendReplyLocked(peerID, req, reply)
}

func (n *Node) handleAppendReplyLocked(peerID uint64, req *AppendEntriesRequest, reply *AppendEntriesReply) {
	if n.halted || n.stopped() {
		return
	}
	if reply.Term > n.state.currentTerm {
		n.stepDownLocked(reply.Term, 0)
		n.persistLocked()
		return
	}
	if n.state.role != RoleLeader || n.state.currentTerm != req.Term {
		return
	}

	if reply.Success {
		match := req.PrevLogIndex + uint64(len(req.Entries))
		if match > n.state.matchIndex[peerID] {
			n.state.matchIndex[peerID] = match
		}
		if match+1 > n.state.nextIndex[peerID] {
			n.state.nextIndex[peerID] = match + 1
		}
		n.advanceCommitLocked()
		if n.state.nextIndex[peerID] <= n.log.LastIndex() {
			n.replicateToLocked(peerID)
		}
		return
	}

	// Only a rejection of the current cursor moves it.
	if req.PrevLogIndex+1 != n.state.nextIndex[peerID] || req.PrevLogIndex == 0 {
		return
	}
	next := req.PrevLogIndex
	if reply.ConflictIndex > 0 && reply.ConflictIndex < next {
		next = reply.ConflictIndex
	}
	if next <= n.state.matchIndex[peerID] {
		next = n.state.matchIndex[peerID] + 1
	}
	n.state.nextIndex[peerID] = next
	n.logger.Debug("follower log mismatch", "peer", peerID, "next_index", next)
	n.replicateToLocked(peerID)
}

// advanceCommitLocked moves the commit index to the highest entry of the
// current term stored on a majority. Entries of earlier terms commit only
// through such an entry.
func (n *Node) advanceCommitLocked() {
	if n.state.role != RoleLeader {
		return
	}
	quorum := n.config.Quorum()
	term := n.state.currentTerm

	for idx := n.log.LastIndex(); idx > n.state.commitIndex; idx-- {
		entryTerm := n.log.TermAt(idx)
		if entryTerm < term {
			break
		}
		if entryTerm != term {
			continue
		}

		count := 1 // Self
		for _, peerID := range n.peers {
			if n.state.matchIndex[peerID] >= idx {
				count++
			}
		}
		if count >= quorum {
			n.state.commitIndex = idx
			n.notifyApplyLocked()
			return
		}
	}
}

func (n *Node) notifyApplyLocked() {
	select {
	case n.applyCh <- struct{}{}:
	default:
	}
}

// call sends msg to a peer and returns the reply message.
func (n *Node) call(peerID uint64, msg Message) (Message, error) {
	frame := NewFrame(n.id, msg)
	data, err := EncodeFrame(frame)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(n.ctx, n.config.RPCTimeout)
	defer cancel()

	resp, err := n.transport.Send(ctx, peerID, data)
	if err != nil {
		return nil, err
	}
	reply, err := DecodeFrame(resp)
	if err != nil {
		return nil, err
	}
	if reply.RequestID != frame.RequestID {
		return nil, fmt.Errorf("%w: reply %s does not answer %s", ErrCorruptEntry, reply.RequestID, frame.RequestID)
	}
	return reply.Message, nil
}

// =============================================================================
// RPC Handlers
// =============================================================================

// handleFrame serves one encoded request. Corrupt frames and frames that
// arrive while halted get no reply.
func (n *Node) handleFrame(data []byte) ([]byte, error) {
	if n.Halted() {
		return nil, ErrNodeHalted
	}

	frame, err := DecodeFrame(data)
	if err != nil {
		n.logger.Warn("rejected frame", "error", err)
		return nil, err
	}

	var reply Message
	switch m := frame.Message.(type) {
	case *RequestVoteRequest:
		reply = n.HandleRequestVote(m)
	case *AppendEntriesRequest:
		reply = n.HandleAppendEntries(m)
	default:
		return nil, fmt.Errorf("%w: %s is not a request", ErrUnknownKind, frame.Kind())
	}

	if n.Halted() {
		return nil, ErrNodeHalted
	}

	n.logger.WithRequestID(frame.RequestID.String()).Debug("handled rpc",
		"kind", frame.Kind().String(),
		"from", frame.SenderID,
		"term", reply.GetTerm(),
	)
	return EncodeFrame(frame.Reply(n.id, reply))
}

// HandleRequestVote processes a vote request. The hard state is durable
// before the reply is returned.
func (n *Node) HandleRequestVote(req *RequestVoteRequest) *RequestVoteReply {
	n.mu.Lock()
	defer n.mu.Unlock()

	reply := &RequestVoteReply{Term: n.state.currentTerm}
	if n.halted || n.stopped() || req.Term < n.state.currentTerm {
		return reply
	}
	// votedFor 0 means no vote, so candidate 0 could be granted twice.
	if req.CandidateID == 0 {
		n.logger.Warn("rejected vote request without candidate", "term", req.Term)
		return reply
	}

	persist := false
	if req.Term > n.state.currentTerm {
		n.stepDownLocked(req.Term, 0)
		persist = true
	}

	lastIndex, lastTerm := n.log.LastIndex(), n.log.LastTerm()
	upToDate := req.LastLogTerm > lastTerm ||
		(req.LastLogTerm == lastTerm && req.LastLogIndex >= lastIndex)

	granted := false
	if (n.state.votedFor == 0 || n.state.votedFor == req.CandidateID) && upToDate {
		if n.state.votedFor != req.CandidateID {
			n.state.votedFor = req.CandidateID
			persist = true
		}
		granted = true
		n.resetElectionTimeoutLocked()
	}

	if persist && !n.persistLocked() {
		return &RequestVoteReply{Term: n.state.currentTerm}
	}

	reply.Term = n.state.currentTerm
	reply.VoteGranted = granted
	if granted {
		n.logger.Debug("granted vote", "candidate", req.CandidateID, "term", req.Term)
	}
	return reply
}

// HandleAppendEntries processes an AppendEntries request. New entries are
// durable before the reply is returned.
func (n *Node) HandleAppendEntries(req *AppendEntriesRequest) *AppendEntriesReply {
	n.mu.Lock()
	defer n.mu.Unlock()

	reply := &AppendEntriesReply{Term: n.state.currentTerm}
	if n.halted || n.stopped() || req.Term < n.state.currentTerm {
		return reply
	}
	if req.LeaderID == 0 {
		n.logger.Warn("rejected append entries without leader", "term", req.Term)
		return reply
	}

	advanced := req.Term > n.state.currentTerm
	n.stepDownLocked(req.Term, req.LeaderID)
	if advanced && !n.persistLocked() {
		return reply
	}
	reply.Term = n.state.currentTerm

	lastIndex := n.log.LastIndex()
	if req.PrevLogIndex > lastIndex {
		reply.ConflictIndex = lastIndex + 1
		return reply
	}
	if req.PrevLogIndex > 0 && n.log.TermAt(req.PrevLogIndex) != req.PrevLogTerm {
		reply.ConflictIndex = n.log.FirstIndexOfTerm(req.PrevLogIndex)
		return reply
	}

	if err := checkEntries(req, n.log.TermAt(req.PrevLogIndex)); err != nil {
		n.logger.Warn("malformed append entries", "leader", req.LeaderID, "error", err)
		return reply
	}

	var fresh []*LogEntry
	for i, e := range req.Entries {
		if e.Index > lastIndex {
			fresh = req.Entries[i:]
			break
		}
		if n.log.TermAt(e.Index) == e.Term {
			continue
		}
		if e.Index <= n.state.commitIndex {
			n.logger.Error("leader conflicts with committed entry", "leader", req.LeaderID, "index", e.Index)
			return reply
		}
		if err := n.log.TruncateFrom(e.Index); err != nil {
			n.haltLocked(fmt.Errorf("truncate from %d: %w", e.Index, err))
			return reply
		}
		n.logger.Info("truncated conflicting entries", "from", e.Index, "leader", req.LeaderID)
		fresh = req.Entries[i:]
		break
	}
	if len(fresh) > 0 {
		if err := n.log.Append(fresh...); err != nil {
			if errors.Is(err, ErrNonContiguousAppend) {
				// Rejected before anything was written.
				n.logger.Warn("append entries rejected by log", "leader", req.LeaderID, "error", err)
				return reply
			}
			n.haltLocked(fmt.Errorf("append %d entries: %w", len(fresh), err))
			return reply
		}
	}

	lastNew := req.PrevLogIndex + uint64(len(req.Entries))
	if req.LeaderCommit > n.state.commitIndex {
		commit := req.LeaderCommit
		if lastNew < commit {
			commit = lastNew
		}
		if commit > n.state.commitIndex {
			n.state.commitIndex = commit
			n.notifyApplyLocked()
		}
	}

	reply.Success = true
	reply.MatchIndex = lastNew
	return reply
}

// checkEntries verifies that req's entries continue PrevLogIndex one index
// at a time, with terms that never go down from prevTerm and never pass
// req.Term.
func checkEntries(req *AppendEntriesRequest, prevTerm uint64) error {
	term := prevTerm
	for i, e := range req.Entries {
		if want := req.PrevLogIndex + 1 + uint64(i); e.Index != want {
			return fmt.Errorf("entry index %d, want %d", e.Index, want)
		}
		if e.Term < term {
			return fmt.Errorf("entry %d has term %d below %d", e.Index, e.Term, term)
		}
		if e.Term > req.Term {
			return fmt.Errorf("entry %d has term %d above request term %d", e.Index, e.Term, req.Term)
		}
		term = e.Term
	}
	return nil
}

// =============================================================================
// Proposals and Apply
// =============================================================================

// Propose appends a command from clientID to the leader's log and waits
// until it is applied. It returns the entry's index and the ApplyTarget's
// error. ErrNotLeader is returned when this node is not the leader or loses
// leadership before the entry commits.
func (n *Node) Propose(ctx context.Context, clientID uint64, command []byte) (uint64, error) {
	if len(command) > MaxCommandSize {
		return 0, fmt.Errorf("raft: command of %d bytes exceeds %d", len(command), MaxCommandSize)
	}

	n.mu.Lock()
	if n.stopped() {
		n.mu.Unlock()
		return 0, ErrNodeStopped
	}
	if n.halted {
		n.mu.Unlock()
		return 0, ErrNodeHalted
	}
	if n.state.role != RoleLeader {
		n.mu.Unlock()
		return 0, ErrNotLeader
	}

	entry := &LogEntry{
		Index:    n.log.LastIndex() + 1,
		Term:     n.state.currentTerm,
		ClientID: clientID,
		Command:  append([]byte(nil), command...),
	}
	if err := n.log.Append(entry); err != nil {
		n.haltLocked(fmt.Errorf("append proposal: %w", err))
		n.mu.Unlock()
		return 0, fmt.Errorf("%w: %v", ErrNodeHalted, err)
	}

	req := &proposeRequest{term: entry.Term, result: make(chan error, 1)}
	n.waiters[entry.Index] = req
	n.advanceCommitLocked()
	n.broadcastAppendEntriesLocked()
	n.mu.Unlock()

	select {
	case err := <-req.result:
		return entry.Index, err
	case <-ctx.Done():
		n.mu.Lock()
		delete(n.waiters, entry.Index)
		n.mu.Unlock()
		return entry.Index, ctx.Err()
	}
}

func (n *Node) applyLoop() {
	defer n.wg.Done()

	for {
		select {
		case <-n.stopCh:
			return
		case <-n.applyCh:
			n.applyCommitted()
		}
	}
}

// applyCommitted applies every committed entry not yet applied. The target
// is called without holding mu.
func (n *Node) applyCommitted() {
	for {
		n.mu.Lock()
		if n.halted || n.state.lastApplied >= n.state.commitIndex {
			n.mu.Unlock()
			return
		}
		index := n.state.lastApplied + 1
		entry, err := n.log.Entry(index)
		if err != nil {
			n.haltLocked(fmt.Errorf("read committed entry %d: %w", index, err))
			n.mu.Unlock()
			return
		}
		n.mu.Unlock()

		applyErr := n.target.Apply(entry)
		if applyErr != nil {
			n.logger.Warn("apply failed", "index", index, "error", applyErr)
		}

		n.mu.Lock()
		n.state.lastApplied = index
		if w, ok := n.waiters[index]; ok {
			delete(n.waiters, index)
			if w.term == entry.Term {
				w.result <- applyErr
			} else {
				w.result <- ErrNotLeader
			}
		}
		n.mu.Unlock()
	}
}

// =============================================================================
// Accessors
// =============================================================================

// ID returns the node's ID.
func (n *Node) ID() uint64 {
	return n.id
}

// Peers returns the IDs of the other cluster members.
func (n *Node) Peers() []uint64 {
	return append([]uint64(nil), n.peers...)
}

// Role returns the current role.
func (n *Node) Role() Role {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.role
}

// IsLeader returns true if this node is the leader.
func (n *Node) IsLeader() bool {
	return n.Role() == RoleLeader
}

// Term returns the current term.
func (n *Node) Term() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.currentTerm
}

// LeaderID returns the known leader's ID, 0 if unknown.
func (n *Node) LeaderID() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.leaderID
}

// CommitIndex returns the commit index.
func (n *Node) CommitIndex() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.commitIndex
}

// LastApplied returns the last applied index.
func (n *Node) LastApplied() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.lastApplied
}

// Halted reports whether the node stopped serving after a fatal error.
func (n *Node) Halted() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.halted
}

// Err returns the error that halted the node, or nil.
func (n *Node) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.haltErr
}

// Log returns the node's log.
func (n *Node) Log() *PagedLog {
	return n.log
}

// Status returns a snapshot of the node's state.
func (n *Node) Status() NodeStatus {
	n.mu.Lock()
	defer n.mu.Unlock()

	s := NodeStatus{
		ID:          n.id,
		Role:        n.state.role.String(),
		Term:        n.state.currentTerm,
		VotedFor:    n.state.votedFor,
		LeaderID:    n.state.leaderID,
		CommitIndex: n.state.commitIndex,
		LastApplied: n.state.lastApplied,
		LastIndex:   n.log.LastIndex(),
		LastTerm:    n.log.LastTerm(),
		Halted:      n.halted,
	}
	if n.haltErr != nil {
		s.Error = n.haltErr.Error()
	}
	return s
}
