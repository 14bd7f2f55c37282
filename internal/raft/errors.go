package raft

import "errors"

// Raft errors.
var (
	// ErrNotLeader is returned when a proposal is made on a non-leader node.
	ErrNotLeader = errors.New("raft: not the leader")

	// ErrNodeStopped is returned when an operation is attempted on a stopped node.
	ErrNodeStopped = errors.New("raft: node stopped")

	// ErrNodeHalted is returned by a node that stopped serving after a
	// durability failure or log corruption.
	ErrNodeHalted = errors.New("raft: node halted")

	// ErrCorruptEntry is returned when a checksum does not match its data,
	// either in the durable log or in an RPC frame.
	ErrCorruptEntry = errors.New("raft: corrupt entry")

	// ErrIncompleteRead is returned when fewer bytes are available than a
	// full page or frame requires.
	ErrIncompleteRead = errors.New("raft: incomplete read")

	// ErrLogInconsistency marks an AppendEntries whose previous entry does
	// not match the local log. It drives leader backoff and never escapes
	// the node.
	ErrLogInconsistency = errors.New("raft: log inconsistency")

	// ErrStaleTerm marks an RPC whose term is below the local term. It is
	// answered with a rejection and never escapes the node.
	ErrStaleTerm = errors.New("raft: stale term")

	// ErrLogIndexOutOfRange is returned when accessing an invalid log index.
	ErrLogIndexOutOfRange = errors.New("raft: log index out of range")

	// ErrNonContiguousAppend is returned when appended entries do not
	// continue the log.
	ErrNonContiguousAppend = errors.New("raft: non-contiguous append")

	// ErrUnknownKind is returned when a frame carries an unknown message kind.
	ErrUnknownKind = errors.New("raft: unknown message kind")

	// ErrTransportClosed is returned when the transport is closed.
	ErrTransportClosed = errors.New("raft: transport closed")

	// ErrConnectFailed is returned when a peer cannot be reached.
	ErrConnectFailed = errors.New("raft: connection failed")

	// ErrMessageDropped is returned when the simulated network drops a message.
	ErrMessageDropped = errors.New("raft: message dropped")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("raft: operation timeout")

	// ErrInvalidConfig is returned when configuration is invalid.
	ErrInvalidConfig = errors.New("raft: invalid configuration")
)
