// Package raft implements a Raft consensus node over a paged, checksummed
// log.
//
// # Overview
//
// The package provides:
//   - Leader election on a logical clock with randomized timeouts
//   - Log replication with batched, pipelined AppendEntries
//   - A durable log of 512-byte pages written through a PageCache
//   - CRC32C-protected entries and RPC frames
//   - In-memory, disk spool and socket transports
//
// # Log Format
//
// Each entry occupies one start page followed by zero or more overflow
// pages. The start page carries the entry header and the first 459 bytes of
// the command:
//
//	[marker=1:1][crc32c:4][term:8][index:8][reserved:16][client:8][len:8][command...]
//
// Overflow pages carry a zero marker and 511 bytes of command. The checksum
// covers the header and the whole command; padding must be zero. Opening a
// log scans it from page 0 and truncates a torn tail.
//
// # Usage
//
// Create a node over a log file, a hard state store and a transport:
//
//	log, err := raft.OpenLogFile("/var/lib/raftd/node-1/raft.log", 256)
//	hard, err := raft.OpenKVHardStateStore("/var/lib/raftd/node-1/hardstate.db")
//	transport := raft.NewSocketTransport("tcp://127.0.0.1:7001", peers)
//
//	cfg := raft.DefaultNodeConfig()
//	cfg.ID = 1
//	cfg.Peers = []*raft.Peer{{ID: 2, Addr: "tcp://127.0.0.1:7002"}}
//
//	kv := raft.NewKVStore()
//	node, err := raft.NewNode(cfg, log, hard, transport, kv)
//	go node.Run(ctx)
//
//	// Propose a command (only on leader)
//	index, err := node.Propose(ctx, clientID, raft.NewPutCommand(seq, "k", v))
//
// A Cluster runs several nodes in one process over an in-memory network or
// a shared spool directory, which is how the simulate command and the tests
// drive the protocol.
//
// # Failure Handling
//
// A node that cannot make its log or hard state durable halts: it refuses
// RPCs and proposals until restarted, and Err reports the cause. The
// cluster tolerates (N-1)/2 failed nodes for N nodes.
//
// # References
//
//   - Raft Paper: https://raft.github.io/raft.pdf
package raft
