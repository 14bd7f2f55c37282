// Package config provides configuration parsing and management for raftd.
//
// # Overview
//
// The config package loads node configuration from YAML files, substitutes
// environment variables, applies defaults and validates the result. The
// parser is a small indentation-based reader that understands the subset of
// YAML used by raftd configuration files.
//
// # Configuration Structure
//
// The main Config struct contains all node settings:
//
//	type Config struct {
//	    Node      NodeConfig      // Local node identity and data directory
//	    Cluster   ClusterConfig   // Other cluster members
//	    Raft      RaftConfig      // Election and heartbeat timing
//	    Transport TransportConfig // How frames travel between nodes
//	    Storage   StorageConfig   // Log and hard state files
//	    Logging   LogConfig       // Logging settings
//	}
//
// # Loading Configuration
//
// Load configuration from a YAML file:
//
//	cfg, err := config.LoadConfig("/etc/raftd/raftd.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
//	    log.Fatal(errs[0])
//	}
//
// # Environment Variables
//
// Values may reference environment variables with ${VAR} or
// ${VAR:-default}:
//
//	node:
//	  id: ${RAFTD_NODE_ID:-1}
//
// # Example Configuration
//
//	node:
//	  id: 1
//	  dataDir: "/var/lib/raftd"
//	  addr: "tcp://10.0.0.1:7001"
//
//	cluster:
//	  peers:
//	    - id: 2
//	      addr: "tcp://10.0.0.2:7001"
//	    - id: 3
//	      addr: "tcp://10.0.0.3:7001"
//
//	raft:
//	  tickInterval: 10ms
//	  electionTicks: 15
//	  heartbeatTicks: 3
//	  rpcTimeout: 100ms
//	  maxAppendEntries: 64
//
//	transport:
//	  kind: socket
//	  timeout: 2s
//
//	storage:
//	  pageCacheSize: 256
//	  logFile: raft.log
//	  hardStateFile: hardstate.db
//
//	logging:
//	  level: "info"
//	  format: "json"
//	  output: "stderr"
//
// # Hot Reload
//
// ConfigWatcher polls the file and hands every valid new version to its
// OnChange callback. raftd applies logging.level immediately; other changes
// are reported and take effect on restart (see RestartRequired).
package config
