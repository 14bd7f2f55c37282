package config

import "time"

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			ID:      1,
			DataDir: "/var/lib/raftd",
			Addr:    "tcp://127.0.0.1:7001",
		},
		Raft: RaftConfig{
			TickInterval:     10 * time.Millisecond,
			ElectionTicks:    15,
			HeartbeatTicks:   3,
			RPCTimeout:       100 * time.Millisecond,
			MaxAppendEntries: 64,
		},
		Transport: TransportConfig{
			Kind:         TransportSocket,
			SpoolDir:     "",
			PollInterval: 5 * time.Millisecond,
			Timeout:      2 * time.Second,
		},
		Storage: StorageConfig{
			PageCacheSize: 256,
			LogFile:       "raft.log",
			HardStateFile: "hardstate.db",
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}
