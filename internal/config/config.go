package config

import (
	"path/filepath"
	"time"
)

// Transport kinds.
const (
	TransportMemory = "memory"
	TransportDisk   = "disk"
	TransportSocket = "socket"
)

// Config holds the complete node configuration.
type Config struct {
	Node      NodeConfig      `yaml:"node"`
	Cluster   ClusterConfig   `yaml:"cluster"`
	Raft      RaftConfig      `yaml:"raft"`
	Transport TransportConfig `yaml:"transport"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LogConfig       `yaml:"logging"`
}

// NodeConfig identifies the local node.
type NodeConfig struct {
	ID      uint64 `yaml:"id"`
	DataDir string `yaml:"dataDir"`
	Addr    string `yaml:"addr"` // Listen address for the socket transport
}

// ClusterConfig lists the other members of the cluster.
type ClusterConfig struct {
	Peers []PeerConfig `yaml:"peers"`
}

// PeerConfig holds a single peer.
type PeerConfig struct {
	ID   uint64 `yaml:"id"`
	Addr string `yaml:"addr"`
}

// RaftConfig holds protocol timing. Election and heartbeat periods are in
// ticks of TickInterval.
type RaftConfig struct {
	TickInterval     time.Duration `yaml:"tickInterval"`
	ElectionTicks    int           `yaml:"electionTicks"`
	HeartbeatTicks   int           `yaml:"heartbeatTicks"`
	RPCTimeout       time.Duration `yaml:"rpcTimeout"`
	MaxAppendEntries int           `yaml:"maxAppendEntries"`
}

// TransportConfig selects how frames travel between nodes.
type TransportConfig struct {
	Kind         string        `yaml:"kind"`
	SpoolDir     string        `yaml:"spoolDir"`
	PollInterval time.Duration `yaml:"pollInterval"`
	Timeout      time.Duration `yaml:"timeout"`
}

// StorageConfig holds log storage configuration.
type StorageConfig struct {
	PageCacheSize int    `yaml:"pageCacheSize"`
	LogFile       string `yaml:"logFile"`
	HardStateFile string `yaml:"hardStateFile"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ResolvePaths makes the data and spool directories absolute and places
// relative storage file names inside the data directory.
func (c *Config) ResolvePaths() error {
	if c.Node.DataDir != "" {
		abs, err := filepath.Abs(c.Node.DataDir)
		if err != nil {
			return err
		}
		c.Node.DataDir = abs
	}
	if c.Transport.SpoolDir != "" {
		abs, err := filepath.Abs(c.Transport.SpoolDir)
		if err != nil {
			return err
		}
		c.Transport.SpoolDir = abs
	}
	return nil
}

// LogPath returns the log file path.
func (c *Config) LogPath() string {
	return storagePath(c.Node.DataDir, c.Storage.LogFile)
}

// HardStatePath returns the hard state file path.
func (c *Config) HardStatePath() string {
	return storagePath(c.Node.DataDir, c.Storage.HardStateFile)
}

func storagePath(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// PeerAddrs returns the peer addresses by ID.
func (c *Config) PeerAddrs() map[uint64]string {
	addrs := make(map[uint64]string, len(c.Cluster.Peers))
	for _, p := range c.Cluster.Peers {
		addrs[p.ID] = p.Addr
	}
	return addrs
}
