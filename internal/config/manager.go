package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// ConfigManager holds the running configuration and reloads it from its
// file.
type ConfigManager struct {
	config     *Config
	configFile string
	mu         sync.RWMutex
	onUpdate   func(old, new *Config)
}

// NewConfigManager creates a new config manager.
func NewConfigManager(cfg *Config, configFile string) *ConfigManager {
	return &ConfigManager{
		config:     cfg,
		configFile: configFile,
	}
}

// SetOnUpdate sets the callback for config updates.
func (m *ConfigManager) SetOnUpdate(fn func(old, new *Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// GetConfig returns the current config.
func (m *ConfigManager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetConfigFile returns the config file path.
func (m *ConfigManager) GetConfigFile() string {
	return m.configFile
}

// ConfigJSON represents config in JSON format. Durations are rendered as
// strings.
type ConfigJSON struct {
	Node      NodeConfigJSON      `json:"node"`
	Cluster   ClusterConfigJSON   `json:"cluster"`
	Raft      RaftConfigJSON      `json:"raft"`
	Transport TransportConfigJSON `json:"transport"`
	Storage   StorageConfigJSON   `json:"storage"`
	Logging   LogConfigJSON       `json:"logging"`
}

// NodeConfigJSON represents node config in JSON.
type NodeConfigJSON struct {
	ID      uint64 `json:"id"`
	DataDir string `json:"dataDir"`
	Addr    string `json:"addr,omitempty"`
}

// ClusterConfigJSON represents cluster config in JSON.
type ClusterConfigJSON struct {
	Peers []PeerConfigJSON `json:"peers"`
}

// PeerConfigJSON represents a peer in JSON.
type PeerConfigJSON struct {
	ID   uint64 `json:"id"`
	Addr string `json:"addr,omitempty"`
}

// RaftConfigJSON represents raft config in JSON.
type RaftConfigJSON struct {
	TickInterval     string `json:"tickInterval"`
	ElectionTicks    int    `json:"electionTicks"`
	HeartbeatTicks   int    `json:"heartbeatTicks"`
	RPCTimeout       string `json:"rpcTimeout"`
	MaxAppendEntries int    `json:"maxAppendEntries"`
}

// TransportConfigJSON represents transport config in JSON.
type TransportConfigJSON struct {
	Kind         string `json:"kind"`
	SpoolDir     string `json:"spoolDir,omitempty"`
	PollInterval string `json:"pollInterval"`
	Timeout      string `json:"timeout"`
}

// StorageConfigJSON represents storage config in JSON.
type StorageConfigJSON struct {
	PageCacheSize int    `json:"pageCacheSize"`
	LogFile       string `json:"logFile"`
	HardStateFile string `json:"hardStateFile"`
}

// LogConfigJSON represents logging config in JSON.
type LogConfigJSON struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

// ToJSON returns config as a JSON-serializable struct.
func (m *ConfigManager) ToJSON() *ConfigJSON {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := m.config
	peers := make([]PeerConfigJSON, 0, len(c.Cluster.Peers))
	for _, p := range c.Cluster.Peers {
		peers = append(peers, PeerConfigJSON{ID: p.ID, Addr: p.Addr})
	}

	return &ConfigJSON{
		Node: NodeConfigJSON{
			ID:      c.Node.ID,
			DataDir: c.Node.DataDir,
			Addr:    c.Node.Addr,
		},
		Cluster: ClusterConfigJSON{Peers: peers},
		Raft: RaftConfigJSON{
			TickInterval:     c.Raft.TickInterval.String(),
			ElectionTicks:    c.Raft.ElectionTicks,
			HeartbeatTicks:   c.Raft.HeartbeatTicks,
			RPCTimeout:       c.Raft.RPCTimeout.String(),
			MaxAppendEntries: c.Raft.MaxAppendEntries,
		},
		Transport: TransportConfigJSON{
			Kind:         c.Transport.Kind,
			SpoolDir:     c.Transport.SpoolDir,
			PollInterval: c.Transport.PollInterval.String(),
			Timeout:      c.Transport.Timeout.String(),
		},
		Storage: StorageConfigJSON{
			PageCacheSize: c.Storage.PageCacheSize,
			LogFile:       c.Storage.LogFile,
			HardStateFile: c.Storage.HardStateFile,
		},
		Logging: LogConfigJSON{
			Level:  c.Logging.Level,
			Format: c.Logging.Format,
			Output: c.Logging.Output,
		},
	}
}

// GetSection returns a specific config section.
func (m *ConfigManager) GetSection(section string) (interface{}, error) {
	all := m.ToJSON()

	switch strings.ToLower(section) {
	case "node":
		return all.Node, nil
	case "cluster":
		return all.Cluster, nil
	case "raft":
		return all.Raft, nil
	case "transport":
		return all.Transport, nil
	case "storage":
		return all.Storage, nil
	case "logging":
		return all.Logging, nil
	default:
		return nil, fmt.Errorf("unknown section: %s", section)
	}
}

// Reload reloads config from file.
func (m *ConfigManager) Reload() error {
	if m.configFile == "" {
		return fmt.Errorf("no config file configured")
	}

	newConfig, err := LoadConfig(m.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := newConfig.ResolvePaths(); err != nil {
		return fmt.Errorf("failed to resolve paths: %w", err)
	}

	if errs := ValidateConfig(newConfig); len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs[0])
	}

	m.mu.Lock()
	oldConfig := m.config
	m.config = newConfig
	onUpdate := m.onUpdate
	m.mu.Unlock()

	if onUpdate != nil {
		onUpdate(oldConfig, newConfig)
	}

	return nil
}

// SaveToFile saves current config to file.
func (m *ConfigManager) SaveToFile() error {
	if m.configFile == "" {
		return fmt.Errorf("no config file configured")
	}

	if err := os.WriteFile(m.configFile, []byte(m.YAML()), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// YAML renders the current config in the format ParseConfig reads.
func (m *ConfigManager) YAML() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := m.config
	var sb strings.Builder

	sb.WriteString("node:\n")
	sb.WriteString(fmt.Sprintf("  id: %d\n", c.Node.ID))
	sb.WriteString(fmt.Sprintf("  dataDir: %q\n", c.Node.DataDir))
	if c.Node.Addr != "" {
		sb.WriteString(fmt.Sprintf("  addr: %q\n", c.Node.Addr))
	}

	sb.WriteString("\ncluster:\n")
	sb.WriteString("  peers:\n")
	for _, p := range c.Cluster.Peers {
		sb.WriteString(fmt.Sprintf("    - id: %d\n", p.ID))
		if p.Addr != "" {
			sb.WriteString(fmt.Sprintf("      addr: %q\n", p.Addr))
		}
	}

	sb.WriteString("\nraft:\n")
	sb.WriteString(fmt.Sprintf("  tickInterval: %s\n", c.Raft.TickInterval))
	sb.WriteString(fmt.Sprintf("  electionTicks: %d\n", c.Raft.ElectionTicks))
	sb.WriteString(fmt.Sprintf("  heartbeatTicks: %d\n", c.Raft.HeartbeatTicks))
	sb.WriteString(fmt.Sprintf("  rpcTimeout: %s\n", c.Raft.RPCTimeout))
	sb.WriteString(fmt.Sprintf("  maxAppendEntries: %d\n", c.Raft.MaxAppendEntries))

	sb.WriteString("\ntransport:\n")
	sb.WriteString(fmt.Sprintf("  kind: %s\n", c.Transport.Kind))
	if c.Transport.SpoolDir != "" {
		sb.WriteString(fmt.Sprintf("  spoolDir: %q\n", c.Transport.SpoolDir))
	}
	sb.WriteString(fmt.Sprintf("  pollInterval: %s\n", c.Transport.PollInterval))
	sb.WriteString(fmt.Sprintf("  timeout: %s\n", c.Transport.Timeout))

	sb.WriteString("\nstorage:\n")
	sb.WriteString(fmt.Sprintf("  pageCacheSize: %d\n", c.Storage.PageCacheSize))
	sb.WriteString(fmt.Sprintf("  logFile: %q\n", c.Storage.LogFile))
	sb.WriteString(fmt.Sprintf("  hardStateFile: %q\n", c.Storage.HardStateFile))

	sb.WriteString("\nlogging:\n")
	sb.WriteString(fmt.Sprintf("  level: %q\n", c.Logging.Level))
	sb.WriteString(fmt.Sprintf("  format: %q\n", c.Logging.Format))
	sb.WriteString(fmt.Sprintf("  output: %q\n", c.Logging.Output))

	return sb.String()
}

// RestartRequired lists the sections whose changes only take effect after
// a restart. Logging level changes apply immediately.
func RestartRequired(oldCfg, newCfg *Config) []string {
	var sections []string
	if oldCfg.Node != newCfg.Node {
		sections = append(sections, "node")
	}
	if !peersEqual(oldCfg.Cluster.Peers, newCfg.Cluster.Peers) {
		sections = append(sections, "cluster")
	}
	if oldCfg.Raft != newCfg.Raft {
		sections = append(sections, "raft")
	}
	if oldCfg.Transport != newCfg.Transport {
		sections = append(sections, "transport")
	}
	if oldCfg.Storage != newCfg.Storage {
		sections = append(sections, "storage")
	}
	if oldCfg.Logging.Format != newCfg.Logging.Format || oldCfg.Logging.Output != newCfg.Logging.Output {
		sections = append(sections, "logging")
	}
	return sections
}

func peersEqual(a, b []PeerConfig) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
