package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Parser errors.
var (
	ErrInvalidYAML       = errors.New("invalid YAML format")
	ErrInvalidDuration   = errors.New("invalid duration format")
	ErrInvalidNumber     = errors.New("invalid number format")
	ErrFileNotFound      = errors.New("configuration file not found")
	ErrMissingConfigFile = errors.New("config file path is required")
	ErrMissingOnChange   = errors.New("onChange callback is required")
)

// envPattern matches ${VAR} and ${VAR:-default}.
var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// LoadConfig reads the file at path and parses it with ParseConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig substitutes environment variables in data and parses it on
// top of DefaultConfig, so keys missing from data keep their defaults.
func ParseConfig(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := parseYAML(substituteEnvVars(data), config); err != nil {
		return nil, err
	}
	return config, nil
}

// substituteEnvVars expands ${VAR} to the variable's value and
// ${VAR:-default} to the value or, when unset or empty, the default.
func substituteEnvVars(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := string(match[2 : len(match)-1])
		name, fallback, hasDefault := strings.Cut(name, ":-")
		val := os.Getenv(name)
		if val == "" && hasDefault {
			val = fallback
		}
		return []byte(val)
	})
}

// yamlNode is a "key: value" line or a list element, with the nodes
// indented beneath it. List elements have no key.
type yamlNode struct {
	key      string
	value    string
	indent   int
	children []*yamlNode
}

// parseYAML parses the subset of YAML the config file uses: nested maps of
// scalars and lists of maps, structured by indentation.
func parseYAML(data []byte, config *Config) error {
	root, err := buildTree(string(data))
	if err != nil {
		return err
	}
	return applyConfig(root, config)
}

// buildTree arranges the lines of data into a tree by indentation.
func buildTree(data string) (*yamlNode, error) {
	root := &yamlNode{indent: -1}
	stack := []*yamlNode{root}

	for n, raw := range strings.Split(data, "\n") {
		line := stripComment(raw)
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := countIndent(line)
		text := strings.TrimSpace(line)

		for len(stack) > 1 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1]

		if item, ok := strings.CutPrefix(text, "- "); ok {
			// The element's first key shares the dash line; its other keys
			// are indented past the dash.
			elem := &yamlNode{indent: indent}
			parent.children = append(parent.children, elem)
			stack = append(stack, elem)
			if !strings.Contains(item, ":") {
				elem.value = unquote(strings.TrimSpace(item))
				continue
			}
			parent, text, indent = elem, item, indent+2
		}

		key, value, ok := strings.Cut(text, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: line %d: %q", ErrInvalidYAML, n+1, strings.TrimSpace(raw))
		}

		node := &yamlNode{key: key, value: unquote(strings.TrimSpace(value)), indent: indent}
		parent.children = append(parent.children, node)
		stack = append(stack, node)
	}

	return root, nil
}

// countIndent returns the width of the leading whitespace; a tab counts as two.
func countIndent(line string) int {
	width := 0
	for _, ch := range line {
		switch ch {
		case ' ':
			width++
		case '\t':
			width += 2
		default:
			return width
		}
	}
	return width
}

// stripComment cuts a # comment that starts the line or follows whitespace,
// outside quotes.
func stripComment(line string) string {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote == '"' && c == '\\':
			i++
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '#' && (i == 0 || line[i-1] == ' ' || line[i-1] == '\t'):
			return line[:i]
		}
	}
	return line
}

// unquote removes surrounding quotes. Double-quoted values may use Go
// escapes, which is what YAML() writes.
func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	switch {
	case s[0] == '"' && s[len(s)-1] == '"':
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
		return s[1 : len(s)-1]
	case s[0] == '\'' && s[len(s)-1] == '\'':
		return s[1 : len(s)-1]
	}
	return s
}

// applyConfig applies parsed YAML nodes to the config struct. Unknown keys
// are ignored.
func applyConfig(root *yamlNode, config *Config) error {
	for _, node := range root.children {
		var err error
		switch node.key {
		case "node":
			err = applyNodeConfig(node, &config.Node)
		case "cluster":
			err = applyClusterConfig(node, &config.Cluster)
		case "raft":
			err = applyRaftConfig(node, &config.Raft)
		case "transport":
			err = applyTransportConfig(node, &config.Transport)
		case "storage":
			err = applyStorageConfig(node, &config.Storage)
		case "logging":
			err = applyLogConfig(node, &config.Logging)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// applyNodeConfig applies node configuration.
func applyNodeConfig(node *yamlNode, config *NodeConfig) error {
	for _, child := range node.children {
		switch child.key {
		case "id":
			if child.value != "" {
				val, err := strconv.ParseUint(child.value, 10, 64)
				if err != nil {
					return fmt.Errorf("%w: node.id", ErrInvalidNumber)
				}
				config.ID = val
			}
		case "dataDir":
			if child.value != "" {
				config.DataDir = child.value
			}
		case "addr":
			if child.value != "" {
				config.Addr = child.value
			}
		}
	}
	return nil
}

// applyClusterConfig applies cluster configuration.
func applyClusterConfig(node *yamlNode, config *ClusterConfig) error {
	for _, child := range node.children {
		switch child.key {
		case "peers":
			peers, err := parseClusterPeers(child)
			if err != nil {
				return err
			}
			config.Peers = peers
		}
	}
	return nil
}

// parseClusterPeers parses cluster peer configurations.
func parseClusterPeers(node *yamlNode) ([]PeerConfig, error) {
	var peers []PeerConfig
	for _, child := range node.children {
		peer := PeerConfig{}
		for _, peerChild := range child.children {
			switch peerChild.key {
			case "id":
				val, err := strconv.ParseUint(peerChild.value, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("%w: cluster.peers.id", ErrInvalidNumber)
				}
				peer.ID = val
			case "addr":
				peer.Addr = peerChild.value
			}
		}
		if peer.ID > 0 || peer.Addr != "" {
			peers = append(peers, peer)
		}
	}
	return peers, nil
}

// applyRaftConfig applies protocol timing configuration.
func applyRaftConfig(node *yamlNode, config *RaftConfig) error {
	for _, child := range node.children {
		if child.value == "" {
			continue
		}
		var err error
		switch child.key {
		case "tickInterval":
			config.TickInterval, err = parseDuration(child.value)
		case "electionTicks":
			config.ElectionTicks, err = parseInt("raft.electionTicks", child.value)
		case "heartbeatTicks":
			config.HeartbeatTicks, err = parseInt("raft.heartbeatTicks", child.value)
		case "rpcTimeout":
			config.RPCTimeout, err = parseDuration(child.value)
		case "maxAppendEntries":
			config.MaxAppendEntries, err = parseInt("raft.maxAppendEntries", child.value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// applyTransportConfig applies transport configuration.
func applyTransportConfig(node *yamlNode, config *TransportConfig) error {
	for _, child := range node.children {
		if child.value == "" {
			continue
		}
		var err error
		switch child.key {
		case "kind":
			config.Kind = strings.ToLower(child.value)
		case "spoolDir":
			config.SpoolDir = child.value
		case "pollInterval":
			config.PollInterval, err = parseDuration(child.value)
		case "timeout":
			config.Timeout, err = parseDuration(child.value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// applyStorageConfig applies storage configuration.
func applyStorageConfig(node *yamlNode, config *StorageConfig) error {
	for _, child := range node.children {
		if child.value == "" {
			continue
		}
		switch child.key {
		case "pageCacheSize":
			val, err := parseInt("storage.pageCacheSize", child.value)
			if err != nil {
				return err
			}
			config.PageCacheSize = val
		case "logFile":
			config.LogFile = child.value
		case "hardStateFile":
			config.HardStateFile = child.value
		}
	}
	return nil
}

// applyLogConfig applies logging configuration.
func applyLogConfig(node *yamlNode, config *LogConfig) error {
	for _, child := range node.children {
		switch child.key {
		case "level":
			if child.value != "" {
				config.Level = child.value
			}
		case "format":
			if child.value != "" {
				config.Format = child.value
			}
		case "output":
			if child.value != "" {
				config.Output = child.value
			}
		}
	}
	return nil
}

func parseInt(field, s string) (int, error) {
	val, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidNumber, field)
	}
	return val, nil
}

// parseDuration parses a duration string supporting formats like "30s", "5m", "1h", "90d".
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	// Check for day suffix (not supported by time.ParseDuration)
	if strings.HasSuffix(s, "d") {
		numStr := strings.TrimSuffix(s, "d")
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, ErrInvalidDuration
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	// Use standard library for other formats
	dur, err := time.ParseDuration(s)
	if err != nil {
		return 0, ErrInvalidDuration
	}
	return dur, nil
}
