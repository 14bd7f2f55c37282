package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig validates the configuration and returns a list of validation errors.
// An empty slice indicates the configuration is valid.
func ValidateConfig(config *Config) []error {
	var errs []error

	errs = append(errs, validateNodeConfig(&config.Node, config.Transport.Kind)...)
	errs = append(errs, validateClusterConfig(&config.Cluster, config.Node.ID, config.Transport.Kind)...)
	errs = append(errs, validateRaftConfig(&config.Raft)...)
	errs = append(errs, validateTransportConfig(&config.Transport)...)
	errs = append(errs, validateStorageConfig(&config.Storage)...)
	errs = append(errs, validateLogConfig(&config.Logging)...)

	return errs
}

// validateNodeConfig validates the local node.
func validateNodeConfig(config *NodeConfig, transport string) []error {
	var errs []error

	if config.ID == 0 {
		errs = append(errs, ValidationError{
			Field:   "node.id",
			Message: "must be non-zero",
		})
	}

	if config.DataDir == "" {
		errs = append(errs, ValidationError{
			Field:   "node.dataDir",
			Message: "data directory is required",
		})
	}

	if transport == TransportSocket {
		if config.Addr == "" {
			errs = append(errs, ValidationError{
				Field:   "node.addr",
				Message: "listen address is required for the socket transport",
			})
		} else if err := validateAddress(config.Addr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "node.addr",
				Message: err.Error(),
			})
		}
	}

	return errs
}

// validateClusterConfig validates the peer list.
func validateClusterConfig(config *ClusterConfig, selfID uint64, transport string) []error {
	var errs []error

	seen := map[uint64]bool{}
	for i, peer := range config.Peers {
		field := fmt.Sprintf("cluster.peers[%d]", i)
		switch {
		case peer.ID == 0:
			errs = append(errs, ValidationError{Field: field + ".id", Message: "must be non-zero"})
		case peer.ID == selfID:
			errs = append(errs, ValidationError{Field: field + ".id", Message: "must differ from node.id"})
		case seen[peer.ID]:
			errs = append(errs, ValidationError{Field: field + ".id", Message: fmt.Sprintf("duplicate peer id %d", peer.ID)})
		}
		seen[peer.ID] = true

		if transport == TransportSocket {
			if peer.Addr == "" {
				errs = append(errs, ValidationError{Field: field + ".addr", Message: "address is required for the socket transport"})
			} else if err := validateAddress(peer.Addr); err != nil {
				errs = append(errs, ValidationError{Field: field + ".addr", Message: err.Error()})
			}
		}
	}

	return errs
}

// validateRaftConfig validates protocol timing.
func validateRaftConfig(config *RaftConfig) []error {
	var errs []error

	if config.TickInterval <= 0 {
		errs = append(errs, ValidationError{
			Field:   "raft.tickInterval",
			Message: "must be positive",
		})
	}
	if config.ElectionTicks <= 0 {
		errs = append(errs, ValidationError{
			Field:   "raft.electionTicks",
			Message: "must be positive",
		})
	}
	if config.HeartbeatTicks <= 0 {
		errs = append(errs, ValidationError{
			Field:   "raft.heartbeatTicks",
			Message: "must be positive",
		})
	} else if config.HeartbeatTicks >= config.ElectionTicks {
		errs = append(errs, ValidationError{
			Field:   "raft.heartbeatTicks",
			Message: "must be below raft.electionTicks",
		})
	}
	if config.RPCTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "raft.rpcTimeout",
			Message: "must be positive",
		})
	}
	if config.MaxAppendEntries <= 0 {
		errs = append(errs, ValidationError{
			Field:   "raft.maxAppendEntries",
			Message: "must be positive",
		})
	}

	return errs
}

// validateTransportConfig validates the transport selection.
func validateTransportConfig(config *TransportConfig) []error {
	var errs []error

	switch config.Kind {
	case TransportMemory, TransportSocket:
	case TransportDisk:
		if config.SpoolDir == "" {
			errs = append(errs, ValidationError{
				Field:   "transport.spoolDir",
				Message: "spool directory is required for the disk transport",
			})
		}
		if config.PollInterval <= 0 {
			errs = append(errs, ValidationError{
				Field:   "transport.pollInterval",
				Message: "must be positive",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "transport.kind",
			Message: "must be memory, disk, or socket",
		})
	}

	if config.Timeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "transport.timeout",
			Message: "must be non-negative",
		})
	}

	return errs
}

// validateStorageConfig validates storage configuration.
func validateStorageConfig(config *StorageConfig) []error {
	var errs []error

	if config.PageCacheSize < 0 {
		errs = append(errs, ValidationError{
			Field:   "storage.pageCacheSize",
			Message: "must be non-negative",
		})
	}
	if config.LogFile == "" {
		errs = append(errs, ValidationError{
			Field:   "storage.logFile",
			Message: "log file name is required",
		})
	}
	if config.HardStateFile == "" {
		errs = append(errs, ValidationError{
			Field:   "storage.hardStateFile",
			Message: "hard state file name is required",
		})
	} else if config.HardStateFile == config.LogFile {
		errs = append(errs, ValidationError{
			Field:   "storage.hardStateFile",
			Message: "must differ from storage.logFile",
		})
	}

	return errs
}

// validateLogConfig validates logging configuration.
func validateLogConfig(config *LogConfig) []error {
	var errs []error

	// Validate log level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if config.Level != "" && !validLevels[strings.ToLower(config.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: "must be debug, info, warn, or error",
		})
	}

	// Validate log format
	validFormats := map[string]bool{"text": true, "json": true}
	if config.Format != "" && !validFormats[strings.ToLower(config.Format)] {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: "must be text or json",
		})
	}

	// Validate output
	if config.Output != "" && config.Output != "stdout" && config.Output != "stderr" {
		// Check if it's a valid file path
		dir := filepath.Dir(config.Output)
		if !filepath.IsAbs(config.Output) {
			errs = append(errs, ValidationError{
				Field:   "logging.output",
				Message: "must be stdout, stderr, or an absolute file path",
			})
		} else if _, err := os.Stat(dir); os.IsNotExist(err) {
			errs = append(errs, ValidationError{
				Field:   "logging.output",
				Message: fmt.Sprintf("directory %s does not exist", dir),
			})
		}
	}

	return errs
}

// validateAddress validates a network address in host:port format. A
// scheme prefix such as "tcp://" is allowed.
func validateAddress(addr string) error {
	if idx := strings.Index(addr, "://"); idx != -1 {
		scheme := addr[:idx]
		if scheme != "tcp" {
			return fmt.Errorf("unsupported scheme %q", scheme)
		}
		addr = addr[idx+3:]
	}

	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address format: %v", err)
	}

	if port == "" {
		return fmt.Errorf("port is required")
	}

	return nil
}
