package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage information to the given writer.
func printUsage(w io.Writer) {
	fmt.Fprint(w, `raftd - Raft consensus node with a paged durable log

Usage:
  raftd <command> [options]

Commands:
  serve       Run a single cluster member
  simulate    Run a local cluster and replicate test commands
  inspect     Scan a log file and print its entries
  config      Configuration management
  version     Show version information

Use "raftd <command> -h" for more information about a command.
`)
}

// printServeUsage prints the serve command usage.
func printServeUsage(w io.Writer) {
	fmt.Fprint(w, `Run a single cluster member

Usage:
  raftd serve [options]

Options:
  -config string
        Path to configuration file
  -id uint
        Node ID (overrides config)
  -addr string
        Listen address for the socket transport (overrides config)
  -data-dir string
        Data directory path (overrides config)
  -log-level string
        Log level: debug, info, warn, error (overrides config)
  -status-interval duration
        Period of status log lines, 0 disables (default 10s)
  -h, -help
        Show this help message

Environment Variables:
  RAFTD_NODE_ID            Override node ID
  RAFTD_NODE_ADDR          Override listen address
  RAFTD_NODE_DATA_DIR      Override data directory path
  RAFTD_TRANSPORT_KIND     Override transport kind
  RAFTD_LOGGING_LEVEL      Override log level

Signals:
  SIGHUP reloads the configuration file. Log level changes apply at once;
  other changes are reported and take effect on restart.
`)
}

// printSimulateUsage prints the simulate command usage.
func printSimulateUsage(w io.Writer) {
	fmt.Fprint(w, `Run a local cluster and replicate test commands

Usage:
  raftd simulate [options]

Options:
  -nodes int
        Cluster size (default 3)
  -commands int
        Number of put commands to replicate (default 100)
  -transport string
        Transport between nodes: memory, disk (default "memory")
  -data-dir string
        Keep logs and hard state under this directory instead of in memory
  -drop-rate float
        Fraction of messages dropped by the memory transport
  -timeout duration
        Overall deadline (default 30s)
  -json
        Print final node status as JSON
  -log-level string
        Log level: debug, info, warn, error (default "warn")
  -h, -help
        Show this help message
`)
}

// printInspectUsage prints the inspect command usage.
func printInspectUsage(w io.Writer) {
	fmt.Fprint(w, `Scan a log file and print its entries

Usage:
  raftd inspect [options]

Options:
  -log string
        Path to the log file (required)
  -commands
        Decode key-value commands
  -quiet
        Print only the summary
  -h, -help
        Show this help message

Exit status is 2 when the log contains a corrupt or incomplete entry.
`)
}

// printConfigUsage prints the config command usage.
func printConfigUsage(w io.Writer) {
	fmt.Fprint(w, `Configuration management

Usage:
  raftd config <subcommand> [options]

Subcommands:
  validate    Validate configuration file
  init        Generate default configuration
  show        Show effective configuration

Use "raftd config <subcommand> -h" for more information.
`)
}

// printVersionUsage prints the version command usage.
func printVersionUsage(w io.Writer) {
	fmt.Fprint(w, `Show version information

Usage:
  raftd version [options]

Options:
  -short
        Show only version number
  -format
        Show only the log page format and RPC frame kinds
  -h, -help
        Show this help message
`)
}
