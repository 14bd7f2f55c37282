package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/KilimcininKorOglu/raftd/internal/logging"
	"github.com/KilimcininKorOglu/raftd/internal/raft"
)

// simulateOptions holds the parsed simulate flags.
type simulateOptions struct {
	nodes     int
	commands  int
	transport string
	dataDir   string
	dropRate  float64
	timeout   time.Duration
	jsonOut   bool
	logLevel  string
}

// simulateResult summarizes a simulation run.
type simulateResult struct {
	Leader   uint64            `json:"leader"`
	Term     uint64            `json:"term"`
	Commands int               `json:"commands"`
	Keys     int               `json:"keys"`
	Elapsed  string            `json:"elapsed"`
	Nodes    []raft.NodeStatus `json:"nodes"`
}

// simulateCmd handles the simulate command.
func simulateCmd(args []string) int {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := simulateOptions{}
	fs.IntVar(&opts.nodes, "nodes", 3, "Cluster size")
	fs.IntVar(&opts.commands, "commands", 100, "Number of put commands to replicate")
	fs.StringVar(&opts.transport, "transport", raft.TransportMemory, "Transport between nodes: memory, disk")
	fs.StringVar(&opts.dataDir, "data-dir", "", "Keep logs and hard state under this directory")
	fs.Float64Var(&opts.dropRate, "drop-rate", 0, "Fraction of messages dropped by the memory transport")
	fs.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Overall deadline")
	fs.BoolVar(&opts.jsonOut, "json", false, "Print final node status as JSON")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help || *helpLong {
		printSimulateUsage(os.Stdout)
		return 0
	}

	if opts.nodes < 1 {
		fmt.Fprintln(os.Stderr, "Error: -nodes must be at least 1")
		return 1
	}
	if opts.commands < 0 {
		fmt.Fprintln(os.Stderr, "Error: -commands must not be negative")
		return 1
	}
	if opts.dropRate < 0 || opts.dropRate >= 1 {
		fmt.Fprintln(os.Stderr, "Error: -drop-rate must be in [0, 1)")
		return 1
	}
	if opts.transport == raft.TransportDisk && opts.dataDir == "" {
		dir, err := os.MkdirTemp("", "raftd-simulate-")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		defer os.RemoveAll(dir)
		opts.dataDir = dir
	}

	logger := logging.NewWithWriter(os.Stderr, logging.ParseLevel(opts.logLevel), logging.FormatText)

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	result, err := runSimulation(ctx, opts, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Simulation failed: %v\n", err)
		return 1
	}

	if opts.jsonOut {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to marshal result: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	printSimulateResult(os.Stdout, result)
	return 0
}

// runSimulation starts a cluster, replicates opts.commands puts through the
// leader and waits until every node has applied them.
func runSimulation(ctx context.Context, opts simulateOptions, logger logging.Logger) (*simulateResult, error) {
	cluster, err := raft.NewCluster(raft.ClusterConfig{
		Size:      opts.nodes,
		Transport: opts.transport,
		DataDir:   opts.dataDir,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	defer cluster.Stop()

	if err := cluster.Start(ctx); err != nil {
		return nil, err
	}
	if opts.dropRate > 0 && cluster.Network() != nil {
		cluster.Network().SetDropRate(opts.dropRate)
	}

	start := time.Now()
	if _, err := cluster.WaitForLeader(ctx); err != nil {
		return nil, fmt.Errorf("no leader elected: %w", err)
	}

	const clientID = 1
	var last uint64
	for i := 1; i <= opts.commands; i++ {
		cmd := raft.NewPutCommand(uint64(i), fmt.Sprintf("key-%06d", i), []byte(fmt.Sprintf("value-%d", i)))
		index, err := cluster.Propose(ctx, clientID, cmd)
		if err != nil {
			return nil, fmt.Errorf("propose %d: %w", i, err)
		}
		last = index
	}

	if cluster.Network() != nil {
		cluster.Network().Heal()
	}
	if err := cluster.WaitForApplied(ctx, last); err != nil {
		return nil, fmt.Errorf("waiting for index %d on all nodes: %w", last, err)
	}

	result := &simulateResult{
		Commands: opts.commands,
		Elapsed:  time.Since(start).Round(time.Millisecond).String(),
	}
	leader, err := cluster.WaitForLeader(ctx)
	if err != nil {
		return nil, fmt.Errorf("no leader after replication: %w", err)
	}
	result.Leader = leader.ID()
	result.Term = leader.Term()
	result.Keys = cluster.Target(leader.ID()).Len()
	for _, n := range cluster.Nodes() {
		st := n.Status()
		result.Nodes = append(result.Nodes, st)
		if st.Halted {
			return result, fmt.Errorf("node %d halted: %s", st.ID, st.Error)
		}
	}
	return result, nil
}

func printSimulateResult(w io.Writer, r *simulateResult) {
	fmt.Fprintf(w, "Replicated %d commands in %s\n", r.Commands, r.Elapsed)
	fmt.Fprintf(w, "  Leader: node %d (term %d)\n", r.Leader, r.Term)
	fmt.Fprintf(w, "  Keys:   %d\n\n", r.Keys)
	fmt.Fprintf(w, "%-6s %-10s %-6s %-8s %-8s %-8s\n", "NODE", "ROLE", "TERM", "COMMIT", "APPLIED", "LAST")
	for _, st := range r.Nodes {
		fmt.Fprintf(w, "%-6d %-10s %-6d %-8d %-8d %-8d\n", st.ID, st.Role, st.Term, st.CommitIndex, st.LastApplied, st.LastIndex)
	}
}
