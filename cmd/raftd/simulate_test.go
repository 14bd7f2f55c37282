package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/KilimcininKorOglu/raftd/internal/logging"
	"github.com/KilimcininKorOglu/raftd/internal/raft"
)

func TestRunSimulation(t *testing.T) {
	tests := []struct {
		name string
		opts simulateOptions
	}{
		{"single node", simulateOptions{nodes: 1, commands: 10, transport: raft.TransportMemory}},
		{"three nodes", simulateOptions{nodes: 3, commands: 25, transport: raft.TransportMemory}},
		{"message loss", simulateOptions{nodes: 3, commands: 10, transport: raft.TransportMemory, dropRate: 0.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()

			result, err := runSimulation(ctx, tt.opts, logging.NewNop())
			if err != nil {
				t.Fatalf("runSimulation failed: %v", err)
			}
			if result.Leader == 0 {
				t.Error("no leader reported")
			}
			if result.Keys != tt.opts.commands {
				t.Errorf("key count mismatch: got %d, want %d", result.Keys, tt.opts.commands)
			}
			if len(result.Nodes) != tt.opts.nodes {
				t.Fatalf("node count mismatch: got %d, want %d", len(result.Nodes), tt.opts.nodes)
			}
			// Every command plus at least one leader no-op.
			for _, st := range result.Nodes {
				if st.LastApplied < uint64(tt.opts.commands)+1 {
					t.Errorf("node %d applied %d entries", st.ID, st.LastApplied)
				}
			}
		})
	}
}

func TestRunSimulation_DiskTransport(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	opts := simulateOptions{nodes: 3, commands: 5, transport: raft.TransportDisk, dataDir: t.TempDir()}
	result, err := runSimulation(ctx, opts, logging.NewNop())
	if err != nil {
		t.Fatalf("runSimulation failed: %v", err)
	}
	if result.Keys != 5 {
		t.Errorf("key count mismatch: got %d, want 5", result.Keys)
	}
}

func TestSimulateCmd(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{"help", []string{"-h"}, 0},
		{"memory", []string{"-nodes", "3", "-commands", "5"}, 0},
		{"json", []string{"-nodes", "1", "-commands", "2", "-json"}, 0},
		{"disk in temp dir", []string{"-nodes", "2", "-commands", "3", "-transport", "disk"}, 0},
		{"zero nodes", []string{"-nodes", "0"}, 1},
		{"negative commands", []string{"-commands", "-1"}, 1},
		{"bad drop rate", []string{"-drop-rate", "1"}, 1},
		{"unknown transport", []string{"-transport", "socket"}, 1},
		{"invalid flag", []string{"-bogus"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := simulateCmd(tt.args); code != tt.wantCode {
				t.Errorf("expected exit code %d, got %d", tt.wantCode, code)
			}
		})
	}
}

func TestPrintSimulateResult(t *testing.T) {
	var buf bytes.Buffer
	printSimulateResult(&buf, &simulateResult{
		Leader:   2,
		Term:     3,
		Commands: 4,
		Keys:     4,
		Elapsed:  "12ms",
		Nodes: []raft.NodeStatus{
			{ID: 1, Role: "follower", Term: 3, CommitIndex: 5, LastApplied: 5, LastIndex: 5},
			{ID: 2, Role: "leader", Term: 3, CommitIndex: 5, LastApplied: 5, LastIndex: 5},
		},
	})

	out := buf.String()
	for _, want := range []string{"Replicated 4 commands in 12ms", "node 2 (term 3)", "leader", "follower"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}
