package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRun_NoArgs(t *testing.T) {
	exitCode := run([]string{"raftd"})
	if exitCode != 1 {
		t.Errorf("expected exit code 1 for no args, got %d", exitCode)
	}
}

func TestRun_Help(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"help command", []string{"raftd", "help"}},
		{"short flag", []string{"raftd", "-h"}},
		{"long flag", []string{"raftd", "--help"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exitCode := run(tt.args)
			if exitCode != 0 {
				t.Errorf("expected exit code 0 for help, got %d", exitCode)
			}
		})
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	exitCode := run([]string{"raftd", "unknown"})
	if exitCode != 1 {
		t.Errorf("expected exit code 1 for unknown command, got %d", exitCode)
	}
}

func TestRun_Version(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"full", []string{"raftd", "version"}},
		{"short", []string{"raftd", "version", "-short"}},
		{"format", []string{"raftd", "version", "-format"}},
		{"help", []string{"raftd", "version", "-h"}},
		{"long help", []string{"raftd", "version", "-help"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exitCode := run(tt.args)
			if exitCode != 0 {
				t.Errorf("expected exit code 0 for %v, got %d", tt.args, exitCode)
			}
		})
	}
}

func TestPrintVersion(t *testing.T) {
	tests := []struct {
		name     string
		print    func(w *bytes.Buffer)
		expected []string
		absent   []string
	}{
		{
			"full",
			func(w *bytes.Buffer) { printVersion(w) },
			[]string{"raftd version " + version, "512-byte pages", "459 payload bytes", "511 on overflow", "1=AppendEntries"},
			nil,
		},
		{
			"format",
			func(w *bytes.Buffer) { printFormat(w) },
			[]string{"0=RequestVote", "2=RequestVoteReply", "3=AppendEntriesReply"},
			[]string{"raftd version"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.print(&buf)
			out := buf.String()
			for _, s := range tt.expected {
				if !strings.Contains(out, s) {
					t.Errorf("output missing %q:\n%s", s, out)
				}
			}
			for _, s := range tt.absent {
				if strings.Contains(out, s) {
					t.Errorf("output contains %q:\n%s", s, out)
				}
			}
		})
	}
}

func TestRun_SubcommandHelp(t *testing.T) {
	for _, cmd := range []string{"serve", "simulate", "inspect"} {
		t.Run(cmd, func(t *testing.T) {
			exitCode := run([]string{"raftd", cmd, "-h"})
			if exitCode != 0 {
				t.Errorf("expected exit code 0 for %s help, got %d", cmd, exitCode)
			}
		})
	}
}

func TestRun_Config(t *testing.T) {
	exitCode := run([]string{"raftd", "config"})
	if exitCode != 0 {
		t.Errorf("expected exit code 0 for config (shows help), got %d", exitCode)
	}
}

func TestRun_ConfigHelp(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"help subcommand", []string{"raftd", "config", "help"}},
		{"short flag", []string{"raftd", "config", "-h"}},
		{"long flag", []string{"raftd", "config", "--help"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exitCode := run(tt.args)
			if exitCode != 0 {
				t.Errorf("expected exit code 0 for config help, got %d", exitCode)
			}
		})
	}
}

func TestRun_ConfigUnknownSubcommand(t *testing.T) {
	exitCode := run([]string{"raftd", "config", "unknown"})
	if exitCode != 1 {
		t.Errorf("expected exit code 1 for unknown config subcommand, got %d", exitCode)
	}
}

func TestRun_ConfigValidateWithConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "raftd.yaml")

	validConfig := `
node:
  id: 1
  dataDir: "/var/lib/raftd"
  addr: "tcp://127.0.0.1:7001"

cluster:
  peers:
    - id: 2
      addr: "tcp://127.0.0.1:7002"
`
	if err := os.WriteFile(configPath, []byte(validConfig), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	exitCode := run([]string{"raftd", "config", "validate", "-config", configPath})
	if exitCode != 0 {
		t.Errorf("expected exit code 0 for config validate with config, got %d", exitCode)
	}
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	printUsage(&buf)

	output := buf.String()

	expectedStrings := []string{
		"raftd - Raft consensus node",
		"Usage:",
		"raftd <command> [options]",
		"serve",
		"simulate",
		"inspect",
		"config",
		"version",
	}

	for _, expected := range expectedStrings {
		if !strings.Contains(output, expected) {
			t.Errorf("expected usage to contain %q", expected)
		}
	}
}

func TestPrintCommandUsage(t *testing.T) {
	tests := []struct {
		name     string
		print    func(w *bytes.Buffer)
		expected []string
	}{
		{"serve", func(w *bytes.Buffer) { printServeUsage(w) }, []string{"-config", "-id", "-addr", "-data-dir", "SIGHUP"}},
		{"simulate", func(w *bytes.Buffer) { printSimulateUsage(w) }, []string{"-nodes", "-commands", "-transport", "-drop-rate"}},
		{"inspect", func(w *bytes.Buffer) { printInspectUsage(w) }, []string{"-log", "-commands", "Exit status is 2"}},
		{"config", func(w *bytes.Buffer) { printConfigUsage(w) }, []string{"validate", "init", "show"}},
		{"version", func(w *bytes.Buffer) { printVersionUsage(w) }, []string{"-short", "-format"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.print(&buf)
			for _, expected := range tt.expected {
				if !strings.Contains(buf.String(), expected) {
					t.Errorf("expected %s usage to contain %q", tt.name, expected)
				}
			}
		})
	}
}
