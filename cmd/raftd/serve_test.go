package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/KilimcininKorOglu/raftd/internal/config"
	"github.com/KilimcininKorOglu/raftd/internal/logging"
	"github.com/KilimcininKorOglu/raftd/internal/raft"
)

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// diskConfig returns a valid single-node config using the disk transport.
func diskConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Node.DataDir = filepath.Join(dir, "data")
	cfg.Transport.Kind = config.TransportDisk
	cfg.Transport.SpoolDir = filepath.Join(dir, "spool")
	cfg.Raft.ElectionTicks = 5
	cfg.Raft.HeartbeatTicks = 1
	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
		t.Fatalf("test config invalid: %v", errs)
	}
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, out *syncBuffer) *NodeServer {
	t.Helper()
	logger := logging.NewWithWriter(out, logging.LevelInfo, logging.FormatText)
	srv, err := newServerWithLogger(cfg, logger)
	if err != nil {
		t.Fatalf("newServerWithLogger failed: %v", err)
	}
	return srv
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestServeCmd_Help(t *testing.T) {
	for _, args := range [][]string{{"-h"}, {"-help"}} {
		if code := serveCmd(args); code != 0 {
			t.Errorf("expected exit code 0 for %v, got %d", args, code)
		}
	}
}

func TestServeCmd_InvalidFlag(t *testing.T) {
	if code := serveCmd([]string{"-invalid-flag"}); code != 1 {
		t.Errorf("expected exit code 1 for invalid flag, got %d", code)
	}
}

func TestServeCmd_ConfigFileNotFound(t *testing.T) {
	if code := serveCmd([]string{"-config", "/nonexistent/raftd.yaml"}); code != 1 {
		t.Errorf("expected exit code 1 for nonexistent config file, got %d", code)
	}
}

func TestServeCmd_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raftd.yaml")
	invalid := `
node:
  id: 0
raft:
  maxAppendEntries: -1
`
	if err := os.WriteFile(path, []byte(invalid), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if code := serveCmd([]string{"-config", path}); code != 1 {
		t.Errorf("expected exit code 1 for invalid config, got %d", code)
	}
}

func TestServeCmd_MemoryTransportRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raftd.yaml")
	content := "node:\n  dataDir: " + t.TempDir() + "\ntransport:\n  kind: memory\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if code := serveCmd([]string{"-config", path}); code != 1 {
		t.Errorf("expected exit code 1 for memory transport, got %d", code)
	}
}

func TestNewServer_MemoryTransport(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Node.DataDir = t.TempDir()
	cfg.Transport.Kind = config.TransportMemory

	if _, err := NewServer(cfg); !errors.Is(err, ErrUnsupportedTransport) {
		t.Errorf("expected ErrUnsupportedTransport, got %v", err)
	}
}

func TestNodeConfigFromFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Node.ID = 2
	cfg.Cluster.Peers = []config.PeerConfig{{ID: 1, Addr: "tcp://a:1"}, {ID: 3, Addr: "tcp://c:3"}}

	nc := nodeConfig(cfg)
	if err := nc.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if nc.ID != 2 || len(nc.Peers) != 2 || nc.Peers[1].Addr != "tcp://c:3" {
		t.Errorf("node config mismatch: %+v", nc)
	}
	if nc.ElectionTicks != cfg.Raft.ElectionTicks || nc.RPCTimeout != cfg.Raft.RPCTimeout {
		t.Errorf("timing mismatch: %+v", nc)
	}
}

func TestNodeServer_StartStop(t *testing.T) {
	cfg := diskConfig(t)
	out := &syncBuffer{}
	srv := newTestServer(t, cfg, out)
	srv.statusInterval = 20 * time.Millisecond

	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := srv.Start(); err != ErrServerAlreadyRunning {
		t.Errorf("expected ErrServerAlreadyRunning, got %v", err)
	}

	// A node without peers elects itself.
	waitUntil(t, 5*time.Second, srv.node.IsLeader, "single node to lead")
	waitUntil(t, 5*time.Second, func() bool {
		return strings.Contains(out.String(), "role=leader")
	}, "a status line")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := srv.Stop(ctx); err != ErrServerNotRunning {
		t.Errorf("expected ErrServerNotRunning, got %v", err)
	}
}

func TestNodeServer_RestartKeepsLog(t *testing.T) {
	cfg := diskConfig(t)

	srv := newTestServer(t, cfg, &syncBuffer{})
	srv.statusInterval = 0
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitUntil(t, 5*time.Second, srv.node.IsLeader, "single node to lead")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := srv.node.Propose(ctx, 1, raft.NewPutCommand(1, "k", []byte("v"))); err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	lastIndex := srv.node.Log().LastIndex()
	term := srv.node.Term()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	reopened := newTestServer(t, cfg, &syncBuffer{})
	defer reopened.Close()
	if got := reopened.node.Log().LastIndex(); got != lastIndex {
		t.Errorf("LastIndex mismatch after restart: got %d, want %d", got, lastIndex)
	}
	if got := reopened.node.Term(); got != term {
		t.Errorf("Term mismatch after restart: got %d, want %d", got, term)
	}
}

func TestNodeServer_CorruptLogRefused(t *testing.T) {
	cfg := diskConfig(t)
	if err := os.MkdirAll(cfg.Node.DataDir, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	garbage := bytes.Repeat([]byte{0x7F}, 512)
	if err := os.WriteFile(cfg.LogPath(), garbage, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := newServerWithLogger(cfg, logging.NewNop())
	if !errors.Is(err, raft.ErrCorruptEntry) {
		t.Errorf("expected ErrCorruptEntry, got %v", err)
	}
}

func TestHandleConfigReload_LogLevel(t *testing.T) {
	cfg := diskConfig(t)
	out := &syncBuffer{}
	srv := newTestServer(t, cfg, out)
	defer srv.Close()

	newCfg := *cfg
	newCfg.Logging.Level = "error"
	srv.handleConfigReload(cfg, &newCfg)

	before := out.String()
	srv.logger.Info("should be filtered")
	if out.String() != before {
		t.Error("info line written after raising the level to error")
	}
	srv.logger.Error("should pass")
	if !strings.Contains(out.String(), "should pass") {
		t.Error("error line missing after level change")
	}
	if srv.config != &newCfg {
		t.Error("config not replaced")
	}
}

func TestHandleConfigReload_RestartRequired(t *testing.T) {
	cfg := diskConfig(t)
	out := &syncBuffer{}
	srv := newTestServer(t, cfg, out)
	defer srv.Close()

	newCfg := *cfg
	newCfg.Raft.ElectionTicks = 50
	srv.handleConfigReload(cfg, &newCfg)

	if !strings.Contains(out.String(), "requires restart") || !strings.Contains(out.String(), "raft") {
		t.Errorf("expected restart warning, got %q", out.String())
	}
}

func TestHandleSIGHUP_NoConfigFile(t *testing.T) {
	cfg := diskConfig(t)
	out := &syncBuffer{}
	srv := newTestServer(t, cfg, out)
	defer srv.Close()

	srv.handleSIGHUP()
	if !strings.Contains(out.String(), "nothing to reload") {
		t.Errorf("expected warning, got %q", out.String())
	}
}

func TestHandleConfigReload_ReappliesOverrides(t *testing.T) {
	cfg := diskConfig(t)
	out := &syncBuffer{}
	srv := newTestServer(t, cfg, out)
	defer srv.Close()

	dataDir := cfg.Node.DataDir
	srv.overrides = func(c *config.Config) error {
		c.Node.DataDir = dataDir
		return c.ResolvePaths()
	}

	// The file on its own points elsewhere; the override wins again.
	newCfg := *cfg
	newCfg.Node.DataDir = "/somewhere/else"
	srv.handleConfigReload(cfg, &newCfg)

	if strings.Contains(out.String(), "requires restart") {
		t.Errorf("overridden field reported as changed: %q", out.String())
	}
	if srv.config.Node.DataDir != dataDir {
		t.Errorf("DataDir = %q, want %q", srv.config.Node.DataDir, dataDir)
	}
}
