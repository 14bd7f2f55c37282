package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/KilimcininKorOglu/raftd/internal/config"
	"github.com/KilimcininKorOglu/raftd/internal/logging"
	"github.com/KilimcininKorOglu/raftd/internal/raft"
)

// Server errors.
var (
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrServerNotRunning     = errors.New("server is not running")
	ErrUnsupportedTransport = errors.New("transport kind cannot connect separate processes")
)

// haltPollInterval is how often the server checks whether its node halted.
const haltPollInterval = 100 * time.Millisecond

// NodeServer runs one cluster member with a key-value state machine.
type NodeServer struct {
	config         *config.Config
	configFile     string
	configManager  *config.ConfigManager
	configWatcher  *config.ConfigWatcher
	logger         logging.Logger
	node           *raft.Node
	store          *raft.KVStore
	statusInterval time.Duration
	overrides      func(*config.Config) error // Flag and env overrides, reapplied on reload
	running        bool
	stopCh         chan struct{}
	haltCh         chan struct{}
	wg             sync.WaitGroup
	mu             sync.Mutex
}

// NewServer opens the node's storage and transport as configured. The
// configuration must already be validated.
func NewServer(cfg *config.Config) (*NodeServer, error) {
	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	return newServerWithLogger(cfg, logger)
}

func newServerWithLogger(cfg *config.Config, logger logging.Logger) (*NodeServer, error) {
	if cfg.Transport.Kind == config.TransportMemory {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTransport, cfg.Transport.Kind)
	}

	if err := os.MkdirAll(cfg.Node.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	log, err := raft.OpenLogFile(cfg.LogPath(), cfg.Storage.PageCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}

	hard, err := raft.OpenKVHardStateStore(cfg.HardStatePath())
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to open hard state: %w", err)
	}

	transport, err := newTransport(cfg)
	if err != nil {
		log.Close()
		hard.Close()
		return nil, err
	}

	store := raft.NewKVStore()
	node, err := raft.NewNode(nodeConfig(cfg), log, hard, transport, store)
	if err != nil {
		log.Close()
		hard.Close()
		transport.Close()
		return nil, fmt.Errorf("failed to create node: %w", err)
	}
	node.SetLogger(logger)

	logger.Info("node opened",
		"node", cfg.Node.ID,
		"transport", cfg.Transport.Kind,
		"peers", len(cfg.Cluster.Peers),
		"lastIndex", log.LastIndex(),
		"term", node.Term(),
	)

	return &NodeServer{
		config:         cfg,
		logger:         logger,
		node:           node,
		store:          store,
		statusInterval: 10 * time.Second,
		stopCh:         make(chan struct{}),
		haltCh:         make(chan struct{}),
	}, nil
}

// newTransport builds the transport selected by cfg.
func newTransport(cfg *config.Config) (raft.Transport, error) {
	switch cfg.Transport.Kind {
	case config.TransportSocket:
		t := raft.NewSocketTransport(cfg.Node.Addr, cfg.PeerAddrs())
		if cfg.Transport.Timeout > 0 {
			t.SetTimeout(cfg.Transport.Timeout)
		}
		return t, nil
	case config.TransportDisk:
		t, err := raft.NewDiskTransport(cfg.Transport.SpoolDir, cfg.Node.ID, cfg.Transport.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("failed to open spool: %w", err)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTransport, cfg.Transport.Kind)
	}
}

// nodeConfig converts the file configuration to a node configuration.
func nodeConfig(cfg *config.Config) *raft.NodeConfig {
	nc := &raft.NodeConfig{
		ID:               cfg.Node.ID,
		TickInterval:     cfg.Raft.TickInterval,
		ElectionTicks:    cfg.Raft.ElectionTicks,
		HeartbeatTicks:   cfg.Raft.HeartbeatTicks,
		RPCTimeout:       cfg.Raft.RPCTimeout,
		MaxAppendEntries: cfg.Raft.MaxAppendEntries,
	}
	for _, p := range cfg.Cluster.Peers {
		nc.Peers = append(nc.Peers, &raft.Peer{ID: p.ID, Addr: p.Addr})
	}
	return nc
}

// Start starts the node and the status reporter.
func (s *NodeServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrServerAlreadyRunning
	}
	if err := s.node.Start(); err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}
	s.running = true

	s.wg.Add(1)
	go s.monitor()

	s.logger.Info("node started", "node", s.node.ID())
	return nil
}

// monitor logs periodic status lines and closes haltCh when the node halts.
func (s *NodeServer) monitor() {
	defer s.wg.Done()

	haltTicker := time.NewTicker(haltPollInterval)
	defer haltTicker.Stop()

	var statusCh <-chan time.Time
	if s.statusInterval > 0 {
		statusTicker := time.NewTicker(s.statusInterval)
		defer statusTicker.Stop()
		statusCh = statusTicker.C
	}

	for {
		select {
		case <-s.stopCh:
			return
		case <-statusCh:
			s.logStatus()
		case <-haltTicker.C:
			if s.node.Halted() {
				s.logger.Error("node halted", "node", s.node.ID(), "error", s.node.Err())
				close(s.haltCh)
				return
			}
		}
	}
}

func (s *NodeServer) logStatus() {
	st := s.node.Status()
	s.logger.Info("status",
		"role", st.Role,
		"term", st.Term,
		"leader", st.LeaderID,
		"commitIndex", st.CommitIndex,
		"lastApplied", st.LastApplied,
		"lastIndex", st.LastIndex,
		"keys", s.store.Len(),
	)
}

// Halted is closed when the node stops after a durability failure.
func (s *NodeServer) Halted() <-chan struct{} {
	return s.haltCh
}

// Stop stops the node, waiting at most until ctx is done.
func (s *NodeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrServerNotRunning
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	if s.configWatcher != nil {
		s.configWatcher.Stop()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		s.node.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("node stopped", "node", s.node.ID())
	return s.node.Err()
}

// Close releases the node's storage when the server was never started.
func (s *NodeServer) Close() {
	s.node.Stop()
}

// serveCmd handles the serve command.
func serveCmd(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	configFile := fs.String("config", "", "Path to configuration file")
	nodeID := fs.Uint64("id", 0, "Node ID (overrides config)")
	addr := fs.String("addr", "", "Listen address (overrides config)")
	dataDir := fs.String("data-dir", "", "Data directory path (overrides config)")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	statusInterval := fs.Duration("status-interval", 10*time.Second, "Period of status log lines")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help || *helpLong {
		printServeUsage(os.Stdout)
		return 0
	}

	var cfg *config.Config
	var err error

	if *configFile != "" {
		cfg, err = config.LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			return 1
		}
	} else {
		cfg = config.DefaultConfig()
	}

	// Flags override the file; environment variables override both.
	overrides := func(c *config.Config) error {
		if *nodeID != 0 {
			c.Node.ID = *nodeID
		}
		if *addr != "" {
			c.Node.Addr = *addr
		}
		if *dataDir != "" {
			c.Node.DataDir = *dataDir
		}
		if *logLevel != "" {
			c.Logging.Level = *logLevel
		}
		if err := applyEnvOverrides(c); err != nil {
			return fmt.Errorf("invalid environment override: %w", err)
		}
		return c.ResolvePaths()
	}
	if err := overrides(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if !reportValidation(cfg) {
		return 1
	}

	srv, err := NewServer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create server: %v\n", err)
		return 1
	}
	srv.statusInterval = *statusInterval
	srv.overrides = overrides

	if *configFile != "" {
		srv.configFile = *configFile
		srv.configManager = config.NewConfigManager(cfg, *configFile)
		srv.configManager.SetOnUpdate(srv.handleConfigReload)

		watcher, err := config.NewConfigWatcher(&config.WatcherConfig{
			FilePath: *configFile,
			OnChange: srv.handleConfigReload,
			OnError: func(err error) {
				srv.logger.Warn("config reload failed", "file", *configFile, "error", err)
			},
		})
		if err != nil {
			srv.logger.Warn("failed to create config watcher", "error", err)
		} else {
			srv.configWatcher = watcher
		}
	}

	if err := srv.Start(); err != nil {
		srv.Close()
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		return 1
	}
	if srv.configWatcher != nil {
		srv.configWatcher.Start()
		srv.logger.Info("config file watcher started", "file", *configFile)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				srv.handleSIGHUP()
			case syscall.SIGINT, syscall.SIGTERM:
				srv.logger.Info("received signal, shutting down", "signal", sig.String())
				return srv.shutdown()
			}

		case <-srv.Halted():
			srv.shutdown()
			fmt.Fprintf(os.Stderr, "Node halted: %v\n", srv.node.Err())
			return 1
		}
	}
}

// shutdown stops the server with a deadline and returns the exit code.
func (s *NodeServer) shutdown() int {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.Stop(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", err)
		return 1
	}
	return 0
}

// handleSIGHUP reloads the configuration file.
func (s *NodeServer) handleSIGHUP() {
	s.logger.Info("received SIGHUP, reloading configuration")

	if s.configManager == nil {
		s.logger.Warn("no config file configured, nothing to reload")
		return
	}
	if err := s.configManager.Reload(); err != nil {
		s.logger.Error("config reload failed", "error", err)
	}
}

// handleConfigReload applies a reloaded file. The file's config is compared
// with the running one after the command-line and environment overrides are
// applied again; only the log level takes effect at once.
func (s *NodeServer) handleConfigReload(_, newCfg *config.Config) {
	if s.overrides != nil {
		if err := s.overrides(newCfg); err != nil {
			s.logger.Warn("config reload ignored", "error", err)
			return
		}
	}

	s.mu.Lock()
	oldCfg := s.config
	s.mu.Unlock()

	s.logger.Info("config file changed, applying hot-reloadable settings")

	if !strings.EqualFold(oldCfg.Logging.Level, newCfg.Logging.Level) {
		s.logger.SetLevel(logging.ParseLevel(newCfg.Logging.Level))
		s.logger.Info("log level changed", "old", oldCfg.Logging.Level, "new", newCfg.Logging.Level)
	}

	if sections := config.RestartRequired(oldCfg, newCfg); len(sections) > 0 {
		s.logger.Warn("configuration change requires restart", "sections", strings.Join(sections, ","))
	}

	s.mu.Lock()
	s.config = newCfg
	s.mu.Unlock()
}
