package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T, path string, onChange func(old, new *Config), onError func(error)) *ConfigWatcher {
	t.Helper()
	w, err := NewConfigWatcher(&WatcherConfig{
		FilePath:     path,
		PollInterval: 10 * time.Millisecond,
		Debounce:     20 * time.Millisecond,
		OnChange:     onChange,
		OnError:      onError,
	})
	if err != nil {
		t.Fatalf("NewConfigWatcher failed: %v", err)
	}
	return w
}

func TestNewConfigWatcherErrors(t *testing.T) {
	noop := func(old, new *Config) {}

	if _, err := NewConfigWatcher(&WatcherConfig{OnChange: noop}); err != ErrMissingConfigFile {
		t.Errorf("expected ErrMissingConfigFile, got %v", err)
	}
	if _, err := NewConfigWatcher(&WatcherConfig{FilePath: "raftd.yaml"}); err != ErrMissingOnChange {
		t.Errorf("expected ErrMissingOnChange, got %v", err)
	}
	if _, err := NewConfigWatcher(&WatcherConfig{FilePath: "/nonexistent/raftd.yaml", OnChange: noop}); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestConfigWatcherDetectsChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raftd.yaml")
	writeConfig(t, path, "node:\n  dataDir: "+dir+"\nlogging:\n  level: info\n")

	changes := make(chan *Config, 4)
	w := newTestWatcher(t, path, func(old, new *Config) {
		if old.Logging.Level == new.Logging.Level {
			return
		}
		changes <- new
	}, nil)
	w.Start()
	defer w.Stop()

	if !w.IsRunning() {
		t.Fatal("watcher should be running")
	}

	writeConfig(t, path, "node:\n  dataDir: "+dir+"\nlogging:\n  level: debug\n")

	select {
	case cfg := <-changes:
		if cfg.Logging.Level != "debug" {
			t.Errorf("level mismatch: got %q, want debug", cfg.Logging.Level)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	if w.GetCurrentConfig().Logging.Level != "debug" {
		t.Errorf("GetCurrentConfig not updated: %q", w.GetCurrentConfig().Logging.Level)
	}
}

func TestConfigWatcherReportsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raftd.yaml")
	writeConfig(t, path, "node:\n  dataDir: "+dir+"\n")

	errCh := make(chan error, 4)
	changed := make(chan struct{}, 4)
	w := newTestWatcher(t, path, func(old, new *Config) {
		changed <- struct{}{}
	}, func(err error) {
		errCh <- err
	})
	w.Start()
	defer w.Stop()

	writeConfig(t, path, "node:\n  dataDir: "+dir+"\n  id: 0\n")

	select {
	case err := <-errCh:
		if ve, ok := err.(ValidationError); !ok || ve.Field != "node.id" {
			t.Errorf("expected node.id validation error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the error callback")
	}

	select {
	case <-changed:
		t.Error("onChange called for an invalid file")
	default:
	}
	if w.GetCurrentConfig().Node.ID != 1 {
		t.Errorf("last good config replaced: id %d", w.GetCurrentConfig().Node.ID)
	}
}

func TestConfigWatcherStartStop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raftd.yaml")
	writeConfig(t, path, "node:\n  dataDir: "+dir+"\n")

	w := newTestWatcher(t, path, func(old, new *Config) {}, nil)

	w.Start()
	w.Start()
	w.Stop()
	w.Stop()

	if w.IsRunning() {
		t.Error("watcher should be stopped")
	}

	w.Start()
	if !w.IsRunning() {
		t.Error("watcher should restart after Stop")
	}
	w.Stop()
}

func TestConfigWatcherIgnoresIdenticalRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raftd.yaml")
	content := "node:\n  dataDir: " + dir + "\n"
	writeConfig(t, path, content)

	changed := make(chan struct{}, 4)
	w := newTestWatcher(t, path, func(old, new *Config) {
		changed <- struct{}{}
	}, nil)
	w.Start()
	defer w.Stop()

	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	select {
	case <-changed:
		t.Error("onChange called for unchanged content")
	case <-time.After(200 * time.Millisecond):
	}
}
