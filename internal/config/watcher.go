package config

import (
	"hash/crc32"
	"os"
	"sync"
	"time"
)

// fileStamp identifies one version of the watched file. The checksum lets a
// touch or an identical rewrite pass without a reload.
type fileStamp struct {
	modTime time.Time
	size    int64
	sum     uint32
}

func statFile(path string) (fileStamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}, err
	}
	return fileStamp{modTime: info.ModTime(), size: info.Size()}, nil
}

func checksumFile(path string) (uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return crc32.ChecksumIEEE(data), nil
}

// ConfigWatcher polls a config file and hands every valid new version to
// OnChange. Invalid versions go to OnError and the last good config stays
// current.
type ConfigWatcher struct {
	filePath     string
	pollInterval time.Duration
	debounce     time.Duration
	onChange     func(oldCfg, newCfg *Config)
	onError      func(err error)

	mu         sync.Mutex
	stamp      fileStamp
	lastConfig *Config
	running    bool
	stopCh     chan struct{}
	stoppedCh  chan struct{}
}

// WatcherConfig holds config watcher configuration.
type WatcherConfig struct {
	FilePath     string
	PollInterval time.Duration // Default: 100ms
	Debounce     time.Duration // Default: 200ms
	OnChange     func(oldCfg, newCfg *Config)
	OnError      func(err error) // Optional
}

// NewConfigWatcher loads the file once and returns a stopped watcher.
func NewConfigWatcher(cfg *WatcherConfig) (*ConfigWatcher, error) {
	if cfg.FilePath == "" {
		return nil, ErrMissingConfigFile
	}
	if cfg.OnChange == nil {
		return nil, ErrMissingOnChange
	}

	w := &ConfigWatcher{
		filePath:     cfg.FilePath,
		pollInterval: cfg.PollInterval,
		debounce:     cfg.Debounce,
		onChange:     cfg.OnChange,
		onError:      cfg.OnError,
	}
	if w.pollInterval <= 0 {
		w.pollInterval = 100 * time.Millisecond
	}
	if w.debounce <= 0 {
		w.debounce = 200 * time.Millisecond
	}

	stamp, err := statFile(cfg.FilePath)
	if err != nil {
		return nil, err
	}
	if stamp.sum, err = checksumFile(cfg.FilePath); err != nil {
		return nil, err
	}
	initial, err := w.load()
	if err != nil {
		return nil, err
	}
	w.stamp = stamp
	w.lastConfig = initial
	return w, nil
}

// load reads, resolves and validates the file.
func (w *ConfigWatcher) load() (*Config, error) {
	cfg, err := LoadConfig(w.filePath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ResolvePaths(); err != nil {
		return nil, err
	}
	if errs := ValidateConfig(cfg); len(errs) > 0 {
		return nil, errs[0]
	}
	return cfg, nil
}

// Start begins polling. It is a no-op on a running watcher.
func (w *ConfigWatcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.stoppedCh = make(chan struct{})
	go w.watchLoop(w.stopCh, w.stoppedCh)
}

// Stop ends polling and waits for the loop to exit. A pending debounced
// reload is dropped.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stopCh, stoppedCh := w.stopCh, w.stoppedCh
	w.mu.Unlock()

	close(stopCh)
	<-stoppedCh
}

func (w *ConfigWatcher) watchLoop(stopCh <-chan struct{}, stoppedCh chan<- struct{}) {
	defer close(stoppedCh)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Nil until a change is seen; reset by every further change.
	var settle *time.Timer
	var settleC <-chan time.Time
	defer func() {
		if settle != nil {
			settle.Stop()
		}
	}()

	for {
		select {
		case <-stopCh:
			return

		case <-ticker.C:
			changed, err := w.poll()
			if err != nil {
				w.reportError(err)
				continue
			}
			if !changed {
				continue
			}
			if settle != nil {
				settle.Stop()
			}
			settle = time.NewTimer(w.debounce)
			settleC = settle.C

		case <-settleC:
			settle, settleC = nil, nil
			w.reload()
		}
	}
}

// poll reports whether the file's size or modification time moved since the
// last look.
func (w *ConfigWatcher) poll() (bool, error) {
	stamp, err := statFile(w.filePath)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if stamp.modTime.Equal(w.stamp.modTime) && stamp.size == w.stamp.size {
		return false, nil
	}
	stamp.sum = w.stamp.sum
	w.stamp = stamp
	return true, nil
}

// reload swaps in the file's config if its content changed and it is valid.
func (w *ConfigWatcher) reload() {
	sum, err := checksumFile(w.filePath)
	if err != nil {
		w.reportError(err)
		return
	}

	w.mu.Lock()
	unchanged := sum == w.stamp.sum
	w.mu.Unlock()
	if unchanged {
		return
	}

	newConfig, err := w.load()
	if err != nil {
		w.reportError(err)
		return
	}

	w.mu.Lock()
	w.stamp.sum = sum
	oldConfig := w.lastConfig
	w.lastConfig = newConfig
	w.mu.Unlock()

	w.onChange(oldConfig, newConfig)
}

func (w *ConfigWatcher) reportError(err error) {
	if w.onError != nil {
		w.onError(err)
	}
}

// IsRunning reports whether the watcher is polling.
func (w *ConfigWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// GetCurrentConfig returns the last valid config.
func (w *ConfigWatcher) GetCurrentConfig() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastConfig
}
