package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultWatchInterval is how often a [Watcher] stats its file.
const DefaultWatchInterval = 5 * time.Second

// ReloadFunc receives the previous and the freshly loaded configuration.
type ReloadFunc func(prev, next *Config)

// fileState identifies one version of the watched file.
type fileState struct {
	modTime time.Time
	sum     [sha256.Size]byte
}

// Watcher polls a config file and reloads it when its content changes.
// A file that fails to parse or validate is reported and skipped; the last
// good configuration stays current.
type Watcher struct {
	path     string
	interval time.Duration
	onReload ReloadFunc

	mu    sync.Mutex
	cfg   *Config
	state fileState
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval overrides [DefaultWatchInterval]. Non-positive values are ignored.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads path once and returns a watcher primed with it. Polling
// starts with [Watcher.Run]. onReload may be nil.
func NewWatcher(path string, onReload ReloadFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{path: path, interval: DefaultWatchInterval, onReload: onReload}
	for _, opt := range opts {
		opt(w)
	}
	cfg, state, err := readState(path)
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.cfg, w.state = cfg, state
	return w, nil
}

// Current returns the last configuration that loaded cleanly.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg
}

// Run polls until ctx is done. Poll errors are logged, never returned, so a
// broken edit cannot take the process down.
func (w *Watcher) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := w.Poll(); err != nil {
				slog.Warn("config reload skipped", "path", w.path, "err", err)
			}
		}
	}
}

// Poll checks the file once. It reports whether a new configuration was
// installed; onReload has returned by then. An unchanged modification time
// skips the read, and a rewrite with identical bytes is not a change.
func (w *Watcher) Poll() (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return false, err
	}
	w.mu.Lock()
	seen := w.state.modTime
	w.mu.Unlock()
	if info.ModTime().Equal(seen) {
		return false, nil
	}

	cfg, state, err := readState(w.path)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	if state.sum == w.state.sum {
		w.state.modTime = state.modTime
		w.mu.Unlock()
		return false, nil
	}
	prev := w.cfg
	w.cfg, w.state = cfg, state
	w.mu.Unlock()

	slog.Info("config reloaded", "path", w.path)
	if w.onReload != nil {
		w.onReload(prev, cfg)
	}
	return true, nil
}

func readState(path string) (*Config, fileState, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fileState{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fileState{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fileState{}, err
	}
	return cfg, fileState{modTime: info.ModTime(), sum: sha256.Sum256(data)}, nil
}
