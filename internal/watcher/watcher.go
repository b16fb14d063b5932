// Package watcher triggers a callback when watched files change, coalescing
// bursts of filesystem events into a single call.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 300 * time.Millisecond

// Config configures a Watcher.
type Config struct {
	// Files are the paths whose changes trigger OnChange. Their parent
	// directories are watched so atomic replace-by-rename is seen.
	Files    []string
	Debounce time.Duration
	OnChange func() error
	Logger   *zap.Logger
}

// Watcher runs OnChange after the watched files settle.
type Watcher struct {
	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	files    map[string]struct{}
	dirs     []string
	debounce time.Duration
	onChange func() error
	logger   *zap.Logger

	pending   bool
	lastEvent time.Time
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New creates a Watcher. Call Start to begin watching.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Files) == 0 {
		return nil, errors.New("watcher: no files to watch")
	}
	if cfg.OnChange == nil {
		return nil, errors.New("watcher: OnChange is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	files := make(map[string]struct{}, len(cfg.Files))
	seenDirs := make(map[string]struct{})
	var dirs []string
	for _, f := range cfg.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("watcher: resolve %s: %w", f, err)
		}
		files[abs] = struct{}{}
		dir := filepath.Dir(abs)
		if _, ok := seenDirs[dir]; !ok {
			seenDirs[dir] = struct{}{}
			dirs = append(dirs, dir)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}
	return &Watcher{
		fsw:      fsw,
		files:    files,
		dirs:     dirs,
		debounce: debounce,
		onChange: cfg.OnChange,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start adds the watched directories and starts the event loop. It is
// non-blocking. Missing directories are created so a later build output is
// still observed.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	for _, dir := range w.dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			w.logger.Warn("create watch dir failed", zap.String("dir", dir), zap.Error(err))
		}
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.logger.Info("watching directory", zap.String("dir", dir))
	}

	// running is only set once run owns doneCh.
	w.running = true
	go w.run(ctx)
	return nil
}

// Stop ends the event loop and releases the fsnotify watcher. Safe to call
// more than once and before Start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	if wasRunning {
		select {
		case <-w.stopCh:
		default:
			close(w.stopCh)
		}
		<-w.doneCh
	}
	if err := w.fsw.Close(); err != nil {
		w.logger.Warn("close watcher failed", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounce / 3
	if tick <= 0 {
		tick = time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", zap.Error(err))
		case <-ticker.C:
			w.fireIfSettled()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}
	if _, ok := w.files[name]; !ok {
		return
	}
	w.logger.Debug("file changed", zap.String("file", name), zap.String("op", event.Op.String()))
	w.mu.Lock()
	w.pending = true
	w.lastEvent = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) fireIfSettled() {
	w.mu.Lock()
	if !w.pending || time.Since(w.lastEvent) < w.debounce {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.mu.Unlock()

	start := time.Now()
	if err := w.onChange(); err != nil {
		w.logger.Error("rebuild failed, keeping previous build", zap.Error(err))
		return
	}
	w.logger.Info("rebuilt", zap.Duration("elapsed", time.Since(start)))
}
