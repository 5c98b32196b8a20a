// Configuration file watcher.
//
// Polls file modification times and dispatches debounced change events.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FileOp is the kind of change seen on a watched file.
type FileOp int

const (
	FileOpCreate FileOp = iota
	FileOpWrite
	FileOpRemove
)

var fileOpNames = [...]string{"CREATE", "WRITE", "REMOVE"}

func (op FileOp) String() string {
	if op < 0 || int(op) >= len(fileOpNames) {
		return "UNKNOWN"
	}
	return fileOpNames[op]
}

// FileEvent is one detected change.
type FileEvent struct {
	Path      string    `json:"path"`
	Op        FileOp    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

// FileWatcher polls configuration files and calls back once per path after
// changes settle for the debounce delay.
type FileWatcher struct {
	debounceDelay time.Duration
	pollInterval  time.Duration
	logger        *zap.Logger

	// eventChan feeds the dispatch loop; polling and tests write to it.
	eventChan chan FileEvent

	mu        sync.RWMutex
	paths     []string
	seen      map[string]time.Time
	callbacks []func(FileEvent)
	stop      chan struct{}
}

type WatcherOption func(*FileWatcher)

// WithDebounceDelay sets how long events for a path are coalesced.
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *FileWatcher) { w.debounceDelay = d }
}

func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *FileWatcher) { w.pollInterval = d }
}

func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *FileWatcher) { w.logger = logger.With(zap.String("component", "config_watcher")) }
}

// NewFileWatcher watches paths. A missing file is allowed and reported as
// created once it appears.
func NewFileWatcher(paths []string, opts ...WatcherOption) (*FileWatcher, error) {
	w := &FileWatcher{
		debounceDelay: 100 * time.Millisecond,
		pollInterval:  time.Second,
		logger:        zap.NewNop(),
		eventChan:     make(chan FileEvent, 100),
		seen:          make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		switch _, err := os.Stat(abs); {
		case errors.Is(err, os.ErrNotExist):
			w.logger.Warn("config file missing, waiting for it to appear", zap.String("path", abs))
		case err != nil:
			return nil, fmt.Errorf("stat %s: %w", abs, err)
		}
		w.paths = append(w.paths, abs)
	}
	return w, nil
}

// OnChange registers a callback. Callbacks run on the watcher goroutine.
func (w *FileWatcher) OnChange(callback func(FileEvent)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, callback)
	w.mu.Unlock()
}

// Start polls until ctx is done or Stop is called. Files present at start
// are the baseline and produce no event.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.stop != nil {
		w.mu.Unlock()
		return errors.New("watcher already running")
	}
	w.stop = make(chan struct{})
	for _, p := range w.paths {
		if info, err := os.Stat(p); err == nil {
			w.seen[p] = info.ModTime()
		}
	}
	stop := w.stop
	w.mu.Unlock()

	go w.loop(ctx, stop)
	w.logger.Info("watching config files",
		zap.Strings("paths", w.Paths()),
		zap.Duration("poll", w.pollInterval),
		zap.Duration("debounce", w.debounceDelay))
	return nil
}

// Stop ends the watch. Stopping an idle watcher is a no-op.
func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stop != nil {
		close(w.stop)
		w.stop = nil
		w.logger.Info("config watcher stopped")
	}
	return nil
}

func (w *FileWatcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stop != nil
}

// loop polls on a ticker and keeps the newest pending event per path,
// flushing them once nothing new arrived for debounceDelay.
func (w *FileWatcher) loop(ctx context.Context, stop <-chan struct{}) {
	poll := time.NewTicker(w.pollInterval)
	defer poll.Stop()
	settle := time.NewTimer(w.debounceDelay)
	settle.Stop()
	defer settle.Stop()

	pending := make(map[string]FileEvent)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-poll.C:
			for _, evt := range w.checkFiles() {
				select {
				case w.eventChan <- evt:
				default:
					w.logger.Warn("file event queue full, event dropped", zap.String("path", evt.Path))
				}
			}
		case evt := <-w.eventChan:
			pending[evt.Path] = evt
			settle.Reset(w.debounceDelay)
		case <-settle.C:
			w.dispatch(pending)
			clear(pending)
		}
	}
}

func (w *FileWatcher) dispatch(events map[string]FileEvent) {
	w.mu.RLock()
	callbacks := slices.Clone(w.callbacks)
	w.mu.RUnlock()
	for _, evt := range events {
		w.logger.Debug("config file changed", zap.String("path", evt.Path), zap.Stringer("op", evt.Op))
		for _, cb := range callbacks {
			cb(evt)
		}
	}
}

// checkFiles compares modification times against the previous poll.
func (w *FileWatcher) checkFiles() []FileEvent {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	var events []FileEvent
	emit := func(p string, op FileOp) {
		events = append(events, FileEvent{Path: p, Op: op, Timestamp: now})
	}
	for _, p := range w.paths {
		prev, known := w.seen[p]
		info, err := os.Stat(p)
		switch {
		case err != nil:
			if known && errors.Is(err, os.ErrNotExist) {
				delete(w.seen, p)
				emit(p, FileOpRemove)
			}
		case !known:
			w.seen[p] = info.ModTime()
			emit(p, FileOpCreate)
		case info.ModTime().After(prev):
			w.seen[p] = info.ModTime()
			emit(p, FileOpWrite)
		}
	}
	return events
}

// AddPath starts watching path. Adding a watched path is a no-op.
func (w *FileWatcher) AddPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if slices.Contains(w.paths, abs) {
		return nil
	}
	w.paths = append(w.paths, abs)
	if info, err := os.Stat(abs); err == nil {
		w.seen[abs] = info.ModTime()
	}
	w.logger.Debug("watching path", zap.String("path", abs))
	return nil
}

func (w *FileWatcher) RemovePath(path string) error {
	abs, _ := filepath.Abs(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	i := slices.Index(w.paths, abs)
	if i < 0 {
		return fmt.Errorf("path not watched: %s", path)
	}
	w.paths = slices.Delete(w.paths, i, i+1)
	delete(w.seen, abs)
	return nil
}

func (w *FileWatcher) Paths() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.paths)
}

// Watch reloads the configuration through l whenever its file changes and
// hands the result to onReload. A file that fails to load or validate is
// logged and the previous configuration stays in effect.
func (l *Loader) Watch(ctx context.Context, onReload func(*Config), opts ...WatcherOption) (*FileWatcher, error) {
	if l.configPath == "" {
		return nil, errors.New("no config path to watch")
	}
	w, err := NewFileWatcher([]string{l.configPath}, opts...)
	if err != nil {
		return nil, err
	}
	w.OnChange(func(evt FileEvent) {
		if evt.Op == FileOpRemove {
			return
		}
		cfg, err := l.Load()
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			w.logger.Error("config reload rejected", zap.String("path", evt.Path), zap.Error(err))
			return
		}
		w.logger.Info("config reloaded", zap.String("path", evt.Path))
		onReload(cfg)
	})
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}
