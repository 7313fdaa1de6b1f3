package cliconfig

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const defaultDebounce = 100 * time.Millisecond

// Watcher reloads a TOML config file when it changes on disk and hands the
// parsed FileConfig to a callback. Bursts of events are debounced.
type Watcher struct {
	path     string
	apply    func(FileConfig) error
	logger   zerolog.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher
	done    chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for path. apply runs on the watcher's own
// goroutine after every successful reload.
func NewWatcher(path string, apply func(FileConfig) error, logger zerolog.Logger) *Watcher {
	return &Watcher{
		path:     path,
		apply:    apply,
		logger:   logger,
		debounce: defaultDebounce,
		done:     make(chan struct{}),
	}
}

// Start begins watching. The parent directory is watched rather than the
// file itself so editors that replace the file by rename are seen. Start
// returns once the watch is registered; the loop stops when ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.watcher = fw

	go w.run(ctx)
	return nil
}

// Done is closed when the watch loop has exited.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	defer w.watcher.Close()
	defer w.stopTimer()

	name := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) reload() {
	fc, err := LoadFileConfig(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Str("path", w.path).Msg("config reload failed")
		return
	}
	if err := w.apply(fc); err != nil {
		w.logger.Warn().Err(err).Str("path", w.path).Msg("config reload rejected")
		return
	}
	w.logger.Info().Str("path", w.path).Msg("config reloaded")
}

// ApplyLogLevel is a Watcher callback that installs log_level from the file.
// Other keys need a restart.
func ApplyLogLevel(fc FileConfig) error {
	if fc.LogLevel == "" {
		return nil
	}
	return SetLogLevel(fc.LogLevel)
}

// LogLevelReloader returns ApplyLogLevel unless the level was pinned by a
// flag in changed or by KEEVAL_LOG_LEVEL, in which case file reloads leave
// it alone.
func LogLevelReloader(changed map[string]bool) func(FileConfig) error {
	if changed["log-level"] || os.Getenv("KEEVAL_LOG_LEVEL") != "" {
		return func(FileConfig) error { return nil }
	}
	return ApplyLogLevel
}
