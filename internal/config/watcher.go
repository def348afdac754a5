package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"roost/pkg/logging"
)

// DefaultDebounceInterval is how long the watcher waits after the last
// file change before reloading, so an editor writing in several steps
// triggers one reload.
const DefaultDebounceInterval = 500 * time.Millisecond

// Watcher reloads the agent configuration when the config file changes and
// hands the result to the OnChange callback. It watches the containing
// directory rather than the file itself because most editors replace the
// file on save, which would drop a watch on the file's inode.
type Watcher struct {
	path          string
	installFolder string
	onChange      func(AgentConfig)

	mu        sync.Mutex
	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}
	running   bool

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

// NewWatcher creates a watcher for the config file at path. onChange
// receives each successfully reloaded configuration.
func NewWatcher(path, installFolder string, onChange func(AgentConfig)) *Watcher {
	return &Watcher{
		path:          path,
		installFolder: installFolder,
		onChange:      onChange,
	}
}

// Start begins watching. Failure to set up the file-system watcher is
// returned; the agent then runs with its startup configuration.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		fsWatcher.Close()
		return err
	}

	w.fsWatcher = fsWatcher
	w.stopCh = make(chan struct{})
	w.running = true

	go w.processEvents(fsWatcher.Events, fsWatcher.Errors)

	logging.Info("ConfigWatcher", "Watching %s for changes", w.path)
	return nil
}

// Stop ends watching and cancels any pending debounced reload.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.running = false
	close(w.stopCh)

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.debounceMu.Unlock()

	if err := w.fsWatcher.Close(); err != nil {
		logging.Warn("ConfigWatcher", "Error closing watcher: %v", err)
	}
	w.fsWatcher = nil
	logging.Info("ConfigWatcher", "Stopped")
}

func (w *Watcher) processEvents(events <-chan fsnotify.Event, errors <-chan error) {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-errors:
			if !ok {
				return
			}
			logging.Error("ConfigWatcher", err, "File watch error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	logging.Debug("ConfigWatcher", "Config file changed: %s", event.Op)
	w.reloadDebounced()
}

func (w *Watcher) reloadDebounced() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(DefaultDebounceInterval, w.reload)
}

func (w *Watcher) reload() {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()
	if !running {
		return
	}

	config, err := Load(w.path, w.installFolder)
	if err != nil {
		// Keep the previous configuration when the new file is bad.
		logging.Error("ConfigWatcher", err, "Reload failed, keeping previous configuration")
		return
	}
	if w.onChange != nil {
		w.onChange(config)
	}
}
