package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/comfortablynumb/pmp-unit-test/internal/observability"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits for a burst of events to settle
const DefaultDebounce = 100 * time.Millisecond

// Watcher re-runs a check over fixture directories whenever a fixture file
// changes
type Watcher struct {
	dirs     []string
	watcher  *fsnotify.Watcher
	onChange func() error
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
}

// NewWatcher creates a watcher over dirs calling onChange after each burst of
// fixture changes
func NewWatcher(onChange func() error, dirs ...string) (*Watcher, error) {
	if len(dirs) == 0 {
		return nil, fmt.Errorf("no fixture directories to watch")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		dirs:     dirs,
		watcher:  fw,
		onChange: onChange,
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
	}, nil
}

// SetDebounce overrides the debounce window
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

// Start adds every directory tree and begins watching in the background
func (w *Watcher) Start() error {
	for _, dir := range w.dirs {
		if err := w.addTree(dir); err != nil {
			return err
		}
	}

	go w.loop()

	observability.Info("Watching fixtures", zap.Strings("dirs", w.dirs))
	return nil
}

// addTree watches dir and its subdirectories, creating dir when missing
func (w *Watcher) addTree(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create fixtures directory: %w", err)
		}
	}

	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			observability.Warn("Watcher error", zap.Error(err))

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	yamlFile := isYAMLFile(event.Name)

	switch {
	case event.Has(fsnotify.Create) && isDirectory(event.Name):
		if err := w.addTree(event.Name); err != nil {
			observability.Warn("Failed to watch new directory", zap.String("dir", event.Name), zap.Error(err))
		}
		w.schedule(event)
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		if yamlFile {
			w.schedule(event)
		}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// a removed path can no longer be stat'ed, so directories are
		// recognised by their missing extension
		if yamlFile || filepath.Ext(event.Name) == "" {
			w.schedule(event)
		}
	}
}

func (w *Watcher) schedule(event fsnotify.Event) {
	observability.Debug("Fixture change", zap.String("path", event.Name), zap.String("op", event.Op.String()))

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if err := w.onChange(); err != nil {
			observability.Warn("Fixture check failed", zap.Error(err))
			return
		}
		observability.Info("Fixtures rechecked")
	})
}

// Close stops watching and cancels a pending check
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	select {
	case <-w.done:
	default:
		close(w.done)
	}
	return w.watcher.Close()
}

func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func isDirectory(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
