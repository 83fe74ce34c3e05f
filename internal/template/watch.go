package template

import (
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gridmind/gridmind/internal/logging"
)

// Watcher reloads a template pack directory into a registry when its files
// change. Reload failures keep the previous contracts in place.
type Watcher struct {
	registry *Registry
	dir      string
	logger   *logging.Logger
	onReload func(count int)

	watcher *fsnotify.Watcher
	stop    chan struct{}
}

// NewWatcher creates a pack directory watcher. onReload may be nil.
func NewWatcher(registry *Registry, dir string, logger *logging.Logger, onReload func(count int)) *Watcher {
	return &Watcher{
		registry: registry,
		dir:      dir,
		logger:   logger,
		onReload: onReload,
		stop:     make(chan struct{}),
	}
}

// Start loads the pack once and begins watching. A missing directory is
// tolerated; the watcher simply never fires.
func (w *Watcher) Start() error {
	if err := w.reload(); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		// Watching is best-effort; the initial load already succeeded.
		w.logger.Warn("template watcher unavailable", "error", err)
		return nil
	}
	w.watcher = fw

	if err := fw.Add(w.dir); err != nil {
		w.logger.Debug("template pack dir not watchable", "dir", w.dir, "error", err)
		_ = fw.Close()
		w.watcher = nil
		return nil
	}

	go w.loop()
	return nil
}

// Stop ends the watch loop.
func (w *Watcher) Stop() {
	close(w.stop)
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
}

func (w *Watcher) loop() {
	// Editors fire bursts of events per save; debounce before reloading.
	var pending *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !isPackFile(event.Name) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(200*time.Millisecond, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			if err := w.reload(); err != nil {
				w.logger.Warn("template pack reload failed", "dir", w.dir, "error", err)
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) reload() error {
	contracts, err := LoadPackDir(w.dir)
	if err != nil {
		return err
	}
	for _, c := range contracts {
		if err := w.registry.Register(c); err != nil {
			return err
		}
	}
	if len(contracts) > 0 {
		w.logger.Info("loaded template pack", "dir", w.dir, "templates", len(contracts))
	}
	if w.onReload != nil {
		w.onReload(len(contracts))
	}
	return nil
}
