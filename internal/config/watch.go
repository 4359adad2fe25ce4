package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher hot-reloads the per-source enable flags when the config file
// changes on disk. Only the flags reload; everything else keeps the values
// from boot and requires a restart.
type Watcher struct {
	path string
	log  *zap.Logger
	fw   *fsnotify.Watcher

	mu      sync.RWMutex
	sources map[string]bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher starts watching the config file. A nil return with no error
// means there is no file to watch.
func NewWatcher(path string, initial map[string]bool, log *zap.Logger) (*Watcher, error) {
	if path == "" {
		return nil, nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors replace files on save, which drops a
	// watch set on the file itself.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		path:    path,
		log:     log,
		fw:      fw,
		sources: cloneFlags(initial),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// SourceEnabled reports the current flag for a source, defaulting to true.
func (w *Watcher) SourceEnabled(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	enabled, ok := w.sources[name]
	if !ok {
		return true
	}
	return enabled
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.fw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.log.Warn("config reload failed, keeping current flags",
			zap.String("path", w.path), zap.Error(err))
		return
	}
	w.mu.Lock()
	w.sources = cloneFlags(cfg.Scraper.Sources)
	w.mu.Unlock()
	w.log.Info("source enable flags reloaded",
		zap.String("path", w.path), zap.Int("flags", len(cfg.Scraper.Sources)))
}

func cloneFlags(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
