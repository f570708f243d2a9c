package template

import (
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/medrelay-io/medrelay-engine/pkg/watch"
)

// DefaultStopGrace bounds how long Stop waits for the watch loop to
// drain before giving up on it.
const DefaultStopGrace = 5 * time.Second

// Watcher drives registry reloads from a filesystem event source. One
// long-lived loop per process; rapid repeated events for the same file
// are not debounced, they simply serialize through the per-file lock.
type Watcher struct {
	registry *Registry
	source   watch.Source
	logger   *zap.Logger
	done     chan struct{}
}

// NewWatcher wires a registry to an event source. Call Start to begin
// consuming events.
func NewWatcher(registry *Registry, source watch.Source, logger *zap.Logger) *Watcher {
	return &Watcher{
		registry: registry,
		source:   source,
		logger:   logger.Named("template_watcher"),
		done:     make(chan struct{}),
	}
}

// Start launches the watch loop in its own goroutine.
func (w *Watcher) Start() {
	go w.run()
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.source.Events():
			if !ok {
				return
			}
			if !isTemplateFile(ev.Path) {
				continue
			}
			switch ev.Op {
			case watch.OpRemove:
				w.registry.Evict(ev.Path)
			case watch.OpWrite:
				w.registry.HandleFileChange(ev.Path)
			}
		case err := <-w.source.Errors():
			w.logger.Warn("watch source error", zap.Error(err))
		}
	}
}

// Stop closes the event source and waits up to grace for the loop to
// exit. A loop that misses the deadline is abandoned and reported; its
// goroutine dies with the closed event channel.
func (w *Watcher) Stop(grace time.Duration) {
	if grace <= 0 {
		grace = DefaultStopGrace
	}
	if err := w.source.Close(); err != nil {
		w.logger.Warn("closing watch source", zap.Error(err))
	}
	select {
	case <-w.done:
		w.logger.Info("template watcher stopped")
	case <-time.After(grace):
		w.logger.Error("template watcher did not stop within grace period",
			zap.Duration("grace", grace))
	}
}

func isTemplateFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
