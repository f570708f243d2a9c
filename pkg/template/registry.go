package template

import (
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
)

// Registry is a thread-safe cache of parsed query templates keyed by
// file path. Readers never observe a partially-written entry: templates
// are parsed off-lock and swapped in whole.
type Registry struct {
	logger *zap.Logger

	mu        sync.RWMutex
	templates map[string]*models.QueryTemplate // path -> template
	names     map[string]string                // logical name -> path, populated lazily

	locks *fileLocks

	inFlightReloads atomic.Int64
	totalReloads    atomic.Int64
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:    logger.Named("registry"),
		templates: make(map[string]*models.QueryTemplate),
		names:     make(map[string]string),
		locks:     newFileLocks(),
	}
}

// Get returns the cached template for path, loading it on a miss.
// Returns nil when the file is missing or invalid.
func (r *Registry) Get(path string) *models.QueryTemplate {
	r.mu.RLock()
	tpl, ok := r.templates[path]
	r.mu.RUnlock()
	if ok {
		return tpl
	}
	return r.Load(path)
}

// GetByName returns a template by its logical query name. The name→path
// index is populated the first time a path is loaded, so a name lookup
// only succeeds after the backing path has been loaded at least once.
func (r *Registry) GetByName(name string) *models.QueryTemplate {
	r.mu.RLock()
	path, ok := r.names[name]
	var tpl *models.QueryTemplate
	if ok {
		tpl = r.templates[path]
	}
	r.mu.RUnlock()
	return tpl
}

// Load reads, parses and validates the file at path, replacing any
// cached entry on success. On failure the cache is left unchanged and
// nil is returned.
func (r *Registry) Load(path string) *models.QueryTemplate {
	release := r.locks.acquire(path)
	defer release()
	return r.loadLocked(path)
}

// loadLocked performs the actual load. Caller holds the per-file lock.
func (r *Registry) loadLocked(path string) *models.QueryTemplate {
	r.inFlightReloads.Add(1)
	defer r.inFlightReloads.Add(-1)
	r.totalReloads.Add(1)

	data, err := os.ReadFile(path)
	if err != nil {
		r.logger.Warn("template file unreadable", zap.String("path", path), zap.Error(err))
		return nil
	}

	tpl, err := Parse(data)
	if err != nil {
		r.logger.Warn("template parse failed", zap.String("path", path), zap.Error(err))
		return nil
	}
	tpl.Path = path

	if !Validate(tpl, r.logger) {
		return nil
	}

	r.mu.Lock()
	r.templates[path] = tpl
	r.names[tpl.Name] = path
	r.mu.Unlock()

	r.logger.Info("template loaded",
		zap.String("path", path), zap.String("name", tpl.Name))
	return tpl
}

// HandleFileChange is invoked by the filesystem watcher: the stale entry
// is removed and the file reloaded. Concurrent calls for the same path
// serialize on the per-file lock; unrelated paths proceed in parallel.
func (r *Registry) HandleFileChange(path string) {
	release := r.locks.acquire(path)
	defer release()

	r.mu.Lock()
	delete(r.templates, path)
	r.mu.Unlock()

	r.loadLocked(path)
}

// Evict removes the entry for path without reloading. Used when the
// underlying file was deleted.
func (r *Registry) Evict(path string) {
	release := r.locks.acquire(path)
	defer release()

	r.mu.Lock()
	if tpl, ok := r.templates[path]; ok {
		delete(r.templates, path)
		if r.names[tpl.Name] == path {
			delete(r.names, tpl.Name)
		}
	}
	r.mu.Unlock()
	r.logger.Info("template evicted", zap.String("path", path))
}

// ReloadAll reloads every known path from a snapshot of the cache and
// returns the number of successful reloads. One failing file does not
// abort the batch.
func (r *Registry) ReloadAll() int {
	r.mu.RLock()
	paths := make([]string, 0, len(r.templates))
	for path := range r.templates {
		paths = append(paths, path)
	}
	r.mu.RUnlock()

	count := 0
	for _, path := range paths {
		if r.Load(path) != nil {
			count++
		}
	}
	r.logger.Info("reload sweep finished",
		zap.Int("reloaded", count), zap.Int("known", len(paths)))
	return count
}

// Len returns the number of cached templates.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.templates)
}

// ReloadStats reports the in-flight and cumulative reload counters.
func (r *Registry) ReloadStats() (inFlight, total int64) {
	return r.inFlightReloads.Load(), r.totalReloads.Load()
}
