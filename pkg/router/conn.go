// Package router resolves tenant+role pairs to pooled source-database
// connections. One handle is cached per (tenant, backend role); tenants
// without database integration are refused synchronously.
package router

import (
	"context"
	"sync"
	"time"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
)

// Default execution limits applied to every source query.
const (
	DefaultQueryTimeout = 60 * time.Second
	DefaultMaxRows      = 2000
	DefaultFetchSize    = 500
)

// SourceConn is a pooled handle to one tenant+role backend. Shared
// read-only by query executions; never mutated after creation except
// replacement on explicit cache clear.
type SourceConn interface {
	// Query executes a read-only statement with named arguments and
	// returns at most the configured row cap.
	Query(ctx context.Context, sqlText string, args map[string]any) (*models.SourceResult, error)

	// Ping verifies the backend is reachable with valid credentials.
	Ping(ctx context.Context) error

	// Close releases the underlying pool.
	Close() error
}

// DriverConfig is handed to a driver factory when a handle is built.
type DriverConfig struct {
	URL          string
	Username     string
	Password     string
	QueryTimeout time.Duration
	MaxRows      int
	FetchSize    int
}

// DriverFactory builds a SourceConn for one backend.
type DriverFactory func(ctx context.Context, cfg DriverConfig) (SourceConn, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]DriverFactory)
)

// RegisterDriver is called by each driver package's init function.
// Thread-safe for concurrent init calls.
func RegisterDriver(name string, factory DriverFactory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = factory
}

// driverFactory returns the factory for a driver name, or nil.
func driverFactory(name string) DriverFactory {
	driversMu.RLock()
	defer driversMu.RUnlock()
	return drivers[name]
}

// RegisteredDrivers lists the compiled-in driver names.
func RegisteredDrivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	return names
}
