package router

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/medrelay-io/medrelay-engine/pkg/apperrors"
	"github.com/medrelay-io/medrelay-engine/pkg/logging"
	"github.com/medrelay-io/medrelay-engine/pkg/models"
	"github.com/medrelay-io/medrelay-engine/pkg/retry"
)

// TenantProvider resolves tenant configuration. Implemented by the
// tenant registry in pkg/config.
type TenantProvider interface {
	Tenant(id string) (*models.Tenant, bool)
	Tenants() []*models.Tenant
}

// Options tune the handles the router builds.
type Options struct {
	QueryTimeout time.Duration
	MaxRows      int
	FetchSize    int
}

func (o *Options) fillDefaults() {
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = DefaultQueryTimeout
	}
	if o.MaxRows <= 0 {
		o.MaxRows = DefaultMaxRows
	}
	if o.FetchSize <= 0 {
		o.FetchSize = DefaultFetchSize
	}
}

// Router lazily creates and caches one SourceConn per (tenant, role).
// Cache key: tenantID + ":" + lowercase(role). Creation of the same key
// is serialized; unrelated keys proceed concurrently.
type Router struct {
	tenants TenantProvider
	logger  *zap.Logger
	opts    Options

	mu    sync.RWMutex
	conns map[string]SourceConn

	building keyLocks
}

// New creates a router over the given tenant provider.
func New(tenants TenantProvider, opts Options, logger *zap.Logger) *Router {
	opts.fillDefaults()
	return &Router{
		tenants:  tenants,
		logger:   logger.Named("router"),
		opts:     opts,
		conns:    make(map[string]SourceConn),
		building: keyLocks{locks: make(map[string]*sync.Mutex)},
	}
}

// keyLocks serializes construction of the same cache key while letting
// unrelated keys connect concurrently. The key space is bounded by the
// tenant roster, so entries are never pruned.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// acquire locks the per-key mutex, creating it on first use. The caller
// must call the returned release function.
func (k *keyLocks) acquire(key string) (release func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func cacheKey(tenantID string, role models.BackendRole) string {
	return tenantID + ":" + strings.ToLower(string(role))
}

// Get returns the cached handle for (tenant, role), building it on the
// first use. Configuration problems (missing tenant, wrong integration
// mode, incomplete credentials) are reported synchronously, never
// silently defaulted.
func (r *Router) Get(ctx context.Context, tenantID string, role models.BackendRole) (SourceConn, error) {
	key := cacheKey(tenantID, role)

	r.mu.RLock()
	conn, ok := r.conns[key]
	r.mu.RUnlock()
	if ok {
		return conn, nil
	}

	return r.create(ctx, key, tenantID, role)
}

// create builds and caches a new handle. Holds only the per-key lock
// while dialing, so a slow or retrying backend for one key never blocks
// lookups or construction for other tenants.
func (r *Router) create(ctx context.Context, key, tenantID string, role models.BackendRole) (SourceConn, error) {
	creds, err := r.resolveCredentials(tenantID, role)
	if err != nil {
		return nil, err
	}

	factory := driverFactory(creds.Driver)
	if factory == nil {
		return nil, fmt.Errorf("%w: %q (tenant %s)", apperrors.ErrUnsupportedDriver, creds.Driver, tenantID)
	}

	release := r.building.acquire(key)
	defer release()

	// Double-check: a concurrent caller may have built it while we
	// waited on the key lock.
	r.mu.RLock()
	conn, ok := r.conns[key]
	r.mu.RUnlock()
	if ok {
		return conn, nil
	}

	cfg := DriverConfig{
		URL:          creds.URL,
		Username:     creds.Username,
		Password:     creds.Password,
		QueryTimeout: r.opts.QueryTimeout,
		MaxRows:      r.opts.MaxRows,
		FetchSize:    r.opts.FetchSize,
	}

	conn, err = retry.DoWithResult(ctx, retry.DefaultConfig(), func() (SourceConn, error) {
		return factory(ctx, cfg)
	})
	if err != nil {
		r.logger.Error("source connection failed",
			zap.String("tenant", tenantID),
			zap.String("role", string(role)),
			zap.String("url", logging.SanitizeDSN(creds.URL)),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, fmt.Errorf("connect tenant %s role %s: %w", tenantID, role, err)
	}

	r.mu.Lock()
	r.conns[key] = conn
	r.mu.Unlock()
	r.logger.Info("source connection established",
		zap.String("tenant", tenantID),
		zap.String("role", string(role)),
		zap.String("driver", creds.Driver),
	)
	return conn, nil
}

// resolveCredentials validates the tenant's configuration for a role.
func (r *Router) resolveCredentials(tenantID string, role models.BackendRole) (models.BackendCredentials, error) {
	var zero models.BackendCredentials

	tenant, ok := r.tenants.Tenant(tenantID)
	if !ok {
		return zero, fmt.Errorf("%w: %s", apperrors.ErrTenantNotFound, tenantID)
	}
	if tenant.Mode != models.IntegrationDatabase {
		return zero, fmt.Errorf("%w: tenant %s is in %q mode", apperrors.ErrNoDatabaseIntegration, tenantID, tenant.Mode)
	}
	creds, ok := tenant.Backend(role)
	if !ok {
		return zero, fmt.Errorf("%w: tenant %s role %s", apperrors.ErrUnknownBackendRole, tenantID, role)
	}

	var missing []string
	if strings.TrimSpace(creds.URL) == "" {
		missing = append(missing, "url")
	}
	if strings.TrimSpace(creds.Username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(creds.Password) == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return zero, fmt.Errorf("%w: tenant %s role %s missing %s",
			apperrors.ErrIncompleteCredentials, tenantID, role, strings.Join(missing, ", "))
	}
	return creds, nil
}

// TestConnection builds (or reuses) the handle and pings the backend.
func (r *Router) TestConnection(ctx context.Context, tenantID string, role models.BackendRole) error {
	conn, err := r.Get(ctx, tenantID, role)
	if err != nil {
		return err
	}
	return conn.Ping(ctx)
}

// Clear drops cached handles for credential rotation or forced
// reconnect. Three granularities:
//
//	Clear("", "")          — all tenants
//	Clear(tenantID, "")    — every role of one tenant
//	Clear(tenantID, role)  — one tenant+role
func (r *Router) Clear(tenantID string, role models.BackendRole) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, conn := range r.conns {
		switch {
		case tenantID == "":
			// clear everything
		case role == "":
			if !strings.HasPrefix(key, tenantID+":") {
				continue
			}
		default:
			if key != cacheKey(tenantID, role) {
				continue
			}
		}
		if err := conn.Close(); err != nil {
			r.logger.Warn("closing source connection",
				zap.String("key", key),
				zap.String("error", logging.SanitizeError(err)))
		}
		delete(r.conns, key)
	}
}

// Close drops every cached handle.
func (r *Router) Close() {
	r.Clear("", "")
}

// Size returns the number of cached handles.
func (r *Router) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
