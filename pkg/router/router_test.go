package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medrelay-io/medrelay-engine/pkg/apperrors"
	"github.com/medrelay-io/medrelay-engine/pkg/models"
)

type fakeConn struct {
	id     string
	closed bool
	mu     sync.Mutex
}

func (f *fakeConn) Query(context.Context, string, map[string]any) (*models.SourceResult, error) {
	return &models.SourceResult{}, nil
}
func (f *fakeConn) Ping(context.Context) error { return nil }
func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type staticTenants map[string]*models.Tenant

func (s staticTenants) Tenant(id string) (*models.Tenant, bool) {
	t, ok := s[id]
	return t, ok
}
func (s staticTenants) Tenants() []*models.Tenant {
	out := make([]*models.Tenant, 0, len(s))
	for _, t := range s {
		out = append(out, t)
	}
	return out
}

func dbTenant(id string) *models.Tenant {
	return &models.Tenant{
		ID:      id,
		Mode:    models.IntegrationDatabase,
		Enabled: true,
		Backends: map[models.BackendRole]models.BackendCredentials{
			models.RolePrimary: {Driver: "fake", URL: "fake://" + id, Username: "u", Password: "p"},
			models.RoleLab:     {Driver: "fake", URL: "fake://" + id + "-lab", Username: "u", Password: "p"},
		},
	}
}

func init() {
	RegisterDriver("fake", func(ctx context.Context, cfg DriverConfig) (SourceConn, error) {
		return &fakeConn{id: cfg.URL}, nil
	})
}

func newTestRouter(tenants staticTenants) *Router {
	return New(tenants, Options{}, zap.NewNop())
}

func TestGetCachesPerTenantRole(t *testing.T) {
	r := newTestRouter(staticTenants{
		"tenantA": dbTenant("tenantA"),
		"tenantB": dbTenant("tenantB"),
	})
	ctx := context.Background()

	a1, err := r.Get(ctx, "tenantA", models.RolePrimary)
	require.NoError(t, err)
	a2, err := r.Get(ctx, "tenantA", models.RolePrimary)
	require.NoError(t, err)
	assert.Same(t, a1, a2, "same key must return the cached handle")

	b, err := r.Get(ctx, "tenantB", models.RolePrimary)
	require.NoError(t, err)
	assert.NotSame(t, a1, b, "tenants must never share a handle")

	lab, err := r.Get(ctx, "tenantA", models.RoleLab)
	require.NoError(t, err)
	assert.NotSame(t, a1, lab, "roles must never share a handle")

	assert.Equal(t, 3, r.Size())
}

func TestGetConfigurationErrors(t *testing.T) {
	apiTenant := dbTenant("api-only")
	apiTenant.Mode = models.IntegrationAPI

	noCreds := dbTenant("no-creds")
	noCreds.Backends[models.RolePrimary] = models.BackendCredentials{Driver: "fake", URL: "fake://x"}

	r := newTestRouter(staticTenants{
		"api-only": apiTenant,
		"no-creds": noCreds,
	})
	ctx := context.Background()

	_, err := r.Get(ctx, "missing", models.RolePrimary)
	assert.ErrorIs(t, err, apperrors.ErrTenantNotFound)

	_, err = r.Get(ctx, "api-only", models.RolePrimary)
	assert.ErrorIs(t, err, apperrors.ErrNoDatabaseIntegration)

	_, err = r.Get(ctx, "no-creds", models.RolePrimary)
	assert.ErrorIs(t, err, apperrors.ErrIncompleteCredentials)
	assert.Contains(t, err.Error(), "username")
	assert.Contains(t, err.Error(), "password")

	_, err = r.Get(ctx, "api-only", models.BackendRole("warehouse"))
	assert.ErrorIs(t, err, apperrors.ErrNoDatabaseIntegration)

	assert.Equal(t, 0, r.Size(), "failed lookups must not cache anything")
}

func TestGetUnknownRoleAndDriver(t *testing.T) {
	odd := dbTenant("odd")
	odd.Backends[models.RoleLab] = models.BackendCredentials{Driver: "oracle9i", URL: "x", Username: "u", Password: "p"}
	r := newTestRouter(staticTenants{"odd": odd})
	ctx := context.Background()

	_, err := r.Get(ctx, "odd", models.BackendRole("warehouse"))
	assert.ErrorIs(t, err, apperrors.ErrUnknownBackendRole)

	_, err = r.Get(ctx, "odd", models.RoleLab)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedDriver)
}

func TestClearGranularities(t *testing.T) {
	r := newTestRouter(staticTenants{
		"tenantA": dbTenant("tenantA"),
		"tenantB": dbTenant("tenantB"),
	})
	ctx := context.Background()

	load := func() (SourceConn, SourceConn, SourceConn) {
		aPrimary, err := r.Get(ctx, "tenantA", models.RolePrimary)
		require.NoError(t, err)
		aLab, err := r.Get(ctx, "tenantA", models.RoleLab)
		require.NoError(t, err)
		bPrimary, err := r.Get(ctx, "tenantB", models.RolePrimary)
		require.NoError(t, err)
		return aPrimary, aLab, bPrimary
	}

	// one tenant+role
	aPrimary, _, bBefore := load()
	r.Clear("tenantA", models.RolePrimary)
	assert.True(t, aPrimary.(*fakeConn).closed)
	assert.Equal(t, 2, r.Size())
	bAfter, err := r.Get(ctx, "tenantB", models.RolePrimary)
	require.NoError(t, err)
	assert.Same(t, bBefore, bAfter, "clearing tenantA must not touch tenantB")

	// whole tenant
	aPrimary, aLab, _ := load()
	r.Clear("tenantA", "")
	assert.True(t, aPrimary.(*fakeConn).closed)
	assert.True(t, aLab.(*fakeConn).closed)
	assert.Equal(t, 1, r.Size())

	// everything
	load()
	r.Clear("", "")
	assert.Equal(t, 0, r.Size())
}

func TestTestConnection(t *testing.T) {
	r := newTestRouter(staticTenants{"tenantA": dbTenant("tenantA")})
	assert.NoError(t, r.TestConnection(context.Background(), "tenantA", models.RolePrimary))
	assert.Error(t, r.TestConnection(context.Background(), "ghost", models.RolePrimary))
}

func TestConcurrentGetSingleHandle(t *testing.T) {
	calls := 0
	var mu sync.Mutex
	RegisterDriver("counting", func(ctx context.Context, cfg DriverConfig) (SourceConn, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return &fakeConn{id: cfg.URL}, nil
	})

	tenant := dbTenant("tenantC")
	tenant.Backends[models.RolePrimary] = models.BackendCredentials{
		Driver: "counting", URL: "fake://c", Username: "u", Password: "p",
	}
	r := newTestRouter(staticTenants{"tenantC": tenant})

	const n = 16
	conns := make([]SourceConn, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			c, err := r.Get(context.Background(), "tenantC", models.RolePrimary)
			if err == nil {
				conns[i] = c
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, conns[0], conns[i])
	}
	assert.Equal(t, 1, calls, "concurrent first uses must collapse into one construction")
}

func TestSlowConnectDoesNotBlockOtherTenants(t *testing.T) {
	gate := make(chan struct{})
	RegisterDriver("gated", func(ctx context.Context, cfg DriverConfig) (SourceConn, error) {
		<-gate
		return &fakeConn{id: cfg.URL}, nil
	})

	slow := dbTenant("slow")
	slow.Backends[models.RolePrimary] = models.BackendCredentials{
		Driver: "gated", URL: "fake://slow", Username: "u", Password: "p",
	}
	r := newTestRouter(staticTenants{
		"slow":    slow,
		"tenantB": dbTenant("tenantB"),
	})

	slowDone := make(chan error, 1)
	go func() {
		_, err := r.Get(context.Background(), "slow", models.RolePrimary)
		slowDone <- err
	}()

	// tenantB must connect while the gated factory is still parked.
	fastDone := make(chan error, 1)
	go func() {
		_, err := r.Get(context.Background(), "tenantB", models.RolePrimary)
		fastDone <- err
	}()

	select {
	case err := <-fastDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("tenantB blocked behind another tenant's connect")
	}

	close(gate)
	require.NoError(t, <-slowDone)
	assert.Equal(t, 2, r.Size())
}

func TestRouterErrorsNotRetriedForever(t *testing.T) {
	RegisterDriver("failing", func(ctx context.Context, cfg DriverConfig) (SourceConn, error) {
		return nil, errors.New("password authentication failed")
	})
	tenant := dbTenant("tenantF")
	tenant.Backends[models.RolePrimary] = models.BackendCredentials{
		Driver: "failing", URL: "fake://f", Username: "u", Password: "bad",
	}
	r := newTestRouter(staticTenants{"tenantF": tenant})

	_, err := r.Get(context.Background(), "tenantF", models.RolePrimary)
	require.Error(t, err)
	assert.Equal(t, 0, r.Size())
}
