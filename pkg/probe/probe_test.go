package probe

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
)

type tenantList []*models.Tenant

func (l tenantList) Tenants() []*models.Tenant { return l }

func enabledTenant(id string) *models.Tenant {
	return &models.Tenant{ID: id, Enabled: true, Mode: models.IntegrationDatabase}
}

func TestCheckRecordsMetrics(t *testing.T) {
	calls := 0
	p := New(tenantList{}, ProberFunc(func(ctx context.Context, id string) error {
		calls++
		if calls%2 == 0 {
			return errors.New("connection refused")
		}
		return nil
	}), zap.NewNop())

	ctx := context.Background()
	r1 := p.Check(ctx, "mercy")
	assert.True(t, r1.Healthy)
	r2 := p.Check(ctx, "mercy")
	assert.False(t, r2.Healthy)
	assert.NotEmpty(t, r2.Error)

	m, ok := p.Metrics("mercy")
	require.True(t, ok)
	assert.Equal(t, int64(2), m.Checks)
	assert.Equal(t, int64(1), m.Failures)
	assert.InDelta(t, 0.5, m.SuccessRate, 0.001)
	assert.LessOrEqual(t, m.MinLatencyMs, m.MaxLatencyMs)
}

func TestStatusUsesCacheAfterFirstCheck(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	p := New(tenantList{}, ProberFunc(func(ctx context.Context, id string) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	}), zap.NewNop())

	ctx := context.Background()
	// First status triggers a real check; later ones are served from cache.
	first := p.Status(ctx, "mercy")
	second := p.Status(ctx, "mercy")
	assert.Equal(t, first.CheckedAt, second.CheckedAt)
	assert.Equal(t, 1, calls)
}

func TestCheckAllSkipsDisabledTenants(t *testing.T) {
	disabled := enabledTenant("closed")
	disabled.Enabled = false
	tenants := tenantList{enabledTenant("a"), enabledTenant("b"), disabled}

	var probed []string
	p := New(tenants, ProberFunc(func(ctx context.Context, id string) error {
		probed = append(probed, id)
		return nil
	}), zap.NewNop())

	results := p.CheckAll(context.Background())
	assert.Len(t, results, 2)
	assert.ElementsMatch(t, []string{"a", "b"}, probed)
}

func TestMetricsUnknownTenant(t *testing.T) {
	p := New(tenantList{}, ProberFunc(func(ctx context.Context, id string) error { return nil }), zap.NewNop())
	_, ok := p.Metrics("ghost")
	assert.False(t, ok)
}

func TestReportRecommendations(t *testing.T) {
	tenants := tenantList{enabledTenant("healthy"), enabledTenant("broken")}
	p := New(tenants, ProberFunc(func(ctx context.Context, id string) error {
		if id == "broken" {
			return errors.New("no such host")
		}
		return nil
	}), zap.NewNop())

	report := p.Report(context.Background())
	assert.False(t, report.ServiceHealthy)
	assert.Equal(t, 2, report.TenantCount)
	assert.Equal(t, 1, report.UnhealthyCount)
	require.NotEmpty(t, report.Recommendations)
	assert.Contains(t, report.Recommendations[0], "1 of 2 tenants unhealthy")
}

func TestReportAllHealthy(t *testing.T) {
	p := New(tenantList{enabledTenant("a")}, ProberFunc(func(ctx context.Context, id string) error {
		return nil
	}), zap.NewNop())

	report := p.Report(context.Background())
	assert.True(t, report.ServiceHealthy)
	assert.Equal(t, []string{"all tenants healthy"}, report.Recommendations)
}
