// Package probe runs on-demand and scheduled connectivity checks per
// tenant and tracks rolling latency/success metrics.
package probe

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/medrelay-io/medrelay-engine/pkg/logging"
	"github.com/medrelay-io/medrelay-engine/pkg/models"
)

// DefaultSweepSpec is the cron expression for the scheduled sweep.
const DefaultSweepSpec = "@every 5m"

// Prober performs one round-trip to a tenant's primary backend.
// Implemented over the connection router in production; faked in tests.
type Prober interface {
	Probe(ctx context.Context, tenantID string) error
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, tenantID string) error

func (f ProberFunc) Probe(ctx context.Context, tenantID string) error { return f(ctx, tenantID) }

// HealthResult is the outcome of one connectivity check.
type HealthResult struct {
	TenantID  string    `json:"tenant_id"`
	Healthy   bool      `json:"healthy"`
	LatencyMs float64   `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Metrics is the rolling per-tenant record across checks.
type Metrics struct {
	Checks       int64   `json:"checks"`
	Failures     int64   `json:"failures"`
	MinLatencyMs float64 `json:"min_latency_ms"`
	MaxLatencyMs float64 `json:"max_latency_ms"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	SuccessRate  float64 `json:"success_rate"`
}

// tenantHealth carries one tenant's cached result and metrics behind its
// own lock so unrelated tenants never contend.
type tenantHealth struct {
	mu             sync.Mutex
	last           HealthResult
	recorded       bool
	checks         int64
	failures       int64
	minLatencyMs   float64
	maxLatencyMs   float64
	totalLatencyMs float64
}

// TenantLister enumerates tenants eligible for the sweep.
type TenantLister interface {
	Tenants() []*models.Tenant
}

// Probe coordinates connectivity checks across tenants.
type Probe struct {
	tenants TenantLister
	prober  Prober
	logger  *zap.Logger

	mu     sync.RWMutex
	health map[string]*tenantHealth
}

// New creates a probe over the given tenant set and prober.
func New(tenants TenantLister, prober Prober, logger *zap.Logger) *Probe {
	return &Probe{
		tenants: tenants,
		prober:  prober,
		logger:  logger.Named("probe"),
		health:  make(map[string]*tenantHealth),
	}
}

func (p *Probe) entry(tenantID string) *tenantHealth {
	p.mu.RLock()
	h, ok := p.health[tenantID]
	p.mu.RUnlock()
	if ok {
		return h
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok = p.health[tenantID]; ok {
		return h
	}
	h = &tenantHealth{}
	p.health[tenantID] = h
	return h
}

// Check runs a fresh connectivity check for one tenant and folds the
// result into its rolling metrics.
func (p *Probe) Check(ctx context.Context, tenantID string) HealthResult {
	start := time.Now()
	err := p.prober.Probe(ctx, tenantID)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	result := HealthResult{
		TenantID:  tenantID,
		Healthy:   err == nil,
		LatencyMs: latencyMs,
		CheckedAt: time.Now(),
	}
	if err != nil {
		result.Error = logging.SanitizeError(err)
		p.logger.Warn("connectivity check failed",
			zap.String("tenant", tenantID),
			zap.String("error", result.Error))
	}

	h := p.entry(tenantID)
	h.mu.Lock()
	h.last = result
	h.recorded = true
	h.checks++
	if err != nil {
		h.failures++
	}
	h.totalLatencyMs += latencyMs
	if h.checks == 1 || latencyMs < h.minLatencyMs {
		h.minLatencyMs = latencyMs
	}
	if latencyMs > h.maxLatencyMs {
		h.maxLatencyMs = latencyMs
	}
	h.mu.Unlock()

	return result
}

// CheckAll sweeps every enabled tenant.
func (p *Probe) CheckAll(ctx context.Context) []HealthResult {
	var results []HealthResult
	for _, tenant := range p.tenants.Tenants() {
		if !tenant.Enabled {
			continue
		}
		results = append(results, p.Check(ctx, tenant.ID))
	}
	return results
}

// Status returns the cached health for a tenant, running a fresh check
// only if nothing has ever been recorded for it.
func (p *Probe) Status(ctx context.Context, tenantID string) HealthResult {
	h := p.entry(tenantID)
	h.mu.Lock()
	if h.recorded {
		last := h.last
		h.mu.Unlock()
		return last
	}
	h.mu.Unlock()
	return p.Check(ctx, tenantID)
}

// Metrics returns the rolling metrics for a tenant.
func (p *Probe) Metrics(tenantID string) (Metrics, bool) {
	p.mu.RLock()
	h, ok := p.health[tenantID]
	p.mu.RUnlock()
	if !ok {
		return Metrics{}, false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.checks == 0 {
		return Metrics{}, false
	}
	return Metrics{
		Checks:       h.checks,
		Failures:     h.failures,
		MinLatencyMs: h.minLatencyMs,
		MaxLatencyMs: h.maxLatencyMs,
		AvgLatencyMs: h.totalLatencyMs / float64(h.checks),
		SuccessRate:  float64(h.checks-h.failures) / float64(h.checks),
	}, true
}

// Schedule registers the sweep on a cron runner. Spec defaults to
// DefaultSweepSpec when empty.
func (p *Probe) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	if spec == "" {
		spec = DefaultSweepSpec
	}
	return c.AddFunc(spec, func() {
		results := p.CheckAll(context.Background())
		unhealthy := 0
		for _, r := range results {
			if !r.Healthy {
				unhealthy++
			}
		}
		p.logger.Info("scheduled sweep finished",
			zap.Int("checked", len(results)),
			zap.Int("unhealthy", unhealthy))
	})
}
