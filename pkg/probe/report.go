package probe

import (
	"context"
	"fmt"
	"time"
)

// TenantReport is one tenant's slice of the aggregate report.
type TenantReport struct {
	TenantID string       `json:"tenant_id"`
	Health   HealthResult `json:"health"`
	Metrics  Metrics      `json:"metrics"`
}

// Report aggregates service status across all tenants with rule-based
// recommendations for operators.
type Report struct {
	GeneratedAt     time.Time      `json:"generated_at"`
	ServiceHealthy  bool           `json:"service_healthy"`
	TenantCount     int            `json:"tenant_count"`
	UnhealthyCount  int            `json:"unhealthy_count"`
	Tenants         []TenantReport `json:"tenants"`
	Recommendations []string       `json:"recommendations"`
}

// Report composes per-tenant health, metrics and recommendations.
// Tenants never probed before get a fresh check via Status.
func (p *Probe) Report(ctx context.Context) Report {
	report := Report{
		GeneratedAt:    time.Now(),
		ServiceHealthy: true,
	}

	for _, tenant := range p.tenants.Tenants() {
		if !tenant.Enabled {
			continue
		}
		report.TenantCount++

		health := p.Status(ctx, tenant.ID)
		metrics, _ := p.Metrics(tenant.ID)
		report.Tenants = append(report.Tenants, TenantReport{
			TenantID: tenant.ID,
			Health:   health,
			Metrics:  metrics,
		})
		if !health.Healthy {
			report.UnhealthyCount++
		}
	}

	if report.UnhealthyCount > 0 {
		report.ServiceHealthy = false
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("%d of %d tenants unhealthy, check backend credentials and network reachability",
				report.UnhealthyCount, report.TenantCount))
	}
	for _, tr := range report.Tenants {
		if tr.Metrics.Checks >= 5 && tr.Metrics.SuccessRate < 0.5 {
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("tenant %s fails more than half of its checks, review its configuration", tr.TenantID))
		}
		if tr.Metrics.AvgLatencyMs > 1000 {
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("tenant %s averages over 1s per round-trip, investigate source database load", tr.TenantID))
		}
	}
	if len(report.Recommendations) == 0 {
		report.Recommendations = append(report.Recommendations, "all tenants healthy")
	}
	return report
}
