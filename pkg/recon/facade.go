package recon

import (
	"context"
	"fmt"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
)

// Service is the upstream trigger surface: one import call per entity
// type, keyed by a "tenantId:visitId" argument. On any failure the
// record count is -1 and the error carries the cause; the external
// scheduler decides whether to retry.
type Service struct {
	engine *Engine
}

// NewService wraps the engine with the trigger facade.
func NewService(engine *Engine) *Service {
	return &Service{engine: engine}
}

// imported is the number of records the run materialized in the store.
func imported(o *models.SyncOutcome) int {
	return o.Added + o.Updated + o.Terminated
}

func (s *Service) ImportPatients(ctx context.Context, tenantVisitID string) (int, error) {
	tenantID, visitID, err := ParseTenantVisitID(tenantVisitID)
	if err != nil {
		return -1, err
	}
	outcome, err := s.engine.SyncPatients(ctx, tenantID, visitID)
	if err != nil {
		return -1, err
	}
	return imported(outcome), nil
}

func (s *Service) ImportLabResults(ctx context.Context, tenantVisitID string) (int, error) {
	tenantID, visitID, err := ParseTenantVisitID(tenantVisitID)
	if err != nil {
		return -1, err
	}
	outcome, err := s.engine.SyncLabResults(ctx, tenantID, visitID)
	if err != nil {
		return -1, err
	}
	return imported(outcome), nil
}

func (s *Service) ImportOrders(ctx context.Context, tenantVisitID string) (int, error) {
	tenantID, visitID, err := ParseTenantVisitID(tenantVisitID)
	if err != nil {
		return -1, err
	}
	outcome, err := s.engine.SyncOrders(ctx, tenantID, visitID)
	if err != nil {
		return -1, err
	}
	return imported(outcome), nil
}

func (s *Service) ImportExamResults(ctx context.Context, tenantVisitID string) (int, error) {
	tenantID, visitID, err := ParseTenantVisitID(tenantVisitID)
	if err != nil {
		return -1, err
	}
	outcome, err := s.engine.SyncExamResults(ctx, tenantID, visitID)
	if err != nil {
		return -1, err
	}
	return imported(outcome), nil
}

func (s *Service) ImportFreeText(ctx context.Context, tenantVisitID string) (int, error) {
	tenantID, visitID, err := ParseTenantVisitID(tenantVisitID)
	if err != nil {
		return -1, err
	}
	outcome, err := s.engine.SyncFreeText(ctx, tenantID, visitID)
	if err != nil {
		return -1, err
	}
	return imported(outcome), nil
}

// ImportAll runs every entity type for one tenant visit. One failing
// entity never aborts the rest; the error aggregates the failures.
func (s *Service) ImportAll(ctx context.Context, tenantVisitID string) (int, error) {
	imports := []func(context.Context, string) (int, error){
		s.ImportPatients,
		s.ImportLabResults,
		s.ImportOrders,
		s.ImportExamResults,
		s.ImportFreeText,
	}

	total := 0
	failures := 0
	var firstErr error
	for _, run := range imports {
		n, err := run(ctx, tenantVisitID)
		if err != nil {
			failures++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		total += n
	}
	if failures > 0 {
		return total, fmt.Errorf("%d of %d entity imports failed, first: %w", failures, len(imports), firstErr)
	}
	return total, nil
}

// Stats compares the source row count against the central-store slice
// for one entity and visit. Diagnostic only; nothing is persisted.
type Stats struct {
	SourceCount int `json:"source_count"`
	LocalCount  int `json:"local_count"`
}

func (s *Service) Stats(ctx context.Context, tenantVisitID string, entity models.EntityType) (Stats, error) {
	tenantID, visitID, err := ParseTenantVisitID(tenantVisitID)
	if err != nil {
		return Stats{}, err
	}

	rows, err := s.engine.fetch(ctx, tenantID, visitID, entity)
	if err != nil {
		return Stats{}, err
	}

	var local int
	switch entity {
	case models.EntityPatient:
		local, err = s.engine.stores.Patients.CountByVisit(ctx, tenantID, visitID)
	case models.EntityLabResult:
		local, err = s.engine.stores.LabResults.CountByVisit(ctx, tenantID, visitID)
	case models.EntityOrder:
		local, err = s.engine.stores.Orders.CountByVisit(ctx, tenantID, visitID)
	case models.EntityExam:
		local, err = s.engine.stores.Exams.CountByVisit(ctx, tenantID, visitID)
	case models.EntityFreeText:
		local, err = s.engine.stores.FreeText.CountByVisit(ctx, tenantID, visitID)
	default:
		return Stats{}, fmt.Errorf("unknown entity type %q", entity)
	}
	if err != nil {
		return Stats{}, err
	}

	return Stats{SourceCount: len(rows), LocalCount: local}, nil
}
