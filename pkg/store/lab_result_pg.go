package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
)

// PgLabResultStore is the pgxpool-backed lab result store. Lab results
// are insert-only; the unique index on the dedup key backs that up at
// the storage level.
type PgLabResultStore struct {
	pool *pgxpool.Pool
}

func NewPgLabResultStore(pool *pgxpool.Pool) *PgLabResultStore {
	return &PgLabResultStore{pool: pool}
}

var _ LabResultStore = (*PgLabResultStore)(nil)

func (s *PgLabResultStore) FindByKey(ctx context.Context, tenantID, patientID, labName string, reportTime *time.Time, resultValue string) (*models.LabResult, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, patient_id, visit_id, lab_name, result_value,
		       unit, reference_range, abnormal_flag, report_time, created_at
		FROM engine_lab_results
		WHERE tenant_id = $1 AND patient_id = $2 AND lab_name = $3
		  AND report_time IS NOT DISTINCT FROM $4 AND result_value = $5`,
		tenantID, patientID, labName, reportTime, resultValue)

	var r models.LabResult
	err := row.Scan(&r.ID, &r.TenantID, &r.PatientID, &r.VisitID, &r.LabName,
		&r.ResultValue, &r.Unit, &r.ReferenceRange, &r.AbnormalFlag,
		&r.ReportTime, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find lab result: %w", err)
	}
	return &r, nil
}

func (s *PgLabResultStore) Save(ctx context.Context, r *models.LabResult) error {
	return s.save(ctx, s.pool, r)
}

func (s *PgLabResultStore) save(ctx context.Context, q pgExec, r *models.LabResult) error {
	err := q.QueryRow(ctx, `
		INSERT INTO engine_lab_results
			(tenant_id, patient_id, visit_id, lab_name, result_value,
			 unit, reference_range, abnormal_flag, report_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (tenant_id, patient_id, lab_name, report_time, result_value) DO NOTHING
		RETURNING id, created_at`,
		r.TenantID, r.PatientID, r.VisitID, r.LabName, r.ResultValue,
		r.Unit, r.ReferenceRange, r.AbnormalFlag, r.ReportTime).
		Scan(&r.ID, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict: an identical result already exists, nothing to do.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to save lab result: %w", err)
	}
	return nil
}

// SaveAll inserts the whole batch in one transaction.
func (s *PgLabResultStore) SaveAll(ctx context.Context, rs []*models.LabResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin lab result batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, r := range rs {
		if err := s.save(ctx, tx, r); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit lab result batch: %w", err)
	}
	return nil
}

func (s *PgLabResultStore) CountByVisit(ctx context.Context, tenantID, visitID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM engine_lab_results
		WHERE tenant_id = $1 AND visit_id = $2`, tenantID, visitID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count lab results: %w", err)
	}
	return n, nil
}
