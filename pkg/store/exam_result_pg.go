package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
)

// PgExamResultStore is the pgxpool-backed examination report store.
// Source systems amend findings, so saves overwrite in place.
type PgExamResultStore struct {
	pool *pgxpool.Pool
}

func NewPgExamResultStore(pool *pgxpool.Pool) *PgExamResultStore {
	return &PgExamResultStore{pool: pool}
}

var _ ExamResultStore = (*PgExamResultStore)(nil)

func (s *PgExamResultStore) FindByExamID(ctx context.Context, tenantID, examinationID string) (*models.ExamResult, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, examination_id, patient_id, visit_id, exam_name,
		       finding, conclusion, report_time, updated_at
		FROM engine_exam_results
		WHERE tenant_id = $1 AND examination_id = $2`, tenantID, examinationID)

	var e models.ExamResult
	err := row.Scan(&e.ID, &e.TenantID, &e.ExaminationID, &e.PatientID, &e.VisitID,
		&e.ExamName, &e.Finding, &e.Conclusion, &e.ReportTime, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find exam result: %w", err)
	}
	return &e, nil
}

func (s *PgExamResultStore) Save(ctx context.Context, e *models.ExamResult) error {
	return s.save(ctx, s.pool, e)
}

func (s *PgExamResultStore) save(ctx context.Context, q pgExec, e *models.ExamResult) error {
	err := q.QueryRow(ctx, `
		INSERT INTO engine_exam_results
			(tenant_id, examination_id, patient_id, visit_id, exam_name,
			 finding, conclusion, report_time, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (tenant_id, examination_id) DO UPDATE SET
			exam_name = EXCLUDED.exam_name,
			finding = EXCLUDED.finding,
			conclusion = EXCLUDED.conclusion,
			report_time = EXCLUDED.report_time,
			updated_at = now()
		RETURNING id, updated_at`,
		e.TenantID, e.ExaminationID, e.PatientID, e.VisitID, e.ExamName,
		e.Finding, e.Conclusion, e.ReportTime).
		Scan(&e.ID, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save exam result: %w", err)
	}
	return nil
}

// SaveAll upserts the whole batch in one transaction.
func (s *PgExamResultStore) SaveAll(ctx context.Context, es []*models.ExamResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin exam result batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, e := range es {
		if err := s.save(ctx, tx, e); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit exam result batch: %w", err)
	}
	return nil
}

func (s *PgExamResultStore) CountByVisit(ctx context.Context, tenantID, visitID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM engine_exam_results
		WHERE tenant_id = $1 AND visit_id = $2`, tenantID, visitID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count exam results: %w", err)
	}
	return n, nil
}
