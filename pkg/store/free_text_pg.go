package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
)

// PgFreeTextStore is the pgxpool-backed free-text document store.
type PgFreeTextStore struct {
	pool *pgxpool.Pool
}

func NewPgFreeTextStore(pool *pgxpool.Pool) *PgFreeTextStore {
	return &PgFreeTextStore{pool: pool}
}

var _ FreeTextStore = (*PgFreeTextStore)(nil)

func (s *PgFreeTextStore) FindBySource(ctx context.Context, tenantID, sourceTable, sourceID string) (*models.FreeTextRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, source_table, source_id, patient_id, visit_id,
		       title, content, doc_time, updated_at
		FROM engine_free_text_records
		WHERE tenant_id = $1 AND source_table = $2 AND source_id = $3`,
		tenantID, sourceTable, sourceID)

	var r models.FreeTextRecord
	err := row.Scan(&r.ID, &r.TenantID, &r.SourceTable, &r.SourceID, &r.PatientID,
		&r.VisitID, &r.Title, &r.Content, &r.DocTime, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find free-text record: %w", err)
	}
	return &r, nil
}

func (s *PgFreeTextStore) Save(ctx context.Context, r *models.FreeTextRecord) error {
	return s.save(ctx, s.pool, r)
}

func (s *PgFreeTextStore) save(ctx context.Context, q pgExec, r *models.FreeTextRecord) error {
	err := q.QueryRow(ctx, `
		INSERT INTO engine_free_text_records
			(tenant_id, source_table, source_id, patient_id, visit_id,
			 title, content, doc_time, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (tenant_id, source_table, source_id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			doc_time = EXCLUDED.doc_time,
			updated_at = now()
		RETURNING id, updated_at`,
		r.TenantID, r.SourceTable, r.SourceID, r.PatientID, r.VisitID,
		r.Title, r.Content, r.DocTime).
		Scan(&r.ID, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save free-text record: %w", err)
	}
	return nil
}

// SaveAll upserts the whole batch in one transaction.
func (s *PgFreeTextStore) SaveAll(ctx context.Context, rs []*models.FreeTextRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin free-text batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, r := range rs {
		if err := s.save(ctx, tx, r); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit free-text batch: %w", err)
	}
	return nil
}

func (s *PgFreeTextStore) CountByVisit(ctx context.Context, tenantID, visitID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM engine_free_text_records
		WHERE tenant_id = $1 AND visit_id = $2`, tenantID, visitID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count free-text records: %w", err)
	}
	return n, nil
}
