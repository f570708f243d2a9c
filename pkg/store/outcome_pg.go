package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
)

// PgOutcomeLog appends reconciliation outcomes to an append-only table.
// Rows are never updated or deleted.
type PgOutcomeLog struct {
	pool *pgxpool.Pool
}

func NewPgOutcomeLog(pool *pgxpool.Pool) *PgOutcomeLog {
	return &PgOutcomeLog{pool: pool}
}

var _ OutcomeLog = (*PgOutcomeLog)(nil)

func (l *PgOutcomeLog) Append(ctx context.Context, o *models.SyncOutcome) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO engine_sync_outcomes
			(run_id, tenant_id, entity, source_count, added, updated,
			 terminated, skipped, dropped, started_at, duration_ms, success, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		o.RunID, o.TenantID, o.Entity, o.SourceCount, o.Added, o.Updated,
		o.Terminated, o.Skipped, o.Dropped, o.StartedAt, o.Duration.Milliseconds(),
		o.Success, o.Error)
	if err != nil {
		return fmt.Errorf("failed to append sync outcome: %w", err)
	}
	return nil
}

// NewPgStores builds a full pgxpool-backed store bundle.
func NewPgStores(pool *pgxpool.Pool) *Stores {
	return &Stores{
		Patients:   NewPgPatientStore(pool),
		LabResults: NewPgLabResultStore(pool),
		Orders:     NewPgOrderStore(pool),
		Exams:      NewPgExamResultStore(pool),
		FreeText:   NewPgFreeTextStore(pool),
		Outcomes:   NewPgOutcomeLog(pool),
	}
}
