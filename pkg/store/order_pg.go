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

// PgOrderStore is the pgxpool-backed medical order store. The same order
// key may recur across courses of treatment, so rows are plain inserts
// and dedup lookups filter on stop_time IS NULL.
type PgOrderStore struct {
	pool *pgxpool.Pool
}

func NewPgOrderStore(pool *pgxpool.Pool) *PgOrderStore {
	return &PgOrderStore{pool: pool}
}

var _ OrderStore = (*PgOrderStore)(nil)

func (s *PgOrderStore) FindActive(ctx context.Context, tenantID, patientID, orderName string, orderDate *time.Time, repeatFlag bool) (*models.MedicalOrder, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, patient_id, visit_id, order_name, order_date,
		       repeat_flag, dosage, frequency, stop_time, created_at
		FROM engine_medical_orders
		WHERE tenant_id = $1 AND patient_id = $2 AND order_name = $3
		  AND order_date IS NOT DISTINCT FROM $4 AND repeat_flag = $5
		  AND stop_time IS NULL
		LIMIT 1`,
		tenantID, patientID, orderName, orderDate, repeatFlag)

	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active order: %w", err)
	}
	return o, nil
}

func (s *PgOrderStore) Save(ctx context.Context, o *models.MedicalOrder) error {
	return s.save(ctx, s.pool, o)
}

func (s *PgOrderStore) save(ctx context.Context, q pgExec, o *models.MedicalOrder) error {
	if o.ID != 0 {
		_, err := q.Exec(ctx, `
			UPDATE engine_medical_orders
			SET dosage = $2, frequency = $3, stop_time = $4
			WHERE id = $1`, o.ID, o.Dosage, o.Frequency, o.StopTime)
		if err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}
		return nil
	}

	err := q.QueryRow(ctx, `
		INSERT INTO engine_medical_orders
			(tenant_id, patient_id, visit_id, order_name, order_date,
			 repeat_flag, dosage, frequency, stop_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		RETURNING id, created_at`,
		o.TenantID, o.PatientID, o.VisitID, o.OrderName, o.OrderDate,
		o.RepeatFlag, o.Dosage, o.Frequency, o.StopTime).
		Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// SaveAll applies the whole batch, inserts and stop-time updates alike,
// in one transaction.
func (s *PgOrderStore) SaveAll(ctx context.Context, os []*models.MedicalOrder) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin order batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, o := range os {
		if err := s.save(ctx, tx, o); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit order batch: %w", err)
	}
	return nil
}

func (s *PgOrderStore) CountByVisit(ctx context.Context, tenantID, visitID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM engine_medical_orders
		WHERE tenant_id = $1 AND visit_id = $2`, tenantID, visitID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return n, nil
}

func scanOrder(row pgx.Row) (*models.MedicalOrder, error) {
	var o models.MedicalOrder
	err := row.Scan(&o.ID, &o.TenantID, &o.PatientID, &o.VisitID, &o.OrderName,
		&o.OrderDate, &o.RepeatFlag, &o.Dosage, &o.Frequency, &o.StopTime, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
