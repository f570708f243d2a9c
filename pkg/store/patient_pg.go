package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
)

const patientColumns = `id, tenant_id, source_id, visit_id, name, gender, birth_date,
	       department, bed_no, admission_time, in_hospital, discharge_time, updated_at`

// PgPatientStore is the pgxpool-backed patient store.
type PgPatientStore struct {
	pool *pgxpool.Pool
}

func NewPgPatientStore(pool *pgxpool.Pool) *PgPatientStore {
	return &PgPatientStore{pool: pool}
}

var _ PatientStore = (*PgPatientStore)(nil)

func (s *PgPatientStore) FindByKey(ctx context.Context, tenantID, sourceID, visitID string) (*models.Patient, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM engine_patients
		WHERE tenant_id = $1 AND source_id = $2 AND visit_id = $3`, patientColumns),
		tenantID, sourceID, visitID)

	p, err := scanPatient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find patient: %w", err)
	}
	return p, nil
}

func (s *PgPatientStore) ListByVisit(ctx context.Context, tenantID, visitID string) ([]*models.Patient, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM engine_patients
		WHERE tenant_id = $1 AND visit_id = $2`, patientColumns), tenantID, visitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	defer rows.Close()
	return collectPatients(rows)
}

func (s *PgPatientStore) ListInHospitalByDepartment(ctx context.Context, tenantID, department string) ([]*models.Patient, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM engine_patients
		WHERE tenant_id = $1 AND in_hospital`, patientColumns)
	args := []any{tenantID}
	if department != "" {
		query += ` AND lower(department) = lower($2)`
		args = append(args, department)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list in-hospital patients: %w", err)
	}
	defer rows.Close()
	return collectPatients(rows)
}

func (s *PgPatientStore) Save(ctx context.Context, p *models.Patient) error {
	return s.save(ctx, s.pool, p)
}

func (s *PgPatientStore) save(ctx context.Context, q pgExec, p *models.Patient) error {
	err := q.QueryRow(ctx, `
		INSERT INTO engine_patients
			(tenant_id, source_id, visit_id, name, gender, birth_date,
			 department, bed_no, admission_time, in_hospital, discharge_time, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (tenant_id, source_id, visit_id) DO UPDATE SET
			name = EXCLUDED.name,
			gender = EXCLUDED.gender,
			birth_date = EXCLUDED.birth_date,
			department = EXCLUDED.department,
			bed_no = EXCLUDED.bed_no,
			admission_time = EXCLUDED.admission_time,
			in_hospital = EXCLUDED.in_hospital,
			discharge_time = EXCLUDED.discharge_time,
			updated_at = now()
		RETURNING id, updated_at`,
		p.TenantID, p.SourceID, p.VisitID, p.Name, p.Gender, p.BirthDate,
		p.Department, p.BedNo, p.AdmissionTime, p.InHospital, p.DischargeTime).
		Scan(&p.ID, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save patient: %w", err)
	}
	return nil
}

// SaveAll persists the whole delta in one transaction: a failure rolls
// every row back so a reconcile never half-applies.
func (s *PgPatientStore) SaveAll(ctx context.Context, ps []*models.Patient) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin patient batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, p := range ps {
		if err := s.save(ctx, tx, p); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit patient batch: %w", err)
	}
	return nil
}

func (s *PgPatientStore) CountByVisit(ctx context.Context, tenantID, visitID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM engine_patients
		WHERE tenant_id = $1 AND visit_id = $2`, tenantID, visitID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count patients: %w", err)
	}
	return n, nil
}

func scanPatient(row pgx.Row) (*models.Patient, error) {
	var p models.Patient
	err := row.Scan(&p.ID, &p.TenantID, &p.SourceID, &p.VisitID, &p.Name, &p.Gender,
		&p.BirthDate, &p.Department, &p.BedNo, &p.AdmissionTime,
		&p.InHospital, &p.DischargeTime, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPatients(rows pgx.Rows) ([]*models.Patient, error) {
	var out []*models.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating patients: %w", err)
	}
	return out, nil
}
