// Package store defines the narrow persistence boundary of the
// reconciliation engine. The engine never issues raw statements against
// the central store; it goes through one small interface per entity,
// and any backend can implement them. Absent records are returned as
// (nil, nil), not as an error.
package store

import (
	"context"
	"time"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
)

// PatientStore persists admitted patients.
type PatientStore interface {
	FindByKey(ctx context.Context, tenantID, sourceID, visitID string) (*models.Patient, error)
	ListByVisit(ctx context.Context, tenantID, visitID string) ([]*models.Patient, error)
	ListInHospitalByDepartment(ctx context.Context, tenantID, department string) ([]*models.Patient, error)
	Save(ctx context.Context, p *models.Patient) error
	SaveAll(ctx context.Context, ps []*models.Patient) error
	CountByVisit(ctx context.Context, tenantID, visitID string) (int, error)
}

// LabResultStore persists issued lab results. Insert-only by design.
type LabResultStore interface {
	FindByKey(ctx context.Context, tenantID, patientID, labName string, reportTime *time.Time, resultValue string) (*models.LabResult, error)
	Save(ctx context.Context, r *models.LabResult) error
	SaveAll(ctx context.Context, rs []*models.LabResult) error
	CountByVisit(ctx context.Context, tenantID, visitID string) (int, error)
}

// OrderStore persists physician orders.
type OrderStore interface {
	// FindActive returns a non-terminated order matching the dedup key,
	// or nil. Terminated orders never match.
	FindActive(ctx context.Context, tenantID, patientID, orderName string, orderDate *time.Time, repeatFlag bool) (*models.MedicalOrder, error)
	Save(ctx context.Context, o *models.MedicalOrder) error
	SaveAll(ctx context.Context, os []*models.MedicalOrder) error
	CountByVisit(ctx context.Context, tenantID, visitID string) (int, error)
}

// ExamResultStore persists examination reports.
type ExamResultStore interface {
	FindByExamID(ctx context.Context, tenantID, examinationID string) (*models.ExamResult, error)
	Save(ctx context.Context, e *models.ExamResult) error
	SaveAll(ctx context.Context, es []*models.ExamResult) error
	CountByVisit(ctx context.Context, tenantID, visitID string) (int, error)
}

// FreeTextStore persists free-text clinical documents.
type FreeTextStore interface {
	FindBySource(ctx context.Context, tenantID, sourceTable, sourceID string) (*models.FreeTextRecord, error)
	Save(ctx context.Context, r *models.FreeTextRecord) error
	SaveAll(ctx context.Context, rs []*models.FreeTextRecord) error
	CountByVisit(ctx context.Context, tenantID, visitID string) (int, error)
}

// OutcomeLog is the append-only log of reconciliation runs.
type OutcomeLog interface {
	Append(ctx context.Context, o *models.SyncOutcome) error
}

// Stores bundles the per-entity stores for wiring the engine.
type Stores struct {
	Patients   PatientStore
	LabResults LabResultStore
	Orders     OrderStore
	Exams      ExamResultStore
	FreeText   FreeTextStore
	Outcomes   OutcomeLog
}
