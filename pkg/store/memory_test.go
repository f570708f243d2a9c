package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
)

func TestMemoryPatientStoreIsolatesTenants(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPatientStore()

	require.NoError(t, s.Save(ctx, &models.Patient{TenantID: "a", SourceID: "P1", VisitID: "V1", Name: "Lin"}))
	require.NoError(t, s.Save(ctx, &models.Patient{TenantID: "b", SourceID: "P1", VisitID: "V1", Name: "Other"}))

	got, err := s.FindByKey(ctx, "a", "P1", "V1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Lin", got.Name)

	n, err := s.CountByVisit(ctx, "b", "V1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryPatientStoreUpsertsByKey(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryPatientStore()

	first := &models.Patient{TenantID: "a", SourceID: "P1", VisitID: "V1", BedNo: "12"}
	require.NoError(t, s.Save(ctx, first))
	second := &models.Patient{TenantID: "a", SourceID: "P1", VisitID: "V1", BedNo: "30"}
	require.NoError(t, s.Save(ctx, second))

	n, err := s.CountByVisit(ctx, "a", "V1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.FindByKey(ctx, "a", "P1", "V1")
	require.NoError(t, err)
	assert.Equal(t, "30", got.BedNo)
}

func TestMemoryOrderStoreActiveDedup(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryOrderStore()
	date := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	stopped := date.Add(48 * time.Hour)

	old := &models.MedicalOrder{TenantID: "a", PatientID: "P1", VisitID: "V1",
		OrderName: "amoxicillin", OrderDate: &date, StopTime: &stopped}
	require.NoError(t, s.Save(ctx, old))

	// The terminated course must not block a new one with the same key.
	got, err := s.FindActive(ctx, "a", "P1", "amoxicillin", &date, false)
	require.NoError(t, err)
	assert.Nil(t, got)

	fresh := &models.MedicalOrder{TenantID: "a", PatientID: "P1", VisitID: "V1",
		OrderName: "amoxicillin", OrderDate: &date}
	require.NoError(t, s.Save(ctx, fresh))

	got, err = s.FindActive(ctx, "a", "P1", "amoxicillin", &date, false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, fresh.ID, got.ID)

	// Standing and temporary variants of the same order dedup independently.
	standing, err := s.FindActive(ctx, "a", "P1", "amoxicillin", &date, true)
	require.NoError(t, err)
	assert.Nil(t, standing)
}

func TestMemoryOrderStoreUpdateByID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryOrderStore()

	o := &models.MedicalOrder{TenantID: "a", PatientID: "P1", VisitID: "V1", OrderName: "insulin"}
	require.NoError(t, s.Save(ctx, o))

	stop := time.Now()
	o.StopTime = &stop
	require.NoError(t, s.Save(ctx, o))

	got, err := s.FindActive(ctx, "a", "P1", "insulin", nil, false)
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := s.CountByVisit(ctx, "a", "V1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryLabResultStoreFindByKey(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLabResultStore()
	reported := time.Date(2026, 8, 2, 9, 30, 0, 0, time.UTC)

	r := &models.LabResult{TenantID: "a", PatientID: "P1", VisitID: "V1",
		LabName: "WBC", ResultValue: "6.1", ReportTime: &reported}
	require.NoError(t, s.Save(ctx, r))

	got, err := s.FindByKey(ctx, "a", "P1", "WBC", &reported, "6.1")
	require.NoError(t, err)
	require.NotNil(t, got)

	// Same name and time but a different value is a distinct result.
	got, err = s.FindByKey(ctx, "a", "P1", "WBC", &reported, "7.0")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryOutcomeLogAppends(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryOutcomeLog()
	require.NoError(t, l.Append(ctx, &models.SyncOutcome{TenantID: "a", Entity: models.EntityPatient}))
	require.NoError(t, l.Append(ctx, &models.SyncOutcome{TenantID: "a", Entity: models.EntityLabResult}))
	assert.Len(t, l.Outcomes(), 2)
}
