package recon

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrelay-io/medrelay-engine/pkg/apperrors"
	"github.com/medrelay-io/medrelay-engine/pkg/models"
)

func TestParseTenantVisitID(t *testing.T) {
	tests := []struct {
		in         string
		wantTenant string
		wantVisit  string
		wantErr    bool
	}{
		{"mercy:V100", "mercy", "V100", false},
		{"mercy:V1:extra", "mercy", "V1:extra", false},
		{" mercy : V1 ", "mercy", "V1", false},
		{"mercy", "", "", true},
		{":V1", "", "", true},
		{"mercy:", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		tenant, visit, err := ParseTenantVisitID(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, apperrors.ErrInvalidTenantVisitID, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.wantTenant, tenant)
		assert.Equal(t, tt.wantVisit, visit)
	}
}

func TestTemplatePathConvention(t *testing.T) {
	got := TemplatePath("/etc/medrelay/templates", "MERCY", models.EntityLabResult)
	assert.Equal(t, "/etc/medrelay/templates/mercy/lab-query.json", got)
}

func TestImportReturnsMinusOneOnFailure(t *testing.T) {
	h := newHarness(t)
	svc := NewService(h.engine)

	n, err := svc.ImportPatients(context.Background(), "not-a-tenant-visit-id")
	assert.Equal(t, -1, n)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTenantVisitID)

	h.conn.err = errors.New("connection refused")
	n, err = svc.ImportLabResults(context.Background(), "mercy:V1")
	assert.Equal(t, -1, n)
	require.Error(t, err)
}

func TestImportCountsMaterializedRecords(t *testing.T) {
	h := newHarness(t)
	svc := NewService(h.engine)
	h.conn.rows = []models.SourceRecord{
		patientRow("P1", "V1", "Wu", "12"),
		patientRow("P2", "V1", "Chen", "14"),
	}

	n, err := svc.ImportPatients(context.Background(), "mercy:V1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestImportAllContinuesPastFailures(t *testing.T) {
	h := newHarness(t)
	svc := NewService(h.engine)
	// Drop the order template so exactly one entity import fails.
	delete(h.engine.templates.(fakeTemplates), TemplatePath("/templates", "mercy", models.EntityOrder))
	h.conn.rows = []models.SourceRecord{patientRow("P1", "V1", "Wu", "12")}

	_, err := svc.ImportAll(context.Background(), "mercy:V1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 5 entity imports failed")

	// The patient import before and imports after the failure still ran.
	p, findErr := h.stores.Patients.FindByKey(context.Background(), "mercy", "P1", "V1")
	require.NoError(t, findErr)
	assert.NotNil(t, p)
	assert.Len(t, h.log.Outcomes(), 5)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	svc := NewService(h.engine)
	h.conn.rows = []models.SourceRecord{
		patientRow("P1", "V1", "Wu", "12"),
		patientRow("P2", "V1", "Chen", "14"),
	}

	_, err := svc.ImportPatients(ctx, "mercy:V1")
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, "mercy:V1", models.EntityPatient)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.SourceCount)
	assert.Equal(t, 2, stats.LocalCount)
}

func TestTranslateExecError(t *testing.T) {
	err := TranslateExecError(errors.New("dial tcp 10.0.0.5:1433: connection refused"))
	assert.Contains(t, err.Error(), "source database is unreachable")

	err = TranslateExecError(errors.New("mssql: Login failed for user 'sync'"))
	assert.Contains(t, err.Error(), "rejected the credentials")

	orig := errors.New("something novel")
	assert.Equal(t, orig, TranslateExecError(orig))
	assert.Nil(t, TranslateExecError(nil))
}
