package recon

import (
	"context"
	"time"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
)

// SyncPatients runs the three-way reconcile for one tenant visit:
// records only at the source are admitted, records in both are updated
// when a tracked field changed, records only in the store are flagged
// discharged. Patients are never deleted.
func (e *Engine) SyncPatients(ctx context.Context, tenantID, visitID string) (*models.SyncOutcome, error) {
	outcome := startOutcome(tenantID, models.EntityPatient)

	rows, err := e.fetch(ctx, tenantID, visitID, models.EntityPatient)
	if err != nil {
		e.finish(ctx, outcome, err)
		return outcome, err
	}
	outcome.SourceCount = len(rows)

	sourceByKey := make(map[string]*models.Patient, len(rows))
	order := make([]string, 0, len(rows))
	for _, row := range rows {
		p, reason := mapPatient(row, tenantID, visitID)
		if p == nil {
			e.dropRow(outcome, reason)
			continue
		}
		key := p.Key()
		if _, dup := sourceByKey[key]; dup {
			e.skipDuplicate(outcome, key)
			continue
		}
		sourceByKey[key] = p
		order = append(order, key)
	}

	stored, err := e.stores.Patients.ListByVisit(ctx, tenantID, visitID)
	if err != nil {
		e.finish(ctx, outcome, err)
		return outcome, err
	}
	storedByKey := make(map[string]*models.Patient, len(stored))
	for _, p := range stored {
		storedByKey[p.Key()] = p
	}

	var toSave []*models.Patient
	for _, key := range order {
		incoming := sourceByKey[key]
		existing, seen := storedByKey[key]
		if !seen {
			outcome.Added++
			toSave = append(toSave, incoming)
			continue
		}
		if existing.TrackedFieldsEqual(incoming) {
			outcome.Skipped++
			continue
		}
		existing.ApplyTrackedFields(incoming)
		outcome.Updated++
		toSave = append(toSave, existing)
	}

	// Present in store, absent from the snapshot: discharge, never delete.
	now := time.Now()
	for key, existing := range storedByKey {
		if _, present := sourceByKey[key]; present {
			continue
		}
		if !existing.InHospital {
			continue
		}
		existing.InHospital = false
		existing.DischargeTime = &now
		outcome.Terminated++
		toSave = append(toSave, existing)
	}

	if len(toSave) > 0 {
		if err := e.stores.Patients.SaveAll(ctx, toSave); err != nil {
			e.finish(ctx, outcome, err)
			return outcome, err
		}
	}

	e.finish(ctx, outcome, nil)
	return outcome, nil
}

// mapPatient maps one source row to a patient, returning a drop reason
// instead of a record when a mandatory field is missing or unparseable.
func mapPatient(rec models.SourceRecord, tenantID, visitID string) (*models.Patient, string) {
	sourceID := firstString(rec, patientAliases, "source_id")
	if sourceID == "" {
		return nil, "missing patient id"
	}
	rowVisit := firstString(rec, patientAliases, "visit_id")
	if rowVisit == "" {
		rowVisit = visitID
	}

	birth, err := firstTime(rec, patientAliases, "birth_date")
	if err != nil {
		return nil, "unparseable birth date: " + err.Error()
	}
	admitted, err := firstTime(rec, patientAliases, "admission_time")
	if err != nil {
		return nil, "unparseable admission time: " + err.Error()
	}

	return &models.Patient{
		TenantID:      tenantID,
		SourceID:      sourceID,
		VisitID:       rowVisit,
		Name:          firstString(rec, patientAliases, "name"),
		Gender:        firstString(rec, patientAliases, "gender"),
		BirthDate:     birth,
		Department:    firstString(rec, patientAliases, "department"),
		BedNo:         firstString(rec, patientAliases, "bed_no"),
		AdmissionTime: admitted,
		InHospital:    true,
	}, ""
}
