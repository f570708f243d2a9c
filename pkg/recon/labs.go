package recon

import (
	"context"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
)

// SyncLabResults runs the insert-if-absent reconcile for lab results.
// A result already stored under the full dedup key is skipped; there is
// no update path, a changed value arrives as a new row.
func (e *Engine) SyncLabResults(ctx context.Context, tenantID, visitID string) (*models.SyncOutcome, error) {
	outcome := startOutcome(tenantID, models.EntityLabResult)

	rows, err := e.fetch(ctx, tenantID, visitID, models.EntityLabResult)
	if err != nil {
		e.finish(ctx, outcome, err)
		return outcome, err
	}
	outcome.SourceCount = len(rows)

	seen := make(map[string]struct{}, len(rows))
	var toSave []*models.LabResult
	for _, row := range rows {
		r, reason := mapLabResult(row, tenantID, visitID)
		if r == nil {
			e.dropRow(outcome, reason)
			continue
		}
		key := r.Key()
		if _, dup := seen[key]; dup {
			e.skipDuplicate(outcome, key)
			continue
		}
		seen[key] = struct{}{}

		existing, err := e.stores.LabResults.FindByKey(ctx, tenantID, r.PatientID, r.LabName, r.ReportTime, r.ResultValue)
		if err != nil {
			e.finish(ctx, outcome, err)
			return outcome, err
		}
		if existing != nil {
			outcome.Skipped++
			continue
		}
		outcome.Added++
		toSave = append(toSave, r)
	}

	if len(toSave) > 0 {
		if err := e.stores.LabResults.SaveAll(ctx, toSave); err != nil {
			e.finish(ctx, outcome, err)
			return outcome, err
		}
	}

	e.finish(ctx, outcome, nil)
	return outcome, nil
}

func mapLabResult(rec models.SourceRecord, tenantID, visitID string) (*models.LabResult, string) {
	patientID := firstString(rec, labAliases, "patient_id")
	if patientID == "" {
		return nil, "missing patient id"
	}
	labName := firstString(rec, labAliases, "lab_name")
	if labName == "" {
		return nil, "missing lab name"
	}
	resultValue := firstString(rec, labAliases, "result_value")
	if resultValue == "" {
		return nil, "missing result value"
	}

	reported, err := firstTime(rec, labAliases, "report_time")
	if err != nil {
		return nil, "unparseable report time: " + err.Error()
	}

	rowVisit := firstString(rec, labAliases, "visit_id")
	if rowVisit == "" {
		rowVisit = visitID
	}

	return &models.LabResult{
		TenantID:       tenantID,
		PatientID:      patientID,
		VisitID:        rowVisit,
		LabName:        labName,
		ResultValue:    resultValue,
		Unit:           firstString(rec, labAliases, "unit"),
		ReferenceRange: firstString(rec, labAliases, "reference_range"),
		AbnormalFlag:   firstString(rec, labAliases, "abnormal_flag"),
		ReportTime:     reported,
	}, ""
}
