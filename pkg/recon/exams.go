package recon

import (
	"context"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
)

// SyncExamResults runs the insert-or-update reconcile for examination
// reports. The source system owns the report and may amend findings, so
// an existing record is overwritten in place.
func (e *Engine) SyncExamResults(ctx context.Context, tenantID, visitID string) (*models.SyncOutcome, error) {
	outcome := startOutcome(tenantID, models.EntityExam)

	rows, err := e.fetch(ctx, tenantID, visitID, models.EntityExam)
	if err != nil {
		e.finish(ctx, outcome, err)
		return outcome, err
	}
	outcome.SourceCount = len(rows)

	seen := make(map[string]struct{}, len(rows))
	var toSave []*models.ExamResult
	for _, row := range rows {
		incoming, reason := mapExamResult(row, tenantID, visitID)
		if incoming == nil {
			e.dropRow(outcome, reason)
			continue
		}
		if _, dup := seen[incoming.ExaminationID]; dup {
			e.skipDuplicate(outcome, incoming.ExaminationID)
			continue
		}
		seen[incoming.ExaminationID] = struct{}{}

		existing, err := e.stores.Exams.FindByExamID(ctx, tenantID, incoming.ExaminationID)
		if err != nil {
			e.finish(ctx, outcome, err)
			return outcome, err
		}
		if existing != nil {
			if existing.TrackedFieldsEqual(incoming) {
				outcome.Skipped++
				continue
			}
			existing.ApplyTrackedFields(incoming)
			outcome.Updated++
			toSave = append(toSave, existing)
			continue
		}
		outcome.Added++
		toSave = append(toSave, incoming)
	}

	if len(toSave) > 0 {
		if err := e.stores.Exams.SaveAll(ctx, toSave); err != nil {
			e.finish(ctx, outcome, err)
			return outcome, err
		}
	}

	e.finish(ctx, outcome, nil)
	return outcome, nil
}

func mapExamResult(rec models.SourceRecord, tenantID, visitID string) (*models.ExamResult, string) {
	examID := firstString(rec, examAliases, "examination_id")
	if examID == "" {
		return nil, "missing examination id"
	}
	patientID := firstString(rec, examAliases, "patient_id")
	if patientID == "" {
		return nil, "missing patient id"
	}

	reported, err := firstTime(rec, examAliases, "report_time")
	if err != nil {
		return nil, "unparseable report time: " + err.Error()
	}

	rowVisit := firstString(rec, examAliases, "visit_id")
	if rowVisit == "" {
		rowVisit = visitID
	}

	return &models.ExamResult{
		TenantID:      tenantID,
		ExaminationID: examID,
		PatientID:     patientID,
		VisitID:       rowVisit,
		ExamName:      firstString(rec, examAliases, "exam_name"),
		Finding:       firstString(rec, examAliases, "finding"),
		Conclusion:    firstString(rec, examAliases, "conclusion"),
		ReportTime:    reported,
	}, ""
}
