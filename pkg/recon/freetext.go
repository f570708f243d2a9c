package recon

import (
	"context"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
)

// SyncFreeText runs the insert-or-update reconcile for free-text
// clinical documents. A row carrying a non-zero delete marker is
// excluded before it reaches the store.
func (e *Engine) SyncFreeText(ctx context.Context, tenantID, visitID string) (*models.SyncOutcome, error) {
	outcome := startOutcome(tenantID, models.EntityFreeText)

	rows, err := e.fetch(ctx, tenantID, visitID, models.EntityFreeText)
	if err != nil {
		e.finish(ctx, outcome, err)
		return outcome, err
	}
	outcome.SourceCount = len(rows)

	seen := make(map[string]struct{}, len(rows))
	var toSave []*models.FreeTextRecord
	for _, row := range rows {
		incoming, reason := mapFreeText(row, tenantID, visitID)
		if incoming == nil {
			e.dropRow(outcome, reason)
			continue
		}
		key := incoming.SourceTable + "|" + incoming.SourceID
		if _, dup := seen[key]; dup {
			e.skipDuplicate(outcome, key)
			continue
		}
		seen[key] = struct{}{}

		existing, err := e.stores.FreeText.FindBySource(ctx, tenantID, incoming.SourceTable, incoming.SourceID)
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
		if err := e.stores.FreeText.SaveAll(ctx, toSave); err != nil {
			e.finish(ctx, outcome, err)
			return outcome, err
		}
	}

	e.finish(ctx, outcome, nil)
	return outcome, nil
}

func mapFreeText(rec models.SourceRecord, tenantID, visitID string) (*models.FreeTextRecord, string) {
	sourceID := firstString(rec, freeTextAliases, "source_id")
	if sourceID == "" {
		return nil, "missing source id"
	}
	if mark := firstString(rec, freeTextAliases, "delete_mark"); mark != "" && parseBoolFlag(mark) {
		return nil, "delete marker set at source"
	}

	docTime, err := firstTime(rec, freeTextAliases, "doc_time")
	if err != nil {
		return nil, "unparseable document time: " + err.Error()
	}

	table := firstString(rec, freeTextAliases, "source_table")
	if table == "" {
		table = "FREE_TEXT"
	}
	rowVisit := firstString(rec, freeTextAliases, "visit_id")
	if rowVisit == "" {
		rowVisit = visitID
	}

	return &models.FreeTextRecord{
		TenantID:    tenantID,
		SourceTable: table,
		SourceID:    sourceID,
		PatientID:   firstString(rec, freeTextAliases, "patient_id"),
		VisitID:     rowVisit,
		Title:       firstString(rec, freeTextAliases, "title"),
		Content:     firstString(rec, freeTextAliases, "content"),
		DocTime:     docTime,
	}, ""
}
