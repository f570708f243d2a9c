package recon

import (
	"context"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
)

// SyncOrders runs the insert-with-active-window reconcile for medical
// orders. An incoming order is a duplicate only if an active
// (non-terminated) order exists with the same key; a terminated course
// never blocks a renewal. Standing and temporary orders dedup
// independently via the repeat flag.
func (e *Engine) SyncOrders(ctx context.Context, tenantID, visitID string) (*models.SyncOutcome, error) {
	outcome := startOutcome(tenantID, models.EntityOrder)

	rows, err := e.fetch(ctx, tenantID, visitID, models.EntityOrder)
	if err != nil {
		e.finish(ctx, outcome, err)
		return outcome, err
	}
	outcome.SourceCount = len(rows)

	seen := make(map[string]struct{}, len(rows))
	var toSave []*models.MedicalOrder
	for _, row := range rows {
		o, reason := mapOrder(row, tenantID, visitID)
		if o == nil {
			e.dropRow(outcome, reason)
			continue
		}
		key := o.Key()
		if _, dup := seen[key]; dup {
			e.skipDuplicate(outcome, key)
			continue
		}
		seen[key] = struct{}{}

		active, err := e.stores.Orders.FindActive(ctx, tenantID, o.PatientID, o.OrderName, o.OrderDate, o.RepeatFlag)
		if err != nil {
			e.finish(ctx, outcome, err)
			return outcome, err
		}
		if active != nil {
			if o.StopTime != nil {
				// The source terminated the course we hold as active.
				active.StopTime = o.StopTime
				outcome.Terminated++
				toSave = append(toSave, active)
				continue
			}
			outcome.Skipped++
			continue
		}
		outcome.Added++
		toSave = append(toSave, o)
	}

	if len(toSave) > 0 {
		if err := e.stores.Orders.SaveAll(ctx, toSave); err != nil {
			e.finish(ctx, outcome, err)
			return outcome, err
		}
	}

	e.finish(ctx, outcome, nil)
	return outcome, nil
}

func mapOrder(rec models.SourceRecord, tenantID, visitID string) (*models.MedicalOrder, string) {
	patientID := firstString(rec, orderAliases, "patient_id")
	if patientID == "" {
		return nil, "missing patient id"
	}
	orderName := firstString(rec, orderAliases, "order_name")
	if orderName == "" {
		return nil, "missing order name"
	}

	orderDate, err := firstTime(rec, orderAliases, "order_date")
	if err != nil {
		return nil, "unparseable order date: " + err.Error()
	}
	stopTime, err := firstTime(rec, orderAliases, "stop_time")
	if err != nil {
		return nil, "unparseable stop time: " + err.Error()
	}

	rowVisit := firstString(rec, orderAliases, "visit_id")
	if rowVisit == "" {
		rowVisit = visitID
	}

	return &models.MedicalOrder{
		TenantID:   tenantID,
		PatientID:  patientID,
		VisitID:    rowVisit,
		OrderName:  orderName,
		OrderDate:  orderDate,
		RepeatFlag: parseBoolFlag(firstString(rec, orderAliases, "repeat_flag")),
		Dosage:     firstString(rec, orderAliases, "dosage"),
		Frequency:  firstString(rec, orderAliases, "frequency"),
		StopTime:   stopTime,
	}, ""
}
