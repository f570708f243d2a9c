package models

import "time"

// LabResult is one issued laboratory result. Results are immutable once
// issued: a changed value arrives as a new row with a new report time,
// so the store only ever inserts, never updates.
// Dedup key: PatientID + LabName + ReportTime + ResultValue.
type LabResult struct {
	ID             int64      `json:"id"`
	TenantID       string     `json:"tenant_id"`
	PatientID      string     `json:"patient_id"`
	VisitID        string     `json:"visit_id"`
	LabName        string     `json:"lab_name"`
	ResultValue    string     `json:"result_value"`
	Unit           string     `json:"unit"`
	ReferenceRange string     `json:"reference_range"`
	AbnormalFlag   string     `json:"abnormal_flag"`
	ReportTime     *time.Time `json:"report_time,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Key returns the dedup key for a lab result within one tenant.
func (r *LabResult) Key() string {
	ts := ""
	if r.ReportTime != nil {
		ts = r.ReportTime.UTC().Format(time.RFC3339)
	}
	return r.PatientID + "|" + r.LabName + "|" + ts + "|" + r.ResultValue
}
