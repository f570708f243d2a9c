package models

import "time"

// ExamResult is one imaging/examination report. The source system owns
// the record and may amend findings, so the store overwrites mutable
// fields in place. Dedup key: ExaminationID.
type ExamResult struct {
	ID            int64      `json:"id"`
	TenantID      string     `json:"tenant_id"`
	ExaminationID string     `json:"examination_id"`
	PatientID     string     `json:"patient_id"`
	VisitID       string     `json:"visit_id"`
	ExamName      string     `json:"exam_name"`
	// Finding and Conclusion are CLOB-like long text read as plain strings.
	Finding    string     `json:"finding"`
	Conclusion string     `json:"conclusion"`
	ReportTime *time.Time `json:"report_time,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TrackedFieldsEqual reports whether the mutable fields the sync engine
// tracks are identical between two reports.
func (e *ExamResult) TrackedFieldsEqual(o *ExamResult) bool {
	return e.ExamName == o.ExamName &&
		e.Finding == o.Finding &&
		e.Conclusion == o.Conclusion &&
		timePtrEqual(e.ReportTime, o.ReportTime)
}

// ApplyTrackedFields copies the tracked mutable fields from src.
func (e *ExamResult) ApplyTrackedFields(src *ExamResult) {
	e.ExamName = src.ExamName
	e.Finding = src.Finding
	e.Conclusion = src.Conclusion
	e.ReportTime = src.ReportTime
}
