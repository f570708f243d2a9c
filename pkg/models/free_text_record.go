package models

import "time"

// FreeTextRecord is one free-text clinical document (progress note,
// operation record, nursing record). Identified by the source table it
// came from plus the row id within that table; re-synced content
// overwrites the stored copy. Dedup key: SourceTable + SourceID.
type FreeTextRecord struct {
	ID          int64      `json:"id"`
	TenantID    string     `json:"tenant_id"`
	SourceTable string     `json:"source_table"`
	SourceID    string     `json:"source_id"`
	PatientID   string     `json:"patient_id"`
	VisitID     string     `json:"visit_id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"` // CLOB read as plain string
	DocTime     *time.Time `json:"doc_time,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TrackedFieldsEqual reports whether the mutable fields the sync engine
// tracks are identical between two documents.
func (r *FreeTextRecord) TrackedFieldsEqual(o *FreeTextRecord) bool {
	return r.Title == o.Title &&
		r.Content == o.Content &&
		timePtrEqual(r.DocTime, o.DocTime)
}

// ApplyTrackedFields copies the tracked mutable fields from src.
func (r *FreeTextRecord) ApplyTrackedFields(src *FreeTextRecord) {
	r.Title = src.Title
	r.Content = src.Content
	r.DocTime = src.DocTime
}
