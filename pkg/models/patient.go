package models

import "time"

// Patient is the central-store representation of one admitted patient.
// Dedup key: SourceID + VisitID. Patients are never deleted; a patient
// missing from the latest source snapshot is flagged discharged.
type Patient struct {
	ID            int64      `json:"id"`
	TenantID      string     `json:"tenant_id"`
	SourceID      string     `json:"source_id"` // patient id in the hospital system
	VisitID       string     `json:"visit_id"`
	Name          string     `json:"name"`
	Gender        string     `json:"gender"`
	BirthDate     *time.Time `json:"birth_date,omitempty"`
	Department    string     `json:"department"`
	BedNo         string     `json:"bed_no"`
	AdmissionTime *time.Time `json:"admission_time,omitempty"`
	InHospital    bool       `json:"in_hospital"`
	DischargeTime *time.Time `json:"discharge_time,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Key returns the dedup key for a patient within one tenant.
func (p *Patient) Key() string {
	return p.SourceID + "|" + p.VisitID
}

// TrackedFieldsEqual reports whether all mutable fields the sync engine
// tracks are identical between two records. Identity fields (SourceID,
// VisitID) and discharge state are deliberately excluded.
func (p *Patient) TrackedFieldsEqual(o *Patient) bool {
	return p.Name == o.Name &&
		p.Gender == o.Gender &&
		p.Department == o.Department &&
		p.BedNo == o.BedNo &&
		timePtrEqual(p.BirthDate, o.BirthDate) &&
		timePtrEqual(p.AdmissionTime, o.AdmissionTime)
}

// ApplyTrackedFields copies the tracked mutable fields from src.
func (p *Patient) ApplyTrackedFields(src *Patient) {
	p.Name = src.Name
	p.Gender = src.Gender
	p.Department = src.Department
	p.BedNo = src.BedNo
	p.BirthDate = src.BirthDate
	p.AdmissionTime = src.AdmissionTime
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
