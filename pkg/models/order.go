package models

import "time"

// MedicalOrder is one physician order. An order is a duplicate of an
// existing one only if that existing order is still active (no stop time);
// a terminated order never blocks a new course of the same order name.
// Temporary and standing orders are deduped independently via RepeatFlag.
// Dedup key among active orders: PatientID + OrderName + OrderDate + RepeatFlag.
type MedicalOrder struct {
	ID        int64      `json:"id"`
	TenantID  string     `json:"tenant_id"`
	PatientID string     `json:"patient_id"`
	VisitID   string     `json:"visit_id"`
	OrderName string     `json:"order_name"`
	OrderDate *time.Time `json:"order_date,omitempty"`
	// RepeatFlag is true for standing (long-term) orders, false for
	// temporary one-shot orders.
	RepeatFlag bool       `json:"repeat_flag"`
	Dosage     string     `json:"dosage"`
	Frequency  string     `json:"frequency"`
	StopTime   *time.Time `json:"stop_time,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Active reports whether the order has not been terminated.
func (o *MedicalOrder) Active() bool {
	return o.StopTime == nil
}

// Key returns the dedup key used to detect an active duplicate.
func (o *MedicalOrder) Key() string {
	ts := ""
	if o.OrderDate != nil {
		ts = o.OrderDate.UTC().Format(time.RFC3339)
	}
	flag := "0"
	if o.RepeatFlag {
		flag = "1"
	}
	return o.PatientID + "|" + o.OrderName + "|" + ts + "|" + flag
}
