package models

import (
	"time"

	"github.com/google/uuid"
)

// EntityType names one reconciled entity kind.
type EntityType string

const (
	EntityPatient   EntityType = "patient"
	EntityLabResult EntityType = "lab_result"
	EntityOrder     EntityType = "order"
	EntityExam      EntityType = "exam_result"
	EntityFreeText  EntityType = "free_text"
)

// SyncOutcome is the per-run record of one reconciliation. Created at run
// start, finalized at run end, appended to an append-only log.
type SyncOutcome struct {
	RunID       uuid.UUID     `json:"run_id"`
	TenantID    string        `json:"tenant_id"`
	Entity      EntityType    `json:"entity"`
	SourceCount int           `json:"source_count"`
	Added       int           `json:"added"`
	Updated     int           `json:"updated"`
	Terminated  int           `json:"terminated"` // discharged patients / stopped orders
	Skipped     int           `json:"skipped"`    // in-snapshot and store duplicates
	Dropped     int           `json:"dropped"`    // rows failing mandatory-field checks
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
}
