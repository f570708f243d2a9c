// Package audit provides security audit logging for SIEM consumption.
// Every query-gate decision is recorded in structured JSON form so
// rejected statements can be traced back to the template that produced
// them.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medrelay-io/medrelay-engine/pkg/logging"
)

// EventType categorizes security-relevant events for filtering and alerting.
type EventType string

const (
	// EventQueryCheck is logged for every security-gate evaluation,
	// accepted or rejected.
	EventQueryCheck EventType = "query_check"
	// EventInjectionAttempt is logged when libinjection flags a
	// parameter value.
	EventInjectionAttempt EventType = "injection_attempt"
)

// QueryCheckRecord is the audit record for one gate evaluation.
type QueryCheckRecord struct {
	CheckID   uuid.UUID `json:"check_id"`
	Timestamp time.Time `json:"timestamp"`
	EventType EventType `json:"event_type"`
	TenantID  string    `json:"tenant_id,omitempty"`
	SQL       string    `json:"sql"` // truncated, never the full statement
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason,omitempty"`
	LatencyMs float64   `json:"latency_ms"`
	Severity  string    `json:"severity"` // info, warning, critical
}

// SecurityAuditor logs security events under a dedicated logger namespace
// so SIEM pipelines can filter on it.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates an auditor with the "security_audit" namespace.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogQueryCheck records one gate verdict. Accepted checks log at INFO;
// rejections log at WARN with the failing rule as the reason.
func (a *SecurityAuditor) LogQueryCheck(tenantID, sql string, allowed bool, reason string, latency time.Duration) uuid.UUID {
	record := QueryCheckRecord{
		CheckID:   uuid.New(),
		Timestamp: time.Now().UTC(),
		EventType: EventQueryCheck,
		TenantID:  tenantID,
		SQL:       logging.TruncateSQL(sql),
		Allowed:   allowed,
		Reason:    reason,
		LatencyMs: float64(latency.Microseconds()) / 1000.0,
		Severity:  severityFor(allowed),
	}

	// Marshaling known types does not fail.
	recordJSON, _ := json.Marshal(record)

	fields := []zap.Field{
		zap.String("event_json", string(recordJSON)),
		zap.String("check_id", record.CheckID.String()),
		zap.String("tenant_id", tenantID),
		zap.String("sql", record.SQL),
		zap.Bool("allowed", allowed),
		zap.Float64("latency_ms", record.LatencyMs),
	}
	if allowed {
		a.logger.Info("query check passed", fields...)
	} else {
		fields = append(fields, zap.String("reason", reason))
		a.logger.Warn("query check rejected", fields...)
	}
	return record.CheckID
}

// LogInjectionAttempt records a parameter value flagged by libinjection.
// Logged at ERROR with critical severity for immediate alerting.
func (a *SecurityAuditor) LogInjectionAttempt(tenantID, paramName, fingerprint string) {
	record := map[string]any{
		"check_id":    uuid.New().String(),
		"timestamp":   time.Now().UTC(),
		"event_type":  EventInjectionAttempt,
		"tenant_id":   tenantID,
		"param_name":  paramName,
		"fingerprint": fingerprint,
		"severity":    "critical",
	}
	recordJSON, _ := json.Marshal(record)

	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", string(recordJSON)),
		zap.String("tenant_id", tenantID),
		zap.String("param_name", paramName),
		zap.String("fingerprint", fingerprint),
		zap.String("severity", "critical"),
	)
}

func severityFor(allowed bool) string {
	if allowed {
		return "info"
	}
	return "warning"
}
