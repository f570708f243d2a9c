// Package recon implements the entity reconciliation engine: it pulls a
// source snapshot through a hot-reloadable query template, diffs it
// against the central store and applies insert/update/terminate
// semantics per entity type. Dedup policy deliberately differs per
// entity (a lab result is immutable once issued, an order can be
// renewed, a patient is discharged rather than deleted); the strategies
// are kept distinct rather than unified.
package recon

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medrelay-io/medrelay-engine/pkg/apperrors"
	"github.com/medrelay-io/medrelay-engine/pkg/logging"
	"github.com/medrelay-io/medrelay-engine/pkg/models"
	"github.com/medrelay-io/medrelay-engine/pkg/router"
	"github.com/medrelay-io/medrelay-engine/pkg/store"
)

// TemplateSource resolves a template file path to a parsed template.
// Implemented by the template registry.
type TemplateSource interface {
	Get(path string) *models.QueryTemplate
}

// QueryGate approves statements and screens parameter values before any
// network call. Implemented by the security gate.
type QueryGate interface {
	Check(tenantID, sql string) (bool, string)
	CheckParameters(tenantID string, params map[string]any) error
}

// ConnSource hands out tenant-scoped source connections. Implemented by
// the connection router.
type ConnSource interface {
	Get(ctx context.Context, tenantID string, role models.BackendRole) (router.SourceConn, error)
}

// TenantProvider resolves tenant configuration.
type TenantProvider interface {
	Tenant(id string) (*models.Tenant, bool)
}

// templateFiles maps each entity to its file name under the tenant's
// template directory.
var templateFiles = map[models.EntityType]string{
	models.EntityPatient:   "patient-query.json",
	models.EntityLabResult: "lab-query.json",
	models.EntityOrder:     "order-query.json",
	models.EntityExam:      "exam-query.json",
	models.EntityFreeText:  "freetext-query.json",
}

// TemplatePath returns the template file for a tenant and entity:
// <root>/<tenant-id-lowercased>/<entity>-query.json.
func TemplatePath(root, tenantID string, entity models.EntityType) string {
	return filepath.Join(root, strings.ToLower(tenantID), templateFiles[entity])
}

// ParseTenantVisitID splits a "tenantId:visitId" trigger argument.
func ParseTenantVisitID(tenantVisitID string) (tenantID, visitID string, err error) {
	parts := strings.SplitN(tenantVisitID, ":", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return "", "", fmt.Errorf("%w: %q", apperrors.ErrInvalidTenantVisitID, tenantVisitID)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

// Engine is the shared core of all entity reconcilers.
type Engine struct {
	templateRoot string
	templates    TemplateSource
	gate         QueryGate
	conns        ConnSource
	tenants      TenantProvider
	stores       *store.Stores
	logger       *zap.Logger
}

// NewEngine wires the reconciliation engine in dependency order.
func NewEngine(templateRoot string, templates TemplateSource, gate QueryGate,
	conns ConnSource, tenants TenantProvider, stores *store.Stores, logger *zap.Logger) *Engine {
	return &Engine{
		templateRoot: templateRoot,
		templates:    templates,
		gate:         gate,
		conns:        conns,
		tenants:      tenants,
		stores:       stores,
		logger:       logger.Named("recon"),
	}
}

// fetch resolves the template for (tenant, entity), gates the statement
// and executes it against the tenant's source backend. The visit id is
// the only bound parameter; row cap and timeout are enforced by the
// connection handle.
func (e *Engine) fetch(ctx context.Context, tenantID, visitID string, entity models.EntityType) ([]models.SourceRecord, error) {
	tenant, ok := e.tenants.Tenant(tenantID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrTenantNotFound, tenantID)
	}
	if !tenant.Enabled {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrTenantDisabled, tenantID)
	}

	path := TemplatePath(e.templateRoot, tenantID, entity)
	tpl := e.templates.Get(path)
	if tpl == nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrTemplateNotFound, path)
	}

	sqlText := tpl.EffectiveSQL()
	if ok, reason := e.gate.Check(tenantID, sqlText); !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrQueryRejected, reason)
	}

	params := map[string]any{"visit_id": visitID}
	if err := e.gate.CheckParameters(tenantID, params); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrQueryRejected, err)
	}

	role := tpl.Role
	if role == "" {
		role = models.RolePrimary
	}
	conn, err := e.conns.Get(ctx, tenantID, role)
	if err != nil {
		return nil, err
	}

	result, err := conn.Query(ctx, sqlText, params)
	if err != nil {
		return nil, TranslateExecError(err)
	}
	return result.Rows, nil
}

// startOutcome opens the per-run record.
func startOutcome(tenantID string, entity models.EntityType) *models.SyncOutcome {
	return &models.SyncOutcome{
		RunID:     uuid.New(),
		TenantID:  tenantID,
		Entity:    entity,
		StartedAt: time.Now(),
	}
}

// finish finalizes the outcome, appends it to the append-only log and
// writes the human-readable run summary. The log append is best-effort:
// a full outcome table must not fail an otherwise successful run.
func (e *Engine) finish(ctx context.Context, outcome *models.SyncOutcome, runErr error) {
	outcome.Duration = time.Since(outcome.StartedAt)
	outcome.Success = runErr == nil
	if runErr != nil {
		outcome.Error = logging.SanitizeError(runErr)
	}

	if err := e.stores.Outcomes.Append(ctx, outcome); err != nil {
		e.logger.Warn("failed to append sync outcome",
			zap.String("tenant", outcome.TenantID),
			zap.String("entity", string(outcome.Entity)),
			zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("run_id", outcome.RunID.String()),
		zap.String("tenant", outcome.TenantID),
		zap.String("entity", string(outcome.Entity)),
		zap.Int("source", outcome.SourceCount),
		zap.Int("added", outcome.Added),
		zap.Int("updated", outcome.Updated),
		zap.Int("terminated", outcome.Terminated),
		zap.Int("skipped", outcome.Skipped),
		zap.Int("dropped", outcome.Dropped),
		zap.Duration("took", outcome.Duration),
	}
	if runErr != nil {
		fields = append(fields, zap.String("error", outcome.Error))
		e.logger.Warn("reconciliation failed", fields...)
		return
	}
	e.logger.Info("reconciliation finished", fields...)
}

// dropRow counts and logs one invalid source row without failing the batch.
func (e *Engine) dropRow(outcome *models.SyncOutcome, reason string) {
	outcome.Dropped++
	e.logger.Warn("source row dropped",
		zap.String("tenant", outcome.TenantID),
		zap.String("entity", string(outcome.Entity)),
		zap.String("reason", reason))
}

// skipDuplicate counts an in-snapshot key collision; the first-seen row wins.
func (e *Engine) skipDuplicate(outcome *models.SyncOutcome, key string) {
	outcome.Skipped++
	e.logger.Warn("duplicate key within source snapshot, keeping first row",
		zap.String("tenant", outcome.TenantID),
		zap.String("entity", string(outcome.Entity)),
		zap.String("key", key))
}
