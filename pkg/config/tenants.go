package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
	"github.com/medrelay-io/medrelay-engine/pkg/watch"
)

// TenantRegistry holds the loaded tenant set. The set is replaced
// wholesale on every reload, never partially mutated, so readers always
// see a consistent snapshot.
type TenantRegistry struct {
	dir    string
	logger *zap.Logger

	mu      sync.RWMutex
	tenants map[string]*models.Tenant
}

// LoadTenants reads every tenant definition file in dir. A single
// invalid file fails the whole load with an error listing every problem
// found, so misconfiguration is caught at startup rather than at the
// first sync.
func LoadTenants(dir string, logger *zap.Logger) (*TenantRegistry, error) {
	r := &TenantRegistry{
		dir:    dir,
		logger: logger.Named("tenants"),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Tenant returns the tenant with the given id.
func (r *TenantRegistry) Tenant(id string) (*models.Tenant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[id]
	return t, ok
}

// Tenants returns a snapshot of all loaded tenants.
func (r *TenantRegistry) Tenants() []*models.Tenant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		out = append(out, t)
	}
	return out
}

// Len returns the number of loaded tenants.
func (r *TenantRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tenants)
}

// Reload re-reads the whole tenant directory and swaps the set in one
// step. On error the previous set stays in place.
func (r *TenantRegistry) Reload() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("failed to read tenant directory %s: %w", r.dir, err)
	}

	loaded := make(map[string]*models.Tenant)
	var problems []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isTenantFile(name) {
			continue
		}
		path := filepath.Join(r.dir, name)

		tenant, errs := loadTenantFile(path)
		if len(errs) > 0 {
			for _, e := range errs {
				problems = append(problems, fmt.Sprintf("%s: %s", name, e))
			}
			continue
		}
		if _, dup := loaded[tenant.ID]; dup {
			problems = append(problems, fmt.Sprintf("%s: duplicate tenant id %q", name, tenant.ID))
			continue
		}
		loaded[tenant.ID] = tenant
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid tenant configuration:\n  %s", strings.Join(problems, "\n  "))
	}

	r.mu.Lock()
	r.tenants = loaded
	r.mu.Unlock()

	r.logger.Info("tenant set loaded", zap.Int("tenants", len(loaded)))
	return nil
}

func isTenantFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// loadTenantFile parses and validates one definition file, returning
// every problem found rather than stopping at the first.
func loadTenantFile(path string) (*models.Tenant, []string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []string{err.Error()}
	}

	var tenant models.Tenant
	if err := yaml.Unmarshal(data, &tenant); err != nil {
		return nil, []string{fmt.Sprintf("yaml: %v", err)}
	}

	// Secrets never live in the definition file; resolve them from the
	// environment before validation so incompleteness is caught here.
	for role, creds := range tenant.Backends {
		if creds.PasswordEnv != "" {
			creds.Password = os.Getenv(creds.PasswordEnv)
		}
		tenant.Backends[role] = creds
	}

	if problems := validateTenant(&tenant); len(problems) > 0 {
		return nil, problems
	}
	return &tenant, nil
}

// validateTenant collects every missing or invalid field at once.
func validateTenant(t *models.Tenant) []string {
	var problems []string
	if strings.TrimSpace(t.ID) == "" {
		problems = append(problems, "id is required")
	}
	switch t.Mode {
	case models.IntegrationDatabase, models.IntegrationAPI:
	case "":
		problems = append(problems, "mode is required (database or api)")
	default:
		problems = append(problems, fmt.Sprintf("unknown mode %q", t.Mode))
	}

	if t.Mode == models.IntegrationDatabase {
		if len(t.Backends) == 0 {
			problems = append(problems, "database mode requires at least one backend")
		}
		for role, creds := range t.Backends {
			if strings.TrimSpace(creds.Driver) == "" {
				problems = append(problems, fmt.Sprintf("backend %s: driver is required", role))
			}
			if strings.TrimSpace(creds.URL) == "" {
				problems = append(problems, fmt.Sprintf("backend %s: url is required", role))
			}
			if strings.TrimSpace(creds.Username) == "" {
				problems = append(problems, fmt.Sprintf("backend %s: username is required", role))
			}
			if strings.TrimSpace(creds.Password) == "" {
				problems = append(problems, fmt.Sprintf("backend %s: password is empty (set %s)", role, creds.PasswordEnv))
			}
		}
	}

	if t.Schedule.Cron != "" && len(strings.Fields(t.Schedule.Cron)) < 5 && !strings.HasPrefix(t.Schedule.Cron, "@") {
		problems = append(problems, fmt.Sprintf("schedule cron %q is not a cron expression", t.Schedule.Cron))
	}
	return problems
}

// WatchDir consumes a change-notification source for the tenant
// directory and reloads the whole set on every event, deletes included.
// Blocks until the source closes; run it in its own goroutine.
func (r *TenantRegistry) WatchDir(source watch.Source) {
	for {
		select {
		case event, ok := <-source.Events():
			if !ok {
				return
			}
			if !isTenantFile(filepath.Base(event.Path)) {
				continue
			}
			if err := r.Reload(); err != nil {
				r.logger.Warn("tenant reload failed, keeping previous set", zap.Error(err))
			}
		case err, ok := <-source.Errors():
			if !ok {
				return
			}
			r.logger.Warn("tenant directory watch error", zap.Error(err))
		}
	}
}
