package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/medrelay-io/medrelay-engine/pkg/audit"
	"github.com/medrelay-io/medrelay-engine/pkg/config"
	"github.com/medrelay-io/medrelay-engine/pkg/models"
	"github.com/medrelay-io/medrelay-engine/pkg/probe"
	"github.com/medrelay-io/medrelay-engine/pkg/recon"
	"github.com/medrelay-io/medrelay-engine/pkg/router"
	_ "github.com/medrelay-io/medrelay-engine/pkg/router/drivers/mysql"
	_ "github.com/medrelay-io/medrelay-engine/pkg/router/drivers/postgres"
	_ "github.com/medrelay-io/medrelay-engine/pkg/router/drivers/sqlserver"
	"github.com/medrelay-io/medrelay-engine/pkg/secgate"
	"github.com/medrelay-io/medrelay-engine/pkg/store"
	"github.com/medrelay-io/medrelay-engine/pkg/template"
	"github.com/medrelay-io/medrelay-engine/pkg/watch"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting medrelay-engine",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("template_root", cfg.TemplateRoot),
		zap.String("tenant_dir", cfg.TenantDir),
		zap.Strings("drivers", router.RegisteredDrivers()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tenant definitions, failing fast on any misconfigured file.
	tenants, err := config.LoadTenants(cfg.TenantDir, logger)
	if err != nil {
		logger.Fatal("tenant configuration invalid", zap.Error(err))
	}

	// Central store: migrate, then open the pool the repositories share.
	migrateDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("failed to open central store for migration", zap.Error(err))
	}
	if err := store.RunMigrations(migrateDB, cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("central store migration failed", zap.Error(err))
	}
	_ = migrateDB.Close()

	pool, err := pgxpool.New(ctx, cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("failed to connect to central store", zap.Error(err))
	}
	defer pool.Close()
	stores := store.NewPgStores(pool)

	// Template registry, preloaded so name lookups work from the start,
	// then kept fresh by the watch loop.
	registry := template.NewRegistry(logger)
	preloadTemplates(registry, cfg.TemplateRoot, logger)

	templateSource, err := newWatchSource(cfg.WatchMode, templateDirs(cfg.TemplateRoot))
	if err != nil {
		logger.Fatal("failed to watch template root", zap.Error(err))
	}
	watcher := template.NewWatcher(registry, templateSource, logger)
	watcher.Start()

	// Tenant directory: wholesale reload on any change, deletes included.
	tenantSource, err := newWatchSource(cfg.WatchMode, []string{cfg.TenantDir})
	if err != nil {
		logger.Fatal("failed to watch tenant directory", zap.Error(err))
	}
	go tenants.WatchDir(tenantSource)

	// Query path: gate in front of the per-tenant connection router.
	auditor := audit.NewSecurityAuditor(logger)
	gate := secgate.NewGate(auditor, logger)
	rtr := router.New(tenants, router.Options{
		QueryTimeout: cfg.Source.QueryTimeout(),
		MaxRows:      cfg.Source.MaxRows,
		FetchSize:    cfg.Source.FetchSize,
	}, logger)
	defer rtr.Close()

	prober := probe.New(tenants, probe.ProberFunc(func(ctx context.Context, tenantID string) error {
		return rtr.TestConnection(ctx, tenantID, models.RolePrimary)
	}), logger)

	engine := recon.NewEngine(cfg.TemplateRoot, registry, gate, rtr, tenants, stores, logger)
	service := recon.NewService(engine)

	// Cron: connectivity sweep plus each tenant's own sync schedule.
	runner := cron.New()
	if _, err := prober.Schedule(runner, cfg.ProbeSweepSpec); err != nil {
		logger.Fatal("invalid probe sweep spec", zap.Error(err))
	}
	registerSyncSchedules(runner, tenants, service, stores, logger)
	runner.Start()

	logger.Info("medrelay-engine running",
		zap.Int("tenants", tenants.Len()),
		zap.Int("templates", registry.Len()))

	<-ctx.Done()
	logger.Info("shutting down")

	cronCtx := runner.Stop()
	<-cronCtx.Done()
	watcher.Stop(template.DefaultStopGrace)
	_ = tenantSource.Close()
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// templateDirs lists the template root plus the per-tenant
// subdirectories present at startup. Directories created later are
// picked up by the watch sources themselves.
func templateDirs(root string) []string {
	dirs := []string{root}
	entries, err := os.ReadDir(root)
	if err != nil {
		return dirs
	}
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(root, entry.Name()))
		}
	}
	return dirs
}

func newWatchSource(mode string, dirs []string) (watch.Source, error) {
	if mode == config.WatchPoll {
		return watch.NewPollSource(watch.DefaultPollInterval, dirs...), nil
	}
	return watch.NewFSNotifySource(dirs...)
}

// preloadTemplates loads every template file under the root so
// GetByName works before the first file change.
func preloadTemplates(registry *template.Registry, root string, logger *zap.Logger) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".json") {
			if registry.Load(path) != nil {
				count++
			}
		}
		return nil
	})
	if err != nil {
		logger.Warn("template preload incomplete", zap.Error(err))
	}
	logger.Info("templates preloaded", zap.Int("loaded", count))
}

// registerSyncSchedules adds one cron entry per sync-enabled tenant,
// running a full import for every visit currently in hospital.
func registerSyncSchedules(runner *cron.Cron, tenants *config.TenantRegistry,
	service *recon.Service, stores *store.Stores, logger *zap.Logger) {
	for _, tenant := range tenants.Tenants() {
		if !tenant.Enabled || !tenant.SyncEnabled || tenant.Schedule.Cron == "" {
			continue
		}
		tenantID := tenant.ID
		_, err := runner.AddFunc(tenant.Schedule.Cron, func() {
			syncTenant(context.Background(), tenantID, service, stores, logger)
		})
		if err != nil {
			logger.Warn("invalid sync schedule, tenant will only sync on demand",
				zap.String("tenant", tenantID),
				zap.String("cron", tenant.Schedule.Cron),
				zap.Error(err))
		}
	}
}

// syncTenant imports every entity type for each distinct in-hospital
// visit of one tenant. A failing visit is logged and the rest continue.
func syncTenant(ctx context.Context, tenantID string, service *recon.Service,
	stores *store.Stores, logger *zap.Logger) {
	patients, err := stores.Patients.ListInHospitalByDepartment(ctx, tenantID, "")
	if err != nil {
		logger.Warn("scheduled sync could not list visits",
			zap.String("tenant", tenantID), zap.Error(err))
		return
	}

	visits := make(map[string]struct{})
	for _, p := range patients {
		visits[p.VisitID] = struct{}{}
	}

	for visitID := range visits {
		if _, err := service.ImportAll(ctx, tenantID+":"+visitID); err != nil {
			logger.Warn("scheduled sync failed for visit",
				zap.String("tenant", tenantID),
				zap.String("visit", visitID),
				zap.Error(err))
		}
	}
}
