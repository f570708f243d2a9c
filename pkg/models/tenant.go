package models

// IntegrationMode describes how a tenant's clinical data is reached.
type IntegrationMode string

const (
	// IntegrationDatabase means we pull directly from the hospital's source databases.
	IntegrationDatabase IntegrationMode = "database"
	// IntegrationAPI means the hospital pushes through an external API (no direct DB access).
	IntegrationAPI IntegrationMode = "api"
)

// BackendRole names a source-database target within a tenant.
// A hospital typically exposes its clinical system and its lab system
// as separate databases with independent credentials.
type BackendRole string

const (
	RolePrimary BackendRole = "primary"
	RoleLab     BackendRole = "lab"
)

// BackendCredentials holds connection details for one backend role.
// Driver selects the source adapter ("postgres", "sqlserver", "mysql").
type BackendCredentials struct {
	Driver   string `yaml:"driver" json:"driver"`
	URL      string `yaml:"url" json:"url"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"-" json:"-"`
	// PasswordEnv names the environment variable carrying the password.
	// Secrets never live in tenant definition files.
	PasswordEnv string `yaml:"password_env" json:"password_env"`
}

// SyncSchedule describes when and how often a tenant is synced.
type SyncSchedule struct {
	Cron          string `yaml:"cron" json:"cron"`
	RetryCount    int    `yaml:"retry_count" json:"retry_count"`
	RetryInterval int    `yaml:"retry_interval_seconds" json:"retry_interval_seconds"`
}

// Tenant is one hospital/site with its own source credentials and sync
// configuration. Loaded from a definition file at startup and replaced
// wholesale on file change, never partially mutated.
type Tenant struct {
	ID          string                             `yaml:"id" json:"id"`
	Name        string                             `yaml:"name" json:"name"`
	Mode        IntegrationMode                    `yaml:"mode" json:"mode"`
	Enabled     bool                               `yaml:"enabled" json:"enabled"`
	SyncEnabled bool                               `yaml:"sync_enabled" json:"sync_enabled"`
	Backends    map[BackendRole]BackendCredentials `yaml:"backends" json:"backends"`
	Schedule    SyncSchedule                       `yaml:"schedule" json:"schedule"`
}

// Backend returns the credentials for a role, if configured.
func (t *Tenant) Backend(role BackendRole) (BackendCredentials, bool) {
	c, ok := t.Backends[role]
	return c, ok
}
