package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medrelay-io/medrelay-engine/pkg/models"
)

const validTenantYAML = `
id: mercy
name: Mercy General
mode: database
enabled: true
sync_enabled: true
backends:
  primary:
    driver: sqlserver
    url: sqlserver://his.mercy.local:1433?database=HIS
    username: sync_reader
    password_env: MERCY_PRIMARY_PASSWORD
schedule:
  cron: "@every 10m"
  retry_count: 3
  retry_interval_seconds: 30
`

func writeTenantFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadTenantsResolvesPasswordFromEnv(t *testing.T) {
	dir := t.TempDir()
	writeTenantFile(t, dir, "mercy.yaml", validTenantYAML)
	t.Setenv("MERCY_PRIMARY_PASSWORD", "s3cret")

	reg, err := LoadTenants(dir, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())

	tenant, ok := reg.Tenant("mercy")
	require.True(t, ok)
	creds, ok := tenant.Backend(models.RolePrimary)
	require.True(t, ok)
	assert.Equal(t, "s3cret", creds.Password)
	assert.Equal(t, "sqlserver", creds.Driver)
}

func TestLoadTenantsListsAllProblemsAtOnce(t *testing.T) {
	dir := t.TempDir()
	writeTenantFile(t, dir, "broken.yaml", `
id: broken
mode: database
backends:
  primary:
    driver: ""
    url: ""
    username: reader
    password_env: UNSET_PASSWORD_VAR
`)

	_, err := LoadTenants(dir, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "driver is required")
	assert.Contains(t, err.Error(), "url is required")
	assert.Contains(t, err.Error(), "password is empty")
}

func TestLoadTenantsRejectsDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MERCY_PRIMARY_PASSWORD", "x")
	writeTenantFile(t, dir, "a.yaml", validTenantYAML)
	writeTenantFile(t, dir, "b.yaml", validTenantYAML)

	_, err := LoadTenants(dir, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate tenant id")
}

func TestLoadTenantsIgnoresNonYAMLFiles(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MERCY_PRIMARY_PASSWORD", "x")
	writeTenantFile(t, dir, "mercy.yaml", validTenantYAML)
	writeTenantFile(t, dir, "README.md", "not a tenant")

	reg, err := LoadTenants(dir, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())
}

func TestReloadSwapsWholesaleAndKeepsOldSetOnError(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MERCY_PRIMARY_PASSWORD", "x")
	writeTenantFile(t, dir, "mercy.yaml", validTenantYAML)

	reg, err := LoadTenants(dir, zap.NewNop())
	require.NoError(t, err)

	// A new invalid file must not evict the working set.
	writeTenantFile(t, dir, "bad.yaml", "id: bad\nmode: nonsense\n")
	require.Error(t, reg.Reload())
	_, ok := reg.Tenant("mercy")
	assert.True(t, ok)

	// Removing the invalid file and adding an api-mode tenant replaces the set.
	require.NoError(t, os.Remove(filepath.Join(dir, "bad.yaml")))
	writeTenantFile(t, dir, "stjude.yaml", "id: stjude\nname: St Jude\nmode: api\nenabled: true\n")
	require.NoError(t, reg.Reload())
	assert.Equal(t, 2, reg.Len())
}

func TestValidateTenantAPIModeNeedsNoBackends(t *testing.T) {
	problems := validateTenant(&models.Tenant{ID: "push-only", Mode: models.IntegrationAPI})
	assert.Empty(t, problems)
}
