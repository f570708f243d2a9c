package template

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeTemplate(t *testing.T, dir, file, content string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRegistryLoadAndGet(t *testing.T) {
	dir := t.TempDir()
	path := writeTemplate(t, dir, "patient-query.json",
		`{"name":"patient-query","sql":"SELECT * FROM pat_visit"}`)

	r := NewRegistry(zap.NewNop())

	tpl := r.Get(path)
	require.NotNil(t, tpl)
	assert.Equal(t, "patient-query", tpl.Name)
	assert.Equal(t, 1, r.Len())

	// Second Get hits the cache and returns the same object.
	assert.Same(t, tpl, r.Get(path))
}

func TestRegistryLoadFailureLeavesCacheUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := writeTemplate(t, dir, "q.json", `{"name":"q","sql":"SELECT 1"}`)

	r := NewRegistry(zap.NewNop())
	require.NotNil(t, r.Load(path))

	// Corrupt the file; reload must fail and keep the old entry absent,
	// without disturbing other state.
	require.NoError(t, os.WriteFile(path, []byte(`{"name":`), 0o644))
	assert.Nil(t, r.Load(path))
	assert.Equal(t, 1, r.Len(), "failed load must not evict the valid entry")

	missing := filepath.Join(dir, "nope.json")
	assert.Nil(t, r.Load(missing))
}

func TestRegistryGetByName(t *testing.T) {
	dir := t.TempDir()
	path := writeTemplate(t, dir, "lab-query.json", `{"name":"lab-query","sql":"SELECT 1"}`)

	r := NewRegistry(zap.NewNop())

	// Name lookup before any path load fails even though a path lookup
	// would succeed.
	assert.Nil(t, r.GetByName("lab-query"))

	require.NotNil(t, r.Load(path))
	got := r.GetByName("lab-query")
	require.NotNil(t, got)
	assert.Equal(t, path, got.Path)
}

func TestRegistryHotReload(t *testing.T) {
	dir := t.TempDir()
	path := writeTemplate(t, dir, "q.json", `{"name":"q","sql":"SELECT 1"}`)

	r := NewRegistry(zap.NewNop())
	require.NotNil(t, r.Load(path))
	assert.Equal(t, "SELECT 1", r.Get(path).EffectiveSQL())

	writeTemplate(t, dir, "q.json", `{"name":"q","sql":"SELECT 2"}`)
	r.HandleFileChange(path)

	assert.Equal(t, "SELECT 2", r.Get(path).EffectiveSQL(),
		"next Get must return the new content")
}

func TestRegistryConcurrentReloadSafety(t *testing.T) {
	dir := t.TempDir()
	path := writeTemplate(t, dir, "q.json", `{"name":"q","sql":"SELECT 1"}`)

	r := NewRegistry(zap.NewNop())
	require.NotNil(t, r.Load(path))

	const n = 32
	var wg sync.WaitGroup
	wg.Add(n * 2)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			r.HandleFileChange(path)
		}()
		go func() {
			defer wg.Done()
			// Readers must never observe a partial entry: either nil
			// (mid-swap) is impossible after initial load completes, or
			// a fully valid template.
			if tpl := r.Get(path); tpl != nil {
				assert.Equal(t, "q", tpl.Name)
				assert.NotEmpty(t, tpl.EffectiveSQL())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, r.Len(), "exactly one template visible afterward")
	require.NotNil(t, r.Get(path))
}

func TestRegistryReloadAll(t *testing.T) {
	dir := t.TempDir()
	good := writeTemplate(t, dir, "good.json", `{"name":"good","sql":"SELECT 1"}`)
	bad := writeTemplate(t, dir, "bad.json", `{"name":"bad","sql":"SELECT 1"}`)

	r := NewRegistry(zap.NewNop())
	require.NotNil(t, r.Load(good))
	require.NotNil(t, r.Load(bad))

	// Break one file; the sweep continues past it.
	require.NoError(t, os.WriteFile(bad, []byte("not json"), 0o644))
	assert.Equal(t, 1, r.ReloadAll())
}

func TestRegistryEvict(t *testing.T) {
	dir := t.TempDir()
	path := writeTemplate(t, dir, "q.json", `{"name":"q","sql":"SELECT 1"}`)

	r := NewRegistry(zap.NewNop())
	require.NotNil(t, r.Load(path))

	r.Evict(path)
	assert.Equal(t, 0, r.Len())
	assert.Nil(t, r.GetByName("q"))
}

func TestRegistryReloadStats(t *testing.T) {
	dir := t.TempDir()
	path := writeTemplate(t, dir, "q.json", `{"name":"q","sql":"SELECT 1"}`)

	r := NewRegistry(zap.NewNop())
	r.Load(path)
	r.Load(path)

	inFlight, total := r.ReloadStats()
	assert.Equal(t, int64(0), inFlight)
	assert.Equal(t, int64(2), total)
}
