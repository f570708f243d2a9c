package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitForEvent(t *testing.T, src Source, path string, op Op) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-src.Events():
			if ev.Path == path && ev.Op == op {
				return
			}
		case <-deadline:
			t.Fatalf("no event for %s within deadline", path)
		}
	}
}

func TestPollDetectsNewFile(t *testing.T) {
	root := t.TempDir()
	src := NewPollSource(10*time.Millisecond, root)
	defer src.Close()

	path := filepath.Join(root, "visits.sql")
	require.NoError(t, os.WriteFile(path, []byte("SELECT 1"), 0o644))
	waitForEvent(t, src, path, OpWrite)
}

func TestPollDetectsFileInNewSubdirectory(t *testing.T) {
	root := t.TempDir()
	src := NewPollSource(10*time.Millisecond, root)
	defer src.Close()

	// A tenant directory created after the watch started.
	sub := filepath.Join(root, "tenant-new")
	require.NoError(t, os.Mkdir(sub, 0o755))
	path := filepath.Join(sub, "labs.sql")
	require.NoError(t, os.WriteFile(path, []byte("SELECT 1"), 0o644))
	waitForEvent(t, src, path, OpWrite)
}

func TestPollDetectsRemoval(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "orders.sql")
	require.NoError(t, os.WriteFile(path, []byte("SELECT 1"), 0o644))

	src := NewPollSource(10*time.Millisecond, root)
	defer src.Close()

	require.NoError(t, os.Remove(path))
	waitForEvent(t, src, path, OpRemove)
}
