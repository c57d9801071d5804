package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestArtifactStoreSaveBucketsByMonth(t *testing.T) {
	store, err := NewArtifactStore(t.TempDir())
	require.NoError(t, err)

	rel, err := store.Save("calllist_list-1.csv", []byte("position,candidate\n"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(time.Now().UTC().Format("2006-01"), "calllist_list-1.csv"), rel)

	file, err := store.Open(rel)
	require.NoError(t, err)
	defer file.Close()
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	require.Equal(t, "position,candidate\n", string(data))
}

func TestArtifactStoreRejectsTraversal(t *testing.T) {
	store, err := NewArtifactStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open("../outside.csv")
	require.Error(t, err)
	_, err = store.Open("/etc/passwd")
	require.Error(t, err)
}

func TestArtifactStoreCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewArtifactStore(dir)
	require.NoError(t, err)

	oldRel, err := store.Save("stale.csv", []byte("old"))
	require.NoError(t, err)
	oldPath := filepath.Join(dir, oldRel)
	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, stale, stale))

	freshRel, err := store.Save("fresh.csv", []byte("new"))
	require.NoError(t, err)

	deleted, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	require.Equal(t, []string{oldRel}, deleted)

	_, err = store.Open(oldRel)
	require.Error(t, err)
	file, err := store.Open(freshRel)
	require.NoError(t, err)
	file.Close()
}
