package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotMissingTargetIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	mgr := NewBackupManager(filepath.Join(dir, BackupDirName), 0, steppingClock())
	path, err := mgr.Snapshot(filepath.Join(dir, "spec.fdml"))
	require.NoError(t, err)
	assert.Empty(t, path)
	_, err = os.Stat(mgr.Dir())
	assert.True(t, os.IsNotExist(err), "backup dir must not be created")
}

func TestSnapshotCopiesTargetVerbatim(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "spec.fdml")
	content := []byte("entities:\n  - id: user\n")
	require.NoError(t, os.WriteFile(target, content, 0o644))

	mgr := NewBackupManager(filepath.Join(dir, BackupDirName), 0, steppingClock())
	path, err := mgr.Snapshot(target)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "spec.fdml.20240305T070810"))
	assert.True(t, strings.HasSuffix(path, ".bak"))
	copied, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, copied)
}

func TestSnapshotRotationKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "spec.fdml")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	mgr := NewBackupManager(filepath.Join(dir, BackupDirName), 2, steppingClock())

	var paths []string
	for i := 0; i < 4; i++ {
		path, err := mgr.Snapshot(target)
		require.NoError(t, err)
		paths = append(paths, path)
	}
	backups, err := mgr.List(target)
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, paths[3], backups[0].Path)
	assert.Equal(t, paths[2], backups[1].Path)
}

func TestListIgnoresOtherTargets(t *testing.T) {
	dir := t.TempDir()
	backups := filepath.Join(dir, BackupDirName)
	require.NoError(t, os.MkdirAll(backups, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(backups, "other.fdml.20240101T000000.000000000.bak"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(backups, "spec.fdml.garbage.bak"), []byte("x"), 0o644))

	list, err := NewBackupManager(backups, 0, nil).List(filepath.Join(dir, "spec.fdml"))
	require.NoError(t, err)
	assert.Empty(t, list)
}
