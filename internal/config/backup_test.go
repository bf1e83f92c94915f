package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeUserConfig(t *testing.T, content string) string {
	t.Helper()
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	dir := filepath.Join(xdg, "bookrag")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBackupUserConfig(t *testing.T) {
	t.Run("backs up existing config", func(t *testing.T) {
		writeUserConfig(t, "retrieval:\n  k: 7\n")

		backupPath, err := BackupUserConfig()
		require.NoError(t, err)
		require.NotEmpty(t, backupPath)

		data, err := os.ReadFile(backupPath)
		require.NoError(t, err)
		assert.Contains(t, string(data), "k: 7")
	})

	t.Run("no config means no backup", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())

		backupPath, err := BackupUserConfig()
		require.NoError(t, err)
		assert.Empty(t, backupPath)
	})
}

func TestListUserConfigBackups(t *testing.T) {
	writeUserConfig(t, "version: 1\n")

	first, err := BackupUserConfig()
	require.NoError(t, err)

	backups, err := ListUserConfigBackups()
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, first, backups[0])
}

func TestListUserConfigBackupsNoDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(t.TempDir(), "missing"))

	backups, err := ListUserConfigBackups()
	require.NoError(t, err)
	assert.Empty(t, backups)
}
