package analytics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	id := NewID()
	assert.Len(t, id, 32)
	assert.NotContains(t, id, "-")
	assert.NotEqual(t, id, NewID())
}

func TestLoadInstallationID_CreatesAndReuses(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	id, created, err := LoadInstallationID(dir)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, id, 32)

	again, created, err := LoadInstallationID(dir)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, again)
}

func TestLoadInstallationID_ReplacesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, installationFile), []byte("not json"), 0644))

	id, created, err := LoadInstallationID(dir)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, id)

	data, err := os.ReadFile(filepath.Join(dir, installationFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), id)
}

func TestLoadInstallationID_KeepsExisting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, installationFile), []byte(`{"installation_id":" fixed-id "}`), 0644))

	id, created, err := LoadInstallationID(dir)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "fixed-id", id)
}
