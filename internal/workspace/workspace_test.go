package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castorix/go-workflow-harness/internal/utils/errors"
)

func TestCreateBuildsRootAndCredentials(t *testing.T) {
	root := filepath.Join(t.TempDir(), "test_data")

	ws, err := Create(root, "keys")
	require.NoError(t, err)

	assert.DirExists(t, ws.Root())
	assert.DirExists(t, ws.CredentialsDir())
	assert.Equal(t, filepath.Join(ws.Root(), "keys"), ws.CredentialsDir())
}

func TestCreateEmptiesLeftoverTree(t *testing.T) {
	root := filepath.Join(t.TempDir(), "test_data")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "stale"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stale", "key.json"), []byte("{}"), 0644))

	ws, err := Create(root, "keys")
	require.NoError(t, err)

	assert.NoDirExists(t, filepath.Join(root, "stale"))
	assert.DirExists(t, ws.CredentialsDir())
}

func TestCreateRefusesFileAtRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "test_data")
	require.NoError(t, os.WriteFile(root, []byte("not a dir"), 0644))

	_, err := Create(root, "keys")
	assert.ErrorIs(t, err, errors.ErrWorkspaceExists)
}

func TestCleanIsIdempotent(t *testing.T) {
	root := filepath.Join(t.TempDir(), "test_data")

	ws, err := Create(root, "keys")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(ws.CredentialsDir(), "wallet.json"), []byte("{}"), 0600))

	// First clean removes the tree, every later clean is a no-op
	require.NoError(t, ws.Clean())
	assert.NoDirExists(t, ws.Root())

	require.NoError(t, ws.Clean())
	require.NoError(t, ws.Clean())
}

func TestCleanHonorsKeep(t *testing.T) {
	root := filepath.Join(t.TempDir(), "test_data")

	ws, err := Create(root, "keys")
	require.NoError(t, err)

	ws.SetKeep(true)
	require.NoError(t, ws.Clean())
	assert.DirExists(t, ws.Root())
}
