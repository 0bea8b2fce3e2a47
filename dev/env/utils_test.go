package devenv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePathPassthrough(t *testing.T) {
	path, err := ResolvePath("/var/cache/easymap")
	require.NoError(t, err)
	require.Equal(t, "/var/cache/easymap", path)
}

func TestResolvePathDevState(t *testing.T) {
	root, err := GetWorkspaceRoot()
	require.NoError(t, err)

	path, err := ResolvePath("<dev_state>/cache")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "dev", ".state", "cache"), path)

	_, err = os.Stat(filepath.Join(root, "dev", ".state"))
	require.NoError(t, err)
}

func TestIsWorkspaceRoot(t *testing.T) {
	dir := t.TempDir()
	require.False(t, isWorkspaceRoot(dir))

	err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module other-module\n"), 0600)
	require.NoError(t, err)
	require.False(t, isWorkspaceRoot(dir))

	err = os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module easymap-backend\n\ngo 1.23.0\n"), 0600)
	require.NoError(t, err)
	require.True(t, isWorkspaceRoot(dir))
}
