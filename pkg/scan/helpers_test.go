package scan_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// touch creates every path (slash separated, relative to root) as an empty
// file, creating parent directories.
func touch(t *testing.T, root string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, nil, 0o644))
	}
}

func mkdir(t *testing.T, root string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.FromSlash(p)), 0o755))
	}
}

// assetDir returns a fresh asset root whose base name is a valid prim name.
func assetDir(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "Asset")
	require.NoError(t, os.Mkdir(root, 0o755))
	return root
}
