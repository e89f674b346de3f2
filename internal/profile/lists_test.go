package profile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListsReadsDefaultFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, AdminListFile),
		[]byte("\ufeff76561198000000001\r\n# owner\n\n  76561198000000002  \n"), 0o644))

	lists := NewLists(dir, "", "")

	admins, err := lists.Admins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"76561198000000001", "76561198000000002"}, admins)

	whitelist, err := lists.Whitelist(context.Background())
	require.NoError(t, err)
	assert.Empty(t, whitelist)
}

func TestListsExplicitPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "wl.txt")
	require.NoError(t, os.WriteFile(path, []byte("123\n456\n"), 0o644))

	lists := NewLists("", "", path)
	whitelist, err := lists.Whitelist(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"123", "456"}, whitelist)

	admins, err := lists.Admins(context.Background())
	require.NoError(t, err)
	assert.Nil(t, admins)
}

func TestListsUnreadableFile(t *testing.T) {
	t.Parallel()

	// a directory where a file is expected cannot be scanned
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, AdminListFile), 0o755))

	_, err := NewLists(dir, "", "").Admins(context.Background())
	assert.Error(t, err)
}
