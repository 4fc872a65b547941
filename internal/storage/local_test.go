package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFS(t *testing.T) *FSStorage {
	t.Helper()
	fs, err := NewFSStorage(t.TempDir(), "/media/")
	require.NoError(t, err)
	return fs
}

func TestFSUploadExistsRoundTrip(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	key := NewKey("images", "cat.png")
	data := []byte("0123456789abcdefg") // 17 bytes

	require.NoError(t, fs.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), "image/png"))

	exists, err := fs.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	stored, err := os.ReadFile(filepath.Join(fs.Root(), filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, data, stored)
}

func TestFSExistsAbsentKey(t *testing.T) {
	fs := newTestFS(t)

	exists, err := fs.Exists(context.Background(), "images/nope.png")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFSDeleteIsIdempotent(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	key := NewKey("images", "cat.png")
	require.NoError(t, fs.Upload(ctx, key, bytes.NewReader([]byte("data")), 4, "image/png"))

	require.NoError(t, fs.Delete(ctx, key))
	// Second delete of the same key must not error.
	require.NoError(t, fs.Delete(ctx, key))

	exists, err := fs.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFSPublicURL(t *testing.T) {
	fs := newTestFS(t)

	key := NewKey("images", "cat.png")
	url := fs.PublicURL(key)

	assert.True(t, strings.HasPrefix(url, "/media/images/"))
	assert.True(t, strings.HasSuffix(url, ".png"))
}

func TestFSUploadLeavesNoTempFiles(t *testing.T) {
	fs := newTestFS(t)
	ctx := context.Background()

	require.NoError(t, fs.Upload(ctx, "images/a.png", bytes.NewReader([]byte("a")), 1, "image/png"))

	entries, err := os.ReadDir(filepath.Join(fs.Root(), ".tmp"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewKey(t *testing.T) {
	k1 := NewKey("images", "cat.png")
	k2 := NewKey("images", "cat.png")

	assert.True(t, strings.HasPrefix(k1, "images/"))
	assert.True(t, strings.HasSuffix(k1, ".png"))
	// Collision-resistant: same input, different keys.
	assert.NotEqual(t, k1, k2)

	// No extension on the source filename means no extension on the key.
	assert.False(t, strings.Contains(NewKey("images", "README"), "."))
}
