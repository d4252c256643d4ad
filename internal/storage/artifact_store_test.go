package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalArtifactStore_Save(t *testing.T) {
	tempDir := t.TempDir()
	store := NewLocalArtifactStore(tempDir, zap.NewNop())

	t.Run("saves content and returns handle", func(t *testing.T) {
		path, err := store.Save("receipt.jpg", []byte("image bytes"))
		require.NoError(t, err)
		assert.FileExists(t, path)

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []byte("image bytes"), content)
	})

	t.Run("same filename twice does not collide", func(t *testing.T) {
		first, err := store.Save("receipt.pdf", []byte("a"))
		require.NoError(t, err)
		second, err := store.Save("receipt.pdf", []byte("b"))
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("strips directory components from filename", func(t *testing.T) {
		path, err := store.Save("../../etc/passwd", []byte("x"))
		require.NoError(t, err)
		assert.True(t, filepath.Dir(path) == tempDir)
	})
}

func TestLocalArtifactStore_Delete(t *testing.T) {
	tempDir := t.TempDir()
	store := NewLocalArtifactStore(tempDir, zap.NewNop())

	t.Run("removes an existing artifact", func(t *testing.T) {
		path, err := store.Save("receipt.jpg", []byte("bytes"))
		require.NoError(t, err)

		store.Delete(path, "duplicate")
		assert.NoFileExists(t, path)
	})

	t.Run("deleting twice is harmless", func(t *testing.T) {
		path, err := store.Save("receipt.jpg", []byte("bytes"))
		require.NoError(t, err)

		store.Delete(path, "cancelled")
		store.Delete(path, "cancelled")
		assert.NoFileExists(t, path)
	})

	t.Run("ignores empty handle", func(t *testing.T) {
		store.Delete("", "cancelled")
	})

	t.Run("refuses paths outside base directory", func(t *testing.T) {
		outside := filepath.Join(t.TempDir(), "keep.txt")
		require.NoError(t, os.WriteFile(outside, []byte("keep"), 0644))

		store.Delete(outside, "cancelled")
		assert.FileExists(t, outside)
	})
}
