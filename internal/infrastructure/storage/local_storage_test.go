package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shop/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLocalObjectStorage(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalObjectStorage(filepath.Join(root, "objects"))
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("upload then exists", func(t *testing.T) {
		exists, err := s.ObjectExists(ctx, "images/shoes/a.jpg")
		require.NoError(t, err)
		assert.False(t, exists)

		require.NoError(t, s.Upload(ctx, "images/shoes/a.jpg", []byte("jpeg"), "image/jpeg"))

		data, err := os.ReadFile(filepath.Join(root, "objects", "images", "shoes", "a.jpg"))
		require.NoError(t, err)
		assert.Equal(t, []byte("jpeg"), data)

		exists, err = s.ObjectExists(ctx, "images/shoes/a.jpg")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("upload replaces content", func(t *testing.T) {
		require.NoError(t, s.Upload(ctx, "exports/orders.xml", []byte("v1"), "application/xml"))
		require.NoError(t, s.Upload(ctx, "exports/orders.xml", []byte("v2"), "application/xml"))

		data, err := os.ReadFile(filepath.Join(root, "objects", "exports", "orders.xml"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), data)

		entries, err := os.ReadDir(filepath.Join(root, "objects", "exports"))
		require.NoError(t, err)
		assert.Len(t, entries, 1, "temporary files are cleaned up")
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, s.Upload(ctx, "tmp/x.bin", []byte{1}, ""))
		require.NoError(t, s.DeleteObject(ctx, "tmp/x.bin"))
		require.NoError(t, s.DeleteObject(ctx, "tmp/x.bin"))
	})

	t.Run("keys cannot escape the root", func(t *testing.T) {
		assert.Error(t, s.Upload(ctx, "../outside.txt", []byte("x"), ""))
		_, err := s.ObjectExists(ctx, "/etc/passwd")
		assert.Error(t, err)
		assert.Error(t, s.Upload(ctx, "", []byte("x"), ""))
	})

	t.Run("directory is not an object", func(t *testing.T) {
		exists, err := s.ObjectExists(ctx, "images")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	t.Run("local driver", func(t *testing.T) {
		s, err := New(ctx, &config.StorageConfig{Driver: "local", LocalDir: t.TempDir()}, logger)
		require.NoError(t, err)
		assert.IsType(t, &LocalObjectStorage{}, s)
	})

	t.Run("local driver requires a directory", func(t *testing.T) {
		_, err := New(ctx, &config.StorageConfig{Driver: "local"}, logger)
		assert.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := New(ctx, &config.StorageConfig{Driver: "ftp"}, logger)
		assert.Error(t, err)
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := New(ctx, nil, logger)
		assert.Error(t, err)
	})
}
