// internal/storage/memory/memory_test.go
package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iBurnApp/iBurn-iOS/internal/config"
	"github.com/iBurnApp/iBurn-iOS/internal/model"
	"github.com/iBurnApp/iBurn-iOS/internal/storage"
	"github.com/iBurnApp/iBurn-iOS/internal/storage/storagetest"
)

// Verify Backend implements the storage interfaces
var (
	_ storage.Backend  = (*Backend)(nil)
	_ storage.Dumpable = (*Backend)(nil)
)

func TestBackendSuite(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		b := New(config.MemoryConfig{})
		require.NoError(t, b.Init())
		return b
	})
}

func TestInitAndClose_NoSnapshot(t *testing.T) {
	b := New(config.MemoryConfig{})
	assert.NoError(t, b.Init())
	assert.NoError(t, b.Close())
	assert.Empty(t, b.LastSnapshotPath())
}

func seeded(t *testing.T, cfg config.MemoryConfig) *Backend {
	t.Helper()
	ctx := context.Background()
	b := New(cfg)
	require.NoError(t, b.Init())
	require.NoError(t, b.ReplaceArt(ctx, storagetest.Art()))
	require.NoError(t, b.ReplaceEvents(ctx, storagetest.Events()))
	md := model.NewMetadata(model.TypeArt, "a1")
	md.IsFavorite = true
	require.NoError(t, b.SaveMetadata(ctx, &md))
	require.NoError(t, b.SaveUpdateInfo(ctx, &model.UpdateInfo{DataType: model.DataArt, FetchStatus: model.FetchComplete, TotalCount: 3}))
	require.NoError(t, b.SaveMapPoint(ctx, &model.MapPoint{UID: "p1", Kind: model.PointUser, Title: "Tent"}))
	return b
}

func TestSnapshotRoundTrip(t *testing.T) {
	for _, compress := range []bool{true, false} {
		t.Run(map[bool]string{true: "gzip", false: "plain"}[compress], func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "snap", "iburn.json")
			cfg := config.MemoryConfig{SnapshotPath: path, CompressOutput: compress}

			b := seeded(t, cfg)
			require.NoError(t, b.Close())
			assert.Equal(t, path, b.LastSnapshotPath())

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, compress, len(data) > 2 && data[0] == 0x1f && data[1] == 0x8b)

			restored := New(cfg)
			require.NoError(t, restored.Init())
			ctx := context.Background()

			c, err := restored.Counts(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(3), c.Art)
			assert.Equal(t, int64(3), c.Events)
			assert.Equal(t, int64(4), c.Occurrences)
			assert.Equal(t, int64(1), c.Favorites)
			assert.Equal(t, int64(1), c.MapPoints)

			info, err := restored.UpdateInfo(ctx, model.DataArt)
			require.NoError(t, err)
			assert.Equal(t, 3, info.TotalCount)
		})
	}
}

func TestLoadSnapshot_BadVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99}`), 0o644))
	b := New(config.MemoryConfig{SnapshotPath: path})
	assert.Error(t, b.Init())
}

func TestLoadSnapshot_Garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	b := New(config.MemoryConfig{SnapshotPath: path})
	assert.Error(t, b.Init())
}

func TestSaveMetadata_KeepsCreatedAt(t *testing.T) {
	b := New(config.MemoryConfig{})
	ctx := context.Background()

	md := model.NewMetadata(model.TypeCamp, "c1")
	require.NoError(t, b.SaveMetadata(ctx, &md))
	created := md.CreatedAt
	require.False(t, created.IsZero())

	again := model.NewMetadata(model.TypeCamp, "c1")
	again.UserNotes = "later"
	require.NoError(t, b.SaveMetadata(ctx, &again))
	assert.Equal(t, created, again.CreatedAt)
	assert.False(t, again.UpdatedAt.Before(created))
}
