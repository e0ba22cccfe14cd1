package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/iBurnApp/iBurn-iOS/internal/storage"
	"github.com/iBurnApp/iBurn-iOS/internal/storage/storagetest"
)

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

func newSqliteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

func TestNew(t *testing.T) {
	b := New(Dependencies{})
	require.NotNil(t, b)
	assert.NoError(t, b.Close(), "closing before Init is a no-op")
}

func TestBackendSuite_OnSqlite(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		b := New(Dependencies{DB: newSqliteDB(t)})
		require.NoError(t, b.Init())
		return b
	})
}

func TestSearch_FallsBackToLike(t *testing.T) {
	b := New(Dependencies{DB: newSqliteDB(t)})
	require.NoError(t, b.Init())
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.ReplaceArt(ctx, storagetest.Art()))
	res, err := b.Search(ctx, "BLOOM", 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "a2", res[0].ID())
}

// TestBackendSuite_OnPostgres runs against a real server when
// IBURN_TEST_POSTGRES_DSN is set.
func TestBackendSuite_OnPostgres(t *testing.T) {
	dsn := os.Getenv("IBURN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("IBURN_TEST_POSTGRES_DSN not set")
	}
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		db, err := openPostgres(dsn)
		require.NoError(t, err)
		b := New(Dependencies{DB: db})
		require.NoError(t, b.Init())
		for _, table := range []string{"event_occurrences", "event_objects", "art_objects", "camp_objects", "object_metadata", "update_info", "map_points", "breadcrumbs"} {
			require.NoError(t, db.Exec("DELETE FROM "+table).Error)
		}
		return b
	})
}
