// Package postgres implements the storage.Backend interface on a shared
// PostgreSQL store, for deployments that serve several local clients from
// one database.
package postgres

import (
	"context"
	"fmt"

	"github.com/iBurnApp/iBurn-iOS/internal/config"
	"github.com/iBurnApp/iBurn-iOS/internal/database"
	"github.com/iBurnApp/iBurn-iOS/internal/logging"
	"github.com/iBurnApp/iBurn-iOS/internal/model"
	gormstorage "github.com/iBurnApp/iBurn-iOS/internal/storage/gorm"

	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the Postgres storage backend.
type Dependencies struct {
	DB         *gorm.DB
	Config     config.PostgresConfig
	LogManager *logging.SlogManager
}

// Backend implements storage.Backend on Postgres.
type Backend struct {
	*gormstorage.Backend
	deps Dependencies
}

// New creates a new Postgres storage backend. The connection is opened by
// Init unless one was injected.
func New(deps Dependencies) *Backend {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Backend{deps: deps}
}

// Init connects if needed and migrates the schema.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.GetPostgresDBStandalone(b.deps.Config)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.deps.DB = db
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:         b.deps.DB,
		LogManager: b.deps.LogManager,
	})
	if err := b.Backend.Init(); err != nil {
		return err
	}
	b.deps.LogManager.WriteLog("postgres:Init", "Postgres storage ready", "INFO")
	return nil
}

// Close closes the connection if Init ran.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}

// Search uses ILIKE on Postgres. Other dialects (tests run on sqlite) fall
// back to LIKE over lowercased columns.
func (b *Backend) Search(ctx context.Context, query string, limit int) ([]model.Object, error) {
	if b.deps.DB.Dialector.Name() == "postgres" {
		return b.SearchLike(ctx, "ILIKE", query, limit)
	}
	return b.SearchLike(ctx, "LIKE", query, limit)
}
