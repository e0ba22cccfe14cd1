package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/viper"

	"github.com/iBurnApp/iBurn-iOS/internal/config"
	"github.com/iBurnApp/iBurn-iOS/internal/database"
	"github.com/iBurnApp/iBurn-iOS/internal/logging"
	"github.com/iBurnApp/iBurn-iOS/internal/storage"
	"github.com/iBurnApp/iBurn-iOS/internal/storage/memory"
	pgstorage "github.com/iBurnApp/iBurn-iOS/internal/storage/postgres"
	sqlitestorage "github.com/iBurnApp/iBurn-iOS/internal/storage/sqlite"
)

// logOutput is where the zerolog based managers write.
func logOutput() io.Writer {
	if LogFile != nil {
		return LogFile
	}
	return os.Stderr
}

// createStorageBackend opens the configured store. A postgres store that
// cannot be reached falls back to the sqlite file.
func createStorageBackend(storageCfg config.StorageConfig) (storage.Backend, error) {
	switch storageCfg.Type {
	case "memory":
		Logger.Info("Memory storage backend initialized", "snapshot", storageCfg.Memory.SnapshotPath)
		return memory.New(storageCfg.Memory), nil

	case "sqlite", "postgres":
		if storageCfg.SQLite.BundlePath != "" && storageCfg.SQLite.Path != "" {
			copied, err := database.CopyBundledDatabase(storageCfg.SQLite.BundlePath, storageCfg.SQLite.Path)
			if err != nil {
				Logger.Warn("Failed to copy bundled database", "error", err, "bundle", storageCfg.SQLite.BundlePath)
			} else if copied {
				Logger.Info("Copied bundled database", "path", storageCfg.SQLite.Path)
			}
		}

		dbm := database.NewManager(logging.NewZerolog(logOutput(), viper.GetString("logLevel")))
		if err := dbm.Connect(storageCfg); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := dbm.Setup(); err != nil {
			return nil, err
		}

		if dbm.IsSqlite {
			Logger.Info("SQLite storage backend initialized", "path", dbm.SqliteFilePath)
			return sqlitestorage.NewWithDB(dbm.DB, sqlitestorage.Config{
				Path:         storageCfg.SQLite.Path,
				DumpInterval: storageCfg.SQLite.DumpInterval,
				DumpPath:     storageCfg.SQLite.DumpPath,
			}, SlogManager), nil
		}
		Logger.Info("Postgres storage backend initialized", "host", storageCfg.Postgres.Host)
		return pgstorage.New(pgstorage.Dependencies{
			DB:         dbm.DB,
			Config:     storageCfg.Postgres,
			LogManager: SlogManager,
		}), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}
