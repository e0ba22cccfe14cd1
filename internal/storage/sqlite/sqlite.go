// Package sqlitestorage implements the storage.Backend interface on the
// embedded SQLite database. It wraps the GORM backend via composition; the
// only SQLite-specific concerns are:
// (a) opening the database file (or a shared in-memory database),
// (b) keeping the FTS5 search index in step with every replace,
// (c) full-text search with prefix matching, and
// (d) periodic snapshots via VACUUM INTO.
package sqlitestorage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iBurnApp/iBurn-iOS/internal/database"
	"github.com/iBurnApp/iBurn-iOS/internal/logging"
	"github.com/iBurnApp/iBurn-iOS/internal/model"
	gormstorage "github.com/iBurnApp/iBurn-iOS/internal/storage/gorm"
	"github.com/iBurnApp/iBurn-iOS/internal/util"

	"gorm.io/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	Path         string // empty for a shared in-memory database
	DumpInterval time.Duration
	DumpPath     string // Path for periodic VACUUM INTO dumps
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      Config
	log      *logging.SlogManager
	stopChan chan struct{}
	stopOnce sync.Once
}

// New opens the SQLite database and creates the backend.
func New(cfg Config, logManager *logging.SlogManager) (*Backend, error) {
	db, err := database.GetSqliteDBStandalone(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite DB: %w", err)
	}
	return NewWithDB(db, cfg, logManager), nil
}

// NewWithDB creates the backend on an already open connection.
func NewWithDB(db *gorm.DB, cfg Config, logManager *logging.SlogManager) *Backend {
	if logManager == nil {
		logManager = logging.NewSlogManager()
	}
	gormBackend := gormstorage.New(gormstorage.Dependencies{
		DB:         db,
		LogManager: logManager,
		OnReplace:  database.RebuildSearchIndex,
	})

	return &Backend{
		Backend:  gormBackend,
		db:       db,
		cfg:      cfg,
		log:      logManager,
		stopChan: make(chan struct{}),
	}
}

// Init migrates the schema, creates the search index and starts the dump
// goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}
	if err := database.CreateSearchIndex(b.db); err != nil {
		return err
	}
	for _, t := range model.ObjectTypes {
		if err := database.RebuildSearchIndex(b.db, t); err != nil {
			return err
		}
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		go b.dumpLoop()
	}

	return nil
}

// Close stops the dump goroutine and closes the embedded GORM backend.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() { close(b.stopChan) })
	return b.Backend.Close()
}

// Search runs a prefix full-text query over titles and descriptions,
// ordered by relevance.
func (b *Backend) Search(ctx context.Context, query string, limit int) ([]model.Object, error) {
	match := util.FTSQuery(query)
	if match == "" {
		return []model.Object{}, nil
	}
	hits, err := database.SearchIndex(b.db.WithContext(ctx), match, limit)
	if err != nil {
		return nil, err
	}
	refs := make([]gormstorage.Ref, len(hits))
	for i, h := range hits {
		refs[i] = gormstorage.Ref{UID: h.UID, ObjectType: model.ObjectType(h.ObjectType)}
	}
	return b.ObjectsByRefs(ctx, refs)
}

// DumpToDisk writes a snapshot of the database to path.
func (b *Backend) DumpToDisk(path string) error {
	return database.DumpMemoryDBToDisk(b.db, path)
}

// dumpLoop periodically dumps the SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.DumpToDisk(b.cfg.DumpPath); err != nil {
				b.log.WriteLog("sqlite:dumpLoop", fmt.Sprintf("Error dumping to disk: %v", err), "ERROR")
			} else {
				b.log.WriteLog("sqlite:dumpLoop", fmt.Sprintf("Dumped to disk in %s", time.Since(start)), "DEBUG")
			}
		}
	}
}
