// Package storage defines the persistence contract for the festival data set
// and the user's own records.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/iBurnApp/iBurn-iOS/internal/geo"
	"github.com/iBurnApp/iBurn-iOS/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Counts is a snapshot of row counts used for monitoring.
type Counts struct {
	Art         int64 `json:"art"`
	Camps       int64 `json:"camps"`
	Events      int64 `json:"events"`
	Occurrences int64 `json:"occurrences"`
	MapPoints   int64 `json:"mapPoints"`
	Favorites   int64 `json:"favorites"`
	Breadcrumbs int64 `json:"breadcrumbs"`
}

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Bulk replacement of one data type. Each call is atomic and leaves
	// object metadata untouched.
	ReplaceArt(ctx context.Context, art []model.Art) error
	ReplaceCamps(ctx context.Context, camps []model.Camp) error
	ReplaceEvents(ctx context.Context, events []model.Event) error
	ReplaceMapPoints(ctx context.Context, points []model.MapPoint) error

	// Reads
	Art(ctx context.Context) ([]model.Art, error)
	Camps(ctx context.Context) ([]model.Camp, error)
	Events(ctx context.Context) ([]model.Event, error)
	MapPoints(ctx context.Context) ([]model.MapPoint, error)
	ObjectByUID(ctx context.Context, t model.ObjectType, uid string) (model.Object, error)
	OccurrencesBetween(ctx context.Context, start, end time.Time) ([]model.Occurrence, error)
	Search(ctx context.Context, query string, limit int) ([]model.Object, error)
	ObjectsInRegion(ctx context.Context, region geo.Region) ([]model.Object, error)

	// User metadata
	Metadata(ctx context.Context, t model.ObjectType, uid string) (model.ObjectMetadata, error)
	SaveMetadata(ctx context.Context, md *model.ObjectMetadata) error
	MetadataByType(ctx context.Context, t model.ObjectType) (map[string]model.ObjectMetadata, error)
	Favorites(ctx context.Context) ([]model.ObjectMetadata, error)

	// Import bookkeeping
	UpdateInfo(ctx context.Context, dt model.DataType) (model.UpdateInfo, error)
	SaveUpdateInfo(ctx context.Context, info *model.UpdateInfo) error

	// Location history and user pins
	AddBreadcrumbs(ctx context.Context, crumbs []model.Breadcrumb) error
	Breadcrumbs(ctx context.Context, since time.Time) ([]model.Breadcrumb, error)
	SaveMapPoint(ctx context.Context, p *model.MapPoint) error
	DeleteMapPoint(ctx context.Context, uid string) error

	Counts(ctx context.Context) (Counts, error)
}

// Dumpable is an optional interface for backends that can write a snapshot
// of their database to a file.
type Dumpable interface {
	DumpToDisk(path string) error
}
