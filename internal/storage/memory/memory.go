// internal/storage/memory/memory.go
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/iBurnApp/iBurn-iOS/internal/config"
	"github.com/iBurnApp/iBurn-iOS/internal/geo"
	"github.com/iBurnApp/iBurn-iOS/internal/model"
	"github.com/iBurnApp/iBurn-iOS/internal/storage"
	"github.com/iBurnApp/iBurn-iOS/internal/util"
)

type metadataKey struct {
	t   model.ObjectType
	uid string
}

// Backend keeps the whole data set in maps. It backs tests and the CLI when
// no database file is wanted, and can persist itself as a JSON snapshot.
type Backend struct {
	cfg config.MemoryConfig

	art      map[string]model.Art
	camps    map[string]model.Camp
	events   map[string]model.Event
	points   map[string]model.MapPoint
	metadata map[metadataKey]model.ObjectMetadata
	updates  map[model.DataType]model.UpdateInfo
	crumbs   map[string]model.Breadcrumb
	lastDump string
	mu       sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	b := &Backend{cfg: cfg}
	b.reset()
	return b
}

func (b *Backend) reset() {
	b.art = make(map[string]model.Art)
	b.camps = make(map[string]model.Camp)
	b.events = make(map[string]model.Event)
	b.points = make(map[string]model.MapPoint)
	b.metadata = make(map[metadataKey]model.ObjectMetadata)
	b.updates = make(map[model.DataType]model.UpdateInfo)
	b.crumbs = make(map[string]model.Breadcrumb)
}

// Init loads the configured snapshot when it exists.
func (b *Backend) Init() error {
	if b.cfg.SnapshotPath == "" {
		return nil
	}
	return b.loadSnapshot(b.cfg.SnapshotPath)
}

// Close writes a final snapshot when one is configured.
func (b *Backend) Close() error {
	if b.cfg.SnapshotPath == "" {
		return nil
	}
	return b.DumpToDisk(b.cfg.SnapshotPath)
}

// ReplaceArt rewrites all art.
func (b *Backend) ReplaceArt(_ context.Context, art []model.Art) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.art = make(map[string]model.Art, len(art))
	for _, a := range art {
		b.art[a.UID] = a
	}
	return nil
}

// ReplaceCamps rewrites all camps.
func (b *Backend) ReplaceCamps(_ context.Context, camps []model.Camp) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.camps = make(map[string]model.Camp, len(camps))
	for _, c := range camps {
		b.camps[c.UID] = c
	}
	return nil
}

// ReplaceEvents rewrites all events. Occurrences are kept sorted by start.
func (b *Backend) ReplaceEvents(_ context.Context, events []model.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = make(map[string]model.Event, len(events))
	for _, e := range events {
		occ := slices.Clone(e.Occurrences)
		for i := range occ {
			occ[i].EventUID = e.UID
		}
		slices.SortStableFunc(occ, func(x, y model.EventOccurrence) int {
			if c := x.StartTime.Compare(y.StartTime); c != 0 {
				return c
			}
			return cmp.Compare(x.ID, y.ID)
		})
		e.Occurrences = occ
		b.events[e.UID] = e
	}
	return nil
}

// ReplaceMapPoints rewrites imported landmarks and keeps user pins.
func (b *Backend) ReplaceMapPoints(_ context.Context, points []model.MapPoint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for uid, p := range b.points {
		if p.Kind == model.PointLandmark {
			delete(b.points, uid)
		}
	}
	for _, p := range points {
		b.points[p.UID] = p
	}
	return nil
}

func sortedByTitle[T model.Object](m map[string]T) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b T) int {
		if c := cmp.Compare(a.Name(), b.Name()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID(), b.ID())
	})
	return out
}

// Art returns all art ordered by title.
func (b *Backend) Art(_ context.Context) ([]model.Art, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sortedByTitle(b.art), nil
}

// Camps returns all camps ordered by title.
func (b *Backend) Camps(_ context.Context) ([]model.Camp, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sortedByTitle(b.camps), nil
}

// Events returns all events ordered by title.
func (b *Backend) Events(_ context.Context) ([]model.Event, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sortedByTitle(b.events), nil
}

// MapPoints returns landmarks and user pins.
func (b *Backend) MapPoints(_ context.Context) ([]model.MapPoint, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]model.MapPoint, 0, len(b.points))
	for _, p := range b.points {
		out = append(out, p)
	}
	slices.SortFunc(out, func(x, y model.MapPoint) int {
		if c := cmp.Compare(x.Kind, y.Kind); c != 0 {
			return c
		}
		if c := cmp.Compare(x.Title, y.Title); c != 0 {
			return c
		}
		return cmp.Compare(x.UID, y.UID)
	})
	return out, nil
}

// ObjectByUID returns one object.
func (b *Backend) ObjectByUID(_ context.Context, t model.ObjectType, uid string) (model.Object, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if obj, ok := b.lookup(t, uid); ok {
		return obj, nil
	}
	return nil, fmt.Errorf("%s %s: %w", t, uid, storage.ErrNotFound)
}

func (b *Backend) lookup(t model.ObjectType, uid string) (model.Object, bool) {
	switch t {
	case model.TypeArt:
		a, ok := b.art[uid]
		return a, ok
	case model.TypeCamp:
		c, ok := b.camps[uid]
		return c, ok
	case model.TypeEvent:
		e, ok := b.events[uid]
		return e, ok
	}
	return nil, false
}

// OccurrencesBetween returns occurrences overlapping [start, end).
func (b *Backend) OccurrencesBetween(_ context.Context, start, end time.Time) ([]model.Occurrence, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := []model.Occurrence{}
	for _, e := range b.events {
		for _, o := range e.ExpandOccurrences() {
			if o.Overlaps(start, end) {
				o.Event.Occurrences = nil
				out = append(out, o)
			}
		}
	}
	storage.SortOccurrences(out)
	return out, nil
}

func (b *Backend) all() []model.Object {
	out := make([]model.Object, 0, len(b.art)+len(b.camps)+len(b.events))
	for _, a := range b.art {
		out = append(out, a)
	}
	for _, c := range b.camps {
		out = append(out, c)
	}
	for _, e := range b.events {
		out = append(out, e)
	}
	return out
}

func description(o model.Object) string {
	switch v := o.(type) {
	case model.Art:
		return v.Description
	case model.Camp:
		return v.Description
	case model.Event:
		return v.Description
	}
	return ""
}

// Search matches every term as a case-insensitive substring of the title or
// description. Title matches rank first.
func (b *Backend) Search(_ context.Context, query string, limit int) ([]model.Object, error) {
	terms := util.SearchTerms(query)
	if len(terms) == 0 {
		return []model.Object{}, nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := []model.Object{}
	for _, o := range b.all() {
		if util.MatchesAll(terms, o.Name(), description(o)) {
			out = append(out, o)
		}
	}
	return storage.RankByTitle(out, terms, limit), nil
}

// ObjectsInRegion returns located objects inside the bounding box.
func (b *Backend) ObjectsInRegion(_ context.Context, region geo.Region) ([]model.Object, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := []model.Object{}
	if region.Empty() {
		return out, nil
	}
	for _, o := range b.all() {
		if lat, lon, ok := o.Coordinates(); ok && region.Contains(lat, lon) {
			out = append(out, o)
		}
	}
	return out, nil
}

// Metadata returns stored metadata or defaults.
func (b *Backend) Metadata(_ context.Context, t model.ObjectType, uid string) (model.ObjectMetadata, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if md, ok := b.metadata[metadataKey{t, uid}]; ok {
		return md, nil
	}
	return model.NewMetadata(t, uid), nil
}

// SaveMetadata stores metadata, stamping CreatedAt on first save.
func (b *Backend) SaveMetadata(_ context.Context, md *model.ObjectMetadata) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	key := metadataKey{md.ObjectType, md.ObjectID}
	if prev, ok := b.metadata[key]; ok {
		md.CreatedAt = prev.CreatedAt
	} else if md.CreatedAt.IsZero() {
		md.CreatedAt = now
	}
	if md.VisitStatus == "" {
		md.VisitStatus = model.VisitUnvisited
	}
	md.UpdatedAt = now
	b.metadata[key] = *md
	return nil
}

// MetadataByType returns metadata of a type keyed by object id.
func (b *Backend) MetadataByType(_ context.Context, t model.ObjectType) (map[string]model.ObjectMetadata, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := map[string]model.ObjectMetadata{}
	for k, md := range b.metadata {
		if k.t == t {
			out[k.uid] = md
		}
	}
	return out, nil
}

// Favorites returns favorited metadata ordered by type and id.
func (b *Backend) Favorites(_ context.Context) ([]model.ObjectMetadata, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := []model.ObjectMetadata{}
	for _, md := range b.metadata {
		if md.IsFavorite {
			out = append(out, md)
		}
	}
	slices.SortFunc(out, func(x, y model.ObjectMetadata) int {
		if c := cmp.Compare(x.ObjectType, y.ObjectType); c != 0 {
			return c
		}
		return cmp.Compare(x.ObjectID, y.ObjectID)
	})
	return out, nil
}

// UpdateInfo returns the import record of a data type.
func (b *Backend) UpdateInfo(_ context.Context, dt model.DataType) (model.UpdateInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	info, ok := b.updates[dt]
	if !ok {
		return info, fmt.Errorf("update info %s: %w", dt, storage.ErrNotFound)
	}
	return info, nil
}

// SaveUpdateInfo stores an import record.
func (b *Backend) SaveUpdateInfo(_ context.Context, info *model.UpdateInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.updates[info.DataType]; ok {
		info.CreatedAt = prev.CreatedAt
	} else if info.CreatedAt.IsZero() {
		info.CreatedAt = time.Now()
	}
	b.updates[info.DataType] = *info
	return nil
}

// AddBreadcrumbs stores location history. Duplicate ids are ignored.
func (b *Backend) AddBreadcrumbs(_ context.Context, crumbs []model.Breadcrumb) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range crumbs {
		if _, ok := b.crumbs[c.ID]; !ok {
			b.crumbs[c.ID] = c
		}
	}
	return nil
}

// Breadcrumbs returns history since a time, oldest first.
func (b *Backend) Breadcrumbs(_ context.Context, since time.Time) ([]model.Breadcrumb, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := []model.Breadcrumb{}
	for _, c := range b.crumbs {
		if !c.Timestamp.Before(since) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(x, y model.Breadcrumb) int {
		return x.Timestamp.Compare(y.Timestamp)
	})
	return out, nil
}

// SaveMapPoint stores a map point.
func (b *Backend) SaveMapPoint(_ context.Context, p *model.MapPoint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	b.points[p.UID] = *p
	return nil
}

// DeleteMapPoint removes a user pin.
func (b *Backend) DeleteMapPoint(_ context.Context, uid string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.points[uid]
	if !ok || p.Kind != model.PointUser {
		return fmt.Errorf("map point %s: %w", uid, storage.ErrNotFound)
	}
	delete(b.points, uid)
	return nil
}

// Counts returns collection sizes.
func (b *Backend) Counts(_ context.Context) (storage.Counts, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c := storage.Counts{
		Art:         int64(len(b.art)),
		Camps:       int64(len(b.camps)),
		Events:      int64(len(b.events)),
		MapPoints:   int64(len(b.points)),
		Breadcrumbs: int64(len(b.crumbs)),
	}
	for _, e := range b.events {
		c.Occurrences += int64(len(e.Occurrences))
	}
	for _, md := range b.metadata {
		if md.IsFavorite {
			c.Favorites++
		}
	}
	return c, nil
}
