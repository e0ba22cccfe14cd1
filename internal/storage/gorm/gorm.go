// Package gormstorage implements storage.Backend on top of GORM. The sqlite
// and postgres backends embed it and only add dialect specific behavior
// (search, snapshots).
package gormstorage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/iBurnApp/iBurn-iOS/internal/geo"
	"github.com/iBurnApp/iBurn-iOS/internal/logging"
	"github.com/iBurnApp/iBurn-iOS/internal/model"
	"github.com/iBurnApp/iBurn-iOS/internal/storage"
	"github.com/iBurnApp/iBurn-iOS/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const batchSize = 500

// ReplaceHook runs inside the replace transaction after the rows of a type
// were rewritten.
type ReplaceHook func(tx *gorm.DB, t model.ObjectType) error

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB         *gorm.DB
	LogManager *logging.SlogManager
	OnReplace  ReplaceHook
}

// Backend implements storage.Backend using GORM.
type Backend struct {
	deps Dependencies
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Backend{
		deps: deps,
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gorm backend has no database")
	}
	if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (b *Backend) Close() error {
	if b.deps.DB == nil {
		return nil
	}
	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	return sqlDB.Close()
}

func (b *Backend) db(ctx context.Context) *gorm.DB {
	return b.deps.DB.WithContext(ctx)
}

// replace deletes every row of model and inserts rows in one transaction.
func replace[T any](ctx context.Context, b *Backend, t model.ObjectType, rows []T, deleteFirst ...any) error {
	start := time.Now()
	err := b.db(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range deleteFirst {
			if err := tx.Where("1 = 1").Delete(m).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("1 = 1").Delete(new(T)).Error; err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
				return err
			}
		}
		if b.deps.OnReplace != nil {
			return b.deps.OnReplace(tx, t)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace %s: %w", t, err)
	}
	b.deps.LogManager.WriteLog("gorm:replace",
		fmt.Sprintf("Replaced %d %s rows in %s", len(rows), t, time.Since(start)), "DEBUG")
	return nil
}

// ReplaceArt rewrites all art rows.
func (b *Backend) ReplaceArt(ctx context.Context, art []model.Art) error {
	return replace(ctx, b, model.TypeArt, art)
}

// ReplaceCamps rewrites all camp rows.
func (b *Backend) ReplaceCamps(ctx context.Context, camps []model.Camp) error {
	return replace(ctx, b, model.TypeCamp, camps)
}

// ReplaceEvents rewrites all events and their occurrences. Occurrence times
// are stored in UTC.
func (b *Backend) ReplaceEvents(ctx context.Context, events []model.Event) error {
	rows := make([]model.Event, len(events))
	for i, e := range events {
		occ := make([]model.EventOccurrence, len(e.Occurrences))
		for j, o := range e.Occurrences {
			o.EventUID = e.UID
			o.StartTime = o.StartTime.UTC()
			o.EndTime = o.EndTime.UTC()
			occ[j] = o
		}
		e.Occurrences = occ
		rows[i] = e
	}
	return replace(ctx, b, model.TypeEvent, rows, &model.EventOccurrence{})
}

// ReplaceMapPoints rewrites imported landmarks. User pins are kept.
func (b *Backend) ReplaceMapPoints(ctx context.Context, points []model.MapPoint) error {
	err := b.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("kind = ?", model.PointLandmark).Delete(&model.MapPoint{}).Error; err != nil {
			return err
		}
		if len(points) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(points, batchSize).Error
	})
	if err != nil {
		return fmt.Errorf("replace map points: %w", err)
	}
	return nil
}

// Art returns all art ordered by title.
func (b *Backend) Art(ctx context.Context) ([]model.Art, error) {
	var out []model.Art
	if err := b.db(ctx).Order("title").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list art: %w", err)
	}
	return out, nil
}

// Camps returns all camps ordered by title.
func (b *Backend) Camps(ctx context.Context) ([]model.Camp, error) {
	var out []model.Camp
	if err := b.db(ctx).Order("title").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list camps: %w", err)
	}
	return out, nil
}

func preloadOccurrences(db *gorm.DB) *gorm.DB {
	return db.Preload("Occurrences", func(db *gorm.DB) *gorm.DB {
		return db.Order("start_time").Order("id")
	})
}

// Events returns all events with their occurrences ordered by title.
func (b *Backend) Events(ctx context.Context) ([]model.Event, error) {
	var out []model.Event
	if err := preloadOccurrences(b.db(ctx)).Order("title").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return out, nil
}

// MapPoints returns landmarks and user pins.
func (b *Backend) MapPoints(ctx context.Context) ([]model.MapPoint, error) {
	var out []model.MapPoint
	if err := b.db(ctx).Order("kind").Order("title").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list map points: %w", err)
	}
	return out, nil
}

func notFound(err error, t model.ObjectType, uid string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", t, uid, storage.ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", t, uid, err)
}

// ObjectByUID loads one object.
func (b *Backend) ObjectByUID(ctx context.Context, t model.ObjectType, uid string) (model.Object, error) {
	switch t {
	case model.TypeArt:
		var a model.Art
		if err := b.db(ctx).First(&a, "uid = ?", uid).Error; err != nil {
			return nil, notFound(err, t, uid)
		}
		return a, nil
	case model.TypeCamp:
		var c model.Camp
		if err := b.db(ctx).First(&c, "uid = ?", uid).Error; err != nil {
			return nil, notFound(err, t, uid)
		}
		return c, nil
	case model.TypeEvent:
		var e model.Event
		if err := preloadOccurrences(b.db(ctx)).First(&e, "uid = ?", uid).Error; err != nil {
			return nil, notFound(err, t, uid)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown object type %q: %w", t, storage.ErrNotFound)
	}
}

// Ref names an object by type and uid.
type Ref struct {
	UID        string
	ObjectType model.ObjectType
}

// ObjectsByRefs loads objects in the order of refs. Missing objects are
// skipped.
func (b *Backend) ObjectsByRefs(ctx context.Context, refs []Ref) ([]model.Object, error) {
	uids := map[model.ObjectType][]string{}
	for _, r := range refs {
		uids[r.ObjectType] = append(uids[r.ObjectType], r.UID)
	}

	found := make(map[Ref]model.Object, len(refs))
	if len(uids[model.TypeArt]) > 0 {
		var art []model.Art
		if err := b.db(ctx).Where("uid IN ?", uids[model.TypeArt]).Find(&art).Error; err != nil {
			return nil, fmt.Errorf("load art: %w", err)
		}
		for _, a := range art {
			found[Ref{UID: a.UID, ObjectType: model.TypeArt}] = a
		}
	}
	if len(uids[model.TypeCamp]) > 0 {
		var camps []model.Camp
		if err := b.db(ctx).Where("uid IN ?", uids[model.TypeCamp]).Find(&camps).Error; err != nil {
			return nil, fmt.Errorf("load camps: %w", err)
		}
		for _, c := range camps {
			found[Ref{UID: c.UID, ObjectType: model.TypeCamp}] = c
		}
	}
	if len(uids[model.TypeEvent]) > 0 {
		var events []model.Event
		if err := preloadOccurrences(b.db(ctx)).Where("uid IN ?", uids[model.TypeEvent]).Find(&events).Error; err != nil {
			return nil, fmt.Errorf("load events: %w", err)
		}
		for _, e := range events {
			found[Ref{UID: e.UID, ObjectType: model.TypeEvent}] = e
		}
	}

	out := make([]model.Object, 0, len(refs))
	for _, r := range refs {
		if obj, ok := found[r]; ok {
			out = append(out, obj)
		}
	}
	return out, nil
}

// OccurrencesBetween returns occurrences overlapping [start, end) ordered by
// start time then title.
func (b *Backend) OccurrencesBetween(ctx context.Context, start, end time.Time) ([]model.Occurrence, error) {
	var occ []model.EventOccurrence
	err := b.db(ctx).
		Where("start_time < ? AND end_time > ?", end.UTC(), start.UTC()).
		Order("start_time").
		Find(&occ).Error
	if err != nil {
		return nil, fmt.Errorf("query occurrences: %w", err)
	}
	if len(occ) == 0 {
		return []model.Occurrence{}, nil
	}

	uids := make([]string, 0, len(occ))
	seen := map[string]bool{}
	for _, o := range occ {
		if !seen[o.EventUID] {
			seen[o.EventUID] = true
			uids = append(uids, o.EventUID)
		}
	}
	var events []model.Event
	if err := b.db(ctx).Where("uid IN ?", uids).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	byUID := make(map[string]model.Event, len(events))
	for _, e := range events {
		byUID[e.UID] = e
	}

	out := make([]model.Occurrence, 0, len(occ))
	for _, o := range occ {
		e, ok := byUID[o.EventUID]
		if !ok {
			continue
		}
		out = append(out, model.Occurrence{Event: e, OccurrenceID: o.ID, StartTime: o.StartTime, EndTime: o.EndTime})
	}
	storage.SortOccurrences(out)
	return out, nil
}

// Search matches every query term against titles and descriptions with LIKE.
func (b *Backend) Search(ctx context.Context, query string, limit int) ([]model.Object, error) {
	return b.SearchLike(ctx, "LIKE", query, limit)
}

// SearchLike runs a term search with the given case-insensitive operator.
// For LIKE, columns are lowercased first. Title matches rank above
// description matches.
func (b *Backend) SearchLike(ctx context.Context, op, query string, limit int) ([]model.Object, error) {
	terms := util.SearchTerms(query)
	if len(terms) == 0 {
		return []model.Object{}, nil
	}
	where := func(db *gorm.DB) *gorm.DB {
		for _, t := range terms {
			pattern := "%" + t + "%"
			if op == "LIKE" {
				db = db.Where("(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)", pattern, pattern)
			} else {
				db = db.Where(fmt.Sprintf("(title %s ? OR description %s ?)", op, op), pattern, pattern)
			}
		}
		return db
	}

	var art []model.Art
	if err := where(b.db(ctx)).Find(&art).Error; err != nil {
		return nil, fmt.Errorf("search art: %w", err)
	}
	var camps []model.Camp
	if err := where(b.db(ctx)).Find(&camps).Error; err != nil {
		return nil, fmt.Errorf("search camps: %w", err)
	}
	var events []model.Event
	if err := where(preloadOccurrences(b.db(ctx))).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}

	out := make([]model.Object, 0, len(art)+len(camps)+len(events))
	for _, a := range art {
		out = append(out, a)
	}
	for _, c := range camps {
		out = append(out, c)
	}
	for _, e := range events {
		out = append(out, e)
	}
	return storage.RankByTitle(out, terms, limit), nil
}

// ObjectsInRegion returns art, camps and events inside the bounding box.
func (b *Backend) ObjectsInRegion(ctx context.Context, region geo.Region) ([]model.Object, error) {
	if region.Empty() {
		return []model.Object{}, nil
	}
	box := func(db *gorm.DB) *gorm.DB {
		return db.Where("latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?",
			region.MinLat, region.MaxLat, region.MinLon, region.MaxLon)
	}

	var art []model.Art
	if err := box(b.db(ctx)).Find(&art).Error; err != nil {
		return nil, fmt.Errorf("region art: %w", err)
	}
	var camps []model.Camp
	if err := box(b.db(ctx)).Find(&camps).Error; err != nil {
		return nil, fmt.Errorf("region camps: %w", err)
	}
	var events []model.Event
	if err := box(preloadOccurrences(b.db(ctx))).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("region events: %w", err)
	}

	out := make([]model.Object, 0, len(art)+len(camps)+len(events))
	for _, a := range art {
		if a.HasLocation() {
			out = append(out, a)
		}
	}
	for _, c := range camps {
		if c.HasLocation() {
			out = append(out, c)
		}
	}
	for _, e := range events {
		if e.HasLocation() {
			out = append(out, e)
		}
	}
	return out, nil
}

// Metadata returns the stored metadata, or defaults when none exists.
func (b *Backend) Metadata(ctx context.Context, t model.ObjectType, uid string) (model.ObjectMetadata, error) {
	var md model.ObjectMetadata
	err := b.db(ctx).First(&md, "object_type = ? AND object_id = ?", t, uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.NewMetadata(t, uid), nil
	}
	if err != nil {
		return md, fmt.Errorf("get metadata %s %s: %w", t, uid, err)
	}
	return md, nil
}

// SaveMetadata upserts a metadata row.
func (b *Backend) SaveMetadata(ctx context.Context, md *model.ObjectMetadata) error {
	if md.VisitStatus == "" {
		md.VisitStatus = model.VisitUnvisited
	}
	if err := b.db(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(md).Error; err != nil {
		return fmt.Errorf("save metadata %s %s: %w", md.ObjectType, md.ObjectID, err)
	}
	return nil
}

// MetadataByType returns all metadata rows of a type keyed by object id.
func (b *Backend) MetadataByType(ctx context.Context, t model.ObjectType) (map[string]model.ObjectMetadata, error) {
	var rows []model.ObjectMetadata
	if err := b.db(ctx).Where("object_type = ?", t).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list metadata %s: %w", t, err)
	}
	out := make(map[string]model.ObjectMetadata, len(rows))
	for _, md := range rows {
		out[md.ObjectID] = md
	}
	return out, nil
}

// Favorites returns all favorited metadata rows.
func (b *Backend) Favorites(ctx context.Context) ([]model.ObjectMetadata, error) {
	var rows []model.ObjectMetadata
	err := b.db(ctx).Where("is_favorite = ?", true).
		Order("object_type").Order("object_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return rows, nil
}

// UpdateInfo returns the last import record of a data type.
func (b *Backend) UpdateInfo(ctx context.Context, dt model.DataType) (model.UpdateInfo, error) {
	var info model.UpdateInfo
	err := b.db(ctx).First(&info, "data_type = ?", dt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return info, fmt.Errorf("update info %s: %w", dt, storage.ErrNotFound)
	}
	if err != nil {
		return info, fmt.Errorf("get update info %s: %w", dt, err)
	}
	return info, nil
}

// SaveUpdateInfo upserts an import record.
func (b *Backend) SaveUpdateInfo(ctx context.Context, info *model.UpdateInfo) error {
	if err := b.db(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(info).Error; err != nil {
		return fmt.Errorf("save update info %s: %w", info.DataType, err)
	}
	return nil
}

// AddBreadcrumbs stores location history points.
func (b *Backend) AddBreadcrumbs(ctx context.Context, crumbs []model.Breadcrumb) error {
	if len(crumbs) == 0 {
		return nil
	}
	rows := slices.Clone(crumbs)
	for i := range rows {
		rows[i].Timestamp = rows[i].Timestamp.UTC()
	}
	if err := b.db(ctx).Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(rows, batchSize).Error; err != nil {
		return fmt.Errorf("add breadcrumbs: %w", err)
	}
	return nil
}

// Breadcrumbs returns location history since a time, oldest first.
func (b *Backend) Breadcrumbs(ctx context.Context, since time.Time) ([]model.Breadcrumb, error) {
	var out []model.Breadcrumb
	if err := b.db(ctx).Where("timestamp >= ?", since.UTC()).Order("timestamp").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list breadcrumbs: %w", err)
	}
	return out, nil
}

// SaveMapPoint upserts a map point.
func (b *Backend) SaveMapPoint(ctx context.Context, p *model.MapPoint) error {
	if err := b.db(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(p).Error; err != nil {
		return fmt.Errorf("save map point %s: %w", p.UID, err)
	}
	return nil
}

// DeleteMapPoint removes a user pin. Imported landmarks cannot be deleted.
func (b *Backend) DeleteMapPoint(ctx context.Context, uid string) error {
	res := b.db(ctx).Where("uid = ? AND kind = ?", uid, model.PointUser).Delete(&model.MapPoint{})
	if res.Error != nil {
		return fmt.Errorf("delete map point %s: %w", uid, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("map point %s: %w", uid, storage.ErrNotFound)
	}
	return nil
}

// Counts returns row counts per table.
func (b *Backend) Counts(ctx context.Context) (storage.Counts, error) {
	var c storage.Counts
	counts := []struct {
		model     any
		favorites bool
		dst       *int64
	}{
		{&model.Art{}, false, &c.Art},
		{&model.Camp{}, false, &c.Camps},
		{&model.Event{}, false, &c.Events},
		{&model.EventOccurrence{}, false, &c.Occurrences},
		{&model.MapPoint{}, false, &c.MapPoints},
		{&model.ObjectMetadata{}, true, &c.Favorites},
		{&model.Breadcrumb{}, false, &c.Breadcrumbs},
	}
	for _, q := range counts {
		db := b.db(ctx).Model(q.model)
		if q.favorites {
			db = db.Where("is_favorite = ?", true)
		}
		if err := db.Count(q.dst).Error; err != nil {
			return c, fmt.Errorf("count %T: %w", q.model, err)
		}
	}
	return c, nil
}

// Ping checks the connection.
func (b *Backend) Ping(ctx context.Context) error {
	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
