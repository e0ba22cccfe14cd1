// Package playadb is the data service used by the rest of the application.
// It puts the object cache and change notifications in front of a storage
// backend.
package playadb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iBurnApp/iBurn-iOS/internal/cache"
	"github.com/iBurnApp/iBurn-iOS/internal/dispatcher"
	"github.com/iBurnApp/iBurn-iOS/internal/festival"
	"github.com/iBurnApp/iBurn-iOS/internal/geo"
	"github.com/iBurnApp/iBurn-iOS/internal/logging"
	"github.com/iBurnApp/iBurn-iOS/internal/model"
	"github.com/iBurnApp/iBurn-iOS/internal/storage"
)

const (
	DefaultCacheSize     = 1000
	DefaultLowMemorySize = 250
)

// Dependencies holds all dependencies for the data service
type Dependencies struct {
	Storage       storage.Backend
	Dispatcher    *dispatcher.Dispatcher
	Festival      *festival.Context
	LogManager    *logging.SlogManager
	CacheSize     int
	LowMemorySize int
}

// DB is the façade over storage, cache and notifications.
type DB struct {
	store    storage.Backend
	cache    *cache.ObjectCache
	hub      *dispatcher.Dispatcher
	festival *festival.Context
	log      *logging.SlogManager

	lowMemorySize int
	subs          []*dispatcher.Subscription
}

// New creates the service and subscribes the cache to data-changed topics.
func New(deps Dependencies) (*DB, error) {
	if deps.Storage == nil {
		return nil, errors.New("playadb: storage is required")
	}
	if deps.CacheSize <= 0 {
		deps.CacheSize = DefaultCacheSize
	}
	if deps.LowMemorySize <= 0 {
		deps.LowMemorySize = DefaultLowMemorySize
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.Festival == nil {
		fc, err := festival.NewContext(festival.Settings{})
		if err != nil {
			return nil, err
		}
		deps.Festival = fc
	}

	objects, err := cache.NewObjectCache(deps.CacheSize)
	if err != nil {
		return nil, err
	}

	db := &DB{
		store:         deps.Storage,
		cache:         objects,
		hub:           deps.Dispatcher,
		festival:      deps.Festival,
		log:           deps.LogManager,
		lowMemorySize: deps.LowMemorySize,
	}

	if db.hub != nil {
		for _, dt := range model.DataTypes {
			db.subs = append(db.subs, db.hub.Subscribe(dispatcher.DataTopic(string(dt)), db.onDataChanged))
		}
	}
	return db, nil
}

// Close drops the cache subscriptions. The backend is owned by the caller.
func (db *DB) Close() {
	for _, s := range db.subs {
		s.Unsubscribe()
	}
	db.subs = nil
}

// Storage exposes the backend for workers that need raw access.
func (db *DB) Storage() storage.Backend {
	return db.store
}

// Festival returns the calendar in use.
func (db *DB) Festival() *festival.Context {
	return db.festival
}

// Cache exposes the object cache for monitoring.
func (db *DB) Cache() *cache.ObjectCache {
	return db.cache
}

func (db *DB) onDataChanged(e dispatcher.Event) error {
	dt, ok := e.Payload.(model.DataType)
	if !ok {
		dt = model.DataType(strings.TrimPrefix(e.Topic, "data."))
	}
	if t := dt.ObjectType(); t != "" {
		removed := db.cache.InvalidateType(t)
		db.log.WriteLog("playadb:onDataChanged", fmt.Sprintf("Invalidated %d cached %s objects", removed, t), "DEBUG")
	}
	return nil
}

// LowMemory shrinks the object cache.
func (db *DB) LowMemory() int {
	evicted := db.cache.Resize(db.lowMemorySize)
	db.log.WriteLog("playadb:LowMemory", fmt.Sprintf("Object cache resized to %d, evicted %d", db.lowMemorySize, evicted), "INFO")
	return evicted
}

// Art returns every art installation sorted by title.
func (db *DB) Art(ctx context.Context) ([]model.Art, error) {
	return db.store.Art(ctx)
}

// Camps returns every camp sorted by title.
func (db *DB) Camps(ctx context.Context) ([]model.Camp, error) {
	return db.store.Camps(ctx)
}

// Events returns every event with its occurrences.
func (db *DB) Events(ctx context.Context) ([]model.Event, error) {
	return db.store.Events(ctx)
}

// Object returns one object, from the cache when possible.
func (db *DB) Object(ctx context.Context, t model.ObjectType, uid string) (model.Object, error) {
	if obj, ok := db.cache.Get(t, uid); ok {
		return obj, nil
	}
	obj, err := db.store.ObjectByUID(ctx, t, uid)
	if err != nil {
		return nil, err
	}
	db.cache.Add(obj)
	return obj, nil
}

// EventsOnDay lists occurrences starting on the festival day containing day.
func (db *DB) EventsOnDay(ctx context.Context, day time.Time) ([]model.Occurrence, error) {
	start := db.festival.DayOf(day)
	end := start.AddDate(0, 0, 1)
	occ, err := db.store.OccurrencesBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}
	out := occ[:0]
	for _, o := range occ {
		if !o.StartTime.Before(start) && o.StartTime.Before(end) {
			out = append(out, o)
		}
	}
	return out, nil
}

// EventsInRange lists occurrences overlapping [start, end).
func (db *DB) EventsInRange(ctx context.Context, start, end time.Time) ([]model.Occurrence, error) {
	if !end.After(start) {
		return []model.Occurrence{}, nil
	}
	return db.store.OccurrencesBetween(ctx, start, end)
}

// CurrentEvents lists occurrences happening at now.
func (db *DB) CurrentEvents(ctx context.Context, now time.Time) ([]model.Occurrence, error) {
	occ, err := db.store.OccurrencesBetween(ctx, now, now.Add(time.Second))
	if err != nil {
		return nil, err
	}
	out := occ[:0]
	for _, o := range occ {
		if o.IsHappeningNow(now) {
			out = append(out, o)
		}
	}
	return out, nil
}

// UpcomingEvents lists occurrences starting within the next hours.
func (db *DB) UpcomingEvents(ctx context.Context, now time.Time, hours int) ([]model.Occurrence, error) {
	if hours <= 0 {
		hours = 1
	}
	occ, err := db.store.OccurrencesBetween(ctx, now, now.Add(time.Duration(hours)*time.Hour))
	if err != nil {
		return nil, err
	}
	out := occ[:0]
	for _, o := range occ {
		if !o.HasStarted(now) {
			out = append(out, o)
		}
	}
	return out, nil
}

// ObjectsInRegion returns art, camps and events inside the box.
func (db *DB) ObjectsInRegion(ctx context.Context, region geo.Region) ([]model.Object, error) {
	return db.store.ObjectsInRegion(ctx, region)
}

// Search runs a full-text query over all object types.
func (db *DB) Search(ctx context.Context, query string, limit int) ([]model.Object, error) {
	if strings.TrimSpace(query) == "" {
		return []model.Object{}, nil
	}
	return db.store.Search(ctx, query, limit)
}

// MapPoints returns landmarks and user pins.
func (db *DB) MapPoints(ctx context.Context) ([]model.MapPoint, error) {
	return db.store.MapPoints(ctx)
}

// AddUserPin stores a user-placed map pin.
func (db *DB) AddUserPin(ctx context.Context, title string, lat, lon float64) (model.MapPoint, error) {
	if !geo.Valid(lat, lon) {
		return model.MapPoint{}, geo.ErrInvalidCoordinates
	}
	p := model.MapPoint{
		UID:       uuid.NewString(),
		Kind:      model.PointUser,
		Title:     strings.TrimSpace(title),
		Latitude:  lat,
		Longitude: lon,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.store.SaveMapPoint(ctx, &p); err != nil {
		return model.MapPoint{}, err
	}
	db.publish(dispatcher.DataTopic(string(model.DataPoints)), model.DataPoints)
	return p, nil
}

// RemoveUserPin deletes a user pin. Imported landmarks cannot be removed.
func (db *DB) RemoveUserPin(ctx context.Context, uid string) error {
	if err := db.store.DeleteMapPoint(ctx, uid); err != nil {
		return err
	}
	db.publish(dispatcher.DataTopic(string(model.DataPoints)), model.DataPoints)
	return nil
}

func (db *DB) publish(topic string, payload any) {
	if db.hub == nil {
		return
	}
	if err := db.hub.Publish(dispatcher.Event{Topic: topic, Payload: payload}); err != nil {
		db.log.WriteLog("playadb:publish", fmt.Sprintf("Publish %s: %v", topic, err), "WARN")
	}
}
