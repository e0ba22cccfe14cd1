package playadb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iBurnApp/iBurn-iOS/internal/config"
	"github.com/iBurnApp/iBurn-iOS/internal/dispatcher"
	"github.com/iBurnApp/iBurn-iOS/internal/festival"
	"github.com/iBurnApp/iBurn-iOS/internal/geo"
	"github.com/iBurnApp/iBurn-iOS/internal/logging"
	"github.com/iBurnApp/iBurn-iOS/internal/model"
	"github.com/iBurnApp/iBurn-iOS/internal/storage"
	"github.com/iBurnApp/iBurn-iOS/internal/storage/memory"
	"github.com/iBurnApp/iBurn-iOS/internal/storage/storagetest"
)

var day0 = storagetest.Day0

type testEnv struct {
	db  *DB
	hub *dispatcher.Dispatcher

	mu       sync.Mutex
	metadata []MetadataChange
}

func newTestEnv(t *testing.T, deps Dependencies) *testEnv {
	t.Helper()
	backend := memory.New(config.MemoryConfig{})
	require.NoError(t, backend.Init())
	storagetest.Seed(t, backend)

	hub, err := dispatcher.New(logging.NewKVLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(hub.Close)

	fc, err := festival.NewContext(festival.Settings{Year: 2025, StartDate: "2025-08-24", TimeZone: "UTC"})
	require.NoError(t, err)

	deps.Storage = backend
	deps.Dispatcher = hub
	deps.Festival = fc
	db, err := New(deps)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	env := &testEnv{db: db, hub: hub}
	hub.Subscribe(dispatcher.TopicMetadata, func(e dispatcher.Event) error {
		env.mu.Lock()
		defer env.mu.Unlock()
		env.metadata = append(env.metadata, e.Payload.(MetadataChange))
		return nil
	})
	return env
}

func (e *testEnv) metadataEvents() []MetadataChange {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]MetadataChange(nil), e.metadata...)
}

func occurrenceIDs(occ []model.Occurrence) []string {
	out := make([]string, len(occ))
	for i, o := range occ {
		out[i] = o.ID()
	}
	return out
}

func TestNew_RequiresStorage(t *testing.T) {
	_, err := New(Dependencies{})
	assert.Error(t, err)
}

func TestEventsOnDay(t *testing.T) {
	env := newTestEnv(t, Dependencies{})
	ctx := context.Background()

	occ, err := env.db.EventsOnDay(ctx, day0.Add(12*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"e3_1", "e2_1", "e1_1"}, occurrenceIDs(occ))

	occ, err = env.db.EventsOnDay(ctx, day0.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"e1_2"}, occurrenceIDs(occ))
}

func TestEventsInRange(t *testing.T) {
	env := newTestEnv(t, Dependencies{})
	ctx := context.Background()

	occ, err := env.db.EventsInRange(ctx, day0.Add(7*time.Hour), day0.Add(9*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"e3_1", "e2_1"}, occurrenceIDs(occ))

	occ, err = env.db.EventsInRange(ctx, day0.Add(9*time.Hour), day0)
	require.NoError(t, err)
	assert.Empty(t, occ)
}

func TestCurrentAndUpcomingEvents(t *testing.T) {
	env := newTestEnv(t, Dependencies{})
	ctx := context.Background()

	occ, err := env.db.CurrentEvents(ctx, day0.Add(6*time.Hour+30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"e3_1", "e2_1", "e1_1"}, occurrenceIDs(occ))

	occ, err = env.db.CurrentEvents(ctx, day0.Add(7*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"e3_1", "e2_1"}, occurrenceIDs(occ), "end is exclusive")

	occ, err = env.db.UpcomingEvents(ctx, day0.Add(5*time.Hour), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"e2_1", "e1_1"}, occurrenceIDs(occ), "started events excluded")

	occ, err = env.db.UpcomingEvents(ctx, day0.Add(20*time.Hour), 0)
	require.NoError(t, err)
	assert.Empty(t, occ)
}

func TestObject_Cached(t *testing.T) {
	env := newTestEnv(t, Dependencies{})
	ctx := context.Background()

	obj, err := env.db.Object(ctx, model.TypeArt, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Temple of Dust", obj.Name())
	_, err = env.db.Object(ctx, model.TypeArt, "a1")
	require.NoError(t, err)

	hits, misses := env.db.Cache().Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	_, err = env.db.Object(ctx, model.TypeArt, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestObject_InvalidatedOnDataChange(t *testing.T) {
	env := newTestEnv(t, Dependencies{})
	ctx := context.Background()

	_, err := env.db.Object(ctx, model.TypeArt, "a1")
	require.NoError(t, err)
	_, err = env.db.Object(ctx, model.TypeCamp, "c1")
	require.NoError(t, err)
	require.Equal(t, 2, env.db.Cache().Len())

	require.NoError(t, env.hub.Publish(dispatcher.Event{Topic: dispatcher.DataTopic("art"), Payload: model.DataArt}))
	assert.Equal(t, 1, env.db.Cache().Len())
	_, ok := env.db.Cache().Get(model.TypeCamp, "c1")
	assert.True(t, ok)
}

func TestToggleFavorite(t *testing.T) {
	env := newTestEnv(t, Dependencies{})
	ctx := context.Background()

	fav, err := env.db.ToggleFavorite(ctx, model.TypeEvent, "e1")
	require.NoError(t, err)
	assert.True(t, fav)
	isFav, err := env.db.IsFavorite(ctx, model.TypeEvent, "e1")
	require.NoError(t, err)
	assert.True(t, isFav)

	fav, err = env.db.ToggleFavorite(ctx, model.TypeEvent, "e1")
	require.NoError(t, err)
	assert.False(t, fav)

	events := env.metadataEvents()
	require.Len(t, events, 2)
	assert.Equal(t, "e1", events[0].ObjectID)
	assert.True(t, events[0].Metadata.IsFavorite)
	assert.False(t, events[1].Metadata.IsFavorite)

	_, err = env.db.ToggleFavorite(ctx, model.TypeEvent, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Len(t, env.metadataEvents(), 2)
}

func TestFavorites_OrderedByType(t *testing.T) {
	env := newTestEnv(t, Dependencies{})
	ctx := context.Background()

	require.NoError(t, env.db.SetFavorite(ctx, model.TypeEvent, "e1", true))
	require.NoError(t, env.db.SetFavorite(ctx, model.TypeCamp, "c1", true))
	require.NoError(t, env.db.SetFavorite(ctx, model.TypeArt, "a2", true))

	favs, err := env.db.Favorites(ctx)
	require.NoError(t, err)
	require.Len(t, favs, 3)
	assert.Equal(t, model.TypeArt, favs[0].Type())
	assert.Equal(t, model.TypeCamp, favs[1].Type())
	assert.Equal(t, model.TypeEvent, favs[2].Type())

	// favorites of objects dropped from the data set are kept but hidden
	require.NoError(t, env.db.Storage().ReplaceArt(ctx, nil))
	require.NoError(t, env.hub.Publish(dispatcher.Event{Topic: dispatcher.DataTopic("art"), Payload: model.DataArt}))
	favs, err = env.db.Favorites(ctx)
	require.NoError(t, err)
	assert.Len(t, favs, 2)
	md, err := env.db.Metadata(ctx, model.TypeArt, "a2")
	require.NoError(t, err)
	assert.True(t, md.IsFavorite)
}

func TestNotesVisitStatusAndViewed(t *testing.T) {
	env := newTestEnv(t, Dependencies{})
	ctx := context.Background()

	require.NoError(t, env.db.SetNotes(ctx, model.TypeCamp, "c1", "bring a mug"))
	require.NoError(t, env.db.SetVisitStatus(ctx, model.TypeCamp, "c1", model.VisitWantToVisit))
	require.NoError(t, env.db.MarkViewed(ctx, model.TypeCamp, "c1"))
	assert.Error(t, env.db.SetVisitStatus(ctx, model.TypeCamp, "c1", model.VisitStatus("maybe")))

	md, err := env.db.Metadata(ctx, model.TypeCamp, "c1")
	require.NoError(t, err)
	assert.Equal(t, "bring a mug", md.UserNotes)
	assert.Equal(t, model.VisitWantToVisit, md.VisitStatus)
	require.NotNil(t, md.LastViewed)
	assert.False(t, md.IsFavorite)

	byType, err := env.db.MetadataByType(ctx, model.TypeCamp)
	require.NoError(t, err)
	assert.Contains(t, byType, "c1")
	assert.Len(t, env.metadataEvents(), 3)
}

func TestUserPins(t *testing.T) {
	env := newTestEnv(t, Dependencies{})
	ctx := context.Background()

	var pointEvents int
	env.hub.Subscribe(dispatcher.DataTopic("points"), func(dispatcher.Event) error {
		pointEvents++
		return nil
	})

	_, err := env.db.AddUserPin(ctx, "tent", 0, 0)
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)

	pin, err := env.db.AddUserPin(ctx, " my tent ", 40.78, -119.21)
	require.NoError(t, err)
	assert.Len(t, pin.UID, 36)
	assert.Equal(t, "my tent", pin.Title)
	assert.Equal(t, model.PointUser, pin.Kind)

	points, err := env.db.MapPoints(ctx)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, pin.UID, points[0].UID)

	require.NoError(t, env.db.RemoveUserPin(ctx, pin.UID))
	assert.ErrorIs(t, env.db.RemoveUserPin(ctx, pin.UID), storage.ErrNotFound)
	assert.Equal(t, 2, pointEvents)
}

func TestLowMemory(t *testing.T) {
	env := newTestEnv(t, Dependencies{CacheSize: 10, LowMemorySize: 2})
	ctx := context.Background()

	for _, uid := range []string{"a1", "a2", "a3"} {
		_, err := env.db.Object(ctx, model.TypeArt, uid)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, env.db.LowMemory())
	assert.Equal(t, 2, env.db.Cache().Size())
	assert.Equal(t, 2, env.db.Cache().Len())
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t, Dependencies{})
	ctx := context.Background()

	res, err := env.db.Search(ctx, "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, res)

	res, err = env.db.Search(ctx, "temple", 10)
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Equal(t, "a1", res[0].ID())
}

func TestObjectsInRegion(t *testing.T) {
	env := newTestEnv(t, Dependencies{})
	objs, err := env.db.ObjectsInRegion(context.Background(), geo.RegionAround(40.7912, -119.1966, 100))
	require.NoError(t, err)

	var ids []string
	for _, o := range objs {
		ids = append(ids, o.ID())
	}
	assert.ElementsMatch(t, []string{"a1", "e2"}, ids)
}
