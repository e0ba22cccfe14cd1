package view

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iBurnApp/iBurn-iOS/internal/config"
	"github.com/iBurnApp/iBurn-iOS/internal/dispatcher"
	"github.com/iBurnApp/iBurn-iOS/internal/logging"
	"github.com/iBurnApp/iBurn-iOS/internal/model"
	"github.com/iBurnApp/iBurn-iOS/internal/playadb"
	"github.com/iBurnApp/iBurn-iOS/internal/storage/memory"
	"github.com/iBurnApp/iBurn-iOS/internal/storage/storagetest"
)

type env struct {
	backend  *memory.Backend
	db       *playadb.DB
	registry *Registry
}

func newEnv(t *testing.T, hub *dispatcher.Dispatcher) *env {
	t.Helper()
	backend := memory.New(config.MemoryConfig{})
	require.NoError(t, backend.Init())
	storagetest.Seed(t, backend)

	fc := utcFestival(t)
	db, err := playadb.New(playadb.Dependencies{Storage: backend, Dispatcher: hub, Festival: fc})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	r, err := NewRegistry(Dependencies{Loader: db, Dispatcher: hub})
	require.NoError(t, err)
	t.Cleanup(r.Close)
	for _, def := range BuiltIn(fc) {
		_, err := r.Register(def)
		require.NoError(t, err)
	}
	return &env{backend: backend, db: db, registry: r}
}

func (e *env) view(t *testing.T, name string) *View {
	t.Helper()
	v, ok := e.registry.View(name)
	require.True(t, ok, name)
	return v
}

func sectionIDs(v *View) map[string][]string {
	out := map[string][]string{}
	for _, s := range v.Snapshot() {
		out[s.Key] = itemIDs(s.Items)
	}
	return out
}

func TestNewRegistry_RequiresLoader(t *testing.T) {
	_, err := NewRegistry(Dependencies{})
	assert.Error(t, err)
}

func TestRegistry_RefreshAll(t *testing.T) {
	e := newEnv(t, nil)

	changes, err := e.registry.RefreshAll(context.Background())
	require.NoError(t, err)

	var changed []string
	for _, cs := range changes {
		changed = append(changed, cs.View)
	}
	assert.Equal(t, []string{ViewArt, ViewCamps, ViewEvents}, changed, "favorites stays empty")

	art := e.view(t, ViewArt)
	assert.Equal(t, []string{"B", "T", "W"}, art.Sections())
	assert.Equal(t, 3, art.Len())
	it, ok := art.Item(1, 0)
	require.True(t, ok)
	assert.Equal(t, "a1", it.Object.ID())
	_, ok = art.Item(3, 0)
	assert.False(t, ok)
	assert.Equal(t, 0, art.NumberOfItems(9))

	assert.Equal(t, map[string][]string{"A": {"c2"}, "D": {"c1"}}, sectionIDs(e.view(t, ViewCamps)))
	assert.Equal(t, map[string][]string{
		"2025-08-24": {"e3_1", "e1_1", "e2_1"},
		"2025-08-25": {"e1_2"},
	}, sectionIDs(e.view(t, ViewEvents)))
	assert.Equal(t, 0, e.view(t, ViewFavorites).NumberOfSections())

	path, ok := e.view(t, ViewEvents).IndexPathOf("event:e2_1")
	require.True(t, ok)
	assert.Equal(t, IndexPath{0, 2}, path)

	// nothing changed
	changes, err = e.registry.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Equal(t, uint64(1), art.Version())
}

func TestRegistry_FavoriteUpdatesViews(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	_, err := e.registry.RefreshAll(ctx)
	require.NoError(t, err)

	on, err := e.db.ToggleFavorite(ctx, model.TypeArt, "a1")
	require.NoError(t, err)
	require.True(t, on)

	changes, err := e.registry.Refresh(ctx, SourceArt)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, []RowChange{{Type: ChangeUpdate, UID: "art:a1", From: &IndexPath{1, 0}, To: &IndexPath{1, 0}}}, changes[0].Rows)
	assert.Equal(t, uint64(2), changes[0].Version)

	changes, err = e.registry.Refresh(ctx, SourceFavorites)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, []SectionChange{{Key: "art", Index: 0}}, changes[0].SectionInserts)

	_, err = e.db.ToggleFavorite(ctx, model.TypeEvent, "e1")
	require.NoError(t, err)
	_, err = e.registry.Refresh(ctx, SourceFavorites)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"art": {"a1"}, "event": {"e1_1", "e1_2"}}, sectionIDs(e.view(t, ViewFavorites)))
}

func TestRegistry_DataChangeProducesSectionChanges(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	_, err := e.registry.RefreshAll(ctx)
	require.NoError(t, err)

	art := storagetest.Art()
	art[2].Title = "Tumbleweed"
	require.NoError(t, e.backend.ReplaceArt(ctx, art))

	changes, err := e.registry.Refresh(ctx, SourceArt)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	cs := changes[0]
	assert.Equal(t, []SectionChange{{Key: "W", Index: 2}}, cs.SectionDeletes)
	assert.Empty(t, cs.SectionInserts)
	assert.Equal(t, []RowChange{{Type: ChangeInsert, UID: "art:a3", To: &IndexPath{1, 1}}}, cs.Rows)
}

func TestRegistry_Filtered(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	_, err := e.registry.RefreshAll(ctx)
	require.NoError(t, err)

	fc := utcFestival(t)
	today, err := e.registry.RegisterFiltered("events-today", ViewEvents, OnDay(fc, storagetest.Day0))
	require.NoError(t, err)
	assert.Equal(t, ViewEvents, today.Parent())
	assert.Equal(t, SourceEvents, today.Source())
	assert.Equal(t, map[string][]string{"2025-08-24": {"e3_1", "e1_1", "e2_1"}}, sectionIDs(today.View))

	cs, err := today.SetFilter(HideAllDay)
	require.NoError(t, err)
	assert.Equal(t, "events-today", cs.View)
	assert.Equal(t, []SectionChange{{Key: "2025-08-25", Index: 1}}, cs.SectionInserts)
	assert.Equal(t, []RowChange{{Type: ChangeDelete, UID: "event:e3_1", From: &IndexPath{0, 0}}}, cs.Rows)

	// the parent is unaffected
	assert.Equal(t, 4, e.view(t, ViewEvents).Len())
	assert.Equal(t, []string{ViewArt, ViewCamps, ViewEvents, ViewFavorites, "events-today"}, e.registry.Names())
}

func TestRegistry_ReapplyFollowsClock(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	_, err := e.registry.RefreshAll(ctx)
	require.NoError(t, err)

	fc := utcFestival(t)
	now := storagetest.Day0.Add(5 * time.Hour)
	fc.SetClock(func() time.Time { return now })
	require.NoError(t, e.registry.RegisterAllFiltered(FilteredBuiltIn(fc)))

	today := e.view(t, ViewEventsToday)
	upcoming := e.view(t, ViewEventsUpcoming)
	assert.Equal(t, map[string][]string{"2025-08-24": {"e3_1", "e1_1", "e2_1"}}, sectionIDs(today))
	assert.Equal(t, 4, upcoming.Len())

	assert.Empty(t, e.registry.Reapply(), "nothing moved")

	now = storagetest.Day0.Add(25 * time.Hour)
	changes := e.registry.Reapply()
	var changed []string
	for _, cs := range changes {
		changed = append(changed, cs.View)
	}
	assert.Equal(t, []string{ViewEventsToday, ViewEventsUpcoming}, changed)
	assert.Equal(t, map[string][]string{"2025-08-25": {"e1_2"}}, sectionIDs(today))
	assert.Equal(t, 1, upcoming.Len())
	assert.Equal(t, 4, e.view(t, ViewEvents).Len(), "parent unaffected")
}

func TestRegistry_RegisterErrors(t *testing.T) {
	e := newEnv(t, nil)

	_, err := e.registry.Register(Definition{Name: ViewArt, Source: SourceArt, Group: TitleLetter, Less: ByTitle})
	assert.Error(t, err, "duplicate")
	_, err = e.registry.Register(Definition{Name: "x", Source: SourceArt})
	assert.Error(t, err, "missing functions")
	_, err = e.registry.Register(Definition{Name: "x", Source: "nope", Group: TitleLetter, Less: ByTitle})
	assert.Error(t, err, "unknown source")
	_, err = e.registry.Register(Definition{Source: SourceArt, Group: TitleLetter, Less: ByTitle})
	assert.Error(t, err, "missing name")
	_, err = e.registry.RegisterFiltered("x", "nope", nil)
	assert.Error(t, err)
	_, err = e.registry.SetFilter("nope", nil)
	assert.Error(t, err)
	assert.Error(t, e.registry.RegisterAllFiltered([]FilteredDefinition{{Name: "y", Parent: "nope"}}))
}

type failingLoader struct{ Loader }

func (failingLoader) Art(context.Context) ([]model.Art, error) {
	return nil, errors.New("disk on fire")
}

func TestRegistry_LoaderError(t *testing.T) {
	e := newEnv(t, nil)
	r, err := NewRegistry(Dependencies{Loader: failingLoader{e.db}})
	require.NoError(t, err)
	_, err = r.Register(Definition{Name: ViewArt, Source: SourceArt, Group: TitleLetter, Less: ByTitle})
	require.NoError(t, err)

	_, err = r.Refresh(context.Background(), SourceArt)
	assert.ErrorContains(t, err, "disk on fire")

	_, err = r.RefreshAll(context.Background())
	assert.Error(t, err)
	_, err = r.Refresh(context.Background(), SourceCamps)
	assert.NoError(t, err)
}

func TestRegistry_RefreshesOnNotifications(t *testing.T) {
	hub, err := dispatcher.New(logging.NewKVLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(hub.Close)

	e := newEnv(t, hub)
	ctx := context.Background()
	_, err = e.registry.RefreshAll(ctx)
	require.NoError(t, err)

	var mu sync.Mutex
	var got []ChangeSet
	hub.Subscribe(dispatcher.ViewTopic(ViewArt), func(ev dispatcher.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev.Payload.(ChangeSet))
		return nil
	})
	received := func() []ChangeSet {
		mu.Lock()
		defer mu.Unlock()
		return append([]ChangeSet(nil), got...)
	}

	_, err = e.db.ToggleFavorite(ctx, model.TypeArt, "a2")
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return len(received()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, ChangeUpdate, received()[0].Rows[0].Type)

	require.NoError(t, e.backend.ReplaceArt(ctx, storagetest.Art()[:1]))
	require.NoError(t, hub.Publish(dispatcher.Event{Topic: dispatcher.DataTopic(string(model.DataArt)), Payload: model.DataArt}))
	assert.Eventually(t, func() bool { return len(received()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return e.view(t, ViewArt).Len() == 1 }, time.Second, 5*time.Millisecond)
}
