// Package storagetest holds a behavior suite shared by every storage.Backend
// implementation.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iBurnApp/iBurn-iOS/internal/geo"
	"github.com/iBurnApp/iBurn-iOS/internal/model"
	"github.com/iBurnApp/iBurn-iOS/internal/storage"
)

// Factory returns a fresh, initialized backend. The suite closes it.
type Factory func(t *testing.T) storage.Backend

// Day0 is the first festival day used by the fixtures.
var Day0 = time.Date(2025, 8, 24, 0, 0, 0, 0, time.UTC)

// Art returns the art fixtures.
func Art() []model.Art {
	return []model.Art{
		{DataObject: model.DataObject{UID: "a1", Year: 2025, Title: "Temple of Dust", Description: "a quiet place", Latitude: 40.7912, Longitude: -119.1966}, Artist: "Crew"},
		{DataObject: model.DataObject{UID: "a2", Year: 2025, Title: "Bloom", Description: "flowers of steel", Latitude: 40.7850, Longitude: -119.2100}},
		{DataObject: model.DataObject{UID: "a3", Year: 2025, Title: "Wanderer", Description: "unplaced"}},
	}
}

// Camps returns the camp fixtures.
func Camps() []model.Camp {
	return []model.Camp{
		{DataObject: model.DataObject{UID: "c1", Year: 2025, Title: "Dusty Lounge", Description: "cold drinks", Latitude: 40.7800, Longitude: -119.2150}, Frontage: "Esplanade"},
		{DataObject: model.DataObject{UID: "c2", Year: 2025, Title: "Abode", Description: "right next to the temple", Latitude: 40.7700, Longitude: -119.2200}},
	}
}

// Events returns the event fixtures. e1 runs twice, e2 once, e3 all day.
func Events() []model.Event {
	return []model.Event{
		{
			DataObject:   model.DataObject{UID: "e1", Year: 2025, Title: "Sunrise Yoga", Latitude: 40.7800, Longitude: -119.2150},
			EventType:    model.EventYoga,
			HostedByCamp: "c1",
			Occurrences: []model.EventOccurrence{
				{ID: 1, StartTime: Day0.Add(6 * time.Hour), EndTime: Day0.Add(7 * time.Hour)},
				{ID: 2, StartTime: Day0.Add(30 * time.Hour), EndTime: Day0.Add(31 * time.Hour)},
			},
		},
		{
			DataObject:   model.DataObject{UID: "e2", Year: 2025, Title: "Art Walk", Latitude: 40.7912, Longitude: -119.1966},
			EventType:    model.EventArts,
			LocatedAtArt: "a1",
			Occurrences: []model.EventOccurrence{
				{ID: 1, StartTime: Day0.Add(6 * time.Hour), EndTime: Day0.Add(8 * time.Hour)},
			},
		},
		{
			DataObject: model.DataObject{UID: "e3", Year: 2025, Title: "Open Bar"},
			EventType:  model.EventFood,
			AllDay:     true,
			Occurrences: []model.EventOccurrence{
				{ID: 1, StartTime: Day0, EndTime: Day0.Add(24 * time.Hour)},
			},
		},
	}
}

// Seed loads the art, camp and event fixtures.
func Seed(t *testing.T, b storage.Backend) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, b.ReplaceArt(ctx, Art()))
	require.NoError(t, b.ReplaceCamps(ctx, Camps()))
	require.NoError(t, b.ReplaceEvents(ctx, Events()))
}

func open(t *testing.T, f Factory) storage.Backend {
	t.Helper()
	b := f(t)
	t.Cleanup(func() { b.Close() })
	return b
}

// Run executes the suite against backends produced by f.
func Run(t *testing.T, f Factory) {
	t.Run("ReplaceAndList", func(t *testing.T) { testReplaceAndList(t, open(t, f)) })
	t.Run("EventsWithOccurrences", func(t *testing.T) { testEvents(t, open(t, f)) })
	t.Run("ObjectByUID", func(t *testing.T) { testObjectByUID(t, open(t, f)) })
	t.Run("MetadataSurvivesReplace", func(t *testing.T) { testMetadata(t, open(t, f)) })
	t.Run("UpdateInfo", func(t *testing.T) { testUpdateInfo(t, open(t, f)) })
	t.Run("OccurrencesBetween", func(t *testing.T) { testOccurrencesBetween(t, open(t, f)) })
	t.Run("Search", func(t *testing.T) { testSearch(t, open(t, f)) })
	t.Run("ObjectsInRegion", func(t *testing.T) { testRegion(t, open(t, f)) })
	t.Run("Breadcrumbs", func(t *testing.T) { testBreadcrumbs(t, open(t, f)) })
	t.Run("MapPoints", func(t *testing.T) { testMapPoints(t, open(t, f)) })
	t.Run("Counts", func(t *testing.T) { testCounts(t, open(t, f)) })
}

func titles[T model.Object](objs []T) []string {
	out := make([]string, len(objs))
	for i, o := range objs {
		out[i] = o.Name()
	}
	return out
}

func testReplaceAndList(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	Seed(t, b)

	art, err := b.Art(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bloom", "Temple of Dust", "Wanderer"}, titles(art))
	assert.Equal(t, "Crew", art[1].Artist)

	camps, err := b.Camps(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Abode", "Dusty Lounge"}, titles(camps))

	require.NoError(t, b.ReplaceArt(ctx, Art()[:1]))
	art, err = b.Art(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Temple of Dust"}, titles(art))

	require.NoError(t, b.ReplaceCamps(ctx, nil))
	camps, err = b.Camps(ctx)
	require.NoError(t, err)
	assert.Empty(t, camps)
}

func testEvents(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	Seed(t, b)

	events, err := b.Events(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Art Walk", "Open Bar", "Sunrise Yoga"}, titles(events))

	yoga := events[2]
	require.Len(t, yoga.Occurrences, 2)
	assert.Equal(t, uint(1), yoga.Occurrences[0].ID)
	assert.True(t, yoga.Occurrences[0].StartTime.Equal(Day0.Add(6*time.Hour)))
	assert.Equal(t, "c1", yoga.HostedByCamp)
	assert.Equal(t, model.EventYoga, yoga.EventType)

	// replacing drops occurrences of removed events
	require.NoError(t, b.ReplaceEvents(ctx, Events()[1:2]))
	occ, err := b.OccurrencesBetween(ctx, Day0, Day0.Add(72*time.Hour))
	require.NoError(t, err)
	require.Len(t, occ, 1)
	assert.Equal(t, "e2_1", occ[0].ID())
}

func testObjectByUID(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	Seed(t, b)

	obj, err := b.ObjectByUID(ctx, model.TypeCamp, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Dusty Lounge", obj.Name())
	assert.Equal(t, model.TypeCamp, obj.Type())

	obj, err = b.ObjectByUID(ctx, model.TypeEvent, "e1")
	require.NoError(t, err)
	ev, ok := obj.(model.Event)
	require.True(t, ok)
	assert.Len(t, ev.Occurrences, 2)

	_, err = b.ObjectByUID(ctx, model.TypeArt, "c1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = b.ObjectByUID(ctx, model.TypeArt, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testMetadata(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	Seed(t, b)

	md, err := b.Metadata(ctx, model.TypeArt, "a1")
	require.NoError(t, err)
	assert.False(t, md.IsFavorite)
	assert.Equal(t, model.VisitUnvisited, md.VisitStatus)

	md.IsFavorite = true
	md.UserNotes = "bring water"
	require.NoError(t, b.SaveMetadata(ctx, &md))

	md.VisitStatus = model.VisitVisited
	require.NoError(t, b.SaveMetadata(ctx, &md))

	require.NoError(t, b.ReplaceArt(ctx, Art()))

	got, err := b.Metadata(ctx, model.TypeArt, "a1")
	require.NoError(t, err)
	assert.True(t, got.IsFavorite)
	assert.Equal(t, "bring water", got.UserNotes)
	assert.Equal(t, model.VisitVisited, got.VisitStatus)

	other := model.NewMetadata(model.TypeCamp, "c2")
	require.NoError(t, b.SaveMetadata(ctx, &other))

	byType, err := b.MetadataByType(ctx, model.TypeArt)
	require.NoError(t, err)
	assert.Len(t, byType, 1)
	assert.Contains(t, byType, "a1")

	favs, err := b.Favorites(ctx)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, "a1", favs[0].ObjectID)
}

func testUpdateInfo(t *testing.T, b storage.Backend) {
	ctx := context.Background()

	_, err := b.UpdateInfo(ctx, model.DataArt)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	updated := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	info := model.UpdateInfo{DataType: model.DataArt, LastUpdated: updated, FetchStatus: model.FetchFetching}
	require.NoError(t, b.SaveUpdateInfo(ctx, &info))

	info.FetchStatus = model.FetchComplete
	info.TotalCount = 3
	info.ContentHash = "abc"
	require.NoError(t, b.SaveUpdateInfo(ctx, &info))

	got, err := b.UpdateInfo(ctx, model.DataArt)
	require.NoError(t, err)
	assert.Equal(t, model.FetchComplete, got.FetchStatus)
	assert.Equal(t, 3, got.TotalCount)
	assert.Equal(t, "abc", got.ContentHash)
	assert.True(t, got.LastUpdated.Equal(updated))
}

func testOccurrencesBetween(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	Seed(t, b)

	// 06:30-06:45 on day 0 overlaps yoga, the art walk and the all day bar
	occ, err := b.OccurrencesBetween(ctx, Day0.Add(6*time.Hour+30*time.Minute), Day0.Add(6*time.Hour+45*time.Minute))
	require.NoError(t, err)
	ids := make([]string, len(occ))
	for i, o := range occ {
		ids[i] = o.ID()
	}
	assert.Equal(t, []string{"e3_1", "e2_1", "e1_1"}, ids)

	// end is exclusive: the range ending when yoga starts does not include it
	occ, err = b.OccurrencesBetween(ctx, Day0.Add(5*time.Hour), Day0.Add(6*time.Hour))
	require.NoError(t, err)
	require.Len(t, occ, 1)
	assert.Equal(t, "e3_1", occ[0].ID())

	occ, err = b.OccurrencesBetween(ctx, Day0.Add(29*time.Hour), Day0.Add(32*time.Hour))
	require.NoError(t, err)
	require.Len(t, occ, 1)
	assert.Equal(t, "e1_2", occ[0].ID())
	assert.Equal(t, "Sunrise Yoga", occ[0].Name())
}

func testSearch(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	Seed(t, b)

	res, err := b.Search(ctx, "temple", 10)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "a1", res[0].ID(), "title match first")
	assert.Equal(t, "c2", res[1].ID())

	res, err = b.Search(ctx, "DUSTY loun", 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "c1", res[0].ID())

	res, err = b.Search(ctx, "yoga", 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, model.TypeEvent, res[0].Type())

	res, err = b.Search(ctx, "dust", 1)
	require.NoError(t, err)
	assert.Len(t, res, 1)

	res, err = b.Search(ctx, "  ", 10)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func testRegion(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	Seed(t, b)

	region := geo.RegionAround(40.7800, -119.2150, 300)
	objs, err := b.ObjectsInRegion(ctx, region)
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, o := range objs {
		ids[string(o.Type())+":"+o.ID()] = true
	}
	assert.True(t, ids["camp:c1"])
	assert.True(t, ids["event:e1"])
	assert.False(t, ids["art:a1"])
	assert.False(t, ids["art:a3"], "objects without location are never in a region")
}

func testBreadcrumbs(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	crumbs := []model.Breadcrumb{
		{ID: "b1", Latitude: 40.78, Longitude: -119.21, Timestamp: Day0.Add(time.Hour)},
		{ID: "b2", Latitude: 40.79, Longitude: -119.20, Timestamp: Day0.Add(2 * time.Hour)},
	}
	require.NoError(t, b.AddBreadcrumbs(ctx, crumbs))
	require.NoError(t, b.AddBreadcrumbs(ctx, nil))

	got, err := b.Breadcrumbs(ctx, Day0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b1", got[0].ID)

	got, err = b.Breadcrumbs(ctx, Day0.Add(90*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b2", got[0].ID)
}

func testMapPoints(t *testing.T, b storage.Backend) {
	ctx := context.Background()

	pin := model.MapPoint{UID: "p1", Kind: model.PointUser, Title: "My Tent", Latitude: 40.77, Longitude: -119.22}
	require.NoError(t, b.SaveMapPoint(ctx, &pin))
	require.NoError(t, b.ReplaceMapPoints(ctx, []model.MapPoint{
		{UID: "toilets-1", Kind: model.PointLandmark, Title: "Toilets", Latitude: 40.78, Longitude: -119.21},
	}))
	require.NoError(t, b.ReplaceMapPoints(ctx, []model.MapPoint{
		{UID: "toilets-2", Kind: model.PointLandmark, Title: "Toilets", Latitude: 40.79, Longitude: -119.21},
	}))

	points, err := b.MapPoints(ctx)
	require.NoError(t, err)
	uids := []string{}
	for _, p := range points {
		uids = append(uids, p.UID)
	}
	assert.ElementsMatch(t, []string{"p1", "toilets-2"}, uids)

	assert.ErrorIs(t, b.DeleteMapPoint(ctx, "toilets-2"), storage.ErrNotFound)
	require.NoError(t, b.DeleteMapPoint(ctx, "p1"))
	assert.ErrorIs(t, b.DeleteMapPoint(ctx, "p1"), storage.ErrNotFound)
}

func testCounts(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	Seed(t, b)

	md := model.NewMetadata(model.TypeCamp, "c1")
	md.IsFavorite = true
	require.NoError(t, b.SaveMetadata(ctx, &md))

	c, err := b.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.Counts{Art: 3, Camps: 2, Events: 3, Occurrences: 4, Favorites: 1}, c)
}
