package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iBurnApp/iBurn-iOS/internal/festival"
	"github.com/iBurnApp/iBurn-iOS/internal/model"
	"github.com/iBurnApp/iBurn-iOS/internal/storage/storagetest"
)

func utcFestival(t *testing.T) *festival.Context {
	t.Helper()
	fc, err := festival.NewContext(festival.Settings{Year: 2025, StartDate: "2025-08-24", TimeZone: "UTC"})
	require.NoError(t, err)
	return fc
}

func occurrenceItems() []Item {
	var out []Item
	for _, e := range storagetest.Events() {
		for _, o := range e.ExpandOccurrences() {
			out = append(out, Item{Object: o, Metadata: model.NewMetadata(model.TypeEvent, e.UID)})
		}
	}
	return out
}

func itemIDs(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Object.ID()
	}
	return out
}

func keep(items []Item, f Filter) []Item {
	var out []Item
	for _, it := range items {
		if f(it) {
			out = append(out, it)
		}
	}
	return out
}

func TestLetterSections(t *testing.T) {
	keys := []string{"#", "B", "A", "Z"}
	v := newView(Definition{Group: func(it Item) string { return it.Object.Name() }, Less: ByTitle, SectionLess: LetterSections})
	var items []Item
	for i, k := range keys {
		items = append(items, artItem(string(rune('a'+i)), k))
	}
	var got []string
	for _, s := range v.build(items) {
		got = append(got, s.Key)
	}
	assert.Equal(t, []string{"A", "B", "Z", "#"}, got)
}

func TestTypeSections(t *testing.T) {
	assert.True(t, TypeSections("art", "camp"))
	assert.True(t, TypeSections("camp", "event"))
	assert.False(t, TypeSections("event", "art"))
	assert.True(t, TypeSections("event", "unknown"))
}

func TestTitleLetter(t *testing.T) {
	assert.Equal(t, "T", TitleLetter(artItem("a", "Temple of Dust")))
	assert.Equal(t, "M", TitleLetter(artItem("a", "The Man")))
	assert.Equal(t, "#", TitleLetter(artItem("a", "2 Fast")))
}

func TestByStart(t *testing.T) {
	items := occurrenceItems()
	v := newView(Definition{Group: func(Item) string { return "all" }, Less: ByStart})
	sections := v.build(append(items, artItem("a1", "Temple")))
	require.Len(t, sections, 1)
	assert.Equal(t, []string{"e3_1", "e1_1", "e2_1", "e1_2", "a1"}, itemIDs(sections[0].Items))
}

func TestByDay(t *testing.T) {
	fc := utcFestival(t)
	group := ByDay(fc)
	items := occurrenceItems()
	assert.Equal(t, "2025-08-24", group(items[0]))
	assert.Equal(t, "2025-08-25", group(items[1]))
	assert.Equal(t, "art", group(artItem("a1", "Temple")))
}

func TestSearchGroup(t *testing.T) {
	fc := utcFestival(t)
	group := SearchGroup(fc)
	items := occurrenceItems()
	// Day0 is a Sunday
	assert.Equal(t, "S 6AM", group(items[0]))
	assert.Equal(t, "M 6AM", group(items[1]))
	assert.Equal(t, "S 12AM", group(items[3]))
	assert.Equal(t, "art", group(artItem("a1", "Temple")))
	assert.Equal(t, "W 3PM", searchKey(time.Date(2025, 8, 27, 15, 30, 0, 0, time.UTC)))
}

func TestFilters(t *testing.T) {
	fc := utcFestival(t)
	day0 := storagetest.Day0
	items := append(occurrenceItems(), artItem("a1", "Temple"))

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"on day 1", OnDay(fc, day0.Add(36*time.Hour)), []string{"e1_2", "a1"}},
		{"event types", EventTypes(model.EventYoga, model.EventFood), []string{"e1_1", "e1_2", "e3_1", "a1"}},
		{"no event types", EventTypes(), []string{"e1_1", "e1_2", "e2_1", "e3_1", "a1"}},
		{"hide expired", HideExpired(func() time.Time { return day0.Add(7 * time.Hour) }), []string{"e1_2", "e2_1", "e3_1", "a1"}},
		{"hide all day", HideAllDay, []string{"e1_1", "e1_2", "e2_1", "a1"}},
		{"has location", HasLocation, []string{"e1_1", "e1_2", "e2_1"}},
		{"all", All(HideAllDay, nil, OnDay(fc, day0)), []string{"e1_1", "e2_1", "a1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, itemIDs(keep(items, tt.filter)))
		})
	}
}

func TestToday(t *testing.T) {
	fc := utcFestival(t)
	now := storagetest.Day0.Add(3 * time.Hour)
	fc.SetClock(func() time.Time { return now })
	items := append(occurrenceItems(), artItem("a1", "Temple"))

	f := Today(fc)
	assert.Equal(t, []string{"e1_1", "e2_1", "e3_1", "a1"}, itemIDs(keep(items, f)))

	now = now.Add(24 * time.Hour)
	assert.Equal(t, []string{"e1_2", "a1"}, itemIDs(keep(items, f)), "follows the clock")
}

func TestFilterOptions(t *testing.T) {
	fc := utcFestival(t)
	day0 := storagetest.Day0
	fc.SetClock(func() time.Time { return day0.Add(7 * time.Hour) })
	items := append(occurrenceItems(), artItem("a1", "Temple"))

	assert.Nil(t, FilterOptions{}.Filter(fc))

	tests := []struct {
		name string
		opts FilterOptions
		want []string
	}{
		{"day", FilterOptions{Day: day0.Add(30 * time.Hour)}, []string{"e1_2", "a1"}},
		{"types", FilterOptions{Types: []model.EventType{model.EventFood}}, []string{"e3_1", "a1"}},
		{"hide expired uses the festival clock", FilterOptions{HideExpired: true}, []string{"e1_2", "e2_1", "e3_1", "a1"}},
		{"combined", FilterOptions{Day: day0, HideAllDay: true, HasLocation: true}, []string{"e1_1", "e2_1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, itemIDs(keep(items, tt.opts.Filter(fc))))
		})
	}
}

func TestFavoritesOnly(t *testing.T) {
	fav := artItem("a1", "Temple")
	fav.Metadata.IsFavorite = true
	assert.True(t, FavoritesOnly(fav))
	assert.False(t, FavoritesOnly(artItem("a2", "Bloom")))
}

func TestGroupSearch(t *testing.T) {
	fc := utcFestival(t)
	events := storagetest.Events()
	art := storagetest.Art()

	sections := GroupSearch(fc, []model.Object{art[0], events[0], model.Event{DataObject: model.DataObject{UID: "e9", Title: "Unscheduled"}}})

	require.Len(t, sections, 4)
	assert.Equal(t, "art", sections[0].Key)
	assert.Equal(t, []string{"e1_1"}, itemIDs(sections[1].Items))
	assert.Equal(t, "S 6AM", sections[1].Key)
	assert.Equal(t, "M 6AM", sections[2].Key)
	assert.Equal(t, "event", sections[3].Key, "unscheduled events are grouped by type")
	assert.Equal(t, []string{"e9"}, itemIDs(sections[3].Items))
	assert.Equal(t, "e1", sections[1].Items[0].Metadata.ObjectID)
}

func TestBuiltIn(t *testing.T) {
	defs := BuiltIn(utcFestival(t))
	var names []string
	for _, d := range defs {
		names = append(names, d.Name)
		assert.NotNil(t, d.Group, d.Name)
		assert.NotNil(t, d.Less, d.Name)
	}
	assert.Equal(t, []string{ViewArt, ViewCamps, ViewEvents, ViewFavorites}, names)

	for _, d := range FilteredBuiltIn(utcFestival(t)) {
		assert.Equal(t, ViewEvents, d.Parent, d.Name)
		assert.NotNil(t, d.Filter, d.Name)
	}
}
