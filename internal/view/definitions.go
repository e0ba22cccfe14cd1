package view

import (
	"time"

	"github.com/iBurnApp/iBurn-iOS/internal/festival"
	"github.com/iBurnApp/iBurn-iOS/internal/model"
	"github.com/iBurnApp/iBurn-iOS/internal/util"
)

// Names of the built-in views.
const (
	ViewArt       = "art"
	ViewCamps     = "camps"
	ViewEvents    = "events"
	ViewFavorites = "favorites"
)

// Names of the built-in filtered views.
const (
	ViewEventsToday    = "events.today"
	ViewEventsUpcoming = "events.upcoming"
)

const dayKeyLayout = "2006-01-02"

// BuiltIn returns the default view definitions.
func BuiltIn(fc *festival.Context) []Definition {
	return []Definition{
		{Name: ViewArt, Source: SourceArt, Group: TitleLetter, Less: ByTitle, SectionLess: LetterSections},
		{Name: ViewCamps, Source: SourceCamps, Group: TitleLetter, Less: ByTitle, SectionLess: LetterSections},
		{Name: ViewEvents, Source: SourceEvents, Group: ByDay(fc), Less: ByStart, SectionLess: StringSections},
		{Name: ViewFavorites, Source: SourceFavorites, Filter: FavoritesOnly, Group: ByType, Less: FavoritesLess, SectionLess: TypeSections},
	}
}

// FilteredDefinition derives a view from a registered parent.
type FilteredDefinition struct {
	Name   string
	Parent string
	Filter Filter
}

// FilteredBuiltIn returns the default filtered views. Their filters read the
// festival clock; Registry.Reapply keeps them current.
func FilteredBuiltIn(fc *festival.Context) []FilteredDefinition {
	return []FilteredDefinition{
		{Name: ViewEventsToday, Parent: ViewEvents, Filter: Today(fc)},
		{Name: ViewEventsUpcoming, Parent: ViewEvents, Filter: HideExpired(fc.Now)},
	}
}

// Groupers

// TitleLetter groups by the first letter of the title.
func TitleLetter(it Item) string {
	return util.SectionLetter(it.Object.Name())
}

// ByDay groups occurrences by their start day in the festival time zone.
// Other objects land in a section named after their type.
func ByDay(fc *festival.Context) GroupFunc {
	return func(it Item) string {
		o, ok := it.Occurrence()
		if !ok {
			return string(it.Object.Type())
		}
		return fc.DayOf(o.StartTime).Format(dayKeyLayout)
	}
}

// ByType groups by object type.
func ByType(it Item) string {
	return string(it.Object.Type())
}

// SearchGroup groups occurrences by weekday initial and hour, e.g. "M 3PM".
func SearchGroup(fc *festival.Context) GroupFunc {
	return func(it Item) string {
		o, ok := it.Occurrence()
		if !ok {
			return string(it.Object.Type())
		}
		return searchKey(o.StartTime.In(fc.Location()))
	}
}

func searchKey(t time.Time) string {
	return t.Format("Mon")[:1] + " " + t.Format("3PM")
}

// Sorters

// ByTitle sorts by case-folded title, then uid.
func ByTitle(a, b Item) bool {
	ka, kb := util.SortKey(a.Object.Name()), util.SortKey(b.Object.Name())
	if ka != kb {
		return ka < kb
	}
	return a.Object.ID() < b.Object.ID()
}

// ByStart sorts occurrences by start, end, then title. Objects without a
// schedule fall back to ByTitle after every occurrence.
func ByStart(a, b Item) bool {
	oa, okA := a.Occurrence()
	ob, okB := b.Occurrence()
	switch {
	case okA && okB:
		if !oa.StartTime.Equal(ob.StartTime) {
			return oa.StartTime.Before(ob.StartTime)
		}
		if !oa.EndTime.Equal(ob.EndTime) {
			return oa.EndTime.Before(ob.EndTime)
		}
		return ByTitle(a, b)
	case okA != okB:
		return okA
	default:
		return ByTitle(a, b)
	}
}

// FavoritesLess orders events by start and everything else by title.
func FavoritesLess(a, b Item) bool {
	return ByStart(a, b)
}

// Section orders

// LetterSections sorts letter keys alphabetically with "#" last.
func LetterSections(a, b string) bool {
	if (a == "#") != (b == "#") {
		return b == "#"
	}
	return a < b
}

// StringSections sorts keys lexically. Day keys sort chronologically.
func StringSections(a, b string) bool {
	return a < b
}

// TypeSections sorts type keys in model.ObjectTypes order.
func TypeSections(a, b string) bool {
	return typeRank(a) < typeRank(b) || (typeRank(a) == typeRank(b) && a < b)
}

func typeRank(key string) int {
	for i, t := range model.ObjectTypes {
		if string(t) == key {
			return i
		}
	}
	return len(model.ObjectTypes)
}

// Filters. The event filters let non-event rows through, so they can be
// applied to mixed views like favorites.

// FavoritesOnly keeps favorites.
func FavoritesOnly(it Item) bool {
	return it.Metadata.IsFavorite
}

// OnDay keeps occurrences starting on the festival day containing day.
func OnDay(fc *festival.Context, day time.Time) Filter {
	want := fc.DayOf(day)
	return func(it Item) bool {
		o, ok := it.Occurrence()
		if !ok {
			return true
		}
		return fc.DayOf(o.StartTime).Equal(want)
	}
}

// Today keeps occurrences starting on the current festival day. The day is
// read from the clock on every call.
func Today(fc *festival.Context) Filter {
	return func(it Item) bool {
		o, ok := it.Occurrence()
		if !ok {
			return true
		}
		return fc.DayOf(o.StartTime).Equal(fc.DayOf(fc.Now()))
	}
}

// EventTypes keeps occurrences of the given types. No types keeps all.
func EventTypes(types ...model.EventType) Filter {
	set := make(map[model.EventType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return func(it Item) bool {
		o, ok := it.Occurrence()
		if !ok || len(set) == 0 {
			return true
		}
		return set[o.Event.EventType]
	}
}

// HideExpired drops occurrences that have ended.
func HideExpired(now func() time.Time) Filter {
	return func(it Item) bool {
		o, ok := it.Occurrence()
		return !ok || !o.HasEnded(now())
	}
}

// HideAllDay drops all-day events.
func HideAllDay(it Item) bool {
	o, ok := it.Occurrence()
	return !ok || !o.Event.AllDay
}

// HasLocation keeps rows with GPS.
func HasLocation(it Item) bool {
	_, _, ok := it.Object.Coordinates()
	return ok
}

// FilterOptions are the user-selectable event filters. The zero value keeps
// everything.
type FilterOptions struct {
	Day         time.Time
	Types       []model.EventType
	HideExpired bool
	HideAllDay  bool
	HasLocation bool
}

// Filter combines the selected options, or returns nil when none is set.
func (o FilterOptions) Filter(fc *festival.Context) Filter {
	var fs []Filter
	if !o.Day.IsZero() {
		fs = append(fs, OnDay(fc, o.Day))
	}
	if len(o.Types) > 0 {
		fs = append(fs, EventTypes(o.Types...))
	}
	if o.HideExpired {
		fs = append(fs, HideExpired(fc.Now))
	}
	if o.HideAllDay {
		fs = append(fs, HideAllDay)
	}
	if o.HasLocation {
		fs = append(fs, HasLocation)
	}
	if len(fs) == 0 {
		return nil
	}
	return All(fs...)
}

// All combines filters. Nil entries are ignored.
func All(filters ...Filter) Filter {
	return func(it Item) bool {
		for _, f := range filters {
			if f != nil && !f(it) {
				return false
			}
		}
		return true
	}
}

// GroupSearch groups search results into sections, keeping result order.
// Events expand into one row per occurrence.
func GroupSearch(fc *festival.Context, objs []model.Object) []Section {
	group := SearchGroup(fc)
	var sections []Section
	index := map[string]int{}
	add := func(obj model.Object) {
		it := Item{Object: obj, Metadata: model.NewMetadata(obj.Type(), metadataID(obj))}
		key := group(it)
		i, ok := index[key]
		if !ok {
			i = len(sections)
			index[key] = i
			sections = append(sections, Section{Key: key})
		}
		sections[i].Items = append(sections[i].Items, it)
	}
	for _, obj := range objs {
		if ev, ok := obj.(model.Event); ok && len(ev.Occurrences) > 0 {
			for _, o := range ev.ExpandOccurrences() {
				add(o)
			}
			continue
		}
		add(obj)
	}
	return sections
}

// metadataID is the uid user state is stored under. Occurrences share the
// metadata of their event.
func metadataID(obj model.Object) string {
	if o, ok := obj.(model.Occurrence); ok {
		return o.Event.UID
	}
	return obj.ID()
}
