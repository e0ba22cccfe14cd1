// Package view maintains sorted and grouped projections of the data set and
// reports how they change between refreshes.
package view

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/iBurnApp/iBurn-iOS/internal/model"
)

// Source is the collection a view is built from.
type Source string

const (
	SourceArt       Source = "art"
	SourceCamps     Source = "camps"
	SourceEvents    Source = "events"
	SourceFavorites Source = "favorites"
)

// Sources lists every source.
var Sources = []Source{SourceArt, SourceCamps, SourceEvents, SourceFavorites}

// Item is one row: an art piece, a camp or an event occurrence together with
// the user's metadata for it.
type Item struct {
	Object   model.Object         `json:"object"`
	Metadata model.ObjectMetadata `json:"metadata"`
}

// UID is the row identity, "<type>:<id>". Occurrence ids are "<eventuid>_<n>".
func (i Item) UID() string {
	return string(i.Object.Type()) + ":" + i.Object.ID()
}

// itemJSON is the wire form of Item. uid matches RowChange.UID so clients
// can apply change sets to a snapshot.
type itemJSON struct {
	UID      string               `json:"uid"`
	Type     model.ObjectType     `json:"type"`
	Object   model.Object         `json:"object"`
	Metadata model.ObjectMetadata `json:"metadata"`
}

// MarshalJSON implements json.Marshaler.
func (i Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(itemJSON{UID: i.UID(), Type: i.Object.Type(), Object: i.Object, Metadata: i.Metadata})
}

// Occurrence returns the event occurrence behind the item, if any.
func (i Item) Occurrence() (model.Occurrence, bool) {
	o, ok := i.Object.(model.Occurrence)
	return o, ok
}

func (i Item) hash() uint64 {
	data, err := json.Marshal(i)
	if err != nil {
		return 0
	}
	return xxh3.Hash(data)
}

type (
	// Filter keeps items that return true.
	Filter func(Item) bool
	// GroupFunc maps an item to its section key.
	GroupFunc func(Item) string
	// LessFunc orders items within a section.
	LessFunc func(a, b Item) bool
	// SectionLessFunc orders section keys.
	SectionLessFunc func(a, b string) bool
)

// Definition describes a registered view. When SectionLess is nil, sections
// are ordered by their first item.
type Definition struct {
	Name        string
	Source      Source
	Filter      Filter
	Group       GroupFunc
	Less        LessFunc
	SectionLess SectionLessFunc
}

// Section is a group of rows sharing a key.
type Section struct {
	Key   string `json:"key"`
	Items []Item `json:"items"`
}

// IndexPath addresses a row.
type IndexPath struct {
	Section int `json:"section"`
	Row     int `json:"row"`
}

// View is a maintained projection. Reads are safe during refreshes.
type View struct {
	def Definition

	mu       sync.RWMutex
	filter   Filter
	sections []Section
	hashes   map[string]uint64
	version  uint64
	updated  time.Time
}

func newView(def Definition) *View {
	return &View{def: def, hashes: map[string]uint64{}}
}

// Name returns the registered name.
func (v *View) Name() string { return v.def.Name }

// Source returns the collection the view reads.
func (v *View) Source() Source { return v.def.Source }

// Version increments on every refresh that changed the view.
func (v *View) Version() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

// Updated returns when the view last changed.
func (v *View) Updated() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.updated
}

// Sections returns the section keys in display order.
func (v *View) Sections() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	keys := make([]string, len(v.sections))
	for i, s := range v.sections {
		keys[i] = s.Key
	}
	return keys
}

// NumberOfSections returns the section count.
func (v *View) NumberOfSections() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.sections)
}

// NumberOfItems returns the row count of a section, 0 when out of range.
func (v *View) NumberOfItems(section int) int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if section < 0 || section >= len(v.sections) {
		return 0
	}
	return len(v.sections[section].Items)
}

// Item returns the row at an index path.
func (v *View) Item(section, row int) (Item, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if section < 0 || section >= len(v.sections) {
		return Item{}, false
	}
	items := v.sections[section].Items
	if row < 0 || row >= len(items) {
		return Item{}, false
	}
	return items[row], true
}

// Len returns the total row count.
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	n := 0
	for _, s := range v.sections {
		n += len(s.Items)
	}
	return n
}

// Snapshot returns a copy of the current sections.
func (v *View) Snapshot() []Section {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Section, len(v.sections))
	for i, s := range v.sections {
		out[i] = Section{Key: s.Key, Items: append([]Item(nil), s.Items...)}
	}
	return out
}

// IndexPathOf finds a row by item uid.
func (v *View) IndexPathOf(uid string) (IndexPath, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for si, s := range v.sections {
		for ri, it := range s.Items {
			if it.UID() == uid {
				return IndexPath{si, ri}, true
			}
		}
	}
	return IndexPath{}, false
}

func (v *View) setFilter(f Filter) {
	v.mu.Lock()
	v.filter = f
	v.mu.Unlock()
}

// build projects items into sorted sections without touching the view.
func (v *View) build(items []Item) []Section {
	v.mu.RLock()
	extra := v.filter
	v.mu.RUnlock()

	groups := map[string][]Item{}
	for _, it := range items {
		if v.def.Filter != nil && !v.def.Filter(it) {
			continue
		}
		if extra != nil && !extra(it) {
			continue
		}
		key := v.def.Group(it)
		groups[key] = append(groups[key], it)
	}

	sections := make([]Section, 0, len(groups))
	for key, rows := range groups {
		sort.SliceStable(rows, func(i, j int) bool { return v.def.Less(rows[i], rows[j]) })
		sections = append(sections, Section{Key: key, Items: rows})
	}
	sort.Slice(sections, func(i, j int) bool {
		if v.def.SectionLess != nil {
			return v.def.SectionLess(sections[i].Key, sections[j].Key)
		}
		a, b := sections[i].Items[0], sections[j].Items[0]
		if v.def.Less(a, b) != v.def.Less(b, a) {
			return v.def.Less(a, b)
		}
		return sections[i].Key < sections[j].Key
	})
	return sections
}

// apply installs new sections and returns the change set against the old ones.
func (v *View) apply(sections []Section, now time.Time) ChangeSet {
	hashes := make(map[string]uint64)
	for _, s := range sections {
		for _, it := range s.Items {
			hashes[it.UID()] = it.hash()
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	cs := diff(v.def.Name, v.sections, v.hashes, sections, hashes)
	v.sections = sections
	v.hashes = hashes
	if !cs.Empty() {
		v.version++
		v.updated = now
	}
	cs.Version = v.version
	return cs
}
