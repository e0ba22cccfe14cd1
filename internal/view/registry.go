package view

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/iBurnApp/iBurn-iOS/internal/dispatcher"
	"github.com/iBurnApp/iBurn-iOS/internal/logging"
	"github.com/iBurnApp/iBurn-iOS/internal/model"
	"github.com/iBurnApp/iBurn-iOS/internal/playadb"
)

const refreshQueueSize = 64

// Loader reads the collections views are built from. *playadb.DB satisfies it.
type Loader interface {
	Art(ctx context.Context) ([]model.Art, error)
	Camps(ctx context.Context) ([]model.Camp, error)
	Events(ctx context.Context) ([]model.Event, error)
	MetadataByType(ctx context.Context, t model.ObjectType) (map[string]model.ObjectMetadata, error)
}

// Dependencies holds all dependencies for the registry
type Dependencies struct {
	Loader     Loader
	Dispatcher *dispatcher.Dispatcher
	LogManager *logging.SlogManager
	Clock      func() time.Time
}

// Registry owns the registered views and keeps them current.
type Registry struct {
	loader Loader
	hub    *dispatcher.Dispatcher
	log    *logging.SlogManager
	clock  func() time.Time

	refreshMu sync.Mutex // serializes refreshes

	mu    sync.RWMutex
	views map[string]*View
	names []string
	items map[Source][]Item
	subs  []*dispatcher.Subscription
}

// NewRegistry creates an empty registry. With a dispatcher, views refresh
// on data and metadata notifications.
func NewRegistry(deps Dependencies) (*Registry, error) {
	if deps.Loader == nil {
		return nil, errors.New("view: loader is required")
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	r := &Registry{
		loader: deps.Loader,
		hub:    deps.Dispatcher,
		log:    deps.LogManager,
		clock:  deps.Clock,
		views:  map[string]*View{},
		items:  map[Source][]Item{},
	}
	if r.hub != nil {
		r.attach()
	}
	return r, nil
}

func (r *Registry) attach() {
	for _, dt := range []model.DataType{model.DataArt, model.DataCamps, model.DataEvents} {
		// data notifications are never dropped
		r.subs = append(r.subs, r.hub.Subscribe(dispatcher.DataTopic(string(dt)), r.onNotification, dispatcher.Buffered(refreshQueueSize), dispatcher.Blocking()))
	}
	r.subs = append(r.subs, r.hub.Subscribe(dispatcher.TopicMetadata, r.onNotification, dispatcher.Buffered(refreshQueueSize)))
}

// Close unsubscribes from notifications.
func (r *Registry) Close() {
	for _, s := range r.subs {
		s.Unsubscribe()
	}
	r.subs = nil
}

func (r *Registry) onNotification(e dispatcher.Event) error {
	var t model.ObjectType
	switch p := e.Payload.(type) {
	case playadb.MetadataChange:
		t = p.ObjectType
	case model.DataType:
		t = p.ObjectType()
	default:
		t = model.DataType(strings.TrimPrefix(e.Topic, "data.")).ObjectType()
	}

	ctx := context.Background()
	for _, src := range sourcesFor(t) {
		if !r.hasSource(src) {
			continue
		}
		if _, err := r.Refresh(ctx, src); err != nil {
			return err
		}
	}
	return nil
}

// sourcesFor lists the sources that show objects of a type. An unknown type
// refreshes everything.
func sourcesFor(t model.ObjectType) []Source {
	switch t {
	case model.TypeArt:
		return []Source{SourceArt, SourceFavorites}
	case model.TypeCamp:
		return []Source{SourceCamps, SourceFavorites}
	case model.TypeEvent:
		return []Source{SourceEvents, SourceFavorites}
	default:
		return Sources
	}
}

func (r *Registry) hasSource(src Source) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.views {
		if v.def.Source == src {
			return true
		}
	}
	return false
}

// Register adds a view. It is populated from the last loaded items of its
// source, or on the next refresh.
func (r *Registry) Register(def Definition) (*View, error) {
	if def.Name == "" {
		return nil, errors.New("view: name is required")
	}
	if def.Group == nil || def.Less == nil {
		return nil, fmt.Errorf("view %s: group and sort functions are required", def.Name)
	}
	if !validSource(def.Source) {
		return nil, fmt.Errorf("view %s: unknown source %q", def.Name, def.Source)
	}
	return r.add(newView(def))
}

// Filtered is a view derived from a registered parent whose extra filter can
// be swapped at runtime.
type Filtered struct {
	*View
	parent string
	reg    *Registry
}

// Parent returns the name of the view this one filters.
func (f *Filtered) Parent() string { return f.parent }

// SetFilter replaces the filter and returns the resulting change set.
func (f *Filtered) SetFilter(filter Filter) (ChangeSet, error) {
	return f.reg.SetFilter(f.Name(), filter)
}

// RegisterFiltered derives a view from parent that also applies filter.
func (r *Registry) RegisterFiltered(name, parent string, filter Filter) (*Filtered, error) {
	p, ok := r.View(parent)
	if !ok {
		return nil, fmt.Errorf("view %s: unknown parent %q", name, parent)
	}
	def := p.def
	def.Name = name
	v := newView(def)
	v.filter = filter
	if _, err := r.add(v); err != nil {
		return nil, err
	}
	return &Filtered{View: v, parent: parent, reg: r}, nil
}

// RegisterAllFiltered registers every definition, in order.
func (r *Registry) RegisterAllFiltered(defs []FilteredDefinition) error {
	for _, d := range defs {
		if _, err := r.RegisterFiltered(d.Name, d.Parent, d.Filter); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) add(v *View) (*View, error) {
	r.mu.Lock()
	if _, exists := r.views[v.Name()]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("view %s: already registered", v.Name())
	}
	r.views[v.Name()] = v
	r.names = append(r.names, v.Name())
	items, loaded := r.items[v.Source()]
	r.mu.Unlock()

	if loaded {
		v.apply(v.build(items), r.clock())
	}
	return v, nil
}

// SetFilter swaps the extra filter of a view, recomputes it from the last
// loaded items and publishes the change set.
func (r *Registry) SetFilter(name string, filter Filter) (ChangeSet, error) {
	v, ok := r.View(name)
	if !ok {
		return ChangeSet{}, fmt.Errorf("unknown view %q", name)
	}

	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	v.setFilter(filter)
	r.mu.RLock()
	items := r.items[v.Source()]
	r.mu.RUnlock()

	cs := v.apply(v.build(items), r.clock())
	r.publish(cs)
	return cs, nil
}

// Reapply rebuilds every view from the last loaded items without reading
// storage, so filters that depend on the clock catch up. Non-empty change
// sets are published and returned.
func (r *Registry) Reapply() []ChangeSet {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	type pending struct {
		v     *View
		items []Item
	}
	r.mu.RLock()
	var todo []pending
	for _, name := range r.names {
		v := r.views[name]
		if items, ok := r.items[v.Source()]; ok {
			todo = append(todo, pending{v, items})
		}
	}
	r.mu.RUnlock()

	now := r.clock()
	var changes []ChangeSet
	for _, p := range todo {
		cs := p.v.apply(p.v.build(p.items), now)
		if cs.Empty() {
			continue
		}
		changes = append(changes, cs)
		r.publish(cs)
	}
	return changes
}

// View returns a registered view.
func (r *Registry) View(name string) (*View, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.views[name]
	return v, ok
}

// Names lists registered views in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// Refresh reloads a source and recomputes every view built on it. Non-empty
// change sets are published on the view's topic and returned.
func (r *Registry) Refresh(ctx context.Context, src Source) ([]ChangeSet, error) {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	start := time.Now()
	items, err := r.load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("refresh %s: %w", src, err)
	}

	r.mu.Lock()
	r.items[src] = items
	var views []*View
	for _, name := range r.names {
		if v := r.views[name]; v.Source() == src {
			views = append(views, v)
		}
	}
	r.mu.Unlock()

	now := r.clock()
	var changes []ChangeSet
	for _, v := range views {
		cs := v.apply(v.build(items), now)
		if cs.Empty() {
			continue
		}
		changes = append(changes, cs)
		r.publish(cs)
	}
	r.log.WriteLog("view:Refresh", fmt.Sprintf("Refreshed %s: %d items, %d views changed in %s", src, len(items), len(changes), time.Since(start)), "DEBUG")
	return changes, nil
}

// RefreshAll refreshes every source.
func (r *Registry) RefreshAll(ctx context.Context) ([]ChangeSet, error) {
	var all []ChangeSet
	var errs []error
	for _, src := range Sources {
		cs, err := r.Refresh(ctx, src)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		all = append(all, cs...)
	}
	return all, errors.Join(errs...)
}

func (r *Registry) publish(cs ChangeSet) {
	if r.hub == nil || cs.Empty() {
		return
	}
	if err := r.hub.Publish(dispatcher.Event{Topic: dispatcher.ViewTopic(cs.View), Payload: cs}); err != nil {
		r.log.WriteLog("view:publish", fmt.Sprintf("Publish %s: %v", cs.View, err), "WARN")
	}
}

func (r *Registry) load(ctx context.Context, src Source) ([]Item, error) {
	switch src {
	case SourceArt:
		return r.loadArt(ctx, false)
	case SourceCamps:
		return r.loadCamps(ctx, false)
	case SourceEvents:
		return r.loadEvents(ctx, false)
	case SourceFavorites:
		var out []Item
		for _, load := range []func(context.Context, bool) ([]Item, error){r.loadArt, r.loadCamps, r.loadEvents} {
			items, err := load(ctx, true)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown source %q", src)
	}
}

func (r *Registry) metadata(ctx context.Context, t model.ObjectType) (func(uid string) model.ObjectMetadata, error) {
	mds, err := r.loader.MetadataByType(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("load %s metadata: %w", t, err)
	}
	return func(uid string) model.ObjectMetadata {
		if md, ok := mds[uid]; ok {
			return md
		}
		return model.NewMetadata(t, uid)
	}, nil
}

func (r *Registry) loadArt(ctx context.Context, favoritesOnly bool) ([]Item, error) {
	art, err := r.loader.Art(ctx)
	if err != nil {
		return nil, err
	}
	md, err := r.metadata(ctx, model.TypeArt)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(art))
	for _, a := range art {
		it := Item{Object: a, Metadata: md(a.UID)}
		if !favoritesOnly || it.Metadata.IsFavorite {
			items = append(items, it)
		}
	}
	return items, nil
}

func (r *Registry) loadCamps(ctx context.Context, favoritesOnly bool) ([]Item, error) {
	camps, err := r.loader.Camps(ctx)
	if err != nil {
		return nil, err
	}
	md, err := r.metadata(ctx, model.TypeCamp)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(camps))
	for _, c := range camps {
		it := Item{Object: c, Metadata: md(c.UID)}
		if !favoritesOnly || it.Metadata.IsFavorite {
			items = append(items, it)
		}
	}
	return items, nil
}

// loadEvents expands events into occurrences. Every occurrence carries the
// metadata of its event.
func (r *Registry) loadEvents(ctx context.Context, favoritesOnly bool) ([]Item, error) {
	events, err := r.loader.Events(ctx)
	if err != nil {
		return nil, err
	}
	md, err := r.metadata(ctx, model.TypeEvent)
	if err != nil {
		return nil, err
	}
	var items []Item
	for _, e := range events {
		m := md(e.UID)
		if favoritesOnly && !m.IsFavorite {
			continue
		}
		for _, o := range e.ExpandOccurrences() {
			items = append(items, Item{Object: o, Metadata: m})
		}
	}
	return items, nil
}

func validSource(src Source) bool {
	for _, s := range Sources {
		if s == src {
			return true
		}
	}
	return false
}
