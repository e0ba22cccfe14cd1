// Package location tracks the user's position, records breadcrumbs and
// answers distance queries against it.
package location

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iBurnApp/iBurn-iOS/internal/dispatcher"
	"github.com/iBurnApp/iBurn-iOS/internal/geo"
	"github.com/iBurnApp/iBurn-iOS/internal/logging"
	"github.com/iBurnApp/iBurn-iOS/internal/model"
	"github.com/iBurnApp/iBurn-iOS/internal/queue"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultMinDistance  = 10.0

	// maxPendingBreadcrumbs bounds the unflushed history.
	maxPendingBreadcrumbs = 10000
)

// ErrNoFix is returned by providers that have no position yet.
var ErrNoFix = errors.New("no location fix")

// Fix is one position report.
type Fix struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Provider reports the current position.
type Provider interface {
	CurrentLocation(ctx context.Context) (Fix, error)
}

// FuncProvider adapts a function to Provider.
type FuncProvider func(ctx context.Context) (Fix, error)

func (f FuncProvider) CurrentLocation(ctx context.Context) (Fix, error) {
	return f(ctx)
}

// StaticProvider always reports the same point.
type StaticProvider struct {
	fix Fix
}

// NewStaticProvider validates the coordinate.
func NewStaticProvider(lat, lon float64) (*StaticProvider, error) {
	if !geo.Valid(lat, lon) {
		return nil, geo.ErrInvalidCoordinates
	}
	return &StaticProvider{fix: Fix{Latitude: lat, Longitude: lon}}, nil
}

// ParseStatic builds a StaticProvider from "lat,lon".
func ParseStatic(coords string) (*StaticProvider, error) {
	lat, lon, err := geo.LatLonFromString(coords)
	if err != nil {
		return nil, fmt.Errorf("static location %q: %w", coords, err)
	}
	return NewStaticProvider(lat, lon)
}

func (p *StaticProvider) CurrentLocation(ctx context.Context) (Fix, error) {
	if err := ctx.Err(); err != nil {
		return Fix{}, err
	}
	fix := p.fix
	fix.Timestamp = time.Now()
	return fix, nil
}

// RegionSource finds objects inside a bounding box. *playadb.DB satisfies it.
type RegionSource interface {
	ObjectsInRegion(ctx context.Context, region geo.Region) ([]model.Object, error)
}

// Dependencies holds all dependencies for the location manager
type Dependencies struct {
	Provider     Provider
	Objects      RegionSource
	Dispatcher   *dispatcher.Dispatcher
	LogManager   *logging.SlogManager
	PollInterval time.Duration
	MinDistance  float64
	Breadcrumbs  bool
}

// Manager polls the provider and keeps the last significant fix.
type Manager struct {
	provider    Provider
	objects     RegionSource
	hub         *dispatcher.Dispatcher
	log         *logging.SlogManager
	interval    time.Duration
	minDistance float64
	record      bool

	mu     sync.RWMutex
	last   Fix
	hasFix bool

	crumbs *queue.Queue[model.Breadcrumb]
}

// New creates a manager. Without a provider only Update feeds it.
func New(deps Dependencies) *Manager {
	if deps.PollInterval <= 0 {
		deps.PollInterval = DefaultPollInterval
	}
	if deps.MinDistance <= 0 {
		deps.MinDistance = DefaultMinDistance
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Manager{
		provider:    deps.Provider,
		objects:     deps.Objects,
		hub:         deps.Dispatcher,
		log:         deps.LogManager,
		interval:    deps.PollInterval,
		minDistance: deps.MinDistance,
		record:      deps.Breadcrumbs,
		crumbs:      queue.NewBounded[model.Breadcrumb](maxPendingBreadcrumbs),
	}
}

// Run polls until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	if m.provider == nil {
		return errors.New("location: no provider")
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if _, err := m.Poll(ctx); err != nil && !errors.Is(err, ErrNoFix) && ctx.Err() == nil {
			m.log.WriteLog("location:Run", fmt.Sprintf("Error polling location: %v", err), "WARN")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll asks the provider once and applies the fix.
func (m *Manager) Poll(ctx context.Context) (bool, error) {
	if m.provider == nil {
		return false, errors.New("location: no provider")
	}
	fix, err := m.provider.CurrentLocation(ctx)
	if err != nil {
		return false, err
	}
	return m.Update(fix)
}

// Update applies a fix. It is kept only when it is the first one or lies
// more than the minimum distance from the previous fix; then a breadcrumb
// is queued and the location topic published.
func (m *Manager) Update(fix Fix) (bool, error) {
	if !geo.Valid(fix.Latitude, fix.Longitude) {
		return false, geo.ErrInvalidCoordinates
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = time.Now()
	}

	m.mu.Lock()
	if m.hasFix && geo.Distance(m.last.Latitude, m.last.Longitude, fix.Latitude, fix.Longitude) <= m.minDistance {
		m.mu.Unlock()
		return false, nil
	}
	m.last = fix
	m.hasFix = true
	m.mu.Unlock()

	if m.record {
		m.crumbs.Push(model.Breadcrumb{
			ID:        uuid.NewString(),
			Latitude:  fix.Latitude,
			Longitude: fix.Longitude,
			Timestamp: fix.Timestamp.UTC(),
		})
	}
	if m.hub != nil {
		if err := m.hub.Publish(dispatcher.Event{Topic: dispatcher.TopicLocation, Payload: fix}); err != nil {
			m.log.WriteLog("location:Update", fmt.Sprintf("Publish location: %v", err), "WARN")
		}
	}
	return true, nil
}

// Last returns the last kept fix.
func (m *Manager) Last() (Fix, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last, m.hasFix
}

// Breadcrumbs is the queue of points not yet written to storage.
func (m *Manager) Breadcrumbs() *queue.Queue[model.Breadcrumb] {
	return m.crumbs
}

// Distance returns meters from the last fix to the object. It is false
// without a fix or when the object has no GPS.
func (m *Manager) Distance(obj model.Object) (float64, bool) {
	fix, ok := m.Last()
	if !ok {
		return 0, false
	}
	lat, lon, ok := obj.Coordinates()
	if !ok {
		return 0, false
	}
	return geo.Distance(fix.Latitude, fix.Longitude, lat, lon), true
}

// Nearby is an object with its distance from the user.
type Nearby struct {
	Object   model.Object `json:"object"`
	Distance float64      `json:"distance"`
}

// SortByDistance orders objects nearest first. Objects without a distance
// keep their relative order at the end.
func (m *Manager) SortByDistance(objs []model.Object) []Nearby {
	out := make([]Nearby, 0, len(objs))
	var unknown []Nearby
	for _, o := range objs {
		d, ok := m.Distance(o)
		if !ok {
			unknown = append(unknown, Nearby{Object: o, Distance: -1})
			continue
		}
		out = append(out, Nearby{Object: o, Distance: d})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return append(out, unknown...)
}

// Nearby returns objects within radius meters of the last fix, nearest first.
func (m *Manager) Nearby(ctx context.Context, radius float64) ([]Nearby, error) {
	fix, ok := m.Last()
	if !ok {
		return nil, ErrNoFix
	}
	if m.objects == nil {
		return nil, errors.New("location: no object source")
	}
	if radius <= 0 {
		return []Nearby{}, nil
	}
	candidates, err := m.objects.ObjectsInRegion(ctx, geo.RegionAround(fix.Latitude, fix.Longitude, radius))
	if err != nil {
		return nil, err
	}
	out := []Nearby{}
	for _, n := range m.SortByDistance(candidates) {
		if n.Distance >= 0 && n.Distance <= radius {
			out = append(out, n)
		}
	}
	return out, nil
}
