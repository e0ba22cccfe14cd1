// Package importer keeps the stored data set in step with the yearly feed.
package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zeebo/xxh3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/iBurnApp/iBurn-iOS/internal/api"
	"github.com/iBurnApp/iBurn-iOS/internal/dispatcher"
	"github.com/iBurnApp/iBurn-iOS/internal/logging"
	"github.com/iBurnApp/iBurn-iOS/internal/model"
	"github.com/iBurnApp/iBurn-iOS/internal/parser"
	"github.com/iBurnApp/iBurn-iOS/internal/storage"
)

// ErrNoManifest is returned when update.json cannot be loaded.
var ErrNoManifest = errors.New("no update manifest")

var tracer = otel.Tracer("importer")

// maxConcurrentFetches bounds parallel downloads.
const maxConcurrentFetches = 4

// Source provides the manifest and the files it names.
type Source interface {
	Manifest(ctx context.Context) (api.Manifest, error)
	Fetch(ctx context.Context, file string) ([]byte, error)
}

// Publisher receives data-changed notifications.
type Publisher interface {
	Publish(e dispatcher.Event) error
}

// Result summarizes one update run.
type Result int

const (
	NoData Result = iota
	NewData
	Failed
)

func (r Result) String() string {
	switch r {
	case NewData:
		return "newData"
	case Failed:
		return "failed"
	default:
		return "noData"
	}
}

// TypeReport describes what happened to one data type.
type TypeReport struct {
	DataType model.DataType `json:"dataType"`
	Changed  bool           `json:"changed"`
	Count    int            `json:"count"`
	Skipped  int            `json:"skipped"`
	Duration time.Duration  `json:"duration"`
	Err      error          `json:"-"`
}

// Report is the outcome of the last run.
type Report struct {
	Result   Result        `json:"result"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Types    []TypeReport  `json:"types"`
}

// Dependencies holds all dependencies for the importer
type Dependencies struct {
	Storage    storage.Backend
	Parser     *parser.Parser
	Source     Source
	Publisher  Publisher
	LogManager *logging.SlogManager
	Clock      func() time.Time
}

// Importer applies feed updates to storage.
type Importer struct {
	deps Dependencies

	// runMu serializes runs; a second caller waits for the first.
	runMu sync.Mutex

	mu   sync.RWMutex
	last Report
}

// New creates an importer.
func New(deps Dependencies) *Importer {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.Parser == nil {
		deps.Parser = parser.NewParser(deps.LogManager.Logger(), 0, nil)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Importer{deps: deps}
}

// LoadUpdates checks the configured source and imports whatever changed.
func (im *Importer) LoadUpdates(ctx context.Context) (Result, error) {
	if im.deps.Source == nil {
		return Failed, fmt.Errorf("%w: no source configured", ErrNoManifest)
	}
	return im.Run(ctx, im.deps.Source)
}

// ImportBundled imports the data set shipped in dir.
func (im *Importer) ImportBundled(ctx context.Context, dir string) (Result, error) {
	return im.Run(ctx, api.NewDirSource(dir))
}

// LastReport returns the outcome of the most recent run.
func (im *Importer) LastReport() Report {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return im.last
}

// pending is a data type selected for import.
type pending struct {
	dataType model.DataType
	entry    api.FileInfo
	previous model.UpdateInfo
	data     []byte
	fetchErr error
}

// Run imports from src. Types are fetched concurrently and applied in
// model.DataTypes order.
func (im *Importer) Run(ctx context.Context, src Source) (Result, error) {
	im.runMu.Lock()
	defer im.runMu.Unlock()

	ctx, span := tracer.Start(ctx, "Importer.Run")
	defer span.End()

	begin := time.Now()
	report := Report{Started: im.deps.Clock()}
	defer func() {
		report.Duration = time.Since(begin)
		im.mu.Lock()
		im.last = report
		im.mu.Unlock()
	}()

	manifest, err := src.Manifest(ctx)
	if err != nil {
		report.Result = Failed
		span.SetStatus(codes.Error, err.Error())
		im.deps.LogManager.WriteLog("importer:Run", fmt.Sprintf("Manifest unavailable: %v", err), "ERROR")
		return Failed, fmt.Errorf("%w: %w", ErrNoManifest, err)
	}

	todo, err := im.selectTypes(ctx, manifest)
	if err != nil {
		report.Result = Failed
		return Failed, err
	}
	span.SetAttributes(attribute.Int("types", len(todo)))
	if len(todo) == 0 {
		report.Result = NoData
		im.deps.LogManager.WriteLog("importer:Run", "Data set is up to date", "DEBUG")
		return NoData, nil
	}

	im.fetchAll(ctx, src, todo)

	var errs []error
	changed, hostsMoved, eventsDone := false, false, false
	for _, p := range todo {
		tr := im.apply(ctx, p)
		report.Types = append(report.Types, tr)
		if tr.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.dataType, tr.Err))
			continue
		}
		if tr.Changed {
			changed = true
			im.publish(p.dataType)
			switch p.dataType {
			case model.DataArt, model.DataCamps:
				hostsMoved = true
			case model.DataEvents:
				eventsDone = true
			}
		}
	}

	// Stored events keep copies of host locations; refresh them when only
	// the hosts changed.
	if hostsMoved && !eventsDone {
		if err := im.relocateEvents(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", model.DataEvents, err))
		}
	}

	switch {
	case len(errs) > 0:
		report.Result = Failed
	case changed:
		report.Result = NewData
	default:
		report.Result = NoData
	}

	err = errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	im.deps.LogManager.WriteLog("importer:Run",
		fmt.Sprintf("Import finished: %s (%d types)", report.Result, len(todo)), "INFO")
	return report.Result, err
}

// selectTypes returns the data types whose manifest entry is newer than the
// stored update info, or whose last import did not complete.
func (im *Importer) selectTypes(ctx context.Context, manifest api.Manifest) ([]*pending, error) {
	var todo []*pending
	for _, dt := range model.DataTypes {
		entry, ok := manifest.Entry(dt)
		if !ok {
			continue
		}
		info, err := im.deps.Storage.UpdateInfo(ctx, dt)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			info = model.UpdateInfo{DataType: dt}
		case err != nil:
			return nil, fmt.Errorf("failed to read update info for %s: %w", dt, err)
		case info.FetchStatus == model.FetchComplete && !entry.Updated.After(info.LastUpdated):
			continue
		}
		todo = append(todo, &pending{dataType: dt, entry: entry, previous: info})
	}
	return todo, nil
}

// fetchAll downloads every pending file. A failed download is recorded on
// its entry and does not cancel the others.
func (im *Importer) fetchAll(ctx context.Context, src Source, todo []*pending) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for _, p := range todo {
		im.saveStatus(ctx, p, model.FetchFetching)
		g.Go(func() error {
			p.data, p.fetchErr = src.Fetch(gctx, p.entry.File)
			return nil
		})
	}
	_ = g.Wait()
}

func (im *Importer) apply(ctx context.Context, p *pending) TypeReport {
	start := time.Now()
	tr := TypeReport{DataType: p.dataType}

	fail := func(err error) TypeReport {
		tr.Err = err
		tr.Duration = time.Since(start)
		im.saveStatus(ctx, p, model.FetchFailed)
		im.deps.LogManager.WriteLog("importer:apply",
			fmt.Sprintf("Import of %s failed: %v", p.dataType, err), "ERROR")
		return tr
	}

	if p.fetchErr != nil {
		return fail(p.fetchErr)
	}

	hash := ContentHash(p.data)
	if hash == p.previous.ContentHash {
		tr.Count = p.previous.TotalCount
		info := p.previous
		info.LastUpdated = p.entry.Updated
		info.FetchStatus = model.FetchComplete
		info.FetchedAt = im.deps.Clock()
		if err := im.deps.Storage.SaveUpdateInfo(ctx, &info); err != nil {
			return fail(err)
		}
		tr.Duration = time.Since(start)
		return tr
	}

	count, skipped, err := im.replace(ctx, p.dataType, p.data)
	if err != nil {
		return fail(err)
	}
	tr.Count, tr.Skipped, tr.Changed = count, skipped, true

	info := model.UpdateInfo{
		DataType:    p.dataType,
		LastUpdated: p.entry.Updated,
		FetchStatus: model.FetchComplete,
		Version:     p.previous.Version + 1,
		TotalCount:  count,
		ContentHash: hash,
		FetchedAt:   im.deps.Clock(),
		CreatedAt:   p.previous.CreatedAt,
	}
	if err := im.deps.Storage.SaveUpdateInfo(ctx, &info); err != nil {
		return fail(err)
	}
	tr.Duration = time.Since(start)
	return tr
}

// replace parses data and swaps all rows of the type.
func (im *Importer) replace(ctx context.Context, dt model.DataType, data []byte) (count, skipped int, err error) {
	ctx, span := tracer.Start(ctx, "Importer.Replace")
	defer span.End()
	span.SetAttributes(attribute.String("dataType", string(dt)), attribute.Int("bytes", len(data)))

	p := im.deps.Parser
	switch dt {
	case model.DataArt:
		art, stats, err := p.ParseArt(data)
		if err != nil {
			return 0, 0, err
		}
		return len(art), stats.Skipped, im.deps.Storage.ReplaceArt(ctx, art)
	case model.DataCamps:
		camps, stats, err := p.ParseCamps(data)
		if err != nil {
			return 0, 0, err
		}
		return len(camps), stats.Skipped, im.deps.Storage.ReplaceCamps(ctx, camps)
	case model.DataEvents:
		events, stats, err := p.ParseEvents(data)
		if err != nil {
			return 0, 0, err
		}
		lookup, err := im.hostLookup(ctx)
		if err != nil {
			return 0, 0, err
		}
		resolved := parser.ApplyHostLocations(events, lookup)
		span.SetAttributes(attribute.Int("hostLocations", resolved))
		return len(events), stats.Skipped, im.deps.Storage.ReplaceEvents(ctx, events)
	case model.DataPoints:
		points, stats, err := p.ParsePoints(data)
		if err != nil {
			return 0, 0, err
		}
		return len(points), stats.Skipped, im.deps.Storage.ReplaceMapPoints(ctx, points)
	default:
		return 0, 0, fmt.Errorf("unknown data type %q", dt)
	}
}

// relocateEvents re-applies host locations to the stored events and saves
// them if any moved.
func (im *Importer) relocateEvents(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Importer.RelocateEvents")
	defer span.End()

	events, err := im.deps.Storage.Events(ctx)
	if err != nil {
		return fmt.Errorf("failed to load events for relocation: %w", err)
	}
	lookup, err := im.hostLookup(ctx)
	if err != nil {
		return err
	}
	moved := parser.ApplyHostLocations(events, lookup)
	span.SetAttributes(attribute.Int("hostLocations", moved))
	if moved == 0 {
		return nil
	}
	if err := im.deps.Storage.ReplaceEvents(ctx, events); err != nil {
		return fmt.Errorf("failed to save relocated events: %w", err)
	}
	im.deps.LogManager.WriteLog("importer:relocateEvents",
		fmt.Sprintf("Updated host locations of %d events", moved), "INFO")
	im.publish(model.DataEvents)
	return nil
}

type hostInfo struct {
	lat, lon float64
	address  string
}

// hostLookup snapshots art and camp locations for event resolution.
func (im *Importer) hostLookup(ctx context.Context) (parser.HostLookup, error) {
	art, err := im.deps.Storage.Art(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load art for event locations: %w", err)
	}
	camps, err := im.deps.Storage.Camps(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load camps for event locations: %w", err)
	}

	hosts := map[model.ObjectType]map[string]hostInfo{
		model.TypeArt:  make(map[string]hostInfo, len(art)),
		model.TypeCamp: make(map[string]hostInfo, len(camps)),
	}
	for _, a := range art {
		hosts[model.TypeArt][a.UID] = hostInfo{a.Latitude, a.Longitude, a.LocationString}
	}
	for _, c := range camps {
		hosts[model.TypeCamp][c.UID] = hostInfo{c.Latitude, c.Longitude, c.LocationString}
	}

	return func(t model.ObjectType, uid string) (float64, float64, string, bool) {
		h, ok := hosts[t][uid]
		return h.lat, h.lon, h.address, ok
	}, nil
}

// saveStatus records a status while keeping the last good hash and count.
func (im *Importer) saveStatus(ctx context.Context, p *pending, status model.FetchStatus) {
	info := p.previous
	info.DataType = p.dataType
	info.FetchStatus = status
	if err := im.deps.Storage.SaveUpdateInfo(ctx, &info); err != nil {
		im.deps.LogManager.WriteLog("importer:saveStatus",
			fmt.Sprintf("Failed to save %s status for %s: %v", status, p.dataType, err), "WARN")
	}
}

func (im *Importer) publish(dt model.DataType) {
	if im.deps.Publisher == nil {
		return
	}
	err := im.deps.Publisher.Publish(dispatcher.Event{
		Topic:     dispatcher.DataTopic(string(dt)),
		Payload:   dt,
		Timestamp: im.deps.Clock(),
	})
	if err != nil {
		im.deps.LogManager.WriteLog("importer:publish", fmt.Sprintf("Publish %s: %v", dt, err), "WARN")
	}
}

// ContentHash is the hex xxh3 digest stored in UpdateInfo.
func ContentHash(data []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}
