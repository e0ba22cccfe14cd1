package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iBurnApp/iBurn-iOS/internal/importer"
	"github.com/iBurnApp/iBurn-iOS/internal/logging"
	"github.com/iBurnApp/iBurn-iOS/internal/model"
	"github.com/iBurnApp/iBurn-iOS/internal/queue"
	"github.com/iBurnApp/iBurn-iOS/internal/view"
)

const (
	DefaultRefreshInterval = time.Hour
	DefaultFlushInterval   = 30 * time.Second
	DefaultViewInterval    = time.Minute

	// flushBatch triggers an early flush from the location handler.
	flushBatch = 100
)

// Updater checks the remote feed for new data. *importer.Importer satisfies it.
type Updater interface {
	LoadUpdates(ctx context.Context) (importer.Result, error)
}

// ViewRefresher re-evaluates clock-based view filters. *view.Registry
// satisfies it.
type ViewRefresher interface {
	Reapply() []view.ChangeSet
}

// BreadcrumbStore persists location history.
type BreadcrumbStore interface {
	AddBreadcrumbs(ctx context.Context, crumbs []model.Breadcrumb) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Updater         Updater
	Store           BreadcrumbStore
	Views           ViewRefresher
	Breadcrumbs     *queue.Queue[model.Breadcrumb]
	LogManager      *logging.SlogManager
	RefreshInterval time.Duration
	FlushInterval   time.Duration
	ViewInterval    time.Duration
}

// Manager runs the periodic update check, the breadcrumb flush and the view
// filter refresh.
type Manager struct {
	deps Dependencies

	flushMu sync.Mutex

	mu                sync.RWMutex
	lastFlushDuration time.Duration
	lastFlushed       int
	lastResult        importer.Result
	lastCheck         time.Time
	dataChanged       map[model.DataType]time.Time
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	if deps.RefreshInterval <= 0 {
		deps.RefreshInterval = DefaultRefreshInterval
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	if deps.ViewInterval <= 0 {
		deps.ViewInterval = DefaultViewInterval
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.Breadcrumbs == nil {
		deps.Breadcrumbs = queue.New[model.Breadcrumb]()
	}
	return &Manager{deps: deps, dataChanged: map[model.DataType]time.Time{}}
}

// Run blocks until ctx is done. Pending breadcrumbs are flushed on the way out.
func (m *Manager) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if m.deps.Updater != nil {
		g.Go(func() error { return m.refreshLoop(ctx) })
	}
	if m.deps.Store != nil {
		g.Go(func() error { return m.flushLoop(ctx) })
	}
	if m.deps.Views != nil {
		g.Go(func() error { return m.viewLoop(ctx) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (m *Manager) refreshLoop(ctx context.Context) error {
	ticker := time.NewTicker(m.deps.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.CheckForUpdates(ctx)
		}
	}
}

// CheckForUpdates runs one update check and records the result.
func (m *Manager) CheckForUpdates(ctx context.Context) importer.Result {
	start := time.Now()
	result, err := m.deps.Updater.LoadUpdates(ctx)

	m.mu.Lock()
	m.lastResult = result
	m.lastCheck = start
	m.mu.Unlock()

	if err != nil {
		m.deps.LogManager.WriteLog("worker:CheckForUpdates", fmt.Sprintf("Update check %s: %v", result, err), "ERROR")
		return result
	}
	m.deps.LogManager.WriteLog("worker:CheckForUpdates", fmt.Sprintf("Update check %s in %s", result, time.Since(start)), "INFO")
	return result
}

func (m *Manager) viewLoop(ctx context.Context) error {
	ticker := time.NewTicker(m.deps.ViewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.RefreshViews()
		}
	}
}

// RefreshViews re-evaluates view filters against the current time and
// returns how many views changed.
func (m *Manager) RefreshViews() int {
	if m.deps.Views == nil {
		return 0
	}
	changes := m.deps.Views.Reapply()
	if len(changes) > 0 {
		m.deps.LogManager.WriteLog("worker:RefreshViews", fmt.Sprintf("%d views changed", len(changes)), "DEBUG")
	}
	return len(changes)
}

func (m *Manager) flushLoop(ctx context.Context) error {
	ticker := time.NewTicker(m.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// the run context is gone, finish with a fresh one
			if _, err := m.Flush(context.Background()); err != nil {
				m.deps.LogManager.WriteLog("worker:flushLoop", fmt.Sprintf("Final flush failed: %v", err), "ERROR")
			}
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.Flush(ctx); err != nil {
				m.deps.LogManager.WriteLog("worker:flushLoop", fmt.Sprintf("Error flushing breadcrumbs: %v", err), "ERROR")
			}
		}
	}
}

// Flush writes queued breadcrumbs to storage. On failure they are requeued.
func (m *Manager) Flush(ctx context.Context) (int, error) {
	if m.deps.Store == nil {
		return 0, errors.New("worker: no breadcrumb store")
	}
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	crumbs := m.deps.Breadcrumbs.GetAndEmpty()
	if len(crumbs) == 0 {
		return 0, nil
	}
	start := time.Now()
	if err := m.deps.Store.AddBreadcrumbs(ctx, crumbs); err != nil {
		m.deps.Breadcrumbs.Requeue(crumbs)
		return 0, fmt.Errorf("failed to write %d breadcrumbs: %w", len(crumbs), err)
	}

	m.mu.Lock()
	m.lastFlushDuration = time.Since(start)
	m.lastFlushed = len(crumbs)
	m.mu.Unlock()
	m.deps.LogManager.WriteLog("worker:Flush", fmt.Sprintf("Wrote %d breadcrumbs", len(crumbs)), "DEBUG")
	return len(crumbs), nil
}

// GetLastDBWriteDuration returns the duration of the last breadcrumb flush.
func (m *Manager) GetLastDBWriteDuration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastFlushDuration
}

// LastUpdateCheck returns the time and result of the last update check.
func (m *Manager) LastUpdateCheck() (time.Time, importer.Result) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastCheck, m.lastResult
}

// DataChanges returns when each data type was last re-imported.
func (m *Manager) DataChanges() map[model.DataType]time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[model.DataType]time.Time, len(m.dataChanged))
	for dt, t := range m.dataChanged {
		out[dt] = t
	}
	return out
}

// PendingBreadcrumbs returns the queue length.
func (m *Manager) PendingBreadcrumbs() int {
	return m.deps.Breadcrumbs.Len()
}
