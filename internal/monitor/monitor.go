package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/iBurnApp/iBurn-iOS/internal/importer"
	"github.com/iBurnApp/iBurn-iOS/internal/influx"
	"github.com/iBurnApp/iBurn-iOS/internal/logging"
	"github.com/iBurnApp/iBurn-iOS/internal/model"
	"github.com/iBurnApp/iBurn-iOS/internal/storage"
)

const DefaultInterval = time.Minute

// CountSource reports row counts. Every storage backend satisfies it.
type CountSource interface {
	Counts(ctx context.Context) (storage.Counts, error)
}

// QueueSource reports pending notifications per topic.
type QueueSource interface {
	QueueLengths() map[string]int
}

// WorkerStats is implemented by worker.Manager.
type WorkerStats interface {
	GetLastDBWriteDuration() time.Duration
	PendingBreadcrumbs() int
	DataChanges() map[model.DataType]time.Time
}

// ImportStats is implemented by importer.Importer.
type ImportStats interface {
	LastReport() importer.Report
}

// PointWriter receives the collected points. *influx.Manager satisfies it.
type PointWriter interface {
	WritePoint(ctx context.Context, bucket string, point *influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Counts     CountSource
	Queues     QueueSource
	Worker     WorkerStats
	Importer   ImportStats
	Influx     PointWriter
	LogManager *logging.SlogManager
	Year       int
	StatusPath string
	Interval   time.Duration
}

// Status is one snapshot of application health.
type Status struct {
	Time                time.Time            `json:"time"`
	Counts              storage.Counts       `json:"counts"`
	QueueLengths        map[string]int       `json:"queueLengths"`
	PendingBreadcrumbs  int                  `json:"pendingBreadcrumbs"`
	LastWriteDurationMs float64              `json:"lastWriteDurationMs"`
	LastImport          string               `json:"lastImport,omitempty"`
	LastImportMs        float64              `json:"lastImportMs"`
	ImportDurationsMs   map[string]float64   `json:"importDurationsMs,omitempty"`
	DataChanged         map[string]time.Time `json:"dataChanged,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus collects the current status.
func (s *Service) GetProgramStatus(ctx context.Context) (Status, error) {
	st := Status{Time: time.Now(), QueueLengths: map[string]int{}}

	if s.deps.Counts != nil {
		counts, err := s.deps.Counts.Counts(ctx)
		if err != nil {
			return st, fmt.Errorf("failed to count rows: %w", err)
		}
		st.Counts = counts
	}
	if s.deps.Queues != nil {
		st.QueueLengths = s.deps.Queues.QueueLengths()
	}
	if s.deps.Worker != nil {
		st.PendingBreadcrumbs = s.deps.Worker.PendingBreadcrumbs()
		st.LastWriteDurationMs = ms(s.deps.Worker.GetLastDBWriteDuration())
		if changes := s.deps.Worker.DataChanges(); len(changes) > 0 {
			st.DataChanged = make(map[string]time.Time, len(changes))
			for dt, t := range changes {
				st.DataChanged[string(dt)] = t
			}
		}
	}
	if s.deps.Importer != nil {
		report := s.deps.Importer.LastReport()
		if !report.Started.IsZero() {
			st.LastImport = report.Result.String()
			st.LastImportMs = ms(report.Duration)
			st.ImportDurationsMs = map[string]float64{}
			for _, tr := range report.Types {
				st.ImportDurationsMs[string(tr.DataType)] = ms(tr.Duration)
			}
		}
	}
	return st, nil
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Points converts a status into influx points.
func (s *Service) Points(st Status) map[string][]*influxdb2_write.Point {
	tags := map[string]string{}
	if s.deps.Year != 0 {
		tags["year"] = strconv.Itoa(s.deps.Year)
	}

	counts := influx.NewPoint("counts", tags, map[string]any{
		"art":         st.Counts.Art,
		"camps":       st.Counts.Camps,
		"events":      st.Counts.Events,
		"occurrences": st.Counts.Occurrences,
		"map_points":  st.Counts.MapPoints,
		"favorites":   st.Counts.Favorites,
		"breadcrumbs": st.Counts.Breadcrumbs,
	}, st.Time)

	queueFields := map[string]any{"pending_breadcrumbs": int64(st.PendingBreadcrumbs)}
	for topic, n := range st.QueueLengths {
		queueFields["queue_"+topic] = int64(n)
	}
	perf := []*influxdb2_write.Point{
		influx.NewPoint("queues", tags, queueFields, st.Time),
		influx.NewPoint("writes", tags, map[string]any{"last_write_ms": st.LastWriteDurationMs}, st.Time),
	}
	if st.LastImport != "" {
		fields := map[string]any{"total_ms": st.LastImportMs}
		for dt, d := range st.ImportDurationsMs {
			fields[dt+"_ms"] = d
		}
		importTags := map[string]string{"result": st.LastImport}
		for k, v := range tags {
			importTags[k] = v
		}
		perf = append(perf, influx.NewPoint("import", importTags, fields, st.Time))
	}

	return map[string][]*influxdb2_write.Point{
		influx.BucketDataStats:      {counts},
		influx.BucketAppPerformance: perf,
	}
}

// Collect takes one status snapshot, writes the status file and sends points.
func (s *Service) Collect(ctx context.Context) (Status, error) {
	st, err := s.GetProgramStatus(ctx)
	if err != nil {
		return st, err
	}

	if s.deps.StatusPath != "" {
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return st, err
		}
		if err := os.WriteFile(s.deps.StatusPath, append(data, '\n'), 0644); err != nil {
			return st, fmt.Errorf("failed to write status file: %w", err)
		}
	}

	if s.deps.Influx != nil {
		for bucket, points := range s.Points(st) {
			for _, p := range points {
				if err := s.deps.Influx.WritePoint(ctx, bucket, p); err != nil {
					return st, err
				}
			}
		}
	}
	return st, nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(done)
		}()

		logger := s.deps.LogManager.Component("monitor")
		logger.Debug("Starting status monitor goroutine", "function", "monitor.Start")

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), s.deps.Interval)
				st, err := s.Collect(ctx)
				cancel()
				if err != nil {
					logger.Error("Error collecting status", "error", err)
					continue
				}
				logger.Debug("Status collected", "art", st.Counts.Art, "camps", st.Counts.Camps, "events", st.Counts.Events, "favorites", st.Counts.Favorites)
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	s.isRunning = false
	done := s.done
	s.mu.Unlock()
	<-done
}
