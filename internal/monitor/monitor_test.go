package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iBurnApp/iBurn-iOS/internal/config"
	"github.com/iBurnApp/iBurn-iOS/internal/importer"
	"github.com/iBurnApp/iBurn-iOS/internal/influx"
	"github.com/iBurnApp/iBurn-iOS/internal/model"
	"github.com/iBurnApp/iBurn-iOS/internal/storage"
	"github.com/iBurnApp/iBurn-iOS/internal/storage/memory"
	"github.com/iBurnApp/iBurn-iOS/internal/storage/storagetest"
)

type fakeQueues map[string]int

func (q fakeQueues) QueueLengths() map[string]int { return q }

type fakeWorker struct{}

func (fakeWorker) GetLastDBWriteDuration() time.Duration { return 1500 * time.Microsecond }
func (fakeWorker) PendingBreadcrumbs() int               { return 7 }
func (fakeWorker) DataChanges() map[model.DataType]time.Time {
	return map[model.DataType]time.Time{model.DataCamps: time.Unix(100, 0).UTC()}
}

type fakeImporter struct{ report importer.Report }

func (f fakeImporter) LastReport() importer.Report { return f.report }

type recordingWriter struct {
	mu     sync.Mutex
	points map[string][]*influxdb2_write.Point
}

func (w *recordingWriter) WritePoint(_ context.Context, bucket string, p *influxdb2_write.Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.points == nil {
		w.points = map[string][]*influxdb2_write.Point{}
	}
	w.points[bucket] = append(w.points[bucket], p)
	return nil
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, ps := range w.points {
		n += len(ps)
	}
	return n
}

type failingCounts struct{}

func (failingCounts) Counts(context.Context) (storage.Counts, error) {
	return storage.Counts{}, errors.New("locked")
}

func seededBackend(t *testing.T) *memory.Backend {
	t.Helper()
	b := memory.New(config.MemoryConfig{})
	require.NoError(t, b.Init())
	storagetest.Seed(t, b)
	return b
}

func lastImport() importer.Report {
	return importer.Report{
		Result:   importer.NewData,
		Started:  time.Now(),
		Duration: 2 * time.Second,
		Types: []importer.TypeReport{
			{DataType: model.DataArt, Duration: 500 * time.Millisecond},
			{DataType: model.DataEvents, Duration: time.Second},
		},
	}
}

func TestGetProgramStatus(t *testing.T) {
	s := NewService(Dependencies{
		Counts:   seededBackend(t),
		Queues:   fakeQueues{"view.art": 2},
		Worker:   fakeWorker{},
		Importer: fakeImporter{lastImport()},
	})

	st, err := s.GetProgramStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.Counts.Art)
	assert.Equal(t, int64(2), st.Counts.Camps)
	assert.Equal(t, int64(3), st.Counts.Events)
	assert.Equal(t, map[string]int{"view.art": 2}, st.QueueLengths)
	assert.Equal(t, 7, st.PendingBreadcrumbs)
	assert.Equal(t, 1.5, st.LastWriteDurationMs)
	assert.Equal(t, "newData", st.LastImport)
	assert.Equal(t, 2000.0, st.LastImportMs)
	assert.Equal(t, map[string]float64{"art": 500, "events": 1000}, st.ImportDurationsMs)
	assert.Equal(t, map[string]time.Time{"camps": time.Unix(100, 0).UTC()}, st.DataChanged)
}

func TestGetProgramStatus_NoImportYet(t *testing.T) {
	s := NewService(Dependencies{Importer: fakeImporter{}})
	st, err := s.GetProgramStatus(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st.LastImport)
	assert.Nil(t, st.ImportDurationsMs)
}

func TestGetProgramStatus_CountError(t *testing.T) {
	s := NewService(Dependencies{Counts: failingCounts{}})
	_, err := s.GetProgramStatus(context.Background())
	assert.ErrorContains(t, err, "locked")
}

func TestPoints(t *testing.T) {
	s := NewService(Dependencies{Year: 2025})
	st := Status{
		Time:         time.Unix(100, 0),
		Counts:       storage.Counts{Art: 3},
		QueueLengths: map[string]int{"location": 1},
		LastImport:   "noData",
		LastImportMs: 12,
	}
	points := s.Points(st)

	require.Len(t, points[influx.BucketDataStats], 1)
	line := influxdb2_write.PointToLineProtocol(points[influx.BucketDataStats][0], time.Second)
	assert.Contains(t, line, "counts,year=2025 ")
	assert.Contains(t, line, "art=3i")

	perf := points[influx.BucketAppPerformance]
	require.Len(t, perf, 3)
	assert.Contains(t, influxdb2_write.PointToLineProtocol(perf[0], time.Second), "queue_location=1i")
	assert.Contains(t, influxdb2_write.PointToLineProtocol(perf[2], time.Second), "import,result=noData,year=2025 total_ms=12")
}

func TestCollect_WritesStatusFileAndPoints(t *testing.T) {
	w := &recordingWriter{}
	path := filepath.Join(t.TempDir(), "status.json")
	s := NewService(Dependencies{Counts: seededBackend(t), Influx: w, StatusPath: path})

	_, err := s.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, w.count())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var st Status
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, int64(2), st.Counts.Camps)
}

func TestStartStop(t *testing.T) {
	w := &recordingWriter{}
	s := NewService(Dependencies{Counts: seededBackend(t), Influx: w, Interval: 5 * time.Millisecond})

	require.NoError(t, s.Start())
	require.NoError(t, s.Start(), "second start is a no-op")
	assert.True(t, s.IsRunning())
	assert.Eventually(t, func() bool { return w.count() >= 3 }, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()
}
