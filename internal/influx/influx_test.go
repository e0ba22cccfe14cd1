package influx

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readBackup(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	return string(data)
}

func TestConnect_Disabled(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("influx.enabled", false)

	m := NewManager(zerolog.Nop(), "")
	assert.Error(t, m.Connect(context.Background()))
	assert.False(t, m.IsValid)
}

func TestConnect_UnreachableFallsBackToBackup(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("influx.enabled", true)
	viper.Set("influx.protocol", "http")
	viper.Set("influx.host", "127.0.0.1")
	viper.Set("influx.port", "1")
	assert.Equal(t, "http://127.0.0.1:1", URL())

	path := filepath.Join(t.TempDir(), "influx_backup.log.gz")
	m := NewManager(zerolog.Nop(), path)
	require.NoError(t, m.Connect(context.Background()))
	assert.False(t, m.IsValid)

	ts := time.Unix(0, 42)
	require.NoError(t, m.WritePoint(context.Background(), BucketDataStats, NewPoint("counts", map[string]string{"year": "2025"}, map[string]any{"art": int64(3)}, ts)))
	require.NoError(t, m.Close())

	assert.Contains(t, readBackup(t, path), "counts,year=2025 art=3i 42")
}

func TestWritePoint_NoBackup(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")
	err := m.WritePoint(context.Background(), BucketDataStats, NewPoint("counts", nil, map[string]any{"art": 1}, time.Now()))
	assert.Error(t, err)
	assert.Error(t, m.OpenBackup(), "no path")
}

func TestWritePoint_UnknownBucket(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")
	m.IsValid = true
	err := m.WritePoint(context.Background(), "nope", NewPoint("counts", nil, map[string]any{"art": 1}, time.Now()))
	assert.ErrorContains(t, err, "not registered")
}

func TestOpenBackup_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.gz")
	for i := 0; i < 2; i++ {
		m := NewManager(zerolog.Nop(), path)
		require.NoError(t, m.OpenBackup())
		require.NoError(t, m.OpenBackup(), "idempotent")
		require.NoError(t, m.WritePoint(context.Background(), BucketAppPerformance, NewPoint("perf", map[string]string{"host": "test"}, map[string]any{"run": int64(i)}, time.Unix(1, 0))))
		require.NoError(t, m.Close())
	}
	data := readBackup(t, path)
	assert.Contains(t, data, "perf,host=test run=0i")
	assert.Contains(t, data, "perf,host=test run=1i")
}
