// internal/storage/memory/export.go
package memory

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/iBurnApp/iBurn-iOS/internal/model"
)

// SnapshotVersion is bumped when the snapshot layout changes.
const SnapshotVersion = 1

// Snapshot is the root JSON structure of a memory backend dump.
type Snapshot struct {
	Version     int                    `json:"version"`
	ExportedAt  time.Time              `json:"exportedAt"`
	Art         []model.Art            `json:"art"`
	Camps       []model.Camp           `json:"camps"`
	Events      []model.Event          `json:"events"`
	MapPoints   []model.MapPoint       `json:"mapPoints"`
	Metadata    []model.ObjectMetadata `json:"metadata"`
	UpdateInfo  []model.UpdateInfo     `json:"updateInfo"`
	Breadcrumbs []model.Breadcrumb     `json:"breadcrumbs"`
}

func (b *Backend) buildSnapshot() Snapshot {
	ctx := context.Background()
	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: time.Now().UTC(),
	}
	snap.Art, _ = b.Art(ctx)
	snap.Camps, _ = b.Camps(ctx)
	snap.Events, _ = b.Events(ctx)
	snap.MapPoints, _ = b.MapPoints(ctx)
	snap.Breadcrumbs, _ = b.Breadcrumbs(ctx, time.Time{})

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, md := range b.metadata {
		snap.Metadata = append(snap.Metadata, md)
	}
	for _, dt := range model.DataTypes {
		if info, ok := b.updates[dt]; ok {
			snap.UpdateInfo = append(snap.UpdateInfo, info)
		}
	}
	return snap
}

// DumpToDisk writes the whole data set as JSON, gzipped when configured.
func (b *Backend) DumpToDisk(path string) error {
	snap := b.buildSnapshot()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = b.writeGzipJSON(path, snap)
	} else {
		err = b.writeJSON(path, snap)
	}
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.lastDump = path
	b.mu.Unlock()
	return nil
}

// LastSnapshotPath returns the path of the last successful dump.
func (b *Backend) LastSnapshotPath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastDump
}

func (b *Backend) writeJSON(path string, data Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func (b *Backend) writeGzipJSON(path string, data Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}

// loadSnapshot restores a dump. A missing file leaves the backend empty.
func (b *Backend) loadSnapshot(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if magic, err := br.Peek(2); err == nil && bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("failed to open gzip snapshot: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}

	ctx := context.Background()
	_ = b.ReplaceArt(ctx, snap.Art)
	_ = b.ReplaceCamps(ctx, snap.Camps)
	_ = b.ReplaceEvents(ctx, snap.Events)
	_ = b.AddBreadcrumbs(ctx, snap.Breadcrumbs)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range snap.MapPoints {
		b.points[p.UID] = p
	}
	for _, md := range snap.Metadata {
		b.metadata[metadataKey{md.ObjectType, md.ObjectID}] = md
	}
	for _, info := range snap.UpdateInfo {
		b.updates[info.DataType] = info
	}
	return nil
}
