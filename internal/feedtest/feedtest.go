// Package feedtest carries a small yearly data set for tests.
package feedtest

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

//go:embed feed/*.json
var files embed.FS

// Counts of valid records in the fixture set.
const (
	ArtCount    = 2
	CampCount   = 2
	EventCount  = 4
	PointCount  = 2
	SkippedArt  = 3
	SkippedCamp = 1
)

// File returns the raw content of a fixture file.
func File(t testing.TB, name string) []byte {
	t.Helper()
	data, err := files.ReadFile("feed/" + name)
	if err != nil {
		t.Fatalf("fixture %s: %v", name, err)
	}
	return data
}

// Dir copies the fixture set into a fresh temp directory and returns it.
func Dir(t testing.TB) string {
	t.Helper()
	dir := t.TempDir()
	entries, err := fs.ReadDir(files, "feed")
	if err != nil {
		t.Fatalf("fixture dir: %v", err)
	}
	for _, e := range entries {
		data := File(t, e.Name())
		if err := os.WriteFile(filepath.Join(dir, e.Name()), data, 0o644); err != nil {
			t.Fatalf("write fixture %s: %v", e.Name(), err)
		}
	}
	return dir
}
