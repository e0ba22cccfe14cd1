package api

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirSource serves the manifest and data files from a bundled directory.
type DirSource struct {
	dir string
}

// NewDirSource returns a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Dir returns the root directory.
func (s *DirSource) Dir() string {
	return s.dir
}

// Manifest reads update.json from the directory.
func (s *DirSource) Manifest(ctx context.Context) (Manifest, error) {
	data, err := s.Fetch(ctx, ManifestFile)
	if err != nil {
		return Manifest{}, err
	}
	return ParseManifest(data)
}

// Fetch reads a file below the directory. Paths escaping it are rejected.
func (s *DirSource) Fetch(ctx context.Context, file string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := filepath.Clean(filepath.FromSlash(file))
	if file == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("invalid file name %q", file)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, clean))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	return data, nil
}
