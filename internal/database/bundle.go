package database

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CopyBundledDatabase extracts the pre-built database shipped as a zip
// archive to dest. Nothing happens when dest already exists. It reports
// whether a copy was made.
func CopyBundledDatabase(zipPath, dest string) (bool, error) {
	if _, err := os.Stat(dest); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat %s: %w", dest, err)
	}

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return false, fmt.Errorf("open bundle: %w", err)
	}
	defer r.Close()

	var entry *zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(f.Name))
		if ext == ".sqlite" || ext == ".db" {
			entry = f
			break
		}
	}
	if entry == nil {
		return false, fmt.Errorf("bundle %s contains no database", zipPath)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return false, fmt.Errorf("create database directory: %w", err)
	}

	src, err := entry.Open()
	if err != nil {
		return false, fmt.Errorf("open %s: %w", entry.Name, err)
	}
	defer src.Close()

	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return false, fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(tmp)
		return false, fmt.Errorf("extract %s: %w", entry.Name, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return false, err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return false, fmt.Errorf("move database into place: %w", err)
	}
	return true, nil
}
