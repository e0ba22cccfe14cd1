package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/iBurnApp/iBurn-iOS/internal/model"
)

// ManifestFile is the name of the update manifest next to the data files.
const ManifestFile = "update.json"

// FileInfo points at one data file and when it last changed.
type FileInfo struct {
	File    string    `json:"file"`
	Updated time.Time `json:"updated"`
}

// Manifest is the content of update.json. Points is optional.
type Manifest struct {
	Art    *FileInfo `json:"art,omitempty"`
	Camps  *FileInfo `json:"camps,omitempty"`
	Events *FileInfo `json:"events,omitempty"`
	Points *FileInfo `json:"points,omitempty"`
}

// ParseManifest decodes update.json.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Art == nil && m.Camps == nil && m.Events == nil && m.Points == nil {
		return Manifest{}, fmt.Errorf("manifest lists no data files")
	}
	return m, nil
}

// Entry returns the file info for a data type.
func (m Manifest) Entry(dt model.DataType) (FileInfo, bool) {
	var fi *FileInfo
	switch dt {
	case model.DataArt:
		fi = m.Art
	case model.DataCamps:
		fi = m.Camps
	case model.DataEvents:
		fi = m.Events
	case model.DataPoints:
		fi = m.Points
	}
	if fi == nil || fi.File == "" {
		return FileInfo{}, false
	}
	return *fi, true
}

// LastUpdated is the newest timestamp across all entries.
func (m Manifest) LastUpdated() time.Time {
	var latest time.Time
	for _, dt := range model.DataTypes {
		if fi, ok := m.Entry(dt); ok && fi.Updated.After(latest) {
			latest = fi.Updated
		}
	}
	return latest
}
