package geo

import (
	"encoding/json"
	"fmt"
	"os"

	geom "github.com/peterstace/simplefeatures/geom"
)

// LatLng is a single coordinate pair.
type LatLng struct {
	Lat float64
	Lon float64
}

// Track builds a LineString from an ordered list of coordinates.
func Track(points []LatLng) (geom.LineString, error) {
	if len(points) < 2 {
		return geom.LineString{}, fmt.Errorf("track must have at least 2 points, got %d", len(points))
	}

	flatCoords := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flatCoords = append(flatCoords, p.Lon, p.Lat)
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	return geom.NewLineString(seq), nil
}

// TrackGeoJSON encodes a track as a GeoJSON LineString geometry.
func TrackGeoJSON(points []LatLng) ([]byte, error) {
	ls, err := Track(points)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ls)
}

// Landmark is a named point from a GeoJSON FeatureCollection.
type Landmark struct {
	Ref  string
	Name string
	Lat  float64
	Lon  float64
}

// ParseLandmarks reads a GeoJSON FeatureCollection of Point features with
// "name" and "ref" properties. Non-point features are skipped.
func ParseLandmarks(data []byte) ([]Landmark, error) {
	var fc geom.GeoJSONFeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse feature collection: %w", err)
	}

	landmarks := make([]Landmark, 0, len(fc))
	for _, f := range fc {
		if f.Geometry.Type() != geom.TypePoint {
			continue
		}
		lat, lon, ok := LatLon(f.Geometry.AsPoint())
		if !ok {
			continue
		}
		name, _ := f.Properties["name"].(string)
		ref, _ := f.Properties["ref"].(string)
		if ref == "" {
			ref = name
		}
		landmarks = append(landmarks, Landmark{Ref: ref, Name: name, Lat: lat, Lon: lon})
	}
	return landmarks, nil
}

// LoadLandmarks reads landmarks from a GeoJSON file on disk.
func LoadLandmarks(path string) ([]Landmark, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read landmarks: %w", err)
	}
	return ParseLandmarks(data)
}
