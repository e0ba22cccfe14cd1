package parser

import (
	"fmt"

	"github.com/iBurnApp/iBurn-iOS/internal/geo"
	"github.com/iBurnApp/iBurn-iOS/internal/model"
)

// ParsePoints converts points.json (a GeoJSON FeatureCollection) into
// landmark map points keyed by their ref.
func (p *Parser) ParsePoints(data []byte) ([]model.MapPoint, Stats, error) {
	landmarks, err := geo.ParseLandmarks(data)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("points: %w", err)
	}

	stats := Stats{Total: len(landmarks)}
	seen := make(map[string]struct{}, len(landmarks))
	out := make([]model.MapPoint, 0, len(landmarks))
	for _, l := range landmarks {
		if l.Ref == "" {
			stats.Skipped++
			continue
		}
		if _, dup := seen[l.Ref]; dup {
			stats.Merged++
			continue
		}
		seen[l.Ref] = struct{}{}
		out = append(out, model.MapPoint{
			UID:       l.Ref,
			Kind:      model.PointLandmark,
			Title:     l.Name,
			Latitude:  l.Lat,
			Longitude: l.Lon,
		})
	}

	p.logger.Debug("Parsed points", "count", len(out), "skipped", stats.Skipped)
	return out, stats, nil
}
