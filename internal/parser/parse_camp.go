package parser

import (
	"fmt"

	"github.com/iBurnApp/iBurn-iOS/internal/model"
)

// ParseCamps converts camp.json into model rows.
func (p *Parser) ParseCamps(data []byte) ([]model.Camp, Stats, error) {
	raw, err := splitRecords(data)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("camps: %w", err)
	}

	stats := Stats{Total: len(raw)}
	seen := make(map[string]struct{}, len(raw))
	out := make([]model.Camp, 0, len(raw))
	for i, r := range raw {
		var rec campRecord
		if err := p.decodeRecord(r, &rec); err != nil {
			p.skip("camp", i, err)
			stats.Skipped++
			continue
		}
		if _, dup := seen[rec.UID]; dup {
			stats.Merged++
			continue
		}
		seen[rec.UID] = struct{}{}

		camp := model.Camp{
			DataObject: dataObject(rec.UID, rec.Name, p.yearOr(rec.Year), rec.Description, rec.URL, rec.ContactEmail, rec.Hometown, rec.LocationString),
			Landmark:   rec.Landmark,
		}
		camp.Images = encodeImages(rec.Images)
		if loc := rec.Location; loc != nil {
			camp.Frontage = loc.Frontage
			camp.Intersection = loc.Intersection
			camp.IntersectionType = loc.IntersectionType
			camp.Dimensions = loc.Dimensions
			camp.ExactLocation = loc.ExactLocation
			camp.Latitude = loc.GPSLatitude
			camp.Longitude = loc.GPSLongitude
		}
		out = append(out, camp)
	}

	p.logger.Debug("Parsed camps", "count", len(out), "skipped", stats.Skipped)
	return out, stats, nil
}
