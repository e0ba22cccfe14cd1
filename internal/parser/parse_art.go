package parser

import (
	"fmt"

	"github.com/iBurnApp/iBurn-iOS/internal/model"
)

// ParseArt converts art.json into model rows. Invalid records are skipped
// and counted; only a malformed top-level document is an error.
func (p *Parser) ParseArt(data []byte) ([]model.Art, Stats, error) {
	raw, err := splitRecords(data)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("art: %w", err)
	}

	stats := Stats{Total: len(raw)}
	seen := make(map[string]struct{}, len(raw))
	out := make([]model.Art, 0, len(raw))
	for i, r := range raw {
		var rec artRecord
		if err := p.decodeRecord(r, &rec); err != nil {
			p.skip("art", i, err)
			stats.Skipped++
			continue
		}
		if _, dup := seen[rec.UID]; dup {
			stats.Merged++
			continue
		}
		seen[rec.UID] = struct{}{}
		out = append(out, p.artFromRecord(rec))
	}

	p.logger.Debug("Parsed art", "count", len(out), "skipped", stats.Skipped)
	return out, stats, nil
}

func (p *Parser) artFromRecord(rec artRecord) model.Art {
	art := model.Art{
		DataObject:        dataObject(rec.UID, rec.Name, p.yearOr(rec.Year), rec.Description, rec.URL, rec.ContactEmail, rec.Hometown, rec.LocationString),
		Artist:            rec.Artist,
		Category:          rec.Category,
		Program:           rec.Program,
		DonationLink:      rec.DonationLink,
		GuidedTours:       rec.GuidedTours,
		SelfGuidedTourMap: rec.SelfGuidedTourMap,
	}
	art.Images = encodeImages(rec.Images)
	if loc := rec.Location; loc != nil {
		art.LocationHour = loc.Hour
		art.LocationMinute = loc.Minute
		art.LocationDistance = loc.Distance
		art.LocationCategory = loc.Category
		art.Latitude = loc.GPSLatitude
		art.Longitude = loc.GPSLongitude
	}
	return art
}
