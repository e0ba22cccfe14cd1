package parser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/iBurnApp/iBurn-iOS/internal/geo"
	"github.com/iBurnApp/iBurn-iOS/internal/model"
)

// ParseEvents converts event.json into model rows. A uid seen twice keeps
// the first record and gains the second one's occurrences. Occurrences are
// sorted by start time and numbered from 1.
func (p *Parser) ParseEvents(data []byte) ([]model.Event, Stats, error) {
	raw, err := splitRecords(data)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("events: %w", err)
	}

	stats := Stats{Total: len(raw)}
	index := make(map[string]int, len(raw))
	out := make([]model.Event, 0, len(raw))
	for i, r := range raw {
		var rec eventRecord
		if err := p.decodeRecord(r, &rec); err != nil {
			p.skip("event", i, err)
			stats.Skipped++
			continue
		}

		occurrences, dropped := p.occurrences(rec.UID, rec.OccurrenceSet)
		stats.DroppedOccurrences += dropped

		if pos, dup := index[rec.UID]; dup {
			out[pos].Occurrences = append(out[pos].Occurrences, occurrences...)
			stats.Merged++
			continue
		}
		index[rec.UID] = len(out)

		event := p.eventFromRecord(rec)
		event.Occurrences = occurrences
		out = append(out, event)
	}

	for i := range out {
		out[i].Occurrences = numberOccurrences(out[i].Occurrences)
	}

	p.logger.Debug("Parsed events",
		"count", len(out),
		"skipped", stats.Skipped,
		"merged", stats.Merged,
		"droppedOccurrences", stats.DroppedOccurrences)
	return out, stats, nil
}

func (p *Parser) eventFromRecord(rec eventRecord) model.Event {
	event := model.Event{
		DataObject:       dataObject(rec.UID, rec.Title, p.yearOr(rec.Year), rec.Description, rec.URL, "", "", rec.LocationString),
		EventID:          rec.EventID,
		PrintDescription: rec.PrintDescription,
		Slug:             rec.Slug,
		HostedByCamp:     rec.HostedByCamp,
		LocatedAtArt:     rec.LocatedAtArt,
		OtherLocation:    strings.TrimSpace(rec.OtherLocation),
		CheckLocation:    rec.CheckLocation,
		AllDay:           rec.AllDay,
		Contact:          rec.Contact,
	}
	event.Latitude = rec.Latitude
	event.Longitude = rec.Longitude

	event.EventType = model.EventOther
	if rec.EventType != nil {
		event.EventType = model.ParseEventType(rec.EventType.Abbr)
		event.EventTypeLabel = strings.TrimSpace(rec.EventType.Label)
	}
	if event.EventTypeLabel == "" {
		event.EventTypeLabel = event.EventType.Label()
	}
	return event
}

// occurrences converts the occurrence set, dropping unparseable slots and
// slots that end before they start.
func (p *Parser) occurrences(uid string, set []occurrenceRecord) ([]model.EventOccurrence, int) {
	out := make([]model.EventOccurrence, 0, len(set))
	dropped := 0
	for _, o := range set {
		start, err := p.parseTime(o.StartTime)
		if err != nil {
			dropped++
			continue
		}
		end, err := p.parseTime(o.EndTime)
		if err != nil || end.Before(start) {
			dropped++
			continue
		}
		out = append(out, model.EventOccurrence{
			EventUID:  uid,
			StartTime: start.UTC(),
			EndTime:   end.UTC(),
		})
	}
	return out, dropped
}

// numberOccurrences sorts by start, removes exact duplicates and assigns IDs 1..n.
func numberOccurrences(occ []model.EventOccurrence) []model.EventOccurrence {
	sort.SliceStable(occ, func(i, j int) bool {
		if !occ[i].StartTime.Equal(occ[j].StartTime) {
			return occ[i].StartTime.Before(occ[j].StartTime)
		}
		return occ[i].EndTime.Before(occ[j].EndTime)
	})
	out := occ[:0]
	for _, o := range occ {
		if n := len(out); n > 0 && out[n-1].StartTime.Equal(o.StartTime) && out[n-1].EndTime.Equal(o.EndTime) {
			continue
		}
		out = append(out, o)
	}
	for i := range out {
		out[i].ID = uint(i + 1)
	}
	return out
}

// HostLookup returns the location of an art piece or camp.
type HostLookup func(t model.ObjectType, uid string) (lat, lon float64, address string, ok bool)

// ApplyHostLocations fills event locations from the hosting camp, then the
// hosting art piece. The first host with GPS supplies the coordinates and the
// first host with an address supplies the location string. Values the event
// carries itself are kept; values copied from a host are refreshed on every
// call, and cleared when no host provides them any more. It returns how many
// events changed.
func ApplyHostLocations(events []model.Event, lookup HostLookup) int {
	changed := 0
	for i := range events {
		e := &events[i]
		hosts := []struct {
			t   model.ObjectType
			uid string
		}{
			{model.TypeCamp, e.HostedByCamp},
			{model.TypeArt, e.LocatedAtArt},
		}
		var (
			lat, lon        float64
			address         string
			hasGPS, hasAddr bool
		)
		for _, h := range hosts {
			if h.uid == "" {
				continue
			}
			hLat, hLon, hAddr, ok := lookup(h.t, h.uid)
			if !ok {
				continue
			}
			if !hasAddr && hAddr != "" {
				address, hasAddr = hAddr, true
			}
			if !hasGPS && geo.Valid(hLat, hLon) {
				lat, lon, hasGPS = hLat, hLon, true
			}
			if hasGPS && hasAddr {
				break
			}
		}

		before := *e
		if !e.HasLocation() || e.GPSFromHost {
			switch {
			case hasGPS:
				e.Latitude, e.Longitude, e.GPSFromHost = lat, lon, true
			case e.GPSFromHost:
				e.Latitude, e.Longitude, e.GPSFromHost = 0, 0, false
			}
		}
		if e.LocationString == "" || e.AddressFromHost {
			switch {
			case hasAddr:
				e.LocationString, e.AddressFromHost = address, true
			case e.AddressFromHost:
				e.LocationString, e.AddressFromHost = "", false
			}
		}
		if e.Latitude != before.Latitude || e.Longitude != before.Longitude ||
			e.LocationString != before.LocationString ||
			e.GPSFromHost != before.GPSFromHost || e.AddressFromHost != before.AddressFromHost {
			changed++
		}
	}
	return changed
}
