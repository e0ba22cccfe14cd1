package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// GPS coordinates are kept as WGS84 latitude/longitude (EPSG:4326).
// Distances are measured on Web Mercator (EPSG:3857) and scaled back to
// ground meters by cos(latitude), which is accurate to well under a percent
// at city scale.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

const metersPerDegreeLat = 111_320.0

var toMercator = wgs84.EPSG().Transform(4326, 3857)

// Valid reports whether lat/lon describe a usable GPS fix.
// 0,0 is treated as "no location", the same as the upstream data feed.
func Valid(lat, lon float64) bool {
	if lat == 0 && lon == 0 {
		return false
	}
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// NewPoint creates an XY point with X=longitude, Y=latitude.
func NewPoint(lat, lon float64) geom.Point {
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: lon, Y: lat},
			Type: geom.CoordinatesType(geom.DimXY),
		},
	)
}

// LatLon extracts latitude and longitude from a point built by NewPoint.
func LatLon(p geom.Point) (lat, lon float64, ok bool) {
	c, ok := p.Coordinates()
	if !ok {
		return 0, 0, false
	}
	return c.Y, c.X, true
}

// LatLonFromString parses "lat,lon".
func LatLonFromString(coords string) (lat, lon float64, err error) {
	parts := strings.Split(coords, ",")
	if len(parts) != 2 {
		return 0, 0, ErrInvalidCoordinates
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, ErrInvalidCoordinates
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, ErrInvalidCoordinates
	}
	if !Valid(lat, lon) {
		return 0, 0, ErrInvalidCoordinates
	}
	return lat, lon, nil
}

// Project converts a WGS84 coordinate to Web Mercator meters.
func Project(lat, lon float64) (x, y float64) {
	x, y, _ = toMercator(lon, lat, 0)
	return x, y
}

// Distance returns the ground distance in meters between two coordinates.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	x1, y1 := Project(lat1, lon1)
	x2, y2 := Project(lat2, lon2)
	scale := math.Cos((lat1 + lat2) / 2 * math.Pi / 180)
	return math.Hypot(x2-x1, y2-y1) * scale
}

// PointDistance is Distance for two points built by NewPoint.
func PointDistance(a, b geom.Point) (float64, bool) {
	lat1, lon1, ok := LatLon(a)
	if !ok {
		return 0, false
	}
	lat2, lon2, ok := LatLon(b)
	if !ok {
		return 0, false
	}
	return Distance(lat1, lon1, lat2, lon2), true
}

// Region is a lat/lon bounding box.
type Region struct {
	MinLat float64 `json:"minLat"`
	MinLon float64 `json:"minLon"`
	MaxLat float64 `json:"maxLat"`
	MaxLon float64 `json:"maxLon"`
}

// NewRegion builds a region from two opposite corners in any order.
func NewRegion(lat1, lon1, lat2, lon2 float64) Region {
	return Region{
		MinLat: math.Min(lat1, lat2),
		MinLon: math.Min(lon1, lon2),
		MaxLat: math.Max(lat1, lat2),
		MaxLon: math.Max(lon1, lon2),
	}
}

// RegionAround returns the box enclosing a circle of radius meters.
func RegionAround(lat, lon, radius float64) Region {
	dLat := radius / metersPerDegreeLat
	dLon := radius / (metersPerDegreeLat * math.Cos(lat*math.Pi/180))
	return NewRegion(lat-dLat, lon-dLon, lat+dLat, lon+dLon)
}

// Contains reports whether the coordinate lies inside the region, edges included.
func (r Region) Contains(lat, lon float64) bool {
	return lat >= r.MinLat && lat <= r.MaxLat && lon >= r.MinLon && lon <= r.MaxLon
}

// Empty reports whether the region has no area.
func (r Region) Empty() bool {
	return r.MinLat >= r.MaxLat || r.MinLon >= r.MaxLon
}
