package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/iBurnApp/iBurn-iOS/internal/geo"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Art{},
	&Camp{},
	&Event{},
	&EventOccurrence{},
	&ObjectMetadata{},
	&UpdateInfo{},
	&MapPoint{},
	&Breadcrumb{},
}

// ObjectType identifies which collection a record belongs to.
type ObjectType string

const (
	TypeArt   ObjectType = "art"
	TypeCamp  ObjectType = "camp"
	TypeEvent ObjectType = "event"
)

// ObjectTypes lists the browsable object types in display order.
var ObjectTypes = []ObjectType{TypeArt, TypeCamp, TypeEvent}

// ParseObjectType accepts singular and plural spellings.
func ParseObjectType(s string) (ObjectType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "art", "arts":
		return TypeArt, nil
	case "camp", "camps":
		return TypeCamp, nil
	case "event", "events":
		return TypeEvent, nil
	default:
		return "", fmt.Errorf("unknown object type: %q", s)
	}
}

// DataType is a key of the update manifest.
type DataType string

const (
	DataArt    DataType = "art"
	DataCamps  DataType = "camps"
	DataEvents DataType = "events"
	DataPoints DataType = "points"
)

// DataTypes is the import order. Events come after art and camps because
// they copy their host's location.
var DataTypes = []DataType{DataArt, DataCamps, DataEvents, DataPoints}

// ObjectType returns the object type stored for a data type, or "" for points.
func (d DataType) ObjectType() ObjectType {
	switch d {
	case DataArt:
		return TypeArt
	case DataCamps:
		return TypeCamp
	case DataEvents:
		return TypeEvent
	default:
		return ""
	}
}

// Object is the read-only surface shared by art, camps, events and occurrences.
type Object interface {
	ID() string
	Name() string
	Type() ObjectType
	Coordinates() (lat, lon float64, ok bool)
}

// Image references artwork photos and camp thumbnails.
type Image struct {
	ThumbnailURL string `json:"thumbnail_url"`
	GalleryRef   string `json:"gallery_ref,omitempty"`
}

// DataObject holds the fields common to art, camps and events.
type DataObject struct {
	UID            string         `json:"uid" gorm:"primaryKey;size:64"`
	Year           int            `json:"year" gorm:"index"`
	Title          string         `json:"title" gorm:"size:255;index"`
	Description    string         `json:"description"`
	URL            string         `json:"url" gorm:"size:512"`
	ContactEmail   string         `json:"contactEmail" gorm:"size:255"`
	Hometown       string         `json:"hometown" gorm:"size:255"`
	Latitude       float64        `json:"latitude" gorm:"index"`
	Longitude      float64        `json:"longitude"`
	LocationString string         `json:"locationString" gorm:"size:255"`
	Images         datatypes.JSON `json:"images,omitempty"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// ID returns the API uid.
func (o DataObject) ID() string { return o.UID }

// Name returns the display title.
func (o DataObject) Name() string { return o.Title }

// HasLocation reports whether the record carries a usable GPS fix.
func (o DataObject) HasLocation() bool {
	return geo.Valid(o.Latitude, o.Longitude)
}

// Coordinates returns latitude and longitude when the record has a location.
func (o DataObject) Coordinates() (lat, lon float64, ok bool) {
	if !o.HasLocation() {
		return 0, 0, false
	}
	return o.Latitude, o.Longitude, true
}

// Location returns the GPS point, or an empty point and false.
func (o DataObject) Location() (geom.Point, bool) {
	if !o.HasLocation() {
		return geom.NewEmptyPoint(geom.DimXY), false
	}
	return geo.NewPoint(o.Latitude, o.Longitude), true
}

// Art is an art installation.
type Art struct {
	DataObject
	Artist            string `json:"artist" gorm:"size:255"`
	Category          string `json:"category" gorm:"size:127"`
	Program           string `json:"program" gorm:"size:127"`
	DonationLink      string `json:"donationLink" gorm:"size:512"`
	GuidedTours       bool   `json:"guidedTours"`
	SelfGuidedTourMap bool   `json:"selfGuidedTourMap"`
	LocationHour      int    `json:"locationHour"`
	LocationMinute    int    `json:"locationMinute"`
	LocationDistance  int    `json:"locationDistance"`
	LocationCategory  string `json:"locationCategory" gorm:"size:64"`
}

func (*Art) TableName() string {
	return "art_objects"
}

// Type implements Object.
func (Art) Type() ObjectType { return TypeArt }

// Camp is a theme camp.
type Camp struct {
	DataObject
	Landmark         string `json:"landmark" gorm:"size:255"`
	Frontage         string `json:"frontage" gorm:"size:64"`
	Intersection     string `json:"intersection" gorm:"size:64"`
	IntersectionType string `json:"intersectionType" gorm:"size:16"`
	Dimensions       string `json:"dimensions" gorm:"size:64"`
	ExactLocation    string `json:"exactLocation" gorm:"size:255"`
}

func (*Camp) TableName() string {
	return "camp_objects"
}

// Type implements Object.
func (Camp) Type() ObjectType { return TypeCamp }

// MapPoint kinds.
const (
	PointLandmark = "landmark"
	PointUser     = "user"
)

// MapPoint is a named location on the map: an imported landmark or a user pin.
type MapPoint struct {
	UID       string    `json:"uid" gorm:"primaryKey;size:64"`
	Kind      string    `json:"kind" gorm:"size:16;index"`
	Title     string    `json:"title" gorm:"size:255"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	CreatedAt time.Time `json:"createdAt"`
}

func (*MapPoint) TableName() string {
	return "map_points"
}

// Breadcrumb is one point of the user's location history.
type Breadcrumb struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp" gorm:"index"`
}

func (*Breadcrumb) TableName() string {
	return "breadcrumbs"
}

// LatLng converts a breadcrumb for track building.
func (b Breadcrumb) LatLng() geo.LatLng {
	return geo.LatLng{Lat: b.Latitude, Lon: b.Longitude}
}
