package parser

import (
	"strings"

	"github.com/iBurnApp/iBurn-iOS/internal/model"
)

// Feed records mirror the snake_case JSON of the yearly data set. They are
// decoded one at a time so a malformed record only costs itself.

type artRecord struct {
	UID               string        `json:"uid" validate:"required,max=64"`
	Name              string        `json:"name" validate:"required"`
	Year              int           `json:"year"`
	URL               string        `json:"url"`
	ContactEmail      string        `json:"contact_email"`
	Hometown          string        `json:"hometown"`
	Description       string        `json:"description"`
	Artist            string        `json:"artist"`
	Category          string        `json:"category"`
	Program           string        `json:"program"`
	DonationLink      string        `json:"donation_link"`
	Location          *artLocation  `json:"location"`
	LocationString    string        `json:"location_string"`
	Images            []model.Image `json:"images"`
	GuidedTours       bool          `json:"guided_tours"`
	SelfGuidedTourMap bool          `json:"self_guided_tour_map"`
}

type artLocation struct {
	Hour         int     `json:"hour"`
	Minute       int     `json:"minute"`
	Distance     int     `json:"distance"`
	Category     string  `json:"category"`
	GPSLatitude  float64 `json:"gps_latitude"`
	GPSLongitude float64 `json:"gps_longitude"`
}

type campRecord struct {
	UID            string        `json:"uid" validate:"required,max=64"`
	Name           string        `json:"name" validate:"required"`
	Year           int           `json:"year"`
	URL            string        `json:"url"`
	ContactEmail   string        `json:"contact_email"`
	Hometown       string        `json:"hometown"`
	Description    string        `json:"description"`
	Landmark       string        `json:"landmark"`
	Location       *campLocation `json:"location"`
	LocationString string        `json:"location_string"`
	Images         []model.Image `json:"images"`
}

type campLocation struct {
	Frontage         string  `json:"frontage"`
	Intersection     string  `json:"intersection"`
	IntersectionType string  `json:"intersection_type"`
	Dimensions       string  `json:"dimensions"`
	ExactLocation    string  `json:"exact_location"`
	GPSLatitude      float64 `json:"gps_latitude"`
	GPSLongitude     float64 `json:"gps_longitude"`
}

type eventRecord struct {
	UID              string             `json:"uid" validate:"required,max=64"`
	Title            string             `json:"title" validate:"required"`
	EventID          int                `json:"event_id"`
	Description      string             `json:"description"`
	EventType        *eventTypeRecord   `json:"event_type"`
	Year             int                `json:"year"`
	PrintDescription string             `json:"print_description"`
	Slug             string             `json:"slug"`
	HostedByCamp     string             `json:"hosted_by_camp"`
	LocatedAtArt     string             `json:"located_at_art"`
	OtherLocation    string             `json:"other_location"`
	CheckLocation    bool               `json:"check_location"`
	URL              string             `json:"url"`
	AllDay           bool               `json:"all_day"`
	Contact          string             `json:"contact"`
	Latitude         float64            `json:"gps_latitude"`
	Longitude        float64            `json:"gps_longitude"`
	LocationString   string             `json:"location_string"`
	OccurrenceSet    []occurrenceRecord `json:"occurrence_set"`
}

type eventTypeRecord struct {
	Label string `json:"label"`
	Abbr  string `json:"abbr"`
}

type occurrenceRecord struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (r *artRecord) normalize() {
	r.UID = strings.TrimSpace(r.UID)
	r.Name = strings.TrimSpace(r.Name)
}

func (r *campRecord) normalize() {
	r.UID = strings.TrimSpace(r.UID)
	r.Name = strings.TrimSpace(r.Name)
}

func (r *eventRecord) normalize() {
	r.UID = strings.TrimSpace(r.UID)
	r.Title = strings.TrimSpace(r.Title)
	r.HostedByCamp = strings.TrimSpace(r.HostedByCamp)
	r.LocatedAtArt = strings.TrimSpace(r.LocatedAtArt)
}
