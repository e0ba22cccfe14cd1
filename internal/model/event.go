package model

import (
	"fmt"
	"time"
)

const (
	startingSoonWindow = time.Hour
	endingSoonWindow   = 15 * time.Minute
)

// Event is a scheduled activity hosted by a camp or located at an art piece.
type Event struct {
	DataObject
	EventID          int               `json:"eventId"`
	EventType        EventType         `json:"eventType" gorm:"size:8;index"`
	EventTypeLabel   string            `json:"eventTypeLabel" gorm:"size:64"`
	PrintDescription string            `json:"printDescription"`
	Slug             string            `json:"slug" gorm:"size:255"`
	HostedByCamp     string            `json:"hostedByCamp" gorm:"size:64;index"`
	LocatedAtArt     string            `json:"locatedAtArt" gorm:"size:64;index"`
	OtherLocation    string            `json:"otherLocation" gorm:"size:255"`
	GPSFromHost      bool              `json:"gpsFromHost"`
	AddressFromHost  bool              `json:"addressFromHost"`
	CheckLocation    bool              `json:"checkLocation"`
	AllDay           bool              `json:"allDay"`
	Contact          string            `json:"contact" gorm:"size:255"`
	Occurrences      []EventOccurrence `json:"occurrences" gorm:"foreignKey:EventUID;references:UID;constraint:OnDelete:CASCADE"`
}

func (*Event) TableName() string {
	return "event_objects"
}

// Type implements Object.
func (Event) Type() ObjectType { return TypeEvent }

// HostUID returns the camp or art uid this event is attached to, camp first.
func (e Event) HostUID() (ObjectType, string, bool) {
	if e.HostedByCamp != "" {
		return TypeCamp, e.HostedByCamp, true
	}
	if e.LocatedAtArt != "" {
		return TypeArt, e.LocatedAtArt, true
	}
	return "", "", false
}

// ExpandOccurrences returns one Occurrence per scheduled time slot.
func (e Event) ExpandOccurrences() []Occurrence {
	out := make([]Occurrence, 0, len(e.Occurrences))
	for _, o := range e.Occurrences {
		out = append(out, Occurrence{Event: e, OccurrenceID: o.ID, StartTime: o.StartTime, EndTime: o.EndTime})
	}
	return out
}

// EventOccurrence is one time slot of an event. ID numbers the slots of one
// event starting at 1, so the composite uid stays stable across re-imports.
type EventOccurrence struct {
	EventUID  string    `json:"eventUid" gorm:"primaryKey;size:64"`
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	StartTime time.Time `json:"startTime" gorm:"index"`
	EndTime   time.Time `json:"endTime" gorm:"index"`
}

func (*EventOccurrence) TableName() string {
	return "event_occurrences"
}

// Occurrence pairs an event with a single time slot. It is the row unit of
// schedule views.
type Occurrence struct {
	Event        Event     `json:"event"`
	OccurrenceID uint      `json:"occurrenceId"`
	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime"`
}

// ID is "<eventuid>_<occurrenceid>".
func (o Occurrence) ID() string {
	return fmt.Sprintf("%s_%d", o.Event.UID, o.OccurrenceID)
}

func (o Occurrence) Name() string     { return o.Event.Title }
func (o Occurrence) Type() ObjectType { return TypeEvent }

func (o Occurrence) Coordinates() (lat, lon float64, ok bool) {
	return o.Event.Coordinates()
}

// Duration is the scheduled length.
func (o Occurrence) Duration() time.Duration {
	return o.EndTime.Sub(o.StartTime)
}

func (o Occurrence) HasStarted(now time.Time) bool {
	return !now.Before(o.StartTime)
}

func (o Occurrence) HasEnded(now time.Time) bool {
	return !now.Before(o.EndTime)
}

// IsHappeningNow is start <= now < end.
func (o Occurrence) IsHappeningNow(now time.Time) bool {
	return o.HasStarted(now) && !o.HasEnded(now)
}

// IsStartingSoon is true within an hour before the start.
func (o Occurrence) IsStartingSoon(now time.Time) bool {
	return !o.HasStarted(now) && o.StartTime.Sub(now) <= startingSoonWindow
}

// IsEndingSoon is true in the last 15 minutes of a running occurrence.
func (o Occurrence) IsEndingSoon(now time.Time) bool {
	return o.IsHappeningNow(now) && o.EndTime.Sub(now) <= endingSoonWindow
}

// Overlaps reports whether the occurrence intersects [start, end).
func (o Occurrence) Overlaps(start, end time.Time) bool {
	return o.StartTime.Before(end) && o.EndTime.After(start)
}

// Status is a coarse display state.
type Status string

const (
	StatusUpcoming     Status = "upcoming"
	StatusStartingSoon Status = "startingSoon"
	StatusHappening    Status = "happening"
	StatusEndingSoon   Status = "endingSoon"
	StatusEnded        Status = "ended"
)

// Status classifies the occurrence relative to now.
func (o Occurrence) Status(now time.Time) Status {
	switch {
	case o.HasEnded(now):
		return StatusEnded
	case o.IsEndingSoon(now):
		return StatusEndingSoon
	case o.IsHappeningNow(now):
		return StatusHappening
	case o.IsStartingSoon(now):
		return StatusStartingSoon
	default:
		return StatusUpcoming
	}
}
