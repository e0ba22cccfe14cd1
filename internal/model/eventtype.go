package model

import "strings"

// EventType is the short code used by the events feed.
type EventType string

const (
	EventCeremony    EventType = "cere"
	EventParty       EventType = "prty"
	EventWorkshop    EventType = "work"
	EventGame        EventType = "game"
	EventFood        EventType = "food"
	EventAdult       EventType = "adlt"
	EventPerformance EventType = "perf"
	EventCare        EventType = "care"
	EventFire        EventType = "fire"
	EventParade      EventType = "para"
	EventKid         EventType = "kid"
	EventNone        EventType = "none"
	EventOther       EventType = "othr"
	EventArts        EventType = "arts"
	EventTea         EventType = "tea"
	EventHealing     EventType = "heal"
	EventLGBT        EventType = "LGBT"
	EventLive        EventType = "live"
	EventRide        EventType = "RIDE"
	EventRepair      EventType = "repr"
	EventSustain     EventType = "sust"
	EventYoga        EventType = "yoga"
)

var eventTypeLabels = map[EventType]string{
	EventCeremony:    "Ritual/Ceremony",
	EventParty:       "Gathering/Party",
	EventWorkshop:    "Class/Workshop",
	EventGame:        "Games",
	EventFood:        "Food & Drink",
	EventAdult:       "Adult-oriented",
	EventPerformance: "Performance",
	EventCare:        "Self Care",
	EventFire:        "Fire/Spectacle",
	EventParade:      "Parade",
	EventKid:         "For Kids",
	EventNone:        "None",
	EventOther:       "Miscellaneous",
	EventArts:        "Arts & Crafts",
	EventTea:         "Tea",
	EventHealing:     "Healing/Massage/Spa",
	EventLGBT:        "LGBTQIA2S+",
	EventLive:        "Live Music",
	EventRide:        "Diversity & Inclusion",
	EventRepair:      "Repair",
	EventSustain:     "Sustainability",
	EventYoga:        "Yoga/Movement/Fitness",
}

// AllEventTypes lists every known code.
var AllEventTypes = []EventType{
	EventCeremony, EventParty, EventWorkshop, EventGame, EventFood, EventAdult,
	EventPerformance, EventCare, EventFire, EventParade, EventKid, EventNone,
	EventOther, EventArts, EventTea, EventHealing, EventLGBT, EventLive,
	EventRide, EventRepair, EventSustain, EventYoga,
}

// ParseEventType maps a feed code to a known type. Matching is
// case-insensitive; unknown codes become EventOther.
func ParseEventType(code string) EventType {
	code = strings.TrimSpace(code)
	for _, t := range AllEventTypes {
		if strings.EqualFold(string(t), code) {
			return t
		}
	}
	return EventOther
}

// Label is the human readable name.
func (t EventType) Label() string {
	if l, ok := eventTypeLabels[t]; ok {
		return l
	}
	return eventTypeLabels[EventOther]
}
