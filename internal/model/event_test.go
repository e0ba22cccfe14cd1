package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOccurrence() Occurrence {
	start := time.Date(2025, 8, 27, 9, 0, 0, 0, time.UTC)
	return Occurrence{
		Event:        Event{DataObject: DataObject{UID: "ev1", Title: "Morning Yoga"}},
		OccurrenceID: 7,
		StartTime:    start,
		EndTime:      start.Add(90 * time.Minute),
	}
}

func TestOccurrence_ID(t *testing.T) {
	assert.Equal(t, "ev1_7", testOccurrence().ID())
}

func TestOccurrence_Status(t *testing.T) {
	o := testOccurrence()
	start := o.StartTime

	tests := []struct {
		name string
		now  time.Time
		want Status
	}{
		{"long before", start.Add(-3 * time.Hour), StatusUpcoming},
		{"within the hour", start.Add(-30 * time.Minute), StatusStartingSoon},
		{"exactly one hour before", start.Add(-time.Hour), StatusStartingSoon},
		{"at start", start, StatusHappening},
		{"middle", start.Add(45 * time.Minute), StatusHappening},
		{"last 15 minutes", start.Add(80 * time.Minute), StatusEndingSoon},
		{"at end", o.EndTime, StatusEnded},
		{"after", o.EndTime.Add(time.Minute), StatusEnded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, o.Status(tt.now))
		})
	}
}

func TestOccurrence_HappeningNowBounds(t *testing.T) {
	o := testOccurrence()
	assert.True(t, o.IsHappeningNow(o.StartTime))
	assert.False(t, o.IsHappeningNow(o.EndTime))
	assert.False(t, o.IsHappeningNow(o.StartTime.Add(-time.Nanosecond)))
	assert.Equal(t, 90*time.Minute, o.Duration())
}

func TestOccurrence_Overlaps(t *testing.T) {
	o := testOccurrence()
	day := time.Date(2025, 8, 27, 0, 0, 0, 0, time.UTC)

	assert.True(t, o.Overlaps(day, day.Add(24*time.Hour)))
	assert.False(t, o.Overlaps(day.Add(24*time.Hour), day.Add(48*time.Hour)))
	assert.False(t, o.Overlaps(o.EndTime, o.EndTime.Add(time.Hour)), "touching end does not overlap")
	assert.True(t, o.Overlaps(o.StartTime.Add(time.Minute), o.StartTime.Add(2*time.Minute)))
}

func TestEvent_ExpandOccurrences(t *testing.T) {
	start := time.Date(2025, 8, 27, 9, 0, 0, 0, time.UTC)
	e := Event{
		DataObject: DataObject{UID: "ev1"},
		Occurrences: []EventOccurrence{
			{ID: 1, EventUID: "ev1", StartTime: start, EndTime: start.Add(time.Hour)},
			{ID: 2, EventUID: "ev1", StartTime: start.Add(24 * time.Hour), EndTime: start.Add(25 * time.Hour)},
		},
	}
	occ := e.ExpandOccurrences()
	require.Len(t, occ, 2)
	assert.Equal(t, "ev1_1", occ[0].ID())
	assert.Equal(t, "ev1_2", occ[1].ID())
	assert.Equal(t, start.Add(24*time.Hour), occ[1].StartTime)
}

func TestParseEventType(t *testing.T) {
	assert.Equal(t, EventAdult, ParseEventType("adlt"))
	assert.Equal(t, EventLGBT, ParseEventType("lgbt"))
	assert.Equal(t, EventRide, ParseEventType("RIDE"))
	assert.Equal(t, EventOther, ParseEventType("zzz"))
	assert.Equal(t, EventOther, ParseEventType(""))
}

func TestEventType_Label(t *testing.T) {
	assert.Equal(t, "Adult-oriented", EventAdult.Label())
	assert.Equal(t, "Miscellaneous", EventType("nope").Label())
	for _, et := range AllEventTypes {
		assert.NotEmpty(t, et.Label(), "label for %s", et)
	}
}
