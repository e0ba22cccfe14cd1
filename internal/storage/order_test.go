package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iBurnApp/iBurn-iOS/internal/model"
)

func occurrence(uid, title string, start time.Time) model.Occurrence {
	return model.Occurrence{
		Event:        model.Event{DataObject: model.DataObject{UID: uid, Title: title}},
		OccurrenceID: 1,
		StartTime:    start,
		EndTime:      start.Add(time.Hour),
	}
}

func TestSortOccurrences(t *testing.T) {
	t0 := time.Date(2025, 8, 25, 10, 0, 0, 0, time.UTC)
	occ := []model.Occurrence{
		occurrence("e3", "Zen", t0),
		occurrence("e1", "Late", t0.Add(time.Hour)),
		occurrence("e2", "art walk", t0),
	}
	SortOccurrences(occ)

	assert.Equal(t, "e2", occ[0].Event.UID)
	assert.Equal(t, "e3", occ[1].Event.UID)
	assert.Equal(t, "e1", occ[2].Event.UID)
}

func TestRankByTitle(t *testing.T) {
	objs := []model.Object{
		model.Camp{DataObject: model.DataObject{UID: "c1", Title: "Dusty Lounge", Description: "tea and chill"}},
		model.Art{DataObject: model.DataObject{UID: "a1", Title: "Tea Temple"}},
		model.Camp{DataObject: model.DataObject{UID: "c2", Title: "Abode", Description: "free tea"}},
	}

	got := RankByTitle(objs, []string{"tea"}, 0)
	assert.Equal(t, "a1", got[0].ID(), "title match ranks first")
	assert.Equal(t, "c2", got[1].ID())
	assert.Equal(t, "c1", got[2].ID())

	assert.Len(t, RankByTitle(got, []string{"tea"}, 2), 2)
}
