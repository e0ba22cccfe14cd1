package view

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iBurnApp/iBurn-iOS/internal/model"
)

func TestItem_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(artItem("a1", "Temple"))
	require.NoError(t, err)

	var got struct {
		UID    string `json:"uid"`
		Type   string `json:"type"`
		Object struct {
			UID   string `json:"uid"`
			Title string `json:"title"`
		} `json:"object"`
		Metadata json.RawMessage `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(data, &got), string(data))
	assert.Equal(t, "art:a1", got.UID)
	assert.Equal(t, "art", got.Type)
	assert.Equal(t, "Temple", got.Object.Title)
	assert.NotEmpty(t, got.Metadata)
}

func TestItem_MarshalJSON_MatchesChangeUIDs(t *testing.T) {
	start := time.Date(2025, 8, 26, 13, 0, 0, 0, time.UTC)
	e := model.Event{DataObject: model.DataObject{UID: "e1", Title: "Yoga"}}
	occ := model.Occurrence{Event: e, OccurrenceID: 2, StartTime: start, EndTime: start.Add(time.Hour)}
	it := Item{Object: occ, Metadata: model.NewMetadata(model.TypeEvent, "e1")}

	v := newView(Definition{Name: "test", Source: SourceEvents, Group: TitleLetter, Less: ByTitle, SectionLess: LetterSections})
	cs := step(v, it)
	require.Len(t, cs.Rows, 1)

	data, err := json.Marshal(v.Snapshot())
	require.NoError(t, err)
	var sections []struct {
		Items []struct {
			UID string `json:"uid"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(data, &sections))
	require.Len(t, sections, 1)
	require.Len(t, sections[0].Items, 1)
	assert.Equal(t, cs.Rows[0].UID, sections[0].Items[0].UID)
}
