package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"Art", &Art{}, "art_objects"},
		{"Camp", &Camp{}, "camp_objects"},
		{"Event", &Event{}, "event_objects"},
		{"EventOccurrence", &EventOccurrence{}, "event_occurrences"},
		{"ObjectMetadata", &ObjectMetadata{}, "object_metadata"},
		{"UpdateInfo", &UpdateInfo{}, "update_info"},
		{"MapPoint", &MapPoint{}, "map_points"},
		{"Breadcrumb", &Breadcrumb{}, "breadcrumbs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestParseObjectType(t *testing.T) {
	tests := []struct {
		in      string
		want    ObjectType
		wantErr bool
	}{
		{"art", TypeArt, false},
		{"Camps", TypeCamp, false},
		{" event ", TypeEvent, false},
		{"events", TypeEvent, false},
		{"bike", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseObjectType(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDataType_ObjectType(t *testing.T) {
	assert.Equal(t, TypeArt, DataArt.ObjectType())
	assert.Equal(t, TypeCamp, DataCamps.ObjectType())
	assert.Equal(t, TypeEvent, DataEvents.ObjectType())
	assert.Equal(t, ObjectType(""), DataPoints.ObjectType())
}

func TestDataObject_Location(t *testing.T) {
	o := DataObject{UID: "a", Latitude: 40.7866, Longitude: -119.2066}
	assert.True(t, o.HasLocation())

	p, ok := o.Location()
	require.True(t, ok)
	c, ok := p.Coordinates()
	require.True(t, ok)
	assert.Equal(t, -119.2066, c.X)
	assert.Equal(t, 40.7866, c.Y)

	empty := DataObject{UID: "b"}
	assert.False(t, empty.HasLocation())
	_, ok = empty.Location()
	assert.False(t, ok)
	_, _, ok = empty.Coordinates()
	assert.False(t, ok)
}

func TestObjectInterface(t *testing.T) {
	objects := []Object{
		Art{DataObject: DataObject{UID: "art1", Title: "Temple"}},
		Camp{DataObject: DataObject{UID: "camp1", Title: "Camp"}},
		Event{DataObject: DataObject{UID: "ev1", Title: "Party"}},
	}
	assert.Equal(t, TypeArt, objects[0].Type())
	assert.Equal(t, TypeCamp, objects[1].Type())
	assert.Equal(t, TypeEvent, objects[2].Type())
	assert.Equal(t, "Temple", objects[0].Name())
	assert.Equal(t, "camp1", objects[1].ID())
}

func TestEvent_HostUID(t *testing.T) {
	e := Event{HostedByCamp: "camp1", LocatedAtArt: "art1"}
	typ, uid, ok := e.HostUID()
	require.True(t, ok)
	assert.Equal(t, TypeCamp, typ, "camp takes precedence")
	assert.Equal(t, "camp1", uid)

	e = Event{LocatedAtArt: "art1"}
	typ, uid, ok = e.HostUID()
	require.True(t, ok)
	assert.Equal(t, TypeArt, typ)
	assert.Equal(t, "art1", uid)

	_, _, ok = Event{}.HostUID()
	assert.False(t, ok)
}

func TestParseVisitStatus(t *testing.T) {
	s, err := ParseVisitStatus("visited")
	require.NoError(t, err)
	assert.Equal(t, VisitVisited, s)

	s, err = ParseVisitStatus("")
	require.NoError(t, err)
	assert.Equal(t, VisitUnvisited, s)

	_, err = ParseVisitStatus("maybe")
	assert.Error(t, err)
}

func TestBreadcrumb_LatLng(t *testing.T) {
	b := Breadcrumb{Latitude: 1, Longitude: 2, Timestamp: time.Now()}
	ll := b.LatLng()
	assert.Equal(t, 1.0, ll.Lat)
	assert.Equal(t, 2.0, ll.Lon)
}
