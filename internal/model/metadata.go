package model

import (
	"fmt"
	"time"
)

// VisitStatus tracks whether the user has been to a place.
type VisitStatus string

const (
	VisitUnvisited   VisitStatus = "unvisited"
	VisitVisited     VisitStatus = "visited"
	VisitWantToVisit VisitStatus = "wantToVisit"
)

// ParseVisitStatus validates a visit status string.
func ParseVisitStatus(s string) (VisitStatus, error) {
	switch VisitStatus(s) {
	case VisitUnvisited, VisitVisited, VisitWantToVisit:
		return VisitStatus(s), nil
	case "":
		return VisitUnvisited, nil
	default:
		return "", fmt.Errorf("unknown visit status: %q", s)
	}
}

// ObjectMetadata holds user state for an object. It lives apart from the
// object rows so that re-importing the data set leaves it untouched.
type ObjectMetadata struct {
	ObjectType  ObjectType  `json:"objectType" gorm:"primaryKey;size:16"`
	ObjectID    string      `json:"objectId" gorm:"primaryKey;size:64"`
	IsFavorite  bool        `json:"isFavorite" gorm:"index"`
	UserNotes   string      `json:"userNotes"`
	VisitStatus VisitStatus `json:"visitStatus" gorm:"size:16"`
	LastViewed  *time.Time  `json:"lastViewed,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

func (*ObjectMetadata) TableName() string {
	return "object_metadata"
}

// NewMetadata returns the default metadata for an object.
func NewMetadata(t ObjectType, id string) ObjectMetadata {
	return ObjectMetadata{ObjectType: t, ObjectID: id, VisitStatus: VisitUnvisited}
}

// FetchStatus is the state of the last import of a data type.
type FetchStatus string

const (
	FetchFetching FetchStatus = "fetching"
	FetchComplete FetchStatus = "complete"
	FetchFailed   FetchStatus = "failed"
)

// UpdateInfo records the last import of one data type.
type UpdateInfo struct {
	DataType    DataType    `json:"dataType" gorm:"primaryKey;size:16"`
	LastUpdated time.Time   `json:"lastUpdated"`
	FetchStatus FetchStatus `json:"fetchStatus" gorm:"size:16"`
	Version     int         `json:"version"`
	TotalCount  int         `json:"totalCount"`
	ContentHash string      `json:"contentHash" gorm:"size:16"`
	FetchedAt   time.Time   `json:"fetchedAt"`
	CreatedAt   time.Time   `json:"createdAt"`
}

func (*UpdateInfo) TableName() string {
	return "update_info"
}
