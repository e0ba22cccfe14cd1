package database

import (
	"fmt"

	"github.com/iBurnApp/iBurn-iOS/internal/model"
	"gorm.io/gorm"
)

// SearchIndexTable is the FTS5 table covering art, camps and events.
const SearchIndexTable = "search_index"

var objectTables = map[model.ObjectType]string{
	model.TypeArt:   "art_objects",
	model.TypeCamp:  "camp_objects",
	model.TypeEvent: "event_objects",
}

// CreateSearchIndex creates the FTS5 virtual table if it does not exist.
func CreateSearchIndex(db *gorm.DB) error {
	err := db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS ` + SearchIndexTable + ` USING fts5(
		uid UNINDEXED,
		object_type UNINDEXED,
		title,
		description,
		tokenize = 'porter unicode61'
	);`).Error
	if err != nil {
		return fmt.Errorf("failed to create search index: %w", err)
	}
	return nil
}

// RebuildSearchIndex rewrites the index rows of one object type from its
// table.
func RebuildSearchIndex(tx *gorm.DB, t model.ObjectType) error {
	table, ok := objectTables[t]
	if !ok {
		return fmt.Errorf("no table for object type %q", t)
	}
	if err := tx.Exec(`DELETE FROM `+SearchIndexTable+` WHERE object_type = ?`, string(t)).Error; err != nil {
		return fmt.Errorf("failed to clear %s search index: %w", t, err)
	}
	err := tx.Exec(`INSERT INTO `+SearchIndexTable+` (uid, object_type, title, description)
		SELECT uid, ?, title, COALESCE(description, '') FROM `+table, string(t)).Error
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", t, err)
	}
	return nil
}

// SearchHit is one row of an FTS query.
type SearchHit struct {
	UID        string
	ObjectType string
	Score      float64
}

// SearchIndex runs an FTS5 MATCH expression. Title matches weigh ten times
// description matches; lower scores are better.
func SearchIndex(db *gorm.DB, match string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = -1
	}
	var hits []SearchHit
	err := db.Raw(`SELECT uid, object_type, bm25(`+SearchIndexTable+`, 0.0, 0.0, 10.0, 1.0) AS score
		FROM `+SearchIndexTable+`
		WHERE `+SearchIndexTable+` MATCH ?
		ORDER BY score, title
		LIMIT ?`, match, limit).Scan(&hits).Error
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return hits, nil
}
