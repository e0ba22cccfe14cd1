package playadb

import (
	"context"
	"time"

	"github.com/iBurnApp/iBurn-iOS/internal/dispatcher"
	"github.com/iBurnApp/iBurn-iOS/internal/model"
)

// MetadataChange is the payload of TopicMetadata notifications.
type MetadataChange struct {
	ObjectType model.ObjectType     `json:"objectType"`
	ObjectID   string               `json:"objectId"`
	Metadata   model.ObjectMetadata `json:"metadata"`
}

// Metadata returns the user state of an object, defaults when none is stored.
func (db *DB) Metadata(ctx context.Context, t model.ObjectType, uid string) (model.ObjectMetadata, error) {
	return db.store.Metadata(ctx, t, uid)
}

// MetadataByType returns stored metadata for every object of a type.
func (db *DB) MetadataByType(ctx context.Context, t model.ObjectType) (map[string]model.ObjectMetadata, error) {
	return db.store.MetadataByType(ctx, t)
}

// Favorites returns favorited objects grouped by type in display order.
// Favorites whose object disappeared from the data set are skipped.
func (db *DB) Favorites(ctx context.Context) ([]model.Object, error) {
	mds, err := db.store.Favorites(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Object, 0, len(mds))
	for _, t := range model.ObjectTypes {
		for _, md := range mds {
			if md.ObjectType != t {
				continue
			}
			obj, err := db.Object(ctx, md.ObjectType, md.ObjectID)
			if err != nil {
				continue
			}
			out = append(out, obj)
		}
	}
	return out, nil
}

// IsFavorite reports whether the object is a favorite.
func (db *DB) IsFavorite(ctx context.Context, t model.ObjectType, uid string) (bool, error) {
	md, err := db.store.Metadata(ctx, t, uid)
	if err != nil {
		return false, err
	}
	return md.IsFavorite, nil
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (db *DB) ToggleFavorite(ctx context.Context, t model.ObjectType, uid string) (bool, error) {
	md, err := db.mutate(ctx, t, uid, func(md *model.ObjectMetadata) {
		md.IsFavorite = !md.IsFavorite
	})
	return md.IsFavorite, err
}

// SetFavorite sets the favorite flag.
func (db *DB) SetFavorite(ctx context.Context, t model.ObjectType, uid string, favorite bool) error {
	_, err := db.mutate(ctx, t, uid, func(md *model.ObjectMetadata) {
		md.IsFavorite = favorite
	})
	return err
}

// SetNotes replaces the user's notes.
func (db *DB) SetNotes(ctx context.Context, t model.ObjectType, uid, notes string) error {
	_, err := db.mutate(ctx, t, uid, func(md *model.ObjectMetadata) {
		md.UserNotes = notes
	})
	return err
}

// SetVisitStatus records whether the user has been there.
func (db *DB) SetVisitStatus(ctx context.Context, t model.ObjectType, uid string, status model.VisitStatus) error {
	if _, err := model.ParseVisitStatus(string(status)); err != nil {
		return err
	}
	_, err := db.mutate(ctx, t, uid, func(md *model.ObjectMetadata) {
		md.VisitStatus = status
	})
	return err
}

// MarkViewed stamps the last time the detail page was opened.
func (db *DB) MarkViewed(ctx context.Context, t model.ObjectType, uid string) error {
	now := time.Now().UTC()
	_, err := db.mutate(ctx, t, uid, func(md *model.ObjectMetadata) {
		md.LastViewed = &now
	})
	return err
}

// mutate loads, changes and saves metadata for an existing object, then
// publishes TopicMetadata.
func (db *DB) mutate(ctx context.Context, t model.ObjectType, uid string, change func(*model.ObjectMetadata)) (model.ObjectMetadata, error) {
	if _, err := db.Object(ctx, t, uid); err != nil {
		return model.ObjectMetadata{}, err
	}
	md, err := db.store.Metadata(ctx, t, uid)
	if err != nil {
		return model.ObjectMetadata{}, err
	}
	change(&md)
	if err := db.store.SaveMetadata(ctx, &md); err != nil {
		return model.ObjectMetadata{}, err
	}
	db.publish(dispatcher.TopicMetadata, MetadataChange{ObjectType: t, ObjectID: uid, Metadata: md})
	return md, nil
}
