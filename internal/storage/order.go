package storage

import (
	"cmp"
	"slices"
	"strings"

	"github.com/iBurnApp/iBurn-iOS/internal/model"
	"github.com/iBurnApp/iBurn-iOS/internal/util"
)

// SortOccurrences orders by start time, then title, then uid.
func SortOccurrences(occ []model.Occurrence) {
	slices.SortStableFunc(occ, func(a, b model.Occurrence) int {
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}
		if c := cmp.Compare(util.SortKey(a.Event.Title), util.SortKey(b.Event.Title)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID(), b.ID())
	})
}

// RankByTitle orders search results so that objects whose title holds every
// term come first, then by title. A limit <= 0 keeps everything.
func RankByTitle(objs []model.Object, terms []string, limit int) []model.Object {
	score := func(o model.Object) int {
		if util.MatchesAll(terms, o.Name()) {
			return 0
		}
		return 1
	}
	slices.SortStableFunc(objs, func(a, b model.Object) int {
		if c := cmp.Compare(score(a), score(b)); c != 0 {
			return c
		}
		if c := strings.Compare(util.SortKey(a.Name()), util.SortKey(b.Name())); c != 0 {
			return c
		}
		return strings.Compare(a.ID(), b.ID())
	})
	if limit > 0 && len(objs) > limit {
		objs = objs[:limit]
	}
	return objs
}
