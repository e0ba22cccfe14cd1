package view

import (
	"sort"
)

// ChangeType classifies a row change.
type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeDelete ChangeType = "delete"
	ChangeMove   ChangeType = "move"
	ChangeUpdate ChangeType = "update"
)

// SectionChange names an inserted or deleted section.
type SectionChange struct {
	Key   string `json:"key"`
	Index int    `json:"index"`
}

// RowChange describes one row. Deletes and move sources use index paths of
// the previous snapshot; inserts, move targets and updates use the new one.
type RowChange struct {
	Type ChangeType `json:"type"`
	UID  string     `json:"uid"`
	From *IndexPath `json:"from,omitempty"`
	To   *IndexPath `json:"to,omitempty"`
}

// ChangeSet is what a table consumer needs to animate from the previous
// snapshot to the current one.
type ChangeSet struct {
	View           string          `json:"view"`
	Version        uint64          `json:"version"`
	SectionInserts []SectionChange `json:"sectionInserts,omitempty"`
	SectionDeletes []SectionChange `json:"sectionDeletes,omitempty"`
	Rows           []RowChange     `json:"rows,omitempty"`
}

// Empty reports whether nothing changed.
func (c ChangeSet) Empty() bool {
	return len(c.SectionInserts) == 0 && len(c.SectionDeletes) == 0 && len(c.Rows) == 0
}

// Count returns the number of rows of a change type.
func (c ChangeSet) Count(t ChangeType) int {
	n := 0
	for _, r := range c.Rows {
		if r.Type == t {
			n++
		}
	}
	return n
}

type rowPos struct {
	path   IndexPath
	key    string
	global int
}

func positions(sections []Section) (map[string]rowPos, []string) {
	pos := make(map[string]rowPos)
	var order []string
	for si, s := range sections {
		for ri, it := range s.Items {
			uid := it.UID()
			pos[uid] = rowPos{path: IndexPath{si, ri}, key: s.Key, global: len(order)}
			order = append(order, uid)
		}
	}
	return pos, order
}

func ptr(p IndexPath) *IndexPath { return &p }

// diff computes the change set between two snapshots. Rows that persist in
// the same section and keep their order relative to the other persisting
// rows are stable; the rest become moves. A stable row whose content hash
// changed is an update.
func diff(name string, oldSecs []Section, oldHashes map[string]uint64, newSecs []Section, newHashes map[string]uint64) ChangeSet {
	cs := ChangeSet{View: name}

	oldKeys := make(map[string]int, len(oldSecs))
	for i, s := range oldSecs {
		oldKeys[s.Key] = i
	}
	newKeys := make(map[string]int, len(newSecs))
	for i, s := range newSecs {
		newKeys[s.Key] = i
		if _, ok := oldKeys[s.Key]; !ok {
			cs.SectionInserts = append(cs.SectionInserts, SectionChange{Key: s.Key, Index: i})
		}
	}
	for i, s := range oldSecs {
		if _, ok := newKeys[s.Key]; !ok {
			cs.SectionDeletes = append(cs.SectionDeletes, SectionChange{Key: s.Key, Index: i})
		}
	}

	oldPos, oldOrder := positions(oldSecs)
	newPos, newOrder := positions(newSecs)
	sectionKept := func(key string) bool {
		_, inOld := oldKeys[key]
		_, inNew := newKeys[key]
		return inOld && inNew
	}

	// candidates for stability, in old order
	var candidates []string
	for _, uid := range oldOrder {
		np, ok := newPos[uid]
		if ok && np.key == oldPos[uid].key && sectionKept(np.key) {
			candidates = append(candidates, uid)
		}
	}
	stable := longestIncreasing(candidates, func(uid string) int { return newPos[uid].global })

	for _, uid := range oldOrder {
		op := oldPos[uid]
		np, inNew := newPos[uid]
		switch {
		case !inNew:
			if sectionKept(op.key) {
				cs.Rows = append(cs.Rows, RowChange{Type: ChangeDelete, UID: uid, From: ptr(op.path)})
			}
		case stable[uid]:
			if oldHashes[uid] != newHashes[uid] {
				cs.Rows = append(cs.Rows, RowChange{Type: ChangeUpdate, UID: uid, From: ptr(op.path), To: ptr(np.path)})
			}
		case sectionKept(op.key) && sectionKept(np.key):
			cs.Rows = append(cs.Rows, RowChange{Type: ChangeMove, UID: uid, From: ptr(op.path), To: ptr(np.path)})
		default:
			// crossing an inserted or deleted section is a delete plus insert
			if sectionKept(op.key) {
				cs.Rows = append(cs.Rows, RowChange{Type: ChangeDelete, UID: uid, From: ptr(op.path)})
			}
			if sectionKept(np.key) {
				cs.Rows = append(cs.Rows, RowChange{Type: ChangeInsert, UID: uid, To: ptr(np.path)})
			}
		}
	}
	for _, uid := range newOrder {
		if _, inOld := oldPos[uid]; inOld {
			continue
		}
		np := newPos[uid]
		if sectionKept(np.key) {
			cs.Rows = append(cs.Rows, RowChange{Type: ChangeInsert, UID: uid, To: ptr(np.path)})
		}
	}
	return cs
}

// longestIncreasing returns the members of the longest subsequence of seq
// whose rank is strictly increasing.
func longestIncreasing(seq []string, rank func(string) int) map[string]bool {
	// tails[k] is the index into seq of the smallest tail of an increasing
	// run of length k+1.
	tails := make([]int, 0, len(seq))
	prev := make([]int, len(seq))
	for i, uid := range seq {
		r := rank(uid)
		k := sort.Search(len(tails), func(j int) bool { return rank(seq[tails[j]]) >= r })
		if k > 0 {
			prev[i] = tails[k-1]
		} else {
			prev[i] = -1
		}
		if k == len(tails) {
			tails = append(tails, i)
		} else {
			tails[k] = i
		}
	}

	out := make(map[string]bool, len(tails))
	if len(tails) == 0 {
		return out
	}
	for i := tails[len(tails)-1]; i >= 0; i = prev[i] {
		out[seq[i]] = true
	}
	return out
}
