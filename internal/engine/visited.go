package engine

import (
	"github.com/RoaringBitmap/roaring/roaring64"
)

// visitedSet tracks the records one delete cascade already handled, per
// node name. Reliance chains and symmetric relations reach the same record
// more than once.
type visitedSet struct {
	byNode map[string]*roaring64.Bitmap
}

func newVisitedSet() *visitedSet {
	return &visitedSet{byNode: make(map[string]*roaring64.Bitmap)}
}

// Visit marks (node, id) and reports whether it was unmarked before.
func (v *visitedSet) Visit(node string, id int64) bool {
	bm, ok := v.byNode[node]
	if !ok {
		bm = roaring64.New()
		v.byNode[node] = bm
	}
	if bm.Contains(uint64(id)) {
		return false
	}
	bm.Add(uint64(id))
	return true
}

// Seen reports whether (node, id) was marked.
func (v *visitedSet) Seen(node string, id int64) bool {
	bm, ok := v.byNode[node]
	return ok && bm.Contains(uint64(id))
}

// Count returns the number of marked records of node.
func (v *visitedSet) Count(node string) uint64 {
	if bm, ok := v.byNode[node]; ok {
		return bm.GetCardinality()
	}
	return 0
}
