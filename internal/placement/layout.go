package placement

import (
	"github.com/google/btree"
)

// Range is a closed span of rack units
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Size returns the number of units in the range
func (r Range) Size() int {
	return r.End - r.Start + 1
}

// slot implements btree.Item ordering occupants by position, then id so that
// occupants sharing a start unit (only possible in unvalidated data) stay distinct.
type slot Occupant

func (a slot) Less(b btree.Item) bool {
	other := b.(slot)
	if a.Position == other.Position {
		return a.ID < other.ID
	}
	return a.Position < other.Position
}

// Layout is a read-only, position-ordered view of one rack's occupants.
// Zero-sized occupants claim no units and are left out.
type Layout struct {
	size int
	tree *btree.BTree
}

// NewLayout indexes occupants of a rack with the given height
func NewLayout(rackSize int, occupants []Occupant) *Layout {
	l := &Layout{size: rackSize, tree: btree.New(2)}
	for _, o := range occupants {
		if o.Size <= 0 || o.Position < 1 {
			continue
		}
		l.tree.ReplaceOrInsert(slot(o))
	}
	return l
}

// Size returns the rack height the layout was built for
func (l *Layout) Size() int {
	return l.size
}

// Len returns the number of indexed occupants
func (l *Layout) Len() int {
	return l.tree.Len()
}

// Occupants returns the occupants in ascending position order
func (l *Layout) Occupants() []Occupant {
	out := make([]Occupant, 0, l.tree.Len())
	l.tree.Ascend(func(i btree.Item) bool {
		out = append(out, Occupant(i.(slot)))
		return true
	})
	return out
}

// At returns the occupant covering unit u, if any
func (l *Layout) At(u int) (Occupant, bool) {
	var found Occupant
	var ok bool
	l.tree.DescendLessOrEqual(slot{Position: u + 1}, func(i btree.Item) bool {
		o := Occupant(i.(slot))
		if o.Position > u {
			return true
		}
		// occupants never overlap, so only the nearest one below can cover u
		if o.End() >= u {
			found, ok = o, true
		}
		return false
	})
	return found, ok
}

// Free returns the unoccupied ranges of the rack in ascending order
func (l *Layout) Free() []Range {
	var free []Range
	cursor := 1
	l.tree.Ascend(func(i btree.Item) bool {
		o := Occupant(i.(slot))
		if cursor > l.size {
			return false
		}
		if o.Position > cursor {
			free = append(free, Range{Start: cursor, End: min(o.Position-1, l.size)})
		}
		cursor = max(cursor, o.End()+1)
		return true
	})
	if cursor <= l.size {
		free = append(free, Range{Start: cursor, End: l.size})
	}
	return free
}

// FirstFit returns the lowest position where size units can be placed
func (l *Layout) FirstFit(size int) (int, bool) {
	if size <= 0 {
		return 1, l.size >= 1
	}
	for _, r := range l.Free() {
		if r.Size() >= size {
			return r.Start, true
		}
	}
	return 0, false
}
