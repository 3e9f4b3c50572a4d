package addrspace

import (
	"sort"
)

// Range is a single file-backed mapping in a process address space.
// The interval is half-open: [Start, End).
type Range struct {
	Start    uint64 `json:"start"`
	End      uint64 `json:"end"`
	Filename string `json:"filename"`
}

// Overlay is the reconstructed address space of one process: ranges sorted
// ascending by start address, pairwise non-overlapping.
type Overlay struct {
	ranges []Range
}

// Insert applies a new mapping on top of the current overlay. Like a real
// address space after a later mmap, the new range shadows whatever it
// overlaps: neighbors are truncated, fully covered ranges are dropped, and
// a range containing the new one is split around it. Empty ranges are
// ignored.
func (o *Overlay) Insert(r Range) {
	if r.Start >= r.End {
		return
	}
	next := make([]Range, 0, len(o.ranges)+1)
	inserted := false
	for _, cur := range o.ranges {
		switch {
		case cur.End <= r.Start:
			next = append(next, cur)
		case cur.Start < r.Start:
			tail := cur
			cur.End = r.Start
			next = append(next, cur)
			if tail.End > r.End {
				next = append(next, r)
				inserted = true
				tail.Start = r.End
				next = append(next, tail)
			}
		default:
			if !inserted {
				next = append(next, r)
				inserted = true
			}
			if cur.Start >= r.End {
				next = append(next, cur)
			} else if cur.End > r.End {
				cur.Start = r.End
				next = append(next, cur)
			}
		}
	}
	if !inserted {
		next = append(next, r)
	}
	o.ranges = next
}

// Find returns the range covering addr, if any.
func (o *Overlay) Find(addr uint64) (Range, bool) {
	pos := sort.Search(len(o.ranges), func(i int) bool {
		return o.ranges[i].Start > addr
	})
	if pos > 0 && o.ranges[pos-1].End > addr {
		return o.ranges[pos-1], true
	}

	return Range{}, false
}

// Clone returns a value-independent copy of the overlay.
func (o *Overlay) Clone() *Overlay {
	ranges := make([]Range, len(o.ranges))
	copy(ranges, o.ranges)

	return &Overlay{ranges: ranges}
}

// Ranges returns the current mappings in ascending start order.
func (o *Overlay) Ranges() []Range {
	ranges := make([]Range, len(o.ranges))
	copy(ranges, o.ranges)

	return ranges
}
