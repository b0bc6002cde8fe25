package comp

import "image"

// A Region is a set of rectangles in surface-local coordinates. It is
// deliberately not kept minimal: rectangles may overlap, and unioning
// only prunes exact containment. Consumers tolerate over-coverage but
// never under-coverage.
type Region []image.Rectangle

// Union returns r with rect added. Rectangles already covered by rect
// are dropped, and rect is dropped if something already covers it.
func (r Region) Union(rect image.Rectangle) Region {
	rect = rect.Canon()
	if rect.Empty() {
		return r
	}

	out := r[:0]
	for _, have := range r {
		if have.In(rect) {
			continue
		}
		if rect.In(have) {
			return r
		}
		out = append(out, have)
	}
	return append(out, rect)
}

// UnionRegion returns r with every rectangle of other added.
func (r Region) UnionRegion(other Region) Region {
	for _, rect := range other {
		r = r.Union(rect)
	}
	return r
}

// Contains reports whether p falls inside the region.
func (r Region) Contains(p image.Point) bool {
	for _, rect := range r {
		if p.In(rect) {
			return true
		}
	}
	return false
}

// Bounds returns the smallest rectangle covering the whole region.
func (r Region) Bounds() image.Rectangle {
	var b image.Rectangle
	for _, rect := range r {
		b = b.Union(rect)
	}
	return b
}

// Empty reports whether the region covers no area.
func (r Region) Empty() bool {
	for _, rect := range r {
		if !rect.Empty() {
			return false
		}
	}
	return true
}

// Clone returns a copy that does not share backing storage with r.
func (r Region) Clone() Region {
	if r == nil {
		return nil
	}
	out := make(Region, len(r))
	copy(out, r)
	return out
}
