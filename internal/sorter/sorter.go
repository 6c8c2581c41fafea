// Package sorter combines the per-segment value lists produced by the reader
// into one ascending sequence.
package sorter

import (
	"container/heap"
	"slices"
)

// Merge k-way merges lists that are each already sorted ascending. Ties are
// taken from the lower-indexed list first. The inputs are not modified.
func Merge(lists [][]uint64) []uint64 {
	total := 0
	for _, l := range lists {
		total += len(l)
	}
	out := make([]uint64, 0, total)

	h := make(cursorHeap, 0, len(lists))
	for i, l := range lists {
		if len(l) > 0 {
			h = append(h, cursor{list: i, vals: l})
		}
	}
	switch len(h) {
	case 0:
		return out
	case 1:
		return append(out, h[0].vals...)
	}
	heap.Init(&h)

	for len(h) > 0 {
		c := &h[0]
		out = append(out, c.vals[c.pos])
		c.pos++
		if c.pos == len(c.vals) {
			heap.Pop(&h)
		} else {
			heap.Fix(&h, 0)
		}
	}
	return out
}

// Sort returns the values of all lists in ascending order. Unlike Merge the
// lists need not be sorted.
func Sort(lists [][]uint64) []uint64 {
	for _, l := range lists {
		if !slices.IsSorted(l) {
			var all []uint64
			for _, l := range lists {
				all = append(all, l...)
			}
			slices.Sort(all)
			return all
		}
	}
	return Merge(lists)
}

type cursor struct {
	list int
	pos  int
	vals []uint64
}

type cursorHeap []cursor

func (h cursorHeap) Len() int { return len(h) }

func (h cursorHeap) Less(i, j int) bool {
	a, b := h[i].vals[h[i].pos], h[j].vals[h[j].pos]
	if a != b {
		return a < b
	}
	return h[i].list < h[j].list
}

func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x any) { *h = append(*h, x.(cursor)) }

func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}
