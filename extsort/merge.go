package extsort

import (
	"container/heap"
	"io"
)

// idSource yields ids in ascending order, returning io.EOF when drained.
type idSource interface {
	next() (uint64, error)
}

type mergeEntry struct {
	val uint64
	src idSource
}

type mergeHeap []mergeEntry

func (h mergeHeap) Len() int           { return len(h) }
func (h mergeHeap) Less(i, j int) bool { return h[i].val < h[j].val }
func (h mergeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)        { *h = append(*h, x.(mergeEntry)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// mergeSources performs an ascending k-way merge over the sources, dropping
// duplicates across sources, and yields each unique id exactly once.
// It returns the number of unique ids yielded.
func mergeSources(sources []idSource, yield func(uint64) error) (uint64, error) {
	h := make(mergeHeap, 0, len(sources))
	for _, src := range sources {
		val, err := src.next()
		if err == io.EOF {
			continue
		}
		if err != nil {
			return 0, err
		}
		h = append(h, mergeEntry{val: val, src: src})
	}
	heap.Init(&h)

	var (
		count uint64
		last  uint64
		any   bool
	)
	for h.Len() > 0 {
		e := h[0]
		if !any || e.val != last {
			if err := yield(e.val); err != nil {
				return count, err
			}
			last = e.val
			any = true
			count++
		}

		val, err := e.src.next()
		if err == io.EOF {
			heap.Pop(&h)
			continue
		}
		if err != nil {
			return count, err
		}
		h[0].val = val
		heap.Fix(&h, 0)
	}
	return count, nil
}
