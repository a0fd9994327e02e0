package ranker

import (
	"container/heap"
	"sort"
)

// candidate is a scored document addressed by corpus ordinal.
type candidate struct {
	ord   int
	score float64
}

// outranks orders by score descending, then by corpus order.
func outranks(a, b candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.ord < b.ord
}

// selectTop returns the k best candidates in rank order. When k covers the
// whole slice it is sorted in place.
func selectTop(cands []candidate, k int) []candidate {
	if k <= 0 {
		return []candidate{}
	}
	if k >= len(cands) {
		sort.Slice(cands, func(i, j int) bool { return outranks(cands[i], cands[j]) })
		return cands
	}
	h := make(worstFirst, 0, k+1)
	for _, c := range cands {
		if len(h) == k {
			if !outranks(c, h[0]) {
				continue
			}
			heap.Pop(&h)
		}
		heap.Push(&h, c)
	}
	result := make([]candidate, len(h))
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&h).(candidate)
	}
	return result
}

// worstFirst is a heap whose root is the lowest-ranked candidate.
type worstFirst []candidate

func (h worstFirst) Len() int { return len(h) }

func (h worstFirst) Less(i, j int) bool { return outranks(h[j], h[i]) }

func (h worstFirst) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *worstFirst) Push(x interface{}) {
	*h = append(*h, x.(candidate))
}

func (h *worstFirst) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
