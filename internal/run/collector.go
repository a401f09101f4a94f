package run

import (
	"container/heap"

	"github.com/tamlil/tamlil/internal/store"
)

// collector drains the scheduler's result channel and replays results in
// strict index order through emit. Workers resolve chunks out of order;
// a min-heap buffers early arrivals until their predecessors land.
type collector struct {
	emit func(*store.ChunkResult)

	pending resultHeap
	next    int
	all     []*store.ChunkResult
}

func newCollector(emit func(*store.ChunkResult)) *collector {
	if emit == nil {
		emit = func(*store.ChunkResult) {}
	}
	return &collector{emit: emit}
}

// drain consumes results until the channel closes.
func (c *collector) drain(in <-chan *store.ChunkResult) {
	for res := range in {
		c.all = append(c.all, res)
		heap.Push(&c.pending, res)
		for c.pending.Len() > 0 && c.pending[0].Index == c.next {
			c.emit(heap.Pop(&c.pending).(*store.ChunkResult))
			c.next++
		}
	}
	// Index gaps can only come from a run that planned chunks this run
	// never saw; flush whatever is buffered in heap order.
	for c.pending.Len() > 0 {
		c.emit(heap.Pop(&c.pending).(*store.ChunkResult))
	}
}

// results returns everything collected, in arrival order.
func (c *collector) results() []*store.ChunkResult { return c.all }

type resultHeap []*store.ChunkResult

func (h resultHeap) Len() int            { return len(h) }
func (h resultHeap) Less(i, j int) bool  { return h[i].Index < h[j].Index }
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x any)         { *h = append(*h, x.(*store.ChunkResult)) }
func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
