// Package shuffle implements the k-way merge primitive and the pile-based
// Shuffle Engine that turns many predecessor-stage sort files into one
// globally key-sorted stream per reduce partition.
//
// The merge primitive is a min-heap over the current head of each source
// iterator, advancing the source that produced the smallest key and
// re-pushing its next record.
package shuffle

import (
	"bytes"
	"container/heap"
	"fmt"
	"sync"
)

// SourceIterator is any ordered key/value stream a merge can consume — the
// pkg/sortfile.Iterator shape, kept as an interface so the merge can also
// run over test fixtures without touching real sorted files.
type SourceIterator interface {
	Done() bool
	Next()
	Key() []byte
	Value() []byte
	Err() error
}

type mergeItem struct {
	key, value []byte
	srcIndex   int
}

type mergeHeap []mergeItem

func (h mergeHeap) Len() int            { return len(h) }
func (h mergeHeap) Less(i, j int) bool  { return bytes.Compare(h[i].key, h[j].key) < 0 }
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(mergeItem)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// parallelInit bounds how many source iterators are primed concurrently
// during Merge construction — mirrors the original's ThreadPool(PARALLEL_LEVEL).
const parallelInit = 12

// MergeIterator yields records from many ordered SourceIterators in
// ascending key order.
type MergeIterator struct {
	sources []SourceIterator
	heap    mergeHeap
	err     error
	errFrom int
}

// Merge primes every source (advancing past any already-Done ones) and
// returns a MergeIterator over their combined output in ascending key
// order. Source initialization runs with bounded parallelism so a slow
// source doesn't serialize behind the others.
func Merge(sources []SourceIterator) *MergeIterator {
	m := &MergeIterator{sources: sources}

	type primed struct {
		idx      int
		done     bool
		err      error
	}
	results := make([]primed, len(sources))
	sem := make(chan struct{}, parallelInit)
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, src SourceIterator) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = primed{idx: i, done: src.Done(), err: src.Err()}
		}(i, src)
	}
	wg.Wait()

	for _, r := range results {
		if r.err != nil {
			m.err = fmt.Errorf("shuffle: merge source %d: %w", r.idx, r.err)
			m.errFrom = r.idx
			continue
		}
		if !r.done {
			src := sources[r.idx]
			heap.Push(&m.heap, mergeItem{key: src.Key(), value: src.Value(), srcIndex: r.idx})
		}
	}
	return m
}

// Done reports whether every source has been exhausted. A source whose read
// fails is dropped from the merge like an exhausted one; Err reports it.
func (m *MergeIterator) Done() bool {
	return len(m.heap) == 0
}

// Next advances the source that produced the current smallest key and
// re-inserts its next record, if any.
func (m *MergeIterator) Next() {
	if len(m.heap) == 0 {
		return
	}
	top := m.heap[0]
	src := m.sources[top.srcIndex]
	src.Next()
	heap.Pop(&m.heap)
	if !src.Done() {
		heap.Push(&m.heap, mergeItem{key: src.Key(), value: src.Value(), srcIndex: top.srcIndex})
	} else if err := src.Err(); err != nil {
		m.err = fmt.Errorf("shuffle: merge source %d: %w", top.srcIndex, err)
	}
}

// Key returns the current smallest key across all sources.
func (m *MergeIterator) Key() []byte { return m.heap[0].key }

// Value returns the value paired with the current Key.
func (m *MergeIterator) Value() []byte { return m.heap[0].value }

// Err returns the first error encountered across any source.
func (m *MergeIterator) Err() error { return m.err }
