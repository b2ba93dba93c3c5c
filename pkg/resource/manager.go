// Package resource tracks which work units of a Node are pending,
// allocated or done, and how to split a Node's input into units in the
// first place.
//
// A single Manager handles all three split strategies (Kind) behind one
// struct; the split itself is done once, by the NewID, NewBlock or NewNLine
// constructor, rather than by three separate implementations of a shared
// interface.
package resource

import (
	"sync"

	"github.com/shuttle-mr/shuttle/pkg/shuttleerr"
	"github.com/shuttle-mr/shuttle/pkg/types"
)

// Item is one schedulable unit tracked by a Manager.
type Item struct {
	No         int
	Attempt    int
	Status     Status
	InputPath  string
	Offset     int64
	Size       int64
	LineStart  int64
	LineCount  int64
	Allocated  int // total number of attempts ever allocated for this item
}

// Status is the lifecycle state of an Item.
type Status int

const (
	StatusPending Status = iota
	StatusAllocated
	StatusDone
)

// Manager tracks the split of one Node's input into Items and which are
// pending, allocated or done. Construct with NewID, NewBlock or NewNLine
// depending on the Node's types.ResourceKind.
type Manager struct {
	mu         sync.Mutex
	kind       types.ResourceKind
	pending    []*Item // ordered queue, front = next to allocate
	allocated  map[int]*Item
	done       map[int]*Item
	byNo       map[int]*Item
}

func newManager(kind types.ResourceKind, items []*Item) *Manager {
	m := &Manager{
		kind:      kind,
		allocated: make(map[int]*Item),
		done:      make(map[int]*Item),
		byNo:      make(map[int]*Item),
	}
	for _, it := range items {
		m.pending = append(m.pending, it)
		m.byNo[it.No] = it
	}
	return m
}

// NewID builds a Manager of n bare-integer items (ResourceKindID): one unit
// per integer 0..n-1, no input file association.
func NewID(n int) *Manager {
	items := make([]*Item, n)
	for i := 0; i < n; i++ {
		items[i] = &Item{No: i, Status: StatusPending}
	}
	return newManager(types.ResourceKindID, items)
}

// NewBlock builds a Manager that splits inputs into byte-range items of at
// most splitSize bytes each (ResourceKindBlock). sizes gives the byte size
// of each entry in paths, in order.
func NewBlock(paths []string, sizes []int64, splitSize int64) *Manager {
	var items []*Item
	no := 0
	for i, path := range paths {
		size := sizes[i]
		if size == 0 {
			items = append(items, &Item{No: no, Status: StatusPending, InputPath: path, Offset: 0, Size: 0})
			no++
			continue
		}
		for off := int64(0); off < size; off += splitSize {
			length := splitSize
			if off+length > size {
				length = size - off
			}
			items = append(items, &Item{No: no, Status: StatusPending, InputPath: path, Offset: off, Size: length})
			no++
		}
	}
	return newManager(types.ResourceKindBlock, items)
}

// NewNLine builds a Manager that splits inputs into fixed-line-count items
// (ResourceKindNLine). lineCounts gives the total line count of each entry
// in paths, in order.
func NewNLine(paths []string, lineCounts []int64, linesPerUnit int64) *Manager {
	var items []*Item
	no := 0
	for i, path := range paths {
		total := lineCounts[i]
		for start := int64(0); start < total; start += linesPerUnit {
			count := linesPerUnit
			if start+count > total {
				count = total - start
			}
			items = append(items, &Item{No: no, Status: StatusPending, InputPath: path, LineStart: start, LineCount: count})
			no++
		}
	}
	return newManager(types.ResourceKindNLine, items)
}

// Kind reports which split strategy this Manager was built with.
func (m *Manager) Kind() types.ResourceKind { return m.kind }

// Acquire pops the front pending item, marks it allocated with the given
// attempt number, and returns it. It returns ErrNoUnitsAvailable if nothing
// is pending.
func (m *Manager) Acquire(attempt int) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return nil, shuttleerr.ErrNoUnitsAvailable
	}
	it := m.pending[0]
	m.pending = m.pending[1:]
	it.Status = StatusAllocated
	it.Attempt = attempt
	it.Allocated++
	m.allocated[it.No] = it
	return it, nil
}

// AcquireSpecific allocates a specific item by number regardless of queue
// order — used by the Stage Controller's end-game to issue duplicate
// attempts against items already running.
func (m *Manager) AcquireSpecific(no, attempt int) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.byNo[no]
	if !ok {
		return nil, shuttleerr.ErrUnknownUnit
	}
	cp := *it
	cp.Attempt = attempt
	cp.Status = StatusAllocated
	it.Allocated++
	return &cp, nil
}

// Check returns the current tracked state of item no without allocating it.
func (m *Manager) Check(no int) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.byNo[no]
	if !ok {
		return nil, shuttleerr.ErrUnknownUnit
	}
	cp := *it
	return &cp, nil
}

// Return puts item no back at the front of the pending queue — used when an
// attempt fails or its worker is declared dead.
func (m *Manager) Return(no int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.byNo[no]
	if !ok {
		return shuttleerr.ErrUnknownUnit
	}
	if it.Status == StatusDone {
		return nil
	}
	it.Status = StatusPending
	delete(m.allocated, no)
	m.pending = append([]*Item{it}, m.pending...)
	return nil
}

// Complete marks item no done, removing it from the allocated set. It
// reports whether this was the item's first completion (the
// compare-and-set spec.md §4.1 requires: later duplicate completions must
// observe false).
func (m *Manager) Complete(no int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.byNo[no]
	if !ok {
		return false, shuttleerr.ErrUnknownUnit
	}
	first := it.Status != StatusDone
	it.Status = StatusDone
	delete(m.allocated, no)
	m.done[no] = it
	return first, nil
}

// IsAllocated reports whether item no is currently allocated to a running
// attempt.
func (m *Manager) IsAllocated(no int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.allocated[no]
	return ok
}

// IsDone reports whether item no has completed.
func (m *Manager) IsDone(no int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.done[no]
	return ok
}

// SumOfItem, Pending, Allocated and Done report the Manager's counters for
// progress reporting (ShowJob's task_overview).
func (m *Manager) SumOfItem() int { m.mu.Lock(); defer m.mu.Unlock(); return len(m.byNo) }
func (m *Manager) Pending() int   { m.mu.Lock(); defer m.mu.Unlock(); return len(m.pending) }
func (m *Manager) Allocated() int { m.mu.Lock(); defer m.mu.Unlock(); return len(m.allocated) }
func (m *Manager) Done() int      { m.mu.Lock(); defer m.mu.Unlock(); return len(m.done) }

// Dump returns a snapshot of every tracked item, for Raft snapshotting.
func (m *Manager) Dump() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Item, 0, len(m.byNo))
	for _, it := range m.byNo {
		out = append(out, *it)
	}
	return out
}

// Load rebuilds Manager state from a Dump snapshot, for Raft restore.
func Load(kind types.ResourceKind, items []Item) *Manager {
	ptrs := make([]*Item, len(items))
	for i := range items {
		cp := items[i]
		ptrs[i] = &cp
	}
	m := newManager(kind, nil)
	m.byNo = make(map[int]*Item, len(ptrs))
	for _, it := range ptrs {
		m.byNo[it.No] = it
		switch it.Status {
		case StatusPending:
			m.pending = append(m.pending, it)
		case StatusAllocated:
			m.allocated[it.No] = it
		case StatusDone:
			m.done[it.No] = it
		}
	}
	return m
}
