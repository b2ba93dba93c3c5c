// Package dagsched tracks the dependency graph between a Job's Nodes and
// reports which nodes are ready to run as their predecessors finish.
//
// Each node starts with an in-degree equal to its predecessor count,
// RemoveFinishedNode decrements the in-degree of each successor, and a
// node is available exactly when its in-degree reaches zero.
package dagsched

import (
	"sync"

	"github.com/shuttle-mr/shuttle/pkg/shuttleerr"
	"github.com/shuttle-mr/shuttle/pkg/types"
)

// dagNode is the internal adjacency record for one Job Node.
type dagNode struct {
	index int
	next  []int
	pre   []int
}

// Scheduler tracks a single Job's DAG and the in-degree of each node.
type Scheduler struct {
	mu       sync.Mutex
	nodes    []dagNode
	indegree []int
	left     int // nodes not yet finished
}

// New builds a Scheduler from a Job's Nodes, wiring each Node.Next into the
// adjacency lists and the predecessor-count in-degree array.
func New(nodes []*types.Node) *Scheduler {
	n := len(nodes)
	s := &Scheduler{
		nodes:    make([]dagNode, n),
		indegree: make([]int, n),
		left:     n,
	}
	for i, nd := range nodes {
		s.nodes[i].index = i
		s.nodes[i].next = append([]int(nil), nd.Next...)
	}
	for i := range s.nodes {
		for _, next := range s.nodes[i].next {
			s.nodes[next].pre = append(s.nodes[next].pre, i)
		}
	}
	for i := range s.nodes {
		s.indegree[i] = len(s.nodes[i].pre)
	}
	return s
}

// Validate reports whether the graph is acyclic by simulating the same
// in-degree-zero peeling traversal used by RemoveFinishedNode, without
// mutating scheduler state.
func (s *Scheduler) Validate() bool {
	s.mu.Lock()
	indegree := append([]int(nil), s.indegree...)
	nodes := s.nodes
	s.mu.Unlock()

	var working []int
	for {
		if len(working) > 0 {
			front := working[0]
			working = working[1:]
			for _, next := range nodes[front].next {
				indegree[next]--
			}
		}
		progressed := false
		for i, d := range indegree {
			if d == 0 {
				working = append(working, i)
				indegree[i] = -1
				progressed = true
			}
		}
		if !progressed && len(working) == 0 {
			break
		}
	}
	for _, d := range indegree {
		if d != -1 {
			return false
		}
	}
	return true
}

// AvailableNodes returns the indices of every node whose in-degree is
// currently zero: every predecessor has finished and the node itself has
// not. The Scheduler does not record which nodes have been started, so a
// node that is already running is returned as well.
func (s *Scheduler) AvailableNodes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for i, d := range s.indegree {
		if d == 0 {
			out = append(out, i)
		}
	}
	return out
}

// NextNodes returns the direct successors of node, or the DAG's Sources if
// node is -1.
func (s *Scheduler) NextNodes(node int) []int {
	if node == -1 {
		return s.Sources()
	}
	if node < 0 || node >= len(s.nodes) {
		return nil
	}
	return append([]int(nil), s.nodes[node].next...)
}

// RemoveFinishedNode marks node as permanently finished (in-degree set to
// the -1 sentinel) and decrements the in-degree of every direct successor.
// It returns ErrUnknownNode if node is out of range.
func (s *Scheduler) RemoveFinishedNode(node int) error {
	if node < 0 || node >= len(s.nodes) {
		return shuttleerr.ErrUnknownNode
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indegree[node] = -1
	for _, next := range s.nodes[node].next {
		s.indegree[next]--
	}
	s.left--
	return nil
}

// Sources returns the indices of every node with no predecessors.
func (s *Scheduler) Sources() []int {
	var out []int
	for _, nd := range s.nodes {
		if len(nd.pre) == 0 {
			out = append(out, nd.index)
		}
	}
	return out
}

// Destinations returns the indices of every node with no successors.
func (s *Scheduler) Destinations() []int {
	var out []int
	for _, nd := range s.nodes {
		if len(nd.next) == 0 {
			out = append(out, nd.index)
		}
	}
	return out
}

// Done reports whether every node has been removed via RemoveFinishedNode.
func (s *Scheduler) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.left == 0
}
