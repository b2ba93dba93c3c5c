package metrics

import (
	"time"

	"github.com/shuttle-mr/shuttle/pkg/store"
	"github.com/shuttle-mr/shuttle/pkg/types"
)

// RaftStats is the subset of coordgroup.Manager's Raft status this
// collector polls; kept as an interface so pkg/metrics does not need to
// import pkg/coordgroup directly.
type RaftStats interface {
	IsLeader() bool
	Peers() int
}

// Collector periodically samples durable coordinator state (jobs, worker
// roster, Raft status) into the package's gauges.
type Collector struct {
	store  store.Store
	raft   RaftStats
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store, raft RaftStats) *Collector {
	return &Collector{store: st, raft: raft, stopCh: make(chan struct{})}
}

// Start begins collecting metrics on a 15s ticker.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectJobMetrics()
	c.collectWorkerMetrics()
	c.collectRaftMetrics()
}

func (c *Collector) collectJobMetrics() {
	jobs, err := c.store.ListJobs()
	if err != nil {
		return
	}
	counts := make(map[types.JobState]int)
	for _, j := range jobs {
		counts[j.State]++
	}
	for state, count := range counts {
		JobsTotal.WithLabelValues(string(state)).Set(float64(count))
	}
}

func (c *Collector) collectWorkerMetrics() {
	workers, err := c.store.ListWorkers()
	if err != nil {
		return
	}
	used := 0
	for _, w := range workers {
		used += w.UsedSlots
	}
	WorkersTotal.Set(float64(len(workers)))
	WorkerSlotsUsed.Set(float64(used))
}

func (c *Collector) collectRaftMetrics() {
	if c.raft == nil {
		return
	}
	if c.raft.IsLeader() {
		RaftLeader.Set(1)
	} else {
		RaftLeader.Set(0)
	}
	RaftPeers.Set(float64(c.raft.Peers()))
}
