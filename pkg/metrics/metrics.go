package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Job metrics
	JobsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shuttle_jobs_total",
			Help: "Total number of jobs by state",
		},
		[]string{"state"},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shuttle_job_duration_seconds",
			Help:    "Wall-clock duration of a job from submit to terminal state",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 3600, 14400},
		},
		[]string{"state"},
	)

	// Stage / unit metrics
	UnitsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shuttle_units_total",
			Help: "Total number of work units by node and status",
		},
		[]string{"node", "status"},
	)

	AttemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shuttle_attempt_duration_seconds",
			Help:    "Duration of a completed attempt in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"node", "outcome"},
	)

	DuplicateAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shuttle_duplicate_attempts_total",
			Help: "Total number of end-game duplicate attempts issued",
		},
		[]string{"node"},
	)

	KilledAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shuttle_killed_attempts_total",
			Help: "Total number of attempts killed by the liveness monitor",
		},
		[]string{"node"},
	)

	// Worker roster metrics
	WorkersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shuttle_workers_total",
			Help: "Total number of registered workers",
		},
	)

	WorkerSlotsUsed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shuttle_worker_slots_used",
			Help: "Total number of worker execution slots currently in use",
		},
	)

	// Raft metrics
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shuttle_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shuttle_raft_peers_total",
			Help: "Total number of Raft peers in the coordinator group",
		},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shuttle_raft_apply_duration_seconds",
			Help:    "Time taken to apply a Raft log entry in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RPC metrics
	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shuttle_rpc_requests_total",
			Help: "Total number of RPC requests by method and status",
		},
		[]string{"method", "status"},
	)

	RPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shuttle_rpc_request_duration_seconds",
			Help:    "RPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Shuffle metrics
	ShufflePileBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shuttle_shuffle_pile_build_duration_seconds",
			Help:    "Time taken to build one shuffle pile",
			Buckets: prometheus.DefBuckets,
		},
	)

	ShufflePilesPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shuttle_shuffle_piles_published_total",
			Help: "Total number of shuffle piles successfully published",
		},
	)

	// Reconciler metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shuttle_reconciliation_duration_seconds",
			Help:    "Time taken for a reconciliation cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shuttle_reconciliation_cycles_total",
			Help: "Total number of reconciliation cycles completed",
		},
	)

	DeadJobsEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shuttle_dead_jobs_evicted_total",
			Help: "Total number of terminal jobs evicted from the dead-job table after their TTL",
		},
	)
)

func init() {
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(UnitsTotal)
	prometheus.MustRegister(AttemptDuration)
	prometheus.MustRegister(DuplicateAttemptsTotal)
	prometheus.MustRegister(KilledAttemptsTotal)
	prometheus.MustRegister(WorkersTotal)
	prometheus.MustRegister(WorkerSlotsUsed)
	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(RaftPeers)
	prometheus.MustRegister(RaftApplyDuration)
	prometheus.MustRegister(RPCRequestsTotal)
	prometheus.MustRegister(RPCRequestDuration)
	prometheus.MustRegister(ShufflePileBuildDuration)
	prometheus.MustRegister(ShufflePilesPublished)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationCyclesTotal)
	prometheus.MustRegister(DeadJobsEvictedTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
