/*
Package metrics provides Prometheus metrics collection and exposition for shuttle.

The metrics package defines and registers all shuttle metrics using the Prometheus
client library, providing observability into jobs, work units, attempts, workers,
the Raft coordinator group and the reconciler. Metrics are exposed via HTTP endpoint
for scraping by Prometheus servers.

# Architecture

shuttle's metrics system follows Prometheus conventions:

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  │  - Automatic Go runtime metrics             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Types                   │          │
	│  │                                              │          │
	│  │  Gauge: Instant values (node count)         │          │
	│  │  Counter: Monotonic increases (requests)    │          │
	│  │  Histogram: Distributions (latency)         │          │
	│  │  Summary: Quantiles (percentiles)           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Jobs: Count by state, duration             │          │
	│  │  Units: Status, attempt duration            │          │
	│  │  Attempts: Duplicates, kills                │          │
	│  │  Workers: Count, slots in use               │          │
	│  │  Raft: Leader status, peers, apply time     │          │
	│  │  RPC: Request count, duration               │          │
	│  │  Shuffle: Pile build time, piles published  │          │
	│  │  Reconciler: Cycles, dead jobs evicted      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Prometheus Server                   │          │
	│  │  - Scrapes /metrics every 15s               │          │
	│  │  - Stores time series data                  │          │
	│  │  - Provides PromQL query interface          │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Metric Registry:
  - Global Prometheus DefaultRegistry
  - All metrics registered at package init
  - Automatic collection of Go runtime metrics
  - Thread-safe for concurrent updates

Gauge Metrics:
  - Instant value that can go up or down
  - Examples: jobs by state, worker count, Raft leader status
  - Operations: Set, Inc, Dec, Add, Sub

Counter Metrics:
  - Monotonically increasing value
  - Examples: duplicate attempts total, reconciliation cycles total
  - Operations: Inc, Add (cannot decrease)

Histogram Metrics:
  - Distribution of observed values
  - Buckets for latency percentiles (p50, p95, p99)
  - Examples: attempt duration, job duration
  - Includes: sum, count, buckets

Timer Helper:
  - Convenience wrapper for timing operations
  - Start timer, observe duration to histogram
  - Supports label values for histogram vectors

# Metrics Catalog

Job Metrics:

shuttle_jobs_total{state} (JobsTotal):
  - Type: Gauge
  - Description: Jobs in the store by state, set by Collector
  - Example: shuttle_jobs_total{state="running"} 2

shuttle_job_duration_seconds{state} (JobDuration):
  - Type: Histogram
  - Description: Wall-clock duration of a job, observed by pkg/job when it
    reaches a terminal state
  - Buckets: 1, 5, 30, 60, 300, 900, 3600, 14400

Unit and Attempt Metrics:

shuttle_units_total{node, status} (UnitsTotal):
  - Type: Gauge
  - Description: Work units by DAG node and status

shuttle_attempt_duration_seconds{node, outcome} (AttemptDuration):
  - Type: Histogram
  - Description: Duration of a finished attempt, outcome "done" or "failed",
    observed by pkg/stage
  - Buckets: Default Prometheus buckets

shuttle_duplicate_attempts_total{node} (DuplicateAttemptsTotal):
  - Type: Counter
  - Description: End-game duplicate attempts issued by pkg/stage

shuttle_killed_attempts_total{node} (KilledAttemptsTotal):
  - Type: Counter
  - Description: Attempts killed by pkg/stage's liveness monitor

Worker Metrics:

shuttle_workers_total (WorkersTotal):
  - Type: Gauge
  - Description: Registered workers, set by Collector

shuttle_worker_slots_used (WorkerSlotsUsed):
  - Type: Gauge
  - Description: Execution slots in use across all workers, set by Collector

Raft Metrics:

shuttle_raft_is_leader (RaftLeader):
  - Type: Gauge
  - Description: Whether this node is Raft leader (1=leader, 0=follower),
    set by Collector
  - Example: shuttle_raft_is_leader 1

shuttle_raft_peers_total (RaftPeers):
  - Type: Gauge
  - Description: Raft peers in the coordinator group, set by Collector

shuttle_raft_apply_duration_seconds (RaftApplyDuration):
  - Type: Histogram
  - Description: Time to apply a Raft log entry, observed by pkg/coordgroup

RPC Metrics:

shuttle_rpc_requests_total{method, status} (RPCRequestsTotal):
  - Type: Counter
  - Description: RPC requests by method and status

shuttle_rpc_request_duration_seconds{method} (RPCRequestDuration):
  - Type: Histogram
  - Description: RPC request duration in seconds
  - Buckets: Default Prometheus buckets

Shuffle Metrics:

shuttle_shuffle_pile_build_duration_seconds (ShufflePileBuildDuration):
  - Type: Histogram
  - Description: Time to build one shuffle pile

shuttle_shuffle_piles_published_total (ShufflePilesPublished):
  - Type: Counter
  - Description: Shuffle piles successfully published

Reconciler Metrics:

shuttle_reconciliation_duration_seconds (ReconciliationDuration):
  - Type: Histogram
  - Description: Reconciliation cycle duration, observed by pkg/reconciler

shuttle_reconciliation_cycles_total (ReconciliationCyclesTotal):
  - Type: Counter
  - Description: Reconciliation cycles completed

shuttle_dead_jobs_evicted_total (DeadJobsEvictedTotal):
  - Type: Counter
  - Description: Terminal jobs evicted by pkg/reconciler after their TTL

UnitsTotal, RPCRequestsTotal, RPCRequestDuration, ShufflePileBuildDuration
and ShufflePilesPublished are registered, but no package in this module
updates them, so they stay at zero.

# Usage

Updating Gauge Metrics:

	import "github.com/shuttle-mr/shuttle/pkg/metrics"

	// Set absolute value
	metrics.JobsTotal.WithLabelValues("running").Set(2)

	// Increment/decrement
	metrics.WorkersTotal.Inc()
	metrics.WorkersTotal.Dec()

Updating Counter Metrics:

	// Increment by 1
	metrics.ReconciliationCyclesTotal.Inc()

	// Add arbitrary value
	metrics.DuplicateAttemptsTotal.WithLabelValues("0").Add(1)

Recording Histogram Observations:

	// Direct observation
	metrics.AttemptDuration.WithLabelValues("0", "done").Observe(0.125) // 125ms

	// Using Timer helper
	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDuration(metrics.ReconciliationDuration)

Using Timer with Labels:

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDurationVec(metrics.JobDuration, "completed")

Complete Example:

	package main

	import (
		"net/http"
		"time"
		"github.com/shuttle-mr/shuttle/pkg/metrics"
	)

	func main() {
		// Update job and worker metrics
		metrics.JobsTotal.WithLabelValues("running").Set(2)
		metrics.JobsTotal.WithLabelValues("completed").Set(5)
		metrics.WorkersTotal.Set(10)
		metrics.WorkerSlotsUsed.Set(30)

		// Time an operation
		timer := metrics.NewTimer()
		sweep()
		timer.ObserveDuration(metrics.ReconciliationDuration)

		// Expose metrics endpoint
		http.Handle("/metrics", metrics.Handler())
		http.ListenAndServe(":9090", nil)
	}

	func sweep() {
		// Reconciliation logic
		time.Sleep(100 * time.Millisecond)
	}

# Integration Points

This package integrates with:

  - Collector (this package): polls pkg/store and Raft status for the job,
    worker and Raft gauges
  - pkg/job: Records job duration
  - pkg/stage: Records attempt duration, duplicate and killed attempts
  - pkg/coordgroup: Records Raft apply duration
  - pkg/reconciler: Tracks reconciliation cycles and dead-job evictions
  - Prometheus: Scrapes /metrics endpoint

# Design Patterns

Package Init Registration:
  - All metrics registered in init() function
  - MustRegister panics on duplicate registration
  - Ensures metrics available before main()
  - No runtime registration needed

Label Discipline:
  - Use WithLabelValues for cardinality-bounded labels
  - Avoid high-cardinality labels (IDs, timestamps)
  - Document label values in metric description
  - Keep label count low (< 5 per metric)

Timer Pattern:
  - Create timer at operation start
  - Defer or explicitly call ObserveDuration
  - Automatically calculates elapsed time
  - Supports both simple and vector histograms

Global Metrics:
  - Package-level variables for all metrics
  - Accessible from any shuttle package
  - Thread-safe concurrent updates
  - No initialization required by callers

# Performance Characteristics

Metric Update Overhead:
  - Gauge set/inc: ~50ns per operation
  - Counter inc: ~50ns per operation
  - Histogram observe: ~200ns per operation
  - Labels: +100ns per label value
  - Negligible impact on hot path

Memory Usage:
  - Per metric: ~1KB baseline
  - Per label combination: ~100 bytes
  - Histogram buckets: ~50 bytes each
  - Total: ~1-5MB for a typical shuttle coordinator

Scrape Performance:
  - Metrics gathering: ~1-5ms for full scrape
  - HTTP response: ~10ms for typical metric set
  - Recommendation: Scrape interval ≥ 15s
  - Concurrent scrapes: Safe (read-only)

Cardinality Management:
  - Low cardinality: role, status, state (< 10 values)
  - Medium cardinality: method, host (< 100 values)
  - Avoid: task IDs, timestamps (unbounded)
  - Best practice: Aggregate high-cardinality in logs

# Troubleshooting

Common Issues:

Missing Metrics:
  - Symptom: Metric not appearing in /metrics output
  - Check: Metric registered in init() function
  - Check: MustRegister called (panics if duplicate)
  - Solution: Verify metric variable is exported

High Cardinality:
  - Symptom: Prometheus memory usage grows
  - Cause: Using IDs or unbounded values as labels
  - Check: Label cardinality (count unique combinations)
  - Solution: Remove high-cardinality labels, aggregate differently

Histogram Bucket Mismatch:
  - Symptom: No data in desired percentiles
  - Cause: Buckets don't cover observed value range
  - Check: Histogram sum / count for average
  - Solution: Customize buckets for value range

Stale Metrics:
  - Symptom: Metrics not updating
  - Cause: Code not calling metric update methods
  - Check: Add logging around metric updates
  - Solution: Instrument code paths correctly

# Monitoring

Prometheus Queries (PromQL):

Job Health:
  - Running jobs: shuttle_jobs_total{state="running"}
  - Failed jobs: shuttle_jobs_total{state="failed"}
  - p95 job duration: histogram_quantile(0.95, shuttle_job_duration_seconds_bucket)

Attempt Health:
  - Failed attempt rate: rate(shuttle_attempt_duration_seconds_count{outcome="failed"}[5m])
  - Duplicate attempt rate: rate(shuttle_duplicate_attempts_total[5m])
  - Killed attempt rate: rate(shuttle_killed_attempts_total[5m])

Worker Capacity:
  - Registered workers: shuttle_workers_total
  - Slots in use: shuttle_worker_slots_used

Raft Health:
  - Has leader: max(shuttle_raft_is_leader) > 0
  - Leader changes: changes(shuttle_raft_is_leader[10m])
  - Peer count: shuttle_raft_peers_total
  - p95 apply latency: histogram_quantile(0.95, shuttle_raft_apply_duration_seconds_bucket)

# Alerting Rules

Recommended Prometheus alerts:

High Attempt Failure Rate:
  - Alert: rate(shuttle_attempt_duration_seconds_count{outcome="failed"}[5m]) > 0.1
  - Description: More than 0.1 attempts failing per second
  - Action: Check worker logs and the failing node's command

No Raft Leader:
  - Alert: max(shuttle_raft_is_leader) == 0
  - Description: Coordinator group has no Raft leader
  - Action: Check coordinator connectivity, quorum status

Frequent Leader Changes:
  - Alert: changes(shuttle_raft_is_leader[10m]) > 3
  - Description: Leader changed more than 3 times in 10 minutes
  - Action: Check network latency, coordinator load

# Grafana Dashboards

Recommended dashboard panels:

Job Overview:
  - Time series: Jobs by state (running, completed, failed, killed)
  - Heatmap: Job duration distribution

Attempts:
  - Time series: Attempt duration by outcome
  - Time series: Duplicate and killed attempts per second

Raft Health:
  - Single stat: Leader status (yes/no)
  - Single stat: Peer count
  - Time series: Leader changes

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
  - PromQL tutorial: https://prometheus.io/docs/prometheus/latest/querying/basics/
  - Histogram best practices: https://prometheus.io/docs/practices/histograms/
*/
package metrics
