/*
Package reconciler sweeps durable coordinator state on a fixed interval,
evicting terminal jobs past their TTL and detecting workers whose heartbeat
window has lapsed.

# Architecture

	┌────────────────────────────────────────────────────────────┐
	│                  Reconciliation Loop                       │
	│                   (Every 10 seconds)                       │
	└────────────────┬───────────────────────────────────────────┘
	                 │
	    ┌────────────┴────────────┐
	    │                         │
	    ▼                         ▼
	┌─────────────────┐   ┌──────────────────┐
	│ Reconcile Jobs  │   │ Reconcile Workers│
	└─────┬───────────┘   └──────┬───────────┘
	      │                      │
	      ▼                      ▼
	  Evict terminal        Check heartbeats,
	  jobs past TTL          drop down workers

# Job Eviction

A job's DeadAt is set once it reaches a terminal state (pkg/job sets this).
The reconciler deletes the job, and its checkpoint, once DeadAt is more than
DefaultJobTTL in the past. This gives clients a window to call ShowJob on a
finished job before it disappears, while bounding the store's growth.

# Worker Detection

A worker is down once its LastHeartbeat is older than DefaultWorkerWindow.
The reconciler removes it from the roster and invokes the OnWorkerDown
callback so the stage scheduler can reassign any attempts it was running;
the worker rejoins the roster on its next heartbeat.

# Usage

	rec := reconciler.New(st)
	rec.OnWorkerDown(func(workerID string) {
		scheduler.HandleWorkerDown(workerID)
	})
	rec.Start()
	defer rec.Stop()

Only the Raft leader should run a Reconciler; a follower has no business
evicting jobs or worker entries it does not own.

# Metrics

	shuttle_reconciliation_duration_seconds - time to complete one sweep
	shuttle_reconciliation_cycles_total     - total sweeps run

# See Also

  - pkg/job for job lifecycle and DeadAt
  - pkg/coordgroup for leader election
  - pkg/store for the durable state this package sweeps
*/
package reconciler
