package reconciler

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shuttle-mr/shuttle/pkg/log"
	"github.com/shuttle-mr/shuttle/pkg/metrics"
	"github.com/shuttle-mr/shuttle/pkg/store"
)

// DefaultJobTTL is how long a job stays queryable after reaching a terminal
// state before the reconciler evicts it.
const DefaultJobTTL = 24 * time.Hour

// DefaultWorkerWindow is how long a worker may go without a heartbeat
// before it is considered down.
const DefaultWorkerWindow = 30 * time.Second

// Reconciler sweeps durable coordinator state: it evicts terminal jobs past
// their TTL and marks workers down when their heartbeat window lapses. It
// only runs on the Raft leader; a follower's reconciler should not be
// started.
type Reconciler struct {
	store         store.Store
	logger        zerolog.Logger
	jobTTL        time.Duration
	workerWindow  time.Duration
	onWorkerDown  func(workerID string)
	mu            sync.RWMutex
	stopCh        chan struct{}
}

// New creates a reconciler backed by st, using the default job TTL and
// worker heartbeat window.
func New(st store.Store) *Reconciler {
	return &Reconciler{
		store:        st,
		logger:       log.WithComponent("reconciler"),
		jobTTL:       DefaultJobTTL,
		workerWindow: DefaultWorkerWindow,
		stopCh:       make(chan struct{}),
	}
}

// OnWorkerDown registers a callback invoked once per sweep for each worker
// newly detected as down, so the stage scheduler can reassign its in-flight
// attempts.
func (r *Reconciler) OnWorkerDown(fn func(workerID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onWorkerDown = fn
}

// Start begins the reconciliation loop on a 10s ticker.
func (r *Reconciler) Start() {
	go r.run()
}

// Stop stops the reconciler.
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

func (r *Reconciler) run() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	r.logger.Info().Msg("reconciler started")

	for {
		select {
		case <-ticker.C:
			if err := r.reconcile(); err != nil {
				r.logger.Error().Err(err).Msg("reconciliation cycle failed")
			}
		case <-r.stopCh:
			r.logger.Info().Msg("reconciler stopped")
			return
		}
	}
}

// reconcile performs one sweep: dead-job GC followed by down-worker
// detection.
func (r *Reconciler) reconcile() error {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	if err := r.reconcileJobs(); err != nil {
		r.logger.Error().Err(err).Msg("failed to reconcile jobs")
	}
	if err := r.reconcileWorkers(); err != nil {
		r.logger.Error().Err(err).Msg("failed to reconcile workers")
	}
	return nil
}

// reconcileJobs evicts terminal jobs whose DeadAt TTL has passed.
func (r *Reconciler) reconcileJobs() error {
	jobs, err := r.store.ListJobs()
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	now := time.Now()
	for _, j := range jobs {
		if !j.State.Terminal() || j.DeadAt.IsZero() {
			continue
		}
		if now.Sub(j.DeadAt) < r.jobTTL {
			continue
		}

		r.logger.Info().
			Str("job_id", j.ID).
			Str("state", string(j.State)).
			Dur("age", now.Sub(j.DeadAt)).
			Msg("evicting terminal job past TTL")

		if err := r.store.DeleteJob(j.ID); err != nil {
			r.logger.Error().Err(err).Str("job_id", j.ID).Msg("failed to evict job")
			continue
		}
		metrics.DeadJobsEvictedTotal.Inc()
		if err := r.store.DeleteCheckpoint(j.ID); err != nil {
			r.logger.Debug().Err(err).Str("job_id", j.ID).Msg("no checkpoint to delete")
		}
	}

	return nil
}

// reconcileWorkers marks workers down once their heartbeat window lapses
// and invokes onWorkerDown for each newly-down worker.
func (r *Reconciler) reconcileWorkers() error {
	workers, err := r.store.ListWorkers()
	if err != nil {
		return fmt.Errorf("failed to list workers: %w", err)
	}

	for _, w := range workers {
		if w.Alive(r.workerWindow) {
			continue
		}

		r.logger.Warn().
			Str("worker_id", w.ID).
			Time("last_heartbeat", w.LastHeartbeat).
			Msg("worker heartbeat window lapsed, marking down")

		if err := r.store.DeleteWorker(w.ID); err != nil {
			r.logger.Error().Err(err).Str("worker_id", w.ID).Msg("failed to remove down worker")
			continue
		}

		r.mu.RLock()
		cb := r.onWorkerDown
		r.mu.RUnlock()
		if cb != nil {
			cb(w.ID)
		}
	}

	return nil
}
