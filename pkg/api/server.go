package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/shuttle-mr/shuttle/pkg/coordgroup"
	"github.com/shuttle-mr/shuttle/pkg/dfs"
	"github.com/shuttle-mr/shuttle/pkg/events"
	"github.com/shuttle-mr/shuttle/pkg/job"
	"github.com/shuttle-mr/shuttle/pkg/log"
	"github.com/shuttle-mr/shuttle/pkg/nameservice"
	"github.com/shuttle-mr/shuttle/pkg/rpc"
	"github.com/shuttle-mr/shuttle/pkg/security"
	"github.com/shuttle-mr/shuttle/pkg/shuttleerr"
	"github.com/shuttle-mr/shuttle/pkg/stage"
	"github.com/shuttle-mr/shuttle/pkg/types"
)

// Server implements rpc.CoordinatorServer: the leader's gRPC surface for
// job submission, the worker pull loop, and cluster introspection. It owns
// one job.Tracker per non-terminal job, keeping each node's stage.Controller
// alive in memory for the life of the job.
type Server struct {
	manager  *coordgroup.Manager
	registry *nameservice.Registry
	fs       dfs.FileSystem
	grpcSrv  *grpc.Server
	log      zerolog.Logger

	mu       sync.RWMutex
	trackers map[string]*job.Tracker
}

// NewServer builds a Server over mgr, publishing leader changes through
// registry and reading job input through fs. It serves mTLS once the
// coordinator has provisioned itself a certificate, and plaintext before
// that (first boot, ahead of Bootstrap/initializeCA).
func NewServer(mgr *coordgroup.Manager, registry *nameservice.Registry, fs dfs.FileSystem) (*Server, error) {
	opts, err := serverCredentials(mgr.NodeID())
	if err != nil {
		return nil, err
	}

	return &Server{
		manager:  mgr,
		registry: registry,
		fs:       fs,
		grpcSrv:  grpc.NewServer(opts...),
		log:      log.WithComponent("api"),
		trackers: make(map[string]*job.Tracker),
	}, nil
}

func serverCredentials(nodeID string) ([]grpc.ServerOption, error) {
	certDir, err := security.GetCertDir("coordinator", nodeID)
	if err != nil {
		return nil, fmt.Errorf("get cert directory: %w", err)
	}
	if !security.CertExists(certDir) {
		log.Logger.Warn().Str("component", "api").Msg("no coordinator certificate yet, serving without transport security")
		return nil, nil
	}

	cert, err := security.LoadCertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("load coordinator certificate: %w", err)
	}
	caCert, err := security.LoadCACertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("load CA certificate: %w", err)
	}
	certPool := x509.NewCertPool()
	certPool.AddCert(caCert)

	tlsConfig := &tls.Config{
		ClientAuth:   tls.RequestClientCert,
		Certificates: []tls.Certificate{*cert},
		ClientCAs:    certPool,
		MinVersion:   tls.VersionTLS13,
	}
	return []grpc.ServerOption{grpc.Creds(credentials.NewTLS(tlsConfig))}, nil
}

// Start listens on addr and serves until the listener closes or Stop is
// called. It blocks; callers run it in a goroutine.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	rpc.RegisterCoordinatorServer(s.grpcSrv, s)
	s.log.Info().Str("addr", addr).Msg("coordinator rpc server listening")
	return s.grpcSrv.Serve(lis)
}

// Stop gracefully drains in-flight RPCs and shuts down the listener.
func (s *Server) Stop() {
	if s.grpcSrv != nil {
		s.grpcSrv.GracefulStop()
	}
}

func (s *Server) ensureLeader() error {
	if s.manager.IsLeader() {
		return nil
	}
	if s.registry != nil {
		if leader, ok := s.registry.Leader(); ok && leader != "" {
			return fmt.Errorf("%w, current leader at %s", shuttleerr.ErrNotLeader, leader)
		}
	}
	return shuttleerr.ErrNotLeader
}

func defaultStageConfig() stage.Config {
	return stage.Config{
		RetryBudget:       3,
		AllowDuplicates:   true,
		DuplicateCap:      5,
		NearlyFinishedPct: 0.95,
		BootstrapInterval: 30 * time.Second,
	}
}

func eventForJobState(state types.JobState) events.EventType {
	switch state {
	case types.JobStateFailed:
		return events.EventJobFailed
	case types.JobStateKilled:
		return events.EventJobKilled
	default:
		return events.EventJobCompleted
	}
}

func (s *Server) setTracker(jobID string, t *job.Tracker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackers[jobID] = t
}

func (s *Server) getTracker(jobID string) *job.Tracker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trackers[jobID]
}

func (s *Server) removeTracker(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trackers, jobID)
}

// SubmitJob validates and persists a new Job, builds one stage.Controller
// per DAG node, wires them into a job.Tracker, and starts it.
func (s *Server) SubmitJob(ctx context.Context, req *rpc.SubmitJobRequest) (*rpc.SubmitJobResponse, error) {
	if err := s.ensureLeader(); err != nil {
		return nil, err
	}
	if req.Job == nil || len(req.Job.Nodes) == 0 {
		return nil, fmt.Errorf("job must declare at least one dag node")
	}

	j := req.Job
	j.ID = uuid.New().String()
	j.State = types.JobStatePending
	j.CreatedAt = time.Now()

	stages := make([]*stage.Controller, len(j.Nodes))
	for i, node := range j.Nodes {
		node.Index = i
		resourceMgr, err := buildResourceManager(s.fs, node)
		if err != nil {
			return nil, fmt.Errorf("node %d (%s): %w", i, node.Name, err)
		}
		stages[i] = stage.New(i, resourceMgr.SumOfItem(), resourceMgr, defaultStageConfig(),
			coordgroup.NewLoggingRuntime(j.ID), coordgroup.NewWorkerRPC(j.ID, i), s.log)
	}

	tracker := job.New(j, stages)
	tracker.OnFinished(func(finished *types.Job) {
		if err := s.manager.UpdateJob(finished); err != nil {
			s.log.Error().Err(err).Str("job_id", finished.ID).Msg("persist finished job")
		}
		if err := s.manager.DeleteCheckpoint(finished.ID); err != nil {
			s.log.Debug().Err(err).Str("job_id", finished.ID).Msg("delete checkpoint")
		}
		s.manager.PublishEvent(&events.Event{
			Type:    eventForJobState(finished.State),
			Message: fmt.Sprintf("job %s reached state %s", finished.ID, finished.State),
		})
		s.removeTracker(finished.ID)
	})

	if err := s.manager.CreateJob(j); err != nil {
		return nil, fmt.Errorf("persist job: %w", err)
	}
	s.setTracker(j.ID, tracker)

	if err := tracker.Start(); err != nil {
		s.removeTracker(j.ID)
		return nil, fmt.Errorf("start job: %w", err)
	}
	if err := s.manager.UpdateJob(tracker.GetJob()); err != nil {
		s.log.Error().Err(err).Str("job_id", j.ID).Msg("persist started job")
	}

	s.manager.PublishEvent(&events.Event{Type: events.EventJobSubmitted, Message: fmt.Sprintf("job %s submitted", j.ID)})

	return &rpc.SubmitJobResponse{JobID: j.ID}, nil
}

// ListJobs returns the full job roster from durable storage.
func (s *Server) ListJobs(ctx context.Context, req *rpc.ListJobsRequest) (*rpc.ListJobsResponse, error) {
	jobs, err := s.manager.ListJobs()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return &rpc.ListJobsResponse{Jobs: jobs}, nil
}

// ShowJob returns one Job plus its live per-node progress, if its tracker
// is still resident (non-terminal or not yet reaped).
func (s *Server) ShowJob(ctx context.Context, req *rpc.ShowJobRequest) (*rpc.ShowJobResponse, error) {
	j, err := s.manager.GetJob(req.JobID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", shuttleerr.ErrJobNotFound, req.JobID)
	}

	var overview []rpc.NodeOverview
	if tracker := s.getTracker(req.JobID); tracker != nil {
		j = tracker.GetJob()
		for _, o := range tracker.GetTaskOverview() {
			overview = append(overview, rpc.NodeOverview{
				NodeIndex: o.NodeIndex,
				NodeName:  o.NodeName,
				State:     string(o.Stats.State),
				Total:     o.Stats.Total,
				Pending:   o.Stats.Pending,
				Running:   o.Stats.Running,
				Done:      o.Stats.Done,
				Failed:    o.Stats.Failed,
				Killed:    o.Stats.Killed,
			})
		}
	}

	return &rpc.ShowJobResponse{Job: j, Overview: overview}, nil
}

// KillJob terminates a job's resident tracker. A job with no resident
// tracker is either already terminal or not ours to kill.
func (s *Server) KillJob(ctx context.Context, req *rpc.KillJobRequest) (*rpc.KillJobResponse, error) {
	if err := s.ensureLeader(); err != nil {
		return nil, err
	}
	tracker := s.getTracker(req.JobID)
	if tracker == nil {
		return nil, fmt.Errorf("%w: %s", shuttleerr.ErrJobNotFound, req.JobID)
	}
	if err := tracker.Kill(); err != nil {
		return nil, fmt.Errorf("kill job: %w", err)
	}
	return &rpc.KillJobResponse{}, nil
}

// AssignTask is a worker pull: it routes to the job's tracker and the
// requested node's stage, returning Available=false rather than an error
// when the stage simply has nothing left to hand out right now.
func (s *Server) AssignTask(ctx context.Context, req *rpc.AssignTaskRequest) (*rpc.AssignTaskResponse, error) {
	if err := s.ensureLeader(); err != nil {
		return nil, err
	}
	tracker := s.getTracker(req.JobID)
	if tracker == nil {
		return nil, fmt.Errorf("%w: %s", shuttleerr.ErrJobNotFound, req.JobID)
	}

	item, attempt, err := tracker.Assign(req.NodeIndex, req.Endpoint)
	if err == shuttleerr.ErrNoUnitsAvailable {
		return &rpc.AssignTaskResponse{Available: false}, nil
	}
	if err != nil {
		return nil, err
	}

	j := tracker.GetJob()
	if req.NodeIndex < 0 || req.NodeIndex >= len(j.Nodes) {
		return nil, shuttleerr.ErrUnknownNode
	}
	node := j.Nodes[req.NodeIndex]

	return &rpc.AssignTaskResponse{
		Available:       true,
		UnitNo:          item.No,
		Attempt:         attempt,
		InputPath:       item.InputPath,
		Offset:          item.Offset,
		Size:            item.Size,
		LineStart:       item.LineStart,
		LineCount:       item.LineCount,
		Command:         node.Command,
		OutputPath:      node.OutputPath,
		PartitionScheme: string(node.PartitionScheme),
		PartitionCount:  node.PartitionCount,
	}, nil
}

// FinishTask reports one attempt's outcome and best-effort checkpoints the
// job's snapshot so a new leader can resume progress tracking after
// failover.
func (s *Server) FinishTask(ctx context.Context, req *rpc.FinishTaskRequest) (*rpc.FinishTaskResponse, error) {
	if err := s.ensureLeader(); err != nil {
		return nil, err
	}
	tracker := s.getTracker(req.JobID)
	if tracker == nil {
		return nil, fmt.Errorf("%w: %s", shuttleerr.ErrJobNotFound, req.JobID)
	}
	if err := tracker.Finish(req.NodeIndex, req.UnitNo, req.Attempt, req.Outcome); err != nil {
		return nil, err
	}

	if data, err := json.Marshal(tracker.GetJob()); err == nil {
		if err := s.manager.SaveCheckpoint(req.JobID, data); err != nil {
			s.log.Debug().Err(err).Str("job_id", req.JobID).Msg("save checkpoint")
		}
	}

	return &rpc.FinishTaskResponse{}, nil
}

// Heartbeat records a worker's liveness and slot usage, and tells it who
// the current leader is so it can redirect its next call if it guessed
// wrong. A follower accepts the call but performs no write, since only the
// leader's roster is authoritative.
func (s *Server) Heartbeat(ctx context.Context, req *rpc.HeartbeatRequest) (*rpc.HeartbeatResponse, error) {
	var leaderEndpoint string
	if s.registry != nil {
		leaderEndpoint, _ = s.registry.Leader()
	}

	if !s.manager.IsLeader() {
		return &rpc.HeartbeatResponse{LeaderEndpoint: leaderEndpoint}, nil
	}

	worker := &types.WorkerInfo{
		ID:            req.WorkerID,
		Endpoint:      req.Endpoint,
		Slots:         req.Slots,
		UsedSlots:     req.UsedSlots,
		LastHeartbeat: time.Now(),
	}
	if err := s.manager.UpsertWorker(worker); err != nil {
		return nil, fmt.Errorf("record heartbeat: %w", err)
	}
	if s.registry != nil {
		s.registry.UpsertWorker(req.WorkerID, req.Endpoint)
	}

	return &rpc.HeartbeatResponse{LeaderEndpoint: leaderEndpoint}, nil
}
