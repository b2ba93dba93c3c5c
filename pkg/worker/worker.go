// Package worker implements a shuttle worker process: a single main loop
// that pulls work for one (job, node) pair from the coordinator, executes
// each unit as a one-shot container via pkg/runtime, and reports the
// outcome back. Alongside the pull loop, a small RPC server answers the
// coordinator's CancelAttempt and QueryAttempt calls.
package worker

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/shuttle-mr/shuttle/pkg/dfs"
	"github.com/shuttle-mr/shuttle/pkg/log"
	"github.com/shuttle-mr/shuttle/pkg/rpc"
	"github.com/shuttle-mr/shuttle/pkg/runtime"
	"github.com/shuttle-mr/shuttle/pkg/scratch"
	"github.com/shuttle-mr/shuttle/pkg/security"
	"github.com/shuttle-mr/shuttle/pkg/stage"
	"github.com/shuttle-mr/shuttle/pkg/types"
)

const (
	assignBackoff     = 2 * time.Second
	heartbeatInterval = 10 * time.Second
	rpcTimeout        = 5 * time.Second
)

// Config configures one worker process: which job and DAG node it pulls
// work for, how it reaches the coordinator, and how it executes attempts.
// A worker is an operator-started process, not one the coordinator
// provisions itself — see pkg/coordgroup.LoggingRuntime — so JobID and
// NodeIndex are supplied as flags at process start; see cmd/shuttlectl.
type Config struct {
	JobID            string
	NodeIndex        int
	WorkerID         string
	CoordinatorAddr  string
	ListenAddr       string // this worker's own RPC bind address
	AdvertiseAddr    string // address the coordinator dials back for this worker
	DataDir          string // local scratch for sort-file staging
	ContainerdSocket string
	Image            string // container image the node's Command runs in
}

type currentAttempt struct {
	unitNo, attemptNo int
	running           bool
	cancel            context.CancelFunc
}

// Worker pulls work units for one (job, node) pair from the coordinator,
// executes each via pkg/runtime, and reports outcomes back.
type Worker struct {
	cfg     Config
	conn    *grpc.ClientConn
	client  rpc.CoordinatorClient
	runtime *runtime.ContainerdRuntime
	scratch *scratch.Allocator
	fs      dfs.FileSystem
	grpcSrv *grpc.Server
	log     zerolog.Logger

	job  *types.Job
	node *types.Node

	mu      sync.Mutex
	current currentAttempt
	stopCh  chan struct{}
}

// NewWorker dials the coordinator and builds the local collaborators
// (containerd runtime, scratch allocator) a worker needs before it can
// start pulling work.
func NewWorker(cfg Config, fs dfs.FileSystem) (*Worker, error) {
	conn, client, err := dialCoordinator(cfg.CoordinatorAddr, cfg.WorkerID)
	if err != nil {
		return nil, err
	}

	rt, err := runtime.NewContainerdRuntime(cfg.ContainerdSocket)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect containerd: %w", err)
	}

	alloc, err := scratch.NewAllocator(cfg.DataDir)
	if err != nil {
		conn.Close()
		rt.Close()
		return nil, fmt.Errorf("create scratch allocator: %w", err)
	}

	opts, err := workerServerCredentials(cfg.WorkerID)
	if err != nil {
		conn.Close()
		rt.Close()
		return nil, err
	}

	return &Worker{
		cfg:     cfg,
		conn:    conn,
		client:  client,
		runtime: rt,
		scratch: alloc,
		fs:      fs,
		grpcSrv: grpc.NewServer(opts...),
		log:     log.WithComponent("worker"),
		stopCh:  make(chan struct{}),
	}, nil
}

func dialCoordinator(addr, workerID string) (*grpc.ClientConn, rpc.CoordinatorClient, error) {
	var dialOpts []grpc.DialOption

	certDir, err := security.GetCertDir("worker", workerID)
	if err == nil && security.CertExists(certDir) {
		cert, lerr := security.LoadCertFromFile(certDir)
		caCert, cerr := security.LoadCACertFromFile(certDir)
		if lerr == nil && cerr == nil {
			pool := x509.NewCertPool()
			pool.AddCert(caCert)
			tlsConfig := &tls.Config{Certificates: []tls.Certificate{*cert}, RootCAs: pool, MinVersion: tls.VersionTLS13}
			dialOpts = append(dialOpts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
		}
	}
	if len(dialOpts) == 0 {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	dialOpts = append(dialOpts, rpc.DialOptions()...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("dial coordinator %s: %w", addr, err)
	}
	return conn, rpc.NewCoordinatorClient(conn), nil
}

// workerServerCredentials mirrors pkg/api's serverCredentials for the
// coordinator's own listener: mTLS once a certificate has been
// provisioned for this worker, plaintext before one exists.
func workerServerCredentials(workerID string) ([]grpc.ServerOption, error) {
	certDir, err := security.GetCertDir("worker", workerID)
	if err != nil {
		return nil, fmt.Errorf("get cert directory: %w", err)
	}
	if !security.CertExists(certDir) {
		log.Logger.Warn().Str("component", "worker").Msg("no worker certificate yet, serving without transport security")
		return nil, nil
	}

	cert, err := security.LoadCertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("load worker certificate: %w", err)
	}
	caCert, err := security.LoadCACertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("load CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(caCert)

	tlsConfig := &tls.Config{
		ClientAuth:   tls.RequestClientCert,
		Certificates: []tls.Certificate{*cert},
		ClientCAs:    pool,
		MinVersion:   tls.VersionTLS13,
	}
	return []grpc.ServerOption{grpc.Creds(credentials.NewTLS(tlsConfig))}, nil
}

// Start fetches the job/node descriptor it will work against, starts its
// RPC listener and heartbeat loop, then runs the pull loop until the node
// reaches a terminal state or Stop is called. It blocks.
func (w *Worker) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	resp, err := w.client.ShowJob(ctx, &rpc.ShowJobRequest{JobID: w.cfg.JobID})
	cancel()
	if err != nil {
		return fmt.Errorf("fetch job %s: %w", w.cfg.JobID, err)
	}
	w.job = resp.Job
	if w.cfg.NodeIndex < 0 || w.cfg.NodeIndex >= len(w.job.Nodes) {
		return fmt.Errorf("node index %d out of range for job %s", w.cfg.NodeIndex, w.cfg.JobID)
	}
	w.node = w.job.Nodes[w.cfg.NodeIndex]

	lis, err := net.Listen("tcp", w.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", w.cfg.ListenAddr, err)
	}
	rpc.RegisterWorkerServer(w.grpcSrv, w)
	go func() {
		if err := w.grpcSrv.Serve(lis); err != nil {
			w.log.Warn().Err(err).Msg("worker rpc server stopped")
		}
	}()

	go w.heartbeatLoop()

	w.log.Info().Str("job", w.cfg.JobID).Int("node", w.cfg.NodeIndex).Msg("worker started")
	return w.pullLoop()
}

// Stop signals the pull and heartbeat loops to exit and releases every
// collaborator the worker opened.
func (w *Worker) Stop() {
	close(w.stopCh)
	if w.grpcSrv != nil {
		w.grpcSrv.GracefulStop()
	}
	w.runtime.Close()
	w.conn.Close()
}

func (w *Worker) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sendHeartbeat()
		}
	}
}

func (w *Worker) sendHeartbeat() {
	w.mu.Lock()
	used := 0
	if w.current.running {
		used = 1
	}
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	if _, err := w.client.Heartbeat(ctx, &rpc.HeartbeatRequest{
		WorkerID: w.cfg.WorkerID, Endpoint: w.cfg.AdvertiseAddr, Slots: 1, UsedSlots: used,
	}); err != nil {
		w.log.Warn().Err(err).Msg("heartbeat failed")
	}
}

// pullLoop sequentially asks for work, executes it, and reports — the
// single main loop a worker runs for the life of the process.
func (w *Worker) pullLoop() error {
	for {
		select {
		case <-w.stopCh:
			return nil
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
		resp, err := w.client.AssignTask(ctx, &rpc.AssignTaskRequest{
			JobID: w.cfg.JobID, NodeIndex: w.cfg.NodeIndex,
			WorkerID: w.cfg.WorkerID, Endpoint: w.cfg.AdvertiseAddr,
		})
		cancel()
		if err != nil {
			w.log.Warn().Err(err).Msg("assign task failed")
			time.Sleep(assignBackoff)
			continue
		}

		if !resp.Available {
			if w.nodeTerminal() {
				w.log.Info().Int("node", w.cfg.NodeIndex).Msg("node reached a terminal state, worker exiting")
				return nil
			}
			time.Sleep(assignBackoff)
			continue
		}

		w.runAttempt(resp)
	}
}

// nodeTerminal distinguishes "nothing pending right now" from "this node
// is done forever": AssignTask's Available=false can't tell the two apart
// on its own, so the pull loop falls back to the node's own overview state.
func (w *Worker) nodeTerminal() bool {
	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	resp, err := w.client.ShowJob(ctx, &rpc.ShowJobRequest{JobID: w.cfg.JobID})
	if err != nil {
		return false
	}
	for _, o := range resp.Overview {
		if o.NodeIndex != w.cfg.NodeIndex {
			continue
		}
		switch stage.State(o.State) {
		case stage.StateCompleted, stage.StateFailed, stage.StateKilled:
			return true
		}
	}
	return false
}

func (w *Worker) runAttempt(task *rpc.AssignTaskResponse) {
	w.mu.Lock()
	w.current = currentAttempt{unitNo: task.UnitNo, attemptNo: task.Attempt, running: true}
	w.mu.Unlock()

	outcome, attemptErr := w.executeUnit(task)

	w.mu.Lock()
	w.current.running = false
	w.mu.Unlock()

	errMsg := ""
	if attemptErr != nil {
		errMsg = attemptErr.Error()
		w.log.Warn().Err(attemptErr).Int("unit", task.UnitNo).Int("attempt", task.Attempt).Msg("attempt did not complete")
	}

	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()
	if _, err := w.client.FinishTask(ctx, &rpc.FinishTaskRequest{
		JobID: w.cfg.JobID, NodeIndex: w.cfg.NodeIndex, UnitNo: task.UnitNo, Attempt: task.Attempt,
		Outcome: outcome, Error: errMsg,
	}); err != nil {
		w.log.Error().Err(err).Int("unit", task.UnitNo).Msg("report finish failed")
	}
}

// executeUnit runs one attempt end to end: build its input stream, run the
// node's command in a one-shot container, and — on success — commit its
// output to DFS.
func (w *Worker) executeUnit(task *rpc.AssignTaskResponse) (types.AttemptState, error) {
	attemptID := fmt.Sprintf("%s-n%d-u%d-a%d", w.cfg.JobID, w.cfg.NodeIndex, task.UnitNo, task.Attempt)

	stdin, err := w.buildStdin(task)
	if err != nil {
		return types.AttemptStateFailed, fmt.Errorf("build input: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.mu.Lock()
	w.current.cancel = cancel
	w.mu.Unlock()
	defer cancel()

	var stdout bytes.Buffer
	code, err := w.runtime.Run(ctx, runtime.Attempt{
		ID:      attemptID,
		Image:   w.cfg.Image,
		Command: task.Command,
		Stdin:   stdin,
		Stdout:  &stdout,
		Stderr:  io.Discard,
	})
	if err != nil {
		if ctx.Err() != nil {
			return types.AttemptStateKilled, err
		}
		return types.AttemptStateFailed, err
	}
	if code != 0 {
		return types.AttemptStateFailed, fmt.Errorf("attempt exited with code %d", code)
	}

	if err := w.publishOutput(task, stdout.Bytes()); err != nil {
		return types.AttemptStateFailed, fmt.Errorf("publish output: %w", err)
	}
	return types.AttemptStateDone, nil
}

// CancelAttempt implements rpc.WorkerServer: abandon the named attempt if
// it is still the one running here.
func (w *Worker) CancelAttempt(ctx context.Context, req *rpc.CancelAttemptRequest) (*rpc.CancelAttemptResponse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current.running && w.current.unitNo == req.UnitNo && w.current.attemptNo == req.Attempt && w.current.cancel != nil {
		w.current.cancel()
	}
	return &rpc.CancelAttemptResponse{}, nil
}

// QueryAttempt implements rpc.WorkerServer: answer the liveness monitor's
// "are you still on this unit" check.
func (w *Worker) QueryAttempt(ctx context.Context, req *rpc.QueryAttemptRequest) (*rpc.QueryAttemptResponse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	onUnit := w.current.running && w.current.unitNo == req.UnitNo && w.current.attemptNo == req.Attempt
	return &rpc.QueryAttemptResponse{OnUnit: onUnit}, nil
}
