package coordgroup

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/shuttle-mr/shuttle/pkg/rpc"
)

const workerCallTimeout = 5 * time.Second

// WorkerRPC is the coordinator-side stage.WorkerRPC adapter: it dials a
// worker's endpoint fresh for every call rather than holding a pool of
// long-lived connections, since a Stage Controller only needs it for the
// rare cancel/query calls a retry or a liveness check triggers.
type WorkerRPC struct {
	jobID     string
	nodeIndex int
}

// NewWorkerRPC builds a WorkerRPC adapter scoped to one job node.
func NewWorkerRPC(jobID string, nodeIndex int) *WorkerRPC {
	return &WorkerRPC{jobID: jobID, nodeIndex: nodeIndex}
}

// #nosec G402 -- M1 MVP: workers are not yet issued certificates over
// Heartbeat, so the coordinator cannot authenticate a worker endpoint it
// only just learned of. mTLS lands here once worker cert issuance does.
func (w *WorkerRPC) dial(endpoint string) (*grpc.ClientConn, error) {
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, rpc.DialOptions()...)
	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial worker %s: %w", endpoint, err)
	}
	return conn, nil
}

// CancelAttempt tells the worker holding unitNo/attemptNo to abandon it.
func (w *WorkerRPC) CancelAttempt(endpoint string, unitNo, attemptNo int) error {
	conn, err := w.dial(endpoint)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), workerCallTimeout)
	defer cancel()

	client := rpc.NewWorkerClient(conn)
	_, err = client.CancelAttempt(ctx, &rpc.CancelAttemptRequest{
		JobID: w.jobID, NodeIndex: w.nodeIndex, UnitNo: unitNo, Attempt: attemptNo,
	})
	return err
}

// QueryAttempt asks the worker whether it is still actively working
// unitNo/attemptNo, for the Controller's liveness sweep.
func (w *WorkerRPC) QueryAttempt(endpoint string, unitNo, attemptNo int) (bool, error) {
	conn, err := w.dial(endpoint)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), workerCallTimeout)
	defer cancel()

	client := rpc.NewWorkerClient(conn)
	resp, err := client.QueryAttempt(ctx, &rpc.QueryAttemptRequest{
		JobID: w.jobID, NodeIndex: w.nodeIndex, UnitNo: unitNo, Attempt: attemptNo,
	})
	if err != nil {
		return false, err
	}
	return resp.OnUnit, nil
}
