package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// WorkerServiceName is the service every worker registers on its own
// listen address, for the coordinator to dial into directly.
const WorkerServiceName = "shuttle.Worker"

const (
	methodCancelAttempt = "/" + WorkerServiceName + "/CancelAttempt"
	methodQueryAttempt  = "/" + WorkerServiceName + "/QueryAttempt"
)

// WorkerServer is the RPC surface one worker process exposes back to the
// coordinator: canceling a losing duplicate attempt, and answering the
// liveness monitor's "are you still on this unit" query. It is the wire
// counterpart of pkg/stage.WorkerRPC.
type WorkerServer interface {
	CancelAttempt(ctx context.Context, req *CancelAttemptRequest) (*CancelAttemptResponse, error)
	QueryAttempt(ctx context.Context, req *QueryAttemptRequest) (*QueryAttemptResponse, error)
}

// RegisterWorkerServer wires srv into a grpc.Server under the hand-built
// ServiceDesc below.
func RegisterWorkerServer(s grpc.ServiceRegistrar, srv WorkerServer) {
	s.RegisterService(&workerServiceDesc, srv)
}

func workerHandler(method string, newReq func() any, call func(srv any, ctx context.Context, req any) (any, error)) grpc.MethodDesc {
	return unaryHandler(WorkerServiceName, method, newReq, call)
}

var workerServiceDesc = grpc.ServiceDesc{
	ServiceName: WorkerServiceName,
	HandlerType: (*WorkerServer)(nil),
	Methods: []grpc.MethodDesc{
		workerHandler("CancelAttempt", func() any { return new(CancelAttemptRequest) }, func(srv any, ctx context.Context, req any) (any, error) {
			return srv.(WorkerServer).CancelAttempt(ctx, req.(*CancelAttemptRequest))
		}),
		workerHandler("QueryAttempt", func() any { return new(QueryAttemptRequest) }, func(srv any, ctx context.Context, req any) (any, error) {
			return srv.(WorkerServer).QueryAttempt(ctx, req.(*QueryAttemptRequest))
		}),
	},
	Metadata: "pkg/rpc/worker.go",
}

// WorkerClient is the coordinator-side counterpart of WorkerServer, dialed
// fresh per call against a worker's endpoint (see pkg/coordgroup's
// WorkerRPC adapter).
type WorkerClient interface {
	CancelAttempt(ctx context.Context, req *CancelAttemptRequest, opts ...grpc.CallOption) (*CancelAttemptResponse, error)
	QueryAttempt(ctx context.Context, req *QueryAttemptRequest, opts ...grpc.CallOption) (*QueryAttemptResponse, error)
}

type workerClient struct {
	cc grpc.ClientConnInterface
}

// NewWorkerClient wraps a dialed connection to a worker's endpoint as a
// WorkerClient.
func NewWorkerClient(cc grpc.ClientConnInterface) WorkerClient {
	return &workerClient{cc: cc}
}

func (c *workerClient) CancelAttempt(ctx context.Context, req *CancelAttemptRequest, opts ...grpc.CallOption) (*CancelAttemptResponse, error) {
	out := new(CancelAttemptResponse)
	if err := c.cc.Invoke(ctx, methodCancelAttempt, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *workerClient) QueryAttempt(ctx context.Context, req *QueryAttemptRequest, opts ...grpc.CallOption) (*QueryAttemptResponse, error) {
	out := new(QueryAttemptResponse)
	if err := c.cc.Invoke(ctx, methodQueryAttempt, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
