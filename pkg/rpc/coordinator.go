package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully-qualified gRPC service name, matching the path
// prefix every method below registers under.
const ServiceName = "shuttle.Coordinator"

const (
	methodSubmitJob  = "/" + ServiceName + "/SubmitJob"
	methodListJobs   = "/" + ServiceName + "/ListJobs"
	methodShowJob    = "/" + ServiceName + "/ShowJob"
	methodKillJob    = "/" + ServiceName + "/KillJob"
	methodAssignTask = "/" + ServiceName + "/AssignTask"
	methodFinishTask = "/" + ServiceName + "/FinishTask"
	methodHeartbeat  = "/" + ServiceName + "/Heartbeat"
)

// CoordinatorServer is the RPC surface a coordinator node exposes: job
// submission/inspection for the CLI, and the pull-loop surface for
// workers. CancelAttempt/QueryAttempt run the other direction — the
// coordinator calling into a worker — and live on WorkerServer instead.
type CoordinatorServer interface {
	SubmitJob(ctx context.Context, req *SubmitJobRequest) (*SubmitJobResponse, error)
	ListJobs(ctx context.Context, req *ListJobsRequest) (*ListJobsResponse, error)
	ShowJob(ctx context.Context, req *ShowJobRequest) (*ShowJobResponse, error)
	KillJob(ctx context.Context, req *KillJobRequest) (*KillJobResponse, error)
	AssignTask(ctx context.Context, req *AssignTaskRequest) (*AssignTaskResponse, error)
	FinishTask(ctx context.Context, req *FinishTaskRequest) (*FinishTaskResponse, error)
	Heartbeat(ctx context.Context, req *HeartbeatRequest) (*HeartbeatResponse, error)
}

// RegisterCoordinatorServer wires srv into a grpc.Server (or any other
// grpc.ServiceRegistrar) under the hand-built ServiceDesc below.
func RegisterCoordinatorServer(s grpc.ServiceRegistrar, srv CoordinatorServer) {
	s.RegisterService(&coordinatorServiceDesc, srv)
}

// unaryHandler builds a grpc.MethodDesc for one RPC method, the piece
// protoc-gen-go-grpc would normally generate from a .proto method
// declaration. Shared by both services defined in this package.
func unaryHandler(serviceName, method string, newReq func() any, call func(srv any, ctx context.Context, req any) (any, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv, ctx, req)
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func coordinatorHandler(method string, newReq func() any, call func(srv any, ctx context.Context, req any) (any, error)) grpc.MethodDesc {
	return unaryHandler(ServiceName, method, newReq, call)
}

var coordinatorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CoordinatorServer)(nil),
	Methods: []grpc.MethodDesc{
		coordinatorHandler("SubmitJob", func() any { return new(SubmitJobRequest) }, func(srv any, ctx context.Context, req any) (any, error) {
			return srv.(CoordinatorServer).SubmitJob(ctx, req.(*SubmitJobRequest))
		}),
		coordinatorHandler("ListJobs", func() any { return new(ListJobsRequest) }, func(srv any, ctx context.Context, req any) (any, error) {
			return srv.(CoordinatorServer).ListJobs(ctx, req.(*ListJobsRequest))
		}),
		coordinatorHandler("ShowJob", func() any { return new(ShowJobRequest) }, func(srv any, ctx context.Context, req any) (any, error) {
			return srv.(CoordinatorServer).ShowJob(ctx, req.(*ShowJobRequest))
		}),
		coordinatorHandler("KillJob", func() any { return new(KillJobRequest) }, func(srv any, ctx context.Context, req any) (any, error) {
			return srv.(CoordinatorServer).KillJob(ctx, req.(*KillJobRequest))
		}),
		coordinatorHandler("AssignTask", func() any { return new(AssignTaskRequest) }, func(srv any, ctx context.Context, req any) (any, error) {
			return srv.(CoordinatorServer).AssignTask(ctx, req.(*AssignTaskRequest))
		}),
		coordinatorHandler("FinishTask", func() any { return new(FinishTaskRequest) }, func(srv any, ctx context.Context, req any) (any, error) {
			return srv.(CoordinatorServer).FinishTask(ctx, req.(*FinishTaskRequest))
		}),
		coordinatorHandler("Heartbeat", func() any { return new(HeartbeatRequest) }, func(srv any, ctx context.Context, req any) (any, error) {
			return srv.(CoordinatorServer).Heartbeat(ctx, req.(*HeartbeatRequest))
		}),
	},
	Metadata: "pkg/rpc/coordinator.go",
}

// CoordinatorClient is the client-side counterpart of CoordinatorServer.
type CoordinatorClient interface {
	SubmitJob(ctx context.Context, req *SubmitJobRequest, opts ...grpc.CallOption) (*SubmitJobResponse, error)
	ListJobs(ctx context.Context, req *ListJobsRequest, opts ...grpc.CallOption) (*ListJobsResponse, error)
	ShowJob(ctx context.Context, req *ShowJobRequest, opts ...grpc.CallOption) (*ShowJobResponse, error)
	KillJob(ctx context.Context, req *KillJobRequest, opts ...grpc.CallOption) (*KillJobResponse, error)
	AssignTask(ctx context.Context, req *AssignTaskRequest, opts ...grpc.CallOption) (*AssignTaskResponse, error)
	FinishTask(ctx context.Context, req *FinishTaskRequest, opts ...grpc.CallOption) (*FinishTaskResponse, error)
	Heartbeat(ctx context.Context, req *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error)
}

type coordinatorClient struct {
	cc grpc.ClientConnInterface
}

// NewCoordinatorClient wraps a dialed connection (built with DialOptions
// applied) as a CoordinatorClient.
func NewCoordinatorClient(cc grpc.ClientConnInterface) CoordinatorClient {
	return &coordinatorClient{cc: cc}
}

func (c *coordinatorClient) SubmitJob(ctx context.Context, req *SubmitJobRequest, opts ...grpc.CallOption) (*SubmitJobResponse, error) {
	out := new(SubmitJobResponse)
	if err := c.cc.Invoke(ctx, methodSubmitJob, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) ListJobs(ctx context.Context, req *ListJobsRequest, opts ...grpc.CallOption) (*ListJobsResponse, error) {
	out := new(ListJobsResponse)
	if err := c.cc.Invoke(ctx, methodListJobs, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) ShowJob(ctx context.Context, req *ShowJobRequest, opts ...grpc.CallOption) (*ShowJobResponse, error) {
	out := new(ShowJobResponse)
	if err := c.cc.Invoke(ctx, methodShowJob, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) KillJob(ctx context.Context, req *KillJobRequest, opts ...grpc.CallOption) (*KillJobResponse, error) {
	out := new(KillJobResponse)
	if err := c.cc.Invoke(ctx, methodKillJob, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) AssignTask(ctx context.Context, req *AssignTaskRequest, opts ...grpc.CallOption) (*AssignTaskResponse, error) {
	out := new(AssignTaskResponse)
	if err := c.cc.Invoke(ctx, methodAssignTask, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) FinishTask(ctx context.Context, req *FinishTaskRequest, opts ...grpc.CallOption) (*FinishTaskResponse, error) {
	out := new(FinishTaskResponse)
	if err := c.cc.Invoke(ctx, methodFinishTask, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinatorClient) Heartbeat(ctx context.Context, req *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error) {
	out := new(HeartbeatResponse)
	if err := c.cc.Invoke(ctx, methodHeartbeat, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

