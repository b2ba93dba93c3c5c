/*
Package rpc defines two gRPC services: Coordinator, exposed by the
coordinator to the CLI and to workers (SubmitJob/ListJobs/ShowJob/KillJob,
AssignTask/FinishTask/Heartbeat), and Worker, exposed by each worker back
to the coordinator (CancelAttempt/QueryAttempt — the end-game and liveness
monitor calling direction).

# Transport

There is no .proto source anywhere to regenerate a protobuf package
from. Rather than fabricate one, this package builds the service
directly against google.golang.org/grpc's ServiceDesc/ClientConnInterface
primitives and carries every message as JSON: codec.go registers a
jsonCodec under content-subtype "json", and coordinator.go hand-writes
the method table grpc's protoc plugin would normally generate.

# Usage

Coordinator server:

	rpc.RegisterCoordinatorServer(grpcServer, myCoordinatorImpl)

Coordinator client:

	conn, err := grpc.NewClient(addr, append(rpc.DialOptions(), grpc.WithTransportCredentials(creds))...)
	client := rpc.NewCoordinatorClient(conn)
	resp, err := client.SubmitJob(ctx, &rpc.SubmitJobRequest{Job: job})

Worker server/client follow the identical shape via RegisterWorkerServer/
NewWorkerClient.

# See Also

  - pkg/api - server-side CoordinatorServer implementation
  - pkg/client - client-side wrapper used by the CLI
  - pkg/worker - pull-loop client usage of AssignTask/FinishTask/Heartbeat,
    and WorkerServer implementation for CancelAttempt/QueryAttempt
  - pkg/stage - WorkerRPC caller, adapted onto a WorkerClient per endpoint
*/
package rpc
