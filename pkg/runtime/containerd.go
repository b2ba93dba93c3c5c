package runtime

import (
	"context"
	"fmt"
	"io"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	"github.com/rs/zerolog"

	"github.com/shuttle-mr/shuttle/pkg/log"
)

const (
	// DefaultNamespace is the containerd namespace shuttle units run under.
	DefaultNamespace = "shuttle"

	// DefaultSocketPath is the default containerd socket.
	DefaultSocketPath = "/run/containerd/containerd.sock"
)

// ContainerdRuntime executes a worker's attempts as ephemeral, one-shot
// containers: a single command run to completion, not a supervised
// long-running service. There is no Start/Stop/restart lifecycle here
// because a work unit either finishes or it doesn't.
type ContainerdRuntime struct {
	client    *containerd.Client
	namespace string
	log       zerolog.Logger
}

// NewContainerdRuntime creates a new containerd runtime client.
func NewContainerdRuntime(socketPath string) (*ContainerdRuntime, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to containerd: %w", err)
	}

	return &ContainerdRuntime{
		client:    client,
		namespace: DefaultNamespace,
		log:       log.WithComponent("runtime"),
	}, nil
}

// Close closes the containerd client connection.
func (r *ContainerdRuntime) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// PullImage pulls a container image from a registry.
func (r *ContainerdRuntime) PullImage(ctx context.Context, imageRef string) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	if _, err := r.client.Pull(ctx, imageRef, containerd.WithPullUnpack); err != nil {
		return fmt.Errorf("pull image %s: %w", imageRef, err)
	}
	return nil
}

// Attempt describes one unit execution: the image to run it in, the
// command and environment, and the streams its stdin/stdout/stderr wire
// to. stdin carries the unit's split of the node's input (or nil for a
// reduce node that reads via the Shuffle Engine instead); stdout is where
// the caller captures partitioned sort-file output before it commits that
// output to DFS.
type Attempt struct {
	ID      string
	Image   string
	Command []string
	Env     []string
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
}

// Run executes one attempt to completion and returns its exit code. A
// non-zero exit code is not itself an error return: the caller (the
// worker's attempt loop) is responsible for classifying it into
// types.AttemptStateDone or types.AttemptStateFailed. Run returns a
// non-nil error only when the container could not be created, started,
// or its outcome observed.
func (r *ContainerdRuntime) Run(ctx context.Context, a Attempt) (int, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	image, err := r.client.GetImage(ctx, a.Image)
	if err != nil {
		return -1, fmt.Errorf("get image %s: %w", a.Image, err)
	}

	opts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithProcessArgs(a.Command...),
		oci.WithEnv(a.Env),
	}

	container, err := r.client.NewContainer(
		ctx,
		a.ID,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(a.ID+"-snapshot", image),
		containerd.WithNewSpec(opts...),
	)
	if err != nil {
		return -1, fmt.Errorf("create container for attempt %s: %w", a.ID, err)
	}
	defer func() {
		if derr := container.Delete(context.Background(), containerd.WithSnapshotCleanup); derr != nil {
			r.log.Warn().Err(derr).Str("attempt", a.ID).Msg("cleanup attempt container")
		}
	}()

	task, err := container.NewTask(ctx, cio.NewCreator(cio.WithStreams(a.Stdin, a.Stdout, a.Stderr)))
	if err != nil {
		return -1, fmt.Errorf("create task for attempt %s: %w", a.ID, err)
	}
	defer func() {
		if _, derr := task.Delete(context.Background()); derr != nil {
			r.log.Warn().Err(derr).Str("attempt", a.ID).Msg("cleanup attempt task")
		}
	}()

	statusC, err := task.Wait(ctx)
	if err != nil {
		return -1, fmt.Errorf("wait on attempt %s: %w", a.ID, err)
	}

	if err := task.Start(ctx); err != nil {
		return -1, fmt.Errorf("start attempt %s: %w", a.ID, err)
	}

	select {
	case status := <-statusC:
		if err := status.Error(); err != nil {
			return -1, fmt.Errorf("attempt %s exited with error: %w", a.ID, err)
		}
		return int(status.ExitCode()), nil
	case <-ctx.Done():
		killCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := task.Kill(killCtx, syscall.SIGKILL); err != nil {
			r.log.Warn().Err(err).Str("attempt", a.ID).Msg("force kill canceled attempt")
		}
		return -1, ctx.Err()
	}
}
