/*
Package runtime executes a worker's attempts as one-shot containerd
containers: run a command to completion, observe its exit code, delete it.
There is no supervised lifecycle here, because a MapReduce attempt either
finishes or it doesn't — nothing restarts it in place.

# Architecture

	┌─────────────────── CONTAINERD RUNTIME ────────────────────┐
	│                                                             │
	│  ┌──────────────────────────────────────────────┐         │
	│  │        ContainerdRuntime Client               │         │
	│  │  - Socket: /run/containerd/containerd.sock   │         │
	│  │  - Namespace: shuttle                         │         │
	│  └──────────────────┬───────────────────────────┘         │
	│                     │                                       │
	│  ┌──────────────────▼───────────────────────────┐         │
	│  │                  Run(Attempt)                 │         │
	│  │  1. Get image (already pulled; see PullImage)  │         │
	│  │  2. Create container+snapshot, OCI spec with   │         │
	│  │     the attempt's Command/Env                  │         │
	│  │  3. Create task, wire Stdin/Stdout/Stderr      │         │
	│  │  4. Start, block on task.Wait()                │         │
	│  │  5. Delete task+container (always, deferred)   │         │
	│  │  6. Return exit code                           │         │
	│  └────────────────────────────────────────────────┘        │
	└─────────────────────────────────────────────────────────┘

# Usage

	rt, err := runtime.NewContainerdRuntime("")
	if err != nil {
		log.Fatal(err)
	}
	defer rt.Close()

	code, err := rt.Run(ctx, runtime.Attempt{
		ID:      "job123-node0-unit4-attempt1",
		Image:   "shuttle-worker:latest",
		Command: node.Command,
		Stdin:   splitReader,
		Stdout:  sortFileWriter,
		Stderr:  os.Stderr,
	})
	if err != nil {
		// container could not be created/started/observed
	}
	// code == 0: unit succeeded; code != 0: unit failed, caller retries
	// per the stage's retry budget.

# Input/Output Wiring

A map node's attempt reads its split (offset/length or line range) of a
DFS input file via pkg/plaintext and writes Stdin; a reduce node's attempt
instead runs the Shuffle Engine first (pkg/shuffle) and feeds its merged
stream as Stdin. After a successful run pkg/worker writes the attempt's
Stdout out in one of two ways. A terminal node's output goes to a
part-NNNNN file that is written under a temporary name and then renamed
into place. Any other node's output is sorted by partition into a local
sort-file (pkg/sortfile), uploaded to a temporary DFS path and published
as unit_N.sorted through a dfs.Publisher: a rename for the Local DFS, a
non-atomic check-then-copy for ConditionalPublisher.

# Namespace and Cleanup

All shuttle attempts run in the "shuttle" containerd namespace, isolated
from any other containerd user on the host. Run always deletes its task
and container (with snapshot cleanup) on the way out, logging but not
failing on delete errors, so a crashed worker process leaves no orphaned
containers for the next attempt's namespace listing to trip over.

# Cancellation

Run's context governs the whole attempt: canceling it (the worker's
CancelAttempt RPC handler does this) sends SIGKILL and returns ctx.Err()
rather than an exit code, which the caller reports upstream as a killed
attempt rather than a failed one.

# See Also

  - pkg/worker for the attempt loop that calls Run
  - pkg/embedded for the embedded containerd daemon some workers use
    instead of a system-installed one
  - pkg/plaintext and pkg/sortfile for the I/O formats wired to Stdin/Stdout
*/
package runtime
