/*
Package worker implements a shuttle worker process: the agent that pulls
work units for one DAG node of one job, executes each as a one-shot
container, and reports the outcome back to the coordinator.

A worker is started by an operator (or a job-submission script) for a
specific (job, node) pair, handed its job ID and node index as flags at
launch. It is not provisioned by the coordinator; see pkg/coordgroup for
why shuttle treats worker lifecycle as external.

# Architecture

	┌───────────────────────── WORKER PROCESS ─────────────────────────┐
	│                                                                   │
	│  ┌───────────────────────────────────────────────┐               │
	│  │                  Pull Loop                      │               │
	│  │  AssignTask → build stdin → run → publish        │               │
	│  │  → FinishTask, repeat until the node is terminal  │              │
	│  └──────┬─────────────────────────────┬────────────┘              │
	│         │                             │                            │
	│  ┌──────▼───────┐             ┌───────▼────────────┐              │
	│  │ pkg/runtime  │             │ pkg/shuffle/        │              │
	│  │ one-shot     │             │ pkg/plaintext input  │              │
	│  │ container    │             │ pkg/sortfile/        │              │
	│  │ execution    │             │ pkg/partition output  │              │
	│  └──────────────┘             └─────────────────────┘              │
	│                                                                   │
	│  ┌───────────────────────────────────────────────┐               │
	│  │            WorkerServer (pkg/rpc)               │               │
	│  │  CancelAttempt, QueryAttempt — answered from     │              │
	│  │  whatever the pull loop currently has running    │              │
	│  └───────────────────────────────────────────────┘               │
	└────────────────────────────────────────────────────────────────────┘

# Core Components

Worker:
  - Holds the gRPC client to the coordinator and the collaborators an
    attempt needs: a containerd runtime, a scratch allocator, a DFS
    handle.
  - Runs the pull loop, the heartbeat loop, and its own RPC listener.

pullLoop:
  - AssignTask; on Available=false, checks ShowJob's node overview to
    tell "nothing pending yet" from "this node is done" apart, since
    AssignTask itself cannot distinguish the two.
  - On Available=true, runs the attempt and reports via FinishTask.

executeUnit (see pkg/worker/io.go for the I/O halves):
  - buildStdin wires a map node's plaintext split or a reduce node's
    Shuffle Engine merge onto the attempt's stdin.
  - runtime.Run executes the node's Command in a one-shot container.
  - publishOutput commits stdout to DFS: straight through for a
    terminal node, re-partitioned into a sort file otherwise.

# Usage

	w, err := worker.NewWorker(worker.Config{
		JobID:            "job-42",
		NodeIndex:         1,
		WorkerID:          "worker-a",
		CoordinatorAddr:   "10.0.0.10:7070",
		ListenAddr:        ":7080",
		AdvertiseAddr:     "10.0.0.20:7080",
		DataDir:           "/var/lib/shuttle/worker",
		ContainerdSocket:  "/run/containerd/containerd.sock",
		Image:             "shuttle-job:latest",
	}, fs)
	if err != nil {
		log.Fatal(err)
	}
	defer w.Stop()
	if err := w.Start(); err != nil {
		log.Fatal(err)
	}

# Attempt Cancellation

CancelAttempt is how the Stage Controller's duplicate-attempt end-game
reaches a worker directly: it cancels the context passed to
pkg/runtime.Run for the matching (unit, attempt), which classifies the
outcome as types.AttemptStateKilled rather than Failed.

# See Also

  - pkg/runtime for one-shot container execution
  - pkg/stage for the assignment and retry policy AssignTask answers from
  - pkg/shuffle, pkg/sortfile, pkg/partition for the reduce-side I/O formats
  - pkg/scratch for local staging of sort-file output before DFS upload
*/
package worker
