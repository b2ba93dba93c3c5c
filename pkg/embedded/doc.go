/*
Package embedded bootstraps a Linux containerd daemon a worker can run
units against without a pre-installed system containerd.

# Architecture

	┌────────────── EMBEDDED CONTAINERD MANAGEMENT ────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │             ContainerdManager                │          │
	│  │  - Start/Stop lifecycle management           │          │
	│  │  - Socket path detection                     │          │
	│  │  - Extracts embedded binary on first use      │          │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                      │
	│                     ▼                                      │
	│  ┌────────────────────────────────────────────┐          │
	│  │ containerd --config --address --root --state │          │
	│  │   Socket: /run/shuttle-containerd/containerd.sock │    │
	│  └────────────────────────────────────────────┘          │
	└────────────────────────────────────────────────────────┘

# Usage

	mgr, err := embedded.NewContainerdManager("/var/lib/shuttle", false)
	if err != nil {
		log.Fatal(err)
	}
	if err := mgr.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer mgr.Stop()

	rt, err := runtime.NewContainerdRuntime(mgr.GetSocketPath())

Passing useExternal=true skips the embedded daemon entirely and
GetSocketPath returns the system default (/run/containerd/containerd.sock).

# Binary Embedding

The containerd binary is embedded via go:embed binaries/* and extracted to
<dataDir>/bin/containerd on first use; extraction is skipped if a binary
less than 24 hours old already exists there.

# See Also

  - pkg/runtime for the containerd client that dials this socket
  - pkg/worker for the pull-loop that runs units against it
*/
package embedded
