/*
Package client provides a Go client library for the shuttle Coordinator
gRPC service.

The client package wraps pkg/rpc.CoordinatorClient with a small, idiomatic
Go interface for job submission and introspection: the same surface
shuttlectl drives.

# Architecture

	┌──────────────────── APPLICATION CODE ──────────────────────┐
	│                                                              │
	│  import "github.com/shuttle-mr/shuttle/pkg/client"           │
	│                                                              │
	│  c, err := client.NewClient("coordinator:7070")              │
	│  jobID, err := c.SubmitJob(job)                              │
	│                                                              │
	└──────────────────┬───────────────────────────────────────┘
	                   │
	┌──────────────────▼──── pkg/client ─────────────────────────┐
	│                                                              │
	│  Client — SubmitJob/ListJobs/ShowJob/KillJob                 │
	│        │                                                      │
	│        ▼                                                      │
	│  pkg/rpc.CoordinatorClient (JSON codec over gRPC)             │
	└─────────────────────┬────────────────────────────────────┘
	                      │ gRPC (coordinator RPC port)
	                      ▼
	              Coordinator (pkg/api.Server)

# Usage

Creating a client with an existing CLI certificate:

	c, err := client.NewClient("10.0.0.10:7070")
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

Creating a client against a cluster without mTLS (development only):

	c, err := client.NewInsecureClient("127.0.0.1:7070")

Submitting a job:

	jobID, err := c.SubmitJob(job)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("submitted", jobID)

Listing jobs:

	jobs, err := c.ListJobs()
	if err != nil {
		log.Fatal(err)
	}
	for _, j := range jobs {
		fmt.Printf("- %s (%s)\n", j.ID, j.State)
	}

Showing one job's progress:

	resp, err := c.ShowJob(jobID)
	if err != nil {
		log.Fatal(err)
	}
	for _, node := range resp.Overview {
		fmt.Printf("%s: %d/%d done\n", node.NodeName, node.Done, node.Total)
	}

Killing a job:

	err := c.KillJob(jobID)

# Error Handling

A call against a follower returns shuttleerr.ErrNotLeader wrapped with the
leader's RPC endpoint when one is known:

	_, err := c.SubmitJob(job)
	if err != nil && strings.Contains(err.Error(), "not the leader") {
		// parse the leader endpoint out of err and retry there
	}

# Certificate Management

Certificate locations:

	CLI certificates:         ~/.shuttle/cli/
	Coordinator certificates: /etc/shuttle/certs/coordinator-<id>/

There is no RequestCertificate RPC in pkg/rpc — a coordinator issues its
own certificate for itself at Bootstrap, but nothing currently bootstraps
one for a CLI caller over the wire. NewClient expects cert.pem/key.pem/
ca.pem already present at its cert directory, provisioned by copying them
out of a coordinator's own cert directory. NewInsecureClient skips
transport security entirely for local development clusters.

# Thread Safety

The client is safe for concurrent use: the underlying gRPC connection is
thread-safe by design, and Client itself holds no mutable state beyond it.

# See Also

  - pkg/api for the server-side implementation
  - pkg/rpc for the wire types and dial options
  - pkg/security for certificate management
  - cmd/shuttlectl for CLI usage
*/
package client
