/*
Package scratch allocates and reclaims per-attempt scratch directories on a
worker's local disk.

A work unit's attempt needs somewhere to put files that exist only while
it runs. In this module the one user is pkg/worker, which stages a
non-terminal node's partitioned sort file here before uploading it to the
DFS; the shuffle works in the DFS work directory and the runtime uses
containerd snapshots, so neither stages anything here. Allocator hands out
one directory per attempt, which Release removes with everything under it,
rather than a pluggable driver registry built for named,
independently-lived container bind mounts.

# Usage

	alloc, err := scratch.NewAllocator("/var/lib/shuttle/scratch")
	dir, err := alloc.Allocate(jobID, nodeIndex, unitNo, attemptNo)
	defer alloc.Release(jobID, nodeIndex, unitNo, attemptNo)

	f, err := alloc.TempFile(dir, "sort-*.tmp")

# See Also

  - pkg/worker for the sort file staged here before upload
*/
package scratch
