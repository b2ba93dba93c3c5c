// Package shuttleerr collects the sentinel errors shared across the
// coordinator and worker packages, so callers can classify failures with
// errors.Is instead of string matching.
package shuttleerr

import "errors"

var (
	// ErrCyclicDAG is returned when a Job's Node graph fails Validate.
	ErrCyclicDAG = errors.New("shuttle: job dag contains a cycle")
	// ErrUnknownNode is returned for a Node index outside a Job's range.
	ErrUnknownNode = errors.New("shuttle: unknown dag node")
	// ErrUnknownUnit is returned for a work unit number the Resource
	// Manager has no record of.
	ErrUnknownUnit = errors.New("shuttle: unknown work unit")
	// ErrNoUnitsAvailable is returned by Acquire when every unit is
	// either running or done and the caller is not eligible for the
	// end-game slug queue yet.
	ErrNoUnitsAvailable = errors.New("shuttle: no work units available")
	// ErrAttemptUnknown is returned when Finish names an
	// (unit, attempt) pair the Stage Controller has no record of.
	ErrAttemptUnknown = errors.New("shuttle: unknown attempt")
	// ErrNotLeader is returned by a coordinator that is not the current
	// Raft leader for a request that must be served by the leader.
	ErrNotLeader = errors.New("shuttle: not the leader")
	// ErrJobNotFound is returned for an unknown job ID.
	ErrJobNotFound = errors.New("shuttle: job not found")
	// ErrJobTerminal is returned when a mutation is attempted against a
	// job that has already reached a terminal state.
	ErrJobTerminal = errors.New("shuttle: job already in a terminal state")
	// ErrOutOfOrderKey is returned by a sorted-file writer when Put is
	// called with a key less than the previously written key.
	ErrOutOfOrderKey = errors.New("shuttle: sorted file keys must be non-decreasing")
	// ErrCorruptSortedFile is returned when a sorted file's trailer or
	// index block fails to parse.
	ErrCorruptSortedFile = errors.New("shuttle: corrupt sorted file")
	// ErrNotFound is returned by pkg/dfs implementations for a missing path.
	ErrNotFound = errors.New("shuttle: path not found")
	// ErrAlreadyExists is returned by the pkg/dfs Publish implementations
	// (Local and ConditionalPublisher) when the destination already exists.
	ErrAlreadyExists = errors.New("shuttle: path already exists")
)
