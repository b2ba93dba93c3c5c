// Package scratch allocates worker-local scratch directories for attempt
// sort files.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultBasePath is the base directory for worker scratch space.
const DefaultBasePath = "/var/lib/shuttle/scratch"

// Allocator hands out and reclaims per-attempt scratch directories under a
// single base path. A worker only ever needs one kind of scratch space —
// an ephemeral directory that lives exactly as long as the attempt
// executing in it — so this collapses to a single allocator with no
// driver registry for named, long-lived bind mounts.
type Allocator struct {
	basePath string
}

// NewAllocator creates an Allocator rooted at basePath, creating it if
// necessary. An empty basePath uses DefaultBasePath.
func NewAllocator(basePath string) (*Allocator, error) {
	if basePath == "" {
		basePath = DefaultBasePath
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}

	return &Allocator{basePath: basePath}, nil
}

// AttemptDir returns the scratch directory path for one attempt. It does
// not create the directory; call Allocate for that.
func (a *Allocator) AttemptDir(jobID string, nodeIndex, unitNo, attemptNo int) string {
	name := fmt.Sprintf("%s-n%d-u%d-a%d", jobID, nodeIndex, unitNo, attemptNo)
	return filepath.Join(a.basePath, name)
}

// Allocate creates and returns the scratch directory for one attempt, so
// that a single RemoveAll in Release reclaims everything put under it.
func (a *Allocator) Allocate(jobID string, nodeIndex, unitNo, attemptNo int) (string, error) {
	dir := a.AttemptDir(jobID, nodeIndex, unitNo, attemptNo)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create attempt scratch directory: %w", err)
	}
	return dir, nil
}

// Release removes an attempt's scratch directory and everything under it.
// Releasing an already-released or never-allocated attempt is a no-op.
func (a *Allocator) Release(jobID string, nodeIndex, unitNo, attemptNo int) error {
	dir := a.AttemptDir(jobID, nodeIndex, unitNo, attemptNo)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove attempt scratch directory: %w", err)
	}
	return nil
}

// TempFile creates a new temp file inside dir (normally one returned by
// Allocate) using pattern the same way os.CreateTemp does.
func (a *Allocator) TempFile(dir, pattern string) (*os.File, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	return f, nil
}
