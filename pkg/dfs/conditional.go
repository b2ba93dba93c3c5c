package dfs

import (
	"fmt"
	"io"

	"github.com/shuttle-mr/shuttle/pkg/shuttleerr"
)

// ConditionalPublisher adapts any FileSystem into a Publisher for stores
// that have no atomic rename (most object stores): it checks Exists,
// and only if the destination is absent does it stream tmpPath's bytes to
// finalPath. This is racy between the Exists check and the write — a true
// object store closes that race with a conditional PUT (If-None-Match) or
// equivalent, which this type's caller should prefer when the underlying
// store exposes one. It exists so pkg/shuffle's pile publishing has a
// working implementation against FileSystems that only give us Open/Create,
// per the Design Notes' pile-publishing caveat.
type ConditionalPublisher struct {
	FS FileSystem
}

// Publish implements Publisher.
func (c *ConditionalPublisher) Publish(tmpPath, finalPath string) error {
	exists, err := c.FS.Exists(finalPath)
	if err != nil {
		return fmt.Errorf("dfs: check destination: %w", err)
	}
	if exists {
		return shuttleerr.ErrAlreadyExists
	}
	src, err := c.FS.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("dfs: open source: %w", err)
	}
	defer src.Close()
	dst, err := c.FS.Create(finalPath)
	if err != nil {
		return fmt.Errorf("dfs: create destination: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("dfs: copy: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("dfs: close destination: %w", err)
	}
	return c.FS.Remove(tmpPath)
}
