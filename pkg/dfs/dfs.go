// Package dfs defines the distributed-file-system collaborator interface
// workers and the Shuffle Engine use to read input and publish output.
// The actual distributed store (HDFS, an object store, a local disk for
// single-box runs) is an external collaborator; this package only
// specifies the Go shape of that boundary, plus a couple of concrete
// implementations good enough to run and test the framework end to end.
package dfs

import "io"

// File is a single open handle: readable, writable, seekable, and sized.
type File interface {
	io.Reader
	io.Writer
	io.Seeker
	io.ReaderAt
	io.Closer
	// Size returns the file's current byte length.
	Size() (int64, error)
}

// FileSystem is the storage collaborator interface. Implementations must
// be safe for concurrent use by multiple goroutines against different
// paths.
type FileSystem interface {
	// Open opens path for reading.
	Open(path string) (File, error)
	// Create opens path for writing, truncating any existing content.
	Create(path string) (File, error)
	// Rename atomically replaces dst with src's content, if the
	// underlying store supports atomic rename; object stores without one
	// should implement this as best-effort and document the gap.
	Rename(src, dst string) error
	// Remove deletes path.
	Remove(path string) error
	// List returns the entries directly inside dir.
	List(dir string) ([]string, error)
	// Glob returns every path matching the shell pattern.
	Glob(pattern string) ([]string, error)
	// Mkdir creates dir and any missing parents.
	Mkdir(dir string) error
	// Exists reports whether path is present.
	Exists(path string) (bool, error)
	// Size returns the byte length of path without opening it.
	Size(path string) (int64, error)
}

// Publisher is implemented by FileSystems that can publish a temp file to
// its final path. Local does this via os.Rename, with no window where a
// concurrent reader sees a partial file; ConditionalPublisher checks Exists
// and then copies the bytes, so a concurrent reader can see a partial file
// and two racing publishers can both pass the check.
type Publisher interface {
	// Publish makes tmpPath visible at finalPath. If finalPath already
	// exists, Publish returns ErrAlreadyExists and the caller should treat
	// the existing file as authoritative (another worker published
	// first) rather than overwrite it.
	Publish(tmpPath, finalPath string) error
}
