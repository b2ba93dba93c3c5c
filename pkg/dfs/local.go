package dfs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shuttle-mr/shuttle/pkg/shuttleerr"
)

// Local is a FileSystem rooted at a directory on the local disk — used for
// single-box runs and tests. Atomic publish is a plain os.Rename, since
// POSIX guarantees rename(2) is atomic within one filesystem.
type Local struct {
	root string
}

// NewLocal returns a Local FileSystem rooted at root, creating root if
// necessary.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("dfs: create root: %w", err)
	}
	return &Local{root: root}, nil
}

func (l *Local) resolve(path string) string {
	return filepath.Join(l.root, filepath.Clean("/"+path))
}

func (l *Local) Open(path string) (File, error) {
	f, err := os.Open(l.resolve(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, shuttleerr.ErrNotFound
		}
		return nil, err
	}
	return &localFile{f}, nil
}

func (l *Local) Create(path string) (File, error) {
	full := l.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(full)
	if err != nil {
		return nil, err
	}
	return &localFile{f}, nil
}

func (l *Local) Rename(src, dst string) error {
	full := l.resolve(dst)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.Rename(l.resolve(src), full)
}

// Publish implements Publisher via os.Rename, refusing to clobber an
// existing destination so two workers racing to publish the same pile
// agree on one winner.
func (l *Local) Publish(tmpPath, finalPath string) error {
	full := l.resolve(finalPath)
	if _, err := os.Stat(full); err == nil {
		return shuttleerr.ErrAlreadyExists
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.Rename(l.resolve(tmpPath), full)
}

func (l *Local) Remove(path string) error {
	return os.Remove(l.resolve(path))
}

func (l *Local) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(l.resolve(dir))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out, nil
}

func (l *Local) Glob(pattern string) ([]string, error) {
	matches, err := filepath.Glob(l.resolve(pattern))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		rel, err := filepath.Rel(l.root, m)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, nil
}

func (l *Local) Mkdir(dir string) error {
	return os.MkdirAll(l.resolve(dir), 0o755)
}

func (l *Local) Exists(path string) (bool, error) {
	_, err := os.Stat(l.resolve(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (l *Local) Size(path string) (int64, error) {
	info, err := os.Stat(l.resolve(path))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, shuttleerr.ErrNotFound
		}
		return 0, err
	}
	return info.Size(), nil
}

type localFile struct {
	*os.File
}

func (f *localFile) Size() (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
