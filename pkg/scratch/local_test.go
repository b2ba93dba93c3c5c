package scratch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewAllocator(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "scratch")

	a, err := NewAllocator(tmpDir)
	if err != nil {
		t.Fatalf("NewAllocator() error = %v", err)
	}
	if a == nil {
		t.Fatal("NewAllocator() returned nil")
	}
	if _, err := os.Stat(tmpDir); os.IsNotExist(err) {
		t.Error("base directory was not created")
	}
}

func TestNewAllocatorEmptyBasePath(t *testing.T) {
	a, err := NewAllocator("")
	if err != nil {
		t.Fatalf("NewAllocator(\"\") error = %v", err)
	}
	if a.basePath != DefaultBasePath {
		t.Errorf("basePath = %q, want %q", a.basePath, DefaultBasePath)
	}
}

func TestAllocatorAttemptDirIsStable(t *testing.T) {
	a, _ := NewAllocator(t.TempDir())

	d1 := a.AttemptDir("job-1", 2, 3, 4)
	d2 := a.AttemptDir("job-1", 2, 3, 4)
	if d1 != d2 {
		t.Errorf("AttemptDir() not stable: %q != %q", d1, d2)
	}

	other := a.AttemptDir("job-1", 2, 3, 5)
	if d1 == other {
		t.Error("AttemptDir() collided across different attempt numbers")
	}
}

func TestAllocatorAllocateCreatesDirectory(t *testing.T) {
	a, _ := NewAllocator(t.TempDir())

	dir, err := a.Allocate("job-1", 0, 1, 1)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Allocate() did not create directory: %v", err)
	}
	if !info.IsDir() {
		t.Error("Allocate() path is not a directory")
	}
}

func TestAllocatorReleaseRemovesDirectory(t *testing.T) {
	a, _ := NewAllocator(t.TempDir())

	dir, err := a.Allocate("job-1", 0, 1, 1)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "spill.bin"), []byte("data"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := a.Release("job-1", 0, 1, 1); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("Release() did not remove the directory")
	}
}

func TestAllocatorReleaseOfUnallocatedIsNoop(t *testing.T) {
	a, _ := NewAllocator(t.TempDir())

	if err := a.Release("job-1", 0, 1, 1); err != nil {
		t.Errorf("Release() on unallocated attempt error = %v", err)
	}
}

func TestAllocatorTempFile(t *testing.T) {
	a, _ := NewAllocator(t.TempDir())
	dir, err := a.Allocate("job-1", 0, 1, 1)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	f, err := a.TempFile(dir, "sort-*.tmp")
	if err != nil {
		t.Fatalf("TempFile() error = %v", err)
	}
	defer f.Close()

	if filepath.Dir(f.Name()) != dir {
		t.Errorf("TempFile() created file outside attempt dir: %s", f.Name())
	}
}
