package api

import (
	"fmt"

	"github.com/shuttle-mr/shuttle/pkg/dfs"
	"github.com/shuttle-mr/shuttle/pkg/plaintext"
	"github.com/shuttle-mr/shuttle/pkg/resource"
	"github.com/shuttle-mr/shuttle/pkg/types"
)

const (
	defaultBlockSizeBytes = 64 << 20
	defaultLinesPerUnit   = 1000
)

// buildResourceManager turns one DAG node's split strategy into the
// resource.Manager its stage.Controller hands out work from. The manager
// kind follows node.Resource; everything else needed to build it (file
// sizes, line counts) is read from fs at submission time.
func buildResourceManager(fs dfs.FileSystem, node *types.Node) (*resource.Manager, error) {
	switch node.Resource {
	case types.ResourceKindID:
		if node.TotalUnits <= 0 {
			return nil, fmt.Errorf("node %q: resource kind %q requires total_units > 0", node.Name, node.Resource)
		}
		return resource.NewID(node.TotalUnits), nil

	case types.ResourceKindBlock:
		if len(node.InputPaths) == 0 {
			return nil, fmt.Errorf("node %q: resource kind %q requires at least one input path", node.Name, node.Resource)
		}
		sizes := make([]int64, len(node.InputPaths))
		for i, path := range node.InputPaths {
			size, err := fs.Size(path)
			if err != nil {
				return nil, fmt.Errorf("node %q: stat %s: %w", node.Name, path, err)
			}
			sizes[i] = size
		}
		splitSize := node.BlockSizeBytes
		if splitSize <= 0 {
			splitSize = defaultBlockSizeBytes
		}
		return resource.NewBlock(node.InputPaths, sizes, splitSize), nil

	case types.ResourceKindNLine:
		if len(node.InputPaths) == 0 {
			return nil, fmt.Errorf("node %q: resource kind %q requires at least one input path", node.Name, node.Resource)
		}
		lineCounts := make([]int64, len(node.InputPaths))
		for i, path := range node.InputPaths {
			count, err := countLines(fs, path)
			if err != nil {
				return nil, fmt.Errorf("node %q: count lines in %s: %w", node.Name, path, err)
			}
			lineCounts[i] = count
		}
		linesPerUnit := int64(node.LinesPerUnit)
		if linesPerUnit <= 0 {
			linesPerUnit = defaultLinesPerUnit
		}
		return resource.NewNLine(node.InputPaths, lineCounts, linesPerUnit), nil

	default:
		return nil, fmt.Errorf("node %q: unrecognized resource kind %q", node.Name, node.Resource)
	}
}

// countLines streams path once through a plaintext.Reader to count its
// lines. There is no indexed line count anywhere in storage, so splitting
// an n-line node costs one extra read of its input at submission time.
func countLines(fs dfs.FileSystem, path string) (int64, error) {
	f, err := fs.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r, err := plaintext.NewReader(f, 0, 0)
	if err != nil {
		return 0, err
	}

	var count int64
	for r.Next() {
		count++
	}
	if err := r.Err(); err != nil {
		return 0, err
	}
	return count, nil
}
