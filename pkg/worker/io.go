package worker

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"

	"github.com/shuttle-mr/shuttle/pkg/dfs"
	"github.com/shuttle-mr/shuttle/pkg/partition"
	"github.com/shuttle-mr/shuttle/pkg/plaintext"
	"github.com/shuttle-mr/shuttle/pkg/rpc"
	"github.com/shuttle-mr/shuttle/pkg/shuffle"
	"github.com/shuttle-mr/shuttle/pkg/sortfile"
	"github.com/shuttle-mr/shuttle/pkg/types"
)

// buildStdin assembles the byte stream an attempt's user command reads on
// stdin: a plaintext split of a source node's DFS input, or — for a node
// that consumes a predecessor's partitioned output — the Shuffle Engine's
// merged, key-ordered stream for this unit's partition.
func (w *Worker) buildStdin(task *rpc.AssignTaskResponse) (io.Reader, error) {
	if w.node.InputFormat == types.InputFormatSortedFile {
		return w.buildShuffleStdin(task)
	}
	return w.buildPlaintextStdin(task)
}

func (w *Worker) buildPlaintextStdin(task *rpc.AssignTaskResponse) (io.Reader, error) {
	if task.InputPath == "" {
		return bytes.NewReader(nil), nil
	}
	f, err := w.fs.Open(task.InputPath)
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", task.InputPath, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	if task.LineCount > 0 {
		r, err := plaintext.NewReader(f, 0, 0)
		if err != nil {
			return nil, err
		}
		var line int64
		for r.Next() {
			if line >= task.LineStart && line < task.LineStart+task.LineCount {
				buf.Write(r.Line())
				buf.WriteByte('\n')
			}
			line++
			if line >= task.LineStart+task.LineCount {
				break
			}
		}
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("read %s: %w", task.InputPath, err)
		}
		return &buf, nil
	}

	end := task.Offset + task.Size
	if task.Size == 0 {
		end = 0
	}
	r, err := plaintext.NewReader(f, task.Offset, end)
	if err != nil {
		return nil, err
	}
	for r.Next() {
		buf.Write(r.Line())
		buf.WriteByte('\n')
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", task.InputPath, err)
	}
	return &buf, nil
}

// buildShuffleStdin runs the Shuffle Engine for this unit's partition
// (unit number doubles as partition index on a reduce node, one work unit
// per partition) and buffers its merged output for the attempt's stdin.
func (w *Worker) buildShuffleStdin(task *rpc.AssignTaskResponse) (io.Reader, error) {
	if len(w.node.Pre) == 0 {
		return nil, fmt.Errorf("node %d has sorted_file input but no predecessor", w.node.Index)
	}
	pred := w.job.Nodes[w.node.Pre[0]]

	engine := shuffle.NewEngine(w.fs, pred.OutputPath, task.UnitNo, task.Attempt, pred.TotalUnits, w.log)
	if err := engine.BuildPiles(w.stopCh); err != nil {
		return nil, fmt.Errorf("build shuffle piles: %w", err)
	}
	merged, closeAll, err := engine.FinalMerge()
	if err != nil {
		return nil, fmt.Errorf("open shuffle piles: %w", err)
	}
	defer closeAll()

	var buf bytes.Buffer
	for !merged.Done() {
		buf.Write(merged.Value())
		buf.WriteByte('\n')
		merged.Next()
	}
	if err := merged.Err(); err != nil {
		return nil, fmt.Errorf("merge shuffle piles: %w", err)
	}
	return &buf, nil
}

// publishOutput commits an attempt's stdout to DFS: a terminal node (no
// successors) writes it straight through as a numbered output part, while
// a node with downstream consumers first re-sorts it by partition into a
// sort file the next stage's Shuffle Engine can merge.
func (w *Worker) publishOutput(task *rpc.AssignTaskResponse, output []byte) error {
	if len(w.node.Next) == 0 {
		return w.publishFinal(task, output)
	}
	return w.publishSorted(task, output)
}

func (w *Worker) publishFinal(task *rpc.AssignTaskResponse, output []byte) error {
	dst := path.Join(task.OutputPath, fmt.Sprintf("part-%05d", task.UnitNo))
	tmp := dst + ".tmp"

	f, err := w.fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := f.Write(output); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := w.fs.Rename(tmp, dst); err != nil {
		return fmt.Errorf("commit %s: %w", dst, err)
	}
	return nil
}

type sortedRecord struct {
	key  []byte
	line []byte
}

// combineLines runs the optional local combiner: it groups a single
// unit's map output by key (the line up to its first tab) and folds
// values sharing a key into one comma-joined line, shrinking what the
// shuffle has to move across the network. It stays key/value-agnostic
// since shuttle does not model a combine function separate from the
// node's Command.
func combineLines(lines [][]byte) [][]byte {
	sorted := make([][]byte, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(lineKey(sorted[i]), lineKey(sorted[j])) < 0 })

	var out [][]byte
	var curKey, curValues []byte
	flush := func() {
		if curKey == nil {
			return
		}
		out = append(out, append(append([]byte{}, curKey...), curValues...))
	}
	for _, line := range sorted {
		if len(line) == 0 {
			continue
		}
		key := lineKey(line)
		value := line[len(key):]
		if curKey != nil && bytes.Equal(key, curKey) {
			curValues = append(curValues, ',')
			curValues = append(curValues, bytes.TrimPrefix(value, []byte("\t"))...)
			continue
		}
		flush()
		curKey = append([]byte{}, key...)
		curValues = append([]byte{}, value...)
	}
	flush()
	return out
}

func lineKey(line []byte) []byte {
	if i := bytes.IndexByte(line, '\t'); i >= 0 {
		return line[:i+1]
	}
	return line
}

func (w *Worker) publishSorted(task *rpc.AssignTaskResponse, output []byte) error {
	dest := task.PartitionCount
	if dest <= 0 {
		dest = 1
	}
	partitioner := partition.New(types.PartitionScheme(task.PartitionScheme), "", 1, 1, dest)

	lines := bytes.Split(bytes.TrimRight(output, "\n"), []byte("\n"))
	if w.node.Combine {
		lines = combineLines(lines)
	}

	var records []sortedRecord
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		key, p := partitioner.Calc(line)
		composite := append([]byte(fmt.Sprintf("partition-%d-", p)), key...)
		records = append(records, sortedRecord{key: composite, line: append([]byte(nil), line...)})
	}
	sort.Slice(records, func(i, j int) bool { return bytes.Compare(records[i].key, records[j].key) < 0 })

	dir, err := w.scratch.Allocate(w.cfg.JobID, w.cfg.NodeIndex, task.UnitNo, task.Attempt)
	if err != nil {
		return err
	}
	defer w.scratch.Release(w.cfg.JobID, w.cfg.NodeIndex, task.UnitNo, task.Attempt)

	local, err := w.scratch.TempFile(dir, "unit-*.sorted")
	if err != nil {
		return err
	}
	defer local.Close()

	sw := sortfile.NewWriter(local, local)
	for _, r := range records {
		if err := sw.Put(r.key, r.line); err != nil {
			return fmt.Errorf("write sorted record: %w", err)
		}
	}
	if err := sw.Close(); err != nil {
		return fmt.Errorf("close sorted file: %w", err)
	}
	if _, err := local.Seek(0, io.SeekStart); err != nil {
		return err
	}

	tmpPath := path.Join(task.OutputPath, fmt.Sprintf(".tmp-unit_%d_%d.sorted", task.UnitNo, task.Attempt))
	dfsFile, err := w.fs.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmpPath, err)
	}
	if _, err := io.Copy(dfsFile, local); err != nil {
		dfsFile.Close()
		return fmt.Errorf("upload sorted file: %w", err)
	}
	if err := dfsFile.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}

	final := path.Join(task.OutputPath, fmt.Sprintf("unit_%d.sorted", task.UnitNo))
	pub, ok := w.fs.(dfs.Publisher)
	if !ok {
		return fmt.Errorf("file system does not support publish")
	}
	if err := pub.Publish(tmpPath, final); err != nil {
		return fmt.Errorf("commit %s: %w", final, err)
	}
	return nil
}
