package shuffle

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"path"
	"time"

	"github.com/rs/zerolog"
	"github.com/shuttle-mr/shuttle/pkg/dfs"
	"github.com/shuttle-mr/shuttle/pkg/shuttleerr"
	"github.com/shuttle-mr/shuttle/pkg/sortfile"
)

// pileScale returns the number of upstream units grouped into one pile:
// ceil(sqrt(units)) clamped to [10, 300].
func pileScale(units int) int {
	scale := int(math.Ceil(math.Sqrt(float64(units))))
	if scale < 10 {
		scale = 10
	}
	if scale > 300 {
		scale = 300
	}
	return scale
}

// pileCount returns how many piles units upstream units split into.
func pileCount(units int) int {
	scale := pileScale(units)
	return (units + scale - 1) / scale
}

// Engine runs a worker's shuffle pass: merging predecessor-stage sort files
// belonging to this worker's partition into piles, then merging the piles
// into one ordered stream for the user-code consumer.
//
// Uses the pre-merge-pile shuffle path rather than a direct-fetch
// alternative — see DESIGN.md OQ-2.
type Engine struct {
	FS          dfs.FileSystem
	WorkDir     string
	Partition   int
	Attempt     int
	UpstreamUnits int
	Log         zerolog.Logger

	sleepBetweenPasses time.Duration
}

// NewEngine builds an Engine with a 5s retry backoff between fetch passes.
func NewEngine(fs dfs.FileSystem, workDir string, partition, attempt, upstreamUnits int, log zerolog.Logger) *Engine {
	return &Engine{
		FS: fs, WorkDir: workDir, Partition: partition, Attempt: attempt,
		UpstreamUnits: upstreamUnits, Log: log, sleepBetweenPasses: 5 * time.Second,
	}
}

func (e *Engine) pilePath(k int) string {
	return path.Join(e.WorkDir, fmt.Sprintf("%d.pile", k))
}

func (e *Engine) tempPilePath(k int) string {
	return path.Join(e.WorkDir, fmt.Sprintf("pile_%d_%d", e.Partition, e.Attempt), fmt.Sprintf("%d.pile", k))
}

// sourceFilesForPile lists the predecessor-stage sort file paths
// contributing to pile k, and reports whether every expected upstream unit
// is present yet.
func (e *Engine) sourceFilesForPile(k, scale int) (paths []string, complete bool, err error) {
	start := k * scale
	end := start + scale
	if end > e.UpstreamUnits {
		end = e.UpstreamUnits
	}
	for unit := start; unit < end; unit++ {
		p := path.Join(e.WorkDir, fmt.Sprintf("unit_%d.sorted", unit))
		ok, err := e.FS.Exists(p)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		paths = append(paths, p)
	}
	return paths, true, nil
}

// partitionPrefix is the key prefix a pile-building merge must restrict to
// — every record a map task writes is prefixed "partition-<p>-" by the
// partitioner before it reaches the sorted-file writer.
func (e *Engine) partitionPrefix() []byte {
	return []byte(fmt.Sprintf("partition-%d-", e.Partition))
}

// BuildPiles runs step 2 of the algorithm: repeatedly attempts to build and
// publish every not-yet-ready pile, until all of them exist (built by this
// worker or observed published by another).
func (e *Engine) BuildPiles(stop <-chan struct{}) error {
	scale := pileScale(e.UpstreamUnits)
	n := pileCount(e.UpstreamUnits)
	order := rand.Perm(n)

	for {
		allReady := true
		for _, k := range order {
			ready, err := e.FS.Exists(e.pilePath(k))
			if err != nil {
				return err
			}
			if ready {
				continue
			}
			allReady = false
			if err := e.buildOnePile(k, scale); err != nil {
				e.Log.Warn().Err(err).Int("pile", k).Msg("pile build attempt failed, will retry")
			}
		}
		if allReady {
			return nil
		}
		select {
		case <-stop:
			return fmt.Errorf("shuffle: build piles canceled")
		case <-time.After(e.sleepBetweenPasses):
		}
	}
}

func (e *Engine) buildOnePile(k, scale int) error {
	paths, complete, err := e.sourceFilesForPile(k, scale)
	if err != nil {
		return err
	}
	if !complete {
		return nil // missing inputs; caller will retry after the sleep
	}

	var iters []SourceIterator
	var files []dfs.File
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	prefix := e.partitionPrefix()
	for _, p := range paths {
		f, err := e.FS.Open(p)
		if err != nil {
			return fmt.Errorf("shuffle: open %s: %w", p, err)
		}
		files = append(files, f)
		size, err := f.Size()
		if err != nil {
			return err
		}
		rd := sortfile.NewReader(f, size)
		it := rd.Scan(prefix, prefixUpperBound(prefix))
		iters = append(iters, it)
	}

	tmp := e.tempPilePath(k)
	tmpFile, err := e.FS.Create(tmp)
	if err != nil {
		return fmt.Errorf("shuffle: create temp pile: %w", err)
	}
	w := sortfile.NewWriter(tmpFile, tmpFile)
	merged := Merge(iters)
	for !merged.Done() {
		if err := w.Put(merged.Key(), merged.Value()); err != nil {
			return fmt.Errorf("shuffle: write pile: %w", err)
		}
		merged.Next()
	}
	if err := merged.Err(); err != nil {
		return fmt.Errorf("shuffle: merge pile sources: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("shuffle: close pile: %w", err)
	}

	pub, ok := e.FS.(dfs.Publisher)
	if !ok {
		return fmt.Errorf("shuffle: file system does not support publish")
	}
	if err := pub.Publish(tmp, e.pilePath(k)); err != nil {
		if errors.Is(err, shuttleerr.ErrAlreadyExists) {
			return nil // another worker published first
		}
		return err
	}
	return nil
}

// FinalMerge runs step 3: opens every published pile as a sorted-file
// reader and returns a MergeIterator restricted to this worker's partition
// prefix, ready for the caller to stream to the user-code consumer.
func (e *Engine) FinalMerge() (*MergeIterator, func() error, error) {
	n := pileCount(e.UpstreamUnits)
	var iters []SourceIterator
	var files []dfs.File
	closeAll := func() error {
		var firstErr error
		for _, f := range files {
			if err := f.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	prefix := e.partitionPrefix()
	for k := 0; k < n; k++ {
		f, err := e.FS.Open(e.pilePath(k))
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("shuffle: open pile %d: %w", k, err)
		}
		files = append(files, f)
		size, err := f.Size()
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		rd := sortfile.NewReader(f, size)
		iters = append(iters, rd.Scan(prefix, prefixUpperBound(prefix)))
	}
	return Merge(iters), closeAll, nil
}

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix, for use as an exclusive scan end key.
func prefixUpperBound(prefix []byte) []byte {
	up := append([]byte(nil), prefix...)
	for i := len(up) - 1; i >= 0; i-- {
		if up[i] != 0xFF {
			up[i]++
			return up[:i+1]
		}
	}
	return nil // all 0xFF: unbounded
}
