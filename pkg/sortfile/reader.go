package sortfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/shuttle-mr/shuttle/pkg/shuttleerr"
)

// Reader provides random-access Scan over a sorted file. r must support
// ReadAt and Size (most commonly a pkg/dfs.File).
type Reader struct {
	r    io.ReaderAt
	size int64
	idx  []indexEntry // loaded lazily, cached for repeated scans
}

// NewReader wraps r (of the given byte size) as a sorted-file Reader.
func NewReader(r io.ReaderAt, size int64) *Reader {
	return &Reader{r: r, size: size}
}

// LoadIndex reads and caches the trailer and index block, retrying up to 3
// times with a 1s backoff on transient read failure — mirrors the
// original's Scan retry loop around LoadIndexBlock.
func (rd *Reader) LoadIndex() error {
	if rd.idx != nil {
		return nil
	}
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		var idx []indexEntry
		idx, err = rd.loadIndexOnce()
		if err == nil {
			rd.idx = idx
			return nil
		}
		if attempt < 2 {
			time.Sleep(time.Second)
		}
	}
	return fmt.Errorf("sortfile: load index after retries: %w", err)
}

func (rd *Reader) loadIndexOnce() ([]indexEntry, error) {
	if rd.size < footerSpan {
		return nil, fmt.Errorf("sortfile: file too small for trailer: %w", shuttleerr.ErrCorruptSortedFile)
	}
	var trailer [footerSpan]byte
	if _, err := rd.r.ReadAt(trailer[:], rd.size-footerSpan); err != nil {
		return nil, fmt.Errorf("sortfile: read trailer: %w", err)
	}
	indexOffset := int64(binary.LittleEndian.Uint64(trailer[0:8]))
	magic := binary.LittleEndian.Uint32(trailer[8:12])
	if magic != magicNumber {
		return nil, fmt.Errorf("sortfile: bad magic %x: %w", magic, shuttleerr.ErrCorruptSortedFile)
	}
	if indexOffset < 0 || indexOffset > rd.size-footerSpan {
		return nil, fmt.Errorf("sortfile: index offset out of range: %w", shuttleerr.ErrCorruptSortedFile)
	}
	sr := io.NewSectionReader(rd.r, indexOffset, rd.size-footerSpan-indexOffset)
	compressed, err := readLenPrefixed(sr)
	if err != nil {
		if err == io.EOF {
			return nil, nil // empty index: no data was ever written
		}
		return nil, fmt.Errorf("sortfile: read index block: %w", err)
	}
	raw, err := decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("sortfile: decompress index block: %w", err)
	}
	return decodeIndex(raw)
}

// Locate returns the byte offset of the data block that may contain key, by
// binary-searching the (loaded) index for the last entry whose key is <=
// key. Callers then read and linear-scan that data block.
func (rd *Reader) Locate(key []byte) (int64, error) {
	if err := rd.LoadIndex(); err != nil {
		return 0, err
	}
	if len(rd.idx) == 0 {
		return 0, shuttleerr.ErrNotFound
	}
	i := sort.Search(len(rd.idx), func(i int) bool {
		return bytes.Compare(rd.idx[i].key, key) > 0
	})
	if i == 0 {
		return rd.idx[0].offset, nil
	}
	return rd.idx[i-1].offset, nil
}

// Iterator yields records in ascending key order within [startKey, endKey);
// an empty endKey means unbounded.
type Iterator struct {
	rd       *Reader
	startKey []byte
	endKey   []byte
	offset   int64
	records  []kv
	pos      int
	done     bool
	err      error
}

// Scan returns an Iterator over [startKey, endKey). An empty endKey scans to
// end of file.
func (rd *Reader) Scan(startKey, endKey []byte) *Iterator {
	if len(endKey) > 0 && bytes.Compare(startKey, endKey) > 0 {
		return &Iterator{done: true, err: fmt.Errorf("sortfile: invalid scan range")}
	}
	offset, err := rd.Locate(startKey)
	if err != nil {
		if err == shuttleerr.ErrNotFound {
			return &Iterator{done: true}
		}
		return &Iterator{done: true, err: err}
	}
	it := &Iterator{rd: rd, startKey: startKey, endKey: endKey, offset: offset}
	it.advanceBlock()
	it.skipBeforeStart()
	return it
}

func (it *Iterator) advanceBlock() {
	if it.done {
		return
	}
	var trailer [8]byte
	if _, err := it.rd.r.ReadAt(trailer[:], it.rd.size-footerSpan); err != nil {
		it.done, it.err = true, fmt.Errorf("sortfile: read trailer: %w", err)
		return
	}
	// Data blocks end where the index block begins.
	limit := int64(binary.LittleEndian.Uint64(trailer[:]))
	if it.offset >= limit {
		it.done = true
		return
	}
	sr := io.NewSectionReader(it.rd.r, it.offset, limit-it.offset)
	compressed, err := readLenPrefixed(sr)
	if err != nil {
		it.done, it.err = true, fmt.Errorf("sortfile: read data block: %w", err)
		return
	}
	raw, err := decompress(compressed)
	if err != nil {
		it.done, it.err = true, fmt.Errorf("sortfile: decompress data block: %w", err)
		return
	}
	records, err := decodeRecords(raw)
	if err != nil {
		it.done, it.err = true, err
		return
	}
	it.offset += 4 + int64(len(compressed))
	it.records = records
	it.pos = 0
	if len(records) == 0 {
		it.done = true
	}
}

func (it *Iterator) skipBeforeStart() {
	for !it.done {
		for it.pos < len(it.records) && bytes.Compare(it.records[it.pos].key, it.startKey) < 0 {
			it.pos++
		}
		if it.pos < len(it.records) {
			break
		}
		it.advanceBlock()
	}
	it.checkEnd()
}

func (it *Iterator) checkEnd() {
	if it.done || it.pos >= len(it.records) {
		return
	}
	if len(it.endKey) > 0 && bytes.Compare(it.records[it.pos].key, it.endKey) >= 0 {
		it.done = true
	}
}

// Done reports whether the iterator has been exhausted or hit an error.
func (it *Iterator) Done() bool { return it.done }

// Next advances to the next record.
func (it *Iterator) Next() {
	it.pos++
	if it.pos >= len(it.records) {
		it.advanceBlock()
	}
	it.checkEnd()
}

// Key returns the current record's key.
func (it *Iterator) Key() []byte { return it.records[it.pos].key }

// Value returns the current record's value.
func (it *Iterator) Value() []byte { return it.records[it.pos].value }

// Err returns the first error encountered during iteration, if any.
func (it *Iterator) Err() error { return it.err }
