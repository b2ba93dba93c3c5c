package sortfile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/shuttle-mr/shuttle/pkg/shuttleerr"
)

// Writer streams key/value pairs into a sorted file. Put must be called
// with non-decreasing keys; Close flushes the final data block, then the
// index block, then the trailer.
type Writer struct {
	w         *bufio.Writer
	closer    io.Closer
	offset    int64
	curItems  []kv
	curSize   int
	lastKey   []byte
	hasLast   bool
	index     []indexEntry
}

// NewWriter wraps w (and an optional closer, e.g. the underlying file) as a
// sorted-file Writer.
func NewWriter(w io.Writer, closer io.Closer) *Writer {
	return &Writer{w: bufio.NewWriter(w), closer: closer}
}

// Put appends one key/value pair. Keys must be non-decreasing across the
// lifetime of the Writer; an out-of-order key returns ErrOutOfOrderKey and
// writes nothing, and later in-order Puts are still accepted.
func (w *Writer) Put(key, value []byte) error {
	if w.hasLast && bytes.Compare(key, w.lastKey) < 0 {
		return shuttleerr.ErrOutOfOrderKey
	}
	if w.curSize >= blockSize {
		if err := w.flushDataBlock(); err != nil {
			return err
		}
	}
	w.curItems = append(w.curItems, kv{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	w.curSize += len(key) + len(value)
	w.lastKey = append([]byte(nil), key...)
	w.hasLast = true
	return nil
}

func (w *Writer) flushDataBlock() error {
	if len(w.curItems) == 0 {
		return nil
	}
	raw := encodeRecords(w.curItems)
	compressed := compress(raw)
	offset := w.offset
	n, err := countingWrite(w.w, func(bw io.Writer) error { return writeLenPrefixed(bw, compressed) })
	if err != nil {
		return fmt.Errorf("sortfile: flush data block: %w", err)
	}
	w.offset += n
	w.index = append(w.index, indexEntry{key: append([]byte(nil), w.curItems[0].key...), offset: offset})
	w.curItems = w.curItems[:0]
	w.curSize = 0
	return nil
}

// sparsifyIndex halves the index by keeping every other entry, repeating
// until it fits within maxIndexSize — mirrors MakeIndexSparse.
func sparsifyIndex(entries []indexEntry) []indexEntry {
	for len(entries) > maxIndexSize {
		half := make([]indexEntry, 0, len(entries)/2+1)
		for i := 0; i < len(entries); i += 2 {
			half = append(half, entries[i])
		}
		entries = half
	}
	return entries
}

func (w *Writer) flushIndexBlock() (int64, error) {
	w.index = sparsifyIndex(w.index)
	raw := encodeIndex(w.index)
	compressed := compress(raw)
	indexOffset := w.offset
	n, err := countingWrite(w.w, func(bw io.Writer) error { return writeLenPrefixed(bw, compressed) })
	if err != nil {
		return 0, fmt.Errorf("sortfile: flush index block: %w", err)
	}
	w.offset += n
	return indexOffset, nil
}

// Close flushes the final data block, the index block and the trailer, in
// that order, then closes the underlying writer if one was given.
func (w *Writer) Close() error {
	if err := w.flushDataBlock(); err != nil {
		return err
	}
	indexOffset, err := w.flushIndexBlock()
	if err != nil {
		return err
	}
	var trailer [footerSpan]byte
	binary.LittleEndian.PutUint64(trailer[0:8], uint64(indexOffset))
	binary.LittleEndian.PutUint32(trailer[8:12], uint32(magicNumber))
	if _, err := w.w.Write(trailer[:]); err != nil {
		return fmt.Errorf("sortfile: write trailer: %w", err)
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("sortfile: flush: %w", err)
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// countingWrite runs fn against w and reports how many bytes it wrote,
// without requiring w to support Seek/Tell.
func countingWrite(w io.Writer, fn func(io.Writer) error) (int64, error) {
	cw := &countingWriter{w: w}
	if err := fn(cw); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
