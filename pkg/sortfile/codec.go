// Package sortfile implements the on-disk sorted-file format workers use
// to persist a partition's map output and shuffle-merged reduce input:
// snappy-compressed data blocks plus a sparsified index block, closed with
// a fixed trailer so a reader can locate the index without scanning the
// whole file.
//
// Block size, index sparsification threshold and footer layout mirror
// the canonical sort-file format; the magic number uses 0x55AA rather
// than a legacy decimal value — see DESIGN.md OQ-3.
package sortfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/s2"
	"github.com/shuttle-mr/shuttle/pkg/shuttleerr"
)

const (
	blockSize     = 64 << 10 // target uncompressed data block size
	magicNumber   = 0x55AA
	maxIndexSize  = 10000 // sparsify once the index grows past this many entries
	footerSpan    = 4 + 8 // magic (int32) + index offset (int64)
)

// kv is one key/value record within a DataBlock.
type kv struct {
	key, value []byte
}

// indexEntry is one (first-key-of-block, absolute-offset-of-block) pair
// within the IndexBlock.
type indexEntry struct {
	key    []byte
	offset int64
}

func encodeRecords(items []kv) []byte {
	buf := make([]byte, 0, 256)
	var hdr [4]byte
	for _, it := range items {
		binary.LittleEndian.PutUint32(hdr[:], uint32(len(it.key)))
		buf = append(buf, hdr[:]...)
		buf = append(buf, it.key...)
		binary.LittleEndian.PutUint32(hdr[:], uint32(len(it.value)))
		buf = append(buf, hdr[:]...)
		buf = append(buf, it.value...)
	}
	return buf
}

func decodeRecords(raw []byte) ([]kv, error) {
	var out []kv
	for len(raw) > 0 {
		if len(raw) < 4 {
			return nil, fmt.Errorf("sortfile: truncated record: %w", shuttleerr.ErrCorruptSortedFile)
		}
		klen := binary.LittleEndian.Uint32(raw)
		raw = raw[4:]
		if uint32(len(raw)) < klen {
			return nil, fmt.Errorf("sortfile: truncated key: %w", shuttleerr.ErrCorruptSortedFile)
		}
		key := raw[:klen]
		raw = raw[klen:]
		if len(raw) < 4 {
			return nil, fmt.Errorf("sortfile: truncated record: %w", shuttleerr.ErrCorruptSortedFile)
		}
		vlen := binary.LittleEndian.Uint32(raw)
		raw = raw[4:]
		if uint32(len(raw)) < vlen {
			return nil, fmt.Errorf("sortfile: truncated value: %w", shuttleerr.ErrCorruptSortedFile)
		}
		value := raw[:vlen]
		raw = raw[vlen:]
		out = append(out, kv{key: key, value: value})
	}
	return out, nil
}

func encodeIndex(entries []indexEntry) []byte {
	buf := make([]byte, 0, 256)
	var hdr [4]byte
	var off [8]byte
	for _, e := range entries {
		binary.LittleEndian.PutUint32(hdr[:], uint32(len(e.key)))
		buf = append(buf, hdr[:]...)
		buf = append(buf, e.key...)
		binary.LittleEndian.PutUint64(off[:], uint64(e.offset))
		buf = append(buf, off[:]...)
	}
	return buf
}

func decodeIndex(raw []byte) ([]indexEntry, error) {
	var out []indexEntry
	for len(raw) > 0 {
		if len(raw) < 4 {
			return nil, fmt.Errorf("sortfile: truncated index entry: %w", shuttleerr.ErrCorruptSortedFile)
		}
		klen := binary.LittleEndian.Uint32(raw)
		raw = raw[4:]
		if uint32(len(raw)) < klen+8 {
			return nil, fmt.Errorf("sortfile: truncated index entry: %w", shuttleerr.ErrCorruptSortedFile)
		}
		key := raw[:klen]
		raw = raw[klen:]
		off := int64(binary.LittleEndian.Uint64(raw))
		raw = raw[8:]
		out = append(out, indexEntry{key: key, offset: off})
	}
	return out, nil
}

func writeLenPrefixed(w io.Writer, compressed []byte) error {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(compressed)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(compressed)
	return err
}

func readLenPrefixed(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func compress(raw []byte) []byte {
	return s2.EncodeSnappy(nil, raw)
}

func decompress(raw []byte) ([]byte, error) {
	return s2.Decode(nil, raw)
}

// bufWriter is the subset of *bufio.Writer a Writer needs, kept as an
// interface so tests can swap in an in-memory sink.
type bufWriter interface {
	io.Writer
	Flush() error
}

var _ bufWriter = (*bufio.Writer)(nil)
