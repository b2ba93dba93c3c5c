// Package plaintext reads line-delimited input the way a map task sees its
// assigned byte range or line range: aligned to whole lines even though the
// Resource Manager's split boundaries land mid-line.
//
// Seek backs up one byte before the requested offset, reads it, and if it
// isn't a newline discards the partial first line so every reader after the
// first starts on a line boundary; a reader never emits that leading
// partial line, leaving it for the previous split to own.
package plaintext

import (
	"bufio"
	"io"
)

// Reader yields whole lines from an aligned starting position within a
// larger file, stopping once it has read past endOffset (0 meaning
// unbounded, i.e. read to EOF).
type Reader struct {
	src        io.ReadSeeker
	br         *bufio.Reader
	endOffset  int64 // 0 = unbounded
	pos        int64
	line       []byte
	err        error
	done       bool
}

// NewReader seeks src to startOffset, discarding a leading partial line
// unless startOffset is already a line boundary, and prepares to yield
// lines up to endOffset (exclusive; 0 means read to EOF).
func NewReader(src io.ReadSeeker, startOffset, endOffset int64) (*Reader, error) {
	r := &Reader{src: src, endOffset: endOffset, pos: startOffset}
	if startOffset > 0 {
		if _, err := src.Seek(startOffset-1, io.SeekStart); err != nil {
			return nil, err
		}
		var b [1]byte
		if _, err := io.ReadFull(src, b[:]); err != nil {
			return nil, err
		}
		if _, err := src.Seek(startOffset, io.SeekStart); err != nil {
			return nil, err
		}
		r.br = bufio.NewReaderSize(src, 40960)
		if b[0] != '\n' {
			// Discard the partial first line: it belongs to the split
			// whose byte range covers it.
			if _, err := r.br.ReadString('\n'); err != nil && err != io.EOF {
				return nil, err
			}
		}
	} else {
		if _, err := src.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		r.br = bufio.NewReaderSize(src, 40960)
	}
	return r, nil
}

// Next reports whether another line is available and, if so, advances to
// it. A file with no trailing newline still yields its final partial line.
func (r *Reader) Next() bool {
	if r.done {
		return false
	}
	if r.endOffset > 0 {
		pos, err := r.src.Seek(0, io.SeekCurrent)
		if err == nil && pos-int64(r.br.Buffered()) >= r.endOffset {
			r.done = true
			return false
		}
	}
	line, err := r.br.ReadString('\n')
	if len(line) == 0 && err != nil {
		r.done = true
		if err != io.EOF {
			r.err = err
		}
		return false
	}
	if err != nil && err != io.EOF {
		r.err = err
		r.done = true
		return false
	}
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	r.line = []byte(line)
	if err == io.EOF {
		// Last record; no trailing newline. Still valid, consumed on the
		// next Next() call which will return false.
	}
	return true
}

// Line returns the current line's bytes, without the trailing newline.
func (r *Reader) Line() []byte { return r.line }

// Err returns the first non-EOF error encountered.
func (r *Reader) Err() error { return r.err }
