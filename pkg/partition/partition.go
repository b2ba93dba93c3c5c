// Package partition routes a map task's output records to reduce
// partitions, by key field or by an explicit leading integer hash.
//
// The 31-bit polynomial rolling hash (h = 31*h + byte, masked to 31 bits)
// and the field-splitting rules for both partitioner kinds are
// reproduced bit-for-bit so routing stays deterministic and reproducible
// across workers for the same input.
package partition

import (
	"bytes"
	"strconv"

	"github.com/shuttle-mr/shuttle/pkg/types"
)

// Partitioner maps one output record to a destination partition index in
// [0, dest).
type Partitioner interface {
	// Calc splits key out of line and returns its destination partition.
	Calc(line []byte) (key []byte, dest int)
	// CalcKey returns the destination partition for an already-extracted key.
	CalcKey(key []byte) int
}

// HashCode computes a 31-bit polynomial rolling hash:
// h = 31*h + b for each byte b, masked to the low 31 bits. An empty string
// hashes to 0.
func HashCode(s []byte) int {
	if len(s) == 0 {
		return 0
	}
	h := 0
	for _, b := range s {
		h = 31*h + int(int8(b))
	}
	return h & 0x7FFFFFFF
}

// New builds a Partitioner of the given scheme. separator defaults to "\t"
// when empty; keyFields/partitionFields default to 1 when zero (only used
// by PartitionSchemeKeyField).
func New(scheme types.PartitionScheme, separator string, keyFields, partitionFields, dest int) Partitioner {
	if separator == "" {
		separator = "\t"
	}
	if keyFields == 0 {
		keyFields = 1
	}
	if partitionFields == 0 {
		partitionFields = 1
	}
	switch scheme {
	case types.PartitionSchemeIntHash:
		return &intHash{separator: separator, dest: dest}
	default:
		return &keyField{separator: separator, keyFields: keyFields, partitionFields: partitionFields, dest: dest}
	}
}

// fieldEnd returns the index just past the separator byte ending the n-th
// field of data (fields 1-indexed), treating the end of data as one more
// separator, so data[:fieldEnd-1] is the first n fields (or all of data if
// it has fewer) — mirrors advancing a cursor by strcspn(p, sep)+1, n times.
func fieldEnd(data []byte, sep []byte, n int) int {
	p := 0
	for i := 0; i < n; i++ {
		if p >= len(data) {
			return len(data) + 1
		}
		rel := bytes.IndexAny(data[p:], string(sep))
		if rel < 0 {
			return len(data) + 1
		}
		p += rel + 1
	}
	return p
}

type keyField struct {
	separator                   string
	keyFields, partitionFields  int
	dest                        int
}

func (k *keyField) Calc(line []byte) ([]byte, int) {
	sep := []byte(k.separator)
	p1 := fieldEnd(line, sep, k.keyFields)
	p2 := fieldEnd(line, sep, k.partitionFields)
	if p1 == 0 {
		p1 = 1
	}
	if p2 == 0 {
		p2 = 1
	}
	key := line[:p1-1]
	partitionKey := line[:p2-1]
	return key, HashCode(partitionKey) % k.dest
}

func (k *keyField) CalcKey(key []byte) int {
	return HashCode(key) % k.dest
}

type intHash struct {
	separator string
	dest      int
}

// record format: "[int][space]key[separator]value", or just "key[separator]value"
func (ih *intHash) Calc(line []byte) ([]byte, int) {
	spacePos := bytes.IndexByte(line, ' ')
	sep := []byte(ih.separator)
	if spacePos >= 0 {
		n, _ := strconv.Atoi(string(line[:spacePos]))
		rest := line[spacePos+1:]
		span := bytes.IndexAny(rest, string(sep))
		if span < 0 {
			span = len(rest)
		}
		return rest[:span], n % ih.dest
	}
	span := bytes.IndexAny(line, string(sep))
	if span < 0 {
		span = len(line)
	}
	key := line[:span]
	return key, HashCode(key) % ih.dest
}

func (ih *intHash) CalcKey(key []byte) int {
	spacePos := bytes.IndexByte(key, ' ')
	if spacePos >= 0 {
		n, _ := strconv.Atoi(string(key[:spacePos]))
		return n % ih.dest
	}
	return HashCode(key) % ih.dest
}
