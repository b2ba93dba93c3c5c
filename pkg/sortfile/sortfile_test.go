package sortfile

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/shuttle-mr/shuttle/pkg/shuttleerr"
	"github.com/stretchr/testify/require"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func TestWriterRejectsOutOfOrderKeys(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nopCloser{})
	require.NoError(t, w.Put([]byte("b"), []byte("1")))
	err := w.Put([]byte("a"), []byte("2"))
	require.ErrorIs(t, err, shuttleerr.ErrOutOfOrderKey)
}

func TestRoundTripScanOrdered(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nopCloser{})
	for i := 0; i < 2000; i++ {
		key := []byte(fmt.Sprintf("k%05d", i))
		val := []byte(fmt.Sprintf("v%05d", i))
		require.NoError(t, w.Put(key, val))
	}
	require.NoError(t, w.Close())

	reader := bytes.NewReader(buf.Bytes())
	rd := NewReader(reader, int64(buf.Len()))
	it := rd.Scan([]byte("k00500"), []byte("k00510"))
	var got []string
	for !it.Done() {
		got = append(got, string(it.Key()))
		it.Next()
	}
	require.NoError(t, it.Err())
	require.Len(t, got, 10)
	require.Equal(t, "k00500", got[0])
	require.Equal(t, "k00509", got[len(got)-1])
}

func TestScanUnboundedEndKey(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nopCloser{})
	for i := 0; i < 50; i++ {
		require.NoError(t, w.Put([]byte(fmt.Sprintf("k%03d", i)), []byte("v")))
	}
	require.NoError(t, w.Close())

	rd := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	it := rd.Scan([]byte("k045"), nil)
	count := 0
	for !it.Done() {
		count++
		it.Next()
	}
	require.NoError(t, it.Err())
	require.Equal(t, 5, count)
}

func TestIndexSparsification(t *testing.T) {
	entries := make([]indexEntry, 0, 25000)
	for i := 0; i < 25000; i++ {
		entries = append(entries, indexEntry{key: []byte(fmt.Sprintf("%05d", i)), offset: int64(i)})
	}
	out := sparsifyIndex(entries)
	require.LessOrEqual(t, len(out), maxIndexSize)
}
