package plaintext

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReaderDiscardsPartialFirstLine(t *testing.T) {
	data := "aaa\nbbb\nccc\nddd\n"
	src := bytes.NewReader([]byte(data))
	// offset 5 lands mid "bbb": should skip to "ccc".
	r, err := NewReader(src, 5, 0)
	require.NoError(t, err)
	var lines []string
	for r.Next() {
		lines = append(lines, string(r.Line()))
	}
	require.NoError(t, r.Err())
	require.Equal(t, []string{"ccc", "ddd"}, lines)
}

func TestReaderKeepsLineBoundaryOffset(t *testing.T) {
	data := "aaa\nbbb\nccc\n"
	src := bytes.NewReader([]byte(data))
	r, err := NewReader(src, 4, 0) // offset 4 is exactly the start of "bbb"
	require.NoError(t, err)
	var lines []string
	for r.Next() {
		lines = append(lines, string(r.Line()))
	}
	require.NoError(t, r.Err())
	require.Equal(t, []string{"bbb", "ccc"}, lines)
}

func TestReaderNoTrailingNewline(t *testing.T) {
	data := "aaa\nbbb"
	src := bytes.NewReader([]byte(data))
	r, err := NewReader(src, 0, 0)
	require.NoError(t, err)
	var lines []string
	for r.Next() {
		lines = append(lines, string(r.Line()))
	}
	require.NoError(t, r.Err())
	require.Equal(t, []string{"aaa", "bbb"}, lines)
}

func TestReaderEndOffsetBound(t *testing.T) {
	data := strings.Repeat("x\n", 100)
	src := bytes.NewReader([]byte(data))
	r, err := NewReader(src, 0, 10) // only the first 5 lines' worth of bytes
	require.NoError(t, err)
	count := 0
	for r.Next() {
		count++
	}
	require.NoError(t, r.Err())
	require.GreaterOrEqual(t, count, 5)
}
