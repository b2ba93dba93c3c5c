package worker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCombineLinesFoldsSameKeyValues(t *testing.T) {
	lines := [][]byte{
		[]byte("apple\t1"),
		[]byte("banana\t1"),
		[]byte("apple\t1"),
		[]byte("apple\t1"),
	}

	combined := combineLines(lines)
	require.Len(t, combined, 2)

	values := map[string]string{}
	for _, line := range combined {
		key := lineKey(line)
		values[string(key)] = string(line[len(key):])
	}

	require.Equal(t, "1,1,1", values["apple\t"])
	require.Equal(t, "1", values["banana\t"])
}

func TestCombineLinesHandlesNoKeySeparator(t *testing.T) {
	lines := [][]byte{[]byte("solo-line")}
	combined := combineLines(lines)
	require.Len(t, combined, 1)
	require.Equal(t, "solo-line", string(combined[0]))
}
