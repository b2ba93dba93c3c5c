package shuffle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPileScaleClampsLowAndHigh(t *testing.T) {
	require.Equal(t, 10, pileScale(1))
	require.Equal(t, 10, pileScale(50))
	require.Equal(t, 300, pileScale(1_000_000))
}

func TestPileScaleSqrt(t *testing.T) {
	require.Equal(t, 100, pileScale(10000))
}

func TestPileCountDivides(t *testing.T) {
	require.Equal(t, 32, pileCount(1000)) // scale=ceil(sqrt(1000))=32, ceil(1000/32)=32
}

func TestPrefixUpperBound(t *testing.T) {
	up := prefixUpperBound([]byte("partition-3-"))
	require.NotNil(t, up)
	require.Greater(t, string(up), "partition-3-")
	require.Less(t, string(up), "partition-30")
}

type fakeIter struct {
	keys, vals [][]byte
	i          int
}

func (f *fakeIter) Done() bool    { return f.i >= len(f.keys) }
func (f *fakeIter) Next()         { f.i++ }
func (f *fakeIter) Key() []byte   { return f.keys[f.i] }
func (f *fakeIter) Value() []byte { return f.vals[f.i] }
func (f *fakeIter) Err() error    { return nil }

func TestMergeOrdersAcrossSources(t *testing.T) {
	a := &fakeIter{keys: [][]byte{[]byte("a"), []byte("c")}, vals: [][]byte{[]byte("1"), []byte("3")}}
	b := &fakeIter{keys: [][]byte{[]byte("b"), []byte("d")}, vals: [][]byte{[]byte("2"), []byte("4")}}
	m := Merge([]SourceIterator{a, b})
	var got []string
	for !m.Done() {
		got = append(got, string(m.Key()))
		m.Next()
	}
	require.NoError(t, m.Err())
	require.Equal(t, []string{"a", "b", "c", "d"}, got)
}
