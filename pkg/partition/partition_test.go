package partition

import (
	"testing"

	"github.com/shuttle-mr/shuttle/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestHashCodeEmpty(t *testing.T) {
	require.Equal(t, 0, HashCode(nil))
}

func TestHashCodeNonNegative(t *testing.T) {
	require.GreaterOrEqual(t, HashCode([]byte("hello world")), 0)
}

func TestKeyFieldPartitionerSplitsOnSeparator(t *testing.T) {
	p := New(types.PartitionSchemeKeyField, "\t", 1, 1, 4)
	key, dest := p.Calc([]byte("foo\tbar\tbaz"))
	require.Equal(t, "foo", string(key))
	require.GreaterOrEqual(t, dest, 0)
	require.Less(t, dest, 4)
}

func TestKeyFieldPartitionerDeterministic(t *testing.T) {
	p := New(types.PartitionSchemeKeyField, "\t", 1, 1, 4)
	_, d1 := p.Calc([]byte("same-key\tvalue1"))
	_, d2 := p.Calc([]byte("same-key\tvalue2"))
	require.Equal(t, d1, d2)
}

func TestIntHashPartitionerUsesLeadingInt(t *testing.T) {
	p := New(types.PartitionSchemeIntHash, "\t", 0, 0, 4)
	key, dest := p.Calc([]byte("5 mykey\tvalue"))
	require.Equal(t, "mykey", string(key))
	require.Equal(t, 5%4, dest)
}

func TestIntHashPartitionerFallsBackToKeyHash(t *testing.T) {
	p := New(types.PartitionSchemeIntHash, "\t", 0, 0, 4)
	key, dest := p.Calc([]byte("mykey\tvalue"))
	require.Equal(t, "mykey", string(key))
	require.Equal(t, HashCode([]byte("mykey"))%4, dest)
}
