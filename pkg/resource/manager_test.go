package resource

import (
	"testing"

	"github.com/shuttle-mr/shuttle/pkg/shuttleerr"
	"github.com/stretchr/testify/require"
)

func TestIDManagerAcquireExhausts(t *testing.T) {
	m := NewID(3)
	for i := 0; i < 3; i++ {
		it, err := m.Acquire(1)
		require.NoError(t, err)
		require.Equal(t, i, it.No)
	}
	_, err := m.Acquire(1)
	require.ErrorIs(t, err, shuttleerr.ErrNoUnitsAvailable)
}

func TestCompleteIsCompareAndSet(t *testing.T) {
	m := NewID(1)
	_, err := m.Acquire(1)
	require.NoError(t, err)
	first, err := m.Complete(0)
	require.NoError(t, err)
	require.True(t, first)
	second, err := m.Complete(0)
	require.NoError(t, err)
	require.False(t, second)
}

func TestReturnPutsBackToPending(t *testing.T) {
	m := NewID(1)
	_, err := m.Acquire(1)
	require.NoError(t, err)
	require.True(t, m.IsAllocated(0))
	require.NoError(t, m.Return(0))
	require.False(t, m.IsAllocated(0))
	require.Equal(t, 1, m.Pending())
}

func TestBlockManagerSplitsBySize(t *testing.T) {
	m := NewBlock([]string{"f1"}, []int64{250}, 100)
	require.Equal(t, 3, m.SumOfItem())
	it0, err := m.Acquire(1)
	require.NoError(t, err)
	require.Equal(t, int64(0), it0.Offset)
	require.Equal(t, int64(100), it0.Size)
}

func TestNLineManagerSplitsByLineCount(t *testing.T) {
	m := NewNLine([]string{"f1"}, []int64{25}, 10)
	require.Equal(t, 3, m.SumOfItem())
}

func TestUnknownUnitErrors(t *testing.T) {
	m := NewID(1)
	_, err := m.Check(5)
	require.ErrorIs(t, err, shuttleerr.ErrUnknownUnit)
}
