package ring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushBelowCapacity(t *testing.T) {
	b := New[int](4)
	b.Push(1)
	b.Push(2)
	b.Push(3)

	require.Equal(t, 3, b.Len())
	require.Equal(t, 4, b.Capacity())
	require.Equal(t, []int{1, 2, 3}, b.Snapshot())
}

func TestPushEvictsOldest(t *testing.T) {
	b := New[int](3)
	for i := 1; i <= 5; i++ {
		b.Push(i)
	}

	require.Equal(t, 3, b.Len())
	require.Equal(t, []int{3, 4, 5}, b.Snapshot())
	require.Equal(t, 3, b.At(0))
	require.Equal(t, 5, b.At(2))
}

func TestClear(t *testing.T) {
	b := New[string](2)
	b.Push("a")
	b.Push("b")
	b.Clear()

	require.Equal(t, 0, b.Len())
	require.Empty(t, b.Snapshot())

	b.Push("c")
	require.Equal(t, []string{"c"}, b.Snapshot())
}

func TestNewPanicsOnZeroCapacity(t *testing.T) {
	require.Panics(t, func() { New[int](0) })
}
