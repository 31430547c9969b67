package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShouldProcessOncePerWindow(t *testing.T) {
	d := New(time.Minute, 100)

	require.True(t, d.ShouldProcess("msg-1"))
	require.False(t, d.ShouldProcess("msg-1"))
	require.True(t, d.ShouldProcess("msg-2"))
}

func TestEmptyIDAlwaysProcessed(t *testing.T) {
	d := New(time.Minute, 100)

	require.True(t, d.ShouldProcess(""))
	require.True(t, d.ShouldProcess(""))
}

func TestExpiredIDProcessedAgain(t *testing.T) {
	d := New(10*time.Millisecond, 100)

	require.True(t, d.ShouldProcess("msg-1"))
	time.Sleep(20 * time.Millisecond)
	require.True(t, d.ShouldProcess("msg-1"))
}

func TestPruneKeepsMapBounded(t *testing.T) {
	d := New(time.Nanosecond, 10)

	for i := 0; i < 100; i++ {
		d.ShouldProcess(string(rune('a' + i)))
	}
	require.LessOrEqual(t, d.Len(), 11)
}
