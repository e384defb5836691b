package clip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameCacheContiguousPushAndEvict(t *testing.T) {
	var c FrameCache
	require.Equal(t, 0, c.Len())
	require.Equal(t, 0, c.Start())
	require.Equal(t, 0, c.End())

	for n := 0; n < 5; n++ {
		require.False(t, c.Contains(n))
		c.PushBack(Frame{Y: []byte{byte(n)}})
	}
	require.Equal(t, 5, c.Len())
	require.Equal(t, 0, c.Start())
	require.Equal(t, 5, c.End())

	for n := 0; n < 5; n++ {
		require.True(t, c.Contains(n))
		require.Equal(t, byte(n), c.At(n).Y[0])
	}
	require.False(t, c.Contains(5))

	c.PopFront()
	require.Equal(t, 4, c.Len())
	require.Equal(t, 1, c.Start())
	require.False(t, c.Contains(0))
	require.True(t, c.Contains(1))
}

func TestFrameCacheClearAndReset(t *testing.T) {
	var c FrameCache
	c.PushBack(Frame{Y: []byte{1}})
	c.PushBack(Frame{Y: []byte{2}})
	c.Clear()
	require.Equal(t, 0, c.Len())
	require.Equal(t, 0, c.Start(), "Clear leaves start untouched, only empties frames")

	c.Reset(42)
	require.Equal(t, 0, c.Len())
	require.Equal(t, 42, c.Start())
	require.Equal(t, 42, c.End())
	require.False(t, c.Contains(41))
	require.False(t, c.Contains(42))
}
