package clip

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type nopSource struct{}

func (nopSource) GetFrame(int) (Frame, error)         { return Frame{}, nil }
func (nopSource) GetParity(int) (bool, error)         { return false, nil }
func (nopSource) GetAudio([]byte, int64, int64) error { return nil }
func (nopSource) GetVideoInfo() VideoInfo             { return VideoInfo{} }

func TestHealthyUntilMarkError(t *testing.T) {
	c := New(0, nopSource{})
	require.True(t, c.Healthy())

	c.Cache.PushBack(Frame{Y: []byte{1}})
	require.Equal(t, 1, c.Cache.Len())

	c.MarkError("upstream exploded")
	require.False(t, c.Healthy())
	require.Equal(t, "upstream exploded", c.ErrorMsg)
	require.Equal(t, 0, c.Cache.Len(), "MarkError must clear the cache")
}

func TestEffectiveLastRequestedDefaultsToCacheStart(t *testing.T) {
	c := New(0, nopSource{})
	c.Cache.Reset(10)
	require.Equal(t, 10, c.EffectiveLastRequested(), "unset last-requested resolves to cache start")

	c.LastRequestedFrame = 3
	c.LastRequestedSet = true
	require.Equal(t, 3, c.EffectiveLastRequested())
}

func TestCheckInvariantsCatchesOutOfBoundCache(t *testing.T) {
	c := New(0, nopSource{})
	c.Cache.Reset(0)
	for n := 0; n < 3; n++ {
		c.Cache.PushBack(Frame{Y: []byte{byte(n)}})
	}
	c.LastRequestedFrame = 2
	c.LastRequestedSet = true
	require.NoError(t, c.CheckInvariants(8, 4))

	c.LastRequestedFrame = 10
	require.Error(t, c.CheckInvariants(8, 4), "last_requested - cache_start exceeding cache_behind must be rejected")
}
