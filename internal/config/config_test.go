package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaultsAndOptions(t *testing.T) {
	c := New()
	require.Equal(t, DefaultPort, c.Port)
	require.Equal(t, DefaultSlotCount, c.SlotCount)
	require.Equal(t, DefaultMaxCacheFrames, c.MaxCacheFrames)
	require.Equal(t, DefaultCacheBehind, c.CacheBehind)
	require.NoError(t, c.Validate())

	c = New(
		WithPort("7"),
		WithClipIndex(2),
		WithSlotCount(16),
		WithCacheBounds(64, 8),
		WithRequestTimeout(30),
		WithVerbose(true),
	)
	require.Equal(t, "7", c.Port)
	require.Equal(t, 2, c.ClipIndex)
	require.Equal(t, 16, c.SlotCount)
	require.Equal(t, 64, c.MaxCacheFrames)
	require.Equal(t, 8, c.CacheBehind)
	require.Equal(t, uint64(30), c.RequestTimeoutSecs)
	require.True(t, c.Verbose)
	require.NoError(t, c.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate Option
		want   string
	}{
		{"empty port", WithPort(""), "port"},
		{"zero slots", WithSlotCount(0), "slot_count"},
		{"negative cache behind", WithCacheBounds(8, -1), "cache_behind"},
		{"cache too small", WithCacheBounds(2, 4), "max_cache_frames"},
		{"negative clip index", WithClipIndex(-1), "clip_index"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.mutate)
			err := c.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}
