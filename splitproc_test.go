//go:build linux

package splitproc

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/five82/splitproc/internal/clip"
	"github.com/five82/splitproc/internal/shm"
	"github.com/five82/splitproc/internal/syntheticclip"
	"github.com/five82/splitproc/internal/xerr"
)

func testPort(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("-e2e-%s-%d", t.Name(), time.Now().UnixNano())
}

func syntheticPair(planar bool) (clip.Source, shm.ClipSpec) {
	def := syntheticclip.Def{Width: 16, Height: 8, FrameCount: 50, Planar: planar}
	spec := shm.ClipSpec{Width: 16, Height: 8, Format: clip.SampleFormatY8}
	if planar {
		spec.Format = clip.SampleFormatPlanarYUV
		spec.SubsampleW, spec.SubsampleH = 1, 1
	}
	return syntheticclip.New(def), spec
}

func TestServerClientEndToEnd(t *testing.T) {
	src, spec := syntheticPair(true)
	port := testPort(t)

	srv, err := NewServer(context.Background(), []clip.Source{src}, []shm.ClipSpec{spec},
		WithPort(port),
		WithSlotCount(4),
		WithCacheBounds(8, 2),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown() })
	require.Equal(t, 1, srv.ClipCount())

	client, err := NewClient([]shm.ClipSpec{spec},
		WithPort(port),
		WithSlotCount(4),
		WithClipIndex(0),
		WithRequestTimeout(5*time.Second),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	vi := client.GetVideoInfo()
	require.Equal(t, 50, vi.FrameCount)
	require.Zero(t, vi.AudioSampleRate, "the proxy never advertises audio")

	// Frames crossing the channel must match the upstream source bytes.
	reference := syntheticclip.New(syntheticclip.Def{Width: 16, Height: 8, FrameCount: 50, Planar: true})
	for _, n := range []int{0, 1, 7, 3} {
		got, err := client.GetFrame(n)
		require.NoError(t, err)
		want, err := reference.GetFrame(n)
		require.NoError(t, err)
		require.Equal(t, want.Y, got.Y, "frame %d luma", n)
		require.Equal(t, want.U, got.U, "frame %d U", n)
		require.Equal(t, want.V, got.V, "frame %d V", n)
	}

	parity, err := client.GetParity(2)
	require.NoError(t, err)
	require.True(t, parity)

	// Inert host-contract methods.
	require.NoError(t, client.GetAudio(make([]byte, 8), 0, 4))
	client.SetCacheHints(0, 0)
}

func TestServerLocalEntrypoints(t *testing.T) {
	src, spec := syntheticPair(false)
	port := testPort(t)

	srv, err := NewServer(context.Background(), []clip.Source{src}, []shm.ClipSpec{spec}, WithPort(port))
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown() })

	frame, err := srv.GetFrame(0, 5)
	require.NoError(t, err)
	require.Len(t, frame.Y, 16*8)

	parity, err := srv.GetParity(0, 3)
	require.NoError(t, err)
	require.False(t, parity)

	srv.ReportCacheStatus()
}

func TestClientObservesServerShutdown(t *testing.T) {
	src, spec := syntheticPair(false)
	port := testPort(t)

	srv, err := NewServer(context.Background(), []clip.Source{src}, []shm.ClipSpec{spec}, WithPort(port))
	require.NoError(t, err)

	client, err := NewClient([]shm.ClipSpec{spec}, WithPort(port), WithClipIndex(0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.GetFrame(0)
	require.NoError(t, err)

	require.NoError(t, srv.Shutdown())

	_, err = client.GetFrame(40)
	require.ErrorIs(t, err, xerr.ErrServerShutDown)
}

func TestEventHandlerReceivesLifecycleEvents(t *testing.T) {
	src, spec := syntheticPair(false)
	port := testPort(t)

	var mu sync.Mutex
	var types []string
	handler := func(e Event) error {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, e.Type())
		require.NotZero(t, e.Timestamp())
		return nil
	}

	srv, err := NewServerWithHandler(context.Background(), []clip.Source{src}, []shm.ClipSpec{spec}, handler, WithPort(port))
	require.NoError(t, err)
	require.NoError(t, srv.Shutdown())

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, types, EventTypeServerStarted)
	require.Contains(t, types, EventTypeClipReady)
	require.Contains(t, types, EventTypeShutdown)
}

func TestConstructorsValidateOptions(t *testing.T) {
	src, spec := syntheticPair(false)

	_, err := NewServer(context.Background(), []clip.Source{src}, []shm.ClipSpec{spec},
		WithPort(testPort(t)),
		WithCacheBounds(2, 4),
	)
	require.Error(t, err, "max_cache_frames must exceed cache_behind")

	_, err = NewClient([]shm.ClipSpec{spec}, WithPort(""))
	require.Error(t, err, "empty port is rejected before touching shared memory")
}
