//go:build linux

package proxy

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/five82/splitproc/internal/clip"
	"github.com/five82/splitproc/internal/shm"
	"github.com/five82/splitproc/internal/xerr"
)

func testKey(t *testing.T) (port, key string) {
	t.Helper()
	port = fmt.Sprintf("-proxy-test-%s-%d", t.Name(), time.Now().UnixNano())
	return port, shm.Key(port)
}

// newServedRegion creates a region the way a server would, with video info
// and geometry already published for one packed 4x2 clip.
func newServedRegion(t *testing.T) (port string, region *shm.Region, specs []shm.ClipSpec) {
	t.Helper()
	specs = []shm.ClipSpec{{Width: 4, Height: 2, Format: clip.SampleFormatY8}}
	layout := shm.NewLayout(specs, 4)

	port, key := testKey(t)
	region, err := shm.Create(key, layout)
	require.NoError(t, err)
	t.Cleanup(func() { _ = region.Close() })

	region.PublishVideoInfo(0, clip.VideoInfo{
		Width: 4, Height: 2, FrameCount: 100,
		FPSNumerator: 24, FPSDenom: 1,
		AudioSampleRate: 48000, AudioChannels: 2,
	})
	region.SetFrameGeometry(0, 4, 0, 0, 0)
	return port, region, specs
}

func TestPrefetchHitSkipsRequestProtocol(t *testing.T) {
	port, region, specs := newServedRegion(t)

	// Publish frame 10 into its slot the way the dispatcher would: pixels
	// first, frame_number last.
	slot := shm.SlotIndex(10, 4)
	buf := region.FrameBuffer(0, slot)
	for i := range buf {
		buf[i] = byte(10 + i)
	}
	atomic.StoreUint32(region.ResponseFrameNumberWord(0, slot), 10)

	p, err := Open(specs, Config{Port: port, ClipIndex: 0, SlotCount: 4, RequestTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	frame, err := p.GetFrame(10)
	require.NoError(t, err)
	require.Equal(t, byte(10), frame.Y[0])
	require.Len(t, frame.Y, 4*2)

	// No request traffic: the slot already held the frame, so the request
	// record must still be empty and nobody registered interest.
	require.Equal(t, shm.ReqEmpty, atomic.LoadUint32(region.RequestTypeWord()))
	require.Equal(t, uint32(0), atomic.LoadUint32(region.ResponseClientCountWord(0, slot)))
}

func TestGetFrameObservesShutdown(t *testing.T) {
	port, region, specs := newServedRegion(t)

	p, err := Open(specs, Config{Port: port, ClipIndex: 0, SlotCount: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	atomic.StoreUint32(region.ShutdownWord(), 1)

	_, err = p.GetFrame(0)
	require.ErrorIs(t, err, xerr.ErrServerShutDown)

	_, err = p.GetParity(0)
	require.ErrorIs(t, err, xerr.ErrServerShutDown)
}

func TestGetFrameTimesOutWithoutServer(t *testing.T) {
	port, _, specs := newServedRegion(t)

	p, err := Open(specs, Config{Port: port, ClipIndex: 0, SlotCount: 4, RequestTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	// Nothing is dispatching on the other side, so the bounded wait is the
	// only way out.
	_, err = p.GetFrame(3)
	require.ErrorIs(t, err, xerr.ErrRequestTimedOut)
}

func TestGetVideoInfoZeroesAudio(t *testing.T) {
	port, _, specs := newServedRegion(t)

	p, err := Open(specs, Config{Port: port, ClipIndex: 0, SlotCount: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	vi := p.GetVideoInfo()
	require.Equal(t, 100, vi.FrameCount)
	require.Zero(t, vi.AudioSampleRate)
	require.Zero(t, vi.AudioChannels)
}

func TestOpenRejectsBadClipIndex(t *testing.T) {
	specs := []shm.ClipSpec{{Width: 4, Height: 2, Format: clip.SampleFormatY8}}
	_, err := Open(specs, Config{Port: "unused", ClipIndex: 1, SlotCount: 4})
	require.ErrorIs(t, err, xerr.ErrInvalidClipIndex)
}

func TestOpenFailsWithoutServerRegion(t *testing.T) {
	specs := []shm.ClipSpec{{Width: 4, Height: 2, Format: clip.SampleFormatY8}}
	_, err := Open(specs, Config{Port: "-proxy-test-no-region", ClipIndex: 0, SlotCount: 4})
	require.ErrorIs(t, err, xerr.ErrChannelInit)
}
