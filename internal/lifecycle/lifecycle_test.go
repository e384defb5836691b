//go:build linux

package lifecycle

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/five82/splitproc/internal/clip"
	"github.com/five82/splitproc/internal/shm"
)

type infoCountingSource struct {
	infoCalls atomic.Int32
}

func (s *infoCountingSource) GetFrame(n int) (clip.Frame, error) {
	return clip.Frame{Y: []byte{byte(n)}}, nil
}

func (s *infoCountingSource) GetParity(n int) (bool, error) { return n%2 == 0, nil }

func (s *infoCountingSource) GetAudio([]byte, int64, int64) error { return nil }

func (s *infoCountingSource) GetVideoInfo() clip.VideoInfo {
	s.infoCalls.Add(1)
	return clip.VideoInfo{Width: 4, Height: 2, FrameCount: 10}
}

func TestStartPopulatesEveryClipAndStopUnlinks(t *testing.T) {
	const clipCount = 5
	sources := make([]clip.Source, clipCount)
	counting := make([]*infoCountingSource, clipCount)
	specs := make([]shm.ClipSpec, clipCount)
	for i := range sources {
		counting[i] = &infoCountingSource{}
		sources[i] = counting[i]
		specs[i] = shm.ClipSpec{Width: 4, Height: 2, Format: clip.SampleFormatY8}
	}

	port := fmt.Sprintf("-lifecycle-test-%d", time.Now().UnixNano())
	srv, err := Start(context.Background(), sources, specs, Options{
		Port:           port,
		SlotCount:      2,
		MaxCacheFrames: 4,
		CacheBehind:    1,
	})
	require.NoError(t, err)

	for i, src := range counting {
		require.Equal(t, int32(1), src.infoCalls.Load(), "clip %d video info fetched exactly once at startup", i)
	}

	shmPath := "/dev/shm/" + shm.Key(port)
	_, err = os.Stat(shmPath)
	require.NoError(t, err, "region must exist while the server runs")

	require.NoError(t, Stop(srv, port))
	_, err = os.Stat(shmPath)
	require.True(t, os.IsNotExist(err), "Stop must unlink the backing object")
}

func TestCleanStalePortIsIdempotent(t *testing.T) {
	CleanStalePort("-lifecycle-never-created")
	CleanStalePort("-lifecycle-never-created")
}
