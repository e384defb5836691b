package syntheticclip

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/five82/splitproc/internal/clip"
)

func writeDef(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pattern.clip.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadDefaultsAndValidation(t *testing.T) {
	path := writeDef(t, `{"width": 64, "height": 32, "frame_count": 10}`)
	def, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint32(24000), def.FPSNumerator)
	require.Equal(t, uint32(1001), def.FPSDenom)
	require.NotEmpty(t, def.FailMessage)

	_, err = Load(writeDef(t, `{"width": 0, "height": 32, "frame_count": 10}`))
	require.Error(t, err)

	_, err = Load(writeDef(t, `{"width": 64, "height": 32, "frame_count": 0}`))
	require.Error(t, err)

	_, err = Load(writeDef(t, `not json`))
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.clip.json"))
	require.Error(t, err)
}

func TestName(t *testing.T) {
	require.Equal(t, "pattern", Name("/some/dir/pattern.clip.json"))
	require.Equal(t, "pattern", Name("pattern.clip.json"))
}

func TestGetFrameIsDeterministic(t *testing.T) {
	src := New(Def{Width: 16, Height: 8, FrameCount: 20, Planar: true})

	a, err := src.GetFrame(7)
	require.NoError(t, err)
	b, err := src.GetFrame(7)
	require.NoError(t, err)
	require.Equal(t, a.Y, b.Y)
	require.Equal(t, a.U, b.U)
	require.Equal(t, a.V, b.V)

	c, err := src.GetFrame(8)
	require.NoError(t, err)
	require.NotEqual(t, a.Y, c.Y, "distinct frames must have distinct patterns")

	require.Len(t, a.Y, 16*8)
	require.Len(t, a.U, 8*4)
	require.Len(t, a.V, 8*4)
}

func TestGetFrameFailures(t *testing.T) {
	src := New(Def{Width: 8, Height: 8, FrameCount: 10, FailAtFrame: 7, FailMessage: "decode blew up"})

	_, err := src.GetFrame(6)
	require.NoError(t, err)

	_, err = src.GetFrame(7)
	var upstreamErr *clip.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	require.Equal(t, "decode blew up", upstreamErr.Msg)

	_, err = src.GetFrame(10)
	require.ErrorAs(t, err, &upstreamErr, "out-of-range frames fail upstream")
}

func TestGetParityAlternates(t *testing.T) {
	src := New(Def{Width: 8, Height: 8, FrameCount: 4})

	even, err := src.GetParity(0)
	require.NoError(t, err)
	require.True(t, even)

	odd, err := src.GetParity(1)
	require.NoError(t, err)
	require.False(t, odd)

	_, err = src.GetParity(4)
	require.Error(t, err)
}

func TestGetVideoInfoMatchesDef(t *testing.T) {
	src := New(Def{Width: 32, Height: 16, FrameCount: 5, Planar: true, FPSNumerator: 30, FPSDenom: 1})
	vi := src.GetVideoInfo()
	require.Equal(t, 32, vi.Width)
	require.Equal(t, 16, vi.Height)
	require.Equal(t, 5, vi.FrameCount)
	require.Equal(t, clip.SampleFormatPlanarYUV, vi.Format)
	require.Equal(t, 1, vi.SubsampleW)
	require.Equal(t, 1, vi.SubsampleH)
}
