// Package clip models the upstream frame sources the fetcher serializes
// access to, and the per-clip cache state the fetcher maintains for each
// one. Nothing in this package is safe for concurrent use on its own:
// every field is meant to be accessed under the fetcher's single lock.
package clip

import "fmt"

// SampleFormat distinguishes packed (single Y8 plane) video from planar
// YUV video, which determines how many planes a Frame carries and how the
// server channel copies them into a shared-memory slot.
type SampleFormat int

const (
	SampleFormatY8 SampleFormat = iota
	SampleFormatPlanarYUV
)

// VideoInfo describes a clip's geometry, sample format and (client-visible)
// audio characteristics.
type VideoInfo struct {
	Width, Height int
	FrameCount    int
	FPSNumerator  uint32
	FPSDenom      uint32
	Format        SampleFormat
	// SubsampleW/SubsampleH are the chroma subsampling shifts for planar
	// formats (e.g. 1,1 for 4:2:0). Ignored for SampleFormatY8.
	SubsampleW, SubsampleH int
	AudioSampleRate        int
	AudioChannels          int
}

// IsPlanar reports whether this format has separate U/V planes.
func (vi VideoInfo) IsPlanar() bool {
	return vi.Format == SampleFormatPlanarYUV
}

// Frame is a single decoded frame's plane buffers, as returned by a Source.
// U and V are nil for SampleFormatY8.
type Frame struct {
	Y, U, V         []byte
	Pitch, PitchUV  int
	// OffsetU/OffsetV are byte offsets of the U/V planes relative to the
	// start of a published shared-memory frame buffer. Zero for packed
	// formats, which carry only Y.
	OffsetU, OffsetV int
}

// Source is the upstream, not-thread-safe frame source a Clip wraps,
// supplied by the host. GetFrame calls on a Source must never overlap,
// which is exactly the constraint the fetcher's single worker thread
// exists to enforce.
type Source interface {
	GetFrame(n int) (Frame, error)
	GetParity(n int) (bool, error)
	GetAudio(buf []byte, start, count int64) error
	GetVideoInfo() VideoInfo
}

// UpstreamError is raised by a Source when the upstream frame fetch fails.
// The fetcher converts it into sticky per-clip state rather than
// propagating it directly.
type UpstreamError struct {
	Msg string
}

func (e *UpstreamError) Error() string { return e.Msg }

// Clip is the fetcher's view of one upstream source: its cached metadata,
// its frame cache, and its sticky error state. The zero value is not
// usable; construct with New.
type Clip struct {
	Index  int
	Source Source

	VI           VideoInfo
	HasVideoInfo bool

	// ErrorMsg is the sticky error for this clip: empty while healthy,
	// set permanently on the first upstream failure. An errored clip
	// never recovers until teardown.
	ErrorMsg string

	// LastRequestedFrame is the last frame number a consumer asked for via
	// GetFrame. LastRequestedSet distinguishes "never requested" from a
	// request for frame 0; an unset LastRequestedFrame is treated as equal
	// to Cache.Start() so the idle-scan arithmetic stays well-defined.
	LastRequestedFrame int
	LastRequestedSet   bool

	Cache FrameCache
}

// New constructs a Clip wrapping the given upstream source.
func New(index int, source Source) *Clip {
	return &Clip{Index: index, Source: source}
}

// Healthy reports whether this clip has not hit a sticky upstream error.
func (c *Clip) Healthy() bool {
	return c.ErrorMsg == ""
}

// MarkError records a sticky error and clears the cache. The error is
// terminal for this clip.
func (c *Clip) MarkError(msg string) {
	c.ErrorMsg = msg
	c.Cache.Clear()
}

// EffectiveLastRequested returns the last requested frame, treating "no
// consumer has called GetFrame yet" as equal to the cache's start so the
// idle-scan arithmetic in fetcher is well-defined.
func (c *Clip) EffectiveLastRequested() int {
	if !c.LastRequestedSet {
		return c.Cache.Start()
	}
	return c.LastRequestedFrame
}

// CheckInvariants validates the per-clip cache invariants at a quiescent
// point: non-negative cache start, bounded cache size, and the
// cache-behind bound relative to the last requested frame. It is meant for
// property tests, not the hot path.
func (c *Clip) CheckInvariants(maxCacheFrames, cacheBehind int) error {
	if c.Cache.Start() < 0 {
		return fmt.Errorf("clip %d: cache_frame_start %d < 0", c.Index, c.Cache.Start())
	}
	if c.Cache.Len() > maxCacheFrames {
		return fmt.Errorf("clip %d: cache len %d exceeds max %d", c.Index, c.Cache.Len(), maxCacheFrames)
	}
	if c.Cache.Len() > 0 {
		behind := c.EffectiveLastRequested() - c.Cache.Start()
		if behind > cacheBehind {
			return fmt.Errorf("clip %d: last_requested - cache_start = %d exceeds cache_behind %d", c.Index, behind, cacheBehind)
		}
	}
	return nil
}
