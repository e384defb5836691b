// Package syntheticclip provides a demo clip.Source: a deterministic
// test-pattern frame generator driven by a small JSON clip definition
// file. Real decoding belongs to whatever host embeds the filter; this
// package exists so cmd/splitproc has something concrete to serve end to
// end without a real decoder dependency.
package syntheticclip

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/five82/splitproc/internal/clip"
)

// Def is the on-disk shape of a clip definition file. FailAtFrame, when
// positive, makes the generated source raise a clip.UpstreamError on every
// request for that frame or any later one, for exercising the sticky-error
// path from the CLI.
type Def struct {
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	FrameCount   int    `json:"frame_count"`
	FPSNumerator uint32 `json:"fps_numerator"`
	FPSDenom     uint32 `json:"fps_denom"`
	Planar       bool   `json:"planar"`
	FailAtFrame  int    `json:"fail_at_frame"`
	FailMessage  string `json:"fail_message"`
}

// Load reads and validates a clip definition file.
func Load(path string) (Def, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Def{}, fmt.Errorf("syntheticclip: read %s: %w", path, err)
	}
	var d Def
	if err := json.Unmarshal(data, &d); err != nil {
		return Def{}, fmt.Errorf("syntheticclip: parse %s: %w", path, err)
	}
	if d.Width <= 0 || d.Height <= 0 {
		return Def{}, fmt.Errorf("syntheticclip: %s: width and height must be positive", path)
	}
	if d.FrameCount <= 0 {
		return Def{}, fmt.Errorf("syntheticclip: %s: frame_count must be positive", path)
	}
	if d.FPSNumerator == 0 {
		d.FPSNumerator = 24000
	}
	if d.FPSDenom == 0 {
		d.FPSDenom = 1001
	}
	if d.FailMessage == "" {
		d.FailMessage = "synthetic decode failure"
	}
	return d, nil
}

// Name derives a human-readable clip name from its definition file path.
func Name(path string) string {
	base := path[strings.LastIndexAny(path, "/\\")+1:]
	return strings.TrimSuffix(base, ".clip.json")
}

// Source implements clip.Source by generating a deterministic moving
// test pattern: each plane byte is a function of (frame number, plane
// coordinates) only, so repeated requests for the same frame number always
// produce byte-identical output.
type Source struct {
	def Def
}

// New wraps def as a clip.Source.
func New(def Def) *Source { return &Source{def: def} }

func (s *Source) GetFrame(n int) (clip.Frame, error) {
	if n < 0 || n >= s.def.FrameCount {
		return clip.Frame{}, &clip.UpstreamError{Msg: fmt.Sprintf("frame %d out of range [0,%d)", n, s.def.FrameCount)}
	}
	if s.def.FailAtFrame > 0 && n >= s.def.FailAtFrame {
		return clip.Frame{}, &clip.UpstreamError{Msg: s.def.FailMessage}
	}

	y := make([]byte, s.def.Width*s.def.Height)
	fillPlane(y, s.def.Width, s.def.Height, n, 0)

	frame := clip.Frame{Y: y, Pitch: s.def.Width}
	if s.def.Planar {
		cw, ch := s.def.Width/2, s.def.Height/2
		if cw < 1 {
			cw = 1
		}
		if ch < 1 {
			ch = 1
		}
		u := make([]byte, cw*ch)
		v := make([]byte, cw*ch)
		fillPlane(u, cw, ch, n, 1)
		fillPlane(v, cw, ch, n, 2)
		frame.U, frame.V = u, v
		frame.PitchUV = cw
	}
	return frame, nil
}

// fillPlane writes a diagonal-scrolling gradient offset by frame number n
// and a per-plane salt, so luma and chroma are visually distinct and frame
// numbers that differ modulo 256 map to distinct byte patterns.
func fillPlane(buf []byte, w, h, n, salt int) {
	for row := 0; row < h; row++ {
		base := row * w
		for col := 0; col < w; col++ {
			buf[base+col] = byte((row + col + n + salt*37) & 0xff)
		}
	}
}

func (s *Source) GetParity(n int) (bool, error) {
	if n < 0 || n >= s.def.FrameCount {
		return false, &clip.UpstreamError{Msg: fmt.Sprintf("frame %d out of range [0,%d)", n, s.def.FrameCount)}
	}
	return n%2 == 0, nil
}

func (s *Source) GetAudio(buf []byte, start, count int64) error {
	for i := range buf {
		buf[i] = 0
	}
	return nil
}

func (s *Source) GetVideoInfo() clip.VideoInfo {
	format := clip.SampleFormatY8
	subW, subH := 0, 0
	if s.def.Planar {
		format = clip.SampleFormatPlanarYUV
		subW, subH = 1, 1
	}
	return clip.VideoInfo{
		Width:        s.def.Width,
		Height:       s.def.Height,
		FrameCount:   s.def.FrameCount,
		FPSNumerator: s.def.FPSNumerator,
		FPSDenom:     s.def.FPSDenom,
		Format:       format,
		SubsampleW:   subW,
		SubsampleH:   subH,
		// Audio is reported here but always zeroed again by the proxy;
		// the server's own local view still carries it.
		AudioSampleRate: 48000,
		AudioChannels:   2,
	}
}
