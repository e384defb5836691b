// Package shm implements the fixed-layout shared memory region the frame
// channel runs over: a header of atomically-accessed words followed by
// the pixel buffers the server channel publishes frames into and client
// proxies read them back from.
//
// Every offset in the region is computed once, at construction, from the
// clip list and slot count both sides are configured with out of band;
// server and clients must run an identical build. Nothing in this package
// is a general-purpose serialization format; it is the exact memory image
// both processes map.
package shm

import "github.com/five82/splitproc/internal/clip"

// ClipSpec is the per-clip geometry the host must supply before the
// region can be sized: width, height, sample format and chroma
// subsampling. This is static configuration, not the clip's cached
// VideoInfo (frame count, frame rate), which is only known once the
// fetcher's worker thread has called into the upstream source.
type ClipSpec struct {
	Width, Height          int
	Format                 clip.SampleFormat
	SubsampleW, SubsampleH int
}

// FrameSize returns the byte size of one decoded frame under this spec:
// one Y plane, plus two subsampled chroma planes for planar formats.
func (s ClipSpec) FrameSize() int {
	y := s.Width * s.Height
	if s.Format != clip.SampleFormatPlanarYUV {
		return y
	}
	cw := s.Width >> s.SubsampleW
	ch := s.Height >> s.SubsampleH
	return y + 2*cw*ch
}

// PlaneOffsets returns the U/V plane byte offsets within one frame buffer,
// both zero for packed formats.
func (s ClipSpec) PlaneOffsets() (offU, offV int) {
	if s.Format != clip.SampleFormatPlanarYUV {
		return 0, 0
	}
	y := s.Width * s.Height
	cw := s.Width >> s.SubsampleW
	ch := s.Height >> s.SubsampleH
	return y, y + cw*ch
}

// Header cell indices: object_state.shutdown, then the single request
// condvar and request record.
const (
	cellShutdown = iota
	cellRequestLock
	cellRequestTurn
	cellRequestEpoch
	cellRequestType
	cellRequestClipIndex
	cellRequestFrameNumber
	headerCells
)

// Per-clip fixed record cell offsets (relative to the clip's base cell):
// cached VideoInfo fields, then plane geometry. Variable, slot-count-sized
// sections (buffer offsets, response records, parity words) follow
// immediately after clipFixedCells, computed in Layout.
const (
	fWidth = iota
	fHeight
	fFrameCount
	fFPSNumerator
	fFPSDenom
	fFormat
	fSubsampleW
	fSubsampleH
	fAudioSampleRate
	fAudioChannels
	fFramePitch
	fFramePitchUV
	fFrameOffsetU
	fFrameOffsetV
	clipFixedCells
)

// responseCellCount is the width, in cells, of one response-slot record:
// frame_number, requested_client_count, then its CondVar's lock/turn/epoch
// words. Every response slot carries its own condition variable.
const responseCellCount = 5

// Layout computes the byte offsets of every field in a SharedRegion for a
// fixed clip list and slot count. It is pure arithmetic: it never touches
// memory itself, so both a Create and an Open call can build an identical
// Layout independently and agree on every offset.
type Layout struct {
	specs     []ClipSpec
	slotCount int

	clipCellOffset []int // cell index of each clip record's start
	clipCellStride int

	pixelRegionOffset int // byte offset where pixel buffers begin
	clipBufferBase    []int
	frameSize         []int

	totalSize int
}

// NewLayout builds the Layout for specs (one per clip, in clip-index
// order) and slotCount response slots per clip.
func NewLayout(specs []ClipSpec, slotCount int) *Layout {
	l := &Layout{specs: specs, slotCount: slotCount}

	stride := clipFixedCells + slotCount + slotCount*responseCellCount + slotCount
	l.clipCellStride = stride
	l.clipCellOffset = make([]int, len(specs))
	for i := range specs {
		l.clipCellOffset[i] = headerCells + i*stride
	}

	totalHeaderCells := headerCells + len(specs)*stride
	l.pixelRegionOffset = totalHeaderCells * 4

	l.clipBufferBase = make([]int, len(specs))
	l.frameSize = make([]int, len(specs))
	cursor := l.pixelRegionOffset
	for i, spec := range specs {
		size := spec.FrameSize()
		l.frameSize[i] = size
		l.clipBufferBase[i] = cursor
		cursor += size * slotCount
	}
	l.totalSize = cursor
	return l
}

// TotalSize is the number of bytes the backing shared memory object must
// be truncated to.
func (l *Layout) TotalSize() int { return l.totalSize }

// ClipCount and SlotCount report the dimensions this layout was built for.
func (l *Layout) ClipCount() int { return len(l.specs) }
func (l *Layout) SlotCount() int { return l.slotCount }

func (l *Layout) clipBase(ci int) int {
	return l.clipCellOffset[ci]
}

func (l *Layout) bufferOffsetCell(ci, slot int) int {
	return l.clipBase(ci) + clipFixedCells + slot
}

func (l *Layout) responseBaseCell(ci, slot int) int {
	return l.clipBase(ci) + clipFixedCells + l.slotCount + slot*responseCellCount
}

func (l *Layout) parityCell(ci, slot int) int {
	return l.clipBase(ci) + clipFixedCells + l.slotCount + l.slotCount*responseCellCount + slot
}

// bufferOffset is the absolute byte offset of clip ci's slot-th frame
// buffer within the region.
func (l *Layout) bufferOffset(ci, slot int) int64 {
	return int64(l.clipBufferBase[ci]) + int64(slot)*int64(l.frameSize[ci])
}

// SlotIndex is the response-slot index for frame number n: n mod
// slotCount, kept non-negative for negative frame numbers.
func SlotIndex(n, slotCount int) int {
	s := n % slotCount
	if s < 0 {
		s += slotCount
	}
	return s
}
