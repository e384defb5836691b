package shm

import (
	"sync/atomic"
	"unsafe"

	"github.com/five82/splitproc/internal/clip"
)

// Region is a mapped view of the shared memory described by a Layout. The
// zero value is not usable; construct one with Create or Open.
type Region struct {
	mem    []byte
	layout *Layout

	key   string
	owner bool
}

// Layout returns the layout this region was mapped with.
func (r *Region) Layout() *Layout { return r.layout }

// cell returns the word at cell index idx as a *uint32. Every cell index
// this package hands out is a multiple of one 4-byte word from the start
// of mem, and mem's backing memory comes from mmap (page-aligned), so the
// result is always naturally aligned for atomic access.
func (r *Region) cell(idx int) *uint32 {
	return (*uint32)(unsafe.Pointer(&r.mem[idx*4]))
}

// ShutdownWord is the object_state.shutdown flag.
func (r *Region) ShutdownWord() *uint32 { return r.cell(cellShutdown) }

// RequestCondWords returns the lock/turn/broadcast-epoch words backing the
// single request condition variable.
func (r *Region) RequestCondWords() (lock, turn, epoch *uint32) {
	return r.cell(cellRequestLock), r.cell(cellRequestTurn), r.cell(cellRequestEpoch)
}

// RequestTypeWord, RequestClipIndexWord and RequestFrameNumberWord back the
// single in-flight request record.
func (r *Region) RequestTypeWord() *uint32       { return r.cell(cellRequestType) }
func (r *Region) RequestClipIndexWord() *uint32  { return r.cell(cellRequestClipIndex) }
func (r *Region) RequestFrameNumberWord() *uint32 { return r.cell(cellRequestFrameNumber) }

// PublishVideoInfo writes a clip's cached VideoInfo into the region. It is
// called once, from the server side, after the fetcher has populated that
// clip's metadata, before any client can have a valid reason to read it.
func (r *Region) PublishVideoInfo(ci int, vi clip.VideoInfo) {
	base := r.layout.clipBase(ci)
	atomic.StoreUint32(r.cell(base+fWidth), uint32(vi.Width))
	atomic.StoreUint32(r.cell(base+fHeight), uint32(vi.Height))
	atomic.StoreUint32(r.cell(base+fFrameCount), uint32(vi.FrameCount))
	atomic.StoreUint32(r.cell(base+fFPSNumerator), vi.FPSNumerator)
	atomic.StoreUint32(r.cell(base+fFPSDenom), vi.FPSDenom)
	atomic.StoreUint32(r.cell(base+fSubsampleW), uint32(vi.SubsampleW))
	atomic.StoreUint32(r.cell(base+fSubsampleH), uint32(vi.SubsampleH))
	atomic.StoreUint32(r.cell(base+fAudioSampleRate), uint32(vi.AudioSampleRate))
	atomic.StoreUint32(r.cell(base+fAudioChannels), uint32(vi.AudioChannels))
	// Format is written last: a client reading VideoInfo uses it to decide
	// whether to trust the subsample fields at all, the same
	// publication-last discipline as a response slot's frame_number.
	atomic.StoreUint32(r.cell(base+fFormat), uint32(vi.Format))
}

// VideoInfo reads back a clip's published VideoInfo.
func (r *Region) VideoInfo(ci int) clip.VideoInfo {
	base := r.layout.clipBase(ci)
	return clip.VideoInfo{
		Width:           int(atomic.LoadUint32(r.cell(base + fWidth))),
		Height:          int(atomic.LoadUint32(r.cell(base + fHeight))),
		FrameCount:      int(atomic.LoadUint32(r.cell(base + fFrameCount))),
		FPSNumerator:    atomic.LoadUint32(r.cell(base + fFPSNumerator)),
		FPSDenom:        atomic.LoadUint32(r.cell(base + fFPSDenom)),
		Format:          clip.SampleFormat(atomic.LoadUint32(r.cell(base + fFormat))),
		SubsampleW:      int(atomic.LoadUint32(r.cell(base + fSubsampleW))),
		SubsampleH:      int(atomic.LoadUint32(r.cell(base + fSubsampleH))),
		AudioSampleRate: int(atomic.LoadUint32(r.cell(base + fAudioSampleRate))),
		AudioChannels:   int(atomic.LoadUint32(r.cell(base + fAudioChannels))),
	}
}

// SetFrameGeometry publishes the pitch/plane-offset metadata the channel
// needs to copy a clip.Frame into a slot buffer.
func (r *Region) SetFrameGeometry(ci int, pitch, pitchUV, offsetU, offsetV int) {
	base := r.layout.clipBase(ci)
	atomic.StoreUint32(r.cell(base+fFramePitch), uint32(pitch))
	atomic.StoreUint32(r.cell(base+fFramePitchUV), uint32(pitchUV))
	atomic.StoreUint32(r.cell(base+fFrameOffsetU), uint32(offsetU))
	atomic.StoreUint32(r.cell(base+fFrameOffsetV), uint32(offsetV))
}

// FrameGeometry reads back a clip's pitch/plane-offset metadata.
func (r *Region) FrameGeometry(ci int) (pitch, pitchUV, offsetU, offsetV int) {
	base := r.layout.clipBase(ci)
	return int(atomic.LoadUint32(r.cell(base + fFramePitch))),
		int(atomic.LoadUint32(r.cell(base + fFramePitchUV))),
		int(atomic.LoadUint32(r.cell(base + fFrameOffsetU))),
		int(atomic.LoadUint32(r.cell(base + fFrameOffsetV)))
}

// initDefaults stamps every clip/slot's frame buffer offset into the
// header once, at construction (both Create and Open can recompute these
// from the Layout directly, but publishing them keeps the header
// self-describing for out-of-process tooling that only has the mapped
// bytes). It also marks every response slot unpublished and every parity
// slot empty: mmap zero-fills fresh pages, and 0 is a legitimate frame
// number and a legitimate (n=0, parity=false) parity encoding, so the
// "nothing published yet" state needs its own reserved values rather than
// relying on the zero value.
func (r *Region) initDefaults() {
	for ci := 0; ci < r.layout.ClipCount(); ci++ {
		for slot := 0; slot < r.layout.SlotCount(); slot++ {
			off := r.layout.bufferOffset(ci, slot)
			atomic.StoreUint32(r.cell(r.layout.bufferOffsetCell(ci, slot)), uint32(off))
			atomic.StoreUint32(r.ResponseFrameNumberWord(ci, slot), ^uint32(0))
			atomic.StoreUint32(r.ParityWord(ci, slot), ParityResponseEmpty)
		}
	}
}

// FrameBuffer returns the raw byte slice backing clip ci's slot-th frame
// buffer.
func (r *Region) FrameBuffer(ci, slot int) []byte {
	off := r.layout.bufferOffset(ci, slot)
	size := int64(r.layout.frameSize[ci])
	return r.mem[off : off+size]
}

// ResponseFrameNumberWord, ResponseClientCountWord and ResponseCondWords
// address the fields of one response slot: which frame is currently
// published there, how many clients have an outstanding request for it,
// and the CondVar words guarding the slot.
func (r *Region) ResponseFrameNumberWord(ci, slot int) *uint32 {
	return r.cell(r.layout.responseBaseCell(ci, slot) + 0)
}

func (r *Region) ResponseClientCountWord(ci, slot int) *uint32 {
	return r.cell(r.layout.responseBaseCell(ci, slot) + 1)
}

func (r *Region) ResponseCondWords(ci, slot int) (lock, turn, epoch *uint32) {
	base := r.layout.responseBaseCell(ci, slot)
	return r.cell(base + 2), r.cell(base + 3), r.cell(base + 4)
}

// ParityWord addresses the parity result word for clip ci's slot-th
// parity record.
func (r *Region) ParityWord(ci, slot int) *uint32 {
	return r.cell(r.layout.parityCell(ci, slot))
}
