// Package proxy implements the client side of the shared-memory frame
// channel: a filter that implements the host's frame-source contract by
// issuing requests against a shared region a server process owns.
package proxy

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/five82/splitproc/internal/clip"
	"github.com/five82/splitproc/internal/shm"
	"github.com/five82/splitproc/internal/sync2"
	"github.com/five82/splitproc/internal/xerr"
)

// parityPollBudget bounds how many tight-spin iterations GetParity takes
// before backing off to a short sleep between polls.
const parityPollBudget = 256

// parityPollBackoff is the sleep between polls once the tight-spin budget
// is exhausted.
const parityPollBackoff = 200 * time.Microsecond

// Config configures a Proxy's view of one clip in an already-running
// server's shared region.
type Config struct {
	Port      string
	ClipIndex int
	SlotCount int
	// RequestTimeout bounds how long GetFrame/GetParity wait for a
	// response before giving up with ErrRequestTimedOut. Zero (the
	// default) waits indefinitely, subject only to shutdown.
	RequestTimeout time.Duration
}

// Proxy is the client proxy filter. It implements the host's frame-source
// contract for exactly one clip index in a channel it did not create.
type Proxy struct {
	cfg    Config
	spec   shm.ClipSpec
	region *shm.Region
	layout *shm.Layout

	requestCond   *sync2.CondVar
	responseGroup *sync2.SyncGroup
}

// Open maps the shared region a server created for cfg.Port and returns a
// Proxy bound to cfg.ClipIndex. specs must exactly match what the server
// was constructed with; the two processes agree on layout out of band.
func Open(specs []shm.ClipSpec, cfg Config) (*Proxy, error) {
	if cfg.ClipIndex < 0 || cfg.ClipIndex >= len(specs) {
		return nil, xerr.ErrInvalidClipIndex
	}
	if cfg.SlotCount <= 0 {
		cfg.SlotCount = 4
	}

	layout := shm.NewLayout(specs, cfg.SlotCount)
	region, err := shm.Open(shm.Key(cfg.Port), layout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", xerr.ErrChannelInit, err)
	}

	lockW, turnW, epochW := region.RequestCondWords()
	p := &Proxy{
		cfg:         cfg,
		spec:        specs[cfg.ClipIndex],
		region:      region,
		layout:      layout,
		requestCond: sync2.NewCondVar(lockW, turnW, epochW),
	}

	conds := make([]*sync2.CondVar, cfg.SlotCount)
	for slot := 0; slot < cfg.SlotCount; slot++ {
		lw, tw, ew := region.ResponseCondWords(cfg.ClipIndex, slot)
		conds[slot] = sync2.NewCondVar(lw, tw, ew)
	}
	p.responseGroup = sync2.NewSyncGroup(conds)

	return p, nil
}

// Close unmaps the shared region. It does not signal the server; the
// server owns teardown.
func (p *Proxy) Close() error {
	return p.region.Close()
}

func (p *Proxy) isShutdown() bool {
	return atomic.LoadUint32(p.region.ShutdownWord()) != 0
}

// GetVideoInfo returns the clip's VideoInfo as published by the server,
// with the audio fields zeroed: audio never streams across the channel,
// so the proxy must not advertise it.
func (p *Proxy) GetVideoInfo() clip.VideoInfo {
	vi := p.region.VideoInfo(p.cfg.ClipIndex)
	vi.AudioSampleRate = 0
	vi.AudioChannels = 0
	return vi
}

// GetAudio is inert on the proxy: audio does not stream across processes.
func (p *Proxy) GetAudio(buf []byte, start, count int64) error {
	return nil
}

// SetCacheHints is inert on the proxy: cache hints are ignored.
func (p *Proxy) SetCacheHints(hints int, frameRange int64) {}

func incrClientCount(word *uint32) { atomic.AddUint32(word, 1) }
func decrClientCount(word *uint32) { atomic.AddUint32(word, ^uint32(0)) }

// fillAndSwitchRequest waits until the single request slot is empty, fills
// it with {reqType, clip_index, n}, and switches control to the server
// side.
func (p *Proxy) fillAndSwitchRequest(reqType uint32, n int) error {
	for {
		if p.isShutdown() {
			return xerr.ErrServerShutDown
		}

		p.requestCond.Lock.LockLong()
		if atomic.LoadUint32(p.region.RequestTypeWord()) == shm.ReqEmpty {
			atomic.StoreUint32(p.region.RequestClipIndexWord(), uint32(int32(p.cfg.ClipIndex)))
			atomic.StoreUint32(p.region.RequestFrameNumberWord(), uint32(int32(n)))
			atomic.StoreUint32(p.region.RequestTypeWord(), reqType)
			p.requestCond.Lock.Unlock()
			p.requestCond.Signal.SwitchToOtherSide(sync2.SideClient)
			return nil
		}
		p.requestCond.Lock.Unlock()

		if !p.requestCond.Signal.WaitOnThisSide(sync2.SideClient, p.cfg.RequestTimeout, p.isShutdown) {
			if p.isShutdown() {
				return xerr.ErrServerShutDown
			}
			if p.cfg.RequestTimeout > 0 {
				return xerr.ErrRequestTimedOut
			}
		}
	}
}

// readFrame copies a slot's published plane bytes out into a fresh
// clip.Frame, since the slot buffer is shared memory the server may
// overwrite as soon as this proxy releases the slot's lock.
func (p *Proxy) readFrame(slot int) clip.Frame {
	buf := p.region.FrameBuffer(p.cfg.ClipIndex, slot)
	pitch, pitchUV, offU, offV := p.region.FrameGeometry(p.cfg.ClipIndex)

	frame := clip.Frame{Pitch: pitch, PitchUV: pitchUV, OffsetU: offU, OffsetV: offV}
	y := p.spec.Width * p.spec.Height
	frame.Y = append([]byte(nil), buf[:y]...)

	if p.spec.Format == clip.SampleFormatPlanarYUV {
		cw := p.spec.Width >> p.spec.SubsampleW
		ch := p.spec.Height >> p.spec.SubsampleH
		chromaSize := cw * ch
		frame.U = append([]byte(nil), buf[offU:offU+chromaSize]...)
		frame.V = append([]byte(nil), buf[offV:offV+chromaSize]...)
	}
	return frame
}

// GetFrame fetches frame n over the channel: a fast prefetch-hit path,
// falling back to submitting an on-demand request and looping on the
// response condition.
func (p *Proxy) GetFrame(n int) (frame clip.Frame, err error) {
	if p.isShutdown() {
		return clip.Frame{}, xerr.ErrServerShutDown
	}

	slot := shm.SlotIndex(n, p.layout.SlotCount())
	cond := p.responseGroup.Cond(slot)
	fnWord := p.region.ResponseFrameNumberWord(p.cfg.ClipIndex, slot)
	countWord := p.region.ResponseClientCountWord(p.cfg.ClipIndex, slot)

	// A short-budget try-lock prefetch-hit check. Does not touch
	// requested_client_count: the client never asked for this frame, the
	// server just happened to have already published it.
	if cond.Lock.TryLock(sync2.ShortSpinBudget) {
		hit := int32(atomic.LoadUint32(fnWord)) == int32(n) && !p.isShutdown()
		if hit {
			frame = p.readFrame(slot)
		}
		cond.Lock.Unlock()
		if hit {
			return frame, nil
		}
	}

	// Submit an on-demand request, registering our interest in this slot
	// before waking the server.
	incrClientCount(countWord)
	registered := true
	defer func() {
		if registered {
			decrClientCount(countWord)
		}
	}()

	if submitErr := p.fillAndSwitchRequest(shm.ReqGetFrame, n); submitErr != nil {
		return clip.Frame{}, submitErr
	}

	// Loop on the response condition until our frame lands in the slot.
	for {
		if p.isShutdown() {
			return clip.Frame{}, xerr.ErrServerShutDown
		}

		cond.Lock.LockShort()
		got := int32(atomic.LoadUint32(fnWord)) == int32(n)
		if got {
			frame = p.readFrame(slot)
		}
		count := atomic.LoadUint32(countWord)
		cond.Lock.Unlock()

		if got {
			registered = false
			decrClientCount(countWord)
			cond.Signal.SwitchToOtherSide(sync2.SideClient)
			return frame, nil
		}

		if count == 0 {
			cond.Signal.SwitchToOtherSide(sync2.SideClient)
		}

		if !cond.Signal.WaitOnThisSide(sync2.SideClient, p.cfg.RequestTimeout, p.isShutdown) {
			if p.isShutdown() {
				return clip.Frame{}, xerr.ErrServerShutDown
			}
			if p.cfg.RequestTimeout > 0 {
				return clip.Frame{}, xerr.ErrRequestTimedOut
			}
		}
	}
}

// GetParity fetches frame n's parity bit: submit the request like
// GetFrame, then poll the clip's parity word until it transitions out of
// WAITING.
func (p *Proxy) GetParity(n int) (bool, error) {
	if p.isShutdown() {
		return false, xerr.ErrServerShutDown
	}

	slot := shm.SlotIndex(n, p.layout.SlotCount())
	word := p.region.ParityWord(p.cfg.ClipIndex, slot)

	if err := p.fillAndSwitchRequest(shm.ReqGetParity, n); err != nil {
		return false, err
	}

	deadline := time.Time{}
	if p.cfg.RequestTimeout > 0 {
		deadline = time.Now().Add(p.cfg.RequestTimeout)
	}

	for spins := 0; ; spins++ {
		if p.isShutdown() {
			return false, xerr.ErrServerShutDown
		}

		v := atomic.LoadUint32(word)
		if v != shm.ParityWaitingForResponse && v != shm.ParityResponseEmpty {
			got, parity := shm.DecodeParity(v)
			if got == n {
				atomic.StoreUint32(word, shm.ParityResponseEmpty)
				return parity, nil
			}
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			return false, xerr.ErrRequestTimedOut
		}

		if spins%parityPollBudget == parityPollBudget-1 {
			time.Sleep(parityPollBackoff)
		} else {
			runtime.Gosched()
		}
	}
}
