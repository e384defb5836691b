// Package channel implements the server side of the shared-memory frame
// channel: a single dispatcher goroutine that translates cross-process
// GETFRAME/GETPARITY requests into calls against a fetcher.Fetcher and
// publishes results into shared-memory response slots.
package channel

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/five82/splitproc/internal/clip"
	"github.com/five82/splitproc/internal/fetcher"
	"github.com/five82/splitproc/internal/shm"
	"github.com/five82/splitproc/internal/sync2"
	"github.com/five82/splitproc/internal/xerr"
)

// requestWaitTimeout bounds how long the dispatcher spends on each poll of
// the request condition's server side before rechecking shutdown. It is
// not a correctness mechanism: any value that keeps shutdown latency
// reasonable is fine.
const requestWaitTimeout = 200 * time.Millisecond

// Config configures a Server's shared region and fetcher.
type Config struct {
	Port            string
	SlotCount       int
	MaxCacheFrames  int
	CacheBehind     int
}

// Server owns the fetcher and the shared memory region backing the
// cross-process channel. Clients never construct one; they attach to it
// through proxy.Open.
type Server struct {
	cfg    Config
	specs  []shm.ClipSpec
	layout *shm.Layout
	region *shm.Region

	fetcher *fetcher.Fetcher
	clips   []*clip.Clip

	requestCond    *sync2.CondVar
	responseGroups []*sync2.SyncGroup

	wg sync.WaitGroup
}

// New constructs the shared region, the fetcher, and every synchronization
// primitive, and starts the dispatcher goroutine. Eager per-clip video
// info population is left to the caller via PopulateVideoInfo, since it
// benefits from bounded fan-out across many clips (see internal/lifecycle).
func New(sources []clip.Source, specs []shm.ClipSpec, cfg Config) (*Server, error) {
	if len(sources) == 0 {
		return nil, xerr.ErrNoClips
	}
	if len(sources) != len(specs) {
		return nil, fmt.Errorf("channel: %d sources but %d clip specs", len(sources), len(specs))
	}
	if cfg.SlotCount <= 0 {
		cfg.SlotCount = 4
	}

	layout := shm.NewLayout(specs, cfg.SlotCount)
	region, err := shm.Create(shm.Key(cfg.Port), layout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", xerr.ErrChannelInit, err)
	}

	clips := make([]*clip.Clip, len(sources))
	for i, src := range sources {
		clips[i] = clip.New(i, src)
	}

	f, err := fetcher.New(clips, fetcher.Config{MaxCacheFrames: cfg.MaxCacheFrames, CacheBehind: cfg.CacheBehind})
	if err != nil {
		_ = region.Close()
		return nil, err
	}

	lockW, turnW, epochW := region.RequestCondWords()
	s := &Server{
		cfg:         cfg,
		specs:       specs,
		layout:      layout,
		region:      region,
		fetcher:     f,
		clips:       clips,
		requestCond: sync2.NewCondVar(lockW, turnW, epochW),
	}

	for ci, spec := range specs {
		offU, offV := spec.PlaneOffsets()
		region.SetFrameGeometry(ci, spec.Width, spec.Width>>spec.SubsampleW, offU, offV)

		conds := make([]*sync2.CondVar, cfg.SlotCount)
		for slot := 0; slot < cfg.SlotCount; slot++ {
			lw, tw, ew := region.ResponseCondWords(ci, slot)
			conds[slot] = sync2.NewCondVar(lw, tw, ew)
		}
		s.responseGroups = append(s.responseGroups, sync2.NewSyncGroup(conds))
	}

	s.wg.Add(1)
	go s.run()
	return s, nil
}

func (s *Server) isShutdown() bool {
	return atomic.LoadUint32(s.region.ShutdownWord()) != 0
}

// PopulateVideoInfo fetches and publishes VideoInfo for one clip. Called
// once per clip at construction time; safe to call concurrently across
// distinct clip indices.
func (s *Server) PopulateVideoInfo(clipIndex int) error {
	vi, err := s.fetcher.GetVideoInfo(clipIndex)
	if err != nil {
		return err
	}
	s.region.PublishVideoInfo(clipIndex, vi)
	return nil
}

// ClipCount returns the number of clips this server was constructed with.
func (s *Server) ClipCount() int { return len(s.clips) }

// GetFrame is the server process's own host filter entrypoint: the server
// answers GetFrame/GetParity locally too, independent of the cross-process
// channel. Errors propagate directly, unlike the best-effort completion
// dispatchGetFrame gives to client requests that fail upstream.
func (s *Server) GetFrame(clipIndex, n int) (clip.Frame, error) {
	return s.fetcher.GetFrame(clipIndex, n)
}

// GetParity is the server's own local GetParity entrypoint.
func (s *Server) GetParity(clipIndex, n int) (bool, error) {
	return s.fetcher.GetParity(clipIndex, n)
}

// CacheWindow reports one clip's cache occupancy for status reporting.
func (s *Server) CacheWindow(clipIndex int) (start, length, lastRequested int, err error) {
	return s.fetcher.CacheWindow(clipIndex)
}

// run is the dispatcher goroutine: wait on the request condition's server
// side, process exactly one request, publish the response, then switch
// control back to the client side.
func (s *Server) run() {
	defer s.wg.Done()
	for {
		if s.isShutdown() {
			s.signalAll()
			return
		}

		woke := s.requestCond.Signal.WaitOnThisSide(sync2.SideServer, requestWaitTimeout, s.isShutdown)
		if s.isShutdown() {
			s.signalAll()
			return
		}
		if !woke {
			continue
		}

		s.handleRequest()
	}
}

func (s *Server) signalAll() {
	s.requestCond.Signal.SignalAll()
	for _, group := range s.responseGroups {
		for slot := 0; slot < group.SlotCount(); slot++ {
			group.Cond(slot).Signal.SignalAll()
		}
	}
}

func (s *Server) handleRequest() {
	var reqType uint32
	var clipIndex, frameNumber int
	sync2.SpinLockContext(s.requestCond.Lock, func() {
		reqType = atomic.LoadUint32(s.region.RequestTypeWord())
		clipIndex = int(int32(atomic.LoadUint32(s.region.RequestClipIndexWord())))
		frameNumber = int(int32(atomic.LoadUint32(s.region.RequestFrameNumberWord())))
	})

	switch reqType {
	case shm.ReqGetFrame:
		s.dispatchGetFrame(clipIndex, frameNumber)
	case shm.ReqGetParity:
		s.dispatchGetParity(clipIndex, frameNumber)
	}

	sync2.SpinLockContext(s.requestCond.Lock, func() {
		atomic.StoreUint32(s.region.RequestTypeWord(), shm.ReqEmpty)
	})
	s.requestCond.Signal.SwitchToOtherSide(sync2.SideServer)
}

func (s *Server) dispatchGetFrame(clipIndex, n int) {
	if clipIndex < 0 || clipIndex >= len(s.clips) {
		return
	}
	frame, err := s.fetcher.GetFrame(clipIndex, n)

	slot := shm.SlotIndex(n, s.layout.SlotCount())
	cond := s.responseGroups[clipIndex].Cond(slot)

	cond.Lock.LockLong()
	if err == nil {
		dst := s.region.FrameBuffer(clipIndex, slot)
		copyFrame(dst, frame, s.specs[clipIndex])
	}
	// Publication-ordered: frame_number is written after pixel data so a
	// client that observes the new frame_number is guaranteed to see the
	// matching bytes. On an upstream error there is no payload to publish;
	// the response still completes with frame_number == n so a waiting
	// client's protocol terminates instead of stalling forever on a clip
	// whose sticky error it has no other way to observe over shared memory.
	atomic.StoreUint32(s.region.ResponseFrameNumberWord(clipIndex, slot), uint32(n))
	cond.Lock.Unlock()
	cond.Signal.SwitchToOtherSide(sync2.SideServer)
}

func (s *Server) dispatchGetParity(clipIndex, n int) {
	if clipIndex < 0 || clipIndex >= len(s.clips) {
		return
	}
	slot := shm.SlotIndex(n, s.layout.SlotCount())
	word := s.region.ParityWord(clipIndex, slot)

	// Claim the slot with EMPTY -> WAITING before the (possibly slow)
	// upstream call. The transition must be a compare-and-swap: a prior
	// response another client has not consumed yet may still occupy this
	// word, and overwriting it would strand that client polling for a
	// value that never comes back. The consumer resets the word to EMPTY
	// once it has read its response, so the spin here is bounded by that
	// client's next poll; only shutdown releases it early.
	for !atomic.CompareAndSwapUint32(word, shm.ParityResponseEmpty, shm.ParityWaitingForResponse) {
		if s.isShutdown() {
			return
		}
		runtime.Gosched()
	}

	parity, err := s.fetcher.GetParity(clipIndex, n)
	if err != nil {
		atomic.StoreUint32(word, shm.ParityResponseEmpty)
		return
	}
	atomic.StoreUint32(word, shm.EncodeParity(n, parity))
}

// copyFrame copies a decoded clip.Frame's planes into a shared-memory slot
// buffer: Y only for packed formats, Y then U then V for planar.
func copyFrame(dst []byte, frame clip.Frame, spec shm.ClipSpec) {
	y := spec.Width * spec.Height
	copy(dst[:y], frame.Y)
	if spec.Format != clip.SampleFormatPlanarYUV {
		return
	}
	offU, offV := spec.PlaneOffsets()
	cw := spec.Width >> spec.SubsampleW
	ch := spec.Height >> spec.SubsampleH
	chromaSize := cw * ch
	copy(dst[offU:offU+chromaSize], frame.U)
	copy(dst[offV:offV+chromaSize], frame.V)
}

// Shutdown tears the channel down: flip the shared shutdown flag, wake
// every waiter, release the fetcher, join the dispatcher goroutine, then
// unmap the region.
func (s *Server) Shutdown() error {
	atomic.StoreUint32(s.region.ShutdownWord(), 1)
	s.signalAll()
	s.fetcher.Shutdown()
	s.wg.Wait()
	return s.region.Close()
}
