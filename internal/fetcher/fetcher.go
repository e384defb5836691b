// Package fetcher implements the single worker goroutine that serializes
// every call into the upstream clip sources: a prefetching cache sitting
// in front of one or more clip.Source values, each of which may only ever
// be called from one goroutine at a time.
package fetcher

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/five82/splitproc/internal/clip"
	"github.com/five82/splitproc/internal/xerr"
)

// Config bounds the fetcher's per-clip cache.
type Config struct {
	// MaxCacheFrames is the largest number of frames any one clip's cache
	// may hold at once.
	MaxCacheFrames int
	// CacheBehind is how far behind the last requested frame the cache
	// start is allowed to trail before the idle scan stops crediting that
	// clip with spare cache space.
	CacheBehind int
}

func (c Config) normalized() Config {
	if c.CacheBehind < 0 {
		c.CacheBehind = 0
	}
	if c.MaxCacheFrames <= c.CacheBehind {
		c.MaxCacheFrames = c.CacheBehind + 1
	}
	return c
}

// pendingFetch describes the most recently requested on-demand fetch. version
// is bumped on every new request so the worker can tell "still the request
// I'm already servicing" apart from "a new one arrived while I was busy".
type pendingFetch struct {
	version     int
	clipIndex   int
	frameNumber int
	inFlight    bool
}

// Fetcher is a single-producer prefetching cache: one worker goroutine
// owns every clip.Source, filling each clip's cache ahead of demand and
// answering GetFrame/GetParity/GetAudio/GetVideoInfo calls from any number
// of concurrent callers.
type Fetcher struct {
	cfg Config

	mu   sync.Mutex
	cond *sync.Cond

	clips []*clip.Clip

	pending  pendingFetch
	callback func()

	shutdown bool

	// wake is a 1-buffered channel the worker selects on while idle; a
	// non-blocking send behaves like setting an auto-reset "waiting for
	// work" event.
	wake chan struct{}
	done chan struct{}
}

// New constructs a Fetcher over clips and starts its worker goroutine.
func New(clips []*clip.Clip, cfg Config) (*Fetcher, error) {
	if len(clips) == 0 {
		return nil, xerr.ErrNoClips
	}
	f := &Fetcher{
		cfg:   cfg.normalized(),
		clips: clips,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	f.cond = sync.NewCond(&f.mu)
	go f.run()
	return f, nil
}

// clipAt validates clipIndex and returns the clip, or ErrInvalidClipIndex.
// clipIndex values reach the fetcher from across the shared-memory wire
// protocol, so they're a system boundary and get checked here rather than
// trusted.
func (f *Fetcher) clipAt(clipIndex int) (*clip.Clip, error) {
	if clipIndex < 0 || clipIndex >= len(f.clips) {
		return nil, xerr.ErrInvalidClipIndex
	}
	return f.clips[clipIndex], nil
}

// Shutdown stops the worker goroutine and releases every caller currently
// blocked in GetFrame, GetParity, GetAudio or GetVideoInfo. Safe to call
// more than once.
func (f *Fetcher) Shutdown() {
	f.mu.Lock()
	if f.shutdown {
		f.mu.Unlock()
		return
	}
	f.shutdown = true
	f.cond.Broadcast()
	f.mu.Unlock()
	f.signalWorker()
	<-f.done
}

func (f *Fetcher) isShutdown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdown
}

func (f *Fetcher) signalWorker() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// run is the worker goroutine: one priority-ordered scheduling loop. A
// pending callback beats a new on-demand fetch request, which beats
// idle-scan speculative prefetch, which beats sleeping.
func (f *Fetcher) run() {
	defer close(f.done)

	fetchVersion := 0
	for {
		f.mu.Lock()
		if f.shutdown {
			f.mu.Unlock()
			return
		}

		cb := f.callback
		f.callback = nil

		var (
			target      *clip.Clip
			frameNumber int
			onDemand    bool
		)
		switch {
		case cb != nil:
			// handled below
		case f.pending.inFlight && f.pending.version != fetchVersion:
			target = f.clips[f.pending.clipIndex]
			frameNumber = f.pending.frameNumber
			fetchVersion = f.pending.version
			onDemand = true
		default:
			target, frameNumber = f.selectPrefetchCandidateLocked()
		}
		f.mu.Unlock()

		switch {
		case cb != nil:
			cb()
			f.completeWorkItem(10 * time.Millisecond)
			continue
		case target == nil:
			f.completeWorkItem(500 * time.Millisecond)
			continue
		}

		f.fetchFrame(target, frameNumber)

		if onDemand {
			f.mu.Lock()
			f.pending.inFlight = false
			f.mu.Unlock()
		}
		f.completeWorkItem(10 * time.Millisecond)
	}
}

// selectPrefetchCandidateLocked picks the healthy clip with the greatest
// positive cache space: each clip is credited with room up to
// MaxCacheFrames, then debited whatever slack CacheBehind still allows
// between the cache start and the last requested frame. Ties resolve to
// the first clip seen. Must be called with f.mu held.
func (f *Fetcher) selectPrefetchCandidateLocked() (*clip.Clip, int) {
	var best *clip.Clip
	bestFrame := 0
	bestSpace := 0

	for _, c := range f.clips {
		if !c.Healthy() {
			continue
		}
		cacheSpace := f.cfg.MaxCacheFrames - c.Cache.Len()
		cacheSpace -= f.cfg.CacheBehind - (c.EffectiveLastRequested() - c.Cache.Start())
		if cacheSpace <= 0 {
			continue
		}
		if best == nil || cacheSpace > bestSpace {
			best = c
			bestFrame = c.Cache.End()
			bestSpace = cacheSpace
		}
	}
	return best, bestFrame
}

// completeWorkItem broadcasts to everyone waiting on a work item finishing,
// then blocks until either more work is signaled or wait elapses. Callers
// re-check their own condition after every broadcast rather than being
// told what changed.
func (f *Fetcher) completeWorkItem(wait time.Duration) {
	f.mu.Lock()
	f.cond.Broadcast()
	f.mu.Unlock()

	select {
	case <-f.wake:
	case <-time.After(wait):
	}
}

// fetchFrame aligns clip's cache to contain frame n, evicting from the
// front while the cache has drifted more than CacheBehind frames behind n,
// clearing it outright if n precedes the cached window (the consumer
// jumped backward), then fetches forward from the cache's end through n
// inclusive.
func (f *Fetcher) fetchFrame(c *clip.Clip, n int) {
	f.mu.Lock()
	if n >= c.Cache.Start() {
		for c.Cache.Len() > 0 && n-c.Cache.Start() > f.cfg.CacheBehind {
			c.Cache.PopFront()
		}
	} else {
		c.Cache.Clear()
	}

	var fetchStart int
	if c.Cache.Len() == 0 {
		c.Cache.Reset(n)
		fetchStart = n
	} else {
		fetchStart = c.Cache.End()
	}
	f.mu.Unlock()

	for next := fetchStart; next <= n; next++ {
		frame, err := f.fetchOne(c, next)
		if err != nil {
			return
		}
		f.mu.Lock()
		c.Cache.PushBack(frame)
		f.mu.Unlock()
	}
}

// fetchOne calls the upstream source for one frame. An UpstreamError is
// recorded as sticky per-clip state and returned so the caller stops
// fetching further frames for this clip. Any other error is treated as
// unrecoverable: the worker goroutine is the only place that ever touches
// this upstream source, so there is no way to retry or route around it,
// and the cache invariants cannot be trusted afterwards.
func (f *Fetcher) fetchOne(c *clip.Clip, n int) (clip.Frame, error) {
	frame, err := c.Source.GetFrame(n)
	if err == nil {
		return frame, nil
	}

	var upstreamErr *clip.UpstreamError
	if errors.As(err, &upstreamErr) {
		f.mu.Lock()
		c.MarkError(upstreamErr.Msg)
		f.mu.Unlock()
		return clip.Frame{}, err
	}
	panic(fmt.Sprintf("fetcher: clip %d: unrecoverable error fetching frame %d: %v", c.Index, n, err))
}

// invokeInWorkerThread serializes fn onto the worker goroutine and blocks
// until it has run (or the fetcher shuts down first without running it).
// This is the single-slot mailbox GetVideoInfo, GetParity and GetAudio go
// through: calls that need the upstream source but aren't the frame-cache
// fast path.
func (f *Fetcher) invokeInWorkerThread(fn func()) {
	ranCh := make(chan struct{})

	f.mu.Lock()
	// The mailbox holds one callback; wait for the worker to take any
	// callback another caller installed before installing this one.
	for f.callback != nil && !f.shutdown {
		f.cond.Wait()
	}
	if f.shutdown {
		f.mu.Unlock()
		return
	}
	f.callback = func() {
		fn()
		close(ranCh)
	}
	f.mu.Unlock()
	f.signalWorker()

	select {
	case <-ranCh:
	case <-f.done:
	}
}

// GetFrame returns the frame at n for clipIndex, fetching it on demand if
// it isn't already cached. A cache hit returns immediately and records n
// as the clip's last-requested frame; a miss installs (or joins) an
// on-demand fetch and waits for the worker to make progress, rechecking on
// every wakeup. The loop terminates because eventually the cache contains
// n, a sticky error appears, or shutdown is observed.
func (f *Fetcher) GetFrame(clipIndex, n int) (clip.Frame, error) {
	if _, err := f.clipAt(clipIndex); err != nil {
		return clip.Frame{}, err
	}

	for {
		f.mu.Lock()
		if f.shutdown {
			f.mu.Unlock()
			return clip.Frame{}, xerr.ErrAlreadyShutDown
		}

		c := f.clips[clipIndex]
		if !c.Healthy() {
			msg := c.ErrorMsg
			f.mu.Unlock()
			return clip.Frame{}, &clip.UpstreamError{Msg: msg}
		}

		if c.Cache.Contains(n) {
			c.LastRequestedFrame = n
			c.LastRequestedSet = true
			frame := c.Cache.At(n)
			f.mu.Unlock()
			return frame, nil
		}

		c.LastRequestedFrame = n
		c.LastRequestedSet = true

		needsWake := !f.pending.inFlight
		if needsWake {
			f.pending.inFlight = true
			f.pending.clipIndex = clipIndex
			f.pending.frameNumber = n
			f.pending.version++
		}
		f.mu.Unlock()

		if needsWake {
			f.signalWorker()
		}

		f.mu.Lock()
		if !f.shutdown {
			f.cond.Wait()
		}
		f.mu.Unlock()
	}
}

// GetParity returns the upstream parity bit for frame n of clipIndex,
// routed through the worker thread like any other non-cache-path call into
// the upstream source.
func (f *Fetcher) GetParity(clipIndex, n int) (bool, error) {
	c, err := f.clipAt(clipIndex)
	if err != nil {
		return false, err
	}
	if f.isShutdown() {
		return false, xerr.ErrAlreadyShutDown
	}

	var result bool
	f.invokeInWorkerThread(func() {
		r, err := c.Source.GetParity(n)
		if err != nil {
			panic(fmt.Sprintf("fetcher: clip %d: unrecoverable error fetching parity %d: %v", clipIndex, n, err))
		}
		result = r
	})

	if f.isShutdown() {
		return false, xerr.ErrAlreadyShutDown
	}
	return result, nil
}

// GetAudio fills buf with count samples of audio starting at start, for
// clipIndex. Unlike GetFrame, an upstream failure here is reported directly
// to the caller rather than marked sticky: audio is not cached, so there is
// no cache state to poison.
func (f *Fetcher) GetAudio(clipIndex int, buf []byte, start, count int64) error {
	c, err := f.clipAt(clipIndex)
	if err != nil {
		return err
	}
	if f.isShutdown() {
		return xerr.ErrAlreadyShutDown
	}

	var callErr error
	f.invokeInWorkerThread(func() {
		callErr = c.Source.GetAudio(buf, start, count)
	})

	if f.isShutdown() {
		return xerr.ErrAlreadyShutDown
	}
	return callErr
}

// CacheWindow reports clipIndex's current cache occupancy, for status
// reporting.
func (f *Fetcher) CacheWindow(clipIndex int) (start, length, lastRequested int, err error) {
	if _, err := f.clipAt(clipIndex); err != nil {
		return 0, 0, 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.clips[clipIndex]
	return c.Cache.Start(), c.Cache.Len(), c.EffectiveLastRequested(), nil
}

// GetVideoInfo returns clipIndex's video info, populating it from the
// upstream source on first use and caching it forever after.
func (f *Fetcher) GetVideoInfo(clipIndex int) (clip.VideoInfo, error) {
	c, err := f.clipAt(clipIndex)
	if err != nil {
		return clip.VideoInfo{}, err
	}

	f.mu.Lock()
	has := c.HasVideoInfo
	f.mu.Unlock()

	if !has {
		f.invokeInWorkerThread(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if c.HasVideoInfo {
				return
			}
			c.VI = c.Source.GetVideoInfo()
			c.HasVideoInfo = true
		})
	}

	if f.isShutdown() {
		f.mu.Lock()
		has = c.HasVideoInfo
		vi := c.VI
		f.mu.Unlock()
		if !has {
			return clip.VideoInfo{}, xerr.ErrAlreadyShutDown
		}
		return vi, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return c.VI, nil
}
