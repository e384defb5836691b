// Package splitproc provides a cross-process video frame delivery system:
// a prefetching FrameFetcher paired with a shared-memory channel connecting
// a server process to one or more client proxy filters.
//
// A host script embeds a Server in the process that owns the upstream clip
// sources, and a Client in every other process that wants to read frames
// from them:
//
//	srv, err := splitproc.NewServer(ctx, sources, specs,
//	    splitproc.WithPort("7"),
//	    splitproc.WithCacheBounds(32, 4),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Shutdown()
//
//	client, err := splitproc.NewClient(specs, splitproc.WithPort("7"), splitproc.WithClipIndex(0))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	frame, err := client.GetFrame(42)
package splitproc

import (
	"context"
	"fmt"
	"time"

	"github.com/five82/splitproc/internal/channel"
	"github.com/five82/splitproc/internal/clip"
	"github.com/five82/splitproc/internal/config"
	"github.com/five82/splitproc/internal/lifecycle"
	"github.com/five82/splitproc/internal/proxy"
	"github.com/five82/splitproc/internal/reporter"
	"github.com/five82/splitproc/internal/shm"
)

// Option configures a Server or Client under construction.
type Option func(*config.Config)

// WithPort overrides the shared-memory mapping key suffix. Server and
// every Client attached to it must agree on this value.
func WithPort(port string) Option {
	return func(c *config.Config) { c.Port = port }
}

// WithClipIndex selects which clip a Client proxies. Ignored by NewServer.
func WithClipIndex(index int) Option {
	return func(c *config.Config) { c.ClipIndex = index }
}

// WithSlotCount overrides the per-clip response slot count.
func WithSlotCount(n int) Option {
	return func(c *config.Config) { c.SlotCount = n }
}

// WithCacheBounds overrides the fetcher's per-clip cache bounds.
// Ignored by NewClient.
func WithCacheBounds(maxCacheFrames, cacheBehind int) Option {
	return func(c *config.Config) {
		c.MaxCacheFrames = maxCacheFrames
		c.CacheBehind = cacheBehind
	}
}

// WithRequestTimeout bounds how long a Client waits for a response before
// failing with ErrRequestTimedOut. The bound has whole-second resolution:
// a positive d is rounded up to the next whole second. Zero (the default)
// waits indefinitely, subject only to shutdown. Ignored by NewServer.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *config.Config) {
		secs := uint64(d / time.Second)
		if d > 0 && d%time.Second != 0 {
			secs++
		}
		c.RequestTimeoutSecs = secs
	}
}

// WithVerbose records the verbose flag in the configuration. Server and
// Client do not read it; verbose output comes from the Reporter and logger
// the caller constructs.
func WithVerbose(v bool) Option {
	return func(c *config.Config) { c.Verbose = v }
}

// Server owns the frame fetcher and the shared-memory channel backing it.
// Construct with NewServer.
type Server struct {
	cfg *config.Config
	ch  *channel.Server
	rep reporter.Reporter

	specs []shm.ClipSpec
	names []string

	startedAt time.Time
}

// NewServer builds the shared region, starts the fetcher's worker
// goroutine and the channel's dispatcher goroutine, eagerly populates
// every clip's VideoInfo, and returns a ready-to-serve Server. sources
// and specs must be the same length, in the same clip-index order.
func NewServer(ctx context.Context, sources []clip.Source, specs []shm.ClipSpec, opts ...Option) (*Server, error) {
	return NewServerWithReporter(ctx, sources, specs, nil, opts...)
}

// NewServerWithReporter is NewServer with an explicit Reporter; nil is
// equivalent to NullReporter{}.
func NewServerWithReporter(ctx context.Context, sources []clip.Source, specs []shm.ClipSpec, rep Reporter, opts ...Option) (*Server, error) {
	cfg := config.New()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rep == nil {
		rep = reporter.NullReporter{}
	}

	lifecycle.CleanStalePort(cfg.Port)

	startedAt := time.Now()
	ch, err := lifecycle.Start(ctx, sources, specs, lifecycle.Options{
		Port:           cfg.Port,
		SlotCount:      cfg.SlotCount,
		MaxCacheFrames: cfg.MaxCacheFrames,
		CacheBehind:    cfg.CacheBehind,
	})
	if err != nil {
		return nil, fmt.Errorf("splitproc: %w", err)
	}

	srv := &Server{cfg: cfg, ch: ch, rep: rep, specs: specs, startedAt: startedAt}

	rep.ServerStarted(reporter.ServerStartedSummary{
		Port:           cfg.Port,
		ClipCount:      len(specs),
		SlotCount:      cfg.SlotCount,
		MaxCacheFrames: cfg.MaxCacheFrames,
		CacheBehind:    cfg.CacheBehind,
	})
	for i, spec := range specs {
		rep.ClipReady(reporter.ClipReadySummary{
			Index:  i,
			Width:  spec.Width,
			Height: spec.Height,
			Planar: spec.Format == clip.SampleFormatPlanarYUV,
		})
	}
	return srv, nil
}

// NewServerWithHandler is NewServer delivering lifecycle events to handler
// instead of a Reporter. A nil handler behaves like NewServer.
func NewServerWithHandler(ctx context.Context, sources []clip.Source, specs []shm.ClipSpec, handler EventHandler, opts ...Option) (*Server, error) {
	if handler == nil {
		return NewServer(ctx, sources, specs, opts...)
	}
	return NewServerWithReporter(ctx, sources, specs, newEventReporter(handler), opts...)
}

// GetFrame is the server process's own host filter entrypoint: the server
// answers GetFrame/GetParity locally too, independent of the cross-process
// channel.
func (s *Server) GetFrame(clipIndex, n int) (clip.Frame, error) {
	return s.ch.GetFrame(clipIndex, n)
}

// GetParity is the server's own local GetParity entrypoint.
func (s *Server) GetParity(clipIndex, n int) (bool, error) {
	return s.ch.GetParity(clipIndex, n)
}

// ClipCount returns the number of clips this server was constructed with.
func (s *Server) ClipCount() int { return s.ch.ClipCount() }

// ReportCacheStatus reports every clip's current cache occupancy through
// the Reporter, for periodic status display.
func (s *Server) ReportCacheStatus() {
	for i := 0; i < s.ch.ClipCount(); i++ {
		start, length, last, err := s.ch.CacheWindow(i)
		if err != nil {
			continue
		}
		s.rep.CacheStatus(reporter.CacheSnapshot{
			ClipIndex:      i,
			CacheLen:       length,
			MaxCacheFrames: s.cfg.MaxCacheFrames,
			CacheStart:     start,
			LastRequested:  last,
		})
	}
}

// Shutdown tears the channel down and unlinks the shared memory object so
// a future server on the same port starts clean.
func (s *Server) Shutdown() error {
	err := lifecycle.Stop(s.ch, s.cfg.Port)
	s.rep.ShutdownComplete(reporter.ShutdownSummary{
		Elapsed:   time.Since(s.startedAt),
		ClipCount: len(s.specs),
	})
	return err
}

// Client is the client proxy filter: it implements the host's
// frame-source contract for exactly one clip index in a channel it did
// not create. Construct with NewClient.
type Client struct {
	p *proxy.Proxy
}

// NewClient opens the shared region a Server created and returns a Client
// bound to the configured clip index. specs must exactly match what the
// server was constructed with; the two processes agree on configuration
// out of band.
func NewClient(specs []shm.ClipSpec, opts ...Option) (*Client, error) {
	cfg := config.New()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p, err := proxy.Open(specs, proxy.Config{
		Port:           cfg.Port,
		ClipIndex:      cfg.ClipIndex,
		SlotCount:      cfg.SlotCount,
		RequestTimeout: time.Duration(cfg.RequestTimeoutSecs) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("splitproc: %w", err)
	}
	return &Client{p: p}, nil
}

// GetFrame implements the host's frame-source contract over the channel.
func (c *Client) GetFrame(n int) (clip.Frame, error) { return c.p.GetFrame(n) }

// GetParity returns frame n's parity bit over the channel.
func (c *Client) GetParity(n int) (bool, error) { return c.p.GetParity(n) }

// GetVideoInfo returns the clip's VideoInfo as published by the server,
// with audio always reported disabled.
func (c *Client) GetVideoInfo() clip.VideoInfo { return c.p.GetVideoInfo() }

// GetAudio is inert: audio does not stream across the channel.
func (c *Client) GetAudio(buf []byte, start, count int64) error { return c.p.GetAudio(buf, start, count) }

// SetCacheHints is inert: cache hints are ignored.
func (c *Client) SetCacheHints(hints int, frameRange int64) { c.p.SetCacheHints(hints, frameRange) }

// Close unmaps the shared region. It does not signal the server; the
// server owns teardown.
func (c *Client) Close() error { return c.p.Close() }

// eventReporter adapts EventHandler to the Reporter interface.
type eventReporter struct {
	handler EventHandler
}

func newEventReporter(handler EventHandler) *eventReporter {
	return &eventReporter{handler: handler}
}

func (r *eventReporter) Hardware(reporter.HardwareSummary) {}

func (r *eventReporter) ServerStarted(s reporter.ServerStartedSummary) {
	_ = r.handler(ServerStartedEvent{
		BaseEvent:      BaseEvent{EventType: EventTypeServerStarted, Time: NewTimestamp()},
		Port:           s.Port,
		ClipCount:      s.ClipCount,
		SlotCount:      s.SlotCount,
		MaxCacheFrames: s.MaxCacheFrames,
		CacheBehind:    s.CacheBehind,
	})
}

func (r *eventReporter) ClipReady(s reporter.ClipReadySummary) {
	_ = r.handler(ClipReadyEvent{
		BaseEvent:  BaseEvent{EventType: EventTypeClipReady, Time: NewTimestamp()},
		ClipIndex:  s.Index,
		Name:       s.Name,
		Width:      s.Width,
		Height:     s.Height,
		FrameCount: s.FrameCount,
	})
}

func (r *eventReporter) CacheStatus(s reporter.CacheSnapshot) {
	_ = r.handler(PrefetchProgressEvent{
		BaseEvent:      BaseEvent{EventType: EventTypePrefetchProgress, Time: NewTimestamp()},
		ClipIndex:      s.ClipIndex,
		CacheStart:     s.CacheStart,
		CacheLen:       s.CacheLen,
		MaxCacheFrames: s.MaxCacheFrames,
	})
}

func (r *eventReporter) ClipError(s reporter.ClipErrorSummary) {
	_ = r.handler(ClipErrorEvent{
		BaseEvent: BaseEvent{EventType: EventTypeClipError, Time: NewTimestamp()},
		ClipIndex: s.ClipIndex,
		Message:   s.Message,
	})
}

func (r *eventReporter) ClientConnected(s reporter.ClientSummary) {
	_ = r.handler(ClientConnectedEvent{
		BaseEvent: BaseEvent{EventType: EventTypeClientConnected, Time: NewTimestamp()},
		ClipIndex: s.ClipIndex,
		Connected: s.Connected,
	})
}

func (r *eventReporter) ShutdownComplete(s reporter.ShutdownSummary) {
	_ = r.handler(ShutdownEvent{
		BaseEvent:     BaseEvent{EventType: EventTypeShutdown, Time: NewTimestamp()},
		ClipCount:     s.ClipCount,
		ElapsedMillis: s.Elapsed.Milliseconds(),
	})
}

func (r *eventReporter) Warning(message string) {
	_ = r.handler(WarningEvent{
		BaseEvent: BaseEvent{EventType: EventTypeWarning, Time: NewTimestamp()},
		Message:   message,
	})
}

func (r *eventReporter) Error(e reporter.ReporterError) {
	_ = r.handler(ErrorEvent{
		BaseEvent:  BaseEvent{EventType: EventTypeError, Time: NewTimestamp()},
		Title:      e.Title,
		Message:    e.Message,
		Context:    e.Context,
		Suggestion: e.Suggestion,
	})
}

func (r *eventReporter) OperationComplete(string) {}

func (r *eventReporter) Verbose(string) {}
