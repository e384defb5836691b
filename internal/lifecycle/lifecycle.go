// Package lifecycle coordinates channel construction and teardown: eager
// per-clip video-info population before the dispatcher goroutine can
// stall a first request on it, and an orderly shutdown sequence shared by
// every entry point that owns a channel.Server.
package lifecycle

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/five82/splitproc/internal/channel"
	"github.com/five82/splitproc/internal/clip"
	"github.com/five82/splitproc/internal/shm"
)

// maxConcurrentVideoInfoFetches bounds how many clips' GetVideoInfo calls
// are outstanding at once during startup. The fetcher's worker goroutine
// still serializes the underlying upstream calls; this only bounds how
// many goroutines are parked waiting their turn.
const maxConcurrentVideoInfoFetches = 8

// Options configures a server's shared region and fetcher bounds, passed
// straight through to channel.New.
type Options struct {
	Port           string
	SlotCount      int
	MaxCacheFrames int
	CacheBehind    int
}

// Start constructs a channel.Server over sources/specs and eagerly
// populates every clip's VideoInfo before returning, so that the first
// client request never stalls on metadata population.
//
// Population is fanned out across goroutines bounded by a weighted
// semaphore rather than one goroutine per clip: with thousands of clips
// that would otherwise pile up thousands of goroutines all blocked on the
// same single worker thread for no benefit.
func Start(ctx context.Context, sources []clip.Source, specs []shm.ClipSpec, opts Options) (*channel.Server, error) {
	srv, err := channel.New(sources, specs, channel.Config{
		Port:           opts.Port,
		SlotCount:      opts.SlotCount,
		MaxCacheFrames: opts.MaxCacheFrames,
		CacheBehind:    opts.CacheBehind,
	})
	if err != nil {
		return nil, err
	}

	if err := populateVideoInfo(ctx, srv); err != nil {
		_ = srv.Shutdown()
		return nil, err
	}
	return srv, nil
}

func populateVideoInfo(ctx context.Context, srv *channel.Server) error {
	sem := semaphore.NewWeighted(maxConcurrentVideoInfoFetches)
	g, gctx := errgroup.WithContext(ctx)

	for ci := 0; ci < srv.ClipCount(); ci++ {
		ci := ci
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			if err := srv.PopulateVideoInfo(ci); err != nil {
				return fmt.Errorf("lifecycle: clip %d: %w", ci, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Stop tears the server down, then unlinks the backing shared-memory
// object (if Shutdown has not already removed it) so a later Start under
// the same port starts clean.
func Stop(srv *channel.Server, port string) error {
	err := srv.Shutdown()
	_ = shm.Unlink(shm.Key(port))
	return err
}

// CleanStalePort unlinks a leftover shared-memory object for port, for use
// at startup before constructing a new Server: a prior process may have
// crashed without tearing its region down. It is always safe to call on a
// port nothing is using.
func CleanStalePort(port string) {
	_ = shm.Unlink(shm.Key(port))
}
