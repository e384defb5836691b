// Package xerr collects the sentinel errors shared across the fetcher,
// channel, proxy and lifecycle packages, so callers on either side of a
// process boundary can compare against the same values.
package xerr

import "errors"

// ErrAlreadyShutDown is returned by a fetcher or channel call made after
// Shutdown has completed: the caller asked for a frame, parity bit or video
// info from a fetcher that has already torn down its worker.
var ErrAlreadyShutDown = errors.New("splitproc: already shut down")

// ErrServerShutDown is observed by a client proxy when the server side of
// the shared-memory channel has gone away (object_state reached Shutdown)
// while a request was in flight or about to be made.
var ErrServerShutDown = errors.New("splitproc: server shut down")

// ErrNoClips is returned when a fetcher or channel is constructed with zero
// clips; the protocol has nothing to serve.
var ErrNoClips = errors.New("splitproc: no clips configured")

// ErrChannelInit is returned when the shared region cannot be mapped or
// its synchronization primitives cannot be initialized. Fatal at
// construction; nothing is retried.
var ErrChannelInit = errors.New("splitproc: channel initialization failed")

// ErrInvalidClipIndex is returned when a clip index arriving across the
// wire (shared memory or an in-process call) is out of range. Clip indices
// cross a process boundary in the real deployment, so they are validated
// rather than trusted.
var ErrInvalidClipIndex = errors.New("splitproc: invalid clip index")

// ErrRequestTimedOut is returned by a client proxy when a request condition
// variable does not observe a response within its configured timeout.
var ErrRequestTimedOut = errors.New("splitproc: request timed out")
