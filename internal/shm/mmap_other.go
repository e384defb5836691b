//go:build !linux

package shm

import "errors"

// ErrUnsupportedPlatform is returned by Create/Open/Unlink on any platform
// other than Linux. The region relies on POSIX shared memory under
// /dev/shm, and server and clients always run on the same host; this
// codebase only targets Linux hosts.
var ErrUnsupportedPlatform = errors.New("shm: shared memory regions are only supported on linux")

func Create(key string, layout *Layout) (*Region, error) { return nil, ErrUnsupportedPlatform }

func Open(key string, layout *Layout) (*Region, error) { return nil, ErrUnsupportedPlatform }

func (r *Region) Close() error { return ErrUnsupportedPlatform }

func Unlink(key string) error { return ErrUnsupportedPlatform }
