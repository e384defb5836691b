//go:build linux

package shm

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const shmDir = "/dev/shm"

func shmPath(key string) string { return shmDir + "/" + key }

// Create allocates and maps a fresh POSIX shared memory object for key,
// sized for layout. Any previous object under the same key is truncated
// and reused.
func Create(key string, layout *Layout) (*Region, error) {
	path := shmPath(key)
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", path, err)
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, int64(layout.TotalSize())); err != nil {
		return nil, fmt.Errorf("shm: ftruncate %s to %d bytes: %w", path, layout.TotalSize(), err)
	}

	mem, err := unix.Mmap(fd, 0, layout.TotalSize(), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}

	r := &Region{mem: mem, layout: layout, key: key, owner: true}
	r.initDefaults()
	return r, nil
}

// Open maps an existing shared memory object for key. The caller's layout
// must be identical to the one Create was called with; server and clients
// share an identical build and configuration out of band.
func Open(key string, layout *Layout) (*Region, error) {
	path := shmPath(key)
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", path, err)
	}
	defer unix.Close(fd)

	mem, err := unix.Mmap(fd, 0, layout.TotalSize(), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}

	return &Region{mem: mem, layout: layout, key: key, owner: false}, nil
}

// Close unmaps the region. A Region created with Create also unlinks the
// backing object, so a later Create under the same key starts clean; a
// Region obtained with Open leaves the object in place for its owner to
// unlink.
func (r *Region) Close() error {
	if err := unix.Munmap(r.mem); err != nil {
		return fmt.Errorf("shm: munmap: %w", err)
	}
	if r.owner {
		_ = unix.Unlink(shmPath(r.key))
	}
	return nil
}

// Unlink removes the shared memory object for key without mapping it,
// used to clean up stale objects left behind by a crashed server.
func Unlink(key string) error {
	if err := unix.Unlink(shmPath(key)); err != nil {
		return fmt.Errorf("shm: unlink %s: %w", shmPath(key), err)
	}
	return nil
}
