// Package shm provides the shared-memory pixel pools that back client
// buffers.
package shm

import (
	"os"

	"golang.org/x/sys/unix"
)

// Mmap is a mapped region of a shared memory file.
type Mmap []byte

// Map maps size bytes of file with the given protection flags.
func Map(file *os.File, size int, prot int) (mmap Mmap, err error) {
	sc, err := file.SyscallConn()
	if err != nil {
		return nil, err
	}

	sc.Control(func(fd uintptr) {
		m, merr := unix.Mmap(int(fd), 0, size, prot, unix.MAP_SHARED)
		mmap, err = Mmap(m), merr
	})

	return mmap, err
}

func (mmap Mmap) Unmap() error {
	return unix.Munmap(mmap)
}

// Create makes an anonymous shared memory file, usable as the backing
// store for a pool handed to the display server.
func Create() (*os.File, error) {
	fd, err := unix.MemfdCreate("tide-shm", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return os.NewFile(uintptr(fd), "tide-shm"), nil
}
