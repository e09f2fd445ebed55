//go:build linux

package ranksort

import (
	"os"

	"golang.org/x/sys/unix"
)

// reserveFile sizes an output file to exactly size bytes with its blocks
// allocated, so a full disk fails here rather than as SIGBUS while writing
// through the mapping. Filesystems without fallocate support (NFS, some
// FUSE mounts) fall back to a sparse ftruncate.
func reserveFile(file *os.File, size int64) error {
	fd := int(file.Fd())
	_ = unix.Fallocate(fd, 0, 0, size)
	return unix.Ftruncate(fd, size)
}

// populateForWrite prefaults the mapped value region with
// MADV_POPULATE_WRITE (Linux 5.14+). Older kernels return EINVAL; the pages
// then fault in on first write as usual.
func populateForWrite(region []byte) {
	if len(region) == 0 {
		return
	}
	_ = unix.Madvise(region, unix.MADV_POPULATE_WRITE)
}

// adviseSequential enables aggressive readahead for a file that is about to
// be mapped and read front to back.
func adviseSequential(file *os.File, size int64) {
	_ = unix.Fadvise(int(file.Fd()), 0, size, unix.FADV_SEQUENTIAL)
}
