//go:build darwin

package ranksort

import (
	"os"

	"golang.org/x/sys/unix"
)

// reserveFile sizes an output file to exactly size bytes. F_PREALLOCATE
// reserves the blocks up front; it does not change the file size, so the
// ftruncate always follows.
func reserveFile(file *os.File, size int64) error {
	fst := unix.Fstore_t{
		Flags:   unix.F_ALLOCATEALL,
		Posmode: unix.F_PEOFPOSMODE,
		Length:  size,
	}
	_ = unix.FcntlFstore(file.Fd(), unix.F_PREALLOCATE, &fst)
	return unix.Ftruncate(int(file.Fd()), size)
}

// populateForWrite is a no-op; darwin has no write-prefault advice.
func populateForWrite(region []byte) {}

// adviseSequential turns on readahead for the file.
func adviseSequential(file *os.File, size int64) {
	_, _ = unix.FcntlInt(file.Fd(), unix.F_RDAHEAD, 1)
}
