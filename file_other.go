//go:build !linux && !darwin

package ranksort

import "os"

// reserveFile sizes an output file to exactly size bytes. Blocks may stay
// unallocated until written.
func reserveFile(file *os.File, size int64) error {
	return file.Truncate(size)
}

func populateForWrite(region []byte) {}

func adviseSequential(file *os.File, size int64) {}
