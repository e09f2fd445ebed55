// bench_io compares I/O patterns for writing and reading a drained sorted
// sequence:
//
//  1. "mmap": Sorter.WriteFile into a pre-allocated, memory-mapped output file
//     read back through Output.All (current approach)
//  2. "stream": packed values written through a bufio.Writer and read back
//     with sequential read(2) calls
//
// Both modes drain the same input, pack values at the same width, and report
// a checksum so the read phases can be compared.
//
// Usage:
//
//	go run ./cmd/bench_io -values 10000000
//	go run ./cmd/bench_io -values 50000000 -max 4294967296 -buckets 1048576 -mode stream
//
// To simulate memory pressure (data exceeding page cache):
//
//	sudo systemd-run --scope -p MemoryMax=1G --uid=$(id -u) \
//	  go run ./cmd/bench_io -values 200000000
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/tamirms/ranksort"
	"github.com/tamirms/ranksort/internal/encoding"
)

func main() {
	numValues := flag.Int("values", 10_000_000, "number of values")
	maxValue := flag.Uint64("max", 100_000_000, "exclusive upper bound of the values")
	buckets := flag.Uint64("buckets", 100_000, "number of buckets")
	bufferKB := flag.Int("buffer", 256, "write buffer size in KB for stream mode")
	mode := flag.String("mode", "both", "mode: mmap, stream, or both")
	tmpDir := flag.String("dir", "", "temp directory (default: os.TempDir())")
	flag.Parse()

	if *tmpDir == "" {
		*tmpDir = os.TempDir()
	}
	valueSize := encoding.ValueSize(*maxValue)

	fmt.Printf("Configuration:\n")
	fmt.Printf("  Values:       %d × %d bytes (%.1f MB)\n", *numValues, valueSize, float64(*numValues*valueSize)/1e6)
	fmt.Printf("  Max value:    %d\n", *maxValue)
	fmt.Printf("  Buckets:      %d\n", *buckets)
	fmt.Printf("  Temp dir:     %s\n", *tmpDir)
	fmt.Printf("  GOMAXPROCS:   %d\n", runtime.GOMAXPROCS(0))
	fmt.Println()

	values := make([]uint64, *numValues)
	rng := rand.New(rand.NewPCG(42, 0))
	for i := range values {
		values[i] = rng.Uint64N(*maxValue)
	}
	opts := []ranksort.Option{ranksort.WithMaxValue(*maxValue), ranksort.WithBuckets(*buckets)}

	if *mode == "mmap" || *mode == "both" {
		fmt.Println("=== mmap output file (current approach) ===")
		if err := benchMmap(*tmpDir, values, opts); err != nil {
			fmt.Printf("  ERROR: %v\n", err)
		}
		fmt.Println()
	}

	if *mode == "stream" || *mode == "both" {
		fmt.Println("=== buffered sequential stream ===")
		if err := benchStream(*tmpDir, values, opts, valueSize, *bufferKB*1024); err != nil {
			fmt.Printf("  ERROR: %v\n", err)
		}
		fmt.Println()
	}
}

// loadSorter builds a Sorter holding values. Insertion is not timed.
func loadSorter(values []uint64, opts []ranksort.Option) (*ranksort.Sorter, error) {
	s, err := ranksort.New(opts...)
	if err != nil {
		return nil, err
	}
	if err := s.InsertBatch(context.Background(), values); err != nil {
		return nil, err
	}
	return s, nil
}

// benchMmap drains through WriteFile and reads back through the memory map.
func benchMmap(dir string, values []uint64, opts []ranksort.Option) error {
	s, err := loadSorter(values, opts)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("bench-mmap-%d.rks", os.Getpid()))
	defer func() { _ = os.Remove(path) }()

	// Write phase: drain + pack + hash + flush
	writeStart := time.Now()
	if err := s.WriteFile(context.Background(), path); err != nil {
		return err
	}
	writeDur := time.Since(writeStart)
	report("Write", writeDur, len(values))

	// Read phase: sequential iteration over the mapped value region
	readStart := time.Now()
	out, err := ranksort.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()
	var checksum uint64
	for v := range out.All() {
		checksum += v
	}
	readDur := time.Since(readStart)
	report("Read", readDur, len(values))
	fmt.Printf("  Checksum: %x\n", checksum)

	verifyStart := time.Now()
	if err := out.Verify(); err != nil {
		return err
	}
	fmt.Printf("  Verify: %6.2fs\n", time.Since(verifyStart).Seconds())
	fmt.Printf("  Total:  %6.2fs\n", (writeDur + readDur).Seconds())
	return nil
}

// benchStream drains into a buffered writer of packed values, syncs, and reads
// the file back with plain read(2) calls.
func benchStream(dir string, values []uint64, opts []ranksort.Option, valueSize, bufferSize int) error {
	s, err := loadSorter(values, opts)
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "bench-stream-*.bin")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(f.Name())
	}()

	// Write phase: drain into a reusable pack buffer
	writeStart := time.Now()
	w := bufio.NewWriterSize(f, bufferSize)
	var packed [encoding.MaxValueSize]byte
	err = s.Drain(context.Background(), func(v uint64) error {
		encoding.WriteValueGeneric(unsafe.Pointer(&packed[0]), 0, valueSize, v)
		_, err := w.Write(packed[:valueSize])
		return err
	})
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	writeDur := time.Since(writeStart)
	report("Write", writeDur, len(values))

	// Sync to measure true write cost
	syncStart := time.Now()
	if err := f.Sync(); err != nil {
		return err
	}
	syncDur := time.Since(syncStart)
	fmt.Printf("  Sync:   %6.2fs\n", syncDur.Seconds())

	// Read phase: sequential read with readahead hint
	readStart := time.Now()
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		return err
	}
	_ = unix.Fadvise(int(f.Fd()), 0, info.Size(), unix.FADV_SEQUENTIAL)

	var checksum uint64
	readBuf := make([]byte, bufferSize-bufferSize%valueSize)
	for {
		n, err := io.ReadFull(f, readBuf)
		for off := 0; off+valueSize <= n; off += valueSize {
			checksum += encoding.ReadValue(readBuf[off:], valueSize)
		}
		if err != nil {
			break
		}
	}
	// Drop cached pages so repeated runs start cold
	_ = unix.Fadvise(int(f.Fd()), 0, info.Size(), unix.FADV_DONTNEED)
	readDur := time.Since(readStart)
	report("Read", readDur, len(values))
	fmt.Printf("  Checksum: %x\n", checksum)
	fmt.Printf("  Total:  %6.2fs\n", (writeDur + syncDur + readDur).Seconds())
	return nil
}

func report(phase string, d time.Duration, n int) {
	fmt.Printf("  %-6s %6.2fs (%6.2f M values/sec)\n", phase+":", d.Seconds(), float64(n)/d.Seconds()/1e6)
}
