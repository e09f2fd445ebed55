package ranksort

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"
	sorterrors "github.com/tamirms/ranksort/errors"
	"github.com/tamirms/ranksort/internal/encoding"
)

// hashChunkSize is how many value-region bytes are written between streaming
// hash updates, so hashed bytes are still in CPU cache.
const hashChunkSize = 64 << 10

// WriteFile drains the Sorter into a sorted-output file at path.
// The Sorter is empty afterwards. On any error the file is removed.
//
// Usage:
//
//	if err := s.WriteFile(ctx, "sorted.rks"); err != nil { return err }
//	out, err := ranksort.Open("sorted.rks")
//	if err != nil { return err }
//	defer out.Close()
//	for v := range out.All() { ... }
func (s *Sorter) WriteFile(ctx context.Context, path string) error {
	ow, err := newOutputWriter(path, s.cfg, s.Len())
	if err != nil {
		s.clear()
		return fmt.Errorf("create output writer: %w", err)
	}
	if err := s.Drain(ctx, ow.append); err != nil {
		return errors.Join(err, ow.abort())
	}
	return ow.finalize()
}

// outputWriter writes a sorted-output file through a writable memory map.
// File layout: [Header 64B][Values Count×ValueSize][Footer 32B]
type outputWriter struct {
	path string
	file *os.File
	mmap mmap.MMap // Memory-mapped region
	data []byte    // View into mmap for direct writes

	values    unsafe.Pointer // Start of the value region
	valueSize int
	fastPath  bool // valueSize is one of the sizes encoding.WriteValue handles

	// Streaming hash of the value region, updated every hashChunkSize bytes
	hasher *xxhash.Digest
	hashed uint64 // Bytes of the value region already hashed

	header      header
	written     uint64
	fingerprint uint64
}

// newOutputWriter creates the file sized for exactly count values and maps it.
func newOutputWriter(path string, cfg *sortConfig, count uint64) (*outputWriter, error) {
	valueSize := encoding.ValueSize(cfg.maxValue)
	size := uint64(headerSize) + count*uint64(valueSize) + footerSize

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	if err := reserveFile(file, int64(size)); err != nil {
		primaryErr := fmt.Errorf("failed to allocate disk space: %w", err)
		return nil, errors.Join(primaryErr, file.Close(), os.Remove(path))
	}

	mm, err := mmap.MapRegion(file, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		primaryErr := fmt.Errorf("failed to mmap file: %w", err)
		return nil, errors.Join(primaryErr, file.Close(), os.Remove(path))
	}

	ow := &outputWriter{
		path:      path,
		file:      file,
		mmap:      mm,
		data:      []byte(mm),
		valueSize: valueSize,
		hasher:    xxhash.New(),
		header: header{
			Magic:       magic,
			Version:     version,
			Count:       count,
			MaxValue:    cfg.maxValue,
			BucketCount: uint32(cfg.buckets),
			LittleCap:   uint32(cfg.littleCap),
			ValueSize:   uint8(valueSize),
		},
	}
	// The footer follows the value region, so headerSize is always in bounds.
	ow.values = unsafe.Pointer(&ow.data[headerSize])
	switch valueSize {
	case 1, 2, 4, 8:
		ow.fastPath = true
	}

	populateForWrite(ow.data[headerSize : headerSize+ow.header.valueRegionSize()])

	return ow, nil
}

// append writes the next value. Values must arrive in the final order.
func (ow *outputWriter) append(v uint64) error {
	if ow.written == ow.header.Count {
		return fmt.Errorf("%w: more than %d values", sorterrors.ErrCountMismatch, ow.header.Count)
	}
	if ow.fastPath {
		encoding.WriteValue(ow.values, int(ow.written), ow.valueSize, v)
	} else {
		encoding.WriteValueGeneric(ow.values, int(ow.written), ow.valueSize, v)
	}
	ow.written++
	ow.fingerprint += valueFingerprint(v)

	if end := ow.written * uint64(ow.valueSize); end-ow.hashed >= hashChunkSize {
		ow.hashThrough(end)
	}
	return nil
}

// hashThrough folds value-region bytes [hashed, end) into the streaming hash.
func (ow *outputWriter) hashThrough(end uint64) {
	if end <= ow.hashed {
		return
	}
	chunk := ow.data[headerSize+ow.hashed : headerSize+end]
	if _, err := ow.hasher.Write(chunk); err != nil {
		panic("hash.Hash.Write returned unexpected error: " + err.Error())
	}
	ow.hashed = end
}

// finalize writes header and footer and closes the file.
// On error the file is closed and removed.
// On success, nils mmap/file so that close() is a safe no-op.
func (ow *outputWriter) finalize() error {
	if ow.written != ow.header.Count {
		primaryErr := fmt.Errorf("%w: expected %d, got %d", sorterrors.ErrCountMismatch, ow.header.Count, ow.written)
		return errors.Join(primaryErr, ow.abort())
	}

	regionSize := ow.header.valueRegionSize()
	ow.hashThrough(regionSize)

	ow.header.encodeTo(ow.data[0:headerSize])
	ftr := footer{
		ValueRegionHash: ow.hasher.Sum64(),
		Fingerprint:     ow.fingerprint,
	}
	ftr.encodeTo(ow.data[headerSize+regionSize:])

	// Flush dirty pages to file (ensures writes visible before unmap)
	if err := ow.mmap.Flush(); err != nil {
		primaryErr := fmt.Errorf("mmap flush failed: %w", err)
		return errors.Join(primaryErr, ow.abort())
	}

	// Nil mmap regardless of outcome to prevent close() from retrying.
	unmapErr := ow.mmap.Unmap()
	ow.mmap = nil
	if unmapErr != nil {
		primaryErr := fmt.Errorf("mmap unmap failed: %w", unmapErr)
		return errors.Join(primaryErr, ow.abort())
	}

	closeErr := ow.file.Close()
	ow.file = nil
	if closeErr != nil {
		return errors.Join(closeErr, os.Remove(ow.path))
	}
	return nil
}

// close releases the mapping and file without finalizing.
// Idempotent: safe to call multiple times.
func (ow *outputWriter) close() error {
	var unmapErr error
	if ow.mmap != nil {
		unmapErr = ow.mmap.Unmap()
		ow.mmap = nil
	}
	var closeErr error
	if ow.file != nil {
		closeErr = ow.file.Close()
		ow.file = nil
	}
	return errors.Join(unmapErr, closeErr)
}

// abort closes the writer and removes the partial file.
func (ow *outputWriter) abort() error {
	return errors.Join(ow.close(), os.Remove(ow.path))
}
