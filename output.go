package ranksort

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"
	sorterrors "github.com/tamirms/ranksort/errors"
	"github.com/tamirms/ranksort/internal/encoding"
)

// minFileSize is the size of a file holding no values.
const minFileSize = headerSize + footerSize

// Output is a read-only sorted-output file written by Sorter.WriteFile.
//
// Thread Safety:
// - At, All, Verify, and other read methods are safe for concurrent use
// - Close is NOT safe to call concurrently with reads
// - After Close returns, no methods may be called on the Output
type Output struct {
	// Memory map (no file handle needed after mmap)
	mmap mmap.MMap
	data []byte

	header *header
	values []byte // Value region

	closed atomic.Bool // Atomic for lock-free close check
}

// Open opens a sorted-output file for reading.
// It opens the file, memory-maps it, and closes the file descriptor.
func Open(path string) (*Output, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()
	return OpenFile(file)
}

// OpenFile opens a sorted-output file by memory-mapping the given file.
// The caller is responsible for closing f. Per POSIX mmap(2), f may be
// closed immediately after OpenFile returns.
func OpenFile(f *os.File) (*Output, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat output file: %w", err)
	}
	fileSize := stat.Size()

	if fileSize < int64(minFileSize) {
		return nil, sorterrors.ErrTruncatedFile
	}

	// Values are typically read front to back.
	adviseSequential(f, fileSize)

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap output file: %w", err)
	}

	out := &Output{
		mmap: mm,
		data: []byte(mm),
	}
	if err := out.initFromData(); err != nil {
		return nil, errors.Join(err, out.Close())
	}
	return out, nil
}

// OpenBytes reads a sorted-output file from an in-memory byte slice.
// No file is opened or memory-mapped; Close is a no-op.
// The caller must ensure data is not modified while the Output is in use.
func OpenBytes(data []byte) (*Output, error) {
	if len(data) < minFileSize {
		return nil, sorterrors.ErrTruncatedFile
	}
	out := &Output{
		data: data,
	}
	if err := out.initFromData(); err != nil {
		return nil, err
	}
	return out, nil
}

// initFromData parses the header and locates the value region.
// Footer decoding is deferred to Verify.
func (out *Output) initFromData() error {
	hdr, err := decodeHeader(out.data[:headerSize])
	if err != nil {
		return err
	}

	// Count is untrusted: reject sizes whose product would overflow.
	maxCount := uint64(len(out.data)-minFileSize) / uint64(hdr.ValueSize)
	if hdr.Count > maxCount {
		return fmt.Errorf("%w: header claims %d values, file holds at most %d",
			sorterrors.ErrTruncatedFile, hdr.Count, maxCount)
	}
	end := uint64(headerSize) + hdr.valueRegionSize()
	if end+footerSize != uint64(len(out.data)) {
		return fmt.Errorf("%w: file is %d bytes, layout needs %d",
			sorterrors.ErrCorruptedOutput, len(out.data), end+footerSize)
	}

	out.header = hdr
	out.values = out.data[headerSize:end]
	return nil
}

// Close closes the output and releases resources.
func (out *Output) Close() error {
	if out.closed.Swap(true) {
		return nil // Already closed
	}

	if out.mmap != nil {
		return out.mmap.Unmap()
	}
	return nil
}

// Len returns the number of values in the file.
func (out *Output) Len() uint64 {
	return out.header.Count
}

// MaxValue returns the exclusive bound of the sorter that wrote the file.
func (out *Output) MaxValue() uint64 {
	return out.header.MaxValue
}

// ValueSize returns the number of bytes stored per value.
func (out *Output) ValueSize() int {
	return out.header.valueSizeInt()
}

// At returns the value at position i of the sorted sequence.
func (out *Output) At(i uint64) (uint64, error) {
	if out.closed.Load() {
		return 0, sorterrors.ErrOutputClosed
	}
	if i >= out.header.Count {
		return 0, fmt.Errorf("position %d out of range [0, %d)", i, out.header.Count)
	}
	return encoding.ReadValueAt(out.values, int(i), out.header.valueSizeInt()), nil
}

// All returns an iterator over the values in order. It yields nothing once
// the Output is closed.
func (out *Output) All() iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		size := out.header.valueSizeInt()
		for off := 0; off < len(out.values); off += size {
			if out.closed.Load() {
				return
			}
			if !yield(encoding.ReadValue(out.values[off:], size)) {
				return
			}
		}
	}
}

// Verify checks the integrity of the whole file:
// 1. ValueRegionHash (xxHash64 of the value region)
// 2. Fingerprint (multiset checksum of the values)
// 3. every value is below MaxValue and not smaller than its predecessor
//
// The footer is decoded on each Verify call rather than at Open time,
// so Open() only touches the header.
func (out *Output) Verify() error {
	if out.closed.Load() {
		return sorterrors.ErrOutputClosed
	}

	fileSize := uint64(len(out.data))
	ft, err := decodeFooter(out.data[fileSize-footerSize:])
	if err != nil {
		return err
	}

	if xxhash.Sum64(out.values) != ft.ValueRegionHash {
		return sorterrors.ErrChecksumFailed
	}

	size := out.header.valueSizeInt()
	var fingerprint, prev uint64
	for i := 0; i < len(out.values); i += size {
		v := encoding.ReadValue(out.values[i:], size)
		if v >= out.header.MaxValue {
			return fmt.Errorf("%w: value %d at position %d >= max value %d",
				sorterrors.ErrCorruptedOutput, v, i/size, out.header.MaxValue)
		}
		if v < prev {
			return fmt.Errorf("%w: value %d at position %d follows %d",
				sorterrors.ErrCorruptedOutput, v, i/size, prev)
		}
		prev = v
		fingerprint += valueFingerprint(v)
	}
	if fingerprint != ft.Fingerprint {
		return sorterrors.ErrChecksumFailed
	}

	return nil
}
