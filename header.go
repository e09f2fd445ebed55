package ranksort

import (
	"encoding/binary"

	sorterrors "github.com/tamirms/ranksort/errors"
	"github.com/tamirms/ranksort/internal/encoding"
)

const (
	// magic number for sorted-output files
	// "RKST" in little-endian
	magic = uint32(0x54534B52)

	// version is the current format version
	version = uint16(0x0001)

	// headerSize is the exact size of the serialized header (64 bytes)
	headerSize = 64

	// footerSize is the exact size of the serialized footer (32 bytes)
	footerSize = 32
)

// header is the 64-byte file header.
//
// Layout:
//
//	Offset  Size  Field        Type
//	0       4     Magic        0x54534B52 ("RKST")
//	4       2     Version      0x0001
//	6       8     Count        uint64_le (number of values)
//	14      8     MaxValue     uint64_le (exclusive bound of every value)
//	22      4     BucketCount  uint32_le
//	26      4     LittleCap    uint32_le
//	30      1     ValueSize    uint8 (bytes per value, 1..8)
//	31      33    Reserved     [33]byte (zero)
//
// BucketCount and LittleCap record the sorter configuration that produced
// the file; readers do not need them.
type header struct {
	Magic       uint32   // 4 bytes: magic number 0x54534B52
	Version     uint16   // 2 bytes: format version
	Count       uint64   // 8 bytes: number of values
	MaxValue    uint64   // 8 bytes: exclusive value bound
	BucketCount uint32   // 4 bytes: sorter bucket count
	LittleCap   uint32   // 4 bytes: sorter little cap
	ValueSize   uint8    // 1 byte: bytes per value
	Reserved    [33]byte // 33 bytes: reserved (zero)
}

// encodeTo serializes the header to an existing buffer.
func (h *header) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint64(buf[6:14], h.Count)
	binary.LittleEndian.PutUint64(buf[14:22], h.MaxValue)
	binary.LittleEndian.PutUint32(buf[22:26], h.BucketCount)
	binary.LittleEndian.PutUint32(buf[26:30], h.LittleCap)
	buf[30] = h.ValueSize
	copy(buf[31:64], h.Reserved[:])
}

// decodeHeader parses a 64-byte header.
func decodeHeader(buf []byte) (*header, error) {
	if len(buf) < headerSize {
		return nil, sorterrors.ErrTruncatedFile
	}

	h := &header{
		Magic:       binary.LittleEndian.Uint32(buf[0:4]),
		Version:     binary.LittleEndian.Uint16(buf[4:6]),
		Count:       binary.LittleEndian.Uint64(buf[6:14]),
		MaxValue:    binary.LittleEndian.Uint64(buf[14:22]),
		BucketCount: binary.LittleEndian.Uint32(buf[22:26]),
		LittleCap:   binary.LittleEndian.Uint32(buf[26:30]),
		ValueSize:   buf[30],
	}
	copy(h.Reserved[:], buf[31:64])

	if h.Magic != magic {
		return nil, sorterrors.ErrInvalidMagic
	}
	if h.Version != version {
		return nil, sorterrors.ErrInvalidVersion
	}
	if h.MaxValue == 0 {
		return nil, sorterrors.ErrCorruptedOutput
	}
	if int(h.ValueSize) != encoding.ValueSize(h.MaxValue) {
		return nil, sorterrors.ErrCorruptedOutput
	}

	return h, nil
}

// valueSizeInt returns ValueSize as int for arithmetic convenience.
func (h *header) valueSizeInt() int {
	return int(h.ValueSize)
}

// valueRegionSize returns the byte length of the value region.
func (h *header) valueRegionSize() uint64 {
	return h.Count * uint64(h.ValueSize)
}

// footer is the 32-byte file footer.
//
// Layout:
//
//	Offset  Size  Field            Type
//	0       8     ValueRegionHash  uint64_le (xxHash64 of value region)
//	8       8     Fingerprint      uint64_le (multiset fingerprint of values)
//	16      16    Reserved         [16]byte (zero)
type footer struct {
	ValueRegionHash uint64   // 8 bytes: xxHash64 of the value region
	Fingerprint     uint64   // 8 bytes: order-independent value checksum
	Reserved        [16]byte // 16 bytes: reserved for future use
}

// encodeTo serializes the footer into an existing buffer.
func (f *footer) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], f.ValueRegionHash)
	binary.LittleEndian.PutUint64(buf[8:16], f.Fingerprint)
	copy(buf[16:32], f.Reserved[:])
}

// decodeFooter parses a 32-byte footer.
func decodeFooter(buf []byte) (*footer, error) {
	if len(buf) < footerSize {
		return nil, sorterrors.ErrTruncatedFile
	}

	f := &footer{
		ValueRegionHash: binary.LittleEndian.Uint64(buf[0:8]),
		Fingerprint:     binary.LittleEndian.Uint64(buf[8:16]),
	}
	copy(f.Reserved[:], buf[16:32])

	return f, nil
}
