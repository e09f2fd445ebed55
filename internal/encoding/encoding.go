// Package encoding provides the fixed-width little-endian value record used
// by sorted output files.
//
// Both WriteValue and WriteValueGeneric use unsafe native-endian writes and
// are only correct on little-endian architectures (amd64, arm64).
package encoding

import (
	"math/bits"
	"unsafe"
)

// MaxValueSize is the widest value record in bytes.
const MaxValueSize = 8

// ValueSize returns the number of bytes needed to store any value in
// [0, maxValue). It is at least 1.
func ValueSize(maxValue uint64) int {
	if maxValue <= 1 {
		return 1
	}
	return (bits.Len64(maxValue-1) + 7) / 8
}

// WriteValue stores v as a little-endian record of size bytes at slot pos in
// the buffer starting at basePtr.
//
// Only supports size 1, 2, 4, and 8; panics for other sizes. Use
// WriteValueGeneric for the rest. The default case does not delegate so that
// WriteValue stays under the inlining budget; with a constant size at the
// call site the compiler drops the unused branches.
func WriteValue(basePtr unsafe.Pointer, pos, size int, v uint64) {
	switch size {
	case 1:
		*(*uint8)(unsafe.Add(basePtr, pos)) = uint8(v)
	case 2:
		*(*uint16)(unsafe.Add(basePtr, pos*2)) = uint16(v)
	case 4:
		*(*uint32)(unsafe.Add(basePtr, pos*4)) = uint32(v)
	case 8:
		*(*uint64)(unsafe.Add(basePtr, pos*8)) = v
	default:
		panic("encoding: WriteValue: unsupported size")
	}
}

// WriteValueGeneric is WriteValue for any size in [1, 8].
func WriteValueGeneric(basePtr unsafe.Pointer, pos, size int, v uint64) {
	ptr := unsafe.Add(basePtr, pos*size)
	switch size {
	case 3:
		*(*uint16)(ptr) = uint16(v)
		*(*uint8)(unsafe.Add(ptr, 2)) = uint8(v >> 16)
	case 5:
		*(*uint32)(ptr) = uint32(v)
		*(*uint8)(unsafe.Add(ptr, 4)) = uint8(v >> 32)
	default:
		for i := range size {
			*(*uint8)(unsafe.Add(ptr, i)) = uint8(v >> (i * 8))
		}
	}
}

// ReadValue reads a little-endian value of size bytes from buf.
// This is the safe read counterpart to WriteValue/WriteValueGeneric.
func ReadValue(buf []byte, size int) uint64 {
	var v uint64
	for i := range size {
		v |= uint64(buf[i]) << (i * 8)
	}
	return v
}

// ReadValueAt reads the value at slot pos of a record array.
func ReadValueAt(buf []byte, pos, size int) uint64 {
	return ReadValue(buf[pos*size:], size)
}
