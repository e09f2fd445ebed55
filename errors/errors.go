// Package errors defines all exported error sentinels for the ranksort library.
//
// This is the single source of truth for error values. Both the top-level
// ranksort package and the internal multiset package import from here,
// ensuring errors.Is checks work across package boundaries.
package errors

import "errors"

// Arithmetic and state errors
var (
	// ErrInexactDivision reports a division that was required to be exact but
	// left a remainder. It only happens when a (rank, count, width) triple
	// violates the rank invariant, i.e. the encoded state is corrupted.
	ErrInexactDivision = errors.New("ranksort: inexact division in coefficient recurrence")
	ErrCorruptedState  = errors.New("ranksort: encoded bucket state is corrupted")
	ErrInvalidWindow   = errors.New("ranksort: invalid value window")
)

// Input errors
var (
	ErrValueOutOfRange = errors.New("ranksort: value outside configured range")
	ErrInvalidConfig   = errors.New("ranksort: invalid configuration")
)

// Output file errors
var (
	ErrInvalidMagic    = errors.New("ranksort: invalid magic number")
	ErrInvalidVersion  = errors.New("ranksort: unsupported version")
	ErrTruncatedFile   = errors.New("ranksort: output file is truncated")
	ErrCorruptedOutput = errors.New("ranksort: output data is corrupted")
	ErrChecksumFailed  = errors.New("ranksort: output checksum verification failed")
	ErrOutputClosed    = errors.New("ranksort: output is closed")
	ErrCountMismatch   = errors.New("ranksort: value count mismatch")
)
