// Package multiset implements the combinatorial rank encoding of sorted
// multisets over a bounded value window.
//
// A multiset of Count values drawn from the window [Min, Max) is stored as its
// rank in the numbering of all non-decreasing sequences of that length over
// the window. The numbering is lexicographic with the smallest element most
// significant, so rank 0 is the sequence whose elements all equal Min. The
// number of such sequences is the multiset coefficient C(Count, Max-Min),
// which bounds the rank.
//
// The package provides:
//   - the coefficient kernel and its four adjacency recurrences (coefficient.go)
//   - a width-bound coefficient cache (cache.go)
//   - incremental insertion and lazy unranking (codec.go, accumulator.go)
//   - merging of two encoded states without decoding either (merge.go)
//
// All operations return new states. A State's Rank is never modified in
// place once published, so States may be copied and shared freely.
package multiset

import (
	"fmt"
	"math/big"

	sorterrors "github.com/tamirms/ranksort/errors"
)

// Window is the half-open value interval [Min, Max) of one bucket.
type Window struct {
	Min uint64
	Max uint64
}

// Width returns the number of distinct values in the window.
func (w Window) Width() uint64 {
	return w.Max - w.Min
}

// Contains reports whether v lies in [Min, Max).
func (w Window) Contains(v uint64) bool {
	return v >= w.Min && v < w.Max
}

func (w Window) validate() error {
	if w.Max <= w.Min {
		return fmt.Errorf("%w: [%d, %d)", sorterrors.ErrInvalidWindow, w.Min, w.Max)
	}
	return nil
}

// State is an encoded multiset: the rank of its sorted sequence among all
// non-decreasing sequences of length Count over the owning window.
//
// The zero value is the empty multiset. Rank is nil for the empty multiset;
// read it through RankValue unless the state is known to be non-empty.
type State struct {
	Rank  *big.Int
	Count uint64
}

// IsEmpty reports whether the state holds no values.
func (s State) IsEmpty() bool {
	return s.Count == 0
}

// Clone returns a state with its own copy of the rank. A nil rank stays nil.
func (s State) Clone() State {
	if s.Rank == nil {
		return State{Count: s.Count}
	}
	return State{Rank: s.rankCopy(), Count: s.Count}
}

// RankValue returns a copy of the rank, zero for a nil rank.
func (s State) RankValue() *big.Int {
	return s.rankCopy()
}

// RankBits returns the bit length of the rank, i.e. the memory the
// encoding occupies.
func (s State) RankBits() int {
	if s.Rank == nil {
		return 0
	}
	return s.Rank.BitLen()
}

// rankCopy returns a mutable copy of the rank (zero for a nil rank).
func (s State) rankCopy() *big.Int {
	if s.Rank == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(s.Rank)
}

// Validate checks the rank invariant 0 <= Rank < C(Count, Width).
func Validate(s State, w Window) error {
	if err := w.validate(); err != nil {
		return err
	}
	rank := s.rankCopy()
	if rank.Sign() < 0 {
		return fmt.Errorf("%w: negative rank", sorterrors.ErrCorruptedState)
	}
	bound, err := Coefficient(s.Count, w.Width())
	if err != nil {
		return err
	}
	if rank.Cmp(bound) >= 0 {
		return fmt.Errorf("%w: rank has %d bits, bound C(%d, %d) has %d",
			sorterrors.ErrCorruptedState, rank.BitLen(), s.Count, w.Width(), bound.BitLen())
	}
	return nil
}
