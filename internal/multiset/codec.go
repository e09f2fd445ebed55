package multiset

import (
	"fmt"
	"iter"
	"math/big"

	sorterrors "github.com/tamirms/ranksort/errors"
)

// Rank Codec Overview:
//
// Both directions scan the window from Min upwards while tracking the
// separator C(c-1, width): the number of length-c sequences over the
// remaining window whose first element is the current scan position. A rank
// below the separator means the sequence starts at the scan position;
// otherwise the separator is subtracted and the window shrinks by one.
//
//	rank < sep    element at scan position   sep <- RetreatCount, c--
//	rank >= sep   skip scan position         rank -= sep, sep <- RetreatWidth, Min++

// separator returns C(n, width), from the cache when it is bound to width.
func separator(n, width uint64, cache *Cache) (*big.Int, error) {
	if cache != nil && cache.Width() == width {
		return cache.Coefficient(n)
	}
	return Coefficient(n, width)
}

// Insert returns the state representing s with value added.
// cache may be nil; it is only consulted when its width equals w.Width().
// Cost is O(s.Count + value - w.Min) big-integer operations.
func Insert(s State, value uint64, w Window, cache *Cache) (State, error) {
	if err := w.validate(); err != nil {
		return State{}, err
	}
	if !w.Contains(value) {
		return State{}, fmt.Errorf("%w: %d not in [%d, %d)", sorterrors.ErrValueOutOfRange, value, w.Min, w.Max)
	}

	var sep *big.Int
	if s.Count > 0 {
		var err error
		if sep, err = separator(s.Count-1, w.Width(), cache); err != nil {
			return State{}, err
		}
	}
	var sc scratch
	return insert(s, value, w, sep, &sc)
}

// insert adds value to s. sep must hold C(s.Count-1, w.Width()) when
// s.Count > 0 and is consumed.
func insert(s State, value uint64, w Window, sep *big.Int, sc *scratch) (State, error) {
	pos, width, c := w.Min, w.Width(), s.Count
	rest := s.rankCopy()
	result := new(big.Int)
	tmp := new(big.Int)

	// While value lies past the scan position, every existing element at
	// the scan position stays ahead of it, and every skipped position
	// contributes the separator of the grown sequence, C(c, width).
	for value > pos && c > 0 {
		if rest.Cmp(sep) < 0 {
			if err := sc.retreatCount(sep, c-1, width); err != nil {
				return State{}, err
			}
			c--
			continue
		}
		rest.Sub(rest, sep)
		tmp.Set(sep)
		if err := sc.advanceCount(tmp, c-1, width); err != nil {
			return State{}, err
		}
		result.Add(result, tmp)
		// value > pos and value < w.Max keep width >= 2 here.
		if err := sc.retreatWidth(sep, c-1, width); err != nil {
			return State{}, err
		}
		pos++
		width--
	}

	if value > pos {
		// Every existing element precedes value: the tail is the single
		// sequence [value], whose rank over [pos, Max) is C(1, value-pos).
		result.Add(result, tmp.SetUint64(value-pos))
	} else {
		// value sits at the scan position ahead of the remaining elements,
		// whose rank carries over unchanged.
		result.Add(result, rest)
	}
	return State{Rank: result, Count: s.Count + 1}, nil
}

// Unranker lazily decodes a State into its values in non-decreasing order.
// It is forward-only and cannot be restarted.
//
// Usage:
//
//	u, err := multiset.NewUnranker(s, w, cache)
//	if err != nil { return err }
//	for v, ok := u.Next(); ok; v, ok = u.Next() {
//	    ...
//	}
//	return u.Err()
type Unranker struct {
	rank  *big.Int
	sep   *big.Int
	count uint64
	width uint64
	pos   uint64
	sc    scratch
	err   error
}

// NewUnranker prepares to decode s over w. The state itself is not
// modified. cache may be nil.
func NewUnranker(s State, w Window, cache *Cache) (*Unranker, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}
	u := &Unranker{
		rank:  s.rankCopy(),
		count: s.Count,
		width: w.Width(),
		pos:   w.Min,
	}
	if u.rank.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative rank", sorterrors.ErrCorruptedState)
	}
	if u.count > 0 {
		sep, err := separator(u.count-1, u.width, cache)
		if err != nil {
			return nil, err
		}
		u.sep = sep
	}
	return u, nil
}

// Next returns the next value. ok is false once all values have been
// produced or decoding failed; check Err afterwards.
func (u *Unranker) Next() (v uint64, ok bool) {
	if u.err != nil {
		return 0, false
	}
	for u.count > 0 && u.width > 0 {
		if u.rank.Cmp(u.sep) < 0 {
			v = u.pos
			if u.count > 1 {
				if err := u.sc.retreatCount(u.sep, u.count-1, u.width); err != nil {
					u.fail(err)
					return 0, false
				}
			}
			u.count--
			return v, true
		}
		u.rank.Sub(u.rank, u.sep)
		if u.width > 1 {
			if err := u.sc.retreatWidth(u.sep, u.count-1, u.width); err != nil {
				u.fail(err)
				return 0, false
			}
		}
		u.pos++
		u.width--
	}
	if u.count > 0 {
		u.fail(fmt.Errorf("%w: %d values left past the end of the window", sorterrors.ErrCorruptedState, u.count))
	}
	return 0, false
}

// All returns an iterator over the remaining values. Check Err after the
// loop ends.
func (u *Unranker) All() iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		for {
			v, ok := u.Next()
			if !ok || !yield(v) {
				return
			}
		}
	}
}

// Remaining returns the number of values not yet produced.
func (u *Unranker) Remaining() uint64 {
	return u.count
}

// Err returns the first decoding error, if any.
func (u *Unranker) Err() error {
	return u.err
}

func (u *Unranker) fail(err error) {
	u.err = err
	u.count = 0
}

// Decode unranks s into a slice of s.Count values in non-decreasing order.
func Decode(s State, w Window, cache *Cache) ([]uint64, error) {
	u, err := NewUnranker(s, w, cache)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, s.Count)
	for v := range u.All() {
		out = append(out, v)
	}
	if err := u.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
