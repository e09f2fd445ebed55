package multiset

import (
	"fmt"
	"math/big"

	sorterrors "github.com/tamirms/ranksort/errors"
)

// Merge Overview:
//
// Merging walks the window once, keeping three separators: one for the
// combined sequence (count a+b) and one for each input. At each scan
// position the elements of a and b equal to the position are drained (each
// drain retreats the combined separator in the count dimension too); then
// the combined separator is added to the result, skipping the position in
// the combined numbering, and all separators retreat in the width dimension.
//
// Once one input is exhausted, the other's remaining rank over the remaining
// window already equals the combined rank of what is left, so it is added
// verbatim and the walk stops early.

// mergeInput is one side of a merge.
type mergeInput struct {
	rank  *big.Int
	sep   *big.Int
	count uint64
}

// Merge returns the state holding the multiset union of a and b, both
// encoded over w, without decoding either. The inputs are not modified;
// callers treat them as consumed. cache may be nil.
func Merge(a, b State, w Window, cache *Cache) (State, error) {
	if err := w.validate(); err != nil {
		return State{}, err
	}
	width := w.Width()
	return merge(a, b, width, func(n uint64) (*big.Int, error) {
		return separator(n, width, cache)
	})
}

// MergeFullWidth is Merge for states encoded over windows of exactly
// cache.Width() values. All initial separators come from the cache.
func MergeFullWidth(a, b State, cache *Cache) (State, error) {
	if cache == nil {
		return State{}, fmt.Errorf("%w: full-width merge needs a cache", sorterrors.ErrInvalidWindow)
	}
	if cache.Width() == 0 {
		return State{}, fmt.Errorf("%w: cache over zero values", sorterrors.ErrInvalidWindow)
	}
	return merge(a, b, cache.Width(), cache.Coefficient)
}

func merge(a, b State, width uint64, coef func(uint64) (*big.Int, error)) (State, error) {
	if a.Count == 0 {
		return b.Clone(), nil
	}
	if b.Count == 0 {
		return a.Clone(), nil
	}

	total := a.Count + b.Count
	sepr, err := coef(total - 1)
	if err != nil {
		return State{}, err
	}
	in := [2]mergeInput{
		{rank: a.rankCopy(), count: a.Count},
		{rank: b.rankCopy(), count: b.Count},
	}
	for i := range in {
		if in[i].rank.Sign() < 0 {
			return State{}, fmt.Errorf("%w: negative rank", sorterrors.ErrCorruptedState)
		}
		if in[i].sep, err = coef(in[i].count - 1); err != nil {
			return State{}, err
		}
	}

	var sc scratch
	c := total
	result := new(big.Int)
	for width > 0 && in[0].count > 0 && in[1].count > 0 {
		for i := range in {
			x := &in[i]
			for x.count > 0 && x.rank.Cmp(x.sep) < 0 {
				if err := sc.retreatCount(sepr, c-1, width); err != nil {
					return State{}, err
				}
				c--
				if err := sc.retreatCount(x.sep, x.count-1, width); err != nil {
					return State{}, err
				}
				x.count--
			}
		}

		result.Add(result, sepr)
		if width == 1 {
			// Last position: anything not drained above is corrupt.
			width = 0
			break
		}
		if c > 0 {
			if err := sc.retreatWidth(sepr, c-1, width); err != nil {
				return State{}, err
			}
		}
		for i := range in {
			x := &in[i]
			if x.count == 0 {
				continue
			}
			x.rank.Sub(x.rank, x.sep)
			if err := sc.retreatWidth(x.sep, x.count-1, width); err != nil {
				return State{}, err
			}
		}
		width--
	}

	for i := range in {
		if in[i].count == 0 {
			continue
		}
		if width == 0 {
			return State{}, fmt.Errorf("%w: %d values left past the end of the window",
				sorterrors.ErrCorruptedState, in[i].count)
		}
		result.Add(result, in[i].rank)
	}
	return State{Rank: result, Count: total}, nil
}
