package multiset

import (
	"fmt"
	"math/big"

	sorterrors "github.com/tamirms/ranksort/errors"
)

// Coefficient Kernel Overview:
//
// C(n, w) counts the non-decreasing sequences of length n over w values:
//
//	           (n + w - 1)!          k   n + w - i
//	C(n, w) = --------------  =     | |  ---------      k = min(n, w-1)
//	           (w - 1)! n!          i=1      i
//
// Every partial product is itself a binomial coefficient, so each division
// in the product is exact. The four recurrences below move C by one step in
// either parameter with one multiplication and one exact division:
//
//	AdvanceCount   C(n, w) -> C(n+1, w)   * (n+w)   / (n+1)
//	RetreatCount   C(n, w) -> C(n-1, w)   * n       / (n+w-1)
//	AdvanceWidth   C(n, w) -> C(n, w+1)   * (n+w)   / w
//	RetreatWidth   C(n, w) -> C(n, w-1)   * (w-1)   / (n+w-1)
//
// A remainder in any of these divisions means the input was not the
// coefficient the caller claimed, which only happens with corrupted state.

// Coefficient computes C(n, w), the number of non-decreasing sequences of
// length n drawn from w values. w must be at least 1.
func Coefficient(n, w uint64) (*big.Int, error) {
	if w == 0 {
		return nil, fmt.Errorf("%w: coefficient over zero values", sorterrors.ErrInvalidWindow)
	}

	// Only min(n, w-1) factors are non-trivial: the product is symmetric
	// in n and w-1.
	k := n
	if k > w-1 {
		k = w - 1
	}

	var sc scratch
	result := big.NewInt(1)
	j := n + w - 1
	for i := uint64(1); i <= k; i++ {
		if err := sc.scale(result, j, i); err != nil {
			return nil, err
		}
		j--
	}
	return result, nil
}

// AdvanceCount returns C(n+1, w) given v = C(n, w).
func AdvanceCount(v *big.Int, n, w uint64) (*big.Int, error) {
	return step(v, n, w, (*scratch).advanceCount)
}

// RetreatCount returns C(n-1, w) given v = C(n, w).
// For n == 0 the result is zero (C(-1, w) counts no sequences).
func RetreatCount(v *big.Int, n, w uint64) (*big.Int, error) {
	return step(v, n, w, (*scratch).retreatCount)
}

// AdvanceWidth returns C(n, w+1) given v = C(n, w).
func AdvanceWidth(v *big.Int, n, w uint64) (*big.Int, error) {
	return step(v, n, w, (*scratch).advanceWidth)
}

// RetreatWidth returns C(n, w-1) given v = C(n, w). w must be at least 2.
func RetreatWidth(v *big.Int, n, w uint64) (*big.Int, error) {
	return step(v, n, w, (*scratch).retreatWidth)
}

func step(v *big.Int, n, w uint64, f func(*scratch, *big.Int, uint64, uint64) error) (*big.Int, error) {
	if w == 0 {
		return nil, fmt.Errorf("%w: coefficient over zero values", sorterrors.ErrInvalidWindow)
	}
	var sc scratch
	out := new(big.Int).Set(v)
	if err := f(&sc, out, n, w); err != nil {
		return nil, err
	}
	return out, nil
}

// scratch holds reusable operands for the in-place recurrences used by the
// codec and merge loops. Not safe for concurrent use.
type scratch struct {
	num big.Int
	den big.Int
	rem big.Int
}

// scale sets v = v*num/den, failing if the division leaves a remainder.
// On failure v is left in an unspecified state.
func (sc *scratch) scale(v *big.Int, num, den uint64) error {
	if den == 0 {
		return fmt.Errorf("%w: zero divisor in recurrence", sorterrors.ErrInvalidWindow)
	}
	v.Mul(v, sc.num.SetUint64(num))
	v.QuoRem(v, sc.den.SetUint64(den), &sc.rem)
	if sc.rem.Sign() != 0 {
		return fmt.Errorf("%w: %d*x/%d", sorterrors.ErrInexactDivision, num, den)
	}
	return nil
}

func (sc *scratch) advanceCount(v *big.Int, n, w uint64) error {
	return sc.scale(v, n+w, n+1)
}

func (sc *scratch) retreatCount(v *big.Int, n, w uint64) error {
	if n == 0 {
		v.SetInt64(0)
		return nil
	}
	return sc.scale(v, n, n+w-1)
}

func (sc *scratch) advanceWidth(v *big.Int, n, w uint64) error {
	return sc.scale(v, n+w, w)
}

func (sc *scratch) retreatWidth(v *big.Int, n, w uint64) error {
	if w < 2 {
		return fmt.Errorf("%w: cannot narrow a window of width %d", sorterrors.ErrInvalidWindow, w)
	}
	return sc.scale(v, w-1, n+w-1)
}
