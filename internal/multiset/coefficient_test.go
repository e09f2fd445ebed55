package multiset

import (
	"errors"
	"math/big"
	"testing"

	sorterrors "github.com/tamirms/ranksort/errors"
)

// TestCoefficientMatchesBinomial checks C(n, w) against choose(n+w-1, n)
// computed by math/big for every small (n, w).
func TestCoefficientMatchesBinomial(t *testing.T) {
	for w := uint64(1); w <= 40; w++ {
		for n := uint64(0); n <= 40; n++ {
			got, err := Coefficient(n, w)
			if err != nil {
				t.Fatalf("Coefficient(%d, %d): %v", n, w, err)
			}
			if want := binomial(n, w); got.Cmp(want) != 0 {
				t.Fatalf("Coefficient(%d, %d) = %s, want %s", n, w, got, want)
			}
		}
	}
}

// TestCoefficientClampedFactors covers n > w-1, where only w-1 factors of
// the product are used.
func TestCoefficientClampedFactors(t *testing.T) {
	testCases := []struct {
		n, w uint64
	}{
		{1000, 1},
		{1000, 2},
		{1000, 5},
		{250, 30},
		{31, 30},
	}
	for _, tc := range testCases {
		got, err := Coefficient(tc.n, tc.w)
		if err != nil {
			t.Fatalf("Coefficient(%d, %d): %v", tc.n, tc.w, err)
		}
		if want := binomial(tc.n, tc.w); got.Cmp(want) != 0 {
			t.Errorf("Coefficient(%d, %d) = %s, want %s", tc.n, tc.w, got, want)
		}
	}
}

// TestCoefficientNotSymmetric documents that C(n, w) is not symmetric the
// way choose(n, k) is.
func TestCoefficientNotSymmetric(t *testing.T) {
	a, _ := Coefficient(2, 10)
	b, _ := Coefficient(10-1-2, 10)
	if a.Cmp(b) == 0 {
		t.Fatalf("C(2,10) == C(7,10) = %s; multiset coefficients are not symmetric", a)
	}
}

func TestCoefficientZeroWidth(t *testing.T) {
	if _, err := Coefficient(3, 0); !errors.Is(err, sorterrors.ErrInvalidWindow) {
		t.Fatalf("Coefficient(3, 0) error = %v, want ErrInvalidWindow", err)
	}
}

// TestRecurrences verifies all four adjacency recurrences at random points.
func TestRecurrences(t *testing.T) {
	rng := newTestRNG(t)
	const iterations = 500

	for i := range iterations {
		n := rng.Uint64N(300) + 1
		w := rng.Uint64N(300) + 2
		v := binomial(n, w)

		check := func(name string, got *big.Int, err error, want *big.Int) {
			t.Helper()
			if err != nil {
				t.Fatalf("iter %d: %s(n=%d, w=%d): %v", i, name, n, w, err)
			}
			if got.Cmp(want) != 0 {
				t.Fatalf("iter %d: %s(n=%d, w=%d) = %s, want %s", i, name, n, w, got, want)
			}
		}

		got, err := AdvanceCount(v, n, w)
		check("AdvanceCount", got, err, binomial(n+1, w))
		got, err = RetreatCount(v, n, w)
		check("RetreatCount", got, err, binomial(n-1, w))
		got, err = AdvanceWidth(v, n, w)
		check("AdvanceWidth", got, err, binomial(n, w+1))
		got, err = RetreatWidth(v, n, w)
		check("RetreatWidth", got, err, binomial(n, w-1))
	}
}

func TestRecurrencesDoNotMutateInput(t *testing.T) {
	v := binomial(5, 9)
	orig := new(big.Int).Set(v)
	if _, err := AdvanceCount(v, 5, 9); err != nil {
		t.Fatal(err)
	}
	if _, err := RetreatWidth(v, 5, 9); err != nil {
		t.Fatal(err)
	}
	if v.Cmp(orig) != 0 {
		t.Fatalf("input changed: %s, want %s", v, orig)
	}
}

// TestRecurrenceInexactDivision feeds values that are not the claimed
// coefficient and expects the exactness check to fire.
func TestRecurrenceInexactDivision(t *testing.T) {
	testCases := []struct {
		name string
		f    func(*big.Int, uint64, uint64) (*big.Int, error)
		v    int64
		n, w uint64
	}{
		{"advance_count", AdvanceCount, 1, 1, 2}, // 1*3/2
		{"retreat_count", RetreatCount, 1, 2, 3}, // 1*2/4
		{"advance_width", AdvanceWidth, 1, 1, 2}, // 1*3/2
		{"retreat_width", RetreatWidth, 1, 2, 3}, // 1*2/4
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.f(big.NewInt(tc.v), tc.n, tc.w)
			if !errors.Is(err, sorterrors.ErrInexactDivision) {
				t.Fatalf("error = %v, want ErrInexactDivision", err)
			}
		})
	}
}

func TestRetreatCountFromZero(t *testing.T) {
	got, err := RetreatCount(big.NewInt(1), 0, 7)
	if err != nil {
		t.Fatal(err)
	}
	if got.Sign() != 0 {
		t.Fatalf("RetreatCount(C(0,7), 0, 7) = %s, want 0", got)
	}
}

func TestRetreatWidthBelowTwo(t *testing.T) {
	if _, err := RetreatWidth(big.NewInt(1), 3, 1); !errors.Is(err, sorterrors.ErrInvalidWindow) {
		t.Fatalf("error = %v, want ErrInvalidWindow", err)
	}
}

func TestRecurrenceZeroWidth(t *testing.T) {
	if _, err := AdvanceCount(big.NewInt(1), 0, 0); !errors.Is(err, sorterrors.ErrInvalidWindow) {
		t.Fatalf("error = %v, want ErrInvalidWindow", err)
	}
}
