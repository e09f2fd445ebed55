package multiset

import (
	"encoding/binary"
	"hash/fnv"
	"math/big"
	"math/rand/v2"
	"slices"
	"testing"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(testSeed1^s1, testSeed2^s2))
}

// binomial computes C(n, w) independently of the kernel as
// choose(n+w-1, n).
func binomial(n, w uint64) *big.Int {
	return new(big.Int).Binomial(int64(n+w-1), int64(n))
}

// randomValues draws n values uniformly from w.
func randomValues(rng *rand.Rand, w Window, n int) []uint64 {
	vals := make([]uint64, n)
	for i := range vals {
		vals[i] = w.Min + rng.Uint64N(w.Width())
	}
	return vals
}

// encode folds Insert over values.
func encode(t testing.TB, values []uint64, w Window, cache *Cache) State {
	t.Helper()
	var s State
	for _, v := range values {
		var err error
		s, err = Insert(s, v, w, cache)
		if err != nil {
			t.Fatalf("Insert(%d): %v", v, err)
		}
	}
	return s
}

// enumerate lists every non-decreasing sequence of length n over w values
// in canonical order (lexicographic, first element most significant).
func enumerate(n, width int) [][]uint64 {
	var out [][]uint64
	seq := make([]uint64, n)
	var rec func(i int, lo uint64)
	rec = func(i int, lo uint64) {
		if i == n {
			out = append(out, slices.Clone(seq))
			return
		}
		for v := lo; v < uint64(width); v++ {
			seq[i] = v
			rec(i+1, v)
		}
	}
	rec(0, 0)
	return out
}

func sortedCopy(values []uint64) []uint64 {
	s := slices.Clone(values)
	slices.Sort(s)
	return s
}
