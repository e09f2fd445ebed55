package ranksort

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand/v2"
	"path/filepath"
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

// smallConfig keeps bucket widths small enough for fast merges and unranking.
func smallConfig(extra ...Option) []Option {
	return append([]Option{WithMaxValue(20_000), WithBuckets(20)}, extra...)
}

// newTestSorter creates a Sorter or fails the test.
func newTestSorter(t testing.TB, opts ...Option) *Sorter {
	t.Helper()
	s, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// randomValues creates n deterministic pseudo-random values in [0, maxValue).
func randomValues(rng *rand.Rand, n int, maxValue uint64) []uint64 {
	values := make([]uint64, n)
	for i := range values {
		values[i] = rng.Uint64N(maxValue)
	}
	return values
}

// clusteredValues draws values from a few narrow ranges, so some buckets
// receive many duplicates and most stay empty.
func clusteredValues(rng *rand.Rand, n int, maxValue uint64) []uint64 {
	centers := randomValues(rng, 3, maxValue)
	values := make([]uint64, n)
	for i := range values {
		c := centers[rng.IntN(len(centers))]
		values[i] = min(c+rng.Uint64N(8), maxValue-1)
	}
	return values
}

func sortedCopy(values []uint64) []uint64 {
	s := slices.Clone(values)
	slices.Sort(s)
	return s
}

// insertAll inserts values one at a time or fails the test.
func insertAll(t testing.TB, s *Sorter, values []uint64) {
	t.Helper()
	for _, v := range values {
		if err := s.Insert(v); err != nil {
			t.Fatalf("Insert(%d): %v", v, err)
		}
	}
}

// drainAll drains s into a slice or fails the test.
func drainAll(t *testing.T, s *Sorter) []uint64 {
	t.Helper()
	out, err := s.Sorted(t.Context())
	if err != nil {
		t.Fatalf("Sorted: %v", err)
	}
	return out
}

// writeTestOutput sorts values into a sorted-output file and returns its path.
func writeTestOutput(t *testing.T, values []uint64, opts ...Option) string {
	t.Helper()
	s := newTestSorter(t, opts...)
	insertAll(t, s, values)
	path := filepath.Join(t.TempDir(), "sorted.rks")
	if err := s.WriteFile(t.Context(), path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}
