package multiset

import (
	"errors"
	"fmt"
	"math/big"
	"slices"
	"testing"

	sorterrors "github.com/tamirms/ranksort/errors"
)

// TestInsertMatchesEnumeration checks, for every small (count, width), that
// inserting a sequence's values in any order yields its index in the
// canonical enumeration.
func TestInsertMatchesEnumeration(t *testing.T) {
	rng := newTestRNG(t)
	for width := 1; width <= 5; width++ {
		for n := 0; n <= 4; n++ {
			w := Window{Min: 0, Max: uint64(width)}
			for idx, seq := range enumerate(n, width) {
				shuffled := slices.Clone(seq)
				rng.Shuffle(len(shuffled), func(i, j int) {
					shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
				})
				s := encode(t, shuffled, w, nil)
				if s.Count != uint64(n) {
					t.Fatalf("w=%d seq=%v: count %d", width, seq, s.Count)
				}
				if s.RankValue().Cmp(big.NewInt(int64(idx))) != 0 {
					t.Fatalf("w=%d seq=%v (inserted as %v): rank %s, want %d", width, seq, shuffled, s.RankValue(), idx)
				}
			}
		}
	}
}

// TestRoundTrip encodes random multisets by insertion and decodes them back.
func TestRoundTrip(t *testing.T) {
	rng := newTestRNG(t)
	testCases := []struct {
		width uint64
		count int
	}{
		{1, 25},
		{2, 40},
		{7, 60},
		{100, 150},
		{100000, 60},
	}

	for _, tc := range testCases {
		for _, withCache := range []bool{false, true} {
			t.Run(fmt.Sprintf("w%d/cache=%v", tc.width, withCache), func(t *testing.T) {
				if tc.width > 1000 && testing.Short() {
					t.Skip("wide window is slow; skipped in -short mode")
				}
				w := Window{Min: 5000, Max: 5000 + tc.width}
				var cache *Cache
				if withCache {
					cache = NewCache(tc.width)
				}
				for range 5 {
					values := randomValues(rng, w, tc.count)
					s := encode(t, values, w, cache)
					if err := Validate(s, w); err != nil {
						t.Fatalf("Validate: %v", err)
					}
					got, err := Decode(s, w, cache)
					if err != nil {
						t.Fatalf("Decode: %v", err)
					}
					if want := sortedCopy(values); !slices.Equal(got, want) {
						t.Fatalf("round trip mismatch:\n got  %v\n want %v", got, want)
					}
				}
			})
		}
	}
}

// TestInsertOrderIndependent checks that the rank only depends on the
// multiset, not on insertion order.
func TestInsertOrderIndependent(t *testing.T) {
	rng := newTestRNG(t)
	w := Window{Min: 0, Max: 1000}
	values := randomValues(rng, w, 80)
	want := encode(t, values, w, nil)
	for range 10 {
		rng.Shuffle(len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })
		got := encode(t, values, w, NewCache(w.Width()))
		if got.RankValue().Cmp(want.RankValue()) != 0 || got.Count != want.Count {
			t.Fatalf("rank depends on insertion order: %s vs %s", got.RankValue(), want.RankValue())
		}
	}
}

func TestInsertBoundaryValues(t *testing.T) {
	w := Window{Min: 10, Max: 15}
	values := []uint64{14, 10, 14, 10, 14}
	s := encode(t, values, w, nil)
	got, err := Decode(s, w, nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := []uint64{10, 10, 14, 14, 14}; !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestInsertOutOfWindow(t *testing.T) {
	w := Window{Min: 10, Max: 20}
	for _, v := range []uint64{9, 20, 1 << 40} {
		if _, err := Insert(State{}, v, w, nil); !errors.Is(err, sorterrors.ErrValueOutOfRange) {
			t.Errorf("Insert(%d) error = %v, want ErrValueOutOfRange", v, err)
		}
	}
}

func TestInsertInvalidWindow(t *testing.T) {
	if _, err := Insert(State{}, 3, Window{Min: 5, Max: 5}, nil); !errors.Is(err, sorterrors.ErrInvalidWindow) {
		t.Fatalf("error = %v, want ErrInvalidWindow", err)
	}
}

func TestInsertDoesNotMutateInput(t *testing.T) {
	w := Window{Min: 0, Max: 50}
	s := encode(t, []uint64{3, 40, 7, 7}, w, nil)
	before := s.Clone()
	if _, err := Insert(s, 20, w, nil); err != nil {
		t.Fatal(err)
	}
	if s.RankValue().Cmp(before.RankValue()) != 0 || s.Count != before.Count {
		t.Fatalf("Insert modified its input state")
	}
}

func TestDecodeEmpty(t *testing.T) {
	got, err := Decode(State{}, Window{Min: 0, Max: 100}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("Decode(empty) = %v", got)
	}
}

// TestUnrankerCorruptedRank decodes ranks at or past the C(count, width)
// bound, which must be reported instead of producing values.
func TestUnrankerCorruptedRank(t *testing.T) {
	testCases := []struct {
		count, width uint64
		extra        int64
	}{
		{1, 2, 0},
		{3, 4, 0},
		{3, 4, 17},
		{20, 100, 0},
		{5, 1, 0},
	}
	for _, tc := range testCases {
		t.Run(fmt.Sprintf("c%d_w%d_plus%d", tc.count, tc.width, tc.extra), func(t *testing.T) {
			w := Window{Min: 0, Max: tc.width}
			rank := binomial(tc.count, tc.width)
			rank.Add(rank, big.NewInt(tc.extra))
			s := State{Rank: rank, Count: tc.count}

			if err := Validate(s, w); !errors.Is(err, sorterrors.ErrCorruptedState) {
				t.Fatalf("Validate error = %v, want ErrCorruptedState", err)
			}
			if _, err := Decode(s, w, nil); !errors.Is(err, sorterrors.ErrCorruptedState) {
				t.Fatalf("Decode error = %v, want ErrCorruptedState", err)
			}
		})
	}
}

func TestUnrankerNegativeRank(t *testing.T) {
	s := State{Rank: big.NewInt(-1), Count: 2}
	if _, err := NewUnranker(s, Window{Min: 0, Max: 4}, nil); !errors.Is(err, sorterrors.ErrCorruptedState) {
		t.Fatalf("error = %v, want ErrCorruptedState", err)
	}
}

// TestUnrankerEarlyStop pulls part of the sequence and checks Remaining
// and that the source state is untouched.
func TestUnrankerEarlyStop(t *testing.T) {
	w := Window{Min: 100, Max: 200}
	s := encode(t, []uint64{150, 101, 199, 150, 120}, w, nil)
	before := s.Clone()

	u, err := NewUnranker(s, w, nil)
	if err != nil {
		t.Fatal(err)
	}
	var got []uint64
	for v := range u.All() {
		got = append(got, v)
		if len(got) == 2 {
			break
		}
	}
	if want := []uint64{101, 120}; !slices.Equal(got, want) {
		t.Fatalf("first values %v, want %v", got, want)
	}
	if u.Remaining() != 3 {
		t.Fatalf("Remaining() = %d, want 3", u.Remaining())
	}
	v, ok := u.Next()
	if !ok || v != 150 {
		t.Fatalf("Next() = %d, %v; want 150, true", v, ok)
	}
	if s.RankValue().Cmp(before.RankValue()) != 0 {
		t.Fatal("unranking modified the source state")
	}
}

// TestEmptyStateRank checks that every way of producing an empty state
// reads back as rank zero.
func TestEmptyStateRank(t *testing.T) {
	w := Window{Min: 0, Max: 8}
	acc, err := NewAccumulator(w)
	if err != nil {
		t.Fatal(err)
	}
	merged, err := Merge(State{}, State{}, w, nil)
	if err != nil {
		t.Fatal(err)
	}
	fullMerged, err := MergeFullWidth(State{}, State{}, NewCache(w.Width()))
	if err != nil {
		t.Fatal(err)
	}

	for name, s := range map[string]State{
		"zero":            {},
		"clone":           State{}.Clone(),
		"accumulator":     acc.State(),
		"merge":           merged,
		"merge_fullwidth": fullMerged,
		"explicit_zero":   {Rank: new(big.Int)},
	} {
		t.Run(name, func(t *testing.T) {
			if !s.IsEmpty() {
				t.Fatalf("count %d", s.Count)
			}
			if s.RankValue().Sign() != 0 {
				t.Fatalf("RankValue() = %s", s.RankValue())
			}
			if s.RankBits() != 0 {
				t.Fatalf("RankBits() = %d", s.RankBits())
			}
			if err := Validate(s, w); err != nil {
				t.Fatalf("Validate: %v", err)
			}
		})
	}
}

// TestRankValueIsCopy checks that RankValue never aliases the state.
func TestRankValueIsCopy(t *testing.T) {
	w := Window{Min: 0, Max: 50}
	s := encode(t, []uint64{4, 9}, w, nil)
	r := s.RankValue()
	r.Add(r, big.NewInt(1000))
	if s.RankValue().Cmp(r) == 0 {
		t.Fatal("RankValue shares storage with the state")
	}
}

func TestValidateEmpty(t *testing.T) {
	if err := Validate(State{}, Window{Min: 0, Max: 3}); err != nil {
		t.Fatalf("Validate(empty) = %v", err)
	}
}
