package ranksort

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sorterrors "github.com/tamirms/ranksort/errors"
	"github.com/tamirms/ranksort/internal/multiset"
)

const (
	// contextCheckInterval is how often to check for context cancellation during InsertBatch.
	contextCheckInterval = 10000
)

// bucket holds the encoded values of one window: a main state and a little
// accumulator that absorbs insertions until it is merged into the main state.
type bucket struct {
	big    multiset.State
	little *multiset.Accumulator // nil until the first insertion
}

func (b *bucket) count() uint64 {
	n := b.big.Count
	if b.little != nil {
		n += b.little.Count()
	}
	return n
}

// tally counts what was inserted. Parallel workers keep their own and fold
// them into the Sorter's when they finish.
type tally struct {
	values      uint64
	merges      uint64
	fingerprint uint64
}

func (t *tally) add(o tally) {
	t.values += o.values
	t.merges += o.merges
	t.fingerprint += o.fingerprint
}

// Sorter sorts bounded non-negative integers by keeping each bucket of the
// value range as the combinatorial rank of its sorted contents.
//
// A Sorter is not safe for concurrent use. WithWorkers parallelizes
// InsertBatch and Drain internally.
//
// Usage:
//
//	s, err := ranksort.New(ranksort.WithMaxValue(1_000_000), ranksort.WithBuckets(100))
//	if err != nil { return err }
//
//	for _, v := range input {
//	    if err := s.Insert(v); err != nil { return err }
//	}
//	return s.Drain(ctx, func(v uint64) error {
//	    fmt.Println(v)
//	    return nil
//	})
type Sorter struct {
	cfg        *sortConfig
	bucketSize uint64
	buckets    []bucket

	// caches[0] serves the calling goroutine; caches[i] serves worker i.
	caches []*multiset.Cache

	tally   tally
	dropped uint64
}

// Stats reports a Sorter's contents.
type Stats struct {
	Values          uint64  // values currently held
	Dropped         uint64  // out-of-range values skipped under Drop since the last drain
	Merges          uint64  // little-state merges since the last drain
	Buckets         int     // configured bucket count
	NonEmptyBuckets int     // buckets holding at least one value
	MaxRankBits     int     // largest single bucket rank
	TotalRankBits   int     // sum of all rank sizes
	BitsPerValue    float64 // TotalRankBits / Values
}

// New creates an empty Sorter.
func New(opts ...Option) (*Sorter, error) {
	cfg := defaultSortConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	bucketSize := cfg.maxValue / cfg.buckets
	s := &Sorter{
		cfg:        cfg,
		bucketSize: bucketSize,
		buckets:    make([]bucket, cfg.buckets),
		caches:     make([]*multiset.Cache, cfg.workers),
	}
	for i := range s.caches {
		s.caches[i] = multiset.NewCache(bucketSize)
	}
	return s, nil
}

// window returns the value window of bucket idx.
func (s *Sorter) window(idx uint64) multiset.Window {
	lo := idx * s.bucketSize
	return multiset.Window{Min: lo, Max: lo + s.bucketSize}
}

// route returns the bucket index of an in-range value.
func (s *Sorter) route(v uint64) uint64 {
	return v / s.bucketSize
}

// Insert adds one value.
// Values >= the configured maximum are handled per WithOutOfRange.
func (s *Sorter) Insert(v uint64) error {
	if v >= s.cfg.maxValue {
		return s.outOfRange(v)
	}
	return s.insertInto(v, s.caches[0], &s.tally)
}

func (s *Sorter) outOfRange(v uint64) error {
	if s.cfg.outOfRange == Drop {
		s.dropped++
		return nil
	}
	return fmt.Errorf("%w: %d >= max value %d", sorterrors.ErrValueOutOfRange, v, s.cfg.maxValue)
}

// insertInto adds an in-range value to its bucket, merging the little state
// once it reaches the cap. t is updated as soon as the value is held.
func (s *Sorter) insertInto(v uint64, cache *multiset.Cache, t *tally) error {
	idx := s.route(v)
	b := &s.buckets[idx]
	if b.little == nil {
		acc, err := multiset.NewAccumulator(s.window(idx))
		if err != nil {
			return err
		}
		b.little = acc
	}

	if err := b.little.Add(v); err != nil {
		return fmt.Errorf("bucket %d: %w", idx, err)
	}
	t.values++
	t.fingerprint += valueFingerprint(v)

	if b.little.Count() < s.cfg.littleCap {
		return nil
	}
	if err := s.flushLittle(idx, b, cache); err != nil {
		return err
	}
	t.merges++
	return nil
}

// flushLittle merges bucket idx's little state into its main state and
// empties the little state. cache must be bound to the bucket width.
func (s *Sorter) flushLittle(idx uint64, b *bucket, cache *multiset.Cache) error {
	if b.little == nil || b.little.Count() == 0 {
		return nil
	}
	merged, err := multiset.MergeFullWidth(b.big, b.little.State(), cache)
	if err != nil {
		return fmt.Errorf("bucket %d: merge: %w", idx, err)
	}
	if s.cfg.logger.Enabled(context.Background(), slog.LevelDebug) {
		s.cfg.logger.Debug("merged little state",
			"bucket", idx,
			"added", b.little.Count(),
			"count", merged.Count,
			"rankBits", merged.RankBits())
	}
	b.big = merged
	b.little.Reset()
	return nil
}

// InsertBatch adds all values in vs.
//
// Under Reject the whole batch is checked first, so a batch holding an
// out-of-range value is rejected without inserting anything. With
// WithWorkers(n > 1) values are sharded by bucket range across n goroutines.
func (s *Sorter) InsertBatch(ctx context.Context, vs []uint64) error {
	if s.cfg.outOfRange == Reject {
		for i, v := range vs {
			if v >= s.cfg.maxValue {
				return fmt.Errorf("%w: %d >= max value %d at batch index %d",
					sorterrors.ErrValueOutOfRange, v, s.cfg.maxValue, i)
			}
		}
	}

	if s.cfg.workers > 1 {
		return s.insertParallel(ctx, vs)
	}

	for i, v := range vs {
		if i%contextCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		if err := s.Insert(v); err != nil {
			return err
		}
	}
	return nil
}

// Drain emits every held value in non-decreasing order, then leaves the
// Sorter empty. The Sorter is also empty after Drain returns an error; values
// not yet emitted are lost.
//
// emit is always called from the calling goroutine. A non-nil error from emit
// stops the drain and is returned.
//
// After a complete drain the emitted count and fingerprint are checked
// against the inserted ones; a mismatch returns ErrCorruptedState.
func (s *Sorter) Drain(ctx context.Context, emit func(uint64) error) error {
	defer s.clear()

	start := time.Now()
	want := s.tally
	var got tally
	counted := func(v uint64) error {
		got.values++
		got.fingerprint += valueFingerprint(v)
		return emit(v)
	}

	var err error
	if s.cfg.workers > 1 {
		err = s.drainParallel(ctx, counted)
	} else {
		err = s.drainSequential(ctx, counted)
	}
	if err != nil {
		return err
	}

	if got.values != want.values || got.fingerprint != want.fingerprint {
		return fmt.Errorf("%w: drained %d values (fingerprint %#x), inserted %d (fingerprint %#x)",
			sorterrors.ErrCorruptedState, got.values, got.fingerprint, want.values, want.fingerprint)
	}

	s.cfg.logger.Info("drain complete",
		"values", got.values,
		"buckets", len(s.buckets),
		"merges", want.merges,
		"workers", s.cfg.workers,
		"elapsed", time.Since(start))
	return nil
}

// drainSequential visits buckets in ascending order on the calling goroutine.
func (s *Sorter) drainSequential(ctx context.Context, emit func(uint64) error) error {
	cache := s.caches[0]
	for idx := range s.buckets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		b := &s.buckets[idx]
		if b.count() == 0 {
			continue
		}
		if err := s.flushLittle(uint64(idx), b, cache); err != nil {
			return err
		}

		u, err := multiset.NewUnranker(b.big, s.window(uint64(idx)), cache)
		if err != nil {
			return fmt.Errorf("bucket %d: %w", idx, err)
		}
		for v, ok := u.Next(); ok; v, ok = u.Next() {
			if err := emit(v); err != nil {
				return err
			}
		}
		if err := u.Err(); err != nil {
			return fmt.Errorf("bucket %d: %w", idx, err)
		}
		// Release the rank as soon as the bucket is emitted.
		*b = bucket{}
	}
	return nil
}

// decodeBucket flushes and fully unranks bucket idx, then empties it.
func (s *Sorter) decodeBucket(idx uint64, cache *multiset.Cache) ([]uint64, error) {
	b := &s.buckets[idx]
	if err := s.flushLittle(idx, b, cache); err != nil {
		return nil, err
	}
	values, err := multiset.Decode(b.big, s.window(idx), cache)
	if err != nil {
		return nil, fmt.Errorf("bucket %d: %w", idx, err)
	}
	*b = bucket{}
	return values, nil
}

// Sorted drains the Sorter into a slice.
func (s *Sorter) Sorted(ctx context.Context) ([]uint64, error) {
	out := make([]uint64, 0, s.Len())
	err := s.Drain(ctx, func(v uint64) error {
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Reset discards all held values, counters, and cached coefficients.
func (s *Sorter) Reset() {
	s.clear()
	for _, c := range s.caches {
		c.Reset()
	}
}

// clear empties every bucket and zeroes the counters, keeping the caches.
func (s *Sorter) clear() {
	clear(s.buckets)
	s.tally = tally{}
	s.dropped = 0
}

// Len returns the number of values currently held.
func (s *Sorter) Len() uint64 {
	return s.tally.values
}

// MaxValue returns the exclusive upper bound of accepted values.
func (s *Sorter) MaxValue() uint64 {
	return s.cfg.maxValue
}

// Stats returns statistics for the held values.
func (s *Sorter) Stats() Stats {
	st := Stats{
		Values:  s.tally.values,
		Dropped: s.dropped,
		Merges:  s.tally.merges,
		Buckets: len(s.buckets),
	}
	for i := range s.buckets {
		b := &s.buckets[i]
		if b.count() == 0 {
			continue
		}
		st.NonEmptyBuckets++
		bits := b.big.RankBits()
		if b.little != nil {
			bits += b.little.State().RankBits()
		}
		st.MaxRankBits = max(st.MaxRankBits, bits)
		st.TotalRankBits += bits
	}
	if st.Values > 0 {
		st.BitsPerValue = float64(st.TotalRankBits) / float64(st.Values)
	}
	return st
}
