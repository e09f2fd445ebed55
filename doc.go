// Package ranksort implements a memory-compact bucketed sorter for bounded
// unsigned integers.
//
// Values in [0, MaxValue) are routed to equal-width buckets. Each bucket
// stores its multiset of values as a single combinatorial rank: an integer
// below the multiset coefficient C(count, width), which takes close to the
// information-theoretic minimum number of bits. New values collect in a small
// per-bucket accumulator and are merged into the bucket's rank whenever the
// accumulator reaches the little cap.
//
// # Basic Usage
//
// Sorting in memory:
//
//	s, err := ranksort.New(ranksort.WithMaxValue(1 << 30), ranksort.WithBuckets(1 << 14))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, v := range values {
//	    if err := s.Insert(v); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//	err = s.Drain(ctx, func(v uint64) error {
//	    fmt.Println(v)
//	    return nil
//	})
//
// Draining to a file and reading it back:
//
//	if err := s.WriteFile(ctx, "sorted.rks"); err != nil {
//	    log.Fatal(err)
//	}
//	out, err := ranksort.Open("sorted.rks")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer out.Close()
//	for v := range out.All() {
//	    fmt.Println(v)
//	}
//
// # Package Structure
//
// The implementation is organized as follows:
//
//   - Public API: sorter.go (New, Insert, InsertBatch, Drain, Sorted, Stats), output.go (Open, At, All, Verify)
//   - Configuration: options.go (Option, With* functions, OutOfRangePolicy)
//   - Parallelism: parallel.go (sharded batch insert, ordered parallel drain)
//   - Serialization: header.go (header, footer), output_writer.go (WriteFile)
//   - Integrity: fingerprint.go (order-independent value checksum)
//   - Rank arithmetic: internal/multiset/ (coefficients, cache, codec, accumulator, merge)
//   - Value packing: internal/encoding/ (fixed-width little-endian values)
//   - Platform: file_*.go (block reservation, write prefault, readahead hints)
package ranksort
