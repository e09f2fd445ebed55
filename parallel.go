package ranksort

import (
	"context"

	"github.com/tamirms/ranksort/internal/multiset"
	"golang.org/x/sync/errgroup"
)

const (
	// workChanBufferMultiplier is the multiplier for work channel buffer size
	workChanBufferMultiplier = 2
)

// drainWork names one non-empty bucket and its position in the output order.
type drainWork struct {
	seq    int
	bucket uint64
}

// drainResult holds the decoded values of one bucket.
type drainResult struct {
	seq    int
	values []uint64
}

// shardOf returns the worker owning bucket idx. Each worker owns a contiguous
// bucket range, so no bucket is touched by two goroutines.
func (s *Sorter) shardOf(idx uint64) int {
	return int(idx * uint64(s.cfg.workers) / uint64(len(s.buckets)))
}

// insertParallel shards vs by bucket range and inserts each shard on its own
// goroutine with its own coefficient cache. Out-of-range values reaching
// this point are dropped (InsertBatch has already rejected them under Reject).
//
// Worker tallies are folded in even when a worker fails, so Len stays equal
// to the number of values actually held.
func (s *Sorter) insertParallel(ctx context.Context, vs []uint64) error {
	workers := s.cfg.workers
	shards := make([][]uint64, workers)
	for _, v := range vs {
		if v >= s.cfg.maxValue {
			s.dropped++
			continue
		}
		w := s.shardOf(s.route(v))
		shards[w] = append(shards[w], v)
	}

	tallies := make([]tally, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := range workers {
		if len(shards[w]) == 0 {
			continue
		}
		g.Go(func() error {
			cache := s.caches[w]
			for i, v := range shards[w] {
				if i%contextCheckInterval == 0 {
					select {
					case <-gctx.Done():
						return gctx.Err()
					default:
					}
				}
				if err := s.insertInto(v, cache, &tallies[w]); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err := g.Wait()
	for _, t := range tallies {
		s.tally.add(t)
	}
	return err
}

// drainParallel decodes non-empty buckets on a worker pool and emits them in
// bucket order from the calling goroutine.
//
// Pipeline:
//   - a dispatcher sends (seq, bucket) pairs in ascending bucket order
//   - workers decode whole buckets, each with its own cache
//   - the caller parks out-of-order results in a pending map and emits all
//     consecutive ready results
//
// On an emit error the pipeline is cancelled and the caller keeps receiving
// until the result channel is closed, so no worker stays blocked.
func (s *Sorter) drainParallel(ctx context.Context, emit func(uint64) error) error {
	var order []uint64
	for i := range s.buckets {
		if s.buckets[i].count() > 0 {
			order = append(order, uint64(i))
		}
	}
	if len(order) == 0 {
		return ctx.Err()
	}

	workers := min(s.cfg.workers, len(order))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	workChan := make(chan drainWork, workers*workChanBufferMultiplier)
	resultChan := make(chan drainResult, workers*workChanBufferMultiplier)

	g.Go(func() error {
		defer close(workChan)
		for seq, idx := range order {
			select {
			case workChan <- drainWork{seq: seq, bucket: idx}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for w := range workers {
		g.Go(func() error {
			return s.runDrainWorker(gctx, s.caches[w], workChan, resultChan)
		})
	}

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- g.Wait()
		close(resultChan)
	}()

	var emitErr error
	pending := make(map[int][]uint64)
	next := 0
	for r := range resultChan {
		if emitErr != nil {
			continue // Keep receiving so workers can exit
		}
		pending[r.seq] = r.values

		// Emit all consecutive ready buckets IN ORDER
		for values, ok := pending[next]; ok && emitErr == nil; values, ok = pending[next] {
			delete(pending, next)
			if err := ctx.Err(); err != nil {
				emitErr = err
				break
			}
			for _, v := range values {
				if err := emit(v); err != nil {
					emitErr = err
					cancel()
					break
				}
			}
			next++
		}
	}

	waitErr := <-waitDone
	if emitErr != nil {
		return emitErr
	}
	return waitErr
}

// runDrainWorker decodes buckets until workChan is closed.
func (s *Sorter) runDrainWorker(ctx context.Context, cache *multiset.Cache, workChan <-chan drainWork, resultChan chan<- drainResult) error {
	for work := range workChan {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		values, err := s.decodeBucket(work.bucket, cache)
		if err != nil {
			return err
		}

		select {
		case resultChan <- drainResult{seq: work.seq, values: values}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
