// Bench is a benchmarking tool for measuring ranksort insertion and drain
// throughput, encoded size, and memory usage.
//
// Usage:
//
//	go run ./cmd/bench -values 1000000 -workers 4
//
// Flags:
//
//	-values    Number of values to sort (default: 1,000,000)
//	-max       Exclusive upper bound of the values (default: 100,000,000)
//	-buckets   Number of buckets (default: 1000)
//	-cap       Little-state cap before a merge (default: 20)
//	-workers   Number of parallel workers (default: 1)
//	-batch     Insert through InsertBatch instead of Insert (default: false)
//	-output    Drain into a sorted-output file and verify it (default: false)
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"path/filepath"
	"runtime"
	"runtime/metrics"
	"runtime/pprof"
	"slices"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/tamirms/ranksort")

// getMaxRSS returns the maximum resident set size in bytes.
// Uses getrusage(RUSAGE_SELF) which tracks peak RSS since process start.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// On macOS, MaxRss is in bytes. On Linux, it's in kilobytes.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024 // Convert KB to bytes on Linux
	}
	return maxRSS
}

// generateValues returns n values in [0, maxValue): murmur3 of a counter,
// mapped to the range by the high word of hash*maxValue, so the same seed
// always yields the same input.
func generateValues(n int, maxValue uint64, seed uint32) []uint64 {
	values := make([]uint64, n)
	var buf [8]byte
	for i := range values {
		binary.LittleEndian.PutUint64(buf[:], uint64(i))
		hi, _ := bits.Mul64(murmur3.Sum64WithSeed(buf[:], seed), maxValue)
		values[i] = hi
	}
	return values
}

// memorySampler tracks peak heap and RSS growth over a baseline.
type memorySampler struct {
	baselineAlloc uint64
	baselineRSS   uint64
	peakAlloc     atomic.Uint64
	peakRSS       atomic.Uint64
	done          chan struct{}
}

// startMemorySampler samples every 10ms.
// Uses runtime/metrics instead of ReadMemStats to avoid stop-the-world pauses
// that distort CPU profiles.
func startMemorySampler() *memorySampler {
	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	var baseline runtime.MemStats
	runtime.ReadMemStats(&baseline)

	m := &memorySampler{
		baselineAlloc: baseline.Alloc,
		baselineRSS:   getMaxRSS(),
		done:          make(chan struct{}),
	}
	m.peakAlloc.Store(m.baselineAlloc)
	m.peakRSS.Store(m.baselineRSS)

	go func() {
		samples := []metrics.Sample{
			{Name: "/memory/classes/heap/objects:bytes"},
		}
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-m.done:
				return
			case <-ticker.C:
				metrics.Read(samples)
				storeMax(&m.peakAlloc, samples[0].Value.Uint64())
				storeMax(&m.peakRSS, getMaxRSS())
			}
		}
	}()
	return m
}

func storeMax(peak *atomic.Uint64, v uint64) {
	for {
		old := peak.Load()
		if v <= old || peak.CompareAndSwap(old, v) {
			return
		}
	}
}

// stop ends sampling and returns peak heap and RSS growth in bytes.
func (m *memorySampler) stop() (heap, rss uint64) {
	close(m.done)
	var final runtime.MemStats
	runtime.ReadMemStats(&final)
	storeMax(&m.peakAlloc, final.Alloc)
	storeMax(&m.peakRSS, getMaxRSS())
	return m.peakAlloc.Load() - m.baselineAlloc, m.peakRSS.Load() - m.baselineRSS
}

func main() {
	valuesFlag := flag.Int("values", 1_000_000, "number of values")
	maxFlag := flag.Uint64("max", 100_000_000, "exclusive upper bound of the values")
	bucketsFlag := flag.Uint64("buckets", 1000, "number of buckets")
	capFlag := flag.Uint64("cap", 20, "little-state cap before a merge")
	workersFlag := flag.Int("workers", 1, "number of parallel workers")
	batchFlag := flag.Bool("batch", false, "insert through InsertBatch")
	outputFlag := flag.Bool("output", false, "drain into a sorted-output file and verify it")
	seedFlag := flag.Uint("seed", 0x1234, "input generator seed")
	verboseFlag := flag.Bool("v", false, "debug logging")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file (insert and drain phases)")
	memprofile := flag.String("memprofile", "", "write memory profile to file (after insertion)")
	flag.Parse()

	level := slog.LevelInfo
	if *verboseFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger, *valuesFlag, *maxFlag, *bucketsFlag, *capFlag, *workersFlag,
		*batchFlag, *outputFlag, uint32(*seedFlag), *cpuprofile, *memprofile); err != nil {
		logger.Error("bench failed", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, numValues int, maxValue, buckets, littleCap uint64, workers int,
	batch, output bool, seed uint32, cpuprofile, memprofile string) error {
	ctx := context.Background()

	fmt.Println("Generating values...")
	genStart := time.Now()
	values := generateValues(numValues, maxValue, seed)
	genDuration := time.Since(genStart)

	fmt.Println("Sorting reference copy...")
	reference := slices.Clone(values)
	refStart := time.Now()
	slices.Sort(reference)
	refDuration := time.Since(refStart)

	sorter, err := ranksort.New(
		ranksort.WithMaxValue(maxValue),
		ranksort.WithBuckets(buckets),
		ranksort.WithLittleCap(littleCap),
		ranksort.WithWorkers(workers),
		ranksort.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("new sorter: %w", err)
	}

	mem := startMemorySampler()

	if cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		defer func() { _ = f.Close() }()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
	}

	fmt.Println("Inserting values...")
	insertStart := time.Now()
	if batch {
		err = sorter.InsertBatch(ctx, values)
	} else {
		for _, v := range values {
			if err = sorter.Insert(v); err != nil {
				break
			}
		}
	}
	insertDuration := time.Since(insertStart)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	stats := sorter.Stats()

	if memprofile != "" {
		f, err := os.Create(memprofile)
		if err != nil {
			fmt.Printf("could not create memory profile: %v\n", err)
		} else {
			runtime.GC() // Get up-to-date statistics
			if err := pprof.WriteHeapProfile(f); err != nil {
				fmt.Printf("could not write memory profile: %v\n", err)
			}
			_ = f.Close()
		}
	}

	fmt.Println("Draining...")
	var sorted []uint64
	drainStart := time.Now()
	if output {
		sorted, err = drainThroughFile(ctx, sorter)
	} else {
		sorted, err = sorter.Sorted(ctx)
	}
	drainDuration := time.Since(drainStart)

	if cpuprofile != "" {
		pprof.StopCPUProfile()
	}
	peakHeapMem, peakRSSMem := mem.stop()

	if err != nil {
		return fmt.Errorf("drain: %w", err)
	}
	if !slices.Equal(sorted, reference) {
		return fmt.Errorf("output differs from reference sort")
	}

	rawBits := float64(64)
	totalDuration := insertDuration + drainDuration

	fmt.Printf("\n")
	fmt.Printf("╔═════════════════════╦════════════════╦══════════════════╗\n")
	fmt.Printf("║ Buckets: %-11d║ Workers: %-5d ║ Cap: %-11d ║\n", buckets, workers, littleCap)
	fmt.Printf("╠═════════════════════╬════════════════╬══════════════════╣\n")
	fmt.Printf("║ Metric              ║ Value          ║ Reference        ║\n")
	fmt.Printf("╠═════════════════════╬════════════════╬══════════════════╣\n")
	fmt.Printf("║ Encoded size        ║ %6.3f bits/val║ %6.3f bits/val  ║\n", stats.BitsPerValue, rawBits)
	fmt.Printf("║ Largest bucket rank ║ %8d bits  ║ -                ║\n", stats.MaxRankBits)
	fmt.Printf("║ Little merges       ║ %10d     ║ -                ║\n", stats.Merges)
	fmt.Printf("║ Insert time         ║ %6.2f sec     ║ -                ║\n", insertDuration.Seconds())
	fmt.Printf("║ Insert throughput   ║ %6.2f M/sec   ║ -                ║\n", float64(numValues)/insertDuration.Seconds()/1_000_000)
	fmt.Printf("║ Drain time          ║ %6.2f sec     ║ -                ║\n", drainDuration.Seconds())
	fmt.Printf("║ Total (insert+drain)║ %6.2f sec     ║ %6.2f sec       ║\n", totalDuration.Seconds(), refDuration.Seconds())
	fmt.Printf("║ Generate time       ║ %6.2f sec     ║ -                ║\n", genDuration.Seconds())
	fmt.Printf("║ Peak heap memory    ║ %6.1f MB      ║ %6.1f MB        ║\n", float64(peakHeapMem)/1_000_000, float64(numValues*8)/1_000_000)
	fmt.Printf("║ Peak RSS memory     ║ %6.1f MB      ║ -                ║\n", float64(peakRSSMem)/1_000_000)
	fmt.Printf("╚═════════════════════╩════════════════╩══════════════════╝\n")
	return nil
}

// drainThroughFile writes the sorted output to a temporary file, verifies it,
// and reads it back.
func drainThroughFile(ctx context.Context, sorter *ranksort.Sorter) ([]uint64, error) {
	tmpDir, err := os.MkdirTemp("", "bench-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()
	path := filepath.Join(tmpDir, "sorted.rks")

	if err := sorter.WriteFile(ctx, path); err != nil {
		return nil, err
	}
	out, err := ranksort.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = out.Close() }()
	if err := out.Verify(); err != nil {
		return nil, err
	}
	return slices.AppendSeq(make([]uint64, 0, out.Len()), out.All()), nil
}
