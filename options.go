package ranksort

import (
	"fmt"
	"log/slog"
	"math"

	sorterrors "github.com/tamirms/ranksort/errors"
)

const (
	defaultMaxValue  = 100_000_000
	defaultBuckets   = 1000
	defaultLittleCap = 20

	// maxBuckets and maxLittleCap are bounded by the uint32 header fields.
	maxBuckets   = math.MaxUint32
	maxLittleCap = math.MaxUint32
)

// OutOfRangePolicy selects what Insert does with values >= the configured
// maximum.
type OutOfRangePolicy uint8

const (
	// Reject fails the insertion with ErrValueOutOfRange.
	Reject OutOfRangePolicy = iota
	// Drop skips the value and counts it in Stats.Dropped.
	Drop
)

// String returns the policy name.
func (p OutOfRangePolicy) String() string {
	switch p {
	case Reject:
		return "reject"
	case Drop:
		return "drop"
	default:
		return fmt.Sprintf("OutOfRangePolicy(%d)", uint8(p))
	}
}

// Option is a functional option for configuring a Sorter.
type Option func(*sortConfig)

type sortConfig struct {
	maxValue   uint64
	buckets    uint64
	littleCap  uint64
	workers    int
	outOfRange OutOfRangePolicy
	logger     *slog.Logger
}

func defaultSortConfig() *sortConfig {
	return &sortConfig{
		maxValue:  defaultMaxValue,
		buckets:   defaultBuckets,
		littleCap: defaultLittleCap,
		workers:   1, // Single-threaded; use WithWorkers(n) to parallelize
		logger:    slog.New(slog.DiscardHandler),
	}
}

// WithMaxValue sets the exclusive upper bound of accepted values.
// It must be a multiple of the bucket count.
func WithMaxValue(maxValue uint64) Option {
	return func(c *sortConfig) {
		c.maxValue = maxValue
	}
}

// WithBuckets sets the number of buckets partitioning [0, maxValue).
func WithBuckets(n uint64) Option {
	return func(c *sortConfig) {
		c.buckets = n
	}
}

// WithLittleCap sets how many values a bucket's little state absorbs before
// it is merged into the bucket's main state.
//
// Insertion cost grows linearly with the little state's count, merge cost
// with the bucket width, so small caps favor insertion-heavy workloads.
func WithLittleCap(n uint64) Option {
	return func(c *sortConfig) {
		c.littleCap = n
	}
}

// WithWorkers sets the number of goroutines used by InsertBatch and Drain.
// Values below 1 mean single-threaded. Single Insert calls are always
// single-threaded.
func WithWorkers(n int) Option {
	return func(c *sortConfig) {
		c.workers = n
	}
}

// WithOutOfRange sets the policy for values >= the configured maximum.
// Default is Reject.
func WithOutOfRange(p OutOfRangePolicy) Option {
	return func(c *sortConfig) {
		c.outOfRange = p
	}
}

// WithLogger sets the structured logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(c *sortConfig) {
		if l == nil {
			l = slog.New(slog.DiscardHandler)
		}
		c.logger = l
	}
}

// validate checks the configuration and normalizes the worker count.
func (c *sortConfig) validate() error {
	if c.maxValue == 0 {
		return fmt.Errorf("%w: max value must be at least 1", sorterrors.ErrInvalidConfig)
	}
	if c.buckets == 0 || c.buckets > maxBuckets {
		return fmt.Errorf("%w: bucket count %d not in [1, %d]", sorterrors.ErrInvalidConfig, c.buckets, uint64(maxBuckets))
	}
	if c.buckets > c.maxValue {
		return fmt.Errorf("%w: bucket count %d exceeds max value %d", sorterrors.ErrInvalidConfig, c.buckets, c.maxValue)
	}
	if c.maxValue%c.buckets != 0 {
		return fmt.Errorf("%w: max value %d is not a multiple of bucket count %d", sorterrors.ErrInvalidConfig, c.maxValue, c.buckets)
	}
	if c.littleCap == 0 || c.littleCap > maxLittleCap {
		return fmt.Errorf("%w: little cap %d not in [1, %d]", sorterrors.ErrInvalidConfig, c.littleCap, uint64(maxLittleCap))
	}
	if c.outOfRange != Reject && c.outOfRange != Drop {
		return fmt.Errorf("%w: unknown out-of-range policy %v", sorterrors.ErrInvalidConfig, c.outOfRange)
	}
	if c.workers < 1 {
		c.workers = 1
	}
	if uint64(c.workers) > c.buckets {
		c.workers = int(c.buckets)
	}
	return nil
}
