package multiset

import (
	"fmt"
	"math/big"

	sorterrors "github.com/tamirms/ranksort/errors"
)

// tableMax is the largest count kept in the small-count table. Little
// buckets never grow past this size with the default cap, so their
// separators are always table hits.
const tableMax = 20

// Cache answers C(n, width) for a fixed width with amortized O(1) big-integer
// operations per call, instead of the O(n) of Coefficient.
//
// It keeps an anchor, the largest coefficient computed so far, which only
// ever advances, plus a table of C(i, width) for i in [0, tableMax]. A query
// is served from whichever known point is nearest, walking the rest of the
// way with AdvanceCount or RetreatCount.
//
// A Cache is NOT safe for concurrent use. Parallel code creates one per
// goroutine.
type Cache struct {
	width uint64

	anchor      *big.Int // nil until the first query
	anchorCount uint64

	table []*big.Int // built on first use, len tableMax+1

	sc scratch
}

// NewCache returns an empty cache for coefficients of the given width.
func NewCache(width uint64) *Cache {
	return &Cache{width: width}
}

// Width returns the width the cache is bound to.
func (c *Cache) Width() uint64 {
	return c.width
}

// Reset forgets the anchor and the small-count table.
func (c *Cache) Reset() {
	c.anchor = nil
	c.anchorCount = 0
	c.table = nil
}

// Coefficient returns C(n, c.Width()). The result is owned by the caller.
func (c *Cache) Coefficient(n uint64) (*big.Int, error) {
	if c.width == 0 {
		return nil, fmt.Errorf("%w: cache over zero values", sorterrors.ErrInvalidWindow)
	}

	if c.anchor == nil {
		v, err := Coefficient(n, c.width)
		if err != nil {
			return nil, err
		}
		c.anchor, c.anchorCount = v, n
		return new(big.Int).Set(v), nil
	}

	if n >= c.anchorCount {
		for c.anchorCount < n {
			if err := c.sc.advanceCount(c.anchor, c.anchorCount, c.width); err != nil {
				c.anchor = nil
				return nil, err
			}
			c.anchorCount++
		}
		return new(big.Int).Set(c.anchor), nil
	}

	if err := c.ensureTable(); err != nil {
		return nil, err
	}
	if n <= tableMax {
		return new(big.Int).Set(c.table[n]), nil
	}

	// tableMax < n < anchorCount: walk from the nearer end. This is a
	// cost choice only; either direction yields the same coefficient.
	out := new(big.Int)
	if c.anchorCount-n <= n-tableMax {
		out.Set(c.anchor)
		for k := c.anchorCount; k > n; k-- {
			if err := c.sc.retreatCount(out, k, c.width); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	out.Set(c.table[tableMax])
	for k := uint64(tableMax); k < n; k++ {
		if err := c.sc.advanceCount(out, k, c.width); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ensureTable builds the small-count table incrementally from C(0, w) = 1.
func (c *Cache) ensureTable() error {
	if c.table != nil {
		return nil
	}
	table := make([]*big.Int, tableMax+1)
	v := big.NewInt(1)
	for i := range table {
		table[i] = new(big.Int).Set(v)
		if err := c.sc.advanceCount(v, uint64(i), c.width); err != nil {
			return err
		}
	}
	c.table = table
	return nil
}
