package multiset

import (
	"fmt"
	"math/big"

	sorterrors "github.com/tamirms/ranksort/errors"
)

// Accumulator builds a State over a fixed window one value at a time.
//
// It carries the separator C(Count-1, Width) from one insertion to the next:
// after an insertion the next separator is a single AdvanceCount away, so no
// coefficient lookup is needed on the insertion path.
type Accumulator struct {
	window Window
	state  State
	sep    *big.Int // C(state.Count-1, width); nil while empty
	sc     scratch
}

// NewAccumulator returns an empty accumulator over w.
func NewAccumulator(w Window) (*Accumulator, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}
	return &Accumulator{window: w}, nil
}

// Add inserts value into the accumulated state.
func (a *Accumulator) Add(value uint64) error {
	if !a.window.Contains(value) {
		return fmt.Errorf("%w: %d not in [%d, %d)", sorterrors.ErrValueOutOfRange, value, a.window.Min, a.window.Max)
	}

	var sep, nextSep *big.Int
	if a.state.Count == 0 {
		nextSep = big.NewInt(1) // C(0, width)
	} else {
		sep = new(big.Int).Set(a.sep)
		nextSep = new(big.Int).Set(a.sep)
		if err := a.sc.advanceCount(nextSep, a.state.Count-1, a.window.Width()); err != nil {
			return err
		}
	}

	next, err := insert(a.state, value, a.window, sep, &a.sc)
	if err != nil {
		return err
	}
	a.state, a.sep = next, nextSep
	return nil
}

// State returns the accumulated state. The returned rank must not be
// modified.
func (a *Accumulator) State() State {
	return a.state
}

// Count returns the number of accumulated values.
func (a *Accumulator) Count() uint64 {
	return a.state.Count
}

// Window returns the accumulator's window.
func (a *Accumulator) Window() Window {
	return a.window
}

// Reset empties the accumulator, keeping its window.
func (a *Accumulator) Reset() {
	a.state = State{}
	a.sep = nil
}
