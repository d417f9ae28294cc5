package upkeep

import (
	"fmt"

	"RateKeeper/internal/calculator"

	"github.com/holiman/uint256"
)

// Window is a fixed-size ring of utilization samples. Slot i is written by
// every commit whose counter is congruent to i modulo the window size.
type Window struct {
	samples []*uint256.Int
}

// NewWindow copies seed into a new window. Every slot is valid from the start.
func NewWindow(seed []*uint256.Int) *Window {
	samples := make([]*uint256.Int, len(seed))
	for i, s := range seed {
		if s == nil {
			samples[i] = new(uint256.Int)
			continue
		}
		samples[i] = s.Clone()
	}
	return &Window{samples: samples}
}

// Len returns the window size.
func (w *Window) Len() int { return len(w.samples) }

// At returns a copy of slot i.
func (w *Window) At(i int) (*uint256.Int, error) {
	if i < 0 || i >= len(w.samples) {
		return nil, fmt.Errorf("history index %d out of range [0,%d)", i, len(w.samples))
	}
	return w.samples[i].Clone(), nil
}

// Slot maps a sample counter to its position.
func (w *Window) Slot(counter uint64) int {
	return int(counter % uint64(len(w.samples)))
}

// Put overwrites the slot for counter and returns it.
func (w *Window) Put(counter uint64, v *uint256.Int) int {
	slot := w.Slot(counter)
	w.samples[slot] = v.Clone()
	return slot
}

// Average is the floored mean of all slots.
func (w *Window) Average() (*uint256.Int, error) {
	return calculator.WindowAverage(w.samples)
}

// Values returns a copy of the samples in slot order.
func (w *Window) Values() []*uint256.Int {
	out := make([]*uint256.Int, len(w.samples))
	for i, s := range w.samples {
		out[i] = s.Clone()
	}
	return out
}
