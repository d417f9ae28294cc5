package upkeep

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"
)

// State is the mutable part of a controller, used to persist it across restarts.
type State struct {
	History        []*uint256.Int
	Counter        uint64
	LastCommitTime time.Time
}

// State returns a copy of the mutable fields.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return State{
		History:        c.history.Values(),
		Counter:        c.counter,
		LastCommitTime: c.lastCommit,
	}
}

// Restore replaces the window, counter and last commit time.
func (c *Controller) Restore(s State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(s.History) != c.history.Len() {
		return fmt.Errorf("%w: got %d, want %d", ErrWindowSize, len(s.History), c.history.Len())
	}
	if s.LastCommitTime.IsZero() {
		return fmt.Errorf("restore: missing last commit time")
	}
	c.history = NewWindow(s.History)
	c.counter = s.Counter
	c.lastCommit = s.LastCommitTime
	return nil
}
