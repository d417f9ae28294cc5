package state

import (
	"fmt"
	"log"
	"sync"
	"time"

	"RateKeeper/internal/ratemodel"
	"RateKeeper/internal/upkeep"
)

// Store persists a rate model and its controller to a JSON file.
type Store struct {
	mu       sync.Mutex
	filePath string
	rates    *ratemodel.RateModel
	ctrl     *upkeep.Controller
	now      func() time.Time
}

// NewStore binds a store to a controller and the rate model it drives.
func NewStore(filePath string, ctrl *upkeep.Controller) *Store {
	return &Store{
		filePath: filePath,
		rates:    ctrl.RateModel(),
		ctrl:     ctrl,
		now:      time.Now,
	}
}

// Restore loads the state file, if any, into the rate model and controller.
// It reports whether a saved state was applied.
func (s *Store) Restore() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := LoadFile(s.filePath)
	if err != nil {
		return false, fmt.Errorf("load state: %w", err)
	}
	if f == nil {
		return false, nil
	}
	rs, us, err := f.Decode()
	if err != nil {
		return false, fmt.Errorf("decode state: %w", err)
	}
	if err := s.rates.Restore(rs); err != nil {
		return false, fmt.Errorf("restore rate model: %w", err)
	}
	if err := s.ctrl.Restore(us); err != nil {
		return false, fmt.Errorf("restore controller: %w", err)
	}
	log.Printf("[INFO] state restored from %s: counter=%d slope1=%s", s.filePath, us.Counter, rs.VariableRateSlope1.Dec())
	return true, nil
}

// Save writes the current state.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := Encode(s.rates.State(), s.ctrl.State(), s.now())
	if err := SaveFile(s.filePath, f); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.filePath }
