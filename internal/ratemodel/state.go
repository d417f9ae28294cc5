package ratemodel

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// State is the mutable part of a rate model, used to persist it across restarts.
type State struct {
	VariableRateSlope1 *uint256.Int
	MPlus              uint64
	MMinus             uint64
	Wards              []common.Address
	ActiveUpdater      common.Address
}

// State returns a copy of the mutable fields.
func (m *RateModel) State() State {
	wards := m.Wards()
	m.mu.RLock()
	defer m.mu.RUnlock()
	return State{
		VariableRateSlope1: m.params.VariableRateSlope1.Clone(),
		MPlus:              m.params.MPlus,
		MMinus:             m.params.MMinus,
		Wards:              wards,
		ActiveUpdater:      m.activeUpdater,
	}
}

// Restore replaces the mutable fields with a previously saved State. No
// events are emitted.
func (m *RateModel) Restore(s State) error {
	if s.VariableRateSlope1 == nil {
		return fmt.Errorf("%w: missing slope1", ErrInvalidParams)
	}
	if s.MPlus < MinMPlus {
		return fmt.Errorf("%w: mPlus %d", ErrRange, s.MPlus)
	}
	if s.MMinus > MaxMMinus {
		return fmt.Errorf("%w: mMinus %d", ErrRange, s.MMinus)
	}
	wards := make(map[common.Address]bool, len(s.Wards))
	for _, w := range s.Wards {
		wards[w] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.params.VariableRateSlope1 = s.VariableRateSlope1.Clone()
	m.params.MPlus = s.MPlus
	m.params.MMinus = s.MMinus
	m.wards = wards
	m.activeUpdater = s.ActiveUpdater
	return nil
}
