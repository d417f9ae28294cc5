package ratemodel

import (
	"fmt"
	"log"
	"sync"
	"time"

	"RateKeeper/internal/calculator"
	"RateKeeper/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	// MinMPlus is the lowest accepted mPlus (100%).
	MinMPlus = calculator.PercentageFactor
	// MaxMMinus is the highest accepted mMinus (100%).
	MaxMMinus = calculator.PercentageFactor
)

// Listener receives rate model events after the mutation is applied.
type Listener func(model.RateEvent)

// RateModel is the borrow-rate curve of one reserve. Only variableRateSlope1,
// mPlus and mMinus change after construction.
type RateModel struct {
	mu     sync.RWMutex
	params model.RateParams

	configurator  common.Address
	wards         map[common.Address]bool
	activeUpdater common.Address

	listeners []Listener
	now       func() time.Time
}

// Option customises a RateModel.
type Option func(*RateModel)

// WithClock overrides the clock used to timestamp events.
func WithClock(now func() time.Time) Option {
	return func(m *RateModel) { m.now = now }
}

// New creates a rate model owned by configurator. The configurator starts as
// the only ward and as the active updater.
func New(params model.RateParams, configurator common.Address, opts ...Option) (*RateModel, error) {
	p := params.Clone()
	if err := validate(p); err != nil {
		return nil, err
	}
	m := &RateModel{
		params:        p,
		configurator:  configurator,
		wards:         map[common.Address]bool{configurator: true},
		activeUpdater: configurator,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func validate(p model.RateParams) error {
	if p.OptimalUsageRatio.Gt(calculator.Ray) {
		return fmt.Errorf("%w: optimal usage ratio above 100%%", ErrInvalidParams)
	}
	if p.Epsilon.Gt(p.OptimalUsageRatio) {
		return fmt.Errorf("%w: epsilon larger than optimal usage ratio", ErrInvalidParams)
	}
	if p.OptimalStableToTotalDebtRatio.Gt(calculator.Ray) {
		return fmt.Errorf("%w: optimal stable to total debt ratio above 100%%", ErrInvalidParams)
	}
	if p.MPlus < MinMPlus {
		return fmt.Errorf("%w: mPlus %d", ErrRange, p.MPlus)
	}
	if p.MMinus > MaxMMinus {
		return fmt.Errorf("%w: mMinus %d", ErrRange, p.MMinus)
	}
	return nil
}

// Subscribe registers l for all future events.
func (m *RateModel) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

func (m *RateModel) emit(evt model.RateEvent) {
	m.mu.RLock()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.RUnlock()
	for _, l := range listeners {
		l(evt)
	}
}

// SetVariableRateSlope1 overwrites slope1. Only wards may call it.
func (m *RateModel) SetVariableRateSlope1(caller common.Address, value *uint256.Int) error {
	m.mu.Lock()
	if !m.wards[caller] {
		m.mu.Unlock()
		return ErrUnauthorized
	}
	if value == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: nil slope1", ErrInvalidParams)
	}
	old := m.params.VariableRateSlope1
	m.params.VariableRateSlope1 = value.Clone()
	evt := model.RateEvent{Kind: model.EventSlope1Updated, Caller: caller, Old: old, New: value.Clone(), At: m.now()}
	m.mu.Unlock()

	log.Printf("[INFO] variableRateSlope1 %s -> %s", old.Dec(), value.Dec())
	m.emit(evt)
	return nil
}

// SetSlope1MultiplierBounds updates mPlus and mMinus together. Neither field
// changes unless both are valid.
func (m *RateModel) SetSlope1MultiplierBounds(caller common.Address, mPlus, mMinus uint64) error {
	if err := m.checkConfigurator(caller); err != nil {
		return err
	}
	if mPlus < MinMPlus {
		return fmt.Errorf("%w: mPlus %d below %d", ErrRange, mPlus, MinMPlus)
	}
	if mMinus > MaxMMinus {
		return fmt.Errorf("%w: mMinus %d above %d", ErrRange, mMinus, MaxMMinus)
	}

	m.mu.Lock()
	oldPlus, oldMinus := m.params.MPlus, m.params.MMinus
	m.params.MPlus, m.params.MMinus = mPlus, mMinus
	at := m.now()
	m.mu.Unlock()

	m.emit(multiplierEvent(model.EventMPlusUpdated, caller, oldPlus, mPlus, at))
	m.emit(multiplierEvent(model.EventMMinusUpdated, caller, oldMinus, mMinus, at))
	return nil
}

// SetMPlus updates the upward multiplier.
func (m *RateModel) SetMPlus(caller common.Address, mPlus uint64) error {
	if err := m.checkConfigurator(caller); err != nil {
		return err
	}
	if mPlus < MinMPlus {
		return fmt.Errorf("%w: mPlus %d below %d", ErrRange, mPlus, MinMPlus)
	}
	m.mu.Lock()
	old := m.params.MPlus
	m.params.MPlus = mPlus
	at := m.now()
	m.mu.Unlock()

	m.emit(multiplierEvent(model.EventMPlusUpdated, caller, old, mPlus, at))
	return nil
}

// SetMMinus updates the downward multiplier.
func (m *RateModel) SetMMinus(caller common.Address, mMinus uint64) error {
	if err := m.checkConfigurator(caller); err != nil {
		return err
	}
	if mMinus > MaxMMinus {
		return fmt.Errorf("%w: mMinus %d above %d", ErrRange, mMinus, MaxMMinus)
	}
	m.mu.Lock()
	old := m.params.MMinus
	m.params.MMinus = mMinus
	at := m.now()
	m.mu.Unlock()

	m.emit(multiplierEvent(model.EventMMinusUpdated, caller, old, mMinus, at))
	return nil
}

func multiplierEvent(kind model.EventKind, caller common.Address, old, next uint64, at time.Time) model.RateEvent {
	return model.RateEvent{
		Kind:   kind,
		Caller: caller,
		Old:    uint256.NewInt(old),
		New:    uint256.NewInt(next),
		At:     at,
	}
}

func (m *RateModel) checkConfigurator(caller common.Address) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if caller != m.configurator {
		return ErrNotConfigurator
	}
	return nil
}

// Params returns a copy of the current curve parameters.
func (m *RateModel) Params() model.RateParams {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params.Clone()
}

// OptimalUsageRatio returns the utilization the curve is kinked at.
func (m *RateModel) OptimalUsageRatio() *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params.OptimalUsageRatio.Clone()
}

// BaseVariableBorrowRate returns the variable rate at zero utilization.
func (m *RateModel) BaseVariableBorrowRate() *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params.BaseVariableBorrowRate.Clone()
}

// VariableRateSlope1 returns the current adjustable slope.
func (m *RateModel) VariableRateSlope1() *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params.VariableRateSlope1.Clone()
}

// VariableRateSlope2 returns the slope above the optimal ratio.
func (m *RateModel) VariableRateSlope2() *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params.VariableRateSlope2.Clone()
}

// StableRateSlope1 returns the stable slope below the optimal ratio.
func (m *RateModel) StableRateSlope1() *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params.StableRateSlope1.Clone()
}

// StableRateSlope2 returns the stable slope above the optimal ratio.
func (m *RateModel) StableRateSlope2() *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params.StableRateSlope2.Clone()
}

// BaseStableRateOffset returns the stable premium over the base variable rate.
func (m *RateModel) BaseStableRateOffset() *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params.BaseStableRateOffset.Clone()
}

// StableRateExcessOffset returns the extra stable premium past the optimal stable share.
func (m *RateModel) StableRateExcessOffset() *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params.StableRateExcessOffset.Clone()
}

// OptimalStableToTotalDebtRatio returns the stable debt share the excess offset starts at.
func (m *RateModel) OptimalStableToTotalDebtRatio() *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params.OptimalStableToTotalDebtRatio.Clone()
}

// Epsilon returns the dead band below the optimal ratio.
func (m *RateModel) Epsilon() *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params.Epsilon.Clone()
}

// MPlus returns the upward multiplier in basis points.
func (m *RateModel) MPlus() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params.MPlus
}

// MMinus returns the downward multiplier in basis points.
func (m *RateModel) MMinus() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params.MMinus
}

// Configurator returns the address allowed to change configuration.
func (m *RateModel) Configurator() common.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.configurator
}
