package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EventKind names a rate model state change.
type EventKind string

const (
	EventSlope1Updated  EventKind = "SLOPE1_UPDATED"
	EventMPlusUpdated   EventKind = "MPLUS_UPDATED"
	EventMMinusUpdated  EventKind = "MMINUS_UPDATED"
	EventWardRelied     EventKind = "WARD_RELIED"
	EventWardDenied     EventKind = "WARD_DENIED"
	EventUpdaterGranted EventKind = "UPDATER_GRANTED"
)

// RateEvent is emitted by the rate model after every successful mutation.
// Old/New carry ray values for slope changes, basis points for multiplier
// changes and are nil for ward changes.
type RateEvent struct {
	Kind    EventKind
	Caller  common.Address
	Subject common.Address
	Old     *uint256.Int
	New     *uint256.Int
	At      time.Time
}

// RateParams is a point-in-time copy of the rate model configuration.
type RateParams struct {
	OptimalUsageRatio             *uint256.Int
	BaseVariableBorrowRate        *uint256.Int
	VariableRateSlope1            *uint256.Int
	VariableRateSlope2            *uint256.Int
	StableRateSlope1              *uint256.Int
	StableRateSlope2              *uint256.Int
	BaseStableRateOffset          *uint256.Int
	StableRateExcessOffset        *uint256.Int
	OptimalStableToTotalDebtRatio *uint256.Int
	Epsilon                       *uint256.Int
	MPlus                         uint64
	MMinus                        uint64
}

// Clone returns a deep copy.
func (p RateParams) Clone() RateParams {
	return RateParams{
		OptimalUsageRatio:             cloneInt(p.OptimalUsageRatio),
		BaseVariableBorrowRate:        cloneInt(p.BaseVariableBorrowRate),
		VariableRateSlope1:            cloneInt(p.VariableRateSlope1),
		VariableRateSlope2:            cloneInt(p.VariableRateSlope2),
		StableRateSlope1:              cloneInt(p.StableRateSlope1),
		StableRateSlope2:              cloneInt(p.StableRateSlope2),
		BaseStableRateOffset:          cloneInt(p.BaseStableRateOffset),
		StableRateExcessOffset:        cloneInt(p.StableRateExcessOffset),
		OptimalStableToTotalDebtRatio: cloneInt(p.OptimalStableToTotalDebtRatio),
		Epsilon:                       cloneInt(p.Epsilon),
		MPlus:                         p.MPlus,
		MMinus:                        p.MMinus,
	}
}

func cloneInt(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}
