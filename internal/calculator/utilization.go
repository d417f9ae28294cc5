package calculator

import (
	"errors"

	"github.com/holiman/uint256"
)

// Utilization returns (variableDebt + stableDebt) / supply in ray, flooring.
// An empty reserve has zero utilization.
func Utilization(supply, variableDebt, stableDebt *uint256.Int) (*uint256.Int, error) {
	if supply == nil || supply.IsZero() {
		return new(uint256.Int), nil
	}
	debt, err := Add(variableDebt, stableDebt)
	if err != nil {
		return nil, err
	}
	return MulDivFloor(debt, Ray, supply)
}

// WindowAverage returns the floored arithmetic mean of the samples.
func WindowAverage(samples []*uint256.Int) (*uint256.Int, error) {
	if len(samples) == 0 {
		return nil, errors.New("no samples for average")
	}
	sum := new(uint256.Int)
	for _, s := range samples {
		next, err := Add(sum, s)
		if err != nil {
			return nil, err
		}
		sum = next
	}
	return sum.Div(sum, uint256.NewInt(uint64(len(samples)))), nil
}
