package strategy

import (
	"fmt"

	"RateKeeper/internal/calculator"

	"github.com/holiman/uint256"
)

// Branch names the side of the epsilon band the window average fell on.
type Branch string

const (
	// BranchContract applies mMinus flat when utilization sits below the band.
	BranchContract Branch = "MMINUS"
	// BranchScale applies mPlus weighted by the distance above the lower band edge.
	BranchScale Branch = "MPLUS"
)

// Inputs are the values a slope adjustment depends on. All ratios are rays.
type Inputs struct {
	WindowAverage     *uint256.Int
	OptimalUsageRatio *uint256.Int
	Epsilon           *uint256.Int
	Slope1            *uint256.Int
	MPlus             uint64
	MMinus            uint64
}

// Adjustment is the outcome of Evaluate.
type Adjustment struct {
	Branch     Branch
	LowerBound *uint256.Int
	Multiple   *uint256.Int // nil on the contract branch
	Slope      *uint256.Int
}

// Evaluate computes the proposed slope1:
//
//	avg <  optimal-epsilon: slope1 * mMinus / 10_000
//	avg >= optimal-epsilon: slope1 * mPlus / 10_000 * (1 + avg + epsilon - optimal) / 1
//
// Each step floors, left to right.
func Evaluate(in Inputs) (*Adjustment, error) {
	lower, err := calculator.Sub(in.OptimalUsageRatio, in.Epsilon)
	if err != nil {
		return nil, fmt.Errorf("lower bound: %w", err)
	}

	if in.WindowAverage.Lt(lower) {
		slope, err := calculator.PercentOf(in.Slope1, in.MMinus)
		if err != nil {
			return nil, fmt.Errorf("contract slope: %w", err)
		}
		return &Adjustment{Branch: BranchContract, LowerBound: lower, Slope: slope}, nil
	}

	multiple, err := calculator.Add(calculator.Ray, in.WindowAverage)
	if err != nil {
		return nil, fmt.Errorf("multiple: %w", err)
	}
	if multiple, err = calculator.Add(multiple, in.Epsilon); err != nil {
		return nil, fmt.Errorf("multiple: %w", err)
	}
	if multiple, err = calculator.Sub(multiple, in.OptimalUsageRatio); err != nil {
		return nil, fmt.Errorf("multiple: %w", err)
	}

	slope, err := calculator.PercentOf(in.Slope1, in.MPlus)
	if err != nil {
		return nil, fmt.Errorf("scale slope: %w", err)
	}
	if slope, err = calculator.MulDivFloor(slope, multiple, calculator.Ray); err != nil {
		return nil, fmt.Errorf("scale slope: %w", err)
	}
	return &Adjustment{Branch: BranchScale, LowerBound: lower, Multiple: multiple, Slope: slope}, nil
}
