package ratemodel

import (
	"RateKeeper/internal/calculator"

	"github.com/holiman/uint256"
)

// InterestRateInputs are the reserve figures needed to price one reserve.
// Amounts are in token units; AverageStableBorrowRate is a ray.
type InterestRateInputs struct {
	AvailableLiquidity      *uint256.Int
	Unbacked                *uint256.Int
	TotalStableDebt         *uint256.Int
	TotalVariableDebt       *uint256.Int
	AverageStableBorrowRate *uint256.Int
	ReserveFactor           uint64 // basis points
}

// InterestRates are annualised rays.
type InterestRates struct {
	LiquidityRate      *uint256.Int
	StableBorrowRate   *uint256.Int
	VariableBorrowRate *uint256.Int
	BorrowUsageRatio   *uint256.Int
	SupplyUsageRatio   *uint256.Int
}

// MaxVariableBorrowRate is base + slope1 + slope2.
func (m *RateModel) MaxVariableBorrowRate() (*uint256.Int, error) {
	p := m.Params()
	sum, err := calculator.Add(p.BaseVariableBorrowRate, p.VariableRateSlope1)
	if err != nil {
		return nil, err
	}
	return calculator.Add(sum, p.VariableRateSlope2)
}

// BaseStableBorrowRate is slope1 + baseStableRateOffset.
func (m *RateModel) BaseStableBorrowRate() (*uint256.Int, error) {
	p := m.Params()
	return calculator.Add(p.VariableRateSlope1, p.BaseStableRateOffset)
}

// CalculateInterestRates prices the reserve on the two-slope curve using the
// current slope1. Products round half up.
func (m *RateModel) CalculateInterestRates(in InterestRateInputs) (InterestRates, error) {
	p := m.Params()
	zero := new(uint256.Int)
	available := orZero(in.AvailableLiquidity)
	unbacked := orZero(in.Unbacked)
	stableDebt := orZero(in.TotalStableDebt)
	variableDebt := orZero(in.TotalVariableDebt)

	out := InterestRates{
		LiquidityRate:    zero.Clone(),
		BorrowUsageRatio: zero.Clone(),
		SupplyUsageRatio: zero.Clone(),
	}

	totalDebt, err := calculator.Add(stableDebt, variableDebt)
	if err != nil {
		return out, err
	}

	stableToTotal := zero.Clone()
	if !totalDebt.IsZero() {
		if stableToTotal, err = calculator.RayDiv(stableDebt, totalDebt); err != nil {
			return out, err
		}
		liquidityPlusDebt, err := calculator.Add(available, totalDebt)
		if err != nil {
			return out, err
		}
		if out.BorrowUsageRatio, err = calculator.RayDiv(totalDebt, liquidityPlusDebt); err != nil {
			return out, err
		}
		withUnbacked, err := calculator.Add(liquidityPlusDebt, unbacked)
		if err != nil {
			return out, err
		}
		if out.SupplyUsageRatio, err = calculator.RayDiv(totalDebt, withUnbacked); err != nil {
			return out, err
		}
	}

	variableRate := p.BaseVariableBorrowRate.Clone()
	stableRate, err := calculator.Add(p.VariableRateSlope1, p.BaseStableRateOffset)
	if err != nil {
		return out, err
	}

	if out.BorrowUsageRatio.Gt(p.OptimalUsageRatio) {
		maxExcess := new(uint256.Int).Sub(calculator.Ray, p.OptimalUsageRatio)
		over := new(uint256.Int).Sub(out.BorrowUsageRatio, p.OptimalUsageRatio)
		excess, err := calculator.RayDiv(over, maxExcess)
		if err != nil {
			return out, err
		}
		if stableRate, err = addSlopes(stableRate, p.StableRateSlope1, p.StableRateSlope2, excess); err != nil {
			return out, err
		}
		if variableRate, err = addSlopes(variableRate, p.VariableRateSlope1, p.VariableRateSlope2, excess); err != nil {
			return out, err
		}
	} else {
		if stableRate, err = addScaledSlope(stableRate, p.StableRateSlope1, out.BorrowUsageRatio, p.OptimalUsageRatio); err != nil {
			return out, err
		}
		if variableRate, err = addScaledSlope(variableRate, p.VariableRateSlope1, out.BorrowUsageRatio, p.OptimalUsageRatio); err != nil {
			return out, err
		}
	}

	if stableToTotal.Gt(p.OptimalStableToTotalDebtRatio) {
		maxExcess := new(uint256.Int).Sub(calculator.Ray, p.OptimalStableToTotalDebtRatio)
		over := new(uint256.Int).Sub(stableToTotal, p.OptimalStableToTotalDebtRatio)
		excess, err := calculator.RayDiv(over, maxExcess)
		if err != nil {
			return out, err
		}
		premium, err := calculator.RayMul(p.StableRateExcessOffset, excess)
		if err != nil {
			return out, err
		}
		if stableRate, err = calculator.Add(stableRate, premium); err != nil {
			return out, err
		}
	}

	out.StableBorrowRate = stableRate
	out.VariableBorrowRate = variableRate

	overall, err := overallBorrowRate(stableDebt, variableDebt, variableRate, orZero(in.AverageStableBorrowRate))
	if err != nil {
		return out, err
	}
	liquidity, err := calculator.RayMul(overall, out.SupplyUsageRatio)
	if err != nil {
		return out, err
	}
	if in.ReserveFactor > calculator.PercentageFactor {
		in.ReserveFactor = calculator.PercentageFactor
	}
	if out.LiquidityRate, err = calculator.PercentMul(liquidity, calculator.PercentageFactor-in.ReserveFactor); err != nil {
		return out, err
	}
	return out, nil
}

// addSlopes returns rate + slope1 + slope2*excess.
func addSlopes(rate, slope1, slope2, excess *uint256.Int) (*uint256.Int, error) {
	steep, err := calculator.RayMul(slope2, excess)
	if err != nil {
		return nil, err
	}
	sum, err := calculator.Add(rate, slope1)
	if err != nil {
		return nil, err
	}
	return calculator.Add(sum, steep)
}

// addScaledSlope returns rate + slope*usage/optimal.
func addScaledSlope(rate, slope, usage, optimal *uint256.Int) (*uint256.Int, error) {
	scaled, err := calculator.RayMul(slope, usage)
	if err != nil {
		return nil, err
	}
	if scaled, err = calculator.RayDiv(scaled, optimal); err != nil {
		return nil, err
	}
	return calculator.Add(rate, scaled)
}

func overallBorrowRate(stableDebt, variableDebt, variableRate, avgStableRate *uint256.Int) (*uint256.Int, error) {
	totalDebt, err := calculator.Add(stableDebt, variableDebt)
	if err != nil {
		return nil, err
	}
	if totalDebt.IsZero() {
		return new(uint256.Int), nil
	}
	variableRay, err := calculator.WadToRay(variableDebt)
	if err != nil {
		return nil, err
	}
	stableRay, err := calculator.WadToRay(stableDebt)
	if err != nil {
		return nil, err
	}
	weightedVariable, err := calculator.RayMul(variableRay, variableRate)
	if err != nil {
		return nil, err
	}
	weightedStable, err := calculator.RayMul(stableRay, avgStableRate)
	if err != nil {
		return nil, err
	}
	weighted, err := calculator.Add(weightedVariable, weightedStable)
	if err != nil {
		return nil, err
	}
	totalRay, err := calculator.WadToRay(totalDebt)
	if err != nil {
		return nil, err
	}
	return calculator.RayDiv(weighted, totalRay)
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
