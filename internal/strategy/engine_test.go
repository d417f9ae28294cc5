package strategy

import (
	"testing"

	"RateKeeper/internal/calculator"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	optimal = uint256.MustFromDecimal("800000000000000000000000000")
	epsilon = uint256.MustFromDecimal("100000000000000000000000000")
	slope1  = uint256.MustFromDecimal("38000000000000000000000000")
)

func inputs(avg *uint256.Int) Inputs {
	return Inputs{
		WindowAverage:     avg,
		OptimalUsageRatio: optimal,
		Epsilon:           epsilon,
		Slope1:            slope1,
		MPlus:             11_000,
		MMinus:            9_000,
	}
}

func TestEvaluate_Branches(t *testing.T) {
	lower := uint256.MustFromDecimal("700000000000000000000000000")
	justBelow := new(uint256.Int).Sub(lower, uint256.NewInt(1))

	tests := []struct {
		name   string
		avg    *uint256.Int
		branch Branch
		slope  string
	}{
		{"average 45% contracts", calculator.FromBasisPoints(4_500), BranchContract, "34200000000000000000000000"},
		{"one wei below band", justBelow, BranchContract, "34200000000000000000000000"},
		{"exactly at lower bound scales", lower, BranchScale, "41800000000000000000000000"},
		{"average 80% scales by 1.1", calculator.FromBasisPoints(8_000), BranchScale, "45980000000000000000000000"},
		{"average 100%", calculator.FromBasisPoints(10_000), BranchScale, "54340000000000000000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adj, err := Evaluate(inputs(tt.avg))
			require.NoError(t, err)
			assert.Equal(t, tt.branch, adj.Branch)
			assert.Equal(t, tt.slope, adj.Slope.Dec())
			assert.Equal(t, lower.Dec(), adj.LowerBound.Dec())
		})
	}
}

func TestEvaluate_MultipleAtOptimum(t *testing.T) {
	adj, err := Evaluate(inputs(calculator.FromBasisPoints(8_000)))
	require.NoError(t, err)
	assert.Equal(t, "1100000000000000000000000000", adj.Multiple.Dec())
}

func TestEvaluate_FloorsEachStep(t *testing.T) {
	in := inputs(new(uint256.Int))
	in.Slope1 = uint256.NewInt(3)
	adj, err := Evaluate(in)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), adj.Slope.Uint64())

	// 7 * 11_000 / 10_000 = 7 (floored), then * 1.1 = 7 (floored)
	in = inputs(calculator.FromBasisPoints(8_000))
	in.Slope1 = uint256.NewInt(7)
	adj, err = Evaluate(in)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), adj.Slope.Uint64())
}

func TestEvaluate_Errors(t *testing.T) {
	in := inputs(calculator.FromBasisPoints(5_000))
	in.Epsilon = uint256.MustFromDecimal("900000000000000000000000000")
	_, err := Evaluate(in)
	assert.ErrorIs(t, err, calculator.ErrUnderflow)

	in = inputs(calculator.FromBasisPoints(8_000))
	in.Slope1 = new(uint256.Int).SetAllOne()
	_, err = Evaluate(in)
	assert.ErrorIs(t, err, calculator.ErrOverflow)
}
