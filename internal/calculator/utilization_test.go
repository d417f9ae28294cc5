package calculator

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUtilization(t *testing.T) {
	tests := []struct {
		name                   string
		supply, variable, stbl uint64
		want                   string
	}{
		{"30 percent", 100, 30, 0, "300000000000000000000000000"},
		{"stable counts", 100, 30, 20, "500000000000000000000000000"},
		{"floors", 3, 1, 0, "333333333333333333333333333"},
		{"zero supply", 0, 0, 0, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Utilization(uint256.NewInt(tt.supply), uint256.NewInt(tt.variable), uint256.NewInt(tt.stbl))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Dec())
		})
	}
}

func TestWindowAverage(t *testing.T) {
	avg, err := WindowAverage([]*uint256.Int{FromBasisPoints(6_000), FromBasisPoints(3_000)})
	require.NoError(t, err)
	assert.Equal(t, "450000000000000000000000000", avg.Dec())

	_, err = WindowAverage(nil)
	assert.Error(t, err)

	_, err = WindowAverage([]*uint256.Int{new(uint256.Int).SetAllOne(), uint256.NewInt(1)})
	assert.ErrorIs(t, err, ErrOverflow)
}
