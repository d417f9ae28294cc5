package collector

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUtilization(t *testing.T) {
	tests := []struct {
		name     string
		supply   uint64
		variable uint64
		stable   uint64
		want     string
	}{
		{"thirty percent", 100, 30, 0, "300000000000000000000000000"},
		{"mixed debt", 1_000, 250, 250, "500000000000000000000000000"},
		{"empty reserve", 0, 0, 0, "0"},
		{"debt without supply", 0, 10, 5, "0"},
		{"floors", 3, 1, 0, "333333333333333333333333333"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewStaticReserve(uint256.NewInt(tt.supply), uint256.NewInt(tt.variable), uint256.NewInt(tt.stable))
			u, err := Utilization(context.Background(), r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.Dec())
		})
	}
}

func TestCollect(t *testing.T) {
	r := NewStaticReserve(uint256.NewInt(100), uint256.NewInt(30), uint256.NewInt(10))
	c := NewCollector(r, "WETH")
	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "static", snap.Source)
	assert.Equal(t, uint64(100), snap.LiquidityTokenSupply.Uint64())
	assert.Equal(t, "400000000000000000000000000", snap.Utilization.Dec())
	assert.False(t, snap.FetchedAt.IsZero())
}

func TestCollect_PropagatesErrors(t *testing.T) {
	boom := errors.New("rpc down")
	r := NewStaticReserve(uint256.NewInt(1), uint256.NewInt(0), uint256.NewInt(0))
	r.Err = boom
	_, err := NewCollector(r, "WETH").Collect(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestStaticReserve_SetCopies(t *testing.T) {
	supply := uint256.NewInt(100)
	r := NewStaticReserve(supply, uint256.NewInt(1), uint256.NewInt(2))
	supply.SetUint64(5)
	got, err := r.TotalSupplyOfLiquidityToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(100), got.Uint64())
}
