package collector

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCaller struct {
	supplies map[common.Address]uint64
	calls    []ethereum.CallMsg
	err      error
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls = append(f.calls, msg)
	if f.err != nil {
		return nil, f.err
	}
	v := uint256.NewInt(f.supplies[*msg.To]).Bytes32()
	return v[:], nil
}

var tokens = ReserveTokens{
	LiquidityToken:    common.HexToAddress("0x59cD1C87501baa753d0B5B5Ab5D8416A45cD71DB"),
	VariableDebtToken: common.HexToAddress("0x2e7576042566f8D6990e07A1B61Ad1efd86Ae70d"),
	StableDebtToken:   common.HexToAddress("0x3c6b93D38ffA15ea995D1BC950d5D0Fa6b22bD05"),
}

func TestEVMReserve_Read(t *testing.T) {
	caller := &fakeCaller{supplies: map[common.Address]uint64{
		tokens.LiquidityToken:    100,
		tokens.VariableDebtToken: 30,
		tokens.StableDebtToken:   0,
	}}
	r := NewEVMReserve(caller, tokens, 0)

	snap, err := Read(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "300000000000000000000000000", snap.Utilization.Dec())
	require.Len(t, caller.calls, 3)
	assert.Equal(t, []byte{0x18, 0x16, 0x0d, 0xdd}, caller.calls[0].Data)
	assert.Equal(t, tokens.LiquidityToken, *caller.calls[0].To)
}

func TestEVMReserve_Errors(t *testing.T) {
	r := NewEVMReserve(&fakeCaller{err: errors.New("execution reverted")}, tokens, 0)
	_, err := r.TotalVariableDebt(context.Background())
	assert.ErrorContains(t, err, "execution reverted")

	r = NewEVMReserve(&fakeCaller{}, ReserveTokens{}, 0)
	_, err = r.TotalStableDebt(context.Background())
	assert.ErrorContains(t, err, "token address required")

	_, err = DialEVMReserve("  ", tokens, 0)
	assert.Error(t, err)
}
