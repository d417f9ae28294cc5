package collector

import (
	"context"

	"github.com/holiman/uint256"
)

// Reserve is the read-only view of a lending-pool reserve.
type Reserve interface {
	TotalSupplyOfLiquidityToken(ctx context.Context) (*uint256.Int, error)
	TotalVariableDebt(ctx context.Context) (*uint256.Int, error)
	TotalStableDebt(ctx context.Context) (*uint256.Int, error)
	Name() string
}
