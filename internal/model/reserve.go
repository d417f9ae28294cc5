package model

import (
	"time"

	"github.com/holiman/uint256"
)

// ReserveSnapshot holds the reserve totals read at one instant.
type ReserveSnapshot struct {
	Source               string
	LiquidityTokenSupply *uint256.Int
	VariableDebt         *uint256.Int
	StableDebt           *uint256.Int
	Utilization          *uint256.Int // ray
	FetchedAt            time.Time
}
