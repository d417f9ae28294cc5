package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"RateKeeper/internal/calculator"
	"RateKeeper/internal/model"

	"github.com/holiman/uint256"
)

// StaticReserve returns controllable fixed totals for development and testing.
type StaticReserve struct {
	mu           sync.RWMutex
	supply       *uint256.Int
	variableDebt *uint256.Int
	stableDebt   *uint256.Int
	Err          error
}

// NewStaticReserve creates a reserve with the given totals.
func NewStaticReserve(supply, variableDebt, stableDebt *uint256.Int) *StaticReserve {
	r := &StaticReserve{}
	r.Set(supply, variableDebt, stableDebt)
	return r
}

// Set replaces all three totals.
func (r *StaticReserve) Set(supply, variableDebt, stableDebt *uint256.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.supply = supply.Clone()
	r.variableDebt = variableDebt.Clone()
	r.stableDebt = stableDebt.Clone()
}

func (r *StaticReserve) Name() string { return "static" }

func (r *StaticReserve) TotalSupplyOfLiquidityToken(_ context.Context) (*uint256.Int, error) {
	return r.read(func() *uint256.Int { return r.supply })
}

func (r *StaticReserve) TotalVariableDebt(_ context.Context) (*uint256.Int, error) {
	return r.read(func() *uint256.Int { return r.variableDebt })
}

func (r *StaticReserve) TotalStableDebt(_ context.Context) (*uint256.Int, error) {
	return r.read(func() *uint256.Int { return r.stableDebt })
}

func (r *StaticReserve) read(field func() *uint256.Int) (*uint256.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.Err != nil {
		return nil, r.Err
	}
	return field().Clone(), nil
}

// Utilization reads the reserve and returns its instantaneous utilization in ray.
func Utilization(ctx context.Context, r Reserve) (*uint256.Int, error) {
	snap, err := Read(ctx, r)
	if err != nil {
		return nil, err
	}
	return snap.Utilization, nil
}

// Read fetches all reserve totals and derives utilization.
func Read(ctx context.Context, r Reserve) (*model.ReserveSnapshot, error) {
	supply, err := r.TotalSupplyOfLiquidityToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch liquidity token supply: %w", err)
	}
	variableDebt, err := r.TotalVariableDebt(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch variable debt: %w", err)
	}
	stableDebt, err := r.TotalStableDebt(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch stable debt: %w", err)
	}
	utilization, err := calculator.Utilization(supply, variableDebt, stableDebt)
	if err != nil {
		return nil, fmt.Errorf("utilization: %w", err)
	}
	return &model.ReserveSnapshot{
		Source:               r.Name(),
		LiquidityTokenSupply: supply,
		VariableDebt:         variableDebt,
		StableDebt:           stableDebt,
		Utilization:          utilization,
		FetchedAt:            time.Now(),
	}, nil
}

// Collector reads reserve snapshots for reporting.
type Collector struct {
	Reserve Reserve
	Asset   string
}

// NewCollector creates a new Collector.
func NewCollector(reserve Reserve, asset string) *Collector {
	return &Collector{Reserve: reserve, Asset: asset}
}

// Collect fetches the current reserve snapshot.
func (c *Collector) Collect(ctx context.Context) (*model.ReserveSnapshot, error) {
	snap, err := Read(ctx, c.Reserve)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", c.Asset, err)
	}
	return snap, nil
}
