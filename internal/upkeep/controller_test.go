package upkeep

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"RateKeeper/internal/calculator"
	"RateKeeper/internal/collector"
	"RateKeeper/internal/model"
	"RateKeeper/internal/ratemodel"
	"RateKeeper/internal/strategy"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	deployer   = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	controller = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	slope1     = uint256.MustFromDecimal("38000000000000000000000000")
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2023, 7, 22, 18, 20, 3, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// pyramidHistory averages 45%.
func pyramidHistory() []*uint256.Int {
	out := make([]*uint256.Int, 0, 60)
	unit := uint256.MustFromDecimal("10000000000000000000000000") // 1%
	for k := 0; k < 30; k++ {
		out = append(out, new(uint256.Int).Mul(uint256.NewInt(uint64(60-k)), unit))
	}
	for k := 0; k < 30; k++ {
		out = append(out, new(uint256.Int).Mul(uint256.NewInt(uint64(30+k)), unit))
	}
	return out
}

func flatHistory(bps uint64) []*uint256.Int {
	out := make([]*uint256.Int, 60)
	for i := range out {
		out[i] = calculator.FromBasisPoints(bps)
	}
	return out
}

func testParams() model.RateParams {
	return model.RateParams{
		OptimalUsageRatio:             calculator.FromBasisPoints(8_000),
		BaseVariableBorrowRate:        uint256.MustFromDecimal("10000000000000000000000000"),
		VariableRateSlope1:            slope1.Clone(),
		VariableRateSlope2:            uint256.MustFromDecimal("800000000000000000000000000"),
		StableRateSlope1:              new(uint256.Int),
		StableRateSlope2:              new(uint256.Int),
		BaseStableRateOffset:          new(uint256.Int),
		StableRateExcessOffset:        new(uint256.Int),
		OptimalStableToTotalDebtRatio: new(uint256.Int),
		Epsilon:                       calculator.FromBasisPoints(1_000),
		MPlus:                         11_000,
		MMinus:                        9_000,
	}
}

type env struct {
	clock   *fakeClock
	reserve *collector.StaticReserve
	rates   *ratemodel.RateModel
	ctrl    *Controller
}

func newEnv(t *testing.T, history []*uint256.Int, grant bool) *env {
	t.Helper()
	clock := newFakeClock()
	rates, err := ratemodel.New(testParams(), deployer, ratemodel.WithClock(clock.Now))
	require.NoError(t, err)

	reserve := collector.NewStaticReserve(uint256.NewInt(100), uint256.NewInt(30), uint256.NewInt(0))
	ctrl, err := New(Config{Address: controller, InitialHistory: history}, reserve, rates, WithClock(clock.Now))
	require.NoError(t, err)
	if grant {
		require.NoError(t, rates.GrantUpdater(deployer, controller))
	}
	return &env{clock: clock, reserve: reserve, rates: rates, ctrl: ctrl}
}

func TestNew_Constants(t *testing.T) {
	e := newEnv(t, pyramidHistory(), true)
	assert.Equal(t, 12*time.Hour, e.ctrl.Interval())
	assert.Equal(t, 60, e.ctrl.WindowSize())
	assert.Equal(t, uint64(0), e.ctrl.Counter())
	assert.Equal(t, controller, e.ctrl.Address())
	assert.Equal(t, controller, e.rates.ActiveUpdater())
	assert.True(t, e.rates.IsWard(controller))
	assert.Same(t, e.rates, e.ctrl.RateModel())
	assert.Equal(t, e.clock.Now(), e.ctrl.LastCommitTime())

	seed := pyramidHistory()
	for k := 0; k < 60; k++ {
		got, err := e.ctrl.History(k)
		require.NoError(t, err)
		assert.True(t, seed[k].Eq(got), "slot %d", k)
	}
	_, err := e.ctrl.History(60)
	assert.Error(t, err)
}

func TestNew_RequiresFullWindow(t *testing.T) {
	rates, err := ratemodel.New(testParams(), deployer)
	require.NoError(t, err)
	reserve := collector.NewStaticReserve(uint256.NewInt(1), uint256.NewInt(0), uint256.NewInt(0))

	_, err = New(Config{InitialHistory: pyramidHistory()[:59]}, reserve, rates)
	assert.ErrorIs(t, err, ErrWindowSize)

	_, err = New(Config{WindowSize: 3, InitialHistory: flatHistory(1)[:3]}, reserve, rates)
	assert.NoError(t, err)
}

func TestIsUpkeepDue_StepFunction(t *testing.T) {
	e := newEnv(t, pyramidHistory(), true)

	p, err := e.ctrl.IsUpkeepDue()
	require.NoError(t, err)
	assert.False(t, p.Due, "not due at construction")

	e.clock.Advance(12*time.Hour - 2*time.Second)
	p, _ = e.ctrl.IsUpkeepDue()
	assert.False(t, p.Due)

	e.clock.Advance(time.Second)
	p, _ = e.ctrl.IsUpkeepDue()
	assert.False(t, p.Due, "interval - 1s")

	e.clock.Advance(time.Second)
	p, _ = e.ctrl.IsUpkeepDue()
	assert.True(t, p.Due, "exactly interval")

	e.clock.Advance(72 * time.Hour)
	p, _ = e.ctrl.IsUpkeepDue()
	assert.True(t, p.Due)
}

func TestIsUpkeepDue_IsPure(t *testing.T) {
	e := newEnv(t, pyramidHistory(), true)
	e.clock.Advance(13 * time.Hour)
	first, err := e.ctrl.IsUpkeepDue()
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := e.ctrl.IsUpkeepDue()
		require.NoError(t, err)
		assert.Equal(t, first.Due, again.Due)
		assert.True(t, first.Slope.Eq(again.Slope))
	}
	assert.Equal(t, uint64(0), e.ctrl.Counter())
	assert.True(t, slope1.Eq(e.rates.VariableRateSlope1()))
}

func TestIsUpkeepDue_LowUtilizationContracts(t *testing.T) {
	e := newEnv(t, pyramidHistory(), true)
	p, err := e.ctrl.IsUpkeepDue()
	require.NoError(t, err)
	assert.Equal(t, "450000000000000000000000000", p.WindowAverage.Dec())
	assert.Equal(t, strategy.BranchContract, p.Branch)
	// 0.038 * 0.9
	assert.Equal(t, "34200000000000000000000000", p.Slope.Dec())
}

func TestIsUpkeepDue_OptimalUtilizationScales(t *testing.T) {
	e := newEnv(t, flatHistory(8_000), true)
	p, err := e.ctrl.IsUpkeepDue()
	require.NoError(t, err)
	assert.Equal(t, strategy.BranchScale, p.Branch)
	// 0.038 * 1.1 * 1.1
	assert.Equal(t, "45980000000000000000000000", p.Slope.Dec())
}

func TestCommit_WritesInstantaneousUtilization(t *testing.T) {
	e := newEnv(t, pyramidHistory(), true)
	e.clock.Advance(12 * time.Hour)

	p, err := e.ctrl.IsUpkeepDue()
	require.NoError(t, err)
	require.True(t, p.Due)

	before := e.ctrl.HistorySnapshot()
	receipt, err := e.ctrl.Commit(context.Background(), p.Slope)
	require.NoError(t, err)

	assert.Equal(t, 0, receipt.Slot)
	assert.Equal(t, uint64(1), receipt.Counter)
	assert.Equal(t, uint64(1), e.ctrl.Counter())
	assert.Equal(t, e.clock.Now(), e.ctrl.LastCommitTime())
	assert.Equal(t, "300000000000000000000000000", receipt.Utilization.Dec())
	assert.True(t, slope1.Eq(receipt.PreviousSlope1))
	assert.True(t, p.Slope.Eq(e.rates.VariableRateSlope1()))

	after := e.ctrl.HistorySnapshot()
	assert.Equal(t, "300000000000000000000000000", after[0].Dec())
	for i := 1; i < len(after); i++ {
		assert.True(t, before[i].Eq(after[i]), "slot %d changed", i)
	}

	next, err := e.ctrl.IsUpkeepDue()
	require.NoError(t, err)
	assert.False(t, next.Due, "interval restarts at commit")
}

func TestCommit_SecondCallInSameIntervalFails(t *testing.T) {
	e := newEnv(t, pyramidHistory(), true)
	e.clock.Advance(12 * time.Hour)
	p, _ := e.ctrl.IsUpkeepDue()

	_, err := e.ctrl.Commit(context.Background(), p.Slope)
	require.NoError(t, err)
	snapshot := e.ctrl.HistorySnapshot()

	e.reserve.Set(uint256.NewInt(100), uint256.NewInt(90), uint256.NewInt(0))
	e.clock.Advance(12*time.Hour - time.Second)
	_, err = e.ctrl.Commit(context.Background(), p.Slope)
	assert.ErrorIs(t, err, ErrNotDue)
	assert.Equal(t, uint64(1), e.ctrl.Counter())
	assert.Equal(t, snapshot, e.ctrl.HistorySnapshot())

	e.clock.Advance(time.Second)
	receipt, err := e.ctrl.Commit(context.Background(), p.Slope)
	require.NoError(t, err)
	assert.Equal(t, 1, receipt.Slot)
	assert.Equal(t, "900000000000000000000000000", receipt.Utilization.Dec())
}

func TestCommit_BeforeIntervalFails(t *testing.T) {
	e := newEnv(t, pyramidHistory(), true)
	_, err := e.ctrl.Commit(context.Background(), uint256.NewInt(1))
	assert.ErrorIs(t, err, ErrNotDue)
	assert.True(t, slope1.Eq(e.rates.VariableRateSlope1()))
}

func TestCommit_UnauthorizedLeavesStateUntouched(t *testing.T) {
	e := newEnv(t, pyramidHistory(), false)
	e.clock.Advance(12 * time.Hour)
	lastCommit := e.ctrl.LastCommitTime()
	before := e.ctrl.HistorySnapshot()

	_, err := e.ctrl.Commit(context.Background(), uint256.NewInt(1))
	assert.ErrorIs(t, err, ratemodel.ErrUnauthorized)
	assert.Equal(t, uint64(0), e.ctrl.Counter())
	assert.Equal(t, lastCommit, e.ctrl.LastCommitTime())
	assert.Equal(t, before, e.ctrl.HistorySnapshot())
	assert.True(t, slope1.Eq(e.rates.VariableRateSlope1()))

	p, _ := e.ctrl.IsUpkeepDue()
	assert.True(t, p.Due, "still due after a rejected commit")
}

func TestCommit_ReserveFailureLeavesStateUntouched(t *testing.T) {
	e := newEnv(t, pyramidHistory(), true)
	e.clock.Advance(12 * time.Hour)
	boom := errors.New("node unreachable")
	e.reserve.Err = boom

	_, err := e.ctrl.Commit(context.Background(), uint256.NewInt(1))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(0), e.ctrl.Counter())
	assert.True(t, slope1.Eq(e.rates.VariableRateSlope1()))
}

func TestCommit_TrustsCallerProposal(t *testing.T) {
	e := newEnv(t, pyramidHistory(), true)
	e.clock.Advance(12 * time.Hour)
	arbitrary := uint256.MustFromDecimal("777")
	_, err := e.ctrl.Commit(context.Background(), arbitrary)
	require.NoError(t, err)
	assert.Equal(t, "777", e.rates.VariableRateSlope1().Dec())
}

func TestCheckAndPerformUpkeep_RoundTrip(t *testing.T) {
	e := newEnv(t, flatHistory(8_000), true)
	e.clock.Advance(12 * time.Hour)

	due, data, err := e.ctrl.CheckUpkeep()
	require.NoError(t, err)
	require.True(t, due)
	require.Len(t, data, 32)

	p, _ := e.ctrl.IsUpkeepDue()
	_, err = e.ctrl.PerformUpkeep(context.Background(), data)
	require.NoError(t, err)
	assert.True(t, p.Slope.Eq(e.rates.VariableRateSlope1()))
}

func TestPerformUpkeep_Malformed(t *testing.T) {
	e := newEnv(t, pyramidHistory(), true)
	e.clock.Advance(12 * time.Hour)
	_, err := e.ctrl.PerformUpkeep(context.Background(), []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrMalformedProposal)
	assert.Equal(t, uint64(0), e.ctrl.Counter())
}

func TestCommit_ConcurrentCallersOnlyOneSucceeds(t *testing.T) {
	e := newEnv(t, pyramidHistory(), true)
	e.clock.Advance(12 * time.Hour)
	p, _ := e.ctrl.IsUpkeepDue()

	var ok, notDue atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.ctrl.Commit(context.Background(), p.Slope)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrNotDue):
				notDue.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(15), notDue.Load())
	assert.Equal(t, uint64(1), e.ctrl.Counter())
}

func TestCommit_WindowWraps(t *testing.T) {
	e := newEnv(t, pyramidHistory(), true)
	for i := 0; i < 61; i++ {
		e.clock.Advance(12 * time.Hour)
		p, err := e.ctrl.IsUpkeepDue()
		require.NoError(t, err)
		receipt, err := e.ctrl.Commit(context.Background(), p.Slope)
		require.NoError(t, err)
		assert.Equal(t, i%60, receipt.Slot)
	}
	assert.Equal(t, uint64(61), e.ctrl.Counter())

	// every slot now holds the constant 30% reserve utilization
	p, err := e.ctrl.IsUpkeepDue()
	require.NoError(t, err)
	assert.Equal(t, "300000000000000000000000000", p.WindowAverage.Dec())
}

func TestStateRestore(t *testing.T) {
	e := newEnv(t, pyramidHistory(), true)
	e.clock.Advance(12 * time.Hour)
	p, _ := e.ctrl.IsUpkeepDue()
	_, err := e.ctrl.Commit(context.Background(), p.Slope)
	require.NoError(t, err)
	saved := e.ctrl.State()

	fresh := newEnv(t, flatHistory(1), true)
	require.NoError(t, fresh.ctrl.Restore(saved))
	assert.Equal(t, uint64(1), fresh.ctrl.Counter())
	assert.Equal(t, saved.LastCommitTime, fresh.ctrl.LastCommitTime())
	assert.Equal(t, e.ctrl.HistorySnapshot(), fresh.ctrl.HistorySnapshot())

	saved.History = saved.History[:10]
	assert.ErrorIs(t, fresh.ctrl.Restore(saved), ErrWindowSize)
}

func TestStatus(t *testing.T) {
	e := newEnv(t, pyramidHistory(), true)
	status, err := e.ctrl.Status()
	require.NoError(t, err)
	assert.Equal(t, 60, status.WindowSize)
	assert.False(t, status.Due)
	assert.Equal(t, e.clock.Now().Add(12*time.Hour), status.NextDueTime)
	assert.Equal(t, "34200000000000000000000000", status.ProposedSlope1.Dec())
}
