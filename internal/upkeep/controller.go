package upkeep

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"RateKeeper/internal/calculator"
	"RateKeeper/internal/collector"
	"RateKeeper/internal/model"
	"RateKeeper/internal/ratemodel"
	"RateKeeper/internal/strategy"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	// DefaultInterval is the minimum time between two commits.
	DefaultInterval = 12 * time.Hour
	// DefaultWindowSize covers 30 days of 12-hour samples.
	DefaultWindowSize = 60
)

// Config describes a controller at deployment.
type Config struct {
	Interval       time.Duration
	WindowSize     int
	Address        common.Address // identity presented to the rate model
	InitialHistory []*uint256.Int
}

// Proposal is the result of IsUpkeepDue. Slope is defined even when Due is false.
type Proposal struct {
	Due           bool
	Slope         *uint256.Int
	WindowAverage *uint256.Int
	Branch        strategy.Branch
}

// Encode returns the perform data for PerformUpkeep.
func (p Proposal) Encode() []byte {
	return calculator.EncodeUint256(p.Slope)
}

// Receipt describes a successful commit.
type Receipt struct {
	Slot           int
	Counter        uint64 // counter after the commit
	Utilization    *uint256.Int
	PreviousSlope1 *uint256.Int
	Slope1         *uint256.Int
	CommittedAt    time.Time
}

// Controller adjusts a rate model's slope1 from a sliding window of reserve
// utilization samples.
type Controller struct {
	mu         sync.RWMutex
	interval   time.Duration
	history    *Window
	counter    uint64
	lastCommit time.Time

	address common.Address
	reserve collector.Reserve
	rates   *ratemodel.RateModel
	now     func() time.Time
}

// Option customises a Controller.
type Option func(*Controller)

// WithClock overrides the controller clock.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New binds a controller to one reserve and one rate model. The history must
// contain exactly WindowSize samples; lastCommitTime starts at construction.
func New(cfg Config, reserve collector.Reserve, rates *ratemodel.RateModel, opts ...Option) (*Controller, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultWindowSize
	}
	if len(cfg.InitialHistory) != cfg.WindowSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrWindowSize, len(cfg.InitialHistory), cfg.WindowSize)
	}
	if reserve == nil || rates == nil {
		return nil, fmt.Errorf("controller requires a reserve and a rate model")
	}
	c := &Controller{
		interval: cfg.Interval,
		history:  NewWindow(cfg.InitialHistory),
		address:  cfg.Address,
		reserve:  reserve,
		rates:    rates,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lastCommit = c.now()
	return c, nil
}

// IsUpkeepDue reports whether a commit is allowed now and the slope it would
// install. It never mutates state.
func (c *Controller) IsUpkeepDue() (Proposal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.propose(c.now())
}

func (c *Controller) propose(now time.Time) (Proposal, error) {
	avg, err := c.history.Average()
	if err != nil {
		return Proposal{}, fmt.Errorf("window average: %w", err)
	}
	p := c.rates.Params()
	adj, err := strategy.Evaluate(strategy.Inputs{
		WindowAverage:     avg,
		OptimalUsageRatio: p.OptimalUsageRatio,
		Epsilon:           p.Epsilon,
		Slope1:            p.VariableRateSlope1,
		MPlus:             p.MPlus,
		MMinus:            p.MMinus,
	})
	if err != nil {
		return Proposal{}, fmt.Errorf("evaluate slope: %w", err)
	}
	return Proposal{
		Due:           c.dueAt(now),
		Slope:         adj.Slope,
		WindowAverage: avg,
		Branch:        adj.Branch,
	}, nil
}

func (c *Controller) dueAt(now time.Time) bool {
	return now.Sub(c.lastCommit) >= c.interval
}

// CheckUpkeep is IsUpkeepDue with the slope encoded as perform data.
func (c *Controller) CheckUpkeep() (bool, []byte, error) {
	p, err := c.IsUpkeepDue()
	if err != nil {
		return false, nil, err
	}
	return p.Due, p.Encode(), nil
}

// PerformUpkeep decodes perform data produced by CheckUpkeep and commits it.
func (c *Controller) PerformUpkeep(ctx context.Context, performData []byte) (*Receipt, error) {
	slope, err := calculator.DecodeUint256(performData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProposal, err)
	}
	return c.Commit(ctx, slope)
}

// Commit installs slope as the new slope1 and records the reserve's current
// utilization in the window. The proposal is taken as given; timing and
// authorization are re-checked. Nothing changes unless every step succeeds.
func (c *Controller) Commit(ctx context.Context, slope *uint256.Int) (*Receipt, error) {
	if slope == nil {
		return nil, fmt.Errorf("%w: nil slope", ErrMalformedProposal)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.dueAt(now) {
		return nil, ErrNotDue
	}

	utilization, err := collector.Utilization(ctx, c.reserve)
	if err != nil {
		return nil, fmt.Errorf("read reserve: %w", err)
	}

	previous := c.rates.VariableRateSlope1()
	if err := c.rates.SetVariableRateSlope1(c.address, slope); err != nil {
		return nil, fmt.Errorf("set slope1: %w", err)
	}

	slot := c.history.Put(c.counter, utilization)
	c.counter++
	c.lastCommit = now

	log.Printf("[INFO] upkeep committed: counter=%d slot=%d utilization=%s slope1=%s",
		c.counter, slot, utilization.Dec(), slope.Dec())
	return &Receipt{
		Slot:           slot,
		Counter:        c.counter,
		Utilization:    utilization,
		PreviousSlope1: previous,
		Slope1:         slope.Clone(),
		CommittedAt:    now,
	}, nil
}

// History returns sample i of the window.
func (c *Controller) History(i int) (*uint256.Int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.history.At(i)
}

// HistorySnapshot returns all samples in slot order.
func (c *Controller) HistorySnapshot() []*uint256.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.history.Values()
}

// Counter is the number of commits so far.
func (c *Controller) Counter() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counter
}

// LastCommitTime is the time of the last commit, or construction.
func (c *Controller) LastCommitTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastCommit
}

// Interval is the minimum time between commits.
func (c *Controller) Interval() time.Duration { return c.interval }

// WindowSize is the number of history slots.
func (c *Controller) WindowSize() int { return c.history.Len() }

// Address is the identity the controller uses with the rate model.
func (c *Controller) Address() common.Address { return c.address }

// Reserve returns the reserve that utilization is sampled from.
func (c *Controller) Reserve() collector.Reserve { return c.reserve }

// RateModel is the model whose slope1 the controller adjusts.
func (c *Controller) RateModel() *ratemodel.RateModel { return c.rates }

// Status summarises the controller for operators.
func (c *Controller) Status() (model.UpkeepStatus, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, err := c.propose(c.now())
	if err != nil {
		return model.UpkeepStatus{}, err
	}
	return model.UpkeepStatus{
		Interval:       c.interval,
		WindowSize:     c.history.Len(),
		Counter:        c.counter,
		LastCommitTime: c.lastCommit,
		NextDueTime:    c.lastCommit.Add(c.interval),
		Due:            p.Due,
		WindowAverage:  p.WindowAverage,
		ProposedSlope1: p.Slope,
	}, nil
}
