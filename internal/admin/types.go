package admin

import (
	"time"

	"RateKeeper/internal/model"

	"github.com/holiman/uint256"
)

// Ray values are rendered as decimal strings.

type modelResponse struct {
	Asset                         string   `json:"asset"`
	OptimalUsageRatio             string   `json:"optimal_usage_ratio"`
	BaseVariableBorrowRate        string   `json:"base_variable_borrow_rate"`
	VariableRateSlope1            string   `json:"variable_rate_slope1"`
	VariableRateSlope2            string   `json:"variable_rate_slope2"`
	StableRateSlope1              string   `json:"stable_rate_slope1"`
	StableRateSlope2              string   `json:"stable_rate_slope2"`
	BaseStableRateOffset          string   `json:"base_stable_rate_offset"`
	StableRateExcessOffset        string   `json:"stable_rate_excess_offset"`
	OptimalStableToTotalDebtRatio string   `json:"optimal_stable_to_total_debt_ratio"`
	Epsilon                       string   `json:"epsilon"`
	MPlus                         uint64   `json:"m_plus"`
	MMinus                        uint64   `json:"m_minus"`
	Configurator                  string   `json:"configurator"`
	ActiveUpdater                 string   `json:"active_updater"`
	Wards                         []string `json:"wards"`
}

type upkeepResponse struct {
	Asset          string    `json:"asset"`
	Address        string    `json:"address"`
	Interval       string    `json:"interval"`
	WindowSize     int       `json:"window_size"`
	Counter        uint64    `json:"counter"`
	LastCommitTime time.Time `json:"last_commit_time"`
	NextDueTime    time.Time `json:"next_due_time"`
	Due            bool      `json:"due"`
	WindowAverage  string    `json:"window_average"`
	ProposedSlope1 string    `json:"proposed_slope1"`
}

type historyResponse struct {
	Counter  uint64        `json:"counter"`
	NextSlot int           `json:"next_slot"`
	Samples  []string      `json:"samples"`
	Runs     []runResponse `json:"runs"`
}

type runResponse struct {
	ID             string    `json:"id"`
	Outcome        string    `json:"outcome"`
	Counter        uint64    `json:"counter"`
	Slot           int       `json:"slot"`
	Utilization    string    `json:"utilization,omitempty"`
	PreviousSlope1 string    `json:"previous_slope1,omitempty"`
	ProposedSlope1 string    `json:"proposed_slope1,omitempty"`
	Error          string    `json:"error,omitempty"`
	StartedAt      time.Time `json:"started_at"`
}

func newRunResponse(run model.UpkeepRun) runResponse {
	return runResponse{
		ID:             run.ID,
		Outcome:        string(run.Outcome),
		Counter:        run.Counter,
		Slot:           run.Slot,
		Utilization:    decOrEmpty(run.Utilization),
		PreviousSlope1: decOrEmpty(run.PreviousSlope1),
		ProposedSlope1: decOrEmpty(run.ProposedSlope1),
		Error:          run.Error,
		StartedAt:      run.StartedAt,
	}
}

type ratesResponse struct {
	Asset              string `json:"asset"`
	Source             string `json:"source"`
	Utilization        string `json:"utilization"`
	BorrowUsageRatio   string `json:"borrow_usage_ratio"`
	LiquidityRate      string `json:"liquidity_rate"`
	VariableBorrowRate string `json:"variable_borrow_rate"`
	StableBorrowRate   string `json:"stable_borrow_rate"`
}

func decOrEmpty(v *uint256.Int) string {
	if v == nil {
		return ""
	}
	return v.Dec()
}
