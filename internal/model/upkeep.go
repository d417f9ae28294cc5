package model

import (
	"time"

	"github.com/holiman/uint256"
)

// RunOutcome classifies a scheduler tick.
type RunOutcome string

const (
	OutcomeNotDue    RunOutcome = "NOT_DUE"
	OutcomeCommitted RunOutcome = "COMMITTED"
	OutcomeFailed    RunOutcome = "FAILED"
)

// UpkeepRun describes one scheduler tick against the controller.
type UpkeepRun struct {
	ID             string
	Outcome        RunOutcome
	Counter        uint64 // counter after the run
	Slot           int    // history slot written, -1 if none
	WindowAverage  *uint256.Int
	Utilization    *uint256.Int
	PreviousSlope1 *uint256.Int
	ProposedSlope1 *uint256.Int
	Error          string
	StartedAt      time.Time
	Duration       time.Duration
}

// UpkeepStatus is a read-only view of the controller.
type UpkeepStatus struct {
	Interval       time.Duration
	WindowSize     int
	Counter        uint64
	LastCommitTime time.Time
	NextDueTime    time.Time
	Due            bool
	WindowAverage  *uint256.Int
	ProposedSlope1 *uint256.Int
}
