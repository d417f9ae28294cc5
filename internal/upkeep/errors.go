package upkeep

import "errors"

var (
	// ErrNotDue is returned by Commit before the interval has elapsed.
	ErrNotDue = errors.New("upkeep not due")
	// ErrMalformedProposal is returned when perform data is not a 32-byte slope.
	ErrMalformedProposal = errors.New("malformed upkeep proposal")
	// ErrWindowSize is returned when the seed history does not fill the window.
	ErrWindowSize = errors.New("history length does not match window size")
)
