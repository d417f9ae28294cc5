package recorder

import "RateKeeper/internal/model"

// Recorder persists upkeep history for analysis.
type Recorder interface {
	RecordRun(run *model.UpkeepRun) error
	RecordRateEvent(evt *model.RateEvent) error
	RecordSample(snap *model.ReserveSnapshot) error
	// RecentRuns returns up to limit runs, newest first.
	RecentRuns(limit int) ([]model.UpkeepRun, error)
	Close() error
}
