package recorder

import "RateKeeper/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ *model.UpkeepRun) error          { return nil }
func (n *NoopRecorder) RecordRateEvent(_ *model.RateEvent) error    { return nil }
func (n *NoopRecorder) RecordSample(_ *model.ReserveSnapshot) error { return nil }
func (n *NoopRecorder) RecentRuns(_ int) ([]model.UpkeepRun, error) { return nil, nil }
func (n *NoopRecorder) Close() error                                { return nil }
