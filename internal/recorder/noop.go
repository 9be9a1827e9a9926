package recorder

import "compgrid/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ *Run) error { return nil }
func (n *NoopRecorder) LastDelivered(_, _ string) (model.Date, bool, error) {
	return model.Date{}, false, nil
}
func (n *NoopRecorder) RecentRuns(_ int) ([]Run, error) { return nil, nil }
func (n *NoopRecorder) Close() error                    { return nil }
