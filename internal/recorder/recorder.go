package recorder

import (
	"time"

	"compgrid/internal/model"
)

// Run is one generation of a grid for a delivery target.
type Run struct {
	ID        string
	Grid      string
	Target    string
	Anchor    model.Date
	CreatedAt time.Time
	Delivered bool
	Error     string
	// Result is the built grid. Nil when the build failed.
	Result *model.Grid
}

// Recorder persists grid runs so that a scheduled grid is delivered once per
// anchor date and past values can be inspected.
type Recorder interface {
	RecordRun(run *Run) error
	LastDelivered(grid, target string) (model.Date, bool, error)
	RecentRuns(limit int) ([]Run, error)
	Close() error
}
