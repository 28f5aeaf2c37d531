package store

import (
	"errors"

	"github.com/rc-ventura/smart-grading-assistant/internal/types"
)

// ErrRunNotFound is returned when a run id has no archived state.
var ErrRunNotFound = errors.New("run not found")

// RunStore archives terminal run states. SaveRun satisfies the run
// controller's Archive dependency.
type RunStore interface {
	SaveRun(state types.RunState) error
	GetRun(runID string) (types.RunState, bool, error)
	ListRuns() ([]types.RunState, error)
	RecentRuns(limit int) ([]types.RunState, error)
	DeleteRun(runID string) error
}

// Repository bundles the persistent stores behind one handle.
type Repository interface {
	Runs() RunStore
	Close() error
}
