package app

import (
	"time"

	"github.com/rc-ventura/smart-grading-assistant/internal/run"
	"github.com/rc-ventura/smart-grading-assistant/internal/types"
)

type tickMsg time.Time

type runStartedMsg struct {
	handle *run.Handle
	err    error
}

type runRestartedMsg struct {
	handle *run.Handle
	err    error
}

type recentRunsMsg struct {
	runs []types.RunState
	err  error
}
