package run

import (
	"errors"
	"fmt"
	"time"

	"github.com/rc-ventura/smart-grading-assistant/internal/types"
)

// ErrRunFailed marks fatal backend errors surfaced through the event
// stream.
var ErrRunFailed = errors.New("run failed")

type DeltaKind string

const (
	DeltaStatus    DeltaKind = "status"
	DeltaCriterion DeltaKind = "criterion"
	DeltaAggregate DeltaKind = "aggregate"
	DeltaApproval  DeltaKind = "approval"
	DeltaFinished  DeltaKind = "finished"
	DeltaError     DeltaKind = "error"
)

// Delta is one normalized state change. Exactly the fields implied by
// Kind are set.
type Delta struct {
	Kind      DeltaKind
	Status    types.RunStatus
	Grade     *types.CriterionGrade
	Aggregate *types.AggregationResult
	Approval  *types.ApprovalRequest
	Final     *types.FinalGrade
	Reason    types.FinishReason
	Err       error
	Fatal     bool
}

// Normalizer translates raw backend events into state deltas and
// guarantees each (stage, kind) pair - plus criterion for per-criterion
// results - is applied at most once per run. Backends may repeat
// themselves; downstream state must not.
type Normalizer struct {
	runID string
	now   func() time.Time
	seen  map[string]struct{}
}

func NewNormalizer(runID string, now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{runID: runID, now: now, seen: make(map[string]struct{})}
}

// Reset clears the dedup history for a fresh evaluation pass.
func (n *Normalizer) Reset() {
	n.seen = make(map[string]struct{})
}

// Normalize maps one event to a delta. The second return is false when
// the event is a duplicate or carries no state change.
func (n *Normalizer) Normalize(ev types.StageEvent) (Delta, bool) {
	key := string(ev.Stage) + "/" + string(ev.Kind)
	if ev.Kind == types.EventCriterionResult && ev.Grade != nil {
		key += "/" + ev.Grade.Criterion
	}
	if _, dup := n.seen[key]; dup {
		return Delta{}, false
	}
	n.seen[key] = struct{}{}

	switch ev.Kind {
	case types.EventStageStart:
		if status, ok := stageStatus(ev.Stage); ok {
			return Delta{Kind: DeltaStatus, Status: status}, true
		}
		return Delta{}, false
	case types.EventStageComplete:
		if ev.Stage == types.StageAggregating && ev.Aggregate != nil {
			return Delta{Kind: DeltaAggregate, Aggregate: ev.Aggregate}, true
		}
		return Delta{}, false
	case types.EventCriterionResult:
		if ev.Grade == nil {
			return Delta{}, false
		}
		return Delta{Kind: DeltaCriterion, Grade: ev.Grade}, true
	case types.EventApprovalRequired:
		req := &types.ApprovalRequest{
			RunID:        n.runID,
			InvocationID: ev.InvocationID,
			Reason:       ev.Message,
			CreatedAt:    n.now(),
		}
		if ev.Aggregate != nil {
			req.SubjectSnapshot = *ev.Aggregate
		}
		return Delta{Kind: DeltaApproval, Approval: req}, true
	case types.EventFinished:
		return Delta{Kind: DeltaFinished, Reason: ev.Reason, Final: ev.Final}, true
	case types.EventError:
		return Delta{
			Kind:  DeltaError,
			Err:   fmt.Errorf("%w: %s: %s", ErrRunFailed, ev.Stage, ev.Err),
			Fatal: ev.Fatal,
		}, true
	}
	return Delta{}, false
}

func stageStatus(stage types.Stage) (types.RunStatus, bool) {
	switch stage {
	case types.StageValidating:
		return types.RunValidating, true
	case types.StageGrading:
		return types.RunGrading, true
	case types.StageAggregating:
		return types.RunAggregating, true
	case types.StageApproval:
		return types.RunAwaitingApproval, true
	case types.StageFeedback:
		return types.RunFinalizing, true
	}
	return "", false
}
