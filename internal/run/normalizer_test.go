package run

import (
	"errors"
	"testing"
	"time"

	"github.com/rc-ventura/smart-grading-assistant/internal/types"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestNormalizeDeduplicatesStageEvents(t *testing.T) {
	n := NewNormalizer("r1", fixedNow)
	ev := types.StageEvent{Kind: types.EventStageStart, Stage: types.StageGrading}

	delta, ok := n.Normalize(ev)
	if !ok || delta.Kind != DeltaStatus || delta.Status != types.RunGrading {
		t.Fatalf("unexpected first delta: %+v %v", delta, ok)
	}
	if _, ok := n.Normalize(ev); ok {
		t.Fatalf("duplicate (stage, kind) must be dropped")
	}
}

func TestNormalizeCriterionResultsKeyedByCriterion(t *testing.T) {
	n := NewNormalizer("r1", fixedNow)
	first := types.StageEvent{Kind: types.EventCriterionResult, Stage: types.StageGrading,
		Grade: &types.CriterionGrade{Criterion: "Code Quality", Score: 25, MaxScore: 30}}
	second := types.StageEvent{Kind: types.EventCriterionResult, Stage: types.StageGrading,
		Grade: &types.CriterionGrade{Criterion: "Functionality", Score: 35, MaxScore: 40}}

	if _, ok := n.Normalize(first); !ok {
		t.Fatalf("first criterion must pass")
	}
	if _, ok := n.Normalize(second); !ok {
		t.Fatalf("distinct criterion must pass")
	}
	if _, ok := n.Normalize(first); ok {
		t.Fatalf("repeated criterion must be dropped")
	}
}

func TestNormalizeApprovalBuildsRequest(t *testing.T) {
	n := NewNormalizer("r1", fixedNow)
	agg := types.AggregationResult{TotalScore: 40, MaxPossible: 100, Percentage: 40, LetterGrade: "F"}
	delta, ok := n.Normalize(types.StageEvent{
		Kind:         types.EventApprovalRequired,
		Stage:        types.StageApproval,
		InvocationID: "inv-9",
		Message:      "score 40.0% is below the passing threshold (50%)",
		Aggregate:    &agg,
	})
	if !ok || delta.Kind != DeltaApproval {
		t.Fatalf("unexpected delta: %+v %v", delta, ok)
	}
	req := delta.Approval
	if req.RunID != "r1" || req.InvocationID != "inv-9" {
		t.Fatalf("request binding fields wrong: %+v", req)
	}
	if req.SubjectSnapshot.Percentage != 40 {
		t.Fatalf("request must carry the aggregate snapshot: %+v", req.SubjectSnapshot)
	}
	if !req.CreatedAt.Equal(fixedNow()) {
		t.Fatalf("unexpected CreatedAt: %v", req.CreatedAt)
	}
}

func TestNormalizeErrorBecomesTypedDelta(t *testing.T) {
	n := NewNormalizer("r1", fixedNow)
	delta, ok := n.Normalize(types.StageEvent{Kind: types.EventError, Stage: types.StageAggregating, Err: "boom", Fatal: true})
	if !ok || delta.Kind != DeltaError || !delta.Fatal {
		t.Fatalf("unexpected delta: %+v %v", delta, ok)
	}
	if delta.Err == nil || !errors.Is(delta.Err, ErrRunFailed) {
		t.Fatalf("expected ErrRunFailed wrap, got %v", delta.Err)
	}
}

func TestNormalizeResetAllowsFreshPass(t *testing.T) {
	n := NewNormalizer("r1", fixedNow)
	ev := types.StageEvent{Kind: types.EventStageStart, Stage: types.StageValidating}
	if _, ok := n.Normalize(ev); !ok {
		t.Fatalf("first pass must apply")
	}
	n.Reset()
	if _, ok := n.Normalize(ev); !ok {
		t.Fatalf("reset must clear the dedup history")
	}
}
