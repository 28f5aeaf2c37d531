package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/rc-ventura/smart-grading-assistant/internal/logging"
	"github.com/rc-ventura/smart-grading-assistant/internal/registry"
	"github.com/rc-ventura/smart-grading-assistant/internal/rubric"
	"github.com/rc-ventura/smart-grading-assistant/internal/scoring"
	"github.com/rc-ventura/smart-grading-assistant/internal/types"
)

var (
	// ErrNoPausedInvocation is returned through the event stream when a
	// Resume names an invocation that was never parked or was already
	// consumed.
	ErrNoPausedInvocation = errors.New("no paused invocation with that id")
	// ErrMissingAdjustment marks a manual_adjust decision without the
	// teacher-supplied replacement grade.
	ErrMissingAdjustment = errors.New("manual_adjust decision carries no adjustment")
)

// defaultParallelism caps concurrent criterion graders.
const defaultParallelism = 3

// Backend runs the grading stages and reports progress as a finite
// sequence of StageEvents. Each Run or Resume call produces its own
// channel; the channel is closed when the run reaches a terminal state
// or pauses for approval, and its events are never rewound.
type Backend struct {
	gate        scoring.GatePolicy
	logger      logging.Logger
	parallelism int
	newID       func() string
}

func New(gate scoring.GatePolicy, logger logging.Logger) *Backend {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Backend{
		gate:        gate,
		logger:      logger,
		parallelism: defaultParallelism,
		newID:       uuid.NewString,
	}
}

// pausedRun is what the gate parks in the execution context while it
// waits for a teacher decision.
type pausedRun struct {
	Input     types.GradingInput
	Aggregate types.AggregationResult
}

// Run evaluates input through validating, grading, aggregating and, if
// no approval is needed, feedback. When the gate triggers, the stream
// ends with an approval-required event carrying a fresh invocation id;
// the run continues only through Resume with that id.
func (b *Backend) Run(ctx context.Context, input types.GradingInput, ectx *registry.ExecutionContext) <-chan types.StageEvent {
	events := make(chan types.StageEvent, 16)
	go func() {
		defer close(events)
		b.run(ctx, events, input, ectx)
	}()
	return events
}

func (b *Backend) run(ctx context.Context, events chan<- types.StageEvent, input types.GradingInput, ectx *registry.ExecutionContext) {
	events <- types.StageEvent{Kind: types.EventStageStart, Stage: types.StageValidating}
	r := input.Rubric
	if len(r.Criteria) == 0 && input.RubricJSON != "" {
		var result rubric.ValidationResult
		r, result = rubric.Parse(input.RubricJSON)
		if err := result.Err(); err != nil {
			b.fail(events, types.StageValidating, err)
			return
		}
	} else if err := rubric.Validate(r).Err(); err != nil {
		b.fail(events, types.StageValidating, err)
		return
	}
	events <- types.StageEvent{
		Kind:    types.EventStageComplete,
		Stage:   types.StageValidating,
		Message: fmt.Sprintf("rubric %q: %d criteria, %.0f points", r.Name, len(r.Criteria), r.TotalPoints()),
	}

	events <- types.StageEvent{Kind: types.EventStageStart, Stage: types.StageGrading}
	grades, err := b.gradeAll(ctx, events, r, input.Submission, ectx)
	if err != nil {
		b.finish(events, types.FinishCancelled, nil)
		return
	}
	events <- types.StageEvent{Kind: types.EventStageComplete, Stage: types.StageGrading}

	events <- types.StageEvent{Kind: types.EventStageStart, Stage: types.StageAggregating}
	agg, err := scoring.Aggregate(grades)
	if err != nil {
		b.fail(events, types.StageAggregating, err)
		return
	}
	events <- types.StageEvent{Kind: types.EventStageComplete, Stage: types.StageAggregating, Aggregate: &agg}

	if reason, gated := b.gate.Evaluate(agg); gated {
		invocationID := b.newID()
		if err := ectx.Stash(invocationID, pausedRun{Input: input, Aggregate: agg}); err != nil {
			b.fail(events, types.StageApproval, err)
			return
		}
		b.logger.Info("run paused for approval",
			logging.F("invocation_id", invocationID), logging.F("reason", reason))
		events <- types.StageEvent{
			Kind:         types.EventApprovalRequired,
			Stage:        types.StageApproval,
			InvocationID: invocationID,
			Message:      reason,
			Aggregate:    &agg,
		}
		return
	}

	b.finalize(ctx, events, input, agg, ectx)
}

// Resume consumes the paused invocation and applies the teacher's
// decision. A decision for an unknown or already-consumed invocation
// fails the stream without touching any other state.
func (b *Backend) Resume(ctx context.Context, invocationID string, decision types.ApprovalDecision, ectx *registry.ExecutionContext) <-chan types.StageEvent {
	events := make(chan types.StageEvent, 16)
	go func() {
		defer close(events)
		b.resume(ctx, events, invocationID, decision, ectx)
	}()
	return events
}

func (b *Backend) resume(ctx context.Context, events chan<- types.StageEvent, invocationID string, decision types.ApprovalDecision, ectx *registry.ExecutionContext) {
	value, ok := ectx.Take(invocationID)
	if !ok {
		b.fail(events, types.StageApproval, fmt.Errorf("%w: %s", ErrNoPausedInvocation, invocationID))
		return
	}
	parked := value.(pausedRun)

	events <- types.StageEvent{
		Kind:         types.EventStageComplete,
		Stage:        types.StageApproval,
		InvocationID: invocationID,
		Message:      string(decision.Outcome),
	}

	switch decision.Outcome {
	case types.DecisionApprove:
		b.finalize(ctx, events, parked.Input, parked.Aggregate, ectx)
	case types.DecisionManualAdjust:
		if decision.Adjustment == nil {
			b.fail(events, types.StageApproval, ErrMissingAdjustment)
			return
		}
		final := adjustedGrade(*decision.Adjustment, parked.Aggregate)
		b.finish(events, types.FinishCompleted, &final)
	case types.DecisionRegrade:
		b.finish(events, types.FinishRegrade, nil)
	case types.DecisionCancel:
		b.finish(events, types.FinishCancelled, nil)
	default:
		b.fail(events, types.StageApproval, fmt.Errorf("unknown decision outcome %q", decision.Outcome))
	}
}

// gradeAll fans criterion graders out in parallel and forwards each
// result as it lands. A criterion whose calls exhaust the client's
// budget is recorded errored with score zero, never defaulted to a
// passing grade. Returns an error only on context cancellation.
func (b *Backend) gradeAll(ctx context.Context, events chan<- types.StageEvent, r types.Rubric, submission string, ectx *registry.ExecutionContext) ([]types.CriterionGrade, error) {
	type indexed struct {
		pos   int
		grade types.CriterionGrade
	}
	results := make(chan indexed, len(r.Criteria))
	sem := make(chan struct{}, b.parallelism)
	var wg sync.WaitGroup
	for i, c := range r.Criteria {
		wg.Add(1)
		go func(pos int, c types.Criterion) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results <- indexed{pos: pos, grade: b.gradeOne(ctx, c, submission, ectx)}
		}(i, c)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]indexed, 0, len(r.Criteria))
	for res := range results {
		if ctx.Err() != nil {
			continue
		}
		events <- types.StageEvent{Kind: types.EventCriterionResult, Stage: types.StageGrading, Grade: &res.grade}
		collected = append(collected, res)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].pos < collected[j].pos })
	grades := make([]types.CriterionGrade, len(collected))
	for i, res := range collected {
		grades[i] = res.grade
	}
	return grades, nil
}

func (b *Backend) gradeOne(ctx context.Context, c types.Criterion, submission string, ectx *registry.ExecutionContext) types.CriterionGrade {
	raw, err := ectx.Client().Complete(ctx, graderRequest(c, submission))
	if err != nil {
		b.logger.Warn("criterion grading failed", logging.F("criterion", c.Name), logging.F("error", err))
		return types.CriterionGrade{
			Criterion: c.Name,
			MaxScore:  c.MaxScore,
			Notes:     "grading failed: " + err.Error(),
			Errored:   true,
		}
	}
	grade, err := decodeGraderOutput(raw, c)
	if err != nil {
		b.logger.Warn("criterion output unreadable", logging.F("criterion", c.Name), logging.F("error", err))
		return types.CriterionGrade{
			Criterion: c.Name,
			MaxScore:  c.MaxScore,
			Notes:     "grading failed: " + err.Error(),
			Errored:   true,
		}
	}
	return grade
}

// finalize runs the feedback stage and ends a successful run.
func (b *Backend) finalize(ctx context.Context, events chan<- types.StageEvent, input types.GradingInput, agg types.AggregationResult, ectx *registry.ExecutionContext) {
	events <- types.StageEvent{Kind: types.EventStageStart, Stage: types.StageFeedback}
	raw, err := ectx.Client().Complete(ctx, feedbackRequest(input, agg))
	if err != nil {
		b.fail(events, types.StageFeedback, err)
		return
	}
	feedback, err := decodeFeedbackOutput(raw)
	if err != nil {
		b.fail(events, types.StageFeedback, err)
		return
	}
	final := types.FinalGrade{
		Score:       agg.TotalScore,
		MaxScore:    agg.MaxPossible,
		Percentage:  agg.Percentage,
		LetterGrade: agg.LetterGrade,
		Feedback:    renderFeedback(feedback),
	}
	events <- types.StageEvent{Kind: types.EventStageComplete, Stage: types.StageFeedback, Final: &final}
	b.finish(events, types.FinishCompleted, &final)
}

func (b *Backend) finish(events chan<- types.StageEvent, reason types.FinishReason, final *types.FinalGrade) {
	events <- types.StageEvent{Kind: types.EventFinished, Reason: reason, Final: final}
}

func (b *Backend) fail(events chan<- types.StageEvent, stage types.Stage, err error) {
	b.logger.Error("stage failed", logging.F("stage", string(stage)), logging.F("error", err))
	events <- types.StageEvent{Kind: types.EventError, Stage: stage, Err: err.Error(), Fatal: true}
}

// adjustedGrade builds the final grade from a teacher substitution. The
// teacher's feedback is used verbatim; no automatic feedback runs.
func adjustedGrade(adj types.ManualAdjustment, agg types.AggregationResult) types.FinalGrade {
	score := adj.Score
	if score < 0 {
		score = 0
	}
	if score > agg.MaxPossible {
		score = agg.MaxPossible
	}
	pct := math.Round(score/agg.MaxPossible*100*10) / 10
	letter := adj.LetterGrade
	if letter == "" {
		letter = scoring.LetterGrade(pct)
	}
	return types.FinalGrade{
		Score:            score,
		MaxScore:         agg.MaxPossible,
		Percentage:       pct,
		LetterGrade:      letter,
		Feedback:         adj.Feedback,
		ManuallyAdjusted: true,
	}
}
