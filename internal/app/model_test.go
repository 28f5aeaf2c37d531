package app

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rc-ventura/smart-grading-assistant/internal/llm"
	"github.com/rc-ventura/smart-grading-assistant/internal/logging"
	"github.com/rc-ventura/smart-grading-assistant/internal/registry"
	"github.com/rc-ventura/smart-grading-assistant/internal/run"
	"github.com/rc-ventura/smart-grading-assistant/internal/types"
)

type stubClient struct{}

func (stubClient) Complete(context.Context, llm.Request) (string, error) { return "", nil }
func (stubClient) Provider() string                                      { return "fake" }
func (stubClient) Model() string                                         { return "" }

// gateBackend pauses every run at the approval gate and records the
// decisions it is resumed with.
type gateBackend struct {
	mu        sync.Mutex
	decisions []types.ApprovalDecision
}

func (g *gateBackend) Run(ctx context.Context, _ types.GradingInput, _ *registry.ExecutionContext) <-chan types.StageEvent {
	ch := make(chan types.StageEvent, 8)
	agg := &types.AggregationResult{TotalScore: 40, MaxPossible: 100, Percentage: 40, LetterGrade: "F"}
	ch <- types.StageEvent{Kind: types.EventStageStart, Stage: types.StageValidating}
	ch <- types.StageEvent{Kind: types.EventStageComplete, Stage: types.StageValidating}
	ch <- types.StageEvent{Kind: types.EventStageComplete, Stage: types.StageAggregating, Aggregate: agg}
	ch <- types.StageEvent{Kind: types.EventApprovalRequired, Stage: types.StageApproval,
		InvocationID: "inv-1", Message: "score 40.0% is below the passing threshold (50%)", Aggregate: agg}
	close(ch)
	return ch
}

func (g *gateBackend) Resume(ctx context.Context, _ string, decision types.ApprovalDecision, _ *registry.ExecutionContext) <-chan types.StageEvent {
	g.mu.Lock()
	g.decisions = append(g.decisions, decision)
	g.mu.Unlock()
	ch := make(chan types.StageEvent, 2)
	ch <- types.StageEvent{Kind: types.EventFinished, Reason: types.FinishCompleted,
		Final: &types.FinalGrade{Score: 40, MaxScore: 100, Percentage: 40, LetterGrade: "F", Feedback: "ok"}}
	close(ch)
	return ch
}

func (g *gateBackend) recorded() []types.ApprovalDecision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]types.ApprovalDecision(nil), g.decisions...)
}

func newGatedModel(t *testing.T) (Model, *gateBackend) {
	t.Helper()
	reg, err := registry.NewRegistry(func(registry.Fingerprint) (llm.Client, error) {
		return stubClient{}, nil
	}, logging.Nop())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	t.Cleanup(reg.Close)
	backend := &gateBackend{}
	ctrl := run.NewController(backend, reg, nil, logging.Nop())
	t.Cleanup(ctrl.Close)

	input := types.GradingInput{
		Rubric:     types.Rubric{Name: "r", Criteria: []types.Criterion{{Name: "Quality", Description: "d", MaxScore: 100}}},
		Submission: "x",
	}
	fp := registry.Fingerprint{Provider: "fake"}
	m := NewModel(ctrl, nil, input, fp)

	h, err := ctrl.Start(input, fp)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	model, _ := m.Update(runStartedMsg{handle: h})
	m = model.(Model)

	waitForStatus(t, ctrl, h, types.RunAwaitingApproval)
	model, _ = m.Update(tickMsg{})
	return model.(Model), backend
}

func waitForStatus(t *testing.T, ctrl *run.Controller, h *run.Handle, want types.RunStatus) {
	t.Helper()
	for i := 0; i < 500; i++ {
		if ctrl.Snapshot(h).Status == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("run never reached %s, at %s", want, ctrl.Snapshot(h).Status)
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestViewShowsApprovalPrompt(t *testing.T) {
	m, _ := newGatedModel(t)
	view := m.View()
	if !strings.Contains(view, "Approval required") || !strings.Contains(view, "below the passing threshold") {
		t.Fatalf("approval prompt missing from view:\n%s", view)
	}
	if !strings.Contains(view, "[a]pprove") {
		t.Fatalf("approval keys missing from view:\n%s", view)
	}
}

func TestApproveKeySubmitsDecision(t *testing.T) {
	m, backend := newGatedModel(t)
	model, _ := m.Update(keyRune('a'))
	m = model.(Model)
	if !strings.Contains(m.status, "approve") {
		t.Fatalf("unexpected status: %q", m.status)
	}
	decisions := backend.recorded()
	if len(decisions) != 1 || decisions[0].Outcome != types.DecisionApprove {
		t.Fatalf("unexpected decisions: %+v", decisions)
	}
	if decisions[0].InvocationID != "inv-1" {
		t.Fatalf("decision must carry the pending invocation id")
	}
}

func TestManualAdjustFlow(t *testing.T) {
	m, backend := newGatedModel(t)

	model, _ := m.Update(keyRune('m'))
	m = model.(Model)
	if m.mode != uiModeAdjustScore {
		t.Fatalf("expected adjust score mode")
	}
	for _, r := range "85" {
		model, _ = m.Update(keyRune(r))
		m = model.(Model)
	}
	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = model.(Model)
	if m.mode != uiModeAdjustFeedback {
		t.Fatalf("expected adjust feedback mode, status %q", m.status)
	}
	for _, r := range "good" {
		model, _ = m.Update(keyRune(r))
		m = model.(Model)
	}
	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = model.(Model)

	decisions := backend.recorded()
	if len(decisions) != 1 || decisions[0].Outcome != types.DecisionManualAdjust {
		t.Fatalf("unexpected decisions: %+v", decisions)
	}
	if decisions[0].Adjustment == nil || decisions[0].Adjustment.Score != 85 || decisions[0].Adjustment.Feedback != "good" {
		t.Fatalf("unexpected adjustment: %+v", decisions[0].Adjustment)
	}
}

func TestAdjustScoreRejectsNonNumeric(t *testing.T) {
	m, _ := newGatedModel(t)
	model, _ := m.Update(keyRune('m'))
	m = model.(Model)
	for _, r := range "abc" {
		model, _ = m.Update(keyRune(r))
		m = model.(Model)
	}
	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = model.(Model)
	if m.mode != uiModeAdjustScore {
		t.Fatalf("non-numeric score must stay in score entry")
	}
	if !strings.Contains(m.status, "number") {
		t.Fatalf("expected validation status, got %q", m.status)
	}
}

func TestStaleDecisionIsRejected(t *testing.T) {
	m, backend := newGatedModel(t)
	model, _ := m.Update(keyRune('a'))
	m = model.(Model)

	// the snapshot still shows the old pending request; the controller
	// must reject the duplicate decision
	model, _ = m.Update(keyRune('a'))
	m = model.(Model)
	if !strings.Contains(m.status, "decision rejected") {
		t.Fatalf("expected rejection status, got %q", m.status)
	}
	if got := len(backend.recorded()); got != 1 {
		t.Fatalf("duplicate decision must not reach the backend, got %d", got)
	}
}
