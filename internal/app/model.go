package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rc-ventura/smart-grading-assistant/internal/registry"
	"github.com/rc-ventura/smart-grading-assistant/internal/run"
	"github.com/rc-ventura/smart-grading-assistant/internal/store"
	"github.com/rc-ventura/smart-grading-assistant/internal/types"
)

const (
	tickInterval    = 100 * time.Millisecond
	recentRunsShown = 5
	minContentWidth = 40
)

type uiMode int

const (
	uiModeWatch uiMode = iota
	uiModeAdjustScore
	uiModeAdjustFeedback
)

type Model struct {
	ctrl   *run.Controller
	runs   store.RunStore
	input  types.GradingInput
	fp     registry.Fingerprint
	handle *run.Handle

	state         types.RunState
	mode          uiMode
	scoreInput    textinput.Model
	feedbackInput textinput.Model
	adjustScore   float64
	loader        spinner.Model
	width         int
	height        int
	status        string
	startErr      string
	recent        []types.RunState
	recentLoaded  bool
	quitting      bool
}

// NewModel builds the TUI model. runsStore may be nil when no archive
// is configured; the recent-runs pane is then hidden.
func NewModel(ctrl *run.Controller, runsStore store.RunStore, input types.GradingInput, fp registry.Fingerprint) Model {
	scoreInput := textinput.New()
	scoreInput.Placeholder = "adjusted score"
	scoreInput.CharLimit = 8
	scoreInput.Width = 12

	feedbackInput := textinput.New()
	feedbackInput.Placeholder = "feedback for the student"
	feedbackInput.CharLimit = 400
	feedbackInput.Width = 60

	loader := spinner.New(spinner.WithSpinner(spinner.Dot))

	return Model{
		ctrl:          ctrl,
		runs:          runsStore,
		input:         input,
		fp:            fp,
		scoreInput:    scoreInput,
		feedbackInput: feedbackInput,
		loader:        loader,
		width:         minContentWidth,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.startRun(), m.tick(), m.loader.Tick)
}

func (m Model) startRun() tea.Cmd {
	ctrl, input, fp := m.ctrl, m.input, m.fp
	return func() tea.Msg {
		h, err := ctrl.Start(input, fp)
		return runStartedMsg{handle: h, err: err}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) loadRecentRuns() tea.Cmd {
	runsStore := m.runs
	return func() tea.Msg {
		states, err := runsStore.RecentRuns(recentRunsShown)
		return recentRunsMsg{runs: states, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runStartedMsg:
		if msg.err != nil {
			m.startErr = msg.err.Error()
			return m, nil
		}
		m.handle = msg.handle
		return m, nil
	case runRestartedMsg:
		if msg.err != nil {
			m.status = "restart failed: " + msg.err.Error()
			return m, nil
		}
		m.handle = msg.handle
		m.recentLoaded = false
		m.status = ""
		return m, nil
	case tickMsg:
		if m.quitting {
			return m, nil
		}
		var cmds []tea.Cmd
		if m.handle != nil {
			m.state = m.ctrl.Snapshot(m.handle)
			if m.state.Status.Terminal() && !m.recentLoaded && m.runs != nil {
				m.recentLoaded = true
				cmds = append(cmds, m.loadRecentRuns())
			}
		}
		cmds = append(cmds, m.tick())
		return m, tea.Batch(cmds...)
	case recentRunsMsg:
		if msg.err == nil {
			m.recent = msg.runs
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.loader, cmd = m.loader.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.width < minContentWidth {
			m.width = minContentWidth
		}
		m.feedbackInput.Width = m.width - 10
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}
	switch m.mode {
	case uiModeAdjustScore:
		return m.handleAdjustScoreKey(msg)
	case uiModeAdjustFeedback:
		return m.handleAdjustFeedbackKey(msg)
	}

	switch msg.String() {
	case "q":
		return m.quit()
	case "a":
		return m.decide(types.DecisionApprove, nil)
	case "m":
		if m.state.PendingApproval == nil {
			return m, nil
		}
		m.mode = uiModeAdjustScore
		m.scoreInput.SetValue("")
		m.scoreInput.Focus()
		return m, textinput.Blink
	case "r":
		if m.state.PendingApproval != nil {
			return m.decide(types.DecisionRegrade, nil)
		}
		if m.state.Status.Terminal() && m.handle != nil {
			return m, m.restartRun()
		}
		return m, nil
	case "c":
		return m.decide(types.DecisionCancel, nil)
	case "y":
		if m.state.Final != nil {
			m.copyWithStatus(m.state.Final.Feedback, "feedback copied")
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleAdjustScoreKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = uiModeWatch
		m.scoreInput.Blur()
		return m, nil
	case "enter":
		score, err := strconv.ParseFloat(strings.TrimSpace(m.scoreInput.Value()), 64)
		if err != nil {
			m.status = "score must be a number"
			return m, nil
		}
		m.adjustScore = score
		m.mode = uiModeAdjustFeedback
		m.scoreInput.Blur()
		m.feedbackInput.SetValue("")
		m.feedbackInput.Focus()
		m.status = ""
		return m, textinput.Blink
	}
	var cmd tea.Cmd
	m.scoreInput, cmd = m.scoreInput.Update(msg)
	return m, cmd
}

func (m Model) handleAdjustFeedbackKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = uiModeWatch
		m.feedbackInput.Blur()
		return m, nil
	case "enter":
		m.mode = uiModeWatch
		m.feedbackInput.Blur()
		return m.decide(types.DecisionManualAdjust, &types.ManualAdjustment{
			Score:    m.adjustScore,
			Feedback: strings.TrimSpace(m.feedbackInput.Value()),
		})
	}
	var cmd tea.Cmd
	m.feedbackInput, cmd = m.feedbackInput.Update(msg)
	return m, cmd
}

func (m Model) decide(outcome types.DecisionOutcome, adjustment *types.ManualAdjustment) (tea.Model, tea.Cmd) {
	pending := m.state.PendingApproval
	if pending == nil || m.handle == nil {
		return m, nil
	}
	err := m.ctrl.SubmitDecision(m.handle, types.ApprovalDecision{
		InvocationID: pending.InvocationID,
		Outcome:      outcome,
		Adjustment:   adjustment,
		DecidedAt:    time.Now().UTC(),
	})
	if err != nil {
		m.status = "decision rejected: " + err.Error()
		return m, nil
	}
	m.status = fmt.Sprintf("decision: %s", outcome)
	return m, nil
}

func (m Model) restartRun() tea.Cmd {
	ctrl, handle := m.ctrl, m.handle
	return func() tea.Msg {
		h, err := ctrl.Restart(handle)
		return runRestartedMsg{handle: h, err: err}
	}
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.handle != nil && !m.state.Status.Terminal() {
		m.ctrl.Cancel(m.handle)
	}
	return m, tea.Quit
}

// Run starts the TUI program and blocks until it exits.
func Run(ctrl *run.Controller, runsStore store.RunStore, input types.GradingInput, fp registry.Fingerprint) error {
	p := tea.NewProgram(NewModel(ctrl, runsStore, input, fp), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
