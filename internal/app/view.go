package app

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rc-ventura/smart-grading-assistant/internal/types"
)

var stageLabels = []struct {
	status types.RunStatus
	label  string
}{
	{types.RunValidating, "validate"},
	{types.RunGrading, "grade"},
	{types.RunAggregating, "aggregate"},
	{types.RunAwaitingApproval, "approve"},
	{types.RunFinalizing, "finalize"},
}

func statusIndex(status types.RunStatus) int {
	if status == types.RunComplete {
		return len(stageLabels)
	}
	for i, s := range stageLabels {
		if s.status == status {
			return i
		}
	}
	return -1
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	header := "Smart Grading Assistant"
	if m.fp.Provider != "" {
		header += "  " + statusStyle.Render(m.fp.String())
	}
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n\n")

	if m.startErr != "" {
		b.WriteString(errorStyle.Render("failed to start run: " + m.startErr))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("q quit"))
		return b.String()
	}

	b.WriteString(m.viewProgress())
	b.WriteString("\n")

	if grades := m.viewGrades(); grades != "" {
		b.WriteString("\n")
		b.WriteString(grades)
	}

	switch {
	case m.mode == uiModeAdjustScore:
		b.WriteString("\n")
		b.WriteString(approvalFrameStyle.Render("Adjusted score (0-" + fmt.Sprintf("%.0f", m.maxPossible()) + "): " + m.scoreInput.View()))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter next · esc back"))
	case m.mode == uiModeAdjustFeedback:
		b.WriteString("\n")
		b.WriteString(approvalFrameStyle.Render("Feedback: " + m.feedbackInput.View()))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter submit · esc back"))
	case m.state.PendingApproval != nil:
		b.WriteString("\n")
		b.WriteString(m.viewApprovalPrompt())
	case m.state.Final != nil:
		b.WriteString("\n")
		b.WriteString(m.viewFinal())
	case m.state.Status == types.RunFailed:
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("run failed: " + m.state.TerminalError))
		b.WriteString("\n")
	case m.state.Status == types.RunCancelled:
		b.WriteString("\n")
		b.WriteString(statusStyle.Render("run cancelled"))
		b.WriteString("\n")
	}

	if recents := m.viewRecentRuns(); recents != "" {
		b.WriteString("\n")
		b.WriteString(recents)
	}

	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render(m.helpLine()))
	return b.String()
}

func (m Model) viewProgress() string {
	idx := statusIndex(m.state.Status)
	parts := make([]string, 0, len(stageLabels))
	for i, s := range stageLabels {
		switch {
		case m.state.Status == types.RunComplete || i < idx:
			parts = append(parts, stageDoneStyle.Render("● "+s.label))
		case i == idx:
			label := m.loader.View() + s.label
			parts = append(parts, stageActiveStyle.Render(label))
		default:
			parts = append(parts, stagePendingStyle.Render("○ "+s.label))
		}
	}
	return strings.Join(parts, statusStyle.Render(" → "))
}

func (m Model) viewGrades() string {
	if len(m.state.Grades) == 0 {
		return ""
	}
	names := make([]string, 0, len(m.state.Grades))
	for name := range m.state.Grades {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		g := m.state.Grades[name]
		line := fmt.Sprintf("  %-24s %5.1f/%-5.1f", g.Criterion, g.Score, g.MaxScore)
		if g.Errored {
			b.WriteString(gradeErroredStyle.Render(line + "  " + g.Notes))
		} else {
			b.WriteString(gradeStyle.Render(line))
		}
		b.WriteString("\n")
	}
	if agg := m.state.Aggregate; agg != nil {
		b.WriteString(scoreStyle.Render(fmt.Sprintf("  total %.1f/%.1f (%.1f%%, %s)",
			agg.TotalScore, agg.MaxPossible, agg.Percentage, agg.LetterGrade)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewApprovalPrompt() string {
	req := m.state.PendingApproval
	body := approvalReasonStyle.Render("Approval required: "+req.Reason) + "\n" +
		helpStyle.Render("[a]pprove  [m]anual adjust  [r]egrade  [c]ancel")
	return approvalFrameStyle.Width(m.width - 4).Render(body) + "\n"
}

func (m Model) viewFinal() string {
	final := m.state.Final
	var b strings.Builder
	line := fmt.Sprintf("Final: %.1f/%.1f (%.1f%%, %s)", final.Score, final.MaxScore, final.Percentage, final.LetterGrade)
	if final.ManuallyAdjusted {
		line += "  [adjusted]"
	}
	b.WriteString(scoreStyle.Render(line))
	b.WriteString("\n")
	if final.Feedback != "" {
		b.WriteString(renderMarkdown(final.Feedback, m.width-4))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewRecentRuns() string {
	if !m.state.Status.Terminal() || len(m.recent) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(statusStyle.Render("Recent runs"))
	b.WriteString("\n")
	for _, r := range m.recent {
		line := fmt.Sprintf("  %-10s %-10s", shortID(r.RunID), r.Status)
		if r.Final != nil {
			line += fmt.Sprintf(" %5.1f%% %s", r.Final.Percentage, r.Final.LetterGrade)
		}
		b.WriteString(recentStyle.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) helpLine() string {
	switch {
	case m.mode != uiModeWatch:
		return ""
	case m.state.PendingApproval != nil:
		return "a approve · m adjust · r regrade · c cancel · q quit"
	case m.state.Status == types.RunComplete:
		return "y copy feedback · r regrade · q quit"
	case m.state.Status.Terminal():
		return "r retry · q quit"
	default:
		return "q quit"
	}
}

func (m Model) maxPossible() float64 {
	if m.state.Aggregate != nil {
		return m.state.Aggregate.MaxPossible
	}
	return m.input.Rubric.TotalPoints()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
