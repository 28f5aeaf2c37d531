package app

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	helpStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	stageDoneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("70"))
	stageActiveStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("110")).Bold(true)
	stagePendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	gradeStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	gradeErroredStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	scoreStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("117")).Bold(true)
	approvalFrameStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("179")).
				Padding(0, 1)
	approvalReasonStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("230"))
	errorStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	recentStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)
