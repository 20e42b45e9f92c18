package board

import (
	"github.com/benvon/taskboard/internal/models"
	"github.com/charmbracelet/lipgloss"
)

// Colors using AdaptiveColor for light/dark terminal support.
var (
	colorWhite  = lipgloss.AdaptiveColor{Light: "0", Dark: "15"}
	colorDim    = lipgloss.AdaptiveColor{Light: "242", Dark: "240"}
	colorGreen  = lipgloss.AdaptiveColor{Light: "28", Dark: "40"}
	colorRed    = lipgloss.AdaptiveColor{Light: "160", Dark: "196"}
	colorYellow = lipgloss.AdaptiveColor{Light: "136", Dark: "220"}
	colorCyan   = lipgloss.AdaptiveColor{Light: "30", Dark: "45"}
	colorBlue   = lipgloss.AdaptiveColor{Light: "25", Dark: "39"}
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)

	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)

	focusedColumnStyle = columnStyle.
				BorderForeground(colorWhite)

	columnTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorWhite)

	selectedTaskStyle = lipgloss.NewStyle().
				Reverse(true)

	unreadDotStyle = lipgloss.NewStyle().Foreground(colorBlue).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(colorDim)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorWhite).
			Background(lipgloss.AdaptiveColor{Light: "235", Dark: "236"})

	errorBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(colorRed)

	noticeBarStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	confirmBarStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorCyan).
			Padding(0, 1)

	profitStyle = lipgloss.NewStyle().Foreground(colorGreen)
	lossStyle   = lipgloss.NewStyle().Foreground(colorRed)

	formStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBlue).
			Padding(0, 1)

	formHeadingStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	focusedFieldStyle = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)

	humanAuthorStyle = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	agentAuthorStyle = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
)

func priorityStyle(p models.TaskPriority) lipgloss.Style {
	switch p {
	case models.TaskPriorityHigh:
		return lipgloss.NewStyle().Foreground(colorRed)
	case models.TaskPriorityLow:
		return dimStyle
	default:
		return lipgloss.NewStyle().Foreground(colorYellow)
	}
}

func authorStyle(p models.Party) lipgloss.Style {
	if p == models.PartyAgent {
		return agentAuthorStyle
	}
	return humanAuthorStyle
}
