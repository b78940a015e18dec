package ui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5")).Background(lipgloss.Color("62")).Padding(0, 1)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#AFAFAF"))
	noteStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	userLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	botLabelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	timeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	sourceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#AFAFAF")).MarginLeft(2)
	emptyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Align(lipgloss.Center).PaddingTop(2)

	articlePane = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("170")).
			Padding(0, 1)

	articleTitleStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("62")).
				Foreground(lipgloss.Color("#FFFFFF")).
				Padding(0, 1).
				Bold(true)

	closeHelpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)
