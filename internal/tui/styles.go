package tui

import "github.com/charmbracelet/lipgloss"

// Palette shared by the panes and the log.
var (
	white   = lipgloss.Color("#FAFAFA")
	violet  = lipgloss.Color("#7D56F4")
	mint    = lipgloss.Color("#96CEB4")
	gold    = lipgloss.Color("#FFD700")
	coral   = lipgloss.Color("#FF6B6B")
	cream   = lipgloss.Color("#FFEAA7")
	grey    = lipgloss.Color("#626262")
	emerald = lipgloss.Color("#04B575")

	focusColor  = emerald
	borderColor = grey
)

func bold(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c).Bold(true)
}

var (
	SidebarTitleStyle   = bold(white).Background(violet)
	SessionStyle        = lipgloss.NewStyle().Foreground(mint)
	CurrentSessionStyle = bold(gold)

	SuccessStyle = bold(mint)
	ErrorStyle   = bold(coral)
	WarningStyle = bold(cream)
	InfoStyle    = lipgloss.NewStyle().Foreground(grey)
)
