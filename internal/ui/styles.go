// Package ui renders the scan queue and incoming issues in the terminal.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/fluxfuzzer/fluxscan/pkg/types"
)

// Color palette
var (
	ColorCyan    = lipgloss.Color("#00FFFF")
	ColorMagenta = lipgloss.Color("#FF00FF")
	ColorGreen   = lipgloss.Color("#00FF00")
	ColorYellow  = lipgloss.Color("#FFFF00")
	ColorRed     = lipgloss.Color("#FF0055")
	ColorOrange  = lipgloss.Color("#FF8800")

	ColorHeaderBg   = lipgloss.Color("#16213E")
	ColorDimText    = lipgloss.Color("#666666")
	ColorBrightText = lipgloss.Color("#FFFFFF")
)

// Style definitions
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorMagenta).
			Background(ColorHeaderBg).
			Padding(0, 2)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorCyan).
			Padding(0, 1)

	IssuePanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMagenta).
			Padding(0, 1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorDimText)

	ValueStyle = lipgloss.NewStyle().
			Foreground(ColorBrightText).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorDimText)

	KeyStyle = lipgloss.NewStyle().
			Foreground(ColorCyan).
			Bold(true)

	ProgressFullStyle  = lipgloss.NewStyle().Foreground(ColorCyan)
	ProgressEmptyStyle = lipgloss.NewStyle().Foreground(ColorDimText)

	SpinnerChars = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
)

// statusStyles colours each scan status
var statusStyles = map[types.ScanStatus]lipgloss.Style{
	types.StatusQueued:    lipgloss.NewStyle().Foreground(ColorYellow),
	types.StatusRunning:   lipgloss.NewStyle().Foreground(ColorCyan).Bold(true),
	types.StatusCompleted: lipgloss.NewStyle().Foreground(ColorGreen),
	types.StatusError:     lipgloss.NewStyle().Foreground(ColorRed).Bold(true),
}

// RenderStatus renders a scan status with its colour
func RenderStatus(s types.ScanStatus) string {
	return statusStyles[s].Render(s.String())
}

// RenderSeverity renders a severity label with its colour
func RenderSeverity(s types.Severity) string {
	style := lipgloss.NewStyle().Foreground(ColorDimText)
	switch s {
	case types.Critical, types.High:
		style = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	case types.Medium:
		style = lipgloss.NewStyle().Foreground(ColorOrange)
	case types.Low:
		style = lipgloss.NewStyle().Foreground(ColorYellow)
	}
	return style.Render(s.String())
}

// RenderLabelValue renders a label-value pair
func RenderLabelValue(label, value string) string {
	return LabelStyle.Render(label+":") + " " + ValueStyle.Render(value)
}

// RenderHelp renders a key binding hint
func RenderHelp(key, description string) string {
	return KeyStyle.Render("["+key+"]") + " " + HelpStyle.Render(description)
}
