// Package tui provides the terminal chat window for querychat.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/querychat/internal/errors"
	"github.com/diogo/querychat/internal/render"
)

// Color variables (updated from palette)
var (
	colorBorder    lipgloss.Color
	colorMuted     lipgloss.Color
	colorText      lipgloss.Color
	colorUser      lipgloss.Color
	colorAssistant lipgloss.Color
	colorBusy      lipgloss.Color
	colorError     lipgloss.Color
)

// Style variables (rebuilt when the palette changes)
var (
	headerStyle   lipgloss.Style
	titleStyle    lipgloss.Style
	subtitleStyle lipgloss.Style
	hintStyle     lipgloss.Style

	messagesAreaStyle lipgloss.Style

	userBubbleStyle      lipgloss.Style
	userLabelStyle       lipgloss.Style
	assistantBubbleStyle lipgloss.Style
	assistantLabelStyle  lipgloss.Style

	inputPanelStyle lipgloss.Style
	inputLabelStyle lipgloss.Style
	loadingStyle    lipgloss.Style

	statusBarStyle  lipgloss.Style
	statusKeyStyle  lipgloss.Style
	statusDescStyle lipgloss.Style

	errorStyle  lipgloss.Style
	noticeStyle lipgloss.Style
)

func init() {
	UpdateTheme()
}

// UpdateTheme refreshes all styles from the active palette
func UpdateTheme() {
	p := render.CurrentPalette()

	colorBorder = p.Border
	colorMuted = p.Muted
	colorText = p.Text
	colorUser = p.User
	colorAssistant = p.Assistant
	colorBusy = p.Busy
	colorError = p.Error

	rebuildStyles()
}

func rebuildStyles() {
	headerStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 2)

	titleStyle = lipgloss.NewStyle().
		Foreground(colorAssistant).
		Bold(true)

	subtitleStyle = lipgloss.NewStyle().
		Foreground(colorMuted)

	hintStyle = lipgloss.NewStyle().
		Foreground(colorMuted).
		Italic(true)

	messagesAreaStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1)

	userBubbleStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorUser).
		Foreground(colorText).
		Padding(0, 1).
		MarginLeft(4)

	userLabelStyle = lipgloss.NewStyle().
		Foreground(colorUser).
		Bold(true).
		MarginLeft(4)

	assistantBubbleStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorAssistant).
		Foreground(colorText).
		Padding(0, 1).
		MarginRight(4)

	assistantLabelStyle = lipgloss.NewStyle().
		Foreground(colorAssistant).
		Bold(true)

	inputPanelStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1)

	inputLabelStyle = lipgloss.NewStyle().
		Foreground(colorUser).
		Bold(true)

	loadingStyle = lipgloss.NewStyle().
		Foreground(colorBusy).
		Bold(true)

	statusBarStyle = lipgloss.NewStyle().
		Foreground(colorMuted)

	statusKeyStyle = lipgloss.NewStyle().
		Foreground(colorText).
		Bold(true)

	statusDescStyle = lipgloss.NewStyle().
		Foreground(colorMuted)

	errorStyle = lipgloss.NewStyle().
		Foreground(colorError).
		Bold(true)

	noticeStyle = lipgloss.NewStyle().
		Foreground(colorMuted).
		Italic(true)
}

// FormatError returns a styled error message with the structured details
// carried by querychat's error types and a hint on what to check.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	dimStyle := lipgloss.NewStyle().Foreground(colorMuted).PaddingLeft(2)

	var sb strings.Builder
	sb.WriteString(errorStyle.Render(fmt.Sprintf("✗ %v", err)))

	if status := errors.GetHTTPStatus(err); status > 0 {
		sb.WriteString("\n" + dimStyle.Render(fmt.Sprintf("HTTP Status: %d", status)))
	}

	if endpoint := errors.GetEndpoint(err); endpoint != "" {
		sb.WriteString("\n" + dimStyle.Render("Endpoint: "+endpoint))
	}

	switch {
	case errors.IsTimeoutError(err):
		sb.WriteString("\n" + dimStyle.Render("Hint: no reply arrived in time; press Enter to ask again"))
	case errors.IsNetworkError(err):
		sb.WriteString("\n" + dimStyle.Render("Hint: check that the backend is running and reachable"))
	case errors.IsParseError(err):
		sb.WriteString("\n" + dimStyle.Render("Hint: the backend reply had no usable response_message"))
	case errors.IsAPIError(err):
		if body := errors.GetResponseBody(err); body != "" {
			sb.WriteString("\n" + dimStyle.Render(body))
		}
	}

	return sb.String()
}
