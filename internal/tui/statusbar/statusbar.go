package statusbar

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/joacominatel/pgstream/internal/tui/theme"
)

const defaultHints = "ctrl+e: stream │ tab: pane │ ?: help │ ctrl+c: quit"

// Model is the one-line status bar.
type Model struct {
	width     int
	connected bool
	database  string
	pane      string
	stream    string
	message   string
}

// New creates a new status bar model.
func New() Model {
	return Model{}
}

// SetWidth updates the component width.
func (m *Model) SetWidth(w int) {
	m.width = w
}

// SetConnected updates the connection indicator.
func (m *Model) SetConnected(connected bool, database string) {
	m.connected = connected
	m.database = database
}

// SetActivePane updates the displayed pane name.
func (m *Model) SetActivePane(pane string) {
	m.pane = pane
}

// SetStream sets the stream summary; empty hides it.
func (m *Model) SetStream(summary string) {
	m.stream = summary
}

// SetMessage sets a transient message shown instead of the key hints.
func (m *Model) SetMessage(msg string) {
	m.message = msg
}

// View renders the status bar.
func (m Model) View() string {
	dot := lipgloss.NewStyle().Foreground(theme.ColorError).Render("●")
	left := dot + " disconnected"
	if m.connected {
		dot = lipgloss.NewStyle().Foreground(theme.ColorSuccess).Render("●")
		left = dot + " " + m.database
	}
	if m.pane != "" {
		left += theme.StyleMuted.Render(" [" + m.pane + "]")
	}
	if m.stream != "" {
		left += "  " + m.stream
	}

	right := defaultHints
	if m.message != "" {
		right = m.message
	}

	// Two cells of padding from StyleStatusBar.
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)

	return theme.StyleStatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}
