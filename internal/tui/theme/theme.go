package theme

import "github.com/charmbracelet/lipgloss"

// Palette, 256-color so it renders the same on most terminals.
var (
	ColorPrimary   = lipgloss.Color("39")  // blue
	ColorSecondary = lipgloss.Color("241") // gray
	ColorSuccess   = lipgloss.Color("42")  // green
	ColorWarning   = lipgloss.Color("214") // orange
	ColorError     = lipgloss.Color("196") // red
	ColorBorder    = lipgloss.Color("238")
	ColorMuted     = lipgloss.Color("245")
	ColorHighlight = lipgloss.Color("229")
)

var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleActiveBorder = StyleBorder.
				BorderForeground(ColorPrimary)

	StyleTitle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true).
			Padding(0, 1)

	StyleHeader = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	StyleSelected = lipgloss.NewStyle().
			Foreground(lipgloss.Color("16")).
			Background(ColorHighlight)

	// StyleNull renders SQL NULL so it cannot be mistaken for the text "NULL".
	StyleNull = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Italic(true)

	StyleMuted   = lipgloss.NewStyle().Foreground(ColorMuted)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)

	StyleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)
)

// NullText is what the pager shows for a NULL value.
const NullText = "NULL"
