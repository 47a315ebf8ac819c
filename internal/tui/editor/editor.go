package editor

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joacominatel/pgstream/internal/tui/theme"
)

// ExecuteQueryMsg is sent when the user runs the editor content. Stream
// queries go through a cursor; the others are fetched whole.
type ExecuteQueryMsg struct {
	Query  string
	Stream bool
}

type keyMap struct {
	Stream  key.Binding
	Execute key.Binding
	Clear   key.Binding
	Format  key.Binding
}

var keys = keyMap{
	Stream: key.NewBinding(
		key.WithKeys("ctrl+e", "f5"),
		key.WithHelp("ctrl+e/f5", "stream query"),
	),
	Execute: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("ctrl+r", "run query eagerly"),
	),
	Clear: key.NewBinding(
		key.WithKeys("ctrl+k"),
		key.WithHelp("ctrl+k", "clear editor"),
	),
	Format: key.NewBinding(
		key.WithKeys("ctrl+l"),
		key.WithHelp("ctrl+l", "uppercase keywords"),
	),
}

var sqlKeywords = map[string]bool{
	"select": true, "from": true, "where": true, "and": true, "or": true,
	"insert": true, "into": true, "update": true, "delete": true,
	"create": true, "drop": true, "alter": true, "table": true,
	"join": true, "inner": true, "outer": true, "left": true, "right": true,
	"cross": true, "on": true, "not": true, "in": true, "is": true,
	"null": true, "like": true, "ilike": true, "order": true, "by": true,
	"group": true, "having": true, "limit": true, "offset": true,
	"as": true, "distinct": true, "between": true, "exists": true,
	"case": true, "when": true, "then": true, "else": true, "end": true,
	"values": true, "set": true, "begin": true, "commit": true,
	"rollback": true, "union": true, "all": true, "asc": true, "desc": true,
	"with": true, "returning": true, "true": true, "false": true,
}

// Model is the SQL editor.
type Model struct {
	textarea textarea.Model
	width    int
	height   int
	focused  bool
}

// New creates a new editor model.
func New() Model {
	ta := textarea.New()
	ta.Placeholder = "SELECT ... (ctrl+e streams, ctrl+r runs eagerly)"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.Prompt = "│ "
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle()
	ta.BlurredStyle.Base = lipgloss.NewStyle()
	ta.FocusedStyle.Placeholder = theme.StyleMuted
	ta.BlurredStyle.Placeholder = theme.StyleMuted
	ta.FocusedStyle.Prompt = lipgloss.NewStyle().Foreground(theme.ColorPrimary)
	ta.BlurredStyle.Prompt = lipgloss.NewStyle().Foreground(theme.ColorBorder)

	return Model{textarea: ta}
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.textarea.SetWidth(max(w-2, 1))
	m.textarea.SetHeight(max(h-2, 1))
}

// SetFocused sets the focus state.
func (m *Model) SetFocused(f bool) {
	m.focused = f
	if f {
		m.textarea.Focus()
	} else {
		m.textarea.Blur()
	}
}

// Value returns the editor content.
func (m Model) Value() string {
	return m.textarea.Value()
}

// SetQuery replaces the editor content.
func (m *Model) SetQuery(query string) {
	m.textarea.SetValue(query)
}

// Bindings lists the editor key bindings for the help screen.
func (m Model) Bindings() []key.Binding {
	return []key.Binding{keys.Stream, keys.Execute, keys.Clear, keys.Format}
}

// Update handles messages for the editor.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Stream):
			return m, m.run(true)
		case key.Matches(msg, keys.Execute):
			return m, m.run(false)
		case key.Matches(msg, keys.Clear):
			m.textarea.Reset()
			return m, nil
		case key.Matches(msg, keys.Format):
			m.textarea.SetValue(FormatKeywords(m.textarea.Value()))
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m Model) run(stream bool) tea.Cmd {
	query := strings.TrimSpace(m.textarea.Value())
	if query == "" {
		return nil
	}
	return func() tea.Msg {
		return ExecuteQueryMsg{Query: query, Stream: stream}
	}
}

// FormatKeywords uppercases SQL keywords outside quoted literals and
// identifiers.
func FormatKeywords(sql string) string {
	var out, word strings.Builder
	var quote rune

	flush := func() {
		if word.Len() == 0 {
			return
		}
		w := word.String()
		if sqlKeywords[strings.ToLower(w)] {
			w = strings.ToUpper(w)
		}
		out.WriteString(w)
		word.Reset()
	}

	for _, ch := range sql {
		switch {
		case quote != 0:
			out.WriteRune(ch)
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			flush()
			quote = ch
			out.WriteRune(ch)
		case unicode.IsLetter(ch) || ch == '_' || (word.Len() > 0 && unicode.IsDigit(ch)):
			word.WriteRune(ch)
		default:
			flush()
			out.WriteRune(ch)
		}
	}
	flush()

	return out.String()
}

// View renders the editor.
func (m Model) View() string {
	return theme.StyleTitle.Render("Query") + "\n" + m.textarea.View()
}
