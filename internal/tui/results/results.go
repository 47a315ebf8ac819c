package results

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/joacominatel/pgstream/internal/database"
	"github.com/joacominatel/pgstream/internal/tui/theme"
)

const maxColWidth = 40

type keyMap struct {
	Up, Down, Left, Right key.Binding
	PageUp, PageDown      key.Binding
	Next, Close           key.Binding
	CopyCell, CopyJSON    key.Binding
	CopyCSV, Filter       key.Binding
	Delete                key.Binding
	ExportCSV, ExportJSON key.Binding
}

var keys = keyMap{
	Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "row up")),
	Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "row down")),
	Left:       key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "column left")),
	Right:      key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "column right")),
	PageUp:     key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "page up")),
	PageDown:   key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "page down")),
	Next:       key.NewBinding(key.WithKeys("n", " "), key.WithHelp("n/space", "next batch")),
	Close:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "close stream")),
	CopyCell:   key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy cell")),
	CopyJSON:   key.NewBinding(key.WithKeys("Y"), key.WithHelp("Y", "copy row as JSON")),
	CopyCSV:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy row as CSV")),
	Filter:     key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter by cell")),
	Delete:     key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "draft DELETE for row")),
	ExportCSV:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export page as CSV")),
	ExportJSON: key.NewBinding(key.WithKeys("E"), key.WithHelp("E", "export page as JSON")),
}

// Model is the results pane. It shows one Page at a time.
type Model struct {
	page      *Page
	err       error
	width     int
	height    int
	focused   bool
	loading   bool
	cursorX   int
	cursorY   int
	scrollY   int
	colWidths []int
}

// New creates a new results model.
func New() Model {
	return Model{}
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused sets the focus state.
func (m *Model) SetFocused(f bool) {
	m.focused = f
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(l bool) {
	m.loading = l
}

// SetPage replaces the displayed page.
func (m *Model) SetPage(p Page) {
	m.page = &p
	m.err = nil
	m.loading = false
	m.cursorY = 0
	m.scrollY = 0
	if m.cursorX >= len(p.Columns) {
		m.cursorX = 0
	}
	m.colWidths = columnWidths(p)
}

// SetError replaces the displayed page with an error.
func (m *Model) SetError(err error) {
	m.err = err
	m.page = nil
	m.loading = false
}

// EndStream marks the displayed stream as closed so no further batch is
// requested.
func (m *Model) EndStream() {
	if m.page != nil {
		m.page.More = false
	}
}

// Page returns the displayed page.
func (m Model) Page() (Page, bool) {
	if m.page == nil {
		return Page{}, false
	}
	return *m.page, true
}

// Bindings lists the pane key bindings for the help screen.
func (m Model) Bindings() []key.Binding {
	return []key.Binding{
		keys.Up, keys.Down, keys.Left, keys.Right, keys.PageUp, keys.PageDown,
		keys.Next, keys.Close, keys.CopyCell, keys.CopyJSON, keys.CopyCSV,
		keys.Filter, keys.Delete, keys.ExportCSV, keys.ExportJSON,
	}
}

func columnWidths(p Page) []int {
	widths := make([]int, len(p.Columns))
	for i, col := range p.Columns {
		widths[i] = lipgloss.Width(col)
	}
	for _, row := range p.Rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cellString(cell)))
			}
		}
	}
	for i := range widths {
		widths[i] = min(max(widths[i], 1), maxColWidth)
	}
	return widths
}

func cellString(v pgtype.Text) string {
	if !v.Valid {
		return theme.NullText
	}
	return v.String
}

// Update handles messages for the results pane.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	rows := 0
	if m.page != nil {
		rows = len(m.page.Rows)
	}

	switch {
	case key.Matches(km, keys.Up):
		m.moveRow(-1, rows)
	case key.Matches(km, keys.Down):
		m.moveRow(1, rows)
	case key.Matches(km, keys.PageUp):
		m.moveRow(-m.visibleRows(), rows)
	case key.Matches(km, keys.PageDown):
		m.moveRow(m.visibleRows(), rows)
	case key.Matches(km, keys.Left):
		if m.cursorX > 0 {
			m.cursorX--
		}
	case key.Matches(km, keys.Right):
		if m.page != nil && m.cursorX < len(m.page.Columns)-1 {
			m.cursorX++
		}
	case key.Matches(km, keys.Next):
		if m.page != nil && m.page.Streaming && m.page.More {
			return m, func() tea.Msg { return NextBatchMsg{} }
		}
	case key.Matches(km, keys.Close):
		if m.page != nil && m.page.Streaming {
			return m, func() tea.Msg { return CloseStreamMsg{} }
		}
	case key.Matches(km, keys.CopyCell):
		return m, m.copyCell()
	case key.Matches(km, keys.CopyJSON):
		return m, m.copyRowJSON()
	case key.Matches(km, keys.CopyCSV):
		return m, m.copyRowCSV()
	case key.Matches(km, keys.Filter):
		return m, m.filterByValue()
	case key.Matches(km, keys.Delete):
		return m, m.draftDelete()
	case key.Matches(km, keys.ExportCSV):
		return m, m.exportCSVCmd()
	case key.Matches(km, keys.ExportJSON):
		return m, m.exportJSONCmd()
	}

	return m, nil
}

func (m *Model) moveRow(delta, rows int) {
	if rows == 0 {
		return
	}
	m.cursorY = min(max(m.cursorY+delta, 0), rows-1)

	visible := m.visibleRows()
	if m.cursorY < m.scrollY {
		m.scrollY = m.cursorY
	}
	if m.cursorY >= m.scrollY+visible {
		m.scrollY = m.cursorY - visible + 1
	}
}

func (m Model) visibleRows() int {
	return max(m.height-4, 1)
}

// Summary describes the displayed page in one line.
func (m Model) Summary() string {
	if m.page == nil {
		return ""
	}
	p := m.page

	if p.Command {
		return fmt.Sprintf("%d row(s) affected | %s", p.Affected, p.Duration.Round(time.Microsecond))
	}
	if !p.Streaming {
		return fmt.Sprintf("%d row(s) | %s", len(p.Rows), p.Duration.Round(time.Microsecond))
	}

	total := "?"
	if p.Total != database.UnknownTotal {
		total = strconv.FormatInt(p.Total, 10)
	}

	var s string
	if len(p.Rows) == 0 {
		s = fmt.Sprintf("no more rows, %s total", total)
	} else {
		s = fmt.Sprintf("rows %d-%d of %s", p.Start+1, p.Start+int64(len(p.Rows)), total)
	}

	switch {
	case p.Disconnected:
		s += " | disconnected"
	case p.More:
		s += " | n: next batch"
	default:
		s += " | end of stream"
	}
	return s
}

// View renders the results pane.
func (m Model) View() string {
	title := theme.StyleTitle.Render("Results")

	switch {
	case m.loading:
		return title + "\n" + theme.StyleMuted.Render("  Running...")
	case m.err != nil:
		return title + "\n" + theme.StyleError.Render("  Error: "+m.err.Error())
	case m.page == nil:
		return title + "\n" + theme.StyleMuted.Render("  Run a query to see results")
	}

	header := title + "  " + theme.StyleMuted.Render(m.Summary())
	if m.page.Command {
		return header + "\n" + theme.StyleSuccess.Render("  Statement executed")
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderSeparator())

	end := min(m.scrollY+m.visibleRows(), len(m.page.Rows))
	for i := m.scrollY; i < end; i++ {
		b.WriteString("\n")
		b.WriteString(m.renderRow(i))
	}

	return b.String()
}

func (m Model) renderHeader() string {
	parts := make([]string, len(m.page.Columns))
	for i, col := range m.page.Columns {
		parts[i] = theme.StyleHeader.Render(fit(col, m.colWidths[i]))
	}
	return "  " + strings.Join(parts, " │ ")
}

func (m Model) renderRow(row int) string {
	parts := make([]string, len(m.page.Columns))
	for i := range m.page.Columns {
		v, _ := m.page.Cell(row, i)
		text := fit(cellString(v), m.colWidths[i])

		switch {
		case m.focused && row == m.cursorY && i == m.cursorX:
			parts[i] = theme.StyleSelected.Render(text)
		case !v.Valid:
			parts[i] = theme.StyleNull.Render(text)
		default:
			parts[i] = text
		}
	}

	marker := "  "
	if row == m.cursorY {
		marker = "> "
	}
	return marker + strings.Join(parts, " │ ")
}

func (m Model) renderSeparator() string {
	parts := make([]string, len(m.colWidths))
	for i, w := range m.colWidths {
		parts[i] = strings.Repeat("─", w)
	}
	return "  " + lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Join(parts, "─┼─"))
}

// fit truncates or pads s to exactly width cells.
func fit(s string, width int) string {
	if lipgloss.Width(s) > width {
		runes := []rune(s)
		for len(runes) > 0 && lipgloss.Width(string(runes)) >= width {
			runes = runes[:len(runes)-1]
		}
		s = string(runes) + "…"
	}
	if pad := width - lipgloss.Width(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}
