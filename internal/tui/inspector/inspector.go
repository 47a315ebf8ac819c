package inspector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joacominatel/pgstream/internal/database"
	"github.com/joacominatel/pgstream/internal/tui/theme"
)

// Info is a snapshot of a stream's metadata and state.
type Info struct {
	Cursor          string
	OwnsTransaction bool
	BatchSize       int
	Fetched         int64
	Total           int64
	Finished        bool
	Disconnected    bool
	CleanupFailures int
	Columns         []database.Column
}

// FromCursor snapshots c. Fetched counts every row delivered so far.
func FromCursor(c *database.Cursor) Info {
	return Info{
		Cursor:          c.Name(),
		OwnsTransaction: c.OwnsTransaction(),
		BatchSize:       c.BatchSize(),
		Fetched:         c.BatchStart() + int64(c.CurrentBatchSize()),
		Total:           c.TotalRows(),
		Finished:        c.Finished(),
		Disconnected:    c.Disconnected(),
		CleanupFailures: c.CleanupFailures(),
		Columns:         c.Columns(),
	}
}

// State describes where the stream is in its lifecycle.
func (i Info) State() string {
	switch {
	case i.Disconnected:
		return "disconnected"
	case i.Finished:
		return "finished"
	default:
		return "open"
	}
}

// NodeKind identifies the type of a tree node.
type NodeKind int

const (
	NodeSection NodeKind = iota
	NodeField
	NodeColumn
)

// TreeNode is one line of the inspector tree.
type TreeNode struct {
	Kind     NodeKind
	Name     string
	Detail   string
	Children []*TreeNode
	Expanded bool
}

type flatItem struct {
	node  *TreeNode
	depth int
}

type keyMap struct {
	Up, Down, Toggle, Collapse key.Binding
}

var keys = keyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Toggle:   key.NewBinding(key.WithKeys("enter", "right", "l"), key.WithHelp("enter/→", "expand")),
	Collapse: key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "collapse")),
}

// Model shows the open stream and its columns.
type Model struct {
	roots   []*TreeNode
	items   []flatItem
	cursor  int
	width   int
	height  int
	focused bool
}

// New creates a new inspector model.
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

// Bindings lists the inspector key bindings for the help screen.
func (m Model) Bindings() []key.Binding {
	return []key.Binding{keys.Up, keys.Down, keys.Toggle, keys.Collapse}
}

// SetInfo rebuilds the tree from a snapshot, keeping sections the user
// collapsed collapsed.
func (m *Model) SetInfo(info Info) {
	collapsed := map[string]bool{}
	for _, r := range m.roots {
		collapsed[sectionKey(r.Name)] = !r.Expanded
	}

	total := "unknown"
	if info.Total != database.UnknownTotal {
		total = strconv.FormatInt(info.Total, 10)
	}

	stream := &TreeNode{Kind: NodeSection, Name: "Stream", Children: []*TreeNode{
		{Kind: NodeField, Name: "cursor", Detail: info.Cursor},
		{Kind: NodeField, Name: "state", Detail: info.State()},
		{Kind: NodeField, Name: "transaction", Detail: ownership(info.OwnsTransaction)},
		{Kind: NodeField, Name: "batch size", Detail: strconv.Itoa(info.BatchSize)},
		{Kind: NodeField, Name: "fetched", Detail: strconv.FormatInt(info.Fetched, 10)},
		{Kind: NodeField, Name: "total", Detail: total},
	}}
	if info.CleanupFailures > 0 {
		stream.Children = append(stream.Children,
			&TreeNode{Kind: NodeField, Name: "cleanup failures", Detail: strconv.Itoa(info.CleanupFailures)})
	}

	columns := &TreeNode{Kind: NodeSection, Name: fmt.Sprintf("Columns (%d)", len(info.Columns))}
	for _, c := range info.Columns {
		columns.Children = append(columns.Children, &TreeNode{
			Kind:   NodeColumn,
			Name:   c.Name,
			Detail: fmt.Sprintf("%s oid=%d", c.DataType, c.TypeOID),
		})
	}

	m.roots = []*TreeNode{stream, columns}
	for _, r := range m.roots {
		r.Expanded = !collapsed[sectionKey(r.Name)]
	}
	m.flatten()
}

// Clear drops the snapshot.
func (m *Model) Clear() {
	m.roots = nil
	m.items = nil
	m.cursor = 0
}

func ownership(owns bool) string {
	if owns {
		return "owned by stream"
	}
	return "caller's"
}

// sectionKey strips the count so a section keeps its state across batches.
func sectionKey(name string) string {
	if i := strings.Index(name, " ("); i >= 0 {
		return name[:i]
	}
	return name
}

func (m *Model) flatten() {
	m.items = m.items[:0]
	for _, r := range m.roots {
		m.flattenNode(r, 0)
	}
	if m.cursor >= len(m.items) {
		m.cursor = max(len(m.items)-1, 0)
	}
}

func (m *Model) flattenNode(node *TreeNode, depth int) {
	m.items = append(m.items, flatItem{node: node, depth: depth})
	if node.Expanded {
		for _, child := range node.Children {
			m.flattenNode(child, depth+1)
		}
	}
}

// Update handles messages for the inspector.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(km, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(km, keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case key.Matches(km, keys.Toggle):
		m.setExpanded(true)
	case key.Matches(km, keys.Collapse):
		m.setExpanded(false)
	}
	return m, nil
}

func (m *Model) setExpanded(expanded bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return
	}
	node := m.items[m.cursor].node
	if node.Kind != NodeSection {
		return
	}
	node.Expanded = expanded
	m.flatten()
}

// View renders the inspector.
func (m Model) View() string {
	title := theme.StyleTitle.Render("Stream")

	if len(m.roots) == 0 {
		return title + "\n" + theme.StyleMuted.Render("  No open stream")
	}

	var b strings.Builder
	b.WriteString(title)

	visible := max(m.height-2, 1)
	offset := 0
	if m.cursor >= visible {
		offset = m.cursor - visible + 1
	}

	for i := offset; i < len(m.items) && i < offset+visible; i++ {
		b.WriteString("\n")
		b.WriteString(m.renderNode(m.items[i], i == m.cursor))
	}

	return b.String()
}

func (m Model) renderNode(item flatItem, selected bool) string {
	node := item.node
	indent := strings.Repeat("  ", item.depth)

	icon := "  "
	if node.Kind == NodeSection {
		icon = "▶ "
		if node.Expanded {
			icon = "▼ "
		}
	}

	line := indent + icon + node.Name
	if node.Detail != "" {
		line += " " + theme.StyleMuted.Render(node.Detail)
	}

	if selected && m.focused {
		return lipgloss.NewStyle().
			Foreground(theme.ColorHighlight).
			Bold(true).
			Render(line)
	}
	return line
}
