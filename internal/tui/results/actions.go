package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// writeClipboard is swapped out in tests.
var writeClipboard = clipboard.WriteAll

func notify(msg string) tea.Cmd {
	return func() tea.Msg {
		return StatusNotifyMsg{Message: msg}
	}
}

func (m Model) selectedRow() ([]pgtype.Text, bool) {
	if m.page == nil || m.cursorY < 0 || m.cursorY >= len(m.page.Rows) {
		return nil, false
	}
	return m.page.Rows[m.cursorY], true
}

func (m Model) cell(row, col int) (pgtype.Text, bool) {
	if m.page == nil {
		return pgtype.Text{}, false
	}
	return m.page.Cell(row, col)
}

func (m Model) selectedColumn() (string, bool) {
	if m.page == nil || m.cursorX < 0 || m.cursorX >= len(m.page.Columns) {
		return "", false
	}
	return m.page.Columns[m.cursorX], true
}

// --- Copy ---

func (m Model) copyCell() tea.Cmd {
	v, ok := m.cell(m.cursorY, m.cursorX)
	if !ok {
		return notify("Nothing to copy")
	}
	if err := writeClipboard(cellString(v)); err != nil {
		return notify("Copy failed: " + err.Error())
	}
	return notify("Copied: " + truncateStatus(cellString(v), 40))
}

func (m Model) copyRowJSON() tea.Cmd {
	row, ok := m.selectedRow()
	if !ok {
		return notify("No row to copy")
	}
	if err := writeClipboard(rowJSON(m.page.Columns, row)); err != nil {
		return notify("Copy failed: " + err.Error())
	}
	return notify("Copied row as JSON")
}

func (m Model) copyRowCSV() tea.Cmd {
	row, ok := m.selectedRow()
	if !ok {
		return notify("No row to copy")
	}
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write(m.page.Columns)
	_ = w.Write(csvRecord(row))
	w.Flush()
	if err := writeClipboard(b.String()); err != nil {
		return notify("Copy failed: " + err.Error())
	}
	return notify("Copied row as CSV")
}

// --- Query drafts ---

func (m Model) filterByValue() tea.Cmd {
	col, ok := m.selectedColumn()
	v, okCell := m.cell(m.cursorY, m.cursorX)
	if !ok || !okCell {
		return notify("Cannot filter: no cell selected")
	}
	query := fmt.Sprintf("SELECT * FROM (%s) AS q WHERE %s", m.page.Query, condition(col, v))
	return func() tea.Msg {
		return SetEditorQueryMsg{Query: query}
	}
}

func (m Model) draftDelete() tea.Cmd {
	row, ok := m.selectedRow()
	if !ok {
		return nil
	}
	conds := make([]string, 0, len(row))
	for i, col := range m.page.Columns {
		if i < len(row) {
			conds = append(conds, condition(col, row[i]))
		}
	}

	// Sent to the editor for review, never executed directly.
	query := fmt.Sprintf("-- review before executing\nDELETE FROM %s WHERE %s",
		tableName(m.page.Query), strings.Join(conds, " AND "))
	return func() tea.Msg {
		return SetEditorQueryMsg{Query: query}
	}
}

func condition(col string, v pgtype.Text) string {
	ident := pgx.Identifier{col}.Sanitize()
	if !v.Valid {
		return ident + " IS NULL"
	}
	return fmt.Sprintf("%s = '%s'", ident, strings.ReplaceAll(v.String, "'", "''"))
}

// --- Export ---

func (m Model) exportJSONCmd() tea.Cmd {
	if m.page == nil {
		return nil
	}
	p := *m.page
	return func() tea.Msg {
		filename := exportName("json")
		f, err := os.Create(filename)
		if err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		defer f.Close()

		if err := writeJSON(f, p); err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		return StatusNotifyMsg{Message: fmt.Sprintf("Exported %d rows to %s", len(p.Rows), filename)}
	}
}

func (m Model) exportCSVCmd() tea.Cmd {
	if m.page == nil {
		return nil
	}
	p := *m.page
	return func() tea.Msg {
		filename := exportName("csv")
		f, err := os.Create(filename)
		if err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		defer f.Close()

		if err := writeCSV(f, p); err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		return StatusNotifyMsg{Message: fmt.Sprintf("Exported %d rows to %s", len(p.Rows), filename)}
	}
}

func writeCSV(w io.Writer, p Page) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(p.Columns); err != nil {
		return err
	}
	for _, row := range p.Rows {
		if err := cw.Write(csvRecord(row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, p Page) error {
	var b strings.Builder
	b.WriteString("[\n")
	for i, row := range p.Rows {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("  ")
		b.WriteString(rowJSON(p.Columns, row))
	}
	b.WriteString("\n]\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// --- Helpers ---

func exportName(ext string) string {
	return fmt.Sprintf("pgstream_export_%s.%s", time.Now().Format("20060102_150405"), ext)
}

// csvRecord writes NULL as an empty field.
func csvRecord(row []pgtype.Text) []string {
	rec := make([]string, len(row))
	for i, v := range row {
		if v.Valid {
			rec[i] = v.String
		}
	}
	return rec
}

// rowJSON keeps column order, which marshaling a map would not.
func rowJSON(columns []string, row []pgtype.Text) string {
	var b strings.Builder
	b.WriteString("{")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		k, _ := json.Marshal(col)
		b.Write(k)
		b.WriteString(": ")
		if i < len(row) && row[i].Valid {
			v, _ := json.Marshal(row[i].String)
			b.Write(v)
		} else {
			b.WriteString("null")
		}
	}
	b.WriteString("}")
	return b.String()
}

func tableName(query string) string {
	tokens := strings.Fields(query)
	for i, tok := range tokens {
		switch strings.ToUpper(tok) {
		case "FROM", "INTO", "UPDATE":
			if i+1 < len(tokens) {
				if name := strings.TrimRight(tokens[i+1], ";,()"); name != "" {
					return name
				}
			}
		}
	}
	return "<table>"
}

func truncateStatus(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
