package main

import (
	"io"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/olekukonko/tablewriter"
)

const nullText = "NULL"

// renderTable writes header and data as an aligned text table.
func renderTable(w io.Writer, header []string, data [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(header)
	table.AppendBulk(data)
	table.Render()
}

// textRow converts decoded values to table cells.
func textRow(values []pgtype.Text) []string {
	row := make([]string, len(values))
	for i, v := range values {
		if v.Valid {
			row[i] = v.String
		} else {
			row[i] = nullText
		}
	}
	return row
}
