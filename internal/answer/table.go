package answer

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/nlqgate/nlqgate/internal/query"
)

const (
	DefaultDisplayRows = 50
	maxCellWidth       = 15
)

// RenderTable writes the result as a text table of at most maxRows rows.
// A non-positive maxRows uses DefaultDisplayRows. Long cells are shortened
// with an ellipsis.
func RenderTable(w io.Writer, result query.Result, maxRows int) error {
	if !result.Successful {
		_, err := fmt.Fprintf(w, "Query failed: %s\n", result.Error)
		return err
	}
	if len(result.Rows) == 0 {
		_, err := fmt.Fprintln(w, "No results found.")
		return err
	}
	if maxRows <= 0 {
		maxRows = DefaultDisplayRows
	}

	columns := result.Columns
	if len(columns) == 0 {
		for _, cell := range result.Rows[0] {
			columns = append(columns, cell.Column)
		}
	}

	if _, err := fmt.Fprintf(w, "Query returned %d rows:\n\n", result.RowCount); err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(columns))
	for i, column := range columns {
		header[i] = column
	}
	t.AppendHeader(header)

	for i, row := range result.Rows {
		if i == maxRows {
			break
		}
		out := make(table.Row, len(columns))
		for j, column := range columns {
			out[j] = shorten(row.String(column, "NULL"))
		}
		t.AppendRow(out)
	}
	t.Render()

	if result.RowCount > maxRows {
		_, err := fmt.Fprintf(w, "\n... and %d more rows\n", result.RowCount-maxRows)
		return err
	}
	return nil
}

func shorten(value string) string {
	if text.RuneWidthWithoutEscSequences(value) <= maxCellWidth {
		return value
	}
	return text.Trim(value, maxCellWidth-3) + "..."
}
