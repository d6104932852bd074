package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/leapstack-labs/leaptable/internal/config"
)

// Renderer writes command output as text tables, markdown or JSON.
type Renderer struct {
	w      io.Writer
	format string
}

// NewRenderer creates a renderer. Unknown formats render as text.
func NewRenderer(w io.Writer, format string) *Renderer {
	switch format {
	case config.OutputJSON, config.OutputMarkdown:
	default:
		format = config.OutputText
	}
	return &Renderer{w: w, format: format}
}

// IsJSON reports whether output is JSON. Commands render one JSON document
// instead of a sequence of tables.
func (r *Renderer) IsJSON() bool {
	return r.format == config.OutputJSON
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Println writes a line of text.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.w, a...)
}

// Code writes a SQL statement, fenced in markdown mode.
func (r *Renderer) Code(sql string) {
	if r.format == config.OutputMarkdown {
		_, _ = fmt.Fprintf(r.w, "```sql\n%s\n```\n", sql)
		return
	}
	_, _ = fmt.Fprintln(r.w, sql)
}

// Table writes rows under a title.
func (r *Renderer) Table(title string, header []string, rows [][]any) {
	t := table.NewWriter()
	t.SetOutputMirror(r.w)

	headerRow := make(table.Row, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	t.AppendHeader(headerRow)
	for _, row := range rows {
		t.AppendRow(table.Row(row))
	}

	if r.format == config.OutputMarkdown {
		if title != "" {
			_, _ = fmt.Fprintf(r.w, "## %s\n\n", title)
		}
		t.RenderMarkdown()
		_, _ = fmt.Fprintln(r.w)
		return
	}

	// Headers keep their case. The title goes above the table so a narrow
	// table never wraps it.
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	style.Format.Footer = text.FormatDefault
	t.SetStyle(style)
	if title != "" {
		_, _ = fmt.Fprintln(r.w, title)
	}
	if len(rows) == 0 {
		t.AppendFooter(table.Row{"(0 rows)"})
	}
	t.Render()
}

// KeyValues writes pairs as a two-column table.
func (r *Renderer) KeyValues(title string, pairs [][2]any) {
	rows := make([][]any, len(pairs))
	for i, p := range pairs {
		rows[i] = []any{p[0], p[1]}
	}
	r.Table(title, []string{"Field", "Value"}, rows)
}
