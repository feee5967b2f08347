package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Table writes column-aligned rows under a header and a dash divider.
// The header is written with the first row; a table without rows prints
// nothing.
type Table struct {
	tw      *tabwriter.Writer
	headers []string
	started bool
}

// NewTable returns a table writing to w.
func NewTable(w io.Writer, headers ...string) *Table {
	return &Table{
		tw:      tabwriter.NewWriter(w, 0, 0, 2, ' ', 0),
		headers: headers,
	}
}

// Row adds one row.
func (t *Table) Row(values ...string) {
	if !t.started {
		t.started = true
		t.line(t.headers)
		divider := make([]string, len(t.headers))
		for i, h := range t.headers {
			divider[i] = strings.Repeat("-", len(h))
		}
		t.line(divider)
	}
	t.line(values)
}

// Flush writes the buffered rows.
func (t *Table) Flush() {
	if t.started {
		t.tw.Flush()
	}
}

func (t *Table) line(cells []string) {
	fmt.Fprintln(t.tw, strings.Join(cells, "\t"))
}
