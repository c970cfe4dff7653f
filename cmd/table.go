package cmd

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// newTable returns a left-aligned table that never wraps cells.
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeader(header)
	return table
}
