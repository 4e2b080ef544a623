// Copyright 2025 John Wang. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package netlogomcp

import (
	"strconv"
	"strings"
)

// Table is the result of a stepped run: one column per requested
// reporter, one row per simulated step, in the engine's advance order.
// Row i holds the reporter values observed after the (i+1)-th advance.
// A Table is built fresh for each run_simulation call and not retained.
type Table struct {
	Columns []string  `json:"columns"`
	Rows    [][]Value `json:"rows"`
}

// Markdown renders the table for display, with a leading tick column
// numbering the steps from 1.
func (t *Table) Markdown() string {
	var b strings.Builder
	b.WriteString("| tick |")
	for _, c := range t.Columns {
		b.WriteString(" ")
		b.WriteString(c)
		b.WriteString(" |")
	}
	b.WriteString("\n| --- |")
	for range t.Columns {
		b.WriteString(" --- |")
	}
	for i, row := range t.Rows {
		b.WriteString("\n| ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(" |")
		for _, v := range row {
			b.WriteString(" ")
			b.WriteString(v.String())
			b.WriteString(" |")
		}
	}
	return b.String()
}
