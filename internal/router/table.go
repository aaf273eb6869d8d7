package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"
)

// renderTable formats row-shaped JSON data (a tool result that unmarshals
// as an array of flat objects) as a fixed-width ASCII table, padding each
// column with go-runewidth so multi-byte values (CJK product names,
// emoji) line up the same as single-byte ones (step 11, "tabular preview
// for row-shaped data").
func renderTable(rows []map[string]interface{}) string {
	columns := collectColumns(rows)
	widths := columnWidths(columns, rows)

	var b strings.Builder
	writeRow(&b, columns, widths, func(col string) string { return col })
	writeSeparator(&b, widths)
	for _, row := range rows {
		writeRow(&b, columns, widths, func(col string) string {
			return fmt.Sprint(row[col])
		})
	}
	return strings.TrimRight(b.String(), "\n")
}

func collectColumns(rows []map[string]interface{}) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)
	return columns
}

func columnWidths(columns []string, rows []map[string]interface{}) map[string]int {
	widths := make(map[string]int, len(columns))
	for _, c := range columns {
		widths[c] = runewidth.StringWidth(c)
	}
	for _, row := range rows {
		for _, c := range columns {
			w := runewidth.StringWidth(fmt.Sprint(row[c]))
			if w > widths[c] {
				widths[c] = w
			}
		}
	}
	return widths
}

func writeRow(b *strings.Builder, columns []string, widths map[string]int, cell func(string) string) {
	for i, c := range columns {
		if i > 0 {
			b.WriteString(" | ")
		}
		value := cell(c)
		b.WriteString(value)
		b.WriteString(strings.Repeat(" ", widths[c]-runewidth.StringWidth(value)))
	}
	b.WriteString("\n")
}

func writeSeparator(b *strings.Builder, widths map[string]int) {
	first := true
	for _, w := range orderedWidths(widths) {
		if !first {
			b.WriteString("-+-")
		}
		first = false
		b.WriteString(strings.Repeat("-", w))
	}
	b.WriteString("\n")
}

func orderedWidths(widths map[string]int) []int {
	// column order must match writeRow's iteration order, which is the
	// caller's sorted columns slice — recompute from the same sort so the
	// separator lines up without threading the slice through twice.
	keys := make([]string, 0, len(widths))
	for k := range widths {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]int, len(keys))
	for i, k := range keys {
		out[i] = widths[k]
	}
	return out
}
