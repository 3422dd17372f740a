package formatter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

// ColumnarOptions configures multi-column table rendering.
type ColumnarOptions struct {
	NoColor bool
	// TotalWidth is the available width; 0 uses the terminal width.
	TotalWidth int
	// RowNumbers prefixes each row with its 1-based position.
	RowNumbers bool
	// RightAlign lists columns whose values are right aligned.
	RightAlign []string
}

// RenderColumnarTable renders rows under column headers, shrinking the widest
// columns first when the table does not fit.
func RenderColumnarTable(columns []string, rows [][]string, opts ColumnarOptions) string {
	if len(columns) == 0 {
		return ""
	}
	total := opts.TotalWidth
	if total <= 0 {
		total = TerminalWidth(120)
	}

	const sepWidth = 2
	sep := strings.Repeat(" ", sepWidth)
	numWidth := 0
	if opts.RowNumbers {
		numWidth = max(len(strconv.Itoa(len(rows))), 1)
		total -= numWidth + sepWidth
	}
	widths := columnWidths(columns, rows, total-sepWidth*(len(columns)-1))

	right := make(map[string]bool, len(opts.RightAlign))
	for _, c := range opts.RightAlign {
		right[c] = true
	}
	paint := func(kind string, s string) string {
		if opts.NoColor {
			return s
		}
		switch kind {
		case "header":
			return headerStyle.Render(s)
		case "sep":
			return separatorStyle.Render(s)
		case "key":
			return keyStyle.Render(s)
		default:
			return valueStyle.Render(s)
		}
	}

	var b strings.Builder
	parts := make([]string, 0, len(columns)+1)
	if opts.RowNumbers {
		parts = append(parts, paint("header", padRight("#", numWidth)))
	}
	lineWidth := numWidth
	if opts.RowNumbers {
		lineWidth += sepWidth
	}
	for i, col := range columns {
		parts = append(parts, paint("header", padRight(col, widths[i])))
		lineWidth += widths[i]
		if i < len(columns)-1 {
			lineWidth += sepWidth
		}
	}
	b.WriteString(strings.Join(parts, sep) + "\n")
	b.WriteString(paint("sep", strings.Repeat("─", lineWidth)) + "\n")

	for r, row := range rows {
		parts = parts[:0]
		if opts.RowNumbers {
			parts = append(parts, paint("key", padRight(fmt.Sprintf("%d", r+1), numWidth)))
		}
		for i, col := range columns {
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			if right[col] {
				cell = padLeft(cell, widths[i])
			} else {
				cell = padRight(cell, widths[i])
			}
			parts = append(parts, paint("value", cell))
		}
		b.WriteString(strings.Join(parts, sep) + "\n")
	}
	return b.String()
}

// columnWidths sizes each column to its widest cell, then takes one cell at a
// time from the widest column until the sum fits in available. Columns never
// drop below 3 cells.
func columnWidths(columns []string, rows [][]string, available int) []int {
	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = runewidth.StringWidth(col)
		for _, row := range rows {
			if i < len(row) {
				widths[i] = max(widths[i], runewidth.StringWidth(row[i]))
			}
		}
	}
	const minWidth = 3
	sum := 0
	for _, w := range widths {
		sum += w
	}
	for sum > available {
		widest := -1
		for i, w := range widths {
			if w > minWidth && (widest == -1 || w > widths[widest]) {
				widest = i
			}
		}
		if widest == -1 {
			break
		}
		widths[widest]--
		sum--
	}
	return widths
}
