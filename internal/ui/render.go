package ui

import (
	"strconv"
	"strings"

	"github.com/oakwood-commons/dashx/internal/formatter"
	"github.com/oakwood-commons/dashx/internal/navigator"
	"github.com/oakwood-commons/dashx/pkg/panel"
)

// RenderOptions control plain-text panel rendering.
type RenderOptions struct {
	Width   int
	NoColor bool
	Styles  Styles
	// Indent nests each view under its parent by path depth.
	Indent bool
}

// RenderViews draws views one after another, separated by blank lines.
func RenderViews(views []panel.View, opts RenderOptions) string {
	parts := make([]string, 0, len(views))
	for _, v := range views {
		s := RenderView(v, opts)
		if opts.Indent {
			s = indent(s, 2*depth(v.Path))
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n\n")
}

// RenderView draws one panel: a header line and, for leaf panels, the body.
func RenderView(v panel.View, opts RenderOptions) string {
	var b strings.Builder
	b.WriteString(header(v, opts.Styles))
	body := renderBody(v, opts)
	if body != "" {
		b.WriteString("\n")
		b.WriteString(body)
	}
	return b.String()
}

func header(v panel.View, st Styles) string {
	title := v.Title
	if title == "" {
		title = v.Name
	}
	meta := string(v.Type)
	if v.Status == panel.StatusPending {
		meta += ", loading"
	}
	return st.Title.Render(title) + " " + st.Muted.Render("("+meta+")")
}

func renderBody(v panel.View, opts RenderOptions) string {
	width := opts.Width - 2*depth(v.Path)
	if width <= 0 {
		width = formatter.TerminalWidth(80)
	}
	switch v.Type {
	case panel.TypeContainer, panel.TypeDashboard:
		return ""
	case panel.TypeText:
		return textBody(v)
	case panel.TypeCard:
		return cardBody(v, opts.Styles)
	case panel.TypeTable, panel.TypeChart:
		if v.Status == panel.StatusPending {
			return opts.Styles.Muted.Render("waiting for data")
		}
		return rowsBody(v.Data, width, opts.NoColor)
	default:
		return ""
	}
}

func textBody(v panel.View) string {
	if s, ok := v.Properties["value"].(string); ok {
		return strings.TrimRight(s, "\n")
	}
	if v.Data != nil {
		return formatter.StringifyPreserveNewlines(v.Data)
	}
	return ""
}

// cardBody shows the card's value: the bound data when it is a scalar or a
// single-row result, otherwise the static value property.
func cardBody(v panel.View, st Styles) string {
	label, _ := v.Properties["label"].(string)
	value := cardValue(v)
	if value == "" {
		if v.Status == panel.StatusPending {
			value = st.Muted.Render("…")
		} else {
			value = st.Muted.Render("-")
		}
	}
	box := st.Box.Render(value)
	if label != "" {
		return st.Muted.Render(label) + "\n" + box
	}
	return box
}

func cardValue(v panel.View) string {
	switch d := v.Data.(type) {
	case nil:
	case []any:
		if len(d) == 1 {
			if row, ok := d[0].(map[string]any); ok {
				if val, ok := row["value"]; ok {
					return formatter.Stringify(val)
				}
				if len(row) == 1 {
					for _, val := range row {
						return formatter.Stringify(val)
					}
				}
			}
		}
	case map[string]any:
		if val, ok := d["value"]; ok {
			return formatter.Stringify(val)
		}
	default:
		return formatter.Stringify(d)
	}
	if val, ok := v.Properties["value"]; ok {
		return formatter.Stringify(val)
	}
	return ""
}

// rowsBody renders row data as a column table when every row has the same
// keys, as key/value rows for a single object, and as a tree otherwise.
func rowsBody(data any, width int, noColor bool) string {
	if data == nil {
		return ""
	}
	if columns, rows := navigator.ExtractColumnarData(data, nil); columns != nil {
		return strings.TrimRight(formatter.RenderColumnarTable(columns, rows, formatter.ColumnarOptions{
			NoColor:    noColor,
			TotalWidth: width,
			RightAlign: numericColumns(columns, rows),
		}), "\n")
	}
	if m, ok := data.(map[string]any); ok {
		keyW := 0
		for k := range m {
			keyW = max(keyW, len(k))
		}
		keyW = min(keyW+2, width/3)
		return strings.TrimRight(formatter.RenderRows(navigator.NodeToRows(m), noColor, keyW, width-keyW-2), "\n")
	}
	return strings.TrimRight(formatter.FormatAsTree(data, formatter.TreeOptions{MaxStringLen: width}), "\n")
}

// numericColumns lists columns whose every non-empty cell parses as a number.
func numericColumns(columns []string, rows [][]string) []string {
	var out []string
	for i, c := range columns {
		numeric, seen := true, false
		for _, r := range rows {
			if i >= len(r) || r[i] == "" {
				continue
			}
			seen = true
			if _, err := strconv.ParseFloat(r[i], 64); err != nil {
				numeric = false
				break
			}
		}
		if numeric && seen {
			out = append(out, c)
		}
	}
	return out
}

func depth(path string) int {
	if path == "" {
		return 0
	}
	segs, err := navigator.ParsePath(path)
	if err != nil {
		return strings.Count(path, ".") + 1
	}
	return len(segs)
}

func indent(s string, n int) string {
	if n <= 0 {
		return s
	}
	pad := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = pad + l
		}
	}
	return strings.Join(lines, "\n")
}
