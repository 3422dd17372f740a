package panel

import (
	"github.com/oakwood-commons/dashx/pkg/binding"
	"github.com/oakwood-commons/dashx/pkg/display"
)

// Status describes how a node's data was resolved.
type Status string

const (
	// StatusStatic marks nodes with no query binding.
	StatusStatic Status = "static"
	// StatusReady marks nodes whose binding key resolved.
	StatusReady Status = "ready"
	// StatusPending marks nodes whose binding key is not in the table yet.
	StatusPending Status = "pending"
)

// Resolution is the outcome of looking a node up in a binding table.
type Resolution struct {
	Data   any
	Status Status
}

// Resolve looks up the node's data. An unbound node is static; a missing key
// is pending. Resolution never fails.
func Resolve(n *Node, reader binding.Reader) Resolution {
	if n == nil || n.SQL == "" {
		return Resolution{Status: StatusStatic}
	}
	if reader == nil {
		return Resolution{Status: StatusPending}
	}
	data, ok := reader.Get(n.SQL)
	if !ok {
		return Resolution{Status: StatusPending}
	}
	return Resolution{Data: data, Status: StatusReady}
}

// View is everything a rendering layer needs to draw one node.
type View struct {
	Name       string         `json:"name" yaml:"name"`
	Path       string         `json:"path,omitempty" yaml:"path,omitempty"`
	Type       NodeType       `json:"node_type" yaml:"node_type"`
	Title      string         `json:"title,omitempty" yaml:"title,omitempty"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
	Data       any            `json:"data,omitempty" yaml:"data,omitempty"`
	Status     Status         `json:"status" yaml:"status"`
	Theme      string         `json:"theme" yaml:"theme"`
	Breakpoint string         `json:"breakpoint" yaml:"breakpoint"`
	Children   []string       `json:"children,omitempty" yaml:"children,omitempty"`
}

// Render resolves a node into a View using the display context handed down by
// the caller.
func Render(n *Node, reader binding.Reader, dctx display.Context, overrides map[string]any) View {
	res := Resolve(n, reader)
	v := View{
		Name:       n.Name,
		Type:       n.Type,
		Title:      n.Title,
		Properties: n.MergedProperties(overrides),
		Data:       res.Data,
		Status:     res.Status,
		Theme:      dctx.Theme().Name,
		Breakpoint: dctx.CurrentBreakpoint(),
	}
	switch n.Type {
	case TypeContainer, TypeDashboard:
		v.Children = n.ChildNames()
	case TypeTable, TypeChart:
		v.Data = normalizeRows(res.Data)
	case TypeCard, TypeText:
	}
	return v
}

// normalizeRows coerces typed row slices into []any so every table and chart
// payload has the same shape.
func normalizeRows(data any) any {
	switch rows := data.(type) {
	case []map[string]any:
		out := make([]any, len(rows))
		for i, r := range rows {
			out[i] = r
		}
		return out
	default:
		return data
	}
}
