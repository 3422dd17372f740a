// Package panel models the typed nodes that make up a dashboard and resolves
// each node against the data binding table.
package panel

import (
	"fmt"
	"strings"
)

// NodeType is the closed set of panel variants. Switches over NodeType are
// expected to be exhaustive.
type NodeType string

const (
	TypeCard      NodeType = "card"
	TypeChart     NodeType = "chart"
	TypeContainer NodeType = "container"
	TypeTable     NodeType = "table"
	TypeText      NodeType = "text"
	TypeDashboard NodeType = "dashboard"
)

// Types lists every variant in a stable order.
var Types = []NodeType{TypeCard, TypeChart, TypeContainer, TypeTable, TypeText, TypeDashboard}

// ParseNodeType converts a raw node_type value.
func ParseNodeType(raw string) (NodeType, error) {
	t := NodeType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown node type %q", raw)
	}
	return t, nil
}

// Valid reports whether t is one of the known variants.
func (t NodeType) Valid() bool {
	switch t {
	case TypeCard, TypeChart, TypeContainer, TypeTable, TypeText, TypeDashboard:
		return true
	default:
		return false
	}
}

// IsContainer reports whether nodes of this type may own children.
func (t NodeType) IsContainer() bool {
	switch t {
	case TypeContainer, TypeDashboard:
		return true
	case TypeCard, TypeChart, TypeTable, TypeText:
		return false
	default:
		return false
	}
}

// Node is one renderable element of a dashboard.
type Node struct {
	Name       string         `yaml:"name" json:"name"`
	Type       NodeType       `yaml:"node_type" json:"node_type"`
	Title      string         `yaml:"title,omitempty" json:"title,omitempty"`
	Properties map[string]any `yaml:"properties,omitempty" json:"properties,omitempty"`
	// SQL names the binding table entry holding this node's data. Empty for
	// static nodes.
	SQL      string  `yaml:"sql,omitempty" json:"sql,omitempty"`
	Children []*Node `yaml:"children,omitempty" json:"children,omitempty"`
}

// MergedProperties returns the node's properties with overrides applied on
// top. Keys present in both take the override value. The node is not
// modified.
func (n *Node) MergedProperties(overrides map[string]any) map[string]any {
	merged := make(map[string]any, len(n.Properties)+len(overrides))
	for k, v := range n.Properties {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// Child returns the direct child called name.
func (n *Node) Child(name string) (*Node, bool) {
	for _, c := range n.Children {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// ChildNames lists direct children in render order.
func (n *Node) ChildNames() []string {
	names := make([]string, len(n.Children))
	for i, c := range n.Children {
		names[i] = c.Name
	}
	return names
}

// Clone returns a deep copy of the node tree. Property values are shared.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	if n.Properties != nil {
		out.Properties = n.MergedProperties(nil)
	}
	if n.Children != nil {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return &out
}

// Map returns a JSON-like view of the node without children, used for
// expression evaluation.
func (n *Node) Map() map[string]any {
	props := n.Properties
	if props == nil {
		props = map[string]any{}
	}
	return map[string]any{
		"name":        n.Name,
		"node_type":   string(n.Type),
		"title":       n.Title,
		"sql":         n.SQL,
		"properties":  props,
		"child_count": int64(len(n.Children)),
	}
}
