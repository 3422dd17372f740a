// Package document composes a dashboard and its panel tree into a single
// addressable unit.
package document

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/oakwood-commons/dashx/internal/cel"
	"github.com/oakwood-commons/dashx/internal/navigator"
	"github.com/oakwood-commons/dashx/pkg/panel"
)

// ErrNotFound is returned when a path does not address a node.
var ErrNotFound = errors.New("not found")

// Document is a dashboard plus its full node tree. The root is an implicit
// node of type dashboard named after the dashboard's full name.
type Document struct {
	Dashboard Dashboard
	root      *panel.Node
}

// New validates children and builds the document. Node types must be known,
// names must be non-empty and unique among siblings, and only container
// types may own children.
func New(dash Dashboard, children []*panel.Node) (*Document, error) {
	name := dash.FullName
	if name == "" {
		name = dash.Name
	}
	if name == "" {
		return nil, errors.New("dashboard has no name")
	}
	root := &panel.Node{
		Name:     name,
		Type:     panel.TypeDashboard,
		Title:    dash.Title,
		Children: children,
	}
	if err := validate(root, name); err != nil {
		return nil, fmt.Errorf("dashboard %s: %w", name, err)
	}
	return &Document{Dashboard: dash, root: root}, nil
}

func validate(n *panel.Node, path string) error {
	if !n.Type.Valid() {
		return fmt.Errorf("%s: unknown node type %q", path, n.Type)
	}
	if len(n.Children) > 0 && !n.Type.IsContainer() {
		return fmt.Errorf("%s: %s nodes cannot have children", path, n.Type)
	}
	seen := make(map[string]struct{}, len(n.Children))
	for i, c := range n.Children {
		if c == nil {
			return fmt.Errorf("%s: child %d is nil", path, i)
		}
		if c.Name == "" {
			return fmt.Errorf("%s: child %d has no name", path, i)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("%s: duplicate child name %q", path, c.Name)
		}
		seen[c.Name] = struct{}{}
		if err := validate(c, path+"/"+c.Name); err != nil {
			return err
		}
	}
	return nil
}

// Name is the document key, the root node name.
func (d *Document) Name() string { return d.root.Name }

// Root returns the implicit dashboard node.
func (d *Document) Root() *panel.Node { return d.root }

// Resolve locates a node by dot/bracket path relative to the root. Field
// segments may be joined back together to match child names that contain
// dots; the longest match is tried first.
func (d *Document) Resolve(path string) (*panel.Node, error) {
	segs, err := navigator.ParsePath(strings.TrimSpace(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, path, err)
	}
	if n, ok := resolve(d.root, segs); ok {
		return n, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
}

func resolve(n *panel.Node, segs []navigator.Segment) (*panel.Node, bool) {
	if len(segs) == 0 {
		return n, true
	}
	switch s := segs[0].(type) {
	case navigator.ArrayIndex:
		if s.Index < 0 || s.Index >= len(n.Children) {
			return nil, false
		}
		return resolve(n.Children[s.Index], segs[1:])
	case navigator.QuotedKey:
		c, ok := n.Child(s.Name)
		if !ok {
			return nil, false
		}
		return resolve(c, segs[1:])
	case navigator.Field:
		run := 0
		for run < len(segs) {
			if _, ok := segs[run].(navigator.Field); !ok {
				break
			}
			run++
		}
		for k := run; k >= 1; k-- {
			parts := make([]string, k)
			for i := range k {
				parts[i] = segs[i].(navigator.Field).Name
			}
			c, ok := n.Child(strings.Join(parts, "."))
			if !ok {
				continue
			}
			if found, ok := resolve(c, segs[k:]); ok {
				return found, true
			}
		}
	}
	return nil, false
}

// Flatten yields every node depth-first, parents before children, root
// first. The sequence can be ranged over any number of times.
func (d *Document) Flatten() iter.Seq[*panel.Node] {
	return func(yield func(*panel.Node) bool) {
		for _, n := range d.Walk() {
			if !yield(n) {
				return
			}
		}
	}
}

// Walk yields each node with the path that Resolve accepts for it. The root
// path is empty.
func (d *Document) Walk() iter.Seq2[string, *panel.Node] {
	return func(yield func(string, *panel.Node) bool) {
		walk(d.root, "", yield)
	}
}

func walk(n *panel.Node, path string, yield func(string, *panel.Node) bool) bool {
	if !yield(path, n) {
		return false
	}
	for _, c := range n.Children {
		if !walk(c, JoinPath(path, c.Name), yield) {
			return false
		}
	}
	return true
}

// JoinPath appends a child name to a path. Names with characters that a
// plain segment cannot carry are written in bracket form.
func JoinPath(parent, name string) string {
	var seg navigator.Segment = navigator.Field{Name: name}
	if name == "" || strings.ContainsAny(name, `.[]"' `) {
		seg = navigator.QuotedKey{Name: name}
	}
	segs, err := navigator.ParsePath(parent)
	if err != nil {
		segs = []navigator.Segment{navigator.QuotedKey{Name: parent}}
	}
	return navigator.FormatPath(append(segs, seg))
}

// Keys returns the distinct binding keys referenced by the tree, sorted.
func (d *Document) Keys() []string {
	var keys []string
	for n := range d.Flatten() {
		if n.SQL != "" {
			keys = append(keys, n.SQL)
		}
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

// Match is a node selected by an expression, with its path.
type Match struct {
	Path string
	Node *panel.Node
}

// Select returns the nodes for which the CEL predicate expr holds. Each node
// is bound to "_" as a map with name, node_type, title, sql, properties and
// child_count.
func (d *Document) Select(expr string) ([]Match, error) {
	eval, err := cel.Shared()
	if err != nil {
		return nil, err
	}
	pred, err := eval.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("select %q: %w", expr, err)
	}
	var out []Match
	for path, n := range d.Walk() {
		ok, err := pred.Match(n.Map())
		if err != nil {
			return nil, fmt.Errorf("select %q at %q: %w", expr, path, err)
		}
		if ok {
			out = append(out, Match{Path: path, Node: n})
		}
	}
	return out, nil
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	dash := d.Dashboard
	if d.Dashboard.Tags != nil {
		dash.Tags = make(map[string]string, len(d.Dashboard.Tags))
		for k, v := range d.Dashboard.Tags {
			dash.Tags[k] = v
		}
	}
	return &Document{Dashboard: dash, root: d.root.Clone()}
}
