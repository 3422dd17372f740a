package formatter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xlab/treeprint"

	"github.com/oakwood-commons/dashx/pkg/panel"
)

const defaultMaxArrayInline = 3

// TreeOptions controls tree output formatting.
type TreeOptions struct {
	// MaxDepth limits tree depth (0 = unlimited).
	MaxDepth int
	// MaxArrayInline is the most scalar list items shown inline (default 3).
	MaxArrayInline int
	// MaxStringLen truncates scalar strings; 0 disables truncation.
	MaxStringLen int
}

// FormatAsTree renders a payload as an ASCII tree. Maps branch by sorted
// key, lists branch by index, and short scalar lists stay inline.
func FormatAsTree(node any, opts TreeOptions) string {
	if opts.MaxArrayInline == 0 {
		opts.MaxArrayInline = defaultMaxArrayInline
	}
	tree := treeprint.New()
	switch v := node.(type) {
	case map[string]any:
		addMap(tree, v, opts, 0)
	case []any:
		addList(tree, v, opts, 0)
	default:
		tree.AddNode(scalarText(v, opts))
	}
	return tree.String()
}

// NodeLabel returns the text shown for a panel node in a document tree.
type NodeLabel func(n *panel.Node, path string) string

// FormatNodeTree renders a panel tree in document order. label may be nil,
// in which case nodes show as "name (type)".
func FormatNodeTree(root *panel.Node, label NodeLabel) string {
	if root == nil {
		return ""
	}
	if label == nil {
		label = func(n *panel.Node, _ string) string {
			return fmt.Sprintf("%s (%s)", n.Name, n.Type)
		}
	}
	tree := treeprint.NewWithRoot(label(root, ""))
	addPanelChildren(tree, root, "", label)
	return tree.String()
}

func addPanelChildren(branch treeprint.Tree, n *panel.Node, path string, label NodeLabel) {
	for _, child := range n.Children {
		childPath := child.Name
		if path != "" {
			childPath = path + "." + child.Name
		}
		if len(child.Children) == 0 {
			branch.AddNode(label(child, childPath))
			continue
		}
		addPanelChildren(branch.AddBranch(label(child, childPath)), child, childPath, label)
	}
}

func addMap(branch treeprint.Tree, m map[string]any, opts TreeOptions, depth int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		addValue(branch, k, m[k], opts, depth)
	}
}

func addList(branch treeprint.Tree, arr []any, opts TreeOptions, depth int) {
	for i, elem := range arr {
		addValue(branch, fmt.Sprintf("[%d]", i), elem, opts, depth)
	}
}

func addValue(branch treeprint.Tree, key string, val any, opts TreeOptions, depth int) {
	if opts.MaxDepth > 0 && depth >= opts.MaxDepth {
		branch.AddNode(key + ": ...")
		return
	}
	switch v := val.(type) {
	case map[string]any:
		if len(v) == 0 {
			branch.AddNode(key + ": {}")
			return
		}
		addMap(branch.AddBranch(key), v, opts, depth+1)
	case []any:
		switch {
		case len(v) == 0:
			branch.AddNode(key + ": []")
		case isScalarList(v) && len(v) <= opts.MaxArrayInline:
			parts := make([]string, len(v))
			for i, e := range v {
				parts[i] = scalarText(e, TreeOptions{})
			}
			branch.AddNode(key + ": [" + strings.Join(parts, ", ") + "]")
		case isScalarList(v):
			branch.AddNode(fmt.Sprintf("%s: [%d items]", key, len(v)))
		default:
			addList(branch.AddBranch(key), v, opts, depth+1)
		}
	default:
		branch.AddNode(key + ": " + scalarText(v, opts))
	}
}

func isScalarList(arr []any) bool {
	for _, e := range arr {
		switch e.(type) {
		case map[string]any, []any:
			return false
		}
	}
	return true
}

func scalarText(v any, opts TreeOptions) string {
	var s string
	switch val := v.(type) {
	case nil:
		s = "null"
	case string:
		s = val
	case float64:
		if val == float64(int64(val)) {
			s = fmt.Sprintf("%d", int64(val))
		} else {
			s = fmt.Sprintf("%g", val)
		}
	default:
		s = fmt.Sprintf("%v", val)
	}
	return truncate(s, opts.MaxStringLen)
}
