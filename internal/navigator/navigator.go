// Package navigator walks query payloads and panel properties by path and
// flattens them into rows for display.
package navigator

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/oakwood-commons/dashx/internal/cel"
	"github.com/oakwood-commons/dashx/internal/formatter"
)

// SortOrder defines how map keys are ordered when rendered.
type SortOrder string

const (
	SortNone       SortOrder = "none"
	SortAscending  SortOrder = "ascending"
	SortDescending SortOrder = "descending"
)

// EvaluateFunc evaluates a CEL expression with root bound to "_".
type EvaluateFunc func(expr string, root any) (any, error)

// Navigator resolves paths into payloads. The zero value uses a standard CEL
// evaluator for expressions that are not plain paths.
type Navigator struct {
	Order    SortOrder
	Evaluate EvaluateFunc
}

// New returns a Navigator sorting keys ascending.
func New() *Navigator {
	return &Navigator{Order: SortAscending}
}

func (n *Navigator) evaluate(expr string, root any) (any, error) {
	if n.Evaluate != nil {
		return n.Evaluate(expr, root)
	}
	e, err := cel.Shared()
	if err != nil {
		return nil, err
	}
	return e.Evaluate(expr, root)
}

// NodeAtPath returns the value at path inside root. Plain paths use dots and
// brackets; anything else is treated as a CEL expression over "_".
func (n *Navigator) NodeAtPath(root any, path string) (any, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed == "_" {
		return root, nil
	}
	if isComplexCEL(trimmed) {
		result, err := n.evaluate(trimmed, root)
		if err != nil {
			return nil, fmt.Errorf("CEL evaluation error: %w", err)
		}
		return result, nil
	}

	segs, err := ParsePath(trimmed)
	if err != nil {
		return nil, err
	}
	cur := root
	for _, s := range segs {
		cur, err = step(cur, s)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// NodeAtPath resolves path with a default Navigator.
func NodeAtPath(root any, path string) (any, error) {
	return New().NodeAtPath(root, path)
}

// isComplexCEL reports whether path needs CEL rather than plain navigation.
func isComplexCEL(path string) bool {
	if strings.HasPrefix(path, `"`) || strings.HasPrefix(path, "{") {
		return true
	}
	if strings.HasPrefix(path, "_.") || strings.HasPrefix(path, "_[") {
		return true
	}
	if strings.Contains(path, "(") && strings.Contains(path, ")") {
		return true
	}
	if strings.HasPrefix(path, "[") {
		end := strings.IndexByte(path, ']')
		if end > 0 {
			inner := path[1:end]
			if _, err := strconv.Atoi(inner); err == nil {
				return false
			}
			if strings.HasPrefix(inner, `"`) && strings.HasSuffix(inner, `"`) {
				return false
			}
			return true
		}
	}
	for _, op := range []string{"==", "!=", "<=", ">=", "<", ">", "&&", "||"} {
		if strings.Contains(path, op) {
			return true
		}
	}
	return false
}

func step(cur any, s Segment) (any, error) {
	switch v := s.(type) {
	case Field:
		return lookupKey(cur, v.Name)
	case QuotedKey:
		return lookupKey(cur, v.Name)
	case ArrayIndex:
		return lookupIndex(cur, v.Index)
	default:
		return nil, fmt.Errorf("unsupported path segment %T", s)
	}
}

func lookupKey(cur any, key string) (any, error) {
	if m, ok := cur.(map[string]any); ok {
		v, found := m[key]
		if !found {
			return nil, fmt.Errorf("key '%s' not found", key)
		}
		return v, nil
	}
	rv := deref(reflect.ValueOf(cur))
	switch rv.Kind() { //nolint:exhaustive // only keyed containers
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		value := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !value.IsValid() {
			return nil, fmt.Errorf("key '%s' not found", key)
		}
		return value.Interface(), nil
	case reflect.Slice, reflect.Array:
		// numeric field in a dotted path: items.0
		if idx, err := strconv.Atoi(key); err == nil {
			return lookupIndex(cur, idx)
		}
		return nil, fmt.Errorf("expected numeric index into array but got '%s'", key)
	case reflect.Struct:
		if field, ok := structFieldValue(rv, key); ok {
			return field, nil
		}
		return nil, fmt.Errorf("key '%s' not found", key)
	}
	return nil, fmt.Errorf("cannot descend into %T at '%s'", cur, key)
}

func lookupIndex(cur any, idx int) (any, error) {
	if arr, ok := cur.([]any); ok {
		if idx < 0 || idx >= len(arr) {
			return nil, fmt.Errorf("index %d out of range", idx)
		}
		return arr[idx], nil
	}
	rv := deref(reflect.ValueOf(cur))
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("cannot index %T with [%d]", cur, idx)
	}
	if idx < 0 || idx >= rv.Len() {
		return nil, fmt.Errorf("index %d out of range", idx)
	}
	return rv.Index(idx).Interface(), nil
}

func deref(rv reflect.Value) reflect.Value {
	for rv.IsValid() && rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

func structFieldValue(rv reflect.Value, key string) (any, bool) {
	typ := rv.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		for _, tag := range []string{"json", "yaml"} {
			name := strings.Split(field.Tag.Get(tag), ",")[0]
			if name == "-" {
				continue
			}
			if name == key {
				return rv.Field(i).Interface(), true
			}
		}
		if field.Name == key {
			return rv.Field(i).Interface(), true
		}
	}
	return nil, false
}

// NodeToRows converts a value into [key, value] rows for a two-column table.
// Scalars and empty containers yield a single "(value)" row.
func (n *Navigator) NodeToRows(node any) [][]string {
	scalar := [][]string{{"(value)", formatter.Stringify(node)}}
	rv := deref(reflect.ValueOf(node))
	switch rv.Kind() { //nolint:exhaustive // maps and slices only
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String || rv.Len() == 0 {
			return scalar
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		n.sortKeys(keys)
		rows := make([][]string, 0, len(keys))
		for _, k := range keys {
			value := rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface()
			rows = append(rows, []string{k, formatter.Stringify(value)})
		}
		return rows
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return scalar
		}
		rows := make([][]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			rows = append(rows, []string{fmt.Sprintf("[%d]", i), formatter.Stringify(rv.Index(i).Interface())})
		}
		return rows
	default:
		return scalar
	}
}

// NodeToRows flattens node with a default Navigator.
func NodeToRows(node any) [][]string {
	return New().NodeToRows(node)
}

func (n *Navigator) sortKeys(keys []string) {
	switch n.Order {
	case SortAscending, "":
		sort.Strings(keys)
	case SortDescending:
		sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	case SortNone:
	}
}
