package navigator

import (
	"reflect"
	"sort"

	"github.com/oakwood-commons/dashx/internal/formatter"
)

// IsHomogeneousArray reports whether data is a non-empty list of maps that
// all share the same key set, returning those keys sorted.
func IsHomogeneousArray(data any) (bool, []string) {
	rv := deref(reflect.ValueOf(data))
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false, nil
	}
	if rv.Len() == 0 {
		return false, nil
	}

	first, ok := toStringKeyMap(rv.Index(0).Interface())
	if !ok || len(first) == 0 {
		return false, nil
	}
	keys := make([]string, 0, len(first))
	for k := range first {
		keys = append(keys, k)
	}
	for i := 1; i < rv.Len(); i++ {
		m, ok := toStringKeyMap(rv.Index(i).Interface())
		if !ok || !sameKeySet(keys, m) {
			return false, nil
		}
	}
	sort.Strings(keys)
	return true, keys
}

// ExtractColumnarData turns a homogeneous list of rows into column names and
// stringified cells. Columns named in order come first; the rest follow
// alphabetically. Returns nil, nil when data is not tabular.
func ExtractColumnarData(data any, order []string) ([]string, [][]string) {
	ok, fields := IsHomogeneousArray(data)
	if !ok {
		return nil, nil
	}

	present := make(map[string]bool, len(fields))
	for _, f := range fields {
		present[f] = true
	}
	columns := make([]string, 0, len(fields))
	used := make(map[string]bool, len(fields))
	for _, f := range order {
		if present[f] && !used[f] {
			columns = append(columns, f)
			used[f] = true
		}
	}
	for _, f := range fields {
		if !used[f] {
			columns = append(columns, f)
		}
	}

	rv := deref(reflect.ValueOf(data))
	rows := make([][]string, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		m, _ := toStringKeyMap(rv.Index(i).Interface())
		row := make([]string, len(columns))
		for j, col := range columns {
			row[j] = formatter.Stringify(m[col])
		}
		rows = append(rows, row)
	}
	return columns, rows
}

func toStringKeyMap(v any) (map[string]any, bool) {
	if v == nil {
		return nil, false
	}
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	for _, key := range rv.MapKeys() {
		out[key.String()] = rv.MapIndex(key).Interface()
	}
	return out, true
}

func sameKeySet(keys []string, m map[string]any) bool {
	if len(keys) != len(m) {
		return false
	}
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}
