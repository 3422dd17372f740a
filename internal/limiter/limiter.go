// Package limiter windows the rows shown for table and chart panels.
package limiter

import (
	"fmt"
	"reflect"

	"github.com/oakwood-commons/dashx/pkg/panel"
)

// Rows holds the row window parameters.
type Rows struct {
	Limit  int // show at most this many rows (0 = unlimited)
	Offset int // skip the first N rows
	Tail   int // show only the last N rows; excludes Limit, ignores Offset
}

// Validate rejects negative values and a Limit combined with a Tail.
func (r Rows) Validate() error {
	if r.Limit < 0 {
		return fmt.Errorf("--limit must be non-negative, got %d", r.Limit)
	}
	if r.Offset < 0 {
		return fmt.Errorf("--offset must be non-negative, got %d", r.Offset)
	}
	if r.Tail < 0 {
		return fmt.Errorf("--tail must be non-negative, got %d", r.Tail)
	}
	if r.Limit > 0 && r.Tail > 0 {
		return fmt.Errorf("--limit and --tail are mutually exclusive")
	}
	return nil
}

// IsActive reports whether any windowing is configured.
func (r Rows) IsActive() bool {
	return r.Limit > 0 || r.Offset > 0 || r.Tail > 0
}

func (r Rows) bounds(n int) (start, end int) {
	if r.Tail > 0 {
		return max(n-r.Tail, 0), n
	}
	start = min(r.Offset, n)
	end = n
	if r.Limit > 0 {
		end = min(start+r.Limit, n)
	}
	return start, end
}

// Apply windows a slice of rows. Anything that is not a slice is returned
// unchanged.
func (r Rows) Apply(data any) any {
	if !r.IsActive() || data == nil {
		return data
	}
	if rows, ok := data.([]any); ok {
		start, end := r.bounds(len(rows))
		return rows[start:end]
	}
	val := reflect.ValueOf(data)
	if val.Kind() != reflect.Slice {
		return data
	}
	start, end := r.bounds(val.Len())
	return val.Slice(start, end).Interface()
}

// ApplyViews windows the data of every table and chart view. Other views
// pass through untouched.
func (r Rows) ApplyViews(views []panel.View) []panel.View {
	if !r.IsActive() {
		return views
	}
	out := make([]panel.View, len(views))
	for i, v := range views {
		if v.Type == panel.TypeTable || v.Type == panel.TypeChart {
			v.Data = r.Apply(v.Data)
		}
		out[i] = v
	}
	return out
}
